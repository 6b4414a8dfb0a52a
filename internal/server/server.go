// ABOUTME: Socket listener that accepts TCP or unix connections and gives each one a session
// ABOUTME: Reads raw chunks on a goroutine per connection and feeds them to the session in order

package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/harper/php-integrator/internal/logger"
	"github.com/harper/php-integrator/internal/session"
)

// ReadBufferSize is the largest chunk handed to a session in one call.
const ReadBufferSize = 64 << 10

type Server struct {
	network  string // "tcp" or "unix"
	address  string
	sessions *session.Manager
	listener net.Listener

	connMu  sync.Mutex
	conns   map[net.Conn]struct{}
	closing bool
	wg      sync.WaitGroup

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	stopOnce sync.Once
}

func New(network, address string, mgr *session.Manager) *Server {
	return &Server{
		network:  network,
		address:  address,
		sessions: mgr,
		conns:    make(map[net.Conn]struct{}),
	}
}

// Start binds the listener and accepts connections in the background until
// Stop is called or ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("server is already running")
	}

	if s.network == "unix" {
		if err := prepareSocketPath(s.address); err != nil {
			return fmt.Errorf("failed to prepare socket path: %w", err)
		}
	}

	listener, err := net.Listen(s.network, s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s %s: %w", s.network, s.address, err)
	}
	s.listener = listener
	s.running = true

	ctx, s.cancel = context.WithCancel(ctx)
	go func() {
		<-ctx.Done()
		_ = s.Stop()
	}()

	s.wg.Add(1)
	go s.acceptLoop(ctx)

	logger.Info("Listening on %s %s", s.network, listener.Addr())
	return nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and every open connection, then waits for the
// connection goroutines to finish.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		s.mu.Lock()
		if s.cancel != nil {
			s.cancel()
		}
		listener := s.listener
		s.mu.Unlock()

		if listener != nil {
			if cerr := listener.Close(); cerr != nil && !isClosedError(cerr) {
				err = cerr
			}
		}

		s.connMu.Lock()
		s.closing = true
		for conn := range s.conns {
			_ = conn.Close()
		}
		s.connMu.Unlock()

		s.wg.Wait()

		if s.network == "unix" {
			if rerr := os.Remove(s.address); rerr != nil && !os.IsNotExist(rerr) {
				logger.Warn("Failed to remove socket file %s: %v", s.address, rerr)
			}
		}

		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		logger.Info("Stopped listening on %s %s", s.network, s.address)
	})
	return err
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if isClosedError(err) || ctx.Err() != nil {
				return
			}
			logger.Error("Error accepting connection: %v", err)
			continue
		}

		if !s.track(conn) {
			_ = conn.Close()
			return
		}
		s.wg.Add(1)
		go s.serveConn(ctx, conn)
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.closing {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	remote := s.network
	if addr := conn.RemoteAddr(); addr != nil && addr.String() != "" {
		remote = addr.String()
	}

	sess, err := s.sessions.Open(s.network, remote, conn)
	if err != nil {
		if stderrors.Is(err, session.ErrTooManyConnections) {
			logger.Warn("Connection limit reached, rejecting connection from %s", remote)
		} else {
			logger.Error("Failed to open session for %s: %v", remote, err)
		}
		return
	}
	defer sess.Close()

	buf := make([]byte, ReadBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if herr := sess.HandleData(ctx, buf[:n]); herr != nil {
				if ctx.Err() == nil {
					logger.Warn("Dropping connection %s: %v", remote, herr)
				}
				return
			}
		}
		if err != nil {
			if err != io.EOF && !isClosedError(err) {
				logger.Debug("Read from %s failed: %v", remote, err)
			}
			return
		}
	}
}

// prepareSocketPath creates the parent directory and removes a stale socket.
func prepareSocketPath(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing socket file: %w", err)
	}
	return nil
}

func isClosedError(err error) bool {
	return stderrors.Is(err, net.ErrClosed)
}
