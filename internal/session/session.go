// ABOUTME: One client connection: its frame decoder, JSON-RPC application and simulated stdin
// ABOUTME: Turns raw chunks into framed responses written back in request order

package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harper/php-integrator/internal/application"
	"github.com/harper/php-integrator/internal/db"
	apperrors "github.com/harper/php-integrator/internal/errors"
	"github.com/harper/php-integrator/internal/framing"
	"github.com/harper/php-integrator/internal/jsonrpc"
	"github.com/harper/php-integrator/internal/logger"
	"github.com/harper/php-integrator/internal/metrics"
	"golang.org/x/sync/semaphore"
)

var ErrSessionClosed = stderrors.New("session closed")

// TrafficLog records connections and messages. *db.DB implements it.
type TrafficLog interface {
	CreateSession(sessionID, transport, remoteAddr string) error
	UpdateSessionProject(sessionID, projectName string) error
	CloseSession(sessionID string) error
	LogMessage(sessionID string, direction db.MessageDirection, rawMessage []byte) error
}

type Session struct {
	ID         string
	Transport  string
	RemoteAddr string
	CreatedAt  time.Time

	mu      sync.Mutex // held while a chunk is processed
	out     io.Writer
	decoder *framing.Decoder
	app     *application.Application
	slots   *semaphore.Weighted
	traffic TrafficLog
	log     *logger.Logger

	requests     atomic.Int64
	lastActivity atomic.Int64
	closed       atomic.Bool
	onClose      func()

	// snapshot for Info, readable while a command runs
	infoMu       sync.RWMutex
	projectName  string
	databaseFile string
	pending      bool
}

// Info is a point-in-time view of a session for the management API.
type Info struct {
	ID           string    `json:"id"`
	Transport    string    `json:"transport"`
	RemoteAddr   string    `json:"remote_addr"`
	ProjectName  string    `json:"project_name"`
	DatabaseFile string    `json:"database_file"`
	Requests     int64     `json:"requests"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	Pending      bool      `json:"pending"`
}

// HandleData feeds one chunk of the connection's byte stream. Each completed
// frame is answered with exactly one framed response, in arrival order.
// Framing errors are logged and swallowed; the returned error is only set
// when the session can no longer be used (closed, write failed, ctx done).
func (s *Session) HandleData(ctx context.Context, chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return ErrSessionClosed
	}
	s.lastActivity.Store(time.Now().UnixNano())
	metrics.RecordBytesReceived(s.Transport, len(chunk))

	payloads, frameErr := s.decoder.Feed(chunk)
	for _, payload := range payloads {
		if err := s.process(ctx, payload); err != nil {
			return err
		}
	}

	if frameErr != nil {
		reason := frameErr.Error()
		var fe *apperrors.FramingError
		if stderrors.As(frameErr, &fe) {
			reason = fe.Reason
		}
		metrics.RecordFramingError(reason)
		s.log.Warn("discarding input: %v", frameErr)
	}

	s.infoMu.Lock()
	s.pending = s.decoder.Pending()
	s.infoMu.Unlock()
	return nil
}

func (s *Session) process(ctx context.Context, payload []byte) error {
	start := time.Now()
	s.logTraffic(db.DirectionClientToServer, payload)
	s.log.Debug("<- %s", logger.Preview(payload, 200))

	if err := s.slots.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for a command slot: %w", err)
	}
	metrics.ObserveCommandWait(time.Since(start))

	previousProject := s.app.ProjectName()
	resp := s.app.HandlePayload(ctx, payload)
	s.slots.Release(1)

	body, err := jsonrpc.Encode(resp)
	if err != nil {
		s.log.Error("failed to encode response: %v", err)
		resp = jsonrpc.NewErrorResponse(resp.ID, jsonrpc.NewError(jsonrpc.InternalError,
			fmt.Sprintf("Failed to encode response: %v", err), nil))
		if body, err = jsonrpc.Encode(resp); err != nil {
			return fmt.Errorf("failed to encode fallback response: %w", err)
		}
	}

	if err := framing.WriteFrame(s.out, body); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	s.log.Debug("-> %s", logger.Preview(body, 200))
	s.logTraffic(db.DirectionServerToClient, body)
	s.requests.Add(1)

	code := 0
	if resp.Error != nil {
		code = resp.Error.Code
	}
	metrics.RecordRequest(code, time.Since(start))

	project := s.app.ProjectName()
	s.infoMu.Lock()
	s.projectName = project
	s.databaseFile = s.app.DatabaseFile()
	s.infoMu.Unlock()

	if project != previousProject && s.traffic != nil {
		if err := s.traffic.UpdateSessionProject(s.ID, project); err != nil {
			s.log.Warn("traffic log: %v", err)
		}
	}
	return nil
}

func (s *Session) logTraffic(direction db.MessageDirection, raw []byte) {
	if s.traffic == nil {
		return
	}
	if err := s.traffic.LogMessage(s.ID, direction, raw); err != nil {
		s.log.Warn("traffic log: %v", err)
	}
}

// Close drops any partially received frame and releases the stdin buffer.
// Calling it more than once is harmless.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.decoder.Pending() {
		s.log.Debug("dropping partial frame (%s)", s.decoder.Phase())
	}
	s.decoder.Reset()
	err := s.app.Close()

	if s.traffic != nil {
		if terr := s.traffic.CloseSession(s.ID); terr != nil {
			s.log.Warn("traffic log: %v", terr)
		}
	}
	if s.onClose != nil {
		s.onClose()
	}
	s.log.Info("closed after %d requests", s.requests.Load())
	return err
}

func (s *Session) Closed() bool {
	return s.closed.Load()
}

func (s *Session) Info() Info {
	s.infoMu.RLock()
	defer s.infoMu.RUnlock()
	return Info{
		ID:           s.ID,
		Transport:    s.Transport,
		RemoteAddr:   s.RemoteAddr,
		ProjectName:  s.projectName,
		DatabaseFile: s.databaseFile,
		Requests:     s.requests.Load(),
		CreatedAt:    s.CreatedAt,
		LastActivity: time.Unix(0, s.lastActivity.Load()),
		Pending:      s.pending,
	}
}
