// ABOUTME: Session manager that opens one Session per client connection
// ABOUTME: Shares the dispatcher, the command slot limiter and the traffic log across sessions

package session

import (
	stderrors "errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harper/php-integrator/internal/application"
	"github.com/harper/php-integrator/internal/command"
	"github.com/harper/php-integrator/internal/framing"
	"github.com/harper/php-integrator/internal/logger"
	"github.com/harper/php-integrator/internal/metrics"
	"github.com/harper/php-integrator/internal/stdin"
	"golang.org/x/sync/semaphore"
)

var ErrTooManyConnections = stderrors.New("connection limit reached")

type ManagerConfig struct {
	MaxContentLength      int
	MaxConcurrentCommands int64 // process-wide; 1 serializes all commands
	MaxConnections        int   // 0 means unlimited
}

type Manager struct {
	config     ManagerConfig
	dispatcher *command.Dispatcher
	slots      *semaphore.Weighted
	traffic    TrafficLog
	sessions   map[string]*Session
	mu         sync.RWMutex
}

// NewManager builds a manager. traffic may be nil to disable the traffic log.
func NewManager(cfg ManagerConfig, dispatcher *command.Dispatcher, traffic TrafficLog) *Manager {
	if cfg.MaxConcurrentCommands < 1 {
		cfg.MaxConcurrentCommands = 1
	}
	return &Manager{
		config:     cfg,
		dispatcher: dispatcher,
		slots:      semaphore.NewWeighted(cfg.MaxConcurrentCommands),
		traffic:    traffic,
		sessions:   make(map[string]*Session),
	}
}

// Open registers a new connection. Responses are written to out.
func (m *Manager) Open(transport, remoteAddr string, out io.Writer) (*Session, error) {
	id := uuid.New().String()
	log := logger.Prefixed("conn:" + id[:8])

	buf, err := stdin.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin buffer: %w", err)
	}

	sess := &Session{
		ID:         id,
		Transport:  transport,
		RemoteAddr: remoteAddr,
		CreatedAt:  time.Now(),
		out:        out,
		decoder:    framing.NewDecoder(m.config.MaxContentLength),
		app:        application.New(m.dispatcher, buf, log),
		slots:      m.slots,
		traffic:    m.traffic,
		log:        log,
	}
	sess.lastActivity.Store(sess.CreatedAt.UnixNano())
	sess.onClose = func() { m.remove(sess) }

	m.mu.Lock()
	if m.config.MaxConnections > 0 && len(m.sessions) >= m.config.MaxConnections {
		m.mu.Unlock()
		_ = buf.Close()
		return nil, ErrTooManyConnections
	}
	m.sessions[id] = sess
	m.mu.Unlock()

	if m.traffic != nil {
		if err := m.traffic.CreateSession(id, transport, remoteAddr); err != nil {
			log.Warn("traffic log: %v", err)
		}
	}
	metrics.SessionOpened(transport)
	log.Info("opened %s connection from %s", transport, remoteAddr)
	return sess, nil
}

func (m *Manager) remove(sess *Session) {
	m.mu.Lock()
	_, ok := m.sessions[sess.ID]
	delete(m.sessions, sess.ID)
	m.mu.Unlock()

	if ok {
		metrics.SessionClosed(sess.Transport)
	}
}

// Close closes the session with the given id.
func (m *Manager) Close(sessionID string) error {
	sess, ok := m.Get(sessionID)
	if !ok {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	return sess.Close()
}

// CloseAll closes every live session, e.g. on shutdown.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		_ = s.Close()
	}
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[sessionID]
	return sess, ok
}

// List returns live sessions, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	infos := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, s.Info())
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
