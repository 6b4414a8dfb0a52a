// ABOUTME: WebSocket transport where every message carries a chunk of the Content-Length framed stream
// ABOUTME: Each upgraded connection gets its own session; responses go back as binary messages

package websocket

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/harper/php-integrator/internal/logger"
	"github.com/harper/php-integrator/internal/session"
)

const Transport = "websocket"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 << 10,
	WriteBufferSize: 64 << 10,
	CheckOrigin: func(r *http.Request) bool {
		return true // editors connect from arbitrary local origins
	},
}

type Server struct {
	sessionMgr *session.Manager
	ctx        context.Context
}

// NewServer builds the handler. Cancelling ctx aborts requests still waiting
// for a command slot.
func NewServer(ctx context.Context, mgr *session.Manager) *Server {
	return &Server{sessionMgr: mgr, ctx: ctx}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed: %v", err)
		return
	}

	s.handleConnection(conn, r.RemoteAddr)
}

// messageWriter turns each Write into one binary message.
type messageWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *messageWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *Server) handleConnection(conn *websocket.Conn, remoteAddr string) {
	defer conn.Close()

	sess, err := s.sessionMgr.Open(Transport, remoteAddr, &messageWriter{conn: conn})
	if err != nil {
		logger.Warn("rejecting websocket client %s: %v", remoteAddr, err)
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error())
		_ = conn.WriteMessage(websocket.CloseMessage, msg)
		return
	}
	defer sess.Close()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("websocket read error from %s: %v", remoteAddr, err)
			}
			return
		}

		if err := sess.HandleData(ctx, message); err != nil {
			logger.Warn("dropping websocket client %s: %v", remoteAddr, err)
			return
		}
	}
}
