// ABOUTME: HTTP transport for clients that cannot hold a socket open
// ABOUTME: Routes POST /rpc to a handler that runs one request in a throwaway session

package http

import (
	"net/http"

	"github.com/harper/php-integrator/internal/session"
)

const Transport = "http"

type Server struct {
	sessionMgr       *session.Manager
	maxContentLength int64
	mux              *http.ServeMux
}

func NewServer(mgr *session.Manager, maxContentLength int) *Server {
	s := &Server{
		sessionMgr:       mgr,
		maxContentLength: int64(maxContentLength),
		mux:              http.NewServeMux(),
	}

	s.mux.HandleFunc("/rpc", s.handleRPC)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
