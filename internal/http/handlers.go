// ABOUTME: HTTP handler that answers a single JSON-RPC request per POST body
// ABOUTME: Frames the body, runs it through a fresh session and returns the unframed response

package http

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"

	"github.com/harper/php-integrator/internal/framing"
	"github.com/harper/php-integrator/internal/jsonrpc"
	"github.com/harper/php-integrator/internal/logger"
	"github.com/harper/php-integrator/internal/session"
)

// handleRPC gives each POST its own session, so projectName and stdinData
// must be sent on every call.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxContentLength))
	defer func() { _ = r.Body.Close() }()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, jsonrpc.NewError(jsonrpc.InvalidRequest,
				fmt.Sprintf("Request body exceeds %d bytes", s.maxContentLength), nil))
			return
		}
		writeError(w, http.StatusBadRequest, jsonrpc.NewError(jsonrpc.InvalidRequest,
			fmt.Sprintf("failed to read body: %v", err), nil))
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, jsonrpc.NewError(jsonrpc.InvalidRequest, "Empty request body", nil))
		return
	}

	var out responseBody
	sess, err := s.sessionMgr.Open(Transport, r.RemoteAddr, &out)
	if err != nil {
		status := http.StatusInternalServerError
		if stderrors.Is(err, session.ErrTooManyConnections) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, jsonrpc.NewError(jsonrpc.InternalError, err.Error(), nil))
		return
	}
	defer sess.Close()

	if err := sess.HandleData(r.Context(), framing.Frame(body)); err != nil {
		logger.Warn("[HTTP:%s] request aborted: %v", sess.ID[:8], err)
		writeError(w, http.StatusServiceUnavailable, jsonrpc.NewError(jsonrpc.InternalError,
			"request cancelled before a command slot was free", nil))
		return
	}

	if out.err != nil || len(out.bodies) != 1 {
		logger.Error("[HTTP:%s] session produced %d responses: %v", sess.ID[:8], len(out.bodies), out.err)
		writeError(w, http.StatusInternalServerError, jsonrpc.NewError(jsonrpc.InternalError, "no response produced", nil))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.bodies[0])
}

// responseBody collects the bodies of the frames a session writes. Each
// frame arrives in a single Write, and responses are not held to the
// request size limit.
type responseBody struct {
	bodies [][]byte
	err    error
}

func (b *responseBody) Write(p []byte) (int, error) {
	payloads, err := framing.NewDecoder(len(p)).Feed(p)
	if err != nil && b.err == nil {
		b.err = err
	}
	b.bodies = append(b.bodies, payloads...)
	return len(p), nil
}

func writeError(w http.ResponseWriter, status int, rpcErr *jsonrpc.Error) {
	data, err := jsonrpc.Encode(jsonrpc.NewErrorResponse(nil, rpcErr))
	if err != nil {
		http.Error(w, rpcErr.Message, status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
