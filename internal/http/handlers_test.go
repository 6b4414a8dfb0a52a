package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/harper/php-integrator/internal/command"
	"github.com/harper/php-integrator/internal/command/builtin"
	"github.com/harper/php-integrator/internal/framing"
	"github.com/harper/php-integrator/internal/jsonrpc"
	"github.com/harper/php-integrator/internal/session"
)

func newTestServer(t *testing.T, cfg session.ManagerConfig, maxContentLength int) (*Server, *session.Manager) {
	t.Helper()
	reg := command.NewMapRegistry()
	if err := builtin.Register(reg); err != nil {
		t.Fatal(err)
	}
	reg.Seal()
	mgr := session.NewManager(cfg, command.NewDispatcher(reg), nil)
	return NewServer(mgr, maxContentLength), mgr
}

func post(t *testing.T, srv *Server, body string) (*httptest.ResponseRecorder, jsonrpc.Response) {
	t.Helper()
	req := httptest.NewRequest("POST", "/rpc", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var resp jsonrpc.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response %q: %v", rec.Body.String(), err)
	}
	return rec, resp
}

func TestRPCRoundTrip(t *testing.T) {
	srv, mgr := newTestServer(t, session.ManagerConfig{}, 1<<20)

	rec, resp := post(t, srv, `{"id":7,"method":"sessionInfo","params":{"projectName":"acme","stdinData":"<?php echo 1;"}}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	if string(resp.ID) != "7" {
		t.Errorf("expected id 7, got %s", resp.ID)
	}

	var info builtin.SessionInfo
	if err := json.Unmarshal(resp.Result, &info); err != nil {
		t.Fatal(err)
	}
	if info.ProjectName != "acme" || info.StdinLength != len("<?php echo 1;") {
		t.Errorf("unexpected session info: %+v", info)
	}
	if mgr.Count() != 0 {
		t.Errorf("expected the throwaway session to be closed, %d still open", mgr.Count())
	}
}

func TestRPCResponseLargerThanRequestLimit(t *testing.T) {
	// Larger than both the request limit and the default frame limit
	size := framing.DefaultMaxContentLength + 1<<20

	reg := command.NewMapRegistry()
	err := reg.Register("source", command.HandlerFunc(func(ctx context.Context, env command.Environment, params *jsonrpc.Params) (interface{}, error) {
		return "<?php " + strings.Repeat("<", size), nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	reg.Seal()
	srv := NewServer(session.NewManager(session.ManagerConfig{}, command.NewDispatcher(reg), nil), 1024)

	rec, resp := post(t, srv, `{"id":3,"method":"source","params":{"projectName":"acme"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %.200s", rec.Code, rec.Body.String())
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	var source string
	if err := json.Unmarshal(resp.Result, &source); err != nil {
		t.Fatal(err)
	}
	if len(source) != len("<?php ")+size {
		t.Errorf("expected %d bytes of source, got %d", len("<?php ")+size, len(source))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte(`{"id":3,"result":"<?php <<<`)) {
		t.Errorf("expected literal markup in the body, got %.40s", rec.Body.String())
	}
}

func TestRPCErrorsKeepStatusOK(t *testing.T) {
	srv, _ := newTestServer(t, session.ManagerConfig{}, 1<<20)

	rec, resp := post(t, srv, `{"id":"q","method":"ping","params":{}}`)
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != jsonrpc.InvalidParams {
		t.Fatalf("expected INVALID_PARAMS, got %+v", resp.Error)
	}
	if !strings.Contains(resp.Error.Message, "projectName") {
		t.Errorf("unexpected message %q", resp.Error.Message)
	}
}

func TestRPCRejectsBadRequests(t *testing.T) {
	srv, _ := newTestServer(t, session.ManagerConfig{}, 64)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"empty body", "  ", http.StatusBadRequest},
		{"too large", `{"id":1,"method":"echo","params":{"projectName":"` + strings.Repeat("x", 100) + `"}}`, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := post(t, srv, tt.body)
			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}
			if resp.Error == nil || resp.Error.Code != jsonrpc.InvalidRequest {
				t.Errorf("expected INVALID_REQUEST, got %+v", resp.Error)
			}
			if string(resp.ID) != "null" {
				t.Errorf("expected null id, got %s", resp.ID)
			}
		})
	}
}

func TestRPCMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, session.ManagerConfig{}, 1<<20)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/rpc", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}
