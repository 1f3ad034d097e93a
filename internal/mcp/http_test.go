package mcp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/schovi/interactive/internal/engine"
)

func newHTTPTestServer(t *testing.T, fe *fakeEngine) *httptest.Server {
	t.Helper()
	srv := NewServer(NewToolRegistry(fe), "test", nil, nil, nil)
	ts := httptest.NewServer(NewHTTPHandler(srv))
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+HTTPPath, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHTTPToolCall(t *testing.T) {
	fe := &fakeEngine{sessions: map[int64]engine.SessionStatus{}}
	ts := newHTTPTestServer(t, fe)

	resp := post(t, ts, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"start_session","arguments":{"command":"cat"}}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var rpc Response
	if err := json.NewDecoder(resp.Body).Decode(&rpc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var result CallToolResult
	remarshal(t, rpc.Result, &result)
	if result.IsError {
		t.Errorf("start_session failed: %+v", result)
	}
	if len(fe.started) != 1 || fe.started[0].Command != "cat" {
		t.Errorf("started = %+v", fe.started)
	}
}

func TestHTTPNotificationAccepted(t *testing.T) {
	ts := newHTTPTestServer(t, &fakeEngine{})

	resp := post(t, ts, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202", resp.StatusCode)
	}
}

func TestHTTPBatch(t *testing.T) {
	ts := newHTTPTestServer(t, &fakeEngine{})

	resp := post(t, ts, `[{"jsonrpc":"2.0","id":1,"method":"ping"},{"jsonrpc":"2.0","method":"notifications/initialized"},{"jsonrpc":"2.0","id":2,"method":"tools/list"}]`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out []Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 {
		t.Errorf("got %d responses, want 2", len(out))
	}
}

func TestHTTPRejects(t *testing.T) {
	ts := newHTTPTestServer(t, &fakeEngine{})

	resp := post(t, ts, `{not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("parse error status = %d", resp.StatusCode)
	}
	var rpc Response
	if err := json.NewDecoder(resp.Body).Decode(&rpc); err != nil || rpc.Error == nil || rpc.Error.Code != codeParseError {
		t.Errorf("parse error body = %+v (%v)", rpc, err)
	}

	get, err := http.Get(ts.URL + HTTPPath)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	get.Body.Close()
	if get.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d", get.StatusCode)
	}

	other, err := http.Post(ts.URL+"/other", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	other.Body.Close()
	if other.StatusCode != http.StatusNotFound {
		t.Errorf("unknown path status = %d", other.StatusCode)
	}
}

func TestRunWithoutInput(t *testing.T) {
	srv := NewServer(NewToolRegistry(&fakeEngine{}), "test", nil, nil, nil)
	if err := srv.Run(t.Context()); err == nil {
		t.Error("expected an error without an input stream")
	}
}
