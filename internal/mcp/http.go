package mcp

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"
)

const (
	DefaultHTTPAddr = "127.0.0.1:8070"
	HTTPPath        = "/mcp"
)

// HTTPHandler serves the streamable HTTP transport. Each POST carries one
// JSON-RPC message or a batch and is answered with a plain JSON body;
// notifications get 202 Accepted. No server-initiated event stream is
// offered, so GET is refused.
type HTTPHandler struct {
	server *Server
	log    *zap.Logger
}

func NewHTTPHandler(server *Server) *HTTPHandler {
	return &HTTPHandler{server: server, log: server.log}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != HTTPPath {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxLineSize+1))
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(body) > maxLineSize {
		http.Error(w, "Request too large", http.StatusRequestEntityTooLarge)
		return
	}

	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		h.serveBatch(w, r, body)
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		h.write(w, http.StatusBadRequest, errorResponse(nil, codeParseError, "Parse error", err.Error()))
		return
	}

	resp := h.server.Dispatch(r.Context(), &req)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	h.write(w, http.StatusOK, resp)
}

func (h *HTTPHandler) serveBatch(w http.ResponseWriter, r *http.Request, body []byte) {
	var reqs []Request
	if err := json.Unmarshal(body, &reqs); err != nil {
		h.write(w, http.StatusBadRequest, errorResponse(nil, codeParseError, "Parse error", err.Error()))
		return
	}

	out := make([]*Response, 0, len(reqs))
	for i := range reqs {
		if resp := h.server.Dispatch(r.Context(), &reqs[i]); resp != nil {
			out = append(out, resp)
		}
	}
	if len(out) == 0 {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	h.write(w, http.StatusOK, out)
}

func (h *HTTPHandler) write(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error("encode response", zap.Error(err))
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		h.log.Debug("write response", zap.Error(err))
	}
}
