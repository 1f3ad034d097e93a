package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

const (
	ProtocolVersion = "2024-11-05"
	ServerName      = "interactive"

	maxLineSize = 16 * 1024 * 1024
)

const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

type Server struct {
	tools   *ToolRegistry
	version string
	reader  *bufio.Reader
	writer  io.Writer
	log     *zap.Logger

	mu       sync.Mutex
	inflight sync.WaitGroup
}

// NewServer builds a server answering on in and out. Both may be nil when the
// server is only reached through an HTTPHandler.
func NewServer(tools *ToolRegistry, version string, in io.Reader, out io.Writer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		tools:   tools,
		version: version,
		writer:  out,
		log:     log,
	}
	if in != nil {
		s.reader = bufio.NewReaderSize(in, 64*1024)
	}
	return s
}

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id,omitempty"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"serverInfo"`
}

type ToolsListResult struct {
	Tools []ToolDef `json:"tools"`
}

type ToolDef struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type CallToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Run serves newline-delimited JSON-RPC until the input reaches EOF. Tool
// calls run concurrently so a long wait does not block other sessions; Run
// returns only after every in-flight call has answered.
func (s *Server) Run(ctx context.Context) error {
	if s.reader == nil {
		return errors.New("mcp: server has no input stream")
	}
	defer s.inflight.Wait()

	for {
		line, err := s.readLine()
		if len(line) > 0 {
			s.handleLine(ctx, line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
	}
}

func (s *Server) readLine() ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := s.reader.ReadLine()
		line = append(line, chunk...)
		if err != nil {
			return line, err
		}
		if len(line) > maxLineSize {
			return nil, fmt.Errorf("request exceeds %d bytes", maxLineSize)
		}
		if !isPrefix {
			return line, nil
		}
	}
}

func (s *Server) handleLine(ctx context.Context, line []byte) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.send(*errorResponse(nil, codeParseError, "Parse error", err.Error()))
		return
	}

	if req.Method == "tools/call" {
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			s.reply(s.Dispatch(ctx, &req))
		}()
		return
	}
	s.reply(s.Dispatch(ctx, &req))
}

func (s *Server) reply(resp *Response) {
	if resp != nil {
		s.send(*resp)
	}
}

// Dispatch answers one request. Notifications return nil.
func (s *Server) Dispatch(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "initialize":
		return resultResponse(req.ID, s.initializeResult())
	case "notifications/initialized", "notifications/cancelled":
		return nil
	case "tools/list":
		return resultResponse(req.ID, ToolsListResult{Tools: s.tools.List()})
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return resultResponse(req.ID, map[string]string{})
	default:
		if req.ID == nil {
			return nil
		}
		return errorResponse(req.ID, codeMethodNotFound, "Method not found", req.Method)
	}
}

func (s *Server) initializeResult() InitializeResult {
	result := InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: map[string]any{
			"tools": map[string]any{},
		},
	}
	result.ServerInfo.Name = ServerName
	result.ServerInfo.Version = s.version
	return result
}

func (s *Server) handleToolsCall(ctx context.Context, req *Request) *Response {
	var params CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	s.log.Debug("tool call", zap.String("tool", params.Name))
	return resultResponse(req.ID, s.tools.Call(ctx, params.Name, params.Arguments))
}

func resultResponse(id interface{}, result interface{}) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
}

func errorResponse(id interface{}, code int, message, data string) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

func (s *Server) send(resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("encode response", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.writer.Write(append(data, '\n')); err != nil {
		s.log.Warn("write response", zap.Error(err))
	}
}
