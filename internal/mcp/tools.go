package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/schovi/interactive/internal/engine"
	"github.com/schovi/interactive/internal/escape"
)

// SessionEngine is the part of the engine the tools drive.
type SessionEngine interface {
	Start(ctx context.Context, opts engine.StartOptions) (*engine.StartResult, error)
	Wait(ctx context.Context, id int64, opts engine.WaitOptions) (*engine.WaitResult, error)
	Send(ctx context.Context, id int64, text string, opts engine.SendOptions) error
	Terminate(id int64) (*engine.TerminateResult, error)
	List() map[int64]engine.SessionStatus
}

const defaultWaitTimeoutSec = 5

type ToolRegistry struct {
	engine SessionEngine
}

func NewToolRegistry(e SessionEngine) *ToolRegistry {
	return &ToolRegistry{engine: e}
}

func (r *ToolRegistry) List() []ToolDef {
	return []ToolDef{
		{
			Name:        "start_session",
			Description: "Start an interactive program (a REPL, debugger, database shell or any other command) on a pseudo-terminal and return its session id.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"command": map[string]interface{}{
						"type":        "string",
						"description": "Program to run, resolved through PATH (e.g. 'python3', 'node', 'psql')",
					},
					"args": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Arguments passed to the program",
					},
					"log_file": map[string]interface{}{
						"type":        "boolean",
						"description": "Mirror all terminal output to a log file (default: true)",
					},
				},
				"required": []string{"command"},
			},
		},
		{
			Name:        "wait_for_output_or_prompt",
			Description: "Wait until one of the prompt strings appears in new output, or the timeout expires. A timeout is not an error; the status tells whether any output arrived.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": map[string]interface{}{
						"type":        "integer",
						"description": "Session id returned by start_session",
					},
					"prompts": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Literal strings to look for (e.g. '>>> ', '(Pdb) '). The earliest occurrence wins.",
					},
					"timeout": map[string]interface{}{
						"type":        "number",
						"description": "Seconds to wait (default: 5)",
					},
					"return_output": map[string]interface{}{
						"type":        "boolean",
						"description": "Include the captured output in the result (default: true)",
					},
					"consume_post_prompt_whitespace": map[string]interface{}{
						"type":        "boolean",
						"description": "Also consume spaces, tabs and newlines right after the prompt (default: true)",
					},
				},
				"required": []string{"session_id", "prompts"},
			},
		},
		{
			Name:        "send_command",
			Description: "Send text to a session's terminal. By default pending output is discarded first and a newline is appended.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": map[string]interface{}{
						"type":        "integer",
						"description": "Session id returned by start_session",
					},
					"command": map[string]interface{}{
						"type":        "string",
						"description": "Text to send. Mutually exclusive with command_base64.",
					},
					"command_base64": map[string]interface{}{
						"type":        "string",
						"description": "Text to send as base64, for input that is awkward to escape in JSON. Mutually exclusive with command.",
					},
					"send_newline": map[string]interface{}{
						"type":        "boolean",
						"description": "Append a newline (default: true)",
					},
					"preflush": map[string]interface{}{
						"type":        "boolean",
						"description": "Discard output that has not been waited for before sending (default: true)",
					},
					"raw": map[string]interface{}{
						"type":        "boolean",
						"description": "Interpret backslash escapes such as \\x03 or \\^C (Ctrl+C), \\x04 (Ctrl+D), \\e (Escape) (default: false)",
					},
				},
				"required": []string{"session_id"},
			},
		},
		{
			Name:        "exit_session",
			Description: "Terminate a session's process and free the session. Escalates to killing the process group if it does not exit in time.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": map[string]interface{}{
						"type":        "integer",
						"description": "Session id to terminate",
					},
				},
				"required": []string{"session_id"},
			},
		},
		{
			Name:        "get_active_sessions",
			Description: "List active sessions with their process id and status",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

// ToolError is the structured payload of a failed tool call.
type ToolError struct {
	Error   string             `json:"error"`
	Message string             `json:"message"`
	Result  *engine.WaitResult `json:"partial_result,omitempty"`
}

// Call runs a tool. Failures are reported inside the result with IsError set,
// never as protocol errors.
func (r *ToolRegistry) Call(ctx context.Context, name string, args json.RawMessage) *CallToolResult {
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage("{}")
	}

	var (
		data interface{}
		err  error
	)
	switch name {
	case "start_session":
		data, err = r.callStart(ctx, args)
	case "wait_for_output_or_prompt":
		data, err = r.callWait(ctx, args)
		if err != nil {
			res, _ := data.(*engine.WaitResult)
			return toolError(err, res)
		}
	case "send_command":
		data, err = r.callSend(ctx, args)
	case "exit_session":
		data, err = r.callExit(args)
	case "get_active_sessions":
		data = r.callList()
	default:
		err = fmt.Errorf("%w: unknown tool %q", engine.ErrInvalidArgument, name)
	}
	if err != nil {
		return toolError(err, nil)
	}
	return textResult(data)
}

func textResult(data interface{}) *CallToolResult {
	output, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return toolError(err, nil)
	}
	return &CallToolResult{
		Content: []ContentBlock{{Type: "text", Text: string(output)}},
	}
}

func toolError(err error, partial *engine.WaitResult) *CallToolResult {
	payload, _ := json.MarshalIndent(ToolError{
		Error:   engine.KindOf(err),
		Message: err.Error(),
		Result:  partial,
	}, "", "  ")
	return &CallToolResult{
		Content: []ContentBlock{{Type: "text", Text: string(payload)}},
		IsError: true,
	}
}

func parseArgs(args json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: parse args: %w", engine.ErrInvalidArgument, err)
	}
	return nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

type StartArgs struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
	LogFile *bool    `json:"log_file"`
}

func (r *ToolRegistry) callStart(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a StartArgs
	if err := parseArgs(args, &a); err != nil {
		return nil, err
	}

	return r.engine.Start(ctx, engine.StartOptions{
		Command: a.Command,
		Args:    a.Args,
		LogFile: boolOr(a.LogFile, true),
	})
}

type WaitArgs struct {
	SessionID         int64    `json:"session_id"`
	Prompts           []string `json:"prompts"`
	Timeout           *float64 `json:"timeout"`
	ReturnOutput      *bool    `json:"return_output"`
	ConsumeWhitespace *bool    `json:"consume_post_prompt_whitespace"`
}

func (a WaitArgs) options() (engine.WaitOptions, error) {
	timeout := float64(defaultWaitTimeoutSec)
	if a.Timeout != nil {
		timeout = *a.Timeout
	}
	if timeout <= 0 {
		return engine.WaitOptions{}, fmt.Errorf("%w: timeout must be positive, got %v", engine.ErrInvalidArgument, timeout)
	}

	return engine.WaitOptions{
		Markers:           a.Prompts,
		Timeout:           time.Duration(timeout * float64(time.Second)),
		ReturnOutput:      boolOr(a.ReturnOutput, true),
		ConsumeWhitespace: boolOr(a.ConsumeWhitespace, true),
	}, nil
}

func (r *ToolRegistry) callWait(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a WaitArgs
	if err := parseArgs(args, &a); err != nil {
		return nil, err
	}
	opts, err := a.options()
	if err != nil {
		return nil, err
	}

	res, err := r.engine.Wait(ctx, a.SessionID, opts)
	if res == nil {
		// Avoid a typed nil inside the interface.
		return nil, err
	}
	return res, err
}

type SendArgs struct {
	SessionID     int64  `json:"session_id"`
	Command       string `json:"command"`
	CommandBase64 string `json:"command_base64"`
	SendNewline   *bool  `json:"send_newline"`
	Preflush      *bool  `json:"preflush"`
	Raw           bool   `json:"raw"`
}

// text returns the input to write, decoded from base64 and escapes as
// requested.
func (a SendArgs) text() (string, error) {
	text := a.Command
	if a.CommandBase64 != "" {
		if a.Command != "" {
			return "", fmt.Errorf("%w: command and command_base64 are mutually exclusive", engine.ErrInvalidArgument)
		}
		decoded, err := base64.StdEncoding.DecodeString(a.CommandBase64)
		if err != nil {
			return "", fmt.Errorf("%w: decode command_base64: %w", engine.ErrInvalidArgument, err)
		}
		text = string(decoded)
	}

	if a.Raw {
		decoded, err := escape.Decode(text)
		if err != nil {
			return "", fmt.Errorf("%w: %w", engine.ErrInvalidArgument, err)
		}
		text = decoded
	}
	return text, nil
}

type sendResult struct {
	SessionID int64 `json:"session_id"`
	BytesSent int   `json:"bytes_sent"`
}

func (r *ToolRegistry) callSend(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a SendArgs
	if err := parseArgs(args, &a); err != nil {
		return nil, err
	}
	text, err := a.text()
	if err != nil {
		return nil, err
	}

	opts := engine.SendOptions{
		Newline:  boolOr(a.SendNewline, true),
		Preflush: boolOr(a.Preflush, true),
	}
	if err := r.engine.Send(ctx, a.SessionID, text, opts); err != nil {
		return nil, err
	}

	sent := len(text)
	if opts.Newline {
		sent++
	}
	return sendResult{SessionID: a.SessionID, BytesSent: sent}, nil
}

type ExitArgs struct {
	SessionID int64 `json:"session_id"`
}

func (r *ToolRegistry) callExit(args json.RawMessage) (interface{}, error) {
	var a ExitArgs
	if err := parseArgs(args, &a); err != nil {
		return nil, err
	}
	return r.engine.Terminate(a.SessionID)
}

type activeSession struct {
	SessionID int64                `json:"session_id"`
	PID       int                  `json:"pid"`
	Status    engine.ProcessStatus `json:"status"`
}

func (r *ToolRegistry) callList() interface{} {
	sessions := r.engine.List()
	out := make(map[string]activeSession, len(sessions))
	for id, st := range sessions {
		out[fmt.Sprint(id)] = activeSession{SessionID: id, PID: st.PID, Status: st.Status}
	}
	return out
}
