package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/schovi/interactive/internal/engine"
)

type fakeEngine struct {
	mu        sync.Mutex
	started   []engine.StartOptions
	waits     []engine.WaitOptions
	sent      []string
	sendOpts  []engine.SendOptions
	waitRes   *engine.WaitResult
	waitErr   error
	exited    []int64
	sessions  map[int64]engine.SessionStatus
	failStart error
}

func (f *fakeEngine) Start(_ context.Context, opts engine.StartOptions) (*engine.StartResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failStart != nil {
		return nil, f.failStart
	}
	f.started = append(f.started, opts)
	return &engine.StartResult{ID: int64(len(f.started)), PID: 4242}, nil
}

func (f *fakeEngine) Wait(_ context.Context, id int64, opts engine.WaitOptions) (*engine.WaitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id != 1 {
		return nil, fmt.Errorf("%w: %d", engine.ErrUnknownSession, id)
	}
	f.waits = append(f.waits, opts)
	return f.waitRes, f.waitErr
}

func (f *fakeEngine) Send(_ context.Context, id int64, text string, opts engine.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id != 1 {
		return fmt.Errorf("%w: %d", engine.ErrUnknownSession, id)
	}
	f.sent = append(f.sent, text)
	f.sendOpts = append(f.sendOpts, opts)
	return nil
}

func (f *fakeEngine) Terminate(id int64) (*engine.TerminateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id != 1 {
		return nil, fmt.Errorf("%w: %d", engine.ErrUnknownSession, id)
	}
	f.exited = append(f.exited, id)
	return &engine.TerminateResult{ID: id}, nil
}

func (f *fakeEngine) List() map[int64]engine.SessionStatus {
	return f.sessions
}

func call(t *testing.T, r *ToolRegistry, name, args string) *CallToolResult {
	t.Helper()
	return r.Call(context.Background(), name, json.RawMessage(args))
}

func decodeToolError(t *testing.T, res *CallToolResult) ToolError {
	t.Helper()
	if !res.IsError {
		t.Fatalf("expected tool error, got %q", res.Content[0].Text)
	}
	var te ToolError
	if err := json.Unmarshal([]byte(res.Content[0].Text), &te); err != nil {
		t.Fatalf("decode tool error: %v", err)
	}
	return te
}

func TestStartSessionDefaults(t *testing.T) {
	fe := &fakeEngine{}
	r := NewToolRegistry(fe)

	res := call(t, r, "start_session", `{"command": "python3", "args": ["-i"]}`)
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.Content[0].Text)
	}
	if !fe.started[0].LogFile {
		t.Error("log_file should default to true")
	}
	if fe.started[0].Args[0] != "-i" {
		t.Errorf("args = %v, want [-i]", fe.started[0].Args)
	}

	var out engine.StartResult
	if err := json.Unmarshal([]byte(res.Content[0].Text), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.ID != 1 || out.PID != 4242 {
		t.Errorf("result = %+v", out)
	}

	call(t, r, "start_session", `{"command": "node", "log_file": false}`)
	if fe.started[1].LogFile {
		t.Error("explicit log_file=false ignored")
	}
}

func TestStartSessionCommandNotFound(t *testing.T) {
	fe := &fakeEngine{failStart: fmt.Errorf("%w: %q", engine.ErrCommandNotFound, "nope")}
	r := NewToolRegistry(fe)

	te := decodeToolError(t, call(t, r, "start_session", `{"command": "nope"}`))
	if te.Error != engine.KindCommandNotFound {
		t.Errorf("kind = %q, want %q", te.Error, engine.KindCommandNotFound)
	}
}

func TestWaitArgsDefaults(t *testing.T) {
	tests := []struct {
		name        string
		args        string
		wantTimeout time.Duration
		wantOutput  bool
		wantConsume bool
		wantErr     bool
	}{
		{"defaults", `{"session_id": 1, "prompts": [">>>"]}`, 5 * time.Second, true, true, false},
		{"fractional timeout", `{"session_id": 1, "prompts": [">>>"], "timeout": 0.5}`, 500 * time.Millisecond, true, true, false},
		{"explicit false", `{"session_id": 1, "prompts": [">>>"], "return_output": false, "consume_post_prompt_whitespace": false}`, 5 * time.Second, false, false, false},
		{"zero timeout", `{"session_id": 1, "prompts": [">>>"], "timeout": 0}`, 0, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a WaitArgs
			if err := json.Unmarshal([]byte(tt.args), &a); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			opts, err := a.options()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if opts.Timeout != tt.wantTimeout {
				t.Errorf("timeout = %s, want %s", opts.Timeout, tt.wantTimeout)
			}
			if opts.ReturnOutput != tt.wantOutput {
				t.Errorf("return_output = %v, want %v", opts.ReturnOutput, tt.wantOutput)
			}
			if opts.ConsumeWhitespace != tt.wantConsume {
				t.Errorf("consume = %v, want %v", opts.ConsumeWhitespace, tt.wantConsume)
			}
		})
	}
}

func TestWaitReportsPartialResultOnFailure(t *testing.T) {
	fe := &fakeEngine{
		waitRes: &engine.WaitResult{Status: engine.StatusTimeoutWithBytes, Output: "bye\r\n"},
		waitErr: fmt.Errorf("%w: session 1: EIO", engine.ErrIOFailure),
	}
	r := NewToolRegistry(fe)

	te := decodeToolError(t, call(t, r, "wait_for_output_or_prompt", `{"session_id": 1, "prompts": [">>>"]}`))
	if te.Error != engine.KindIOFailure {
		t.Errorf("kind = %q, want %q", te.Error, engine.KindIOFailure)
	}
	if te.Result == nil || te.Result.Output != "bye\r\n" {
		t.Errorf("partial result = %+v", te.Result)
	}
}

func TestWaitUnknownSession(t *testing.T) {
	r := NewToolRegistry(&fakeEngine{})

	te := decodeToolError(t, call(t, r, "wait_for_output_or_prompt", `{"session_id": 9, "prompts": [">>>"]}`))
	if te.Error != engine.KindUnknownSession {
		t.Errorf("kind = %q, want %q", te.Error, engine.KindUnknownSession)
	}
	if te.Result != nil {
		t.Errorf("unexpected partial result %+v", te.Result)
	}
}

func TestSendArgsText(t *testing.T) {
	tests := []struct {
		name    string
		args    SendArgs
		want    string
		wantErr string
	}{
		{
			name: "plain command",
			args: SendArgs{Command: `print("a\nb")`},
			want: `print("a\nb")`,
		},
		{
			name: "raw interprets escapes",
			args: SendArgs{Command: `\x03`, Raw: true},
			want: "\x03",
		},
		{
			name: "base64",
			args: SendArgs{CommandBase64: base64.StdEncoding.EncodeToString([]byte("SELECT 'O''Brien';"))},
			want: "SELECT 'O''Brien';",
		},
		{
			name:    "both inputs",
			args:    SendArgs{Command: "a", CommandBase64: "YQ=="},
			wantErr: "mutually exclusive",
		},
		{
			name:    "bad base64",
			args:    SendArgs{CommandBase64: "!!"},
			wantErr: "decode command_base64",
		},
		{
			name:    "bad escape",
			args:    SendArgs{Command: `\x0`, Raw: true},
			wantErr: "escape",
		},
		{
			name: "empty command is allowed",
			args: SendArgs{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.args.text()
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %q", tt.wantErr, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSendCommandDefaults(t *testing.T) {
	fe := &fakeEngine{}
	r := NewToolRegistry(fe)

	res := call(t, r, "send_command", `{"session_id": 1, "command": "1+1"}`)
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.Content[0].Text)
	}
	if !fe.sendOpts[0].Newline || !fe.sendOpts[0].Preflush {
		t.Errorf("options = %+v, want newline and preflush", fe.sendOpts[0])
	}

	call(t, r, "send_command", `{"session_id": 1, "command": "\\^C", "raw": true, "send_newline": false, "preflush": false}`)
	if fe.sent[1] != "\x03" {
		t.Errorf("sent %q, want ctrl-c", fe.sent[1])
	}
	if fe.sendOpts[1].Newline || fe.sendOpts[1].Preflush {
		t.Errorf("options = %+v, want both disabled", fe.sendOpts[1])
	}
}

func TestExitAndList(t *testing.T) {
	fe := &fakeEngine{sessions: map[int64]engine.SessionStatus{
		1: {PID: 100, Status: engine.StatusRunning},
		2: {PID: 200, Status: engine.StatusZombie},
	}}
	r := NewToolRegistry(fe)

	res := call(t, r, "get_active_sessions", `{}`)
	var listed map[string]activeSession
	if err := json.Unmarshal([]byte(res.Content[0].Text), &listed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if listed["2"].Status != engine.StatusZombie || listed["1"].PID != 100 {
		t.Errorf("listed = %+v", listed)
	}

	if res := call(t, r, "exit_session", `{"session_id": 1}`); res.IsError {
		t.Fatalf("exit: %s", res.Content[0].Text)
	}
	te := decodeToolError(t, call(t, r, "exit_session", `{"session_id": 7}`))
	if te.Error != engine.KindUnknownSession {
		t.Errorf("kind = %q", te.Error)
	}
}

func TestUnknownToolAndBadArgs(t *testing.T) {
	r := NewToolRegistry(&fakeEngine{})

	if te := decodeToolError(t, call(t, r, "resize", `{}`)); te.Error != engine.KindInvalidArgument {
		t.Errorf("unknown tool kind = %q", te.Error)
	}
	if te := decodeToolError(t, call(t, r, "exit_session", `{"session_id": "one"}`)); te.Error != engine.KindInvalidArgument {
		t.Errorf("bad args kind = %q", te.Error)
	}
	if res := r.Call(context.Background(), "get_active_sessions", nil); res.IsError {
		t.Errorf("missing arguments should be treated as empty: %s", res.Content[0].Text)
	}
}

func TestToolDefsMatchCall(t *testing.T) {
	r := NewToolRegistry(&fakeEngine{})
	for _, def := range r.List() {
		res := call(t, r, def.Name, `{}`)
		if res.IsError {
			var te ToolError
			json.Unmarshal([]byte(res.Content[0].Text), &te)
			if strings.Contains(te.Message, "unknown tool") {
				t.Errorf("tool %q is listed but not dispatched", def.Name)
			}
		}
	}
}
