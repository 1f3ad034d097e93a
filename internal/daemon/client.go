package daemon

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"time"

	"github.com/schovi/interactive/internal/engine"
)

// RemoteError is a failure reported by the daemon. It matches the engine's
// sentinel errors with errors.Is.
type RemoteError struct {
	Kind    string
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

func (e *RemoteError) Unwrap() error {
	return engine.ErrorOfKind(e.Kind)
}

type Client struct {
	socketPath string
}

func NewClient() *Client {
	return &Client{socketPath: SocketPath()}
}

func NewClientWithSocketPath(path string) *Client {
	return &Client{socketPath: path}
}

// EnsureDaemon starts a background daemon from the current executable
// unless one already answers on the socket.
func (c *Client) EnsureDaemon() error {
	if c.Ping() {
		return nil
	}

	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("get executable path: %w", err)
	}

	cmd := exec.Command(exePath, "daemon")
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	go cmd.Wait()

	deadline := time.Now().Add(DaemonStartTimeout)
	for time.Now().Before(deadline) {
		time.Sleep(DaemonPollInterval)
		if c.Ping() {
			return nil
		}
	}

	return fmt.Errorf("daemon failed to start")
}

func (c *Client) Ping() bool {
	resp, err := c.send(Request{Action: ActionPing}, ClientDeadline)
	return err == nil && resp.Success
}

func (c *Client) Start(command string, args []string, logFile bool) (*engine.StartResult, error) {
	resp, err := c.call(Request{
		Action:  ActionStart,
		Command: command,
		Args:    args,
		LogFile: logFile,
	}, ClientDeadline)
	if err != nil {
		return nil, err
	}

	var res engine.StartResult
	if err := decodeData(resp, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

type WaitOptions struct {
	Prompts           []string
	Timeout           time.Duration
	ReturnOutput      bool
	ConsumeWhitespace bool
	HeadLines         int
	TailLines         int
}

// Wait returns the partial result together with the error when the daemon
// reports both.
func (c *Client) Wait(id int64, opts WaitOptions) (*engine.WaitResult, error) {
	resp, err := c.send(Request{
		Action:            ActionWait,
		SessionID:         id,
		Prompts:           opts.Prompts,
		TimeoutSec:        opts.Timeout.Seconds(),
		ReturnOutput:      opts.ReturnOutput,
		ConsumeWhitespace: opts.ConsumeWhitespace,
		HeadLines:         opts.HeadLines,
		TailLines:         opts.TailLines,
	}, opts.Timeout+ClientDeadline)
	if err != nil {
		return nil, err
	}

	var res *engine.WaitResult
	if resp.Data != nil {
		res = &engine.WaitResult{}
		if err := decodeData(resp, res); err != nil {
			return nil, err
		}
	}
	if !resp.Success {
		return res, &RemoteError{Kind: resp.Kind, Message: resp.Error}
	}
	return res, nil
}

func (c *Client) Send(id int64, input string, newline, preflush bool) error {
	_, err := c.call(Request{
		Action:    ActionSend,
		SessionID: id,
		Input:     input,
		Newline:   newline,
		Preflush:  preflush,
	}, ClientDeadline)
	return err
}

func (c *Client) Exit(id int64) (*engine.TerminateResult, error) {
	resp, err := c.call(Request{Action: ActionExit, SessionID: id}, ClientDeadline)
	if err != nil {
		return nil, err
	}

	var res engine.TerminateResult
	if err := decodeData(resp, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) List() (map[int64]engine.SessionStatus, error) {
	resp, err := c.call(Request{Action: ActionList}, ClientDeadline)
	if err != nil {
		return nil, err
	}

	sessions := make(map[int64]engine.SessionStatus)
	if resp.Data == nil {
		return sessions, nil
	}
	if err := decodeData(resp, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *Client) Info(id int64) (*engine.SessionInfo, error) {
	resp, err := c.call(Request{Action: ActionInfo, SessionID: id}, ClientDeadline)
	if err != nil {
		return nil, err
	}

	var info engine.SessionInfo
	if err := decodeData(resp, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) InfoAll() ([]engine.SessionInfo, error) {
	resp, err := c.call(Request{Action: ActionInfo}, ClientDeadline)
	if err != nil {
		return nil, err
	}

	var infos []engine.SessionInfo
	if resp.Data == nil {
		return infos, nil
	}
	if err := decodeData(resp, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// call sends req and turns an unsuccessful response into a RemoteError.
func (c *Client) call(req Request, deadline time.Duration) (*Response, error) {
	resp, err := c.send(req, deadline)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &RemoteError{Kind: resp.Kind, Message: resp.Error}
	}
	return resp, nil
}

func (c *Client) send(req Request, deadline time.Duration) (*Response, error) {
	conn, err := net.Dial("unix", c.socketPath)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(deadline))

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, err
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

func decodeData(resp *Response, out interface{}) error {
	if resp.Data == nil {
		return fmt.Errorf("response has no data")
	}
	data, err := json.Marshal(resp.Data)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
