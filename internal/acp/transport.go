package acp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// maxLineSize bounds one JSON-RPC line; agent messages can be large.
const maxLineSize = 16 * 1024 * 1024

// terminateGracePeriod is how long Close waits for the agent to exit after
// SIGTERM before escalating to SIGKILL.
const terminateGracePeriod = 3 * time.Second

// RequestHandler answers an inbound request from the agent (a tool call).
// It returns the JSON-encodable result or an error.
type RequestHandler func(ctx context.Context, method string, params json.RawMessage) (any, error)

// NotificationHandler observes an inbound notification (session/update).
type NotificationHandler func(method string, params json.RawMessage)

// Transport owns one spawned agent subprocess and the single reader
// goroutine that drives the wire protocol. Per spec.md §4.6/§5, exactly one
// goroutine reads and dispatches; everything else communicates through
// channels rather than shared mutable state, which is this package's Go
// rendering of the spec's single-threaded-cooperative-executor model.
type Transport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	writeMu sync.Mutex

	nextID  int64
	pending sync.Map // int64 -> chan *response

	onRequest      RequestHandler
	onNotification NotificationHandler

	log *slog.Logger

	readDone chan struct{}
	readErr  error

	interrupted atomic.Bool
}

// Spawn splits command on whitespace (strings.Fields), starts the
// subprocess with piped stdio (stderr inherited for diagnostics), and begins
// the reader loop. Quotes and backslash escapes in command are not
// interpreted: an argument containing spaces cannot be passed.
func Spawn(ctx context.Context, command string, onRequest RequestHandler, onNotification NotificationHandler, log *slog.Logger) (*Transport, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty agent command")
	}

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start agent command %q: %w", command, err)
	}

	t := &Transport{
		cmd:            cmd,
		stdin:          stdin,
		stdout:         stdout,
		onRequest:      onRequest,
		onNotification: onNotification,
		log:            log,
		readDone:       make(chan struct{}),
	}
	go t.readLoop(ctx)
	return t, nil
}

func (t *Transport) readLoop(ctx context.Context) {
	defer close(t.readDone)
	scanner := bufio.NewScanner(t.stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var env envelope
		if err := json.Unmarshal(line, &env); err != nil {
			t.log.Warn("acp: malformed line from agent", "error", err)
			continue
		}

		switch {
		case env.Method != "" && env.ID != nil:
			t.dispatchInboundRequest(ctx, *env.ID, env.Method, env.Params)
		case env.Method != "":
			if t.onNotification != nil {
				t.onNotification(env.Method, env.Params)
			}
		case env.ID != nil:
			t.dispatchResponse(*env.ID, &response{ID: *env.ID, Result: env.Result, Error: env.Error})
		}
	}
	t.readErr = scanner.Err()
	// Unblock any Call still waiting: a closed channel yields a nil response.
	t.pending.Range(func(k, v any) bool {
		t.pending.Delete(k)
		close(v.(chan *response))
		return true
	})
}

func (t *Transport) dispatchInboundRequest(ctx context.Context, id int64, method string, params json.RawMessage) {
	result, err := t.callHandler(ctx, method, params)
	resp := response{JSONRPC: "2.0", ID: id}
	if err != nil {
		resp.Error = &rpcError{Code: errCodeInternal, Message: err.Error()}
	} else {
		raw, marshalErr := json.Marshal(result)
		if marshalErr != nil {
			resp.Error = &rpcError{Code: errCodeInternal, Message: marshalErr.Error()}
		} else {
			resp.Result = raw
		}
	}
	if writeErr := t.writeLine(resp); writeErr != nil {
		t.log.Warn("acp: failed to write response", "method", method, "error", writeErr)
	}
}

func (t *Transport) callHandler(ctx context.Context, method string, params json.RawMessage) (any, error) {
	if t.onRequest == nil {
		return nil, fmt.Errorf("no handler registered for %s", method)
	}
	return t.onRequest(ctx, method, params)
}

func (t *Transport) dispatchResponse(id int64, resp *response) {
	v, ok := t.pending.LoadAndDelete(id)
	if !ok {
		t.log.Warn("acp: response for unknown request id", "id", id)
		return
	}
	ch := v.(chan *response)
	ch <- resp
	close(ch)
}

// Call sends a JSON-RPC request and blocks for its response.
func (t *Transport) Call(ctx context.Context, method string, params any, result any) error {
	id := atomic.AddInt64(&t.nextID, 1)
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	req := request{JSONRPC: "2.0", ID: &id, Method: method, Params: raw}

	ch := make(chan *response, 1)
	t.pending.Store(id, ch)

	if err := t.writeLine(req); err != nil {
		t.pending.Delete(id)
		return fmt.Errorf("write request %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		t.pending.Delete(id)
		return ctx.Err()
	case resp := <-ch:
		if resp == nil {
			return fmt.Errorf("acp: transport closed waiting for %s response", method)
		}
		if resp.Error != nil {
			return fmt.Errorf("acp: %s error %d: %s", method, resp.Error.Code, resp.Error.Message)
		}
		if result == nil {
			return nil
		}
		return json.Unmarshal(resp.Result, result)
	}
}

// Notify sends a one-way notification (no response expected).
func (t *Transport) Notify(method string, params any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	return t.writeLine(request{JSONRPC: "2.0", Method: method, Params: raw})
}

func (t *Transport) writeLine(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.stdin.Write(raw); err != nil {
		return err
	}
	_, err = t.stdin.Write([]byte("\n"))
	return err
}

// Interrupt marks the transport as interrupted; callers check Interrupted
// between iteration steps (spec.md §5 cancellation).
func (t *Transport) Interrupt() { t.interrupted.Store(true) }

// Interrupted reports whether Interrupt has been called.
func (t *Transport) Interrupted() bool { return t.interrupted.Load() }

// Close closes stdin (signaling EOF to the agent), sends SIGTERM, waits for
// the reader loop to finish, then waits up to terminateGracePeriod for the
// process to exit and sends SIGKILL if it has not.
func (t *Transport) Close() error {
	_ = t.stdin.Close()
	if t.cmd.Process != nil {
		_ = t.cmd.Process.Signal(terminateSignal())
	}
	<-t.readDone
	if t.cmd.Process != nil {
		done := make(chan error, 1)
		go func() { done <- t.cmd.Wait() }()
		select {
		case <-done:
		case <-time.After(terminateGracePeriod):
			_ = t.cmd.Process.Kill()
			<-done
		}
	}
	return t.readErr
}
