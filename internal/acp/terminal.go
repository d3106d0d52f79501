package acp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"github.com/google/uuid"
)

// ringBufferCap is the per-stream cap before oldest bytes are dropped
// (spec.md §4.6 "capped at 1 MiB").
const ringBufferCap = 1 << 20

type terminal struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout ringBuffer
	stderr ringBuffer
	exited chan struct{}
	exitCode int
}

type ringBuffer struct {
	buf bytes.Buffer
}

func (r *ringBuffer) write(p []byte) {
	r.buf.Write(p)
	if over := r.buf.Len() - ringBufferCap; over > 0 {
		r.buf.Next(over)
	}
}

func (r *ringBuffer) drain() string {
	s := r.buf.String()
	r.buf.Reset()
	return s
}

type terminalRegistry struct {
	mu    sync.Mutex
	byID  map[string]*terminal
}

func newTerminalRegistry() *terminalRegistry {
	return &terminalRegistry{byID: map[string]*terminal{}}
}

func (tr *terminalRegistry) create(raw json.RawMessage) (any, error) {
	var p CreateTerminalParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("invalid create_terminal params: %w", err)
	}
	if p.Command == "" {
		return nil, fmt.Errorf("empty terminal command")
	}

	cmd := exec.Command(p.Command, p.Args...)
	t := &terminal{cmd: cmd, exited: make(chan struct{})}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("terminal stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("terminal stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start terminal command %q: %w", p.Command, err)
	}

	id := uuid.NewString()

	go drainInto(stdout, t, &t.stdout)
	go drainInto(stderr, t, &t.stderr)
	go func() {
		err := cmd.Wait()
		t.mu.Lock()
		if exitErr, ok := err.(*exec.ExitError); ok {
			t.exitCode = exitErr.ExitCode()
		} else if err == nil {
			t.exitCode = 0
		} else {
			t.exitCode = -1
		}
		t.mu.Unlock()
		close(t.exited)
	}()

	tr.mu.Lock()
	tr.byID[id] = t
	tr.mu.Unlock()

	return CreateTerminalResult{TerminalID: id}, nil
}

func drainInto(r interface{ Read([]byte) (int, error) }, t *terminal, target *ringBuffer) {
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			t.mu.Lock()
			target.write(buf[:n])
			t.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

func (tr *terminalRegistry) get(raw json.RawMessage) (*terminal, string, error) {
	var p TerminalIDParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, "", fmt.Errorf("invalid terminal id params: %w", err)
	}
	tr.mu.Lock()
	t, ok := tr.byID[p.TerminalID]
	tr.mu.Unlock()
	if !ok {
		return nil, p.TerminalID, fmt.Errorf("unknown terminal id: %s", p.TerminalID)
	}
	return t, p.TerminalID, nil
}

func (tr *terminalRegistry) output(raw json.RawMessage) (any, error) {
	t, _, err := tr.get(raw)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return TerminalOutputResult{Stdout: t.stdout.drain(), Stderr: t.stderr.drain()}, nil
}

func (tr *terminalRegistry) waitForExit(ctx context.Context, raw json.RawMessage) (any, error) {
	t, _, err := tr.get(raw)
	if err != nil {
		return nil, err
	}
	select {
	case <-t.exited:
		t.mu.Lock()
		defer t.mu.Unlock()
		return WaitForExitResult{ExitCode: t.exitCode}, nil
	case <-ctx.Done():
		return WaitForExitResult{ExitCode: -1}, nil
	}
}

func (tr *terminalRegistry) kill(raw json.RawMessage) (any, error) {
	t, _, err := tr.get(raw)
	if err != nil {
		return nil, err
	}
	if t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
	}
	return struct{}{}, nil
}

func (tr *terminalRegistry) release(raw json.RawMessage) (any, error) {
	t, id, err := tr.get(raw)
	if err != nil {
		return nil, err
	}
	if t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
	}
	tr.mu.Lock()
	delete(tr.byID, id)
	tr.mu.Unlock()
	return struct{}{}, nil
}

// killAll terminates every live terminal child; used on session teardown.
func (tr *terminalRegistry) killAll() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for _, t := range tr.byID {
		if t.cmd.Process != nil {
			_ = t.cmd.Process.Kill()
		}
	}
}
