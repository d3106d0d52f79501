package acp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

const protocolVersion = 1

// Options configures one Session's restrictions and I/O roots.
type Options struct {
	WorkingDirectory string
	ReadOnly         bool
	AllowedWritePaths []string // empty means unrestricted
	AgentCommand     string
}

// Session owns one exchange with one agent subprocess: the handshake, the
// accumulated message buffer used for sigil extraction, and every tool
// callback the agent can invoke against this client (spec.md §4.6).
type Session struct {
	opts Options
	log  *slog.Logger

	transport *Transport
	sessionID string

	mu            sync.Mutex
	textBuffer    strings.Builder
	modifiedFiles []string
	toolCallSeen  map[string]bool

	terminals *terminalRegistry
}

// NewSession spawns the configured agent command and performs the
// initialize + session/new handshake.
func NewSession(ctx context.Context, opts Options, log *slog.Logger) (*Session, error) {
	s := &Session{
		opts:         opts,
		log:          log,
		toolCallSeen: map[string]bool{},
		terminals:    newTerminalRegistry(),
	}

	t, err := Spawn(ctx, opts.AgentCommand, s.handleRequest, s.handleNotification, log)
	if err != nil {
		return nil, fmt.Errorf("spawn agent: %w", err)
	}
	s.transport = t

	var initResult InitializeResult
	err = t.Call(ctx, "initialize", InitializeParams{
		ProtocolVersion: protocolVersion,
		ClientCapabilities: ClientCapabilities{
			FS:       FSCapabilities{ReadTextFile: true, WriteTextFile: true},
			Terminal: true,
		},
	}, &initResult)
	if err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("initialize handshake: %w", err)
	}

	var newResult SessionNewResult
	err = t.Call(ctx, "session/new", SessionNewParams{WorkingDirectory: opts.WorkingDirectory}, &newResult)
	if err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("session/new: %w", err)
	}
	s.sessionID = newResult.SessionID
	return s, nil
}

// RunAuthenticate performs initialize then the optional authenticate step
// (spec.md §4.6 steps 1-2) and tears the process back down without ever
// calling session/new. Only the explicit `auth` command path uses this;
// ordinary iterations go straight from initialize to session/new via
// NewSession.
func RunAuthenticate(ctx context.Context, agentCommand, methodID string, log *slog.Logger) (bool, error) {
	noop := func(string, json.RawMessage) {}
	noopReq := func(context.Context, string, json.RawMessage) (any, error) { return nil, fmt.Errorf("unexpected request during authenticate") }

	t, err := Spawn(ctx, agentCommand, noopReq, noop, log)
	if err != nil {
		return false, fmt.Errorf("spawn agent: %w", err)
	}
	defer func() { _ = t.Close() }()

	var initResult InitializeResult
	if err := t.Call(ctx, "initialize", InitializeParams{
		ProtocolVersion:    protocolVersion,
		ClientCapabilities: ClientCapabilities{FS: FSCapabilities{ReadTextFile: true, WriteTextFile: true}, Terminal: true},
	}, &initResult); err != nil {
		return false, fmt.Errorf("initialize handshake: %w", err)
	}

	var authResult AuthenticateResult
	if err := t.Call(ctx, "authenticate", AuthenticateParams{MethodID: methodID}, &authResult); err != nil {
		return false, fmt.Errorf("authenticate: %w", err)
	}
	return authResult.Authenticated, nil
}

// Prompt sends one turn of text content and blocks for the stop reason,
// accumulating all AgentMessageChunk text into the session's buffer.
func (s *Session) Prompt(ctx context.Context, text string) (StopReason, error) {
	var result PromptResult
	err := s.transport.Call(ctx, "prompt", PromptParams{
		SessionID: s.sessionID,
		Content:   []ContentBlock{{Type: "text", Text: text}},
	}, &result)
	if err != nil {
		return StopOther, fmt.Errorf("prompt: %w", err)
	}
	return result.StopReason, nil
}

// AccumulatedText returns everything streamed into the session buffer so
// far, for sigil extraction.
func (s *Session) AccumulatedText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.textBuffer.String()
}

// ModifiedFiles returns project-relative paths written during this session.
func (s *Session) ModifiedFiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.modifiedFiles...)
}

// Cancel sends a session/cancel notification, per spec.md §5's
// cancellation protocol.
func (s *Session) Cancel() error {
	s.transport.Interrupt()
	return s.transport.Notify("session/cancel", map[string]string{"session_id": s.sessionID})
}

// Close kills all terminal children and tears down the subprocess
// (spec.md §4.6 "Teardown").
func (s *Session) Close() error {
	s.terminals.killAll()
	return s.transport.Close()
}

func (s *Session) handleNotification(method string, params json.RawMessage) {
	if method != "session/update" {
		return
	}
	var upd SessionUpdateParams
	if err := json.Unmarshal(params, &upd); err != nil {
		s.log.Warn("acp: malformed session/update", "error", err)
		return
	}
	switch upd.Kind {
	case UpdateAgentMessageChunk:
		s.mu.Lock()
		s.textBuffer.WriteString(upd.Chunk)
		s.mu.Unlock()
	case UpdateToolCall, UpdateToolCallUpdate:
		if upd.ToolCall == nil || upd.ToolCall.RawInput == nil {
			return
		}
		s.mu.Lock()
		already := s.toolCallSeen[upd.ToolCall.ID]
		s.toolCallSeen[upd.ToolCall.ID] = true
		s.mu.Unlock()
		if already {
			return
		}
		s.log.Debug("acp: tool call", "id", upd.ToolCall.ID, "title", upd.ToolCall.Title)
	default:
		// Plan and any other update kind is silently accepted per spec.md §6.2.
	}
}

func (s *Session) handleRequest(ctx context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case "fs/read_text_file":
		return s.readTextFile(params)
	case "fs/write_text_file":
		return s.writeTextFile(params)
	case "terminal/create_terminal":
		return s.terminals.create(params)
	case "terminal/output":
		return s.terminals.output(params)
	case "terminal/wait_for_exit":
		return s.terminals.waitForExit(ctx, params)
	case "terminal/kill":
		return s.terminals.kill(params)
	case "terminal/release":
		return s.terminals.release(params)
	case "session/request_permission":
		return s.requestPermission(params)
	default:
		return nil, fmt.Errorf("unsupported method: %s", method)
	}
}

