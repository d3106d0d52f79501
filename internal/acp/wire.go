// Package acp implements the agent wire protocol: a JSON-RPC 2.0 dialect
// spoken over a spawned agent subprocess's stdio, in which the core is the
// client and the agent is the server, but either side may issue requests to
// the other (spec.md §4.6, §6.2).
package acp

import "encoding/json"

// StopReason is the terminal outcome of one prompt call.
type StopReason string

// Stop reason values.
const (
	StopEndTurn   StopReason = "end_turn"
	StopMaxTokens StopReason = "max_tokens"
	StopRefusal   StopReason = "refusal"
	StopCancelled StopReason = "cancelled"
	StopOther     StopReason = "other"
)

// UpdateKind discriminates session/update notification payloads.
type UpdateKind string

// Update kind values. The client accepts any value it does not recognize
// and silently ignores it (spec.md §6.2).
const (
	UpdateAgentMessageChunk UpdateKind = "agent_message_chunk"
	UpdateAgentThoughtChunk UpdateKind = "agent_thought_chunk"
	UpdateToolCall          UpdateKind = "tool_call"
	UpdateToolCallUpdate    UpdateKind = "tool_call_update"
	UpdatePlan              UpdateKind = "plan"
)

// ToolCallKind classifies what a tool call does, driving permission policy.
type ToolCallKind string

// Tool call kinds. Read and Other never require write-class permission;
// Edit/Delete/Move are refused outright in read-only mode.
const (
	ToolKindRead   ToolCallKind = "read"
	ToolKindEdit   ToolCallKind = "edit"
	ToolKindDelete ToolCallKind = "delete"
	ToolKindMove   ToolCallKind = "move"
	ToolKindOther  ToolCallKind = "other"
)

func (k ToolCallKind) isWriteClass() bool {
	return k == ToolKindEdit || k == ToolKindDelete || k == ToolKindMove
}

// request is an outbound JSON-RPC request or inbound request from the peer.
type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// response is a JSON-RPC response, success or error.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// JSON-RPC 2.0 standard error codes used for our own responses.
const (
	errCodeInvalidParams = -32602
	errCodeInternal      = -32603
)

// envelope is used to sniff an incoming line: requests/notifications carry
// a method, responses carry an id with no method.
type envelope struct {
	ID     *int64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

// ClientCapabilities advertises what tool callbacks the client offers.
type ClientCapabilities struct {
	FS        FSCapabilities   `json:"fs"`
	Terminal  bool             `json:"terminal"`
}

// FSCapabilities advertises file read/write support.
type FSCapabilities struct {
	ReadTextFile  bool `json:"read_text_file"`
	WriteTextFile bool `json:"write_text_file"`
}

// InitializeParams is sent client -> server as the handshake's first call.
type InitializeParams struct {
	ProtocolVersion    int                `json:"protocol_version"`
	ClientCapabilities ClientCapabilities `json:"client_capabilities"`
}

// InitializeResult is the server's handshake response.
type InitializeResult struct {
	ProtocolVersion int    `json:"protocol_version"`
	ServerName      string `json:"server_name"`
}

// AuthenticateParams is sent client -> server on an explicit auth command
// path, before any session/new call.
type AuthenticateParams struct {
	MethodID string `json:"method_id,omitempty"`
}

// AuthenticateResult is the server's response to authenticate.
type AuthenticateResult struct {
	Authenticated bool `json:"authenticated"`
}

// SessionNewParams requests a new session rooted at WorkingDirectory.
type SessionNewParams struct {
	WorkingDirectory string `json:"working_directory"`
}

// SessionNewResult carries the opaque session id.
type SessionNewResult struct {
	SessionID string `json:"session_id"`
}

// ContentBlock is one piece of prompt content. Only text blocks are
// produced by this client.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// PromptParams drives one turn of the conversation.
type PromptParams struct {
	SessionID string         `json:"session_id"`
	Content   []ContentBlock `json:"content"`
}

// PromptResult carries the turn's terminal stop reason.
type PromptResult struct {
	StopReason StopReason `json:"stop_reason"`
}

// SessionUpdateParams is the notification payload server -> client.
type SessionUpdateParams struct {
	SessionID string          `json:"session_id"`
	Kind      UpdateKind      `json:"kind"`
	Chunk     string          `json:"chunk,omitempty"`
	ToolCall  *ToolCallUpdate `json:"tool_call,omitempty"`
}

// ToolCallUpdate describes a ToolCall/ToolCallUpdate notification.
type ToolCallUpdate struct {
	ID       string       `json:"id"`
	Kind     ToolCallKind `json:"kind,omitempty"`
	Title    string       `json:"title,omitempty"`
	RawInput json.RawMessage `json:"raw_input,omitempty"`
}

// ReadTextFileParams requests a (possibly sliced) file read.
type ReadTextFileParams struct {
	Path       string `json:"path"`
	LineOffset int    `json:"line_offset,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// ReadTextFileResult carries the file content.
type ReadTextFileResult struct {
	Content string `json:"content"`
}

// WriteTextFileParams requests a file write.
type WriteTextFileParams struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// CreateTerminalParams requests a spawned shell command.
type CreateTerminalParams struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// CreateTerminalResult carries the opaque terminal id.
type CreateTerminalResult struct {
	TerminalID string `json:"terminal_id"`
}

// TerminalIDParams is the shared params shape for terminal operations keyed
// only by id.
type TerminalIDParams struct {
	TerminalID string `json:"terminal_id"`
}

// TerminalOutputResult carries drained stdout/stderr.
type TerminalOutputResult struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// WaitForExitResult carries the terminal's exit code, or -1 if unavailable.
type WaitForExitResult struct {
	ExitCode int `json:"exit_code"`
}

// PermissionOptionKind classifies one offered permission option.
type PermissionOptionKind string

// Permission option kinds.
const (
	PermissionAllowOnce   PermissionOptionKind = "allow_once"
	PermissionAllowAlways PermissionOptionKind = "allow_always"
	PermissionReject      PermissionOptionKind = "reject"
)

// PermissionOption is one choice offered by request_permission.
type PermissionOption struct {
	ID   string                `json:"id"`
	Kind PermissionOptionKind  `json:"kind"`
}

// RequestPermissionParams asks the client to authorize a tool call.
type RequestPermissionParams struct {
	ToolCall ToolCallUpdate     `json:"tool_call"`
	Options  []PermissionOption `json:"options"`
}

// RequestPermissionResult carries the chosen option id, or Cancelled if
// none of the offered options was acceptable.
type RequestPermissionResult struct {
	OptionID  string `json:"option_id,omitempty"`
	Cancelled bool   `json:"cancelled,omitempty"`
}
