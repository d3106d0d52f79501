// Package output renders command results as a stable JSON envelope so the
// CLI can be driven by another agent as easily as by a human.
package output

import (
	"encoding/json"
	"errors"
	"io"
	"os"
)

// recoverableError mirrors models.RecoverableError locally to avoid an
// import cycle between output and store/models consumers. errors.As
// matches any implementor structurally without coupling to that package.
type recoverableError interface {
	error
	ErrorCode() string
	Context() map[string]string
	SuggestedAction() string
}

// Response is the envelope every ralph command emits on stdout.
type Response struct {
	SchemaVersion   string            `json:"schema_version"`
	Success         bool              `json:"success"`
	Data            interface{}       `json:"data,omitempty"`
	Error           string            `json:"error,omitempty"`
	ErrorCode       string            `json:"error_code,omitempty"`
	ErrorContext    map[string]string `json:"error_context,omitempty"`
	SuggestedAction string            `json:"suggested_action,omitempty"`
}

// Config controls where and how responses are written.
type Config struct {
	Writer io.Writer
	Pretty bool
}

// DefaultConfig writes compact JSON to stdout unless RALPH_PRETTY_JSON is set.
func DefaultConfig() Config {
	pretty := os.Getenv("RALPH_PRETTY_JSON") == "1" || os.Getenv("RALPH_PRETTY_JSON") == "true"
	return Config{Writer: os.Stdout, Pretty: pretty}
}

// Success wraps a successful result.
func Success(data interface{}) Response {
	return Response{SchemaVersion: "v1", Success: true, Data: data}
}

// Error wraps a failure, enriching with structured context when err
// implements recoverableError.
func Error(err error) Response {
	resp := Response{SchemaVersion: "v1", Success: false, Error: err.Error()}
	var re recoverableError
	if errors.As(err, &re) {
		resp.ErrorCode = re.ErrorCode()
		resp.ErrorContext = re.Context()
		resp.SuggestedAction = re.SuggestedAction()
	}
	return resp
}

// PrintWith encodes v as JSON to cfg.Writer.
func PrintWith(cfg Config, v interface{}) error {
	enc := json.NewEncoder(cfg.Writer)
	if cfg.Pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// Print encodes v to stdout using DefaultConfig.
func Print(v interface{}) error {
	return PrintWith(DefaultConfig(), v)
}

// PrintSuccess prints a Success envelope.
func PrintSuccess(data interface{}) error {
	return Print(Success(data))
}

// PrintError prints an Error envelope.
func PrintError(err error) error {
	return Print(Error(err))
}
