package acp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (s *Session) readTextFile(raw json.RawMessage) (any, error) {
	var p ReadTextFileParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("invalid read_text_file params: %w", err)
	}
	path := resolveProjectPath(s.opts.WorkingDirectory, p.Path)
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is client-controlled by design, this is the agent's fs tool
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p.Path, err)
	}
	content := string(data)
	if p.LineOffset > 0 || p.Limit > 0 {
		content = sliceLines(content, p.LineOffset, p.Limit)
	}
	return ReadTextFileResult{Content: content}, nil
}

func sliceLines(content string, offset, limit int) string {
	lines := strings.Split(content, "\n")
	start := 0
	if offset > 0 {
		start = offset - 1
	}
	if start >= len(lines) {
		return ""
	}
	end := len(lines)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return strings.Join(lines[start:end], "\n")
}

func (s *Session) writeTextFile(raw json.RawMessage) (any, error) {
	var p WriteTextFileParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("invalid write_text_file params: %w", err)
	}

	path := resolveProjectPath(s.opts.WorkingDirectory, p.Path)
	if err := s.checkWriteAllowed(path); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create parent dirs for %s: %w", p.Path, err)
	}
	if err := os.WriteFile(path, []byte(p.Content), 0o600); err != nil {
		return nil, fmt.Errorf("write %s: %w", p.Path, err)
	}

	rel := projectRelative(s.opts.WorkingDirectory, path)
	s.mu.Lock()
	s.modifiedFiles = append(s.modifiedFiles, rel)
	s.mu.Unlock()

	return struct{}{}, nil
}

// checkWriteAllowed enforces spec.md §4.6's write-path restriction: when a
// non-empty allow-list is configured, the canonical requested path must
// equal the canonical form of some allowed path.
func (s *Session) checkWriteAllowed(path string) error {
	if len(s.opts.AllowedWritePaths) == 0 {
		return nil
	}
	canonicalRequested, err := canonicalize(path)
	if err != nil {
		return fmt.Errorf("canonicalize requested path: %w", err)
	}
	for _, allowed := range s.opts.AllowedWritePaths {
		allowedAbs := resolveProjectPath(s.opts.WorkingDirectory, allowed)
		canonicalAllowed, err := canonicalize(allowedAbs)
		if err != nil {
			continue
		}
		if canonicalRequested == canonicalAllowed {
			return nil
		}
	}
	return &WritePathDeniedError{Path: path}
}

// WritePathDeniedError is returned when a write falls outside the
// configured allow-list.
type WritePathDeniedError struct {
	Path string
}

func (e *WritePathDeniedError) Error() string {
	return fmt.Sprintf("write to %s is not in the allowed write paths", e.Path)
}
func (e *WritePathDeniedError) ErrorCode() string            { return "WRITE_PATH_DENIED" }
func (e *WritePathDeniedError) Context() map[string]string   { return map[string]string{"path": e.Path} }
func (e *WritePathDeniedError) SuggestedAction() string {
	return "add this exact path to allowed_write_paths (entries match single files, not directories)"
}

func resolveProjectPath(workingDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workingDir, path)
}

func projectRelative(workingDir, path string) string {
	rel, err := filepath.Rel(workingDir, path)
	if err != nil {
		return path
	}
	return rel
}

// canonicalize resolves symlinks when the path exists; falls back to
// filepath.Abs + Clean for paths that do not exist yet (a write target).
func canonicalize(path string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}
