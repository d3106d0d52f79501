package acp

import (
	"encoding/json"
	"fmt"
)

// requestPermission implements spec.md §4.6's auto-response policy:
// read-only sessions reject write-class tool calls; otherwise the first
// AllowOnce option is selected, falling back to AllowAlways.
func (s *Session) requestPermission(raw json.RawMessage) (any, error) {
	var p RequestPermissionParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("invalid request_permission params: %w", err)
	}

	if s.opts.ReadOnly && p.ToolCall.Kind.isWriteClass() {
		if opt := firstOfKind(p.Options, PermissionReject); opt != nil {
			return RequestPermissionResult{OptionID: opt.ID}, nil
		}
		return RequestPermissionResult{Cancelled: true}, nil
	}

	if opt := firstOfKind(p.Options, PermissionAllowOnce); opt != nil {
		return RequestPermissionResult{OptionID: opt.ID}, nil
	}
	if opt := firstOfKind(p.Options, PermissionAllowAlways); opt != nil {
		return RequestPermissionResult{OptionID: opt.ID}, nil
	}
	return nil, fmt.Errorf("request_permission: no allow option offered")
}

func firstOfKind(options []PermissionOption, kind PermissionOptionKind) *PermissionOption {
	for i := range options {
		if options[i].Kind == kind {
			return &options[i]
		}
	}
	return nil
}
