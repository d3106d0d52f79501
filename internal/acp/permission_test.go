package acp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestPermission_ReadOnlyRejectsWriteClass(t *testing.T) {
	s := &Session{opts: Options{ReadOnly: true}}
	params := RequestPermissionParams{
		ToolCall: ToolCallUpdate{ID: "tc-1", Kind: ToolKindEdit},
		Options: []PermissionOption{
			{ID: "opt-allow", Kind: PermissionAllowOnce},
			{ID: "opt-reject", Kind: PermissionReject},
		},
	}
	raw, err := json.Marshal(params)
	require.NoError(t, err)

	result, err := s.requestPermission(raw)
	require.NoError(t, err)
	res := result.(RequestPermissionResult)
	assert.Equal(t, "opt-reject", res.OptionID)
	assert.False(t, res.Cancelled)
}

func TestRequestPermission_ReadOnlyCancelsWhenNoRejectOffered(t *testing.T) {
	s := &Session{opts: Options{ReadOnly: true}}
	params := RequestPermissionParams{
		ToolCall: ToolCallUpdate{ID: "tc-2", Kind: ToolKindDelete},
		Options:  []PermissionOption{{ID: "opt-allow", Kind: PermissionAllowOnce}},
	}
	raw, err := json.Marshal(params)
	require.NoError(t, err)

	result, err := s.requestPermission(raw)
	require.NoError(t, err)
	res := result.(RequestPermissionResult)
	assert.True(t, res.Cancelled)
}

func TestRequestPermission_WriteAllowedPicksAllowOnce(t *testing.T) {
	s := &Session{opts: Options{ReadOnly: false}}
	params := RequestPermissionParams{
		ToolCall: ToolCallUpdate{ID: "tc-3", Kind: ToolKindEdit},
		Options: []PermissionOption{
			{ID: "opt-always", Kind: PermissionAllowAlways},
			{ID: "opt-once", Kind: PermissionAllowOnce},
		},
	}
	raw, err := json.Marshal(params)
	require.NoError(t, err)

	result, err := s.requestPermission(raw)
	require.NoError(t, err)
	res := result.(RequestPermissionResult)
	assert.Equal(t, "opt-once", res.OptionID)
}

func TestRequestPermission_ReadKindAlwaysApprovedEvenReadOnly(t *testing.T) {
	s := &Session{opts: Options{ReadOnly: true}}
	params := RequestPermissionParams{
		ToolCall: ToolCallUpdate{ID: "tc-4", Kind: ToolKindRead},
		Options:  []PermissionOption{{ID: "opt-once", Kind: PermissionAllowOnce}},
	}
	raw, err := json.Marshal(params)
	require.NoError(t, err)

	result, err := s.requestPermission(raw)
	require.NoError(t, err)
	res := result.(RequestPermissionResult)
	assert.Equal(t, "opt-once", res.OptionID)
}
