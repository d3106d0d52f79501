package commands

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCmdErr_NilReturnsNil(t *testing.T) {
	require.NoError(t, cmdErr(nil))
}

func TestCmdErr_WrapsAsPrintedError(t *testing.T) {
	err := cmdErr(errors.New("boom"))
	require.Error(t, err)

	var pe printedError
	require.True(t, errors.As(err, &pe))
	require.Equal(t, "error already printed", pe.Error())
}
