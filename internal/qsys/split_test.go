package qsys

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mbrerrors "github.com/standardbeagle/mbrgrep/internal/errors"
)

func TestSplit(t *testing.T) {
	got, err := Split("LIB1, LIB2 ,LIB3")
	require.NoError(t, err)
	assert.Equal(t, []string{"LIB1", "LIB2", "LIB3"}, got)
}

func TestSplitKeepsDuplicatesAndDropsBlanks(t *testing.T) {
	got, err := Split(" ACME/QRPGLESRC ,, ACME/QRPGLESRC , ")
	require.NoError(t, err)
	assert.Equal(t, []string{"ACME/QRPGLESRC", "ACME/QRPGLESRC"}, got)
}

func TestSplitEmpty(t *testing.T) {
	for _, raw := range []string{"", "   ", ",, ,"} {
		_, err := Split(raw)
		require.Error(t, err)
		assert.True(t, errors.Is(err, mbrerrors.ErrInvalidRequest))
	}
}

func TestSplitAll(t *testing.T) {
	got, err := SplitAll([]string{"ACME, BETA", "", "GAMMA/QCLSRC"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ACME", "BETA", "GAMMA/QCLSRC"}, got)

	_, err = SplitAll([]string{" ", ","})
	assert.True(t, errors.Is(err, mbrerrors.ErrInvalidRequest))

	_, err = SplitAll(nil)
	assert.True(t, errors.Is(err, mbrerrors.ErrInvalidRequest))
}
