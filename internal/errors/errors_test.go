package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchError(t *testing.T) {
	underlying := errors.New("exit status 255")
	err := Wrap(KindConnectionLost, "ACME/QRPGLESRC", underlying)

	assert.Equal(t, KindConnectionLost, err.Kind)
	assert.Equal(t, "ACME/QRPGLESRC", err.Pattern)
	assert.True(t, errors.Is(err, underlying), "should unwrap to underlying error")

	expectedMsg := `connection_lost for pattern "ACME/QRPGLESRC": exit status 255`
	assert.Equal(t, expectedMsg, err.Error())
}

func TestSearchErrorWithoutPattern(t *testing.T) {
	err := New(KindInvalidRequest, "", "search term cannot be empty")
	assert.Equal(t, "invalid_request: search term cannot be empty", err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestSentinelMatching(t *testing.T) {
	err := Newf(KindPermissionDenied, "SECRET", "grep: %s: Permission denied", "/QSYS.LIB/SECRET.LIB")
	wrapped := fmt.Errorf("pattern failed: %w", err)

	assert.True(t, errors.Is(wrapped, ErrPermissionDenied))
	assert.False(t, errors.Is(wrapped, ErrResourceNotFound))
	assert.Equal(t, KindPermissionDenied, KindOf(wrapped))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestIsValidation(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindInvalidRequest, true},
		{KindInvalidPattern, true},
		{KindInvalidPath, true},
		{KindPermissionDenied, false},
		{KindToolFailure, false},
		{KindCancelled, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidation(New(tt.kind, "", "x")))
		})
	}
}

func TestConfigError(t *testing.T) {
	underlying := errors.New("must be between 1 and 32")
	err := NewConfigError("max_parallel_searches", "0", underlying)

	assert.True(t, errors.Is(err, underlying))
	assert.Equal(t, "config error for field max_parallel_searches (value 0): must be between 1 and 32", err.Error())
}

func TestMultiError(t *testing.T) {
	err1 := errors.New("error 1")
	err2 := errors.New("error 2")

	multi := NewMultiError([]error{err1, nil, err2})
	require.Len(t, multi.Errors, 2, "nil errors should be filtered")
	assert.True(t, errors.Is(multi, err1))
	assert.True(t, errors.Is(multi, err2))
	assert.Contains(t, multi.Error(), "2 errors")

	single := NewMultiError([]error{err1})
	assert.Equal(t, "error 1", single.Error())

	empty := NewMultiError(nil)
	assert.Equal(t, "no errors", empty.Error())
	assert.NoError(t, empty.ErrorOrNil())
	assert.Error(t, multi.ErrorOrNil())
}

func TestTimestamp(t *testing.T) {
	before := time.Now()
	err := New(KindToolFailure, "ACME", "boom")
	after := time.Now()

	assert.False(t, err.Timestamp.Before(before))
	assert.False(t, err.Timestamp.After(after))
}
