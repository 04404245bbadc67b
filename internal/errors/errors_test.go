package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCauseAndFormatsMessage(t *testing.T) {
	cause := errors.New("disk full")
	err := FileSystemError(cause, "read repo.py")

	assert.Equal(t, ErrorTypeFileSystem, err.Type)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "read repo.py")
}

func TestWrapOfNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeStoreError, SeverityHigh, "x"))
}

func TestInvalidScopeIsFatal(t *testing.T) {
	err := InvalidScopeError("mutation attempted with repo_id = None")
	assert.True(t, err.IsFatal())
	assert.True(t, IsFatal(err))
	assert.Equal(t, SeverityCritical, GetSeverity(err))
	assert.Equal(t, ErrorTypeInvalidScope, GetType(err))
}

func TestCycleDetectedIsInformationalNotFatal(t *testing.T) {
	err := CycleDetectedInfo("factorial calls itself")
	assert.False(t, err.IsFatal())
	assert.Equal(t, ErrorTypeCycleDetected, err.Type)
	assert.Equal(t, SeverityLow, err.Severity)
}

func TestIsMatchesByTypeNotMessage(t *testing.T) {
	a := ParseError("file a.py failed to parse")
	b := ParseError("file b.py failed to parse")
	assert.True(t, a.Is(b), "two errors of the same type must match regardless of message")

	c := LspTimeoutError("timed out")
	assert.False(t, a.Is(c))
}

func TestWithContextAccumulatesKeys(t *testing.T) {
	err := InternalError("unexpected state").WithContext("file", "a.py").WithContext("line", 42)
	require.Len(t, err.Context, 2)
	assert.Equal(t, "a.py", err.Context["file"])
	assert.Equal(t, 42, err.Context["line"])
}

func TestHelpersOnNonBlarErrorsReturnSafeDefaults(t *testing.T) {
	plain := errors.New("boom")
	assert.False(t, IsFatal(plain))
	assert.Equal(t, SeverityMedium, GetSeverity(plain))
	assert.Equal(t, ErrorTypeInternal, GetType(plain))

	assert.False(t, IsFatal(nil))
	assert.Equal(t, SeverityLow, GetSeverity(nil))
	assert.Equal(t, ErrorTypeInternal, GetType(nil))
}

func TestDetailedStringIncludesTypeSeverityAndCause(t *testing.T) {
	err := DatabaseError(errors.New("connection refused"), "upsert batch")
	s := err.DetailedString()
	assert.Contains(t, s, "DATABASE")
	assert.Contains(t, s, "upsert batch")
	assert.Contains(t, s, "connection refused")
}
