package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs_MatchesDirectKind(t *testing.T) {
	err := Validation("bad hash")
	assert.True(t, Is(err, KindValidation))
	assert.False(t, Is(err, KindRateLimited))
}

func TestIs_MatchesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("context: %w", TransientIO("timeout", errors.New("dial failed")))
	assert.True(t, Is(err, KindTransientIO))
}

func TestError_IncludesCauseWhenPresent(t *testing.T) {
	cause := errors.New("boom")
	err := FatalStartup("failed to connect", cause)
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, err.Error(), "failed to connect")
}

func TestError_OmitsCauseWhenAbsent(t *testing.T) {
	err := Validation("nodeId fails I2 format")
	assert.NotContains(t, err.Error(), "<nil>")
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := BurnMonitorInit("indexer unreachable", cause)
	var e *Error
	require := assert.New(t)
	require.True(errors.As(err, &e))
	require.Equal(cause, errors.Unwrap(e))
}
