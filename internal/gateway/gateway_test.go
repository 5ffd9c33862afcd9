package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsKind(t *testing.T) {
	unavailable := Unavailable("dial failed", errors.New("connection refused"))
	backend := Backend("403", "forbidden", nil)

	assert.True(t, IsKind(unavailable, KindUnavailable))
	assert.False(t, IsKind(unavailable, KindBackend))
	assert.True(t, IsKind(fmt.Errorf("list: %w", backend), KindBackend))
	assert.True(t, IsKind(context.DeadlineExceeded, KindUnavailable))
	assert.True(t, IsKind(fmt.Errorf("wrapped: %w", context.Canceled), KindUnavailable))
	assert.False(t, IsKind(errors.New("other"), KindUnavailable))
	assert.False(t, IsKind(nil, KindBackend))
}

func TestErrorString(t *testing.T) {
	err := Backend("409", "duplicate", nil)
	assert.Equal(t, "calendar backend [409]: duplicate", err.Error())

	cause := errors.New("timeout")
	err = Unavailable("list events", cause)
	assert.Equal(t, "calendar unavailable: list events: timeout", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestCodeAndMessage(t *testing.T) {
	code, msg := CodeAndMessage(fmt.Errorf("insert: %w", Backend("400", "Invalid start time", nil)))
	assert.Equal(t, "400", code)
	assert.Equal(t, "Invalid start time", msg)

	code, msg = CodeAndMessage(&Error{Kind: KindUnavailable, Cause: errors.New("eof")})
	assert.Empty(t, code)
	assert.Equal(t, "eof", msg)

	code, msg = CodeAndMessage(errors.New("plain"))
	assert.Empty(t, code)
	assert.Equal(t, "plain", msg)
}
