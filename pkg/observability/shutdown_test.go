package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShutdownManager(t *testing.T) {
	var order []int
	sm := NewShutdownManager(NopLogger(), nil, 0)
	sm.Register(func(ctx context.Context) error { order = append(order, 1); return nil })
	sm.Register(func(ctx context.Context) error { order = append(order, 2); return errors.New("close failed") })
	sm.Register(func(ctx context.Context) error { order = append(order, 3); return nil })

	err := sm.Shutdown()
	assert.EqualError(t, err, "close failed")
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestPanicError(t *testing.T) {
	assert.Nil(t, PanicError(nil))
	assert.EqualError(t, PanicError("boom"), "panic: boom")

	cause := errors.New("cause")
	assert.ErrorIs(t, PanicError(cause), cause)
}
