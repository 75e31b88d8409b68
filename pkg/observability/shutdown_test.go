package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownManager_RunsStepsInOrder(t *testing.T) {
	sm := NewShutdownManager(NopLogger(), nil, time.Second)

	var ran []string
	for _, name := range []string{"sessions", "cache", "otel"} {
		name := name
		sm.RegisterShutdownFunc(name, func(context.Context) error {
			ran = append(ran, name)
			return nil
		})
	}

	require.NoError(t, sm.Shutdown(context.Background()))
	assert.Equal(t, []string{"sessions", "cache", "otel"}, ran)

	// second call does nothing
	require.NoError(t, sm.Shutdown(context.Background()))
	assert.Len(t, ran, 3)
}

func TestShutdownManager_CollectsErrors(t *testing.T) {
	sm := NewShutdownManager(NopLogger(), nil, time.Second)
	flushErr := errors.New("flush failed")
	ranAfter := false
	sm.RegisterShutdownFunc("otel", func(context.Context) error { return flushErr })
	sm.RegisterShutdownFunc("cache", func(context.Context) error { ranAfter = true; return nil })

	err := sm.Shutdown(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, flushErr)
	assert.Contains(t, err.Error(), "otel: flush failed")
	assert.True(t, ranAfter)
}

func TestShutdownManager_SkipsAfterTimeout(t *testing.T) {
	sm := NewShutdownManager(NopLogger(), nil, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	skipped := true
	sm.RegisterShutdownFunc("slow", func(context.Context) error { cancel(); return nil })
	sm.RegisterShutdownFunc("late", func(context.Context) error { skipped = false; return nil })

	err := sm.Shutdown(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, skipped)
}

func TestShutdownManager_WaitForShutdownOnContext(t *testing.T) {
	sm := NewShutdownManager(NopLogger(), nil, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, sm.WaitForShutdown(ctx))
}
