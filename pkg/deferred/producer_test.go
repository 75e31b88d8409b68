package deferred

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/themeforge/pkg/bundle"
	"github.com/platinummonkey/themeforge/pkg/observability"
	"github.com/platinummonkey/themeforge/pkg/theme"
)

var widgetCalls atomic.Int32

func widgetDeps(ctx context.Context, t *theme.Theme) ([]bundle.Dependency, error) {
	widgetCalls.Add(1)
	return []bundle.Dependency{{
		Name:    "widget",
		Version: "1.0",
		Meta:    map[string]string{"theme": t.String()},
	}}, nil
}

var failingCalls atomic.Int32

func failingDeps(ctx context.Context, t *theme.Theme) ([]bundle.Dependency, error) {
	failingCalls.Add(1)
	return nil, errors.New("compile failed")
}

var (
	recordMu   sync.Mutex
	recorded   []string
	recordBusy atomic.Int32
	recordMax  atomic.Int32
)

func recordingDeps(ctx context.Context, t *theme.Theme) ([]bundle.Dependency, error) {
	n := recordBusy.Add(1)
	defer recordBusy.Add(-1)
	if n > recordMax.Load() {
		recordMax.Store(n)
	}
	time.Sleep(5 * time.Millisecond)

	recordMu.Lock()
	recorded = append(recorded, t.Preset())
	recordMu.Unlock()
	return []bundle.Dependency{{Name: "recorder", Version: "1.0"}}, nil
}

type widget struct{}

func (widget) deps(ctx context.Context, t *theme.Theme) ([]bundle.Dependency, error) {
	return nil, nil
}

func newTable() *MemoTable {
	return NewMemoTable(time.Minute, 100, nil)
}

func TestNew_RequiresNamedFunction(t *testing.T) {
	_, err := New(func(ctx context.Context, t *theme.Theme) ([]bundle.Dependency, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrProducerMustBeNamed)

	_, err = New(widget{}.deps)
	assert.ErrorIs(t, err, ErrProducerMustBeNamed)

	_, err = New(nil)
	assert.ErrorIs(t, err, ErrNilProducer)

	assert.Panics(t, func() {
		MustNew(func(ctx context.Context, t *theme.Theme) ([]bundle.Dependency, error) { return nil, nil })
	})
}

func TestNew_IdentityIsFunctionName(t *testing.T) {
	a, err := New(widgetDeps)
	require.NoError(t, err)
	b, err := New(widgetDeps, WithoutMemo())
	require.NoError(t, err)

	assert.Equal(t, a.ID(), b.ID())
	assert.Contains(t, a.ID(), "deferred.widgetDeps")
}

func TestRender_Standalone(t *testing.T) {
	widgetCalls.Store(0)
	p, err := New(widgetDeps, WithMemoTable(newTable()))
	require.NoError(t, err)

	deps, err := p.Render(context.Background(), Env{})
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, "5", deps[0].Meta["theme"])

	flatly, err := theme.Resolve("flatly@4")
	require.NoError(t, err)
	deps, err = p.Render(context.Background(), Env{Theme: flatly})
	require.NoError(t, err)
	assert.Equal(t, "flatly@4", deps[0].Meta["theme"])
	assert.Equal(t, int32(2), widgetCalls.Load())
}

func TestRender_MemoizedByContent(t *testing.T) {
	widgetCalls.Store(0)
	p, err := New(widgetDeps, WithMemoTable(newTable()))
	require.NoError(t, err)
	ctx := context.Background()

	a := theme.Default().AddDefaults(theme.Var{Name: "primary", Value: "red"})
	b := theme.Default().AddLayer(theme.Layer{Defaults: []theme.Var{{Name: "primary", Value: "red"}}})

	for i := 0; i < 10; i++ {
		_, err := p.Render(ctx, Env{Theme: a})
		require.NoError(t, err)
	}
	_, err = p.Render(ctx, Env{Theme: b})
	require.NoError(t, err)
	assert.Equal(t, int32(1), widgetCalls.Load())

	// Returned slices are copies
	deps, err := p.Render(ctx, Env{Theme: a})
	require.NoError(t, err)
	deps[0].Meta["theme"] = "mutated"
	again, err := p.Render(ctx, Env{Theme: a})
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", again[0].Meta["theme"])
}

func TestRender_MemoExpiry(t *testing.T) {
	widgetCalls.Store(0)
	p, err := New(widgetDeps, WithMemoTable(NewMemoTable(50*time.Millisecond, 10, nil)))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = p.Render(ctx, Env{})
	require.NoError(t, err)
	_, err = p.Render(ctx, Env{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), widgetCalls.Load())

	time.Sleep(100 * time.Millisecond)
	_, err = p.Render(ctx, Env{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), widgetCalls.Load())
}

func TestRender_WithoutMemo(t *testing.T) {
	widgetCalls.Store(0)
	p, err := New(widgetDeps, WithoutMemo())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := p.Render(context.Background(), Env{})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), widgetCalls.Load())
}

func TestRender_ErrorsNotMemoized(t *testing.T) {
	failingCalls.Store(0)
	p, err := New(failingDeps, WithMemoTable(newTable()))
	require.NoError(t, err)

	_, err = p.Render(context.Background(), Env{})
	assert.Error(t, err)
	_, err = p.Render(context.Background(), Env{})
	assert.Error(t, err)
	assert.Equal(t, int32(2), failingCalls.Load())
}

func TestRender_LiveSession(t *testing.T) {
	widgetCalls.Store(0)
	table := newTable()
	p, err := New(widgetDeps, WithMemoTable(table), WithLogger(observability.NopLogger()))
	require.NoError(t, err)

	ctx := context.Background()
	initial, err := theme.Resolve("darkly")
	require.NoError(t, err)
	session := NewLiveSession(ctx, initial, WithSessionLogger(observability.NopLogger()))
	defer session.Close()

	// Standalone and live renders share the memo table
	_, err = p.Render(ctx, Env{Theme: initial})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		deps, err := p.Render(ctx, Env{Session: session})
		require.NoError(t, err)
		assert.Equal(t, "darkly@5", deps[0].Meta["theme"])
	}
	assert.Equal(t, int32(1), widgetCalls.Load())
	assert.Equal(t, []string{p.ID()}, session.Listeners())

	// Re-runs go straight to the function, not through the memo table
	require.NoError(t, session.SetTheme(initial))
	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, session.Wait(waitCtx))
	assert.Equal(t, int32(2), widgetCalls.Load())

	updates := session.Updates()
	require.Len(t, updates, 1)
	assert.Equal(t, p.ID(), updates[0].ProducerID)
	assert.Equal(t, session.ID(), updates[0].SessionID)
	assert.NoError(t, updates[0].Err)
	assert.Len(t, updates[0].Dependencies, 1)
}

func TestNewNamed(t *testing.T) {
	w := widget{}
	p, err := NewNamed("widget/deps", w.deps)
	require.NoError(t, err)
	assert.Equal(t, "widget/deps", p.ID())

	_, err = NewNamed("", w.deps)
	assert.ErrorIs(t, err, ErrProducerMustBeNamed)
	_, err = NewNamed("x", nil)
	assert.ErrorIs(t, err, ErrNilProducer)
}
