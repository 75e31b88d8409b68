package deferred

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/themeforge/pkg/observability"
	"github.com/platinummonkey/themeforge/pkg/theme"
)

func quietSession(t *testing.T, opts ...SessionOption) *LiveSession {
	t.Helper()
	opts = append([]SessionOption{WithSessionLogger(observability.NopLogger())}, opts...)
	s := NewLiveSession(context.Background(), nil, opts...)
	t.Cleanup(s.Close)
	return s
}

func waitSession(t *testing.T, s *LiveSession) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

func TestLiveSession_Defaults(t *testing.T) {
	s := quietSession(t)
	assert.NotEmpty(t, s.ID())
	assert.True(t, s.ActiveTheme().Equal(theme.Default()))
	assert.Empty(t, s.Listeners())
}

func TestLiveSession_RegistrationIsIdempotent(t *testing.T) {
	s := quietSession(t)

	s.RegisterThemeChangeListener("a", widgetDeps)
	s.RegisterThemeChangeListener("b", recordingDeps)
	s.RegisterThemeChangeListener("a", recordingDeps)

	assert.Equal(t, []string{"a", "b"}, s.Listeners())
}

func TestLiveSession_OrderedReruns(t *testing.T) {
	recordMu.Lock()
	recorded = nil
	recordMu.Unlock()
	recordMax.Store(0)

	var mu sync.Mutex
	var delivered []string
	s := quietSession(t, WithOnUpdate(func(u Update) {
		mu.Lock()
		delivered = append(delivered, u.Theme)
		mu.Unlock()
	}))
	s.RegisterThemeChangeListener("recorder", recordingDeps)

	presets := []string{"cosmo", "flatly", "lux", "minty", "pulse"}
	for _, name := range presets {
		require.NoError(t, s.SetTheme(theme.Default().WithPreset(name)))
	}
	waitSession(t, s)

	recordMu.Lock()
	defer recordMu.Unlock()
	assert.Equal(t, presets, recorded)
	assert.Equal(t, int32(1), recordMax.Load())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"cosmo@5", "flatly@5", "lux@5", "minty@5", "pulse@5"}, delivered)
	assert.Equal(t, "pulse", s.ActiveTheme().Preset())
}

func TestLiveSession_FailedRerunIsReported(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	s := quietSession(t, WithSessionMetrics(metrics))
	s.RegisterThemeChangeListener("failing", failingDeps)
	require.NoError(t, s.SetTheme(theme.Default().WithPreset("cyborg")))
	waitSession(t, s)

	updates := s.Updates()
	require.Len(t, updates, 1)
	assert.Error(t, updates[0].Err)
	assert.Equal(t, "compile failed", updates[0].Error)
	assert.Empty(t, s.Updates())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ProducerRerunsTotal.WithLabelValues("failure")))
}

func TestLiveSession_UpdatesKeepLatestPerProducer(t *testing.T) {
	s := quietSession(t)
	s.RegisterThemeChangeListener("widget", widgetDeps)
	s.RegisterThemeChangeListener("failing", failingDeps)

	for _, name := range []string{"cosmo", "flatly", "lux", "minty", "pulse"} {
		require.NoError(t, s.SetTheme(theme.Default().WithPreset(name)))
	}
	waitSession(t, s)

	updates := s.Updates()
	require.Len(t, updates, 2)
	byProducer := make(map[string]Update)
	for _, u := range updates {
		byProducer[u.ProducerID] = u
	}
	assert.Equal(t, "pulse@5", byProducer["widget"].Theme)
	assert.Equal(t, "pulse@5", byProducer["failing"].Theme)
	assert.Error(t, byProducer["failing"].Err)
}

func TestAppendLatest(t *testing.T) {
	var updates []Update
	updates = appendLatest(updates, Update{ProducerID: "a", Theme: "cosmo@5"})
	updates = appendLatest(updates, Update{ProducerID: "b", Theme: "cosmo@5"})
	updates = appendLatest(updates, Update{ProducerID: "a", Theme: "lux@5"})

	assert.Equal(t, []Update{
		{ProducerID: "b", Theme: "cosmo@5"},
		{ProducerID: "a", Theme: "lux@5"},
	}, updates)
}

func TestLiveSession_Closed(t *testing.T) {
	s := quietSession(t)
	s.Close()
	s.Close()

	assert.ErrorIs(t, s.SetTheme(theme.Default()), ErrSessionClosed)
	s.RegisterThemeChangeListener("late", widgetDeps)
	assert.Empty(t, s.Listeners())
}

func TestRegistry(t *testing.T) {
	promRegistry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(promRegistry)
	r := NewRegistry(metrics, WithSessionLogger(observability.NopLogger()))

	a := r.Create(context.Background(), nil)
	b := r.Create(context.Background(), theme.Default().WithPreset("lux"))
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.ActiveSessions))

	got, err := r.Get(b.ID())
	require.NoError(t, err)
	assert.Same(t, b, got)

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, r.Delete(a.ID()))
	assert.ErrorIs(t, r.Delete(a.ID()), ErrSessionNotFound)
	assert.ErrorIs(t, a.SetTheme(nil), ErrSessionClosed)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ActiveSessions))

	count := 0
	r.Each(func(*LiveSession) { count++ })
	assert.Equal(t, 1, count)

	r.Close()
	assert.Equal(t, 0, r.Len())
	assert.ErrorIs(t, b.SetTheme(nil), ErrSessionClosed)
}

func TestRegistry_SweepIdle(t *testing.T) {
	promRegistry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(promRegistry)
	r := NewRegistry(metrics, WithSessionLogger(observability.NopLogger()))
	t.Cleanup(r.Close)

	now := time.Now()
	stale := r.Create(context.Background(), nil)
	fresh := r.Create(context.Background(), nil)
	stale.touch(now.Add(-time.Hour))
	fresh.touch(now.Add(-time.Hour))

	// a lookup counts as use
	_, err := r.Get(fresh.ID())
	require.NoError(t, err)
	assert.False(t, fresh.LastUsed().Before(now))

	assert.Equal(t, 1, r.SweepIdle(time.Minute, time.Now()))
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ActiveSessions))

	_, err = r.Get(stale.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, stale.SetTheme(nil), ErrSessionClosed)
	assert.NoError(t, fresh.SetTheme(nil))

	assert.Equal(t, 0, r.SweepIdle(time.Minute, time.Now()))
}

func TestRegistry_StartSweeper(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRegistry(nil, WithSessionLogger(observability.NopLogger()))
	t.Cleanup(r.Close)

	r.StartSweeper(ctx, 0, time.Millisecond)
	kept := r.Create(context.Background(), nil)
	kept.touch(time.Now().Add(-time.Hour))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, r.Len())

	r.StartSweeper(ctx, 50*time.Millisecond, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return r.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestMemoTable(t *testing.T) {
	promRegistry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(promRegistry)
	table := NewMemoTable(0, 0, metrics)

	_, ok := table.Get("p", theme.Default())
	assert.False(t, ok)

	table.Set("p", theme.Default(), nil)
	_, ok = table.Get("p", theme.Default())
	assert.True(t, ok)
	_, ok = table.Get("q", theme.Default())
	assert.False(t, ok)
	assert.Equal(t, 1, table.Len())

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.MemoHitsTotal))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.MemoMissesTotal))

	table.Purge()
	assert.Equal(t, 0, table.Len())
}
