package deferred

import (
	"context"
	"sync"
	"time"

	"github.com/platinummonkey/themeforge/pkg/observability"
	"github.com/platinummonkey/themeforge/pkg/theme"
)

// Registry tracks live sessions by ID
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*LiveSession
	opts     []SessionOption
	metrics  *observability.Metrics
}

// NewRegistry creates a registry. opts apply to every session it creates.
func NewRegistry(metrics *observability.Metrics, opts ...SessionOption) *Registry {
	return &Registry{
		sessions: make(map[string]*LiveSession),
		opts:     append([]SessionOption{WithSessionMetrics(metrics)}, opts...),
		metrics:  metrics,
	}
}

// Create starts and tracks a new session
func (r *Registry) Create(ctx context.Context, initial *theme.Theme, opts ...SessionOption) *LiveSession {
	all := append(append([]SessionOption(nil), r.opts...), opts...)
	s := NewLiveSession(ctx, initial, all...)

	r.mu.Lock()
	r.sessions[s.ID()] = s
	n := len(r.sessions)
	r.mu.Unlock()

	r.setGauge(n)
	return s
}

// Get returns the session with id and marks it as used
func (r *Registry) Get(id string) (*LiveSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(time.Now())
	return s, nil
}

// Delete closes and forgets a session
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	r.setGauge(n)
	return nil
}

// Each calls fn for every live session
func (r *Registry) Each(fn func(*LiveSession)) {
	r.mu.RLock()
	sessions := make([]*LiveSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	for _, s := range sessions {
		fn(s)
	}
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SweepIdle closes and forgets sessions not looked up since now-ttl and
// returns how many were removed
func (r *Registry) SweepIdle(ttl time.Duration, now time.Time) int {
	cutoff := now.Add(-ttl).UnixNano()

	r.mu.Lock()
	var idle []*LiveSession
	for id, s := range r.sessions {
		if s.lastUsed.Load() < cutoff {
			idle = append(idle, s)
			delete(r.sessions, id)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	for _, s := range idle {
		s.Close()
		s.logger.Debug("closed idle session")
	}
	if len(idle) > 0 {
		r.setGauge(n)
	}
	return len(idle)
}

// StartSweeper runs SweepIdle every interval until ctx is done. A
// non-positive ttl disables it.
func (r *Registry) StartSweeper(ctx context.Context, ttl, interval time.Duration) {
	if ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = ttl
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				r.SweepIdle(ttl, now)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Close closes every session
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*LiveSession)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	r.setGauge(0)
}

func (r *Registry) setGauge(n int) {
	if r.metrics != nil {
		r.metrics.ActiveSessions.Set(float64(n))
	}
}
