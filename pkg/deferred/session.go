package deferred

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/themeforge/pkg/async"
	"github.com/platinummonkey/themeforge/pkg/bundle"
	"github.com/platinummonkey/themeforge/pkg/observability"
	"github.com/platinummonkey/themeforge/pkg/stylegen/config"
	"github.com/platinummonkey/themeforge/pkg/theme"
)

// Session is the host side of a live render
type Session interface {
	ID() string

	// ActiveTheme returns the theme currently in effect
	ActiveTheme() *theme.Theme

	// RegisterThemeChangeListener asks the session to call fn again whenever
	// the theme changes. It must not block and must be idempotent per id.
	RegisterThemeChangeListener(id string, fn ProducerFunc)
}

// Update is the result of re-running a producer after a theme change
type Update struct {
	SessionID    string              `json:"session_id"`
	ProducerID   string              `json:"producer_id"`
	Theme        string              `json:"theme"`
	Dependencies []bundle.Dependency `json:"dependencies,omitempty"`
	Err          error               `json:"-"`
	Error        string              `json:"error,omitempty"`
}

type listener struct {
	fn    ProducerFunc
	queue *async.Serial
}

// LiveSession is a reference Session. SetTheme re-runs every registered
// producer in the background. Runs of one producer never overlap and happen
// in SetTheme order; different producers run independently.
type LiveSession struct {
	id       string
	ctx      context.Context
	cancel   context.CancelFunc
	timeout  time.Duration
	onUpdate func(Update)
	logger   *observability.Logger
	metrics  *observability.Metrics

	// unix nanos of the last registry lookup
	lastUsed atomic.Int64

	mu        sync.RWMutex
	theme     *theme.Theme
	listeners map[string]*listener
	order     []string
	updates   []Update // latest per producer, oldest first
	closed    bool
}

// SessionOption configures a LiveSession
type SessionOption func(*LiveSession)

// WithOnUpdate delivers re-run results to fn. fn is called from the
// producer's queue goroutine.
func WithOnUpdate(fn func(Update)) SessionOption {
	return func(s *LiveSession) { s.onUpdate = fn }
}

// WithSessionLogger sets the logger
func WithSessionLogger(logger *observability.Logger) SessionOption {
	return func(s *LiveSession) { s.logger = logger }
}

// WithSessionMetrics records re-runs
func WithSessionMetrics(m *observability.Metrics) SessionOption {
	return func(s *LiveSession) { s.metrics = m }
}

// WithRerunTimeout bounds each re-run; <= 0 disables the bound
func WithRerunTimeout(d time.Duration) SessionOption {
	return func(s *LiveSession) { s.timeout = d }
}

// NewLiveSession starts a session with the initial theme (nil means default)
func NewLiveSession(ctx context.Context, initial *theme.Theme, opts ...SessionOption) *LiveSession {
	if initial == nil {
		initial = theme.Default()
	}
	s := &LiveSession{
		id:        uuid.New().String(),
		timeout:   config.DefaultCompileTimeout,
		theme:     initial,
		listeners: make(map[string]*listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.touch(time.Now())
	s.logger = observability.OrDefault(s.logger).WithField("session_id", s.id)

	ctx = observability.WithSessionID(ctx, s.id)
	ctx = observability.WithLogger(ctx, s.logger)
	s.ctx, s.cancel = context.WithCancel(ctx)
	return s
}

// ID returns the session ID
func (s *LiveSession) ID() string {
	return s.id
}

// LastUsed returns when the session was created or last looked up
func (s *LiveSession) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

func (s *LiveSession) touch(now time.Time) {
	s.lastUsed.Store(now.UnixNano())
}

// ActiveTheme returns the current theme
func (s *LiveSession) ActiveTheme() *theme.Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

// RegisterThemeChangeListener registers fn under id. Later registrations with
// the same id are ignored.
func (s *LiveSession) RegisterThemeChangeListener(id string, fn ProducerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, ok := s.listeners[id]; ok {
		return
	}
	s.listeners[id] = &listener{
		fn:    fn,
		queue: async.NewSerial(s.ctx, "producer rerun "+id, s.timeout),
	}
	s.order = append(s.order, id)
	s.logger.WithField("producer", id).Debug("registered theme change listener")
}

// Listeners returns the registered producer IDs in registration order
func (s *LiveSession) Listeners() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// SetTheme switches the active theme and schedules every registered producer
// to run against it. It does not wait for the runs.
func (s *LiveSession) SetTheme(t *theme.Theme) error {
	if t == nil {
		t = theme.Default()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.theme = t
	pending := make([]string, len(s.order))
	copy(pending, s.order)
	targets := make([]*listener, len(s.order))
	for i, id := range s.order {
		targets[i] = s.listeners[id]
	}
	s.mu.Unlock()

	s.logger.WithFields(map[string]interface{}{
		"theme":     t.String(),
		"listeners": len(targets),
	}).Info("theme changed")

	for i, l := range targets {
		id, l := pending[i], l
		l.queue.Submit(func(ctx context.Context) error {
			s.rerun(ctx, id, l.fn, t)
			return nil
		})
	}
	return nil
}

// rerun calls the unwrapped producer, bypassing the memo table
func (s *LiveSession) rerun(ctx context.Context, id string, fn ProducerFunc, t *theme.Theme) {
	deps, err := fn(ctx, t)
	s.metrics.RecordRerun(err)

	update := Update{
		SessionID:    s.id,
		ProducerID:   id,
		Theme:        t.String(),
		Dependencies: deps,
		Err:          err,
	}
	if err != nil {
		update.Error = err.Error()
		s.logger.WithError(err).WithField("producer", id).Warn("producer rerun failed")
	}

	s.mu.Lock()
	s.updates = appendLatest(s.updates, update)
	s.mu.Unlock()

	if s.onUpdate != nil {
		s.onUpdate(update)
	}
}

// appendLatest adds u, dropping any older result from the same producer, so
// an unpolled session holds at most one update per listener
func appendLatest(updates []Update, u Update) []Update {
	for i := range updates {
		if updates[i].ProducerID == u.ProducerID {
			updates = append(updates[:i], updates[i+1:]...)
			break
		}
	}
	return append(updates, u)
}

// Updates returns and clears the re-run results collected since the last
// call. Only the newest result of each producer is kept between calls.
func (s *LiveSession) Updates() []Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.updates
	s.updates = nil
	return out
}

// Wait blocks until every scheduled re-run has finished
func (s *LiveSession) Wait(ctx context.Context) error {
	s.mu.RLock()
	queues := make([]*async.Serial, 0, len(s.listeners))
	for _, l := range s.listeners {
		queues = append(queues, l.queue)
	}
	s.mu.RUnlock()

	for _, q := range queues {
		if err := q.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close cancels in-flight re-runs and rejects further theme changes
func (s *LiveSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
}
