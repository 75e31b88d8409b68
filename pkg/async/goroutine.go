package async

import (
	"context"
	"sync"
	"time"

	"github.com/platinummonkey/themeforge/pkg/observability"
)

// SafeGo executes a function in a goroutine with:
// - Context cancellation support
// - Panic recovery
// - Timeout enforcement (timeout <= 0 disables it)
// - Error logging through the context logger
//
// Use this instead of bare `go func()` to prevent goroutine leaks and crashes.
//
// Example:
//
//	SafeGo(ctx, 30*time.Second, "producer rerun", func(ctx context.Context) error {
//	    return producer.Rerun(ctx, theme)
//	})
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := withTimeout(parentCtx, timeout)
		defer cancel()

		logger := observability.FromContext(ctx)
		defer observability.RecoverPanic(logger, taskName)

		if err := fn(ctx); err != nil {
			// Caller can decide if this is critical or not
			logger.WithError(err).WithField("task", taskName).Error("background task failed")
		}
	}()
}

// SafeGoNoError is like SafeGo but for functions that don't return errors.
// Still provides panic recovery and context support.
func SafeGoNoError(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context)) {
	SafeGo(parentCtx, timeout, taskName, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

// Serial runs submitted tasks one at a time, in submission order, on a
// goroutine that exists only while the queue is non-empty. Submit never
// blocks. A panicking task is logged and the queue moves on.
type Serial struct {
	ctx      context.Context
	taskName string
	timeout  time.Duration

	mu      sync.Mutex
	queue   []func(context.Context) error
	running bool
	idle    chan struct{}
}

// NewSerial creates a serial queue. timeout bounds each task; <= 0 disables it.
func NewSerial(ctx context.Context, taskName string, timeout time.Duration) *Serial {
	return &Serial{ctx: ctx, taskName: taskName, timeout: timeout}
}

// Submit enqueues fn
func (s *Serial) Submit(fn func(context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue = append(s.queue, fn)
	if s.running {
		return
	}
	s.running = true
	s.idle = make(chan struct{})
	SafeGoNoError(s.ctx, 0, s.taskName, s.drain)
}

// Wait blocks until the queue is empty or ctx is done
func (s *Serial) Wait(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Serial) drain(ctx context.Context) {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			close(s.idle)
			s.mu.Unlock()
			return
		}
		fn := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.run(ctx, fn)
	}
}

func (s *Serial) run(parent context.Context, fn func(context.Context) error) {
	ctx, cancel := withTimeout(parent, s.timeout)
	defer cancel()

	logger := observability.FromContext(ctx)
	defer observability.RecoverPanic(logger, s.taskName)

	if err := fn(ctx); err != nil {
		logger.WithError(err).WithField("task", s.taskName).Error("queued task failed")
	}
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
