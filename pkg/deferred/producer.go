// Package deferred evaluates theme-dependent dependencies at render time.
//
// A Producer wraps a named function from a theme to the dependency records it
// needs, usually a component stylesheet compiled against the theme. Rendering
// calls the function with the theme in effect:
//
//   - standalone (Env.Session == nil): Env.Theme, or the default theme
//   - live: the session's active theme; the unwrapped function is also
//     registered with the session so a later theme change re-runs it
//
// Results are memoized by (producer, theme content hash) for a few seconds so
// a page rendering the same widget many times compiles once.
//
//	func widgetDeps(ctx context.Context, t *theme.Theme) ([]bundle.Dependency, error) {
//		dep, err := eng.ComponentDependency(ctx, t, widgetComponent, bundle.Extra{Script: "widget.js"})
//		if err != nil {
//			return nil, err
//		}
//		return []bundle.Dependency{dep}, nil
//	}
//
//	var widget = deferred.MustNew(widgetDeps)
//
// Producers must be named functions: identity is the function's symbol name,
// so an anonymous function would neither memoize nor deduplicate.
package deferred

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"runtime"

	"github.com/platinummonkey/themeforge/pkg/bundle"
	"github.com/platinummonkey/themeforge/pkg/observability"
	"github.com/platinummonkey/themeforge/pkg/theme"
)

// ProducerFunc computes the dependencies for a theme
type ProducerFunc func(ctx context.Context, t *theme.Theme) ([]bundle.Dependency, error)

// Env is the explicit render context
type Env struct {
	// Session is the live session, nil when rendering standalone
	Session Session

	// Theme is the current theme for standalone renders; nil means the default
	Theme *theme.Theme
}

// Producer is a declared deferred dependency
type Producer struct {
	id      string
	fn      ProducerFunc
	memo    *MemoTable
	memoize bool
	logger  *observability.Logger
}

// Option configures a Producer
type Option func(*Producer)

// WithoutMemo disables memoization, for producers with side effects that
// must run on every render
func WithoutMemo() Option {
	return func(p *Producer) { p.memoize = false }
}

// WithMemoTable uses table instead of the process-wide one
func WithMemoTable(table *MemoTable) Option {
	return func(p *Producer) { p.memo = table }
}

// WithLogger sets the logger
func WithLogger(logger *observability.Logger) Option {
	return func(p *Producer) { p.logger = logger }
}

// New declares a producer. fn must be a named function.
func New(fn ProducerFunc, opts ...Option) (*Producer, error) {
	id, err := producerID(fn)
	if err != nil {
		return nil, err
	}
	return NewNamed(id, fn, opts...)
}

// NewNamed declares a producer under an explicit identity, for functions
// whose symbol cannot serve as one, e.g. a method bound to a long-lived
// service. The caller guarantees the name is unique per behaviour.
func NewNamed(name string, fn ProducerFunc, opts ...Option) (*Producer, error) {
	if fn == nil {
		return nil, ErrNilProducer
	}
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrProducerMustBeNamed)
	}

	p := &Producer{
		id:      name,
		fn:      fn,
		memo:    DefaultMemoTable(),
		memoize: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = observability.OrDefault(p.logger)
	return p, nil
}

// MustNew is New for package-level declarations
func MustNew(fn ProducerFunc, opts ...Option) *Producer {
	p, err := New(fn, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// ID returns the producer identity
func (p *Producer) ID() string {
	return p.id
}

// Render evaluates the producer in env
func (p *Producer) Render(ctx context.Context, env Env) ([]bundle.Dependency, error) {
	t := env.Theme
	if env.Session != nil {
		env.Session.RegisterThemeChangeListener(p.id, p.fn)
		t = env.Session.ActiveTheme()
		ctx = observability.WithSessionID(ctx, env.Session.ID())
	}
	if t == nil {
		t = theme.Default()
	}
	return p.call(ctx, t)
}

func (p *Producer) call(ctx context.Context, t *theme.Theme) ([]bundle.Dependency, error) {
	if !p.memoize {
		return p.fn(ctx, t)
	}

	if deps, ok := p.memo.Get(p.id, t); ok {
		return deps, nil
	}

	deps, err := p.fn(ctx, t)
	if err != nil {
		return nil, err
	}
	p.memo.Set(p.id, t, deps)

	observability.FromContextOr(ctx, p.logger).WithFields(map[string]interface{}{
		"producer": p.id,
		"theme":    t.String(),
	}).Debug("memoized producer result")
	return deps, nil
}

var anonymousName = regexp.MustCompile(`\.func\d+(\.|$)|\.glob\.|-fm$`)

// producerID derives a stable identity from the function symbol. Closures
// and method values are rejected: the former have compiler-assigned names,
// the latter share one symbol across every receiver.
func producerID(fn ProducerFunc) (string, error) {
	if fn == nil {
		return "", ErrNilProducer
	}
	f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if f == nil {
		return "", fmt.Errorf("%w: cannot resolve function symbol", ErrProducerMustBeNamed)
	}
	name := f.Name()
	if anonymousName.MatchString(name) {
		return "", fmt.Errorf("%w: got %s", ErrProducerMustBeNamed, name)
	}
	return name, nil
}
