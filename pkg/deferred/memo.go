package deferred

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/themeforge/pkg/bundle"
	"github.com/platinummonkey/themeforge/pkg/observability"
	"github.com/platinummonkey/themeforge/pkg/stylegen/config"
	"github.com/platinummonkey/themeforge/pkg/theme"
)

// MemoTable is a bounded, time-indexed map from (producer, theme content) to
// the producer's result. Entries expire by age only. Two concurrent misses for
// the same entry both run the producer; the later Set wins.
type MemoTable struct {
	entries *expirable.LRU[string, []bundle.Dependency]
	metrics *observability.Metrics
}

// NewMemoTable creates a memo table. Non-positive arguments take the defaults.
func NewMemoTable(ttl time.Duration, maxEntries int, metrics *observability.Metrics) *MemoTable {
	if ttl <= 0 {
		ttl = config.DefaultMemoTTL
	}
	if maxEntries <= 0 {
		maxEntries = config.DefaultMemoMaxEntries
	}
	return &MemoTable{
		entries: expirable.NewLRU[string, []bundle.Dependency](maxEntries, nil, ttl),
		metrics: metrics,
	}
}

var defaultMemo = NewMemoTable(config.DefaultMemoTTL, config.DefaultMemoMaxEntries, nil)

// DefaultMemoTable returns the process-wide table used by producers that were
// not given one
func DefaultMemoTable() *MemoTable {
	return defaultMemo
}

// Get returns a copy of the memoized result
func (m *MemoTable) Get(producerID string, t *theme.Theme) ([]bundle.Dependency, bool) {
	deps, ok := m.entries.Get(memoKey(producerID, t))
	m.metrics.RecordMemo(ok)
	if !ok {
		return nil, false
	}
	return cloneDeps(deps), true
}

// Set stores a copy of deps
func (m *MemoTable) Set(producerID string, t *theme.Theme, deps []bundle.Dependency) {
	m.entries.Add(memoKey(producerID, t), cloneDeps(deps))
}

// Len returns the number of live entries
func (m *MemoTable) Len() int {
	return m.entries.Len()
}

// Purge drops every entry
func (m *MemoTable) Purge() {
	m.entries.Purge()
}

func memoKey(producerID string, t *theme.Theme) string {
	return producerID + "\x00" + t.ContentHash()
}

func cloneDeps(deps []bundle.Dependency) []bundle.Dependency {
	if deps == nil {
		return nil
	}
	out := make([]bundle.Dependency, len(deps))
	for i, d := range deps {
		out[i] = d.Clone()
	}
	return out
}
