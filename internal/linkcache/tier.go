// Package linkcache implements the two cache tiers of the link engine: the
// long-lived action-link tier and the short-lived search tier. Each tier is
// an in-memory map mirrored as one snapshot in a durable cache.Client.
package linkcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/cache"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/metrics"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/observability"
)

// Entry is a cached value with its bookkeeping. ExpiresAt is always
// Timestamp plus the tier TTL.
type Entry[T any] struct {
	Value      T         `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
	ExpiresAt  time.Time `json:"expiresAt"`
	ActionType string    `json:"actionType,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	Seq        uint64    `json:"seq"`
}

// Meta is the per-entry metadata stored next to the value.
type Meta struct {
	ActionType string
	Provider   string
}

// Options configures a tier.
type Options struct {
	Name       string
	TTL        time.Duration
	Capacity   int
	EvictBatch int
	// StorageKey is the backend key the snapshot is written under.
	StorageKey string
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Stats is a point-in-time view of a tier.
type Stats struct {
	Name      string        `json:"name"`
	Entries   int           `json:"entries"`
	Capacity  int           `json:"capacity"`
	TTL       time.Duration `json:"ttl"`
	Hits      uint64        `json:"hits"`
	Misses    uint64        `json:"misses"`
	Evictions uint64        `json:"evictions"`
	Expired   uint64        `json:"expired"`
	Oldest    time.Time     `json:"oldest,omitempty"`
	Newest    time.Time     `json:"newest,omitempty"`
}

// Tier is a TTL map with batch eviction. It is safe for concurrent use.
// There is no single-flight: concurrent misses on one key both compute and
// the last Set wins.
type Tier[T any] struct {
	opts    Options
	backend cache.Client
	logger  *observability.Logger
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*Entry[T]
	seq     uint64
	hits    uint64
	misses  uint64
	evicted uint64
	expired uint64

	// persistMu orders snapshot writes so an older snapshot never lands
	// after a newer one.
	persistMu sync.Mutex
}

// NewTier creates a tier. backend may be nil for a memory-only tier.
func NewTier[T any](opts Options, backend cache.Client, logger *observability.Logger) *Tier[T] {
	if opts.Capacity <= 0 {
		opts.Capacity = 100
	}
	if opts.EvictBatch <= 0 {
		opts.EvictBatch = opts.Capacity / 2
	}
	if opts.StorageKey == "" {
		opts.StorageKey = cache.Key("linkcache", opts.Name)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Tier[T]{
		opts:    opts,
		backend: backend,
		logger:  logger.WithComponent("linkcache").With().Str("tier", opts.Name).Logger(),
		now:     now,
		entries: make(map[string]*Entry[T]),
	}
}

// Name returns the tier name.
func (t *Tier[T]) Name() string { return t.opts.Name }

// Get returns the entry for key. A read after expiry is a miss, removes
// the entry and persists the snapshot.
func (t *Tier[T]) Get(ctx context.Context, key string) (Entry[T], bool) {
	t.mu.Lock()
	e, ok := t.entries[key]
	expired := ok && t.now().After(e.ExpiresAt)
	if expired {
		delete(t.entries, key)
		t.expired++
		ok = false
		e = nil
	}
	if ok {
		t.hits++
	} else {
		t.misses++
	}
	t.mu.Unlock()

	if expired {
		if err := t.Flush(ctx); err != nil {
			t.logger.Warn().Err(err).Str("key", key).Msg("Failed to persist tier after expiry")
		}
	}
	if !ok {
		metrics.CacheMissesTotal.WithLabelValues(t.opts.Name).Inc()
		return Entry[T]{}, false
	}
	metrics.CacheHitsTotal.WithLabelValues(t.opts.Name).Inc()
	return *e, true
}

// Set stores value under key, prunes the tier and persists the snapshot.
// The in-memory write always succeeds; the returned error reports a
// persistence failure only.
func (t *Tier[T]) Set(ctx context.Context, key string, value T, meta Meta) error {
	t.mu.Lock()
	now := t.now()
	t.seq++
	t.entries[key] = &Entry[T]{
		Value:      value,
		Timestamp:  now,
		ExpiresAt:  now.Add(t.opts.TTL),
		ActionType: meta.ActionType,
		Provider:   meta.Provider,
		Seq:        t.seq,
	}
	t.pruneLocked(now)
	t.mu.Unlock()

	return t.Flush(ctx)
}

// Delete removes key and persists the snapshot.
func (t *Tier[T]) Delete(ctx context.Context, key string) error {
	t.mu.Lock()
	_, ok := t.entries[key]
	delete(t.entries, key)
	t.mu.Unlock()
	if !ok {
		return nil
	}
	return t.Flush(ctx)
}

// Clear empties the tier and removes its snapshot.
func (t *Tier[T]) Clear(ctx context.Context) error {
	t.mu.Lock()
	t.entries = make(map[string]*Entry[T])
	t.mu.Unlock()
	metrics.CacheEntries.WithLabelValues(t.opts.Name).Set(0)

	if t.backend == nil {
		return nil
	}
	t.persistMu.Lock()
	defer t.persistMu.Unlock()
	if err := t.backend.Delete(ctx, t.opts.StorageKey); err != nil {
		return fmt.Errorf("clear %s tier: %w", t.opts.Name, err)
	}
	return nil
}

// Len returns the number of entries, including expired ones not yet pruned.
func (t *Tier[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Keys returns the stored keys, oldest first.
func (t *Tier[T]) Keys() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.orderedKeysLocked()
}

// Stats returns a snapshot of the tier counters.
func (t *Tier[T]) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Stats{
		Name:      t.opts.Name,
		Entries:   len(t.entries),
		Capacity:  t.opts.Capacity,
		TTL:       t.opts.TTL,
		Hits:      t.hits,
		Misses:    t.misses,
		Evictions: t.evicted,
		Expired:   t.expired,
	}
	for _, e := range t.entries {
		if s.Oldest.IsZero() || e.Timestamp.Before(s.Oldest) {
			s.Oldest = e.Timestamp
		}
		if e.Timestamp.After(s.Newest) {
			s.Newest = e.Timestamp
		}
	}
	return s
}

// Prune drops expired entries and enforces the capacity. It returns the
// number of removed entries.
func (t *Tier[T]) Prune() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pruneLocked(t.now())
}

// pruneLocked drops expired entries, then, while over capacity, evicts the
// oldest EvictBatch entries by timestamp (insertion order on equal stamps).
func (t *Tier[T]) pruneLocked(now time.Time) int {
	removed := 0
	for k, e := range t.entries {
		if now.After(e.ExpiresAt) {
			delete(t.entries, k)
			removed++
		}
	}
	if removed > 0 {
		t.expired += uint64(removed)
		metrics.CacheEvictionsTotal.WithLabelValues(t.opts.Name, "expired").Add(float64(removed))
	}

	if len(t.entries) > t.opts.Capacity {
		n := t.opts.EvictBatch
		if over := len(t.entries) - t.opts.Capacity; over > n {
			n = over
		}
		for _, k := range t.orderedKeysLocked()[:n] {
			delete(t.entries, k)
		}
		t.evicted += uint64(n)
		removed += n
		metrics.CacheEvictionsTotal.WithLabelValues(t.opts.Name, "capacity").Add(float64(n))
	}

	metrics.CacheEntries.WithLabelValues(t.opts.Name).Set(float64(len(t.entries)))
	return removed
}

func (t *Tier[T]) orderedKeysLocked() []string {
	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := t.entries[keys[i]], t.entries[keys[j]]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.Seq < b.Seq
	})
	return keys
}

// Flush writes the current entries to the backend as one snapshot.
func (t *Tier[T]) Flush(ctx context.Context) error {
	if t.backend == nil {
		return nil
	}
	t.persistMu.Lock()
	defer t.persistMu.Unlock()

	t.mu.Lock()
	data, err := json.Marshal(t.entries)
	t.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode %s snapshot: %w", t.opts.Name, err)
	}
	if err := t.backend.Set(ctx, t.opts.StorageKey, data, t.opts.TTL); err != nil {
		return fmt.Errorf("persist %s snapshot: %w", t.opts.Name, err)
	}
	return nil
}

// Load replaces the in-memory entries with the backend snapshot, dropping
// expired entries. A missing snapshot leaves the tier empty.
func (t *Tier[T]) Load(ctx context.Context) error {
	if t.backend == nil {
		return nil
	}
	data, err := t.backend.Get(ctx, t.opts.StorageKey)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s snapshot: %w", t.opts.Name, err)
	}

	var loaded map[string]*Entry[T]
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("decode %s snapshot: %w", t.opts.Name, err)
	}

	t.mu.Lock()
	t.entries = make(map[string]*Entry[T], len(loaded))
	var maxSeq uint64
	for k, e := range loaded {
		if e == nil {
			continue
		}
		t.entries[k] = e
		if e.Seq > maxSeq {
			maxSeq = e.Seq
		}
	}
	if maxSeq > t.seq {
		t.seq = maxSeq
	}
	removed := t.pruneLocked(t.now())
	n := len(t.entries)
	t.mu.Unlock()

	t.logger.Info().Int("entries", n).Int("dropped", removed).Msg("Cache tier hydrated")
	return nil
}

// StartCleanup prunes and persists the tier every interval until ctx is
// done. The returned channel is closed when the loop exits.
func (t *Tier[T]) StartCleanup(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := t.Prune(); removed > 0 {
					if err := t.Flush(ctx); err != nil && ctx.Err() == nil {
						t.logger.Warn().Err(err).Msg("Failed to persist tier after cleanup")
					}
					t.logger.Debug().Int("removed", removed).Msg("Cache tier cleaned up")
				}
			}
		}
	}()
	return done
}
