// Package reload serves the current query engine to concurrent readers and
// swaps in a new one when the snapshot on disk changes or a build announces
// itself on Kafka.
package reload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer/notify"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/metrics"
)

// Holder publishes the engine in use. Readers never block on a reload.
type Holder struct {
	engine atomic.Pointer[query.Engine]
}

func NewHolder(e *query.Engine) *Holder {
	h := &Holder{}
	h.engine.Store(e)
	return h
}

// Engine returns the engine in use.
func (h *Holder) Engine() *query.Engine {
	return h.engine.Load()
}

func (h *Holder) Store(e *query.Engine) {
	h.engine.Store(e)
}

// BuildID returns the build id of the engine in use.
func (h *Holder) BuildID() string {
	return h.Engine().Snapshot().BuildID.String()
}

// Hook runs after a new engine is in place.
type Hook func(ctx context.Context, e *query.Engine)

// Reloader loads the snapshot at a fixed pair of paths into a Holder.
type Reloader struct {
	holder       *Holder
	dictPath     string
	postingsPath string
	hooks        []Hook
	metrics      *metrics.Metrics
	mu           sync.Mutex
	logger       *slog.Logger
}

func New(holder *Holder, dictPath, postingsPath string) *Reloader {
	return &Reloader{
		holder:       holder,
		dictPath:     dictPath,
		postingsPath: postingsPath,
		logger:       slog.Default().With("component", "reload"),
	}
}

func (r *Reloader) WithMetrics(m *metrics.Metrics) *Reloader {
	r.metrics = m
	return r
}

// OnReload registers fn to run after every swap.
func (r *Reloader) OnReload(fn Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

// Reload reads the snapshot and swaps it in. A snapshot that fails to load
// leaves the current engine serving. It reports whether a swap happened.
func (r *Reloader) Reload(ctx context.Context, trigger string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.holder.BuildID()
	if r.headersMatch(current) {
		r.count(trigger, "unchanged")
		r.logger.Debug("snapshot unchanged", "trigger", trigger, "build_id", current)
		return false, nil
	}
	snap, err := segment.Load(r.dictPath, r.postingsPath)
	if err != nil {
		r.count(trigger, "failure")
		r.logger.Error("snapshot reload failed", "trigger", trigger, "error", err)
		return false, fmt.Errorf("reloading snapshot: %w", err)
	}
	if snap.BuildID.String() == current {
		r.count(trigger, "unchanged")
		r.logger.Debug("snapshot unchanged", "trigger", trigger, "build_id", current)
		return false, nil
	}
	e, err := query.New(snap)
	if err != nil {
		r.count(trigger, "failure")
		return false, fmt.Errorf("reloading snapshot: %w", err)
	}
	r.holder.Store(e)
	for _, hook := range r.hooks {
		hook(ctx, e)
	}
	r.count(trigger, "success")
	r.logger.Info("snapshot reloaded",
		"trigger", trigger,
		"previous_build_id", current,
		"build_id", snap.BuildID,
		"terms", len(snap.Dictionary),
	)
	return true, nil
}

// HandleEvent reloads for an index-complete event unless it names the build
// already being served. It has the shape of kafka.Handler.
func (r *Reloader) HandleEvent(ctx context.Context, _ string, ev notify.IndexComplete) error {
	if ev.BuildID == r.holder.BuildID() {
		return nil
	}
	if ev.DictionaryPath != r.dictPath {
		r.logger.Warn("index complete event for another location",
			"event_dictionary", ev.DictionaryPath,
			"served_dictionary", r.dictPath,
		)
	}
	_, err := r.Reload(ctx, "kafka")
	return err
}

// headersMatch reports whether both artifacts on disk still carry build id.
func (r *Reloader) headersMatch(build string) bool {
	for _, path := range []string{r.dictPath, r.postingsPath} {
		h, err := segment.ReadHeader(path)
		if err != nil || h.BuildID.String() != build {
			return false
		}
	}
	return true
}

func (r *Reloader) count(trigger, status string) {
	if r.metrics != nil {
		r.metrics.SnapshotReloadsTotal.WithLabelValues(trigger, status).Inc()
	}
}
