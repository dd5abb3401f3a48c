// Package notify announces finished builds so running searchers can reload.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/resilience"
)

// IndexComplete is the event published after a snapshot is written.
type IndexComplete struct {
	BuildID        string    `json:"build_id"`
	DictionaryPath string    `json:"dictionary_path"`
	PostingsPath   string    `json:"postings_path"`
	Terms          int       `json:"terms"`
	Documents      int       `json:"documents"`
	CreatedAt      time.Time `json:"created_at"`
}

// Publisher is the subset of kafka.Producer the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Notifier publishes IndexComplete events with retry.
type Notifier struct {
	pub    Publisher
	retry  resilience.RetryConfig
	logger *slog.Logger
}

func New(pub Publisher, retry resilience.RetryConfig) *Notifier {
	return &Notifier{
		pub:    pub,
		retry:  retry,
		logger: slog.Default().With("component", "notify"),
	}
}

// NewEvent describes snapshot s written to paths.
func NewEvent(s *segment.Snapshot, paths segment.Paths) IndexComplete {
	return IndexComplete{
		BuildID:        s.BuildID.String(),
		DictionaryPath: paths.Dictionary,
		PostingsPath:   paths.Postings,
		Terms:          len(s.Dictionary),
		Documents:      s.Collection.Distinct(),
		CreatedAt:      s.CreatedAt,
	}
}

// IndexComplete publishes ev keyed by its build id.
func (n *Notifier) IndexComplete(ctx context.Context, ev IndexComplete) error {
	err := resilience.Retry(ctx, "publish index.complete", n.retry, func() error {
		return n.pub.Publish(ctx, kafka.Event{Key: ev.BuildID, Value: ev})
	})
	if err != nil {
		n.logger.Error("index complete event not published", "build_id", ev.BuildID, "error", err)
		return err
	}
	n.logger.Info("index complete event published", "build_id", ev.BuildID)
	return nil
}
