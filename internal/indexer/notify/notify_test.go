package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/resilience"
)

type fakePublisher struct {
	failures int
	events   []kafka.Event
}

func (f *fakePublisher) Publish(_ context.Context, ev kafka.Event) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("leader not available")
	}
	f.events = append(f.events, ev)
	return nil
}

var quick = resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}

func TestIndexCompleteRetries(t *testing.T) {
	pub := &fakePublisher{failures: 2}
	n := New(pub, quick)
	ev := IndexComplete{BuildID: "b-1", Terms: 10, Documents: 3}

	require.NoError(t, n.IndexComplete(context.Background(), ev))
	require.Len(t, pub.events, 1)
	assert.Equal(t, "b-1", pub.events[0].Key)
	assert.Equal(t, ev, pub.events[0].Value)
}

func TestIndexCompleteGivesUp(t *testing.T) {
	pub := &fakePublisher{failures: 5}
	n := New(pub, quick)
	assert.Error(t, n.IndexComplete(context.Background(), IndexComplete{BuildID: "b-2"}))
	assert.Empty(t, pub.events)
}
