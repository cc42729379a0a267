package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func (w *recordingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.msgs)
}

func TestKafkaRelay_ForwardsKeyedEvents(t *testing.T) {
	feed := NewLocalFeed(8, nil)
	w := &recordingWriter{}
	relay := newKafkaRelay(feed, w, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	require.Eventually(t, func() bool { return feed.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)
	feed.Record(NewChangeEvent(TableTasks, KindUpdate, "task-1", map[string]int{"progress": 40}))

	require.Eventually(t, func() bool { return w.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	msg := w.msgs[0]
	assert.Equal(t, "task-1", string(msg.Key))

	ev, err := decodeMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, TableTasks, ev.Table)
	assert.Equal(t, KindUpdate, ev.Kind)
	assert.JSONEq(t, `{"progress":40}`, string(ev.Payload))
}

func TestKafkaRelay_WriteFailureIsNotFatal(t *testing.T) {
	feed := NewLocalFeed(8, nil)
	w := &recordingWriter{err: errors.New("broker down")}
	relay := newKafkaRelay(feed, w, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	require.Eventually(t, func() bool { return feed.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)
	feed.Record(NewChangeEvent(TableTasks, KindDelete, "task-1", nil))
	feed.Record(NewChangeEvent(TableTasks, KindDelete, "task-2", nil))

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestDecodeMessage_RejectsIncompleteEvents(t *testing.T) {
	_, err := decodeMessage(kafka.Message{Value: []byte(`{"table":"tasks"}`)})
	assert.Error(t, err)

	_, err = decodeMessage(kafka.Message{Value: []byte(`not json`)})
	assert.Error(t, err)
}

func TestKafkaFeed_RequiresBrokers(t *testing.T) {
	feed := NewKafkaFeed(nil, "topic", "group", nil)
	_, err := feed.Subscribe(context.Background())
	assert.ErrorIs(t, err, ErrNoBrokers)
}
