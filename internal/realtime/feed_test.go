package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFeed_BroadcastsToAllSubscribers(t *testing.T) {
	feed := NewLocalFeed(4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := feed.Subscribe(ctx)
	require.NoError(t, err)
	b, err := feed.Subscribe(ctx)
	require.NoError(t, err)

	feed.Record(NewChangeEvent(TableTasks, KindInsert, "t1", nil))

	assert.Equal(t, "t1", (<-a).RecordID)
	assert.Equal(t, "t1", (<-b).RecordID)
}

func TestLocalFeed_UnsubscribesOnCancel(t *testing.T) {
	feed := NewLocalFeed(4, nil)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := feed.Subscribe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, feed.SubscriberCount())

	cancel()

	require.Eventually(t, func() bool { return feed.SubscriberCount() == 0 }, time.Second, 5*time.Millisecond)
	_, ok := <-ch
	assert.False(t, ok)
}

func TestLocalFeed_DropsForFullSubscriber(t *testing.T) {
	feed := NewLocalFeed(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := feed.Subscribe(ctx)
	require.NoError(t, err)

	feed.Record(NewChangeEvent(TableTasks, KindUpdate, "t1", nil))
	assert.NotPanics(t, func() {
		feed.Record(NewChangeEvent(TableTasks, KindUpdate, "t2", nil))
	})

	assert.Equal(t, "t1", (<-ch).RecordID)
	assert.Len(t, ch, 0)
}

func TestLocalFeed_SubscribeWithDoneContext(t *testing.T) {
	feed := NewLocalFeed(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := feed.Subscribe(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
