package realtime

import (
	"context"
	"sync"

	"github.com/yukikurage/taskboard/internal/logging"
)

// Feed is a source of change notifications from the record store.
// The returned channel is closed when ctx is done or the source fails.
type Feed interface {
	Subscribe(ctx context.Context) (<-chan ChangeEvent, error)
}

// LocalFeed is an in-process broadcaster. Repositories record into it and
// every subscriber receives its own copy of each event.
type LocalFeed struct {
	mu     sync.RWMutex
	subs   map[uint64]chan ChangeEvent
	nextID uint64
	buffer int
	log    *logging.Logger
}

// NewLocalFeed creates a LocalFeed whose subscriber channels hold buffer events.
func NewLocalFeed(buffer int, log *logging.Logger) *LocalFeed {
	if buffer <= 0 {
		buffer = 64
	}
	if log == nil {
		log = logging.NopLogger()
	}
	return &LocalFeed{
		subs:   make(map[uint64]chan ChangeEvent),
		buffer: buffer,
		log:    log.WithComponent("local_feed"),
	}
}

// Record fans ev out to all subscribers. A subscriber whose buffer is full
// misses the event; it is expected to recover through a re-fetch.
func (f *LocalFeed) Record(ev ChangeEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for id, ch := range f.subs {
		select {
		case ch <- ev:
		default:
			f.log.Warn("dropping change event for slow subscriber",
				"subscriber", id, "table", ev.Table, "record_id", ev.RecordID)
		}
	}
}

// Subscribe registers a subscriber until ctx is done.
func (f *LocalFeed) Subscribe(ctx context.Context) (<-chan ChangeEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := make(chan ChangeEvent, f.buffer)

	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.subs[id] = ch
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs, id)
		close(ch)
		f.mu.Unlock()
	}()

	return ch, nil
}

// SubscriberCount returns the number of live subscribers.
func (f *LocalFeed) SubscriberCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}
