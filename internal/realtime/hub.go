package realtime

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"github.com/yukikurage/taskboard/internal/logging"
)

// ConnState is the state of the Hub's subscription to its Feed.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnected    ConnState = "connected"
	StateError        ConnState = "error"
)

// ErrFeedClosed is reported when the feed ends while the hub is connected.
var ErrFeedClosed = errors.New("change feed closed unexpectedly")

// Filter narrows a subscription to matching events.
type Filter func(ChangeEvent) bool

// SubscriptionSpec scopes a subscription. An empty Table or Kind matches all.
type SubscriptionSpec struct {
	Table  Table
	Kind   Kind
	Filter Filter
}

func (s SubscriptionSpec) matches(ev ChangeEvent) bool {
	if s.Table != "" && s.Table != ev.Table {
		return false
	}
	if s.Kind != "" && s.Kind != ev.Kind {
		return false
	}
	if s.Filter != nil && !s.Filter(ev) {
		return false
	}
	return true
}

// Notification is a debounced delivery. Latest is the most recent event of
// the burst; Coalesced counts how many events the burst contained.
type Notification struct {
	Latest      ChangeEvent `json:"latest"`
	Coalesced   int         `json:"coalesced"`
	DeliveredAt time.Time   `json:"delivered_at"`
}

// Subscription delivers Notifications on C until Close is called.
type Subscription struct {
	C <-chan Notification

	id       uint64
	spec     SubscriptionSpec
	debounce time.Duration
	hub      *Hub

	mu      sync.Mutex
	ch      chan Notification
	timer   *time.Timer
	pending ChangeEvent
	count   int
	closed  bool
}

func (s *Subscription) offer(ev ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.pending = ev
	s.count++

	if s.debounce <= 0 {
		s.flushLocked()
		return
	}
	if s.timer == nil {
		s.timer = time.AfterFunc(s.debounce, s.flush)
		return
	}
	s.timer.Reset(s.debounce)
}

func (s *Subscription) flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
}

// flushLocked hands the pending notification to the subscriber. An
// undelivered older notification is replaced so a slow reader only ever
// sees the newest state.
func (s *Subscription) flushLocked() {
	if s.closed || s.count == 0 {
		return
	}

	n := Notification{
		Latest:      s.pending,
		Coalesced:   s.count,
		DeliveredAt: time.Now(),
	}
	s.count = 0

	select {
	case s.ch <- n:
		return
	default:
	}

	select {
	case old := <-s.ch:
		n.Coalesced += old.Coalesced
	default:
	}
	select {
	case s.ch <- n:
	default:
	}
}

// Close stops delivery and closes C. It is safe to call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	close(s.ch)
	s.mu.Unlock()

	s.hub.remove(s.id)
}

// Hub consumes a Feed and fans debounced notifications out to subscriptions.
type Hub struct {
	feed     Feed
	debounce time.Duration
	log      *logging.Logger

	mu      sync.Mutex
	state   ConnState
	lastErr error
	subs    map[uint64]*Subscription
	nextID  uint64
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewHub creates a disconnected Hub. Call Connect to start consuming feed.
func NewHub(feed Feed, debounce time.Duration, log *logging.Logger) *Hub {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Hub{
		feed:     feed,
		debounce: debounce,
		log:      log.WithComponent("sync_hub"),
		state:    StateDisconnected,
		subs:     make(map[uint64]*Subscription),
	}
}

// Connect subscribes to the feed. Calling Connect while connected is a no-op.
func (h *Hub) Connect() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateConnected {
		return nil
	}
	// A pump that ended on a closed feed leaves its context behind.
	if h.cancel != nil {
		h.cancel()
		h.cancel, h.done = nil, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	events, err := h.feed.Subscribe(ctx)
	if err != nil {
		cancel()
		h.state = StateError
		h.lastErr = err
		h.log.Error("failed to subscribe to change feed", "error", err)
		return err
	}

	done := make(chan struct{})
	h.cancel = cancel
	h.done = done
	h.state = StateConnected
	h.lastErr = nil

	go h.pump(ctx, events, done)

	h.log.Info("connected to change feed")
	return nil
}

// Reconnect tears down the current feed subscription, if any, and
// establishes a new one. Subscriptions survive a reconnect.
func (h *Hub) Reconnect() error {
	h.disconnect(StateDisconnected)
	return h.Connect()
}

// Close disconnects from the feed and closes every subscription.
func (h *Hub) Close() {
	h.disconnect(StateDisconnected)

	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
}

// State returns the connection state and the error that caused StateError.
func (h *Hub) State() (ConnState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state, h.lastErr
}

// Subscribe registers a subscription for events matching spec.
func (h *Hub) Subscribe(spec SubscriptionSpec) *Subscription {
	ch := make(chan Notification, 1)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	s := &Subscription{
		C:        ch,
		id:       h.nextID,
		spec:     spec,
		debounce: h.debounce,
		hub:      h,
		ch:       ch,
	}
	h.subs[s.id] = s
	return s
}

// SubscriptionCount returns the number of open subscriptions.
func (h *Hub) SubscriptionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

func (h *Hub) disconnect(next ConnState) {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.cancel, h.done = nil, nil
	if h.state == StateConnected {
		h.state = next
	}
	h.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (h *Hub) pump(ctx context.Context, events <-chan ChangeEvent, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return
				}
				h.mu.Lock()
				if h.done == done {
					h.state = StateError
					h.lastErr = ErrFeedClosed
				}
				h.mu.Unlock()
				h.log.Error("change feed closed", "error", ErrFeedClosed)
				return
			}
			h.dispatch(ev)
		}
	}
}

func (h *Hub) dispatch(ev ChangeEvent) {
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		if h.matches(s, ev) {
			s.offer(ev)
		}
	}
}

// matches keeps a panicking filter from taking the pump down with it.
func (h *Hub) matches(s *Subscription, ev ChangeEvent) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("subscription filter panicked",
				"subscription", s.id, "panic", r, "stack", string(debug.Stack()))
			ok = false
		}
	}()
	return s.spec.matches(ev)
}
