package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/yukikurage/taskboard/internal/logging"
)

var ErrNoBrokers = errors.New("kafka: no brokers configured")

// KafkaFeed reads change events published by other instances' KafkaRelay.
// Each instance joins its own consumer group so it sees every event, and
// starts from the newest offset because missed events are not replayed.
type KafkaFeed struct {
	brokers []string
	topic   string
	groupID string
	log     *logging.Logger
}

// NewKafkaFeed creates a feed for topic. groupPrefix is suffixed with a
// per-process id.
func NewKafkaFeed(brokers []string, topic, groupPrefix string, log *logging.Logger) *KafkaFeed {
	if log == nil {
		log = logging.NopLogger()
	}
	return &KafkaFeed{
		brokers: brokers,
		topic:   topic,
		groupID: groupPrefix + "-" + uuid.NewString(),
		log:     log.WithComponent("kafka_feed"),
	}
}

// Subscribe starts a reader that runs until ctx is done or a read fails.
func (f *KafkaFeed) Subscribe(ctx context.Context) (<-chan ChangeEvent, error) {
	if len(f.brokers) == 0 {
		return nil, ErrNoBrokers
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     f.brokers,
		Topic:       f.topic,
		GroupID:     f.groupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})

	out := make(chan ChangeEvent, 64)
	go func() {
		defer close(out)
		defer r.Close()

		for {
			m, err := r.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() == nil {
					f.log.Error("kafka read failed", "topic", f.topic, "error", err)
				}
				return
			}

			ev, err := decodeMessage(m)
			if err != nil {
				// Bad message: skip it so the reader does not stall on it.
				f.log.Warn("skipping undecodable change event", "offset", m.Offset, "error", err)
				continue
			}

			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func decodeMessage(m kafka.Message) (ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		return ChangeEvent{}, fmt.Errorf("invalid change event: %w", err)
	}
	if ev.Table == "" || ev.RecordID == "" {
		return ChangeEvent{}, errors.New("invalid change event: missing table or record_id")
	}
	return ev, nil
}

func encodeMessage(ev ChangeEvent) (kafka.Message, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(ev.RecordID),
		Value: b,
		Time:  ev.At,
	}, nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaRelay publishes events from a local feed to a Kafka topic. Events
// are keyed by record id so changes to one record stay on one partition.
type KafkaRelay struct {
	source  Feed
	writer  messageWriter
	timeout time.Duration
	log     *logging.Logger
}

// NewKafkaRelay creates a relay writing to topic.
func NewKafkaRelay(source Feed, brokers []string, topic string, log *logging.Logger) (*KafkaRelay, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaRelay(source, w, log), nil
}

func newKafkaRelay(source Feed, w messageWriter, log *logging.Logger) *KafkaRelay {
	if log == nil {
		log = logging.NopLogger()
	}
	return &KafkaRelay{
		source:  source,
		writer:  w,
		timeout: 3 * time.Second,
		log:     log.WithComponent("kafka_relay"),
	}
}

// Run forwards events until ctx is done. Publish failures are logged and
// the event is dropped.
func (r *KafkaRelay) Run(ctx context.Context) error {
	events, err := r.source.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe relay source: %w", err)
	}

	for ev := range events {
		msg, err := encodeMessage(ev)
		if err != nil {
			r.log.Warn("failed to encode change event", "record_id", ev.RecordID, "error", err)
			continue
		}

		wctx, cancel := context.WithTimeout(ctx, r.timeout)
		err = r.writer.WriteMessages(wctx, msg)
		cancel()
		if err != nil {
			r.log.Error("failed to publish change event",
				"table", ev.Table, "record_id", ev.RecordID, "error", err)
		}
	}

	return ctx.Err()
}

// Close closes the underlying writer.
func (r *KafkaRelay) Close() error {
	return r.writer.Close()
}
