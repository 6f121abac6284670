// Package events announces persisted news records on a Kafka topic.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sells-group/trustfeed/internal/config"
	"github.com/sells-group/trustfeed/internal/model"
)

// EventSubmitted is the event type header value for a persisted record.
const EventSubmitted = "news.submitted"

// SubmittedEvent is the message body published for each persisted record.
type SubmittedEvent struct {
	Type        string    `json:"type"`
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	TrustScore  int       `json:"trust_score"`
	MintPrice   int       `json:"mint_price"`
	CreatedAt   time.Time `json:"created_at"`
}

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends submitted-news events.
type Publisher interface {
	PublishSubmitted(ctx context.Context, n model.SubmittedNews) error
	Close() error
}

// KafkaPublisher writes one message per record, keyed by record id.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	now    func() time.Time
}

// New returns a KafkaPublisher when brokers are configured and a Noop
// publisher otherwise.
func New(cfg config.EventsConfig) Publisher {
	if len(cfg.Brokers) == 0 {
		return Noop{}
	}
	wc := writerConfig(cfg)
	zap.L().Info("events: kafka publisher configured",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
		zap.Duration("batch_timeout", wc.BatchTimeout),
	)
	return newKafkaPublisher(kafka.NewWriter(wc), cfg.Topic)
}

// writerConfig defaults BatchTimeout to 10ms. Publishes happen on the submit
// path and kafka-go's default window is 1s.
func writerConfig(cfg config.EventsConfig) kafka.WriterConfig {
	timeout := time.Duration(cfg.BatchTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Millisecond
	}
	return kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  3,
		BatchTimeout: timeout,
	}
}

func newKafkaPublisher(w messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic, now: time.Now}
}

// PublishSubmitted writes the record as a JSON message.
func (p *KafkaPublisher) PublishSubmitted(ctx context.Context, n model.SubmittedNews) error {
	body, err := json.Marshal(SubmittedEvent{
		Type:        EventSubmitted,
		ID:          n.ID,
		Title:       n.Title,
		Description: n.Description,
		Author:      n.Author,
		TrustScore:  n.TrustScore,
		MintPrice:   n.MintPrice,
		CreatedAt:   n.CreatedAt,
	})
	if err != nil {
		return eris.Wrap(err, "events: marshal submitted event")
	}

	msg := kafka.Message{
		Key:   []byte(n.ID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventSubmitted)},
			{Key: "timestamp", Value: []byte(p.now().UTC().Format(time.RFC3339))},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return eris.Wrapf(err, "events: write to %s", p.topic)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Noop discards events. Used when no brokers are configured.
type Noop struct{}

// PublishSubmitted does nothing.
func (Noop) PublishSubmitted(context.Context, model.SubmittedNews) error { return nil }

// Close does nothing.
func (Noop) Close() error { return nil }
