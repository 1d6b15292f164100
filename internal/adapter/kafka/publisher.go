package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/quake-post-etl/internal/config"
	"github.com/couchcryptid/quake-post-etl/internal/domain"
)

// messageWriter is the subset of *kafkago.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces newly stored events to a Kafka topic.
// It implements pipeline.EventPublisher.
type Publisher struct {
	writer messageWriter
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured event topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, clock: clockwork.NewRealClock(), logger: logger}
}

// Publish serializes events and writes them in a single WriteMessages call.
func (p *Publisher) Publish(ctx context.Context, events []domain.ExtractedEvent) error {
	if len(events) == 0 {
		return nil
	}
	publishedAt := p.clock.Now().UTC()
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i], publishedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d events: %w", len(msgs), err)
	}
	p.logger.Debug("events published", "count", len(msgs))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// EventMessage is the JSON value of a published event.
type EventMessage struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Author    string     `json:"author,omitempty"`
	URL       string     `json:"url,omitempty"`
	Subreddit string     `json:"subreddit,omitempty"`
	Location  string     `json:"location"`
	Magnitude float64    `json:"magnitude"`
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Date      string     `json:"date,omitempty"`
	Time      string     `json:"time,omitempty"`
	PostedAt  *time.Time `json:"posted_at,omitempty"`
}

func newEventMessage(e domain.ExtractedEvent) EventMessage {
	m := EventMessage{
		ID:        e.ID,
		Title:     e.Title,
		Author:    e.Author,
		URL:       e.Fields["url"],
		Subreddit: e.Fields["subreddit"],
		Location:  e.Location,
		Magnitude: e.Magnitude,
		Latitude:  e.Latitude,
		Longitude: e.Longitude,
		Date:      e.Date,
		Time:      e.Time,
	}
	if !e.Posted.IsZero() {
		posted := e.Posted
		m.PostedAt = &posted
	}
	return m
}

// serializeToMessage marshals an event into a Kafka message keyed by post ID,
// or by title for posts without one.
func serializeToMessage(e domain.ExtractedEvent, publishedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(newEventMessage(e))
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize event: %w", err)
	}
	key := e.ID
	if key == "" {
		key = e.Title
	}
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "location", Value: []byte(e.Location)},
			{Key: "published_at", Value: []byte(publishedAt.Format(time.RFC3339))},
		},
	}, nil
}
