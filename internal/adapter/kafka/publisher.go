package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/vmgd-scraper-service/internal/config"
	"github.com/couchcryptid/vmgd-scraper-service/internal/domain"
)

// Publisher produces stored records to a Kafka topic for downstream
// consumers. It is feature-flagged via KAFKA_ENABLED; the pipeline treats a
// nil publisher as "no feed".
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured record topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishForecasts serializes and publishes forecast days in a single
// WriteMessages call. Messages are keyed on the record's natural key so
// compacted topics retain one message per (source, location, date).
func (p *Publisher) PublishForecasts(ctx context.Context, recs []domain.ForecastDay) error {
	if len(recs) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(recs))
	for i := range recs {
		msg, err := serializeRecord(recs[i].NaturalKey(), domain.KindForecast, recs[i].IssuedAt, recs[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

// PublishMedia serializes and publishes media summaries, keyed on
// (source, issued_at).
func (p *Publisher) PublishMedia(ctx context.Context, recs []domain.ForecastMedia) error {
	if len(recs) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(recs))
	for i := range recs {
		msg, err := serializeRecord(recs[i].NaturalKey(), domain.KindMedia, recs[i].IssuedAt, recs[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

// PublishWarnings serializes and publishes warnings, keyed on (source, date).
func (p *Publisher) PublishWarnings(ctx context.Context, recs []domain.WeatherWarning) error {
	if len(recs) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(recs))
	for i := range recs {
		msg, err := serializeRecord(recs[i].NaturalKey(), domain.KindWarning, recs[i].IssuedAt, recs[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeRecord marshals a record into a Kafka message.
func serializeRecord(key string, kind domain.RecordKind, issuedAt time.Time, rec any) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s record: %w", kind, err)
	}
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "record_kind", Value: []byte(kind)},
			{Key: "issued_at", Value: []byte(issuedAt.Format(time.RFC3339))},
		},
	}, nil
}
