package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/marweda/water-level-forecast/internal/config"
	"github.com/marweda/water-level-forecast/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of kafkago.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes forecast results and validated series to Kafka topics.
// It implements pipeline.Sink.
type Writer struct {
	forecasts messageWriter
	series    messageWriter
	logger    *slog.Logger
}

// NewWriter creates producers for the configured forecast and series topics.
// An empty series topic disables series publishing.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &Writer{
		forecasts: newProducer(cfg.KafkaBrokers, cfg.KafkaForecastTopic),
		logger:    logger,
	}
	if cfg.KafkaSeriesTopic != "" {
		w.series = newProducer(cfg.KafkaBrokers, cfg.KafkaSeriesTopic)
	}
	return w
}

func newProducer(brokers []string, topic string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
}

// Name identifies the sink in metrics and logs.
func (w *Writer) Name() string { return "kafka" }

// LoadForecast publishes res keyed by gauge so one gauge's runs stay ordered
// on a single partition.
func (w *Writer) LoadForecast(ctx context.Context, res domain.ForecastResult) error {
	msg, err := forecastMessage(res)
	if err != nil {
		return err
	}
	return w.forecasts.WriteMessages(ctx, msg)
}

// LoadSeries publishes every record of ts in a single WriteMessages call.
func (w *Writer) LoadSeries(ctx context.Context, ts domain.TimeSeries) error {
	if w.series == nil || len(ts.Records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(ts.Records))
	for i := range ts.Records {
		msg, err := recordMessage(ts.Kind, ts.Records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.series.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish series %s: %w", ts.EntityID, err)
	}
	w.logger.Debug("series published", "entity_id", ts.EntityID, "records", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	var errs []error
	errs = append(errs, w.forecasts.Close())
	if w.series != nil {
		errs = append(errs, w.series.Close())
	}
	return errors.Join(errs...)
}

// forecastMessage marshals a ForecastResult into a Kafka message.
func forecastMessage(res domain.ForecastResult) (kafkago.Message, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize forecast: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(res.EntityID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(res.RunID)},
			{Key: "generated_at", Value: []byte(res.GeneratedAt.UTC().Format(time.RFC3339))},
			{Key: "steps", Value: []byte(strconv.Itoa(len(res.Steps)))},
		},
	}, nil
}

// recordMessage marshals a ValidatedRecord into a Kafka message.
func recordMessage(kind domain.Kind, r domain.ValidatedRecord) (kafkago.Message, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(r.EntityID),
		Value: data,
		Time:  r.Timestamp,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(kind)},
			{Key: "quality", Value: []byte(r.Quality)},
		},
	}, nil
}
