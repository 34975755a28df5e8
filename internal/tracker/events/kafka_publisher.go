package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/dealwatch/dealwatch/internal/domain/models"
	"github.com/dealwatch/dealwatch/internal/tracker/core"
)

const (
	EventNew      = "new"
	EventNewlyHot = "newly_hot"
	EventUpdated  = "updated"
	EventGone     = "gone"
)

// ItemEvent is the firehose record mirroring one classified reconcile
// outcome for downstream consumers.
type ItemEvent struct {
	Type     string       `json:"type"`
	Pipeline string       `json:"pipeline"`
	Item     *models.Item `json:"item"`
}

type Publisher interface {
	PublishResult(ctx context.Context, pipeline string, result *core.Result) error
	Close() error
}

type KafkaPublisher struct {
	producer    *kafka.Writer
	dlqProducer *kafka.Writer
	logger      *slog.Logger
	topic       string
	dlqTopic    string
}

func NewKafkaPublisher(brokers []string, topic, dlqTopic string, logger *slog.Logger) *KafkaPublisher {
	producer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		Logger:       kafka.LoggerFunc(logger.Debug),
		ErrorLogger:  kafka.LoggerFunc(logger.Error),
	}

	dlqProducer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        dlqTopic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		Logger:       kafka.LoggerFunc(logger.Debug),
		ErrorLogger:  kafka.LoggerFunc(logger.Error),
	}

	return &KafkaPublisher{
		producer:    producer,
		dlqProducer: dlqProducer,
		logger:      logger,
		topic:       topic,
		dlqTopic:    dlqTopic,
	}
}

func (p *KafkaPublisher) PublishResult(ctx context.Context, pipeline string, result *core.Result) error {
	if result.Empty() {
		return nil
	}

	batches := []struct {
		eventType string
		items     []*models.Item
	}{
		{EventNew, result.New},
		{EventNewlyHot, result.NewlyHot},
		{EventUpdated, result.Updated},
		{EventGone, result.Gone},
	}

	var messages []kafka.Message

	for _, batch := range batches {
		for _, item := range batch.items {
			value, err := json.Marshal(ItemEvent{
				Type:     batch.eventType,
				Pipeline: pipeline,
				Item:     item,
			})
			if err != nil {
				p.logger.Error("failed to encode item event", "id", item.ID, "error", err)
				continue
			}

			messages = append(messages, kafka.Message{
				Key:   []byte(item.ID),
				Value: value,
				Time:  time.Now(),
			})
		}
	}

	if len(messages) == 0 {
		return nil
	}

	if err := p.producer.WriteMessages(ctx, messages...); err != nil {
		p.logger.Error("failed to publish item events", "topic", p.topic, "error", err)

		for _, message := range messages {
			if dlqErr := p.sendToDLQ(ctx, message.Value, err.Error()); dlqErr != nil {
				return fmt.Errorf("publishing item events: %w", err)
			}
		}

		return nil
	}

	p.logger.Info("published item events",
		"pipeline", pipeline,
		"events", len(messages),
		"topic", p.topic,
	)

	return nil
}

func (p *KafkaPublisher) sendToDLQ(ctx context.Context, message []byte, errMsg string) error {
	err := p.dlqProducer.WriteMessages(ctx, kafka.Message{
		Key:   []byte("error"),
		Value: message,
		Headers: []kafka.Header{
			{Key: "error", Value: []byte(errMsg)},
			{Key: "timestamp", Value: []byte(time.Now().Format(time.RFC3339))},
		},
		Time: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("sending item event to DLQ: %w", err)
	}

	return nil
}

func (p *KafkaPublisher) Close() error {
	if err := p.producer.Close(); err != nil {
		return err
	}

	return p.dlqProducer.Close()
}

// NopPublisher is used when the firehose is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishResult(context.Context, string, *core.Result) error { return nil }

func (NopPublisher) Close() error { return nil }
