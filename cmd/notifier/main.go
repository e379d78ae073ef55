package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"orbook/pkg/config"
	"orbook/pkg/kafka"
	kafka_config "orbook/pkg/kafka/config"
	kafka_middleware "orbook/pkg/kafka/middleware"
	"orbook/pkg/model"
)

const (
	ServiceName   = "notifier"
	consumerGroup = "reservation-notifier"
)

// The notifier is a stateless subscriber: it consumes reservation events
// from the bus and dispatches notifications. It never reads the outbox
// collection directly.
func main() {
	cfg := config.Load(ServiceName)
	kafkaCfg := kafka_config.Load()
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	topics := []string{
		model.EventReservationCreated,
		model.EventReservationUpdated,
		model.EventReservationCancelled,
		model.EventReservationExpired,
	}

	consumers := make([]*kafka.Consumer, 0, len(topics))
	var wg sync.WaitGroup

	for _, topic := range topics {
		consumer, err := kafka.NewConsumer(kafkaCfg, topic, consumerGroup, topic+".dlq", handleEvent(cfg), cfg.Log)
		if err != nil {
			cfg.Log.Fatal("Failed to create Kafka consumer", "topic", topic, "error", err)
		}
		consumer.Use(kafka_middleware.MetricsConsumerMiddleware())
		consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
		consumers = append(consumers, consumer)

		wg.Add(1)
		go func(c *kafka.Consumer, t string) {
			defer wg.Done()
			if err := c.Start(ctx); err != nil && ctx.Err() == nil {
				cfg.Log.Error("Consumer stopped unexpectedly", "topic", t, "error", err)
			}
		}(consumer, topic)
	}

	cfg.Log.Info("Notifier started", "topics", topics, "group", consumerGroup)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	sig := <-shutdown
	cfg.Log.Info("Shutdown signal received", "signal", sig)

	cancel()
	wg.Wait()

	for _, consumer := range consumers {
		if err := consumer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka consumer", "error", err)
		}
	}

	cfg.Log.Info("Notifier stopped gracefully")
}

func handleEvent(cfg *config.Config) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var envelope model.EventEnvelope
		if err := msg.DecodeValue(&envelope); err != nil {
			return kafka.NewPermanentError("failed to decode event envelope", err)
		}

		cfg.Log.Info("Dispatching reservation notification",
			"event_id", envelope.EventID,
			"event_type", envelope.EventType,
			"reservation_id", envelope.AggregateID,
			"schema_version", envelope.SchemaVersion,
		)

		// Notification channels (email, paging) plug in here. The handler
		// must stay idempotent: the bus delivers at least once.
		return nil
	}
}
