package kafka

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/Theoretician9/content-factory-sub003/config"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/account/deps"
)

// Module provides the Kafka event producer for fx DI
var Module = fx.Module("kafka",
	fx.Provide(NewProducerFx),
)

// NewProducerFx creates a Kafka producer for account lifecycle events
func NewProducerFx(
	lc fx.Lifecycle,
	kafkaCfg *config.KafkaConfig,
	logger zerolog.Logger,
) (deps.EventPublisher, error) {
	producer, err := NewProducer(ProducerConfig{
		Brokers: kafkaCfg.Brokers,
		Topic:   kafkaCfg.Topic,
		Logger:  logger.With().Str("component", "kafka-producer").Logger(),
	})
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return producer.Close()
		},
	})

	return producer, nil
}
