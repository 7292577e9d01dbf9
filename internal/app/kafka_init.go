package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

// kafkaDeps — consumer ingest-топиков и producer для DLQ.
type kafkaDeps struct {
	consumer *kafka.Consumer
	producer *kafka.Producer
}

// initKafka поднимает consumer ledger/каталога. Пустой список брокеров: kafka выключена.
func initKafka(cfg Config, recorder kafka.Recorder, logger *log.Entry) (*kafkaDeps, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		return nil, fmt.Errorf("init dlq producer: %w", err)
	}

	consumer, err := kafka.NewConsumerWithDLQ(
		cfg.KafkaBrokers,
		cfg.KafkaGroupID,
		[]string{kafka.TopicOrderLines, kafka.TopicProducts},
		kafka.IngestHandler(recorder),
		producer,
		cfg.KafkaMaxRetries,
	)
	if err != nil {
		_ = producer.Close()
		return nil, fmt.Errorf("init consumer: %w", err)
	}

	logger.WithFields(log.Fields{
		"brokers": cfg.KafkaBrokers,
		"group":   cfg.KafkaGroupID,
	}).Info("kafka ingest initialized")
	return &kafkaDeps{consumer: consumer, producer: producer}, nil
}

func (d *kafkaDeps) start(ctx context.Context) error {
	if d == nil {
		return nil
	}
	return d.consumer.Start(ctx)
}

// closeKafka останавливает consumer и закрывает producer.
func closeKafka(d *kafkaDeps, logger *log.Entry) {
	if d == nil {
		return
	}
	if d.consumer != nil {
		if err := d.consumer.Stop(); err != nil {
			logger.WithError(err).Warn("failed to stop kafka consumer")
		}
	}
	if d.producer != nil {
		if err := d.producer.Close(); err != nil {
			logger.WithError(err).Warn("failed to close kafka producer")
		} else {
			logger.Info("kafka producer closed")
		}
	}
}
