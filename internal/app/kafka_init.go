package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/messaging/kafka"
)

// eventPublishers содержит Kafka producer и паблишеры outbox/DLQ поверх него.
type eventPublishers struct {
	producer *kafka.Producer
	events   domain.OutboxPublisher
	dlq      domain.OutboxPublisher
}

// initKafka создаёт producer, если заданы brokers.
// Ошибка подключения не останавливает сервис: события копятся в outbox.
func initKafka(cfg Config, logger *log.Entry) *eventPublishers {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("kafka brokers are not configured, outbox worker disabled")
		return nil
	}

	producer, err := kafka.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil
	}

	logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")
	return &eventPublishers{
		producer: producer,
		events:   kafka.NewOutboxPublisher(producer, cfg.KafkaTopic),
		dlq:      kafka.NewOutboxPublisher(producer, cfg.KafkaDLQTopic),
	}
}

// outbox возвращает repo, только если есть воркер, который будет его разбирать.
// Без Kafka события не пишутся, иначе outbox_messages рос бы без ограничений.
func (p *eventPublishers) outbox(repo domain.OutboxRepository) domain.OutboxRepository {
	if p == nil {
		return nil
	}
	return repo
}

// closeKafka закрывает Kafka producer если он не nil.
func closeKafka(p *eventPublishers, logger *log.Entry) {
	if p == nil {
		return
	}

	if err := p.producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
