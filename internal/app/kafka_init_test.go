package app

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/vladislavdragonenkov/orders/internal/storage/memory"
)

func TestInitKafka_NoBrokers(t *testing.T) {
	t.Parallel()

	assert.Nil(t, initKafka(DefaultConfig(), log.WithField("test", "kafka-disabled")))
}

func TestInitKafka_UnreachableBrokers(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.KafkaBrokers = []string{"127.0.0.1:1"}

	assert.Nil(t, initKafka(cfg, log.WithField("test", "kafka-unreachable")))
}

func TestCloseKafka_Nil(t *testing.T) {
	t.Parallel()

	closeKafka(nil, log.WithField("test", "kafka-close"))
}

func TestEventPublishers_OutboxOnlyWithWorker(t *testing.T) {
	t.Parallel()

	repo := memory.NewOutboxRepository()

	var disabled *eventPublishers
	assert.Nil(t, disabled.outbox(repo))

	enabled := &eventPublishers{}
	assert.Equal(t, repo, enabled.outbox(repo))
}
