package orders_test

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orders/internal/metrics"
	"github.com/vladislavdragonenkov/orders/internal/service/enricher"
	"github.com/vladislavdragonenkov/orders/internal/service/orders"
	"github.com/vladislavdragonenkov/orders/internal/service/outbox"
	"github.com/vladislavdragonenkov/orders/internal/service/product"
	"github.com/vladislavdragonenkov/orders/internal/service/sequencer"
	"github.com/vladislavdragonenkov/orders/internal/storage/memory"
)

// OrderLifecycleTestSuite проверяет путь заказа от создания до публикации события.
type OrderLifecycleTestSuite struct {
	suite.Suite

	repo       domain.OrderRepository
	catalog    *product.Catalog
	outboxRepo *memory.OutboxRepository
	producer   *mocks.SyncProducer
	worker     *outbox.Worker
	svc        *orders.Service
}

func (s *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel)
	logger := baseLogger.WithField("component", "lifecycle-test")

	m := metrics.NewOrderMetricsWithRegisterer(prometheus.NewRegistry())

	s.repo = memory.NewOrderRepository()
	s.outboxRepo = memory.NewOutboxRepository()
	s.catalog = product.NewCatalog(
		domain.Product{ID: 1, Name: "Laptop Pro", Price: decimal.RequireFromString("1999.00")},
		domain.Product{ID: 2, Name: "Wireless Mouse", Price: decimal.RequireFromString("49.99")},
	)

	s.svc = orders.NewService(
		s.repo,
		enricher.New(s.catalog, enricher.WithLogger(logger), enricher.WithMetrics(m)),
		sequencer.New(s.repo, sequencer.WithLogger(logger), sequencer.WithMetrics(m)),
		orders.WithOutbox(s.outboxRepo),
		orders.WithClock(func() time.Time { return time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC) }),
		orders.WithLogger(logger),
		orders.WithMetrics(m),
	)

	s.producer = mocks.NewSyncProducer(s.T(), nil)
	producer := kafka.NewProducerFromSync(s.producer, logger)
	s.worker = outbox.NewWorker(
		s.outboxRepo,
		kafka.NewOutboxPublisher(producer, kafka.TopicOrderEvents),
		outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue)),
		outbox.WithMaxAttempts(2),
		outbox.WithRetryBaseDelay(0),
		outbox.WithLogger(logger),
		outbox.WithMetrics(metrics.NewOutboxMetricsWithRegisterer(prometheus.NewRegistry())),
	)
}

func (s *OrderLifecycleTestSuite) TearDownTest() {
	s.Require().NoError(s.producer.Close())
}

func (s *OrderLifecycleTestSuite) createOrder() domain.Order {
	created, err := s.svc.CreateOrder(context.Background(), domain.Order{
		UserID: 7,
		Items: []domain.OrderItem{
			{ProductID: 1, Quantity: 1},
			{ProductID: 2, Quantity: 3},
		},
	})
	s.Require().NoError(err)
	return created
}

func (s *OrderLifecycleTestSuite) TestCreateReadAndPublish() {
	ctx := context.Background()

	created := s.createOrder()
	s.Equal("ORD-2026-001", created.OrderNumber)
	s.Equal(domain.OrderStatusPending, created.Status)
	s.True(created.TotalAmount.Equal(decimal.RequireFromString("2148.97")), "total %s", created.TotalAmount)

	got, err := s.svc.GetByID(ctx, created.ID)
	s.Require().NoError(err)
	s.Require().Len(got.Items, 2)
	s.Require().NotNil(got.Items[1].Product)
	s.Equal("Wireless Mouse", got.Items[1].Product.Name)

	mine, err := s.svc.GetByUserID(ctx, 7)
	s.Require().NoError(err)
	s.Len(mine, 1)

	s.producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		s.Equal(kafka.TopicOrderEvents, msg.Topic)

		key, err := msg.Key.Encode()
		s.Require().NoError(err)
		s.Equal(strconv.FormatInt(created.ID, 10), string(key))

		value, err := msg.Value.Encode()
		s.Require().NoError(err)

		var envelope kafka.OutboxEnvelope
		s.Require().NoError(json.Unmarshal(value, &envelope))
		s.Equal(domain.EventTypeOrderCreated, envelope.EventType)

		var event domain.OrderCreatedEvent
		s.Require().NoError(json.Unmarshal(envelope.Payload, &event))
		s.Equal(created.OrderNumber, event.OrderNumber)
		s.Equal(2, event.ItemCount)
		s.True(event.TotalAmount.Equal(created.TotalAmount))
		return nil
	})

	s.Equal(1, s.worker.ProcessOnce(ctx))
	s.Empty(s.outboxRepo.AllPending())
}

func (s *OrderLifecycleTestSuite) TestPriceIsFrozenAfterCatalogChanges() {
	ctx := context.Background()

	created := s.createOrder()

	s.catalog.Put(domain.Product{ID: 2, Name: "Wireless Mouse", Price: decimal.RequireFromString("59.99")})
	got, err := s.svc.GetByID(ctx, created.ID)
	s.Require().NoError(err)
	s.True(got.Items[1].UnitPrice.Decimal.Equal(decimal.RequireFromString("49.99")))
	s.True(got.TotalAmount.Equal(created.TotalAmount))

	s.catalog.Delete(1)
	got, err = s.svc.GetByID(ctx, created.ID)
	s.Require().NoError(err)
	s.Nil(got.Items[0].Product)
	s.True(got.Items[0].UnitPrice.Decimal.Equal(decimal.RequireFromString("1999.00")))
}

func (s *OrderLifecycleTestSuite) TestBrokerOutageSendsToDLQ() {
	ctx := context.Background()

	created := s.createOrder()

	s.producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	s.producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	s.producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		s.Equal(kafka.TopicDeadLetterQueue, msg.Topic)

		value, err := msg.Value.Encode()
		s.Require().NoError(err)

		var envelope kafka.OutboxEnvelope
		s.Require().NoError(json.Unmarshal(value, &envelope))

		var letter outbox.DeadLetter
		s.Require().NoError(json.Unmarshal(envelope.Payload, &letter))
		s.Equal(strconv.FormatInt(created.ID, 10), letter.AggregateID)
		s.Contains(letter.PublishError, sarama.ErrOutOfBrokers.Error())
		return nil
	})

	s.Equal(0, s.worker.ProcessOnce(ctx))
	s.Empty(s.outboxRepo.AllPending())

	// Заказ остаётся сохранённым независимо от судьбы события.
	_, err := s.svc.GetByID(ctx, created.ID)
	s.NoError(err)
}

func TestOrderLifecycleTestSuite(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}
