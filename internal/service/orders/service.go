package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/metrics"
)

const tracerName = "github.com/vladislavdragonenkov/orders/internal/service/orders"

// Причины отказа для метрики orders_create_failures_total.
const (
	failureInvalid         = "invalid_order"
	failureProductNotFound = "product_not_found"
	failureStorage         = "storage"
)

// ItemEnricher дополняет позиции данными каталога.
type ItemEnricher interface {
	PriceItems(ctx context.Context, items []domain.OrderItem) ([]domain.OrderItem, error)
	AttachProducts(ctx context.Context, items []domain.OrderItem) []domain.OrderItem
}

// NumberSequencer выдаёт порядковые номера заказов.
type NumberSequencer interface {
	Next(ctx context.Context) int64
}

// Option настраивает Service.
type Option func(*Service)

// WithOutbox включает публикацию order.created через outbox.
func WithOutbox(outbox domain.OutboxRepository) Option {
	return func(s *Service) {
		s.outbox = outbox
	}
}

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics задаёт метрики сервиса.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// Service реализует создание и чтение заказов.
type Service struct {
	repo      domain.OrderRepository
	enricher  ItemEnricher
	sequencer NumberSequencer
	outbox    domain.OutboxRepository
	now       func() time.Time
	logger    *log.Entry
	metrics   *metrics.OrderMetrics
	tracer    trace.Tracer
}

// NewService создаёт сервис заказов.
func NewService(repo domain.OrderRepository, enricher ItemEnricher, sequencer NumberSequencer, options ...Option) *Service {
	s := &Service{
		repo:      repo,
		enricher:  enricher,
		sequencer: sequencer,
		now:       time.Now,
		tracer:    otel.Tracer(tracerName),
	}
	for _, option := range options {
		option(s)
	}
	if s.logger == nil {
		s.logger = log.WithField("component", "orders")
	}
	return s
}

// CreateOrder проверяет запрос, оценивает позиции по каталогу, присваивает номер и сохраняет заказ.
// Номер выдаётся только после успешной проверки и оценки позиций.
func (s *Service) CreateOrder(ctx context.Context, candidate domain.Order) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.create", trace.WithAttributes(
		attribute.Int64("order.user_id", candidate.UserID),
		attribute.Int("order.items", len(candidate.Items)),
	))
	defer span.End()

	order, err := s.createOrder(ctx, candidate)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.RecordCreateFailure(failureReason(err))
		return domain.Order{}, err
	}

	span.SetAttributes(
		attribute.Int64("order.id", order.ID),
		attribute.String("order.number", order.OrderNumber),
	)
	s.metrics.RecordOrderCreated()
	return order, nil
}

func (s *Service) createOrder(ctx context.Context, candidate domain.Order) (domain.Order, error) {
	// Цены от клиента не принимаются.
	raw := make([]domain.OrderItem, len(candidate.Items))
	for i, item := range candidate.Items {
		raw[i] = domain.OrderItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	request := domain.Order{UserID: candidate.UserID, Items: raw}

	if errs := request.Validate(); len(errs) > 0 {
		return domain.Order{}, domain.NewInvalidOrder("order validation failed", errors.Join(errs...))
	}

	priced, err := s.enricher.PriceItems(ctx, request.Items)
	if err != nil {
		return domain.Order{}, err
	}

	now := s.now().UTC()
	seq := s.sequencer.Next(ctx)

	order := domain.Order{
		OrderNumber: domain.GenerateOrderNumber(seq, now.Year()),
		UserID:      request.UserID,
		Status:      domain.OrderStatusPending,
		TotalAmount: domain.CalculateTotal(priced),
		Items:       priced,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	saved, err := s.repo.Save(ctx, order)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_number": order.OrderNumber,
			"user_id":      order.UserID,
			"sequence":     seq,
		}).Error("failed to persist order")
		return domain.Order{}, fmt.Errorf("save order %s: %w", order.OrderNumber, err)
	}

	// Снимок товара не хранится, возвращаем его из результата оценки.
	for i := range saved.Items {
		if i < len(priced) {
			saved.Items[i].Product = priced[i].Product
		}
	}

	s.enqueueCreated(ctx, saved)

	s.logger.WithFields(log.Fields{
		"order_id":     saved.ID,
		"order_number": saved.OrderNumber,
		"user_id":      saved.UserID,
		"total":        saved.TotalAmount.StringFixed(domain.MoneyScale),
	}).Info("order created")

	return saved, nil
}

// GetByID возвращает заказ с текущими данными товаров.
// Недоступность каталога не мешает чтению: позиции остаются без снимка товара.
func (s *Service) GetByID(ctx context.Context, id int64) (domain.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return domain.Order{}, &domain.OrderNotFoundError{ID: id}
		}
		return domain.Order{}, fmt.Errorf("find order %d: %w", id, err)
	}

	order.Items = s.enricher.AttachProducts(ctx, order.Items)
	return order, nil
}

// GetAll возвращает все заказы в том виде, в каком они сохранены.
func (s *Service) GetAll(ctx context.Context) ([]domain.Order, error) {
	orders, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("find all orders: %w", err)
	}
	return orders, nil
}

// GetByUserID возвращает заказы пользователя в том виде, в каком они сохранены.
func (s *Service) GetByUserID(ctx context.Context, userID int64) ([]domain.Order, error) {
	orders, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find orders of user %d: %w", userID, err)
	}
	return orders, nil
}

func (s *Service) enqueueCreated(ctx context.Context, order domain.Order) {
	if s.outbox == nil {
		return
	}

	entry := s.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
	})

	msg, err := domain.NewOrderCreatedMessage(order)
	if err != nil {
		entry.WithError(err).Warn("failed to build order created event")
		return
	}
	if _, err := s.outbox.Enqueue(ctx, msg); err != nil {
		entry.WithError(err).Warn("failed to enqueue order created event")
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		return failureProductNotFound
	case domain.IsInvalidOrder(err):
		return failureInvalid
	default:
		return failureStorage
	}
}
