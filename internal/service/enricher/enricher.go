package enricher

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/metrics"
)

const (
	defaultConcurrency = 4
	tracerName         = "github.com/vladislavdragonenkov/orders/internal/service/enricher"

	reasonLookupFailed   = "product lookup failed"
	reasonInvalidProduct = "invalid product data"
)

// Option настраивает Enricher.
type Option func(*Enricher)

// WithConcurrency ограничивает число одновременных запросов к каталогу.
func WithConcurrency(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(e *Enricher) {
		e.logger = logger
	}
}

// WithMetrics задаёт метрики запросов к каталогу.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(e *Enricher) {
		e.metrics = m
	}
}

// Enricher дополняет позиции заказа данными из каталога товаров.
type Enricher struct {
	lookup      domain.ProductLookup
	concurrency int
	logger      *log.Entry
	metrics     *metrics.OrderMetrics
	tracer      trace.Tracer
}

// New создаёт Enricher поверх клиента каталога.
func New(lookup domain.ProductLookup, options ...Option) *Enricher {
	e := &Enricher{
		lookup:      lookup,
		concurrency: defaultConcurrency,
		tracer:      otel.Tracer(tracerName),
	}
	for _, option := range options {
		option(e)
	}
	if e.logger == nil {
		e.logger = log.WithField("component", "order-enricher")
	}
	return e
}

// PriceItems проставляет цену, subtotal и снимок товара каждой позиции.
// Любая неудача отклоняет весь набор: отсутствующий товар даёт ProductNotFoundError,
// остальные сбои каталога дают InvalidOrderError с id товара.
// Если упало несколько позиций, возвращается ошибка позиции с меньшим индексом.
func (e *Enricher) PriceItems(ctx context.Context, items []domain.OrderItem) ([]domain.OrderItem, error) {
	priced := make([]domain.OrderItem, len(items))
	errs := make([]error, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			result, err := e.priceItem(gctx, item)
			if err != nil {
				errs[i] = err
				return err
			}
			priced[i] = result
			return nil
		})
	}

	groupErr := g.Wait()
	if groupErr == nil {
		return priced, nil
	}

	for _, err := range errs {
		if err == nil {
			continue
		}
		// Отмена, вызванная падением соседней позиции, не является причиной отказа.
		if ctx.Err() == nil && errors.Is(err, context.Canceled) {
			continue
		}
		return nil, err
	}
	return nil, groupErr
}

// AttachProducts прикрепляет к позициям текущие данные товаров.
// Ошибки каталога только логируются, позиция остаётся без товара.
func (e *Enricher) AttachProducts(ctx context.Context, items []domain.OrderItem) []domain.OrderItem {
	result := make([]domain.OrderItem, len(items))
	copy(result, items)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i := range result {
		i := i
		g.Go(func() error {
			p, err := e.fetch(gctx, result[i].ProductID, metrics.LookupModeLenient)
			if err != nil {
				e.logger.WithError(err).WithFields(log.Fields{
					"product_id": result[i].ProductID,
					"order_id":   result[i].OrderID,
				}).Warn("failed to enrich order item with product details")
				result[i].Product = nil
				return nil
			}
			result[i].Product = &p
			return nil
		})
	}

	_ = g.Wait()
	return result
}

func (e *Enricher) priceItem(ctx context.Context, item domain.OrderItem) (domain.OrderItem, error) {
	p, err := e.fetch(ctx, item.ProductID, metrics.LookupModeStrict)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return domain.OrderItem{}, &domain.ProductNotFoundError{ProductID: item.ProductID}
		}
		return domain.OrderItem{}, &domain.InvalidOrderError{ProductID: item.ProductID, Reason: reasonLookupFailed, Err: err}
	}

	item.UnitPrice = decimal.NewNullDecimal(domain.NormalizePrice(p.Price))
	item.Subtotal = decimal.NewNullDecimal(item.CalculateSubtotal())
	item.Product = &p

	if errs := item.Validate(); len(errs) > 0 {
		return domain.OrderItem{}, &domain.InvalidOrderError{ProductID: item.ProductID, Reason: reasonInvalidProduct, Err: errors.Join(errs...)}
	}
	return item, nil
}

func (e *Enricher) fetch(ctx context.Context, productID int64, mode string) (domain.Product, error) {
	ctx, span := e.tracer.Start(ctx, "product.lookup", trace.WithAttributes(
		attribute.Int64("product.id", productID),
		attribute.String("lookup.mode", mode),
	))
	defer span.End()

	start := time.Now()
	p, err := e.lookup.GetProductByID(ctx, productID)
	if err == nil && p.ID == 0 {
		err = &domain.ProductNotFoundError{ProductID: productID}
	}
	e.metrics.RecordProductLookup(mode, err, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Product{}, err
	}
	return p, nil
}
