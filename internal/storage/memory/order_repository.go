package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

// orderRepositoryInMemory - простая in-memory реализация OrderRepository.
type orderRepositoryInMemory struct {
	mu        sync.RWMutex
	orders    map[int64]domain.Order
	byNumber  map[string]int64
	nextOrder int64
	nextItem  int64
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		orders:   make(map[int64]domain.Order),
		byNumber: make(map[string]int64),
	}
}

// Save назначает идентификаторы заказу и позициям и сохраняет их за одну операцию.
func (r *orderRepositoryInMemory) Save(ctx context.Context, order domain.Order) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byNumber[order.OrderNumber]; ok && existing != order.ID {
		return domain.Order{}, domain.ErrDuplicateOrderNumber
	}

	if order.ID == 0 {
		r.nextOrder++
		order.ID = r.nextOrder
	}

	items := make([]domain.OrderItem, len(order.Items))
	for i, item := range order.Items {
		if item.ID == 0 {
			r.nextItem++
			item.ID = r.nextItem
		}
		item.OrderID = order.ID
		// Снимок товара не сохраняется.
		item.Product = nil
		items[i] = item
	}
	order.Items = items

	r.orders[order.ID] = order
	r.byNumber[order.OrderNumber] = order.ID

	return cloneOrder(order), nil
}

// FindByID возвращает копию заказа или OrderNotFoundError.
func (r *orderRepositoryInMemory) FindByID(ctx context.Context, id int64) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return domain.Order{}, &domain.OrderNotFoundError{ID: id}
	}
	return cloneOrder(order), nil
}

// FindAll возвращает все заказы по возрастанию идентификатора.
func (r *orderRepositoryInMemory) FindAll(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, func(domain.Order) bool { return true })
}

// FindByUserID возвращает заказы пользователя по возрастанию идентификатора.
func (r *orderRepositoryInMemory) FindByUserID(ctx context.Context, userID int64) ([]domain.Order, error) {
	return r.list(ctx, func(o domain.Order) bool { return o.UserID == userID })
}

func (r *orderRepositoryInMemory) FindByOrderNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byNumber[orderNumber]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(r.orders[id]), nil
}

// FindLastOrderNumber возвращает номер заказа с наибольшим идентификатором.
func (r *orderRepositoryInMemory) FindLastOrderNumber(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		lastID int64
		number string
	)
	for id, order := range r.orders {
		if id > lastID {
			lastID = id
			number = order.OrderNumber
		}
	}
	return number, lastID > 0, nil
}

func (r *orderRepositoryInMemory) DeleteByID(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return nil
	}
	delete(r.byNumber, order.OrderNumber)
	delete(r.orders, id)
	return nil
}

func (r *orderRepositoryInMemory) list(ctx context.Context, match func(domain.Order) bool) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.orders))
	for _, order := range r.orders {
		if match(order) {
			result = append(result, cloneOrder(order))
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// cloneOrder копирует срез позиций, чтобы вызывающий код не мог изменить хранилище.
func cloneOrder(order domain.Order) domain.Order {
	items := make([]domain.OrderItem, len(order.Items))
	copy(items, order.Items)
	order.Items = items
	return order
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
