package product

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

// Catalog - in-memory каталог товаров для локального запуска и тестов.
type Catalog struct {
	mu       sync.RWMutex
	products map[int64]domain.Product
	failures map[int64]error
	calls    int
}

// NewCatalog возвращает каталог с указанными товарами.
func NewCatalog(products ...domain.Product) *Catalog {
	c := &Catalog{
		products: make(map[int64]domain.Product, len(products)),
		failures: make(map[int64]error),
	}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

// Put добавляет или заменяет товар.
func (c *Catalog) Put(p domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

// Delete удаляет товар из каталога.
func (c *Catalog) Delete(productID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.products, productID)
}

// FailWith заставляет запросы по productID возвращать err. nil снимает сбой.
func (c *Catalog) FailWith(productID int64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.failures, productID)
		return
	}
	c.failures[productID] = err
}

// Calls возвращает количество обращений к каталогу.
func (c *Catalog) Calls() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calls
}

func (c *Catalog) GetProductByID(ctx context.Context, productID int64) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++

	if err, ok := c.failures[productID]; ok {
		return domain.Product{}, err
	}
	p, ok := c.products[productID]
	if !ok {
		return domain.Product{}, &domain.ProductNotFoundError{ProductID: productID}
	}
	return p, nil
}

// Ping всегда успешен.
func (c *Catalog) Ping(context.Context) error {
	return nil
}

var _ domain.ProductLookup = (*Catalog)(nil)
