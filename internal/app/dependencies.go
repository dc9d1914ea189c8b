package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/service/product"
	"github.com/vladislavdragonenkov/orders/internal/storage/memory"
	"github.com/vladislavdragonenkov/orders/internal/storage/postgres"
)

// ProductService - каталог товаров с проверкой доступности.
type ProductService interface {
	domain.ProductLookup
	Ping(ctx context.Context) error
}

// Dependencies содержит хранилища и внешние клиенты приложения.
type Dependencies struct {
	Repo       domain.OrderRepository
	OutboxRepo domain.OutboxRepository
	Products   ProductService
	Store      *postgres.Store
	Logger     *log.Entry
}

// NewDependencies создаёт хранилище по storage.driver и клиент каталога товаров.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{Logger: logger}

	switch cfg.StorageDriver {
	case "", StorageDriverMemory:
		deps.Repo = memory.NewOrderRepository()
		deps.OutboxRepo = memory.NewOutboxRepository()
		logger.Info("using in-memory storage")
	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("postgres dsn is required for postgres storage driver")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
		}
		deps.Store = store
		deps.Repo = postgres.NewOrderRepository(store)
		deps.OutboxRepo = postgres.NewOutboxRepository(store)
		logger.Info("using postgres storage")
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	if cfg.ProductFake {
		deps.Products = demoCatalog()
		logger.Warn("product lookups are served by the in-memory demo catalog")
	} else {
		deps.Products = product.NewClient(cfg.ProductBaseURL, cfg.ProductTimeout)
	}

	return deps, nil
}

// StoragePing проверяет доступность хранилища.
func (d *Dependencies) StoragePing(ctx context.Context) error {
	if d.Store == nil {
		return nil
	}
	return d.Store.Ping(ctx)
}

// Close освобождает ресурсы хранилища.
func (d *Dependencies) Close() error {
	if d == nil || d.Store == nil {
		return nil
	}
	return d.Store.Close()
}

func demoCatalog() *product.Catalog {
	return product.NewCatalog(
		domain.Product{ID: 1, Name: "Laptop", Description: "14-inch ultrabook", Price: decimal.RequireFromString("1299.99")},
		domain.Product{ID: 2, Name: "Mouse", Description: "Wireless mouse", Price: decimal.RequireFromString("25.00")},
		domain.Product{ID: 3, Name: "Keyboard", Description: "Mechanical keyboard", Price: decimal.RequireFromString("89.50")},
	)
}
