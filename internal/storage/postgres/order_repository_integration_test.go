package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

func sampleOrder(number string, userID int64, createdAt time.Time) domain.Order {
	return domain.Order{
		OrderNumber: number,
		UserID:      userID,
		Status:      domain.OrderStatusPending,
		TotalAmount: decimal.RequireFromString("25.00"),
		Items: []domain.OrderItem{
			{
				ProductID: 1,
				Quantity:  2,
				UnitPrice: decimal.NewNullDecimal(decimal.RequireFromString("10.00")),
				Subtotal:  decimal.NewNullDecimal(decimal.RequireFromString("20.00")),
			},
			{
				ProductID: 2,
				Quantity:  1,
				UnitPrice: decimal.NewNullDecimal(decimal.RequireFromString("5.00")),
				Subtotal:  decimal.NewNullDecimal(decimal.RequireFromString("5.00")),
			},
		},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestOrderRepository_PostgresSaveAndFind(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	now := time.Now().UTC().Round(time.Microsecond)

	if _, ok, err := repo.FindLastOrderNumber(ctx); err != nil || ok {
		t.Fatalf("expected empty store, ok=%v err=%v", ok, err)
	}

	first, err := repo.Save(ctx, sampleOrder("ORD-2025-001", 1, now))
	if err != nil {
		t.Fatalf("save first: %v", err)
	}
	if first.ID == 0 || first.Items[0].ID == 0 || first.Items[1].OrderID != first.ID {
		t.Fatalf("expected assigned ids, got %+v", first)
	}
	if _, err := repo.Save(ctx, sampleOrder("ORD-2025-002", 2, now)); err != nil {
		t.Fatalf("save second: %v", err)
	}

	got, err := repo.FindByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if got.OrderNumber != "ORD-2025-001" || got.Status != domain.OrderStatusPending {
		t.Fatalf("unexpected order payload: %+v", got)
	}
	if got.TotalAmount.StringFixed(2) != "25.00" {
		t.Fatalf("expected total 25.00, got %s", got.TotalAmount.StringFixed(2))
	}
	if len(got.Items) != 2 || got.Items[0].ProductID != 1 || got.Items[1].ProductID != 2 {
		t.Fatalf("unexpected items: %+v", got.Items)
	}
	if got.Items[0].Subtotal.Decimal.StringFixed(2) != "20.00" {
		t.Fatalf("unexpected subtotal: %s", got.Items[0].Subtotal.Decimal)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("created_at mismatch: got=%s want=%s", got.CreatedAt, now)
	}

	all, err := repo.FindAll(ctx)
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(all) != 2 || all[0].ID >= all[1].ID {
		t.Fatalf("unexpected find all result: %+v", all)
	}

	mine, err := repo.FindByUserID(ctx, 2)
	if err != nil {
		t.Fatalf("find by user: %v", err)
	}
	if len(mine) != 1 || mine[0].OrderNumber != "ORD-2025-002" {
		t.Fatalf("unexpected user orders: %+v", mine)
	}

	byNumber, err := repo.FindByOrderNumber(ctx, "ORD-2025-002")
	if err != nil {
		t.Fatalf("find by number: %v", err)
	}
	if byNumber.UserID != 2 {
		t.Fatalf("unexpected order by number: %+v", byNumber)
	}

	last, ok, err := repo.FindLastOrderNumber(ctx)
	if err != nil || !ok || last != "ORD-2025-002" {
		t.Fatalf("unexpected last order number: %q ok=%v err=%v", last, ok, err)
	}

	if err := repo.DeleteByID(ctx, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.FindByID(ctx, first.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound after delete, got %v", err)
	}
}

func TestOrderRepository_PostgresDuplicateNumberRollsBack(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := repo.Save(ctx, sampleOrder("ORD-2025-001", 1, now)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := repo.Save(ctx, sampleOrder("ORD-2025-001", 2, now)); !errors.Is(err, domain.ErrDuplicateOrderNumber) {
		t.Fatalf("expected ErrDuplicateOrderNumber, got %v", err)
	}

	var items int
	if err := store.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM order_items`).Scan(&items); err != nil {
		t.Fatalf("count items: %v", err)
	}
	if items != 2 {
		t.Fatalf("expected only first order items to persist, got %d", items)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("expected unique violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatal("foreign key violation is not unique violation")
	}
	if isUniqueViolation(errors.New("plain")) {
		t.Fatal("plain error is not unique violation")
	}
}
