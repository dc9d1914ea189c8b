package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

var orderColumns = []string{"id", "order_number", "user_id", "status", "total_amount", "created_at", "updated_at"}

type orderRepository struct {
	store *Store
	db    *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{store: store, db: store.DB()}
}

// Save вставляет заказ и все его позиции в одной транзакции.
func (r *orderRepository) Save(ctx context.Context, order domain.Order) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var saved domain.Order
	err := r.store.InTx(ctx, func(tx *sql.Tx) error {
		var err error
		saved, err = insertOrder(ctx, tx, order)
		return err
	})
	if err != nil {
		return domain.Order{}, err
	}
	return saved, nil
}

func insertOrder(ctx context.Context, tx *sql.Tx, order domain.Order) (domain.Order, error) {
	query, args, err := psql.Insert("orders").
		Columns("order_number", "user_id", "status", "total_amount", "created_at", "updated_at").
		Values(order.OrderNumber, order.UserID, string(order.Status), order.TotalAmount, order.CreatedAt, order.UpdatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return domain.Order{}, fmt.Errorf("build insert order: %w", err)
	}

	if err = tx.QueryRowContext(ctx, query, args...).Scan(&order.ID); err != nil {
		if isUniqueViolation(err) {
			return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrDuplicateOrderNumber, order.OrderNumber)
		}
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}

	items := make([]domain.OrderItem, len(order.Items))
	for i, item := range order.Items {
		query, args, err = psql.Insert("order_items").
			Columns("order_id", "product_id", "quantity", "unit_price", "subtotal").
			Values(order.ID, item.ProductID, item.Quantity, item.UnitPrice, item.Subtotal).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return domain.Order{}, fmt.Errorf("build insert order item: %w", err)
		}
		if err = tx.QueryRowContext(ctx, query, args...).Scan(&item.ID); err != nil {
			return domain.Order{}, fmt.Errorf("insert order item: %w", err)
		}
		item.OrderID = order.ID
		item.Product = nil
		items[i] = item
	}
	order.Items = items

	return order, nil
}

func (r *orderRepository) FindByID(ctx context.Context, id int64) (domain.Order, error) {
	orders, err := r.selectOrders(ctx, sq.Eq{"id": id})
	if err != nil {
		return domain.Order{}, err
	}
	if len(orders) == 0 {
		return domain.Order{}, &domain.OrderNotFoundError{ID: id}
	}
	return orders[0], nil
}

func (r *orderRepository) FindAll(ctx context.Context) ([]domain.Order, error) {
	return r.selectOrders(ctx, nil)
}

func (r *orderRepository) FindByUserID(ctx context.Context, userID int64) ([]domain.Order, error) {
	return r.selectOrders(ctx, sq.Eq{"user_id": userID})
}

func (r *orderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	orders, err := r.selectOrders(ctx, sq.Eq{"order_number": orderNumber})
	if err != nil {
		return domain.Order{}, err
	}
	if len(orders) == 0 {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return orders[0], nil
}

// FindLastOrderNumber возвращает номер заказа с наибольшим id.
func (r *orderRepository) FindLastOrderNumber(ctx context.Context) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query, args, err := psql.Select("order_number").From("orders").OrderBy("id DESC").Limit(1).ToSql()
	if err != nil {
		return "", false, fmt.Errorf("build last order number query: %w", err)
	}

	var number string
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&number); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("select last order number: %w", err)
	}
	return number, true, nil
}

// DeleteByID удаляет заказ; позиции удаляются каскадно.
func (r *orderRepository) DeleteByID(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query, args, err := psql.Delete("orders").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete order: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete order %d: %w", id, err)
	}
	return nil
}

// selectOrders загружает заказы по условию и подгружает их позиции одним запросом.
func (r *orderRepository) selectOrders(ctx context.Context, where sq.Sqlizer) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	builder := psql.Select(orderColumns...).From("orders").OrderBy("id")
	if where != nil {
		builder = builder.Where(where)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select orders: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		var (
			order  domain.Order
			status string
		)
		if err := rows.Scan(
			&order.ID, &order.OrderNumber, &order.UserID, &status,
			&order.TotalAmount, &order.CreatedAt, &order.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		order.Status = domain.OrderStatus(status)
		order.Items = make([]domain.OrderItem, 0)
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	if len(ids) == 0 {
		return orders, nil
	}

	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if list, ok := items[orders[i].ID]; ok {
			orders[i].Items = list
		}
	}

	return orders, nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderIDs []int64) (map[int64][]domain.OrderItem, error) {
	query, args, err := psql.
		Select("id", "order_id", "product_id", "quantity", "unit_price", "subtotal").
		From("order_items").
		Where(sq.Eq{"order_id": orderIDs}).
		OrderBy("order_id", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build load order items: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	result := make(map[int64][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.Subtotal); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		result[item.OrderID] = append(result[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return result, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
