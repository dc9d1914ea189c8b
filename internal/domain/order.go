package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа. Хранится символьным именем.
type OrderStatus string

const (
	// OrderStatusPending - начальный статус, выставляется при создании.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusConfirmed - заказ подтверждён.
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	// OrderStatusShipped - заказ передан в доставку.
	OrderStatusShipped OrderStatus = "SHIPPED"
	// OrderStatusDelivered - заказ доставлен покупателю.
	OrderStatusDelivered OrderStatus = "DELIVERED"
	// OrderStatusCancelled - заказ отменён.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

const (
	orderNumberPrefix = "ORD"
	// MoneyScale - количество знаков после запятой для денежных сумм.
	MoneyScale = 2
)

// Product - read-only проекция товара из Product Service.
// Не имеет собственного жизненного цикла в этом сервисе.
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Category    string
}

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	// ID и OrderID назначаются хранилищем.
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int
	// UnitPrice и Subtotal пусты до обогащения и всегда берутся из Product Service.
	UnitPrice decimal.NullDecimal
	Subtotal  decimal.NullDecimal
	// Product - снимок товара для отображения, не сохраняется.
	Product *Product
}

// Order агрегирует заказ пользователя и его позиции.
type Order struct {
	ID          int64
	OrderNumber string
	UserID      int64
	Status      OrderStatus
	TotalAmount decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Items       []OrderItem
}

// Validate проверяет позицию как до, так и после расчёта цены.
func (i OrderItem) Validate() []error {
	var errs []error

	if i.ProductID <= 0 {
		errs = append(errs, ErrItemProductRequired)
	}
	if i.Quantity <= 0 {
		errs = append(errs, ErrItemQuantityInvalid)
	}
	if i.UnitPrice.Valid && i.UnitPrice.Decimal.IsNegative() {
		errs = append(errs, ErrItemPriceInvalid)
	}
	if i.Subtotal.Valid && i.Subtotal.Decimal.IsNegative() {
		errs = append(errs, ErrItemSubtotalInvalid)
	}

	return errs
}

// IsValid сообщает, что позиция не нарушает инвариантов.
func (i OrderItem) IsValid() bool {
	return len(i.Validate()) == 0
}

// CalculateSubtotal возвращает точное unitPrice × quantity или ноль, если цена ещё не известна.
// Округление цены до MoneyScale выполняется один раз при оценке позиции.
func (i OrderItem) CalculateSubtotal() decimal.Decimal {
	if !i.UnitPrice.Valid || i.Quantity <= 0 {
		return decimal.Zero
	}
	return i.UnitPrice.Decimal.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Validate проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) Validate() []error {
	var errs []error

	if o.UserID <= 0 {
		errs = append(errs, ErrUserRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	for idx, item := range o.Items {
		for _, err := range item.Validate() {
			errs = append(errs, fmt.Errorf("items[%d]: %w", idx, err))
		}
	}

	return errs
}

// IsValid сообщает, что заказ можно передавать дальше по сценарию создания.
func (o *Order) IsValid() bool {
	return len(o.Validate()) == 0
}

// CalculateTotal суммирует subtotal всех позиций. Пустой список даёт ноль.
func (o *Order) CalculateTotal() decimal.Decimal {
	return CalculateTotal(o.Items)
}

// CalculateTotal суммирует subtotal позиций; позиции без subtotal не учитываются.
func CalculateTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		if item.Subtotal.Valid {
			total = total.Add(item.Subtotal.Decimal)
		}
	}
	return total
}

// NormalizePrice приводит цену к точности хранения денежных сумм.
func NormalizePrice(price decimal.Decimal) decimal.Decimal {
	return price.Round(MoneyScale)
}

// GenerateOrderNumber форматирует номер как ORD-<год>-<последовательность не короче 3 цифр>.
func GenerateOrderNumber(sequence int64, year int) string {
	return fmt.Sprintf("%s-%d-%03d", orderNumberPrefix, year, sequence)
}

// ParseOrderSequence извлекает числовой суффикс из номера формата ORD-YYYY-NNN.
func ParseOrderSequence(orderNumber string) (int64, error) {
	parts := strings.Split(orderNumber, "-")
	if len(parts) != 3 || parts[0] != orderNumberPrefix || !isYear(parts[1]) {
		return 0, fmt.Errorf("%w: %q", ErrOrderNumberFormat, orderNumber)
	}

	seq, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || seq < 0 {
		return 0, fmt.Errorf("%w: %q", ErrOrderNumberFormat, orderNumber)
	}

	return seq, nil
}

func isYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
