package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOrder - заказ не прошёл валидацию или не удалось проверить товар.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrProductNotFound возвращается ProductLookup, если товара нет в Product Service.
	ErrProductNotFound = errors.New("product not found")
	// ErrDuplicateOrderNumber - номер заказа уже занят в хранилище.
	ErrDuplicateOrderNumber = errors.New("order number already exists")
	// ErrOrderNumberFormat - номер заказа не соответствует формату ORD-YYYY-NNN.
	ErrOrderNumberFormat = errors.New("unexpected order number format")
	// ErrOutboxPublish - ошибка при работе с сообщением outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// Ошибка отсутствующего или неположительного user_id.
	ErrUserRequired = errors.New("user id must be a positive integer")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отсутствующего или неположительного product_id.
	ErrItemProductRequired = errors.New("item product id must be a positive integer")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQuantityInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item unit price must be non-negative")
	// Ошибка, если subtotal позиции отрицательный.
	ErrItemSubtotalInvalid = errors.New("item subtotal must be non-negative")
)

// InvalidOrderError описывает причину отказа в создании заказа.
// ProductID заполняется, если отказ связан с проверкой конкретного товара.
type InvalidOrderError struct {
	Reason    string
	ProductID int64
	Err       error
}

// NewInvalidOrder создаёт InvalidOrderError без привязки к товару.
func NewInvalidOrder(reason string, cause error) *InvalidOrderError {
	return &InvalidOrderError{Reason: reason, Err: cause}
}

func (e *InvalidOrderError) Error() string {
	msg := e.Reason
	if e.ProductID > 0 {
		msg = fmt.Sprintf("error validating product %d", e.ProductID)
		if e.Reason != "" {
			msg += ": " + e.Reason
		}
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// PublicMessage возвращает текст для клиента без деталей нижележащей ошибки товара.
// Ошибки проверки запроса возвращаются целиком.
func (e *InvalidOrderError) PublicMessage() string {
	if e.ProductID <= 0 {
		return e.Error()
	}
	msg := fmt.Sprintf("error validating product %d", e.ProductID)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidOrderError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidOrder}
	}
	return []error{ErrInvalidOrder, e.Err}
}

// ProductNotFoundError указывает товар, которого нет в Product Service.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product with id %d not found in product service", e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error {
	return ErrProductNotFound
}

// OrderNotFoundError указывает отсутствующий заказ.
type OrderNotFoundError struct {
	ID int64
}

func (e *OrderNotFoundError) Error() string {
	return fmt.Sprintf("order with id %d not found", e.ID)
}

func (e *OrderNotFoundError) Unwrap() error {
	return ErrOrderNotFound
}

// IsInvalidOrder проверяет, относится ли ошибка к классу InvalidOrder.
func IsInvalidOrder(err error) bool {
	return errors.Is(err, ErrInvalidOrder)
}

// IsNotFound проверяет, что ошибка означает отсутствие заказа или товара.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrProductNotFound)
}
