package httpapi

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

type createOrderRequest struct {
	UserID *int64                   `json:"userId"`
	Items  []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	ProductID *int64 `json:"productId"`
	Quantity  *int   `json:"quantity"`
}

// validate возвращает ошибки по полям запроса; пустой map означает корректный запрос.
func (r createOrderRequest) validate() map[string]string {
	errs := make(map[string]string)

	switch {
	case r.UserID == nil:
		errs["userId"] = "User ID is required"
	case *r.UserID <= 0:
		errs["userId"] = "User ID must be positive"
	}

	if len(r.Items) == 0 {
		errs["items"] = "Order must contain at least one item"
	}
	for i, item := range r.Items {
		switch {
		case item.ProductID == nil:
			errs[fmt.Sprintf("items[%d].productId", i)] = "Product ID is required"
		case *item.ProductID <= 0:
			errs[fmt.Sprintf("items[%d].productId", i)] = "Product ID must be positive"
		}
		switch {
		case item.Quantity == nil:
			errs[fmt.Sprintf("items[%d].quantity", i)] = "Quantity is required"
		case *item.Quantity < 1:
			errs[fmt.Sprintf("items[%d].quantity", i)] = "Quantity must be at least 1"
		}
	}

	return errs
}

func (r createOrderRequest) toDomain() domain.Order {
	order := domain.Order{Items: make([]domain.OrderItem, 0, len(r.Items))}
	if r.UserID != nil {
		order.UserID = *r.UserID
	}
	for _, item := range r.Items {
		var it domain.OrderItem
		if item.ProductID != nil {
			it.ProductID = *item.ProductID
		}
		if item.Quantity != nil {
			it.Quantity = *item.Quantity
		}
		order.Items = append(order.Items, it)
	}
	return order
}

type productResponse struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Price       json.Number `json:"price"`
	Stock       int         `json:"stock"`
	Category    string      `json:"category"`
}

type orderItemResponse struct {
	ID        int64            `json:"id"`
	ProductID int64            `json:"productId"`
	Product   *productResponse `json:"product"`
	Quantity  int              `json:"quantity"`
	UnitPrice *json.Number     `json:"unitPrice"`
	Subtotal  *json.Number     `json:"subtotal"`
}

type orderResponse struct {
	ID          int64               `json:"id"`
	OrderNumber string              `json:"orderNumber"`
	UserID      int64               `json:"userId"`
	Status      string              `json:"status"`
	TotalAmount json.Number         `json:"totalAmount"`
	Items       []orderItemResponse `json:"items"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

type errorResponse struct {
	Status    int               `json:"status"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// money рендерит сумму числом с двумя знаками после запятой.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(domain.MoneyScale))
}

func nullMoney(d decimal.NullDecimal) *json.Number {
	if !d.Valid {
		return nil
	}
	n := money(d.Decimal)
	return &n
}

func newOrderResponse(order domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		resp := orderItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: nullMoney(item.UnitPrice),
			Subtotal:  nullMoney(item.Subtotal),
		}
		if item.Product != nil {
			resp.Product = &productResponse{
				ID:          item.Product.ID,
				Name:        item.Product.Name,
				Description: item.Product.Description,
				Price:       money(item.Product.Price),
				Stock:       item.Product.Stock,
				Category:    item.Product.Category,
			}
		}
		items = append(items, resp)
	}

	return orderResponse{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Status:      string(order.Status),
		TotalAmount: money(order.TotalAmount),
		Items:       items,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
}

func newOrderListResponse(orders []domain.Order) []orderResponse {
	result := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		result = append(result, newOrderResponse(order))
	}
	return result
}
