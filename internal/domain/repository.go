package domain

import "context"

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Save сохраняет заказ вместе со всеми позициями как единое целое
	// и возвращает состояние с назначенными идентификаторами.
	Save(ctx context.Context, order Order) (Order, error)
	// FindByID возвращает заказ или ошибку с ErrOrderNotFound.
	FindByID(ctx context.Context, id int64) (Order, error)
	// FindAll возвращает все заказы в порядке создания.
	FindAll(ctx context.Context) ([]Order, error)
	// FindByUserID возвращает заказы пользователя в порядке создания.
	FindByUserID(ctx context.Context, userID int64) ([]Order, error)
	// FindByOrderNumber возвращает заказ по номеру или ошибку с ErrOrderNotFound.
	FindByOrderNumber(ctx context.Context, orderNumber string) (Order, error)
	// FindLastOrderNumber возвращает номер последнего созданного заказа; ok=false, если заказов нет.
	FindLastOrderNumber(ctx context.Context) (number string, ok bool, err error)
	// DeleteByID удаляет заказ вместе с позициями.
	DeleteByID(ctx context.Context, id int64) error
}
