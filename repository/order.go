package repository

import (
	"context"
	"errors"

	"github.com/skillvault/api/model"
	"gorm.io/gorm"
)

// OrderRepository is the durable ledger of payment transactions, one row per
// processor payment id.
type OrderRepository interface {
	// FindByPaymentID returns the order for the payment id, or nil when none
	// exists.
	FindByPaymentID(ctx context.Context, paymentID string) (*model.Order, error)

	// Create inserts an order. A second insert for the same payment id fails
	// with gorm.ErrDuplicatedKey; that is the replay guard.
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func (r *orderRepoImpl) FindByPaymentID(ctx context.Context, paymentID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		First(&order).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(order).Error
}
