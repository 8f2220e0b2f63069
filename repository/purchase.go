package repository

import (
	"context"
	"errors"
	"time"

	"github.com/skillvault/api/model"
	"gorm.io/gorm"
)

// PurchaseRepository is the durable ledger of course ownership per
// (user, course) pair.
type PurchaseRepository interface {
	// FindCompleted returns the completed purchase for the pair, or nil when
	// none exists.
	FindCompleted(ctx context.Context, userID, courseID uint) (*model.Purchase, error)

	// CreatePending inserts a pending row. Callers must have checked that no
	// completed row exists for the pair.
	CreatePending(ctx context.Context, userID, courseID uint) (*model.Purchase, error)

	// MarkCompleted promotes the pair's pending row to completed, or inserts
	// a completed row when no pending one exists. The partial unique index on
	// completed rows makes concurrent calls for the same pair resolve to a
	// single winner; losers get gorm.ErrDuplicatedKey.
	MarkCompleted(ctx context.Context, tx *gorm.DB, userID, courseID uint) (*model.Purchase, error)

	// ListCompletedByUser returns the user's completed purchases ordered by
	// creation time, with the course preloaded.
	ListCompletedByUser(ctx context.Context, userID uint) ([]model.Purchase, error)

	// ExpirePendingOlderThan marks pending rows created before cutoff as
	// failed and reports how many rows changed.
	ExpirePendingOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type purchaseRepoImpl struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) PurchaseRepository {
	return &purchaseRepoImpl{
		db: db,
	}
}

func (r *purchaseRepoImpl) FindCompleted(ctx context.Context, userID, courseID uint) (*model.Purchase, error) {
	var purchase model.Purchase
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ? AND status = ?", userID, courseID, model.PurchaseStatusCompleted).
		First(&purchase).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &purchase, nil
}

func (r *purchaseRepoImpl) CreatePending(ctx context.Context, userID, courseID uint) (*model.Purchase, error) {
	purchase := model.Purchase{
		UserID:   userID,
		CourseID: courseID,
		Status:   model.PurchaseStatusPending,
	}
	if err := r.db.WithContext(ctx).Create(&purchase).Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *purchaseRepoImpl) MarkCompleted(ctx context.Context, tx *gorm.DB, userID, courseID uint) (*model.Purchase, error) {
	if tx == nil {
		tx = r.db
	}

	var purchase model.Purchase
	err := tx.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Promote an existing pending row first. RowsAffected == 0 means there
		// was none and a completed row is inserted instead; the partial
		// unique index rejects a second completed row for the pair.
		result := tx.Model(&model.Purchase{}).
			Where("user_id = ? AND course_id = ? AND status = ?", userID, courseID, model.PurchaseStatusPending).
			Update("status", model.PurchaseStatusCompleted)
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			purchase = model.Purchase{
				UserID:   userID,
				CourseID: courseID,
				Status:   model.PurchaseStatusCompleted,
			}
			return tx.Create(&purchase).Error
		}

		return tx.
			Where("user_id = ? AND course_id = ? AND status = ?", userID, courseID, model.PurchaseStatusCompleted).
			First(&purchase).Error
	})

	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *purchaseRepoImpl) ListCompletedByUser(ctx context.Context, userID uint) ([]model.Purchase, error) {
	var purchases []model.Purchase
	err := r.db.WithContext(ctx).
		Preload("Course").
		Where("user_id = ? AND status = ?", userID, model.PurchaseStatusCompleted).
		Order("created_at ASC").
		Find(&purchases).Error

	if err != nil {
		return nil, err
	}

	return purchases, nil
}

func (r *purchaseRepoImpl) ExpirePendingOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.Purchase{}).
		Where("status = ? AND created_at < ?", model.PurchaseStatusPending, cutoff).
		Update("status", model.PurchaseStatusFailed)

	return result.RowsAffected, result.Error
}
