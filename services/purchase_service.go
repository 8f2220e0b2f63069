package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/skillvault/api/model"
	"github.com/skillvault/api/repository"
	"github.com/skillvault/api/services/payment"
	"gorm.io/gorm"
)

// Purchase-flow business errors. Handlers map these to 4xx responses with
// stable reason codes; anything else is a server fault.
var (
	ErrCourseNotFound       = errors.New("course not found")
	ErrAlreadyPurchased     = errors.New("course already purchased")
	ErrDuplicateOrder       = errors.New("order already exists")
	ErrPaymentNotSuccessful = errors.New("payment not successful")
)

// Currency all courses are priced in.
const purchaseCurrency = "usd"

// PurchaseService orchestrates the purchase flow: intent creation, purchase
// confirmation and order recording. Correctness under concurrent confirms
// rests on the ledgers' unique constraints, not on locking here.
type PurchaseService struct {
	db           *gorm.DB
	gateway      payment.Gateway
	purchaseRepo repository.PurchaseRepository
	orderRepo    repository.OrderRepository
}

// NewPurchaseService creates a new purchase service
func NewPurchaseService(db *gorm.DB, gateway payment.Gateway) *PurchaseService {
	return &PurchaseService{
		db:           db,
		gateway:      gateway,
		purchaseRepo: repository.NewPurchaseRepository(db),
		orderRepo:    repository.NewOrderRepository(db),
	}
}

// InitiateResult is what a buyer needs to complete payment client-side.
type InitiateResult struct {
	Course       *model.Course
	ClientSecret string
}

// InitiatePurchase checks the course exists and is not already owned, then
// creates a payment intent for the course price. No purchase row is written
// here: an abandoned checkout leaves nothing behind, and the intent simply
// expires on the gateway side.
func (s *PurchaseService) InitiatePurchase(ctx context.Context, user *model.User, courseID uint) (*InitiateResult, error) {
	var course model.Course
	if err := s.db.WithContext(ctx).First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("load course: %w", err)
	}

	existing, err := s.purchaseRepo.FindCompleted(ctx, user.ID, courseID)
	if err != nil {
		return nil, fmt.Errorf("check existing purchase: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadyPurchased
	}

	customerID, err := s.gateway.FindOrCreateCustomer(ctx, user.Email, user.FullName())
	if err != nil {
		return nil, err
	}

	amount := int64(math.Round(course.Price * 100))
	intent, err := s.gateway.CreatePaymentIntent(ctx, customerID, amount, purchaseCurrency)
	if err != nil {
		return nil, err
	}

	return &InitiateResult{
		Course:       &course,
		ClientSecret: intent.ClientSecret,
	}, nil
}

// ConfirmPurchase verifies with the gateway that the payment intent
// succeeded, then records the completed purchase. It is idempotent: a repeat
// call for an already-owned course fails with ErrAlreadyPurchased, and a
// concurrent duplicate loses the race on the completed-pair index.
func (s *PurchaseService) ConfirmPurchase(ctx context.Context, userID, courseID uint, paymentIntentID string) (*model.Purchase, error) {
	intent, err := s.gateway.RetrievePaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return nil, err
	}
	if intent.Status != payment.IntentStatusSucceeded {
		return nil, ErrPaymentNotSuccessful
	}

	existing, err := s.purchaseRepo.FindCompleted(ctx, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("check existing purchase: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadyPurchased
	}

	purchase, err := s.purchaseRepo.MarkCompleted(ctx, nil, userID, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyPurchased
		}
		return nil, fmt.Errorf("record completed purchase: %w", err)
	}

	return purchase, nil
}

// RecordOrderInput carries the raw payment fields posted by the legacy
// client flow.
type RecordOrderInput struct {
	Email     string
	UserID    uint
	CourseID  uint
	PaymentID string
	Amount    float64
	Status    string
}

// RecordOrder writes an order ledger entry and ensures a completed purchase
// exists for the pair, in one transaction. The unique payment id is the sole
// idempotency check on this path; payment status is not re-verified with the
// gateway. An already-owned course does not fail the order write.
func (s *PurchaseService) RecordOrder(ctx context.Context, in RecordOrderInput) (*model.Order, error) {
	order := &model.Order{
		PaymentID: in.PaymentID,
		Email:     in.Email,
		UserID:    in.UserID,
		CourseID:  in.CourseID,
		Amount:    in.Amount,
		Status:    in.Status,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateOrder
			}
			return fmt.Errorf("store order: %w", err)
		}

		if _, err := s.purchaseRepo.MarkCompleted(ctx, tx, in.UserID, in.CourseID); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Purchase already completed through another path; the order
				// entry still stands.
				return nil
			}
			return fmt.Errorf("record completed purchase: %w", err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return order, nil
}

// ListPurchases returns the user's completed purchases with course data.
// Purchases whose course has since been deleted are silently filtered out
// rather than surfaced as dangling references.
func (s *PurchaseService) ListPurchases(ctx context.Context, userID uint) ([]model.Purchase, error) {
	purchases, err := s.purchaseRepo.ListCompletedByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}

	valid := make([]model.Purchase, 0, len(purchases))
	for _, p := range purchases {
		if p.Course.ID == 0 {
			continue
		}
		valid = append(valid, p)
	}

	return valid, nil
}
