package order

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/skillvault/api/services"
	"github.com/skillvault/api/utils/middleware"
	"github.com/skillvault/api/utils/response"
	"github.com/skillvault/api/utils/validation"
)

// OrderHandler accepts client-posted order receipts
type OrderHandler struct {
	service   *services.PurchaseService
	validator *validation.Validator
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(service *services.PurchaseService) *OrderHandler {
	return &OrderHandler{
		service:   service,
		validator: validation.NewValidator(),
	}
}

// RecordOrderRequest represents the order recording body
type RecordOrderRequest struct {
	Email     string  `json:"email" validate:"required,email"`
	UserID    uint    `json:"user_id" validate:"required"`
	CourseID  uint    `json:"course_id" validate:"required"`
	PaymentID string  `json:"payment_id" validate:"required,max=100"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Status    string  `json:"status" validate:"required"`
}

// RecordOrder handles POST /api/v1/orders
func (h *OrderHandler) RecordOrder(c *fiber.Ctx) error {
	if _, ok := middleware.GetUser(c); !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req RecordOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	order, err := h.service.RecordOrder(c.UserContext(), services.RecordOrderInput{
		Email:     req.Email,
		UserID:    req.UserID,
		CourseID:  req.CourseID,
		PaymentID: req.PaymentID,
		Amount:    req.Amount,
		Status:    req.Status,
	})
	if err != nil {
		if errors.Is(err, services.ErrDuplicateOrder) {
			return response.Error(c, fiber.StatusBadRequest, "Order already exists", "DUPLICATE_ORDER")
		}
		log.Printf("order recording error: %v", err)
		return response.InternalServerError(c, "Failed to record order")
	}

	return response.Created(c, "Order recorded", order)
}
