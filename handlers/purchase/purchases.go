package purchase

import (
	"errors"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/skillvault/api/model"
	"github.com/skillvault/api/services"
	"github.com/skillvault/api/services/payment"
	"github.com/skillvault/api/utils/middleware"
	"github.com/skillvault/api/utils/response"
	"github.com/skillvault/api/utils/validation"
)

// PurchaseHandler handles the buy/confirm flow and the purchase ledger
type PurchaseHandler struct {
	service   *services.PurchaseService
	validator *validation.Validator
}

// NewPurchaseHandler creates a new purchase handler
func NewPurchaseHandler(service *services.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{
		service:   service,
		validator: validation.NewValidator(),
	}
}

// BuyResponse is the payload of a successful purchase initiation
type BuyResponse struct {
	Course       *model.Course `json:"course"`
	ClientSecret string        `json:"client_secret"`
}

// ConfirmRequest represents the purchase confirmation body
type ConfirmRequest struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"required"`
	CourseID        uint   `json:"course_id" validate:"required"`
}

// BuyCourse handles POST /api/v1/courses/:id/buy
func (h *PurchaseHandler) BuyCourse(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	courseID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid course ID")
	}

	result, err := h.service.InitiatePurchase(c.UserContext(), user, uint(courseID))
	if err != nil {
		return h.mapPurchaseError(c, err)
	}

	return response.Success(c, BuyResponse{
		Course:       result.Course,
		ClientSecret: result.ClientSecret,
	})
}

// ConfirmPurchase handles POST /api/v1/purchases/confirm
func (h *PurchaseHandler) ConfirmPurchase(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req ConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	purchase, err := h.service.ConfirmPurchase(c.UserContext(), user.ID, req.CourseID, req.PaymentIntentID)
	if err != nil {
		return h.mapPurchaseError(c, err)
	}

	return response.Created(c, "Purchase confirmed", purchase)
}

// ListPurchases handles GET /api/v1/purchases
func (h *PurchaseHandler) ListPurchases(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	purchases, err := h.service.ListPurchases(c.UserContext(), user.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch purchases")
	}

	return response.Success(c, fiber.Map{"purchases": purchases})
}

// mapPurchaseError translates purchase-flow errors into API responses.
// Gateway failures get a 502 with a generic body; the detail stays in logs.
func (h *PurchaseHandler) mapPurchaseError(c *fiber.Ctx, err error) error {
	var gwErr *payment.GatewayError
	switch {
	case errors.Is(err, services.ErrCourseNotFound):
		return response.NotFound(c, "Course not found")
	case errors.Is(err, services.ErrAlreadyPurchased):
		return response.Error(c, fiber.StatusBadRequest, "Course already purchased", "ALREADY_PURCHASED")
	case errors.Is(err, services.ErrPaymentNotSuccessful):
		return response.Error(c, fiber.StatusBadRequest, "Payment has not succeeded", "PAYMENT_NOT_SUCCESSFUL")
	case errors.As(err, &gwErr):
		log.Printf("payment gateway error during %s: %v", gwErr.Op, gwErr.Err)
		return response.BadGateway(c, "Payment provider is unavailable")
	default:
		log.Printf("purchase flow error: %v", err)
		return response.InternalServerError(c, "Something went wrong")
	}
}
