package order

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/skillvault/api/database"
	"github.com/skillvault/api/model"
	"github.com/skillvault/api/services"
	"github.com/skillvault/api/services/payment"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type noopGateway struct{}

func (noopGateway) FindOrCreateCustomer(ctx context.Context, email, name string) (string, error) {
	return "cus_test", nil
}

func (noopGateway) CreatePaymentIntent(ctx context.Context, customerID string, amount int64, currency string) (*payment.Intent, error) {
	return &payment.Intent{ID: "pi_test"}, nil
}

func (noopGateway) RetrievePaymentIntent(ctx context.Context, id string) (*payment.Intent, error) {
	return &payment.Intent{ID: id, Status: payment.IntentStatusSucceeded}, nil
}

func setupTestApp(t *testing.T) (*fiber.App, *gorm.DB, *model.User) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&model.User{}, &model.Purchase{}, &model.Order{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if err := database.EnsurePurchaseConstraints(db); err != nil {
		t.Fatalf("failed to create purchase constraints: %v", err)
	}

	user := &model.User{FirstName: "Test", LastName: "Buyer", Email: "buyer@example.com", PasswordHash: "x"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	handler := NewOrderHandler(services.NewPurchaseService(db, noopGateway{}))

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user", user)
		c.Locals("user_id", user.ID)
		return c.Next()
	})
	app.Post("/api/v1/orders", handler.RecordOrder)

	return app, db, user
}

func postOrder(t *testing.T, app *fiber.App, body interface{}) *http.Response {
	t.Helper()

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewBuffer(raw))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func TestRecordOrderCreatesOrderAndPurchase(t *testing.T) {
	app, db, user := setupTestApp(t)

	resp := postOrder(t, app, RecordOrderRequest{
		Email:     user.Email,
		UserID:    user.ID,
		CourseID:  7,
		PaymentID: "pi_order_1",
		Amount:    19.99,
		Status:    "succeeded",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var orders, purchases int64
	if err := db.Model(&model.Order{}).Count(&orders).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if err := db.Model(&model.Purchase{}).Where("status = ?", model.PurchaseStatusCompleted).Count(&purchases).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if orders != 1 || purchases != 1 {
		t.Errorf("expected 1 order and 1 completed purchase, got %d and %d", orders, purchases)
	}
}

func TestRecordOrderDuplicateIsRejected(t *testing.T) {
	app, db, user := setupTestApp(t)

	body := RecordOrderRequest{
		Email:     user.Email,
		UserID:    user.ID,
		CourseID:  7,
		PaymentID: "pi_order_dup",
		Amount:    19.99,
		Status:    "succeeded",
	}
	if resp := postOrder(t, app, body); resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 on first write, got %d", resp.StatusCode)
	}

	resp := postOrder(t, app, body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 on replay, got %d", resp.StatusCode)
	}

	var parsed struct {
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if parsed.Error == nil || parsed.Error.Code != "DUPLICATE_ORDER" {
		t.Errorf("expected DUPLICATE_ORDER error code, got %+v", parsed.Error)
	}

	var orders int64
	if err := db.Model(&model.Order{}).Count(&orders).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if orders != 1 {
		t.Errorf("expected exactly one order row, got %d", orders)
	}
}

func TestRecordOrderRejectsMissingFields(t *testing.T) {
	app, _, _ := setupTestApp(t)

	resp := postOrder(t, app, fiber.Map{"email": "buyer@example.com"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing fields, got %d", resp.StatusCode)
	}
}
