package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/skillvault/api/database"
	"github.com/skillvault/api/model"
	"github.com/skillvault/api/services/payment"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeGateway implements payment.Gateway in memory and counts calls so tests
// can assert which gateway operations a flow touched.
type fakeGateway struct {
	mu            sync.Mutex
	customerCalls int
	createCalls   int
	retrieveCalls int

	lastAmount   int64
	lastCurrency string

	intentStatus payment.IntentStatus
	failWith     error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{intentStatus: payment.IntentStatusSucceeded}
}

func (f *fakeGateway) FindOrCreateCustomer(ctx context.Context, email, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.customerCalls++
	if f.failWith != nil {
		return "", f.failWith
	}
	return "cus_test", nil
}

func (f *fakeGateway) CreatePaymentIntent(ctx context.Context, customerID string, amount int64, currency string) (*payment.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.lastAmount = amount
	f.lastCurrency = currency
	return &payment.Intent{
		ID:           fmt.Sprintf("pi_test_%d", f.createCalls),
		ClientSecret: "pi_test_secret",
		Status:       payment.IntentStatusRequiresPaymentMethod,
		Amount:       amount,
	}, nil
}

func (f *fakeGateway) RetrievePaymentIntent(ctx context.Context, id string) (*payment.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retrieveCalls++
	if f.failWith != nil {
		return nil, f.failWith
	}
	return &payment.Intent{ID: id, Status: f.intentStatus}, nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// A single connection keeps the in-memory database alive and serializes
	// concurrent access the way SQLite requires.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&model.User{},
		&model.Admin{},
		&model.Course{},
		&model.Purchase{},
		&model.Order{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if err := database.EnsurePurchaseConstraints(db); err != nil {
		t.Fatalf("failed to create purchase constraints: %v", err)
	}

	return db
}

func seedUserAndCourse(t *testing.T, db *gorm.DB, price float64) (*model.User, *model.Course) {
	t.Helper()

	user := &model.User{
		FirstName:    "Test",
		LastName:     "Buyer",
		Email:        fmt.Sprintf("buyer-%s@example.com", t.Name()),
		PasswordHash: "x",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	admin := &model.Admin{
		FirstName:    "Test",
		LastName:     "Admin",
		Email:        fmt.Sprintf("admin-%s@example.com", t.Name()),
		PasswordHash: "x",
	}
	if err := db.Create(admin).Error; err != nil {
		t.Fatalf("failed to seed admin: %v", err)
	}

	course := &model.Course{
		Title:       "Go for Backend Engineers",
		Description: "A complete course",
		Price:       price,
		CreatorID:   admin.ID,
	}
	if err := db.Create(course).Error; err != nil {
		t.Fatalf("failed to seed course: %v", err)
	}

	return user, course
}

func countPurchases(t *testing.T, db *gorm.DB, userID, courseID uint, status string) int64 {
	t.Helper()
	var n int64
	err := db.Model(&model.Purchase{}).
		Where("user_id = ? AND course_id = ? AND status = ?", userID, courseID, status).
		Count(&n).Error
	if err != nil {
		t.Fatalf("failed to count purchases: %v", err)
	}
	return n
}

func TestInitiatePurchaseCreatesIntentInCents(t *testing.T) {
	db := setupTestDB(t)
	gateway := newFakeGateway()
	svc := NewPurchaseService(db, gateway)
	user, course := seedUserAndCourse(t, db, 49.99)

	result, err := svc.InitiatePurchase(context.Background(), user, course.ID)
	if err != nil {
		t.Fatalf("InitiatePurchase failed: %v", err)
	}

	if result.ClientSecret != "pi_test_secret" {
		t.Errorf("expected client secret from gateway, got %q", result.ClientSecret)
	}
	if result.Course == nil || result.Course.ID != course.ID {
		t.Errorf("expected course %d in result, got %+v", course.ID, result.Course)
	}
	if gateway.lastAmount != 4999 {
		t.Errorf("expected amount 4999 cents, got %d", gateway.lastAmount)
	}
	if gateway.lastCurrency != "usd" {
		t.Errorf("expected currency usd, got %q", gateway.lastCurrency)
	}

	// Initiation must not write a purchase row.
	var n int64
	if err := db.Model(&model.Purchase{}).Count(&n).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no purchase rows after initiation, got %d", n)
	}
}

func TestInitiatePurchaseCourseNotFound(t *testing.T) {
	db := setupTestDB(t)
	gateway := newFakeGateway()
	svc := NewPurchaseService(db, gateway)
	user, _ := seedUserAndCourse(t, db, 10)

	_, err := svc.InitiatePurchase(context.Background(), user, 9999)
	if !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("expected ErrCourseNotFound, got %v", err)
	}
	if gateway.customerCalls != 0 || gateway.createCalls != 0 {
		t.Errorf("gateway must not be called for a missing course, got %d/%d calls",
			gateway.customerCalls, gateway.createCalls)
	}
}

func TestInitiatePurchaseAlreadyOwned(t *testing.T) {
	db := setupTestDB(t)
	gateway := newFakeGateway()
	svc := NewPurchaseService(db, gateway)
	user, course := seedUserAndCourse(t, db, 10)

	purchase := &model.Purchase{UserID: user.ID, CourseID: course.ID, Status: model.PurchaseStatusCompleted}
	if err := db.Create(purchase).Error; err != nil {
		t.Fatalf("failed to seed purchase: %v", err)
	}

	_, err := svc.InitiatePurchase(context.Background(), user, course.ID)
	if !errors.Is(err, ErrAlreadyPurchased) {
		t.Fatalf("expected ErrAlreadyPurchased, got %v", err)
	}
	if gateway.createCalls != 0 {
		t.Errorf("no intent should be created for an owned course, got %d calls", gateway.createCalls)
	}
}

func TestInitiatePurchaseGatewayFailure(t *testing.T) {
	db := setupTestDB(t)
	gateway := newFakeGateway()
	gateway.failWith = &payment.GatewayError{Op: "create payment intent", Err: errors.New("boom")}
	svc := NewPurchaseService(db, gateway)
	user, course := seedUserAndCourse(t, db, 10)

	_, err := svc.InitiatePurchase(context.Background(), user, course.ID)
	var gwErr *payment.GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError to propagate, got %v", err)
	}
}

func TestConfirmPurchaseSucceeds(t *testing.T) {
	db := setupTestDB(t)
	gateway := newFakeGateway()
	svc := NewPurchaseService(db, gateway)
	user, course := seedUserAndCourse(t, db, 10)

	purchase, err := svc.ConfirmPurchase(context.Background(), user.ID, course.ID, "pi_1")
	if err != nil {
		t.Fatalf("ConfirmPurchase failed: %v", err)
	}
	if purchase.Status != model.PurchaseStatusCompleted {
		t.Errorf("expected completed status, got %q", purchase.Status)
	}
	if n := countPurchases(t, db, user.ID, course.ID, model.PurchaseStatusCompleted); n != 1 {
		t.Errorf("expected exactly one completed purchase, got %d", n)
	}
}

func TestConfirmPurchaseIntentNotSucceeded(t *testing.T) {
	db := setupTestDB(t)
	gateway := newFakeGateway()
	gateway.intentStatus = payment.IntentStatusProcessing
	svc := NewPurchaseService(db, gateway)
	user, course := seedUserAndCourse(t, db, 10)

	_, err := svc.ConfirmPurchase(context.Background(), user.ID, course.ID, "pi_1")
	if !errors.Is(err, ErrPaymentNotSuccessful) {
		t.Fatalf("expected ErrPaymentNotSuccessful, got %v", err)
	}
	if n := countPurchases(t, db, user.ID, course.ID, model.PurchaseStatusCompleted); n != 0 {
		t.Errorf("no purchase should be recorded for an unsettled intent, got %d", n)
	}
}

func TestConfirmPurchaseTwice(t *testing.T) {
	db := setupTestDB(t)
	gateway := newFakeGateway()
	svc := NewPurchaseService(db, gateway)
	user, course := seedUserAndCourse(t, db, 10)

	if _, err := svc.ConfirmPurchase(context.Background(), user.ID, course.ID, "pi_1"); err != nil {
		t.Fatalf("first confirm failed: %v", err)
	}
	_, err := svc.ConfirmPurchase(context.Background(), user.ID, course.ID, "pi_1")
	if !errors.Is(err, ErrAlreadyPurchased) {
		t.Fatalf("expected ErrAlreadyPurchased on second confirm, got %v", err)
	}
	if n := countPurchases(t, db, user.ID, course.ID, model.PurchaseStatusCompleted); n != 1 {
		t.Errorf("expected exactly one completed purchase, got %d", n)
	}
}

func TestConfirmPurchaseConcurrent(t *testing.T) {
	db := setupTestDB(t)
	gateway := newFakeGateway()
	svc := NewPurchaseService(db, gateway)
	user, course := seedUserAndCourse(t, db, 10)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ConfirmPurchase(context.Background(), user.ID, course.ID, "pi_race")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var successes, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrAlreadyPurchased):
			conflicts++
		default:
			t.Errorf("unexpected error from concurrent confirm: %v", err)
		}
	}

	if successes != 1 {
		t.Errorf("expected exactly one confirm to win, got %d", successes)
	}
	if conflicts != attempts-1 {
		t.Errorf("expected %d conflicts, got %d", attempts-1, conflicts)
	}
	if n := countPurchases(t, db, user.ID, course.ID, model.PurchaseStatusCompleted); n != 1 {
		t.Errorf("expected exactly one completed purchase row, got %d", n)
	}
}

func TestConfirmPurchaseCompletesPending(t *testing.T) {
	db := setupTestDB(t)
	gateway := newFakeGateway()
	svc := NewPurchaseService(db, gateway)
	user, course := seedUserAndCourse(t, db, 10)

	pending := &model.Purchase{UserID: user.ID, CourseID: course.ID, Status: model.PurchaseStatusPending}
	if err := db.Create(pending).Error; err != nil {
		t.Fatalf("failed to seed pending purchase: %v", err)
	}

	purchase, err := svc.ConfirmPurchase(context.Background(), user.ID, course.ID, "pi_1")
	if err != nil {
		t.Fatalf("ConfirmPurchase failed: %v", err)
	}
	if purchase.ID != pending.ID {
		t.Errorf("expected the pending row to be completed in place, got new row %d", purchase.ID)
	}
	if n := countPurchases(t, db, user.ID, course.ID, model.PurchaseStatusPending); n != 0 {
		t.Errorf("pending row should be gone, found %d", n)
	}
}

func TestRecordOrderWritesOrderAndPurchase(t *testing.T) {
	db := setupTestDB(t)
	svc := NewPurchaseService(db, newFakeGateway())
	user, course := seedUserAndCourse(t, db, 25.50)

	order, err := svc.RecordOrder(context.Background(), RecordOrderInput{
		Email:     user.Email,
		UserID:    user.ID,
		CourseID:  course.ID,
		PaymentID: "pi_record_1",
		Amount:    25.50,
		Status:    "succeeded",
	})
	if err != nil {
		t.Fatalf("RecordOrder failed: %v", err)
	}
	if order.ID == 0 {
		t.Error("expected order to be persisted")
	}
	if n := countPurchases(t, db, user.ID, course.ID, model.PurchaseStatusCompleted); n != 1 {
		t.Errorf("expected completed purchase alongside order, got %d", n)
	}
}

func TestRecordOrderDuplicatePaymentID(t *testing.T) {
	db := setupTestDB(t)
	svc := NewPurchaseService(db, newFakeGateway())
	user, course := seedUserAndCourse(t, db, 10)

	in := RecordOrderInput{
		Email:     user.Email,
		UserID:    user.ID,
		CourseID:  course.ID,
		PaymentID: "pi_dup",
		Amount:    10,
		Status:    "succeeded",
	}
	if _, err := svc.RecordOrder(context.Background(), in); err != nil {
		t.Fatalf("first RecordOrder failed: %v", err)
	}
	_, err := svc.RecordOrder(context.Background(), in)
	if !errors.Is(err, ErrDuplicateOrder) {
		t.Fatalf("expected ErrDuplicateOrder, got %v", err)
	}

	var n int64
	if err := db.Model(&model.Order{}).Where("payment_id = ?", "pi_dup").Count(&n).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected exactly one order row, got %d", n)
	}
}

func TestRecordOrderToleratesOwnedCourse(t *testing.T) {
	db := setupTestDB(t)
	svc := NewPurchaseService(db, newFakeGateway())
	user, course := seedUserAndCourse(t, db, 10)

	purchase := &model.Purchase{UserID: user.ID, CourseID: course.ID, Status: model.PurchaseStatusCompleted}
	if err := db.Create(purchase).Error; err != nil {
		t.Fatalf("failed to seed purchase: %v", err)
	}

	// A fresh payment id for an already-owned course still records the order.
	order, err := svc.RecordOrder(context.Background(), RecordOrderInput{
		Email:     user.Email,
		UserID:    user.ID,
		CourseID:  course.ID,
		PaymentID: "pi_second_payment",
		Amount:    10,
		Status:    "succeeded",
	})
	if err != nil {
		t.Fatalf("RecordOrder should tolerate an owned course, got %v", err)
	}
	if order.ID == 0 {
		t.Error("expected order to be persisted")
	}
	if n := countPurchases(t, db, user.ID, course.ID, model.PurchaseStatusCompleted); n != 1 {
		t.Errorf("completed purchases must stay unique, got %d", n)
	}
}

func TestListPurchasesFiltersDeletedCourses(t *testing.T) {
	db := setupTestDB(t)
	svc := NewPurchaseService(db, newFakeGateway())
	user, course := seedUserAndCourse(t, db, 10)

	admin := &model.Admin{FirstName: "Other", LastName: "Admin", Email: "other@example.com", PasswordHash: "x"}
	if err := db.Create(admin).Error; err != nil {
		t.Fatalf("failed to seed admin: %v", err)
	}
	doomed := &model.Course{Title: "Short Lived", Description: "d", Price: 5, CreatorID: admin.ID}
	if err := db.Create(doomed).Error; err != nil {
		t.Fatalf("failed to seed course: %v", err)
	}

	for _, courseID := range []uint{course.ID, doomed.ID} {
		p := &model.Purchase{UserID: user.ID, CourseID: courseID, Status: model.PurchaseStatusCompleted}
		if err := db.Create(p).Error; err != nil {
			t.Fatalf("failed to seed purchase: %v", err)
		}
	}

	if err := db.Delete(doomed).Error; err != nil {
		t.Fatalf("failed to delete course: %v", err)
	}

	purchases, err := svc.ListPurchases(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("ListPurchases failed: %v", err)
	}
	if len(purchases) != 1 {
		t.Fatalf("expected 1 purchase after filtering, got %d", len(purchases))
	}
	if purchases[0].CourseID != course.ID {
		t.Errorf("expected surviving course %d, got %d", course.ID, purchases[0].CourseID)
	}
}

func TestListPurchasesExcludesPending(t *testing.T) {
	db := setupTestDB(t)
	svc := NewPurchaseService(db, newFakeGateway())
	user, course := seedUserAndCourse(t, db, 10)

	p := &model.Purchase{UserID: user.ID, CourseID: course.ID, Status: model.PurchaseStatusPending}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("failed to seed purchase: %v", err)
	}

	purchases, err := svc.ListPurchases(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("ListPurchases failed: %v", err)
	}
	if len(purchases) != 0 {
		t.Errorf("pending purchases must not be listed, got %d", len(purchases))
	}
}
