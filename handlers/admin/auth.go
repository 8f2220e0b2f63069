package admin

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/skillvault/api/model"
	authutil "github.com/skillvault/api/utils/auth"
	"github.com/skillvault/api/utils/middleware"
	"github.com/skillvault/api/utils/response"
	"github.com/skillvault/api/utils/validation"
	"gorm.io/gorm"
)

// AuthHandler handles admin signup and login. Admins are a separate identity
// space from users; their tokens carry the admin audience and never pass
// user-protected routes.
type AuthHandler struct {
	db                   *gorm.DB
	jwtManager           *authutil.JWTManager
	validator            *validation.Validator
	bruteForceProtection *middleware.BruteForceProtection
}

// NewAuthHandler creates a new admin auth handler
func NewAuthHandler(db *gorm.DB, jwtManager *authutil.JWTManager, bruteForceProtection *middleware.BruteForceProtection) *AuthHandler {
	return &AuthHandler{
		db:                   db,
		jwtManager:           jwtManager,
		validator:            validation.NewValidator(),
		bruteForceProtection: bruteForceProtection,
	}
}

// RegisterRequest represents an admin signup request
type RegisterRequest struct {
	FirstName string `json:"first_name" validate:"required,min=3,max=100"`
	LastName  string `json:"last_name" validate:"required,min=3,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
}

// LoginRequest represents an admin login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AdminResponse represents admin data in responses
type AdminResponse struct {
	ID        uint      `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenResponse represents a successful admin login/signup response
type TokenResponse struct {
	Admin     AdminResponse `json:"admin"`
	Token     string        `json:"token"`
	ExpiresIn int           `json:"expires_in"`
}

func adminResponseFrom(admin *model.Admin) AdminResponse {
	return AdminResponse{
		ID:        admin.ID,
		FirstName: admin.FirstName,
		LastName:  admin.LastName,
		Email:     admin.Email,
		CreatedAt: admin.CreatedAt,
	}
}

// Register handles admin signup
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	req.FirstName = validation.SanitizeString(req.FirstName)
	req.LastName = validation.SanitizeString(req.LastName)

	var existing model.Admin
	if err := h.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		return response.Conflict(c, "Admin with this email already exists")
	}

	hashedPassword, err := authutil.HashPassword(req.Password)
	if err != nil {
		return response.InternalServerError(c, "Failed to process password")
	}

	admin := model.Admin{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: hashedPassword,
	}
	if err := h.db.Create(&admin).Error; err != nil {
		return response.InternalServerError(c, "Failed to create admin")
	}

	token, err := h.jwtManager.GenerateToken(admin.ID, admin.Email, authutil.AudienceAdmin)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate token")
	}

	return response.Created(c, "Signup successful", TokenResponse{
		Admin:     adminResponseFrom(&admin),
		Token:     token,
		ExpiresIn: 24 * 60 * 60,
	})
}

// Login handles admin login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if req.Email == "" || req.Password == "" {
		return response.BadRequest(c, "Email and password are required")
	}

	ip := c.IP()

	var admin model.Admin
	if err := h.db.Where("email = ?", req.Email).First(&admin).Error; err != nil {
		if h.bruteForceProtection != nil {
			h.bruteForceProtection.RecordFailedAttempt(c, ip)
		}
		return response.Unauthorized(c, "Invalid email or password")
	}

	if err := authutil.VerifyPassword(admin.PasswordHash, req.Password); err != nil {
		if h.bruteForceProtection != nil {
			h.bruteForceProtection.RecordFailedAttempt(c, ip)
		}
		return response.Unauthorized(c, "Invalid email or password")
	}

	if h.bruteForceProtection != nil {
		h.bruteForceProtection.RecordSuccessfulAttempt(c, ip)
	}

	token, err := h.jwtManager.GenerateToken(admin.ID, admin.Email, authutil.AudienceAdmin)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate token")
	}

	return response.SuccessWithMessage(c, "Logged in successfully", TokenResponse{
		Admin:     adminResponseFrom(&admin),
		Token:     token,
		ExpiresIn: 24 * 60 * 60,
	})
}

// Logout acknowledges logout
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	return response.SuccessWithMessage(c, "Logged out successfully", nil)
}

// Profile returns the authenticated admin's account data
func (h *AuthHandler) Profile(c *fiber.Ctx) error {
	admin, ok := middleware.GetAdmin(c)
	if !ok || admin == nil {
		return response.Unauthorized(c, "Admin not authenticated")
	}
	return response.Success(c, adminResponseFrom(admin))
}
