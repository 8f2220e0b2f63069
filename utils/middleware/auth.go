package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/skillvault/api/model"
	"github.com/skillvault/api/utils/auth"
	"github.com/skillvault/api/utils/response"
	"gorm.io/gorm"
)

// AuthMiddleware handles JWT authentication for both identity spaces
type AuthMiddleware struct {
	jwtManager *auth.JWTManager
	db         *gorm.DB
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtManager *auth.JWTManager, db *gorm.DB) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
		db:         db,
	}
}

func (m *AuthMiddleware) claimsFromHeader(c *fiber.Ctx) (*auth.Claims, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return nil, auth.ErrInvalidToken
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, auth.ErrInvalidToken
	}

	return m.jwtManager.ValidateToken(parts[1])
}

// RequireUser is middleware that requires a valid token minted for a user
// account. The account is loaded from the users table; an admin token never
// passes here.
func (m *AuthMiddleware) RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := m.claimsFromHeader(c)
		if err != nil {
			if err == auth.ErrExpiredToken {
				return response.Unauthorized(c, "Token has expired")
			}
			return response.Unauthorized(c, "Missing or invalid authorization token")
		}

		if claims.Space != auth.AudienceUser {
			return response.Unauthorized(c, "Invalid token type")
		}

		var user model.User
		if err := m.db.First(&user, claims.AccountID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return response.Unauthorized(c, "User not found")
			}
			return response.InternalServerError(c, "Failed to load user")
		}

		c.Locals("user", &user)
		c.Locals("user_id", user.ID)
		return c.Next()
	}
}

// RequireAdmin is middleware that requires a valid token minted for an admin
// account, loaded from the admins table.
func (m *AuthMiddleware) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := m.claimsFromHeader(c)
		if err != nil {
			if err == auth.ErrExpiredToken {
				return response.Unauthorized(c, "Token has expired")
			}
			return response.Unauthorized(c, "Missing or invalid authorization token")
		}

		if claims.Space != auth.AudienceAdmin {
			return response.Unauthorized(c, "Invalid token type")
		}

		var admin model.Admin
		if err := m.db.First(&admin, claims.AccountID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return response.Unauthorized(c, "Admin not found")
			}
			return response.InternalServerError(c, "Failed to load admin")
		}

		c.Locals("admin", &admin)
		c.Locals("admin_id", admin.ID)
		return c.Next()
	}
}

// GetUser extracts the authenticated user from context
func GetUser(c *fiber.Ctx) (*model.User, bool) {
	user := c.Locals("user")
	if user == nil {
		return nil, false
	}
	u, ok := user.(*model.User)
	return u, ok
}

// GetAdmin extracts the authenticated admin from context
func GetAdmin(c *fiber.Ctx) (*model.Admin, bool) {
	admin := c.Locals("admin")
	if admin == nil {
		return nil, false
	}
	a, ok := admin.(*model.Admin)
	return a, ok
}
