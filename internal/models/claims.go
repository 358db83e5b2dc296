package models

import "github.com/golang-jwt/jwt/v5"

// Roles recognized by the admin route guard. Token issuance belongs to the
// platform's auth service; this core only verifies and reads claims.
const (
	RoleBuyer = "buyer"
	RoleAdmin = "admin"
)

type UserClaims struct {
	jwt.RegisteredClaims
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// IsAdmin reports whether the claims carry the admin role.
func (c *UserClaims) IsAdmin() bool {
	return c.Role == RoleAdmin
}
