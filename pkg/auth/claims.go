package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionPayload is the data bound into a session token.
type SessionPayload struct {
	UserID    uuid.UUID
	SessionID string
}

// SessionClaims is the typed JWT carried in the session cookie. The
// registered ID (jti) names the server-side session record.
type SessionClaims struct {
	UserID uuid.UUID `json:"user_id"`
	jwt.RegisteredClaims
}
