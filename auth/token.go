package auth

import (
	"time"

	"chat-hub/domain"

	"github.com/golang-jwt/jwt/v5"
)

// Claims defines the structure of the data stored inside the JWT.
type Claims struct {
	IdentityID  string `json:"identity_id"`
	DisplayName string `json:"display_name"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed connection credential for an identity.
// Issued by the external credential collaborator in production; exposed here
// so tooling and tests can mint valid credentials.
func GenerateToken(key []byte, identity domain.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		IdentityID:  string(identity.ID),
		DisplayName: identity.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "chat-hub",
		},
	}

	// HS256 (HMAC with SHA256), signed with the shared secret.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}
