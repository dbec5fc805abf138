// Package auth implements the identity directory: it turns an opaque
// bearer credential into a verified identity, per connection. There is no
// fallback identity; a connection that fails here is never registered.
package auth

import (
	"context"
	"fmt"

	"chat-hub/domain"
	apperrors "chat-hub/errors"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
)

var validate = validator.New()

type Directory struct {
	key []byte
}

func NewDirectory(key []byte) *Directory {
	return &Directory{key: key}
}

// Authenticate parses and validates the credential and extracts the identity.
// Any failure maps to ErrAuth; the caller mutates no state on that path.
func (d *Directory) Authenticate(_ context.Context, credential string) (domain.Identity, error) {
	// Cheap shape check before touching the signature.
	if err := validate.Var(credential, "required,jwt"); err != nil {
		return domain.Identity{}, fmt.Errorf("%w: malformed credential", apperrors.ErrAuth)
	}

	token, err := jwt.ParseWithClaims(credential, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return d.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", apperrors.ErrAuth, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return domain.Identity{}, fmt.Errorf("%w: invalid claims", apperrors.ErrAuth)
	}
	if claims.IdentityID == "" {
		return domain.Identity{}, fmt.Errorf("%w: credential carries no identity", apperrors.ErrAuth)
	}

	return domain.Identity{
		ID:          domain.IdentityID(claims.IdentityID),
		DisplayName: claims.DisplayName,
	}, nil
}
