// Package token issues and verifies the signed session token carried in the
// auth cookie.
//
// Two implementations share one algorithm (HS256 over a compact JWS) and one
// secret: JWTCodec runs in the API request path on golang-jwt, EdgeCodec runs
// in the page guard on the standard library alone. Tokens issued by either
// verify in the other.
package token

import (
	"errors"
	"strings"
	"time"

	"hp-booking/internal/model"
)

// SessionTTL is the lifetime of every issued token.
const SessionTTL = 7 * 24 * time.Hour

const algorithm = "HS256"

var (
	ErrMalformed        = errors.New("token malformed")
	ErrSignatureInvalid = errors.New("token signature invalid")
	ErrExpired          = errors.New("token expired")
	ErrMissingSecret    = errors.New("token signing secret is not configured")
)

type Identity struct {
	UserID string
	Email  string
	Role   model.Role
	Name   string
}

type Payload struct {
	UserID    string
	Email     string
	Role      model.Role
	Name      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (p Payload) Claims() model.AuthClaims {
	return model.AuthClaims{UserID: p.UserID, Email: p.Email, Role: p.Role, Name: p.Name}
}

type Codec interface {
	Issue(identity Identity) (string, error)
	// Verify returns an error wrapping ErrMalformed, ErrSignatureInvalid or
	// ErrExpired.
	Verify(token string) (Payload, error)
}

// wireClaims is the JSON payload. Field order matches jwt.RegisteredClaims
// embedding so both codecs serialize identical bytes.
type wireClaims struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Name      string `json:"name,omitempty"`
	ExpiresAt int64  `json:"exp"`
	IssuedAt  int64  `json:"iat"`
}

type wireHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// splitSigned separates the signing input from the signature segment at the
// last dot. Only a token without any dot is rejected here; empty segments are
// left to the signature check.
func splitSigned(token string) (signingInput string, signature string, ok bool) {
	idx := strings.LastIndexByte(token, '.')
	if idx < 0 {
		return "", "", false
	}
	return token[:idx], token[idx+1:], true
}

func payloadFromWire(claims wireClaims) (Payload, error) {
	role := model.Role(claims.Role)
	if strings.TrimSpace(claims.UserID) == "" || !role.Valid() || claims.ExpiresAt == 0 {
		return Payload{}, ErrMalformed
	}

	return Payload{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Role:      role,
		Name:      claims.Name,
		IssuedAt:  time.Unix(claims.IssuedAt, 0).UTC(),
		ExpiresAt: time.Unix(claims.ExpiresAt, 0).UTC(),
	}, nil
}

func validateIdentity(identity Identity) error {
	if strings.TrimSpace(identity.UserID) == "" {
		return errors.New("token identity requires a user id")
	}
	if !identity.Role.Valid() {
		return errors.New("token identity has an unknown role")
	}
	return nil
}
