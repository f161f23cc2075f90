package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"hp-booking/internal/clock"
)

type sessionClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Name   string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type JWTCodec struct {
	secret []byte
	clock  clock.Clock
	parser *jwt.Parser
}

func NewJWTCodec(secret string, clk clock.Clock) (*JWTCodec, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if clk == nil {
		clk = clock.Real()
	}

	return &JWTCodec{
		secret: []byte(secret),
		clock:  clk,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{algorithm}),
			jwt.WithExpirationRequired(),
			jwt.WithStrictDecoding(),
			jwt.WithTimeFunc(clk.Now),
		),
	}, nil
}

func (c *JWTCodec) Issue(identity Identity) (string, error) {
	if err := validateIdentity(identity); err != nil {
		return "", err
	}

	now := c.clock.Now().UTC().Truncate(time.Second)
	claims := sessionClaims{
		UserID: identity.UserID,
		Email:  identity.Email,
		Role:   string(identity.Role),
		Name:   identity.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

func (c *JWTCodec) Verify(tokenString string) (Payload, error) {
	signingInput, signature, ok := splitSigned(tokenString)
	if !ok {
		return Payload{}, ErrMalformed
	}

	// The signature is checked over the raw text first so a corrupted header
	// or payload reports a bad signature rather than a decoding failure.
	sig, err := c.parser.DecodeSegment(signature)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: undecodable signature", ErrSignatureInvalid)
	}
	if err := jwt.SigningMethodHS256.Verify(signingInput, sig, c.secret); err != nil {
		return Payload{}, ErrSignatureInvalid
	}

	var claims sessionClaims
	_, err = c.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return Payload{}, ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return Payload{}, ErrSignatureInvalid
	default:
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	wire := wireClaims{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   claims.Role,
		Name:   claims.Name,
	}
	if claims.ExpiresAt != nil {
		wire.ExpiresAt = claims.ExpiresAt.Unix()
	}
	if claims.IssuedAt != nil {
		wire.IssuedAt = claims.IssuedAt.Unix()
	}

	return payloadFromWire(wire)
}

var _ Codec = (*JWTCodec)(nil)
