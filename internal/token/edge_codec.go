package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"hp-booking/internal/clock"
)

var segmentEncoding = base64.RawURLEncoding.Strict()

// EdgeCodec is the dependency-free codec used by the page guard.
type EdgeCodec struct {
	secret []byte
	clock  clock.Clock
}

func NewEdgeCodec(secret string, clk clock.Clock) (*EdgeCodec, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &EdgeCodec{secret: []byte(secret), clock: clk}, nil
}

func (c *EdgeCodec) Issue(identity Identity) (string, error) {
	if err := validateIdentity(identity); err != nil {
		return "", err
	}

	now := c.clock.Now().UTC().Truncate(time.Second)
	header, err := json.Marshal(wireHeader{Alg: algorithm, Typ: "JWT"})
	if err != nil {
		return "", fmt.Errorf("encode token header: %w", err)
	}
	payload, err := json.Marshal(wireClaims{
		UserID:    identity.UserID,
		Email:     identity.Email,
		Role:      string(identity.Role),
		Name:      identity.Name,
		ExpiresAt: now.Add(SessionTTL).Unix(),
		IssuedAt:  now.Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("encode token payload: %w", err)
	}

	signingInput := segmentEncoding.EncodeToString(header) + "." + segmentEncoding.EncodeToString(payload)
	return signingInput + "." + c.sign(signingInput), nil
}

func (c *EdgeCodec) Verify(tokenString string) (Payload, error) {
	signingInput, signature, ok := splitSigned(tokenString)
	if !ok {
		return Payload{}, ErrMalformed
	}

	// Comparing encoded text rejects non-canonical trailing bits as well.
	if !hmac.Equal([]byte(c.sign(signingInput)), []byte(signature)) {
		return Payload{}, ErrSignatureInvalid
	}

	parts := strings.Split(signingInput, ".")
	if len(parts) != 2 {
		return Payload{}, fmt.Errorf("%w: expected 3 segments", ErrMalformed)
	}

	var header wireHeader
	if err := decodeSegment(parts[0], &header); err != nil {
		return Payload{}, err
	}
	if header.Alg != algorithm {
		return Payload{}, fmt.Errorf("%w: unexpected alg %q", ErrMalformed, header.Alg)
	}

	var claims wireClaims
	if err := decodeSegment(parts[1], &claims); err != nil {
		return Payload{}, err
	}

	payload, err := payloadFromWire(claims)
	if err != nil {
		return Payload{}, err
	}
	if !c.clock.Now().Before(payload.ExpiresAt) {
		return Payload{}, ErrExpired
	}

	return payload, nil
}

func (c *EdgeCodec) sign(signingInput string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(signingInput))
	return segmentEncoding.EncodeToString(mac.Sum(nil))
}

func decodeSegment(segment string, into any) error {
	raw, err := segmentEncoding.DecodeString(segment)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

var _ Codec = (*EdgeCodec)(nil)
