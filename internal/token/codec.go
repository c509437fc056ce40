package token

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Codec signs and verifies claim sets as compact HS256 JWTs.
type Codec struct {
	now    func() time.Time
	parser *jwt.Parser
}

// NewCodec returns a codec reading time from now, or time.Now when nil.
func NewCodec(now func() time.Time) *Codec {
	if now == nil {
		now = time.Now
	}
	return &Codec{
		now: now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithStrictDecoding(),
			jwt.WithoutClaimsValidation(),
		),
	}
}

// Encode signs c. A zero ValidAt means "now". It returns the claims as they
// were signed.
func (c *Codec) Encode(claims Claims, secret []byte) (string, Claims, error) {
	return c.encode(claims, secret, c.now().Unix())
}

// EncodeWithTTL signs c with ExpiresAt set ttl after ValidAt. A zero ValidAt
// means "now", read once from the codec's clock.
func (c *Codec) EncodeWithTTL(claims Claims, ttl time.Duration, secret []byte) (string, Claims, error) {
	now := c.now().Unix()
	if claims.ValidAt == 0 {
		claims.ValidAt = now
	}
	claims.ExpiresAt = claims.ValidAt + int64(ttl/time.Second)
	return c.encode(claims, secret, now)
}

func (c *Codec) encode(claims Claims, secret []byte, now int64) (string, Claims, error) {
	if len(secret) == 0 {
		return "", Claims{}, ErrMissingSecret
	}
	if claims.ValidAt == 0 {
		claims.ValidAt = now
	} else if claims.ValidAt < now {
		return "", Claims{}, fmt.Errorf("%w: valid-at %d is before issuance %d", ErrBadTimestamp, claims.ValidAt, now)
	}
	if claims.ExpiresAt == 0 {
		return "", Claims{}, fmt.Errorf("%w: expiry is required", ErrBadTimestamp)
	}
	if claims.ValidAt >= claims.ExpiresAt {
		return "", Claims{}, fmt.Errorf("%w: valid-at %d is not before expiry %d", ErrBadTimestamp, claims.ValidAt, claims.ExpiresAt)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, toWire(claims)).SignedString(secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Decode verifies token and returns its claims. It does not look at the
// clock: expiry is the caller's decision.
func (c *Codec) Decode(token string, secret []byte) (Claims, error) {
	if len(secret) == 0 {
		return Claims{}, ErrMissingSecret
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrMalformed
	}
	var wire wireClaims
	parsed, err := c.parser.ParseWithClaims(token, &wire, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, ErrMalformed
	}
	return wire.claims()
}

// Hash is the storage key of a raw token.
func Hash(token string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	return hex.EncodeToString(sum[:])
}
