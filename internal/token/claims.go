package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed     = errors.New("token: malformed token")
	ErrBadTimestamp  = errors.New("token: bad timestamp")
	ErrMissingSecret = errors.New("token: signing secret is not configured")
)

// Claims is the decoded content of a session or seed token. Times are unix
// seconds.
type Claims struct {
	Scope          string
	SubjectID      string
	OrganizationID string
	MFARequired    bool
	IsSeedToken    bool
	ValidAt        int64
	ExpiresAt      int64
	// Nonce makes otherwise identical tokens distinct.
	Nonce string
}

func (c Claims) ValidTime() time.Time { return time.Unix(c.ValidAt, 0).UTC() }
func (c Claims) ExpiryTime() time.Time { return time.Unix(c.ExpiresAt, 0).UTC() }

// wireClaims is the JSON payload signed into the token.
type wireClaims struct {
	Scope     string `json:"sc"`
	Subject   string `json:"sub"`
	Org       string `json:"org,omitempty"`
	MFA       int    `json:"mfa"`
	Seed      int    `json:"sd"`
	ValidAt   int64  `json:"va"`
	ExpiresAt int64  `json:"exp"`
	Nonce     string `json:"n,omitempty"`
}

var _ jwt.Claims = wireClaims{}

func toWire(c Claims) wireClaims {
	return wireClaims{
		Scope:     c.Scope,
		Subject:   c.SubjectID,
		Org:       c.OrganizationID,
		MFA:       flag(c.MFARequired),
		Seed:      flag(c.IsSeedToken),
		ValidAt:   c.ValidAt,
		ExpiresAt: c.ExpiresAt,
		Nonce:     c.Nonce,
	}
}

func (w wireClaims) claims() (Claims, error) {
	if w.MFA&^1 != 0 || w.Seed&^1 != 0 {
		return Claims{}, ErrMalformed
	}
	if w.ValidAt == 0 || w.ExpiresAt == 0 || w.ValidAt >= w.ExpiresAt {
		return Claims{}, ErrMalformed
	}
	return Claims{
		Scope:          w.Scope,
		SubjectID:      w.Subject,
		OrganizationID: w.Org,
		MFARequired:    w.MFA == 1,
		IsSeedToken:    w.Seed == 1,
		ValidAt:        w.ValidAt,
		ExpiresAt:      w.ExpiresAt,
		Nonce:          w.Nonce,
	}, nil
}

func (w wireClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(w.ExpiresAt, 0)), nil
}

func (w wireClaims) GetNotBefore() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(w.ValidAt, 0)), nil
}

func (w wireClaims) GetIssuedAt() (*jwt.NumericDate, error) { return nil, nil }
func (w wireClaims) GetIssuer() (string, error) { return "", nil }
func (w wireClaims) GetSubject() (string, error) { return w.Subject, nil }
func (w wireClaims) GetAudience() (jwt.ClaimStrings, error) { return nil, nil }

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}
