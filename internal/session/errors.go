package session

import "errors"

var (
	ErrTokenMalformed              = errors.New("session: malformed token")
	ErrTokenExpired                = errors.New("session: token expired")
	ErrTokenNotYetValid            = errors.New("session: token not yet valid")
	ErrTokenRevoked                = errors.New("session: token revoked")
	ErrMFARequired                 = errors.New("session: multi-factor authentication required")
	ErrSeedTokenNotAuthenticatable = errors.New("session: seed token cannot authenticate requests")
	ErrNotSeedToken                = errors.New("session: token is not a seed token")
	ErrUnknownScope                = errors.New("session: unknown scope")
	ErrSubjectNotFound             = errors.New("session: subject not found")
	ErrRateLimited                 = errors.New("session: too many seed tokens requested")
)

// resultLabel is the metric label of a validation error.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenNotYetValid):
		return "not_yet_valid"
	case errors.Is(err, ErrTokenRevoked):
		return "revoked"
	case errors.Is(err, ErrMFARequired):
		return "mfa_required"
	case errors.Is(err, ErrSeedTokenNotAuthenticatable):
		return "seed"
	case errors.Is(err, ErrUnknownScope):
		return "unknown_scope"
	case errors.Is(err, ErrSubjectNotFound):
		return "subject_not_found"
	default:
		return "error"
	}
}
