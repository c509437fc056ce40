package problem

import (
	"errors"
	"net/http"

	"authcore.io/internal/permission"
	"authcore.io/internal/roles"
	"authcore.io/internal/session"
	"authcore.io/internal/token"
)

// Code is a stable machine-readable error code. Clients branch on it; the
// message is for humans.
type Code string

const (
	CodeUnknownRole                 Code = "unknown-role"
	CodePermissionDenied            Code = "permission-denied"
	CodeCheckerFault                Code = "checker-fault"
	CodeTokenMalformed              Code = "token-malformed"
	CodeTokenExpired                Code = "token-expired"
	CodeTokenNotYetValid            Code = "token-not-yet-valid"
	CodeTokenRevoked                Code = "token-revoked"
	CodeMFARequired                 Code = "mfa-required"
	CodeSeedTokenNotAuthenticatable Code = "seed-token-not-authenticatable"
	CodeUnknownScope                Code = "unknown-scope"
	CodeSubjectNotFound             Code = "subject-not-found"
	CodeRateLimited                 Code = "rate-limited"
	CodeConcurrentGrant             Code = "concurrent-grant"
	CodeInvalidInput                Code = "invalid-input"
	CodeNotFound                    Code = "not-found"
	CodeDuplicateGrant              Code = "duplicate-grant"
	CodeUnauthorized                Code = "unauthorized"
	CodeInternal                    Code = "internal-error"
)

// Problem is what the transport layer reports for a failed request.
type Problem struct {
	Code    Code
	Status  int
	Message string
	// NeedsMFA asks the client to complete a second factor rather than start
	// over.
	NeedsMFA bool
}

func (p Problem) Error() string {
	if p.Message == "" {
		return string(p.Code)
	}
	return string(p.Code) + ": " + p.Message
}

var mappings = []struct {
	target error
	code   Code
	status int
}{
	{roles.ErrUnknownRole, CodeUnknownRole, http.StatusUnprocessableEntity},
	{roles.ErrConcurrentGrant, CodeConcurrentGrant, http.StatusConflict},
	{roles.ErrConflict, CodeDuplicateGrant, http.StatusConflict},
	{roles.ErrInvalidInput, CodeInvalidInput, http.StatusBadRequest},
	{roles.ErrNotFound, CodeNotFound, http.StatusNotFound},
	{permission.ErrBadOperation, CodeInvalidInput, http.StatusBadRequest},
	{permission.ErrCheckerFault, CodeCheckerFault, http.StatusInternalServerError},
	{session.ErrTokenMalformed, CodeTokenMalformed, http.StatusUnauthorized},
	{token.ErrMalformed, CodeTokenMalformed, http.StatusUnauthorized},
	{session.ErrTokenExpired, CodeTokenExpired, http.StatusUnauthorized},
	{session.ErrTokenNotYetValid, CodeTokenNotYetValid, http.StatusUnauthorized},
	{session.ErrTokenRevoked, CodeTokenRevoked, http.StatusUnauthorized},
	{session.ErrMFARequired, CodeMFARequired, http.StatusForbidden},
	{session.ErrSeedTokenNotAuthenticatable, CodeSeedTokenNotAuthenticatable, http.StatusUnauthorized},
	{session.ErrNotSeedToken, CodeUnauthorized, http.StatusUnauthorized},
	{session.ErrUnknownScope, CodeUnknownScope, http.StatusUnauthorized},
	{session.ErrSubjectNotFound, CodeSubjectNotFound, http.StatusUnauthorized},
	{session.ErrRateLimited, CodeRateLimited, http.StatusTooManyRequests},
	{token.ErrBadTimestamp, CodeInvalidInput, http.StatusBadRequest},
}

// FromError classifies err. Unrecognised errors become internal errors whose
// message does not leak the cause.
func FromError(err error) Problem {
	if err == nil {
		return Problem{}
	}
	var p Problem
	if errors.As(err, &p) {
		return p
	}
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			return Problem{
				Code:     m.code,
				Status:   m.status,
				Message:  err.Error(),
				NeedsMFA: m.code == CodeMFARequired,
			}
		}
	}
	return Problem{Code: CodeInternal, Status: http.StatusInternalServerError, Message: http.StatusText(http.StatusInternalServerError)}
}

// FromOutcome classifies a permission outcome. Allowed outcomes yield ok=false.
func FromOutcome(out permission.Outcome) (Problem, bool) {
	switch {
	case out.Allowed():
		return Problem{}, false
	case out.IsError():
		return Problem{Code: CodeCheckerFault, Status: http.StatusInternalServerError, Message: out.Reason()}, true
	default:
		return Problem{Code: CodePermissionDenied, Status: http.StatusForbidden, Message: out.Reason()}, true
	}
}
