package permission

import "fmt"

type outcomeKind uint8

const (
	kindDeny outcomeKind = iota
	kindAllow
	kindError
)

// Outcome is the result of a permission check. The zero value is a denial
// with no reason. An Allow grants access whatever its payload holds, so a nil
// or empty payload is still an allow.
type Outcome struct {
	kind    outcomeKind
	payload any
	reason  string
	err     error
}

// Allow grants access and carries an optional payload, usually the roles that
// justified the decision.
func Allow(payload any) Outcome {
	return Outcome{kind: kindAllow, payload: payload}
}

func Deny(reason string) Outcome {
	return Outcome{kind: kindDeny, reason: reason}
}

// Fail reports that the check itself could not complete. It denies access.
func Fail(err error) Outcome {
	if err == nil {
		err = ErrCheckerFault
	}
	return Outcome{kind: kindError, err: err}
}

func (o Outcome) Allowed() bool { return o.kind == kindAllow }

// Denied is true for both Deny and Fail outcomes.
func (o Outcome) Denied() bool { return o.kind != kindAllow }

func (o Outcome) IsError() bool { return o.kind == kindError }

func (o Outcome) Payload() any { return o.payload }

func (o Outcome) Reason() string {
	if o.kind == kindError {
		return o.err.Error()
	}
	return o.reason
}

func (o Outcome) Err() error { return o.err }

// Label is the metric label for o.
func (o Outcome) Label() string {
	switch o.kind {
	case kindAllow:
		return "allow"
	case kindError:
		return "error"
	default:
		return "deny"
	}
}

func (o Outcome) String() string {
	switch o.kind {
	case kindAllow:
		return "allow"
	case kindError:
		return fmt.Sprintf("error(%v)", o.err)
	default:
		if o.reason == "" {
			return "deny"
		}
		return fmt.Sprintf("deny(%s)", o.reason)
	}
}
