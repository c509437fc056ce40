package permission

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrBadOperation = errors.New("permission: malformed operation")
	ErrBadArguments = errors.New("permission: bad check arguments")
	ErrCheckerFault = errors.New("permission: checker fault")
)

// Verb names one check a scope checker may implement.
type Verb string

const (
	VerbCreate           Verb = "create"
	VerbRead             Verb = "read"
	VerbUpdate           Verb = "update"
	VerbDelete           Verb = "delete"
	VerbGrantRole        Verb = "grantRole"
	VerbAddMember        Verb = "addMember"
	VerbRemoveMember     Verb = "removeMember"
	VerbUpdateMemberRole Verb = "updateMemberRole"
)

var knownVerbs = map[Verb]struct{}{
	VerbCreate:           {},
	VerbRead:             {},
	VerbUpdate:           {},
	VerbDelete:           {},
	VerbGrantRole:        {},
	VerbAddMember:        {},
	VerbRemoveMember:     {},
	VerbUpdateMemberRole: {},
}

// Operation is one permission question: may the actor perform Verb on Scope,
// given Args.
type Operation struct {
	Verb  Verb
	Scope string
	Args  []any
}

// ParseOperation reads "<verb>:<Scope>", e.g. "update:Organization".
func ParseOperation(spec string, args ...any) (Operation, error) {
	verb, scope, ok := strings.Cut(strings.TrimSpace(spec), ":")
	verb = strings.TrimSpace(verb)
	scope = strings.TrimSpace(scope)
	if !ok || verb == "" || scope == "" || strings.Contains(scope, ":") {
		return Operation{}, fmt.Errorf("%w: %q", ErrBadOperation, spec)
	}
	if _, known := knownVerbs[Verb(verb)]; !known {
		return Operation{}, fmt.Errorf("%w: unknown verb %q", ErrBadOperation, verb)
	}
	return Operation{Verb: Verb(verb), Scope: scope, Args: args}, nil
}

// MustOperation is ParseOperation for literals.
func MustOperation(spec string, args ...any) Operation {
	op, err := ParseOperation(spec, args...)
	if err != nil {
		panic(err)
	}
	return op
}

func (o Operation) String() string {
	return string(o.Verb) + ":" + o.Scope
}
