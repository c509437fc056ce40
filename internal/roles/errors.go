package roles

import "errors"

var (
	ErrUnknownRole      = errors.New("roles: unknown role")
	ErrInvalidInput     = errors.New("roles: invalid input")
	ErrConflict         = errors.New("roles: grant already exists")
	ErrNotFound         = errors.New("roles: grant not found")
	ErrConcurrentGrant  = errors.New("roles: concurrent grant in the same scope")
	ErrDuplicateRole    = errors.New("roles: duplicate role definition")
	errRepositoryAbsent = errors.New("roles: repository is required")
)
