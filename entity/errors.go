package entity

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicate      = errors.New("duplicate")
	ErrThreadConflict = errors.New("thread belongs to another workspace")
	ErrNoCredential   = errors.New("no connected credential for provider")
)
