package domain

import "errors"

var (
	ErrInvalidChannelKey = errors.New("invalid channel key")
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
)
