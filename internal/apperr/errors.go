package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrOutsideRoot   = errors.New("path outside tasks root")
	ErrInvalidTask   = errors.New("invalid task")
)
