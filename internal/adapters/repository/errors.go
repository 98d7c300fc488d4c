package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound  = errors.New("episode not found")
	ErrDuplicate = errors.New("episode already exists")
)
