package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrQuery     = errors.New("repository query failed")
	ErrWrite     = errors.New("repository write failed")
	ErrMigrate   = errors.New("repository migration failed")
	ErrInvalidID = errors.New("invalid match identity")
)
