package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidStatus    = errors.New("invalid report status")
	ErrEmptyFilter      = errors.New("purge filter is empty")
)
