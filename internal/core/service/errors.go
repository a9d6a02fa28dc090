package service

import "errors"

var (
	ErrNotFound         = errors.New("item not found")
	ErrOutOfStock       = errors.New("item out of stock")
	ErrPersistence      = errors.New("persistence error")
	ErrDuplicateRequest = errors.New("duplicate request")
	ErrInvalidRequest   = errors.New("invalid request")
)
