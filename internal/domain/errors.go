package domain

import "errors"

var (
	ErrInvalidPayload  = errors.New("invalid payload")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("version conflict")
	ErrUpstreamStorage = errors.New("image store failure")
	ErrUnauthorized    = errors.New("unauthorized")
)
