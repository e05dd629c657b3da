package domain

import "errors"

var (
	ErrProviderNotFound = errors.New("payment provider not found")
	ErrInvalidConfig    = errors.New("invalid payment adapter config")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
	ErrInvalidEvent     = errors.New("invalid webhook event")
	ErrEventIgnored     = errors.New("webhook event ignored")
)
