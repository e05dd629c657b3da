package domain

import "errors"

var (
	ErrProductNotFound = errors.New("product not found")
	ErrSlugTaken       = errors.New("product slug already in use")
	ErrInvalidSlug     = errors.New("invalid product slug")
)
