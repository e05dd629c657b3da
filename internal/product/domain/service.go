package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type CreateRequest struct {
	Name        string                 `json:"name" binding:"required"`
	Slug        string                 `json:"slug"`
	Description string                 `json:"description"`
	Type        Type                   `json:"type"`
	Metadata    map[string]interface{} `json:"metadata"`
}

type UpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Active      *bool   `json:"active"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Product, error)
	Get(ctx context.Context, id snowflake.ID) (*Product, error)
	GetBySlug(ctx context.Context, slug string) (*Product, error)
	List(ctx context.Context, activeOnly bool) ([]Product, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateRequest) (*Product, error)
}
