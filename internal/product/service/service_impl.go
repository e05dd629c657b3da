package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/keygate/internal/clock"
	"github.com/smallbiznis/keygate/internal/product/domain"
	"github.com/smallbiznis/keygate/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("product.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidSlug
	}

	productSlug := strings.TrimSpace(req.Slug)
	if productSlug == "" {
		productSlug = slug.Make(name)
	} else {
		productSlug = slug.Make(productSlug)
	}
	if productSlug == "" {
		return nil, domain.ErrInvalidSlug
	}

	productType := req.Type
	if productType == "" {
		productType = domain.TypeOneTime
	}

	now := s.clock.Now()
	product := &domain.Product{
		ID:          s.genID.Generate(),
		Slug:        productSlug,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Type:        productType,
		Active:      true,
		Metadata:    datatypes.JSONMap(req.Metadata),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, s.db, product); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrSlugTaken
		}
		return nil, err
	}

	s.log.Info("product created",
		zap.String("product_id", product.ID.String()),
		zap.String("slug", product.Slug),
	)
	return product, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Product, error) {
	product, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}
	return product, nil
}

func (s *Service) GetBySlug(ctx context.Context, productSlug string) (*domain.Product, error) {
	productSlug = strings.ToLower(strings.TrimSpace(productSlug))
	if productSlug == "" {
		return nil, domain.ErrProductNotFound
	}
	product, err := s.repo.FindBySlug(ctx, s.db, productSlug)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}
	return product, nil
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	return s.repo.List(ctx, s.db, activeOnly)
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateRequest) (*domain.Product, error) {
	product, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}

	if req.Name != nil {
		if name := strings.TrimSpace(*req.Name); name != "" {
			product.Name = name
		}
	}
	if req.Description != nil {
		product.Description = strings.TrimSpace(*req.Description)
	}
	if req.Active != nil {
		product.Active = *req.Active
	}
	product.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, product); err != nil {
		return nil, err
	}
	return product, nil
}
