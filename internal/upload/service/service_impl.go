package service

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/keygate/internal/clock"
	licensedomain "github.com/smallbiznis/keygate/internal/license/domain"
	"github.com/smallbiznis/keygate/internal/observability/logger"
	"github.com/smallbiznis/keygate/internal/upload/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	credentialTTL = 15 * time.Minute
	maxPageLimit  = 100
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Licenses licensedomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	licenses licensedomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("upload.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		licenses: p.Licenses,
	}
}

// Issue registers an upload job. The license must be bound to the requesting
// domain right now: credentials are for live sites, not history.
func (s *Service) Issue(ctx context.Context, req domain.IssueRequest) (*domain.IssueResponse, error) {
	uploadDomain, err := licensedomain.NormalizeDomain(req.Domain)
	if err != nil {
		return nil, err
	}
	fileName := filepath.Base(strings.TrimSpace(req.FileName))
	if fileName == "" || fileName == "." || !strings.EqualFold(filepath.Ext(fileName), ".csv") {
		return nil, licensedomain.ErrInvalidFormat
	}

	license, _, err := s.licenses.ValidatePrerequisites(ctx, req.LicenseKey, req.ProductSlug)
	if err != nil {
		return nil, err
	}

	status, err := s.licenses.Status(ctx, licensedomain.StatusRequest{
		LicenseKey:  req.LicenseKey,
		ProductSlug: req.ProductSlug,
	})
	if err != nil {
		return nil, err
	}
	if status.ActiveDomain == nil || *status.ActiveDomain != uploadDomain {
		return nil, licensedomain.ErrNotActivated
	}

	now := s.clock.Now()
	upload := &domain.Upload{
		ID:                  s.genID.Generate(),
		LicenseID:           license.ID,
		Domain:              uploadDomain,
		FileName:            fileName,
		Status:              domain.StatusPending,
		Credential:          ulid.Make().String(),
		CredentialExpiresAt: now.Add(credentialTTL),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.repo.Create(ctx, upload); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("upload credential issued",
		zap.String("upload_id", upload.ID.String()),
		zap.String("domain", uploadDomain),
	)
	return &domain.IssueResponse{
		Credential: upload.Credential,
		ExpiresAt:  upload.CredentialExpiresAt,
		UploadID:   upload.ID.String(),
	}, nil
}

// List returns upload history for a validated license/domain pair. The
// active-binding requirement is relaxed here on purpose: a customer who
// moved domains can still audit old imports.
func (s *Service) List(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	uploadDomain, err := licensedomain.NormalizeDomain(req.Domain)
	if err != nil {
		return nil, err
	}

	license, _, err := s.licenses.ValidatePrerequisites(ctx, req.LicenseKey, req.ProductSlug)
	if err != nil {
		return nil, err
	}

	var status domain.Status
	if trimmed := strings.ToLower(strings.TrimSpace(req.Status)); trimmed != "" {
		status = domain.Status(trimmed)
		switch status {
		case domain.StatusPending, domain.StatusProcessing, domain.StatusCompleted, domain.StatusFailed:
		default:
			return nil, domain.ErrInvalidUploadStatus
		}
	}

	page := req.Page.Clamp(maxPageLimit)
	items, total, err := s.repo.List(ctx, domain.ListFilter{
		LicenseID: license.ID,
		Domain:    uploadDomain,
		Status:    status,
		Page:      page,
	})
	if err != nil {
		return nil, err
	}

	views := make([]domain.View, 0, len(items))
	for i := range items {
		views = append(views, toView(&items[i]))
	}
	return &domain.ListResponse{
		Items:      views,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalItems: total,
	}, nil
}

// Complete transitions a job out of pending using its credential.
func (s *Service) Complete(ctx context.Context, req domain.CompleteRequest) (*domain.View, error) {
	credential := strings.TrimSpace(req.Credential)
	if credential == "" {
		return nil, licensedomain.ErrInvalidFormat
	}
	switch req.Status {
	case domain.StatusProcessing, domain.StatusCompleted, domain.StatusFailed:
	default:
		return nil, domain.ErrInvalidUploadStatus
	}

	upload, err := s.repo.FindByCredential(ctx, credential)
	if err != nil {
		return nil, err
	}
	if upload == nil {
		return nil, domain.ErrUploadNotFound
	}

	now := s.clock.Now()
	if now.After(upload.CredentialExpiresAt) && upload.Status == domain.StatusPending {
		return nil, domain.ErrCredentialExpired
	}

	upload.Status = req.Status
	if req.RowCount > 0 {
		upload.RowCount = req.RowCount
	}
	upload.ErrorMessage = req.ErrorMessage
	upload.UpdatedAt = now
	if err := s.repo.Update(ctx, upload); err != nil {
		return nil, err
	}

	view := toView(upload)
	return &view, nil
}

func toView(u *domain.Upload) domain.View {
	view := domain.View{
		ID:           u.ID.String(),
		FileName:     u.FileName,
		Domain:       u.Domain,
		Status:       u.Status,
		RowCount:     u.RowCount,
		ErrorMessage: u.ErrorMessage,
		CreatedAt:    u.CreatedAt,
	}
	if u.Status == domain.StatusCompleted || u.Status == domain.StatusFailed {
		completed := u.UpdatedAt
		view.CompletedAt = &completed
	}
	return view
}
