// Package adminauth authenticates the admin surface. Keys look like
// kg_<key id>_<secret>; the key id locates the row, the secret is checked
// against its bcrypt hash. A bootstrap key hash can be supplied via config
// so a fresh deployment is reachable before any row exists.
package adminauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/keygate/internal/authorization"
	"github.com/smallbiznis/keygate/internal/clock"
	"github.com/smallbiznis/keygate/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const keyPrefix = "kg"

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidRole  = errors.New("invalid admin role")
)

type AdminKey struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	Name       string       `gorm:"type:text;not null"`
	KeyID      string       `gorm:"type:text;not null;uniqueIndex:ux_admin_keys_key_id"`
	KeyHash    string       `gorm:"type:text;not null"`
	Role       string       `gorm:"type:text;not null"`
	Active     bool         `gorm:"not null;default:true"`
	LastUsedAt *time.Time   `gorm:""`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (AdminKey) TableName() string { return "admin_keys" }

// Identity is the authenticated admin principal handed to handlers.
type Identity struct {
	Subject string
	Role    string
}

type Service interface {
	// Verify authenticates a presented admin key.
	Verify(ctx context.Context, presented string) (*Identity, error)
	// Create mints a new key and returns the secret exactly once.
	Create(ctx context.Context, name, role string) (secret string, key *AdminKey, err error)
}

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Config config.Config
	GenID  *snowflake.Node
	Clock  clock.Clock
}

type service struct {
	db            *gorm.DB
	log           *zap.Logger
	bootstrapHash string
	genID         *snowflake.Node
	clock         clock.Clock
}

func New(p Params) Service {
	return &service{
		db:            p.DB,
		log:           p.Log.Named("adminauth"),
		bootstrapHash: p.Config.AdminKeyHash,
		genID:         p.GenID,
		clock:         p.Clock,
	}
}

func (s *service) Verify(ctx context.Context, presented string) (*Identity, error) {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return nil, ErrUnauthorized
	}

	if s.bootstrapHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(s.bootstrapHash), []byte(presented)); err == nil {
			return &Identity{Subject: "admin_key:bootstrap", Role: authorization.RoleAdmin}, nil
		}
	}

	parts := strings.SplitN(presented, "_", 3)
	if len(parts) != 3 || parts[0] != keyPrefix {
		return nil, ErrUnauthorized
	}
	keyID, secret := parts[1], parts[2]

	var record AdminKey
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, name, key_id, key_hash, role, active, last_used_at, created_at, updated_at
		 FROM admin_keys WHERE key_id = ? AND active = ?`,
		keyID,
		true,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(record.KeyHash), []byte(secret)); err != nil {
		return nil, ErrUnauthorized
	}

	now := s.clock.Now()
	if err := s.db.WithContext(ctx).Exec(
		`UPDATE admin_keys SET last_used_at = ? WHERE id = ?`, now, record.ID,
	).Error; err != nil {
		s.log.Warn("failed to record admin key use", zap.Error(err))
	}

	return &Identity{
		Subject: fmt.Sprintf("admin_key:%s", record.Name),
		Role:    record.Role,
	}, nil
}

func (s *service) Create(ctx context.Context, name, role string) (string, *AdminKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil, errors.New("admin key name is required")
	}
	switch role {
	case authorization.RoleAdmin, authorization.RoleSupport:
	default:
		return "", nil, ErrInvalidRole
	}

	keyID, err := randomHex(8)
	if err != nil {
		return "", nil, err
	}
	secret, err := randomHex(24)
	if err != nil {
		return "", nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, err
	}

	now := s.clock.Now()
	key := &AdminKey{
		ID:        s.genID.Generate(),
		Name:      name,
		KeyID:     keyID,
		KeyHash:   string(hash),
		Role:      role,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.db.WithContext(ctx).Exec(
		`INSERT INTO admin_keys (id, name, key_id, key_hash, role, active, last_used_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key.ID, key.Name, key.KeyID, key.KeyHash, key.Role, key.Active, key.LastUsedAt, key.CreatedAt, key.UpdatedAt,
	).Error
	if err != nil {
		return "", nil, err
	}

	s.log.Info("admin key created",
		zap.String("name", name),
		zap.String("role", role),
	)
	return fmt.Sprintf("%s_%s_%s", keyPrefix, keyID, secret), key, nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

var Module = fx.Module("adminauth",
	fx.Provide(New),
)
