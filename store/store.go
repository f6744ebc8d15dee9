// Package store provides the tenant-scoped data layer backing the domain
// capabilities: customers, products, and gap telemetry records.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a record does not exist within the tenant's
// scope.
var ErrNotFound = errors.New("record not found")

// TenantContext identifies the tenant and end user a request acts on behalf
// of. It is bound into every capability set and scopes every query.
type TenantContext struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id,omitempty"`
}

// Store wraps the gorm handle with tenant-scoped accessors. It is safe for
// concurrent use; all mutations go through gorm's own transaction handling.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New creates a Store and migrates the schema.
func New(db *gorm.DB, logger *zap.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := db.AutoMigrate(&Customer{}, &Product{}, &GapRecord{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	return &Store{
		db:     db,
		logger: logger.With(zap.String("component", "store")),
	}, nil
}

// DB returns the underlying gorm handle.
func (s *Store) DB() *gorm.DB { return s.db }

// ====== Customers ======

func (s *Store) ListCustomers(ctx context.Context, tenantID string, limit int) ([]Customer, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var out []Customer
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return out, nil
}

func (s *Store) GetCustomer(ctx context.Context, tenantID, id string) (*Customer, error) {
	var c Customer
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, tenantID string, c Customer) (*Customer, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, fmt.Errorf("customer name is required")
	}
	c.ID = uuid.NewString()
	c.TenantID = tenantID
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	s.logger.Info("customer created",
		zap.String("tenant_id", tenantID),
		zap.String("customer_id", c.ID),
	)
	return &c, nil
}

// UpdateCustomer applies non-empty fields of upd to the stored record.
func (s *Store) UpdateCustomer(ctx context.Context, tenantID, id string, upd Customer) (*Customer, error) {
	existing, err := s.GetCustomer(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != "" {
		existing.Name = upd.Name
	}
	if upd.Email != "" {
		existing.Email = upd.Email
	}
	if upd.Notes != "" {
		existing.Notes = upd.Notes
	}
	existing.UpdatedAt = time.Now()
	if err := s.db.WithContext(ctx).Save(existing).Error; err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	return existing, nil
}

func (s *Store) CountCustomers(ctx context.Context, tenantID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&Customer{}).
		Where("tenant_id = ?", tenantID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count customers: %w", err)
	}
	return n, nil
}

// ====== Products ======

func (s *Store) ListProducts(ctx context.Context, tenantID string, limit int) ([]Product, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var out []Product
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

func (s *Store) GetProduct(ctx context.Context, tenantID, id string) (*Product, error) {
	var p Product
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND (id = ? OR sku = ?)", tenantID, id, id).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, tenantID string, p Product) (*Product, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("product name is required")
	}
	if p.PriceCents < 0 {
		return nil, fmt.Errorf("price must not be negative")
	}
	p.ID = uuid.NewString()
	p.TenantID = tenantID
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	s.logger.Info("product created",
		zap.String("tenant_id", tenantID),
		zap.String("product_id", p.ID),
	)
	return &p, nil
}

// UpdateProduct applies non-zero fields of upd to the stored record. Stock
// updates use Stock >= 0 as the signal; pass -1 to leave stock unchanged.
func (s *Store) UpdateProduct(ctx context.Context, tenantID, id string, upd Product) (*Product, error) {
	existing, err := s.GetProduct(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != "" {
		existing.Name = upd.Name
	}
	if upd.Description != "" {
		existing.Description = upd.Description
	}
	if upd.PriceCents > 0 {
		existing.PriceCents = upd.PriceCents
	}
	if upd.Stock >= 0 {
		existing.Stock = upd.Stock
	}
	existing.UpdatedAt = time.Now()
	if err := s.db.WithContext(ctx).Save(existing).Error; err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	return existing, nil
}

func (s *Store) CountProducts(ctx context.Context, tenantID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&Product{}).
		Where("tenant_id = ?", tenantID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// ====== Gap telemetry sink ======

// RecordGap persists a gap telemetry entry. It satisfies the orchestrator's
// TelemetrySink interface; callers are expected to treat failures as
// best-effort.
func (s *Store) RecordGap(ctx context.Context, tenantID, userID, agent, description string, capabilities []string) error {
	caps, err := json.Marshal(capabilities)
	if err != nil {
		return fmt.Errorf("marshal capabilities: %w", err)
	}
	rec := GapRecord{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		UserID:       userID,
		Agent:        agent,
		Description:  description,
		Capabilities: string(caps),
		CreatedAt:    time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("record gap: %w", err)
	}
	return nil
}
