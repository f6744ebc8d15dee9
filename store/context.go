package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arbiterhq/switchboard/internal/cache"
)

// SummaryProvider builds the opaque per-tenant context string injected into
// every agent prompt. Summaries are derived from store aggregates and cached
// in Redis when a cache manager is configured; cache failures degrade to
// direct reads.
type SummaryProvider struct {
	store  *Store
	cache  *cache.Manager // optional
	ttl    time.Duration
	logger *zap.Logger
}

// NewSummaryProvider creates a provider. cacheMgr may be nil.
func NewSummaryProvider(s *Store, cacheMgr *cache.Manager, ttl time.Duration, logger *zap.Logger) *SummaryProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &SummaryProvider{
		store:  s,
		cache:  cacheMgr,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "summary_provider")),
	}
}

// DomainContext returns the tenant summary string. It satisfies the
// orchestrator's DomainContextProvider interface.
func (p *SummaryProvider) DomainContext(ctx context.Context, tenant TenantContext) (string, error) {
	key := "tenant_summary:" + tenant.TenantID

	if p.cache != nil {
		if cached, err := p.cache.Get(ctx, key); err == nil {
			return cached, nil
		} else if err != cache.ErrCacheMiss {
			p.logger.Warn("summary cache read failed, falling back to store", zap.Error(err))
		}
	}

	summary, err := p.build(ctx, tenant)
	if err != nil {
		return "", err
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, key, summary, p.ttl); err != nil {
			p.logger.Warn("summary cache write failed", zap.Error(err))
		}
	}

	return summary, nil
}

func (p *SummaryProvider) build(ctx context.Context, tenant TenantContext) (string, error) {
	customers, err := p.store.CountCustomers(ctx, tenant.TenantID)
	if err != nil {
		return "", err
	}
	products, err := p.store.CountProducts(ctx, tenant.TenantID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"Workspace %s currently holds %d customer record(s) and %d product record(s).",
		tenant.TenantID, customers, products,
	), nil
}
