package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"github.com/arbiterhq/switchboard/internal/cache"
)

func TestSummaryProvider_WithoutCache(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	if _, err := st.CreateCustomer(ctx, "t1", Customer{Name: "Ada"}); err != nil {
		t.Fatalf("seed customer: %v", err)
	}

	p := NewSummaryProvider(st, nil, 0, zap.NewNop())
	got, err := p.DomainContext(ctx, TenantContext{TenantID: "t1"})
	if err != nil {
		t.Fatalf("DomainContext failed: %v", err)
	}
	if !strings.Contains(got, "1 customer record(s)") || !strings.Contains(got, "0 product record(s)") {
		t.Fatalf("unexpected summary: %q", got)
	}
}

func TestSummaryProvider_CachesSummary(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	mgr, err := cache.NewManager(cache.Config{Addr: mr.Addr(), DefaultTTL: time.Minute}, zap.NewNop())
	if err != nil {
		t.Fatalf("cache manager: %v", err)
	}
	defer mgr.Close()

	p := NewSummaryProvider(st, mgr, time.Minute, zap.NewNop())

	first, err := p.DomainContext(ctx, TenantContext{TenantID: "t1"})
	if err != nil {
		t.Fatalf("DomainContext failed: %v", err)
	}

	// A write after the first read must not show up until the TTL expires.
	if _, err := st.CreateProduct(ctx, "t1", Product{Name: "Widget"}); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	second, err := p.DomainContext(ctx, TenantContext{TenantID: "t1"})
	if err != nil {
		t.Fatalf("DomainContext failed: %v", err)
	}
	if second != first {
		t.Fatalf("expected cached summary, got %q vs %q", second, first)
	}

	mr.FastForward(2 * time.Minute)
	third, err := p.DomainContext(ctx, TenantContext{TenantID: "t1"})
	if err != nil {
		t.Fatalf("DomainContext failed: %v", err)
	}
	if !strings.Contains(third, "1 product record(s)") {
		t.Fatalf("expected rebuilt summary after expiry, got %q", third)
	}
}
