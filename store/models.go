package store

import "time"

// Customer is a tenant-scoped customer record managed by the customer_mgmt
// agent's capabilities.
type Customer struct {
	ID        string `gorm:"primaryKey;size:36"`
	TenantID  string `gorm:"size:64;index:idx_customers_tenant"`
	Name      string `gorm:"size:255"`
	Email     string `gorm:"size:255"`
	Notes     string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Product is a tenant-scoped product record managed by the product_mgmt
// agent's capabilities.
type Product struct {
	ID          string `gorm:"primaryKey;size:36"`
	TenantID    string `gorm:"size:64;index:idx_products_tenant"`
	SKU         string `gorm:"size:64;index:idx_products_sku"`
	Name        string `gorm:"size:255"`
	Description string `gorm:"type:text"`
	PriceCents  int64
	Stock       int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// GapRecord is a best-effort telemetry entry written when a conversation
// ended without any non-read-only capability invocation.
type GapRecord struct {
	ID           string `gorm:"primaryKey;size:36"`
	TenantID     string `gorm:"size:64;index:idx_gaps_tenant"`
	UserID       string `gorm:"size:64"`
	Agent        string `gorm:"size:64"`
	Description  string `gorm:"type:text"` // truncated triggering user message
	Capabilities string `gorm:"type:text"` // JSON array of invoked capability names
	CreatedAt    time.Time
}
