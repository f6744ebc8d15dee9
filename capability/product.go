package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arbiterhq/switchboard/store"
)

// ProductSpecs returns the product_mgmt agent's domain catalog bound to
// the request's store and tenant.
func ProductSpecs(b Binding) []Spec {
	return []Spec{
		{
			Schema: llmToolSchema("list_products",
				"List recent product records for this workspace.",
				`{"type":"object","properties":{"limit":{"type":"integer","minimum":1,"maximum":100}}}`),
			ReadOnly: true,
			Run: func(ctx context.Context, raw json.RawMessage) (Result, error) {
				var args struct {
					Limit int `json:"limit"`
				}
				if len(raw) > 0 {
					if err := json.Unmarshal(raw, &args); err != nil {
						return Result{}, fmt.Errorf("parse arguments: %w", err)
					}
				}
				products, err := b.Store.ListProducts(ctx, b.Tenant.TenantID, args.Limit)
				if err != nil {
					return Result{}, err
				}
				return DataResult(products)
			},
		},
		{
			Schema: llmToolSchema("get_product",
				"Fetch one product record by id or SKU.",
				`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`),
			ReadOnly: true,
			Run: func(ctx context.Context, raw json.RawMessage) (Result, error) {
				var args struct {
					ID string `json:"id"`
				}
				if err := json.Unmarshal(raw, &args); err != nil {
					return Result{}, fmt.Errorf("parse arguments: %w", err)
				}
				product, err := b.Store.GetProduct(ctx, b.Tenant.TenantID, args.ID)
				if err != nil {
					return Result{}, err
				}
				return DataResult(product)
			},
		},
		{
			Schema: llmToolSchema("create_product",
				"Create a new product record.",
				`{"type":"object","properties":{"sku":{"type":"string"},"name":{"type":"string"},"description":{"type":"string"},"price_cents":{"type":"integer","minimum":0},"stock":{"type":"integer","minimum":0}},"required":["name"]}`),
			Timeout: 10 * time.Second,
			Run: func(ctx context.Context, raw json.RawMessage) (Result, error) {
				var args struct {
					SKU         string `json:"sku"`
					Name        string `json:"name"`
					Description string `json:"description"`
					PriceCents  int64  `json:"price_cents"`
					Stock       int    `json:"stock"`
				}
				if err := json.Unmarshal(raw, &args); err != nil {
					return Result{}, fmt.Errorf("parse arguments: %w", err)
				}
				product, err := b.Store.CreateProduct(ctx, b.Tenant.TenantID, store.Product{
					SKU:         args.SKU,
					Name:        args.Name,
					Description: args.Description,
					PriceCents:  args.PriceCents,
					Stock:       args.Stock,
				})
				if err != nil {
					return Result{}, err
				}
				return DataResult(product)
			},
		},
		{
			Schema: llmToolSchema("update_product",
				"Update fields on an existing product record. Only supplied fields change.",
				`{"type":"object","properties":{"id":{"type":"string"},"name":{"type":"string"},"description":{"type":"string"},"price_cents":{"type":"integer","minimum":0},"stock":{"type":"integer","minimum":0}},"required":["id"]}`),
			Timeout: 10 * time.Second,
			Run: func(ctx context.Context, raw json.RawMessage) (Result, error) {
				var args struct {
					ID          string `json:"id"`
					Name        string `json:"name"`
					Description string `json:"description"`
					PriceCents  int64  `json:"price_cents"`
					Stock       *int   `json:"stock"`
				}
				if err := json.Unmarshal(raw, &args); err != nil {
					return Result{}, fmt.Errorf("parse arguments: %w", err)
				}
				upd := store.Product{
					Name:        args.Name,
					Description: args.Description,
					PriceCents:  args.PriceCents,
					Stock:       -1,
				}
				if args.Stock != nil {
					upd.Stock = *args.Stock
				}
				product, err := b.Store.UpdateProduct(ctx, b.Tenant.TenantID, args.ID, upd)
				if err != nil {
					return Result{}, err
				}
				return DataResult(product)
			},
		},
	}
}
