package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arbiterhq/switchboard/store"
)

// CustomerSpecs returns the customer_mgmt agent's domain catalog bound to
// the request's store and tenant.
func CustomerSpecs(b Binding) []Spec {
	return []Spec{
		{
			Schema: llmToolSchema("list_customers",
				"List recent customer records for this workspace.",
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
				customers, err := b.Store.ListCustomers(ctx, b.Tenant.TenantID, args.Limit)
				if err != nil {
					return Result{}, err
				}
				return DataResult(customers)
			},
		},
		{
			Schema: llmToolSchema("get_customer",
				"Fetch one customer record by id.",
				`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`),
			ReadOnly: true,
			Run: func(ctx context.Context, raw json.RawMessage) (Result, error) {
				var args struct {
					ID string `json:"id"`
				}
				if err := json.Unmarshal(raw, &args); err != nil {
					return Result{}, fmt.Errorf("parse arguments: %w", err)
				}
				customer, err := b.Store.GetCustomer(ctx, b.Tenant.TenantID, args.ID)
				if err != nil {
					return Result{}, err
				}
				return DataResult(customer)
			},
		},
		{
			Schema: llmToolSchema("create_customer",
				"Create a new customer record.",
				`{"type":"object","properties":{"name":{"type":"string"},"email":{"type":"string"},"notes":{"type":"string"}},"required":["name"]}`),
			Timeout: 10 * time.Second,
			Run: func(ctx context.Context, raw json.RawMessage) (Result, error) {
				var args struct {
					Name  string `json:"name"`
					Email string `json:"email"`
					Notes string `json:"notes"`
				}
				if err := json.Unmarshal(raw, &args); err != nil {
					return Result{}, fmt.Errorf("parse arguments: %w", err)
				}
				customer, err := b.Store.CreateCustomer(ctx, b.Tenant.TenantID, store.Customer{
					Name:  args.Name,
					Email: args.Email,
					Notes: args.Notes,
				})
				if err != nil {
					return Result{}, err
				}
				return DataResult(customer)
			},
		},
		{
			Schema: llmToolSchema("update_customer",
				"Update fields on an existing customer record. Only supplied fields change.",
				`{"type":"object","properties":{"id":{"type":"string"},"name":{"type":"string"},"email":{"type":"string"},"notes":{"type":"string"}},"required":["id"]}`),
			Timeout: 10 * time.Second,
			Run: func(ctx context.Context, raw json.RawMessage) (Result, error) {
				var args struct {
					ID    string `json:"id"`
					Name  string `json:"name"`
					Email string `json:"email"`
					Notes string `json:"notes"`
				}
				if err := json.Unmarshal(raw, &args); err != nil {
					return Result{}, fmt.Errorf("parse arguments: %w", err)
				}
				customer, err := b.Store.UpdateCustomer(ctx, b.Tenant.TenantID, args.ID, store.Customer{
					Name:  args.Name,
					Email: args.Email,
					Notes: args.Notes,
				})
				if err != nil {
					return Result{}, err
				}
				return DataResult(customer)
			},
		},
	}
}
