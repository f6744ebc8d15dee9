package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/arbiterhq/switchboard/llm"
	"github.com/arbiterhq/switchboard/store"
)

func newTestBinding(t *testing.T) Binding {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	st, err := store.New(db, zap.NewNop())
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}
	return Binding{
		Store:  st,
		Tenant: store.TenantContext{TenantID: "t1", UserID: "u1"},
		Logger: zap.NewNop(),
	}
}

func buildSet(t *testing.T, specs []Spec) *Set {
	t.Helper()
	set := NewSet(zap.NewNop())
	for _, s := range specs {
		if err := set.Add(s); err != nil {
			t.Fatalf("Add(%s) failed: %v", s.Schema.Name, err)
		}
	}
	return set
}

func toolCall(name, args string) llm.ToolCall {
	return llm.ToolCall{ID: "call_" + name, Name: name, Arguments: json.RawMessage(args)}
}

func TestCustomerSpecs_EndToEnd(t *testing.T) {
	b := newTestBinding(t)
	set := buildSet(t, CustomerSpecs(b))

	env := set.Execute(context.Background(), toolCall("create_customer", `{"name":"Ada","email":"ada@example.com"}`))
	if env.Kind != KindData {
		t.Fatalf("create_customer failed: %#v", env)
	}
	var created store.Customer
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode created customer: %v", err)
	}

	env = set.Execute(context.Background(), toolCall("get_customer", fmt.Sprintf(`{"id":%q}`, created.ID)))
	if env.Kind != KindData {
		t.Fatalf("get_customer failed: %#v", env)
	}

	env = set.Execute(context.Background(), toolCall("update_customer", fmt.Sprintf(`{"id":%q,"notes":"VIP"}`, created.ID)))
	if env.Kind != KindData {
		t.Fatalf("update_customer failed: %#v", env)
	}
	var updated store.Customer
	if err := json.Unmarshal(env.Data, &updated); err != nil {
		t.Fatalf("decode updated customer: %v", err)
	}
	if updated.Notes != "VIP" || updated.Name != "Ada" {
		t.Fatalf("unexpected update: %#v", updated)
	}

	env = set.Execute(context.Background(), toolCall("list_customers", `{}`))
	if env.Kind != KindData {
		t.Fatalf("list_customers failed: %#v", env)
	}
	var listed []store.Customer
	if err := json.Unmarshal(env.Data, &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 customer, got %d", len(listed))
	}

	// Missing record surfaces as an error envelope, not a Go panic.
	env = set.Execute(context.Background(), toolCall("get_customer", `{"id":"nope"}`))
	if env.Kind != KindError {
		t.Fatalf("expected error envelope, got %#v", env)
	}
}

func TestProductSpecs_EndToEnd(t *testing.T) {
	b := newTestBinding(t)
	set := buildSet(t, ProductSpecs(b))

	env := set.Execute(context.Background(), toolCall("create_product", `{"name":"Widget","sku":"W-1","price_cents":999,"stock":3}`))
	if env.Kind != KindData {
		t.Fatalf("create_product failed: %#v", env)
	}
	var created store.Product
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode created product: %v", err)
	}

	// Lookup by SKU works as well as by id.
	env = set.Execute(context.Background(), toolCall("get_product", `{"id":"W-1"}`))
	if env.Kind != KindData {
		t.Fatalf("get_product by SKU failed: %#v", env)
	}

	// Omitted stock stays untouched; explicit zero clears it.
	env = set.Execute(context.Background(), toolCall("update_product", fmt.Sprintf(`{"id":%q,"price_cents":1099}`, created.ID)))
	if env.Kind != KindData {
		t.Fatalf("update_product failed: %#v", env)
	}
	var updated store.Product
	if err := json.Unmarshal(env.Data, &updated); err != nil {
		t.Fatalf("decode updated product: %v", err)
	}
	if updated.Stock != 3 || updated.PriceCents != 1099 {
		t.Fatalf("omitted stock changed: %#v", updated)
	}

	env = set.Execute(context.Background(), toolCall("update_product", fmt.Sprintf(`{"id":%q,"stock":0}`, created.ID)))
	if env.Kind != KindData {
		t.Fatalf("update_product failed: %#v", env)
	}
	if err := json.Unmarshal(env.Data, &updated); err != nil {
		t.Fatalf("decode updated product: %v", err)
	}
	if updated.Stock != 0 {
		t.Fatalf("explicit zero stock not applied: %#v", updated)
	}
}
