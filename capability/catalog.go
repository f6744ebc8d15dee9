package capability

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/arbiterhq/switchboard/llm"
	"github.com/arbiterhq/switchboard/store"
)

// Binding carries the request-scoped collaborators domain capabilities are
// bound to at set-build time.
type Binding struct {
	Store  *store.Store
	Tenant store.TenantContext
	Logger *zap.Logger
}

// BuilderFunc produces an agent's fixed capability catalog bound to a
// request's collaborators.
type BuilderFunc func(b Binding) []Spec

// Catalog maps agent identities to their capability builders. It is an
// explicitly constructed configuration value with no ambient global state;
// each request builds its own Set from it.
type Catalog struct {
	order    []AgentName
	builders map[AgentName]BuilderFunc
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{builders: make(map[AgentName]BuilderFunc)}
}

// Register adds an agent's capability builder.
func (c *Catalog) Register(agent AgentName, fn BuilderFunc) error {
	if agent == "" {
		return fmt.Errorf("agent name is required")
	}
	if fn == nil {
		return fmt.Errorf("builder for %s is nil", agent)
	}
	if _, exists := c.builders[agent]; exists {
		return fmt.Errorf("agent %s already registered", agent)
	}
	c.order = append(c.order, agent)
	c.builders[agent] = fn
	return nil
}

// Agents returns registered agent names in registration order.
func (c *Catalog) Agents() []AgentName {
	return append([]AgentName(nil), c.order...)
}

// Has reports whether agent is registered.
func (c *Catalog) Has(agent AgentName) bool {
	_, ok := c.builders[agent]
	return ok
}

// Build constructs the ordered capability set for one loop iteration: the
// agent's domain tools, followed by the transfer capability when
// handoffAllowed is true. When the current agent has just arrived via a
// handoff, previous names the agent the transfer is attributed to.
func (c *Catalog) Build(b Binding, agent AgentName, handoffAllowed bool, previous AgentName) (*Set, error) {
	fn, ok := c.builders[agent]
	if !ok {
		return nil, fmt.Errorf("unknown agent: %s", agent)
	}

	set := NewSet(b.Logger)
	for _, spec := range fn(b) {
		if err := set.Add(spec); err != nil {
			return nil, fmt.Errorf("build set for %s: %w", agent, err)
		}
	}

	if handoffAllowed {
		from := agent
		if previous != "" {
			from = previous
		}
		targets := make([]AgentName, 0, len(c.order)-1)
		for _, name := range c.order {
			if name != agent {
				targets = append(targets, name)
			}
		}
		if err := set.Add(HandoffSpec(from, targets)); err != nil {
			return nil, fmt.Errorf("add transfer capability: %w", err)
		}
	}

	return set, nil
}

// llmToolSchema assembles a tool schema from a raw JSON Schema string.
func llmToolSchema(name, description, parameters string) llm.ToolSchema {
	return llm.ToolSchema{
		Name:        name,
		Description: description,
		Parameters:  json.RawMessage(parameters),
	}
}
