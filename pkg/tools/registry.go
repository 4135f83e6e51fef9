package tools

import (
	"fmt"
	"slices"
	"sync"
)

// ToolFactory creates a tool bound to one session.
type ToolFactory func(sc SessionContext) (Tool, error)

// toolDescriptor pairs a factory with the definition it produces.
//
//nolint:govet // fieldalignment: logical grouping preferred
type toolDescriptor struct {
	def     ToolDefinition
	factory ToolFactory
}

//nolint:govet // fieldalignment: logical grouping preferred
type immutableRegistry struct {
	mu     sync.RWMutex
	sealed bool
	tools  map[string]toolDescriptor
}

//nolint:gochecknoglobals // factory registry populated from init
var globalRegistry = &immutableRegistry{
	tools: make(map[string]toolDescriptor),
}

// Register adds a tool factory. Panics after the registry is sealed.
func Register(def ToolDefinition, factory ToolFactory) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	if globalRegistry.sealed {
		panic(fmt.Sprintf("tool registry sealed - cannot register tool '%s'", def.Name))
	}
	globalRegistry.tools[def.Name] = toolDescriptor{def: def, factory: factory}
}

// Seal prevents further registrations. Called when the first provider is created.
func Seal() {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	globalRegistry.sealed = true
}

// Definition returns the registered definition for name.
func Definition(name string) (ToolDefinition, bool) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	desc, ok := globalRegistry.tools[name]
	return desc.def, ok
}

// ToolProvider hands out session-bound tool instances restricted to an allow-list.
//
//nolint:govet // fieldalignment: logical grouping preferred
type ToolProvider struct {
	sc      SessionContext
	allowed []string
	tools   map[string]Tool
	mu      sync.Mutex
}

// NewProvider creates a provider for one session. allowed fixes both the set
// and the order of definitions returned by List.
func NewProvider(sc SessionContext, allowed []string) *ToolProvider {
	Seal()
	return &ToolProvider{
		sc:      sc,
		allowed: slices.Clone(allowed),
		tools:   make(map[string]Tool),
	}
}

// Allows reports whether name is in the allow-list.
func (p *ToolProvider) Allows(name string) bool {
	return slices.Contains(p.allowed, name)
}

// Get returns the tool, creating and caching it on first use.
func (p *ToolProvider) Get(name string) (Tool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.Allows(name) {
		return nil, fmt.Errorf("tool '%s' not allowed in this context", name)
	}
	if tool, ok := p.tools[name]; ok {
		return tool, nil
	}

	globalRegistry.mu.RLock()
	desc, exists := globalRegistry.tools[name]
	globalRegistry.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("tool '%s' not registered", name)
	}

	tool, err := desc.factory(p.sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool '%s': %w", name, err)
	}
	p.tools[name] = tool
	return tool, nil
}

// List returns the definitions of the allowed tools in allow-list order.
func (p *ToolProvider) List() []ToolDefinition {
	out := make([]ToolDefinition, 0, len(p.allowed))
	for _, name := range p.allowed {
		if def, ok := Definition(name); ok {
			out = append(out, def)
		}
	}
	return out
}
