// Package plugin keeps a process-wide registry of AI provider factories.
// Provider packages register themselves from init(), keyed by kind ("stt",
// "tts", "llm", "vad") and name, and callers look factories up at session
// build time without importing the provider packages directly.
package plugin

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a provider instance from configuration. Callers assert the
// returned value to the provider interface matching the plugin's kind.
type Factory func(cfg map[string]any) (any, error)

// Plugin describes a registered provider.
type Plugin struct {
	Kind        string
	Name        string
	Factory     Factory
	Description string
	Version     string
	Config      map[string]any // default configuration values
}

// Registry is a concurrency-safe collection of plugins, indexed by kind and
// name. The zero value is not usable; use the package-level functions or
// build one with a non-nil plugins map.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]map[string]*Plugin
}

var globalRegistry = &Registry{plugins: make(map[string]map[string]*Plugin)}

// Register adds a plugin with no metadata to the global registry.
// Panics on duplicate kind/name, so registration bugs surface at startup.
func Register(kind, name string, factory Factory) {
	globalRegistry.Register(kind, name, factory)
}

// RegisterWithMetadata adds a fully described plugin to the global registry.
// Panics on duplicate kind/name.
func RegisterWithMetadata(p *Plugin) {
	globalRegistry.RegisterWithMetadata(p)
}

// Get looks up a factory in the global registry.
func Get(kind, name string) (Factory, bool) {
	return globalRegistry.Get(kind, name)
}

// List returns the global registry's plugins of the given kind, or all
// plugins when kind is empty.
func List(kind string) []*Plugin {
	return globalRegistry.List(kind)
}

// ListKinds returns the kinds present in the global registry.
func ListKinds() []string {
	return globalRegistry.ListKinds()
}

// Register adds a bare factory under the given kind and name.
func (r *Registry) Register(kind, name string, factory Factory) {
	r.RegisterWithMetadata(&Plugin{Kind: kind, Name: name, Factory: factory})
}

// RegisterWithMetadata stores the plugin, panicking if the entry is
// incomplete or the kind/name pair is already taken.
func (r *Registry) RegisterWithMetadata(p *Plugin) {
	switch {
	case p.Kind == "":
		panic("plugin kind cannot be empty")
	case p.Name == "":
		panic("plugin name cannot be empty")
	case p.Factory == nil:
		panic("plugin factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byName := r.plugins[p.Kind]
	if byName == nil {
		byName = make(map[string]*Plugin)
		r.plugins[p.Kind] = byName
	}
	if existing, ok := byName[p.Name]; ok {
		panic(fmt.Sprintf("plugin %s/%s already registered (existing version: %s, new version: %s)",
			p.Kind, p.Name, existing.Version, p.Version))
	}
	byName[p.Name] = p
}

// Get returns the factory registered under kind and name.
func (r *Registry) Get(kind, name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plugins[kind][name]
	if !ok {
		return nil, false
	}
	return p.Factory, true
}

// List returns plugins of the given kind, or every plugin when kind is
// empty, ordered by kind then name.
func (r *Registry) List(kind string) []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Plugin
	for k, byName := range r.plugins {
		if kind != "" && k != kind {
			continue
		}
		for _, p := range byName {
			out = append(out, p)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ListKinds returns the registered kinds in sorted order.
func (r *Registry) ListKinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.plugins))
	for k := range r.plugins {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Clear drops every registered plugin. Intended for tests that need an
// isolated registry instance.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins = make(map[string]map[string]*Plugin)
}
