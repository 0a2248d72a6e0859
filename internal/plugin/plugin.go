package plugin

import (
	"path/filepath"
	"sort"
	"sync"
)

// Plugin binds a parsed manifest to its on-disk bundle location. Records are
// created by discovery or installation and dropped on uninstall.
type Plugin struct {
	Manifest *Manifest
	Path     string
}

// EntryPath returns the absolute path of the plugin's entry-point file.
func (p *Plugin) EntryPath() string {
	return filepath.Join(p.Path, p.Manifest.Main)
}

// ID returns the plugin identifier.
func (p *Plugin) ID() string {
	return p.Manifest.ID
}

// Registry is the installed-plugin set. It is mutated only by the Installer;
// concurrent readers see either the pre- or post-mutation snapshot.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]*Plugin
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]*Plugin)}
}

// Add registers a plugin. Returns false if the id is already present.
func (r *Registry) Add(p *Plugin) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[p.ID()]; exists {
		return false
	}
	r.plugins[p.ID()] = p
	return true
}

// Remove drops a plugin record. Returns the removed record, or nil.
func (r *Registry) Remove(id string) *Plugin {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.plugins[id]
	delete(r.plugins, id)
	return p
}

// Get returns the plugin for id.
func (r *Registry) Get(id string) (*Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plugins[id]
	return p, ok
}

// Has reports whether id is installed.
func (r *Registry) Has(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// List returns all installed plugins sorted by id.
func (r *Registry) List() []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plugins := make([]*Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		plugins = append(plugins, p)
	}
	sort.Slice(plugins, func(i, j int) bool { return plugins[i].ID() < plugins[j].ID() })
	return plugins
}

// Count returns the number of installed plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}
