// Package workflow provides workflow registration and management.
package workflow

import (
	"fmt"
	"sort"
	"sync"

	"github.com/codebypatrickleung/hvshift/internal/cloud/azure"
	"github.com/codebypatrickleung/hvshift/internal/cloud/oci"
	"github.com/codebypatrickleung/hvshift/internal/hypervisor"
	"github.com/codebypatrickleung/hvshift/internal/model"
)

// Registry manages workflow handlers for different migration paths.
type Registry struct {
	handlers map[string]Handler
	mu       sync.RWMutex
}

// NewRegistry creates a new workflow registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

func key(sourcePlatform, targetPlatform string) string {
	return fmt.Sprintf("%s-to-%s", sourcePlatform, targetPlatform)
}

// Register registers a workflow handler.
// The handler is registered using a key format: "source-to-target" (e.g., "xenserver-to-kvm").
func (r *Registry) Register(handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(handler.SourcePlatform(), handler.TargetPlatform())
	if _, exists := r.handlers[k]; exists {
		return fmt.Errorf("workflow handler for %s already registered", k)
	}

	r.handlers[k] = handler
	return nil
}

// Get retrieves a workflow handler for the given source and target platforms.
func (r *Registry) Get(sourcePlatform, targetPlatform string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	k := key(sourcePlatform, targetPlatform)
	handler, exists := r.handlers[k]
	if !exists {
		return nil, fmt.Errorf("no workflow handler registered for %s", k)
	}

	return handler, nil
}

// List returns all registered workflow handlers ordered by key.
func (r *Registry) List() []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	handlers := make([]Handler, 0, len(keys))
	for _, k := range keys {
		handlers = append(handlers, r.handlers[k])
	}
	return handlers
}

// Platforms returns the platform adapters hvshift can migrate between.
func Platforms() *hypervisor.Registry {
	platforms := hypervisor.NewRegistry()
	platforms.RegisterSource(model.PlatformXenServer, hypervisor.XenServerFactory)
	platforms.RegisterSource(model.PlatformAzure, azure.Factory)
	platforms.RegisterSource(model.PlatformOCI, oci.Factory)
	platforms.RegisterTarget(model.PlatformKVM, hypervisor.KVMFactory)
	return platforms
}

// DefaultRegistry returns a registry with a migration handler for every source and target pair.
func DefaultRegistry(platforms *hypervisor.Registry) (*Registry, error) {
	registry := NewRegistry()
	for _, source := range platforms.Sources() {
		for _, target := range platforms.Targets() {
			if err := registry.Register(NewMigrationHandler(source, target, platforms)); err != nil {
				return nil, err
			}
		}
	}
	return registry, nil
}
