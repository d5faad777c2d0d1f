package hypervisor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/codebypatrickleung/hvshift/internal/config"
	"github.com/codebypatrickleung/hvshift/internal/logger"
	"github.com/codebypatrickleung/hvshift/internal/remote"
)

// Env carries what a platform factory needs to build an adapter.
type Env struct {
	Config   *config.Config
	Executor remote.Executor
	Pusher   remote.FilePusher
	Logger   *logger.Logger
}

// SourceFactory builds a source adapter.
type SourceFactory func(ctx context.Context, env Env) (SourcePlatform, error)

// TargetFactory builds a target adapter.
type TargetFactory func(ctx context.Context, env Env) (TargetPlatform, error)

// Registry resolves platform adapters by name.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]SourceFactory
	targets map[string]TargetFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]SourceFactory),
		targets: make(map[string]TargetFactory),
	}
}

// RegisterSource adds a source factory.
func (r *Registry) RegisterSource(name string, factory SourceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[name] = factory
}

// RegisterTarget adds a target factory.
func (r *Registry) RegisterTarget(name string, factory TargetFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[name] = factory
}

// Source builds the source adapter registered under name.
func (r *Registry) Source(ctx context.Context, name string, env Env) (SourcePlatform, error) {
	r.mu.RLock()
	factory, ok := r.sources[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no source platform registered for %q", name)
	}
	return factory(ctx, env)
}

// Target builds the target adapter registered under name.
func (r *Registry) Target(ctx context.Context, name string, env Env) (TargetPlatform, error) {
	r.mu.RLock()
	factory, ok := r.targets[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no target platform registered for %q", name)
	}
	return factory(ctx, env)
}

// Sources lists the registered source platform names.
func (r *Registry) Sources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Targets lists the registered target platform names.
func (r *Registry) Targets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.targets))
	for name := range r.targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// XenServerFactory builds a XenServerSource from env.
func XenServerFactory(_ context.Context, env Env) (SourcePlatform, error) {
	return NewXenServerSource(env.Executor, env.Logger), nil
}

// KVMFactory builds a KVMTarget from env.
func KVMFactory(_ context.Context, env Env) (TargetPlatform, error) {
	return NewKVMTarget(env.Executor, env.Pusher, env.Config.MountPattern, env.Logger), nil
}
