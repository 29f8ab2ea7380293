package collectors

import (
	"context"
	"fmt"
	"sync"

	"github.com/de-tools/compliance-atlas/pkg/models/domain"
	"github.com/de-tools/compliance-atlas/pkg/services/credentials"
)

// Collector gathers raw findings for a single subscription. Each audit
// module contributes one implementation; everything downstream of the
// collector (reconciliation, scoring, history) is module-agnostic.
type Collector interface {
	Collect(ctx context.Context, sub domain.Subscription) ([]domain.Finding, error)
}

// Factory builds a collector bound to one credential session.
type Factory func(ctx context.Context, session *credentials.Session) (Collector, error)

// Registry maps module codes to collector factories.
type Registry interface {
	Register(module domain.ModuleCode, factory Factory) error
	Create(ctx context.Context, module domain.ModuleCode, session *credentials.Session) (Collector, error)
	ListModules() []domain.ModuleCode
}

type registry struct {
	mu        sync.RWMutex
	factories map[domain.ModuleCode]Factory
}

func NewRegistry() Registry {
	return &registry{
		factories: make(map[domain.ModuleCode]Factory),
	}
}

func (r *registry) Register(module domain.ModuleCode, factory Factory) error {
	if module == "" {
		return fmt.Errorf("module code cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[module]; exists {
		return fmt.Errorf("module %q is already registered", module)
	}

	r.factories[module] = factory
	return nil
}

func (r *registry) Create(
	ctx context.Context,
	module domain.ModuleCode,
	session *credentials.Session,
) (Collector, error) {
	r.mu.RLock()
	factory, exists := r.factories[module]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("no collector registered for module %q", module)
	}

	return factory(ctx, session)
}

func (r *registry) ListModules() []domain.ModuleCode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	modules := make([]domain.ModuleCode, 0, len(r.factories))
	for module := range r.factories {
		modules = append(modules, module)
	}
	return modules
}
