// Package registry maps table formats to the factories that open them.
//
// Sources register themselves from init functions; importing
// pkg/table/sources pulls in every builtin format:
//
//	import _ "github.com/knime/knime-dl4j-sub000/pkg/table/sources"
//
//	tbl, err := registry.Open(ctx, &cfg.Table, log)
package registry

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/knime/knime-dl4j-sub000/pkg/config"
	"github.com/knime/knime-dl4j-sub000/pkg/errors"
	"github.com/knime/knime-dl4j-sub000/pkg/logger"
	"github.com/knime/knime-dl4j-sub000/pkg/table"
)

// Factory opens a table from its configuration.
type Factory func(ctx context.Context, cfg *config.TableConfig, log *zap.Logger) (table.Table, error)

// Registry manages table format registration and instantiation
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
	logger    *zap.Logger
}

// Global registry instance
var globalRegistry = NewRegistry(nil)

// NewRegistry creates an empty registry. A nil logger uses the global one.
func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = logger.Get()
	}
	return &Registry{
		factories: make(map[string]Factory),
		logger:    logger.Component(log, "table_registry"),
	}
}

// Register registers a factory under a format name.
func (r *Registry) Register(format string, factory Factory) error {
	if format == "" || factory == nil {
		return errors.New(errors.ErrorTypeValidation, "format name and factory are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[format]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "table format %s already registered", format)
	}

	r.factories[format] = factory
	r.logger.Debug("table format registered", zap.String("format", format))
	return nil
}

// Open creates the table named by cfg.Format.
func (r *Registry) Open(ctx context.Context, cfg *config.TableConfig, log *zap.Logger) (table.Table, error) {
	r.mu.RLock()
	factory, exists := r.factories[cfg.Format]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeConfig, "table format %s not found", cfg.Format).
			WithDetail("available", r.List())
	}
	if log == nil {
		log = r.logger
	}

	tbl, err := factory(ctx, cfg, log)
	if err != nil {
		if _, ok := err.(*errors.Error); ok {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to open "+cfg.Format+" table")
	}

	r.logger.Info("table opened",
		zap.String("format", cfg.Format),
		zap.Int("columns", tbl.Schema().Len()))
	return tbl, nil
}

// List returns the registered formats in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	formats := make([]string, 0, len(r.factories))
	for name := range r.factories {
		formats = append(formats, name)
	}
	sort.Strings(formats)
	return formats
}

// Has checks if a format is registered
func (r *Registry) Has(format string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[format]
	return exists
}

// Global registry functions

// Register registers a format in the global registry
func Register(format string, factory Factory) error {
	return globalRegistry.Register(format, factory)
}

// MustRegister is Register for init functions; it panics on error.
func MustRegister(format string, factory Factory) {
	if err := Register(format, factory); err != nil {
		panic(err)
	}
}

// Open opens a table through the global registry
func Open(ctx context.Context, cfg *config.TableConfig, log *zap.Logger) (table.Table, error) {
	return globalRegistry.Open(ctx, cfg, log)
}

// List returns the formats of the global registry
func List() []string {
	return globalRegistry.List()
}

// Has checks if a format is registered in the global registry
func Has(format string) bool {
	return globalRegistry.Has(format)
}
