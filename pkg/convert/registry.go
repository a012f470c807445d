package convert

import (
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/knime/knime-dl4j-sub000/pkg/datatype"
	"github.com/knime/knime-dl4j-sub000/pkg/errors"
	"github.com/knime/knime-dl4j-sub000/pkg/logger"
	"github.com/knime/knime-dl4j-sub000/pkg/metrics"
)

// Registry holds TypeConverters and resolves type pairs to them
type Registry struct {
	compat datatype.Compatibility

	mu     sync.RWMutex
	byID   map[string]TypeConverter
	order  []string
	byDest map[datatype.DataType]map[string]struct{}

	logger *zap.Logger
}

// NewRegistry creates an empty registry that checks source types against
// compat. A nil compat uses the builtin hierarchy.
func NewRegistry(compat datatype.Compatibility, log *zap.Logger) *Registry {
	if compat == nil {
		compat = datatype.Builtin()
	}
	return &Registry{
		compat: compat,
		byID:   make(map[string]TypeConverter),
		byDest: make(map[datatype.DataType]map[string]struct{}),
		logger: logger.Component(log, "converter_registry"),
	}
}

// Register adds a converter. A converter whose identifier is already
// registered replaces the previous one and keeps its registration position.
func (r *Registry) Register(c TypeConverter) error {
	if isNil(c) {
		return errors.New(errors.ErrorTypeValidation, "converter must not be nil")
	}

	id := c.Identifier()

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, exists := r.byID[id]; exists {
		r.logger.Warn("coding error: converter identifier registered twice, replacing",
			zap.String("identifier", id),
			zap.Int("previous_priority", prev.Priority()),
			zap.Int("priority", c.Priority()))
		if d := prev.DestinationType(); d != c.DestinationType() {
			delete(r.byDest[d], id)
		}
	} else {
		r.order = append(r.order, id)
		metrics.ConvertersRegistered.Inc()
	}
	r.byID[id] = c

	dest := c.DestinationType()
	if r.byDest[dest] == nil {
		r.byDest[dest] = make(map[string]struct{})
	}
	r.byDest[dest][id] = struct{}{}

	r.logger.Debug("converter registered",
		zap.String("identifier", id),
		zap.Int("priority", c.Priority()))
	return nil
}

// isNil also catches typed nils such as (*FuncConverter)(nil).
func isNil(c TypeConverter) bool {
	if c == nil {
		return true
	}
	switch v := reflect.ValueOf(c); v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// MustRegister is like Register but panics on error. Intended for static
// converter tables.
func (r *Registry) MustRegister(cs ...TypeConverter) *Registry {
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
	return r
}

// Resolve returns the converter for values of type source producing dest.
// Candidates must accept source under the registry's compatibility relation
// and declare exactly dest. The highest priority wins; equal priorities go to
// the converter registered first.
func (r *Registry) Resolve(source, dest datatype.DataType) (TypeConverter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids, ok := r.byDest[dest]
	if !ok || len(ids) == 0 {
		metrics.ConverterResolutions.WithLabelValues("unsupported").Inc()
		return nil, false
	}

	var best TypeConverter
	for _, id := range r.order {
		if _, candidate := ids[id]; !candidate {
			continue
		}
		c := r.byID[id]
		if !r.compat.IsCompatible(source, c.SourceType()) {
			continue
		}
		if best == nil || c.Priority() > best.Priority() {
			best = c
		}
	}

	if best == nil {
		metrics.ConverterResolutions.WithLabelValues("unsupported").Inc()
		return nil, false
	}
	metrics.ConverterResolutions.WithLabelValues("found").Inc()
	return best, true
}

// SourceTypes returns the declared source types of converters producing
// dest, in registration order and without duplicates.
func (r *Registry) SourceTypes(dest datatype.DataType) []datatype.DataType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byDest[dest]
	seen := make(map[datatype.DataType]bool)
	var out []datatype.DataType
	for _, id := range r.order {
		if _, ok := ids[id]; !ok {
			continue
		}
		src := r.byID[id].SourceType()
		if !seen[src] {
			seen[src] = true
			out = append(out, src)
		}
	}
	return out
}

// Converters returns all converters in registration order.
func (r *Registry) Converters() []TypeConverter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]TypeConverter, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Lookup returns the converter registered under id.
func (r *Registry) Lookup(id string) (TypeConverter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	return c, ok
}

// Len returns the number of registered converters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
