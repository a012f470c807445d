package convert

import (
	"go.uber.org/zap"

	"github.com/knime/knime-dl4j-sub000/pkg/datatype"
	"github.com/knime/knime-dl4j-sub000/pkg/errors"
	"github.com/knime/knime-dl4j-sub000/pkg/logger"
)

// Extension contributes converters at startup.
type Extension interface {
	Name() string
	Converters() []TypeConverter
}

type staticExtension struct {
	name       string
	converters []TypeConverter
}

// StaticExtension returns an Extension with a fixed converter list.
func StaticExtension(name string, converters ...TypeConverter) Extension {
	return &staticExtension{name: name, converters: converters}
}

func (e *staticExtension) Name() string                { return e.name }
func (e *staticExtension) Converters() []TypeConverter { return e.converters }

// Init builds a registry over the builtin hierarchy from the converters of
// every extension, in order. The returned registry is meant to be built once
// and shared read-only. Nil converters are logged and skipped.
func Init(log *zap.Logger, extensions ...Extension) *Registry {
	return InitWith(datatype.Builtin(), log, extensions...)
}

// InitWith is like Init with an explicit compatibility relation.
func InitWith(compat datatype.Compatibility, log *zap.Logger, extensions ...Extension) *Registry {
	reg := NewRegistry(compat, log)
	l := logger.Component(log, "converter_init")

	for _, ext := range extensions {
		registered := 0
		for _, c := range ext.Converters() {
			if err := reg.Register(c); err != nil {
				l.Error("invalid converter in extension", zap.String("extension", ext.Name()), zap.Error(err))
				continue
			}
			registered++
		}
		l.Info("extension loaded", zap.String("extension", ext.Name()), zap.Int("converters", registered))
	}
	return reg
}

// Convert converts a single scalar value of type source to dest through the
// cache.
func Convert(cache *Cache, reg Resolver, source datatype.DataType, value interface{}, dest datatype.DataType) (interface{}, error) {
	conv, err := cache.GetOrResolve(source, dest, reg)
	if err != nil {
		return nil, err
	}
	out, err := conv.Convert(value)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeConversion) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrorTypeConversion, "converter "+conv.Identifier()+" failed")
	}
	return out, nil
}
