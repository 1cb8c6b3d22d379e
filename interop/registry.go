package interop

import (
	"github.com/wippyai/interop-stubs/errors"
	"github.com/wippyai/interop-stubs/typesys"
)

// Factory builds the marshaller for one slot. It fails with an unsupported
// error when the type and metadata combination cannot be marshalled.
//
// Factories are stateless and can be shared across emissions.
type Factory interface {
	Create(ctx *Context, slot Slot) (Marshaller, error)
}

// FactoryFunc is an adapter to use ordinary functions as Factories.
//
// Example:
//
//	r.Register(typesys.KindInt32, interop.FactoryFunc(func(ctx *interop.Context, s interop.Slot) (interop.Marshaller, error) {
//	    return myMarshaller(s), nil
//	}), "custom")
type FactoryFunc func(ctx *Context, slot Slot) (Marshaller, error)

// Create implements Factory.
func (f FactoryFunc) Create(ctx *Context, slot Slot) (Marshaller, error) {
	return f(ctx, slot)
}

// Registry maps type kinds to marshaller factories.
//
// Lookup is O(1) by kind. A Registry is populated once and then only read,
// which makes it safe to share between concurrent emissions.
type Registry struct {
	factories [256]Factory
	names     [256]string
}

// NewRegistry creates an empty Registry. Every kind is initially
// unsupported.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a factory for a kind, replacing any previous one. The name
// shows up in diagnostics.
func (r *Registry) Register(kind typesys.Kind, f Factory, name string) {
	r.factories[kind] = f
	r.names[kind] = name
}

// RegisterFunc registers a function as the factory for a kind.
func (r *Registry) RegisterFunc(kind typesys.Kind, fn func(*Context, Slot) (Marshaller, error), name string) {
	r.Register(kind, FactoryFunc(fn), name)
}

// RegisterBulk registers the same factory for several kinds.
func (r *Registry) RegisterBulk(kinds []typesys.Kind, f Factory, name string) {
	for _, k := range kinds {
		r.factories[k] = f
		r.names[k] = name
	}
}

// Get returns the factory for a kind, or nil.
func (r *Registry) Get(kind typesys.Kind) Factory {
	return r.factories[kind]
}

// Has reports whether a factory is registered for the kind.
func (r *Registry) Has(kind typesys.Kind) bool {
	return r.factories[kind] != nil
}

// Name returns the registered factory name for a kind.
func (r *Registry) Name(kind typesys.Kind) string {
	return r.names[kind]
}

// MissingFactories returns the kinds without a registered factory.
func (r *Registry) MissingFactories(kinds []typesys.Kind) []typesys.Kind {
	var missing []typesys.Kind
	for _, k := range kinds {
		if r.factories[k] == nil {
			missing = append(missing, k)
		}
	}
	return missing
}

// Select builds the marshaller for a slot. It is a pure function of the slot
// and the shared context.
func (r *Registry) Select(ctx *Context, slot Slot) (Marshaller, error) {
	f := r.factories[slot.Type.Kind()]
	if f == nil {
		return nil, errors.UnsupportedMarshalling(slot.Index, slot.Type.String(),
			"no marshaller registered for "+slot.Type.Kind().String())
	}
	return f.Create(ctx, slot)
}
