package stubs

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/wippyai/interop-stubs/errors"
	"github.com/wippyai/interop-stubs/interop"
	"github.com/wippyai/interop-stubs/symtab"
	"github.com/wippyai/interop-stubs/typesys"
)

// Counter hands out native method sequence numbers. Values start at 1, are
// strictly increasing and never repeat, also under concurrent use.
type Counter struct {
	n atomic.Uint64
}

// NewCounter creates a counter whose first value is 1.
func NewCounter() *Counter {
	return &Counter{}
}

// Next returns the next sequence number.
func (c *Counter) Next() uint64 {
	return c.n.Add(1)
}

// Last returns the most recently issued number, or 0.
func (c *Counter) Last() uint64 {
	return c.n.Load()
}

// ResolutionPolicy chooses between eager and lazy call binding.
type ResolutionPolicy uint8

const (
	// ResolveAuto binds eagerly to the runtime's own module ("*" or
	// "[MRT]") and to platform libraries that are always present:
	// api-ms-win-* on Windows, libSystem.* elsewhere. Everything else is
	// resolved lazily.
	ResolveAuto ResolutionPolicy = iota
	ResolveLazy
	ResolveEager
)

func (p ResolutionPolicy) String() string {
	switch p {
	case ResolveLazy:
		return "lazy"
	case ResolveEager:
		return "eager"
	default:
		return "auto"
	}
}

// ParseResolutionPolicy parses "auto", "lazy" or "eager".
func ParseResolutionPolicy(s string) (ResolutionPolicy, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return ResolveAuto, nil
	case "lazy":
		return ResolveLazy, nil
	case "eager":
		return ResolveEager, nil
	}
	return 0, errors.InvalidInput(errors.PhaseBind, "unknown resolution policy "+s)
}

// HelperResolver finds the compiler helper types stubs call into.
// *typesys.Context implements it.
type HelperResolver interface {
	HelperType(name string) (*typesys.DefType, error)
	SystemType(namespace, name string) (*typesys.DefType, error)
}

// SymbolSink receives the synthetic descriptors of successfully emitted
// stubs. *symtab.Table implements it.
type SymbolSink interface {
	Add(sym symtab.Symbol) bool
}

// Config is the emitter configuration shared by all stub emissions of a
// compilation. Share it by pointer; a Config must not be copied after first
// use.
//
// Nil fields are completed on first use: a fresh Counter, the built-in
// marshaller registry, and the method's own type universe for helper lookup.
type Config struct {
	NativeMethodIDs *Counter
	Helpers         HelperResolver
	Marshallers     *interop.Registry
	Symbols         SymbolSink
	Resolution      ResolutionPolicy

	once sync.Once
}

// DefaultConfig returns a configuration with a fresh counter, the built-in
// marshallers and automatic resolution.
func DefaultConfig() *Config {
	return &Config{
		NativeMethodIDs: NewCounter(),
		Marshallers:     interop.DefaultRegistry(),
	}
}

func (c *Config) complete() {
	c.once.Do(func() {
		if c.NativeMethodIDs == nil {
			c.NativeMethodIDs = NewCounter()
		}
		if c.Marshallers == nil {
			c.Marshallers = interop.DefaultRegistry()
		}
	})
}

func (c *Config) helpers(m typesys.Method) HelperResolver {
	if c.Helpers != nil {
		return c.Helpers
	}
	return m.OwningType().Context()
}

// UseLazyResolution reports whether calls to module from method bind through
// a fixup cell. The answer depends only on the method's target platform,
// the module name and the policy.
func (c *Config) UseLazyResolution(method typesys.Method, module string) bool {
	switch c.Resolution {
	case ResolveLazy:
		return true
	case ResolveEager:
		return false
	}
	if module == "*" || module == "[MRT]" {
		return false
	}
	if method.OwningType().Context().Target().IsWindows() {
		return !strings.HasPrefix(strings.ToLower(module), "api-ms-win-")
	}
	return !strings.HasPrefix(module, "libSystem.")
}
