package typesys

import (
	"sync"

	"github.com/wippyai/interop-stubs/errors"
)

// OS identifies the operating system a compilation targets.
type OS uint8

const (
	OSLinux OS = iota
	OSWindows
	OSDarwin
	OSFreeBSD
)

func (o OS) String() string {
	switch o {
	case OSWindows:
		return "windows"
	case OSDarwin:
		return "darwin"
	case OSFreeBSD:
		return "freebsd"
	default:
		return "linux"
	}
}

// ParseOS maps a GOOS-style name to an OS.
func ParseOS(s string) (OS, error) {
	switch s {
	case "linux", "":
		return OSLinux, nil
	case "windows":
		return OSWindows, nil
	case "darwin", "macos":
		return OSDarwin, nil
	case "freebsd":
		return OSFreeBSD, nil
	}
	return 0, errors.InvalidInput(errors.PhaseLoad, "unknown target os "+s)
}

// Target describes the platform the compiled code runs on.
type Target struct {
	OS          OS
	PointerSize int
}

// IsWindows reports whether the target is a Windows platform.
func (t Target) IsWindows() bool { return t.OS == OSWindows }

// DefaultTarget is 64-bit Linux.
func DefaultTarget() Target {
	return Target{OS: OSLinux, PointerSize: 8}
}

// WellKnownType names the core library types every Context provides.
type WellKnownType uint8

const (
	WellKnownVoid WellKnownType = iota
	WellKnownBoolean
	WellKnownChar
	WellKnownSByte
	WellKnownByte
	WellKnownInt16
	WellKnownUInt16
	WellKnownInt32
	WellKnownUInt32
	WellKnownInt64
	WellKnownUInt64
	WellKnownIntPtr
	WellKnownUIntPtr
	WellKnownSingle
	WellKnownDouble
	WellKnownString
	WellKnownObject
	WellKnownException

	numWellKnown
)

var wellKnownDefs = [numWellKnown]struct {
	name string
	kind Kind
}{
	WellKnownVoid:      {"Void", KindVoid},
	WellKnownBoolean:   {"Boolean", KindBoolean},
	WellKnownChar:      {"Char", KindChar},
	WellKnownSByte:     {"SByte", KindSByte},
	WellKnownByte:      {"Byte", KindByte},
	WellKnownInt16:     {"Int16", KindInt16},
	WellKnownUInt16:    {"UInt16", KindUInt16},
	WellKnownInt32:     {"Int32", KindInt32},
	WellKnownUInt32:    {"UInt32", KindUInt32},
	WellKnownInt64:     {"Int64", KindInt64},
	WellKnownUInt64:    {"UInt64", KindUInt64},
	WellKnownIntPtr:    {"IntPtr", KindIntPtr},
	WellKnownUIntPtr:   {"UIntPtr", KindUIntPtr},
	WellKnownSingle:    {"Single", KindSingle},
	WellKnownDouble:    {"Double", KindDouble},
	WellKnownString:    {"String", KindString},
	WellKnownObject:    {"Object", KindObject},
	WellKnownException: {"Exception", KindClass},
}

const (
	// SystemModule is the declaring module of every built-in type.
	SystemModule = "System.Private.CoreLib"

	// HelperNamespace holds the compiler helper types.
	HelperNamespace = "Internal.Runtime.CompilerHelpers"

	// InteropNamespace holds PInvokeMarshal.
	InteropNamespace = "System.Runtime.InteropServices"

	ConstructorName = ".ctor"
)

// Context owns a type universe: the well-known types, the compiler helper
// types, user type definitions and interned parameterized types.
//
// Lookups and interning are safe for concurrent use. Type definitions should
// be completed before the universe is shared across workers.
type Context struct {
	target      Target
	wellKnown   [numWellKnown]*DefType
	types       map[string]*DefType
	pointers    map[Type]*ParameterizedType
	byrefs      map[Type]*ParameterizedType
	arrays      map[Type]*ParameterizedType
	mu          sync.RWMutex
	internMu    sync.Mutex
	pointerSize int
}

// NewContext creates a type universe for target with the core library and
// compiler helper types already defined.
func NewContext(target Target) *Context {
	if target.PointerSize == 0 {
		target.PointerSize = 8
	}
	c := &Context{
		target:      target,
		pointerSize: target.PointerSize,
		types:       make(map[string]*DefType),
		pointers:    make(map[Type]*ParameterizedType),
		byrefs:      make(map[Type]*ParameterizedType),
		arrays:      make(map[Type]*ParameterizedType),
	}
	c.defineCoreTypes()
	c.defineHelperTypes()
	return c
}

// Target returns the platform this universe compiles for.
func (c *Context) Target() Target { return c.target }

// PointerSize returns the native pointer width in bytes.
func (c *Context) PointerSize() int { return c.pointerSize }

// WellKnown returns a core library type.
func (c *Context) WellKnown(w WellKnownType) *DefType {
	return c.wellKnown[w]
}

// Primitive returns the well-known type for a primitive kind, Void, String
// or Object.
func (c *Context) Primitive(k Kind) (*DefType, bool) {
	for i, def := range wellKnownDefs {
		if def.kind == k && WellKnownType(i) != WellKnownException {
			return c.wellKnown[i], true
		}
	}
	return nil, false
}

// DefineType registers a user type definition.
func (c *Context) DefineType(spec TypeSpec) (*DefType, error) {
	switch spec.Kind {
	case KindClass, KindValueType:
	default:
		return nil, errors.InvalidInput(errors.PhaseResolve, "user types must be classes or value types, got "+spec.Kind.String())
	}
	if spec.Name == "" {
		return nil, errors.InvalidInput(errors.PhaseResolve, "type name is empty")
	}
	t := &DefType{
		ctx:        c,
		base:       spec.Base,
		namespace:  spec.Namespace,
		name:       spec.Name,
		module:     spec.Module,
		interfaces: append([]*DefType(nil), spec.Interfaces...),
		kind:       spec.Kind,
		flags:      spec.Flags,
	}
	if t.base == nil && spec.Kind == KindClass && spec.Flags&FlagInterface == 0 {
		t.base = c.wellKnown[WellKnownObject]
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	name := t.FullName()
	if _, exists := c.types[name]; exists {
		return nil, errors.InvalidInput(errors.PhaseResolve, "type "+name+" already defined")
	}
	c.types[name] = t
	return t, nil
}

// LookupType finds a type definition by namespace and name.
func (c *Context) LookupType(namespace, name string) (*DefType, error) {
	full := name
	if namespace != "" {
		full = namespace + "." + name
	}
	c.mu.RLock()
	t, ok := c.types[full]
	c.mu.RUnlock()
	if !ok {
		return nil, errors.NotFound(errors.PhaseResolve, "type", full)
	}
	return t, nil
}

// SystemType finds a type defined by the core library.
func (c *Context) SystemType(namespace, name string) (*DefType, error) {
	t, err := c.LookupType(namespace, name)
	if err != nil {
		return nil, err
	}
	if t.module != SystemModule {
		return nil, errors.NotFound(errors.PhaseResolve, "system type", t.FullName())
	}
	return t, nil
}

// HelperType finds a compiler helper type by name.
func (c *Context) HelperType(name string) (*DefType, error) {
	return c.SystemType(HelperNamespace, name)
}

// PointerType returns the interned unmanaged pointer to elem.
func (c *Context) PointerType(elem Type) *ParameterizedType {
	return c.intern(c.pointers, KindPointer, elem)
}

// ByRefType returns the interned managed reference to elem.
func (c *Context) ByRefType(elem Type) *ParameterizedType {
	return c.intern(c.byrefs, KindByRef, elem)
}

// ArrayType returns the interned single-dimensional array of elem.
func (c *Context) ArrayType(elem Type) *ParameterizedType {
	return c.intern(c.arrays, KindArray, elem)
}

func (c *Context) intern(table map[Type]*ParameterizedType, kind Kind, elem Type) *ParameterizedType {
	c.internMu.Lock()
	defer c.internMu.Unlock()
	if t, ok := table[elem]; ok {
		return t
	}
	t := &ParameterizedType{ctx: c, kind: kind, elem: elem}
	table[elem] = t
	return t
}

func (c *Context) defineCoreTypes() {
	for i, def := range wellKnownDefs {
		t := &DefType{
			ctx:       c,
			namespace: "System",
			name:      def.name,
			module:    SystemModule,
			kind:      def.kind,
		}
		c.wellKnown[i] = t
		c.types[t.FullName()] = t
	}

	object := c.wellKnown[WellKnownObject]
	void := c.wellKnown[WellKnownVoid]
	str := c.wellKnown[WellKnownString]
	object.DefineMethod(ConstructorName, NewMethodSignature(0, 0, void, nil))

	exception := c.wellKnown[WellKnownException]
	exception.base = object
	exception.DefineMethod(ConstructorName, NewMethodSignature(0, 0, void, nil))
	exception.DefineMethod(ConstructorName, NewMethodSignature(0, 0, void, []Type{str}))
	str.base = object
}

func (c *Context) defineHelperTypes() {
	void := c.wellKnown[WellKnownVoid]
	intPtr := c.wellKnown[WellKnownIntPtr]
	int32T := c.wellKnown[WellKnownInt32]

	interopHelpers := c.defineSystemType(HelperNamespace, "InteropHelpers", KindClass)
	methodCell := interopHelpers.DefineNestedType("MethodFixupCell", KindValueType)
	interopHelpers.DefineNestedType("ModuleFixupCell", KindValueType)
	interopHelpers.DefineMethod("ResolvePInvoke",
		NewMethodSignature(SignatureStatic, 0, intPtr, []Type{c.PointerType(methodCell)}))

	marshal := c.defineSystemType(InteropNamespace, "PInvokeMarshal", KindClass)
	marshal.DefineMethod("ClearLastWin32Error", NewMethodSignature(SignatureStatic, 0, void, nil))
	marshal.DefineMethod("SaveLastWin32Error", NewMethodSignature(SignatureStatic, 0, void, nil))
	marshal.DefineMethod("GetLastWin32Error", NewMethodSignature(SignatureStatic, 0, int32T, nil))
}

func (c *Context) defineSystemType(namespace, name string, kind Kind) *DefType {
	t := &DefType{
		ctx:       c,
		base:      c.wellKnown[WellKnownObject],
		namespace: namespace,
		name:      name,
		module:    SystemModule,
		kind:      kind,
		flags:     FlagAbstract,
	}
	c.types[t.FullName()] = t
	return t
}
