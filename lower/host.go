package lower

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/interop-stubs/errors"
	"github.com/wippyai/interop-stubs/fixup"
	"github.com/wippyai/interop-stubs/lower/internal/handles"
	"github.com/wippyai/interop-stubs/lower/internal/memory"
)

// ManagedException is raised by a stub's throw. It carries the message
// passed to the exception constructor.
type ManagedException struct {
	Message string
}

func (e *ManagedException) Error() string {
	return "System.Exception: " + e.Message
}

// Host runs lowered stubs under wazero. It plays the native side: libraries
// of Go functions, the platform error slot, lazy fixup resolution and
// managed exceptions.
//
// Native functions are addressed by function pointers. A pointer is the
// 1-based registration index of the function; library handles are the
// 1-based registration index of the library. Zero is never valid.
type Host struct {
	runtime    wazero.Runtime
	libraries  map[string]*Library
	libs       []*Library
	funcs      []*nativeFunc
	exceptions *handles.Table[*ManagedException]
	mu         sync.Mutex
	hostMu     sync.Mutex
	instances  atomic.Uint64
	platform   atomic.Uint32
	last       atomic.Uint32
}

// Library is a named set of native functions.
type Library struct {
	host   *Host
	funcs  map[string]*nativeFunc
	name   string
	handle uint32
}

type nativeFunc struct {
	lib   *Library
	fn    api.GoModuleFunc
	entry string
	sig   Signature
	ptr   uint32
}

// NewHost creates a host with its own wazero runtime.
func NewHost(ctx context.Context) *Host {
	return NewHostWithRuntime(wazero.NewRuntime(ctx))
}

// NewHostWithRuntime creates a host on an existing runtime. The host owns
// the runtime from then on.
func NewHostWithRuntime(rt wazero.Runtime) *Host {
	return &Host{
		runtime:    rt,
		libraries:  make(map[string]*Library),
		exceptions: handles.New[*ManagedException](),
	}
}

// Runtime returns the underlying wazero runtime.
func (h *Host) Runtime() wazero.Runtime { return h.runtime }

// Close closes the runtime and every instance in it.
func (h *Host) Close(ctx context.Context) error {
	return h.runtime.Close(ctx)
}

// Library returns the library with the given name, creating it on first use.
func (h *Host) Library(name string) *Library {
	h.mu.Lock()
	defer h.mu.Unlock()

	if lib, ok := h.libraries[name]; ok {
		return lib
	}
	lib := &Library{
		host:   h,
		name:   name,
		handle: uint32(len(h.libs) + 1),
		funcs:  make(map[string]*nativeFunc),
	}
	h.libraries[name] = lib
	h.libs = append(h.libs, lib)
	return lib
}

// Name returns the library name.
func (l *Library) Name() string { return l.name }

// Func registers entry with the given signature. Registering an entry again
// replaces its implementation and keeps its function pointer.
func (l *Library) Func(entry string, params, results []api.ValueType, fn api.GoModuleFunc) *Library {
	h := l.host
	h.mu.Lock()
	defer h.mu.Unlock()

	sig := Signature{Params: params, Results: results}
	if nf, ok := l.funcs[entry]; ok {
		nf.fn = fn
		nf.sig = sig
		return l
	}
	nf := &nativeFunc{lib: l, entry: entry, sig: sig, fn: fn, ptr: uint32(len(h.funcs) + 1)}
	h.funcs = append(h.funcs, nf)
	l.funcs[entry] = nf
	return l
}

// FunctionPointer returns the pointer a resolved fixup cell holds for entry.
func (l *Library) FunctionPointer(entry string) (uint32, bool) {
	l.host.mu.Lock()
	defer l.host.mu.Unlock()
	nf, ok := l.funcs[entry]
	if !ok {
		return 0, false
	}
	return nf.ptr, true
}

// SetPlatformError sets the error code a native function reports, the way
// errno or the thread's Win32 error would.
func (h *Host) SetPlatformError(code uint32) { h.platform.Store(code) }

// PlatformError returns the current platform error.
func (h *Host) PlatformError() uint32 { return h.platform.Load() }

// LastError returns the error code saved by the most recent stub that
// brackets its call with last-error handling.
func (h *Host) LastError() uint32 { return h.last.Load() }

func (h *Host) function(ptr uint32) (*nativeFunc, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ptr == 0 || int(ptr) > len(h.funcs) {
		return nil, errors.New(errors.PhaseHost, errors.KindInvalidData).
			Value(ptr).
			Detail("invalid function pointer %#x", ptr).
			Build()
	}
	return h.funcs[ptr-1], nil
}

func (h *Host) lookup(module, entry string) (*nativeFunc, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	lib, ok := h.libraries[module]
	if !ok {
		return nil, false
	}
	nf, ok := lib.funcs[entry]
	return nf, ok
}

// resolve binds a method fixup cell on first use and returns its target.
func (h *Host) resolve(mem *memory.Wrapper, cell uint32) (uint32, error) {
	const word = PointerSize

	target, err := mem.ReadU32(cell + fixup.MethodCellTarget*word)
	if err != nil || target != 0 {
		return target, err
	}
	namePtr, err := mem.ReadU32(cell + fixup.MethodCellName*word)
	if err != nil {
		return 0, err
	}
	modCell, err := mem.ReadU32(cell + fixup.MethodCellModule*word)
	if err != nil {
		return 0, err
	}
	entry, err := mem.ReadCString(namePtr)
	if err != nil {
		return 0, err
	}
	modPtr, err := mem.ReadU32(modCell + fixup.ModuleCellName*word)
	if err != nil {
		return 0, err
	}
	module, err := mem.ReadCString(modPtr)
	if err != nil {
		return 0, err
	}

	nf, ok := h.lookup(module, entry)
	if !ok {
		return 0, errors.NewMissingImportsError([]string{module + "#" + entry})
	}
	if err := mem.WriteU32(modCell+fixup.ModuleCellHandle*word, nf.lib.handle); err != nil {
		return 0, err
	}
	if err := mem.WriteU32(cell+fixup.MethodCellTarget*word, nf.ptr); err != nil {
		return 0, err
	}
	Logger().Debug("resolved pinvoke",
		zap.String("module", module),
		zap.String("entry", entry),
		zap.Uint32("target", nf.ptr))
	return nf.ptr, nil
}

func (h *Host) newException(msg string) uint32 {
	return uint32(h.exceptions.Insert(&ManagedException{Message: msg}))
}

// takeException releases the handle of a thrown exception.
func (h *Host) takeException(handle uint32) *ManagedException {
	exc, ok := h.exceptions.Take(handles.Handle(handle))
	if !ok {
		return &ManagedException{Message: fmt.Sprintf("invalid exception handle %d", handle)}
	}
	return exc
}

// PendingExceptions returns the number of exceptions created but not yet
// thrown.
func (h *Host) PendingExceptions() int { return h.exceptions.Len() }

// hostFunc is one export of a host module.
type hostFunc struct {
	fn      api.GoModuleFunc
	name    string
	params  []api.ValueType
	results []api.ValueType
}

func (h *Host) interopFuncs(trampolines []Trampoline) []hostFunc {
	i32 := []api.ValueType{api.ValueTypeI32}
	funcs := []hostFunc{
		{name: ImportClearLastError, fn: func(context.Context, api.Module, []uint64) {
			h.platform.Store(0)
		}},
		{name: ImportSaveLastError, fn: func(context.Context, api.Module, []uint64) {
			h.last.Store(h.platform.Load())
		}},
		{name: ImportGetLastError, results: i32, fn: func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = uint64(h.last.Load())
		}},
		{name: ImportResolvePInvoke, params: i32, results: i32, fn: func(_ context.Context, mod api.Module, stack []uint64) {
			target, err := h.resolve(memory.Wrap(mod.Memory()), api.DecodeU32(stack[0]))
			if err != nil {
				panic(err)
			}
			stack[0] = uint64(target)
		}},
		{name: ImportNewException, params: i32, results: i32, fn: func(_ context.Context, mod api.Module, stack []uint64) {
			msg, err := memory.Wrap(mod.Memory()).ReadCString(api.DecodeU32(stack[0]))
			if err != nil {
				panic(err)
			}
			stack[0] = uint64(h.newException(msg))
		}},
		{name: ImportThrow, params: i32, fn: func(_ context.Context, _ api.Module, stack []uint64) {
			panic(h.takeException(api.DecodeU32(stack[0])))
		}},
	}
	for _, t := range trampolines {
		funcs = append(funcs, hostFunc{
			name:    t.Name,
			params:  append(append([]api.ValueType(nil), t.Signature.Params...), api.ValueTypeI32),
			results: t.Signature.Results,
			fn:      h.trampoline(t.Signature),
		})
	}
	return funcs
}

// trampoline calls through a function pointer. The pointer follows the
// call arguments on the stack.
func (h *Host) trampoline(sig Signature) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		n := len(sig.Params)
		nf, err := h.function(api.DecodeU32(stack[n]))
		if err != nil {
			panic(err)
		}
		if !nf.sig.Equal(sig) {
			panic(errors.TypeMismatch(errors.PhaseHost, []string{nf.lib.name, nf.entry}, sig.String(), nf.sig.String()))
		}
		frame := make([]uint64, max(len(sig.Params), len(sig.Results)))
		copy(frame, stack[:n])
		nf.fn(ctx, mod, frame)
		copy(stack, frame[:len(sig.Results)])
	}
}

// trampolinesFor returns the module's trampolines plus one per distinct
// signature of the registered functions, so later modules calling those
// functions indirectly find their trampoline already exported.
func (h *Host) trampolinesFor(m *Module) []Trampoline {
	seen := make(map[string]bool)
	var out []Trampoline
	add := func(sig Signature) {
		name := TrampolineName(sig)
		if !seen[name] {
			seen[name] = true
			out = append(out, Trampoline{Name: name, Signature: sig})
		}
	}
	for _, t := range m.Trampolines {
		add(t.Signature)
	}
	h.mu.Lock()
	for _, nf := range h.funcs {
		add(nf.sig)
	}
	h.mu.Unlock()
	return out
}

func (h *Host) libraryFuncs(name string) []hostFunc {
	h.mu.Lock()
	defer h.mu.Unlock()
	lib, ok := h.libraries[name]
	if !ok {
		return nil
	}
	var funcs []hostFunc
	for _, nf := range h.funcs {
		if nf.lib != lib {
			continue
		}
		funcs = append(funcs, hostFunc{
			name:    nf.entry,
			params:  nf.sig.Params,
			results: nf.sig.Results,
			fn: func(ctx context.Context, mod api.Module, stack []uint64) {
				nf.fn(ctx, mod, stack)
			},
		})
	}
	return funcs
}

// getOrCreateHostModule instantiates a host module once per runtime.
func (h *Host) getOrCreateHostModule(ctx context.Context, name string, funcs []hostFunc) (api.Module, error) {
	h.hostMu.Lock()
	defer h.hostMu.Unlock()

	if existing := h.runtime.Module(name); existing != nil {
		return existing, nil
	}
	builder := h.runtime.NewHostModuleBuilder(name)
	for _, f := range funcs {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(f.fn, f.params, f.results).
			Export(f.name)
	}
	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseHost, errors.KindMissingImport, err, "host module "+name)
	}
	Logger().Debug("instantiated host module", zap.String("module", name), zap.Int("exports", len(funcs)))
	return mod, nil
}

// Instantiate links m against the host's libraries and instantiates it.
// Eager imports are checked up front; lazy ones resolve on first call.
// Host modules are created once, so a later module needing an indirect
// call signature or library function the first one did not see gets a
// MissingImportsError.
func (h *Host) Instantiate(ctx context.Context, m *Module) (*Instance, error) {
	var missing []string
	modules := make(map[string]bool)
	var order []string
	for _, n := range m.Natives {
		nf, ok := h.lookup(n.Module, n.Entry)
		if !ok {
			missing = append(missing, n.Module+"#"+n.Entry)
			continue
		}
		if !nf.sig.Equal(n.Signature) {
			return nil, errors.TypeMismatch(errors.PhaseHost, []string{n.Module, n.Entry}, n.Signature.String(), nf.sig.String())
		}
		if !modules[n.Module] {
			modules[n.Module] = true
			order = append(order, n.Module)
		}
	}
	if len(missing) > 0 {
		return nil, errors.NewMissingImportsError(missing)
	}

	interop, err := h.getOrCreateHostModule(ctx, InteropModule, h.interopFuncs(h.trampolinesFor(m)))
	if err != nil {
		return nil, err
	}
	for _, t := range m.Trampolines {
		if !exports(interop, t.Name) {
			missing = append(missing, InteropModule+"#"+t.Name)
		}
	}
	for _, name := range order {
		lib, err := h.getOrCreateHostModule(ctx, name, h.libraryFuncs(name))
		if err != nil {
			return nil, err
		}
		for _, n := range m.Natives {
			if n.Module == name && !exports(lib, n.Entry) {
				missing = append(missing, n.Module+"#"+n.Entry)
			}
		}
	}
	if len(missing) > 0 {
		return nil, errors.NewMissingImportsError(missing)
	}

	name := fmt.Sprintf("stubs.%d", h.instances.Add(1))
	mod, err := h.runtime.InstantiateWithConfig(ctx, m.Binary, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseHost, errors.KindInvalidData, err, "instantiate "+name)
	}
	Logger().Debug("instantiated stubs",
		zap.String("module", name),
		zap.Int("exports", len(m.Exports)),
		zap.Strings("libraries", order))
	return &Instance{host: h, module: m, mod: mod}, nil
}

// exports reports whether mod exports a function named name. Host modules
// forbid ExportedFunction, so this goes through the definitions.
func exports(mod api.Module, name string) bool {
	return mod.ExportedFunctionDefinitions()[name] != nil
}

// Instance is an instantiated stub module.
type Instance struct {
	host   *Host
	module *Module
	mod    api.Module
}

// Memory returns the instance's linear memory.
func (i *Instance) Memory() api.Memory { return i.mod.Memory() }

// Module returns the lowered module the instance runs.
func (i *Instance) Module() *Module { return i.module }

// Close releases the instance.
func (i *Instance) Close(ctx context.Context) error { return i.mod.Close(ctx) }

// Call invokes the stub exported as name. A managed exception comes back as
// *ManagedException and unresolvable lazy imports as
// *errors.MissingImportsError; other traps are wrapped.
func (i *Instance) Call(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	fn := i.mod.ExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseHost, "stub", name)
	}
	res, err := fn.Call(ctx, args...)
	if err == nil {
		return res, nil
	}

	var me *ManagedException
	if stderrors.As(err, &me) {
		return nil, me
	}
	var mie *errors.MissingImportsError
	if stderrors.As(err, &mie) {
		return nil, mie
	}
	var se *errors.Error
	if stderrors.As(err, &se) {
		return nil, se
	}
	return nil, errors.Wrap(errors.PhaseHost, errors.KindTrap, err, "call "+name)
}
