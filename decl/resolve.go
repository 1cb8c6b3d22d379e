package decl

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/interop-stubs/errors"
	"github.com/wippyai/interop-stubs/typesys"
)

// Declarations is a resolved declaration file: a type universe for the
// target and the declared methods in file order.
type Declarations struct {
	Types   *typesys.Context
	Methods []*typesys.MethodDef
}

var callingConventions = map[string]typesys.PInvokeAttributes{
	"":         0,
	"winapi":   typesys.PInvokeCallingConventionWinApi,
	"cdecl":    typesys.PInvokeCallingConventionCdecl,
	"stdcall":  typesys.PInvokeCallingConventionStdCall,
	"thiscall": typesys.PInvokeCallingConventionThisCall,
	"fastcall": typesys.PInvokeCallingConventionFastCall,
}

var charsets = map[string]typesys.PInvokeAttributes{
	"":        typesys.PInvokeCharSetNotSpec,
	"ansi":    typesys.PInvokeCharSetAnsi,
	"unicode": typesys.PInvokeCharSetUnicode,
	"auto":    typesys.PInvokeCharSetAuto,
}

// Resolve builds the type universe the file describes. All types are
// defined before any signature is resolved, so methods may refer to types
// declared later in the file.
func (f *File) Resolve() (*Declarations, error) {
	target, err := f.Target.resolve()
	if err != nil {
		return nil, err
	}
	ctx := typesys.NewContext(target)

	owners := make([]*typesys.DefType, len(f.Types))
	for i, td := range f.Types {
		kind := typesys.KindClass
		switch td.Kind {
		case "", "class":
		case "struct":
			kind = typesys.KindValueType
		default:
			return nil, loadErr(fmt.Sprintf("types[%d].kind", i), "unknown type kind %q", td.Kind)
		}
		owner, err := ctx.DefineType(typesys.TypeSpec{Namespace: td.Namespace, Name: td.Name, Kind: kind})
		if err != nil {
			return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, fmt.Sprintf("types[%d]", i))
		}
		owners[i] = owner
	}

	decls := &Declarations{Types: ctx}
	for i, td := range f.Types {
		for j, md := range td.Methods {
			path := fmt.Sprintf("types[%d].methods[%d]", i, j)
			m, err := md.define(ctx, owners[i], path)
			if err != nil {
				return nil, err
			}
			decls.Methods = append(decls.Methods, m)
		}
	}
	return decls, nil
}

func (t Target) resolve() (typesys.Target, error) {
	goos, err := typesys.ParseOS(t.OS)
	if err != nil {
		return typesys.Target{}, at(err, "target.os")
	}
	size := t.PointerSize
	switch size {
	case 0:
		size = 8
	case 4, 8:
	default:
		return typesys.Target{}, loadErr("target.pointer-size", "must be 4 or 8, got %d", size)
	}
	return typesys.Target{OS: goos, PointerSize: size}, nil
}

func (md MethodDecl) define(ctx *typesys.Context, owner *typesys.DefType, path string) (*typesys.MethodDef, error) {
	if md.Name == "" {
		return nil, loadErr(path+".name", "method name is required")
	}

	attrs, err := md.Import.attributes(path + ".import")
	if err != nil {
		return nil, err
	}

	ret := typesys.Type(ctx.WellKnown(typesys.WellKnownVoid))
	var metadata []typesys.ParameterMetadata
	if md.Result != nil {
		ret, err = ParseType(ctx, md.Result.Type)
		if err != nil {
			return nil, at(err, path+".result.type")
		}
		if md.Result.MarshalAs != "" {
			nt, err := typesys.ParseNativeTypeKind(md.Result.MarshalAs)
			if err != nil {
				return nil, at(err, path+".result.marshal-as")
			}
			metadata = append(metadata, typesys.ParameterMetadata{
				Index:     0,
				MarshalAs: &typesys.MarshalAsDescriptor{Type: nt},
			})
		}
	}

	params := make([]typesys.Type, len(md.Params))
	for k, pd := range md.Params {
		ppath := path + ".params[" + strconv.Itoa(k) + "]"
		params[k], err = ParseType(ctx, pd.Type)
		if err != nil {
			return nil, at(err, ppath+".type")
		}
		if params[k].Kind() == typesys.KindVoid {
			return nil, loadErr(ppath+".type", "void is not a parameter type")
		}
		pm, err := pd.metadata(k + 1)
		if err != nil {
			return nil, at(err, ppath+".marshal-as")
		}
		if pm != nil {
			metadata = append(metadata, *pm)
		}
	}

	sig := typesys.NewMethodSignature(typesys.SignatureStatic, 0, ret, params)
	m := owner.DefineMethod(md.Name, sig).WithPInvoke(typesys.PInvokeMetadata{
		Module:     md.Import.Module,
		Name:       md.Import.Entry,
		Attributes: attrs,
	})
	if len(metadata) > 0 {
		m.WithParameterMetadata(metadata...)
	}
	return m, nil
}

func (id ImportDecl) attributes(path string) (typesys.PInvokeAttributes, error) {
	cc, ok := callingConventions[strings.ToLower(id.CallingConvention)]
	if !ok {
		return 0, loadErr(path+".calling-convention", "unknown calling convention %q", id.CallingConvention)
	}
	cs, ok := charsets[strings.ToLower(id.Charset)]
	if !ok {
		return 0, loadErr(path+".charset", "unknown charset %q", id.Charset)
	}
	attrs := cc | cs
	if id.SetLastError {
		attrs |= typesys.PInvokeSetLastError
	}
	if id.ExactSpelling {
		attrs |= typesys.PInvokeExactSpelling
	}
	return attrs, nil
}

// metadata returns nil when the parameter carries nothing beyond defaults.
func (pd ParamDecl) metadata(index int) (*typesys.ParameterMetadata, error) {
	pm := typesys.ParameterMetadata{Index: index, Name: pd.Name}
	if pd.In {
		pm.Attributes |= typesys.ParameterIn
	}
	if pd.Out {
		pm.Attributes |= typesys.ParameterOut
	}
	if pd.MarshalAs != "" {
		nt, err := typesys.ParseNativeTypeKind(pd.MarshalAs)
		if err != nil {
			return nil, err
		}
		pm.MarshalAs = &typesys.MarshalAsDescriptor{Type: nt}
	}
	if pm.Attributes == 0 && pm.MarshalAs == nil && pm.Name == "" {
		return nil, nil
	}
	return &pm, nil
}

var extraSpellings = map[string]typesys.WellKnownType{
	"void":    typesys.WellKnownVoid,
	"intptr":  typesys.WellKnownIntPtr,
	"uintptr": typesys.WellKnownUIntPtr,
	"object":  typesys.WellKnownObject,
}

// ParseType resolves a type spelling in ctx.
func ParseType(ctx *typesys.Context, spelling string) (typesys.Type, error) {
	s := strings.TrimSpace(spelling)
	switch {
	case s == "":
		return nil, errors.InvalidInput(errors.PhaseParse, "empty type")
	case strings.HasSuffix(s, "[]"):
		elem, err := ParseType(ctx, strings.TrimSuffix(s, "[]"))
		if err != nil {
			return nil, err
		}
		return ctx.ArrayType(elem), nil
	case strings.HasPrefix(s, "ref "):
		elem, err := ParseType(ctx, s[len("ref "):])
		if err != nil {
			return nil, err
		}
		return ctx.ByRefType(elem), nil
	case strings.HasPrefix(s, "ptr "):
		elem, err := ParseType(ctx, s[len("ptr "):])
		if err != nil {
			return nil, err
		}
		return ctx.PointerType(elem), nil
	}

	if w, ok := extraSpellings[s]; ok {
		return ctx.WellKnown(w), nil
	}
	if strings.Contains(s, ".") {
		t, err := ctx.LookupType("", s)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseParse, errors.KindNotFound, err, "type "+s)
		}
		return t, nil
	}

	wt, err := wit.ParseType(s)
	if err != nil {
		return nil, errors.New(errors.PhaseParse, errors.KindInvalidInput).
			Type(s).
			Cause(err).
			Detail("not a WIT type").
			Build()
	}
	return fromWIT(ctx, wt, s)
}

func fromWIT(ctx *typesys.Context, wt wit.Type, spelling string) (typesys.Type, error) {
	switch t := wt.(type) {
	case *wit.TypeDef:
		if l, ok := t.Kind.(*wit.List); ok {
			elem, err := fromWIT(ctx, l.Type, spelling)
			if err != nil {
				return nil, err
			}
			return ctx.ArrayType(elem), nil
		}
	default:
		if w, ok := witPrimitive(t); ok {
			return ctx.WellKnown(w), nil
		}
	}
	return nil, errors.New(errors.PhaseParse, errors.KindUnsupported).
		Type(spelling).
		Detail("WIT type %T has no managed equivalent", wt).
		Build()
}

func witPrimitive(t wit.Type) (typesys.WellKnownType, bool) {
	switch t.(type) {
	case wit.Bool:
		return typesys.WellKnownBoolean, true
	case wit.S8:
		return typesys.WellKnownSByte, true
	case wit.U8:
		return typesys.WellKnownByte, true
	case wit.S16:
		return typesys.WellKnownInt16, true
	case wit.U16:
		return typesys.WellKnownUInt16, true
	case wit.S32:
		return typesys.WellKnownInt32, true
	case wit.U32:
		return typesys.WellKnownUInt32, true
	case wit.S64:
		return typesys.WellKnownInt64, true
	case wit.U64:
		return typesys.WellKnownUInt64, true
	case wit.F32:
		return typesys.WellKnownSingle, true
	case wit.F64:
		return typesys.WellKnownDouble, true
	case wit.Char:
		return typesys.WellKnownChar, true
	case wit.String:
		return typesys.WellKnownString, true
	}
	return 0, false
}

func loadErr(path, format string, args ...any) error {
	return errors.New(errors.PhaseLoad, errors.KindInvalidInput).
		Path(path).
		Detail(format, args...).
		Build()
}

// at attaches a document path to err.
func at(err error, path string) error {
	var e *errors.Error
	if stderrors.As(err, &e) && len(e.Path) == 0 {
		cp := *e
		cp.Path = []string{path}
		return &cp
	}
	return errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, path)
}
