package interop

import (
	stderrors "errors"

	"github.com/wippyai/interop-stubs/errors"
	"github.com/wippyai/interop-stubs/typesys"
)

// FillMetadata expands sparse parameter metadata into one entry per slot,
// 0..n. Slots without an entry get default metadata. Entries must have
// strictly increasing indices in range.
func FillMetadata(sparse []typesys.ParameterMetadata, n int) ([]typesys.ParameterMetadata, error) {
	out := make([]typesys.ParameterMetadata, n+1)
	prev := -1
	next := 0
	for i := range out {
		if next < len(sparse) && sparse[next].Index == i {
			out[i] = sparse[next]
			prev = i
			next++
			continue
		}
		out[i] = typesys.DefaultParameterMetadata(i)
	}
	if next < len(sparse) {
		bad := sparse[next]
		if bad.Index < 0 || bad.Index > n {
			return nil, errors.New(errors.PhaseMarshal, errors.KindMalformedMetadata).
				Value(bad.Index).
				Detail("parameter metadata index %d out of range 0..%d", bad.Index, n).
				Build()
		}
		return nil, errors.Malformed(errors.PhaseMarshal,
			"parameter metadata index %d after %d is not strictly increasing", bad.Index, prev)
	}
	return out, nil
}

// BuildMarshallers builds one marshaller per slot of ctx.Method: index 0 for
// the return value and 1..N for the parameters. The result always has
// Signature().Len()+1 entries when err is nil.
func BuildMarshallers(ctx *Context, reg *Registry) ([]Marshaller, error) {
	sig := ctx.Method.Signature()
	md, err := FillMetadata(ctx.Method.ParameterMetadata(), sig.Len())
	if err != nil {
		return nil, withMethod(err, ctx.Method)
	}

	out := make([]Marshaller, sig.Len()+1)
	for i := range out {
		t := sig.ReturnType()
		if i > 0 {
			t = sig.Param(i - 1)
		}
		m, err := reg.Select(ctx, Slot{Type: t, Metadata: md[i], Index: i})
		if err != nil {
			return nil, withMethod(err, ctx.Method)
		}
		out[i] = m
	}
	return out, nil
}

func withMethod(err error, m typesys.Method) error {
	var e *errors.Error
	if stderrors.As(err, &e) && e.Method == "" {
		c := *e
		c.Method = m.String()
		return &c
	}
	return err
}
