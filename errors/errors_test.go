package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseMarshal,
				Kind:   KindUnsupported,
				Method: "Native.Lib.Open(string)",
				Path:   []string{"param1"},
				Type:   "System.String",
				Detail: "no marshaller registered",
			},
			contains: []string{"[marshal]", "unsupported", "Native.Lib.Open(string)", "param1", "System.String", "no marshaller registered"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseBind,
				Kind:  KindMalformedMetadata,
			},
			contains: []string{"[bind]", "malformed_metadata"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseLower,
				Kind:   KindInvalidData,
				Detail: "bad token",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[lower]", "invalid_data", "bad token", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseEmit,
		Kind:  KindInvalidData,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseMarshal,
		Kind:  KindUnsupported,
		Path:  []string{"param2"},
	}

	if !err.Is(&Error{Phase: PhaseMarshal, Kind: KindUnsupported}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseBind, Kind: KindUnsupported}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseMarshal, Kind: KindMalformedMetadata}) {
		t.Error("Is should not match different kind")
	}

	target := &Error{Phase: PhaseMarshal, Kind: KindUnsupported}
	if !errors.Is(err, target) {
		t.Error("errors.Is should match")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseMarshal, KindUnsupported).
		Method("Lib.Call(object)").
		Path("param1").
		Type("System.Object").
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "blittable", "reference").
		Build()

	if err.Phase != PhaseMarshal {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseMarshal)
	}
	if err.Kind != KindUnsupported {
		t.Errorf("Kind = %v, want %v", err.Kind, KindUnsupported)
	}
	if err.Method != "Lib.Call(object)" {
		t.Errorf("Method = %v, want 'Lib.Call(object)'", err.Method)
	}
	if len(err.Path) != 1 || err.Path[0] != "param1" {
		t.Errorf("Path = %v, want [param1]", err.Path)
	}
	if err.Type != "System.Object" {
		t.Errorf("Type = %v, want 'System.Object'", err.Type)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected blittable, got reference" {
		t.Errorf("Detail = %v, want 'expected blittable, got reference'", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("UnsupportedMarshalling", func(t *testing.T) {
		err := UnsupportedMarshalling(0, "System.String", "no marshaller")
		if err.Kind != KindUnsupported || err.Phase != PhaseMarshal {
			t.Errorf("Phase/Kind = %v/%v, want marshal/unsupported", err.Phase, err.Kind)
		}
		if err.Path[0] != "return" {
			t.Errorf("Path = %v, want [return]", err.Path)
		}
	})

	t.Run("Malformed", func(t *testing.T) {
		err := Malformed(PhaseBind, "calling convention %#x", 0x500)
		if err.Kind != KindMalformedMetadata {
			t.Errorf("Kind = %v, want %v", err.Kind, KindMalformedMetadata)
		}
		if err.Detail != "calling convention 0x500" {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseMarshal, []string{"metadata"}, 10, 5)
		if err.Kind != KindOutOfBounds {
			t.Errorf("Kind = %v, want %v", err.Kind, KindOutOfBounds)
		}
		if err.Value != 10 {
			t.Errorf("Value = %v, want 10", err.Value)
		}
	})

	t.Run("TypeMismatch", func(t *testing.T) {
		err := TypeMismatch(PhaseLower, []string{"stack"}, "i32", "i64")
		if err.Type != "i64" || !strings.Contains(err.Detail, "i32") {
			t.Errorf("Type=%v Detail=%v", err.Type, err.Detail)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		err := NotFound(PhaseBind, "method", "ResolvePInvoke")
		if err.Kind != KindNotFound || !strings.Contains(err.Detail, `"ResolvePInvoke"`) {
			t.Errorf("Kind=%v Detail=%v", err.Kind, err.Detail)
		}
	})
}

func TestSlotName(t *testing.T) {
	if got := SlotName(0); got != "return" {
		t.Errorf("SlotName(0) = %q, want return", got)
	}
	if got := SlotName(3); got != "param3" {
		t.Errorf("SlotName(3) = %q, want param3", got)
	}
}

func TestKindHelpers(t *testing.T) {
	unsupported := UnsupportedMarshalling(1, "System.Object", "")
	malformed := Malformed(PhaseBind, "empty module")

	if !IsUnsupported(unsupported) {
		t.Error("IsUnsupported should match unsupported error")
	}
	if IsUnsupported(malformed) {
		t.Error("IsUnsupported should not match malformed error")
	}
	if !IsMalformed(malformed) {
		t.Error("IsMalformed should match malformed error")
	}

	wrapped := Wrap(PhaseEmit, KindInvalidData, unsupported, "build marshallers")
	if !IsUnsupported(wrapped) {
		t.Error("IsUnsupported should follow the cause chain")
	}
	if !IsUnsupported(fmt.Errorf("outer: %w", unsupported)) {
		t.Error("IsUnsupported should see through fmt wrapping")
	}
	if IsUnsupported(errors.New("plain")) {
		t.Error("IsUnsupported should not match plain errors")
	}
}

func TestMissingImportsError(t *testing.T) {
	t.Run("single import", func(t *testing.T) {
		err := NewMissingImportsError([]string{"kernel32.dll#GetTickCount"})
		if len(err.Imports) != 1 {
			t.Fatalf("expected 1 import, got %d", len(err.Imports))
		}
		if err.Imports[0].Module != "kernel32.dll" {
			t.Errorf("module = %q, want kernel32.dll", err.Imports[0].Module)
		}
		if err.Imports[0].Entry != "GetTickCount" {
			t.Errorf("entry = %q, want GetTickCount", err.Imports[0].Entry)
		}
	})

	t.Run("grouped by module", func(t *testing.T) {
		err := NewMissingImportsError([]string{
			"libc.so#getpid",
			"libm.so#cos",
			"libc.so#write",
		})
		msg := err.Error()
		for _, want := range []string{"missing 3", "libc.so:", "libm.so:", "getpid", "write", "cos"} {
			if !strings.Contains(msg, want) {
				t.Errorf("error %q should contain %q", msg, want)
			}
		}
	})

	t.Run("empty imports", func(t *testing.T) {
		err := NewMissingImportsError([]string{})
		if !strings.Contains(err.Error(), "no imports specified") {
			t.Errorf("empty error should have specific message, got: %s", err.Error())
		}
	})

	t.Run("errors.Is", func(t *testing.T) {
		err := NewMissingImportsError([]string{"lib#fn"})
		if !errors.Is(err, &MissingImportsError{}) {
			t.Error("errors.Is should match MissingImportsError")
		}
	})
}
