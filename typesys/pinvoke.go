package typesys

import (
	"fmt"

	"github.com/wippyai/interop-stubs/errors"
)

// PInvokeAttributes are the import flags declared on a native method.
type PInvokeAttributes uint16

const (
	PInvokeNone          PInvokeAttributes = 0x0000
	PInvokeExactSpelling PInvokeAttributes = 0x0001

	PInvokeCharSetMask    PInvokeAttributes = 0x0006
	PInvokeCharSetNotSpec PInvokeAttributes = 0x0000
	PInvokeCharSetAnsi    PInvokeAttributes = 0x0002
	PInvokeCharSetUnicode PInvokeAttributes = 0x0004
	PInvokeCharSetAuto    PInvokeAttributes = 0x0006

	PInvokeBestFitMask     PInvokeAttributes = 0x0030
	PInvokeBestFitEnabled  PInvokeAttributes = 0x0010
	PInvokeBestFitDisabled PInvokeAttributes = 0x0020

	PInvokeSetLastError PInvokeAttributes = 0x0040

	PInvokeCallingConventionMask     PInvokeAttributes = 0x0700
	PInvokeCallingConventionWinApi   PInvokeAttributes = 0x0100
	PInvokeCallingConventionCdecl    PInvokeAttributes = 0x0200
	PInvokeCallingConventionStdCall  PInvokeAttributes = 0x0300
	PInvokeCallingConventionThisCall PInvokeAttributes = 0x0400
	PInvokeCallingConventionFastCall PInvokeAttributes = 0x0500

	PInvokeThrowOnUnmappableCharMask     PInvokeAttributes = 0x3000
	PInvokeThrowOnUnmappableCharEnabled  PInvokeAttributes = 0x1000
	PInvokeThrowOnUnmappableCharDisabled PInvokeAttributes = 0x2000
)

func (a PInvokeAttributes) SetLastError() bool  { return a&PInvokeSetLastError != 0 }
func (a PInvokeAttributes) ExactSpelling() bool { return a&PInvokeExactSpelling != 0 }

// CharSet returns the character set bits.
func (a PInvokeAttributes) CharSet() PInvokeAttributes { return a & PInvokeCharSetMask }

// CallingConvention returns the calling convention bits.
func (a PInvokeAttributes) CallingConvention() PInvokeAttributes {
	return a & PInvokeCallingConventionMask
}

func (a PInvokeAttributes) String() string {
	s := fmt.Sprintf("%#04x", uint16(a))
	if a.SetLastError() {
		s += " setlasterror"
	}
	switch a.CallingConvention() {
	case PInvokeCallingConventionWinApi:
		s += " winapi"
	case PInvokeCallingConventionCdecl:
		s += " cdecl"
	case PInvokeCallingConventionStdCall:
		s += " stdcall"
	case PInvokeCallingConventionThisCall:
		s += " thiscall"
	case PInvokeCallingConventionFastCall:
		s += " fastcall"
	}
	switch a.CharSet() {
	case PInvokeCharSetAnsi:
		s += " ansi"
	case PInvokeCharSetUnicode:
		s += " unicode"
	case PInvokeCharSetAuto:
		s += " autochar"
	}
	return s
}

// PInvokeMetadata is the native import metadata of a method. An empty Name
// means the entry point was not specified.
type PInvokeMetadata struct {
	Module     string
	Name       string
	Attributes PInvokeAttributes
}

// EntryPoint returns Name, or fallback when Name is unspecified.
func (m PInvokeMetadata) EntryPoint(fallback string) string {
	if m.Name == "" {
		return fallback
	}
	return m.Name
}

// UnmanagedCallingConvention decodes the calling convention bits of attrs
// into signature flags. WinApi and an unspecified convention both mean
// StdCall.
func UnmanagedCallingConvention(attrs PInvokeAttributes) (MethodSignatureFlags, error) {
	switch attrs.CallingConvention() {
	case 0, PInvokeCallingConventionWinApi, PInvokeCallingConventionStdCall:
		return UnmanagedStdCall, nil
	case PInvokeCallingConventionCdecl:
		return UnmanagedCdecl, nil
	case PInvokeCallingConventionThisCall:
		return UnmanagedThisCall, nil
	default:
		return 0, errors.New(errors.PhaseBind, errors.KindMalformedMetadata).
			Value(uint16(attrs.CallingConvention())).
			Detail("unsupported calling convention %#x", uint16(attrs.CallingConvention())).
			Build()
	}
}
