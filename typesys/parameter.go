package typesys

import (
	"strconv"
	"strings"

	"github.com/wippyai/interop-stubs/errors"
)

// ParameterAttributes are the ECMA-335 parameter flags.
type ParameterAttributes uint16

const (
	ParameterNone            ParameterAttributes = 0x0000
	ParameterIn              ParameterAttributes = 0x0001
	ParameterOut             ParameterAttributes = 0x0002
	ParameterOptional        ParameterAttributes = 0x0010
	ParameterHasDefault      ParameterAttributes = 0x1000
	ParameterHasFieldMarshal ParameterAttributes = 0x2000
)

func (a ParameterAttributes) IsIn() bool  { return a&ParameterIn != 0 }
func (a ParameterAttributes) IsOut() bool { return a&ParameterOut != 0 }

// NativeTypeKind is the unmanaged type named by a marshalling directive.
type NativeTypeKind uint8

const (
	NativeBoolean NativeTypeKind = 0x02
	NativeI1      NativeTypeKind = 0x03
	NativeU1      NativeTypeKind = 0x04
	NativeI2      NativeTypeKind = 0x05
	NativeU2      NativeTypeKind = 0x06
	NativeI4      NativeTypeKind = 0x07
	NativeU4      NativeTypeKind = 0x08
	NativeI8      NativeTypeKind = 0x09
	NativeU8      NativeTypeKind = 0x0a
	NativeR4      NativeTypeKind = 0x0b
	NativeR8      NativeTypeKind = 0x0c
	NativeLPStr   NativeTypeKind = 0x14
	NativeLPWStr  NativeTypeKind = 0x15
	NativeStruct  NativeTypeKind = 0x1b
	NativeSysInt  NativeTypeKind = 0x1f
	NativeSysUInt NativeTypeKind = 0x20
	NativeFunc    NativeTypeKind = 0x26
	NativeArray   NativeTypeKind = 0x2a
	NativeDefault NativeTypeKind = 0x50
)

var nativeTypeNames = map[NativeTypeKind]string{
	NativeBoolean: "Bool",
	NativeI1:      "I1",
	NativeU1:      "U1",
	NativeI2:      "I2",
	NativeU2:      "U2",
	NativeI4:      "I4",
	NativeU4:      "U4",
	NativeI8:      "I8",
	NativeU8:      "U8",
	NativeR4:      "R4",
	NativeR8:      "R8",
	NativeLPStr:   "LPStr",
	NativeLPWStr:  "LPWStr",
	NativeStruct:  "Struct",
	NativeSysInt:  "SysInt",
	NativeSysUInt: "SysUInt",
	NativeFunc:    "FunctionPtr",
	NativeArray:   "LPArray",
	NativeDefault: "Default",
}

func (k NativeTypeKind) String() string {
	if s, ok := nativeTypeNames[k]; ok {
		return s
	}
	return "NativeTypeKind(" + strconv.Itoa(int(k)) + ")"
}

// ParseNativeTypeKind accepts the directive names used by String,
// case-insensitively.
func ParseNativeTypeKind(s string) (NativeTypeKind, error) {
	for k, name := range nativeTypeNames {
		if strings.EqualFold(name, s) {
			return k, nil
		}
	}
	return 0, errors.InvalidInput(errors.PhaseParse, "unknown marshal-as directive "+s)
}

// MarshalAsDescriptor is the payload of an explicit marshalling directive.
type MarshalAsDescriptor struct {
	Type NativeTypeKind
}

// ParameterMetadata is the declared metadata of one signature slot. Index 0
// is the return value, 1..N the parameters.
type ParameterMetadata struct {
	MarshalAs  *MarshalAsDescriptor
	Name       string
	Index      int
	Attributes ParameterAttributes
}

// DefaultParameterMetadata is the metadata assumed for slots with no
// explicit entry.
func DefaultParameterMetadata(index int) ParameterMetadata {
	return ParameterMetadata{Index: index}
}

// IsReturn reports whether the metadata describes the return value.
func (p ParameterMetadata) IsReturn() bool { return p.Index == 0 }

// NativeType returns the directive's native type, or NativeDefault when no
// directive is present.
func (p ParameterMetadata) NativeType() NativeTypeKind {
	if p.MarshalAs == nil {
		return NativeDefault
	}
	return p.MarshalAs.Type
}
