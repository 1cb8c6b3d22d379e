package wasm

import (
	"github.com/tetratelabs/wazero/api"
)

// EncodeULEB128 encodes an unsigned value in LEB128 format.
func EncodeULEB128(v uint32) []byte {
	var result []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		result = append(result, b)
		if v == 0 {
			break
		}
	}
	return result
}

// EncodeSLEB128 encodes a signed value in LEB128 format.
func EncodeSLEB128[T int32 | int64](v T) []byte {
	var result []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			result = append(result, b)
			break
		}
		result = append(result, b|0x80)
	}
	return result
}

// ValTypeToWasm converts a wazero value type to its binary encoding.
func ValTypeToWasm(t api.ValueType) byte {
	switch t {
	case api.ValueTypeI64:
		return 0x7e
	case api.ValueTypeF32:
		return 0x7d
	case api.ValueTypeF64:
		return 0x7c
	default:
		return 0x7f
	}
}

func appendName(buf []byte, s string) []byte {
	buf = append(buf, EncodeULEB128(uint32(len(s)))...)
	return append(buf, s...)
}

func appendSection(buf []byte, id byte, section []byte) []byte {
	buf = append(buf, id)
	buf = append(buf, EncodeULEB128(uint32(len(section)))...)
	return append(buf, section...)
}

func appendValTypes(buf []byte, types []api.ValueType) []byte {
	buf = append(buf, EncodeULEB128(uint32(len(types)))...)
	for _, t := range types {
		buf = append(buf, ValTypeToWasm(t))
	}
	return buf
}
