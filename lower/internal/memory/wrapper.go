package memory

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/interop-stubs/errors"
)

// maxCString bounds C string scans.
const maxCString = 4096

// Wrapper adapts wazero api.Memory to bounds-checked, error-returning
// accessors.
type Wrapper struct {
	Mem api.Memory
}

// Wrap returns nil for a nil memory.
func Wrap(mem api.Memory) *Wrapper {
	if mem == nil {
		return nil
	}
	return &Wrapper{Mem: mem}
}

func readErr(offset uint32, length int) error {
	return errors.New(errors.PhaseHost, errors.KindOutOfBounds).
		Detail("memory read out of bounds: offset=%d, length=%d", offset, length).
		Build()
}

func writeErr(offset uint32, length int) error {
	return errors.New(errors.PhaseHost, errors.KindOutOfBounds).
		Detail("memory write out of bounds: offset=%d, length=%d", offset, length).
		Build()
}

// Read reads bytes from memory.
func (m *Wrapper) Read(offset, length uint32) ([]byte, error) {
	data, ok := m.Mem.Read(offset, length)
	if !ok {
		return nil, readErr(offset, int(length))
	}
	return data, nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (m *Wrapper) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.Mem.ReadUint32Le(offset)
	if !ok {
		return 0, readErr(offset, 4)
	}
	return v, nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (m *Wrapper) WriteU32(offset, value uint32) error {
	if !m.Mem.WriteUint32Le(offset, value) {
		return writeErr(offset, 4)
	}
	return nil
}

// ReadCString reads a NUL-terminated string starting at offset.
func (m *Wrapper) ReadCString(offset uint32) (string, error) {
	var buf []byte
	for i := uint32(0); i < maxCString; i++ {
		b, ok := m.Mem.ReadByte(offset + i)
		if !ok {
			return "", readErr(offset+i, 1)
		}
		if b == 0 {
			return string(buf), nil
		}
		buf = append(buf, b)
	}
	return "", errors.New(errors.PhaseHost, errors.KindInvalidData).
		Detail("string at %#x exceeds %d bytes", offset, maxCString).
		Build()
}
