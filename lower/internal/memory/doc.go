// Package memory reads and writes guest linear memory on behalf of the
// interop host functions: fixup cells, module cells and C strings.
package memory
