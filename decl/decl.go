// Package decl reads interop declaration files.
//
// A declaration file is YAML listing native imports grouped by declaring
// type. Parameter and result types are spelled in WIT syntax, extended with
// the few managed shapes WIT has no word for:
//
//	target:
//	  os: linux
//	  pointer-size: 8
//	types:
//	  - namespace: Native
//	    name: LibC
//	    methods:
//	      - name: Write
//	        import: {module: libc, entry: write, set-last-error: true}
//	        params:
//	          - {name: fd, type: s32}
//	          - {name: buf, type: ptr u8}
//	          - {name: count, type: uintptr}
//	        result: {type: intptr}
//
// Spellings: bool, s8..s64, u8..u64, f32, f64, char, string and list<t> as
// parsed by wit.ParseType, plus void, intptr, uintptr, object, "ref <t>",
// "ptr <t>", "<t>[]" and the full name of a type declared in the same file.
//
// Inside a flow mapping ({...}) brackets are YAML indicators, so array
// spellings must be quoted there:
//
//	- {name: fds, type: "s32[]"}
//
// Block mappings need no quotes.
package decl

import (
	"bytes"
	stderrors "errors"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/interop-stubs/errors"
)

// File is a parsed declaration file.
type File struct {
	Target Target     `yaml:"target"`
	Types  []TypeDecl `yaml:"types"`
}

// Target selects the platform stubs are compiled for.
type Target struct {
	OS          string `yaml:"os"`
	PointerSize int    `yaml:"pointer-size"`
}

// TypeDecl declares a type holding native imports.
type TypeDecl struct {
	Namespace string       `yaml:"namespace"`
	Name      string       `yaml:"name"`
	Kind      string       `yaml:"kind"`
	Methods   []MethodDecl `yaml:"methods"`
}

// MethodDecl declares one static native import.
type MethodDecl struct {
	Result *ResultDecl `yaml:"result"`
	Name   string      `yaml:"name"`
	Import ImportDecl  `yaml:"import"`
	Params []ParamDecl `yaml:"params"`
}

// ImportDecl is the native side of a method.
type ImportDecl struct {
	Module            string `yaml:"module"`
	Entry             string `yaml:"entry"`
	CallingConvention string `yaml:"calling-convention"`
	Charset           string `yaml:"charset"`
	SetLastError      bool   `yaml:"set-last-error"`
	ExactSpelling     bool   `yaml:"exact-spelling"`
}

// ParamDecl declares a parameter.
type ParamDecl struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	MarshalAs string `yaml:"marshal-as"`
	In        bool   `yaml:"in"`
	Out       bool   `yaml:"out"`
}

// ResultDecl declares the return value. A missing result means void.
type ResultDecl struct {
	Type      string `yaml:"type"`
	MarshalAs string `yaml:"marshal-as"`
}

// Parse decodes a declaration file. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, errors.InvalidInput(errors.PhaseParse, "empty declaration file")
		}
		return nil, errors.ParseFailed("declaration file", err)
	}
	return &f, nil
}

// ReadFile reads and parses the declaration file at path.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load("read "+path, err)
	}
	return Parse(data)
}

// Load reads, parses and resolves the declaration file at path.
func Load(path string) (*Declarations, error) {
	f, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return f.Resolve()
}
