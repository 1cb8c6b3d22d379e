// Package errors provides structured error types for the interop stub compiler.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries context: the method display name, the signature slot path,
// the offending type name, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseMarshal, errors.KindUnsupported).
//		Method("Native.Lib.Open(string)").
//		Path("param1").
//		Type("System.String").
//		Detail("no marshaller registered").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UnsupportedMarshalling(1, "System.String", "no marshaller registered")
//	err := errors.Malformed(errors.PhaseBind, "import module is empty")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
