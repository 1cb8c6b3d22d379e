// Package interop selects and drives per-slot marshallers for native calls.
//
// A Registry maps each typesys.Kind to a Factory. BuildMarshallers fills the
// gaps in a method's sparse parameter metadata and asks the registry for one
// Marshaller per slot: index 0 is the return value, 1..N the parameters.
// Any slot without a usable strategy fails the whole build with an
// unsupported error.
//
// Marshallers contribute code through optional capability interfaces, one
// per stream:
//
//   - PreCallEmitter: marshalling stream, before the call
//   - CallsiteEmitter: callsite-setup stream, argument loads
//   - ReturnEmitter: return-marshalling stream, after the call
//   - PostCallEmitter: unmarshalling stream, [out] propagation
//
// Emitting the call itself is left to the caller.
package interop
