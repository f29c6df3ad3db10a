// Package service turns a matched HTTP request into a response through a
// pluggable ServiceDefinition.
//
// A request flows through Pipeline.BuildRequestResponse: the format is
// negotiated, request attributes are bound into an ExecutionContext according
// to the definition's context schema, the definition's ProcessRequest runs
// against that context, and the Assembler serializes the result into an
// Envelope whose cache metadata folds in every bound context value, the
// definition itself, and anything domain logic added to the invocation.
//
// Definitions are registered once in a Registry and instantiated per request.
// Embed Base to inherit metadata accessors and no-op hooks, then override
// ProcessRequest (and optionally ProcessRoute / ProcessResponse).
package service
