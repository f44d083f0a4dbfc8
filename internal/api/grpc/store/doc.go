// Package store implements the gRPC transport for the realtime office store.
//
// The service is described by hand on top of protobuf well-known types:
// keys travel as StringValue, values as structpb.Value and writes as a
// Struct holding "key" and "value".
package store
