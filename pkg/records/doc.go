// Package records provides the namespaced record store that every other
// steamhub component persists through.
//
// # Overview
//
// The backing store is a flat, string-keyed Redis keyspace used only through
// GET, SET, DEL and EXISTS (plus PUBLISH/SUBSCRIBE for shard broadcasts). No
// lists, hashes, scripts or transactions are used, so structured data is
// emulated with composite keys:
//
//	<namespace>::<field-path>
//
// Arrays are written as a length-prefixed key family:
//
//	<path>::length   decimal element count
//	<path>::0 .. <path>::N-1
//
// Records (fixed field sets) are written as one scalar per field under
// <path>::<field> and converted to and from Go structs with a FieldCodec.
//
// # Consistency
//
// Every multi-key write is visible key by key as it completes. Concurrent
// readers may observe a partially written array; GetArray reports this as a
// DecodeError wrapping ErrCorrupt instead of returning a truncated slice.
//
// # Usage Example
//
//	client := records.NewClient(&redis.Options{Addr: "localhost:6379"})
//	perms := client.Namespace(records.NamespacePermissions)
//
//	path := records.Path("game", "server", "1234")
//	if err := perms.SetArray(ctx, path, []string{"manage_messages", "role|42"}); err != nil {
//		log.Fatal(err)
//	}
//	tokens, err := perms.GetArray(ctx, path)
//
// # Key Schema
//
// All namespaces are declared in schema.go so no two components share one.
package records
