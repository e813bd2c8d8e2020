// Package registry provides a thread-safe keyed table used to hold node type
// declarations.
//
// Registry is tuned for the declare-then-read lifecycle of a lineage: types are
// inserted once during process initialization and read many times whenever a
// graph is materialized. It supports any comparable key type and any value type
// through Go generics.
//
// # Basic Usage
//
//	r := registry.New[string, Decl]()
//	if !r.Insert("multiply", decl) {
//	    // "multiply" was already declared
//	}
//
//	decl, ok := r.Get("multiply")
//
// # Snapshots
//
// Snapshot copies the table under the read lock. Resolution works on a
// snapshot so concurrent Insert or Delete calls never observe a half-resolved
// lineage:
//
//	for name, decl := range r.Snapshot() {
//	    // safe to call r.Delete(name) here
//	}
//
// # Thread Safety
//
// All Registry methods are safe for concurrent use.
package registry
