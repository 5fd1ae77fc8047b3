// Package bucket is the bucket-addressing and bucket-database boundary.
//
// ID is a prefix of the 64-bit document-id hash space; Entry is the
// per-bucket replica list the rest of the control plane reasons over.
// DB is the storage-engine contract (bucket-id -> replica list, with a
// child-count query) — MemDB and BoltDB are the two implementations,
// the former for tests and the standalone CLI, the latter for a real
// deployment.
package bucket
