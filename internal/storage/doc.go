// Package storage is the optional persistence layer: an audit trail of
// delivered notifications and a best-effort dedup table. The in-memory
// engine state stays canonical; nothing here is required for correctness
// within a single process lifetime.
package storage
