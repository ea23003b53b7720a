// Package cratedoc provides an offline cache of Rust crate documentation,
// source and dependency metadata. Crates are acquired from the public
// registry, a git repository or the local filesystem, materialized into a
// normalized on-disk layout and served through indexed search and lookup.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., sqlite/, git/, cargo/).
package cratedoc
