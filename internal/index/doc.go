// Package index decodes the bundle index of a packaged executable.
//
// The index is a directory tree. Decode walks it depth-first and flattens it
// into an ordered list of records, one per file node, each carrying either a
// validated entry or the reason the entry was rejected.
package index
