// Package pkgtype defines shared types used across the unpkg package and its
// internal packages. This avoids circular imports between unpkg and the
// scan, header, index and file packages.
package pkgtype
