package index

import "strings"

// ValidSegment reports whether name can be used as one path element of a
// virtual path. Empty names, "." and "..", and names containing a path
// separator or NUL byte are rejected so that joining the path under an output
// root can never escape it.
func ValidSegment(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}
