// Package vfspath normalizes and manipulates absolute VFS paths. It splits
// and joins on "/" with the standard library's "strings" package rather
// than using "path/filepath", so mount prefixes behave identically
// regardless of the host OS.
package vfspath

import (
	"strings"
)

// Clean normalizes p to an absolute, slash-separated path with no trailing
// slash (except the root itself, which is "/").
func Clean(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	segments := strings.Split(p, "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}
	return "/" + strings.Join(out, "/")
}

// Join joins path elements with Clean applied to the result.
func Join(elems ...string) string {
	return Clean(strings.Join(elems, "/"))
}

// Split splits p into its directory and final component, both cleaned.
// Split("/") returns ("/", "").
func Split(p string) (dir, name string) {
	p = Clean(p)
	if p == "/" {
		return "/", ""
	}
	idx := strings.LastIndexByte(p, '/')
	dir = p[:idx]
	if dir == "" {
		dir = "/"
	}
	name = p[idx+1:]
	return dir, name
}

// Dir returns the directory portion of p.
func Dir(p string) string {
	dir, _ := Split(p)
	return dir
}

// Base returns the final path component of p.
func Base(p string) string {
	_, name := Split(p)
	if name == "" {
		return "/"
	}
	return name
}

// IsAbs reports whether p begins with "/".
func IsAbs(p string) bool {
	return strings.HasPrefix(p, "/")
}

// Components splits a cleaned absolute path into its non-empty segments.
func Components(p string) []string {
	p = Clean(p)
	if p == "/" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(p, "/"), "/")
}

// Depth returns the number of path components (root has depth 0).
func Depth(p string) int {
	return len(Components(p))
}

// HasPrefix reports whether prefix is a component-aligned prefix of p —
// "/a/b" is a prefix of "/a/bc" only if "/a/b" and "/a/bc" share the
// component boundary, i.e. "/a/bc" is "/a/b" plus "/" plus more, or the
// paths are equal.
func HasPrefix(p, prefix string) bool {
	p = Clean(p)
	prefix = Clean(prefix)
	if prefix == "/" {
		return true
	}
	if p == prefix {
		return true
	}
	return strings.HasPrefix(p, prefix+"/")
}

// TrimPrefix removes prefix from p, returning the remainder beginning with
// "/". TrimPrefix(p, p) returns "/".
func TrimPrefix(p, prefix string) string {
	p = Clean(p)
	prefix = Clean(prefix)
	if prefix == "/" {
		return p
	}
	rest := strings.TrimPrefix(p, prefix)
	if rest == "" {
		return "/"
	}
	return rest
}
