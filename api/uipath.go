package api

import "strings"

// UIPath identifies a widget in the viewer's UI hierarchy as a
// "/"-separated path. The zero value is the root. UIPath is a value type;
// all methods return new paths.
type UIPath struct {
	parts []string
}

// floaterRoot is where the stock viewer parents all floating windows.
const floaterRoot = "/main_view/menu_stack/world_panel/Floater View"

// ParsePath splits a slash-separated path. Empty segments are dropped and
// a lone "." means the root, which is how the viewer spells it.
func ParsePath(s string) UIPath {
	if s == "." {
		return UIPath{}
	}
	var parts []string
	for _, seg := range strings.Split(s, "/") {
		if seg != "" {
			parts = append(parts, seg)
		}
	}
	return UIPath{parts: parts}
}

// ForFloater returns the path of a named floating window.
func ForFloater(name string) UIPath {
	return ParsePath(floaterRoot).Join(name)
}

func (p UIPath) String() string {
	return "/" + strings.Join(p.parts, "/")
}

// IsRoot reports whether the path has no segments.
func (p UIPath) IsRoot() bool {
	return len(p.parts) == 0
}

// Parent returns the path with the last segment removed. The root is its
// own parent.
func (p UIPath) Parent() UIPath {
	if len(p.parts) == 0 {
		return UIPath{}
	}
	return UIPath{parts: p.parts[:len(p.parts)-1]}
}

// Stem returns the last segment, or "" for the root.
func (p UIPath) Stem() string {
	if len(p.parts) == 0 {
		return ""
	}
	return p.parts[len(p.parts)-1]
}

// Join appends segments. Each argument may itself be slash-separated.
func (p UIPath) Join(segments ...string) UIPath {
	parts := append([]string(nil), p.parts...)
	for _, s := range segments {
		parts = append(parts, ParsePath(s).parts...)
	}
	return UIPath{parts: parts}
}

// JoinPath appends another path's segments.
func (p UIPath) JoinPath(other UIPath) UIPath {
	parts := append([]string(nil), p.parts...)
	return UIPath{parts: append(parts, other.parts...)}
}

// Equal reports segment-wise equality.
func (p UIPath) Equal(other UIPath) bool {
	if len(p.parts) != len(other.parts) {
		return false
	}
	for i := range p.parts {
		if p.parts[i] != other.parts[i] {
			return false
		}
	}
	return true
}

// IsRelativeTo reports whether p is other or a descendant of other.
func (p UIPath) IsRelativeTo(other UIPath) bool {
	if len(p.parts) < len(other.parts) {
		return false
	}
	for i := range other.parts {
		if p.parts[i] != other.parts[i] {
			return false
		}
	}
	return true
}
