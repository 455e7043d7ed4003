package capfs

import "strings"

// parsedPath is the lexical form of a lookup path: a leading-slash flag and
// the non-empty components. "." components are no-ops and are dropped
// during parsing; ".." components are kept so the resolver can reject them.
type parsedPath struct {
	absolute   bool
	components []string
}

func parsePath(path string) parsedPath {
	p := parsedPath{absolute: strings.HasPrefix(path, "/")}
	for _, c := range strings.Split(path, "/") {
		if c == "" || c == "." {
			continue
		}
		p.components = append(p.components, c)
	}
	return p
}

func (p parsedPath) hasDotDot() bool {
	for _, c := range p.components {
		if c == ".." {
			return true
		}
	}
	return false
}
