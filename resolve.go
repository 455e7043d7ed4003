package capfs

import (
	"errors"
	"fmt"
	"io/fs"
)

// DefaultSymlinkLimit bounds symlink expansions in one resolution.
const DefaultSymlinkLimit = 32

// resolveStrict walks path component by component beneath root and returns
// a handle for the final node. The walk never ascends: absolute paths and
// ".." components fail before any host call, and symlink targets are held
// to the same rules as caller-supplied paths, judged on their text alone.
// The root handle is borrowed; intermediate directory handles are closed as
// the walk leaves them.
func (l *Layer) resolveStrict(root Handle, path string, flags OpenFlags) (Handle, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path: %w", fs.ErrNotExist)
	}
	p := parsePath(path)
	if p.absolute {
		return nil, fmt.Errorf("%q is absolute: %w", path, ErrTraversalBeyondRoot)
	}
	if p.hasDotDot() {
		return nil, fmt.Errorf("%q ascends: %w", path, ErrTraversalBeyondRoot)
	}

	budget := l.symlinkLimit
	cur := root
	closeCur := func() {
		if cur != root {
			cur.Close()
		}
	}
	comps := p.components

	for len(comps) > 0 {
		name := comps[0]
		rest := comps[1:]
		last := len(rest) == 0

		mode, err := l.host.Mode(cur, name)
		if err != nil {
			if last && flags&OpenCreate != 0 && errors.Is(err, fs.ErrNotExist) {
				h, oerr := l.host.Open(cur, name, flags|OpenNoFollow)
				closeCur()
				if oerr != nil {
					return nil, fmt.Errorf("create %q: %w", name, oerr)
				}
				return h, nil
			}
			closeCur()
			return nil, fmt.Errorf("lookup %q: %w", name, err)
		}

		if mode&fs.ModeSymlink != 0 {
			if last && flags&OpenNoFollow != 0 {
				closeCur()
				return nil, fmt.Errorf("%q is a symlink: %w", name, ErrSymlinkLoop)
			}
			if budget == 0 {
				closeCur()
				return nil, fmt.Errorf("%q: expansion limit reached: %w", name, ErrSymlinkLoop)
			}
			budget--
			target, err := l.host.Readlink(cur, name)
			if err != nil {
				closeCur()
				return nil, fmt.Errorf("readlink %q: %w", name, err)
			}
			tp := parsePath(target)
			if tp.absolute || tp.hasDotDot() {
				closeCur()
				return nil, fmt.Errorf("symlink %q -> %q: %w", name, target, ErrTraversalBeyondRoot)
			}
			// A purely relative target resolves from the symlink's own
			// containing directory, which is the directory being walked.
			comps = append(append([]string{}, tp.components...), rest...)
			continue
		}

		if last {
			// Expansion already happened above, so the final open must
			// never follow; a symlink racing into place fails in the host
			// instead of escaping.
			h, err := l.host.Open(cur, name, flags|OpenNoFollow)
			closeCur()
			if err != nil {
				return nil, fmt.Errorf("open %q: %w", name, err)
			}
			return h, nil
		}

		next, err := l.host.Open(cur, name, OpenRead|OpenDirectory|OpenNoFollow)
		closeCur()
		if err != nil {
			return nil, fmt.Errorf("descend %q: %w", name, err)
		}
		cur = next
		comps = rest
	}

	// Every component was a no-op ("." and friends): the path denotes the
	// walked directory itself.
	h, err := l.host.Open(cur, ".", flags)
	closeCur()
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	return h, nil
}
