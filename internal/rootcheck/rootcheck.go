// Package rootcheck vets a containment root before it is opened: the root
// is the one path this layer trusts, so it is resolved to its real
// location first and optionally held to an allowlist.
package rootcheck

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Resolve turns a root argument into an absolute path with symlinks
// evaluated. Everything beneath the root is handled strictly; the root
// itself must be pinned down before any descriptor is derived from it.
func Resolve(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("absolute path for %q: %w", root, err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolving symlinks for %q: %w", abs, err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("stat %q: %w", resolved, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%q is not a directory", resolved)
	}

	return resolved, nil
}

// Validate checks the resolved root is under one of the allowed prefixes.
// Empty allowedRoots means no restriction.
func Validate(resolved string, allowedRoots []string) error {
	if len(allowedRoots) == 0 {
		return nil
	}

	for _, allowed := range allowedRoots {
		prefix := expandTilde(allowed)

		dir := prefix
		if !strings.HasSuffix(dir, string(filepath.Separator)) {
			dir += string(filepath.Separator)
		}

		if resolved == prefix || strings.HasPrefix(resolved, dir) {
			return nil
		}
	}

	return fmt.Errorf("root %q is not under any allowed root", resolved)
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
