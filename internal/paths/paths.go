// Package paths resolves the locations movetrack reads and writes.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveRoot returns the absolute, symlink-free form of a project root.
func ResolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return abs, nil
		}
		return "", err
	}
	return resolved, nil
}

// CanonicalizePath converts an absolute path to a root-relative path with
// forward slashes.
func CanonicalizePath(absolutePath string, root string) (string, error) {
	resolved, err := filepath.EvalSymlinks(absolutePath)
	if err != nil {
		// If the file doesn't exist yet, use the path as-is
		if !os.IsNotExist(err) {
			return "", err
		}
		resolved = absolutePath
	}

	rootResolved, err := ResolveRoot(root)
	if err != nil {
		return "", err
	}

	relativePath, err := filepath.Rel(rootResolved, resolved)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(relativePath), nil
}

// IsWithinRoot checks if a path is within the root
func IsWithinRoot(path string, root string) bool {
	canonical, err := CanonicalizePath(path, root)
	if err != nil {
		return false
	}
	return canonical != ".." && !strings.HasPrefix(canonical, "../")
}

// Resolve joins a configured location to root unless it is already absolute.
// Configured locations use forward slashes.
func Resolve(root string, location string) string {
	if filepath.IsAbs(location) {
		return location
	}
	parts := strings.Split(strings.ReplaceAll(location, "\\", "/"), "/")
	return filepath.Join(append([]string{root}, parts...)...)
}
