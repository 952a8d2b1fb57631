// Package workspace confines tool paths to the configured work directory.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Guard resolves user supplied paths against a root directory and rejects
// anything that escapes it
type Guard struct {
	root string
}

// NewGuard creates a Guard rooted at dir. The directory does not have to
// exist yet.
func NewGuard(dir string) (*Guard, error) {
	if dir == "" {
		return nil, fmt.Errorf("work directory cannot be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve work directory: %w", err)
	}
	return &Guard{root: filepath.Clean(abs)}, nil
}

// Root returns the absolute work directory
func (g *Guard) Root() string {
	return g.root
}

// Resolve returns the absolute form of path. Relative paths are taken
// relative to the root.
func (g *Guard) Resolve(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(g.root, path)
	}
	clean := filepath.Clean(path)

	if !within(clean, g.root) {
		return "", fmt.Errorf("path is outside work directory: %s", path)
	}

	// a symlink inside the root may still point elsewhere
	realRoot := g.root
	if resolved, err := filepath.EvalSymlinks(g.root); err == nil {
		realRoot = resolved
	}
	if real, err := evalExisting(clean); err == nil && !within(real, realRoot) {
		return "", fmt.Errorf("path resolves outside work directory: %s", path)
	}
	return clean, nil
}

// ResolveAll resolves every path, failing on the first rejected one
func (g *Guard) ResolveAll(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := g.Resolve(p)
		if err != nil {
			return nil, err
		}
		out = append(out, abs)
	}
	return out, nil
}

// ResolveOutput resolves a path that is about to be written and makes sure
// its parent directory exists
func (g *Guard) ResolveOutput(path string) (string, error) {
	abs, err := g.Resolve(path)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return "", fmt.Errorf("output path is a directory: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	return abs, nil
}

// evalExisting resolves symlinks of the longest existing prefix of path
func evalExisting(path string) (string, error) {
	rest := ""
	for p := path; ; p = filepath.Dir(p) {
		if _, err := os.Lstat(p); err == nil {
			real, err := filepath.EvalSymlinks(p)
			if err != nil {
				return "", err
			}
			return filepath.Join(real, rest), nil
		}
		if filepath.Dir(p) == p {
			return path, nil
		}
		rest = filepath.Join(filepath.Base(p), rest)
	}
}

func within(path, dir string) bool {
	if path == dir {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(dir, string(filepath.Separator))+string(filepath.Separator))
}
