// Package workspace provides root-scoped file access for plugin code.
// Every path is resolved against the workspace root; paths that escape it
// are rejected before any filesystem call.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrOutsideWorkspace is returned when a path resolves outside the root.
var ErrOutsideWorkspace = errors.New("path is outside the workspace")

// Service exposes read/write access confined to a single root directory.
type Service struct {
	root string
}

// New creates a workspace service rooted at dir. The root is resolved to an
// absolute, symlink-free path once; relative plugin paths resolve against it.
func New(dir string) (*Service, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root: %w", err)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}
	return &Service{root: abs}, nil
}

// Root returns the absolute workspace root.
func (s *Service) Root() string {
	return s.root
}

// ReadFile reads a file inside the workspace.
func (s *Service) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resolved, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(resolved)
}

// WriteFile writes a file inside the workspace, creating parent directories
// as needed.
func (s *Service) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	resolved, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return err
	}
	return os.WriteFile(resolved, data, 0o644)
}

// resolve turns a plugin-supplied path into an absolute path under the root.
// Symlinks are resolved before the containment check, so a link inside the
// workspace cannot reach outside it.
func (s *Service) resolve(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, path)
	}
	path = filepath.Clean(path)

	real, err := resolveExisting(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrOutsideWorkspace, path)
	}

	rel, err := filepath.Rel(s.root, real)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrOutsideWorkspace, path)
	}
	if rel != "." && !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %s", ErrOutsideWorkspace, path)
	}
	return real, nil
}

// resolveExisting evaluates symlinks on the longest existing prefix of path
// and rejoins the remainder, so paths that do not exist yet (write targets)
// still get their parent links resolved.
func resolveExisting(path string) (string, error) {
	suffix := ""
	for {
		real, err := filepath.EvalSymlinks(path)
		if err == nil {
			return filepath.Join(real, suffix), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}

		parent := filepath.Dir(path)
		if parent == path {
			return "", err
		}
		suffix = filepath.Join(filepath.Base(path), suffix)
		path = parent
	}
}
