// Package security enforces the filesystem boundary for an agent's
// workspace: every path a filesystem-capable tool touches must resolve
// inside the workspace root, under any input encoding.
package security

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// ErrPathOutsideWorkspace is returned when a path escapes the workspace root.
var ErrPathOutsideWorkspace = errors.New("security: path outside workspace root")

// Workspace is the sandbox boundary for one agent.
type Workspace struct {
	root string
}

// NewWorkspace creates a sandbox rooted at root. The root is normalized to an
// absolute, cleaned path.
func NewWorkspace(root string) (*Workspace, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("security: empty workspace root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("security: resolve workspace root: %w", err)
	}
	return &Workspace{root: filepath.Clean(abs)}, nil
}

// Root returns the normalized workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// Resolve normalizes a tool-supplied path argument and checks it against the
// workspace boundary. It strips a file-URI prefix, resolves relative paths
// against the root, and returns both the absolute path and the root-relative
// path. Any resolution that lands outside the root fails with
// ErrPathOutsideWorkspace.
func (w *Workspace) Resolve(raw string) (abs string, rel string, err error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", "", errors.New("security: empty path supplied")
	}

	trimmed = stripFileURI(trimmed)
	if trimmed == "" {
		return "", "", errors.New("security: empty path supplied")
	}

	if filepath.IsAbs(trimmed) {
		abs = filepath.Clean(trimmed)
	} else {
		abs = filepath.Clean(filepath.Join(w.root, trimmed))
	}

	rel, relErr := filepath.Rel(w.root, abs)
	if relErr != nil || escapesRoot(rel) {
		return "", "", fmt.Errorf("%w: %s", ErrPathOutsideWorkspace, raw)
	}
	return abs, rel, nil
}

// Contains reports whether the path resolves inside the workspace.
func (w *Workspace) Contains(raw string) bool {
	_, _, err := w.Resolve(raw)
	return err == nil
}

// stripFileURI removes a file:// scheme, percent-decoding the remainder so an
// encoded traversal sequence cannot slip past the boundary check.
func stripFileURI(path string) string {
	lower := strings.ToLower(path)
	if !strings.HasPrefix(lower, "file://") {
		return path
	}
	rest := path[len("file://"):]
	// file:///abs/path keeps its leading slash; file://host/path drops the host.
	if !strings.HasPrefix(rest, "/") {
		if idx := strings.Index(rest, "/"); idx >= 0 {
			rest = rest[idx:]
		}
	}
	if decoded, err := url.PathUnescape(rest); err == nil {
		rest = decoded
	}
	return rest
}

func escapesRoot(rel string) bool {
	if rel == ".." {
		return true
	}
	return strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
