package security

import (
	"errors"
	"path/filepath"
	"testing"
)

func newWorkspace(t *testing.T) *Workspace {
	t.Helper()
	w, err := NewWorkspace("/workspace/agent-1")
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	return w
}

func TestResolveRelativeInsideRoot(t *testing.T) {
	w := newWorkspace(t)
	abs, rel, err := w.Resolve("notes/todo.md")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if want := filepath.Join("/workspace/agent-1", "notes", "todo.md"); abs != want {
		t.Errorf("abs = %q, want %q", abs, want)
	}
	if want := filepath.Join("notes", "todo.md"); rel != want {
		t.Errorf("rel = %q, want %q", rel, want)
	}
}

func TestResolveRejectsTraversal(t *testing.T) {
	w := newWorkspace(t)
	for _, raw := range []string{
		"../../etc/passwd",
		"/etc/passwd",
		"notes/../../outside.txt",
		"..",
		"file:///etc/passwd",
		"file:///workspace/agent-1/%2e%2e/%2e%2e/etc/passwd",
	} {
		if _, _, err := w.Resolve(raw); !errors.Is(err, ErrPathOutsideWorkspace) {
			t.Errorf("Resolve(%q): err = %v, want ErrPathOutsideWorkspace", raw, err)
		}
	}
}

func TestResolveAllowsAbsoluteInsideRoot(t *testing.T) {
	w := newWorkspace(t)
	abs, rel, err := w.Resolve("/workspace/agent-1/src/main.go")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if abs != "/workspace/agent-1/src/main.go" {
		t.Errorf("abs = %q", abs)
	}
	if want := filepath.Join("src", "main.go"); rel != want {
		t.Errorf("rel = %q, want %q", rel, want)
	}
}

func TestResolveRootItself(t *testing.T) {
	w := newWorkspace(t)
	abs, rel, err := w.Resolve(".")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if abs != "/workspace/agent-1" || rel != "." {
		t.Errorf("got abs %q rel %q", abs, rel)
	}
}

func TestResolveFileURI(t *testing.T) {
	w := newWorkspace(t)
	abs, rel, err := w.Resolve("file:///workspace/agent-1/data/report.csv")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if abs != "/workspace/agent-1/data/report.csv" {
		t.Errorf("abs = %q", abs)
	}
	if want := filepath.Join("data", "report.csv"); rel != want {
		t.Errorf("rel = %q, want %q", rel, want)
	}
}

func TestResolveFileURIWithHost(t *testing.T) {
	w := newWorkspace(t)
	abs, _, err := w.Resolve("file://localhost/workspace/agent-1/a.txt")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if abs != "/workspace/agent-1/a.txt" {
		t.Errorf("abs = %q", abs)
	}
}

func TestResolveEmptyPath(t *testing.T) {
	w := newWorkspace(t)
	if _, _, err := w.Resolve("   "); err == nil {
		t.Fatal("expected error for blank path")
	}
	if _, _, err := w.Resolve("file://"); err == nil {
		t.Fatal("expected error for bare scheme")
	}
}

func TestContains(t *testing.T) {
	w := newWorkspace(t)
	if !w.Contains("sub/dir/file.txt") {
		t.Error("expected relative path to be contained")
	}
	if w.Contains("../sibling/file.txt") {
		t.Error("expected traversal to be rejected")
	}
}

func TestNewWorkspaceValidation(t *testing.T) {
	if _, err := NewWorkspace(""); err == nil {
		t.Fatal("expected error for empty root")
	}
	w, err := NewWorkspace("/workspace/agent-1/../agent-1/")
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	if w.Root() != "/workspace/agent-1" {
		t.Errorf("Root = %q", w.Root())
	}
}
