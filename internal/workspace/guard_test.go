package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewGuard(t *testing.T) {
	if _, err := NewGuard(""); err == nil {
		t.Error("Expected error for empty directory")
	}
	g, err := NewGuard("/non/existent/path")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if g.Root() != "/non/existent/path" {
		t.Errorf("Root() = %q", g.Root())
	}
}

func TestResolve(t *testing.T) {
	root := t.TempDir()
	g, err := NewGuard(root)
	if err != nil {
		t.Fatalf("Failed to create guard: %v", err)
	}

	tests := []struct {
		name      string
		path      string
		want      string
		wantError bool
	}{
		{"relative", "forms/a.pdf", filepath.Join(root, "forms", "a.pdf"), false},
		{"absolute inside", filepath.Join(root, "a.pdf"), filepath.Join(root, "a.pdf"), false},
		{"root itself", root, root, false},
		{"traversal", "../outside.pdf", "", true},
		{"absolute outside", "/etc/passwd", "", true},
		{"sibling prefix", root + "-evil/a.pdf", "", true},
		{"empty", "  ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.Resolve(tt.path)
			if tt.wantError {
				if err == nil {
					t.Errorf("Expected error for %q, got %q", tt.path, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestResolveRejectsEscapingSymlink(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(root, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	g, err := NewGuard(root)
	if err != nil {
		t.Fatalf("Failed to create guard: %v", err)
	}
	if _, err := g.Resolve("link/secret.txt"); err == nil {
		t.Error("Expected symlink escape to be rejected")
	}
}

func TestResolveAll(t *testing.T) {
	root := t.TempDir()
	g, _ := NewGuard(root)

	got, err := g.ResolveAll([]string{"a.txt", "b.docx"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(got) != 2 || got[1] != filepath.Join(root, "b.docx") {
		t.Errorf("ResolveAll = %v", got)
	}

	if _, err := g.ResolveAll([]string{"a.txt", "../b.txt"}); err == nil {
		t.Error("Expected error when one path escapes")
	}
}

func TestResolveOutput(t *testing.T) {
	root := t.TempDir()
	g, _ := NewGuard(root)

	out, err := g.ResolveOutput("filled/out.pdf")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if info, err := os.Stat(filepath.Dir(out)); err != nil || !info.IsDir() {
		t.Errorf("Expected output directory to be created")
	}

	if _, err := g.ResolveOutput("."); err == nil {
		t.Error("Expected error when output is a directory")
	}
}
