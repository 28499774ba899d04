package scan

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}

func setupTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, p := range []string{
		"a.pdf", "B.PDF", "notes.md", "image.png", "a.pdf.bak", ".hidden.pdf",
		"sub/c.txt", ".refname/ledger.jsonl", "skipme/d.pdf",
	} {
		touch(t, filepath.Join(root, p))
	}
	return root
}

func rel(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, len(paths))
	for i, p := range paths {
		r, err := filepath.Rel(root, p)
		if err != nil {
			t.Fatal(err)
		}
		out[i] = filepath.ToSlash(r)
	}
	return out
}

func TestFiles(t *testing.T) {
	root := setupTree(t)

	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{"flat defaults", Options{}, []string{"B.PDF", "a.pdf", "notes.md"}},
		{"recursive", Options{Recursive: true, SkipDirs: []string{"skipme"}}, []string{"B.PDF", "a.pdf", "notes.md", "sub/c.txt"}},
		{"pdf only", Options{Extensions: []string{"pdf"}, Recursive: true}, []string{"B.PDF", "a.pdf", "skipme/d.pdf"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Files(root, tt.opts)
			if err != nil {
				t.Fatalf("Files() error = %v", err)
			}
			if r := rel(t, root, got); !reflect.DeepEqual(r, tt.want) {
				t.Errorf("Files() = %v, want %v", r, tt.want)
			}
		})
	}
}

func TestFiles_NotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.pdf")
	touch(t, path)
	if _, err := Files(path, Options{}); err == nil {
		t.Error("Files() on a file should fail")
	}
}

func TestNames(t *testing.T) {
	root := setupTree(t)
	names, err := Names(filepath.Join(root, "sub"))
	if err != nil {
		t.Fatalf("Names() error = %v", err)
	}
	if !reflect.DeepEqual(names, []string{"c.txt"}) {
		t.Errorf("Names() = %v", names)
	}

	missing, err := Names(filepath.Join(root, "nope"))
	if err != nil || len(missing) != 0 {
		t.Errorf("Names(missing) = %v, %v", missing, err)
	}
}
