package extract

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExtract_PlainText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	if err := os.WriteFile(path, []byte("# Title\nbody"), 0644); err != nil {
		t.Fatal(err)
	}

	text, err := New().Extract(path)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "# Title\nbody" {
		t.Errorf("Extract() = %q", text)
	}
}

func TestExtract_PlainTextCap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.txt")
	if err := os.WriteFile(path, []byte(strings.Repeat("a", 100)), 0644); err != nil {
		t.Fatal(err)
	}

	e := &Extractor{MaxBytes: 10}
	text, err := e.Extract(path)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(text) != 10 {
		t.Errorf("Extract() length = %d, want 10", len(text))
	}
}

func TestExtract_Unsupported(t *testing.T) {
	_, err := New().Extract("/tmp/file.docx")
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("Extract(.docx) error = %v, want ErrUnsupported", err)
	}
}

func TestExtract_MalformedPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	if err := os.WriteFile(path, []byte("not a pdf at all"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := New().Extract(path); err == nil {
		t.Error("Extract() on malformed PDF should fail")
	}
}

func TestSupported(t *testing.T) {
	tests := []struct {
		ext  string
		want bool
	}{
		{".pdf", true},
		{".PDF", true},
		{".txt", true},
		{".md", true},
		{".docx", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := Supported(tt.ext); got != tt.want {
			t.Errorf("Supported(%q) = %v, want %v", tt.ext, got, tt.want)
		}
	}
}
