package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lukeslp/reference-renamer/internal/config"
)

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"Smith_2023_Deep_Learning.pdf", 12, "Smith_202..."},
		{"Müller_2020_Über.pdf", 9, "Müller..."},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := truncateString(tt.in, tt.max); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestTruncateLeft(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"/papers/a.pdf", 20, "/papers/a.pdf"},
		{"/home/user/papers/scan_0001.pdf", 16, "...scan_0001.pdf"},
		{"abcdef", 2, "ef"},
	}
	for _, tt := range tests {
		if got := truncateLeft(tt.in, tt.max); got != tt.want {
			t.Errorf("truncateLeft(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	out := renderTable(&buf, []string{"Document", "Conf"}, [][]string{
		{"scan_0001.pdf", "0.92"},
		{"notes.txt"},
	}, []columnAlignment{alignLeft, alignRight})

	for _, want := range []string{"DOCUMENT", "CONF", "scan_0001.pdf", "0.92", "notes.txt"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "╭") {
		t.Error("non-terminal writer should not get rounded borders")
	}
}

func TestRenderTable_NoHeaders(t *testing.T) {
	if got := renderTable(&bytes.Buffer{}, nil, nil, nil); got != "" {
		t.Errorf("renderTable with no headers = %q, want empty", got)
	}
}

func TestNewConfigView_MasksKeys(t *testing.T) {
	c := config.Default()
	sc := c.Sources[config.SourceS2]
	sc.APIKey = "secret"
	c.Sources[config.SourceS2] = sc

	view := newConfigView(c)
	if !view.Sources[config.SourceS2].HasAPIKey {
		t.Error("s2 should report an API key")
	}
	if view.Sources[config.SourceArXiv].HasAPIKey {
		t.Error("arxiv should not report an API key")
	}
	if !view.Valid {
		t.Errorf("default config invalid: %s", view.Problem)
	}
}

func TestDecisionNames(t *testing.T) {
	names := decisionNames()
	for _, want := range []string{"applied", "dry_run_preview", "duplicate"} {
		if !strings.Contains(names, want) {
			t.Errorf("decisionNames() = %q, missing %q", names, want)
		}
	}
}
