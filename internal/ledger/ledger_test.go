package ledger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lukeslp/reference-renamer/internal/record"
)

func openTest(t *testing.T, dir string) *Ledger {
	t.Helper()
	n, ids := 0, 0
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	l.now = func() time.Time { n++; return base.Add(time.Duration(n) * time.Second) }
	l.newID = func() string { ids++; return fmt.Sprintf("id-%d", ids) }
	return l
}

func fused(conf float64) *record.FusedRecord {
	return &record.FusedRecord{
		Authors:           record.Field[[]string]{Value: []string{"Smith, J."}, Confidence: 1},
		Year:              record.Field[int]{Value: 2023, Confidence: 1},
		OverallConfidence: conf,
		Fingerprint:       "fp1",
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name    string
		overall float64
		dryRun  bool
		want    Decision
	}{
		{"below threshold", 0.39, false, DecisionSkippedLowConfidence},
		{"below threshold dry run", 0.1, true, DecisionSkippedLowConfidence},
		{"at threshold", 0.4, false, DecisionApplied},
		{"dry run", 0.9, true, DecisionDryRunPreview},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.overall, DefaultThreshold, tt.dryRun); got != tt.want {
				t.Errorf("Decide(%v) = %q, want %q", tt.overall, got, tt.want)
			}
		})
	}
}

func TestRecord_MarksSeen(t *testing.T) {
	l := openTest(t, t.TempDir())
	defer l.Close()

	if l.HasSeen("fp1") {
		t.Fatal("empty ledger should not have seen fp1")
	}
	e, err := l.Record(Entry{Fingerprint: "fp1", OriginalPath: "/a.pdf", Decision: DecisionSkippedLowConfidence, Record: fused(0.2)})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if e.ID == "" || e.Timestamp.IsZero() {
		t.Errorf("Record() did not fill id/timestamp: %+v", e)
	}
	if !l.HasSeen("fp1") {
		t.Error("HasSeen(fp1) = false after Record")
	}
	latest, ok := l.Latest("fp1")
	if !ok || latest.Decision != DecisionSkippedLowConfidence {
		t.Errorf("Latest() = %+v, %v", latest, ok)
	}
}

func TestPreview_IsNotBinding(t *testing.T) {
	l := openTest(t, t.TempDir())
	defer l.Close()

	e, err := l.Preview(Entry{Fingerprint: "fp1", OriginalPath: "/a.pdf", FinalFilename: "Smith_2023.pdf"})
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if e.Decision != DecisionDryRunPreview || !e.DryRun {
		t.Errorf("Preview() entry = %+v", e)
	}
	if l.HasSeen("fp1") {
		t.Error("dry-run entry must not mark the fingerprint as seen")
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1", l.Len())
	}
}

func TestIntentConfirm(t *testing.T) {
	l := openTest(t, t.TempDir())
	defer l.Close()

	intent, err := l.Intent(Entry{Fingerprint: "fp1", OriginalPath: "/a.pdf", FinalFilename: "Smith_2023.pdf"})
	if err != nil {
		t.Fatalf("Intent() error = %v", err)
	}
	if l.HasSeen("fp1") {
		t.Error("intent must not mark the fingerprint as seen")
	}
	if got := l.Pending(); len(got) != 1 || got[0].ID != intent.ID {
		t.Fatalf("Pending() = %+v, want the intent", got)
	}

	final, err := l.Confirm(intent, DecisionApplied, "")
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if final.IntentID != intent.ID || final.Phase != PhaseFinal || final.ID == intent.ID {
		t.Errorf("Confirm() entry = %+v", final)
	}
	if len(l.Pending()) != 0 {
		t.Error("Pending() should be empty after Confirm")
	}
	if !l.HasSeen("fp1") {
		t.Error("HasSeen(fp1) = false after Confirm")
	}
}

func TestConfirm_ErrorClearsFilename(t *testing.T) {
	l := openTest(t, t.TempDir())
	defer l.Close()

	intent, _ := l.Intent(Entry{Fingerprint: "fp1", OriginalPath: "/a.pdf", FinalFilename: "Smith_2023.pdf", CollisionCount: 1})
	final, err := l.Confirm(intent, DecisionError, "permission denied")
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if final.FinalFilename != "" || final.CollisionCount != 0 || final.Error != "permission denied" {
		t.Errorf("Confirm(error) entry = %+v", final)
	}
}

func TestOpen_ReplaysLog(t *testing.T) {
	dir := t.TempDir()
	l := openTest(t, dir)
	if _, err := l.Record(Entry{Fingerprint: "fp1", OriginalPath: "/a.pdf", Decision: DecisionApplied, FinalFilename: "A.pdf"}); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Intent(Entry{Fingerprint: "fp2", OriginalPath: "/b.pdf", FinalFilename: "B.pdf"}); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	l2 := openTest(t, dir)
	defer l2.Close()
	if !l2.HasSeen("fp1") {
		t.Error("reopened ledger lost fp1")
	}
	if l2.HasSeen("fp2") {
		t.Error("unconfirmed intent must not mark fp2 as seen")
	}
	if got := l2.Pending(); len(got) != 1 || got[0].Fingerprint != "fp2" {
		t.Errorf("Pending() after reopen = %+v", got)
	}
	if l2.Len() != 2 {
		t.Errorf("Len() = %d, want 2", l2.Len())
	}
}

func TestOpen_Locked(t *testing.T) {
	dir := t.TempDir()
	l := openTest(t, dir)
	defer l.Close()

	_, err := Open(dir)
	if !errors.Is(err, ErrLocked) {
		t.Errorf("second Open() error = %v, want ErrLocked", err)
	}
}

func TestOpen_TornTail(t *testing.T) {
	dir := t.TempDir()
	good := `{"id":"e1","phase":"final","fingerprint":"fp1","original_path":"/a.pdf","decision":"applied","timestamp":"2025-01-01T00:00:00Z"}`
	if err := os.WriteFile(filepath.Join(dir, LogFile), []byte(good+"\n"+`{"id":"e2","pha`), 0644); err != nil {
		t.Fatal(err)
	}

	l := openTest(t, dir)
	if !l.HasSeen("fp1") {
		t.Error("good line before torn tail was not replayed")
	}
	if _, err := l.Record(Entry{Fingerprint: "fp3", OriginalPath: "/c.pdf", Decision: DecisionError, Error: "boom"}); err != nil {
		t.Fatalf("Record() after torn tail error = %v", err)
	}
	l.Close()

	entries, err := ReadAll(filepath.Join(dir, LogFile))
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(entries) != 2 || entries[1].Fingerprint != "fp3" {
		t.Errorf("ReadAll() = %+v", entries)
	}
}

func TestOpen_TornTailSurvivesRepeatedReopen(t *testing.T) {
	dir := t.TempDir()
	good := `{"id":"e1","phase":"final","fingerprint":"fp1","original_path":"/a.pdf","decision":"applied","timestamp":"2025-01-01T00:00:00Z"}`
	torn := `{"id":"x","fingerprint":"fp2","decis`
	if err := os.WriteFile(filepath.Join(dir, LogFile), []byte(good+"\n"+torn), 0644); err != nil {
		t.Fatal(err)
	}

	l := openTest(t, dir)
	if _, err := l.Record(Entry{Fingerprint: "fp3", OriginalPath: "/c.pdf", Decision: DecisionApplied}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	l.Close()

	for i := 0; i < 2; i++ {
		l, err := Open(dir)
		if err != nil {
			t.Fatalf("reopen %d error = %v", i+1, err)
		}
		if !l.HasSeen("fp1") || !l.HasSeen("fp3") {
			t.Errorf("reopen %d lost entries: fp1=%v fp3=%v", i+1, l.HasSeen("fp1"), l.HasSeen("fp3"))
		}
		if l.HasSeen("fp2") {
			t.Errorf("reopen %d replayed the torn entry", i+1)
		}
		l.Close()
	}

	data, err := os.ReadFile(filepath.Join(dir, LogFile))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), torn) {
		t.Errorf("torn line still in ledger:\n%s", data)
	}
}

func TestOpen_FinalLineWithoutNewlineKept(t *testing.T) {
	dir := t.TempDir()
	good := `{"id":"e1","phase":"final","fingerprint":"fp1","original_path":"/a.pdf","decision":"applied","timestamp":"2025-01-01T00:00:00Z"}`
	if err := os.WriteFile(filepath.Join(dir, LogFile), []byte(good), 0644); err != nil {
		t.Fatal(err)
	}

	l := openTest(t, dir)
	if _, err := l.Record(Entry{Fingerprint: "fp2", OriginalPath: "/b.pdf", Decision: DecisionApplied}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	l.Close()

	entries, err := ReadAll(filepath.Join(dir, LogFile))
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("ReadAll() = %d entries, want 2", len(entries))
	}
}

func TestReadAll_CorruptMiddleLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), LogFile)
	content := "{bad json}\n" + `{"id":"e1","phase":"final","fingerprint":"fp1","decision":"applied"}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadAll(path); err == nil {
		t.Error("ReadAll() should fail on a corrupt line that is not the tail")
	}
}

func TestRecord_RejectsInvalid(t *testing.T) {
	l := openTest(t, t.TempDir())
	defer l.Close()

	if _, err := l.Record(Entry{OriginalPath: "/a.pdf", Decision: DecisionApplied}); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("missing fingerprint error = %v", err)
	}
	if _, err := l.Record(Entry{Fingerprint: "fp", Decision: "renamed"}); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("unknown decision error = %v", err)
	}
}

func TestRecord_AfterClose(t *testing.T) {
	l := openTest(t, t.TempDir())
	l.Close()

	_, err := l.Record(Entry{Fingerprint: "fp", Decision: DecisionApplied})
	if !IsWriteError(err) {
		t.Errorf("Record() after Close error = %v, want WriteError", err)
	}
}
