package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// File names inside the ledger directory.
const (
	LogFile   = "ledger.jsonl"
	LockFile  = "ledger.lock"
	IndexFile = "ledger.db"
)

// Ledger is an append-only decision log held open by one process.
// All methods are safe for concurrent use.
type Ledger struct {
	dir  string
	lock *flock.Flock

	mu      sync.Mutex
	file    *os.File
	latest  map[string]Entry // fingerprint -> latest binding entry
	intents map[string]Entry // open intents by id
	count   int

	now   func() time.Time
	newID func() string
}

// Open acquires the ledger in dir, creating it if needed, and replays the
// log into memory. It fails with ErrLocked if another process holds it.
func Open(dir string) (*Ledger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, LockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking ledger: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}

	l := &Ledger{
		dir:     dir,
		lock:    lock,
		latest:  make(map[string]Entry),
		intents: make(map[string]Entry),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}

	entries, intact, err := readFile(l.Path())
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	for _, e := range entries {
		l.apply(e)
	}

	f, err := os.OpenFile(l.Path(), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	if err := repairTail(f, intact); err != nil {
		f.Close()
		lock.Unlock()
		return nil, fmt.Errorf("repairing ledger tail: %w", err)
	}
	l.file = f
	return l, nil
}

// Close releases the file and the lock.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var err error
	if l.file != nil {
		err = l.file.Close()
		l.file = nil
	}
	if uerr := l.lock.Unlock(); err == nil {
		err = uerr
	}
	return err
}

// Dir returns the ledger directory.
func (l *Ledger) Dir() string { return l.dir }

// Path returns the JSONL log path.
func (l *Ledger) Path() string { return filepath.Join(l.dir, LogFile) }

// IndexPath returns the path of the SQLite query cache.
func (l *Ledger) IndexPath() string { return filepath.Join(l.dir, IndexFile) }

// Len returns the number of entries in the log.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// HasSeen reports whether a binding entry exists for the fingerprint.
func (l *Ledger) HasSeen(fingerprint string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.latest[fingerprint]
	return ok
}

// Latest returns the most recent binding entry for the fingerprint.
func (l *Ledger) Latest(fingerprint string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.latest[fingerprint]
	return e, ok
}

// Record appends a final entry. The entry is durable when Record returns nil.
func (l *Ledger) Record(e Entry) (Entry, error) {
	e.Phase = PhaseFinal
	return l.append(e)
}

// Preview appends a non-binding dry-run entry.
func (l *Ledger) Preview(e Entry) (Entry, error) {
	e.Decision = DecisionDryRunPreview
	e.DryRun = true
	return l.Record(e)
}

// Intent appends a provisional entry ahead of an external rename. It must
// be settled with Confirm.
func (l *Ledger) Intent(e Entry) (Entry, error) {
	e.Phase = PhaseIntent
	e.Decision = DecisionApplied
	e.DryRun = false
	e.IntentID = ""
	return l.append(e)
}

// Confirm settles an intent with its final decision. errMsg is recorded
// when the decision is DecisionError.
func (l *Ledger) Confirm(intent Entry, decision Decision, errMsg string) (Entry, error) {
	final := intent
	final.ID = ""
	final.Timestamp = time.Time{}
	final.Phase = PhaseFinal
	final.IntentID = intent.ID
	final.Decision = decision
	final.Error = errMsg
	if decision != DecisionApplied {
		final.FinalFilename = ""
		final.CollisionCount = 0
	}
	return l.append(final)
}

// Pending returns intents with no matching final entry, oldest first.
func (l *Ledger) Pending() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, 0, len(l.intents))
	for _, e := range l.intents {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Entries reads the whole log from disk in append order.
func (l *Ledger) Entries() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ReadAll(l.Path())
}

func (l *Ledger) append(e Entry) (Entry, error) {
	if e.Fingerprint == "" {
		return Entry{}, fmt.Errorf("%w: missing fingerprint", ErrInvalidEntry)
	}
	if !e.Decision.Valid() {
		return Entry{}, fmt.Errorf("%w: unknown decision %q", ErrInvalidEntry, e.Decision)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return Entry{}, &WriteError{Op: "append", Err: os.ErrClosed}
	}
	if e.ID == "" {
		e.ID = l.newID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now()
	}
	if err := appendLine(l.file, e); err != nil {
		return Entry{}, err
	}
	l.apply(e)
	return e, nil
}

// apply folds one entry into the in-memory index. Caller holds mu or is
// still in Open.
func (l *Ledger) apply(e Entry) {
	l.count++
	switch e.Phase {
	case PhaseIntent:
		l.intents[e.ID] = e
	default:
		if e.IntentID != "" {
			delete(l.intents, e.IntentID)
		}
		if e.Binding() {
			l.latest[e.Fingerprint] = e
		}
	}
}
