package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// Index is a disposable SQLite cache over the JSONL log for listing and
// filtering. The log stays the source of truth.
type Index struct {
	db *sql.DB
}

// Filter narrows index queries. Zero values match everything.
type Filter struct {
	Decision     Decision
	Fingerprint  string
	PathContains string
	FinalOnly    bool
	Limit        int
}

// OpenIndex opens or creates the cache at path.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Close closes the database connection.
func (x *Index) Close() error {
	return x.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS entries (
			seq INTEGER PRIMARY KEY,
			id TEXT NOT NULL,
			run_id TEXT,
			phase TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			original_path TEXT NOT NULL,
			final_filename TEXT,
			decision TEXT NOT NULL,
			dry_run INTEGER NOT NULL,
			overall_confidence REAL,
			ts INTEGER NOT NULL,
			entry_json TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_entries_fingerprint ON entries(fingerprint);
		CREATE INDEX IF NOT EXISTS idx_entries_decision ON entries(decision);
	`
	_, err := db.Exec(schema)
	return err
}

// Rebuild clears the cache and reloads it from the given entries.
func (x *Index) Rebuild(entries []Entry) (int, error) {
	tx, err := x.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM entries"); err != nil {
		return 0, fmt.Errorf("clearing entries table: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO entries (
			seq, id, run_id, phase, fingerprint, original_path, final_filename,
			decision, dry_run, overall_confidence, ts, entry_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return 0, fmt.Errorf("marshaling entry %s: %w", e.ID, err)
		}
		var conf sql.NullFloat64
		if e.Record != nil {
			conf = sql.NullFloat64{Float64: e.Record.OverallConfidence, Valid: true}
		}
		dryRun := 0
		if e.DryRun {
			dryRun = 1
		}
		if _, err := stmt.Exec(
			i+1, e.ID, e.RunID, string(e.Phase), e.Fingerprint, e.OriginalPath, e.FinalFilename,
			string(e.Decision), dryRun, conf, e.Timestamp.UnixNano(), string(data),
		); err != nil {
			return 0, fmt.Errorf("inserting entry %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing: %w", err)
	}
	return len(entries), nil
}

// RebuildFromJSONL clears the cache and reloads it from a ledger file.
func (x *Index) RebuildFromJSONL(path string) (int, error) {
	entries, err := ReadAll(path)
	if err != nil {
		return 0, fmt.Errorf("reading JSONL: %w", err)
	}
	return x.Rebuild(entries)
}

// Query returns matching entries, newest first.
func (x *Index) Query(f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.Decision != "" {
		where = append(where, "decision = ?")
		args = append(args, string(f.Decision))
	}
	if f.Fingerprint != "" {
		where = append(where, "fingerprint = ?")
		args = append(args, f.Fingerprint)
	}
	if f.PathContains != "" {
		where = append(where, "original_path LIKE ?")
		args = append(args, "%"+f.PathContains+"%")
	}
	if f.FinalOnly {
		where = append(where, "phase = ?")
		args = append(args, string(PhaseFinal))
	}

	q := "SELECT entry_json FROM entries"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY seq DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := x.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decoding entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns entries per decision among final entries.
func (x *Index) Count() (map[Decision]int, error) {
	rows, err := x.db.Query("SELECT decision, COUNT(*) FROM entries WHERE phase = ? GROUP BY decision", string(PhaseFinal))
	if err != nil {
		return nil, fmt.Errorf("counting entries: %w", err)
	}
	defer rows.Close()

	out := make(map[Decision]int)
	for rows.Next() {
		var d string
		var n int
		if err := rows.Scan(&d, &n); err != nil {
			return nil, err
		}
		out[Decision(d)] = n
	}
	return out, rows.Err()
}
