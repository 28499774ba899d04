package ledger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// MaxLineCapacity is the maximum buffer size for reading one ledger line.
const MaxLineCapacity = 1024 * 1024

// ReadAll reads every entry from a ledger file. A missing file is an empty
// ledger. A torn final line from an interrupted append is skipped.
func ReadAll(path string) ([]Entry, error) {
	entries, _, err := readFile(path)
	return entries, err
}

// readFile is ReadAll that also reports the byte offset just past the last
// intact line.
func readFile(path string) ([]Entry, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("opening ledger: %w", err)
	}
	defer f.Close()
	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, int64, error) {
	var (
		entries []Entry
		badLine int
		badErr  error
		offset  int64 // bytes consumed, including line terminators
		intact  int64
	)

	scanner := bufio.NewScanner(r)
	buf := make([]byte, MaxLineCapacity)
	scanner.Buffer(buf, MaxLineCapacity)
	scanner.Split(func(data []byte, atEOF bool) (int, []byte, error) {
		advance, token, err := bufio.ScanLines(data, atEOF)
		offset += int64(advance)
		return advance, token, err
	})

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			if badErr == nil {
				intact = offset
			}
			continue
		}
		if badErr != nil {
			// the unparsable line was not the last one
			return nil, 0, fmt.Errorf("parsing line %d: %w", badLine, badErr)
		}

		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			badLine, badErr = lineNum, err
			continue
		}
		entries = append(entries, e)
		intact = offset
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("reading ledger: %w", err)
	}

	if badErr != nil {
		zap.L().Warn("skipping torn ledger line", zap.Int("line", badLine), zap.Error(badErr))
	}
	return entries, intact, nil
}

// appendLine writes one encoded entry and syncs it to disk.
func appendLine(f *os.File, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return &WriteError{Op: "encode", Err: err}
	}
	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	if err := f.Sync(); err != nil {
		return &WriteError{Op: "sync", Err: err}
	}
	return nil
}

// repairTail cuts a torn final line back to intact, the end of the last
// good line, and makes sure the file ends with a newline so the next append
// starts a fresh line.
func repairTail(f *os.File, intact int64) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	if intact < size {
		zap.L().Warn("truncating torn ledger tail", zap.Int64("from", size), zap.Int64("to", intact))
		if err := f.Truncate(intact); err != nil {
			return err
		}
		size = intact
	}
	if size == 0 {
		return nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil {
		return err
	}
	if last[0] == '\n' {
		return nil
	}
	_, err = f.Write([]byte("\n"))
	return err
}
