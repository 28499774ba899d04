// Package fileops performs the on-disk rename for an accepted naming decision.
package fileops

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// BackupSuffix is appended to the original path for backup copies.
const BackupSuffix = ".bak"

var (
	// ErrTargetExists means the final filename is taken by another file.
	ErrTargetExists = errors.New("target file already exists")

	// ErrSourceMissing means the original file is gone.
	ErrSourceMissing = errors.New("source file does not exist")
)

// Request describes one rename.
type Request struct {
	OriginalPath  string
	FinalFilename string
	DryRun        bool
}

// Target returns the destination path, in the original's directory.
func (r Request) Target() string {
	return filepath.Join(filepath.Dir(r.OriginalPath), r.FinalFilename)
}

// Renamer renames files in place, optionally keeping a verified backup.
type Renamer struct {
	Backup bool
}

// Apply renames req.OriginalPath to req.FinalFilename. It never overwrites
// an existing file. Dry runs and unchanged names are no-ops.
func (m *Renamer) Apply(ctx context.Context, req Request) error {
	if req.DryRun {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if req.FinalFilename == "" || filepath.Base(req.FinalFilename) != req.FinalFilename {
		return fmt.Errorf("invalid final filename %q", req.FinalFilename)
	}

	target := req.Target()
	if target == req.OriginalPath {
		return nil
	}

	srcInfo, err := os.Stat(req.OriginalPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrSourceMissing, req.OriginalPath)
		}
		return err
	}
	if dstInfo, err := os.Lstat(target); err == nil {
		// case-only renames on case-insensitive filesystems see the source itself
		if !os.SameFile(srcInfo, dstInfo) {
			return fmt.Errorf("%w: %s", ErrTargetExists, target)
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	if m.Backup {
		if err := CopyFileVerified(req.OriginalPath, req.OriginalPath+BackupSuffix); err != nil {
			return fmt.Errorf("backing up %s: %w", req.OriginalPath, err)
		}
	}

	if err := os.Rename(req.OriginalPath, target); err != nil {
		return fmt.Errorf("renaming %s: %w", req.OriginalPath, err)
	}
	zap.L().Debug("renamed", zap.String("from", req.OriginalPath), zap.String("to", target))
	return nil
}

// Revert undoes Apply. The backup copy is used when the renamed file is gone.
func (m *Renamer) Revert(ctx context.Context, req Request) error {
	if req.DryRun {
		return nil
	}
	target := req.Target()
	if target == req.OriginalPath {
		return nil
	}

	if exists(target) && !exists(req.OriginalPath) {
		if err := os.Rename(target, req.OriginalPath); err != nil {
			return fmt.Errorf("reverting %s: %w", target, err)
		}
		return nil
	}
	if !exists(req.OriginalPath) {
		backup := req.OriginalPath + BackupSuffix
		if !exists(backup) {
			return fmt.Errorf("%w: %s", ErrSourceMissing, req.OriginalPath)
		}
		if err := CopyFileVerified(backup, req.OriginalPath); err != nil {
			return fmt.Errorf("restoring %s: %w", backup, err)
		}
	}
	return nil
}

// Settled reports whether a rename described by req completed on disk:
// the target is present and the original is gone.
func Settled(req Request) bool {
	target := req.Target()
	if target == req.OriginalPath {
		return exists(target)
	}
	return exists(target) && !exists(req.OriginalPath)
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// CopyFileVerified copies src to dst and checks size and SHA-256 of the
// written file against the source. dst is removed on mismatch.
func CopyFileVerified(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	srcHasher := sha256.New()
	written, err := io.Copy(out, io.TeeReader(in, srcHasher))
	if err != nil {
		return err
	}
	if err := out.Sync(); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if written != srcInfo.Size() {
		_ = os.Remove(dst)
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), written)
	}

	dstSum, err := hashFile(dst)
	if err != nil {
		return err
	}
	if !bytes.Equal(srcHasher.Sum(nil), dstSum) {
		_ = os.Remove(dst)
		return fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}
	return nil
}

func hashFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}
