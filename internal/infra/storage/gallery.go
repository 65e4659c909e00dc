// Package storage persists signed captures in a gallery directory. Commits
// are atomic: data goes to a temp file in the destination directory, is
// fsynced, and renamed into place, so an interrupted commit never leaves a
// partial file under the final name.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nightlyone/lockfile"

	"github.com/RoloBits/attestation-photo-mobile/internal/domain"
)

const (
	readPollInterval = 25 * time.Millisecond
	readMaxPolls     = 40
)

// ErrSourceUnstable is returned when a source file never settles within the
// read retry budget, typically because its writer stalled.
var ErrSourceUnstable = errors.New("storage: source file did not stabilize")

// Gallery is a locked output directory. The lockfile serializes committers
// across processes; within a process Commit is safe to call concurrently
// because each call uses its own temp file.
type Gallery struct {
	dir   string
	flock lockfile.Lockfile
}

// Open creates dir if needed and takes its lockfile.
func Open(dir string) (*Gallery, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", dir, err)
	}
	absLockPath, err := filepath.Abs(filepath.Join(dir, "lock"))
	if err != nil {
		return nil, fmt.Errorf("storage: filepath.Abs: %w", err)
	}
	flock, err := lockfile.New(absLockPath)
	if err != nil {
		return nil, fmt.Errorf("storage: creating lock %s: %w", absLockPath, err)
	}
	if err := flock.TryLock(); err != nil {
		return nil, fmt.Errorf("storage: acquiring lock %s: %w", absLockPath, err)
	}
	removeStaleTemps(dir)
	return &Gallery{dir: dir, flock: flock}, nil
}

// removeStaleTemps drops temp files a crashed committer left behind. The
// caller holds the directory lock, so no live commit owns them.
func removeStaleTemps(dir string) {
	stale, err := filepath.Glob(filepath.Join(dir, ".commit-*"))
	if err != nil {
		return
	}
	for _, path := range stale {
		os.Remove(path)
	}
}

func (g *Gallery) Dir() string { return g.dir }

func (g *Gallery) Close() error {
	return g.flock.Unlock()
}

// ReadSource reads a capture that another component may still be writing. It
// polls at a fixed interval until two consecutive reads of at least minSize
// bytes agree, and gives up after a bounded number of polls.
func (g *Gallery) ReadSource(path string, minSize int) ([]byte, error) {
	var prev []byte
	for i := 0; i < readMaxPolls; i++ {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: read source: %v", domain.ErrCaptureFailed, err)
		}
		if len(data) >= minSize && prev != nil && bytes.Equal(data, prev) {
			return data, nil
		}
		prev = data
		time.Sleep(readPollInterval)
	}
	return nil, fmt.Errorf("%w: %s", ErrSourceUnstable, path)
}

// Commit writes data under name inside the gallery and returns the final
// path. The destination is never visible half-written.
func (g *Gallery) Commit(name string, data []byte) (string, error) {
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("storage: invalid name %q", name)
	}
	dst := filepath.Join(g.dir, name)

	tmp, err := os.CreateTemp(g.dir, ".commit-*")
	if err != nil {
		return "", fmt.Errorf("storage: temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("storage: write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("storage: sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("storage: close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return "", fmt.Errorf("storage: chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return "", fmt.Errorf("storage: rename to %s: %w", dst, err)
	}
	return dst, nil
}
