// Package fsstore is the durable on-disk layer: atomic JSON records, an
// append-only JSONL log for conversation turns, and flock-based exclusion
// between processes touching the same owner state.
package fsstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	dirPerm  = 0o700
	filePerm = 0o600
)

func cleanPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	return filepath.Clean(path), nil
}

func EnsureDir(path string) error {
	p, err := cleanPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(p, dirPerm); err != nil {
		return fmt.Errorf("fsstore ensure dir %s: %w", p, err)
	}
	return nil
}

// ReadJSON decodes the record at path into out. A missing or empty file is
// not an error; the bool reports whether a record was found.
func ReadJSON(path string, out any) (bool, error) {
	p, err := cleanPath(path)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read json %s: %w", p, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("%w: decode %s: %v", ErrDecodeFailed, p, err)
	}
	return true, nil
}

// WriteJSONAtomic commits v to path through a temp file and rename, so a
// crashed write never leaves a half-written record behind.
func WriteJSONAtomic(path string, v any) error {
	p, err := cleanPath(path)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrEncodeFailed, p, err)
	}
	data = append(data, '\n')
	return writeAtomic(p, data)
}

func writeAtomic(path string, content []byte) error {
	parent := filepath.Dir(path)
	if err := EnsureDir(parent); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(parent, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("%w: create temp for %s: %v", ErrAtomicWriteFailed, path, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("%w: write temp for %s: %v", ErrAtomicWriteFailed, path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: sync temp for %s: %v", ErrAtomicWriteFailed, path, err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		return fmt.Errorf("%w: chmod temp for %s: %v", ErrAtomicWriteFailed, path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp for %s: %v", ErrAtomicWriteFailed, path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: rename temp for %s: %v", ErrAtomicWriteFailed, path, err)
	}

	// Best effort directory sync for durability; ignore failures.
	if dirFD, err := os.Open(parent); err == nil {
		_ = dirFD.Sync()
		_ = dirFD.Close()
	}
	return nil
}
