package fsstore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestReadWriteJSONAtomic(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	type payload struct {
		Name string `json:"name"`
	}
	in := payload{Name: "alpha"}
	if err := WriteJSONAtomic(path, in); err != nil {
		t.Fatalf("WriteJSONAtomic() error = %v", err)
	}

	var out payload
	found, err := ReadJSON(path, &out)
	if err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if !found {
		t.Fatal("ReadJSON() found = false, want true")
	}
	if out != in {
		t.Fatalf("ReadJSON() = %+v, want %+v", out, in)
	}
}

func TestReadJSONMissingFile(t *testing.T) {
	t.Parallel()

	var out map[string]any
	found, err := ReadJSON(filepath.Join(t.TempDir(), "missing.json"), &out)
	if err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if found {
		t.Fatal("ReadJSON() found = true, want false")
	}
}

func TestAppendReadJSONL(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "turns.jsonl")
	type rec struct {
		N int `json:"n"`
	}
	for i := 0; i < 5; i++ {
		if err := AppendJSONL(path, rec{N: i}); err != nil {
			t.Fatalf("AppendJSONL(%d) error = %v", i, err)
		}
	}

	var got []rec
	err := ReadJSONL(path, func(line []byte) error {
		var r rec
		if err := json.Unmarshal(line, &r); err != nil {
			return err
		}
		got = append(got, r)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadJSONL() error = %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("ReadJSONL() read %d records, want 5", len(got))
	}
	for i, r := range got {
		if r.N != i {
			t.Fatalf("record %d = %d, want %d", i, r.N, i)
		}
	}
}

func TestReadJSONLSkipsTornTail(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "turns.jsonl")
	if err := AppendJSONL(path, map[string]int{"n": 1}); err != nil {
		t.Fatalf("AppendJSONL() error = %v", err)
	}
	// Simulate a crash mid-append: a record with no trailing newline.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString(`{"n":2`); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = f.Close()

	count := 0
	err = ReadJSONL(path, func([]byte) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("ReadJSONL() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("ReadJSONL() read %d records, want 1 (torn tail dropped)", count)
	}
}

func TestTruncateJSONL(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "turns.jsonl")
	if err := AppendJSONL(path, map[string]int{"n": 1}); err != nil {
		t.Fatalf("AppendJSONL() error = %v", err)
	}
	if err := TruncateJSONL(path); err != nil {
		t.Fatalf("TruncateJSONL() error = %v", err)
	}
	count := 0
	if err := ReadJSONL(path, func([]byte) error { count++; return nil }); err != nil {
		t.Fatalf("ReadJSONL() error = %v", err)
	}
	if count != 0 {
		t.Fatalf("log has %d records after truncate, want 0", count)
	}
}

func TestBuildLockPath(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), ".locks")
	got, err := BuildLockPath(root, "owner.42")
	if err != nil {
		t.Fatalf("BuildLockPath() error = %v", err)
	}
	want := filepath.Join(root, "owner.42.lck")
	if got != want {
		t.Fatalf("BuildLockPath() = %q, want %q", got, want)
	}
}

func TestBuildLockPathInvalidKey(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), ".locks")
	invalid := []string{
		"",
		"Owner.42",
		"owner/42",
		".owner",
		"owner.",
		"owner 42",
		strings.Repeat("x", 200),
	}
	for _, key := range invalid {
		key := key
		t.Run(key, func(t *testing.T) {
			t.Parallel()
			if _, err := BuildLockPath(root, key); !errors.Is(err, ErrInvalidPath) {
				t.Fatalf("BuildLockPath(%q) error = %v, want ErrInvalidPath", key, err)
			}
		})
	}
}

func TestWithLockExcludes(t *testing.T) {
	t.Parallel()

	lockPath, err := BuildLockPath(filepath.Join(t.TempDir(), ".locks"), "owner.7")
	if err != nil {
		t.Fatalf("BuildLockPath() error = %v", err)
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = WithLock(context.Background(), lockPath, func() error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	err = WithLock(ctx, lockPath, func() error { return nil })
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("WithLock() under contention error = %v, want ErrLockTimeout", err)
	}
	close(release)
}
