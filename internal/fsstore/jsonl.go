package fsstore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// AppendJSONL appends v as one JSON line and fsyncs before returning. Each
// call opens the log fresh; turn logs are append-rare and read-often, so the
// open cost buys crash durability per record.
func AppendJSONL(path string, v any) error {
	p, err := cleanPath(path)
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: jsonl encode %s: %v", ErrEncodeFailed, p, err)
	}
	data = append(data, '\n')

	if err := EnsureDir(filepath.Dir(p)); err != nil {
		return err
	}
	file, err := os.OpenFile(p, os.O_CREATE|os.O_APPEND|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("jsonl open %s: %w", p, err)
	}
	defer file.Close()
	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("jsonl append %s: %w", p, err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("jsonl sync %s: %w", p, err)
	}
	return nil
}

// ReadJSONL decodes every complete line of the log into out's element type
// via decode. A trailing line without a newline is a torn write and is
// skipped; undecodable complete lines fail the read.
func ReadJSONL(path string, decode func(line []byte) error) error {
	p, err := cleanPath(path)
	if err != nil {
		return err
	}
	file, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("jsonl open %s: %w", p, err)
	}
	defer file.Close()

	reader := bufio.NewReaderSize(file, 64*1024)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			// No trailing newline means the last append never completed.
			return nil
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if err := decode(line); err != nil {
			return fmt.Errorf("%w: line in %s: %v", ErrDecodeFailed, p, err)
		}
	}
}

// TruncateJSONL atomically replaces the log with an empty file.
func TruncateJSONL(path string) error {
	p, err := cleanPath(path)
	if err != nil {
		return err
	}
	return writeAtomic(p, nil)
}
