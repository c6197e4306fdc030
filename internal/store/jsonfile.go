package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dharsanguruparan/SectionDrop/internal/model"
)

const wipSuffix = ".wip"

// JSONFile keeps every record in one pretty-printed JSON array. Appends are
// serialized by mu and land through a temp file plus rename, so concurrent
// uploads cannot lose each other's records and readers never see a
// half-written array.
type JSONFile struct {
	path string
	mu   sync.Mutex
}

// NewJSONFile returns a store backed by path. The file is created lazily on
// the first Append.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

// Path returns the backing file.
func (s *JSONFile) Path() string { return s.path }

// Append reads the current list, adds rec and rewrites the file.
func (s *JSONFile) Append(ctx context.Context, rec model.FileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.read()
	if err != nil {
		return err
	}
	records = append(records, rec)
	return s.write(records)
}

// List returns all records in insertion order. A missing file is an empty
// list.
func (s *JSONFile) List(ctx context.Context) ([]model.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.read()
}

// BySection returns the records tagged with section.
func (s *JSONFile) BySection(ctx context.Context, section string) ([]model.FileRecord, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return FilterSection(records, section), nil
}

func (s *JSONFile) read() ([]model.FileRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []model.FileRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	records := []model.FileRecord{}
	if len(bytes.TrimSpace(data)) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	if records == nil {
		// a literal "null" decodes to a nil slice
		records = []model.FileRecord{}
	}
	return records, nil
}

func (s *JSONFile) write(records []model.FileRecord) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	tmp := s.path + wipSuffix
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure store dir: %w", err)
		}
	}
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", tmp, err)
	}
	if _, err := f.Write(bytes.TrimRight(buf.Bytes(), "\n")); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
