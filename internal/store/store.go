// Package store persists FileRecords. The default backend is a single JSON
// array on disk; an in-memory backend serves tests and throwaway runs.
package store

import (
	"context"
	"errors"

	"github.com/dharsanguruparan/SectionDrop/internal/model"
)

// ErrCorrupt is returned when persisted metadata cannot be decoded.
var ErrCorrupt = errors.New("metadata store is corrupt")

// Store is the metadata index. Append must be safe for concurrent use and
// must never drop a record appended by another caller.
type Store interface {
	Append(ctx context.Context, rec model.FileRecord) error
	List(ctx context.Context) ([]model.FileRecord, error)
	BySection(ctx context.Context, section string) ([]model.FileRecord, error)
}

// FilterSection returns the records whose section equals section exactly,
// preserving order. The result is never nil.
func FilterSection(records []model.FileRecord, section string) []model.FileRecord {
	out := make([]model.FileRecord, 0)
	for _, rec := range records {
		if rec.Section == section {
			out = append(out, rec)
		}
	}
	return out
}
