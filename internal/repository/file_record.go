package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/SectionDrop/internal/model"
)

// FileRecordRepository stores FileRecords in Postgres. It satisfies
// store.Store; the database serializes concurrent appends.
type FileRecordRepository struct {
	pool *pgxpool.Pool
}

// NewFileRecordRepository constructs a repository.
func NewFileRecordRepository(pool *pgxpool.Pool) *FileRecordRepository {
	return &FileRecordRepository{pool: pool}
}

// Append inserts rec after every existing row.
func (r *FileRecordRepository) Append(ctx context.Context, rec model.FileRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO file_records (id, name, section, date, path, thumbnail)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, rec.ID, rec.Name, rec.Section, rec.Date, rec.Path, rec.Thumbnail)
	if err != nil {
		return fmt.Errorf("insert file record: %w", err)
	}
	return nil
}

// List returns every record in insertion order.
func (r *FileRecordRepository) List(ctx context.Context) ([]model.FileRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, section, date, path, thumbnail
		FROM file_records ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("select file records: %w", err)
	}
	return collect(rows)
}

// BySection returns the records tagged with section in insertion order.
func (r *FileRecordRepository) BySection(ctx context.Context, section string) ([]model.FileRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, section, date, path, thumbnail
		FROM file_records WHERE section=$1 ORDER BY seq
	`, section)
	if err != nil {
		return nil, fmt.Errorf("select file records: %w", err)
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]model.FileRecord, error) {
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.FileRecord, error) {
		var rec model.FileRecord
		err := row.Scan(&rec.ID, &rec.Name, &rec.Section, &rec.Date, &rec.Path, &rec.Thumbnail)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan file records: %w", err)
	}
	if records == nil {
		records = []model.FileRecord{}
	}
	return records, nil
}
