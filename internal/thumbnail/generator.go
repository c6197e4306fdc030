package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dharsanguruparan/SectionDrop/internal/metrics"
	"github.com/dharsanguruparan/SectionDrop/internal/model"
)

// ErrSourceMissing means the upload a job points at is not on disk.
var ErrSourceMissing = errors.New("source upload missing")

// Generator turns ThumbnailJobs into cards under thumbsDir.
type Generator struct {
	uploadsDir string
	thumbsDir  string
	logger     *slog.Logger
}

// NewGenerator constructs a Generator.
func NewGenerator(uploadsDir, thumbsDir string, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{uploadsDir: uploadsDir, thumbsDir: thumbsDir, logger: logger}
}

// Generate renders the card for job. An unreadable PDF still yields a card
// and is only logged.
func (g *Generator) Generate(ctx context.Context, job model.ThumbnailJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src := filepath.Join(g.uploadsDir, filepath.Base(job.FileID))
	if _, err := os.Stat(src); err != nil {
		metrics.Thumbnails.WithLabelValues("failed").Inc()
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrSourceMissing, job.FileID)
		}
		return fmt.Errorf("stat %s: %w", job.FileID, err)
	}
	res, err := Render(src, g.Path(job.FileID), job.Name)
	if err != nil {
		metrics.Thumbnails.WithLabelValues("failed").Inc()
		return fmt.Errorf("render thumbnail %s: %w", job.FileID, err)
	}
	if res.TextErr != nil {
		metrics.Thumbnails.WithLabelValues("degraded").Inc()
		g.logger.Warn("thumbnail without text preview", "id", job.FileID, "err", res.TextErr)
		return nil
	}
	metrics.Thumbnails.WithLabelValues("ok").Inc()
	g.logger.Debug("thumbnail rendered", "id", job.FileID, "pages", res.Pages)
	return nil
}

// Path returns where the card for id is written.
func (g *Generator) Path(id string) string {
	return filepath.Join(g.thumbsDir, model.ThumbnailName(filepath.Base(id)))
}

// Missing returns jobs for the records whose card does not exist yet.
func (g *Generator) Missing(records []model.FileRecord) []model.ThumbnailJob {
	var jobs []model.ThumbnailJob
	for _, rec := range records {
		if _, err := os.Stat(g.Path(rec.ID)); os.IsNotExist(err) {
			jobs = append(jobs, model.JobFor(rec))
		}
	}
	return jobs
}
