package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/SectionDrop/internal/model"
	"github.com/dharsanguruparan/SectionDrop/internal/queue"
	"github.com/dharsanguruparan/SectionDrop/internal/thumbnail"
)

// Generator is the part of thumbnail.Generator the worker needs.
type Generator interface {
	Generate(ctx context.Context, job model.ThumbnailJob) error
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	gen    Generator
	logger *slog.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(gen Generator, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{gen: gen, logger: logger}
}

// Handler registers the render job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.RenderThumbnailTask, p.handleRender)
	return mux
}

func (p *Processor) handleRender(ctx context.Context, task *asynq.Task) error {
	job, err := queue.DecodeRenderThumbnail(task)
	if err != nil {
		// a malformed payload never gets better on retry
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err := p.gen.Generate(ctx, job); err != nil {
		p.logger.Error("thumbnail task failed", "id", job.FileID, "err", err)
		if errors.Is(err, thumbnail.ErrSourceMissing) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	p.logger.Info("thumbnail rendered", "id", job.FileID)
	return nil
}
