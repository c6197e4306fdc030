package queue

import (
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/SectionDrop/internal/model"
)

func TestRenderThumbnailTaskPayload(t *testing.T) {
	job := model.ThumbnailJob{FileID: "1700000000000-5.pdf", Name: "Notas <2024>.pdf"}
	task, err := NewRenderThumbnailTask(job)
	require.NoError(t, err)
	assert.Equal(t, RenderThumbnailTask, task.Type())

	got, err := DecodeRenderThumbnail(task)
	require.NoError(t, err)
	assert.Equal(t, job, got)
}

func TestDecodeRenderThumbnailRejectsBadPayload(t *testing.T) {
	_, err := DecodeRenderThumbnail(asynq.NewTask(RenderThumbnailTask, []byte("{")))
	assert.Error(t, err)

	_, err = DecodeRenderThumbnail(asynq.NewTask(RenderThumbnailTask, []byte(`{"name":"x.pdf"}`)))
	assert.Error(t, err)
}
