package thumbnail

import (
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderUnreadablePDFStillWritesCard(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "1-1.pdf")
	require.NoError(t, os.WriteFile(src, []byte("%PDF-1.4\nnot a real document\n%%EOF\n"), 0o644))
	dst := filepath.Join(dir, "thumbnails", "1-1.pdf.jpg")

	res, err := Render(src, dst, "Field notes.pdf")
	require.NoError(t, err)
	assert.Error(t, res.TextErr)

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := jpeg.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, Width, cfg.Width)
	assert.Equal(t, Height, cfg.Height)

	_, err = os.Stat(dst + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestWrap(t *testing.T) {
	lines := wrap("the quick brown fox jumps over the lazy dog", 10, 10)
	assert.Equal(t, []string{"the quick", "brown fox", "jumps over", "the lazy", "dog"}, lines)

	long := wrap(strings.Repeat("x", 25), 10, 10)
	assert.Equal(t, []string{"xxxxxxxxxx", "xxxxxxxxxx", "xxxxx"}, long)

	capped := wrap("one two three four five six", 9, 2)
	require.Len(t, capped, 2)
	assert.True(t, strings.HasSuffix(capped[1], "..."))

	assert.Equal(t, []string{"caf? ol?"}, wrap("café olé", 20, 1))
	assert.Nil(t, wrap("anything", 10, 0))
}
