// Package thumbnail renders preview cards for uploaded PDFs. A card is a
// page-shaped JPEG carrying the document title, page count and the opening
// lines of its first page; no PDF rasterizer is involved.
package thumbnail

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	pdfutil "github.com/dharsanguruparan/SectionDrop/internal/pdf"
)

const (
	Width  = 240
	Height = 320

	margin     = 12
	lineHeight = 15
	bandHeight = 36
	quality    = 80
	maxChars   = 1200
)

var (
	paper  = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	band   = color.RGBA{R: 0xc6, G: 0x28, B: 0x28, A: 0xff}
	ink    = color.RGBA{R: 0x21, G: 0x21, B: 0x21, A: 0xff}
	subtle = color.RGBA{R: 0x75, G: 0x75, B: 0x75, A: 0xff}
)

// Result describes a rendered card.
type Result struct {
	Pages int
	// TextErr is set when page text could not be read; the card is still
	// written, with a placeholder body.
	TextErr error
}

// Render writes a preview card for the PDF at src to dst.
func Render(src, dst, title string) (Result, error) {
	sum, textErr := pdfutil.Summarize(src, maxChars)
	img := drawCard(title, sum, textErr != nil)
	if err := writeJPEG(dst, img); err != nil {
		return Result{}, err
	}
	return Result{Pages: sum.Pages, TextErr: textErr}, nil
}

func drawCard(title string, sum pdfutil.Summary, unreadable bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(paper), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(0, 0, Width, bandHeight), image.NewUniform(band), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.NewUniform(paper), Face: face}
	cols := (Width - 2*margin) / face.Advance

	d.Dot = fixed.P(margin, 23)
	d.DrawString("PDF")
	if sum.Pages > 0 {
		label := strconv.Itoa(sum.Pages) + " p."
		d.Dot = fixed.P(Width-margin-len(label)*face.Advance, 23)
		d.DrawString(label)
	}

	y := bandHeight + margin + 10
	d.Src = image.NewUniform(ink)
	for _, line := range wrap(title, cols, 2) {
		d.Dot = fixed.P(margin, y)
		d.DrawString(line)
		y += lineHeight
	}
	y += lineHeight / 2

	d.Src = image.NewUniform(subtle)
	body := sum.FirstPage
	if unreadable || body == "" {
		body = "(no text preview)"
	}
	maxLines := (Height - margin - y) / lineHeight
	for _, line := range wrap(body, cols, maxLines) {
		d.Dot = fixed.P(margin, y)
		d.DrawString(line)
		y += lineHeight
	}
	return img
}

// wrap splits s into at most maxLines lines of at most cols characters,
// breaking on whitespace where possible. Non-ASCII runes are replaced since
// the bitmap face only covers ASCII.
func wrap(s string, cols, maxLines int) []string {
	if cols <= 0 || maxLines <= 0 {
		return nil
	}
	words := strings.Fields(asciiOnly(s))
	var lines []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			lines = append(lines, cur.String())
			cur.Reset()
		}
	}
	for _, w := range words {
		for len(w) > cols {
			flush()
			lines = append(lines, w[:cols])
			w = w[cols:]
		}
		if cur.Len() > 0 && cur.Len()+1+len(w) > cols {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(w)
	}
	flush()
	if len(lines) > maxLines {
		lines = lines[:maxLines]
		last := lines[maxLines-1]
		if len(last) > cols-3 {
			last = last[:cols-3]
		}
		lines[maxLines-1] = last + "..."
	}
	return lines
}

func asciiOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' {
			return ' '
		}
		if r < 0x20 || r > 0x7e {
			return '?'
		}
		return r
	}, s)
}

func writeJPEG(dst string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("ensure thumbnail dir: %w", err)
	}
	tmp := dst + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create thumbnail: %w", err)
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: quality}); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode thumbnail: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close thumbnail: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publish thumbnail: %w", err)
	}
	return nil
}
