package pdfutil

import (
	"fmt"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// Summary is what the thumbnail card shows about a document.
type Summary struct {
	Pages     int
	FirstPage string
}

// Summarize opens the PDF at path and returns its page count plus the plain
// text of the first non-empty page, trimmed to maxChars runes.
func Summarize(path string, maxChars int) (sum Summary, err error) {
	// ledongthuc/pdf panics on some malformed inputs; surface those as errors.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()
	f, doc, err := pdf.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()
	sum.Pages = doc.NumPage()
	for page := 1; page <= sum.Pages; page++ {
		p := doc.Page(page)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return sum, fmt.Errorf("page %d: %w", page, err)
		}
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		sum.FirstPage = truncate(content, maxChars)
		break
	}
	return sum, nil
}

func truncate(s string, maxChars int) string {
	if maxChars <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
