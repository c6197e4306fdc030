// Package filestore streams uploaded PDFs onto disk. Bytes land in a hidden
// incoming file first and are only promoted to their public name once the
// upload has been validated.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/SectionDrop/internal/paths"
)

// PDFContentType is the only MIME type accepted for uploads.
const PDFContentType = "application/pdf"

var (
	ErrTooLarge = errors.New("file exceeds size limit")
	ErrEmpty    = errors.New("empty file")
	ErrNotPDF   = errors.New("only PDF files are allowed")
)

const (
	sniffLen       = 512
	promoteRetries = 5
)

// Store owns the uploads directory.
type Store struct {
	dir     string
	maxSize int64
	names   *NameGenerator
}

// New returns a Store writing into dir. maxSize <= 0 disables the limit.
func New(dir string, maxSize int64) *Store {
	return &Store{dir: dir, maxSize: maxSize, names: NewNameGenerator()}
}

// Dir returns the uploads directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the on-disk location of a stored id.
func (s *Store) Path(id string) string {
	return filepath.Join(s.dir, filepath.Base(id))
}

// Remove deletes a stored file. Missing files are not an error.
func (s *Store) Remove(id string) error {
	if err := os.Remove(s.Path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", id, err)
	}
	return nil
}

// Incoming is an upload that has been written to disk but not published.
type Incoming struct {
	store       *Store
	path        string
	Filename    string
	Size        int64
	ContentType string
}

// Receive streams r into a new incoming file and sniffs its content type.
// On error nothing is left on disk.
func (s *Store) Receive(r io.Reader, filename string) (*Incoming, error) {
	path := filepath.Join(s.dir, paths.IncomingPrefix+uuid.NewString())
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create incoming file: %w", err)
	}
	fail := func(err error) (*Incoming, error) {
		dst.Close()
		os.Remove(path)
		return nil, err
	}
	var sniff []byte
	buf := make([]byte, 32*1024)
	var written int64
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			written += int64(n)
			if s.maxSize > 0 && written > s.maxSize {
				return fail(ErrTooLarge)
			}
			if len(sniff) < sniffLen {
				chunk := n
				if remain := sniffLen - len(sniff); chunk > remain {
					chunk = remain
				}
				sniff = append(sniff, buf[:chunk]...)
			}
			if _, err := dst.Write(buf[:n]); err != nil {
				return fail(fmt.Errorf("write incoming file: %w", err))
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return fail(fmt.Errorf("read upload: %w", readErr))
		}
	}
	if written == 0 {
		return fail(ErrEmpty)
	}
	if err := dst.Sync(); err != nil {
		return fail(fmt.Errorf("sync incoming file: %w", err))
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("close incoming file: %w", err)
	}
	return &Incoming{
		store:       s,
		path:        path,
		Filename:    filename,
		Size:        written,
		ContentType: http.DetectContentType(sniff),
	}, nil
}

// IsPDF reports whether the sniffed content looks like a PDF.
func (in *Incoming) IsPDF() bool {
	return strings.HasPrefix(in.ContentType, PDFContentType)
}

// Discard removes the incoming file.
func (in *Incoming) Discard() {
	_ = os.Remove(in.path)
}

// Promote publishes the incoming file under a freshly generated storage name
// and returns that name. The final path is created exclusively so an
// existing upload is never overwritten.
func (in *Incoming) Promote() (string, error) {
	defer in.Discard()
	for attempt := 0; attempt < promoteRetries; attempt++ {
		id := in.store.names.Next(in.Filename)
		err := os.Link(in.path, in.store.Path(id))
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("promote upload: %w", err)
		}
	}
	return "", fmt.Errorf("promote upload: no free name after %d attempts", promoteRetries)
}
