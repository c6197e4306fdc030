package server

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/dharsanguruparan/SectionDrop/internal/filestore"
	"github.com/dharsanguruparan/SectionDrop/internal/metrics"
	"github.com/dharsanguruparan/SectionDrop/internal/model"
)

const (
	maxSectionBytes = 4 << 10
	// room for boundaries, part headers and the section field
	multipartOverhead = 1 << 20

	uploadedMessage = "file uploaded successfully"
)

type uploadResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	File    *model.FileRecord `json:"file"`
}

type failureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// uploadError carries the status and client-visible message of a rejected
// upload.
type uploadError struct {
	status int
	msg    string
	err    error
}

func (e *uploadError) Error() string { return e.msg }

func (e *uploadError) Unwrap() error { return e.err }

func reject(status int, msg string) *uploadError {
	return &uploadError{status: status, msg: msg}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+multipartOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		s.failUpload(w, r, reject(http.StatusBadRequest, "expecting multipart form"))
		return
	}
	in, section, uerr := s.readUpload(mr)
	if uerr != nil {
		s.failUpload(w, r, uerr)
		return
	}
	id, err := in.Promote()
	if err != nil {
		s.failUpload(w, r, s.internal(err))
		return
	}
	rec := model.NewFileRecord(id, in.Filename, section, s.now())
	if err := s.store.Append(ctx, rec); err != nil {
		if rmErr := s.files.Remove(id); rmErr != nil {
			s.logger.Error("remove orphaned upload", "id", id, "err", rmErr)
		}
		s.failUpload(w, r, s.internal(err))
		return
	}
	metrics.Uploads.WithLabelValues("stored").Inc()
	s.logger.Info("upload stored", "id", rec.ID, "section", rec.Section, "bytes", in.Size, "rid", RequestIDFromContext(ctx))
	s.afterStore(ctx, rec, in.ContentType)
	respondJSON(w, http.StatusOK, uploadResponse{Success: true, Message: uploadedMessage, File: &rec})
}

// readUpload walks every part. It returns the received file and the section
// field, or an uploadError. Nothing is left on disk when it fails.
func (s *Server) readUpload(mr *multipart.Reader) (in *filestore.Incoming, section string, uerr *uploadError) {
	defer func() {
		if uerr != nil && in != nil {
			in.Discard()
			in = nil
		}
	}()
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return in, "", s.readFailure(err)
		}
		switch {
		case part.FormName() == "section" && part.FileName() == "":
			value, err := io.ReadAll(io.LimitReader(part, maxSectionBytes+1))
			part.Close()
			if err != nil {
				return in, "", s.readFailure(err)
			}
			if len(value) > maxSectionBytes {
				return in, "", reject(http.StatusBadRequest, "section is too long")
			}
			section = string(value)
		case part.FormName() == "file" && part.FileName() != "":
			if in != nil {
				part.Close()
				return in, "", reject(http.StatusBadRequest, "only one file may be uploaded")
			}
			received, rerr := s.receiveFile(part)
			part.Close()
			if rerr != nil {
				return nil, "", rerr
			}
			in = received
		default:
			part.Close()
		}
	}
	if in == nil {
		return nil, "", reject(http.StatusBadRequest, "no file uploaded")
	}
	return in, section, nil
}

func (s *Server) receiveFile(part *multipart.Part) (*filestore.Incoming, *uploadError) {
	mediaType, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
	if mediaType != filestore.PDFContentType {
		return nil, &uploadError{status: http.StatusBadRequest, msg: filestore.ErrNotPDF.Error(), err: filestore.ErrNotPDF}
	}
	in, err := s.files.Receive(part, part.FileName())
	if err != nil {
		return nil, s.readFailure(err)
	}
	if !in.IsPDF() {
		in.Discard()
		return nil, &uploadError{status: http.StatusBadRequest, msg: filestore.ErrNotPDF.Error(), err: filestore.ErrNotPDF}
	}
	return in, nil
}

func (s *Server) readFailure(err error) *uploadError {
	var tooBig *http.MaxBytesError
	switch {
	case errors.Is(err, filestore.ErrTooLarge), errors.As(err, &tooBig):
		return &uploadError{status: http.StatusRequestEntityTooLarge, msg: filestore.ErrTooLarge.Error(), err: err}
	case errors.Is(err, filestore.ErrEmpty):
		return &uploadError{status: http.StatusBadRequest, msg: err.Error(), err: err}
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, multipart.ErrMessageTooLarge):
		return &uploadError{status: http.StatusBadRequest, msg: "failed to read upload", err: err}
	}
	return s.internal(err)
}

// internal wraps an unexpected failure. The raw message reaches the client
// unless ExposeErrors is off.
func (s *Server) internal(err error) *uploadError {
	msg := err.Error()
	if !s.cfg.ExposeErrors {
		msg = "internal error"
	}
	return &uploadError{status: http.StatusInternalServerError, msg: msg, err: err}
}

func (s *Server) failUpload(w http.ResponseWriter, r *http.Request, uerr *uploadError) {
	rid := RequestIDFromContext(r.Context())
	if uerr.status >= http.StatusInternalServerError {
		metrics.Uploads.WithLabelValues("failed").Inc()
		s.logger.Error("upload failed", "err", uerr.err, "rid", rid)
	} else {
		metrics.Uploads.WithLabelValues("rejected").Inc()
		s.logger.Warn("upload rejected", "status", uerr.status, "reason", uerr.msg, "rid", rid)
	}
	respondJSON(w, uerr.status, failureResponse{Success: false, Error: uerr.msg})
}

// afterStore mirrors the upload and queues its thumbnail. Failures here are
// logged; the upload itself already succeeded.
func (s *Server) afterStore(ctx context.Context, rec model.FileRecord, contentType string) {
	if s.mirror != nil {
		if err := s.mirror.Put(ctx, rec.ID, s.files.Path(rec.ID), contentType); err != nil {
			s.logger.Error("mirror upload", "id", rec.ID, "err", err)
		}
	}
	if s.thumbnails != nil {
		if err := s.thumbnails.Submit(context.WithoutCancel(ctx), model.JobFor(rec)); err != nil {
			s.logger.Error("queue thumbnail", "id", rec.ID, "err", err)
		}
	}
}
