package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/SectionDrop/internal/config"
	"github.com/dharsanguruparan/SectionDrop/internal/filestore"
	"github.com/dharsanguruparan/SectionDrop/internal/model"
	"github.com/dharsanguruparan/SectionDrop/internal/paths"
	"github.com/dharsanguruparan/SectionDrop/internal/store"
)

var samplePDF = []byte("%PDF-1.4\n1 0 obj << /Type /Catalog >> endobj\ntrailer << /Root 1 0 R >>\n%%EOF\n")

type recordingSubmitter struct {
	mu   sync.Mutex
	jobs []model.ThumbnailJob
}

func (r *recordingSubmitter) Submit(_ context.Context, job model.ThumbnailJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return nil
}

type recordingMirror struct {
	mu  sync.Mutex
	ids []string
}

func (m *recordingMirror) Put(_ context.Context, id, path, _ string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = append(m.ids, id)
	return nil
}

type testEnv struct {
	cfg       *config.Config
	storePath string
	handler   http.Handler
	thumbs    *recordingSubmitter
	mirror    *recordingMirror
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		UploadsDir:   filepath.Join(root, "uploads"),
		PublicDir:    filepath.Join(root, "public"),
		StoreFile:    filepath.Join(root, "files.json"),
		MaxFileSize:  64 << 10,
		ExposeErrors: true,
	}
	require.NoError(t, paths.Ensure(cfg.UploadsDir, cfg.ThumbnailsDir()))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.PublicDir, "index.html"), []byte("<h1>SectionDrop</h1>"), 0o644))

	env := &testEnv{cfg: cfg, storePath: cfg.StoreFile, thumbs: &recordingSubmitter{}, mirror: &recordingMirror{}}
	srv := New(cfg, Deps{
		Store:      store.NewJSONFile(cfg.StoreFile),
		Files:      filestore.New(cfg.UploadsDir, cfg.MaxFileSize),
		Thumbnails: env.thumbs,
		Mirror:     env.mirror,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	env.handler = srv.Handler()
	return env
}

type filePart struct {
	name        string
	contentType string
	data        []byte
}

// form builds a multipart body. Fields are written in the order given;
// a nil section leaves the field out.
func form(t *testing.T, section *string, sectionFirst bool, files ...filePart) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	writeSection := func() {
		if section != nil {
			require.NoError(t, mw.WriteField("section", *section))
		}
	}
	if sectionFirst {
		writeSection()
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, f.name))
		h.Set("Content-Type", f.contentType)
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write(f.data)
		require.NoError(t, err)
	}
	if !sectionFirst {
		writeSection()
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func strp(s string) *string { return &s }

func pdfPart(name string) filePart {
	return filePart{name: name, contentType: "application/pdf", data: samplePDF}
}

func (e *testEnv) do(t *testing.T, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) upload(t *testing.T, section string, part filePart) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := form(t, strp(section), true, part)
	return e.do(t, http.MethodPost, "/upload", body, ct)
}

func (e *testEnv) query(t *testing.T, target string) []model.FileRecord {
	t.Helper()
	rr := e.do(t, http.MethodGet, target, nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Files []model.FileRecord `json:"files"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotNil(t, resp.Files, "files must be an array: %s", rr.Body.String())
	return resp.Files
}

func (e *testEnv) uploadsDir(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(e.cfg.UploadsDir)
	require.NoError(t, err)
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func decodeUpload(t *testing.T, rr *httptest.ResponseRecorder) uploadResponse {
	t.Helper()
	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	return resp
}

func decodeFailure(t *testing.T, rr *httptest.ResponseRecorder) failureResponse {
	t.Helper()
	var resp failureResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	return resp
}

func TestUploadThenQuery(t *testing.T) {
	env := newTestEnv(t)

	rr := env.upload(t, "Calculus", pdfPart("Problem Set 1.pdf"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decodeUpload(t, rr)
	assert.True(t, resp.Success)
	assert.Equal(t, uploadedMessage, resp.Message)
	require.NotNil(t, resp.File)
	rec := *resp.File
	assert.Regexp(t, `^\d{13}-\d+\.pdf$`, rec.ID)
	assert.Equal(t, "Problem Set 1.pdf", rec.Name)
	assert.Equal(t, "Calculus", rec.Section)
	assert.Equal(t, "/uploads/"+rec.ID, rec.Path)
	assert.Equal(t, "/thumbnails/"+rec.ID+".jpg", rec.Thumbnail)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`, rec.Date)

	assert.Equal(t, []string{rec.ID}, env.uploadsDir(t))
	assert.Equal(t, []model.FileRecord{rec}, env.query(t, "/files/Calculus"))
	assert.Empty(t, env.query(t, "/files/calculus"))
	assert.Equal(t, []model.ThumbnailJob{model.JobFor(rec)}, env.thumbs.jobs)
	assert.Equal(t, []string{rec.ID}, env.mirror.ids)

	dl := env.do(t, http.MethodGet, rec.Path, nil, "")
	require.Equal(t, http.StatusOK, dl.Code)
	assert.Equal(t, samplePDF, dl.Body.Bytes())
	assert.Equal(t, "application/pdf", dl.Header().Get("Content-Type"))
}

func TestUploadSectionAfterFile(t *testing.T) {
	env := newTestEnv(t)
	body, ct := form(t, strp("Física I"), false, pdfPart("apuntes.pdf"))
	rr := env.do(t, http.MethodPost, "/upload", body, ct)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	got := env.query(t, "/files/F%C3%ADsica%20I")
	require.Len(t, got, 1)
	assert.Equal(t, "apuntes.pdf", got[0].Name)
}

func TestUploadWithoutSection(t *testing.T) {
	env := newTestEnv(t)
	body, ct := form(t, nil, true, pdfPart("a.pdf"))
	rr := env.do(t, http.MethodPost, "/upload", body, ct)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "", decodeUpload(t, rr).File.Section)
}

func TestUploadRejections(t *testing.T) {
	cases := []struct {
		name   string
		files  []filePart
		status int
		errMsg string
	}{
		{"declared text", []filePart{{name: "notes.txt", contentType: "text/plain", data: []byte("hello")}}, http.StatusBadRequest, "only PDF files are allowed"},
		{"declared pdf but text", []filePart{{name: "fake.pdf", contentType: "application/pdf", data: []byte("plain words")}}, http.StatusBadRequest, "only PDF files are allowed"},
		{"no file", nil, http.StatusBadRequest, "no file uploaded"},
		{"two files", []filePart{pdfPart("a.pdf"), pdfPart("b.pdf")}, http.StatusBadRequest, "only one file may be uploaded"},
		{"empty", []filePart{{name: "e.pdf", contentType: "application/pdf"}}, http.StatusBadRequest, "empty file"},
		{"too large", []filePart{{name: "big.pdf", contentType: "application/pdf", data: append(append([]byte{}, samplePDF...), make([]byte, 65<<10)...)}}, http.StatusRequestEntityTooLarge, "file exceeds size limit"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			body, ct := form(t, strp("s"), true, tc.files...)
			rr := env.do(t, http.MethodPost, "/upload", body, ct)
			assert.Equal(t, tc.status, rr.Code, rr.Body.String())
			resp := decodeFailure(t, rr)
			assert.False(t, resp.Success)
			assert.Equal(t, tc.errMsg, resp.Error)

			assert.Empty(t, env.uploadsDir(t), "rejected uploads must not be retained")
			_, err := os.Stat(env.storePath)
			assert.True(t, os.IsNotExist(err), "no record may be written")
			assert.Empty(t, env.thumbs.jobs)
		})
	}
}

func TestUploadNotMultipart(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/upload", bytes.NewReader([]byte(`{"file":"x"}`)), "application/json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.False(t, decodeFailure(t, rr).Success)
}

func TestQueryBeforeAnyUpload(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/files/anything", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"files": []}`, rr.Body.String())
}

func TestCorruptStore(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(env.storePath, []byte("[{broken"), 0o644))

	assert.Empty(t, env.query(t, "/files/s"), "query swallows store errors")

	rr := env.upload(t, "s", pdfPart("a.pdf"))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	resp := decodeFailure(t, rr)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, store.ErrCorrupt.Error())
	assert.Empty(t, env.uploadsDir(t), "file must be rolled back when the record cannot be written")
}

func TestCorruptStoreHidesMessage(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.ExposeErrors = false
	require.NoError(t, os.WriteFile(env.storePath, []byte("nope"), 0o644))

	rr := env.upload(t, "s", pdfPart("a.pdf"))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "internal error", decodeFailure(t, rr).Error)
}

func TestSequentialUploadsHaveUniqueIDs(t *testing.T) {
	env := newTestEnv(t)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		rr := env.upload(t, "bulk", pdfPart(fmt.Sprintf("doc-%d.pdf", i)))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		id := decodeUpload(t, rr).File.ID
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, env.query(t, "/files/bulk"), 100)
	assert.Len(t, env.uploadsDir(t), 100)
}

func TestConcurrentUploadsKeepEveryRecord(t *testing.T) {
	env := newTestEnv(t)
	const n = 20
	reqs := make([]*http.Request, n)
	for i := range reqs {
		body, ct := form(t, strp("race"), true, pdfPart(fmt.Sprintf("r%d.pdf", i)))
		reqs[i] = httptest.NewRequest(http.MethodPost, "/upload", body)
		reqs[i].Header.Set("Content-Type", ct)
	}
	var wg sync.WaitGroup
	for _, req := range reqs {
		wg.Add(1)
		go func(req *http.Request) {
			defer wg.Done()
			rr := httptest.NewRecorder()
			env.handler.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		}(req)
	}
	wg.Wait()

	got := env.query(t, "/files/race")
	assert.Len(t, got, n)
	names := make(map[string]bool)
	for _, rec := range got {
		names[rec.Name] = true
	}
	assert.Len(t, names, n)
}

func TestStaticServing(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.cfg.UploadsDir, paths.IncomingPrefix+"x"), samplePDF, 0o644))

	index := env.do(t, http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, index.Code)
	assert.Contains(t, index.Body.String(), "SectionDrop")

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/uploads/", nil, "").Code, "no directory listing")
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/uploads/"+paths.IncomingPrefix+"x", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/uploads/missing.pdf", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/thumbnails/", nil, "").Code)
}

func TestHealthAndMiddleware(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://example.org")
	req.Header.Set("X-Request-Id", "abc123")
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, "abc123", rr.Header().Get("X-Request-Id"))
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))

	generated := env.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Len(t, generated.Header().Get("X-Request-Id"), 36)
}
