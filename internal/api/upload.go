package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	logx "tgcast/pkg/logx"
)

var uploadExt = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".mp3": true, ".m4a": true, ".ogg": true, ".oga": true, ".opus": true,
	".wav": true, ".flac": true, ".aac": true,
}

// upload stores one multipart file (field "image" or "file") under a random
// name in the upload directory and returns its public URL. The body is
// fully buffered before anything touches the disk.
func (h *handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, hdr, err := formFile(r, "image", "file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(hdr.Filename))
	if !uploadExt[ext] {
		writeError(w, http.StatusBadRequest, "Unsupported file type")
		return
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(file, h.cfg.MaxUploadBytes+1))
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if n > h.cfg.MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	}
	if n == 0 {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}

	name := uuid.NewString() + ext
	if err := os.MkdirAll(h.cfg.UploadDir, 0o755); err != nil {
		h.internalError(w, r, err)
		return
	}
	if err := os.WriteFile(filepath.Join(h.cfg.UploadDir, name), buf.Bytes(), 0o644); err != nil {
		h.internalError(w, r, err)
		return
	}
	h.log.Info("file uploaded", logx.String("file", name), logx.Int64("bytes", n))
	writeJSON(w, http.StatusOK, map[string]string{"url": h.publicBase(r) + "/uploads/" + name})
}

func formFile(r *http.Request, fields ...string) (multipart.File, *multipart.FileHeader, error) {
	for _, f := range fields {
		file, hdr, err := r.FormFile(f)
		if err == nil {
			return file, hdr, nil
		}
	}
	return nil, nil, http.ErrMissingFile
}

func (h *handler) publicBase(r *http.Request) string {
	if h.cfg.PublicURL != "" {
		return strings.TrimRight(h.cfg.PublicURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}
