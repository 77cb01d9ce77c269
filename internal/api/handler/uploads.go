package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/kiranshivaraju/chapternotes/internal/api/response"
	"github.com/kiranshivaraju/chapternotes/internal/session"
)

const (
	maxFilesPerUpload = 20
	multipartMemory   = 32 << 20
)

// NewUploadHandler returns an http.HandlerFunc for POST /api/v1/uploads.
// Files come in the multipart field "files"; maxFileBytes caps each one.
func NewUploadHandler(sessions Sessions, maxFileBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFor(w, r, sessions)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxFileBytes*maxFilesPerUpload+1<<20)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "Upload exceeds the size limit", nil)
				return
			}
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Expected a multipart form with files", nil)
			return
		}
		defer r.MultipartForm.RemoveAll()

		headers := r.MultipartForm.File["files"]
		if len(headers) == 0 {
			response.Error(w, http.StatusBadRequest, "NO_FILES", "No files uploaded", nil)
			return
		}
		if len(headers) > maxFilesPerUpload {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				fmt.Sprintf("At most %d files per upload", maxFilesPerUpload), nil)
			return
		}

		files := make([]session.File, 0, len(headers))
		for _, fh := range headers {
			if fh.Size > maxFileBytes {
				response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
					fmt.Sprintf("%s exceeds the upload limit", fh.Filename), nil)
				return
			}
			f, err := fh.Open()
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Could not read uploaded file", nil)
				return
			}
			content, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Could not read uploaded file", nil)
				return
			}
			files = append(files, session.File{Name: fh.Filename, Content: content})
		}

		staged, err := sess.Upload(files)
		if err != nil {
			switch {
			case errors.Is(err, session.ErrFileTooLarge):
				response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", err.Error(), nil)
			case errors.Is(err, session.ErrNotPDF):
				response.Error(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_FILE_TYPE", err.Error(), nil)
			case errors.Is(err, session.ErrEmptyFile):
				response.Error(w, http.StatusBadRequest, "EMPTY_FILE", err.Error(), nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			}
			return
		}
		response.JSON(w, map[string]any{"staged": staged})
	}
}

// NewListUploadsHandler returns an http.HandlerFunc for GET /api/v1/uploads.
func NewListUploadsHandler(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFor(w, r, sessions)
		if !ok {
			return
		}
		response.JSON(w, map[string]any{"staged": sess.Staged()})
	}
}
