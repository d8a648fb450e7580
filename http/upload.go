package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/sagarc03/storefront"
)

const (
	uploadField = "file"
	// multipartOverhead covers boundaries and part headers around the file.
	multipartOverhead = 64 << 10
)

// Uploader validates and stages uploaded files.
type Uploader interface {
	// Accept checks f and writes it under the temporary subtree.
	//
	// Returns:
	//   - error: a *storefront.UploadRejection when a rule is violated
	Accept(ctx context.Context, f storefront.FileUpload) (storefront.StagedFile, error)

	// MaxBytes is the largest file Accept will take.
	MaxBytes() int64
}

type uploadResponse struct {
	FileName string `json:"fileName"`
}

// handleUpload accepts a single multipart file in the "file" field and
// answers with the staged location the client later sends as image.fileName.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := h.uploads.MaxBytes() + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) {
			h.rejectUpload(w, &storefront.UploadRejection{
				Reason:  storefront.ReasonTooLarge,
				Message: "request body is too large",
			})
			return
		}
		HandleError(w, fmt.Errorf("parse upload: %w: %w", storefront.ErrInvalidInput, err))
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			slog.Warn("failed to remove multipart temp files", "error", err)
		}
	}()

	files := 0
	for _, headers := range r.MultipartForm.File {
		files += len(headers)
	}
	if files > 1 {
		HandleError(w, ErrMultipleFiles)
		return
	}
	headers := r.MultipartForm.File[uploadField]
	if len(headers) == 0 {
		HandleError(w, ErrMissingFile)
		return
	}
	header := headers[0]

	file, err := header.Open()
	if err != nil {
		HandleError(w, fmt.Errorf("open upload: %w", err))
		return
	}
	defer func() { _ = file.Close() }()

	staged, err := h.uploads.Accept(r.Context(), storefront.FileUpload{
		MimeType:     header.Header.Get("Content-Type"),
		DeclaredName: header.Filename,
		SizeBytes:    header.Size,
		Content:      file,
	})
	if err != nil {
		var rejection *storefront.UploadRejection
		if errors.As(err, &rejection) {
			h.rejectUpload(w, rejection)
			return
		}
		HandleError(w, err)
		return
	}

	h.metrics.uploadAccepted()
	slog.Info("upload staged",
		"file", staged.TemporaryName,
		"type", staged.MimeType,
		"size", staged.SizeBytes,
	)
	_ = WriteJSON(w, http.StatusCreated, uploadResponse{FileName: staged.Location})
}

func (h *Handler) rejectUpload(w http.ResponseWriter, rejection *storefront.UploadRejection) {
	h.metrics.uploadRejected(rejection.Reason)
	HandleError(w, rejection)
}
