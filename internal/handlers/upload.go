package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/hostel-tracker/apiserver/internal/services"
)

const (
	maxMultipartMemory = 32 << 20
	maxUploadBytes     = 10 << 20
	formFieldMedia     = "media"
	formFieldImages    = "images"
)

func parseMultipart(r *http.Request) error {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return errors.New("invalid multipart form")
	}
	return nil
}

// parseUploads reads at most limit files from the multipart field.
func parseUploads(form *multipart.Form, field string, limit int) ([]services.Upload, error) {
	if form == nil {
		return nil, nil
	}

	files := form.File[field]
	if len(files) > limit {
		return nil, fmt.Errorf("at most %d %s files are allowed", limit, field)
	}

	uploads := make([]services.Upload, 0, len(files))
	for _, fileHeader := range files {
		file, err := fileHeader.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s file: %w", field, err)
		}

		data, err := readFileLimited(file, maxUploadBytes)
		_ = file.Close()
		if err != nil {
			return nil, err
		}

		uploads = append(uploads, services.Upload{
			Filename:    fileHeader.Filename,
			ContentType: fileHeader.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return uploads, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}
