package api

import (
	"fmt"
	"mime/multipart"
	"net/http"
)

// maxMultipartMemory bounds the in-memory portion of multipart parsing; the
// rest spills to temp files.
const maxMultipartMemory = 32 << 20

func formFile(r *http.Request, field string) (multipart.File, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return nil, nil, fmt.Errorf("parse multipart form: %w", err)
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, nil, fmt.Errorf("form file %q is required", field)
	}
	return file, header, nil
}

func optionalFormFile(r *http.Request, field string) (multipart.File, *multipart.FileHeader, bool) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, nil, false
	}
	return file, header, true
}
