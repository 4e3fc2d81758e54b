package util

import "errors"

var (
	ErrNotFound      = errors.New("document not found")
	ErrExtraction    = errors.New("text extraction failed")
	ErrDownload      = errors.New("download failed")
	ErrIndexing      = errors.New("indexing failed")
	ErrProvider      = errors.New("provider request failed")
	ErrValidation    = errors.New("invalid request")
	ErrAuthorization = errors.New("not authorized")
)
