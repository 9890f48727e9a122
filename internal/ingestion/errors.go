package ingestion

import "errors"

var (
	// ErrUnsupportedFormat is returned for file extensions outside the
	// supported set.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrCorruptContent is returned when a file's bytes cannot be parsed
	// as its declared format.
	ErrCorruptContent = errors.New("corrupt document content")

	// ErrEmptyContent is returned when extraction succeeds but yields no
	// usable text.
	ErrEmptyContent = errors.New("document contains no extractable text")
)
