package domain

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// NewImagePayload validates an upload against maxBytes and freezes it into a payload. An empty content type is
// sniffed from the bytes and falls back to defaultContentType.
func NewImagePayload(upload *Upload, maxBytes int64, defaultContentType string) (ImagePayload, error) {
	if upload == nil {
		return ImagePayload{}, NewValidationError(MsgNoFile)
	}

	if upload.Filename == "" {
		return ImagePayload{}, NewValidationError(MsgNoFilename)
	}

	if len(upload.Data) == 0 {
		return ImagePayload{}, NewValidationError(MsgNoFile)
	}

	if int64(len(upload.Data)) > maxBytes {
		return ImagePayload{}, NewTooLargeError(maxBytes)
	}

	contentType := strings.TrimSpace(upload.ContentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = SniffContentType(upload.Data)
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	return ImagePayload{
		Data:        upload.Data,
		ContentType: contentType,
		Filename:    upload.Filename,
	}, nil
}

// NewTooLargeError reports an upload above maxBytes.
func NewTooLargeError(maxBytes int64) *Error {
	return NewValidationError(fmt.Sprintf("File too large. Max size is %dMB", maxBytes/MiB))
}

// SniffContentType decodes the image header and returns its media type, or "" if no registered decoder accepts it.
func SniffContentType(data []byte) string {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ""
	}

	return "image/" + format
}

const dataURIBase64Marker = ";base64,"

// EncodeDataURI builds data:<contentType>;base64,<payload>.
func EncodeDataURI(data []byte, contentType string) string {
	var b strings.Builder
	b.Grow(len("data:") + len(contentType) + len(dataURIBase64Marker) + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString("data:")
	b.WriteString(contentType)
	b.WriteString(dataURIBase64Marker)
	b.WriteString(base64.StdEncoding.EncodeToString(data))

	return b.String()
}

var ErrInvalidDataURI = errors.New("invalid data URI")

// DecodeDataURI is the inverse of EncodeDataURI.
func DecodeDataURI(uri string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", fmt.Errorf("%w: missing data: scheme", ErrInvalidDataURI)
	}

	contentType, payload, ok := strings.Cut(rest, dataURIBase64Marker)
	if !ok {
		return nil, "", fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURI)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidDataURI, err)
	}

	return data, contentType, nil
}
