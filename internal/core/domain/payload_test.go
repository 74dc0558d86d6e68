package domain

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func encodePNG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.White)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2)), nil))
	return buf.Bytes()
}

func TestNewImagePayload(t *testing.T) {
	pngData := encodePNG(t)
	jpegData := encodeJPEG(t)

	tests := []struct {
		name            string
		upload          *Upload
		maxBytes        int64
		wantContentType string
		wantMessage     string
	}{
		{
			name:        "no upload",
			maxBytes:    MaxBackgroundRemovalBytes,
			wantMessage: MsgNoFile,
		},
		{
			name:        "empty filename",
			upload:      &Upload{Data: pngData},
			maxBytes:    MaxBackgroundRemovalBytes,
			wantMessage: MsgNoFilename,
		},
		{
			name:        "empty data",
			upload:      &Upload{Filename: "a.png"},
			maxBytes:    MaxBackgroundRemovalBytes,
			wantMessage: MsgNoFile,
		},
		{
			name:        "too large for background removal",
			upload:      &Upload{Filename: "a.png", Data: make([]byte, MaxBackgroundRemovalBytes+1)},
			maxBytes:    MaxBackgroundRemovalBytes,
			wantMessage: "File too large. Max size is 16MB",
		},
		{
			name:        "too large for watermark removal",
			upload:      &Upload{Filename: "a.png", Data: make([]byte, MaxWatermarkRemovalBytes+1)},
			maxBytes:    MaxWatermarkRemovalBytes,
			wantMessage: "File too large. Max size is 10MB",
		},
		{
			name:            "exactly at limit",
			upload:          &Upload{Filename: "a.bin", Data: make([]byte, 1024), ContentType: "image/png"},
			maxBytes:        1024,
			wantContentType: "image/png",
		},
		{
			name:            "declared type kept",
			upload:          &Upload{Filename: "a.jpg", Data: pngData, ContentType: "image/jpeg"},
			maxBytes:        MaxBackgroundRemovalBytes,
			wantContentType: "image/jpeg",
		},
		{
			name:            "missing type sniffed",
			upload:          &Upload{Filename: "a", Data: jpegData},
			maxBytes:        MaxBackgroundRemovalBytes,
			wantContentType: "image/jpeg",
		},
		{
			name:            "octet stream sniffed",
			upload:          &Upload{Filename: "a", Data: pngData, ContentType: "application/octet-stream"},
			maxBytes:        MaxBackgroundRemovalBytes,
			wantContentType: "image/png",
		},
		{
			name:            "unknown bytes use default",
			upload:          &Upload{Filename: "a", Data: []byte("not an image")},
			maxBytes:        MaxBackgroundRemovalBytes,
			wantContentType: "image/webp",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NewImagePayload(tc.upload, tc.maxBytes, "image/webp")
			if tc.wantMessage != "" {
				require.Error(t, err)
				assert.Equal(t, KindValidation, KindOf(err))
				assert.Equal(t, 400, StatusOf(err))
				assert.Equal(t, tc.wantMessage, MessageOf(err))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.wantContentType, got.ContentType)
			assert.Equal(t, tc.upload.Filename, got.Filename)
			assert.Equal(t, len(tc.upload.Data), got.Size())
		})
	}
}

func TestSniffContentType(t *testing.T) {
	assert.Equal(t, "image/png", SniffContentType(encodePNG(t)))
	assert.Equal(t, "image/jpeg", SniffContentType(encodeJPEG(t)))
	assert.Equal(t, "image/gif", SniffContentType([]byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")))
	assert.Empty(t, SniffContentType([]byte("plain text")))
}

func TestEncodeDataURI(t *testing.T) {
	assert.Equal(t, "data:image/png;base64,aGVsbG8=", EncodeDataURI([]byte("hello"), "image/png"))
	assert.Equal(t, "data:image/jpeg;base64,", EncodeDataURI(nil, "image/jpeg"))
}

func TestDecodeDataURI_Invalid(t *testing.T) {
	tests := []string{
		"",
		"https://example.com/a.png",
		"data:image/png,rawpayload",
		"data:image/png;base64,@@@",
	}

	for _, uri := range tests {
		t.Run(uri, func(t *testing.T) {
			_, _, err := DecodeDataURI(uri)
			assert.ErrorIs(t, err, ErrInvalidDataURI)
		})
	}
}

func TestDataURI_RoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		data := rapid.SliceOf(rapid.Byte()).Draw(rt, "data")
		contentType := rapid.StringMatching(`image/[a-z0-9.+-]{1,12}`).Draw(rt, "contentType")

		uri := EncodeDataURI(data, contentType)

		gotData, gotType, err := DecodeDataURI(uri)
		if err != nil {
			rt.Fatalf("decode %q: %v", uri, err)
		}
		if !bytes.Equal(gotData, data) {
			rt.Fatalf("payload changed: %x != %x", gotData, data)
		}
		if gotType != contentType {
			rt.Fatalf("content type changed: %q != %q", gotType, contentType)
		}
	})
}

func TestNewImagePayload_PreservesBytes(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		data := rapid.SliceOfN(rapid.Byte(), 1, 512).Draw(rt, "data")
		limit := rapid.Int64Range(1, 1024).Draw(rt, "limit")

		got, err := NewImagePayload(&Upload{Filename: "f", Data: data, ContentType: "image/png"}, limit, "image/png")
		if int64(len(data)) > limit {
			if err == nil || MessageOf(err) != NewTooLargeError(limit).Message {
				rt.Fatalf("want size error for %d > %d, got %v", len(data), limit, err)
			}
			return
		}

		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}
		if !bytes.Equal(got.Data, data) {
			rt.Fatalf("payload bytes changed")
		}
	})
}
