package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"airemover/internal/core/domain"

	"github.com/rs/zerolog"
)

const (
	DefaultDewatermarkEndpoint = "https://platform.dewatermark.ai/api/object_removal/v1/erase_watermark"

	dewatermarkImageField = "original_preview_image"
	dewatermarkTextField  = "remove_text"
)

var errRemoteNotSupported = errors.New("dewatermark needs the image bytes, remote references are not supported")

// Dewatermark talks to the dewatermark.ai erase API, which takes the image as a multipart upload.
type Dewatermark struct {
	cfg    Config
	client *http.Client
	logger zerolog.Logger
}

func NewDewatermark(cfg Config, logger zerolog.Logger) *Dewatermark {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultDewatermarkEndpoint
	}
	if cfg.Timeouts == (Timeouts{}) {
		cfg.Timeouts = TierDewatermark
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)

	return &Dewatermark{
		cfg:    cfg,
		client: newHTTPClient(cfg.Timeouts),
		logger: logger.With().Str("component", "provider").Str("provider", cfg.Name).Logger(),
	}
}

func (d *Dewatermark) Name() string {
	return d.cfg.Name
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func (d *Dewatermark) Submit(ctx context.Context, descriptor domain.TransportDescriptor) domain.CallOutcome {
	if descriptor.Kind != domain.InlinePayload {
		return localFailure(errRemoteNotSupported)
	}

	data, contentType, err := domain.DecodeDataURI(descriptor.DataURI)
	if err != nil {
		return localFailure(fmt.Errorf("error decoding inline image: %w", err))
	}

	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		dewatermarkImageField, quoteEscaper.Replace(descriptor.Filename)))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return localFailure(fmt.Errorf("error creating multipart image field: %w", err))
	}
	if _, err := part.Write(data); err != nil {
		return localFailure(fmt.Errorf("error writing multipart image field: %w", err))
	}
	if err := w.WriteField(dewatermarkTextField, "true"); err != nil {
		return localFailure(fmt.Errorf("error writing multipart text field: %w", err))
	}
	if err := w.Close(); err != nil {
		return localFailure(fmt.Errorf("error closing multipart body: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.Endpoint, body)
	if err != nil {
		return localFailure(fmt.Errorf("error creating dewatermark request: %w", err))
	}

	req.Header.Set("X-API-KEY", d.cfg.APIKey)
	req.Header.Set("Content-Type", w.FormDataContentType())

	d.logger.Debug().Str("endpoint", d.cfg.Endpoint).Int("bytes", len(data)).Msg("submitting dewatermark")

	return execute(d.client, req, d.logger)
}

func (d *Dewatermark) Parse(body []byte) (domain.NormalizedResult, error) {
	result, _, err := dewatermarkSchema.parse(body, d.cfg.Name)
	if err != nil {
		d.logger.Debug().Bytes("body", truncate(body, 500)).Msg("unusable dewatermark response")
		return domain.NormalizedResult{}, err
	}

	d.logger.Debug().Str("sessionId", result.SessionID).Bool("mask", result.Mask != "").
		Msg("parsed dewatermark response")

	return result, nil
}
