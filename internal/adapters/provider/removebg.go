package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"airemover/internal/core/domain"

	"github.com/rs/zerolog"
)

const DefaultRemoveBackgroundEndpoint = "https://api.302.ai/302/submit/removebg-v2"

// RemoveBackground talks to the 302.ai background removal API. Both response generations are understood.
type RemoveBackground struct {
	cfg    Config
	client *http.Client
	logger zerolog.Logger
}

func NewRemoveBackground(cfg Config, logger zerolog.Logger) *RemoveBackground {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultRemoveBackgroundEndpoint
	}
	if cfg.Timeouts == (Timeouts{}) {
		cfg.Timeouts = TierRemoveBackgroundV2
	}

	return &RemoveBackground{
		cfg:    cfg,
		client: newHTTPClient(cfg.Timeouts),
		logger: logger.With().Str("component", "provider").Str("provider", cfg.Name).Logger(),
	}
}

func (r *RemoveBackground) Name() string {
	return r.cfg.Name
}

type removeBackgroundRequest struct {
	ImageURL string `json:"image_url"`
}

func (r *RemoveBackground) Submit(ctx context.Context, descriptor domain.TransportDescriptor) domain.CallOutcome {
	payloadBuf := new(bytes.Buffer)
	enc := json.NewEncoder(payloadBuf)
	enc.SetEscapeHTML(false)

	err := enc.Encode(removeBackgroundRequest{ImageURL: descriptor.ImageReference()})
	if err != nil {
		return localFailure(fmt.Errorf("error encoding background removal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.Endpoint, payloadBuf)
	if err != nil {
		return localFailure(fmt.Errorf("error creating background removal request: %w", err))
	}

	req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	r.logger.Debug().
		Str("endpoint", r.cfg.Endpoint).
		Str("transport", string(descriptor.Kind)).
		Int("referenceLength", len(descriptor.ImageReference())).
		Msg("submitting background removal")

	return execute(r.client, req, r.logger)
}

func (r *RemoveBackground) Parse(body []byte) (domain.NormalizedResult, error) {
	result, variant, err := removeBackgroundSchema.parse(body, r.cfg.Name)
	if err != nil {
		r.logger.Debug().Bytes("body", truncate(body, 500)).Msg("unusable background removal response")
		return domain.NormalizedResult{}, err
	}

	r.logger.Debug().Str("variant", variant).Str("url", result.URL).Int64("fileSize", result.FileSize).
		Msg("parsed background removal response")

	return result, nil
}

func truncate(body []byte, n int) []byte {
	if len(body) > n {
		return body[:n]
	}

	return body
}
