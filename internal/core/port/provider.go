package port

import (
	"context"

	"airemover/internal/core/domain"
)

type Provider interface {
	// Name returns the provider label reported to callers, e.g. "302.ai-removebg-v2".
	Name() string
	// Submit sends one request carrying the image reference in descriptor and classifies the outcome. It never
	// retries on its own.
	Submit(ctx context.Context, descriptor domain.TransportDescriptor) domain.CallOutcome
	// Parse turns a successful response body into a normalized result or a *domain.Error.
	Parse(body []byte) (domain.NormalizedResult, error)
}

type ImageHost interface {
	// Upload publishes the payload on a public image host and returns a URL the provider can fetch.
	Upload(ctx context.Context, payload domain.ImagePayload) (string, error)
}

type ImageProcessor interface {
	// Process validates an upload and runs it through the provider pipeline.
	Process(ctx context.Context, upload *domain.Upload) (domain.Result, error)
	// MaxBytes returns the payload ceiling, so readers can stop early.
	MaxBytes() int64
}
