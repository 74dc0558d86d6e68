package service

import (
	"context"
	"errors"
	"time"

	"airemover/internal/core/domain"
	"airemover/internal/core/port"

	"github.com/rs/zerolog"
)

const DefaultUploadTimeout = 15 * time.Second

var errEmptyHostURL = errors.New("image host returned an empty url")

// TransportStrategy decides how the image reaches a provider: a public URL when the image host accepts the upload,
// an inline data URI otherwise.
type TransportStrategy struct {
	host     port.ImageHost
	timeout  time.Duration
	provider string
	recorder port.Recorder
	logger   zerolog.Logger
}

// NewTransportStrategy returns a strategy for provider. With a nil host every request is sent inline.
func NewTransportStrategy(host port.ImageHost, timeout time.Duration, provider string, recorder port.Recorder,
	logger zerolog.Logger) *TransportStrategy {
	if timeout <= 0 {
		timeout = DefaultUploadTimeout
	}
	if recorder == nil {
		recorder = port.NopRecorder{}
	}

	return &TransportStrategy{
		host:     host,
		timeout:  timeout,
		provider: provider,
		recorder: recorder,
		logger:   logger.With().Str("component", "transport").Str("provider", provider).Logger(),
	}
}

// Select uploads the payload at most once and falls back to inline encoding on any upload failure.
func (s *TransportStrategy) Select(ctx context.Context, payload domain.ImagePayload) domain.TransportDescriptor {
	descriptor := s.selectDescriptor(ctx, payload)
	s.recorder.ObserveTransport(s.provider, descriptor.Kind)

	return descriptor
}

func (s *TransportStrategy) selectDescriptor(ctx context.Context, payload domain.ImagePayload) domain.TransportDescriptor {
	if s.host != nil {
		url, err := s.upload(ctx, payload)
		if err == nil {
			s.logger.Debug().Str("url", url).Msg("image uploaded to host")
			return domain.TransportDescriptor{
				Kind:        domain.RemoteReference,
				URL:         url,
				Filename:    payload.Filename,
				ContentType: payload.ContentType,
			}
		}

		s.logger.Warn().Err(err).Msg("image host upload failed, sending inline")
	}

	return Inline(payload)
}

func (s *TransportStrategy) upload(ctx context.Context, payload domain.ImagePayload) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	url, err := s.host.Upload(ctx, payload)
	if err != nil {
		return "", err
	}
	if url == "" {
		return "", errEmptyHostURL
	}

	return url, nil
}

// Inline builds the data URI descriptor. It depends only on the payload bytes and content type.
func Inline(payload domain.ImagePayload) domain.TransportDescriptor {
	return domain.TransportDescriptor{
		Kind:        domain.InlinePayload,
		DataURI:     domain.EncodeDataURI(payload.Data, payload.ContentType),
		Filename:    payload.Filename,
		ContentType: payload.ContentType,
	}
}
