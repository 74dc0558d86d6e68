package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"airemover/internal/core/domain"
	"airemover/internal/core/port"

	"github.com/rs/zerolog"
)

// EndpointConfig is the per-endpoint part of the orchestration that never changes between requests.
type EndpointConfig struct {
	MaxBytes           int64
	DefaultContentType string
	CredentialName     string
	Credential         string
	Mode               domain.MaterializeMode
	Cost               string
}

// RequestOrchestrator validates an upload and runs transport selection, the retried provider call, parsing and
// materialization in sequence.
type RequestOrchestrator struct {
	provider     port.Provider
	transport    *TransportStrategy
	retry        *RetryPolicy
	materializer *ResultMaterializer
	recorder     port.Recorder
	cfg          EndpointConfig
	logger       zerolog.Logger
}

func NewRequestOrchestrator(provider port.Provider,
	transport *TransportStrategy,
	retry *RetryPolicy,
	materializer *ResultMaterializer,
	recorder port.Recorder,
	cfg EndpointConfig,
	logger zerolog.Logger) *RequestOrchestrator {
	if recorder == nil {
		recorder = port.NopRecorder{}
	}

	return &RequestOrchestrator{
		provider:     provider,
		transport:    transport,
		retry:        retry,
		materializer: materializer,
		recorder:     recorder,
		cfg:          cfg,
		logger:       logger.With().Str("provider", provider.Name()).Logger(),
	}
}

func (o *RequestOrchestrator) MaxBytes() int64 {
	return o.cfg.MaxBytes
}

func (o *RequestOrchestrator) Process(ctx context.Context, upload *domain.Upload) (domain.Result, error) {
	start := time.Now()

	result, err := o.process(ctx, upload)

	status := http.StatusOK
	if err != nil {
		status = domain.StatusOf(err)
	}
	o.recorder.ObserveRequest(o.provider.Name(), status, time.Since(start))

	return result, err
}

func (o *RequestOrchestrator) process(ctx context.Context, upload *domain.Upload) (domain.Result, error) {
	payload, err := domain.NewImagePayload(upload, o.cfg.MaxBytes, o.cfg.DefaultContentType)
	if err != nil {
		o.logger.Warn().Err(err).Msg("rejected upload")
		return domain.Result{}, err
	}

	if o.cfg.Credential == "" {
		o.logger.Error().Str("credential", o.cfg.CredentialName).Msg("provider credential missing")
		return domain.Result{}, domain.NewConfigurationError(o.cfg.CredentialName)
	}

	l := o.logger.With().
		Str("filename", payload.Filename).
		Str("contentType", payload.ContentType).
		Int("bytes", payload.Size()).
		Logger()

	l.Info().Msg("handling request")

	descriptor := o.transport.Select(ctx, payload)

	res := o.retry.Execute(ctx, func(ctx context.Context) domain.CallOutcome {
		outcome := o.provider.Submit(ctx, descriptor)
		o.recorder.ObserveAttempt(o.provider.Name(), outcome.Class)
		return outcome
	})

	if !res.Outcome.Succeeded() || res.Err != nil {
		err := o.failure(res)
		l.Error().Err(err).Int("attempts", res.Attempts).Int("status", res.Outcome.StatusCode).
			Msg("provider call failed")
		return domain.Result{}, err
	}

	normalized, err := o.provider.Parse(res.Outcome.Body)
	if err != nil {
		l.Error().Err(err).Msg("could not parse provider response")
		return domain.Result{}, err
	}

	artifact, err := o.materializer.Materialize(ctx, normalized, o.cfg.Mode)
	if err != nil {
		l.Error().Err(err).Msg("could not materialize provider result")
		return domain.Result{}, err
	}

	cost := normalized.Cost
	if cost == "" {
		cost = o.cfg.Cost
	}

	provider := normalized.Provider
	if provider == "" {
		provider = o.provider.Name()
	}

	l.Info().
		Int("attempts", res.Attempts).
		Str("transport", string(descriptor.Kind)).
		Str("artifact", string(artifact.Kind)).
		Msg("request processed")

	return domain.Result{
		Artifact:      artifact,
		SourceURL:     normalized.URL,
		Provider:      provider,
		Cost:          cost,
		SessionID:     normalized.SessionID,
		Mask:          normalized.Mask,
		WatermarkMask: normalized.WatermarkMask,
		Attempts:      res.Attempts,
	}, nil
}

// failure maps the terminal state of the retry loop onto the error taxonomy.
func (o *RequestOrchestrator) failure(res RetryResult) error {
	name := o.provider.Name()
	outcome := res.Outcome

	if res.Err != nil {
		if errors.Is(res.Err, context.DeadlineExceeded) {
			return domain.NewTimeoutError(name).WithCause(res.Err)
		}
		return domain.NewUnavailableError(name).WithCause(res.Err)
	}

	switch outcome.Class {
	case domain.FailureConnection:
		return domain.NewUnavailableError(name).WithCause(outcome.Err)
	case domain.FailureReadTimeout:
		return domain.NewTimeoutError(name).WithCause(outcome.Err)
	case domain.FailureRateLimited, domain.FailureServer:
		return domain.NewRetryExhaustedError(name, outcome.Class, res.Attempts).WithCause(outcome.Err)
	case domain.FailureAuth:
		return domain.NewRejectedError(
			fmt.Sprintf("%s rejected the API key (HTTP %d)", name, outcome.StatusCode), outcome.Class).
			WithCause(outcome.Err)
	default:
		if message, ok := domain.ErrorField(outcome.Body); ok {
			return domain.NewRejectedError(message, outcome.Class).WithCause(outcome.Err)
		}
		return domain.NewRejectedError(
			fmt.Sprintf("%s request failed with status %d", name, outcome.StatusCode), outcome.Class).
			WithCause(outcome.Err)
	}
}
