package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"airemover/internal/core/domain"
	"airemover/internal/core/port"

	"github.com/rs/zerolog"
)

const (
	DefaultDownloadTimeout   = 30 * time.Second
	DefaultArtifactExtension = ".png"
)

// ResultMaterializer turns a provider result into the artifact handed to the caller.
type ResultMaterializer struct {
	downloader port.Downloader
	store      port.ArtifactStore
	timeout    time.Duration
	extension  string
	logger     zerolog.Logger
}

// NewResultMaterializer wires the store mode collaborators. Both may be nil when only passthrough is used.
func NewResultMaterializer(downloader port.Downloader, store port.ArtifactStore, timeout time.Duration,
	extension string, logger zerolog.Logger) *ResultMaterializer {
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}
	if extension == "" {
		extension = DefaultArtifactExtension
	}

	return &ResultMaterializer{
		downloader: downloader,
		store:      store,
		timeout:    timeout,
		extension:  extension,
		logger:     logger.With().Str("component", "materializer").Logger(),
	}
}

func (m *ResultMaterializer) Materialize(ctx context.Context, result domain.NormalizedResult,
	mode domain.MaterializeMode) (domain.ProcessedArtifact, error) {
	switch mode {
	case domain.ModePassthrough, "":
		return passthrough(result)
	case domain.ModeStore:
		return m.persist(ctx, result)
	default:
		return domain.ProcessedArtifact{}, domain.NewMaterializationError(fmt.Sprintf("Unknown output mode %q", mode))
	}
}

func passthrough(result domain.NormalizedResult) (domain.ProcessedArtifact, error) {
	switch result.Kind {
	case domain.RemoteArtifact:
		return domain.ProcessedArtifact{Kind: domain.PassthroughURL, Location: result.URL}, nil
	case domain.InlineArtifact:
		return domain.ProcessedArtifact{Kind: domain.InlineData, Location: result.Data}, nil
	default:
		return domain.ProcessedArtifact{}, domain.NewMaterializationError("Provider result has no artifact")
	}
}

func (m *ResultMaterializer) persist(ctx context.Context, result domain.NormalizedResult) (domain.ProcessedArtifact,
	error) {
	if m.store == nil {
		return domain.ProcessedArtifact{}, domain.NewMaterializationError("Artifact storage is not configured")
	}

	data, err := m.fetch(ctx, result)
	if err != nil {
		return domain.ProcessedArtifact{}, err
	}

	name, err := m.store.Save(ctx, data, m.extensionFor(data))
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to store artifact")
		return domain.ProcessedArtifact{}, domain.NewMaterializationError("Failed to store processed image").
			WithCause(err)
	}

	m.logger.Debug().Str("name", name).Int("bytes", len(data)).Msg("stored artifact")

	return domain.ProcessedArtifact{Kind: domain.StoredFile, Location: m.store.PublicURL(name)}, nil
}

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// extensionFor names the file after the decoded format, falling back to the configured extension.
func (m *ResultMaterializer) extensionFor(data []byte) string {
	if ext, ok := extensions[domain.SniffContentType(data)]; ok {
		return ext
	}

	return m.extension
}

func (m *ResultMaterializer) fetch(ctx context.Context, result domain.NormalizedResult) ([]byte, error) {
	switch result.Kind {
	case domain.RemoteArtifact:
		if m.downloader == nil {
			return nil, domain.NewMaterializationError("Artifact download is not configured")
		}

		ctx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()

		data, err := m.downloader.Download(ctx, result.URL)
		if err != nil {
			m.logger.Error().Err(err).Str("url", result.URL).Msg("failed to download provider result")
			return nil, domain.NewMaterializationError("Failed to download processed image").WithCause(err)
		}

		return data, nil
	case domain.InlineArtifact:
		data, err := base64.StdEncoding.DecodeString(result.Data)
		if err != nil {
			return nil, domain.NewMaterializationError("Provider returned an undecodable image").WithCause(err)
		}

		return data, nil
	default:
		return nil, domain.NewMaterializationError("Provider result has no artifact")
	}
}
