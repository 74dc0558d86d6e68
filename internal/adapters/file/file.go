package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
)

// DefaultMaxDownloadBytes bounds downloads of provider results.
const DefaultMaxDownloadBytes = 64 << 20

var ErrTooLarge = errors.New("download exceeds size limit")

// Downloader fetches provider results over HTTP. Deadlines come from the caller's context.
type Downloader struct {
	client   *http.Client
	maxBytes int64
	logger   zerolog.Logger
}

func NewDownloader(maxBytes int64, logger zerolog.Logger) *Downloader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxDownloadBytes
	}

	return &Downloader{
		client:   &http.Client{},
		maxBytes: maxBytes,
		logger:   logger.With().Str("component", "downloader").Logger(),
	}
}

// Download returns the byte content of a file on a provided URL.
func (d *Downloader) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		err = fmt.Errorf("error creating request %w", err)
		d.logger.Error().Err(err).Str("url", url).Send()
		return nil, err
	}

	res, err := d.client.Do(req)
	if err != nil {
		err = fmt.Errorf("error executing request %w", err)
		d.logger.Error().Err(err).Str("url", url).Send()
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		err = fmt.Errorf("unexpected status code on download: %d", res.StatusCode)
		d.logger.Error().Err(err).Str("url", url).Send()
		return nil, err
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, d.maxBytes+1))
	if err != nil {
		err = fmt.Errorf("error reading response %w", err)
		d.logger.Error().Err(err).Str("url", url).Send()
		return nil, err
	}

	if int64(len(buf)) > d.maxBytes {
		d.logger.Error().Err(ErrTooLarge).Str("url", url).Int64("limit", d.maxBytes).Send()
		return nil, ErrTooLarge
	}

	return buf, nil
}

// Store keeps processed images in a directory that is served under urlPrefix.
type Store struct {
	dir       string
	urlPrefix string
	logger    zerolog.Logger
}

func NewStore(dir, urlPrefix string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating artifact directory %w", err)
	}

	return &Store{
		dir:       dir,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
		logger:    logger.With().Str("component", "store").Logger(),
	}, nil
}

// Save writes data to <uuid><extension>. The file only becomes visible under its final name once fully written.
func (s *Store) Save(_ context.Context, data []byte, extension string) (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}

	if extension != "" && !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}

	name := id.String() + extension

	s.logger.Debug().Int("bytes", len(data)).Str("name", name).Msg("storing artifact")

	f, err := os.CreateTemp(s.dir, ".pending-*")
	if err != nil {
		err = fmt.Errorf("error creating temp file %w", err)
		s.logger.Error().Err(err).Send()
		return "", err
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		removeFile(s.logger, f.Name())
		err = fmt.Errorf("error writing temp file %w", err)
		s.logger.Error().Err(err).Send()
		return "", err
	}

	if err := f.Close(); err != nil {
		removeFile(s.logger, f.Name())
		err = fmt.Errorf("error closing temp file %w", err)
		s.logger.Error().Err(err).Send()
		return "", err
	}

	if err := os.Chmod(f.Name(), 0o644); err != nil {
		removeFile(s.logger, f.Name())
		return "", fmt.Errorf("error setting artifact permissions %w", err)
	}

	if err := os.Rename(f.Name(), s.Path(name)); err != nil {
		removeFile(s.logger, f.Name())
		return "", fmt.Errorf("error moving artifact into place %w", err)
	}

	s.logger.Debug().Str("path", s.Path(name)).Msg("stored artifact")

	return name, nil
}

func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *Store) PublicURL(name string) string {
	return s.urlPrefix + "/" + name
}

// removeFile removes a specified file at the given path and logs success or failure.
func removeFile(logger zerolog.Logger, path string) {
	err := os.Remove(path)
	if err != nil {
		logger.Warn().Str("path", path).Err(err).Msg("could not clean up temp file")
		return
	}
	logger.Debug().Str("path", path).Msg("cleaned up temp file")
}
