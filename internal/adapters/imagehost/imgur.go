package imagehost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"airemover/internal/core/domain"

	"github.com/rs/zerolog"
)

const DefaultEndpoint = "https://api.imgur.com/3/image"

var (
	ErrUploadRejected = errors.New("image host rejected the upload")
	ErrMissingLink    = errors.New("image host response has no link")
)

// Imgur uploads images anonymously to an imgur-compatible host. Deadlines come from the caller's context.
type Imgur struct {
	endpoint string
	clientID string
	client   *http.Client
	logger   zerolog.Logger
}

func NewImgur(endpoint, clientID string, logger zerolog.Logger) *Imgur {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	return &Imgur{
		endpoint: endpoint,
		clientID: strings.TrimSpace(clientID),
		client:   &http.Client{},
		logger:   logger.With().Str("component", "imagehost").Logger(),
	}
}

type uploadResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Link string `json:"link"`
		Size int64  `json:"size"`
	} `json:"data"`
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func (i *Imgur) Upload(ctx context.Context, payload domain.ImagePayload) (string, error) {
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="image"; filename="%s"`, quoteEscaper.Replace(payload.Filename)))
	h.Set("Content-Type", payload.ContentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("error creating upload field: %w", err)
	}
	if _, err := part.Write(payload.Data); err != nil {
		return "", fmt.Errorf("error writing upload field: %w", err)
	}
	if err := w.WriteField("type", "file"); err != nil {
		return "", fmt.Errorf("error writing upload type: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("error closing upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("error creating upload request: %w", err)
	}

	req.Header.Set("Content-Type", w.FormDataContentType())
	if i.clientID != "" {
		req.Header.Set("Authorization", "Client-ID "+i.clientID)
	}

	res, err := i.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error executing upload request: %w", err)
	}

	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("error reading upload response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", ErrUploadRejected, res.StatusCode)
	}

	var result uploadResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("error unmarshalling upload response: %w", err)
	}

	if !result.Success {
		return "", ErrUploadRejected
	}

	if result.Data.Link == "" {
		return "", ErrMissingLink
	}

	i.logger.Debug().Str("link", result.Data.Link).Int64("size", result.Data.Size).Msg("uploaded image")

	return result.Data.Link, nil
}
