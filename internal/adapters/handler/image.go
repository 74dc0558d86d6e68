package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"airemover/internal/core/domain"
	"airemover/internal/core/port"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	removeBackgroundField = "image_file"
	dewatermarkField      = "image"

	// formOverhead is what a multipart body may carry on top of the file itself.
	formOverhead = 1 << 20
)

// Image serves the image processing endpoints.
type Image struct {
	removeBackground port.ImageProcessor
	dewatermark      port.ImageProcessor
	version          string
	logger           zerolog.Logger
}

func NewImage(removeBackground, dewatermark port.ImageProcessor, version string, logger zerolog.Logger) *Image {
	return &Image{
		removeBackground: removeBackground,
		dewatermark:      dewatermark,
		version:          version,
		logger:           logger.With().Str("component", "handler").Logger(),
	}
}

func (h *Image) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "AI Remover API is running",
		"version": h.version,
	})
}

type removeBackgroundResponse struct {
	ProcessedURL string `json:"processedUrl"`
	Provider     string `json:"provider"`
	Cost         string `json:"cost"`
	DirectURL    bool   `json:"directUrl"`
	SourceURL    string `json:"sourceUrl,omitempty"`
}

func (h *Image) RemoveBackground(c *gin.Context) {
	upload, err := readUpload(c, removeBackgroundField, h.removeBackground.MaxBytes())
	if err != nil {
		h.logger.Warn().Err(err).Msg("could not read background removal upload")
		c.JSON(domain.StatusOf(err), gin.H{"error": domain.MessageOf(err)})
		return
	}

	result, err := h.removeBackground.Process(c.Request.Context(), upload)
	if err != nil {
		c.JSON(domain.StatusOf(err), gin.H{"error": domain.MessageOf(err)})
		return
	}

	// provider location of a stored artifact
	var sourceURL string
	if result.Artifact.Kind != domain.PassthroughURL {
		sourceURL = result.SourceURL
	}

	c.JSON(http.StatusOK, removeBackgroundResponse{
		ProcessedURL: result.Artifact.Location,
		Provider:     result.Provider,
		Cost:         result.Cost,
		DirectURL:    result.Artifact.Kind == domain.PassthroughURL,
		SourceURL:    sourceURL,
	})
}

type dewatermarkResponse struct {
	Success       bool   `json:"success"`
	ImageBase64   string `json:"imageBase64,omitempty"`
	ImageURL      string `json:"imageUrl,omitempty"`
	SessionID     string `json:"sessionId"`
	Mask          string `json:"mask,omitempty"`
	WatermarkMask string `json:"watermarkMask,omitempty"`
}

func (h *Image) Dewatermark(c *gin.Context) {
	upload, err := readUpload(c, dewatermarkField, h.dewatermark.MaxBytes())
	if err != nil {
		h.logger.Warn().Err(err).Msg("could not read dewatermark upload")
		c.JSON(domain.StatusOf(err), gin.H{"success": false, "error": domain.MessageOf(err)})
		return
	}

	result, err := h.dewatermark.Process(c.Request.Context(), upload)
	if err != nil {
		c.JSON(domain.StatusOf(err), gin.H{"success": false, "error": domain.MessageOf(err)})
		return
	}

	res := dewatermarkResponse{
		Success:       true,
		SessionID:     result.SessionID,
		Mask:          result.Mask,
		WatermarkMask: result.WatermarkMask,
	}
	if result.Artifact.Kind == domain.InlineData {
		res.ImageBase64 = result.Artifact.Location
	} else {
		res.ImageURL = result.Artifact.Location
	}

	c.JSON(http.StatusOK, res)
}

// readUpload pulls field out of the multipart body. A missing field yields a nil upload and a part without a filename
// yields an upload with an empty name, so validation can tell the two apart. At most maxBytes+1 bytes are read.
func readUpload(c *gin.Context, field string, maxBytes int64) (*domain.Upload, error) {
	if c.Request.ContentLength > maxBytes+formOverhead {
		return nil, domain.NewTooLargeError(maxBytes)
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+formOverhead)

	header, err := c.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return nil, domain.NewTooLargeError(maxBytes)
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			if _, ok := c.GetPostForm(field); ok {
				return &domain.Upload{}, nil
			}
			return nil, nil
		default:
			return nil, domain.NewValidationError(domain.MsgNoFile).WithCause(err)
		}
	}

	data, err := readPart(header, maxBytes)
	if err != nil {
		return nil, domain.NewValidationError(domain.MsgNoFile).WithCause(err)
	}

	return &domain.Upload{
		Data:        data,
		ContentType: header.Header.Get("Content-Type"),
		Filename:    header.Filename,
	}, nil
}

func readPart(header *multipart.FileHeader, maxBytes int64) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(io.LimitReader(f, maxBytes+1))
}
