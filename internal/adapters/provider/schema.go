package provider

import (
	"encoding/json"
	"strconv"

	"airemover/internal/core/domain"
)

// responseVariant recognizes one response shape. decode reports false when the body is not of this shape.
type responseVariant struct {
	name   string
	decode func(body []byte) (domain.NormalizedResult, bool)
}

// responseSchema checks its variants in order, then the explicit error field, and gives up with unrecognized.
type responseSchema struct {
	variants     []responseVariant
	errorField   bool
	unrecognized string
}

func (s responseSchema) parse(body []byte, provider string) (domain.NormalizedResult, string, error) {
	if !json.Valid(body) {
		return domain.NormalizedResult{}, "", domain.NewProtocolError(domain.MsgInvalidJSON)
	}

	for _, v := range s.variants {
		if result, ok := v.decode(body); ok {
			result.Provider = provider
			return result, v.name, nil
		}
	}

	if s.errorField {
		if message, ok := domain.ErrorField(body); ok {
			return domain.NormalizedResult{}, "", domain.NewRejectedError(message, domain.FailureNone)
		}
	}

	return domain.NormalizedResult{}, "", domain.NewProtocolError(s.unrecognized)
}

var removeBackgroundSchema = responseSchema{
	variants: []responseVariant{
		{name: "output", decode: decodeDirectOutput},
		{name: "image.url", decode: decodeNestedImage},
	},
	errorField:   true,
	unrecognized: domain.MsgUnexpected,
}

var dewatermarkSchema = responseSchema{
	variants: []responseVariant{
		{name: "edited_image", decode: decodeEditedImage},
	},
	unrecognized: domain.MsgMissingImage,
}

// decodeDirectOutput accepts {"output": "<url>"} and, for list-style outputs, {"output": ["<url>", ...]}.
func decodeDirectOutput(body []byte) (domain.NormalizedResult, bool) {
	var res struct {
		Output json.RawMessage `json:"output"`
	}
	if err := json.Unmarshal(body, &res); err != nil || len(res.Output) == 0 {
		return domain.NormalizedResult{}, false
	}

	var url string
	if err := json.Unmarshal(res.Output, &url); err != nil {
		var urls []string
		if err := json.Unmarshal(res.Output, &urls); err != nil || len(urls) == 0 {
			return domain.NormalizedResult{}, false
		}
		url = urls[0]
	}

	if url == "" {
		return domain.NormalizedResult{}, false
	}

	return domain.NormalizedResult{Kind: domain.RemoteArtifact, URL: url}, true
}

// decodeNestedImage accepts {"image": {"url": "<url>", "file_size": <int>}}.
func decodeNestedImage(body []byte) (domain.NormalizedResult, bool) {
	var res struct {
		Image *struct {
			URL      string          `json:"url"`
			FileSize json.RawMessage `json:"file_size"`
		} `json:"image"`
	}
	if err := json.Unmarshal(body, &res); err != nil || res.Image == nil || res.Image.URL == "" {
		return domain.NormalizedResult{}, false
	}

	result := domain.NormalizedResult{Kind: domain.RemoteArtifact, URL: res.Image.URL}
	if size, err := strconv.ParseInt(string(res.Image.FileSize), 10, 64); err == nil {
		result.FileSize = size
	}

	return result, true
}

func decodeEditedImage(body []byte) (domain.NormalizedResult, bool) {
	var res struct {
		EditedImage *struct {
			Image         string `json:"image"`
			Mask          string `json:"mask"`
			WatermarkMask string `json:"watermark_mask"`
		} `json:"edited_image"`
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(body, &res); err != nil || res.EditedImage == nil || res.EditedImage.Image == "" {
		return domain.NormalizedResult{}, false
	}

	return domain.NormalizedResult{
		Kind:          domain.InlineArtifact,
		Data:          res.EditedImage.Image,
		SessionID:     res.SessionID,
		Mask:          res.EditedImage.Mask,
		WatermarkMask: res.EditedImage.WatermarkMask,
	}, true
}
