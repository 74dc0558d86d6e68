package provider

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"airemover/internal/core/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveBackground_Submit(t *testing.T) {
	tests := []struct {
		name       string
		descriptor domain.TransportDescriptor
		wantImage  string
	}{
		{
			name:       "remote reference",
			descriptor: domain.TransportDescriptor{Kind: domain.RemoteReference, URL: "https://i.imgur.com/a.png"},
			wantImage:  "https://i.imgur.com/a.png",
		},
		{
			name: "inline payload",
			descriptor: domain.TransportDescriptor{
				Kind:    domain.InlinePayload,
				DataURI: "data:image/png;base64,iVBORw0KGgo=",
			},
			wantImage: "data:image/png;base64,iVBORw0KGgo=",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var body map[string]string
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, tc.wantImage, body["image_url"])

				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"output":"https://cdn.example/out.png"}`))
			}))
			defer srv.Close()

			p := NewRemoveBackground(Config{Name: "302.ai-removebg-v2", Endpoint: srv.URL, APIKey: "test-api-key"},
				zerolog.Nop())

			outcome := p.Submit(t.Context(), tc.descriptor)
			require.NoError(t, outcome.Err)
			assert.True(t, outcome.Succeeded())
			assert.Equal(t, http.StatusOK, outcome.StatusCode)
			assert.JSONEq(t, `{"output":"https://cdn.example/out.png"}`, string(outcome.Body))
		})
	}
}

func TestRemoveBackground_SubmitClassifiesStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantClass domain.FailureClass
	}{
		{name: "ok", status: http.StatusOK, wantClass: domain.FailureNone},
		{name: "rate limited", status: http.StatusTooManyRequests, wantClass: domain.FailureRateLimited},
		{name: "unauthorized", status: http.StatusUnauthorized, wantClass: domain.FailureAuth},
		{name: "forbidden", status: http.StatusForbidden, wantClass: domain.FailureAuth},
		{name: "bad request", status: http.StatusBadRequest, wantClass: domain.FailureClient},
		{name: "server error", status: http.StatusBadGateway, wantClass: domain.FailureServer},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			}))
			defer srv.Close()

			p := NewRemoveBackground(Config{Name: "rb", Endpoint: srv.URL, APIKey: "k"}, zerolog.Nop())

			outcome := p.Submit(t.Context(), domain.TransportDescriptor{Kind: domain.RemoteReference, URL: "u"})
			assert.Equal(t, tc.wantClass, outcome.Class)
			assert.Equal(t, tc.status, outcome.StatusCode)
			assert.Equal(t, tc.wantClass != domain.FailureNone, outcome.Err != nil)
			assert.NotEmpty(t, outcome.Body)
		})
	}
}

func TestRemoveBackground_Parse(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantURL      string
		wantFileSize int64
		wantKind     domain.ErrorKind
		wantMessage  string
	}{
		{
			name:    "direct output",
			body:    `{"output":"https://cdn.example/a.png"}`,
			wantURL: "https://cdn.example/a.png",
		},
		{
			name:    "output list",
			body:    `{"output":["https://cdn.example/first.png","https://cdn.example/second.png"]}`,
			wantURL: "https://cdn.example/first.png",
		},
		{
			name:         "nested image",
			body:         `{"image":{"url":"https://cdn.example/b.png","file_size":2048}}`,
			wantURL:      "https://cdn.example/b.png",
			wantFileSize: 2048,
		},
		{
			name:    "nested image without size",
			body:    `{"image":{"url":"https://cdn.example/b.png"}}`,
			wantURL: "https://cdn.example/b.png",
		},
		{
			name:    "output wins over nested image",
			body:    `{"output":"https://cdn.example/a.png","image":{"url":"https://cdn.example/b.png"}}`,
			wantURL: "https://cdn.example/a.png",
		},
		{
			name:        "error string",
			body:        `{"error":"Image too small"}`,
			wantKind:    domain.KindUpstreamRejected,
			wantMessage: "Image too small",
		},
		{
			name:        "error object",
			body:        `{"error":{"message":"Quota exceeded","code":-10}}`,
			wantKind:    domain.KindUpstreamRejected,
			wantMessage: "Quota exceeded",
		},
		{
			name:        "unrecognized shape",
			body:        `{"status":"done"}`,
			wantKind:    domain.KindUpstreamProtocol,
			wantMessage: domain.MsgUnexpected,
		},
		{
			name:        "empty output",
			body:        `{"output":""}`,
			wantKind:    domain.KindUpstreamProtocol,
			wantMessage: domain.MsgUnexpected,
		},
		{
			name:        "invalid json",
			body:        `<html>bad gateway</html>`,
			wantKind:    domain.KindUpstreamProtocol,
			wantMessage: domain.MsgInvalidJSON,
		},
	}

	p := NewRemoveBackground(Config{Name: "302.ai-removebg-v2"}, zerolog.Nop())

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := p.Parse([]byte(tc.body))
			if tc.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tc.wantKind, domain.KindOf(err))
				assert.Equal(t, tc.wantMessage, domain.MessageOf(err))
				assert.Equal(t, http.StatusInternalServerError, domain.StatusOf(err))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, domain.RemoteArtifact, got.Kind)
			assert.Equal(t, tc.wantURL, got.URL)
			assert.Equal(t, tc.wantFileSize, got.FileSize)
			assert.Equal(t, "302.ai-removebg-v2", got.Provider)
		})
	}
}

func TestNewRemoveBackground_Defaults(t *testing.T) {
	p := NewRemoveBackground(Config{Name: "rb"}, zerolog.Nop())

	assert.Equal(t, "rb", p.Name())
	assert.Equal(t, DefaultRemoveBackgroundEndpoint, p.cfg.Endpoint)
	assert.Equal(t, TierRemoveBackgroundV2, p.cfg.Timeouts)
}

func TestRemoveBackground_SubmitKeepsHTMLCharacters(t *testing.T) {
	var raw []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"output":"x"}`))
	}))
	defer srv.Close()

	p := NewRemoveBackground(Config{Name: "rb", Endpoint: srv.URL, APIKey: "k"}, zerolog.Nop())
	outcome := p.Submit(t.Context(), domain.TransportDescriptor{
		Kind: domain.RemoteReference,
		URL:  "https://host/img.png?a=1&b=2",
	})

	require.NoError(t, outcome.Err)
	assert.Contains(t, string(raw), "a=1&b=2")
}
