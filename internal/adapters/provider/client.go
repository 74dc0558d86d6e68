package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"airemover/internal/core/domain"

	"github.com/rs/zerolog"
)

// Timeouts is a provider timeout tier. Connect bounds dialing and the TLS handshake, Read bounds the wait for response
// headers. Total, when set, replaces both with a single deadline.
type Timeouts struct {
	Connect time.Duration
	Read    time.Duration
	Total   time.Duration
}

var (
	TierRemoveBackgroundV2 = Timeouts{Connect: 10 * time.Second, Read: 90 * time.Second}
	TierRemoveBackgroundV3 = Timeouts{Connect: 10 * time.Second, Read: 120 * time.Second}
	TierDewatermark        = Timeouts{Total: 60 * time.Second}
)

// RemoveBackgroundTier picks the tier for a background removal API generation. Unknown generations get v2.
func RemoveBackgroundTier(generation string) Timeouts {
	if generation == "v3" {
		return TierRemoveBackgroundV3
	}

	return TierRemoveBackgroundV2
}

// Override replaces the non-zero fields of t. Setting total drops the connect and read split.
func (t Timeouts) Override(connect, read, total time.Duration) Timeouts {
	if total > 0 {
		return Timeouts{Total: total}
	}
	if connect > 0 {
		t.Connect = connect
	}
	if read > 0 {
		t.Read = read
	}

	return t
}

// maxResponseBytes caps provider bodies; inline results carry base64 images plus masks.
const maxResponseBytes = 128 << 20

// Config is what every provider needs to reach its endpoint.
type Config struct {
	Name     string
	Endpoint string
	APIKey   string
	Timeouts Timeouts
}

func newHTTPClient(t Timeouts) *http.Client {
	if t.Total > 0 {
		return &http.Client{Timeout: t.Total}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if t.Connect > 0 {
		transport.DialContext = (&net.Dialer{Timeout: t.Connect, KeepAlive: 30 * time.Second}).DialContext
		transport.TLSHandshakeTimeout = t.Connect
	}
	if t.Read > 0 {
		transport.ResponseHeaderTimeout = t.Read
	}

	return &http.Client{Transport: transport, Timeout: t.Connect + t.Read}
}

// execute runs one request and classifies what came back. The body is returned for every status so callers can
// mine error messages.
func execute(client *http.Client, req *http.Request, logger zerolog.Logger) domain.CallOutcome {
	start := time.Now()

	res, err := client.Do(req)
	if err != nil {
		class := classifyError(err)
		logger.Warn().Err(err).Str("class", string(class)).Dur("elapsed", time.Since(start)).
			Msg("provider request failed")
		return domain.CallOutcome{Class: class, Err: fmt.Errorf("error executing provider request: %w", err)}
	}

	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		class := classifyError(err)
		logger.Warn().Err(err).Int("status", res.StatusCode).Str("class", string(class)).
			Msg("failed reading provider response")
		return domain.CallOutcome{
			StatusCode: res.StatusCode,
			Class:      class,
			Err:        fmt.Errorf("error reading provider response: %w", err),
		}
	}

	class := classifyStatus(res.StatusCode)

	logger.Debug().
		Int("status", res.StatusCode).
		Int("bytes", len(body)).
		Dur("elapsed", time.Since(start)).
		Msg("provider responded")

	outcome := domain.CallOutcome{StatusCode: res.StatusCode, Body: body, Class: class}
	if class != domain.FailureNone {
		outcome.Err = fmt.Errorf("provider returned status %d", res.StatusCode)
	}

	return outcome
}

func classifyStatus(code int) domain.FailureClass {
	switch {
	case code >= 200 && code < 300:
		return domain.FailureNone
	case code == http.StatusTooManyRequests:
		return domain.FailureRateLimited
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return domain.FailureAuth
	case code >= 500:
		return domain.FailureServer
	default:
		return domain.FailureClient
	}
}

// classifyError treats every timeout, including connect timeouts, as retryable; anything else that kept the request
// from completing is a connection failure.
func classifyError(err error) domain.FailureClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.FailureReadTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.FailureReadTimeout
	}

	return domain.FailureConnection
}

// localFailure reports a request that could not be built. It is never retried.
func localFailure(err error) domain.CallOutcome {
	return domain.CallOutcome{Class: domain.FailureClient, Err: err}
}
