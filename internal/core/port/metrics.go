package port

import (
	"time"

	"airemover/internal/core/domain"
)

type Recorder interface {
	ObserveAttempt(provider string, class domain.FailureClass)
	ObserveTransport(provider string, kind domain.TransportKind)
	ObserveRequest(provider string, status int, duration time.Duration)
}

// NopRecorder discards all observations.
type NopRecorder struct{}

func (NopRecorder) ObserveAttempt(string, domain.FailureClass)    {}
func (NopRecorder) ObserveTransport(string, domain.TransportKind) {}
func (NopRecorder) ObserveRequest(string, int, time.Duration)     {}
