package service

import (
	"context"
	"sync"
	"time"

	"airemover/internal/core/domain"

	"github.com/stretchr/testify/mock"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string {
	return "test-provider"
}

func (m *MockProvider) Submit(ctx context.Context, descriptor domain.TransportDescriptor) domain.CallOutcome {
	args := m.Called(ctx, descriptor)
	return args.Get(0).(domain.CallOutcome)
}

func (m *MockProvider) Parse(body []byte) (domain.NormalizedResult, error) {
	args := m.Called(body)
	return args.Get(0).(domain.NormalizedResult), args.Error(1)
}

type MockImageHost struct {
	mock.Mock
}

func (m *MockImageHost) Upload(ctx context.Context, payload domain.ImagePayload) (string, error) {
	args := m.Called(ctx, payload)
	return args.String(0), args.Error(1)
}

type MockDownloader struct {
	mock.Mock
}

func (m *MockDownloader) Download(ctx context.Context, url string) ([]byte, error) {
	args := m.Called(ctx, url)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Save(ctx context.Context, data []byte, extension string) (string, error) {
	args := m.Called(ctx, data, extension)
	return args.String(0), args.Error(1)
}

func (m *MockStore) PublicURL(name string) string {
	return "/static/results/" + name
}

// fakeSleeper records requested delays and returns immediately.
type fakeSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
	err    error
}

func (s *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()

	if s.err != nil {
		return s.err
	}

	return ctx.Err()
}

func (s *fakeSleeper) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]time.Duration(nil), s.delays...)
}

// countingRecorder keeps observations for assertions.
type countingRecorder struct {
	mu         sync.Mutex
	attempts   []domain.FailureClass
	transports []domain.TransportKind
	statuses   []int
}

func (r *countingRecorder) ObserveAttempt(_ string, class domain.FailureClass) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, class)
}

func (r *countingRecorder) ObserveTransport(_ string, kind domain.TransportKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transports = append(r.transports, kind)
}

func (r *countingRecorder) ObserveRequest(_ string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func status(code int) domain.CallOutcome {
	switch {
	case code >= 200 && code < 300:
		return domain.CallOutcome{StatusCode: code, Body: []byte(`{}`)}
	case code == 429:
		return domain.CallOutcome{StatusCode: code, Class: domain.FailureRateLimited, Body: []byte(`{}`)}
	case code == 401 || code == 403:
		return domain.CallOutcome{StatusCode: code, Class: domain.FailureAuth, Body: []byte(`{}`)}
	case code >= 500:
		return domain.CallOutcome{StatusCode: code, Class: domain.FailureServer, Body: []byte(`{}`)}
	default:
		return domain.CallOutcome{StatusCode: code, Class: domain.FailureClient, Body: []byte(`{}`)}
	}
}
