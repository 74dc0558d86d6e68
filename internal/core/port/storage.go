package port

import "context"

type Downloader interface {
	// Download fetches the body of url.
	Download(ctx context.Context, url string) ([]byte, error)
}

type ArtifactStore interface {
	// Save atomically persists data under a fresh unique name with the given extension and returns the name.
	Save(ctx context.Context, data []byte, extension string) (string, error)
	// PublicURL maps a stored name to the location clients fetch it from.
	PublicURL(name string) string
}
