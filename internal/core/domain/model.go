package domain

// Upload is what the inbound layer read from a multipart field. A nil *Upload means the field was absent.
type Upload struct {
	Data        []byte
	ContentType string
	Filename    string
}

// ImagePayload is a validated upload. It is never modified after construction.
type ImagePayload struct {
	Data        []byte
	ContentType string
	Filename    string
}

func (p ImagePayload) Size() int {
	return len(p.Data)
}

type TransportKind string

const (
	RemoteReference TransportKind = "remote_reference"
	InlinePayload   TransportKind = "inline_payload"
)

// TransportDescriptor tells a provider how to reach the source image. Exactly one of URL and DataURI is set,
// matching Kind.
type TransportDescriptor struct {
	Kind        TransportKind
	URL         string
	DataURI     string
	Filename    string
	ContentType string
}

// ImageReference returns the string a provider expects in place of the image.
func (d TransportDescriptor) ImageReference() string {
	if d.Kind == RemoteReference {
		return d.URL
	}

	return d.DataURI
}

// FailureClass is the retry-relevant classification of a failed provider call.
type FailureClass string

const (
	FailureNone        FailureClass = ""
	FailureConnection  FailureClass = "connection_error"
	FailureReadTimeout FailureClass = "read_timeout"
	FailureRateLimited FailureClass = "rate_limited"
	FailureServer      FailureClass = "server_error"
	FailureClient      FailureClass = "client_error"
	FailureAuth        FailureClass = "auth_error"
)

// CallOutcome is the result of a single provider HTTP attempt.
type CallOutcome struct {
	StatusCode int
	Body       []byte
	Class      FailureClass
	Err        error
}

func (o CallOutcome) Succeeded() bool {
	return o.Class == FailureNone && o.Err == nil
}

type ResultKind string

const (
	RemoteArtifact ResultKind = "remote"
	InlineArtifact ResultKind = "inline"
)

// NormalizedResult is a provider response reduced to the fields callers care about.
type NormalizedResult struct {
	Kind          ResultKind
	URL           string
	Data          string
	Provider      string
	Cost          string
	FileSize      int64
	SessionID     string
	Mask          string
	WatermarkMask string
}

type ArtifactKind string

const (
	PassthroughURL ArtifactKind = "passthrough_url"
	StoredFile     ArtifactKind = "stored_file"
	InlineData     ArtifactKind = "inline_data"
)

// ProcessedArtifact is what the caller receives. Location holds a URL for passthrough and stored files and the
// base64 payload for inline data.
type ProcessedArtifact struct {
	Kind     ArtifactKind
	Location string
}

// MaterializeMode selects how provider output is handed back. It is fixed per endpoint.
type MaterializeMode string

const (
	ModePassthrough MaterializeMode = "passthrough"
	ModeStore       MaterializeMode = "store"
)

// Result is the orchestrated outcome of one request.
type Result struct {
	Artifact      ProcessedArtifact
	SourceURL     string
	Provider      string
	Cost          string
	SessionID     string
	Mask          string
	WatermarkMask string
	Attempts      int
}
