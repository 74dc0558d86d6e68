package domain

const (
	MiB = 1 << 20

	MaxBackgroundRemovalBytes = 16 * MiB
	MaxWatermarkRemovalBytes  = 10 * MiB
)

const (
	MsgNoFile       = "No file provided"
	MsgNoFilename   = "No file selected"
	MsgUnexpected   = "Unexpected response format"
	MsgInvalidJSON  = "Invalid JSON response from provider"
	MsgMissingImage = "Provider response is missing the edited image"
)
