package supervisor

import "fmt"

// SourceKind selects how the stream executable reads its input.
type SourceKind string

// Source kinds.
const (
	SourceURL  SourceKind = "url"
	SourceFile SourceKind = "file"
)

// StreamRequest describes what to play. It is not modified after Play.
type StreamRequest struct {
	Kind        SourceKind
	Source      string
	Title       string
	Album       string
	Volume      *int
	MetadataURL string
	ArtworkURL  string
}

// Validate checks the request before a session is started.
func (r StreamRequest) Validate() error {
	if r.Source == "" {
		return NewError(ErrCodeInvalidParams, "stream source is required", nil)
	}
	switch r.Kind {
	case SourceURL, SourceFile:
	default:
		return NewError(ErrCodeInvalidParams, fmt.Sprintf("unknown source kind %q", r.Kind), nil)
	}
	if r.Volume != nil && (*r.Volume < 0 || *r.Volume > 100) {
		return NewError(ErrCodeInvalidParams, fmt.Sprintf("volume %d out of range 0-100", *r.Volume), nil)
	}
	return nil
}

// Int returns a pointer to v, for StreamRequest.Volume literals.
func Int(v int) *int {
	return &v
}
