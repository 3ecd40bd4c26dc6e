package serialization

import (
	"strconv"

	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// DefaultContentType is emitted for bodies that do not declare a content type
const DefaultContentType = "application/octet-stream"

// HeaderSettings controls whether serialization emits default body headers.
// The zero value emits both Content-Length and Content-Type.
type HeaderSettings struct {
	omitDefaultContentLength bool
	omitDefaultContentType   bool
}

// NewHeaderSettings returns settings that emit all default headers
func NewHeaderSettings() HeaderSettings {
	return HeaderSettings{}
}

// OmitDefaultContentLength returns a copy that does not emit Content-Length
func (s HeaderSettings) OmitDefaultContentLength() HeaderSettings {
	s.omitDefaultContentLength = true
	return s
}

// OmitDefaultContentType returns a copy that does not emit Content-Type
func (s HeaderSettings) OmitDefaultContentType() HeaderSettings {
	s.omitDefaultContentType = true
	return s
}

// SetDefaultContentLength reports whether a default Content-Length should be set
func (s HeaderSettings) SetDefaultContentLength() bool {
	return !s.omitDefaultContentLength
}

// SetDefaultContentType reports whether a default Content-Type should be set
func (s HeaderSettings) SetDefaultContentType() bool {
	return !s.omitDefaultContentType
}

// ApplyDefaultHeaders adds Content-Length and Content-Type to req when it carries
// a body, the headers are not already set and the settings allow it.
// bodyLength < 0 means the length is unknown.
func ApplyDefaultHeaders(req *smithyhttp.Request, bodyLength int64, settings HeaderSettings) {
	if req.GetStream() == nil {
		return
	}

	if settings.SetDefaultContentLength() && bodyLength >= 0 && req.Header.Get("Content-Length") == "" {
		req.ContentLength = bodyLength
		req.Header.Set("Content-Length", strconv.FormatInt(bodyLength, 10))
	}

	if settings.SetDefaultContentType() && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", DefaultContentType)
	}
}
