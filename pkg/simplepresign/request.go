package simplepresign

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// PresignedRequest is a fully signed request that can be sent later, by anyone,
// without access to the credentials that signed it
type PresignedRequest struct {
	Method    string      `json:"method"`
	URL       string      `json:"url"`
	Header    http.Header `json:"headers,omitempty"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// NewPresignedRequest captures the signed state of req
func NewPresignedRequest(req *smithyhttp.Request, config Config) *PresignedRequest {
	header := req.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	return &PresignedRequest{
		Method:    req.Method,
		URL:       req.URL.String(),
		Header:    header,
		ExpiresAt: config.ExpiresAt(),
	}
}

// MakeHTTPRequest builds an *http.Request for the presigned URL. body may be nil.
// Headers that were part of the signature are copied onto the request.
func (p *PresignedRequest) MakeHTTPRequest(ctx context.Context, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, p.Method, p.URL, body)
	if err != nil {
		return nil, fmt.Errorf("simplepresign: failed to build request: %w", err)
	}
	for k, v := range p.Header {
		req.Header[k] = append([]string(nil), v...)
	}
	return req, nil
}
