package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/simple-presign/pkg/simplepresign"
	"github.com/tendant/simple-presign/pkg/simplepresign/objectkey"
	s3storage "github.com/tendant/simple-presign/pkg/simplepresign/storage/s3"
)

// Presigner issues presigned S3 requests. *s3storage.Backend implements it.
type Presigner interface {
	PresignGetObject(ctx context.Context, input *s3.GetObjectInput, optFns ...func(*s3storage.PresignOptions)) (*simplepresign.PresignedRequest, error)
	PresignPutObject(ctx context.Context, input *s3.PutObjectInput, optFns ...func(*s3storage.PresignOptions)) (*simplepresign.PresignedRequest, error)
}

// Handler serves presigned URLs over HTTP
type Handler struct {
	presigner Presigner
	keys      objectkey.Generator
	logger    *slog.Logger
}

// HandlerOption configures a Handler
type HandlerOption func(*Handler)

// WithKeyGenerator names uploads that arrive without an object_key. Without a
// generator the key is required.
func WithKeyGenerator(g objectkey.Generator) HandlerOption {
	return func(h *Handler) {
		h.keys = g
	}
}

// NewHandler creates the handler. A nil logger uses slog.Default().
func NewHandler(presigner Presigner, logger *slog.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{presigner: presigner, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the router for presign endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/upload-url", h.UploadURL)
	r.Post("/download-url", h.DownloadURL)
	r.Post("/preview-url", h.PreviewURL)
	return r
}

// UploadURLRequest asks for a presigned PUT. Filename and TenantID feed the
// key generator when ObjectKey is empty.
type UploadURLRequest struct {
	ObjectKey   string            `json:"object_key,omitempty"`
	Filename    string            `json:"filename,omitempty"`
	TenantID    string            `json:"tenant_id,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ExpiresIn   int64             `json:"expires_in,omitempty"` // seconds
}

// DownloadURLRequest asks for a presigned GET. Filename sets an attachment
// disposition on the response.
type DownloadURLRequest struct {
	ObjectKey string `json:"object_key"`
	Filename  string `json:"filename,omitempty"`
	ExpiresIn int64  `json:"expires_in,omitempty"` // seconds
}

// PreviewURLRequest asks for a presigned GET displayed inline
type PreviewURLRequest struct {
	ObjectKey   string `json:"object_key"`
	ContentType string `json:"content_type,omitempty"`
	ExpiresIn   int64  `json:"expires_in,omitempty"` // seconds
}

// PresignedURLResponse is returned by every endpoint. Headers must be sent
// with the request for the signature to match.
type PresignedURLResponse struct {
	ObjectKey string            `json:"object_key"`
	Method    string            `json:"method"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers,omitempty"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// ErrorResponse is the JSON error envelope
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes one error
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UploadURL returns a presigned URL for uploading an object
func (h *Handler) UploadURL(w http.ResponseWriter, r *http.Request) {
	var req UploadURLRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}
	if !validExpiresIn(req.ExpiresIn) {
		writeError(w, r, http.StatusBadRequest, "invalid_expires", expiresInMessage)
		return
	}

	if req.ObjectKey == "" && h.keys != nil {
		req.ObjectKey = h.keys.GenerateKey(uuid.New(), &objectkey.KeyMetadata{
			FileName:    req.Filename,
			ContentType: req.ContentType,
			TenantID:    req.TenantID,
		})
	}

	input := &s3.PutObjectInput{
		Key:      aws.String(req.ObjectKey),
		Metadata: req.Metadata,
	}
	if req.ContentType != "" {
		input.ContentType = aws.String(req.ContentType)
	}

	presigned, err := h.presigner.PresignPutObject(r.Context(), input, expiresIn(req.ExpiresIn))
	if err != nil {
		h.writePresignError(w, r, "upload", req.ObjectKey, err)
		return
	}

	h.logger.Info("Presigned upload URL issued", "object_key", req.ObjectKey, "expires_at", presigned.ExpiresAt,
		"request_id", chimiddleware.GetReqID(r.Context()))
	render.JSON(w, r, newResponse(req.ObjectKey, presigned))
}

// DownloadURL returns a presigned URL for downloading an object
func (h *Handler) DownloadURL(w http.ResponseWriter, r *http.Request) {
	var req DownloadURLRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}
	if !validExpiresIn(req.ExpiresIn) {
		writeError(w, r, http.StatusBadRequest, "invalid_expires", expiresInMessage)
		return
	}

	input := &s3.GetObjectInput{Key: aws.String(req.ObjectKey)}
	if req.Filename != "" {
		input.ResponseContentDisposition = aws.String(s3storage.AttachmentDisposition(req.Filename))
	}

	presigned, err := h.presigner.PresignGetObject(r.Context(), input, expiresIn(req.ExpiresIn))
	if err != nil {
		h.writePresignError(w, r, "download", req.ObjectKey, err)
		return
	}

	h.logger.Info("Presigned download URL issued", "object_key", req.ObjectKey, "expires_at", presigned.ExpiresAt,
		"request_id", chimiddleware.GetReqID(r.Context()))
	render.JSON(w, r, newResponse(req.ObjectKey, presigned))
}

// PreviewURL returns a presigned URL for displaying an object inline
func (h *Handler) PreviewURL(w http.ResponseWriter, r *http.Request) {
	var req PreviewURLRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}
	if !validExpiresIn(req.ExpiresIn) {
		writeError(w, r, http.StatusBadRequest, "invalid_expires", expiresInMessage)
		return
	}

	input := &s3.GetObjectInput{
		Key:                        aws.String(req.ObjectKey),
		ResponseContentDisposition: aws.String("inline"),
	}
	if req.ContentType != "" {
		input.ResponseContentType = aws.String(req.ContentType)
	}

	presigned, err := h.presigner.PresignGetObject(r.Context(), input, expiresIn(req.ExpiresIn))
	if err != nil {
		h.writePresignError(w, r, "preview", req.ObjectKey, err)
		return
	}

	h.logger.Info("Presigned preview URL issued", "object_key", req.ObjectKey, "expires_at", presigned.ExpiresAt,
		"request_id", chimiddleware.GetReqID(r.Context()))
	render.JSON(w, r, newResponse(req.ObjectKey, presigned))
}

var expiresInMessage = fmt.Sprintf("expires_in must be between 1 and %d seconds",
	int64(simplepresign.MaxExpires/time.Second))

// validExpiresIn reports whether seconds is zero (use the configured default)
// or a positive value S3 accepts as X-Amz-Expires.
func validExpiresIn(seconds int64) bool {
	return seconds >= 0 && seconds <= int64(simplepresign.MaxExpires/time.Second)
}

func expiresIn(seconds int64) func(*s3storage.PresignOptions) {
	return func(o *s3storage.PresignOptions) {
		if seconds != 0 {
			o.Expires = time.Duration(seconds) * time.Second
		}
	}
}

func newResponse(objectKey string, p *simplepresign.PresignedRequest) PresignedURLResponse {
	resp := PresignedURLResponse{
		ObjectKey: objectKey,
		Method:    p.Method,
		URL:       p.URL,
		ExpiresAt: p.ExpiresAt,
	}
	if len(p.Header) > 0 {
		resp.Headers = make(map[string]string, len(p.Header))
		for k := range p.Header {
			resp.Headers[k] = p.Header.Get(k)
		}
	}
	return resp
}

func (h *Handler) writePresignError(w http.ResponseWriter, r *http.Request, kind, objectKey string, err error) {
	switch {
	case errors.Is(err, s3storage.ErrMissingKey):
		writeError(w, r, http.StatusBadRequest, "missing_object_key", "object_key is required")
	case simplepresign.IsConfigError(err):
		writeError(w, r, http.StatusBadRequest, "invalid_expires", err.Error())
	default:
		h.logger.Error("Failed to presign request", "kind", kind, "object_key", objectKey, "err", err,
			"request_id", chimiddleware.GetReqID(r.Context()))
		writeError(w, r, http.StatusInternalServerError, kind+"_url_failed",
			fmt.Sprintf("failed to generate %s URL", kind))
	}
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}
