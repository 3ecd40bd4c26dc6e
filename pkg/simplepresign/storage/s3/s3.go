package s3

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/tendant/simple-presign/pkg/simplepresign"
	"github.com/tendant/simple-presign/pkg/simplepresign/components"
	"github.com/tendant/simple-presign/pkg/simplepresign/orchestrator"
	"github.com/tendant/simple-presign/pkg/simplepresign/sdkheaders"
	"github.com/tendant/simple-presign/pkg/simplepresign/sigv4"
)

// ServiceName is the signing name of Amazon S3
const ServiceName = "s3"

var (
	// ErrMissingKey is returned when an operation input has no object key
	ErrMissingKey = errors.New("s3: object key is required")

	// ErrInvalidSSEAlgorithm is returned for an unknown server-side encryption algorithm
	ErrInvalidSSEAlgorithm = errors.New("s3: invalid SSE algorithm, expected AES256 or aws:kms")
)

// Config options for the S3 backend
type Config struct {
	Region          string // AWS region
	Bucket          string // S3 bucket name
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	SessionToken    string // Optional session token for temporary credentials
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (default: false)
	PresignDuration int    // Duration in seconds for presigned URLs (default: 3600)
	AppID           string // Optional application id for the user agent

	// Server-side encryption options
	EnableSSE    bool   // Enable server-side encryption
	SSEAlgorithm string // SSE algorithm (AES256 or aws:kms)
	SSEKMSKeyID  string // Optional KMS key ID for aws:kms algorithm
}

// PresignOptions tune a single presign call
type PresignOptions struct {
	// Expires is how long the URL stays valid. Defaults to the backend's
	// presign duration.
	Expires time.Duration

	// StartTime anchors the signature. Defaults to now.
	StartTime time.Time
}

// Option configures a Backend
type Option func(*Backend)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		b.logger = logger
	}
}

// WithCredentials overrides the credentials resolved from the AWS config
func WithCredentials(provider aws.CredentialsProvider) Option {
	return func(b *Backend) {
		b.credentials = provider
	}
}

// Backend presigns Amazon S3 and S3-compatible requests
type Backend struct {
	bucket          string
	region          string
	endpoint        *url.URL
	presignDuration time.Duration
	config          Config
	credentials     aws.CredentialsProvider
	httpClient      aws.HTTPClient
	orchestrator    *orchestrator.Orchestrator
	logger          *slog.Logger
}

// New creates a new S3 presigning backend
func New(config Config, opts ...Option) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	if config.Region == "" {
		config.Region = "us-east-1"
	}

	if config.PresignDuration == 0 {
		config.PresignDuration = 3600 // 1 hour default
	}

	if config.EnableSSE && config.SSEAlgorithm != string(types.ServerSideEncryptionAes256) &&
		config.SSEAlgorithm != string(types.ServerSideEncryptionAwsKms) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSSEAlgorithm, config.SSEAlgorithm)
	}

	endpoint, err := resolveEndpoint(config)
	if err != nil {
		return nil, err
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(config.Region)}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		// Use provided credentials
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			config.AccessKeyID,
			config.SecretAccessKey,
			config.SessionToken,
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	b := &Backend{
		bucket:          config.Bucket,
		region:          config.Region,
		endpoint:        endpoint,
		presignDuration: time.Duration(config.PresignDuration) * time.Second,
		config:          config,
		credentials:     awsCfg.Credentials,
		httpClient:      awsCfg.HTTPClient,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}

	orchestratorOpts := []orchestrator.Option{orchestrator.WithLogger(b.logger)}
	if b.httpClient != nil {
		orchestratorOpts = append(orchestratorOpts, orchestrator.WithHTTPClient(b.httpClient))
	}
	b.orchestrator = orchestrator.New(sigv4.NewSigner(b.credentials, sigv4.WithLogger(b.logger)), orchestratorOpts...)

	return b, nil
}

func resolveEndpoint(config Config) (*url.URL, error) {
	raw := config.Endpoint
	if raw == "" {
		raw = fmt.Sprintf("https://s3.%s.amazonaws.com", config.Region)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q: scheme and host are required", raw)
	}
	return u, nil
}

// Bucket returns the default bucket
func (b *Backend) Bucket() string {
	return b.bucket
}

// PresignDuration returns the default lifetime of presigned URLs
func (b *Backend) PresignDuration() time.Duration {
	return b.presignDuration
}

// PresignGetObject presigns a GetObject request. The bucket defaults to the
// backend bucket.
func (b *Backend) PresignGetObject(ctx context.Context, input *s3.GetObjectInput, optFns ...func(*PresignOptions)) (*simplepresign.PresignedRequest, error) {
	return b.presign(ctx, "GetObject", input, orchestrator.SerializerFunc(b.serializeGetObject), optFns)
}

// PresignPutObject presigns a PutObject request. Server-side encryption
// defaults from the backend config apply when the input sets none.
func (b *Backend) PresignPutObject(ctx context.Context, input *s3.PutObjectInput, optFns ...func(*PresignOptions)) (*simplepresign.PresignedRequest, error) {
	return b.presign(ctx, "PutObject", input, orchestrator.SerializerFunc(b.serializePutObject), optFns)
}

// PresignHeadObject presigns a HeadObject request
func (b *Backend) PresignHeadObject(ctx context.Context, input *s3.HeadObjectInput, optFns ...func(*PresignOptions)) (*simplepresign.PresignedRequest, error) {
	return b.presign(ctx, "HeadObject", input, orchestrator.SerializerFunc(b.serializeHeadObject), optFns)
}

// PresignDeleteObject presigns a DeleteObject request
func (b *Backend) PresignDeleteObject(ctx context.Context, input *s3.DeleteObjectInput, optFns ...func(*PresignOptions)) (*simplepresign.PresignedRequest, error) {
	return b.presign(ctx, "DeleteObject", input, orchestrator.SerializerFunc(b.serializeDeleteObject), optFns)
}

// GetUploadURL returns a presigned URL for uploading content
func (b *Backend) GetUploadURL(ctx context.Context, objectKey string) (string, error) {
	result, err := b.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned upload URL: %w", err)
	}

	return result.URL, nil
}

// GetDownloadURL returns a presigned URL for downloading content
func (b *Backend) GetDownloadURL(ctx context.Context, objectKey string, downloadFilename string) (string, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objectKey),
	}

	// Set response content disposition if filename is provided
	if downloadFilename != "" {
		input.ResponseContentDisposition = aws.String(AttachmentDisposition(downloadFilename))
	}

	result, err := b.PresignGetObject(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned download URL: %w", err)
	}

	return result.URL, nil
}

// GetPreviewURL returns a presigned URL for previewing content (inline display)
func (b *Backend) GetPreviewURL(ctx context.Context, objectKey string) (string, error) {
	result, err := b.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(b.bucket),
		Key:                        aws.String(objectKey),
		ResponseContentDisposition: aws.String("inline"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned preview URL: %w", err)
	}

	return result.URL, nil
}

func (b *Backend) presign(ctx context.Context, name string, input any, serializer orchestrator.Serializer,
	optFns []func(*PresignOptions)) (*simplepresign.PresignedRequest, error) {
	opts := PresignOptions{Expires: b.presignDuration}
	for _, fn := range optFns {
		fn(&opts)
	}

	var configOpts []simplepresign.ConfigOption
	if !opts.StartTime.IsZero() {
		configOpts = append(configOpts, simplepresign.WithStartTime(opts.StartTime))
	}
	cfg, err := simplepresign.NewConfig(opts.Expires, configOpts...)
	if err != nil {
		return nil, err
	}

	req, err := b.orchestrator.Presign(ctx, orchestrator.Operation{
		Name:       name,
		Input:      input,
		Serializer: serializer,
	}, b.plugins(cfg)...)
	if err != nil {
		return nil, err
	}

	b.logger.Debug("Presigned S3 request", "operation", name, "expires_at", cfg.ExpiresAt())
	return simplepresign.NewPresignedRequest(req, cfg), nil
}

// plugins returns the pipeline for one presign call. The signing plugin comes
// before the presigning plugin so the latter can rewrite its config.
func (b *Backend) plugins(cfg simplepresign.Config) []components.Plugin {
	return []components.Plugin{
		sdkheaders.NewPlugin(b.config.AppID),
		sigv4.NewSigningPlugin(sigv4.OperationSigningConfig{
			Region:  b.region,
			Service: ServiceName,
			Options: sigv4.SigningOptions{
				AddPayloadHashHeader:   true,
				DisableURIPathEscaping: true,
			},
		}),
		simplepresign.NewPlugin(cfg, sigv4.UnsignedPayload{}),
	}
}

// withDefaultSSE fills in the backend's encryption settings
func (b *Backend) withDefaultSSE(input *s3.PutObjectInput) {
	if !b.config.EnableSSE || input.ServerSideEncryption != "" {
		return
	}
	switch b.config.SSEAlgorithm {
	case "AES256":
		input.ServerSideEncryption = types.ServerSideEncryptionAes256
	case "aws:kms":
		input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
		if b.config.SSEKMSKeyID != "" && input.SSEKMSKeyId == nil {
			input.SSEKMSKeyId = aws.String(b.config.SSEKMSKeyID)
		}
	}
}

// AttachmentDisposition returns a Content-Disposition value that makes browsers
// save the object as filename. Quotes and non-ASCII names are escaped.
func AttachmentDisposition(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}

func (b *Backend) bucketOrDefault(bucket *string) string {
	if v := aws.ToString(bucket); v != "" {
		return v
	}
	return b.bucket
}

// hasDots reports whether bucket cannot be used as a TLS virtual host
func hasDots(bucket string) bool {
	return strings.Contains(bucket, ".")
}
