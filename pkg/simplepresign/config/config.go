package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/tendant/simple-presign/pkg/simplepresign"
	"github.com/tendant/simple-presign/pkg/simplepresign/objectkey"
	s3storage "github.com/tendant/simple-presign/pkg/simplepresign/storage/s3"
)

// Option applies configuration to a Config instance.
type Option func(*Config) error

// Load constructs a Config by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*Config, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() Config {
	return Config{
		Port:        "8080",
		Environment: "development",
		S3: S3Config{
			Region:       "us-east-1",
			SSEAlgorithm: "AES256",
		},
		Presign: PresignConfig{
			Expires:     time.Hour,
			KeyStrategy: objectkey.StrategySharded,
		},
	}
}

// Config represents configuration for the presign CLI and server
type Config struct {
	Port         string `env:"PORT" env-default:"8080"`
	Environment  string `env:"ENVIRONMENT" env-default:"development"` // development, production, testing
	ApiKeySHA256 string `env:"API_KEY_SHA256"`

	S3      S3Config
	Presign PresignConfig
}

// S3Config holds the bucket and credentials presigned URLs are issued for
type S3Config struct {
	Endpoint        string `env:"AWS_S3_ENDPOINT"`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	SessionToken    string `env:"AWS_SESSION_TOKEN"`
	BucketName      string `env:"AWS_S3_BUCKET"`
	Region          string `env:"AWS_S3_REGION" env-default:"us-east-1"`
	UsePathStyle    bool   `env:"AWS_S3_USE_PATH_STYLE" env-default:"false"`

	EnableSSE    bool   `env:"AWS_S3_ENABLE_SSE" env-default:"false"`
	SSEAlgorithm string `env:"AWS_S3_SSE_ALGORITHM" env-default:"AES256"`
	SSEKMSKeyID  string `env:"AWS_S3_SSE_KMS_KEY_ID"`
}

// PresignConfig controls the presigned URLs themselves
type PresignConfig struct {
	Expires time.Duration `env:"PRESIGN_EXPIRES" env-default:"1h"`
	AppID   string        `env:"PRESIGN_APP_ID"`

	// KeyStrategy names uploads requested without a key: flat, sharded or tenant
	KeyStrategy string `env:"PRESIGN_KEY_STRATEGY" env-default:"sharded"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.S3.BucketName == "" {
		return errors.New("s3 bucket name is required")
	}

	if (c.S3.AccessKeyID == "") != (c.S3.SecretAccessKey == "") {
		return errors.New("s3 access key id and secret access key must be set together")
	}

	if c.S3.EnableSSE && c.S3.SSEAlgorithm != "AES256" && c.S3.SSEAlgorithm != "aws:kms" {
		return fmt.Errorf("sse algorithm must be 'AES256' or 'aws:kms', got '%s'", c.S3.SSEAlgorithm)
	}

	if c.Presign.Expires < simplepresign.MinExpires {
		return fmt.Errorf("presign expires must be at least %s", simplepresign.MinExpires)
	}
	if c.Presign.Expires > simplepresign.MaxExpires {
		return fmt.Errorf("presign expires must not exceed %s", simplepresign.MaxExpires)
	}

	if _, err := objectkey.New(c.Presign.KeyStrategy); err != nil {
		return err
	}

	return nil
}

// KeyGenerator returns the object key generator selected by KeyStrategy
func (c *Config) KeyGenerator() (objectkey.Generator, error) {
	return objectkey.New(c.Presign.KeyStrategy)
}

// BackendConfig converts the configuration into S3 backend settings
func (c *Config) BackendConfig() s3storage.Config {
	return s3storage.Config{
		Region:          c.S3.Region,
		Bucket:          c.S3.BucketName,
		AccessKeyID:     c.S3.AccessKeyID,
		SecretAccessKey: c.S3.SecretAccessKey,
		SessionToken:    c.S3.SessionToken,
		Endpoint:        c.S3.Endpoint,
		UsePathStyle:    c.S3.UsePathStyle,
		PresignDuration: int(c.Presign.Expires / time.Second),
		AppID:           c.Presign.AppID,
		EnableSSE:       c.S3.EnableSSE,
		SSEAlgorithm:    c.S3.SSEAlgorithm,
		SSEKMSKeyID:     c.S3.SSEKMSKeyID,
	}
}

// BuildBackend creates the S3 presigning backend from the configuration
func (c *Config) BuildBackend(opts ...s3storage.Option) (*s3storage.Backend, error) {
	backend, err := s3storage.New(c.BackendConfig(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build s3 backend: %w", err)
	}
	return backend, nil
}
