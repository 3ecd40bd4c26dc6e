package config

import (
	"errors"
	"time"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *Config) error {
		if port == "" {
			return errors.New("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the runtime environment
func WithEnvironment(env string) Option {
	return func(c *Config) error {
		c.Environment = env
		return nil
	}
}

// WithAPIKeySHA256 sets the hashed API key the server accepts
func WithAPIKeySHA256(hash string) Option {
	return func(c *Config) error {
		c.ApiKeySHA256 = hash
		return nil
	}
}

// WithBucket sets the bucket and region presigned URLs target. An empty region
// keeps the current one.
func WithBucket(bucket, region string) Option {
	return func(c *Config) error {
		if bucket == "" {
			return errors.New("bucket cannot be empty")
		}
		c.S3.BucketName = bucket
		if region != "" {
			c.S3.Region = region
		}
		return nil
	}
}

// WithEndpoint points the backend at an S3-compatible service such as MinIO
func WithEndpoint(endpoint string, usePathStyle bool) Option {
	return func(c *Config) error {
		c.S3.Endpoint = endpoint
		c.S3.UsePathStyle = usePathStyle
		return nil
	}
}

// WithCredentials sets static credentials. Without them the default AWS
// credential chain is used.
func WithCredentials(accessKeyID, secretAccessKey, sessionToken string) Option {
	return func(c *Config) error {
		c.S3.AccessKeyID = accessKeyID
		c.S3.SecretAccessKey = secretAccessKey
		c.S3.SessionToken = sessionToken
		return nil
	}
}

// WithSSE enables server-side encryption for presigned uploads
func WithSSE(algorithm, kmsKeyID string) Option {
	return func(c *Config) error {
		c.S3.EnableSSE = true
		c.S3.SSEAlgorithm = algorithm
		c.S3.SSEKMSKeyID = kmsKeyID
		return nil
	}
}

// WithExpires sets the default lifetime of presigned URLs
func WithExpires(d time.Duration) Option {
	return func(c *Config) error {
		c.Presign.Expires = d
		return nil
	}
}

// WithAppID sets the application id reported in the user agent
func WithAppID(appID string) Option {
	return func(c *Config) error {
		c.Presign.AppID = appID
		return nil
	}
}

// WithKeyStrategy selects how uploads without an object key are named
func WithKeyStrategy(strategy string) Option {
	return func(c *Config) error {
		c.Presign.KeyStrategy = strategy
		return nil
	}
}
