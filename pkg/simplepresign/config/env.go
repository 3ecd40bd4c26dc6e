package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// WithEnv applies environment variable overrides.
//
// Environment variable mapping:
//
//	PORT, ENVIRONMENT, API_KEY_SHA256 - server settings
//	AWS_S3_BUCKET, AWS_S3_REGION, AWS_S3_ENDPOINT, AWS_S3_USE_PATH_STYLE - target bucket
//	AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, AWS_SESSION_TOKEN - static credentials
//	AWS_S3_ENABLE_SSE, AWS_S3_SSE_ALGORITHM, AWS_S3_SSE_KMS_KEY_ID - upload encryption
//	PRESIGN_EXPIRES (e.g. "15m"), PRESIGN_APP_ID - presigned URL defaults
//
// Values already set by earlier options are kept unless the variable is set.
func WithEnv() Option {
	return func(c *Config) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		return nil
	}
}

// WithDotEnv loads variables from the given files into the process environment
// before WithEnv reads them. Without arguments it loads .env and ignores a
// missing file.
func WithDotEnv(files ...string) Option {
	return func(c *Config) error {
		if len(files) == 0 {
			if err := godotenv.Load(); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					slog.Debug("No .env file found, using environment", "err", err)
					return nil
				}
				return fmt.Errorf("failed to load .env: %w", err)
			}
			return nil
		}
		if err := godotenv.Load(files...); err != nil {
			return fmt.Errorf("failed to load env files %v: %w", files, err)
		}
		return nil
	}
}

// Usage returns a description of the environment variables, for --help output
func Usage() string {
	var cfg Config
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return text
}
