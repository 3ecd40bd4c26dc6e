package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tendant/simple-presign/pkg/simplepresign/config"
	s3storage "github.com/tendant/simple-presign/pkg/simplepresign/storage/s3"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand
type globalFlags struct {
	envFile   string
	bucket    string
	region    string
	endpoint  string
	pathStyle bool
	expires   time.Duration
	startTime string
	output    string
	verbose   bool
}

func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "presign",
		Short: "Generate presigned S3 URLs",
		Long: `Generate presigned URLs for Amazon S3 and S3-compatible services.

The URL carries its SigV4 signature in the query string and can be used by
anyone holding it until it expires. Settings are read from the environment
(and an optional .env file) and can be overridden with flags.

Environment:
` + config.Usage(),
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if flags.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.envFile, "env-file", "", "load environment variables from this file (default: .env if present)")
	pf.StringVarP(&flags.bucket, "bucket", "b", "", "bucket name (env AWS_S3_BUCKET)")
	pf.StringVarP(&flags.region, "region", "r", "", "bucket region (env AWS_S3_REGION)")
	pf.StringVar(&flags.endpoint, "endpoint", "", "S3-compatible endpoint, e.g. http://localhost:9000 (env AWS_S3_ENDPOINT)")
	pf.BoolVar(&flags.pathStyle, "path-style", false, "use path-style addressing (env AWS_S3_USE_PATH_STYLE)")
	pf.DurationVarP(&flags.expires, "expires", "e", 0, "how long the URL stays valid, at most 168h (env PRESIGN_EXPIRES)")
	pf.StringVar(&flags.startTime, "start-time", "", "RFC 3339 time the signature is anchored to (default: now)")
	pf.StringVarP(&flags.output, "output", "o", "text", "output format: text or json")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(NewGetCommand(flags))
	rootCmd.AddCommand(NewPutCommand(flags))
	rootCmd.AddCommand(NewHeadCommand(flags))
	rootCmd.AddCommand(NewDeleteCommand(flags))

	return rootCmd
}

// loadConfig layers the environment and then explicitly set flags
func loadConfig(cmd *cobra.Command, flags *globalFlags) (*config.Config, error) {
	var dotEnv config.Option
	if flags.envFile != "" {
		dotEnv = config.WithDotEnv(flags.envFile)
	} else {
		dotEnv = config.WithDotEnv()
	}
	opts := []config.Option{dotEnv, config.WithEnv()}

	changed := cmd.Flags().Changed
	if changed("bucket") || changed("region") {
		opts = append(opts, func(c *config.Config) error {
			if flags.bucket != "" {
				c.S3.BucketName = flags.bucket
			}
			if flags.region != "" {
				c.S3.Region = flags.region
			}
			return nil
		})
	}
	if changed("endpoint") || changed("path-style") {
		opts = append(opts, func(c *config.Config) error {
			if changed("endpoint") {
				c.S3.Endpoint = flags.endpoint
			}
			if changed("path-style") {
				c.S3.UsePathStyle = flags.pathStyle
			}
			return nil
		})
	}
	if changed("expires") {
		opts = append(opts, config.WithExpires(flags.expires))
	}

	return config.Load(opts...)
}

// newBackend builds the S3 backend from configuration and flags
func newBackend(cmd *cobra.Command, flags *globalFlags) (*s3storage.Backend, error) {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	slog.Debug("Loaded configuration", "bucket", cfg.S3.BucketName, "region", cfg.S3.Region,
		"endpoint", cfg.S3.Endpoint, "expires", cfg.Presign.Expires)
	return cfg.BuildBackend(s3storage.WithLogger(slog.Default()))
}

// presignOptions applies --start-time
func presignOptions(flags *globalFlags) (func(*s3storage.PresignOptions), error) {
	if flags.startTime == "" {
		return func(*s3storage.PresignOptions) {}, nil
	}
	start, err := time.Parse(time.RFC3339, flags.startTime)
	if err != nil {
		return nil, fmt.Errorf("invalid --start-time: %w", err)
	}
	return func(o *s3storage.PresignOptions) {
		o.StartTime = start
	}, nil
}
