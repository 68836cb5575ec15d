package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nitro/iiifviewer/internal"
)

const version = "0.1.0"

func main() {
	if err := fang.Execute(
		context.Background(),
		newRootCmd(),
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}

// config is read from the environment, every value can be overridden by a flag.
type config struct {
	logLevel            string
	urlSigningSecret    string
	enableDatadog       bool
	storageBucketRegion string
	redisURL            string
	redisUsername       string
	redisPassword       string
	sessionSecret       string
	sessionTTL          time.Duration
	addr                string
	language            string
	stackConcurrency    int
}

func newRootCmd() *cobra.Command {
	var cfg config
	cmd := &cobra.Command{
		Use:   "iiifviewer",
		Short: "Viewer for IIIF Presentation v3 manifests",
		Long: `iiifviewer displays the canvases of IIIF Presentation v3 manifests through the IIIF Image API.

It resolves the painted images, the choice alternatives, the annotation overlays and the regions of interest,
either from an interactive shell or as a HTTP service.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// The .env values only fill the variables that are not set.
			_ = godotenv.Load()
			return cfg.load(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfg.logLevel, "log-level", "", "log level (env LOG_LEVEL, default info)")
	flags.StringVar(&cfg.storageBucketRegion, "storage-bucket-region", "",
		"bucket regions of the s3:// manifests, 'region:bucket1,bucket2;region2:bucket3' (env STORAGE_BUCKET_REGION)")
	flags.StringVar(&cfg.language, "language", "", "preferred language of the labels (env LANGUAGE, default en)")
	flags.BoolVar(&cfg.enableDatadog, "enable-datadog", false, "enable the Datadog tracer (env ENABLE_DATADOG)")

	cmd.AddCommand(newServeCmd(&cfg), newShellCmd(&cfg), newInspectCmd(&cfg))
	return cmd
}

// load fills the values not given as flags from the environment.
func (cfg *config) load(cmd *cobra.Command) error {
	flags := cmd.Flags()
	env := func(flag, name string, target *string) {
		if !flags.Changed(flag) {
			*target = os.Getenv(name)
		}
	}
	env("log-level", "LOG_LEVEL", &cfg.logLevel)
	env("storage-bucket-region", "STORAGE_BUCKET_REGION", &cfg.storageBucketRegion)
	env("language", "LANGUAGE", &cfg.language)
	cfg.urlSigningSecret = os.Getenv("URL_SIGNING_SECRET")
	cfg.redisURL = os.Getenv("REDIS_URL")
	cfg.redisUsername = os.Getenv("REDIS_USERNAME")
	cfg.redisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.sessionSecret = os.Getenv("SESSION_SECRET")
	if !flags.Changed("enable-datadog") {
		cfg.enableDatadog = os.Getenv("ENABLE_DATADOG") == "true"
	}

	if cfg.addr == "" {
		cfg.addr = os.Getenv("ADDR")
	}
	if cfg.sessionTTL == 0 {
		cfg.sessionTTL = time.Hour
		if raw := os.Getenv("SESSION_TTL"); raw != "" {
			ttl, err := time.ParseDuration(raw)
			if err != nil {
				return fmt.Errorf("fail to parse the environment variable 'SESSION_TTL': %w", err)
			}
			cfg.sessionTTL = ttl
		}
	}
	return nil
}

func (cfg config) logger(w io.Writer) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.logLevel != "" {
		var err error
		level, err = zerolog.ParseLevel(cfg.logLevel)
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("invalid log level '%s': %w", cfg.logLevel, err)
		}
	}
	return zerolog.New(w).With().Timestamp().Caller().Logger().Level(level), nil
}

func (cfg config) client(logger zerolog.Logger) (*internal.Client, error) {
	var (
		storageBucketRegion map[string]string
		err                 error
	)
	if cfg.storageBucketRegion != "" {
		storageBucketRegion, err = parseStorageBucketRegion(cfg.storageBucketRegion)
		if err != nil {
			return nil, fmt.Errorf("fail to parse the storage bucket region payload: %w", err)
		}
	}
	return &internal.Client{
		Logger:              logger,
		URLSigningSecret:    cfg.urlSigningSecret,
		EnableDatadog:       cfg.enableDatadog,
		StorageBucketRegion: storageBucketRegion,
		RedisURL:            cfg.redisURL,
		RedisUsername:       cfg.redisUsername,
		RedisPassword:       cfg.redisPassword,
		SessionSecret:       cfg.sessionSecret,
		SessionTTL:          cfg.sessionTTL,
		Addr:                cfg.addr,
		StackConcurrency:    cfg.stackConcurrency,
	}, nil
}

func parseStorageBucketRegion(payload string) (map[string]string, error) {
	result := make(map[string]string)
	for _, segment := range strings.Split(payload, ";") {
		fragments := strings.Split(segment, ":")
		if len(fragments) != 2 {
			return nil, errors.New("invalid payload")
		}

		region := strings.TrimSpace(fragments[0])
		for _, bucket := range strings.Split(fragments[1], ",") {
			bucket = strings.TrimSpace(bucket)
			if bucket == "" {
				return nil, errors.New("expected at least one bucket")
			}
			result[bucket] = region
		}
	}
	if len(result) == 0 {
		return nil, errors.New("fail to parse the storage bucket region")
	}
	return result, nil
}
