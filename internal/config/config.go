// Package config defines the environment-driven configuration surface for
// the retrieval service, following the teacher's `urfave/cli/v2`
// flags-with-EnvVars pattern.
package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

// Config is the fully-resolved set of §6 "Configuration (environment)"
// variables.
type Config struct {
	ProcessorMode          string
	DBPath                 string
	SourcePath             string
	DownloadPath           string
	MaxWorkers             int
	S3FallbackEnabled      bool
	LustreEnabled          bool
	FileProcessingTimeout  time.Duration
	MaxFilesPerQuery       int
	MaxSizeMBPerQuery      float64
	MinFreeSpaceGBBuffer   float64
	S3RetryAttempts        int
	S3RetryBackoffSeconds  time.Duration
	S3ConnectTimeout       time.Duration
	S3ReadTimeout          time.Duration
	S3ProgressStep         int
	APIKey                 string
	S3OnlyProducts         []string
	GOES19OperationalDate  time.Time
	Host                   string
	Port                   int
}

// LoadDotEnv loads a local .env file if present, mirroring
// original_source/settings.py's env_file=".env" convenience. Missing files
// are not an error.
func LoadDotEnv(path string) {
	_ = godotenv.Load(path)
}

// Flags returns the cli.Flag set for every §6 configuration variable, each
// bound to the environment variable of the same name (DB_PATH,
// MAX_WORKERS, ...); only host and port use GOES_RETRIEVAL_* names.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "host", Value: "0.0.0.0", EnvVars: []string{"GOES_RETRIEVAL_HOST"}},
		&cli.IntFlag{Name: "port", Value: 8080, EnvVars: []string{"GOES_RETRIEVAL_PORT"}},
		&cli.StringFlag{Name: "processor-mode", Value: "real", EnvVars: []string{"PROCESSOR_MODE"},
			Usage: "real|simulador"},
		&cli.StringFlag{Name: "db-path", Value: "./data/consultas.db", EnvVars: []string{"DB_PATH"}},
		&cli.StringFlag{Name: "source-path", Value: "./data/source", EnvVars: []string{"SOURCE_PATH"}},
		&cli.StringFlag{Name: "download-path", Value: "./data/downloads", EnvVars: []string{"DOWNLOAD_PATH"}},
		&cli.IntFlag{Name: "max-workers", Value: 8, EnvVars: []string{"MAX_WORKERS"}},
		&cli.BoolFlag{Name: "s3-fallback-enabled", Value: true, EnvVars: []string{"S3_FALLBACK_ENABLED"}},
		&cli.BoolFlag{Name: "lustre-enabled", Value: true, EnvVars: []string{"LUSTRE_ENABLED"}},
		&cli.IntFlag{Name: "file-processing-timeout-seconds", Value: 120, EnvVars: []string{"FILE_PROCESSING_TIMEOUT_SECONDS"}},
		&cli.IntFlag{Name: "max-files-per-query", Value: 5000, EnvVars: []string{"MAX_FILES_PER_QUERY"}},
		&cli.Float64Flag{Name: "max-size-mb-per-query", Value: 50_000, EnvVars: []string{"MAX_SIZE_MB_PER_QUERY"}},
		&cli.Float64Flag{Name: "min-free-space-gb-buffer", Value: 10, EnvVars: []string{"MIN_FREE_SPACE_GB_BUFFER"}},
		&cli.IntFlag{Name: "s3-retry-attempts", Value: 3, EnvVars: []string{"S3_RETRY_ATTEMPTS"}},
		&cli.IntFlag{Name: "s3-retry-backoff-seconds", Value: 2, EnvVars: []string{"S3_RETRY_BACKOFF_SECONDS"}},
		&cli.DurationFlag{Name: "s3-connect-timeout", Value: 5 * time.Second, EnvVars: []string{"S3_CONNECT_TIMEOUT"}},
		&cli.DurationFlag{Name: "s3-read-timeout", Value: 30 * time.Second, EnvVars: []string{"S3_READ_TIMEOUT"}},
		&cli.IntFlag{Name: "s3-progress-step", Value: 10, EnvVars: []string{"S3_PROGRESS_STEP"}},
		&cli.StringFlag{Name: "api-key", EnvVars: []string{"API_KEY"}},
		&cli.StringSliceFlag{Name: "s3-only-products", EnvVars: []string{"S3_ONLY_PRODUCTS"},
			Usage: "comma-separated product codes fetched exclusively from S3, never from the local archive store"},
		&cli.StringFlag{Name: "goes19-operational-date", Value: "2025-04-01", EnvVars: []string{"GOES19_OPERATIONAL_DATE"},
			Usage: "YYYY-MM-DD date GOES-19 took over the GOES-EAST operational alias"},
	}
}

// FromCLI resolves a Config from a populated *cli.Context.
func FromCLI(c *cli.Context) (Config, error) {
	cutover, err := time.Parse("2006-01-02", c.String("goes19-operational-date"))
	if err != nil {
		return Config{}, err
	}

	return Config{
		Host:                  c.String("host"),
		Port:                  c.Int("port"),
		ProcessorMode:         c.String("processor-mode"),
		DBPath:                c.String("db-path"),
		SourcePath:            c.String("source-path"),
		DownloadPath:          c.String("download-path"),
		MaxWorkers:            c.Int("max-workers"),
		S3FallbackEnabled:     c.Bool("s3-fallback-enabled"),
		LustreEnabled:         c.Bool("lustre-enabled"),
		FileProcessingTimeout: time.Duration(c.Int("file-processing-timeout-seconds")) * time.Second,
		MaxFilesPerQuery:      c.Int("max-files-per-query"),
		MaxSizeMBPerQuery:     c.Float64("max-size-mb-per-query"),
		MinFreeSpaceGBBuffer:  c.Float64("min-free-space-gb-buffer"),
		S3RetryAttempts:       c.Int("s3-retry-attempts"),
		S3RetryBackoffSeconds: time.Duration(c.Int("s3-retry-backoff-seconds")) * time.Second,
		S3ConnectTimeout:      c.Duration("s3-connect-timeout"),
		S3ReadTimeout:         c.Duration("s3-read-timeout"),
		S3ProgressStep:        c.Int("s3-progress-step"),
		APIKey:                c.String("api-key"),
		S3OnlyProducts:        c.StringSlice("s3-only-products"),
		GOES19OperationalDate: cutover,
	}, nil
}
