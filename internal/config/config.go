// Package config loads mediaparser's runtime settings from environment
// variables (and, optionally, a config file), following the defaults-then-
// override viper pattern used elsewhere in the stack.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidWorkerThreads     = errors.New("worker threads must be positive")
	ErrInvalidMinValidYear      = errors.New("min valid year must be positive")
	ErrInvalidBatchCommitSize   = errors.New("batch commit size must be positive")
	ErrInvalidErrorThreshold    = errors.New("error threshold must be in [0, 1]")
	ErrInvalidMaxConcurrentProb = errors.New("max concurrent probes must be positive")
	ErrMissingOutputDir         = errors.New("output directory must be set")
)

// Default configuration values, per spec.md's environment table (§4.5,
// §4.7, §5).
const (
	defaultTimezone            = "UTC"
	defaultMinValidYear        = 2000
	defaultBatchCommitSize     = 10
	defaultErrorThreshold      = 0.10
	defaultMaxConcurrentProbes = 4
)

// Settings holds every tunable mediaparser reads from its environment.
type Settings struct {
	OutputDir           string  `mapstructure:"output_dir"`
	Timezone            string  `mapstructure:"timezone"`
	WorkerThreads       int     `mapstructure:"worker_threads"`
	MinValidYear        int     `mapstructure:"min_valid_year"`
	BatchCommitSize     int     `mapstructure:"batch_commit_size"`
	ErrorThreshold      float64 `mapstructure:"error_threshold"`
	MaxConcurrentProbes int     `mapstructure:"max_concurrent_probes"`

	StoreDBPath string `mapstructure:"store_db_path"`
	QueueDBPath string `mapstructure:"queue_db_path"`

	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	LogJSON      bool   `mapstructure:"log_json"`
	LogLevel     string `mapstructure:"log_level"`
}

// Load reads settings from environment variables prefixed MEDIAPARSER_ (and
// an optional config file at configPath, if non-empty), falling back to the
// defaults spec.md names. OUTPUT_DIR has no default — it must be supplied.
func Load(configPath string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("MEDIAPARSER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindEnv(v)

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validate(&s); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &s, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("timezone", defaultTimezone)
	v.SetDefault("worker_threads", runtime.NumCPU())
	v.SetDefault("min_valid_year", defaultMinValidYear)
	v.SetDefault("batch_commit_size", defaultBatchCommitSize)
	v.SetDefault("error_threshold", defaultErrorThreshold)
	v.SetDefault("max_concurrent_probes", defaultMaxConcurrentProbes)
	v.SetDefault("store_db_path", "mediaparser.db")
	v.SetDefault("queue_db_path", "queue.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// bindEnv makes each field readable both via MEDIAPARSER_OUTPUT_DIR and the
// bare names spec.md's environment table uses (OUTPUT_DIR, TIMEZONE, ...),
// so a deployment can set either.
func bindEnv(v *viper.Viper) {
	pairs := map[string]string{
		"output_dir":            "OUTPUT_DIR",
		"timezone":              "TIMEZONE",
		"worker_threads":        "WORKER_THREADS",
		"min_valid_year":        "MIN_VALID_YEAR",
		"batch_commit_size":     "BATCH_COMMIT_SIZE",
		"error_threshold":       "ERROR_THRESHOLD",
		"max_concurrent_probes": "MAX_CONCURRENT_PROBES",
	}
	for key, bareEnv := range pairs {
		_ = v.BindEnv(key, "MEDIAPARSER_"+strings.ToUpper(key), bareEnv)
	}
}

func validate(s *Settings) error {
	if s.OutputDir == "" {
		return ErrMissingOutputDir
	}
	if s.WorkerThreads <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkerThreads, s.WorkerThreads)
	}
	if s.MinValidYear <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMinValidYear, s.MinValidYear)
	}
	if s.BatchCommitSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBatchCommitSize, s.BatchCommitSize)
	}
	if s.ErrorThreshold < 0 || s.ErrorThreshold > 1 {
		return fmt.Errorf("%w: %f", ErrInvalidErrorThreshold, s.ErrorThreshold)
	}
	if s.MaxConcurrentProbes <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxConcurrentProb, s.MaxConcurrentProbes)
	}
	return nil
}
