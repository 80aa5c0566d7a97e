package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned for settings that would make a run meaningless.
var ErrInvalidConfig = errors.New("invalid configuration")

// Duration reads "5s"-style strings from YAML and TOML files.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}

type GroupingConfig struct {
	// Threshold is the minimum fuzzy score for a file to join a name group.
	Threshold int `yaml:"threshold" toml:"threshold"`
}

type HashingConfig struct {
	Algorithm  string `yaml:"algorithm" toml:"algorithm"`
	CrossGroup bool   `yaml:"cross_group" toml:"cross_group"`
	// CachePath enables the persistent digest cache when set.
	CachePath string `yaml:"cache_path" toml:"cache_path"`
}

type SimilarityConfig struct {
	Enabled     bool    `yaml:"enabled" toml:"enabled"`
	Threshold   float64 `yaml:"threshold" toml:"threshold"`
	MaxFileSize int64   `yaml:"max_file_size" toml:"max_file_size"`
	// ExcludeDuplicates drops all but the first member of each duplicate set before scoring.
	ExcludeDuplicates bool `yaml:"exclude_duplicates" toml:"exclude_duplicates"`
}

type IOConfig struct {
	LocalTimeout         Duration `yaml:"local_timeout" toml:"local_timeout"`
	RemoteTimeout        Duration `yaml:"remote_timeout" toml:"remote_timeout"`
	MaxRetries           int      `yaml:"max_retries" toml:"max_retries"`
	RetryDelay           Duration `yaml:"retry_delay" toml:"retry_delay"`
	RemoteReadsPerSecond float64  `yaml:"remote_reads_per_second" toml:"remote_reads_per_second"`
}

type DiscoveryConfig struct {
	Excludes []string `yaml:"excludes" toml:"excludes"`
	Includes []string `yaml:"includes" toml:"includes"`
	MaxDepth int      `yaml:"max_depth" toml:"max_depth"`
	MaxFiles int      `yaml:"max_files" toml:"max_files"`
	// MaxFileSize excludes larger files from the whole run; 0 means no limit.
	MaxFileSize int64 `yaml:"max_file_size" toml:"max_file_size"`
	UseFd       bool  `yaml:"use_fd" toml:"use_fd"`
}

type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
	File  string `yaml:"file" toml:"file"`
}

// Config holds every tunable of an analysis run.
type Config struct {
	Grouping   GroupingConfig   `yaml:"grouping" toml:"grouping"`
	Hashing    HashingConfig    `yaml:"hashing" toml:"hashing"`
	Similarity SimilarityConfig `yaml:"similarity" toml:"similarity"`
	IO         IOConfig         `yaml:"io" toml:"io"`
	Discovery  DiscoveryConfig  `yaml:"discovery" toml:"discovery"`
	Log        LogConfig        `yaml:"log" toml:"log"`
	// Workers bounds CPU-bound concurrency; 0 means one per CPU.
	Workers int `yaml:"workers" toml:"workers"`
	// Parallel runs duplicate detection and similarity scoring at the same time.
	// Similarity then cannot reuse known duplicates.
	Parallel bool `yaml:"parallel" toml:"parallel"`
}

// Default returns the settings used when no file or flag overrides them.
func Default() Config {
	return Config{
		Grouping: GroupingConfig{Threshold: 60},
		Hashing:  HashingConfig{Algorithm: "sha256", CrossGroup: true},
		Similarity: SimilarityConfig{
			Enabled:     true,
			Threshold:   0.7,
			MaxFileSize: 100 * 1024,
		},
		IO: IOConfig{
			LocalTimeout:         Duration{5 * time.Second},
			RemoteTimeout:        Duration{30 * time.Second},
			MaxRetries:           3,
			RetryDelay:           Duration{5 * time.Second},
			RemoteReadsPerSecond: 20,
		},
		Discovery: DiscoveryConfig{UseFd: true},
		Log:       LogConfig{Level: "info"},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string
	if c.Grouping.Threshold < 0 {
		problems = append(problems, "grouping.threshold must not be negative")
	}
	switch c.Hashing.Algorithm {
	case "sha256", "blake3":
	default:
		problems = append(problems, fmt.Sprintf("hashing.algorithm %q is not one of sha256, blake3", c.Hashing.Algorithm))
	}
	if c.Similarity.Threshold <= 0 || c.Similarity.Threshold > 1 {
		problems = append(problems, "similarity.threshold must be greater than 0 and at most 1")
	}
	if c.Similarity.MaxFileSize <= 0 {
		problems = append(problems, "similarity.max_file_size must be positive")
	}
	if c.IO.LocalTimeout.Duration <= 0 || c.IO.RemoteTimeout.Duration <= 0 {
		problems = append(problems, "io timeouts must be positive")
	}
	if c.IO.MaxRetries < 0 {
		problems = append(problems, "io.max_retries must not be negative")
	}
	if c.IO.RetryDelay.Duration < 0 {
		problems = append(problems, "io.retry_delay must not be negative")
	}
	if c.IO.RemoteReadsPerSecond < 0 {
		problems = append(problems, "io.remote_reads_per_second must not be negative")
	}
	if c.Discovery.MaxDepth < 0 || c.Discovery.MaxFiles < 0 || c.Discovery.MaxFileSize < 0 {
		problems = append(problems, "discovery limits must not be negative")
	}
	if c.Workers < 0 {
		problems = append(problems, "workers must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Load overlays the YAML or TOML file at path onto the defaults.
// Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := cfg.LoadFile(path); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile overlays the file at path onto c; keys absent from the file keep their value.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("parsing YAML config %s: %w", path, err)
		}
	case ".toml":
		decoder := toml.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(c); err != nil {
			return fmt.Errorf("parsing TOML config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("%w: unsupported config file extension %q", ErrInvalidConfig, filepath.Ext(path))
	}
	return nil
}

// LoadEnv loads a .env file when present and applies FERRET_* overrides from the environment.
func (c *Config) LoadEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	return c.ApplyEnv(os.LookupEnv)
}

// ApplyEnv applies FERRET_* overrides read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("FERRET_LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup("FERRET_LOG_FILE"); ok && v != "" {
		c.Log.File = v
	}
	if v, ok := lookup("FERRET_HASH_ALGORITHM"); ok && v != "" {
		c.Hashing.Algorithm = strings.ToLower(v)
	}
	if v, ok := lookup("FERRET_HASH_CACHE"); ok {
		c.Hashing.CachePath = v
	}
	if v, ok := lookup("FERRET_MAX_COMPARE_SIZE"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: FERRET_MAX_COMPARE_SIZE: %v", ErrInvalidConfig, err)
		}
		c.Similarity.MaxFileSize = n
	}
	if v, ok := lookup("FERRET_WORKERS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: FERRET_WORKERS: %v", ErrInvalidConfig, err)
		}
		c.Workers = n
	}
	return nil
}
