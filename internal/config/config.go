// Package config resolves ralph's settings from defaults, the YAML config
// file, .env and RALPH_* environment variables, and command-line flags, in
// that order of precedence (later wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/harrison/ralph/internal/models"
)

// DefaultConfigPath is the config file looked up in the working directory.
const DefaultConfigPath = ".ralph/config.yaml"

// HistoryConfig controls the SQLite attempt history.
type HistoryConfig struct {
	// Enabled records every invocation in the history database
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the history database
	DBPath string `yaml:"db_path"`
}

// Config represents ralph configuration options
type Config struct {
	// TaskFile is the JSON task backlog
	TaskFile string

	// ResultsFile is the JSON result history
	ResultsFile string

	// WorkingDir is where the Claude CLI runs
	WorkingDir string

	// MaxIterations caps the number of tasks attempted per run
	MaxIterations int

	// Delay is the pause between tasks
	Delay time.Duration

	// Timeout bounds each Claude invocation
	Timeout time.Duration

	// OnError selects the failure policy (skip, retry, pause)
	OnError models.ErrorPolicy

	// MaxRetries is the retry budget under the retry policy
	MaxRetries int

	// RetryBackoff is the fixed wait between retries
	RetryBackoff time.Duration

	// SkipPermissions passes --dangerously-skip-permissions to the CLI
	SkipPermissions bool

	// ClaudePath is the CLI binary
	ClaudePath string

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string

	// LogDir is the directory where run logs are written
	LogDir string

	// History contains attempt history configuration
	History HistoryConfig

	// ProjectRoot is the directory relative paths were resolved against.
	// Set by Resolve.
	ProjectRoot string
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		TaskFile:      "prd.json",
		ResultsFile:   "ralph_results.json",
		WorkingDir:    ".",
		MaxIterations: 100,
		Delay:         time.Second,
		Timeout:       300 * time.Second,
		OnError:       models.PolicySkip,
		MaxRetries:    3,
		RetryBackoff:  time.Second,
		ClaudePath:    "claude",
		LogLevel:      "info",
		LogDir:        ".ralph/logs",
		History: HistoryConfig{
			Enabled: true,
			DBPath:  ".ralph/history.db",
		},
	}
}

// yamlConfig mirrors the file layout. Pointers tell "absent" from zero.
type yamlConfig struct {
	TaskFile        *string `yaml:"task_file"`
	ResultsFile     *string `yaml:"results_file"`
	WorkingDir      *string `yaml:"working_dir"`
	MaxIterations   *int    `yaml:"max_iterations"`
	Delay           *string `yaml:"delay"`
	Timeout         *string `yaml:"timeout"`
	OnError         *string `yaml:"on_error"`
	MaxRetries      *int    `yaml:"max_retries"`
	RetryBackoff    *string `yaml:"retry_backoff"`
	SkipPermissions *bool   `yaml:"skip_permissions"`
	ClaudePath      *string `yaml:"claude_path"`
	LogLevel        *string `yaml:"log_level"`
	LogDir          *string `yaml:"log_dir"`
	History         *struct {
		Enabled *bool   `yaml:"enabled"`
		DBPath  *string `yaml:"db_path"`
	} `yaml:"history"`
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.applyYAML(raw); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyYAML(raw yamlConfig) error {
	setString(&c.TaskFile, raw.TaskFile)
	setString(&c.ResultsFile, raw.ResultsFile)
	setString(&c.WorkingDir, raw.WorkingDir)
	setString(&c.ClaudePath, raw.ClaudePath)
	setString(&c.LogLevel, raw.LogLevel)
	setString(&c.LogDir, raw.LogDir)
	if raw.MaxIterations != nil {
		c.MaxIterations = *raw.MaxIterations
	}
	if raw.MaxRetries != nil {
		c.MaxRetries = *raw.MaxRetries
	}
	if raw.SkipPermissions != nil {
		c.SkipPermissions = *raw.SkipPermissions
	}

	durations := []struct {
		key string
		raw *string
		dst *time.Duration
	}{
		{"delay", raw.Delay, &c.Delay},
		{"timeout", raw.Timeout, &c.Timeout},
		{"retry_backoff", raw.RetryBackoff, &c.RetryBackoff},
	}
	for _, d := range durations {
		if d.raw == nil {
			continue
		}
		parsed, err := ParseDuration(*d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s format %q: %w", d.key, *d.raw, err)
		}
		*d.dst = parsed
	}

	if raw.OnError != nil {
		policy, err := models.ParseErrorPolicy(*raw.OnError)
		if err != nil {
			return err
		}
		c.OnError = policy
	}

	if raw.History != nil {
		if raw.History.Enabled != nil {
			c.History.Enabled = *raw.History.Enabled
		}
		// Explicitly set db_path, even if empty string
		setString(&c.History.DBPath, raw.History.DBPath)
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// Load reads the config file at path, then applies envDir/.env and the
// process environment. Process variables win over .env entries.
func Load(path, envDir string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	dotenv, err := readDotEnv(envDir)
	if err != nil {
		return nil, err
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readDotEnv(dir string) (map[string]string, error) {
	if dir == "" {
		return nil, nil
	}
	path := filepath.Join(dir, ".env")
	vars, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return vars, nil
}

// Environment variable names.
const (
	EnvTaskFile        = "RALPH_TASK_FILE"
	EnvResultsFile     = "RALPH_RESULTS_FILE"
	EnvWorkingDir      = "RALPH_WORKING_DIR"
	EnvMaxIterations   = "RALPH_MAX_ITERATIONS"
	EnvDelay           = "RALPH_DELAY"
	EnvTimeout         = "RALPH_TIMEOUT"
	EnvOnError         = "RALPH_ON_ERROR"
	EnvMaxRetries      = "RALPH_MAX_RETRIES"
	EnvRetryBackoff    = "RALPH_RETRY_BACKOFF"
	EnvSkipPermissions = "RALPH_SKIP_PERMISSIONS"
	EnvClaudePath      = "RALPH_CLAUDE_PATH"
	EnvLogLevel        = "RALPH_LOG_LEVEL"
	EnvLogDir          = "RALPH_LOG_DIR"
	EnvHistoryEnabled  = "RALPH_HISTORY_ENABLED"
	EnvHistoryDBPath   = "RALPH_HISTORY_DB_PATH"
)

// ApplyEnv overrides settings from RALPH_* variables found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		EnvTaskFile:      &c.TaskFile,
		EnvResultsFile:   &c.ResultsFile,
		EnvWorkingDir:    &c.WorkingDir,
		EnvClaudePath:    &c.ClaudePath,
		EnvLogLevel:      &c.LogLevel,
		EnvLogDir:        &c.LogDir,
		EnvHistoryDBPath: &c.History.DBPath,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		EnvMaxIterations: &c.MaxIterations,
		EnvMaxRetries:    &c.MaxRetries,
	}
	for key, dst := range ints {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s: invalid integer %q", key, v)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		EnvDelay:        &c.Delay,
		EnvTimeout:      &c.Timeout,
		EnvRetryBackoff: &c.RetryBackoff,
	}
	for key, dst := range durations {
		if v, ok := lookup(key); ok {
			d, err := ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}

	bools := map[string]*bool{
		EnvSkipPermissions: &c.SkipPermissions,
		EnvHistoryEnabled:  &c.History.Enabled,
	}
	for key, dst := range bools {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s: invalid boolean %q", key, v)
			}
			*dst = b
		}
	}

	if v, ok := lookup(EnvOnError); ok {
		policy, err := models.ParseErrorPolicy(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvOnError, err)
		}
		c.OnError = policy
	}
	return nil
}

// ParseDuration accepts Go duration strings ("90s", "5m") and bare numbers,
// which are read as seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}

// Overrides holds command-line values. Nil fields were not given.
type Overrides struct {
	TaskFile        *string
	ResultsFile     *string
	WorkingDir      *string
	MaxIterations   *int
	Delay           *time.Duration
	Timeout         *time.Duration
	OnError         *models.ErrorPolicy
	MaxRetries      *int
	RetryBackoff    *time.Duration
	SkipPermissions *bool
	ClaudePath      *string
	LogLevel        *string
	LogDir          *string
	NoHistory       *bool
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
func (c *Config) MergeWithFlags(o Overrides) {
	setString(&c.TaskFile, o.TaskFile)
	setString(&c.ResultsFile, o.ResultsFile)
	setString(&c.WorkingDir, o.WorkingDir)
	setString(&c.ClaudePath, o.ClaudePath)
	setString(&c.LogLevel, o.LogLevel)
	setString(&c.LogDir, o.LogDir)
	if o.MaxIterations != nil {
		c.MaxIterations = *o.MaxIterations
	}
	if o.Delay != nil {
		c.Delay = *o.Delay
	}
	if o.Timeout != nil {
		c.Timeout = *o.Timeout
	}
	if o.OnError != nil {
		c.OnError = *o.OnError
	}
	if o.MaxRetries != nil {
		c.MaxRetries = *o.MaxRetries
	}
	if o.RetryBackoff != nil {
		c.RetryBackoff = *o.RetryBackoff
	}
	if o.SkipPermissions != nil {
		c.SkipPermissions = *o.SkipPermissions
	}
	if o.NoHistory != nil && *o.NoHistory {
		c.History.Enabled = false
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	run := c.RunConfig()
	if err := run.Validate(); err != nil {
		return err
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.ClaudePath == "" {
		return errors.New("claude_path cannot be empty")
	}
	if c.History.Enabled && c.History.DBPath == "" {
		return errors.New("history.db_path cannot be empty when history is enabled")
	}
	return nil
}

// RunConfig returns the per-run settings consumed by the executor.
func (c *Config) RunConfig() models.RunConfig {
	return models.RunConfig{
		TaskFile:        c.TaskFile,
		ResultsFile:     c.ResultsFile,
		WorkingDir:      c.WorkingDir,
		MaxIterations:   c.MaxIterations,
		Delay:           c.Delay,
		Timeout:         c.Timeout,
		RetryBackoff:    c.RetryBackoff,
		OnError:         c.OnError,
		MaxRetries:      c.MaxRetries,
		SkipPermissions: c.SkipPermissions,
	}
}
