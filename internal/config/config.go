package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir   string `toml:"work_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	StateDir  string `toml:"state_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// TierOverride replaces individual classifier thresholds for one tier. Unset
// fields keep the built-in defaults.
type TierOverride struct {
	MinBrightness *int     `toml:"min_brightness"`
	MaxBrightness *int     `toml:"max_brightness"`
	Tolerance     *int     `toml:"tolerance"`
	InkFloor      *int     `toml:"ink_floor"`
	ColorMargin   *int     `toml:"color_margin"`
	ColorValue    *int     `toml:"color_value"`
	HueDistance   *float64 `toml:"hue_distance"`
}

// Classifier contains pixel classification defaults.
type Classifier struct {
	ColorMode    string                  `toml:"color_mode"`
	Tier         string                  `toml:"tier"`
	DilateRadius int                     `toml:"dilate_radius"`
	TargetColor  string                  `toml:"target_color"`
	Tiers        map[string]TierOverride `toml:"tiers"`
}

// Inpaint contains local fill settings.
type Inpaint struct {
	WindowRadius int `toml:"window_radius"`
	MaxPasses    int `toml:"max_passes"`
}

// Retry contains the provider retry policy.
type Retry struct {
	MaxAttempts      int     `toml:"max_attempts"`
	InitialBackoffMS int     `toml:"initial_backoff_ms"`
	MaxBackoffMS     int     `toml:"max_backoff_ms"`
	Multiplier       float64 `toml:"multiplier"`
	Jitter           float64 `toml:"jitter"`
}

// Batch contains scheduler concurrency limits.
type Batch struct {
	Concurrency      int `toml:"concurrency"`
	ChunkConcurrency int `toml:"chunk_concurrency"`
}

// Chunking contains the document chunk budget.
type Chunking struct {
	MaxBytes int64 `toml:"max_bytes"`
	MaxPages int   `toml:"max_pages"`
	Attempts int   `toml:"attempts"`
}

// Document contains rasterization settings.
type Document struct {
	Scale          float64 `toml:"scale"`
	PdftoppmBinary string  `toml:"pdftoppm_binary"`
}

// Video contains frame extraction and encode settings.
type Video struct {
	FPSCap        float64 `toml:"fps_cap"`
	FFmpegBinary  string  `toml:"ffmpeg_binary"`
	FFprobeBinary string  `toml:"ffprobe_binary"`
	Codec         string  `toml:"codec"`
	CRF           int     `toml:"crf"`
	FinalEncoder  string  `toml:"final_encoder"`
}

// Pipeline contains whole-run timing limits.
type Pipeline struct {
	DeadlineSeconds        int `toml:"deadline_seconds"`
	AssemblyTimeoutSeconds int `toml:"assembly_timeout_seconds"`
}

// Provider describes one remote inpainting service.
type Provider struct {
	Name              string            `toml:"name"`
	Kind              string            `toml:"kind"`
	Accepts           string            `toml:"accepts"`
	Endpoint          string            `toml:"endpoint"`
	PollEndpoint      string            `toml:"poll_endpoint"`
	APIKey            string            `toml:"api_key"`
	APIKeyEnv         string            `toml:"api_key_env"`
	AuthHeader        string            `toml:"auth_header"`
	AuthScheme        string            `toml:"auth_scheme"`
	Encoding          string            `toml:"encoding"`
	InputKey          string            `toml:"input_key"`
	ImageField        string            `toml:"image_field"`
	MaskField         string            `toml:"mask_field"`
	Extra             map[string]string `toml:"extra"`
	TimeoutSeconds    int               `toml:"timeout_seconds"`
	PollIntervalMS    int               `toml:"poll_interval_ms"`
	PollAttempts      int               `toml:"poll_attempts"`
	RequestsPerSecond float64           `toml:"requests_per_second"`
	Disabled          bool              `toml:"disabled"`
}

// Daemon contains queue daemon settings.
type Daemon struct {
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	MetricsBind         string `toml:"metrics_bind"`
}

// Config encapsulates all configuration values for wmclean.
//
// Configuration sections by subsystem:
//   - Paths: work, output, log, and state directories
//   - Logging: log format and level
//   - Classifier: colour mode, tier, dilation, per-tier threshold overrides
//   - Inpaint: local fill window and pass limit
//   - Retry: provider retry policy
//   - Batch: scheduler concurrency
//   - Chunking: document chunk budget
//   - Document: rasterization scale and tooling
//   - Video: frame rate cap, ffmpeg tooling, final encoder
//   - Pipeline: caller deadline and assembly timeout
//   - Providers: ordered remote inpainting services
//   - Daemon: queue polling and metrics endpoint
type Config struct {
	Paths      Paths      `toml:"paths"`
	Logging    Logging    `toml:"logging"`
	Classifier Classifier `toml:"classifier"`
	Inpaint    Inpaint    `toml:"inpaint"`
	Retry      Retry      `toml:"retry"`
	Batch      Batch      `toml:"batch"`
	Chunking   Chunking   `toml:"chunking"`
	Document   Document   `toml:"document"`
	Video      Video      `toml:"video"`
	Pipeline   Pipeline   `toml:"pipeline"`
	Providers  []Provider `toml:"providers"`
	Daemon     Daemon     `toml:"daemon"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadDotEnv(filepath.Dir(resolvedPath)); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv reads .env files next to the config and in the working directory.
// Variables already present in the environment win.
func loadDotEnv(configDir string) error {
	candidates := []string{".env"}
	if configDir != "" {
		candidates = append(candidates, filepath.Join(configDir, ".env"))
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if err := godotenv.Load(candidate); err != nil {
			return fmt.Errorf("load %s: %w", candidate, err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("wmclean.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the CLI and daemon write into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.OutputDir, c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath returns the SQLite database location for the job queue.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.StateDir, "queue.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "wmclean.lock")
}

// Deadline returns the caller deadline applied to one cleaning run, or zero
// when runs are unbounded.
func (c *Config) Deadline() time.Duration {
	if c.Pipeline.DeadlineSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Pipeline.DeadlineSeconds) * time.Second
}

// AssemblyTimeout bounds rasterization, reassembly, and ffmpeg work.
func (c *Config) AssemblyTimeout() time.Duration {
	return time.Duration(c.Pipeline.AssemblyTimeoutSeconds) * time.Second
}

// EnabledProviders returns the providers that accept the given payload kind,
// in configured order.
func (c *Config) EnabledProviders(accepts string) []Provider {
	out := make([]Provider, 0, len(c.Providers))
	for _, p := range c.Providers {
		if p.Disabled || p.Accepts != accepts {
			continue
		}
		out = append(out, p)
	}
	return out
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
