package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	apperrors "coursedl/internal/platform/errors"
)

const envPrefix = "COURSEDL_"

// Endpoints are URL templates for the remote platform; {course} is replaced
// with the course identifier.
type Endpoints struct {
	Course   string `yaml:"course"`
	Class    string `yaml:"class"`
	Lectures string `yaml:"lectures"`
	Auth     string `yaml:"auth"`
	Login    string `yaml:"login"`
	About    string `yaml:"about"`
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		Course:   "https://class.coursera.org/{course}",
		Class:    "https://class.coursera.org/{course}/class",
		Lectures: "https://class.coursera.org/{course}/lecture/index",
		Auth:     "https://class.coursera.org/{course}/auth/auth_redirector?type=login&subtype=normal",
		Login:    "https://accounts.coursera.org/api/v1/login",
		About:    "https://www.coursera.org/maestro/api/topic/information?topic-id={course}",
	}
}

// Expand substitutes the course id into a URL template.
func Expand(template, courseID string) string {
	return strings.ReplaceAll(template, "{course}", courseID)
}

type Config struct {
	DestRoot          string
	CacheDir          string
	LedgerPath        string
	Username          string
	Password          string
	NetrcMachine      string
	Parallel          int
	Retries           int
	RetryInterval     time.Duration
	RateLimit         int64
	Proxy             string
	UserAgent         string
	ConnectTimeout    time.Duration
	ReadTimeout       time.Duration
	Downloader        string
	DownloaderBin     string
	MaxFilenameLength int
	LogLevel          string
	Endpoints         Endpoints
}

type Options struct {
	// Path is an explicit config file; reading it must succeed.
	Path string
	// EnvFile is loaded into the environment when it exists.
	EnvFile string
}

type fileConfig struct {
	Destination       string    `yaml:"destination"`
	CacheDir          string    `yaml:"cache_dir"`
	Ledger            string    `yaml:"ledger"`
	Username          string    `yaml:"username"`
	NetrcMachine      string    `yaml:"netrc_machine"`
	Parallel          int       `yaml:"parallel"`
	Retries           *int      `yaml:"retries"`
	RetryInterval     string    `yaml:"retry_interval"`
	RateLimit         string    `yaml:"rate_limit"`
	Proxy             string    `yaml:"proxy"`
	UserAgent         string    `yaml:"user_agent"`
	ConnectTimeout    string    `yaml:"connect_timeout"`
	ReadTimeout       string    `yaml:"read_timeout"`
	Downloader        string    `yaml:"downloader"`
	DownloaderBin     string    `yaml:"downloader_bin"`
	MaxFilenameLength int       `yaml:"max_filename_length"`
	LogLevel          string    `yaml:"log_level"`
	Endpoints         Endpoints `yaml:"endpoints"`
}

func Default() Config {
	cacheDir := filepath.Join(os.TempDir(), "coursedl-cache")
	if dir, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(dir, "coursedl")
	}
	return Config{
		DestRoot:       ".",
		CacheDir:       cacheDir,
		LedgerPath:     filepath.Join(cacheDir, "ledger.db"),
		NetrcMachine:   "coursedl",
		Parallel:       1,
		Retries:        3,
		RetryInterval:  time.Second,
		UserAgent:      "coursedl/1.0",
		ConnectTimeout: 15 * time.Second,
		ReadTimeout:    60 * time.Second,
		Downloader:     "native",
		LogLevel:       "info",
		Endpoints:      DefaultEndpoints(),
	}
}

// DefaultPath is $XDG_CONFIG_HOME/coursedl/config.yaml or "" when the user
// config dir is unknown.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "coursedl", "config.yaml")
}

// Load layers defaults, the YAML file and COURSEDL_* environment variables.
func Load(opts Options) (Config, error) {
	cfg := Default()

	if opts.EnvFile != "" {
		if _, err := os.Stat(opts.EnvFile); err == nil {
			if err := godotenv.Load(opts.EnvFile); err != nil {
				return Config{}, fmt.Errorf("%w: load %s: %v", apperrors.ErrConfig, opts.EnvFile, err)
			}
		}
	}

	path, explicit := opts.Path, opts.Path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := cfg.applyFile(raw); err != nil {
				return Config{}, fmt.Errorf("%w: %s: %v", apperrors.ErrConfig, path, err)
			}
		case explicit || !errors.Is(err, os.ErrNotExist):
			return Config{}, fmt.Errorf("%w: read %s: %v", apperrors.ErrConfig, path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, fmt.Errorf("%w: %v", apperrors.ErrConfig, err)
	}
	return cfg, nil
}

func (c *Config) applyFile(raw []byte) error {
	var f fileConfig
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	setString(&c.DestRoot, f.Destination)
	if f.CacheDir != "" {
		c.CacheDir = f.CacheDir
		c.LedgerPath = filepath.Join(f.CacheDir, "ledger.db")
	}
	setString(&c.LedgerPath, f.Ledger)
	setString(&c.Username, f.Username)
	setString(&c.NetrcMachine, f.NetrcMachine)
	if f.Parallel > 0 {
		c.Parallel = f.Parallel
	}
	if f.Retries != nil {
		c.Retries = *f.Retries
	}
	if err := setDuration(&c.RetryInterval, f.RetryInterval); err != nil {
		return fmt.Errorf("retry_interval: %w", err)
	}
	if err := setDuration(&c.ConnectTimeout, f.ConnectTimeout); err != nil {
		return fmt.Errorf("connect_timeout: %w", err)
	}
	if err := setDuration(&c.ReadTimeout, f.ReadTimeout); err != nil {
		return fmt.Errorf("read_timeout: %w", err)
	}
	if f.RateLimit != "" {
		limit, err := ParseRate(f.RateLimit)
		if err != nil {
			return fmt.Errorf("rate_limit: %w", err)
		}
		c.RateLimit = limit
	}
	setString(&c.Proxy, f.Proxy)
	setString(&c.UserAgent, f.UserAgent)
	setString(&c.Downloader, f.Downloader)
	setString(&c.DownloaderBin, f.DownloaderBin)
	if f.MaxFilenameLength > 0 {
		c.MaxFilenameLength = f.MaxFilenameLength
	}
	setString(&c.LogLevel, f.LogLevel)
	setString(&c.Endpoints.Course, f.Endpoints.Course)
	setString(&c.Endpoints.Class, f.Endpoints.Class)
	setString(&c.Endpoints.Lectures, f.Endpoints.Lectures)
	setString(&c.Endpoints.Auth, f.Endpoints.Auth)
	setString(&c.Endpoints.Login, f.Endpoints.Login)
	setString(&c.Endpoints.About, f.Endpoints.About)
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.DestRoot, os.Getenv(envPrefix+"DESTINATION"))
	if dir := os.Getenv(envPrefix + "CACHE_DIR"); dir != "" {
		c.CacheDir = dir
		c.LedgerPath = filepath.Join(dir, "ledger.db")
	}
	setString(&c.Username, os.Getenv(envPrefix+"USERNAME"))
	setString(&c.Password, os.Getenv(envPrefix+"PASSWORD"))
	setString(&c.Proxy, os.Getenv(envPrefix+"PROXY"))
	if raw := os.Getenv(envPrefix + "PARALLEL"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%sPARALLEL: %w", envPrefix, err)
		}
		c.Parallel = n
	}
	if raw := os.Getenv(envPrefix + "RATE_LIMIT"); raw != "" {
		limit, err := ParseRate(raw)
		if err != nil {
			return fmt.Errorf("%sRATE_LIMIT: %w", envPrefix, err)
		}
		c.RateLimit = limit
	}
	return nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DestRoot) == "" {
		return fmt.Errorf("%w: destination is required", apperrors.ErrConfig)
	}
	if c.Parallel < 1 {
		return fmt.Errorf("%w: parallel must be at least 1, got %d", apperrors.ErrConfig, c.Parallel)
	}
	if c.Retries < 0 {
		return fmt.Errorf("%w: retries must not be negative", apperrors.ErrConfig)
	}
	switch c.Downloader {
	case "native", "wget", "curl", "aria2", "axel":
	default:
		return fmt.Errorf("%w: unsupported downloader %q", apperrors.ErrConfig, c.Downloader)
	}
	return nil
}

// ParseRate accepts sizes such as "500KB" or "2MB" and returns bytes.
func ParseRate(s string) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("rate %q is too large", s)
	}
	return int64(n), nil
}

func setString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v string) error {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
