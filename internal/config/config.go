// Package config holds the service configuration. Values come from defaults, an
// optional YAML file, environment variables (with .env support) and command-line flags,
// in increasing order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultHost              = "0.0.0.0"
	DefaultPort              = 5000
	DefaultMaxFileSizeMB     = 100
	DefaultAllowedExtensions = "pdf,jpg,jpeg,png,docx,doc,pptx,ppt,xlsx,xls,html"
	DefaultRateLimit         = 20.0
	DefaultRateBurst         = 40
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultCleanupInterval   = time.Hour
	DefaultCleanupMaxAge     = 24 * time.Hour
	DefaultToolTimeout       = 2 * time.Minute
	DefaultTesseractLang     = "eng"
	DefaultRecentLimit       = 20
)

// Config is the complete service configuration.
type Config struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	MaxFileSizeMB     int64         `yaml:"max_file_size"`
	AllowedExtensions []string      `yaml:"allowed_extensions"`
	TempRoot          string        `yaml:"temp_root"`
	StaticDir         string        `yaml:"static_dir"`
	CORSOrigins       []string      `yaml:"cors_origins"`
	RateLimit         float64       `yaml:"rate_limit"`
	RateBurst         int           `yaml:"rate_burst"`
	AuthToken         string        `yaml:"auth_token"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
	CleanupMaxAge     time.Duration `yaml:"cleanup_max_age"`
	Tools             Tools         `yaml:"tools"`
}

// Tools locates the optional external binaries used by fallback strategies.
type Tools struct {
	Pdftoppm        string        `yaml:"pdftoppm"`
	Ghostscript     string        `yaml:"ghostscript"`
	Soffice         string        `yaml:"soffice"`
	GhostscriptArgs []string      `yaml:"ghostscript_args"`
	SofficeArgs     []string      `yaml:"soffice_args"`
	TesseractLang   string        `yaml:"tesseract_lang"`
	Timeout         time.Duration `yaml:"timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Host:              DefaultHost,
		Port:              DefaultPort,
		MaxFileSizeMB:     DefaultMaxFileSizeMB,
		AllowedExtensions: ParseExtensions(DefaultAllowedExtensions),
		CORSOrigins:       []string{"*"},
		RateLimit:         DefaultRateLimit,
		RateBurst:         DefaultRateBurst,
		ShutdownTimeout:   DefaultShutdownTimeout,
		CleanupInterval:   DefaultCleanupInterval,
		CleanupMaxAge:     DefaultCleanupMaxAge,
		Tools: Tools{
			Pdftoppm:      "pdftoppm",
			Ghostscript:   "gs",
			Soffice:       "soffice",
			TesseractLang: DefaultTesseractLang,
			Timeout:       DefaultToolTimeout,
		},
	}
}

// LoadDotEnv loads variables from the given .env files. Missing files are ignored and
// variables already present in the environment are not overwritten.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// LoadFile overlays the YAML file at path onto cfg. Unknown keys are rejected.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return Decode(bytes.NewReader(data), cfg)
}

// Decode overlays YAML from r onto cfg.
func Decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.AllowedExtensions = normaliseExtensions(cfg.AllowedExtensions)
	return nil
}

// ApplyToolEnv reads external tool settings from the environment.
func ApplyToolEnv(cfg *Config) error {
	if v := os.Getenv("PDFTOPPM_PATH"); v != "" {
		cfg.Tools.Pdftoppm = v
	}
	if v := os.Getenv("GS_PATH"); v != "" {
		cfg.Tools.Ghostscript = v
	}
	if v := os.Getenv("SOFFICE_PATH"); v != "" {
		cfg.Tools.Soffice = v
	}
	if v := os.Getenv("TESSERACT_LANG"); v != "" {
		cfg.Tools.TesseractLang = v
	}
	if v := os.Getenv("EXTERNAL_TOOL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid EXTERNAL_TOOL_TIMEOUT: %w", err)
		}
		cfg.Tools.Timeout = d
	}

	var err error
	if v := os.Getenv("GS_EXTRA_ARGS"); v != "" {
		if cfg.Tools.GhostscriptArgs, err = SplitArgs(v); err != nil {
			return fmt.Errorf("invalid GS_EXTRA_ARGS: %w", err)
		}
	}
	if v := os.Getenv("SOFFICE_EXTRA_ARGS"); v != "" {
		if cfg.Tools.SofficeArgs, err = SplitArgs(v); err != nil {
			return fmt.Errorf("invalid SOFFICE_EXTRA_ARGS: %w", err)
		}
	}
	return nil
}

// SplitArgs splits a command-line fragment using shell quoting rules.
func SplitArgs(s string) ([]string, error) {
	return shlex.Split(s)
}

// ParseExtensions turns "pdf, .PNG,jpg" into ["pdf", "png", "jpg"].
func ParseExtensions(s string) []string {
	return normaliseExtensions(strings.Split(s, ","))
}

func normaliseExtensions(in []string) []string {
	out := make([]string, 0, len(in))
	for _, ext := range in {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" && !slices.Contains(out, ext) {
			out = append(out, ext)
		}
	}
	return out
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.MaxFileSizeMB <= 0 {
		return fmt.Errorf("max file size must be positive, got %d", c.MaxFileSizeMB)
	}
	if len(c.AllowedExtensions) == 0 {
		return errors.New("allowed extensions must not be empty")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative, got %v", c.RateLimit)
	}
	if c.CleanupInterval < 0 || c.CleanupMaxAge < 0 {
		return errors.New("cleanup durations must not be negative")
	}
	return nil
}

// Addr is the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// MaxFileSize is the per-file upload limit in bytes.
func (c Config) MaxFileSize() int64 {
	return c.MaxFileSizeMB * 1024 * 1024
}

// MaxRequestSize bounds a whole multipart request. Merges carry several files, so the
// request may be larger than a single file.
func (c Config) MaxRequestSize() int64 {
	return c.MaxFileSize()*4 + 1<<20
}

// IsAllowed reports whether ext (with or without a leading dot) is on the allow-list.
func (c Config) IsAllowed(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	return slices.Contains(c.AllowedExtensions, ext)
}
