package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0:5000", cfg.Addr())
	assert.Equal(t, int64(100*1024*1024), cfg.MaxFileSize())
	assert.Equal(t, []string{"pdf", "jpg", "jpeg", "png", "docx", "doc", "pptx", "ppt", "xlsx", "xls", "html"}, cfg.AllowedExtensions)
	assert.True(t, cfg.IsAllowed(".PDF"))
	assert.False(t, cfg.IsAllowed("exe"))
}

func TestParseExtensions(t *testing.T) {
	assert.Equal(t, []string{"pdf", "png", "jpg"}, ParseExtensions(" pdf, .PNG,jpg,,pdf "))
	assert.Empty(t, ParseExtensions(""))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"port zero", func(c *Config) { c.Port = 0 }, "port"},
		{"port too high", func(c *Config) { c.Port = 70000 }, "port"},
		{"size", func(c *Config) { c.MaxFileSizeMB = 0 }, "max file size"},
		{"extensions", func(c *Config) { c.AllowedExtensions = nil }, "extensions"},
		{"rate", func(c *Config) { c.RateLimit = -1 }, "rate limit"},
		{"cleanup", func(c *Config) { c.CleanupMaxAge = -time.Second }, "cleanup"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestDecodeOverlaysDefaults(t *testing.T) {
	cfg := Default()
	yamlDoc := `
port: 8080
max_file_size: 25
allowed_extensions: [PDF, .png]
shutdown_timeout: 5s
tools:
  pdftoppm: /opt/poppler/bin/pdftoppm
  timeout: 45s
`
	require.NoError(t, Decode(strings.NewReader(yamlDoc), &cfg))

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, DefaultHost, cfg.Host, "unset keys keep defaults")
	assert.Equal(t, int64(25), cfg.MaxFileSizeMB)
	assert.Equal(t, []string{"pdf", "png"}, cfg.AllowedExtensions)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "/opt/poppler/bin/pdftoppm", cfg.Tools.Pdftoppm)
	assert.Equal(t, "gs", cfg.Tools.Ghostscript)
	assert.Equal(t, 45*time.Second, cfg.Tools.Timeout)
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	cfg := Default()
	err := Decode(strings.NewReader("prot: 80\n"), &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prot")
}

func TestDecodeEmpty(t *testing.T) {
	cfg := Default()
	require.NoError(t, Decode(strings.NewReader(""), &cfg))
	assert.Equal(t, DefaultPort, cfg.Port)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdfmaster.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host: 127.0.0.1\n"), 0o600))

	cfg := Default()
	require.NoError(t, LoadFile(path, &cfg))
	assert.Equal(t, "127.0.0.1:5000", cfg.Addr())

	assert.Error(t, LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), &cfg))
}

func TestApplyToolEnv(t *testing.T) {
	t.Setenv("GS_PATH", "/usr/local/bin/gs")
	t.Setenv("GS_EXTRA_ARGS", `-dNOSAFER "-sFONTPATH=/usr/share/my fonts"`)
	t.Setenv("TESSERACT_LANG", "eng+deu")
	t.Setenv("EXTERNAL_TOOL_TIMEOUT", "10s")

	cfg := Default()
	require.NoError(t, ApplyToolEnv(&cfg))

	assert.Equal(t, "/usr/local/bin/gs", cfg.Tools.Ghostscript)
	assert.Equal(t, []string{"-dNOSAFER", "-sFONTPATH=/usr/share/my fonts"}, cfg.Tools.GhostscriptArgs)
	assert.Equal(t, "eng+deu", cfg.Tools.TesseractLang)
	assert.Equal(t, 10*time.Second, cfg.Tools.Timeout)
	assert.Equal(t, "pdftoppm", cfg.Tools.Pdftoppm)
}

func TestApplyToolEnvInvalid(t *testing.T) {
	t.Setenv("EXTERNAL_TOOL_TIMEOUT", "soon")
	cfg := Default()
	assert.Error(t, ApplyToolEnv(&cfg))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("PDFMASTER_TEST_VALUE=from-dotenv\n"), 0o600))

	t.Setenv("PDFMASTER_TEST_VALUE", "")
	require.NoError(t, os.Unsetenv("PDFMASTER_TEST_VALUE"))

	require.NoError(t, LoadDotEnv(envPath, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-dotenv", os.Getenv("PDFMASTER_TEST_VALUE"))
}
