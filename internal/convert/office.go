package convert

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Office drives LibreOffice in headless mode.
type Office struct {
	path    string
	extra   []string
	timeout time.Duration
}

// NewOffice returns a runner for the soffice binary at path.
func NewOffice(path string, extra []string, timeout time.Duration) *Office {
	if path == "" {
		path = "soffice"
	}
	return &Office{path: path, extra: extra, timeout: timeout}
}

// Available reports whether the binary can be found.
func (o *Office) Available() bool {
	_, err := exec.LookPath(o.path)
	return err == nil
}

// Args returns the command line converting in into outDir.
func (o *Office) Args(in, outDir, target string) []string {
	args := []string{"--headless", "--norestore", "--nolockcheck"}
	args = append(args, o.extra...)
	return append(args, "--convert-to", target, "--outdir", outDir, in)
}

// Convert runs the conversion and returns the path of the produced file.
func (o *Office) Convert(ctx context.Context, in, outDir, target string) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, o.path, o.Args(in, outDir, target)...)
	// one LibreOffice profile per conversion
	cmd.Env = append(os.Environ(), "HOME="+outDir)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("soffice: %w: %s", err, strings.TrimSpace(string(output)))
	}

	ext := strings.SplitN(target, ":", 2)[0]
	produced := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))+"."+ext)
	if _, err := os.Stat(produced); err != nil {
		return "", fmt.Errorf("soffice produced no output: %w", err)
	}
	return produced, nil
}
