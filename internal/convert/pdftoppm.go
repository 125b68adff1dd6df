package convert

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Pdftoppm renders pages with poppler's pdftoppm, one process per page.
type Pdftoppm struct {
	path    string
	timeout time.Duration
}

// NewPdftoppm returns a renderer for the binary at path.
func NewPdftoppm(path string, timeout time.Duration) *Pdftoppm {
	if path == "" {
		path = "pdftoppm"
	}
	return &Pdftoppm{path: path, timeout: timeout}
}

func (p *Pdftoppm) Name() string { return "pdftoppm" }

func (p *Pdftoppm) Available() bool {
	_, err := exec.LookPath(p.path)
	return err == nil
}

// Args returns the command line rendering page n to prefix.
func (p *Pdftoppm) Args(in, prefix string, n int, opts RenderOptions) []string {
	args := []string{
		"-f", strconv.Itoa(n),
		"-l", strconv.Itoa(n),
		"-r", strconv.Itoa(opts.DPI),
		"-singlefile",
	}
	if opts.Format == FormatPNG {
		args = append(args, "-png")
	} else {
		args = append(args, "-jpeg", "-jpegopt", fmt.Sprintf("quality=%d", JPEGQuality))
	}
	return append(args, in, prefix)
}

func (p *Pdftoppm) Render(ctx context.Context, in, outDir string, opts RenderOptions) ([]string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	files := make([]string, len(opts.Pages))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, n := range opts.Pages {
		g.Go(func() error {
			name := opts.PageFile(n)
			prefix := filepath.Join(outDir, strings.TrimSuffix(name, filepath.Ext(name)))
			cmd := exec.CommandContext(ctx, p.path, p.Args(in, prefix, n, opts)...)
			if output, err := cmd.CombinedOutput(); err != nil {
				return fmt.Errorf("pdftoppm page %d: %w: %s", n, err, strings.TrimSpace(string(output)))
			}
			files[i] = name
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}
