package pdfops

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/sammcj/pdfmaster/internal/response"
	"github.com/sirupsen/logrus"
)

// Quality selects how aggressively a compressor trades fidelity for size.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// StrategyNone is reported when no strategy produced a smaller file.
const StrategyNone = "none"

// ParseQuality validates a quality name. Empty means medium.
func ParseQuality(s string) (Quality, error) {
	switch q := Quality(strings.ToLower(strings.TrimSpace(s))); q {
	case "":
		return QualityMedium, nil
	case QualityLow, QualityMedium, QualityHigh:
		return q, nil
	default:
		return "", response.BadRequest(fmt.Sprintf("unknown compression quality %q", s), nil)
	}
}

// QualityForTarget picks the tier expected to reach a target reduction percentage.
func QualityForTarget(percent float64) Quality {
	switch {
	case percent >= 50:
		return QualityLow
	case percent >= 20:
		return QualityMedium
	default:
		return QualityHigh
	}
}

// Compressor is a single compression strategy.
type Compressor interface {
	Name() string
	Available() bool
	Compress(ctx context.Context, in, out string, quality Quality) error
}

// CompressOptions controls Compress.
type CompressOptions struct {
	Quality         Quality
	TargetReduction float64
}

// Attempt records the outcome of one strategy.
type Attempt struct {
	Strategy string `json:"strategy"`
	Size     int64  `json:"size,omitempty"`
	Error    string `json:"error,omitempty"`
}

// CompressResult reports the sizes before and after compression.
type CompressResult struct {
	OriginalSize    int64     `json:"original_size"`
	CompressedSize  int64     `json:"compressed_size"`
	SavingsPercent  float64   `json:"savings_percent"`
	Strategy        string    `json:"strategy"`
	Quality         Quality   `json:"quality"`
	TargetReduction float64   `json:"target_reduction,omitempty"`
	TargetMet       *bool     `json:"target_met,omitempty"`
	Attempts        []Attempt `json:"attempts"`
}

// Compress runs every available strategy and keeps the smallest result. The output
// is never larger than the input: when nothing helps, the input is copied unchanged.
func (p *Processor) Compress(ctx context.Context, in, out string, opts CompressOptions) (*CompressResult, error) {
	quality := opts.Quality
	if quality == "" {
		quality = QualityMedium
	}
	if opts.TargetReduction > 0 {
		quality = QualityForTarget(opts.TargetReduction)
	}

	original, err := fileSize(in)
	if err != nil {
		return nil, response.NotFound("input file not found", err)
	}

	result := &CompressResult{
		OriginalSize: original,
		Quality:      quality,
		Strategy:     StrategyNone,
	}

	best, bestSize := "", original
	succeeded := 0
	var candidates []string
	defer func() {
		for _, c := range candidates {
			if c != best {
				_ = os.Remove(c)
			}
		}
	}()

	for _, c := range p.compressors {
		if !c.Available() {
			continue
		}
		if err := checkContext(ctx); err != nil {
			return nil, err
		}

		candidate := fmt.Sprintf("%s.%s.tmp", out, c.Name())
		candidates = append(candidates, candidate)

		attempt := Attempt{Strategy: c.Name()}
		if err := c.Compress(ctx, in, candidate, quality); err != nil {
			attempt.Error = err.Error()
			result.Attempts = append(result.Attempts, attempt)
			p.logger.WithError(err).WithField("strategy", c.Name()).Warn("Compression strategy failed")
			continue
		}
		succeeded++

		size, err := fileSize(candidate)
		if err != nil {
			attempt.Error = err.Error()
			result.Attempts = append(result.Attempts, attempt)
			continue
		}
		attempt.Size = size
		result.Attempts = append(result.Attempts, attempt)

		if size < bestSize {
			best, bestSize = candidate, size
			result.Strategy = c.Name()
		}
	}

	if succeeded == 0 && len(result.Attempts) > 0 {
		return nil, response.OperationFailed("PDF compression failed", errors.New(result.Attempts[len(result.Attempts)-1].Error))
	}

	if best != "" {
		if err := os.Rename(best, out); err != nil {
			return nil, response.Internal("failed to write output", err)
		}
	} else if err := copyFile(in, out); err != nil {
		return nil, response.Internal("failed to write output", err)
	}

	result.CompressedSize = bestSize
	result.SavingsPercent = savings(original, bestSize)
	if opts.TargetReduction > 0 {
		result.TargetReduction = opts.TargetReduction
		met := result.SavingsPercent >= opts.TargetReduction
		result.TargetMet = &met
	}

	p.logger.WithFields(logrus.Fields{
		"strategy": result.Strategy,
		"original": original,
		"size":     bestSize,
	}).Debug("Compressed PDF")

	return result, nil
}

func savings(original, compressed int64) float64 {
	if original <= 0 {
		return 0
	}
	pct := float64(original-compressed) / float64(original) * 100
	return math.Round(pct*100) / 100
}

// PdfcpuOptimizer rewrites the document with pdfcpu's optimiser, which
// deduplicates resources and compresses streams.
type PdfcpuOptimizer struct{}

func (PdfcpuOptimizer) Name() string    { return "pdfcpu" }
func (PdfcpuOptimizer) Available() bool { return true }

func (PdfcpuOptimizer) Compress(ctx context.Context, in, out string, _ Quality) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return api.OptimizeFile(in, out, NewConfiguration())
}

// Ghostscript re-renders the document through the pdfwrite device.
type Ghostscript struct {
	path    string
	extra   []string
	timeout time.Duration
}

// NewGhostscript returns a Ghostscript strategy using the binary at path.
func NewGhostscript(path string, extra []string, timeout time.Duration) *Ghostscript {
	if path == "" {
		path = "gs"
	}
	return &Ghostscript{path: path, extra: extra, timeout: timeout}
}

func (g *Ghostscript) Name() string { return "ghostscript" }

func (g *Ghostscript) Available() bool {
	_, err := exec.LookPath(g.path)
	return err == nil
}

// Args returns the command line used for the given quality.
func (g *Ghostscript) Args(in, out string, quality Quality) []string {
	settings := map[Quality]string{
		QualityLow:    "/screen",
		QualityMedium: "/ebook",
		QualityHigh:   "/printer",
	}[quality]
	if settings == "" {
		settings = "/ebook"
	}

	args := []string{
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		"-dPDFSETTINGS=" + settings,
		"-dNOPAUSE",
		"-dQUIET",
		"-dBATCH",
	}
	args = append(args, g.extra...)
	return append(args, "-sOutputFile="+out, in)
}

func (g *Ghostscript) Compress(ctx context.Context, in, out string, quality Quality) error {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, g.path, g.Args(in, out, quality)...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ghostscript: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
