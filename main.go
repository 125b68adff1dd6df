package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/sammcj/pdfmaster/internal/cache"
	"github.com/sammcj/pdfmaster/internal/cli"
	"github.com/sammcj/pdfmaster/internal/config"
	"github.com/sammcj/pdfmaster/internal/convert"
	"github.com/sammcj/pdfmaster/internal/errorlog"
	"github.com/sammcj/pdfmaster/internal/extract"
	"github.com/sammcj/pdfmaster/internal/pdfops"
	"github.com/sammcj/pdfmaster/internal/registry"
	"github.com/sammcj/pdfmaster/internal/server"
	"github.com/sammcj/pdfmaster/internal/session"
	"github.com/sammcj/pdfmaster/internal/storage"
	"github.com/sammcj/pdfmaster/internal/telemetry"
	"github.com/sammcj/pdfmaster/internal/tools"
	"github.com/sirupsen/logrus"
	ucli "github.com/urfave/cli/v3"

	// Import all tool packages to register them
	_ "github.com/sammcj/pdfmaster/internal/imports"
)

// Version information (set during build)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

const (
	// DefaultMemoryLimit is the soft memory limit applied to the Go runtime (4GB).
	DefaultMemoryLimit = 4 * 1024 * 1024 * 1024

	// Properties stay cached for as long as an upload is likely to be worked on.
	propertiesTTL = 30 * time.Minute
)

var (
	logFile     atomic.Pointer[os.File]
	isStdioMode atomic.Bool
)

// mode selects logging defaults and where tool output is written.
type mode int

const (
	modeServe mode = iota
	modeStdio
	modeCLI
)

// parseLogLevel reads LOG_LEVEL, falling back to def when unset or invalid.
func parseLogLevel(def logrus.Level) logrus.Level {
	s := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if s == "" {
		return def
	}
	level, err := logrus.ParseLevel(s)
	if err != nil {
		return def
	}
	return level
}

// setMemoryLimit configures the Go runtime memory limit from PDFMASTER_MEMORY_LIMIT,
// which accepts plain bytes or human sizes such as "2GB".
func setMemoryLimit() {
	var limit int64 = DefaultMemoryLimit
	if s := os.Getenv("PDFMASTER_MEMORY_LIMIT"); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
			limit = n
		} else if n, err := humanize.ParseBytes(s); err == nil && n > 0 {
			limit = int64(n)
		}
	}
	debug.SetMemoryLimit(limit)
}

// configureLogger points the logger at the right sink for the mode. Stdio mode must
// never write to stdout or stderr, so it logs to a file or nowhere.
func configureLogger(logger *logrus.Logger, m mode) {
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	switch m {
	case modeStdio:
		logger.SetLevel(parseLogLevel(logrus.ErrorLevel))
		logger.SetOutput(io.Discard)
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		dir := filepath.Join(home, ".pdfmaster", "logs")
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return
		}
		f, err := os.OpenFile(filepath.Join(dir, "pdfmaster.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return
		}
		logFile.Store(f)
		logger.SetOutput(f)
	case modeCLI:
		logger.SetLevel(parseLogLevel(logrus.WarnLevel))
		logger.SetOutput(os.Stderr)
	default:
		logger.SetLevel(parseLogLevel(logrus.InfoLevel))
		logger.SetOutput(os.Stderr)
	}
	logrus.SetOutput(logger.Out)
	logrus.SetLevel(logger.GetLevel())
}

func main() {
	setMemoryLimit()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Logging stays silent until the command decides where it should go.
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	app := newApp(logger)
	if err := app.Run(ctx, os.Args); err != nil {
		if !isStdioMode.Load() {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		closeLogFile()
		os.Exit(1)
	}
	closeLogFile()
}

func newApp(logger *logrus.Logger) *ucli.Command {
	return &ucli.Command{
		Name:    "pdfmaster",
		Usage:   "PDF and document transformation service",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		Flags:   serverFlags(),
		Commands: []*ucli.Command{
			{
				Name:  "serve",
				Usage: "Run the HTTP API (default)",
				Action: func(ctx context.Context, cmd *ucli.Command) error {
					return runServe(ctx, cmd, logger)
				},
			},
			{
				Name:  "mcp",
				Usage: "Serve the PDF tools over MCP stdio",
				Action: func(ctx context.Context, cmd *ucli.Command) error {
					return runMCP(ctx, cmd, logger)
				},
			},
			toolsCommand(logger),
			{
				Name:  "version",
				Usage: "Print version information",
				Action: func(ctx context.Context, cmd *ucli.Command) error {
					fmt.Printf("pdfmaster version %s\n", Version)
					fmt.Printf("Commit: %s\n", Commit)
					fmt.Printf("Built: %s\n", BuildDate)
					return nil
				},
			},
		},
		Action: func(ctx context.Context, cmd *ucli.Command) error {
			return runServe(ctx, cmd, logger)
		},
	}
}

func serverFlags() []ucli.Flag {
	return []ucli.Flag{
		&ucli.StringFlag{
			Name:    "config",
			Usage:   "Optional YAML configuration file",
			Sources: ucli.EnvVars("PDFMASTER_CONFIG"),
		},
		&ucli.StringFlag{
			Name:    "host",
			Value:   config.DefaultHost,
			Usage:   "Interface to listen on",
			Sources: ucli.EnvVars("HOST"),
		},
		&ucli.IntFlag{
			Name:    "port",
			Value:   config.DefaultPort,
			Usage:   "Port to listen on",
			Sources: ucli.EnvVars("PORT"),
		},
		&ucli.IntFlag{
			Name:    "max-file-size",
			Value:   config.DefaultMaxFileSizeMB,
			Usage:   "Maximum upload size in MB",
			Sources: ucli.EnvVars("MAX_FILE_SIZE"),
		},
		&ucli.StringFlag{
			Name:    "allowed-extensions",
			Value:   config.DefaultAllowedExtensions,
			Usage:   "Comma separated list of accepted upload extensions",
			Sources: ucli.EnvVars("ALLOWED_EXTENSIONS"),
		},
		&ucli.StringFlag{
			Name:    "temp-root",
			Usage:   "Parent directory for the session temp root (default: OS temp dir)",
			Sources: ucli.EnvVars("PDFMASTER_TEMP_ROOT"),
		},
		&ucli.StringFlag{
			Name:    "output-dir",
			Usage:   "Where mcp and tools runs write results (default: ~/.pdfmaster/outputs)",
			Sources: ucli.EnvVars("PDFMASTER_OUTPUT_DIR"),
		},
		&ucli.StringFlag{
			Name:    "static-dir",
			Usage:   "Directory holding a built single page frontend",
			Sources: ucli.EnvVars("STATIC_DIR"),
		},
		&ucli.StringFlag{
			Name:    "cors-origins",
			Value:   "*",
			Usage:   "Comma separated list of allowed CORS origins",
			Sources: ucli.EnvVars("CORS_ORIGINS"),
		},
		&ucli.FloatFlag{
			Name:    "rate-limit",
			Value:   config.DefaultRateLimit,
			Usage:   "Requests per second allowed per client (0 disables)",
			Sources: ucli.EnvVars("RATE_LIMIT_RPS"),
		},
		&ucli.StringFlag{
			Name:    "auth-token",
			Usage:   "Require this bearer token on /api routes",
			Sources: ucli.EnvVars("PDFMASTER_AUTH_TOKEN"),
		},
		&ucli.DurationFlag{
			Name:    "shutdown-timeout",
			Value:   config.DefaultShutdownTimeout,
			Usage:   "Grace period for in-flight requests on shutdown",
			Sources: ucli.EnvVars("SHUTDOWN_TIMEOUT"),
		},
		&ucli.DurationFlag{
			Name:    "cleanup-interval",
			Value:   config.DefaultCleanupInterval,
			Usage:   "How often expired outputs are removed (0 disables)",
			Sources: ucli.EnvVars("CLEANUP_INTERVAL"),
		},
		&ucli.DurationFlag{
			Name:    "cleanup-age",
			Value:   config.DefaultCleanupMaxAge,
			Usage:   "Age after which outputs are removed",
			Sources: ucli.EnvVars("CLEANUP_MAX_AGE"),
		},
	}
}

// loadConfig layers defaults, the YAML file and then any flag or environment value
// that was explicitly set.
func loadConfig(cmd *ucli.Command) (config.Config, error) {
	cfg := config.Default()
	if path := cmd.String("config"); path != "" {
		if err := config.LoadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	if cmd.IsSet("host") {
		cfg.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("max-file-size") {
		cfg.MaxFileSizeMB = int64(cmd.Int("max-file-size"))
	}
	if cmd.IsSet("allowed-extensions") {
		cfg.AllowedExtensions = config.ParseExtensions(cmd.String("allowed-extensions"))
	}
	if cmd.IsSet("temp-root") {
		cfg.TempRoot = cmd.String("temp-root")
	}
	if cmd.IsSet("static-dir") {
		cfg.StaticDir = cmd.String("static-dir")
	}
	if cmd.IsSet("cors-origins") {
		cfg.CORSOrigins = splitList(cmd.String("cors-origins"))
	}
	if cmd.IsSet("rate-limit") {
		cfg.RateLimit = cmd.Float("rate-limit")
	}
	if cmd.IsSet("auth-token") {
		cfg.AuthToken = cmd.String("auth-token")
	}
	if cmd.IsSet("shutdown-timeout") {
		cfg.ShutdownTimeout = cmd.Duration("shutdown-timeout")
	}
	if cmd.IsSet("cleanup-interval") {
		cfg.CleanupInterval = cmd.Duration("cleanup-interval")
	}
	if cmd.IsSet("cleanup-age") {
		cfg.CleanupMaxAge = cmd.Duration("cleanup-age")
	}

	if err := config.ApplyToolEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// app holds the components shared by every command.
type app struct {
	cfg       config.Config
	logger    *logrus.Logger
	root      *session.Root
	props     *cache.Cache
	converter *convert.Converter
	extractor *extract.Extractor
	processor *pdfops.Processor
	shutdowns []func() error
}

// setup builds the session root, processors, telemetry and tool registry.
func setup(cmd *ucli.Command, logger *logrus.Logger, m mode) (*app, error) {
	isStdioMode.Store(m == modeStdio)
	configureLogger(logger, m)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	if n, err := session.SweepOrphans(cfg.TempRoot, logger); err != nil {
		logger.WithError(err).Warn("Failed to sweep orphaned temp roots")
	} else if n > 0 {
		logger.WithField("removed", n).Info("Removed orphaned temp roots")
	}

	root := session.New(cfg.TempRoot, logger)
	if err := root.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialise temp root: %w", err)
	}

	if err := errorlog.InitGlobal(logger); err != nil {
		logger.WithError(err).Warn("Failed to initialise operation error log")
	}

	telemetry.SetServiceVersion(Version)
	a := &app{cfg: cfg, logger: logger, root: root}
	if shutdown, err := telemetry.InitTracer(logger); err != nil {
		logger.WithError(err).Warn("Failed to initialise tracing")
	} else {
		a.shutdowns = append(a.shutdowns, shutdown)
	}
	if shutdown, err := telemetry.InitMetrics(logger); err != nil {
		logger.WithError(err).Warn("Failed to initialise metrics")
	} else {
		a.shutdowns = append(a.shutdowns, shutdown)
	}

	a.props = cache.NewCache(propertiesTTL)
	a.converter = convert.New(logger, cfg.Tools, root.WorkDir())
	a.extractor = extract.New(logger, cfg.Tools, root.WorkDir(), a.converter)
	a.converter.UseExtractor(a.extractor)
	a.processor = pdfops.New(logger, cfg.Tools, a.props)

	outputDir := root.OutputDir()
	if m != modeServe {
		if outputDir, err = toolOutputDir(cmd.String("output-dir")); err != nil {
			_ = root.Cleanup()
			return nil, err
		}
	}
	registry.Init(logger, &tools.Env{
		Logger:    logger,
		PDF:       a.processor,
		Extractor: a.extractor,
		Converter: a.converter,
		OutputDir: outputDir,
	}, errorlog.Global())

	return a, nil
}

// toolOutputDir resolves where mcp and tools runs write results. The session root is
// removed on exit, so these modes default to a directory under the home directory.
func toolOutputDir(explicit string) (string, error) {
	dir := explicit
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".pdfmaster", "outputs")
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	return dir, nil
}

// close releases the session root, the error log and telemetry, in that order.
func (a *app) close() {
	if err := a.root.Cleanup(); err != nil {
		a.logger.WithError(err).Warn("Failed to clean up temp root")
	}
	if err := errorlog.Global().Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close operation error log")
	}
	for _, shutdown := range a.shutdowns {
		if err := shutdown(); err != nil {
			a.logger.WithError(err).Warn("Failed to flush telemetry")
		}
	}
}

func closeLogFile() {
	if f := logFile.Load(); f != nil {
		_ = f.Close()
	}
}

func runServe(ctx context.Context, cmd *ucli.Command, logger *logrus.Logger) error {
	a, err := setup(cmd, logger, modeServe)
	if err != nil {
		return err
	}
	defer a.close()

	store := storage.New(a.root, a.cfg, logger)
	srv := server.New(server.Deps{
		Config:    a.cfg,
		Session:   a.root,
		Store:     store,
		Processor: a.processor,
		Extractor: a.extractor,
		Converter: a.converter,
		Cache:     a.props,
		ErrorLog:  errorlog.Global(),
		Logger:    logger,
		Version:   Version,
	})

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	janitorDone := store.StartJanitor(janitorCtx, a.cfg.CleanupInterval, a.cfg.CleanupMaxAge)

	httpSrv := srv.HTTPServer()
	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":      httpSrv.Addr,
			"temp_root": a.root.Path(),
			"version":   Version,
		}).Info("Starting pdfmaster")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server did not shut down cleanly")
	}

	stopJanitor()
	<-janitorDone

	if serveErr != nil {
		return fmt.Errorf("http server failed: %w", serveErr)
	}
	return nil
}

func runMCP(ctx context.Context, cmd *ucli.Command, logger *logrus.Logger) error {
	a, err := setup(cmd, logger, modeStdio)
	if err != nil {
		return err
	}
	defer a.close()

	mcpSrv := mcpserver.NewMCPServer("pdfmaster", Version, mcpserver.WithToolCapabilities(false))
	for name, tool := range registry.GetEnabledTools() {
		mcpSrv.AddTool(tool.Definition(), func(toolCtx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, ok := request.Params.Arguments.(map[string]any)
			if !ok {
				if request.Params.Arguments != nil {
					return nil, fmt.Errorf("invalid arguments type: expected object, got %T", request.Params.Arguments)
				}
				args = map[string]any{}
			}
			return registry.Execute(toolCtx, name, args, telemetry.TransportStdio)
		})
	}

	logger.WithField("tools", len(registry.GetEnabledToolNames())).Debug("Starting MCP stdio server")
	stdio := mcpserver.NewStdioServer(mcpSrv)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

func toolsCommand(logger *logrus.Logger) *ucli.Command {
	outputFlag := &ucli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Value:   string(cli.OutputText),
		Usage:   "Output format (text or json)",
	}

	runner := func(cmd *ucli.Command) (*cli.Runner, error) {
		format, err := cli.ParseOutputFormat(cmd.String("output"))
		if err != nil {
			return nil, err
		}
		return cli.NewRunner(format), nil
	}

	withApp := func(fn func(ctx context.Context, cmd *ucli.Command, r *cli.Runner) error) ucli.ActionFunc {
		return func(ctx context.Context, cmd *ucli.Command) error {
			r, err := runner(cmd)
			if err != nil {
				return err
			}
			a, err := setup(cmd, logger, modeCLI)
			if err != nil {
				return err
			}
			defer a.close()
			return fn(ctx, cmd, r)
		}
	}

	return &ucli.Command{
		Name:  "tools",
		Usage: "Run PDF tools directly from the terminal",
		Flags: []ucli.Flag{outputFlag},
		Commands: []*ucli.Command{
			{
				Name:  "list",
				Usage: "List available tools",
				Action: withApp(func(_ context.Context, _ *ucli.Command, r *cli.Runner) error {
					return r.ListTools()
				}),
			},
			{
				Name:      "help",
				Usage:     "Show parameters and examples for a tool",
				ArgsUsage: "<tool>",
				Action: withApp(func(_ context.Context, cmd *ucli.Command, r *cli.Runner) error {
					if cmd.Args().Len() == 0 {
						return errors.New("tool name required")
					}
					return r.HelpTool(cmd.Args().First())
				}),
			},
			{
				Name:            "run",
				Usage:           "Run a tool with --key=value arguments or a JSON object",
				ArgsUsage:       "<tool> [--key=value ...] ['{\"key\": \"value\"}']",
				SkipFlagParsing: true,
				Action: withApp(func(ctx context.Context, cmd *ucli.Command, r *cli.Runner) error {
					args := cmd.Args().Slice()
					if len(args) == 0 {
						return errors.New("tool name required")
					}
					return r.RunTool(ctx, args[0], args[1:])
				}),
			},
		},
	}
}
