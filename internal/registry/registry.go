package registry

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/pdfmaster/internal/errorlog"
	"github.com/sammcj/pdfmaster/internal/response"
	"github.com/sammcj/pdfmaster/internal/telemetry"
	"github.com/sammcj/pdfmaster/internal/tools"
	"github.com/sirupsen/logrus"
)

// EnvDisabledTools lists tool names, comma separated, that are never exposed.
const EnvDisabledTools = "DISABLED_TOOLS"

var (
	mu sync.RWMutex

	// toolRegistry is a map of tool names to tool implementations
	toolRegistry = make(map[string]tools.Tool)

	// disabledTools is a set of tool names to disable
	disabledTools = make(map[string]bool)

	logger *logrus.Logger
	env    *tools.Env
	errlog = errorlog.Disabled()
)

// Init sets the shared collaborators and reads DISABLED_TOOLS.
func Init(l *logrus.Logger, e *tools.Env, el *errorlog.Logger) {
	mu.Lock()
	defer mu.Unlock()

	logger = l
	env = e
	if e != nil && e.Logger == nil {
		e.Logger = l
	}
	if el != nil {
		errlog = el
	}
	parseDisabledTools()
}

// parseDisabledTools must be called with mu held.
func parseDisabledTools() {
	disabledTools = make(map[string]bool)

	for tool := range strings.SplitSeq(os.Getenv(EnvDisabledTools), ",") {
		tool = normalise(tool)
		if tool == "" {
			continue
		}
		disabledTools[tool] = true
		if logger != nil {
			logger.WithField("tool", tool).Debug("Tool disabled")
		}
	}

	if logger != nil && len(disabledTools) > 0 {
		logger.WithField("count", len(disabledTools)).Debug("Parsed disabled tools from environment")
	}
}

// normalise lowercases a tool name and accepts kebab-case for snake_case names.
func normalise(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
}

// Register adds a tool implementation to the registry. Disabled tools are
// registered but never returned.
func Register(tool tools.Tool) {
	mu.Lock()
	defer mu.Unlock()

	toolName := tool.Definition().Name
	toolRegistry[toolName] = tool
	if logger != nil {
		logger.WithField("tool", toolName).Debug("Tool registered")
	}
}

// GetTool retrieves a tool by name, returns false if disabled
func GetTool(name string) (tools.Tool, bool) {
	mu.RLock()
	defer mu.RUnlock()

	if disabledTools[normalise(name)] {
		return nil, false
	}
	tool, ok := toolRegistry[name]
	return tool, ok
}

// GetEnabledTools returns all tools that are not disabled
func GetEnabledTools() map[string]tools.Tool {
	mu.RLock()
	defer mu.RUnlock()

	filtered := make(map[string]tools.Tool, len(toolRegistry))
	for name, tool := range toolRegistry {
		if disabledTools[normalise(name)] {
			continue
		}
		filtered[name] = tool
	}
	return filtered
}

// GetEnabledToolNames returns a sorted list of enabled tool names
func GetEnabledToolNames() []string {
	enabled := GetEnabledTools()
	names := make([]string, 0, len(enabled))
	for name := range enabled {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetToolNamesWithExtendedHelp returns a sorted list of enabled tool names that provide extended help
func GetToolNamesWithExtendedHelp() []string {
	var names []string
	for name, tool := range GetEnabledTools() {
		if _, ok := tool.(tools.ExtendedHelpProvider); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// GetLogger returns the shared logger instance
func GetLogger() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// GetEnv returns the shared tool environment
func GetEnv() *tools.Env {
	mu.RLock()
	defer mu.RUnlock()
	return env
}

// Execute runs the named tool inside an operation span, records its metrics and
// logs failures. Client-side failures become error results so the caller sees the
// message; internal failures are returned as errors.
func Execute(ctx context.Context, name string, args map[string]any, transport string) (*mcp.CallToolResult, error) {
	tool, ok := GetTool(name)
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	e := GetEnv()
	if e == nil {
		return nil, fmt.Errorf("registry not initialised")
	}

	start := time.Now()
	ctx, span := telemetry.StartOperationSpan(ctx, name, transport, args)
	result, err := tool.Execute(ctx, e, args)
	telemetry.EndOperationSpan(span, err)
	telemetry.RecordOperation(ctx, name, transport, time.Since(start), err)

	if err == nil {
		return result, nil
	}

	mu.RLock()
	el := errlog
	mu.RUnlock()
	el.Log(name, args, err, transport)

	if l := GetLogger(); l != nil {
		l.WithFields(logrus.Fields{
			"tool":      name,
			"transport": transport,
			"category":  telemetry.CategoriseError(err),
		}).WithError(err).Warn("Tool execution failed")
	}

	if response.KindOf(err) == response.KindInternal {
		return nil, fmt.Errorf("tool execution failed: %w", err)
	}
	return mcp.NewToolResultError(response.ErrorDetail(err)), nil
}

// reset clears all registrations. Tests only.
func reset() {
	mu.Lock()
	defer mu.Unlock()
	toolRegistry = make(map[string]tools.Tool)
	disabledTools = make(map[string]bool)
	env = nil
	errlog = errorlog.Disabled()
}
