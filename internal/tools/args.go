package tools

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/sammcj/pdfmaster/internal/pagerange"
	"github.com/sammcj/pdfmaster/internal/response"
)

// String returns the trimmed string argument key, or def when absent or empty.
func String(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

// RequiredString returns the string argument key or an error naming it.
func RequiredString(args map[string]any, key string) (string, error) {
	v := String(args, key, "")
	if v == "" {
		return "", response.BadRequest(fmt.Sprintf("missing or invalid required parameter: %s", key), nil)
	}
	return v, nil
}

// Int returns the integer argument key. JSON numbers arrive as float64 and must be
// whole; numeric strings are accepted for the CLI.
func Int(args map[string]any, key string, def int) (int, error) {
	switch v := args[key].(type) {
	case nil:
		return def, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, response.BadRequest(fmt.Sprintf("%s must be a whole number", key), nil)
		}
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return def, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, response.BadRequest(fmt.Sprintf("%s must be a whole number", key), err)
		}
		return n, nil
	default:
		return 0, response.BadRequest(fmt.Sprintf("%s must be a number", key), nil)
	}
}

// Float returns the numeric argument key.
func Float(args map[string]any, key string, def float64) (float64, error) {
	switch v := args[key].(type) {
	case nil:
		return def, nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return def, nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, response.BadRequest(fmt.Sprintf("%s must be a number", key), err)
		}
		return f, nil
	default:
		return 0, response.BadRequest(fmt.Sprintf("%s must be a number", key), nil)
	}
}

// Bool returns the boolean argument key.
func Bool(args map[string]any, key string, def bool) bool {
	switch v := args[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

// Pages parses the page-range argument key. Absent means every page.
func Pages(args map[string]any, key string) (pagerange.Selection, error) {
	raw := String(args, key, "")
	if raw == "" {
		return pagerange.AllPages(), nil
	}
	sel, err := pagerange.Parse(raw)
	if err != nil {
		return pagerange.Selection{}, response.BadRequest(err.Error(), err)
	}
	return sel, nil
}

// File returns the absolute path argument key after checking that it names an
// existing regular file with one of exts.
func File(args map[string]any, key string, exts ...string) (string, error) {
	path, err := RequiredString(args, key)
	if err != nil {
		return "", err
	}
	return checkFile(key, path, exts...)
}

// Files returns the path list argument key. Arrays and comma-separated strings are
// both accepted.
func Files(args map[string]any, key string, exts ...string) ([]string, error) {
	var raw []string
	switch v := args[key].(type) {
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, response.BadRequest(fmt.Sprintf("%s must be a list of paths", key), nil)
			}
			raw = append(raw, s)
		}
	case []string:
		raw = v
	case string:
		raw = strings.Split(v, ",")
	case nil:
	default:
		return nil, response.BadRequest(fmt.Sprintf("%s must be a list of paths", key), nil)
	}

	paths := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		checked, err := checkFile(key, p, exts...)
		if err != nil {
			return nil, err
		}
		paths = append(paths, checked)
	}
	return paths, nil
}

// OptionalPath returns the absolute path argument key, or "" when absent.
func OptionalPath(args map[string]any, key string) (string, error) {
	path := String(args, key, "")
	if path != "" && !filepath.IsAbs(path) {
		return "", response.BadRequest(fmt.Sprintf("%s must be an absolute path", key), nil)
	}
	return path, nil
}

func checkFile(key, path string, exts ...string) (string, error) {
	if !filepath.IsAbs(path) {
		return "", response.BadRequest(fmt.Sprintf("%s must be an absolute path", key), nil)
	}
	if len(exts) > 0 {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
		if !slices.Contains(exts, ext) {
			return "", response.BadRequest(fmt.Sprintf("%s must be a %s file", path, strings.Join(exts, "/")), nil)
		}
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", response.NotFound(fmt.Sprintf("file does not exist: %s", path), err)
	}
	if err != nil {
		return "", response.Internal("failed to stat file", err)
	}
	if !info.Mode().IsRegular() {
		return "", response.BadRequest(fmt.Sprintf("%s is not a regular file", path), nil)
	}
	return path, nil
}
