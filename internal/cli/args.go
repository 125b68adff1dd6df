package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/mark3labs/mcp-go/mcp"
)

// param describes one tool input as seen from the command line.
type param struct {
	name string
	typ  string
}

// flagSet maps kebab-case flag names onto a tool's input schema.
type flagSet map[string]param

func newFlagSet(def mcp.Tool) flagSet {
	fs := make(flagSet, len(def.InputSchema.Properties))
	for name, raw := range def.InputSchema.Properties {
		p := param{name: name}
		if prop, ok := raw.(map[string]any); ok {
			p.typ, _ = prop["type"].(string)
		}
		fs[toFlagName(name)] = p
	}
	return fs
}

// lookup resolves a flag to its parameter. Unknown flags map to snake_case so the
// tool can report them.
func (fs flagSet) lookup(flag string) param {
	if p, ok := fs[flag]; ok {
		return p
	}
	return param{name: strings.ReplaceAll(flag, "-", "_")}
}

// parseArgs turns `--key=value`, `--key value`, bare boolean `--flag` and JSON object
// arguments into tool arguments. Flags win over keys from a JSON object.
func parseArgs(args []string, def mcp.Tool) (map[string]any, error) {
	fs := newFlagSet(def)
	flags := make(map[string]any)
	merged := make(map[string]any)

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case strings.HasPrefix(arg, "{"):
			if err := json.Unmarshal([]byte(arg), &merged); err != nil {
				return nil, fmt.Errorf("invalid JSON argument: %w", err)
			}
		case strings.HasPrefix(arg, "--"):
			name, value, hasValue := strings.Cut(arg[2:], "=")
			p := fs.lookup(name)
			switch {
			case hasValue:
			case p.typ == "boolean":
				flags[p.name] = true
				continue
			case i+1 < len(args):
				i++
				value = args[i]
			default:
				return nil, fmt.Errorf("flag --%s requires a value", name)
			}
			flags[p.name] = coerce(value, p.typ)
		default:
			return nil, fmt.Errorf("unexpected argument %q: pass --key=value flags or a JSON object", arg)
		}
	}

	for k, v := range flags {
		merged[k] = v
	}
	return merged, nil
}

// coerce converts a flag value to the JSON type the schema declares. Values that do
// not parse are passed through as strings for the tool to reject.
func coerce(raw, typ string) any {
	switch typ {
	case "integer", "number":
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	case "boolean":
		switch strings.ToLower(raw) {
		case "yes", "y", "on":
			return true
		case "no", "n", "off":
			return false
		}
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	case "array":
		var items []any
		if json.Unmarshal([]byte(raw), &items) == nil {
			return items
		}
		return strings.Split(raw, ",")
	case "object":
		var obj map[string]any
		if json.Unmarshal([]byte(raw), &obj) == nil {
			return obj
		}
	}
	return raw
}

// toFlagName renders snake_case or camelCase parameter names as kebab-case.
func toFlagName(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '_':
			b.WriteByte('-')
		case unicode.IsUpper(r):
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
