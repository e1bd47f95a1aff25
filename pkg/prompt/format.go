package prompt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"strings"
)

// placeholderRe matches {dotted.path} placeholders (spec §4.1).
var placeholderRe = regexp.MustCompile(`\{([a-zA-Z0-9_]+(?:\.[a-zA-Z0-9_]+)*)\}`)

// substitute replaces every {dotted.path} placeholder in text with the
// corresponding value from data. Values that are objects/arrays, or whose
// final path segment contains "json", are pretty-printed as JSON. Missing
// paths are left as the literal placeholder and logged as warnings.
func substitute(text string, data map[string]any) string {
	return placeholderRe.ReplaceAllStringFunc(text, func(match string) string {
		path := match[1 : len(match)-1]
		val, ok := lookup(data, path)
		if !ok {
			slog.Warn("prompt: missing placeholder", "path", path)
			return match
		}
		return renderValue(path, val)
	})
}

// lookup walks a dotted path through nested maps.
func lookup(data map[string]any, path string) (any, bool) {
	segments := strings.Split(path, ".")
	var cur any = data
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[seg]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func renderValue(path string, val any) string {
	key := path[strings.LastIndex(path, ".")+1:]
	switch v := val.(type) {
	case string:
		if strings.Contains(strings.ToLower(key), "json") {
			return toJSON(v)
		}
		return v
	case nil:
		return ""
	default:
		switch reflect.ValueOf(v).Kind() {
		case reflect.Map, reflect.Slice, reflect.Array:
			return toJSON(v)
		default:
			if strings.Contains(strings.ToLower(key), "json") {
				return toJSON(v)
			}
			return fmt.Sprintf("%v", v)
		}
	}
}

func toJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// ErrTemplateNotFound constructs the not-found error for a missing template.
func ErrTemplateNotFound(name string) error {
	return fmt.Errorf("prompt: template %q not found", name)
}
