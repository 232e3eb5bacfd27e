package tools

import (
	"strconv"
	"time"
)

// Args is the flat key-value argument bag a tool call carries. Values arrive
// from JSON, so numbers are float64 and nested maps are map[string]any;
// accessors normalize those shapes and fall back to defaults.
type Args map[string]any

// String returns the string under key, or def when absent or not a string
func (a Args) String(key, def string) string {
	if v, ok := a[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}

// Int returns the integer under key, tolerating JSON numbers and numeric strings
func (a Args) Int(key string, def int) int {
	v, ok := a[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		if parsed, err := strconv.Atoi(n); err == nil {
			return parsed
		}
	}
	return def
}

// Bool returns the boolean under key, tolerating "true"/"false" strings
func (a Args) Bool(key string, def bool) bool {
	v, ok := a[key]
	if !ok {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(b); err == nil {
			return parsed
		}
	}
	return def
}

// StringMap returns the string-valued map under key, or nil
func (a Args) StringMap(key string) map[string]string {
	v, ok := a[key]
	if !ok {
		return nil
	}
	switch m := v.(type) {
	case map[string]string:
		return m
	case map[string]any:
		result := make(map[string]string, len(m))
		for k, val := range m {
			if s, ok := val.(string); ok {
				result[k] = s
			}
		}
		return result
	}
	return nil
}

// Time returns the RFC3339 timestamp under key, or the zero time
func (a Args) Time(key string) time.Time {
	s := a.String(key, "")
	if s == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts
	}
	return time.Time{}
}
