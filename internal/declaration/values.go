package declaration

import (
	"fmt"
	"strconv"
	"strings"
)

// Masked-value sentinels the registry substitutes for withheld data.
// They normalize to "value unknown" (nil), never to zero or empty.
const (
	sentinelConfidential  = "[Конфіденційна інформація]"
	sentinelNotApplicable = "[Не застосовується]"
)

// String extracts the first non-empty, non-masked string among the
// candidate keys. Candidate order is a documented contract: it encodes
// priority among registry schema variants.
func String(m map[string]any, keys ...string) *string {
	for _, key := range keys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		s := strings.TrimSpace(fmt.Sprintf("%v", v))
		if s == "" || s == sentinelConfidential || s == sentinelNotApplicable {
			continue
		}
		return &s
	}
	return nil
}

// Int extracts the first parseable integer among the candidate keys.
func Int(m map[string]any, keys ...string) *int {
	for _, key := range keys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		if n, ok := toInt(v); ok {
			return &n
		}
	}
	return nil
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" || s == sentinelConfidential {
			return 0, false
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Decimal extracts the first parseable numeric value among the
// candidate keys, normalizing the registry's decimal convention
// (comma as fractional separator, spaces as grouping).
func Decimal(m map[string]any, keys ...string) *float64 {
	for _, key := range keys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		if f, ok := toDecimal(v); ok {
			return &f
		}
	}
	return nil
}

func toDecimal(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" || s == sentinelConfidential {
			return 0, false
		}
		s = strings.NewReplacer(",", ".", " ", "").Replace(s)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Date normalizes a registry date to ISO form. The registry writes
// "28.07.2016"; masked values arrive as bracketed placeholders of
// several spellings and all normalize to unknown.
func Date(m map[string]any, keys ...string) *string {
	for _, key := range keys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		s := strings.TrimSpace(fmt.Sprintf("%v", v))
		if s == "" {
			continue
		}
		if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
			continue
		}
		if iso, ok := toISODate(s); ok {
			return &iso
		}
	}
	return nil
}

func toISODate(s string) (string, bool) {
	if !strings.Contains(s, ".") {
		return s, true
	}
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return s, true
	}
	day, month, year := parts[0], parts[1], parts[2]
	if len(year) != 4 {
		return "", false
	}
	if len(month) == 1 {
		month = "0" + month
	}
	if len(day) == 1 {
		day = "0" + day
	}
	return fmt.Sprintf("%s-%s-%s", year, month, day), true
}

// Flag reports whether the field carries the registry's affirmative
// marker ("Так").
func Flag(m map[string]any, key string) bool {
	return m[key] == "Так"
}

// BitFlag reports whether the field carries the registry's "1" marker.
func BitFlag(m map[string]any, key string) bool {
	return m[key] == "1"
}
