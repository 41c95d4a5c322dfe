package settings

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// --------------------------------------------------------------------------
// Normalization
// --------------------------------------------------------------------------

// Normalize rewrites every segment of key according to the configured naming
// convention. Normalize is idempotent.
func Normalize(key string) string {
	c := CurrentConfig()
	return NormalizeWith(key, c.Naming, c.Delimiter)
}

// NormalizeWith is Normalize with an explicit convention and delimiter.
func NormalizeWith(key string, naming NamingConvention, delimiter string) string {
	if naming == NamingUnchanged || key == "" {
		return key
	}
	segments := strings.Split(key, delimiter)
	for i, seg := range segments {
		switch naming {
		case NamingCamelCase:
			segments[i] = toCamel(seg)
		case NamingSnakeCase:
			segments[i] = toSnake(seg)
		}
	}
	return strings.Join(segments, delimiter)
}

// splitUnderscores separates leading and trailing underscores from the core
// of a segment. Reserved names like "_other_" only consist of those.
func splitUnderscores(seg string) (lead, core, trail string) {
	start := 0
	for start < len(seg) && seg[start] == '_' {
		start++
	}
	end := len(seg)
	for end > start && seg[end-1] == '_' {
		end--
	}
	return seg[:start], seg[start:end], seg[end:]
}

func toCamel(seg string) string {
	lead, core, trail := splitUnderscores(seg)
	if !strings.Contains(core, "_") {
		return seg
	}
	var b strings.Builder
	b.Grow(len(seg))
	b.WriteString(lead)
	upperNext := false
	for _, r := range core {
		if r == '_' {
			upperNext = b.Len() > len(lead)
			continue
		}
		if upperNext {
			r = unicode.ToUpper(r)
			upperNext = false
		}
		b.WriteRune(r)
	}
	b.WriteString(trail)
	return b.String()
}

func toSnake(seg string) string {
	lead, core, trail := splitUnderscores(seg)
	hasUpper := false
	for _, r := range core {
		if unicode.IsUpper(r) {
			hasUpper = true
			break
		}
	}
	if !hasUpper {
		return seg
	}

	runes := []rune(core)
	var b strings.Builder
	b.Grow(len(seg) + 4)
	b.WriteString(lead)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && runes[i-1] != '_' {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	b.WriteString(trail)
	return b.String()
}

// --------------------------------------------------------------------------
// Categorization
// --------------------------------------------------------------------------

// CategoryOf returns everything before the last delimiter of key. ok is false
// if the key has fewer than two segments or the category part is empty.
func CategoryOf(key, delimiter string) (category string, ok bool) {
	idx := strings.LastIndex(key, delimiter)
	if idx <= 0 {
		return "", false
	}
	return key[:idx], true
}

// LeafOf returns the last segment of key.
func LeafOf(key, delimiter string) string {
	idx := strings.LastIndex(key, delimiter)
	if idx < 0 {
		return key
	}
	return key[idx+len(delimiter):]
}

// Sanitize normalizes key and makes sure it carries a category. Keys without
// a category are moved to the orphan category unless strict keys are
// configured, in which case a FailedSaving error is returned.
func Sanitize(key string) (string, error) {
	return sanitizeWith(key, CurrentConfig())
}

func sanitizeWith(key string, c Config) (string, error) {
	if key == "" {
		return "", keyError(RetCBadInput, key, "key must not be empty")
	}
	if !utf8.ValidString(key) {
		return "", keyError(RetCBadInput, key, "key %q is not valid utf-8", key)
	}

	n := NormalizeWith(key, c.Naming, c.Delimiter)
	if _, ok := CategoryOf(n, c.Delimiter); ok {
		return n, nil
	}
	if c.StrictKeys {
		return "", keyError(RetCFailedSaving, key, "key %q has no category (expected delimiter %q)", key, c.Delimiter)
	}
	return c.OrphanCategory + c.Delimiter + n, nil
}

// SanitizeAll sanitizes every key of values. The first key that cannot be
// sanitized aborts the whole batch.
func SanitizeAll(values map[string]any) (map[string]any, error) {
	c := CurrentConfig()
	out := make(map[string]any, len(values))
	for k, v := range values {
		s, err := sanitizeWith(k, c)
		if err != nil {
			return nil, err
		}
		out[s] = v
	}
	return out, nil
}
