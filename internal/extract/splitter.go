package extract

import (
	"net/url"
	"strings"

	"github.com/Veraticus/kvlabel/internal/model"
)

// Assignment delimiters.
const (
	Ampersand = '&'
	Semicolon = ';'
)

func sourceFor(delim byte) model.Source {
	if delim == Semicolon {
		return model.SourceSemicolon
	}
	return model.SourceAmpersand
}

// splitApplies reports whether a whole payload should be split on delim.
// Text without any '=' carries no assignments. A lone "k=v" is treated as
// &-encoded only, so it is not reported twice.
func splitApplies(text string, delim byte) bool {
	if !strings.Contains(text, "=") {
		return false
	}
	switch delim {
	case Semicolon:
		return strings.IndexByte(text, Semicolon) >= 0
	default:
		return strings.IndexByte(text, Ampersand) >= 0 || strings.IndexByte(text, Semicolon) < 0
	}
}

// stripQueryPrefix drops a URL path in front of the query string so that
// "/collect?v=1&t=x" yields keys "v" and "t".
func stripQueryPrefix(text string) string {
	q := strings.IndexByte(text, '?')
	if q < 0 {
		return text
	}
	if eq := strings.IndexByte(text, '='); eq >= 0 && eq < q {
		return text
	}
	return text[q+1:]
}

// SplitAssignments splits text on delim and each segment on its first '='.
// A segment without '=' yields the key with an empty value. A value that
// opens a JSON literal (raw or percent-encoded) is also walked and its
// sub-pairs, rooted at the assignment key and tagged with the delimiter's
// source, follow the raw pair.
func (e *Extractor) SplitAssignments(text string, delim byte) []model.ExtractedPair {
	if !splitApplies(text, delim) {
		return nil
	}
	var c collector
	e.splitAssignments(&c, text, delim, nil, 0)
	return c.pairs()
}

func (e *Extractor) splitAssignments(c *collector, text string, delim byte, prefix model.Path, depth int) {
	source := sourceFor(delim)

	for _, segment := range strings.Split(stripQueryPrefix(text), string(delim)) {
		if strings.TrimSpace(segment) == "" {
			continue
		}

		key, value, _ := strings.Cut(segment, "=")
		key = strings.TrimSpace(key)
		path := prefix.Append(key)

		c.add(model.ExtractedPair{
			Path:   path,
			Key:    key,
			Value:  model.String(value),
			Source: source,
		})

		if nested, ok := jsonValueText(value); ok {
			e.extractJSON(c, nested, path, depth+1, source)
		}
	}
}

// jsonValueText returns the text to walk when an assignment value opens a
// JSON literal, percent-decoding it first when needed.
func jsonValueText(value string) (string, bool) {
	if opensJSON(value) {
		return value, true
	}
	upper := strings.ToUpper(value)
	if strings.HasPrefix(upper, "%7B") || strings.HasPrefix(upper, "%5B") {
		decoded, err := url.QueryUnescape(value)
		if err == nil && opensJSON(decoded) {
			return decoded, true
		}
	}
	return "", false
}

func opensJSON(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}
