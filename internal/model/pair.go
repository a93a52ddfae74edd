package model

import (
	"encoding/json"
	"strings"
)

// Path segment markers.
const (
	// ListMarker is appended to a path for every list element descended into.
	ListMarker = "[]"
	// EmbeddedMarker is appended when a string value is re-scanned as embedded text.
	EmbeddedMarker = "~"
)

// Payload is one captured request fragment (body, URL path+query, header block).
type Payload struct {
	ID   string `json:"id"`
	Text string `json:"payload"`
}

// Path is the structural address of a value inside a payload.
type Path []string

// Append returns a copy of p with segs appended. The receiver is never aliased.
func (p Path) Append(segs ...string) Path {
	out := make(Path, 0, len(p)+len(segs))
	out = append(out, p...)
	return append(out, segs...)
}

// Key returns the innermost segment that names a field, skipping markers.
func (p Path) Key() string {
	for i := len(p) - 1; i >= 0; i-- {
		if !IsMarker(p[i]) {
			return p[i]
		}
	}
	return ""
}

// Equal reports whether two paths have identical segments.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

func (p Path) String() string {
	return "(" + strings.Join(p, ", ") + ")"
}

// IsMarker reports whether seg is a structural marker rather than a field name.
func IsMarker(seg string) bool {
	return seg == ListMarker || seg == EmbeddedMarker
}

// IsNamespaceLabel reports whether seg is a "<namespace>" path root.
func IsNamespaceLabel(seg string) bool {
	return len(seg) >= 2 && strings.HasPrefix(seg, "<") && strings.HasSuffix(seg, ">")
}

// NamespaceLabel formats a namespace value as a path root.
func NamespaceLabel(ns string) string {
	return "<" + ns + ">"
}

// Source records which extraction strategy produced a pair.
type Source string

// Extraction strategies, in output order.
const (
	SourceJSON      Source = "json"
	SourceAmpersand Source = "ampersand"
	SourceSemicolon Source = "semicolon"
)

// ExtractedPair is one key/value observation found in a payload.
type ExtractedPair struct {
	Key    string `json:"key"`
	Source Source `json:"source"`
	Path   Path   `json:"path"`
	Value  Value  `json:"value"`
}

// MarshalJSON keeps the wire order path, key, value, source.
func (p ExtractedPair) MarshalJSON() ([]byte, error) {
	path := p.Path
	if path == nil {
		path = Path{}
	}
	return json.Marshal(struct {
		Path   Path   `json:"path"`
		Key    string `json:"key"`
		Value  Value  `json:"value"`
		Source Source `json:"source"`
	}{path, p.Key, p.Value, p.Source})
}

// PayloadPairs groups the pairs extracted from a single payload.
type PayloadPairs struct {
	PayloadID string          `json:"payload_id"`
	Pairs     []ExtractedPair `json:"pairs"`
}

// UniqueKey is a normalized, deduplicated key string; the unit of classification.
type UniqueKey string
