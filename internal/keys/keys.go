// Package keys turns extracted pairs into the normalized unique keys that are
// sent for classification.
package keys

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/Veraticus/kvlabel/internal/model"
)

// assetMarkers identify segments that name static resources or hosts.
var assetMarkers = []string{".min.js", ".css", ".png", ".jpg", ".js", ".svg", ".com", ".net"}

var separatorReplacer = strings.NewReplacer("_", " ", "-", " ", "/", " ")

// Normalize returns the classification form of one path segment, or false if
// the segment should not be classified.
func Normalize(segment string) (model.UniqueKey, bool) {
	if model.IsMarker(segment) || model.IsNamespaceLabel(segment) {
		return "", false
	}
	if utf8.RuneCountInString(segment) <= 1 {
		return "", false
	}

	text := norm.NFKC.String(segment)
	text = separatorReplacer.Replace(text)
	text = strings.ToLower(strings.TrimSpace(text))

	if isAsset(text) || isNumeric(text) || utf8.RuneCountInString(text) <= 1 {
		return "", false
	}
	return model.UniqueKey(text), true
}

func isAsset(text string) bool {
	for _, marker := range assetMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

func isNumeric(text string) bool {
	if text == "" {
		return false
	}
	for _, r := range text {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Set accumulates unique keys. The zero value is ready to use.
type Set struct {
	seen map[model.UniqueKey]struct{}
}

// AddPairs adds the keys of every path segment of pairs and returns the
// keys contributed by these pairs, deduplicated and sorted.
func (s *Set) AddPairs(pairs []model.ExtractedPair) []model.UniqueKey {
	if s.seen == nil {
		s.seen = make(map[model.UniqueKey]struct{})
	}

	local := make(map[model.UniqueKey]struct{})
	for _, p := range pairs {
		for _, seg := range p.Path {
			k, ok := Normalize(seg)
			if !ok {
				continue
			}
			local[k] = struct{}{}
			s.seen[k] = struct{}{}
		}
	}
	return sorted(local)
}

// Len returns the number of distinct keys seen.
func (s *Set) Len() int { return len(s.seen) }

// Keys returns every key seen, sorted.
func (s *Set) Keys() []model.UniqueKey {
	return sorted(s.seen)
}

// Strings returns Keys as plain strings.
func (s *Set) Strings() []string {
	ks := s.Keys()
	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = string(k)
	}
	return out
}

func sorted(m map[model.UniqueKey]struct{}) []model.UniqueKey {
	out := make([]model.UniqueKey, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PayloadKeys lists the keys observed in one payload.
type PayloadKeys struct {
	PayloadID string            `json:"payload_id"`
	Keys      []model.UniqueKey `json:"keys"`
}

// Collect gathers the unique keys of all batches along with the keys each
// payload contributed.
func Collect(batches []model.PayloadPairs) (*Set, []PayloadKeys) {
	set := &Set{}
	per := make([]PayloadKeys, 0, len(batches))
	for _, b := range batches {
		per = append(per, PayloadKeys{
			PayloadID: b.PayloadID,
			Keys:      set.AddPairs(b.Pairs),
		})
	}
	return set, per
}
