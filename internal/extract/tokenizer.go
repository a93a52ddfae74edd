package extract

import (
	"strings"

	"github.com/Veraticus/kvlabel/internal/model"
)

// Region is a JSON literal found inside a larger text.
type Region struct {
	// Key is the quoted field name preceding the value for `"key":` candidates.
	Key string
	// Value is the decoded literal; for keyed regions it is {Key: literal}.
	Value model.Value
	// Start and End are byte offsets of the decoded literal.
	Start int
	End   int
	// Keyed reports whether the region came from a `"key":` candidate.
	Keyed bool
}

// candidate is one match of the pattern `"[^"]+":|[{\[]`.
type candidate struct {
	key   string
	start int // match start
	end   int // match end
	keyed bool
}

// nextCandidate finds the leftmost candidate at or after pos, scanning the
// way a left-to-right regexp search over `"[^"]+":|[{\[]` would.
func nextCandidate(text string, pos int) (candidate, bool) {
	for i := pos; i < len(text); i++ {
		switch text[i] {
		case '{', '[':
			return candidate{start: i, end: i + 1}, true
		case '"':
			closing := strings.IndexByte(text[i+1:], '"')
			if closing <= 0 {
				continue
			}
			j := i + 1 + closing
			if j+1 < len(text) && text[j+1] == ':' {
				return candidate{
					key:   text[i+1 : j],
					start: i,
					end:   j + 2,
					keyed: true,
				}, true
			}
		}
	}
	return candidate{}, false
}

// FindJSONRegions scans text left to right for JSON literals. Candidates
// that fail to decode are skipped; candidates starting inside an already
// decoded region are suppressed.
func (e *Extractor) FindJSONRegions(text string) []Region {
	var regions []Region
	lastEnding := 0

	for pos := 0; pos < len(text); {
		c, ok := nextCandidate(text, pos)
		if !ok {
			break
		}
		pos = c.end

		if c.start < lastEnding {
			continue
		}

		startpos := c.start
		if c.keyed {
			startpos = c.end
		}

		v, n, err := decodePrefix(text[startpos:], e.opts.MaxDepth)
		if err != nil {
			e.logger.Debug("skipping undecodable candidate",
				"offset", startpos,
				"keyed", c.keyed,
				"error", err)
			continue
		}

		region := Region{
			Value: v,
			Start: startpos,
			End:   startpos + n,
			Keyed: c.keyed,
		}
		if c.keyed {
			region.Key = c.key
			region.Value = model.Object(model.Member{Key: c.key, Value: v})
		}
		regions = append(regions, region)
		lastEnding = region.End
	}

	return regions
}
