// Package extract turns raw captured payload text into structurally addressed
// key/value observations. It understands JSON literals embedded anywhere in
// the text, '&'-delimited query assignments, ';'-delimited cookie
// assignments, and any nesting of these inside each other.
//
// Extraction never fails on malformed input: a candidate that does not decode
// is skipped and scanning continues.
package extract

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/kvlabel/internal/model"
)

// DefaultMaxDepth bounds JSON nesting and recursive re-scanning of embedded text.
const DefaultMaxDepth = 64

// Options configures an Extractor.
type Options struct {
	MaxDepth int
	// Workers bounds the goroutines used by ExtractBatch.
	Workers int
}

// Extractor implements the recursive key/value extraction strategies.
// It holds no mutable state and is safe for concurrent use.
type Extractor struct {
	logger *slog.Logger
	opts   Options
}

// New creates an Extractor. A nil logger discards debug output.
func New(logger *slog.Logger, opts Options) *Extractor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Extractor{logger: logger, opts: opts}
}

var defaultExtractor = New(nil, Options{})

// ExtractAll extracts every pair from payload using a default Extractor.
func ExtractAll(payload string) []model.ExtractedPair {
	return defaultExtractor.ExtractAll(payload)
}

// ExtractAll returns the ordered pairs of one payload: JSON-derived pairs
// first, then '&'-derived, then ';'-derived. A payload that is JSON at top
// level goes through the JSON strategy, and its string leaves are searched
// for embedded JSON and assignments. Any other payload is split on '&' and
// ';' only. Duplicates across strategies are kept.
func (e *Extractor) ExtractAll(payload string) []model.ExtractedPair {
	var c collector
	if isJSONLike(payload) {
		e.extractJSON(&c, payload, nil, 0, model.SourceJSON)
		return c.pairs()
	}

	for _, delim := range []byte{Ampersand, Semicolon} {
		if splitApplies(payload, delim) {
			e.splitAssignments(&c, payload, delim, nil, 0)
		}
	}
	return c.pairs()
}

// collector groups pairs by the strategy that produced them so that the
// group order holds no matter how deeply a pair was found.
type collector struct {
	json, amp, semi []model.ExtractedPair
}

func (c *collector) add(p model.ExtractedPair) {
	switch p.Source {
	case model.SourceAmpersand:
		c.amp = append(c.amp, p)
	case model.SourceSemicolon:
		c.semi = append(c.semi, p)
	default:
		c.json = append(c.json, p)
	}
}

func (c *collector) pairs() []model.ExtractedPair {
	out := make([]model.ExtractedPair, 0, len(c.json)+len(c.amp)+len(c.semi))
	out = append(out, c.json...)
	out = append(out, c.amp...)
	return append(out, c.semi...)
}

func isJSONLike(payload string) bool {
	return opensJSON(strings.TrimSpace(payload))
}

// extractJSON finds JSON regions in text, walks them from prefix, and
// re-scans string leaves for embedded structure under leafPath + "~".
// Leaves are tagged with source, the strategy whose text they came from.
func (e *Extractor) extractJSON(c *collector, text string, prefix model.Path, depth int, source model.Source) {
	if depth > e.opts.MaxDepth {
		e.logger.Debug("re-scan depth limit reached", "path", prefix.String())
		return
	}

	for _, region := range e.FindJSONRegions(text) {
		for _, leaf := range e.Walk(region.Value, prefix) {
			c.add(model.ExtractedPair{
				Path:   leaf.Path,
				Key:    leaf.Path.Key(),
				Value:  leaf.Value,
				Source: source,
			})

			if leaf.Value.Kind == model.KindString {
				e.rescan(c, leaf.Value.Str, leaf.Path.Append(model.EmbeddedMarker), depth+1, source)
			}
		}
	}
}

// rescan looks inside a string leaf for nested JSON and assignment text. A
// leaf is only split on a delimiter it contains, so padded tokens such as
// base64 values stay whole.
func (e *Extractor) rescan(c *collector, s string, path model.Path, depth int, source model.Source) {
	if s == "" {
		return
	}

	e.extractJSON(c, s, path, depth, source)
	if isJSONLike(s) {
		return
	}
	if depth > e.opts.MaxDepth || !strings.Contains(s, "=") {
		return
	}

	for _, delim := range []byte{Ampersand, Semicolon} {
		if strings.IndexByte(s, delim) >= 0 {
			e.splitAssignments(c, s, delim, path, depth)
		}
	}
}

// ExtractBatch extracts many payloads concurrently. Results are returned in
// input order. Cancellation stops scheduling further payloads.
func (e *Extractor) ExtractBatch(ctx context.Context, payloads []model.Payload) ([]model.PayloadPairs, error) {
	results := make([]model.PayloadPairs, len(payloads))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)

	for i, p := range payloads {
		if err := gctx.Err(); err != nil {
			break
		}
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = model.PayloadPairs{
				PayloadID: p.ID,
				Pairs:     e.ExtractAll(p.Text),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
