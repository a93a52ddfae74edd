package llm

import (
	"strings"

	"github.com/Veraticus/kvlabel/internal/model"
)

const fieldSeparator = "//"

// ParsedResponse is the result of reading one model response.
type ParsedResponse struct {
	Labels model.LabelFile
	// Ignored holds non-empty lines that were not label lines.
	Ignored []string
}

// ParseResponse reads lines of the form
//
//	key // category // score // explanation
//
// Lines without " // " are commentary and are ignored. The key may be quoted
// or carry list punctuation from echoing the input list. When a key appears
// twice the later line wins.
func ParseResponse(content string) ParsedResponse {
	parsed := ParsedResponse{Labels: make(model.LabelFile)}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.Contains(line, " "+fieldSeparator+" ") {
			parsed.Ignored = append(parsed.Ignored, line)
			continue
		}

		fields := strings.SplitN(line, fieldSeparator, 4)
		if len(fields) < 3 {
			parsed.Ignored = append(parsed.Ignored, line)
			continue
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		key := cleanKey(fields[0])
		if key == "" {
			parsed.Ignored = append(parsed.Ignored, line)
			continue
		}

		label := model.RawLabel{
			Category: fields[1],
			Score:    fields[2],
		}
		if len(fields) == 4 {
			label.Explanation = fields[3]
		}
		parsed.Labels[key] = label
	}

	return parsed
}

// cleanKey strips the list and quote punctuation a model adds when it echoes
// keys from a rendered list: 'key', "key", ['key', 'key'], and bullets.
func cleanKey(s string) string {
	s = strings.TrimPrefix(s, "- ")
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, ",")
	s = strings.TrimSuffix(s, "]")
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '\'' || first == '"') && last == first {
			s = s[1 : len(s)-1]
		}
	}
	return strings.TrimSpace(s)
}
