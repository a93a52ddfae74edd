package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/kvlabel/internal/model"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		want        model.LabelFile
		name        string
		content     string
		wantIgnored int
	}{
		{
			name:    "plain lines",
			content: "uid // Device Information // 0.9 // looks like an id\nlat // Precise Location // 1 // latitude",
			want: model.LabelFile{
				"uid": {Category: "Device Information", Score: "0.9", Explanation: "looks like an id"},
				"lat": {Category: "Precise Location", Score: "1", Explanation: "latitude"},
			},
		},
		{
			name:    "commentary ignored",
			content: "Here are the results:\n\nuid // Device Information // 0.9 // id\nLet me know!",
			want: model.LabelFile{
				"uid": {Category: "Device Information", Score: "0.9", Explanation: "id"},
			},
			wantIgnored: 2,
		},
		{
			name:    "missing explanation",
			content: "uid // Device Information // 0.9",
			want: model.LabelFile{
				"uid": {Category: "Device Information", Score: "0.9"},
			},
		},
		{
			name:    "explanation with separator",
			content: "url // Browsing History // 0.7 // path like a//b",
			want: model.LabelFile{
				"url": {Category: "Browsing History", Score: "0.7", Explanation: "path like a//b"},
			},
		},
		{
			name:    "quoted and bulleted keys",
			content: "- 'user id' // Name // 0.6 // x\n[\"email\", // Email Address // 0.95 // y",
			want: model.LabelFile{
				"user id": {Category: "Name", Score: "0.6", Explanation: "x"},
				"email":   {Category: "Email Address", Score: "0.95", Explanation: "y"},
			},
		},
		{
			name:        "too few fields",
			content:     "uid // Device Information",
			want:        model.LabelFile{},
			wantIgnored: 1,
		},
		{
			name:    "later duplicate wins",
			content: "uid // Name // 0.2 // first\nuid // Device Information // 0.8 // second",
			want: model.LabelFile{
				"uid": {Category: "Device Information", Score: "0.8", Explanation: "second"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseResponse(tt.content)
			assert.Equal(t, tt.want, got.Labels)
			assert.Len(t, got.Ignored, tt.wantIgnored)
		})
	}
}

func TestPromptBuilder_Build(t *testing.T) {
	b := NewPromptBuilder([]model.Category{
		{Name: "Email Address", Group: "Personal Identifiers"},
		{Name: "Device Information"},
	}, "Unclear")

	prompt := b.Build([]string{"user id", `say "hi"`})

	assert.Contains(t, prompt, "- Email Address (Personal Identifiers)\n")
	assert.Contains(t, prompt, "- Device Information\n")
	assert.Contains(t, prompt, "- Unclear: use only when no category applies")
	assert.Contains(t, prompt, "input // category // confidence score between 0 and 1 // short explanation")
	assert.Contains(t, prompt, `["user id","say \"hi\""]`)
	assert.NotEmpty(t, b.System())
}
