package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Veraticus/kvlabel/internal/model"
)

const systemPrompt = "You are a privacy analyst labeling keys observed in network traffic. " +
	"Respond only with result lines in the exact format requested."

// PromptBuilder renders the ontology prompt for a list of keys.
type PromptBuilder struct {
	categories []model.Category
	unclear    string
}

// NewPromptBuilder creates a builder for the given vocabulary. unclear names
// the catch-all label the model may use when no category fits.
func NewPromptBuilder(categories []model.Category, unclear string) *PromptBuilder {
	cats := make([]model.Category, len(categories))
	copy(cats, categories)
	return &PromptBuilder{categories: cats, unclear: unclear}
}

// Build returns the user prompt for keys.
func (b *PromptBuilder) Build(keys []string) string {
	var sb strings.Builder

	sb.WriteString("Each input below is a key taken from a key-value pair sent by a website or mobile app. ")
	sb.WriteString("Classify each input into exactly one of the following data type categories, ")
	sb.WriteString("based on what kind of personal or device data its value would carry.\n\n")

	sb.WriteString("Categories (group in parentheses):\n")
	for _, c := range b.categories {
		if c.Group != "" {
			fmt.Fprintf(&sb, "- %s (%s)\n", c.Name, c.Group)
		} else {
			fmt.Fprintf(&sb, "- %s\n", c.Name)
		}
	}
	if b.unclear != "" {
		fmt.Fprintf(&sb, "- %s: use only when no category applies\n", b.unclear)
	}

	sb.WriteString("\nFor every input, output exactly one line in this format:\n")
	sb.WriteString("input // category // confidence score between 0 and 1 // short explanation\n")
	sb.WriteString("Copy each input exactly as given. Use only the category names listed above. ")
	sb.WriteString("Output one line per input and nothing else.\n\n")

	sb.WriteString("Inputs:\n")
	list, _ := json.Marshal(keys)
	sb.Write(list)
	sb.WriteString("\n")

	return sb.String()
}

// System returns the system prompt.
func (b *PromptBuilder) System() string { return systemPrompt }
