package llm

// Token counts are approximated from text length.
const (
	charsPerToken = 4
	// lineTokens approximates one "key // category // score // explanation" result line.
	lineTokens = 60
)

// SublistEstimate is the projected size of one request.
type SublistEstimate struct {
	Keys         int
	PromptTokens int
	OutputTokens int
}

// Estimate is the projected size of classifying a key list at one temperature.
type Estimate struct {
	Sublists     []SublistEstimate
	PromptTokens int
	OutputTokens int
}

// TotalTokens returns prompt plus output tokens.
func (e Estimate) TotalTokens() int { return e.PromptTokens + e.OutputTokens }

// Over returns the indexes of sublists whose prompt plus output exceeds limit.
func (e Estimate) Over(limit int) []int {
	if limit <= 0 {
		return nil
	}
	var out []int
	for i, s := range e.Sublists {
		if s.PromptTokens+s.OutputTokens >= limit {
			out = append(out, i)
		}
	}
	return out
}

// Estimate projects request sizes for keys without calling the model.
func (s *LLMSampler) Estimate(keys []string) Estimate {
	var est Estimate
	for _, batch := range Sublists(keys, s.batchSize) {
		prompt := s.prompts.System() + s.prompts.Build(batch)
		sub := SublistEstimate{
			Keys:         len(batch),
			PromptTokens: (len(prompt) + charsPerToken - 1) / charsPerToken,
			OutputTokens: len(batch) * lineTokens,
		}
		est.Sublists = append(est.Sublists, sub)
		est.PromptTokens += sub.PromptTokens
		est.OutputTokens += sub.OutputTokens
	}
	return est
}
