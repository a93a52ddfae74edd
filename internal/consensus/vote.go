package consensus

import (
	"github.com/Veraticus/kvlabel/internal/model"
)

// Vote returns the plurality category among samples and the index of its
// first occurrence. Ties go to the category seen first in temperature order.
func Vote(samples Samples) (string, int) {
	counts := make(map[string]int, len(samples))
	for _, s := range samples {
		counts[s.Category]++
	}

	winner, first, best := "", -1, 0
	for i, s := range samples {
		if c := counts[s.Category]; c > best {
			winner, first, best = s.Category, i, c
		}
	}
	return winner, first
}

// Score returns the maximum and mean confidence over the samples labeled
// winner, and the explanation of the first of them.
func Score(samples Samples, winner string) (maxScore, avgScore float64, explanation string) {
	var sum float64
	n := 0
	for _, s := range samples {
		if s.Category != winner {
			continue
		}
		if n == 0 {
			explanation = s.Explanation
			maxScore = s.Score
		} else if s.Score > maxScore {
			maxScore = s.Score
		}
		sum += s.Score
		n++
	}
	if n > 0 {
		avgScore = sum / float64(n)
	}
	return maxScore, avgScore, explanation
}

// Decide reconciles the samples of one key into its consensus result.
func Decide(key string, samples Samples, vocab *Vocabulary) model.ConsensusResult {
	winner, _ := Vote(samples)
	maxScore, avgScore, explanation := Score(samples, winner)

	r := model.ConsensusResult{
		Key:               key,
		WinnerLabel:       winner,
		WinnerExplanation: explanation,
		MaxScore:          maxScore,
		AvgScore:          avgScore,
	}
	if vocab != nil {
		r.WinnerGroup = vocab.Group(winner)
	}
	for i, s := range samples {
		r.AllLabels[i] = s.Category
		r.AllScores[i] = s.Score
		r.AllExplanations[i] = s.Explanation
	}
	return r
}

// Partition builds the max-score and avg-score label maps. Membership in
// each is decided independently: max_score >= threshold, avg_score >= threshold.
func Partition(results []model.ConsensusResult, threshold float64) (maxLabels, avgLabels map[string]string) {
	maxLabels = make(map[string]string)
	avgLabels = make(map[string]string)
	for _, r := range results {
		if r.MaxScore >= threshold {
			maxLabels[r.Key] = r.WinnerLabel
		}
		if r.AvgScore >= threshold {
			avgLabels[r.Key] = r.WinnerLabel
		}
	}
	return maxLabels, avgLabels
}
