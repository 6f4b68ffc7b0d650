// Package reconcile merges extracted candidates into the stored
// termine: duplicate suppression, updates and cancellations against
// existing entries, creation of the rest.
package reconcile

import "strings"

// titleStopwords are too common in German chat to count as signal.
var titleStopwords = map[string]bool{
	"der": true, "die": true, "das": true, "den": true, "dem": true,
	"ein": true, "eine": true, "einen": true, "und": true, "mit": true,
	"bei": true, "für": true, "von": true, "zum": true, "zur": true,
	"uhr": true, "termin": true,
}

const similarityThreshold = 0.5

// TitleSimilarity scores how many of the candidate's significant words
// appear in the existing title, as a fraction of the candidate's
// significant words. Asymmetric on purpose: "Training" must match
// "Enno Schwimmtraining Training" but not drown in it.
func TitleSimilarity(candidate, existing string) float64 {
	cw := significantWords(candidate)
	if len(cw) == 0 {
		return 0
	}
	ew := map[string]bool{}
	for _, w := range significantWords(existing) {
		ew[w] = true
	}

	hits := 0
	for _, w := range cw {
		if ew[w] {
			hits++
		}
	}
	return float64(hits) / float64(len(cw))
}

// SameTermin reports whether a candidate title refers to an existing
// one closely enough to count as a duplicate.
func SameTermin(candidate, existing string) bool {
	return TitleSimilarity(candidate, existing) >= similarityThreshold
}

func significantWords(title string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(title)) {
		w = strings.Trim(w, ".,!?:;()\"'")
		if len([]rune(w)) < 3 || titleStopwords[w] {
			continue
		}
		out = append(out, w)
	}
	return out
}
