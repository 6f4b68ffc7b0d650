package extract

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrUnparseable means the oracle produced output no strategy could
// salvage. The extractor treats this differently from a clean "no
// termine" answer: unparseable output triggers the next backend.
var ErrUnparseable = errors.New("oracle output not parseable")

var negativePhrases = []string{
	"keine termine",
	"kein termin",
	"keine relevanten termine",
	"nichts gefunden",
}

// ParseResponse extracts candidates from raw oracle output. Models
// wrap, fence and decorate their JSON in creative ways, so this walks
// a chain of increasingly forgiving strategies before giving up.
func ParseResponse(raw string) ([]Candidate, error) {
	cleaned := stripFences(strings.TrimSpace(raw))
	if cleaned == "" {
		return nil, ErrUnparseable
	}

	// Strategy 1: the requested wrapper object. The key check keeps
	// unrelated JSON objects from passing as an empty answer.
	if strings.Contains(cleaned, `"termine"`) {
		var wrapper struct {
			Termine []Candidate `json:"termine"`
		}
		if err := json.Unmarshal([]byte(cleaned), &wrapper); err == nil {
			return wrapper.Termine, nil
		}
	}

	// Strategy 2: a bare JSON array, possibly embedded in prose.
	if cands, ok := scanArray(cleaned); ok {
		return cands, nil
	}

	// Strategy 3: an explicit negative answer in prose.
	lower := strings.ToLower(cleaned)
	for _, phrase := range negativePhrases {
		if strings.Contains(lower, phrase) {
			return nil, nil
		}
	}

	return nil, ErrUnparseable
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// scanArray finds the last bracket-balanced array in the text and
// accepts it when it decodes to candidates that look like termine (or
// is empty). Working backwards matters: reasoning text before the
// answer sometimes contains stray brackets.
func scanArray(s string) ([]Candidate, bool) {
	for start := strings.LastIndex(s, "["); start >= 0; start = strings.LastIndex(s[:start], "[") {
		depth := 0
		for i := start; i < len(s); i++ {
			switch s[i] {
			case '[':
				depth++
			case ']':
				depth--
			}
			if depth == 0 {
				var cands []Candidate
				if err := json.Unmarshal([]byte(s[start:i+1]), &cands); err == nil && plausible(cands) {
					return cands, true
				}
				break
			}
		}
	}
	return nil, false
}

// plausible rejects arrays that decoded but clearly are not termine,
// like [1, 2, 3] out of some reasoning step.
func plausible(cands []Candidate) bool {
	for _, c := range cands {
		if c.Title == "" && c.Datetime == "" {
			return false
		}
	}
	return true
}
