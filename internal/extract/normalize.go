package extract

import (
	"fmt"
	"time"
)

// defaultClock is substituted when a termin is explicitly timed but
// the model only produced a date.
const defaultClock = 9 * time.Hour

// Resolved is a candidate after normalization, with a concrete local
// time and every optional field defaulted.
type Resolved struct {
	Action       string
	Ref          string
	Title        string
	When         time.Time
	AllDay       bool
	Participants []string
	Category     string
	Relevance    string
	Location     string
	Confidence   float64
	Reminders    []ReminderSpec
	Reasoning    string
}

var datetimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// Normalize resolves a raw candidate against the local timezone and
// fills in defaults. Candidates without a usable datetime are rejected,
// except cancellations, which only need their reference.
func Normalize(c Candidate, sender string, loc *time.Location) (Resolved, error) {
	r := Resolved{
		Action:       c.Action,
		Ref:          c.Ref,
		Title:        c.Title,
		Participants: c.Participants,
		Category:     c.Category,
		Relevance:    c.Relevance,
		Location:     c.Location,
		Confidence:   c.Confidence,
		Reminders:    c.Reminders,
		Reasoning:    c.Reasoning,
	}

	if r.Action == "" {
		r.Action = ActionCreate
	}
	if r.Relevance == "" {
		r.Relevance = RelevanceShared
	}
	if r.Category == "" {
		r.Category = "appointment"
	}
	if r.Confidence <= 0 {
		r.Confidence = 0.5
	}
	if r.Confidence > 1 {
		r.Confidence = 1
	}
	if len(r.Participants) == 0 {
		r.Participants = []string{sender}
	}

	if c.Datetime == "" {
		if r.Action == ActionCancel && r.Ref != "" {
			return r, nil
		}
		return Resolved{}, fmt.Errorf("candidate %q: missing datetime", c.Title)
	}

	if day, err := time.ParseInLocation("2006-01-02", c.Datetime, loc); err == nil {
		// Date only. All-day unless the model explicitly said timed,
		// in which case a safe default time is imposed.
		if c.AllDay != nil && !*c.AllDay {
			r.When = day.Add(defaultClock)
		} else {
			r.When = day
			r.AllDay = true
		}
		return r, nil
	}

	for _, layout := range datetimeLayouts {
		if ts, err := time.ParseInLocation(layout, c.Datetime, loc); err == nil {
			// A clock time always wins over an all_day claim.
			r.When = ts
			return r, nil
		}
	}
	if ts, err := time.Parse(time.RFC3339, c.Datetime); err == nil {
		r.When = ts.In(loc)
		return r, nil
	}

	return Resolved{}, fmt.Errorf("candidate %q: unparseable datetime %q", c.Title, c.Datetime)
}
