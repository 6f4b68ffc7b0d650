package contextwin

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

var germanWeekdays = map[time.Weekday]string{
	time.Monday:    "Montag",
	time.Tuesday:   "Dienstag",
	time.Wednesday: "Mittwoch",
	time.Thursday:  "Donnerstag",
	time.Friday:    "Freitag",
	time.Saturday:  "Samstag",
	time.Sunday:    "Sonntag",
}

// DateReference renders a weekday lookup table so the model resolves
// relative dates ("Dienstag", "morgen") to concrete dates instead of
// guessing. Covers today, morgen, übermorgen and the next two
// occurrences of every weekday.
func DateReference(now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Heute ist %s, der %s.\n", germanWeekdays[now.Weekday()], now.Format("02.01.2006"))
	fmt.Fprintf(&sb, "Morgen: %s, %s\n", germanWeekdays[now.AddDate(0, 0, 1).Weekday()], now.AddDate(0, 0, 1).Format("02.01.2006"))
	fmt.Fprintf(&sb, "Übermorgen: %s, %s\n", germanWeekdays[now.AddDate(0, 0, 2).Weekday()], now.AddDate(0, 0, 2).Format("02.01.2006"))

	sb.WriteString("Nächste Wochentage:\n")
	days := make([]time.Weekday, 0, 7)
	for d := range germanWeekdays {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool {
		// Start the table on Monday, the way a German calendar reads.
		return mondayIndex(days[i]) < mondayIndex(days[j])
	})

	for _, d := range days {
		first := nextWeekday(now, d)
		second := first.AddDate(0, 0, 7)
		fmt.Fprintf(&sb, "- %s: %s, danach %s\n", germanWeekdays[d], first.Format("02.01.2006"), second.Format("02.01.2006"))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func mondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// nextWeekday returns the next occurrence of d strictly after now's day.
func nextWeekday(now time.Time, d time.Weekday) time.Time {
	delta := (int(d) - int(now.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return now.AddDate(0, 0, delta)
}
