package extract

import "regexp"

// datePatterns is a cheap prefilter: only messages matching one of
// these go to an oracle at all. Misses cost an appointment, false
// positives only cost an API call, so the patterns are deliberately
// broad.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(montag|dienstag|mittwoch|donnerstag|freitag|samstag|sonntag)\b`),
	regexp.MustCompile(`(?i)\b(heute|morgen)\b`),
	regexp.MustCompile(`(?i)übermorgen`), // no \b: it is ASCII-only and ü breaks it
	regexp.MustCompile(`(?i)\b(nächste|kommende)[rn]?\s+(woche|monat)\b`),
	regexp.MustCompile(`(?i)\bwochenende\b`),
	regexp.MustCompile(`(?i)\b(januar|februar|märz|april|mai|juni|juli|august|september|oktober|november|dezember)\b`),
	regexp.MustCompile(`\b\d{1,2}\.\d{1,2}\.?(\d{2,4})?\b`), // 3.4., 03.04.2026
	regexp.MustCompile(`\b\d{1,2}:\d{2}\b`),                 // 16:00
	regexp.MustCompile(`(?i)\b\d{1,2}\s*uhr\b`),             // um 16 Uhr
	regexp.MustCompile(`(?i)\b(um|ab)\s+\d{1,2}\b`),         // "um 10", "ab 14"
	regexp.MustCompile(`(?i)termin`), // also matches Zahnarzttermin, Termine

	// Appointment-domain words. No word boundaries around "arzt" so
	// Zahnarzt and Kinderarzt match too.
	regexp.MustCompile(`(?i)(treffen|verabredung|meeting|arzt|training|geburtstag)`),
	regexp.MustCompile(`(?i)\b(abholen|hort|schule|kita|wettkampf|turnier|meisterschaft)\b`),
	regexp.MustCompile(`(?i)(mitbring|kaufen|einkauf|besorgen|vorbereiten)`),

	// Scheduling back-and-forth without an explicit date.
	regexp.MustCompile(`(?i)\b(wann|passt|klappt|verschieben|verschoben|absagen|abgesagt|fällt\s+aus)\b`),
}

// MightContainDate reports whether the message is worth sending to an
// oracle.
func MightContainDate(text string) bool {
	for _, p := range datePatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
