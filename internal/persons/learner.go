package persons

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Activity keywords recognized in termin titles, used to map a title to a
// normalized activity key. More specific keywords come first so that
// "Zahnarzt" does not collapse into "arzt".
var activityKeywords = []string{
	"wettkampf", "turnier", "meisterschaft", "schwimmen",
	"training", "abholen", "hort", "schule",
	"kindergeburtstag", "geburtstag", "zahnarzt", "arzt",
	"treffen", "übergabe",
}

const (
	maxTimeObservations = 20
	recurringMinCount   = 3
)

// Learner enriches person profiles from accepted termine and from reviewer
// feedback. All operations are best-effort: failures are logged and
// swallowed so learning can never break the extraction pipeline.
type Learner struct {
	dir    *Directory
	logger *slog.Logger
}

func NewLearner(dir *Directory, logger *slog.Logger) *Learner {
	return &Learner{dir: dir, logger: logger}
}

// NormalizeActivity maps a termin title to its core activity keyword.
// "Enno Wettkampf bis 18 Uhr" -> "wettkampf". Empty when none matches.
func NormalizeActivity(title string) string {
	lower := strings.ToLower(title)
	for _, act := range activityKeywords {
		if strings.Contains(lower, act) {
			return act
		}
	}
	return ""
}

// detectPersonInTitle finds which known person a termin title concerns.
// The returned pointer is shared with concurrent snapshot readers and must
// not be written to; mutating paths clone it first.
func (l *Learner) detectPersonInTitle(title string) *Profile {
	lower := strings.ToLower(title)
	for _, p := range l.dir.All() {
		if strings.Contains(lower, strings.ToLower(p.Name)) {
			return p
		}
		for _, alias := range p.Alias {
			if strings.Contains(lower, strings.ToLower(alias)) {
				return p
			}
		}
	}
	return nil
}

// LearnFromTermin records what a successfully stored termin teaches about a
// person: a new activity, or a time observation on a known one.
func (l *Learner) LearnFromTermin(title, category string, allDay bool, dt time.Time) {
	p := l.detectPersonInTitle(title)
	if p == nil {
		return
	}
	activity := NormalizeActivity(title)
	if activity == "" {
		return
	}
	p = p.clone()

	if l.knowsActivity(p, activity) {
		if !allDay {
			l.observeTime(p, activity, dt)
		}
		return
	}

	if p.Aktivitaeten == nil {
		p.Aktivitaeten = map[string]Activity{}
	}
	p.Aktivitaeten[activity] = Activity{
		Typ:         category,
		Muster:      fmt.Sprintf("Erkannt am %s", time.Now().Format("02.01.2006")),
		TerminLogik: []string{fmt.Sprintf("Auto-gelernt aus: '%s'", title)},
	}

	l.persist(p)
	l.logger.Info("learned new activity", "person", p.Name, "activity", activity, "title", title)
}

func (l *Learner) knowsActivity(p *Profile, activity string) bool {
	if _, ok := p.Aktivitaeten[activity]; ok {
		return true
	}
	for _, akt := range p.Aktivitaeten {
		words := strings.Fields(strings.ToLower(akt.Muster + " " + akt.Typ))
		for _, w := range words {
			if w == activity {
				return true
			}
		}
	}
	return false
}

// observeTime appends a dated "2026-03-03 Tuesday 16:00" observation for
// an activity and, once 3+ observations share a weekday, synthesizes a
// recurring hint. The date keeps weekly repeats countable, one entry per
// calendar day.
func (l *Learner) observeTime(p *Profile, activity string, dt time.Time) {
	if p.Learned.TimeObservations == nil {
		p.Learned.TimeObservations = map[string][]string{}
	}
	entry := fmt.Sprintf("%s %s %s", dt.Format("2006-01-02"), dt.Weekday(), dt.Format("15:04"))

	obs := p.Learned.TimeObservations[activity]
	for _, o := range obs {
		if o == entry {
			return
		}
	}
	obs = append(obs, entry)
	if len(obs) > maxTimeObservations {
		obs = obs[len(obs)-maxTimeObservations:]
	}
	p.Learned.TimeObservations[activity] = obs

	if day, clock, ok := recurringSlot(obs); ok {
		hint := fmt.Sprintf("[Auto] %s ist regelmäßig %ss um %s", activity, day, clock)
		if l.appendHint(p, hint) {
			l.logger.Info("detected recurring pattern", "person", p.Name, "pattern", hint)
		}
	}

	l.persist(p)
}

// recurringSlot finds a weekday with 3+ observations and its most common time.
func recurringSlot(obs []string) (day, clock string, ok bool) {
	byDay := map[string][]string{}
	for _, o := range obs {
		parts := strings.SplitN(o, " ", 3)
		if len(parts) != 3 {
			continue
		}
		byDay[parts[1]] = append(byDay[parts[1]], parts[2])
	}

	for _, d := range sortedKeys(byDay) {
		times := byDay[d]
		if len(times) < recurringMinCount {
			continue
		}
		counts := map[string]int{}
		best := times[0]
		for _, t := range times {
			counts[t]++
			if counts[t] > counts[best] {
				best = t
			}
		}
		return d, best, true
	}
	return "", "", false
}

// LearnFromFeedback turns a rejection or edit into a profile hint.
func (l *Learner) LearnFromFeedback(title, action, reason string, correction map[string]string) {
	p := l.detectPersonInTitle(title)
	if p == nil {
		return
	}
	p = p.clone()

	var hint string
	switch action {
	case "rejected":
		if reason == "" {
			reason = "kein Grund angegeben"
		}
		hint = fmt.Sprintf("[Feedback] '%s' wurde ABGELEHNT: %s", title, reason)
	case "edited":
		if len(correction) == 0 {
			return
		}
		var changes []string
		for _, k := range sortedKeys(correction) {
			changes = append(changes, fmt.Sprintf("%s->%s", k, correction[k]))
		}
		hint = fmt.Sprintf("[Feedback] '%s' wurde KORRIGIERT: %s", title, strings.Join(changes, ", "))
	default:
		return
	}

	if l.appendHint(p, hint) {
		l.persist(p)
		l.logger.Info("learned from feedback", "person", p.Name, "action", action)
	}
}

// appendHint adds a hint if not already present. Idempotent.
func (l *Learner) appendHint(p *Profile, hint string) bool {
	for _, h := range p.TerminHinweise {
		if strings.EqualFold(h, hint) {
			return false
		}
	}
	p.TerminHinweise = append(p.TerminHinweise, hint)
	return true
}

func (l *Learner) persist(p *Profile) {
	if err := l.dir.save(p); err != nil {
		l.logger.Warn("failed to persist learned profile", "person", p.Name, "error", err)
		return
	}
	// Invalidate the cache so the next extraction sees the update.
	if err := l.dir.Reload(); err != nil {
		l.logger.Warn("profile reload after learning failed", "error", err)
	}
}

// ObservedTermin is the minimal shape DetectRecurringPatterns needs.
type ObservedTermin struct {
	Title    string
	Datetime time.Time
	AllDay   bool
}

// DetectRecurringPatterns scans stored termine for person/activity pairs
// with 3+ occurrences on the same weekday and writes the hint to the
// profile. Returns the detected patterns, for logging.
func (l *Learner) DetectRecurringPatterns(termine []ObservedTermin) []string {
	byKey := map[string][]time.Time{}
	owner := map[string]string{}

	for _, t := range termine {
		if t.AllDay {
			continue
		}
		p := l.detectPersonInTitle(t.Title)
		activity := NormalizeActivity(t.Title)
		if p == nil || activity == "" {
			continue
		}
		key := strings.ToLower(p.Name) + "/" + activity
		byKey[key] = append(byKey[key], t.Datetime)
		owner[key] = p.Name
	}

	var detected []string
	for _, key := range sortedKeys(byKey) {
		dates := byKey[key]
		if len(dates) < recurringMinCount {
			continue
		}
		obs := make([]string, 0, len(dates))
		for _, dt := range dates {
			obs = append(obs, fmt.Sprintf("%s %s %s", dt.Format("2006-01-02"), dt.Weekday(), dt.Format("15:04")))
		}
		day, clock, ok := recurringSlot(obs)
		if !ok {
			continue
		}

		activity := key[strings.Index(key, "/")+1:]
		// Look the profile up fresh each round: a previous key may have
		// persisted a hint for the same person, and the clone keeps the
		// write off the shared snapshot.
		p, ok := l.dir.Lookup(owner[key])
		if !ok {
			continue
		}
		p = p.clone()
		hint := fmt.Sprintf("[Auto] %s ist regelmäßig %ss um %s", activity, day, clock)
		if l.appendHint(p, hint) {
			l.persist(p)
		}
		detected = append(detected, fmt.Sprintf("%s: %s %s", p.Name, day, clock))
	}
	return detected
}
