// Package calendar pushes termine to the CalDAV server: ICS payload
// construction, the CalDAV HTTP client and the sync routing on top.
package calendar

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/whatsorga/radar/internal/store"
)

const defaultDuration = time.Hour

// BuildICS renders a termin as a single-event VCALENDAR. All-day
// termine span exactly one day with date-only values, timed termine
// carry the local TZID and a one-hour duration.
func BuildICS(t *store.Termin, uid, tzid string, infoPrefix bool) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//WhatsOrga//Radar//DE")

	ev := cal.AddEvent(uid)
	ev.SetDtStampTime(time.Now().UTC())

	title := t.Title
	if infoPrefix {
		title = "[Info] " + title
	}
	ev.SetSummary(title)
	if t.Location != "" {
		ev.SetLocation(t.Location)
	}
	if t.Reasoning != "" {
		ev.SetDescription(t.Reasoning)
	}

	if t.AllDay {
		ev.SetAllDayStartAt(t.Datetime)
		ev.SetAllDayEndAt(t.Datetime.AddDate(0, 0, 1))
	} else {
		tz := &ical.KeyValues{Key: "TZID", Value: []string{tzid}}
		ev.SetProperty(ical.ComponentPropertyDtStart, t.Datetime.Format("20060102T150405"), tz)
		ev.SetProperty(ical.ComponentPropertyDtEnd, t.Datetime.Add(defaultDuration).Format("20060102T150405"), tz)
	}

	for _, r := range reminders(t) {
		alarm := ev.AddAlarm()
		alarm.SetAction(ical.ActionDisplay)
		alarm.SetTrigger(r.Trigger)
		alarm.SetProperty(ical.ComponentPropertyDescription, r.Description)
	}

	return cal.Serialize()
}

// reminders returns the termin's alarms, falling back to the standard
// pair: one the day before, one two hours ahead.
func reminders(t *store.Termin) []store.Reminder {
	if len(t.Reminders) > 0 {
		return t.Reminders
	}
	return []store.Reminder{
		{Trigger: "-P1D", Description: fmt.Sprintf("Morgen: %s", t.Title)},
		{Trigger: "-PT2H", Description: fmt.Sprintf("In 2 Stunden: %s", t.Title)},
	}
}
