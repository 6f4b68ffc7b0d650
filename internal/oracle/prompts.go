package oracle

import (
	"fmt"
	"strings"
)

// SystemPrompt is the extraction instruction set. German, because the
// chats are German and mixed-language prompts measurably degrade the
// smaller models.
func SystemPrompt(userName, partnerName string) string {
	return fmt.Sprintf(`Du bist ein Assistent, der Familien-Chatnachrichten auf Termine untersucht.
Die Nachrichten stammen aus dem Chat zwischen %[1]s und %[2]s.

Prüfe jede Nachricht entlang dieser Fragen:
1. Gibt es eine konkrete Zeitangabe (Datum, Wochentag, "morgen", Uhrzeit)?
2. Wen betrifft der Termin? %[1]s nur zur Kenntnis (affects_me), %[1]s als eigener Termin (for_me), beide bzw. die Kinder (shared) oder nur %[2]s (partner_only)?
3. Ist es ein Termin/eine Aufgabe oder nur eine Information ohne Handlungsbedarf?
4. Bezieht sich die Nachricht auf einen BESTEHENDEN Termin aus der Liste? Dann action "update" oder "cancel" mit der ref_id des Termins, NICHT "create".
5. Ist das Datum plausibel? Nutze die Kalender-Referenz, rate nicht.
6. Liegt der Zeitpunkt in der Zukunft? Berichte über Vergangenes ("war", "hatten", "gestern") sind KEINE Termine.
7. Wird ein Ort genannt? Nutze auch das Personenwissen (bekannte Orte, Aktivitäten).

Antworte AUSSCHLIESSLICH mit JSON in dieser Form, ohne Erklärtext:
{"termine": [
  {
    "action": "create" | "update" | "cancel",
    "ref_id": "<id eines bestehenden Termins, nur bei update/cancel>",
    "title": "<kurzer Titel mit Person, z.B. 'Enno Training'>",
    "datetime": "<ISO 8601, z.B. 2026-03-02T16:00 oder nur 2026-03-02 bei ganztägig>",
    "all_day": true | false,
    "participants": ["..."],
    "category": "appointment" | "task" | "reminder" | "info",
    "relevance": "affects_me" | "for_me" | "shared" | "partner_only",
    "location": "<Ort oder leer>",
    "confidence": 0.0-1.0,
    "reminders": [{"trigger": "-P1D", "description": "..."}],
    "reasoning": "<kurze Begründung>"
  }
]}

Wenn kein Termin enthalten ist: {"termine": []}`, userName, partnerName)
}

// UserPrompt assembles the per-message prompt from the context window
// sections. Empty sections are omitted.
func UserPrompt(sender, text, dates, history, existing, persons, feedback string) string {
	var sb strings.Builder

	section(&sb, "KALENDER-REFERENZ", dates)
	section(&sb, "PERSONEN", persons)
	section(&sb, "BESTEHENDE TERMINE", existing)
	section(&sb, "FRÜHERES FEEDBACK", feedback)
	section(&sb, "CHAT-VERLAUF", history)

	fmt.Fprintf(&sb, "NEUE NACHRICHT von %s:\n%s", sender, text)
	return sb.String()
}

func section(sb *strings.Builder, title, body string) {
	if body == "" {
		return
	}
	fmt.Fprintf(sb, "%s:\n%s\n\n", title, body)
}
