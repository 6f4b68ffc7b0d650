package oracle

import (
	"strings"
	"testing"
)

func TestSystemPrompt(t *testing.T) {
	p := SystemPrompt("Ben", "Marike")

	for _, want := range []string{"Ben", "Marike", `"termine"`, "affects_me", "for_me", "partner_only", "ref_id", "all_day"} {
		if !strings.Contains(p, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}

func TestUserPromptOmitsEmptySections(t *testing.T) {
	p := UserPrompt("Marike", "Training morgen", "Heute ist Montag", "", "", "", "")

	if !strings.Contains(p, "KALENDER-REFERENZ:\nHeute ist Montag") {
		t.Errorf("date section missing:\n%s", p)
	}
	if strings.Contains(p, "CHAT-VERLAUF") || strings.Contains(p, "BESTEHENDE TERMINE") {
		t.Errorf("empty sections must be omitted:\n%s", p)
	}
	if !strings.HasSuffix(p, "NEUE NACHRICHT von Marike:\nTraining morgen") {
		t.Errorf("message must close the prompt:\n%s", p)
	}
}

func TestUserPromptSectionOrder(t *testing.T) {
	p := UserPrompt("Ben", "ok", "dates", "history", "existing", "persons", "feedback")

	idx := func(s string) int { return strings.Index(p, s) }
	if !(idx("KALENDER-REFERENZ") < idx("PERSONEN") &&
		idx("PERSONEN") < idx("BESTEHENDE TERMINE") &&
		idx("BESTEHENDE TERMINE") < idx("FRÜHERES FEEDBACK") &&
		idx("FRÜHERES FEEDBACK") < idx("CHAT-VERLAUF") &&
		idx("CHAT-VERLAUF") < idx("NEUE NACHRICHT")) {
		t.Errorf("sections out of order:\n%s", p)
	}
}
