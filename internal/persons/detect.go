package persons

import (
	"fmt"
	"sort"
	"strings"
)

// DetectMentioned returns the profiles whose name or alias occurs in the
// message text or the surrounding conversation context, deduplicated.
func (d *Directory) DetectMentioned(text, context string) []*Profile {
	snap := d.snap()
	if len(snap.byKey) == 0 {
		return nil
	}

	combined := strings.ToLower(text + " " + context)
	seen := map[string]bool{}
	var result []*Profile

	keys := make([]string, 0, len(snap.byKey))
	for key := range snap.byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		p := snap.byKey[key]
		if strings.Contains(combined, key) && !seen[p.Name] {
			seen[p.Name] = true
			result = append(result, p)
		}
	}
	return result
}

// FormatForPrompt renders the matched profiles into the context block the
// extraction oracle consumes: role, facts, known places with their
// disambiguating context, activities with inference rules, and hints.
func FormatForPrompt(profiles []*Profile) string {
	if len(profiles) == 0 {
		return ""
	}

	var blocks []string
	for _, p := range profiles {
		var b strings.Builder
		rolle := p.Rolle
		if rolle == "" {
			rolle = "?"
		}
		fmt.Fprintf(&b, "%s (%s)\n", p.Name, rolle)

		for _, f := range p.Fakten {
			fmt.Fprintf(&b, "  - %s\n", f)
		}

		if len(p.Orte) > 0 {
			b.WriteString("  Bekannte Orte:\n")
			for _, key := range sortedKeys(p.Orte) {
				ort := p.Orte[key]
				name := ort.Name
				if name == "" {
					name = key
				}
				fmt.Fprintf(&b, "    * %s: %s\n", name, ort.Kontext)
			}
		}

		for _, name := range sortedKeys(p.Aktivitaeten) {
			akt := p.Aktivitaeten[name]
			ortInfo := ""
			if akt.Ort != "" {
				ortInfo = fmt.Sprintf(" [Ort: %s]", akt.Ort)
			}
			fmt.Fprintf(&b, "  Aktivität %s: %s%s\n", name, akt.Muster, ortInfo)
			for _, regel := range akt.TerminLogik {
				fmt.Fprintf(&b, "    -> %s\n", regel)
			}
		}

		if len(p.TerminHinweise) > 0 {
			b.WriteString("  Termin-Regeln:\n")
			for _, h := range p.TerminHinweise {
				fmt.Fprintf(&b, "    * %s\n", h)
			}
		}

		blocks = append(blocks, strings.TrimRight(b.String(), "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
