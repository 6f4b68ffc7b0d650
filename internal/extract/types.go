// Package extract turns a chat message plus its context window into
// normalized termin candidates via the oracle cascade.
package extract

// Candidate actions. Update and cancel carry a Ref pointing at an
// existing termin.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionCancel = "cancel"
)

// Relevance tiers. partner_only termine are stored but never synced.
// for_me is an older model output for the user's own termine; it routes
// like shared but without the [Info] title prefix.
const (
	RelevanceAffectsMe   = "affects_me"
	RelevanceForMe       = "for_me"
	RelevanceShared      = "shared"
	RelevancePartnerOnly = "partner_only"
)

// ReminderSpec mirrors the VALARM shape the model emits.
type ReminderSpec struct {
	Trigger     string `json:"trigger"`
	Description string `json:"description"`
}

// Candidate is one extracted termin before reconciliation. Datetime
// stays a string here, normalization resolves it against the configured
// timezone. AllDay is a pointer because "the model said false" and
// "the model said nothing" normalize differently.
type Candidate struct {
	Action       string         `json:"action"`
	Ref          string         `json:"ref_id"`
	Title        string         `json:"title"`
	Datetime     string         `json:"datetime"`
	AllDay       *bool          `json:"all_day"`
	Participants []string       `json:"participants"`
	Category     string         `json:"category"`
	Relevance    string         `json:"relevance"`
	Location     string         `json:"location"`
	Confidence   float64        `json:"confidence"`
	Reminders    []ReminderSpec `json:"reminders"`
	Reasoning    string         `json:"reasoning"`
}
