package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whatsorga/radar/internal/extract"
	"github.com/whatsorga/radar/internal/store"
)

func TestTitleSimilarity(t *testing.T) {
	tests := []struct {
		candidate string
		existing  string
		same      bool
	}{
		{"Enno Training", "Enno Training", true},
		{"Training", "Enno Schwimmtraining Training", true},
		{"Enno Training 16 Uhr", "Enno Training", true},
		{"Zahnarzt Romy", "Enno Training", false},
		{"Der Termin mit dem", "Enno Training", false}, // only stopwords
		{"Wettkampf", "Schwimmwettkampf Enno", false},  // substring is not a word match
	}
	for _, tt := range tests {
		if got := SameTermin(tt.candidate, tt.existing); got != tt.same {
			t.Errorf("SameTermin(%q, %q) = %v, want %v (score %.2f)",
				tt.candidate, tt.existing, got, tt.same, TitleSimilarity(tt.candidate, tt.existing))
		}
	}
}

type fakeStore struct {
	termine  map[uuid.UUID]*store.Termin
	inserted []*store.Termin
	updated  []*store.Termin
	statuses map[uuid.UUID]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		termine:  map[uuid.UUID]*store.Termin{},
		statuses: map[uuid.UUID]string{},
	}
}

func (f *fakeStore) add(t *store.Termin) *store.Termin {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	f.termine[t.ID] = t
	return t
}

func (f *fakeStore) InsertTermin(ctx context.Context, t *store.Termin) (uuid.UUID, error) {
	t.ID = uuid.New()
	f.termine[t.ID] = t
	f.inserted = append(f.inserted, t)
	return t.ID, nil
}

func (f *fakeStore) UpdateTermin(ctx context.Context, t *store.Termin) error {
	f.termine[t.ID] = t
	f.updated = append(f.updated, t)
	return nil
}

func (f *fakeStore) SetTerminStatus(ctx context.Context, id uuid.UUID, status string) error {
	f.statuses[id] = status
	return nil
}

func (f *fakeStore) GetTermin(ctx context.Context, id uuid.UUID) (*store.Termin, error) {
	t, ok := f.termine[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) ActiveOnDay(ctx context.Context, chatID string, day time.Time) ([]store.Termin, error) {
	var out []store.Termin
	for _, t := range f.termine {
		if t.ChatID == chatID && t.Datetime.Year() == day.Year() && t.Datetime.YearDay() == day.YearDay() && t.Active() {
			out = append(out, *t)
		}
	}
	return out, nil
}

var berlin = time.FixedZone("CET", 3600)

func resolved(title string, when time.Time) extract.Resolved {
	return extract.Resolved{
		Action:     extract.ActionCreate,
		Title:      title,
		When:       when,
		Category:   "appointment",
		Relevance:  extract.RelevanceShared,
		Confidence: 0.9,
	}
}

func TestApplyCreate(t *testing.T) {
	fs := newFakeStore()
	e := NewEngine(fs, slog.Default())

	results, err := e.Apply(context.Background(), "chat-1", uuid.New(),
		[]extract.Resolved{resolved("Enno Training", time.Date(2026, 3, 2, 16, 0, 0, 0, berlin))})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, OpCreated, results[0].Op)
	assert.Equal(t, store.StatusUnsynced, results[0].Termin.Status)
	assert.NotEqual(t, uuid.Nil, results[0].Termin.ID)
	assert.Len(t, fs.inserted, 1)
}

func TestApplyDuplicateSuppressed(t *testing.T) {
	fs := newFakeStore()
	existing := fs.add(&store.Termin{
		ChatID:   "chat-1",
		Title:    "Enno Training",
		Datetime: time.Date(2026, 3, 2, 16, 0, 0, 0, berlin),
		Status:   store.StatusAuto,
	})
	e := NewEngine(fs, slog.Default())

	// Same termin mentioned again, slightly different title and time.
	results, err := e.Apply(context.Background(), "chat-1", uuid.New(),
		[]extract.Resolved{resolved("Training Enno morgen", time.Date(2026, 3, 2, 16, 30, 0, 0, berlin))})
	require.NoError(t, err)

	assert.Equal(t, OpDuplicate, results[0].Op)
	assert.Equal(t, existing.ID, results[0].Termin.ID)
	assert.Empty(t, fs.inserted)
}

func TestApplyDuplicateDifferentDayCreates(t *testing.T) {
	fs := newFakeStore()
	fs.add(&store.Termin{
		ChatID:   "chat-1",
		Title:    "Enno Training",
		Datetime: time.Date(2026, 3, 2, 16, 0, 0, 0, berlin),
		Status:   store.StatusAuto,
	})
	e := NewEngine(fs, slog.Default())

	results, err := e.Apply(context.Background(), "chat-1", uuid.New(),
		[]extract.Resolved{resolved("Enno Training", time.Date(2026, 3, 9, 16, 0, 0, 0, berlin))})
	require.NoError(t, err)
	assert.Equal(t, OpCreated, results[0].Op)
}

func TestApplyCancelByRef(t *testing.T) {
	fs := newFakeStore()
	existing := fs.add(&store.Termin{
		ChatID:   "chat-1",
		Title:    "Enno Training",
		Datetime: time.Date(2026, 3, 2, 16, 0, 0, 0, berlin),
		Status:   store.StatusAuto,
	})
	e := NewEngine(fs, slog.Default())

	results, err := e.Apply(context.Background(), "chat-1", uuid.New(),
		[]extract.Resolved{{Action: extract.ActionCancel, Ref: existing.ID.String()}})
	require.NoError(t, err)

	assert.Equal(t, OpCancelled, results[0].Op)
	assert.Equal(t, store.StatusCancelled, fs.statuses[existing.ID])
}

func TestApplyCancelDanglingRefDiscards(t *testing.T) {
	fs := newFakeStore()
	e := NewEngine(fs, slog.Default())

	results, err := e.Apply(context.Background(), "chat-1", uuid.New(),
		[]extract.Resolved{{Action: extract.ActionCancel, Ref: uuid.New().String()}})
	require.NoError(t, err)
	assert.Equal(t, OpDiscarded, results[0].Op)
}

func TestApplyUpdateByRef(t *testing.T) {
	fs := newFakeStore()
	existing := fs.add(&store.Termin{
		ChatID:     "chat-1",
		Title:      "Enno Training",
		Datetime:   time.Date(2026, 3, 2, 16, 0, 0, 0, berlin),
		Relevance:  extract.RelevancePartnerOnly,
		Confidence: 0.55,
		Status:     store.StatusAuto,
	})
	e := NewEngine(fs, slog.Default())

	c := resolved("Enno Training", time.Date(2026, 3, 2, 17, 0, 0, 0, berlin))
	c.Action = extract.ActionUpdate
	c.Ref = existing.ID.String()
	c.Reminders = []extract.ReminderSpec{{Trigger: "-PT30M", Description: "Gleich Training"}}

	results, err := e.Apply(context.Background(), "chat-1", uuid.New(), []extract.Resolved{c})
	require.NoError(t, err)

	assert.Equal(t, OpUpdated, results[0].Op)
	assert.Equal(t, 17, results[0].Termin.Datetime.Hour())
	assert.Equal(t, store.StatusUnsynced, results[0].Termin.Status, "updated termin must re-sync")
	assert.Equal(t, extract.RelevanceShared, results[0].Termin.Relevance, "re-extraction must move the tier")
	assert.Equal(t, 0.9, results[0].Termin.Confidence)
	assert.Equal(t, "appointment", results[0].Termin.Category)
	require.Len(t, results[0].Termin.Reminders, 1)
	assert.Equal(t, "-PT30M", results[0].Termin.Reminders[0].Trigger)
}

func TestApplyUpdateDanglingRefCreates(t *testing.T) {
	fs := newFakeStore()
	e := NewEngine(fs, slog.Default())

	c := resolved("Enno Training", time.Date(2026, 3, 2, 16, 0, 0, 0, berlin))
	c.Action = extract.ActionUpdate
	c.Ref = "not-a-uuid"

	results, err := e.Apply(context.Background(), "chat-1", uuid.New(), []extract.Resolved{c})
	require.NoError(t, err)
	assert.Equal(t, OpCreated, results[0].Op)
}
