package extract

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whatsorga/radar/internal/oracle"
)

func TestMightContainDate(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Training morgen um 16 Uhr", true},
		{"Treffen am Dienstag", true},
		{"am 3.4. um 15:30", true},
		{"Das Training fällt aus", true},
		{"Wann passt es dir?", true},
		{"Zahnarzttermin vereinbart", true},
		{"Nächste Woche vielleicht", true},
		{"Konzert am 3. April", true},
		{"Ennos Turnier ist im März", true},
		{"Wettkampf am 5. Juni in Leipzig", true},
		{"Romy vom Hort abholen", true},
		{"Enno hat Geburtstag am 7. Januar", true},
		{"Kannst du Milch besorgen", true},
		{"Übermorgen dann", true},
		{"Schau mal, was Enno gemalt hat", false},
		{"Haha ok", false},
	}
	for _, tt := range tests {
		if got := MightContainDate(tt.text); got != tt.want {
			t.Errorf("MightContainDate(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestParseResponse(t *testing.T) {
	t.Run("wrapper object", func(t *testing.T) {
		cands, err := ParseResponse(`{"termine": [{"title": "Enno Training", "datetime": "2026-03-02T16:00", "confidence": 0.9}]}`)
		require.NoError(t, err)
		require.Len(t, cands, 1)
		assert.Equal(t, "Enno Training", cands[0].Title)
		assert.Equal(t, 0.9, cands[0].Confidence)
	})

	t.Run("fenced wrapper", func(t *testing.T) {
		cands, err := ParseResponse("```json\n{\"termine\": []}\n```")
		require.NoError(t, err)
		assert.Empty(t, cands)
	})

	t.Run("array embedded in prose", func(t *testing.T) {
		raw := `Hier sind die gefundenen Termine:
[{"title": "Zahnarzt", "datetime": "2026-03-05T10:00"}]
Ich hoffe das hilft!`
		cands, err := ParseResponse(raw)
		require.NoError(t, err)
		require.Len(t, cands, 1)
		assert.Equal(t, "Zahnarzt", cands[0].Title)
	})

	t.Run("bare empty array", func(t *testing.T) {
		cands, err := ParseResponse("[]")
		require.NoError(t, err)
		assert.Empty(t, cands)
	})

	t.Run("negative prose", func(t *testing.T) {
		cands, err := ParseResponse("In dieser Nachricht sind keine Termine enthalten.")
		require.NoError(t, err)
		assert.Empty(t, cands)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParseResponse("I'm sorry, I cannot help with that.")
		assert.ErrorIs(t, err, ErrUnparseable)
	})

	t.Run("unrelated json object", func(t *testing.T) {
		_, err := ParseResponse(`{"answer": 42}`)
		assert.ErrorIs(t, err, ErrUnparseable)
	})

	t.Run("non termin array rejected", func(t *testing.T) {
		_, err := ParseResponse(`Schritte: [{"step": "eins"}] fertig`)
		assert.ErrorIs(t, err, ErrUnparseable)
	})
}

var berlin = time.FixedZone("CET", 3600)

func TestNormalizeAllDayInference(t *testing.T) {
	f := false

	t.Run("date only becomes all day", func(t *testing.T) {
		r, err := Normalize(Candidate{Title: "Wettkampf", Datetime: "2026-03-07"}, "Marike", berlin)
		require.NoError(t, err)
		assert.True(t, r.AllDay)
		assert.Equal(t, time.Date(2026, 3, 7, 0, 0, 0, 0, berlin), r.When)
	})

	t.Run("explicitly timed date gets default clock", func(t *testing.T) {
		r, err := Normalize(Candidate{Title: "Abgabe", Datetime: "2026-03-01", AllDay: &f}, "Marike", berlin)
		require.NoError(t, err)
		assert.False(t, r.AllDay)
		assert.Equal(t, time.Date(2026, 3, 1, 9, 0, 0, 0, berlin), r.When)
	})

	t.Run("clock time wins over all day claim", func(t *testing.T) {
		tr := true
		r, err := Normalize(Candidate{Title: "Training", Datetime: "2026-03-02T16:00", AllDay: &tr}, "Marike", berlin)
		require.NoError(t, err)
		assert.False(t, r.AllDay)
		assert.Equal(t, time.Date(2026, 3, 2, 16, 0, 0, 0, berlin), r.When)
	})
}

func TestNormalizeDefaults(t *testing.T) {
	r, err := Normalize(Candidate{Title: "Training", Datetime: "2026-03-02T16:00"}, "Marike", berlin)
	require.NoError(t, err)

	assert.Equal(t, ActionCreate, r.Action)
	assert.Equal(t, RelevanceShared, r.Relevance)
	assert.Equal(t, "appointment", r.Category)
	assert.Equal(t, 0.5, r.Confidence)
	assert.Equal(t, []string{"Marike"}, r.Participants)
}

func TestNormalizeCancelWithoutDatetime(t *testing.T) {
	r, err := Normalize(Candidate{Action: ActionCancel, Ref: "0f8fad5b-d9cb-469f-a165-70867728950e"}, "Marike", berlin)
	require.NoError(t, err)
	assert.Equal(t, ActionCancel, r.Action)

	_, err = Normalize(Candidate{Title: "Training"}, "Marike", berlin)
	assert.Error(t, err)

	_, err = Normalize(Candidate{Title: "Training", Datetime: "irgendwann"}, "Marike", berlin)
	assert.Error(t, err)
}

type fakeOracle struct {
	name string
	out  string
	err  error
}

func (f *fakeOracle) Name() string { return f.name }
func (f *fakeOracle) Complete(ctx context.Context, req oracle.Request) (string, error) {
	return f.out, f.err
}

func TestExtractCascade(t *testing.T) {
	logger := slog.Default()
	good := `{"termine": [{"title": "Training", "datetime": "2026-03-02T16:00"}]}`

	t.Run("first backend wins", func(t *testing.T) {
		e := New([]oracle.Oracle{
			&fakeOracle{name: "groq", out: good},
			&fakeOracle{name: "gemini", err: errors.New("should not be called")},
		}, time.Second, logger)

		cands, backend, err := e.Extract(context.Background(), oracle.Request{})
		require.NoError(t, err)
		assert.Equal(t, "groq", backend)
		assert.Len(t, cands, 1)
	})

	t.Run("falls through on error and unparseable output", func(t *testing.T) {
		e := New([]oracle.Oracle{
			&fakeOracle{name: "groq", err: errors.New("rate limited")},
			&fakeOracle{name: "gemini", out: "sorry, no JSON today"},
			&fakeOracle{name: "claude", out: good},
		}, time.Second, logger)

		cands, backend, err := e.Extract(context.Background(), oracle.Request{})
		require.NoError(t, err)
		assert.Equal(t, "claude", backend)
		assert.Len(t, cands, 1)
	})

	t.Run("empty answer does not advance the cascade", func(t *testing.T) {
		e := New([]oracle.Oracle{
			&fakeOracle{name: "groq", out: `{"termine": []}`},
			&fakeOracle{name: "gemini", out: good},
		}, time.Second, logger)

		cands, backend, err := e.Extract(context.Background(), oracle.Request{})
		require.NoError(t, err)
		assert.Equal(t, "groq", backend)
		assert.Empty(t, cands)
	})

	t.Run("all backends failing is an error", func(t *testing.T) {
		e := New([]oracle.Oracle{
			&fakeOracle{name: "groq", err: errors.New("down")},
		}, time.Second, logger)

		_, _, err := e.Extract(context.Background(), oracle.Request{})
		assert.Error(t, err)
	})
}
