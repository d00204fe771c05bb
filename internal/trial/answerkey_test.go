package trial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/trustgate/internal/model"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Is Uveitis a common symptom of Ankylosing Spondylitis?", "is uveitis a common symptom of ankylosing spondylitis"},
		{"  Is   fever\ta common symptom of Jock Itch??  ", "is fever a common symptom of jock itch"},
		{"Is Spironolactone an FDA-approved drug for treating acne?", "is spironolactone an fdaapproved drug for treating acne"},
		{"snake_case stays", "snake_case stays"},
		{"Is there more\u00a0antihistamine in Benadryl than Rhinocort?", "is there more antihistamine in benadryl than rhinocort"},
		{"\ufeffIs fever\u2003common\u202f?", "is fever common"},
		{"", ""},
		{"?!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Normalize(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Normalize(got), "normalization must be idempotent")
		})
	}
}

func testEntries() []Entry {
	return []Entry{
		{ID: "q1", Text: "Did Dupilumab receive FDA approval for Asthma before Chronic Rhinosinusitis?", GroundTruth: model.Yes, AIAnswer: model.No, Uncertainty: UncertaintyMedium},
		{ID: "q5", Text: "Are both Simvastatin and Ambien drugs recommended to be taken at night?", GroundTruth: model.Yes, AIAnswer: model.Yes, Uncertainty: UncertaintyLow},
		{ID: "q7", Text: "Is fever a common symptom of Jock Itch?", GroundTruth: model.No, AIAnswer: model.No},
	}
}

func TestAnswerKeyLookup(t *testing.T) {
	key, err := NewAnswerKey(testEntries())
	require.NoError(t, err)
	assert.Equal(t, 3, key.Len())

	e, norm, err := key.Lookup("  is FEVER a common symptom of jock itch  ")
	require.NoError(t, err)
	assert.Equal(t, "q7", e.ID)
	assert.Equal(t, "is fever a common symptom of jock itch", norm)
	assert.Equal(t, UncertaintyMedium, e.Uncertainty, "missing uncertainty defaults to medium")

	_, _, err = key.Lookup("Is water wet?")
	assert.ErrorIs(t, err, ErrUnknownQuestion)
}

func TestAnswerKeyRejects(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		is      error
	}{
		{"collision", []Entry{
			{ID: "a", Text: "Is it safe?", GroundTruth: model.Yes, AIAnswer: model.No},
			{ID: "b", Text: "is it safe", GroundTruth: model.No, AIAnswer: model.No},
		}, ErrKeyCollision},
		{"duplicate id", []Entry{
			{ID: "a", Text: "one", GroundTruth: model.Yes, AIAnswer: model.No},
			{ID: "a", Text: "two", GroundTruth: model.No, AIAnswer: model.No},
		}, nil},
		{"bad ground truth", []Entry{{ID: "a", Text: "one", GroundTruth: "maybe", AIAnswer: model.No}}, nil},
		{"missing id", []Entry{{Text: "one", GroundTruth: model.Yes, AIAnswer: model.No}}, nil},
		{"bad uncertainty", []Entry{{ID: "a", Text: "one", GroundTruth: model.Yes, AIAnswer: model.No, Uncertainty: "hihg"}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAnswerKey(tt.entries)
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestAnswerKeyUncertainty(t *testing.T) {
	key, err := NewAnswerKey([]Entry{
		{ID: "a", Text: "one", GroundTruth: model.Yes, AIAnswer: model.No},
		{ID: "b", Text: "two", GroundTruth: model.Yes, AIAnswer: model.No, Uncertainty: "High"},
	})
	require.NoError(t, err)
	a, _, err := key.Lookup("one")
	require.NoError(t, err)
	assert.Equal(t, UncertaintyMedium, a.Uncertainty)
	b, _, err := key.Lookup("two")
	require.NoError(t, err)
	assert.Equal(t, UncertaintyHigh, b.Uncertainty)
}

func TestLookupNoBreakSpace(t *testing.T) {
	key, err := NewAnswerKey(testEntries())
	require.NoError(t, err)
	e, _, err := key.Lookup("Did Dupilumab receive FDA\u00a0approval for Asthma before Chronic\u00a0Rhinosinusitis?")
	require.NoError(t, err)
	assert.Equal(t, "q1", e.ID)
}

func TestQuestionsIsACopy(t *testing.T) {
	key, err := NewAnswerKey(testEntries())
	require.NoError(t, err)
	qs := key.Questions()
	qs[0].Text = "mutated"
	assert.NotEqual(t, "mutated", key.Questions()[0].Text)
}

func TestResponseBook(t *testing.T) {
	book, err := NewResponseBook(map[string]Payload{
		"Is fever a common symptom of Jock Itch?": {Answer: "No."},
	})
	require.NoError(t, err)
	p, ok := book["is fever a common symptom of jock itch"]
	require.True(t, ok)
	assert.Equal(t, "No.", p.Answer)

	_, err = NewResponseBook(map[string]Payload{
		"Is it safe?": {Answer: "a"},
		"is it safe":  {Answer: "b"},
	})
	assert.ErrorIs(t, err, ErrKeyCollision)
}
