package trial

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/trustgate/internal/model"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestRecordSearchClicks(t *testing.T) {
	clock := newClock()
	r := NewRecord(model.Participant{ID: "p1"}, clock.now)
	assert.False(t, r.SearchUsed)
	assert.Nil(t, r.SearchFirstTime)

	r.RecordSearchClick()
	first := clock.t
	clock.advance(5 * time.Second)
	r.RecordSearchClick()

	assert.True(t, r.SearchUsed)
	assert.Equal(t, 2, r.SearchClickCount)
	require.NotNil(t, r.SearchFirstTime)
	assert.Equal(t, first, *r.SearchFirstTime)
}

func TestRecordAnswerDisplayedOnce(t *testing.T) {
	clock := newClock()
	r := NewRecord(model.Participant{ID: "p1"}, clock.now)
	assert.Zero(t, r.ResponseTime(clock.t))

	r.MarkAnswerDisplayed()
	shown := clock.t
	clock.advance(2 * time.Second)
	r.MarkAnswerDisplayed()

	require.NotNil(t, r.AnswerDisplayedAt)
	assert.Equal(t, shown, *r.AnswerDisplayedAt)
	clock.advance(10 * time.Second)
	assert.Equal(t, 12*time.Second, r.ResponseTime(clock.t))
}

func TestCorrectnessAndAgreement(t *testing.T) {
	tests := []struct {
		name        string
		gt, ai      model.YesNo
		final       model.YesNo
		wantCorrect bool
		wantAgree   bool
	}{
		{"follows wrong AI", model.Yes, model.No, model.No, false, true},
		{"overrides wrong AI", model.Yes, model.No, model.Yes, true, false},
		{"follows right AI", model.No, model.No, model.No, true, true},
		{"rejects right AI", model.No, model.No, model.Yes, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRecord(model.Participant{ID: "p1"}, nil)
			r.CorrectAnswer = tt.gt
			r.AIAnswer = tt.ai
			assert.Nil(t, r.Correctness())
			assert.Nil(t, r.Agreement())

			r.finalize(model.SurveyData{FinalAnswer: tt.final, AIConfidence: 3, SelfConfidence: 4})
			require.NotNil(t, r.Correctness())
			require.NotNil(t, r.Agreement())
			assert.Equal(t, tt.wantCorrect, *r.Correctness())
			assert.Equal(t, tt.wantAgree, *r.Agreement())
		})
	}
}

func TestRecordReset(t *testing.T) {
	p := model.Participant{ID: "p1", StudyID: "s1", SessionID: "x1", Mode: model.ModeToken}
	r := NewRecord(p, nil)
	r.QuestionID = "q3"
	r.RecordSearchClick()
	r.RecordLinkClick()
	r.MarkAnswerDisplayed()
	r.finalize(model.SurveyData{FinalAnswer: model.Yes, AIConfidence: 2, SelfConfidence: 2})

	r.Reset()
	assert.Equal(t, "p1", r.ParticipantID)
	assert.Equal(t, "s1", r.StudyID)
	assert.Equal(t, "x1", r.SessionID)
	assert.Equal(t, model.ModeToken, r.InterfaceMode)
	assert.Empty(t, r.QuestionID)
	assert.Zero(t, r.SearchClickCount)
	assert.Zero(t, r.LinkClickCount)
	assert.False(t, r.SearchUsed)
	assert.Nil(t, r.FinalAnswer)
	assert.Nil(t, r.AnswerDisplayedAt)

	// The clock survives a reset.
	r.MarkAnswerDisplayed()
	assert.NotNil(t, r.AnswerDisplayedAt)
}
