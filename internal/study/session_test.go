package study

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/trustgate/internal/intake"
	"github.com/pavelanni/trustgate/internal/model"
	"github.com/pavelanni/trustgate/internal/trial"
)

type fakeSender struct{ kinds []model.SubmissionKind }

func (f *fakeSender) Send(_ context.Context, kind model.SubmissionKind, _ string, _ any) {
	f.kinds = append(f.kinds, kind)
}

type mapKV map[string]string

func (m mapKV) Get(key, def string) (string, error) {
	if v, ok := m[key]; ok {
		return v, nil
	}
	return def, nil
}

func (m mapKV) Set(key, value string) error {
	m[key] = value
	return nil
}

var testExits = model.ExitURLs{
	ScreeningFail:     "https://exit.test/screening",
	AttentionFail:     "https://exit.test/attention",
	ComprehensionFail: "https://exit.test/comprehension",
	Complete:          "https://exit.test/complete",
}

var entries = []trial.Entry{
	{ID: "q1", Text: "Is Uveitis a common symptom of Ankylosing Spondylitis?", GroundTruth: model.Yes, AIAnswer: model.Yes},
	{ID: "q2", Text: "Is fever a common symptom of Jock Itch?", GroundTruth: model.No, AIAnswer: model.No},
}

func newTestSession(t *testing.T, book trial.ResponseBook) (*Session, *fakeSender) {
	t.Helper()
	key, err := trial.NewAnswerKey(entries)
	require.NoError(t, err)
	sender := &fakeSender{}
	s := NewSession("b1", model.Participant{ID: "p1", Mode: model.ModeBaseline}, mapKV{}, Deps{
		Key:       key,
		Responder: trial.FrozenResponder{Book: book},
		Sender:    sender,
		Exits:     testExits,
		IntN:      func(n int) int { return n - 1 },
		Now:       func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) },
	})
	return s, sender
}

func fullBook(t *testing.T) trial.ResponseBook {
	t.Helper()
	book, err := trial.NewResponseBook(map[string]trial.Payload{
		entries[0].Text: {Answer: "Yes."},
		entries[1].Text: {Answer: "No."},
	})
	require.NoError(t, err)
	return book
}

func correct(qs []intake.ChoiceQuestion) map[string]int {
	out := make(map[string]int, len(qs))
	for _, q := range qs {
		out[q.ID] = q.CorrectIndex
	}
	return out
}

// passIntake drives the session through every intake step.
func passIntake(t *testing.T, s *Session) {
	t.Helper()
	ctx := context.Background()
	ops := []func(m *intake.Machine) (intake.Outcome, error){
		func(m *intake.Machine) (intake.Outcome, error) {
			return m.SubmitScreening(correct(intake.ScreeningQuestions))
		},
		func(m *intake.Machine) (intake.Outcome, error) {
			return m.SubmitDemographics1("25–34", "Some college", "")
		},
		func(m *intake.Machine) (intake.Outcome, error) { return m.SubmitAttention1(intake.Attention1Pass) },
		func(m *intake.Machine) (intake.Outcome, error) { return m.SubmitDemographics2("Daily", nil) },
		func(m *intake.Machine) (intake.Outcome, error) { return m.SubmitAttention2("disagree") },
		(*intake.Machine).ContinueTutorial,
		func(m *intake.Machine) (intake.Outcome, error) {
			return m.SubmitComprehension(correct(m.Variant().Comprehension))
		},
	}
	for _, op := range ops {
		_, err := s.ApplyIntake(ctx, op)
		require.NoError(t, err)
	}
}

var survey = model.SurveyData{FinalAnswer: model.Yes, AIConfidence: 2, SelfConfidence: 3}

func TestSessionHappyPath(t *testing.T) {
	s, sender := newTestSession(t, fullBook(t))
	assert.Equal(t, PhaseIntake, s.Phase())

	passIntake(t, s)
	assert.Equal(t, PhaseTrials, s.Phase())
	require.NotNil(t, s.Demographics())
	assert.Equal(t, "25–34", s.Demographics().Age)
	assert.True(t, s.Trials().InProgress(), "first question is dispatched automatically")
	assert.NoError(t, s.TrialNotice())

	ctx := context.Background()
	require.NoError(t, s.CompleteTrial(ctx, survey))
	assert.Equal(t, PhaseTrials, s.Phase())
	assert.True(t, s.Trials().InProgress())
	require.NoError(t, s.CompleteTrial(ctx, survey))
	assert.Equal(t, PhasePost, s.Phase())

	_, err := s.SubmitPostStudy(ctx, model.PostStudyResponses{TrustBelief: 3})
	assert.ErrorIs(t, err, model.ErrValidationIncomplete)
	assert.Equal(t, PhasePost, s.Phase())

	url, err := s.SubmitPostStudy(ctx, model.PostStudyResponses{
		TrustBelief: 3, TrustIntention: 4, Anthropomorphism: 1, Transparency1: 2, Transparency2: 5,
		InterfaceExperience: "clear", ValidationMotivation: "curiosity",
	})
	require.NoError(t, err)
	assert.Equal(t, testExits.Complete, url)
	assert.Equal(t, PhaseFinished, s.Phase())
	assert.Equal(t, []model.SubmissionKind{model.KindTrial, model.KindTrial, model.KindPostStudy}, sender.kinds)
}

func TestSessionIntakeExit(t *testing.T) {
	s, _ := newTestSession(t, fullBook(t))
	wrong := map[string]int{}
	ctx := context.Background()
	op := func(m *intake.Machine) (intake.Outcome, error) { return m.SubmitScreening(wrong) }

	_, err := s.ApplyIntake(ctx, op)
	require.NoError(t, err)
	out, err := s.ApplyIntake(ctx, op)
	require.NoError(t, err)
	require.NotNil(t, out.Exit)
	assert.Equal(t, PhaseExited, s.Phase())
	assert.Equal(t, testExits.ScreeningFail, s.ExitURL())

	_, err = s.ApplyIntake(ctx, op)
	assert.ErrorIs(t, err, ErrWrongPhase)
	assert.ErrorIs(t, s.CompleteTrial(ctx, survey), ErrWrongPhase)
}

func TestSessionMissingPayloadThenRetry(t *testing.T) {
	book := trial.ResponseBook{}
	s, _ := newTestSession(t, book)
	passIntake(t, s)

	assert.Equal(t, PhaseTrials, s.Phase())
	assert.False(t, s.Trials().InProgress())
	assert.ErrorIs(t, s.TrialNotice(), trial.ErrNoPrecomputedResponse)

	// Still missing: the question stays pending.
	assert.ErrorIs(t, s.RetryPending(context.Background()), trial.ErrNoPrecomputedResponse)
	assert.Zero(t, s.Trials().Shown())

	for k, v := range fullBook(t) {
		book[k] = v
	}
	require.NoError(t, s.RetryPending(context.Background()))
	assert.True(t, s.Trials().InProgress())
	assert.NoError(t, s.TrialNotice())
	assert.Equal(t, 1, s.Trials().Shown())
}

func TestSessionWrongPhase(t *testing.T) {
	s, _ := newTestSession(t, fullBook(t))
	ctx := context.Background()
	assert.ErrorIs(t, s.CompleteTrial(ctx, survey), ErrWrongPhase)
	assert.ErrorIs(t, s.RetryPending(ctx), ErrWrongPhase)
	_, err := s.SubmitPostStudy(ctx, model.PostStudyResponses{})
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestRegistryPrune(t *testing.T) {
	reg := NewRegistry()
	old, _ := newTestSession(t, fullBook(t))
	reg.Put(old)
	fresh := NewSession("b2", model.Participant{ID: "p2"}, mapKV{}, Deps{
		Key:   old.deps.Key,
		Exits: testExits,
		Now:   func() time.Time { return time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC) },
	})
	reg.Put(fresh)
	require.Equal(t, 2, reg.Len())

	n := reg.Prune(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC).Add(-time.Hour))
	assert.Equal(t, 1, n)
	assert.Nil(t, reg.Get("b1"))
	assert.Same(t, fresh, reg.Get("b2"))

	reg.Delete("b2")
	assert.Zero(t, reg.Len())
}
