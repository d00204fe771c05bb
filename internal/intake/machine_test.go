package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/trustgate/internal/model"
)

var testExits = model.ExitURLs{
	ScreeningFail:     "https://exit.test/screening",
	AttentionFail:     "https://exit.test/attention",
	ComprehensionFail: "https://exit.test/comprehension",
	Complete:          "https://exit.test/complete",
}

func screeningAnswers(correct int) map[string]int {
	out := make(map[string]int, len(ScreeningQuestions))
	for i, q := range ScreeningQuestions {
		if i < correct {
			out[q.ID] = q.CorrectIndex
		} else {
			out[q.ID] = (q.CorrectIndex + 1) % len(q.Options)
		}
	}
	return out
}

func comprehensionAnswers(v Variant, correct bool) map[string]int {
	out := make(map[string]int, len(v.Comprehension))
	for _, q := range v.Comprehension {
		if correct {
			out[q.ID] = q.CorrectIndex
		} else {
			out[q.ID] = (q.CorrectIndex + 1) % len(q.Options)
		}
	}
	return out
}

// toTutorial drives a fresh machine to the tutorial step with both attention checks passed.
func toTutorial(t *testing.T, mode model.Mode) *Machine {
	t.Helper()
	m := New(mode, testExits)
	_, err := m.SubmitScreening(screeningAnswers(5))
	require.NoError(t, err)
	_, err = m.SubmitDemographics1("25–34", "Bachelor’s degree", "1–2 years ago")
	require.NoError(t, err)
	_, err = m.SubmitAttention1(Attention1Pass)
	require.NoError(t, err)
	_, err = m.SubmitDemographics2("Daily", []string{"Coding / technical work"})
	require.NoError(t, err)
	_, err = m.SubmitAttention2("disagree")
	require.NoError(t, err)
	require.Equal(t, StepTutorial, m.Step())
	return m
}

func TestScreening(t *testing.T) {
	tests := []struct {
		name    string
		correct int
		want    Step
		notice  string
	}{
		{"all correct", 5, StepDemographics1, ""},
		{"threshold", 4, StepDemographics1, ""},
		{"below threshold", 3, StepScreening, NoticeScreeningRetry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(model.ModeBaseline, testExits)
			out, err := m.SubmitScreening(screeningAnswers(tt.correct))
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Step)
			assert.Equal(t, tt.want, m.Step())
			assert.Equal(t, tt.notice, out.Notice)
			assert.Nil(t, out.Exit)
		})
	}
}

func TestScreeningSecondFailureExits(t *testing.T) {
	m := New(model.ModeBaseline, testExits)
	out, err := m.SubmitScreening(screeningAnswers(3))
	require.NoError(t, err)
	assert.Equal(t, NoticeScreeningRetry, out.Notice)
	assert.Equal(t, 1, m.ScreeningAttempts())

	out, err = m.SubmitScreening(screeningAnswers(2))
	require.NoError(t, err)
	require.NotNil(t, out.Exit)
	assert.Equal(t, ExitScreening, out.Exit.Reason)
	assert.Equal(t, testExits.ScreeningFail, out.Exit.URL)

	// Terminal: even a perfect submission is refused without mutation.
	_, err = m.SubmitScreening(screeningAnswers(5))
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, StepScreening, m.Step())
	_, err = m.Back()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestScreeningRetryPasses(t *testing.T) {
	m := New(model.ModeBaseline, testExits)
	_, err := m.SubmitScreening(screeningAnswers(3))
	require.NoError(t, err)
	out, err := m.SubmitScreening(screeningAnswers(4))
	require.NoError(t, err)
	assert.Equal(t, StepDemographics1, out.Step)
	assert.Nil(t, out.Exit)
}

func TestDemographics1RequiresAgeAndEducation(t *testing.T) {
	tests := []struct {
		name      string
		age, edu  string
		wantStep  Step
		wantError bool
	}{
		{"complete", "18–24", "High school", StepAttention1, false},
		{"missing age", "", "High school", StepDemographics1, true},
		{"missing education", "18–24", "", StepDemographics1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(model.ModeBaseline, testExits)
			_, err := m.SubmitScreening(screeningAnswers(5))
			require.NoError(t, err)
			out, err := m.SubmitDemographics1(tt.age, tt.edu, "")
			if tt.wantError {
				assert.ErrorIs(t, err, model.ErrValidationIncomplete)
				assert.Equal(t, NoticeFieldsRequired, out.Notice)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantStep, m.Step())
		})
	}
}

func TestAttentionConjunction(t *testing.T) {
	tests := []struct {
		name     string
		first    string
		second   string
		wantExit bool
	}{
		{"both pass", Attention1Pass, "strongly_disagree", false},
		{"first fails", "4", "disagree", false},
		{"second fails", Attention1Pass, "agree", false},
		{"both fail", "5", "strongly_agree", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(model.ModeParagraph, testExits)
			_, err := m.SubmitScreening(screeningAnswers(5))
			require.NoError(t, err)
			_, err = m.SubmitDemographics1("25–34", "Some college", "")
			require.NoError(t, err)
			_, err = m.SubmitAttention1(tt.first)
			require.NoError(t, err)
			_, err = m.SubmitDemographics2("", nil)
			require.NoError(t, err)
			out, err := m.SubmitAttention2(tt.second)
			require.NoError(t, err)

			if tt.wantExit {
				require.NotNil(t, out.Exit)
				assert.Equal(t, ExitAttention, out.Exit.Reason)
				assert.Equal(t, testExits.AttentionFail, out.Exit.URL)
				return
			}
			assert.Nil(t, out.Exit)
			assert.Equal(t, StepTutorial, m.Step())
		})
	}
}

func TestAttentionRequiresAnswer(t *testing.T) {
	m := New(model.ModeBaseline, testExits)
	_, _ = m.SubmitScreening(screeningAnswers(5))
	_, _ = m.SubmitDemographics1("25–34", "Some college", "")
	out, err := m.SubmitAttention1("")
	assert.ErrorIs(t, err, model.ErrValidationIncomplete)
	assert.Equal(t, NoticeSelectAnswer, out.Notice)
	assert.Equal(t, StepAttention1, m.Step())
	first, _ := m.AttentionResults()
	assert.Nil(t, first)
}

func TestComprehension(t *testing.T) {
	for _, mode := range model.Modes {
		t.Run(string(mode), func(t *testing.T) {
			m := toTutorial(t, mode)
			_, err := m.ContinueTutorial()
			require.NoError(t, err)

			v := m.Variant()
			assert.Equal(t, mode, v.Mode)

			// Incomplete costs no attempt.
			partial := comprehensionAnswers(v, true)
			delete(partial, v.Comprehension[0].ID)
			out, err := m.SubmitComprehension(partial)
			assert.ErrorIs(t, err, model.ErrValidationIncomplete)
			assert.Equal(t, NoticeComprehensionIncomplete, out.Notice)
			assert.Equal(t, 0, m.ComprehensionAttempts())

			out, err = m.SubmitComprehension(comprehensionAnswers(v, false))
			require.NoError(t, err)
			assert.Equal(t, NoticeComprehensionRetry, out.Notice)
			assert.Equal(t, 1, m.ComprehensionAttempts())

			out, err = m.SubmitComprehension(comprehensionAnswers(v, true))
			require.NoError(t, err)
			assert.Equal(t, StepDone, out.Step)
			require.NotNil(t, out.Demographics)
			assert.Equal(t, "25–34", out.Demographics.Age)
			assert.Equal(t, []string{"Coding / technical work"}, out.Demographics.AIUses)
		})
	}
}

func TestComprehensionSecondFailureExits(t *testing.T) {
	m := toTutorial(t, model.ModeToken)
	_, err := m.ContinueTutorial()
	require.NoError(t, err)
	wrong := comprehensionAnswers(m.Variant(), false)

	_, err = m.SubmitComprehension(wrong)
	require.NoError(t, err)
	out, err := m.SubmitComprehension(wrong)
	require.NoError(t, err)
	require.NotNil(t, out.Exit)
	assert.Equal(t, ExitComprehension, out.Exit.Reason)
	assert.Equal(t, testExits.ComprehensionFail, out.Exit.URL)
	assert.Nil(t, out.Demographics)
}

func TestDoneEmitsOnceAndCloses(t *testing.T) {
	m := toTutorial(t, model.ModeRelation)
	_, err := m.ContinueTutorial()
	require.NoError(t, err)
	out, err := m.SubmitComprehension(comprehensionAnswers(m.Variant(), true))
	require.NoError(t, err)
	require.NotNil(t, out.Demographics)

	out, err = m.SubmitComprehension(comprehensionAnswers(m.Variant(), true))
	assert.ErrorIs(t, err, ErrClosed)
	assert.Nil(t, out.Demographics)
	_, err = m.Back()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestBackKeepsAnswers(t *testing.T) {
	m := toTutorial(t, model.ModeBaseline)
	_, err := m.ContinueTutorial()
	require.NoError(t, err)

	wrong := comprehensionAnswers(m.Variant(), false)
	_, err = m.SubmitComprehension(wrong)
	require.NoError(t, err)

	out, err := m.Back()
	require.NoError(t, err)
	assert.Equal(t, StepTutorial, out.Step)

	_, err = m.ContinueTutorial()
	require.NoError(t, err)
	_, comprehension := m.Answers()
	assert.Equal(t, wrong, comprehension)
	assert.Equal(t, 1, m.ComprehensionAttempts())
}

func TestBackNotAllowed(t *testing.T) {
	tests := []struct {
		name  string
		setup func(m *Machine)
		want  Step
	}{
		{"screening", func(m *Machine) {}, StepScreening},
		{"demographics1", func(m *Machine) { _, _ = m.SubmitScreening(screeningAnswers(5)) }, StepDemographics1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(model.ModeBaseline, testExits)
			tt.setup(m)
			_, err := m.Back()
			assert.ErrorIs(t, err, ErrWrongStep)
			assert.Equal(t, tt.want, m.Step())
		})
	}
}

func TestBackFromAttention(t *testing.T) {
	m := New(model.ModeBaseline, testExits)
	_, _ = m.SubmitScreening(screeningAnswers(5))
	_, _ = m.SubmitDemographics1("25–34", "Some college", "")

	out, err := m.Back()
	require.NoError(t, err)
	assert.Equal(t, StepDemographics1, out.Step)
	assert.Equal(t, "25–34", m.Demographics().Age)
}

func TestWrongStep(t *testing.T) {
	m := New(model.ModeBaseline, testExits)
	_, err := m.SubmitAttention1(Attention1Pass)
	assert.ErrorIs(t, err, ErrWrongStep)
	_, err = m.ContinueTutorial()
	assert.ErrorIs(t, err, ErrWrongStep)
	assert.Equal(t, StepScreening, m.Step())
}

func TestVariantForUnknownMode(t *testing.T) {
	assert.Equal(t, model.ModeBaseline, VariantFor("holographic").Mode)
	assert.Len(t, VariantFor(model.ModeBaseline).Comprehension, 3)
	assert.Len(t, VariantFor(model.ModeParagraph).Comprehension, 4)
}
