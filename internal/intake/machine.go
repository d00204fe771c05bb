// Package intake runs the pre-study gating sequence: screening, two
// demographics pages, two attention checks, a tutorial and a comprehension
// check. A failed gate ends the session with a redirect; reaching done
// hands the demographic bundle to the caller exactly once.
package intake

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pavelanni/trustgate/internal/model"
)

// Step is the current intake screen.
type Step string

const (
	StepScreening     Step = "screening"
	StepDemographics1 Step = "demographics1"
	StepAttention1    Step = "attention1"
	StepDemographics2 Step = "demographics2"
	StepAttention2    Step = "attention2"
	StepTutorial      Step = "tutorial"
	StepComprehension Step = "comprehension"
	StepDone          Step = "done"
)

// Inline notice message IDs.
const (
	NoticeScreeningRetry          = "ScreeningRetry"
	NoticeComprehensionRetry      = "ComprehensionRetry"
	NoticeComprehensionIncomplete = "ComprehensionIncomplete"
	NoticeFieldsRequired          = "FieldsRequired"
	NoticeSelectAnswer            = "SelectAnswer"
)

var (
	// ErrWrongStep rejects an operation that does not belong to the current step.
	ErrWrongStep = errors.New("operation not valid at current step")
	// ErrClosed rejects every operation after a terminal exit or after done.
	ErrClosed = errors.New("intake closed")
)

// ExitReason names the gate that ended the session.
type ExitReason string

const (
	ExitScreening     ExitReason = "screening_failed"
	ExitAttention     ExitReason = "attention_failed"
	ExitComprehension ExitReason = "comprehension_failed"
)

// Exit is a terminal redirect off the study.
type Exit struct {
	Reason ExitReason `json:"reason"`
	URL    string     `json:"url"`
}

// Outcome is the result of one intake operation.
type Outcome struct {
	Step Step
	// Notice is an i18n message ID for an inline message, empty if none.
	Notice string
	// Exit is set when the operation failed a gate for good.
	Exit *Exit
	// Demographics is set only by the transition into done.
	Demographics *model.Demographics
}

// Machine holds intake answers, attempt counters and the current step.
type Machine struct {
	variant Variant
	exits   model.ExitURLs
	step    Step

	screeningAnswers  map[string]int
	screeningAttempts int

	demographics model.Demographics

	attention1Answer string
	attention1Passed *bool
	attention2Answer string
	attention2Passed *bool

	comprehensionAnswers  map[string]int
	comprehensionAttempts int

	exit    *Exit
	emitted bool
}

// New returns a machine at the screening step for the given mode.
func New(mode model.Mode, exits model.ExitURLs) *Machine {
	return &Machine{
		variant:              VariantFor(mode),
		exits:                exits,
		step:                 StepScreening,
		screeningAnswers:     make(map[string]int),
		comprehensionAnswers: make(map[string]int),
	}
}

// Step returns the current step.
func (m *Machine) Step() Step { return m.step }

// Variant returns the mode content chosen at construction.
func (m *Machine) Variant() Variant { return m.variant }

// Exited returns the terminal exit, if any.
func (m *Machine) Exited() *Exit { return m.exit }

// ScreeningAttempts is the number of failed screening submissions.
func (m *Machine) ScreeningAttempts() int { return m.screeningAttempts }

// ComprehensionAttempts is the number of complete-but-wrong comprehension submissions.
func (m *Machine) ComprehensionAttempts() int { return m.comprehensionAttempts }

// Demographics returns the answers entered so far.
func (m *Machine) Demographics() model.Demographics { return m.demographics }

// AttentionResults returns the recorded pass/fail of both checks; nil means unanswered.
func (m *Machine) AttentionResults() (first, second *bool) {
	return m.attention1Passed, m.attention2Passed
}

// Answers returns the stored choice for a screening or comprehension question.
func (m *Machine) Answers() (screening, comprehension map[string]int) {
	return m.screeningAnswers, m.comprehensionAnswers
}

// AttentionAnswers returns the raw answers of both attention checks.
func (m *Machine) AttentionAnswers() (first, second string) {
	return m.attention1Answer, m.attention2Answer
}

func (m *Machine) expect(step Step) error {
	if m.exit != nil || m.step == StepDone {
		return ErrClosed
	}
	if m.step != step {
		return fmt.Errorf("%w: at %s, not %s", ErrWrongStep, m.step, step)
	}
	return nil
}

func (m *Machine) outcome() Outcome {
	return Outcome{Step: m.step}
}

func (m *Machine) fail(reason ExitReason, url string) Outcome {
	m.exit = &Exit{Reason: reason, URL: url}
	slog.Info("intake gate failed", "reason", reason, "step", m.step)
	return Outcome{Step: m.step, Exit: m.exit}
}

// SubmitScreening scores the eligibility answers. Meeting the threshold
// advances to demographics1. The first miss allows one retry; the second
// ends the session.
func (m *Machine) SubmitScreening(answers map[string]int) (Outcome, error) {
	if err := m.expect(StepScreening); err != nil {
		return m.outcome(), err
	}
	for id, v := range answers {
		m.screeningAnswers[id] = v
	}

	correct := 0
	for _, q := range ScreeningQuestions {
		if v, ok := m.screeningAnswers[q.ID]; ok && v == q.CorrectIndex {
			correct++
		}
	}
	if correct >= ScreeningPassThreshold {
		m.step = StepDemographics1
		return m.outcome(), nil
	}
	if m.screeningAttempts == 0 {
		m.screeningAttempts = 1
		return Outcome{Step: m.step, Notice: NoticeScreeningRetry}, nil
	}
	return m.fail(ExitScreening, m.exits.ScreeningFail), nil
}

// SubmitDemographics1 stores age, education and AI start time. Age and
// education are required.
func (m *Machine) SubmitDemographics1(age, education, aiStartTime string) (Outcome, error) {
	if err := m.expect(StepDemographics1); err != nil {
		return m.outcome(), err
	}
	m.demographics.Age = age
	m.demographics.Education = education
	m.demographics.AIStartTime = aiStartTime
	if age == "" || education == "" {
		return Outcome{Step: m.step, Notice: NoticeFieldsRequired}, model.ErrValidationIncomplete
	}
	m.step = StepAttention1
	return m.outcome(), nil
}

// SubmitAttention1 records whether the first attention check passed. The
// result never blocks progress on its own.
func (m *Machine) SubmitAttention1(answer string) (Outcome, error) {
	if err := m.expect(StepAttention1); err != nil {
		return m.outcome(), err
	}
	if answer == "" {
		return Outcome{Step: m.step, Notice: NoticeSelectAnswer}, model.ErrValidationIncomplete
	}
	m.attention1Answer = answer
	passed := answer == Attention1Pass
	m.attention1Passed = &passed
	m.step = StepDemographics2
	return m.outcome(), nil
}

// SubmitDemographics2 stores AI usage frequency and categories without validation.
func (m *Machine) SubmitDemographics2(frequency string, uses []string) (Outcome, error) {
	if err := m.expect(StepDemographics2); err != nil {
		return m.outcome(), err
	}
	m.demographics.AIFrequency = frequency
	m.demographics.AIUses = append([]string(nil), uses...)
	m.step = StepAttention2
	return m.outcome(), nil
}

// SubmitAttention2 records the second attention check. The session ends only
// when both checks failed.
func (m *Machine) SubmitAttention2(answer string) (Outcome, error) {
	if err := m.expect(StepAttention2); err != nil {
		return m.outcome(), err
	}
	if answer == "" {
		return Outcome{Step: m.step, Notice: NoticeSelectAnswer}, model.ErrValidationIncomplete
	}
	m.attention2Answer = answer
	passed := Attention2Pass[answer]
	m.attention2Passed = &passed

	if m.attention1Passed != nil && !*m.attention1Passed && !passed {
		return m.fail(ExitAttention, m.exits.AttentionFail), nil
	}
	m.step = StepTutorial
	return m.outcome(), nil
}

// ContinueTutorial leaves the tutorial for the comprehension check.
func (m *Machine) ContinueTutorial() (Outcome, error) {
	if err := m.expect(StepTutorial); err != nil {
		return m.outcome(), err
	}
	m.step = StepComprehension
	return m.outcome(), nil
}

// SubmitComprehension checks the mode's comprehension set. Missing answers
// cost nothing; a complete but wrong submission uses the single retry; a
// second wrong submission ends the session.
func (m *Machine) SubmitComprehension(answers map[string]int) (Outcome, error) {
	if err := m.expect(StepComprehension); err != nil {
		return m.outcome(), err
	}
	for id, v := range answers {
		m.comprehensionAnswers[id] = v
	}

	allCorrect := true
	for _, q := range m.variant.Comprehension {
		v, ok := m.comprehensionAnswers[q.ID]
		if !ok {
			return Outcome{Step: m.step, Notice: NoticeComprehensionIncomplete}, model.ErrValidationIncomplete
		}
		if v != q.CorrectIndex {
			allCorrect = false
		}
	}

	if allCorrect {
		m.step = StepDone
		return m.complete(), nil
	}
	if m.comprehensionAttempts == 0 {
		m.comprehensionAttempts = 1
		return Outcome{Step: m.step, Notice: NoticeComprehensionRetry}, nil
	}
	return m.fail(ExitComprehension, m.exits.ComprehensionFail), nil
}

// complete emits the demographic bundle on the first entry into done.
func (m *Machine) complete() Outcome {
	out := m.outcome()
	if m.emitted {
		return out
	}
	m.emitted = true
	d := m.demographics
	d.AIUses = append([]string(nil), m.demographics.AIUses...)
	out.Demographics = &d
	slog.Info("intake completed", "mode", m.variant.Mode)
	return out
}

// Back returns to the previous page from attention1, attention2 or
// comprehension. Answers and attempt counters are kept.
func (m *Machine) Back() (Outcome, error) {
	if m.exit != nil || m.step == StepDone {
		return m.outcome(), ErrClosed
	}
	switch m.step {
	case StepAttention1:
		m.step = StepDemographics1
	case StepAttention2:
		m.step = StepDemographics2
	case StepComprehension:
		m.step = StepTutorial
	default:
		return m.outcome(), fmt.Errorf("%w: no back navigation from %s", ErrWrongStep, m.step)
	}
	return m.outcome(), nil
}
