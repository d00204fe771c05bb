package trial

import (
	"time"

	"github.com/pavelanni/trustgate/internal/model"
)

// Record is the per-trial instrumentation for the question currently on screen.
// Exactly one Record is live per session; Reset clears it between questions.
type Record struct {
	ParticipantID string     `json:"participant_id"`
	StudyID       string     `json:"study_id,omitempty"`
	SessionID     string     `json:"session_id,omitempty"`
	InterfaceMode model.Mode `json:"interface_mode"`
	QuestionID    string     `json:"question_id"`

	AIAnswer      model.YesNo `json:"ai_answer,omitempty"`
	CorrectAnswer model.YesNo `json:"correct_answer,omitempty"`

	FinalAnswer    *model.YesNo `json:"final_answer"`
	ConfidenceAI   *int         `json:"confidence_ai"`
	ConfidenceSelf *int         `json:"confidence_self"`

	SearchUsed       bool       `json:"search_used"`
	SearchClickCount int        `json:"search_click_count"`
	SearchFirstTime  *time.Time `json:"search_first_time"`

	LinkClickCount int `json:"link_click_count"`

	AnswerDisplayedAt *time.Time `json:"answer_displayed_at"`

	now func() time.Time
}

// NewRecord returns an empty record bound to the participant's identity.
func NewRecord(p model.Participant, now func() time.Time) *Record {
	if now == nil {
		now = time.Now
	}
	return &Record{
		ParticipantID: p.ID,
		StudyID:       p.StudyID,
		SessionID:     p.SessionID,
		InterfaceMode: p.Mode,
		now:           now,
	}
}

// RecordSearchClick counts a search panel click. The first click also marks
// search as used and stamps the time.
func (r *Record) RecordSearchClick() {
	r.SearchClickCount++
	if !r.SearchUsed {
		r.SearchUsed = true
		t := r.now()
		r.SearchFirstTime = &t
	}
}

// RecordLinkClick counts a click that landed on a link inside the answer.
func (r *Record) RecordLinkClick() {
	r.LinkClickCount++
}

// MarkAnswerDisplayed stamps the first render of the answer; later calls are ignored.
func (r *Record) MarkAnswerDisplayed() {
	if r.AnswerDisplayedAt != nil {
		return
	}
	t := r.now()
	r.AnswerDisplayedAt = &t
}

// ResponseTime is the time from first answer display to at. Zero if the
// answer was never marked as displayed.
func (r *Record) ResponseTime(at time.Time) time.Duration {
	if r.AnswerDisplayedAt == nil {
		return 0
	}
	d := at.Sub(*r.AnswerDisplayedAt)
	if d < 0 {
		return 0
	}
	return d
}

// Correctness reports whether the final answer matches ground truth.
// Nil until a final answer is set.
func (r *Record) Correctness() *bool {
	if r.FinalAnswer == nil {
		return nil
	}
	ok := *r.FinalAnswer == r.CorrectAnswer
	return &ok
}

// Agreement reports whether the final answer matches the AI answer.
// Nil until a final answer is set.
func (r *Record) Agreement() *bool {
	if r.FinalAnswer == nil {
		return nil
	}
	ok := *r.FinalAnswer == r.AIAnswer
	return &ok
}

// finalize stores the survey answers on the record.
func (r *Record) finalize(s model.SurveyData) {
	fa := s.FinalAnswer
	ai := s.AIConfidence
	self := s.SelfConfidence
	r.FinalAnswer = &fa
	r.ConfidenceAI = &ai
	r.ConfidenceSelf = &self
}

// Reset clears every per-trial field. Participant identity and mode survive.
func (r *Record) Reset() {
	*r = Record{
		ParticipantID: r.ParticipantID,
		StudyID:       r.StudyID,
		SessionID:     r.SessionID,
		InterfaceMode: r.InterfaceMode,
		now:           r.now,
	}
}
