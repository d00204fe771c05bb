package submit

import (
	"strings"

	"github.com/pavelanni/trustgate/internal/model"
)

// Flag is a boolean serialized as the spreadsheet literals TRUE and FALSE.
type Flag bool

// MarshalJSON implements json.Marshaler.
func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte(`"TRUE"`), nil
	}
	return []byte(`"FALSE"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(b []byte) error {
	*f = Flag(strings.EqualFold(strings.Trim(string(b), `"`), "true"))
	return nil
}

// TrialRow is the flattened view of one completed trial as appended to the sink.
type TrialRow struct {
	ParticipantID    string  `json:"participantId"`
	StudyID          string  `json:"studyId,omitempty"`
	SessionID        string  `json:"sessionId,omitempty"`
	InterfaceMode    string  `json:"interfaceMode"`
	QuestionID       string  `json:"questionId"`
	Ordering         int     `json:"Ordering"`
	GroundTruth      string  `json:"GroundTruth"`
	AIAnswer         string  `json:"AI_Answer"`
	FinalAnswer      string  `json:"finalAnswer"`
	ConfidenceAI     int     `json:"ConfidenceAI"`
	ConfidenceAnswer int     `json:"ConfidenceAnswer"`
	UseAI            Flag    `json:"UseAI"`
	UseLink          Flag    `json:"UseLink"`
	UseInternet      Flag    `json:"UseInternet"`
	Correct          Flag    `json:"Correct"`
	Agree            Flag    `json:"Agree"`
	Time             float64 `json:"Time"`
	LinkClick        int     `json:"LinkClick"`
	SearchClick      int     `json:"SearchClick"`
	RawData          any     `json:"RawData"`
}

// PostStudyRow is the flattened closing questionnaire joined with demographics.
type PostStudyRow struct {
	ParticipantID        string `json:"participantId"`
	StudyID              string `json:"studyId,omitempty"`
	SessionID            string `json:"sessionId,omitempty"`
	InterfaceMode        string `json:"interfaceMode"`
	Age                  string `json:"age"`
	Education            string `json:"education"`
	AIStartTime          string `json:"aiStartTime"`
	AIFrequency          string `json:"aiFrequency"`
	AIUses               string `json:"aiUses"`
	TrustBelief          int    `json:"trustBelief"`
	TrustIntention       int    `json:"trustIntention"`
	Anthropomorphism     int    `json:"anthropomorphism"`
	Transparency1        int    `json:"transparency1"`
	Transparency2        int    `json:"transparency2"`
	InterfaceExperience  string `json:"interfaceExperience"`
	ValidationMotivation string `json:"validationMotivation"`
	RawData              any    `json:"RawData"`
}

// NewPostStudyRow flattens the questionnaire. Missing demographics become empty strings.
func NewPostStudyRow(p model.Participant, d *model.Demographics, r model.PostStudyResponses) PostStudyRow {
	var demo model.Demographics
	if d != nil {
		demo = *d
	}
	return PostStudyRow{
		ParticipantID:        p.ID,
		StudyID:              p.StudyID,
		SessionID:            p.SessionID,
		InterfaceMode:        string(p.Mode),
		Age:                  demo.Age,
		Education:            demo.Education,
		AIStartTime:          demo.AIStartTime,
		AIFrequency:          demo.AIFrequency,
		AIUses:               strings.Join(demo.AIUses, ", "),
		TrustBelief:          r.TrustBelief,
		TrustIntention:       r.TrustIntention,
		Anthropomorphism:     r.Anthropomorphism,
		Transparency1:        r.Transparency1,
		Transparency2:        r.Transparency2,
		InterfaceExperience:  r.InterfaceExperience,
		ValidationMotivation: r.ValidationMotivation,
		RawData: map[string]any{
			"postData":     r,
			"demographics": d,
		},
	}
}
