package model

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrValidationIncomplete is returned when required answers are missing.
var ErrValidationIncomplete = errors.New("validation incomplete")

// Mode selects one of the four interface presentations shown to a participant.
type Mode string

const (
	// ModeBaseline shows the AI answer with sources and search only.
	ModeBaseline Mode = "baseline"
	// ModeParagraph adds one uncertainty score for the whole answer.
	ModeParagraph Mode = "paragraph"
	// ModeToken adds word-level uncertainty highlighting.
	ModeToken Mode = "token"
	// ModeRelation shows a claim with supporting and attacking sub-arguments.
	ModeRelation Mode = "relation"
)

// Modes lists every interface mode.
var Modes = []Mode{ModeBaseline, ModeParagraph, ModeToken, ModeRelation}

// ParseMode returns the mode named by s, or ModeBaseline if s is not a known mode.
func ParseMode(s string) Mode {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Modes {
		if m == known {
			return m
		}
	}
	return ModeBaseline
}

// IsValidMode reports whether s names a known mode exactly.
func IsValidMode(s string) bool {
	for _, known := range Modes {
		if Mode(s) == known {
			return true
		}
	}
	return false
}

// YesNo is a binary answer.
type YesNo string

const (
	Yes YesNo = "yes"
	No  YesNo = "no"
)

// ParseYesNo parses "yes" or "no" (case-insensitive).
func ParseYesNo(s string) (YesNo, bool) {
	switch YesNo(strings.ToLower(strings.TrimSpace(s))) {
	case Yes:
		return Yes, true
	case No:
		return No, true
	}
	return "", false
}

// Role represents a transcript message role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the visible trial transcript.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Participant identifies who is taking the study and under which presentation.
type Participant struct {
	ID        string `json:"participant_id"`
	StudyID   string `json:"study_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Mode      Mode   `json:"interface_mode"`
}

// Demographics is the bundle handed over when intake completes.
type Demographics struct {
	Age         string   `json:"age"`
	Education   string   `json:"education"`
	AIStartTime string   `json:"ai_start_time"`
	AIFrequency string   `json:"ai_frequency"`
	AIUses      []string `json:"ai_uses"`
}

// SurveyData is the post-trial survey submitted for one question.
type SurveyData struct {
	FinalAnswer    YesNo `json:"final_answer"`
	AIConfidence   int   `json:"ai_confidence"`
	SelfConfidence int   `json:"self_confidence"`
	UseAI          bool  `json:"use_ai"`
	UseLink        bool  `json:"use_link"`
	UseInternet    bool  `json:"use_internet"`
}

// Validate checks that the survey carries a final answer and both confidence ratings.
func (s SurveyData) Validate() error {
	if s.FinalAnswer != Yes && s.FinalAnswer != No {
		return ErrValidationIncomplete
	}
	if s.AIConfidence < 1 || s.SelfConfidence < 1 {
		return ErrValidationIncomplete
	}
	return nil
}

// PostStudyResponses holds the closing questionnaire. Likert items range 1..5.
type PostStudyResponses struct {
	TrustBelief          int    `json:"trust_belief"`
	TrustIntention       int    `json:"trust_intention"`
	Anthropomorphism     int    `json:"anthropomorphism"`
	Transparency1        int    `json:"transparency1"`
	Transparency2        int    `json:"transparency2"`
	InterfaceExperience  string `json:"interface_experience"`
	ValidationMotivation string `json:"validation_motivation"`
}

// Validate requires every Likert item in range and both free-text answers non-blank.
func (p PostStudyResponses) Validate() error {
	for _, v := range []int{p.TrustBelief, p.TrustIntention, p.Anthropomorphism, p.Transparency1, p.Transparency2} {
		if v < 1 || v > 5 {
			return ErrValidationIncomplete
		}
	}
	if strings.TrimSpace(p.InterfaceExperience) == "" || strings.TrimSpace(p.ValidationMotivation) == "" {
		return ErrValidationIncomplete
	}
	return nil
}

// ExitURLs are the recruitment-platform URLs for each terminal exit.
type ExitURLs struct {
	ScreeningFail     string
	AttentionFail     string
	ComprehensionFail string
	Complete          string
}

// DefaultExitURLs are the completion links configured for the deployed study.
var DefaultExitURLs = ExitURLs{
	ScreeningFail:     "https://app.prolific.com/submissions/complete?cc=CFPS5XSX",
	AttentionFail:     "https://app.prolific.com/submissions/complete?cc=C100G96V",
	ComprehensionFail: "https://app.prolific.com/submissions/complete?cc=C440E5TS",
	Complete:          "https://app.prolific.com/submissions/complete?cc=C50IXWLR",
}

// StudyConfig holds runtime study parameters set via CLI flags.
type StudyConfig struct {
	Mode          Mode   // empty means take the mode from the query string
	BasePath      string // URL prefix for sub-path deployments
	SecureCookies bool   // Set Secure flag on cookies (disable for local dev)
	LiveMode      bool   // allow the live responder when no frozen payload exists
	Exits         ExitURLs
	// AdminPasswordHash is the bcrypt hash guarding the submissions export;
	// empty disables the admin endpoint.
	AdminPasswordHash string
}

// SubmissionKind distinguishes rows sent through the submission gateway.
type SubmissionKind string

const (
	KindTrial     SubmissionKind = "trial"
	KindPostStudy SubmissionKind = "post_study"
)

// Submission is a locally mirrored row that was sent to the sink.
type Submission struct {
	ID            int64          `json:"id"`
	Kind          SubmissionKind `json:"kind"`
	ParticipantID string         `json:"participant_id"`
	Body          string         `json:"body"`
	CreatedAt     time.Time      `json:"created_at"`
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}
