// Package views renders the participant-facing pages. The components are
// written in .templ files; run `templ generate` after editing them.
package views

import (
	"context"
	"net/url"
	"strconv"

	"github.com/pavelanni/trustgate/internal/i18n"
	"github.com/pavelanni/trustgate/internal/intake"
	"github.com/pavelanni/trustgate/internal/model"
	"github.com/pavelanni/trustgate/internal/trial"
)

// IntakeView is the state needed to render the current intake step.
type IntakeView struct {
	Step          intake.Step
	Variant       intake.Variant
	Demographics  model.Demographics
	Screening     map[string]int
	Comprehension map[string]int
	Attention1    string
	Attention2    string
	Notice        string
}

// TrialView is the trial on screen, or the pending question when the last
// dispatch failed.
type TrialView struct {
	Mode       model.Mode
	Number     int
	Total      int
	Question   string
	Payload    trial.Payload
	InProgress bool
	Notice     string
}

func path(ctx context.Context, p string) string {
	return model.BasePathFromContext(ctx) + p
}

func isChosen(answers map[string]int, id string, option int) bool {
	v, ok := answers[id]
	return ok && v == option
}

var attention2Labels = map[string]string{
	"strongly_disagree": "StronglyDisagree",
	"disagree":          "Disagree",
	"agree":             "Agree",
	"strongly_agree":    "StronglyAgree",
}

// searchLevel maps a mode to its key in Payload.RecommendedSearches.
func searchLevel(m model.Mode) string {
	if m == model.ModeBaseline {
		return "paragraph_level"
	}
	return string(m) + "_level"
}

func searchURL(term string) string {
	return "https://duckduckgo.com/html/?q=" + url.QueryEscape(term)
}

func progress(ctx context.Context, v TrialView) string {
	return i18n.Td(ctx, "QuestionProgress", map[string]any{"Number": max(v.Number, 1), "Total": v.Total})
}

func uncertainty(ctx context.Context, score int) string {
	return i18n.Td(ctx, "UncertaintyScore", map[string]any{"Score": score})
}

// scaleLabel is the text of point i (1-based) on a labelled scale.
func scaleLabel(labels []string, i int) string {
	if i-1 < len(labels) {
		return labels[i-1] + " (" + strconv.Itoa(i) + ")"
	}
	return strconv.Itoa(i)
}

type likertItem struct {
	name, labelID string
	value         func(model.PostStudyResponses) int
}

var likertItems = []likertItem{
	{"trust_belief", "TrustBelief", func(r model.PostStudyResponses) int { return r.TrustBelief }},
	{"trust_intention", "TrustIntention", func(r model.PostStudyResponses) int { return r.TrustIntention }},
	{"anthropomorphism", "Anthropomorphism", func(r model.PostStudyResponses) int { return r.Anthropomorphism }},
	{"transparency1", "Transparency1", func(r model.PostStudyResponses) int { return r.Transparency1 }},
	{"transparency2", "Transparency2", func(r model.PostStudyResponses) int { return r.Transparency2 }},
}

var likertLabelIDs = []string{"StronglyDisagree", "Disagree", "Neutral", "Agree", "StronglyAgree"}

func likertLabels(ctx context.Context) []string {
	out := make([]string, len(likertLabelIDs))
	for i, id := range likertLabelIDs {
		out[i] = i18n.T(ctx, id)
	}
	return out
}
