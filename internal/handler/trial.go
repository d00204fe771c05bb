package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/trustgate/internal/handler/views"
	appI18n "github.com/pavelanni/trustgate/internal/i18n"
	"github.com/pavelanni/trustgate/internal/model"
	"github.com/pavelanni/trustgate/internal/study"
	"github.com/pavelanni/trustgate/internal/trial"
)

// handleTrialEvent records an interaction beacon for the trial on screen.
func (h *Handler) handleTrialEvent(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	if kind != "search" && kind != "link" && kind != "displayed" {
		http.NotFound(w, r)
		return
	}
	sess := h.session(r)
	if sess == nil {
		http.Error(w, "no session", http.StatusNotFound)
		return
	}
	sess.Lock()
	defer sess.Unlock()

	if sess.Phase() != study.PhaseTrials {
		http.Error(w, "no active trial", http.StatusConflict)
		return
	}
	o := sess.Trials()
	var err error
	switch kind {
	case "search":
		err = o.RecordSearchClick()
	case "link":
		err = o.RecordLinkClick()
	case "displayed":
		err = o.MarkAnswerDisplayed()
	}
	if errors.Is(err, trial.ErrNoActiveTrial) {
		http.Error(w, "no active trial", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleTrialRetry(w http.ResponseWriter, r *http.Request) {
	sess := h.session(r)
	if sess == nil {
		h.renderExpired(w, r)
		return
	}
	sess.Lock()
	defer sess.Unlock()

	if err := sess.RetryPending(r.Context()); err != nil {
		slog.Warn("question retry failed", "session", sess.ID, "error", err)
	}
	h.redirect(w, r, h.path("/study"))
}

func parseSurvey(r *http.Request) model.SurveyData {
	final, _ := model.ParseYesNo(r.FormValue("final_answer"))
	aiConf, _ := strconv.Atoi(r.FormValue("ai_confidence"))
	selfConf, _ := strconv.Atoi(r.FormValue("self_confidence"))
	return model.SurveyData{
		FinalAnswer:    final,
		AIConfidence:   aiConf,
		SelfConfidence: selfConf,
		UseAI:          r.FormValue("use_ai") == "true",
		UseLink:        r.FormValue("use_link") == "true",
		UseInternet:    r.FormValue("use_internet") == "true",
	}
}

func (h *Handler) handleSurvey(w http.ResponseWriter, r *http.Request) {
	sess := h.session(r)
	if sess == nil {
		h.renderExpired(w, r)
		return
	}
	sess.Lock()
	defer sess.Unlock()

	err := sess.CompleteTrial(r.Context(), parseSurvey(r))
	switch {
	case errors.Is(err, model.ErrValidationIncomplete):
		h.renderStudy(w, r, sess, "SurveyIncomplete")
		return
	case err != nil:
		slog.Warn("survey rejected", "session", sess.ID, "error", err)
	}
	h.redirect(w, r, h.path("/study"))
}

func parsePostStudy(r *http.Request) model.PostStudyResponses {
	likert := func(name string) int {
		v, _ := strconv.Atoi(r.FormValue(name))
		return v
	}
	return model.PostStudyResponses{
		TrustBelief:          likert("trust_belief"),
		TrustIntention:       likert("trust_intention"),
		Anthropomorphism:     likert("anthropomorphism"),
		Transparency1:        likert("transparency1"),
		Transparency2:        likert("transparency2"),
		InterfaceExperience:  r.FormValue("interface_experience"),
		ValidationMotivation: r.FormValue("validation_motivation"),
	}
}

func (h *Handler) handlePostStudy(w http.ResponseWriter, r *http.Request) {
	sess := h.session(r)
	if sess == nil {
		h.renderExpired(w, r)
		return
	}
	sess.Lock()
	defer sess.Unlock()

	responses := parsePostStudy(r)
	exitURL, err := sess.SubmitPostStudy(r.Context(), responses)
	switch {
	case errors.Is(err, model.ErrValidationIncomplete):
		h.renderPage(w, r, appI18n.T(r.Context(), "PostStudyTitle"), views.PostStudyPage(responses, "PostStudyIncomplete"))
	case err != nil:
		slog.Warn("post-study submission rejected", "session", sess.ID, "error", err)
		h.redirect(w, r, h.path("/study"))
	default:
		h.redirect(w, r, exitURL)
	}
}
