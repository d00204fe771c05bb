package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/trustgate/internal/intake"
	"github.com/pavelanni/trustgate/internal/model"
)

type intakeOp func(m *intake.Machine) (intake.Outcome, error)

func (h *Handler) handleIntake(w http.ResponseWriter, r *http.Request) {
	op, ok := intakeOpFor(intake.Step(chi.URLParam(r, "step")), r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	h.applyIntake(w, r, op)
}

func (h *Handler) handleIntakeBack(w http.ResponseWriter, r *http.Request) {
	h.applyIntake(w, r, (*intake.Machine).Back)
}

// intakeOpFor binds the submitted form of step to the matching machine operation.
func intakeOpFor(step intake.Step, r *http.Request) (intakeOp, bool) {
	switch step {
	case intake.StepScreening:
		answers := choices(r, intake.ScreeningQuestions)
		return func(m *intake.Machine) (intake.Outcome, error) {
			return m.SubmitScreening(answers)
		}, true
	case intake.StepDemographics1:
		age, edu, start := r.FormValue("age"), r.FormValue("education"), r.FormValue("ai_start_time")
		return func(m *intake.Machine) (intake.Outcome, error) {
			return m.SubmitDemographics1(age, edu, start)
		}, true
	case intake.StepAttention1:
		answer := r.FormValue("answer")
		return func(m *intake.Machine) (intake.Outcome, error) {
			return m.SubmitAttention1(answer)
		}, true
	case intake.StepDemographics2:
		freq := r.FormValue("ai_frequency")
		uses := r.Form["ai_uses"]
		return func(m *intake.Machine) (intake.Outcome, error) {
			return m.SubmitDemographics2(freq, uses)
		}, true
	case intake.StepAttention2:
		answer := r.FormValue("answer")
		return func(m *intake.Machine) (intake.Outcome, error) {
			return m.SubmitAttention2(answer)
		}, true
	case intake.StepTutorial:
		return (*intake.Machine).ContinueTutorial, true
	case intake.StepComprehension:
		return func(m *intake.Machine) (intake.Outcome, error) {
			return m.SubmitComprehension(choices(r, m.Variant().Comprehension))
		}, true
	}
	return nil, false
}

// choices reads one integer option index per question; unanswered or
// malformed fields are left out.
func choices(r *http.Request, qs []intake.ChoiceQuestion) map[string]int {
	out := make(map[string]int, len(qs))
	for _, q := range qs {
		v, err := strconv.Atoi(r.FormValue(q.ID))
		if err != nil || v < 0 || v >= len(q.Options) {
			continue
		}
		out[q.ID] = v
	}
	return out
}

func (h *Handler) applyIntake(w http.ResponseWriter, r *http.Request, op intakeOp) {
	sess := h.session(r)
	if sess == nil {
		h.renderExpired(w, r)
		return
	}
	sess.Lock()
	defer sess.Unlock()

	out, err := sess.ApplyIntake(r.Context(), op)
	switch {
	case errors.Is(err, model.ErrValidationIncomplete):
		h.renderStudy(w, r, sess, out.Notice)
		return
	case err != nil:
		slog.Warn("intake operation rejected", "session", sess.ID, "error", err)
		h.redirect(w, r, h.path("/study"))
		return
	}

	switch {
	case out.Exit != nil:
		slog.Info("participant exited", "participant_id", sess.Participant.ID, "reason", out.Exit.Reason)
		h.redirect(w, r, out.Exit.URL)
	case out.Notice != "":
		h.renderStudy(w, r, sess, out.Notice)
	default:
		h.redirect(w, r, h.path("/study"))
	}
}
