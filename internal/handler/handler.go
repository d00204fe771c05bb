package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pavelanni/trustgate/internal/handler/views"
	appI18n "github.com/pavelanni/trustgate/internal/i18n"
	"github.com/pavelanni/trustgate/internal/intake"
	"github.com/pavelanni/trustgate/internal/model"
	"github.com/pavelanni/trustgate/internal/store"
	"github.com/pavelanni/trustgate/internal/study"
	"github.com/pavelanni/trustgate/internal/trial"
)

// participantIDKey is the key-value entry holding the browser's participant id.
const participantIDKey = "participant-id"

// Recruitment platform query parameters.
const (
	paramParticipantID = "PROLIFIC_PID"
	paramStudyID       = "STUDY_ID"
	paramSessionID     = "SESSION_ID"
	paramMode          = "mode"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	registry *study.Registry
	deps     study.Deps
	config   model.StudyConfig
}

// New creates a new Handler.
func New(s *store.Store, reg *study.Registry, deps study.Deps, cfg model.StudyConfig) (*Handler, error) {
	if deps.Key == nil {
		return nil, errors.New("answer key is required")
	}
	return &Handler{store: s, registry: reg, deps: deps, config: cfg}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.csrfMiddleware)
		r.Get("/", h.handleEntry)
		r.Get("/study", h.handleStudyPage)
		r.Post("/intake/back", h.handleIntakeBack)
		r.Post("/intake/{step}", h.handleIntake)
		r.Post("/trial/events/{kind}", h.handleTrialEvent)
		r.Post("/trial/retry", h.handleTrialRetry)
		r.Post("/trial/survey", h.handleSurvey)
		r.Post("/post", h.handlePostStudy)
	})
	r.With(h.requireAdmin).Get("/admin/submissions", h.handleAdminSubmissions)
}

// handleEntry resolves the browser and participant, creates the session on
// first visit and sends the browser to the study page.
func (h *Handler) handleEntry(w http.ResponseWriter, r *http.Request) {
	browserID := h.browserID(w, r)
	if h.registry.Get(browserID) != nil {
		http.Redirect(w, r, h.path("/study"), http.StatusSeeOther)
		return
	}

	q := r.URL.Query()
	kv := h.store.KV(browserID)
	pid := q.Get(paramParticipantID)
	if pid == "" {
		var err error
		pid, err = kv.Get(participantIDKey, "")
		if err != nil {
			slog.Error("read participant id", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}
	if pid == "" {
		pid = uuid.NewString()
	}
	if err := kv.Set(participantIDKey, pid); err != nil {
		slog.Error("store participant id", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	mode := h.config.Mode
	if mode == "" {
		mode = model.ParseMode(q.Get(paramMode))
	}
	p := model.Participant{
		ID:        pid,
		StudyID:   q.Get(paramStudyID),
		SessionID: q.Get(paramSessionID),
		Mode:      mode,
	}
	h.registry.Put(study.NewSession(browserID, p, kv, h.deps))
	slog.Info("session created", "participant_id", pid, "mode", mode, "study_id", p.StudyID)

	http.Redirect(w, r, h.path("/study"), http.StatusSeeOther)
}

func (h *Handler) handleStudyPage(w http.ResponseWriter, r *http.Request) {
	sess := h.session(r)
	if sess == nil {
		h.renderExpired(w, r)
		return
	}
	sess.Lock()
	defer sess.Unlock()
	h.renderStudy(w, r, sess, "")
}

// session returns the live session for the request's browser, or nil.
func (h *Handler) session(r *http.Request) *study.Session {
	c, err := r.Cookie(browserCookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	return h.registry.Get(c.Value)
}

// renderStudy renders the screen for the session's phase. The caller holds
// the session lock.
func (h *Handler) renderStudy(w http.ResponseWriter, r *http.Request, sess *study.Session, notice string) {
	ctx := r.Context()
	switch sess.Phase() {
	case study.PhaseIntake:
		m := sess.Intake()
		screening, comprehension := m.Answers()
		a1, a2 := m.AttentionAnswers()
		h.renderPage(w, r, appI18n.T(ctx, stepTitles[m.Step()]), views.IntakePage(views.IntakeView{
			Step:          m.Step(),
			Variant:       m.Variant(),
			Demographics:  m.Demographics(),
			Screening:     screening,
			Comprehension: comprehension,
			Attention1:    a1,
			Attention2:    a2,
			Notice:        notice,
		}))
	case study.PhaseTrials:
		h.renderPage(w, r, appI18n.T(ctx, "AIAnswerHeading"), views.TrialPage(trialView(sess, notice)))
	case study.PhasePost:
		h.renderPage(w, r, appI18n.T(ctx, "PostStudyTitle"), views.PostStudyPage(model.PostStudyResponses{}, notice))
	case study.PhaseFinished:
		h.renderPage(w, r, appI18n.T(ctx, "FinishedTitle"), views.MessagePage("FinishedTitle", "", sess.ExitURL()))
	default:
		h.renderPage(w, r, appI18n.T(ctx, "ExitedTitle"), views.MessagePage("ExitedTitle", "ExitedBody", sess.ExitURL()))
	}
}

var stepTitles = map[intake.Step]string{
	intake.StepScreening:     "ScreeningTitle",
	intake.StepDemographics1: "DemographicsTitle",
	intake.StepAttention1:    "Attention1Title",
	intake.StepDemographics2: "DemographicsTitle",
	intake.StepAttention2:    "Attention2Title",
	intake.StepTutorial:      "TutorialTitle",
	intake.StepComprehension: "ComprehensionTitle",
}

func trialView(sess *study.Session, notice string) views.TrialView {
	o := sess.Trials()
	v := views.TrialView{Mode: sess.Participant.Mode, Total: o.Total(), Notice: notice}
	if entry, payload, ok := o.Current(); ok {
		v.Number = o.Shown()
		v.Question = entry.Text
		v.Payload = payload
		v.InProgress = true
		return v
	}
	v.Number = o.Shown() + 1
	if q, ok := o.Pending(); ok {
		v.Question = q.Text
	}
	if v.Notice == "" {
		v.Notice = trialNotice(sess.TrialNotice())
	}
	return v
}

// trialNotice maps a failed question dispatch to its inline message id.
func trialNotice(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, trial.ErrUnknownQuestion):
		return "UnknownQuestion"
	default:
		return "NoPrecomputedResponse"
	}
}

func (h *Handler) renderPage(w http.ResponseWriter, r *http.Request, title string, body templ.Component) {
	h.renderPageStatus(w, r, http.StatusOK, title, body)
}

func (h *Handler) renderPageStatus(w http.ResponseWriter, r *http.Request, status int, title string, body templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := views.Layout(title).Render(templ.WithChildren(r.Context(), body), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) renderExpired(w http.ResponseWriter, r *http.Request) {
	h.renderPageStatus(w, r, http.StatusNotFound, appI18n.T(r.Context(), "AppTitle"), views.MessagePage("AppTitle", "SessionExpired", ""))
}

// redirect sends the browser to target, using HX-Redirect for htmx requests.
func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, target string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// path prefixes p with the configured base path.
func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}
