// Package study ties intake, trials and the post-study questionnaire into one
// explicitly passed session handle per participant.
package study

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pavelanni/trustgate/internal/intake"
	"github.com/pavelanni/trustgate/internal/model"
	"github.com/pavelanni/trustgate/internal/submit"
	"github.com/pavelanni/trustgate/internal/trial"
)

// Phase is the coarse position of a session in the study.
type Phase string

const (
	PhaseIntake   Phase = "intake"
	PhaseTrials   Phase = "trials"
	PhasePost     Phase = "post"
	PhaseFinished Phase = "finished"
	PhaseExited   Phase = "exited"
)

// ErrWrongPhase rejects an operation that does not belong to the current phase.
var ErrWrongPhase = errors.New("operation not valid in current phase")

// Deps are the shared, read-only collaborators every session uses.
type Deps struct {
	Key       *trial.AnswerKey
	Responder trial.Responder
	Sender    trial.Sender
	Exits     model.ExitURLs
	IntN      func(n int) int
	Now       func() time.Time
}

// Session is one participant's pass through the study. Callers must hold
// the session lock (Lock/Unlock) around every method call.
type Session struct {
	sync.Mutex

	ID          string
	Participant model.Participant
	CreatedAt   time.Time

	deps         Deps
	phase        Phase
	intake       *intake.Machine
	trials       *trial.Orchestrator
	kv           trial.KeyValue
	demographics *model.Demographics
	exitURL      string
	notice       error
}

// NewSession starts a session at the screening step.
func NewSession(id string, p model.Participant, kv trial.KeyValue, deps Deps) *Session {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Session{
		ID:          id,
		Participant: p,
		CreatedAt:   now(),
		deps:        deps,
		phase:       PhaseIntake,
		intake:      intake.New(p.Mode, deps.Exits),
		kv:          kv,
	}
}

// Phase returns the current phase.
func (s *Session) Phase() Phase { return s.phase }

// Intake returns the intake machine.
func (s *Session) Intake() *intake.Machine { return s.intake }

// Trials returns the trial orchestrator; nil until intake is done.
func (s *Session) Trials() *trial.Orchestrator { return s.trials }

// Demographics returns the bundle emitted by intake; nil before done.
func (s *Session) Demographics() *model.Demographics { return s.demographics }

// ExitURL is where the participant was sent when the session ended.
func (s *Session) ExitURL() string { return s.exitURL }

// TrialNotice is the error from the last failed question dispatch, if any.
func (s *Session) TrialNotice() error { return s.notice }

// ApplyIntake runs one intake operation and follows its outcome: exits end
// the session and done starts the trials.
func (s *Session) ApplyIntake(ctx context.Context, op func(m *intake.Machine) (intake.Outcome, error)) (intake.Outcome, error) {
	if s.phase != PhaseIntake {
		return intake.Outcome{}, ErrWrongPhase
	}
	out, err := op(s.intake)
	if err != nil {
		return out, err
	}
	if out.Exit != nil {
		s.phase = PhaseExited
		s.exitURL = out.Exit.URL
		return out, nil
	}
	if out.Demographics != nil {
		s.demographics = out.Demographics
		s.startTrials(ctx)
	}
	return out, nil
}

func (s *Session) startTrials(ctx context.Context) {
	s.trials = trial.NewOrchestrator(s.deps.Key, s.Participant, trial.Options{
		Responder: s.deps.Responder,
		Sender:    s.deps.Sender,
		KV:        s.kv,
		IntN:      s.deps.IntN,
		Now:       s.deps.Now,
	})
	s.phase = PhaseTrials
	q, err := s.trials.StartSession()
	if err != nil {
		slog.Error("start trials", "session", s.ID, "error", err)
		s.notice = err
		return
	}
	s.dispatch(ctx, q)
}

// dispatch submits the scheduled question. A lookup failure is kept as a
// notice and the question stays pending until RetryPending.
func (s *Session) dispatch(ctx context.Context, q trial.Question) {
	err := s.trials.SubmitQuestion(ctx, q.Text)
	if errors.Is(err, trial.ErrTrialInProgress) {
		return
	}
	s.notice = err
}

// RetryPending re-dispatches the pending question after a failed lookup.
func (s *Session) RetryPending(ctx context.Context) error {
	if s.phase != PhaseTrials {
		return ErrWrongPhase
	}
	q, ok := s.trials.Pending()
	if !ok {
		return nil
	}
	s.dispatch(ctx, q)
	return s.notice
}

// CompleteTrial submits the survey for the trial on screen and dispatches the
// next question, or moves to the post-study questionnaire after the last one.
func (s *Session) CompleteTrial(ctx context.Context, survey model.SurveyData) error {
	if s.phase != PhaseTrials {
		return ErrWrongPhase
	}
	next, finished, err := s.trials.CompleteTrial(ctx, survey)
	if err != nil {
		return err
	}
	if finished {
		s.phase = PhasePost
		return nil
	}
	s.dispatch(ctx, next)
	return nil
}

// SubmitPostStudy validates and sends the closing questionnaire and returns
// the completion URL.
func (s *Session) SubmitPostStudy(ctx context.Context, r model.PostStudyResponses) (string, error) {
	if s.phase != PhasePost {
		return "", ErrWrongPhase
	}
	if err := r.Validate(); err != nil {
		return "", err
	}
	row := submit.NewPostStudyRow(s.Participant, s.demographics, r)
	if s.deps.Sender != nil {
		s.deps.Sender.Send(ctx, model.KindPostStudy, s.Participant.ID, row)
	}
	s.phase = PhaseFinished
	s.exitURL = s.deps.Exits.Complete
	slog.Info("study completed", "session", s.ID, "participant_id", s.Participant.ID)
	return s.exitURL, nil
}
