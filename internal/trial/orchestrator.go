package trial

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/trustgate/internal/model"
	"github.com/pavelanni/trustgate/internal/submit"
)

// RecommendedSearchesKey is the key-value entry that receives the
// recommended search terms of the most recent payload.
const RecommendedSearchesKey = "recommended-searches"

var (
	// ErrTrialInProgress rejects a question submission while a trial awaits its survey.
	ErrTrialInProgress = errors.New("trial already in progress")
	// ErrNoActiveTrial rejects survey and event calls when no trial is on screen.
	ErrNoActiveTrial = errors.New("no active trial")
	// ErrAlreadyStarted rejects a second StartSession.
	ErrAlreadyStarted = errors.New("trial session already started")
	// ErrNotStarted rejects calls made before StartSession.
	ErrNotStarted = errors.New("trial session not started")
	// ErrFinished rejects calls after the last trial.
	ErrFinished = errors.New("all trials completed")
	// ErrNoQuestions means the answer key is empty.
	ErrNoQuestions = errors.New("no questions configured")
	// ErrNotScheduled rejects a known question that is not the one at the cursor.
	ErrNotScheduled = errors.New("question not scheduled")
)

// Sender delivers a flattened row to the submission sink.
type Sender interface {
	Send(ctx context.Context, kind model.SubmissionKind, participantID string, row any)
}

// KeyValue is the participant's persistent key-value store.
type KeyValue interface {
	Get(key, def string) (string, error)
	Set(key, value string) error
}

// Options carries the collaborators of an Orchestrator. Zero values fall
// back to defaults: math/rand/v2 for shuffling, time.Now, no KV, no sender.
type Options struct {
	Responder Responder
	Sender    Sender
	KV        KeyValue
	IntN      func(n int) int
	Now       func() time.Time
}

// Orchestrator drives the randomized sequence of trials for one session.
type Orchestrator struct {
	key       *AnswerKey
	questions []Question
	responder Responder
	sender    Sender
	kv        KeyValue
	intN      func(n int) int
	now       func() time.Time

	record     *Record
	transcript []model.Message
	cache      map[string]Payload

	order      []int
	cursor     int
	shown      int
	started    bool
	inProgress bool
	finished   bool
	current    Entry
	payload    Payload
}

// NewOrchestrator creates an orchestrator over the questions of key.
func NewOrchestrator(key *AnswerKey, p model.Participant, opts Options) *Orchestrator {
	if opts.IntN == nil {
		opts.IntN = rand.IntN
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		key:       key,
		questions: key.Questions(),
		responder: opts.Responder,
		sender:    opts.Sender,
		kv:        opts.KV,
		intN:      opts.IntN,
		now:       opts.Now,
		record:    NewRecord(p, opts.Now),
		cache:     make(map[string]Payload),
	}
}

// StartSession generates the question order once and returns the question
// scheduled at position 0.
func (o *Orchestrator) StartSession() (Question, error) {
	if o.started {
		return Question{}, ErrAlreadyStarted
	}
	if len(o.questions) == 0 {
		return Question{}, ErrNoQuestions
	}
	o.order = permutation(len(o.questions), o.intN)
	o.started = true
	slog.Info("trial session started", "participant_id", o.record.ParticipantID, "order", o.order)
	return o.questions[o.order[0]], nil
}

// permutation returns a uniform Fisher-Yates shuffle of [0, n).
func permutation(n int, intN func(int) int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := intN(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// Pending returns the scheduled question that has not been submitted yet.
func (o *Orchestrator) Pending() (Question, bool) {
	if !o.started || o.finished || o.inProgress {
		return Question{}, false
	}
	return o.questions[o.order[o.cursor]], true
}

// SubmitQuestion presents the question with the given text, which must be the
// scheduled one. A submission while a trial is already in progress, or of any
// other question, is rejected without touching any counter.
func (o *Orchestrator) SubmitQuestion(ctx context.Context, text string) error {
	switch {
	case !o.started:
		return ErrNotStarted
	case o.finished:
		return ErrFinished
	case o.inProgress:
		return ErrTrialInProgress
	}

	entry, norm, err := o.key.Lookup(text)
	if err != nil {
		slog.Error("question lookup failed", "text", text, "error", err)
		return err
	}
	if scheduled := o.questions[o.order[o.cursor]]; entry.ID != scheduled.ID {
		slog.Warn("question out of order", "question_id", entry.ID, "scheduled", scheduled.ID)
		return fmt.Errorf("%w: got %s, want %s", ErrNotScheduled, entry.ID, scheduled.ID)
	}

	payload, err := o.respond(ctx, entry, norm)
	if err != nil {
		slog.Error("no response payload", "question_id", entry.ID, "error", err)
		return err
	}

	o.shown++
	o.current = entry
	o.payload = payload
	o.record.QuestionID = entry.ID
	o.record.CorrectAnswer = entry.GroundTruth
	o.record.AIAnswer = entry.AIAnswer

	content, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	at := o.now()
	o.transcript = append(o.transcript,
		model.Message{ID: uuid.NewString(), Role: model.RoleUser, Content: text, CreatedAt: at},
		model.Message{ID: uuid.NewString(), Role: model.RoleAssistant, Content: string(content), CreatedAt: at},
	)

	if len(payload.RecommendedSearches) > 0 && o.kv != nil {
		searches, err := json.Marshal(payload.RecommendedSearches)
		if err == nil {
			err = o.kv.Set(RecommendedSearchesKey, string(searches))
		}
		if err != nil {
			slog.Warn("store recommended searches", "question_id", entry.ID, "error", err)
		}
	}

	o.inProgress = true
	slog.Info("question presented", "participant_id", o.record.ParticipantID,
		"question_id", entry.ID, "number", o.shown, "of", len(o.order))
	return nil
}

func (o *Orchestrator) respond(ctx context.Context, e Entry, norm string) (Payload, error) {
	if p, ok := o.cache[norm]; ok {
		return p, nil
	}
	if o.responder == nil {
		return Payload{}, ErrNoPrecomputedResponse
	}
	p, err := o.responder.Respond(ctx, e, norm)
	if err != nil {
		return Payload{}, err
	}
	o.cache[norm] = p
	return p, nil
}

// CompleteTrial finalizes the live record with the survey, sends it, resets
// the record and transcript, and schedules the next question. finished is
// true when no question remains.
func (o *Orchestrator) CompleteTrial(ctx context.Context, survey model.SurveyData) (next Question, finished bool, err error) {
	if !o.inProgress {
		return Question{}, o.finished, ErrNoActiveTrial
	}
	if err := survey.Validate(); err != nil {
		return Question{}, false, err
	}

	o.record.finalize(survey)
	row := o.row(survey, o.now())
	if o.sender != nil {
		o.sender.Send(ctx, model.KindTrial, o.record.ParticipantID, row)
	}

	o.record.Reset()
	o.transcript = nil
	o.payload = Payload{}
	o.current = Entry{}
	o.inProgress = false

	o.cursor++
	if o.cursor >= len(o.order) {
		o.finished = true
		slog.Info("all trials completed", "participant_id", o.record.ParticipantID, "count", o.shown)
		return Question{}, true, nil
	}
	return o.questions[o.order[o.cursor]], false, nil
}

func (o *Orchestrator) row(s model.SurveyData, at time.Time) submit.TrialRow {
	r := o.record
	row := submit.TrialRow{
		ParticipantID:    r.ParticipantID,
		StudyID:          r.StudyID,
		SessionID:        r.SessionID,
		InterfaceMode:    string(r.InterfaceMode),
		QuestionID:       r.QuestionID,
		Ordering:         o.shown,
		GroundTruth:      string(r.CorrectAnswer),
		AIAnswer:         string(r.AIAnswer),
		FinalAnswer:      string(s.FinalAnswer),
		ConfidenceAI:     s.AIConfidence,
		ConfidenceAnswer: s.SelfConfidence,
		UseAI:            submit.Flag(s.UseAI),
		UseLink:          submit.Flag(s.UseLink),
		UseInternet:      submit.Flag(s.UseInternet),
		Time:             r.ResponseTime(at).Seconds(),
		LinkClick:        r.LinkClickCount,
		SearchClick:      r.SearchClickCount,
	}
	if c := r.Correctness(); c != nil {
		row.Correct = submit.Flag(*c)
	}
	if a := r.Agreement(); a != nil {
		row.Agree = submit.Flag(*a)
	}
	snapshot := *r
	row.RawData = map[string]any{
		"surveyData": s,
		"trialState": snapshot,
	}
	return row
}

// RecordSearchClick counts a search panel click on the live trial.
func (o *Orchestrator) RecordSearchClick() error {
	if !o.inProgress {
		return ErrNoActiveTrial
	}
	o.record.RecordSearchClick()
	return nil
}

// RecordLinkClick counts a link click inside the answer region of the live trial.
func (o *Orchestrator) RecordLinkClick() error {
	if !o.inProgress {
		return ErrNoActiveTrial
	}
	o.record.RecordLinkClick()
	return nil
}

// MarkAnswerDisplayed stamps the first render of the live trial's answer.
func (o *Orchestrator) MarkAnswerDisplayed() error {
	if !o.inProgress {
		return ErrNoActiveTrial
	}
	o.record.MarkAnswerDisplayed()
	return nil
}

// Record returns the live trial record.
func (o *Orchestrator) Record() *Record { return o.record }

// Transcript returns the visible user and assistant turns of the live trial.
func (o *Orchestrator) Transcript() []model.Message { return o.transcript }

// Current returns the entry and payload of the trial on screen.
func (o *Orchestrator) Current() (Entry, Payload, bool) {
	return o.current, o.payload, o.inProgress
}

// Order returns a copy of the question permutation.
func (o *Orchestrator) Order() []int {
	out := make([]int, len(o.order))
	copy(out, o.order)
	return out
}

// Shown is the 1-based number of the question currently or last presented.
func (o *Orchestrator) Shown() int { return o.shown }

// Total is the number of trials in the session.
func (o *Orchestrator) Total() int { return len(o.questions) }

// InProgress reports whether a trial is awaiting its survey.
func (o *Orchestrator) InProgress() bool { return o.inProgress }

// Finished reports whether every trial has been completed.
func (o *Orchestrator) Finished() bool { return o.finished }
