package trial

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/trustgate/internal/model"
	"github.com/pavelanni/trustgate/internal/submit"
)

type sentRow struct {
	kind model.SubmissionKind
	pid  string
	row  any
}

type fakeSender struct{ rows []sentRow }

func (f *fakeSender) Send(_ context.Context, kind model.SubmissionKind, pid string, row any) {
	f.rows = append(f.rows, sentRow{kind, pid, row})
}

type mapKV map[string]string

func (m mapKV) Get(key, def string) (string, error) {
	if v, ok := m[key]; ok {
		return v, nil
	}
	return def, nil
}

func (m mapKV) Set(key, value string) error {
	m[key] = value
	return nil
}

func testBook(t *testing.T, entries []Entry) ResponseBook {
	t.Helper()
	byText := make(map[string]Payload, len(entries))
	for _, e := range entries {
		byText[e.Text] = Payload{
			Answer:              string(e.AIAnswer) + " for " + e.ID,
			UncertaintyScore:    40,
			RecommendedSearches: map[string][]string{"token_level": {e.ID + " search"}},
		}
	}
	book, err := NewResponseBook(byText)
	require.NoError(t, err)
	return book
}

type harness struct {
	o      *Orchestrator
	sender *fakeSender
	kv     mapKV
	clock  *fakeClock
}

func newHarness(t *testing.T, entries []Entry, book ResponseBook) *harness {
	t.Helper()
	key, err := NewAnswerKey(entries)
	require.NoError(t, err)
	h := &harness{sender: &fakeSender{}, kv: mapKV{}, clock: newClock()}
	r := rand.New(rand.NewPCG(7, 11))
	h.o = NewOrchestrator(key, model.Participant{ID: "p1", StudyID: "s1", SessionID: "x1", Mode: model.ModeParagraph}, Options{
		Responder: FrozenResponder{Book: book},
		Sender:    h.sender,
		KV:        h.kv,
		IntN:      r.IntN,
		Now:       h.clock.now,
	})
	return h
}

var goodSurvey = model.SurveyData{FinalAnswer: model.Yes, AIConfidence: 3, SelfConfidence: 4, UseAI: true}

func TestFullRun(t *testing.T) {
	entries := testEntries()
	h := newHarness(t, entries, testBook(t, entries))

	q, err := h.o.StartSession()
	require.NoError(t, err)

	order := h.o.Order()
	require.Len(t, order, len(entries))
	seen := make(map[int]bool)
	for _, i := range order {
		seen[i] = true
	}
	assert.Len(t, seen, len(entries), "order must be a permutation")

	for n := 1; n <= len(entries); n++ {
		require.NoError(t, h.o.SubmitQuestion(context.Background(), q.Text))
		assert.Equal(t, n, h.o.Shown())
		require.NoError(t, h.o.MarkAnswerDisplayed())
		h.clock.advance(1500 * time.Millisecond)

		next, finished, err := h.o.CompleteTrial(context.Background(), goodSurvey)
		require.NoError(t, err)
		assert.Equal(t, n == len(entries), finished)
		q = next
	}

	assert.True(t, h.o.Finished())
	require.Len(t, h.sender.rows, len(entries))
	for i, s := range h.sender.rows {
		row, ok := s.row.(submit.TrialRow)
		require.True(t, ok)
		assert.Equal(t, model.KindTrial, s.kind)
		assert.Equal(t, "p1", s.pid)
		assert.Equal(t, i+1, row.Ordering)
		assert.Equal(t, entries[order[i]].ID, row.QuestionID)
		assert.Equal(t, "paragraph", row.InterfaceMode)
		assert.InDelta(t, 1.5, row.Time, 1e-9)
	}

	_, err = h.o.StartSession()
	assert.ErrorIs(t, err, ErrAlreadyStarted)
	assert.ErrorIs(t, h.o.SubmitQuestion(context.Background(), entries[0].Text), ErrFinished)
}

func TestSubmitQuestionIdempotent(t *testing.T) {
	entries := testEntries()
	h := newHarness(t, entries, testBook(t, entries))
	q, err := h.o.StartSession()
	require.NoError(t, err)

	require.NoError(t, h.o.SubmitQuestion(context.Background(), q.Text))
	err = h.o.SubmitQuestion(context.Background(), q.Text)
	assert.ErrorIs(t, err, ErrTrialInProgress)
	assert.Equal(t, 1, h.o.Shown())
	assert.Len(t, h.o.Transcript(), 2)

	msgs := h.o.Transcript()
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	assert.NotEqual(t, msgs[0].ID, msgs[1].ID)
}

func TestSubmitQuestionOnlyScheduled(t *testing.T) {
	entries := testEntries()
	h := newHarness(t, entries, testBook(t, entries))
	q, err := h.o.StartSession()
	require.NoError(t, err)

	for _, e := range entries {
		if e.ID == q.ID {
			continue
		}
		err := h.o.SubmitQuestion(context.Background(), e.Text)
		assert.ErrorIs(t, err, ErrNotScheduled, e.ID)
	}
	assert.Zero(t, h.o.Shown())
	assert.False(t, h.o.InProgress())
	assert.Empty(t, h.o.Transcript())

	// Out-of-order attempts between trials never skip or repeat a question.
	shown := make(map[string]int)
	for !h.o.Finished() {
		for _, e := range entries {
			if e.ID != q.ID {
				require.ErrorIs(t, h.o.SubmitQuestion(context.Background(), e.Text), ErrNotScheduled)
			}
		}
		require.NoError(t, h.o.SubmitQuestion(context.Background(), q.Text))
		cur, _, ok := h.o.Current()
		require.True(t, ok)
		shown[cur.ID]++
		q, _, err = h.o.CompleteTrial(context.Background(), goodSurvey)
		require.NoError(t, err)
	}
	for _, e := range entries {
		assert.Equal(t, 1, shown[e.ID], e.ID)
	}
	assert.Equal(t, len(entries), h.o.Shown())
}

func TestSubmitBeforeStart(t *testing.T) {
	entries := testEntries()
	h := newHarness(t, entries, testBook(t, entries))
	assert.ErrorIs(t, h.o.SubmitQuestion(context.Background(), entries[0].Text), ErrNotStarted)
	_, ok := h.o.Pending()
	assert.False(t, ok)
}

func TestLookupFailuresKeepQuestionPending(t *testing.T) {
	entries := testEntries()
	// No payload for any question.
	h := newHarness(t, entries, ResponseBook{})
	q, err := h.o.StartSession()
	require.NoError(t, err)

	err = h.o.SubmitQuestion(context.Background(), "Is water wet?")
	assert.ErrorIs(t, err, ErrUnknownQuestion)

	err = h.o.SubmitQuestion(context.Background(), q.Text)
	assert.ErrorIs(t, err, ErrNoPrecomputedResponse)

	assert.Zero(t, h.o.Shown())
	assert.False(t, h.o.InProgress())
	assert.Empty(t, h.o.Transcript())
	pending, ok := h.o.Pending()
	require.True(t, ok)
	assert.Equal(t, q, pending)
}

func TestRecommendedSearchesStored(t *testing.T) {
	entries := testEntries()
	h := newHarness(t, entries, testBook(t, entries))
	q, err := h.o.StartSession()
	require.NoError(t, err)
	require.NoError(t, h.o.SubmitQuestion(context.Background(), q.Text))

	raw, ok := h.kv[RecommendedSearchesKey]
	require.True(t, ok)
	var got map[string][]string
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	assert.Equal(t, []string{q.ID + " search"}, got["token_level"])
}

func TestCompleteTrialValidation(t *testing.T) {
	entries := testEntries()
	h := newHarness(t, entries, testBook(t, entries))

	_, _, err := h.o.CompleteTrial(context.Background(), goodSurvey)
	assert.ErrorIs(t, err, ErrNoActiveTrial)

	q, err := h.o.StartSession()
	require.NoError(t, err)
	require.NoError(t, h.o.SubmitQuestion(context.Background(), q.Text))

	_, _, err = h.o.CompleteTrial(context.Background(), model.SurveyData{FinalAnswer: model.Yes})
	assert.ErrorIs(t, err, model.ErrValidationIncomplete)
	assert.True(t, h.o.InProgress())
	assert.Empty(t, h.sender.rows)
}

func TestCompleteTrialRowAndReset(t *testing.T) {
	entries := []Entry{
		{ID: "q1", Text: "Did Dupilumab receive FDA approval for Asthma before Chronic Rhinosinusitis?", GroundTruth: model.Yes, AIAnswer: model.No},
		{ID: "q2", Text: "Is there more antihistamine in Benadryl than Rhinocort?", GroundTruth: model.Yes, AIAnswer: model.No},
	}
	h := newHarness(t, entries, testBook(t, entries))
	q, err := h.o.StartSession()
	require.NoError(t, err)
	require.NoError(t, h.o.SubmitQuestion(context.Background(), q.Text))
	require.NoError(t, h.o.RecordSearchClick())
	require.NoError(t, h.o.RecordSearchClick())
	require.NoError(t, h.o.RecordLinkClick())

	// Participant follows the wrong AI answer.
	_, finished, err := h.o.CompleteTrial(context.Background(), model.SurveyData{
		FinalAnswer: model.No, AIConfidence: 5, SelfConfidence: 2, UseLink: true,
	})
	require.NoError(t, err)
	assert.False(t, finished)

	row := h.sender.rows[0].row.(submit.TrialRow)
	assert.Equal(t, "yes", row.GroundTruth)
	assert.Equal(t, "no", row.AIAnswer)
	assert.Equal(t, "no", row.FinalAnswer)
	assert.Equal(t, submit.Flag(false), row.Correct)
	assert.Equal(t, submit.Flag(true), row.Agree)
	assert.Equal(t, submit.Flag(true), row.UseLink)
	assert.Equal(t, 2, row.SearchClick)
	assert.Equal(t, 1, row.LinkClick)
	assert.Equal(t, 5, row.ConfidenceAI)
	assert.Equal(t, 2, row.ConfidenceAnswer)
	assert.Zero(t, row.Time, "answer never marked displayed")

	rec := h.o.Record()
	assert.Empty(t, rec.QuestionID)
	assert.Zero(t, rec.SearchClickCount)
	assert.Equal(t, "p1", rec.ParticipantID)
	assert.Empty(t, h.o.Transcript())
	assert.ErrorIs(t, h.o.RecordLinkClick(), ErrNoActiveTrial)
}

func TestStartSessionEmptyKey(t *testing.T) {
	key, err := NewAnswerKey(nil)
	require.NoError(t, err)
	o := NewOrchestrator(key, model.Participant{ID: "p1"}, Options{})
	_, err = o.StartSession()
	assert.ErrorIs(t, err, ErrNoQuestions)
}

func TestPermutationIsUniformOverSmallSet(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	counts := make(map[[3]int]int)
	for range 6000 {
		p := permutation(3, r.IntN)
		counts[[3]int{p[0], p[1], p[2]}]++
	}
	assert.Len(t, counts, 6)
	for perm, c := range counts {
		assert.InDelta(t, 1000, c, 150, "permutation %v", perm)
	}
}

type countingResponder struct {
	calls int
	err   error
}

func (c *countingResponder) Respond(_ context.Context, e Entry, _ string) (Payload, error) {
	c.calls++
	if c.err != nil {
		return Payload{}, c.err
	}
	return Payload{Answer: "live " + e.ID}, nil
}

func TestLiveFallback(t *testing.T) {
	entries := testEntries()
	book := testBook(t, entries[:1])
	live := &countingResponder{}
	lf := LiveFallback{Frozen: FrozenResponder{Book: book}, Live: live}

	p, err := lf.Respond(context.Background(), entries[0], Normalize(entries[0].Text))
	require.NoError(t, err)
	assert.Equal(t, "no for q1", p.Answer)
	assert.Zero(t, live.calls)

	p, err = lf.Respond(context.Background(), entries[1], Normalize(entries[1].Text))
	require.NoError(t, err)
	assert.Equal(t, "live q5", p.Answer)
	assert.Equal(t, 1, live.calls)

	frozenOnly := LiveFallback{Frozen: FrozenResponder{Book: book}}
	_, err = frozenOnly.Respond(context.Background(), entries[1], Normalize(entries[1].Text))
	assert.ErrorIs(t, err, ErrNoPrecomputedResponse)
}

func TestResponderErrorLeavesTrialIdle(t *testing.T) {
	entries := testEntries()
	key, err := NewAnswerKey(entries)
	require.NoError(t, err)
	live := &countingResponder{err: errors.New("endpoint down")}
	o := NewOrchestrator(key, model.Participant{ID: "p1"}, Options{Responder: live})
	q, err := o.StartSession()
	require.NoError(t, err)

	require.Error(t, o.SubmitQuestion(context.Background(), q.Text))
	assert.False(t, o.InProgress())

	live.err = nil
	require.NoError(t, o.SubmitQuestion(context.Background(), q.Text))
	assert.Equal(t, 2, live.calls)
	assert.Equal(t, 1, o.Shown())
}
