package trial

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/pavelanni/trustgate/internal/model"
)

var (
	// ErrUnknownQuestion means the normalized question text is not in the answer key.
	ErrUnknownQuestion = errors.New("question not recognized")
	// ErrNoPrecomputedResponse means the question is known but has no canned payload.
	ErrNoPrecomputedResponse = errors.New("no precomputed response")
	// ErrKeyCollision means two distinct questions normalize to the same key.
	ErrKeyCollision = errors.New("normalized question collision")
)

var (
	nonWordRegex    = regexp.MustCompile(`[^\w\s]`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// Normalize lowercases and trims text, strips every character that is neither
// a word character nor whitespace, and collapses whitespace runs to one space.
// Unicode spaces such as U+00A0 count as whitespace.
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	s := strings.Map(unicodeSpace, strings.ToLower(text))
	s = strings.TrimSpace(s)
	s = nonWordRegex.ReplaceAllString(s, "")
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// unicodeSpace folds every Unicode space, and the byte order mark, to ' '.
func unicodeSpace(r rune) rune {
	if r != ' ' && (unicode.IsSpace(r) || r == '\ufeff') {
		return ' '
	}
	return r
}

// Uncertainty is the target uncertainty level of the AI answer for a question.
type Uncertainty string

const (
	UncertaintyLow    Uncertainty = "low"
	UncertaintyMedium Uncertainty = "medium"
	UncertaintyHigh   Uncertainty = "high"
)

// ParseUncertainty accepts low, medium or high. An empty string means medium.
func ParseUncertainty(s string) (Uncertainty, bool) {
	switch u := Uncertainty(strings.ToLower(strings.TrimSpace(s))); u {
	case UncertaintyLow, UncertaintyMedium, UncertaintyHigh:
		return u, true
	case "":
		return UncertaintyMedium, true
	}
	return "", false
}

// Question is one entry of the fixed question list.
type Question struct {
	ID   string
	Text string
}

// Entry is the answer-key content for one canonical question.
type Entry struct {
	ID          string
	Text        string
	GroundTruth model.YesNo
	AIAnswer    model.YesNo
	Uncertainty Uncertainty
}

// AnswerKey maps normalized question text to a canonical id, and the id to its entry.
type AnswerKey struct {
	ids       map[string]string
	entries   map[string]Entry
	questions []Question
}

// NewAnswerKey builds the key in the given order. Duplicate ids and
// normalization collisions are rejected.
func NewAnswerKey(entries []Entry) (*AnswerKey, error) {
	k := &AnswerKey{
		ids:     make(map[string]string, len(entries)),
		entries: make(map[string]Entry, len(entries)),
	}
	for _, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("question %q has no id", e.Text)
		}
		if e.GroundTruth != model.Yes && e.GroundTruth != model.No {
			return nil, fmt.Errorf("question %s: ground truth must be yes or no, got %q", e.ID, e.GroundTruth)
		}
		if e.AIAnswer != model.Yes && e.AIAnswer != model.No {
			return nil, fmt.Errorf("question %s: ai answer must be yes or no, got %q", e.ID, e.AIAnswer)
		}
		u, ok := ParseUncertainty(string(e.Uncertainty))
		if !ok {
			return nil, fmt.Errorf("question %s: uncertainty must be low, medium or high, got %q", e.ID, e.Uncertainty)
		}
		e.Uncertainty = u
		if _, dup := k.entries[e.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %s", e.ID)
		}
		norm := Normalize(e.Text)
		if prev, ok := k.ids[norm]; ok {
			return nil, fmt.Errorf("%w: %s and %s both normalize to %q", ErrKeyCollision, prev, e.ID, norm)
		}
		k.ids[norm] = e.ID
		k.entries[e.ID] = e
		k.questions = append(k.questions, Question{ID: e.ID, Text: e.Text})
	}
	return k, nil
}

// Lookup normalizes text and returns its entry together with the normalized key.
func (k *AnswerKey) Lookup(text string) (Entry, string, error) {
	norm := Normalize(text)
	id, ok := k.ids[norm]
	if !ok {
		return Entry{}, norm, fmt.Errorf("%w: %q", ErrUnknownQuestion, text)
	}
	return k.entries[id], norm, nil
}

// Questions returns the question list in load order.
func (k *AnswerKey) Questions() []Question {
	out := make([]Question, len(k.questions))
	copy(out, k.questions)
	return out
}

// Len is the number of questions in the key.
func (k *AnswerKey) Len() int {
	return len(k.questions)
}

// Source is a reference attached to a precomputed answer.
type Source struct {
	Title string `json:"title" yaml:"title"`
	URL   string `json:"url" yaml:"url"`
}

// Payload is the structured AI response shown for a trial.
type Payload struct {
	Answer              string              `json:"answer" yaml:"answer"`
	UncertaintyScore    int                 `json:"uncertainty_score,omitempty" yaml:"uncertainty_score"`
	Sources             []Source            `json:"sources,omitempty" yaml:"sources"`
	RecommendedSearches map[string][]string `json:"recommended_searches,omitempty" yaml:"recommended_searches"`
}

// ResponseBook holds precomputed payloads keyed by normalized question text.
type ResponseBook map[string]Payload

// NewResponseBook normalizes the question text of every payload. Two texts
// that normalize to the same key are rejected.
func NewResponseBook(byText map[string]Payload) (ResponseBook, error) {
	book := make(ResponseBook, len(byText))
	origin := make(map[string]string, len(byText))
	for text, p := range byText {
		norm := Normalize(text)
		if prev, ok := origin[norm]; ok {
			return nil, fmt.Errorf("%w: %q and %q", ErrKeyCollision, prev, text)
		}
		origin[norm] = text
		book[norm] = p
	}
	return book, nil
}
