// Package content loads the study's question list, answer key and frozen
// AI responses from YAML.
package content

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pavelanni/trustgate/internal/model"
	"github.com/pavelanni/trustgate/internal/trial"
)

//go:embed study.yaml
var defaultStudy []byte

// QuestionDef is one question as written in the content file.
type QuestionDef struct {
	ID          string            `yaml:"id"`
	Text        string            `yaml:"text"`
	GroundTruth string            `yaml:"ground_truth"`
	AIAnswer    string            `yaml:"ai_answer"`
	Uncertainty trial.Uncertainty `yaml:"uncertainty"`
}

// ResponseDef is one frozen response as written in the content file.
type ResponseDef struct {
	Question      string `yaml:"question"`
	trial.Payload `yaml:",inline"`
}

// File is the top-level structure of a content file.
type File struct {
	Questions []QuestionDef `yaml:"questions"`
	Responses []ResponseDef `yaml:"responses"`
}

// Study is the loaded, validated content.
type Study struct {
	Key  *trial.AnswerKey
	Book trial.ResponseBook
}

// Default returns the embedded study content.
func Default() (*Study, error) {
	return Parse(defaultStudy)
}

// Load reads a content file from path. An empty path loads the embedded default.
func Load(path string) (*Study, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates content YAML.
func Parse(data []byte) (*Study, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal content YAML: %w", err)
	}

	entries := make([]trial.Entry, 0, len(f.Questions))
	for _, q := range f.Questions {
		gt, ok := model.ParseYesNo(q.GroundTruth)
		if !ok {
			return nil, fmt.Errorf("question %s: invalid ground_truth %q", q.ID, q.GroundTruth)
		}
		ai, ok := model.ParseYesNo(q.AIAnswer)
		if !ok {
			return nil, fmt.Errorf("question %s: invalid ai_answer %q", q.ID, q.AIAnswer)
		}
		level, ok := trial.ParseUncertainty(string(q.Uncertainty))
		if !ok {
			return nil, fmt.Errorf("question %s: invalid uncertainty %q", q.ID, q.Uncertainty)
		}
		entries = append(entries, trial.Entry{
			ID:          q.ID,
			Text:        q.Text,
			GroundTruth: gt,
			AIAnswer:    ai,
			Uncertainty: level,
		})
	}
	key, err := trial.NewAnswerKey(entries)
	if err != nil {
		return nil, fmt.Errorf("build answer key: %w", err)
	}

	byText := make(map[string]trial.Payload, len(f.Responses))
	for _, r := range f.Responses {
		if _, dup := byText[r.Question]; dup {
			return nil, fmt.Errorf("duplicate response for %q", r.Question)
		}
		byText[r.Question] = r.Payload
	}
	book, err := trial.NewResponseBook(byText)
	if err != nil {
		return nil, fmt.Errorf("build response book: %w", err)
	}

	return &Study{Key: key, Book: book}, nil
}
