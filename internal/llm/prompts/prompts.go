package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/trustgate/internal/trial"
)

//go:embed templates/*.txt
var Templates embed.FS

var questionTagRegex = regexp.MustCompile(`(?i)</?\s*question\b[^>]*>`)

const maxQuestionRunes = 1000

var levels = []trial.Uncertainty{trial.UncertaintyLow, trial.UncertaintyMedium, trial.UncertaintyHigh}

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[trial.Uncertainty]*template.Template
)

// Data holds template data for a response prompt.
type Data struct {
	QuestionText string
	Stance       string
	StanceTitle  string
}

// Load parses one template per uncertainty level from fsys.
// It uses sync.Once so templates are loaded only once.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		templates = make(map[trial.Uncertainty]*template.Template)
		for _, level := range levels {
			name := "templates/respond_" + string(level) + ".txt"
			content, err := fs.ReadFile(fsys, name)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", name, err)
				return
			}
			tmpl, err := template.New(string(level)).Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", name, err)
				return
			}
			templates[level] = tmpl
		}
	})
	return loadErr
}

// Build renders the prompt asking for a payload that argues e's AI answer at
// e's uncertainty level.
func Build(e trial.Entry) (string, error) {
	if templates == nil {
		return "", errors.New("templates not initialized: call Load first")
	}
	level := e.Uncertainty
	if level == "" {
		level = trial.UncertaintyMedium
	}
	tmpl, ok := templates[level]
	if !ok {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("invalid uncertainty level: " + string(level))
	}

	stance := string(e.AIAnswer)
	data := Data{
		QuestionText: sanitizeQuestion(e.Text),
		Stance:       stance,
		StanceTitle:  strings.ToUpper(stance[:min(1, len(stance))]) + stance[min(1, len(stance)):],
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ScoreRange returns the inclusive uncertainty score band for a level.
func ScoreRange(level trial.Uncertainty) (lo, hi int) {
	switch level {
	case trial.UncertaintyLow:
		return 0, 25
	case trial.UncertaintyHigh:
		return 75, 100
	default:
		return 25, 75
	}
}

func sanitizeQuestion(q string) string {
	q = questionTagRegex.ReplaceAllString(q, "")
	q = strings.TrimSpace(q)
	if utf8.RuneCountInString(q) > maxQuestionRunes {
		q = string([]rune(q)[:maxQuestionRunes])
	}
	return q
}
