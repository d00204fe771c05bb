package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pavelanni/trustgate/internal/model"
	"github.com/pavelanni/trustgate/internal/trial"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		level     trial.Uncertainty
		wantScore int
		wantErr   bool
	}{
		{"in range", `{"answer":"No.","uncertainty_score":50}`, trial.UncertaintyMedium, 50, false},
		{"clamped up", `{"answer":"No.","uncertainty_score":10}`, trial.UncertaintyHigh, 75, false},
		{"clamped down", `{"answer":"Yes.","uncertainty_score":90}`, trial.UncertaintyLow, 25, false},
		{"missing answer", `{"uncertainty_score":50}`, trial.UncertaintyMedium, 0, true},
		{"not json", `Yes, definitely.`, trial.UncertaintyMedium, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := parsePayload(tt.raw, tt.level)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parsePayload() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && p.UncertaintyScore != tt.wantScore {
				t.Errorf("UncertaintyScore = %d, want %d", p.UncertaintyScore, tt.wantScore)
			}
		})
	}
}

func TestRespond(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model

		content := `{"answer":"No. Fever is not typical.","uncertainty_score":80,` +
			`"recommended_searches":{"token_level":["tinea cruris fever"]}}`
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	defer srv.Close()

	c, err := New(srv.URL+"/v1", "test-key", "test-model")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	e := trial.Entry{ID: "q7", Text: "Is fever a common symptom of Jock Itch?", AIAnswer: model.No, Uncertainty: trial.UncertaintyHigh}
	p, err := c.Respond(context.Background(), e, "is fever a common symptom of jock itch")
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if gotModel != "test-model" {
		t.Errorf("model = %q, want test-model", gotModel)
	}
	if !strings.HasPrefix(p.Answer, "No.") {
		t.Errorf("Answer = %q", p.Answer)
	}
	if p.UncertaintyScore != 80 {
		t.Errorf("UncertaintyScore = %d, want 80", p.UncertaintyScore)
	}
	if got := p.RecommendedSearches["token_level"]; len(got) != 1 {
		t.Errorf("RecommendedSearches = %v", p.RecommendedSearches)
	}
}

func TestRespondAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New(srv.URL+"/v1", "k", "m")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := c.Respond(context.Background(), trial.Entry{Text: "q", AIAnswer: model.Yes}, "q"); err == nil {
		t.Fatal("Respond() expected error")
	}
}
