package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	tests := []struct {
		id   string
		want string
	}{
		{"AppTitle", "AI Answer Study"},
		{"ScreeningRetry", "Some answer/s were incorrect. Please review and try once more."},
		{"ComprehensionRetry", "That's incorrect. Please try again."},
		{"NoPrecomputedResponse", "The AI answer for this question is unavailable. Please retry."},
	}
	for _, tt := range tests {
		if got := T(ctx, tt.id); got != tt.want {
			t.Errorf("T(%s) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestInitRejectsBadTag(t *testing.T) {
	if err := Init("not a tag!"); err == nil {
		t.Error("Init() expected error for malformed language tag")
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "TrialsRemaining", 1); got != "1 question remaining." {
		t.Errorf("Tp(TrialsRemaining, 1) = %q", got)
	}
	if got := Tp(ctx, "TrialsRemaining", 5); got != "5 questions remaining." {
		t.Errorf("Tp(TrialsRemaining, 5) = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "QuestionProgress", map[string]any{"Number": 3, "Total": 8})
	if got != "Question 3 of 8" {
		t.Errorf("Td(QuestionProgress) = %q, want 'Question 3 of 8'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestMiddleware(t *testing.T) {
	initLang(t, "en")

	var got string
	h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "Continue")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got != "Continue" {
		t.Errorf("T(Continue) via middleware = %q", got)
	}
}

func TestMiddlewareNegotiation(t *testing.T) {
	initLang(t, "en")
	h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(T(r.Context(), "Continue")))
	}))

	tests := []struct {
		name   string
		target string
		accept string
	}{
		{"no preference", "/", ""},
		{"unsupported header", "/", "fr-CA, fr;q=0.9"},
		{"supported header", "/", "de, en-GB;q=0.5"},
		{"query parameter", "/?lang=en-US", "de"},
		{"malformed header", "/", ";;;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if got := rec.Body.String(); got != "Continue" {
				t.Errorf("body = %q, want English text", got)
			}
		})
	}
}

func TestTranslateWithoutLocalizer(t *testing.T) {
	initLang(t, "en")
	if got := T(context.Background(), "AppTitle"); got != "AI Answer Study" {
		t.Errorf("T(AppTitle) = %q", got)
	}
}
