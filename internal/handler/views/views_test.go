package views

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/a-h/templ"

	"github.com/pavelanni/trustgate/internal/i18n"
	"github.com/pavelanni/trustgate/internal/intake"
	"github.com/pavelanni/trustgate/internal/model"
	"github.com/pavelanni/trustgate/internal/trial"
)

func TestMain(m *testing.M) {
	if err := i18n.Init("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func render(t *testing.T, ctx context.Context, c templ.Component) string {
	t.Helper()
	var sb strings.Builder
	if err := c.Render(ctx, &sb); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return sb.String()
}

func testCtx() context.Context {
	ctx := model.ContextWithCSRFToken(context.Background(), "tok-123")
	return model.ContextWithBasePath(ctx, "/s")
}

func TestLayoutWrapsChildren(t *testing.T) {
	child := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "<p>child</p>")
		return err
	})
	got := render(t, templ.WithChildren(testCtx(), child), Layout("Title <x>"))
	for _, want := range []string{"<p>child</p>", "Title &lt;x&gt;", "X-CSRF-Token", `hx-boost="true"`} {
		if !strings.Contains(got, want) {
			t.Errorf("layout missing %q", want)
		}
	}
}

func TestTrialPage(t *testing.T) {
	v := TrialView{
		Mode:     model.ModeToken,
		Number:   2,
		Total:    8,
		Question: "Is <b>this</b> safe?",
		Payload: trial.Payload{
			Answer:           "No & never.",
			UncertaintyScore: 82,
			Sources:          []trial.Source{{Title: "FDA", URL: "https://fda.test/a"}},
			RecommendedSearches: map[string][]string{
				"token_level":     {"drug interactions"},
				"paragraph_level": {"not shown"},
			},
		},
		InProgress: true,
	}
	got := render(t, testCtx(), TrialPage(v))

	for _, want := range []string{
		"Is &lt;b&gt;this&lt;/b&gt; safe?",
		"No &amp; never.",
		`data-score="82"`,
		`data-displayed="/s/trial/events/displayed"`,
		`data-event="/s/trial/events/link"`,
		"q=drug+interactions",
		`action="/s/trial/survey"`,
		`value="tok-123"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("trial page missing %q", want)
		}
	}
	if strings.Contains(got, "not shown") {
		t.Error("trial page shows searches for another mode")
	}
	if strings.Contains(got, "<b>this</b>") {
		t.Error("question text not escaped")
	}
}

func TestTrialPageBaselineHidesUncertainty(t *testing.T) {
	v := TrialView{Mode: model.ModeBaseline, Number: 1, Total: 8, Question: "Q?", InProgress: true,
		Payload: trial.Payload{Answer: "Yes.", UncertaintyScore: 40}}
	got := render(t, testCtx(), TrialPage(v))
	if strings.Contains(got, "data-score") {
		t.Error("baseline mode shows the uncertainty score")
	}
}

func TestTrialPagePendingShowsRetry(t *testing.T) {
	v := TrialView{Mode: model.ModeBaseline, Number: 3, Total: 8, Question: "Q?", Notice: "NoPrecomputedResponse"}
	got := render(t, testCtx(), TrialPage(v))
	if !strings.Contains(got, `action="/s/trial/retry"`) {
		t.Error("pending question has no retry form")
	}
	if strings.Contains(got, "final_answer") {
		t.Error("pending question shows the survey")
	}
	if !strings.Contains(got, `role="alert"`) {
		t.Error("notice not rendered")
	}
}

func TestSearchLevel(t *testing.T) {
	tests := []struct {
		mode model.Mode
		want string
	}{
		{model.ModeBaseline, "paragraph_level"},
		{model.ModeParagraph, "paragraph_level"},
		{model.ModeToken, "token_level"},
		{model.ModeRelation, "relation_level"},
	}
	for _, tt := range tests {
		if got := searchLevel(tt.mode); got != tt.want {
			t.Errorf("searchLevel(%s) = %q, want %q", tt.mode, got, tt.want)
		}
	}
}

func TestIntakePageSteps(t *testing.T) {
	variant := intake.VariantFor(model.ModeRelation)
	for _, step := range []intake.Step{
		intake.StepScreening,
		intake.StepDemographics1,
		intake.StepAttention1,
		intake.StepDemographics2,
		intake.StepAttention2,
		intake.StepTutorial,
		intake.StepComprehension,
	} {
		t.Run(string(step), func(t *testing.T) {
			got := render(t, testCtx(), IntakePage(IntakeView{Step: step, Variant: variant}))
			if !strings.Contains(got, `action="/s/intake/`+string(step)+`"`) {
				t.Errorf("form does not post to its step")
			}
		})
	}
}

func TestIntakePageKeepsAnswers(t *testing.T) {
	q := intake.ScreeningQuestions[0]
	got := render(t, testCtx(), IntakePage(IntakeView{
		Step:      intake.StepScreening,
		Screening: map[string]int{q.ID: 2},
		Notice:    intake.NoticeScreeningRetry,
	}))
	if !strings.Contains(got, `name="`+q.ID+`" value="2" checked`) {
		t.Error("previous screening answer not preselected")
	}
	if !strings.Contains(got, `role="alert"`) {
		t.Error("retry notice not rendered")
	}
}

func TestPostStudyPage(t *testing.T) {
	got := render(t, testCtx(), PostStudyPage(model.PostStudyResponses{TrustBelief: 4, InterfaceExperience: "a<b"}, "PostStudyIncomplete"))
	for _, want := range []string{`name="trust_belief" value="4" checked`, "a&lt;b", `action="/s/post"`} {
		if !strings.Contains(got, want) {
			t.Errorf("post-study page missing %q", want)
		}
	}
}

func TestMessagePage(t *testing.T) {
	got := render(t, testCtx(), MessagePage("FinishedTitle", "", "https://exit.test/done?cc=1&x=2"))
	if !strings.Contains(got, `href="https://exit.test/done?cc=1&amp;x=2"`) {
		t.Errorf("link not escaped: %s", got)
	}
}
