package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"formloom/internal/form"
	"formloom/internal/inspect"
	"formloom/internal/logbook"
	"formloom/internal/parser"
	"formloom/internal/patch"
)

const fillDoc = `::group{#intake label="Intake" order=1}

::field{#name kind=text required role=user order=1}
Who is this for?

::field{#channel kind=single-choice required role=user order=2}
::option{#stable label="Stable"}
::option{#beta label="Beta"}

::field{#review kind=text required role=agent order=3}
`

func newTestApp(t *testing.T, role form.Role) *App {
	t.Helper()
	doc, err := parser.Parse([]byte(fillDoc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	lb, err := logbook.ForSession(t.TempDir(), "fill-test")
	if err != nil {
		t.Fatalf("logbook: %v", err)
	}
	return NewApp(doc, role, lb)
}

func typeAndEnter(t *testing.T, app *App, text string) *App {
	t.Helper()
	app.input.SetValue(text)
	model, _ := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	next, ok := model.(*App)
	if !ok {
		t.Fatalf("unexpected model %T", model)
	}
	return next
}

func TestFillWalksOnlyOwnReadyIssues(t *testing.T) {
	app := newTestApp(t, form.RoleUser)
	if len(app.issues) != 2 {
		t.Fatalf("expected 2 ready issues for user, got %d", len(app.issues))
	}
	for _, issue := range app.issues {
		if issue.Ref == "review" {
			t.Fatalf("agent field offered to user")
		}
	}
}

func TestFillAppliesAnswerAndAdvances(t *testing.T) {
	app := newTestApp(t, form.RoleUser)
	app = typeAndEnter(t, app, "ada")
	if app.Document().Response("name").State != form.StateAnswered {
		t.Fatalf("name not answered after submit")
	}
	if len(app.issues) != 1 || app.issues[0].Ref != "channel" {
		t.Fatalf("expected channel to be next, got %+v", app.issues)
	}
	if app.input.Value() != "" {
		t.Fatalf("input should reset after submit")
	}
}

func TestFillRejectsBadOptionAndKeepsIssue(t *testing.T) {
	app := newTestApp(t, form.RoleUser)
	app = typeAndEnter(t, app, "ada")
	app = typeAndEnter(t, app, "nightly")
	if app.errMsg == "" {
		t.Fatalf("expected an error message for an unknown option")
	}
	if app.Document().Response("channel").State != form.StateUnanswered {
		t.Fatalf("rejected patch must not change the response")
	}
	app = typeAndEnter(t, app, "beta")
	if got := app.Document().Response("channel").Value; got != form.SingleChoice("beta") {
		t.Fatalf("channel = %v, want beta", got)
	}
}

func TestFillSkipNeedsReason(t *testing.T) {
	app := newTestApp(t, form.RoleUser)
	model, _ := app.Update(tea.KeyMsg{Type: tea.KeyCtrlK})
	app = model.(*App)
	app = typeAndEnter(t, app, "")
	if app.errMsg == "" {
		t.Fatalf("expected an error for a reasonless skip")
	}
	app = typeAndEnter(t, app, "asking later")
	resp := app.Document().Response("name")
	if resp.State != form.StateSkipped || resp.Reason != "asking later" {
		t.Fatalf("skip not recorded: %+v", resp)
	}
}

func TestFillQuitsWhenRoleIsDone(t *testing.T) {
	app := newTestApp(t, form.RoleUser)
	app = typeAndEnter(t, app, "ada")
	app.input.SetValue("stable")
	model, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	app = model.(*App)
	if !app.Done() {
		t.Fatalf("expected no ready user issues left")
	}
	if cmd == nil {
		t.Fatalf("expected quit command once the role is done")
	}
	// The other role still has work, so the form is not complete.
	rep := inspect.Inspect(app.Document(), inspect.Options{})
	if rep.State != inspect.FormIncomplete {
		t.Fatalf("form state = %s, want incomplete", rep.State)
	}
}

func TestFillViewShowsPromptAndOptions(t *testing.T) {
	app := newTestApp(t, form.RoleUser)
	app = typeAndEnter(t, app, "ada")
	view := app.View()
	for _, want := range []string{"channel", "stable", "Beta"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestFillPartialAnswerIsRecorded(t *testing.T) {
	doc, err := parser.Parse([]byte(`::group{#g order=1}

::field{#crew kind=table required role=user order=1 min-rows=2}
::column{#who kind=text required}
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	lb, err := logbook.ForSession(t.TempDir(), "partial")
	if err != nil {
		t.Fatalf("logbook: %v", err)
	}
	app := NewApp(doc, form.RoleUser, lb)
	app = typeAndEnter(t, app, `[{"who": "ada"}]`)
	resp := app.Document().Response("crew")
	if resp.State != form.StateAnswered {
		t.Fatalf("partial answer should still be recorded, got %+v", resp)
	}
	if !strings.Contains(app.statusMsg, "problems") {
		t.Fatalf("status should mention remaining problems, got %q", app.statusMsg)
	}
	if app.Done() {
		t.Fatalf("field with problems must stay on the issue list")
	}
}

func TestFillDocumentIsIndependentOfInput(t *testing.T) {
	doc, err := parser.Parse([]byte(fillDoc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	lb, err := logbook.ForSession(t.TempDir(), "clone")
	if err != nil {
		t.Fatalf("logbook: %v", err)
	}
	app := NewApp(doc, form.RoleUser, lb)
	typeAndEnter(t, app, "ada")
	if doc.Response("name").State != form.StateUnanswered {
		t.Fatalf("input document was mutated by the app")
	}
	res := patch.Apply(doc, []patch.Patch{patch.SetValue("name", form.Text("other"))})
	if res.Status != patch.StatusApplied {
		t.Fatalf("original document should still be patchable: %s", res.Status)
	}
}
