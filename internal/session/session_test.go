package session

import (
	"context"
	"errors"
	"testing"

	"formloom/internal/form"
	"formloom/internal/inspect"
	"formloom/internal/parser"
	"formloom/internal/patch"
)

const sessionDoc = `::group{#intake label="Intake" order=1}

::field{#name kind=text required role=user order=1}
Who is this for?

::field{#notes kind=text required role=agent order=2 depends-on=name}
Summarize the request.
`

func parseSessionDoc(t *testing.T, text string) *form.Document {
	t.Helper()
	doc, err := parser.Parse([]byte(text))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestRunCompletesWithTwoActors(t *testing.T) {
	doc := parseSessionDoc(t, sessionDoc)
	runner := &Runner{
		Roster: Roster{
			form.RoleUser: &ScriptedAgent{Batches: [][]patch.Patch{
				{patch.SetValue("name", form.Text("ada"))},
			}},
			form.RoleAgent: &ScriptedAgent{Batches: [][]patch.Patch{
				{patch.SetValue("notes", form.Text("wants a form"))},
			}},
		},
		Limits: form.Limits{MaxTurns: 10},
	}

	final, tr, err := runner.Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if tr.Stopped != StopComplete || tr.Final != inspect.FormComplete {
		t.Fatalf("stopped=%s final=%s, want complete", tr.Stopped, tr.Final)
	}
	if len(tr.Turns) != 2 {
		t.Fatalf("len(turns) = %d, want 2", len(tr.Turns))
	}
	// The agent field depends on the user field, so the user must act first.
	if tr.Turns[0].Role != form.RoleUser || tr.Turns[1].Role != form.RoleAgent {
		t.Fatalf("turn roles = %s, %s", tr.Turns[0].Role, tr.Turns[1].Role)
	}
	if final.Response("notes").State != form.StateAnswered {
		t.Fatalf("notes not answered in final document")
	}
	// The input document is untouched.
	if doc.Response("name").State != form.StateUnanswered {
		t.Fatalf("input document was mutated")
	}
}

func TestRunStallsWhenNobodyProposes(t *testing.T) {
	doc := parseSessionDoc(t, sessionDoc)
	runner := &Runner{
		Roster: Roster{
			form.RoleUser:  &ScriptedAgent{},
			form.RoleAgent: &ScriptedAgent{},
		},
		Limits: form.Limits{MaxTurns: 10},
	}
	_, tr, err := runner.Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if tr.Stopped != StopStalled {
		t.Fatalf("stopped = %s, want %s", tr.Stopped, StopStalled)
	}
	if tr.Final != inspect.FormEmpty {
		t.Fatalf("final = %s, want %s", tr.Final, inspect.FormEmpty)
	}
}

func TestRunHonorsTurnLimit(t *testing.T) {
	doc := parseSessionDoc(t, sessionDoc)
	runner := &Runner{
		Roster: Roster{
			form.RoleUser: &ScriptedAgent{Batches: [][]patch.Patch{
				{patch.SetValue("name", form.Text("ada"))},
			}},
			form.RoleAgent: &ScriptedAgent{Batches: [][]patch.Patch{
				{patch.SetValue("notes", form.Text("pending"))},
			}},
		},
		Limits: form.Limits{MaxTurns: 1},
	}
	_, tr, err := runner.Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if tr.Stopped != StopTurnLimit {
		t.Fatalf("stopped = %s, want %s", tr.Stopped, StopTurnLimit)
	}
	if len(tr.Turns) != 1 {
		t.Fatalf("len(turns) = %d, want 1", len(tr.Turns))
	}
}

func TestRunSurfacesAgentErrors(t *testing.T) {
	doc := parseSessionDoc(t, sessionDoc)
	boom := errors.New("boom")
	runner := &Runner{
		Roster: Roster{
			form.RoleUser: AgentFunc(func(ctx context.Context, doc *form.Document, issues []inspect.Issue) ([]patch.Patch, error) {
				return nil, boom
			}),
			form.RoleAgent: &ScriptedAgent{},
		},
	}
	_, tr, err := runner.Run(context.Background(), doc)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
	if tr.Stopped != StopAgentError {
		t.Fatalf("stopped = %s, want %s", tr.Stopped, StopAgentError)
	}
}

func TestRunCapsPatchesPerTurn(t *testing.T) {
	text := `::group{#g order=1}

::field{#a kind=text role=user order=1}
::field{#b kind=text role=user order=1}
::field{#c kind=text role=user order=1}
`
	doc := parseSessionDoc(t, text)
	runner := &Runner{
		Roster: Roster{
			form.RoleUser: &ScriptedAgent{Batches: [][]patch.Patch{{
				patch.SetValue("a", form.Text("1")),
				patch.SetValue("b", form.Text("2")),
				patch.SetValue("c", form.Text("3")),
			}}},
		},
		Limits: form.Limits{MaxTurns: 5, MaxPatchesPerTurn: 2},
	}
	final, tr, err := runner.Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(tr.Turns) == 0 {
		t.Fatalf("optional-only work must still be driven, got stop %s with no turns", tr.Stopped)
	}
	if tr.Turns[0].Proposed != 2 {
		t.Fatalf("first turn applied %d patches, want 2", tr.Turns[0].Proposed)
	}
	if final.Response("c").State != form.StateUnanswered {
		t.Fatalf("third patch should have been dropped by the cap")
	}
}

func TestRunFillsOptionalOnlyForm(t *testing.T) {
	text := `::group{#g order=1}

::field{#nickname kind=text role=user order=1}
::field{#motto kind=text role=user order=1}
`
	doc := parseSessionDoc(t, text)
	runner := &Runner{
		Roster: Roster{
			form.RoleUser: &ScriptedAgent{Batches: [][]patch.Patch{{
				patch.SetValue("nickname", form.Text("ada")),
				patch.SetValue("motto", form.Text("first!")),
			}}},
		},
		Limits: form.Limits{MaxTurns: 5},
	}
	final, tr, err := runner.Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(tr.Turns) != 1 {
		t.Fatalf("len(turns) = %d, want 1", len(tr.Turns))
	}
	if tr.Stopped != StopComplete {
		t.Fatalf("stopped = %s, want %s", tr.Stopped, StopComplete)
	}
	if final.Response("motto").State != form.StateAnswered {
		t.Fatalf("optional field left unanswered")
	}
}

func TestRunOnCompleteDocumentTakesNoTurns(t *testing.T) {
	doc := parseSessionDoc(t, sessionDoc)
	res := patch.Apply(doc, []patch.Patch{
		patch.SetValue("name", form.Text("ada")),
		patch.SetValue("notes", form.Text("done")),
	})
	if res.Status != patch.StatusApplied {
		t.Fatalf("setup apply: %s %v", res.Status, res.Problems)
	}
	runner := &Runner{Roster: Roster{form.RoleUser: &ScriptedAgent{}}}
	_, tr, err := runner.Run(context.Background(), res.Document)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if tr.Stopped != StopComplete || len(tr.Turns) != 0 {
		t.Fatalf("stopped=%s turns=%d, want immediate complete", tr.Stopped, len(tr.Turns))
	}
}

func TestRunRejectsEmptyRoster(t *testing.T) {
	doc := parseSessionDoc(t, sessionDoc)
	runner := &Runner{}
	if _, _, err := runner.Run(context.Background(), doc); !errors.Is(err, ErrNoActors) {
		t.Fatalf("err = %v, want ErrNoActors", err)
	}
}

func TestRejectedBatchCountsAsStall(t *testing.T) {
	doc := parseSessionDoc(t, sessionDoc)
	runner := &Runner{
		Roster: Roster{
			form.RoleUser: AgentFunc(func(ctx context.Context, doc *form.Document, issues []inspect.Issue) ([]patch.Patch, error) {
				return []patch.Patch{patch.SetValue("no-such-field", form.Text("x"))}, nil
			}),
		},
		Limits: form.Limits{MaxTurns: 10},
	}
	final, tr, err := runner.Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if tr.Stopped != StopStalled {
		t.Fatalf("stopped = %s, want %s", tr.Stopped, StopStalled)
	}
	if len(tr.Turns) != 1 || tr.Turns[0].Status != patch.StatusRejected {
		t.Fatalf("expected one rejected turn, got %+v", tr.Turns)
	}
	if final.Response("name").State != form.StateUnanswered {
		t.Fatalf("rejected batch must not mutate the document")
	}
}
