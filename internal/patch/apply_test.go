package patch

import (
	"reflect"
	"strings"
	"testing"

	"formloom/internal/form"
	"formloom/internal/inspect"
	"formloom/internal/parser"
)

func mustParse(t *testing.T, text string) *form.Document {
	t.Helper()
	doc, err := parser.Parse([]byte(text))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

const choiceDoc = `::group{#g}
::field{#color kind=single-choice required role=user}
::option{#a}
::option{#b}
`

func TestRejectInvalidOptionThenApply(t *testing.T) {
	doc := mustParse(t, choiceDoc)
	res := Apply(doc, []Patch{SetValue("color", form.SingleChoice("c"))})
	if res.Status != StatusRejected {
		t.Fatalf("expected rejected, got %s", res.Status)
	}
	if len(res.Problems) != 1 || !strings.Contains(res.Problems[0].Message, `"c"`) {
		t.Fatalf("expected a problem naming the invalid option, got %+v", res.Problems)
	}
	if res.Document.Response("color").State != form.StateUnanswered {
		t.Fatalf("rejected batch mutated the document")
	}
	res = Apply(doc, []Patch{SetValue("color", form.SingleChoice("a"))})
	if res.Status != StatusApplied {
		t.Fatalf("expected applied, got %s (%+v)", res.Status, res.Problems)
	}
	if res.Report.State != inspect.FormComplete || len(res.Report.Issues) != 0 {
		t.Fatalf("expected complete form with no issues, got %s %+v", res.Report.State, res.Report.Issues)
	}
}

func TestBatchIsAtomic(t *testing.T) {
	doc := mustParse(t, `::group{#g}
::field{#name kind=text required}
::field{#count kind=number}
`)
	before := doc.Clone()
	res := Apply(doc, []Patch{
		SetValue("name", form.Text("fine")),
		SetValue("count", form.Text("wrong kind")),
		{FieldID: "ghost", Op: OpSkip},
	})
	if res.Status != StatusRejected {
		t.Fatalf("expected rejected, got %s", res.Status)
	}
	// Every structural problem is reported, not just the first.
	if len(res.Problems) != 2 {
		t.Fatalf("expected 2 problems, got %+v", res.Problems)
	}
	if !reflect.DeepEqual(doc.Responses, before.Responses) {
		t.Fatalf("rejected batch leaked a partial mutation")
	}
	if res.Document != doc {
		t.Fatalf("rejected batch should return the input document")
	}
}

func TestInputDocumentIsNeverMutated(t *testing.T) {
	doc := mustParse(t, choiceDoc)
	res := Apply(doc, []Patch{SetValue("color", form.SingleChoice("b"))})
	if res.Status != StatusApplied {
		t.Fatalf("expected applied, got %s", res.Status)
	}
	if doc.Response("color").State != form.StateUnanswered {
		t.Fatalf("input document was mutated in place")
	}
	if res.Document.Response("color").Value.(form.SingleChoice) != "b" {
		t.Fatalf("new document is missing the patched value")
	}
}

func TestLastPatchForFieldWins(t *testing.T) {
	doc := mustParse(t, choiceDoc)
	res := Apply(doc, []Patch{
		SetValue("color", form.SingleChoice("a")),
		Skip("color", "changed my mind"),
	})
	if res.Status != StatusApplied {
		t.Fatalf("expected applied, got %s", res.Status)
	}
	got := res.Document.Response("color")
	if got.State != form.StateSkipped || got.Reason != "changed my mind" {
		t.Fatalf("expected skip to win, got %+v", got)
	}
}

func TestSemanticallyInvalidValueIsPartial(t *testing.T) {
	doc := mustParse(t, `::group{#g}
::field{#deps kind=table required}
::column{#name kind=text required}
::column{#version kind=text}
`)
	// Well-typed row, but the required name column is missing.
	res := Apply(doc, []Patch{SetValue("deps", form.Table{{"version": form.Text("1.0")}})})
	if res.Status != StatusPartial {
		t.Fatalf("expected partial, got %s (%+v)", res.Status, res.Problems)
	}
	if res.Document.Response("deps").State != form.StateAnswered {
		t.Fatalf("partial batch should keep the mutation")
	}
	if res.Report.State != inspect.FormInvalid || len(res.Report.Issues) == 0 {
		t.Fatalf("expected remaining issues, got %s %+v", res.Report.State, res.Report.Issues)
	}
}

func TestUnknownFieldGetsSuggestion(t *testing.T) {
	doc := mustParse(t, choiceDoc)
	res := Apply(doc, []Patch{Skip("colour", "")})
	if res.Status != StatusRejected {
		t.Fatalf("expected rejected, got %s", res.Status)
	}
	if !strings.Contains(res.Problems[0].Message, "did you mean color") {
		t.Fatalf("expected a suggestion, got %q", res.Problems[0].Message)
	}
}

func TestUnskipByAnswering(t *testing.T) {
	doc := mustParse(t, choiceDoc)
	res := Apply(doc, []Patch{Skip("color", "later")})
	if res.Status != StatusApplied {
		t.Fatalf("skip: %s", res.Status)
	}
	res = Apply(res.Document, []Patch{SetValue("color", form.SingleChoice("a"))})
	if res.Status != StatusApplied {
		t.Fatalf("answer after skip: %s", res.Status)
	}
	if res.Document.Response("color").State != form.StateAnswered {
		t.Fatalf("expected answered, got %+v", res.Document.Response("color"))
	}
}

func TestDecodeBatch(t *testing.T) {
	if _, err := DecodeBatch([]byte(`{"fieldId":"x"}`)); err == nil {
		t.Fatalf("expected non-array batch to be rejected")
	}
	if _, err := DecodeBatch([]byte(`[{"operation":"skip"}]`)); err == nil {
		t.Fatalf("expected missing fieldId to be rejected")
	}
	patches, err := DecodeBatch([]byte(`[
		{"fieldId":"color","operation":"set-value","value":"a"},
		{"fieldId":"color","operation":"skip","reason":"n/a"}
	]`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(patches) != 2 || patches[0].Literal != `"a"` || patches[1].Reason != "n/a" {
		t.Fatalf("unexpected batch: %+v", patches)
	}
	doc := mustParse(t, choiceDoc)
	res := Apply(doc, patches[:1])
	if res.Status != StatusApplied {
		t.Fatalf("expected literal payload to apply, got %s (%+v)", res.Status, res.Problems)
	}
}

func TestUnknownOperationRejects(t *testing.T) {
	doc := mustParse(t, choiceDoc)
	res := Apply(doc, []Patch{{FieldID: "color", Op: "replace"}})
	if res.Status != StatusRejected || !strings.Contains(res.Problems[0].Message, "replace") {
		t.Fatalf("expected unknown operation problem, got %s %+v", res.Status, res.Problems)
	}
}
