package parser

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"formloom/internal/form"
)

const sampleDoc = `---
form:
  mode: collaborative
  limits:
    max_turns: 5
    max_patches_per_turn: 4
    max_issues_per_turn: 10
---

::group{#project label="Project Basics"}

::field{#name kind=text required role=user}
What is the project called?
::value answered = "formloom"

::field{#homepage kind=url role=user}
Where does the project live?

::field{#license kind=single-choice required role=agent depends-on=name}
Pick the license.
::option{#mit label=MIT}
::option{#apache label="Apache 2.0"}

::group{#delivery label="Delivery" order=3 parallel=ops}

::field{#launch kind=date role=user}
::value skipped reason="date not settled"

::field{#deps kind=table role=agent min-rows=1}
List runtime dependencies.
::column{#pkg kind=text required label=Package}
::column{#version kind=text}
::value answered = [{"pkg":"yaml","version":"3"}]

::note{#n-license role=agent ref=license}
User hinted MIT preference.
`

func parseSample(t *testing.T) *form.Document {
	t.Helper()
	doc, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("parse sample: %v", err)
	}
	return doc
}

func sameModel(t *testing.T, a, b *form.Document) {
	t.Helper()
	if !reflect.DeepEqual(a.Meta, b.Meta) {
		t.Fatalf("metadata differs:\n%+v\n%+v", a.Meta, b.Meta)
	}
	if !reflect.DeepEqual(a.Schema, b.Schema) {
		t.Fatalf("schema differs:\n%+v\n%+v", a.Schema, b.Schema)
	}
	if !reflect.DeepEqual(a.Responses, b.Responses) {
		t.Fatalf("responses differ:\n%+v\n%+v", a.Responses, b.Responses)
	}
	if !reflect.DeepEqual(a.Notes, b.Notes) {
		t.Fatalf("notes differ:\n%+v\n%+v", a.Notes, b.Notes)
	}
}

func TestParseBuildsSchemaAndResponses(t *testing.T) {
	doc := parseSample(t)
	if doc.Meta.Mode != "collaborative" || doc.Meta.Limits.MaxTurns != 5 {
		t.Fatalf("unexpected metadata: %+v", doc.Meta)
	}
	if len(doc.Schema.Groups) != 2 || doc.Schema.FieldCount() != 5 {
		t.Fatalf("unexpected schema shape: %d groups, %d fields", len(doc.Schema.Groups), doc.Schema.FieldCount())
	}
	name, group, ok := doc.Schema.Field("name")
	if !ok || group.ID != "project" {
		t.Fatalf("field name not found in project group")
	}
	if !name.Required || name.Role != form.RoleUser || name.Prompt != "What is the project called?" {
		t.Fatalf("unexpected field: %+v", name)
	}
	// Default order levels: group position for the first group, declared
	// level 3 for the second, fields inheriting their group.
	if group.Order != 1 || name.Order != 1 {
		t.Fatalf("unexpected default orders: group=%d field=%d", group.Order, name.Order)
	}
	launch, delivery, _ := doc.Schema.Field("launch")
	if delivery.Order != 3 || launch.Order != 3 || delivery.ParallelTag != "ops" {
		t.Fatalf("unexpected delivery group: %+v", delivery)
	}
	license, _, _ := doc.Schema.Field("license")
	if license.DependsOn != "name" || len(license.Options) != 2 {
		t.Fatalf("unexpected license field: %+v", license)
	}
	if got := doc.Response("name"); got.State != form.StateAnswered || got.Value.(form.Text) != "formloom" {
		t.Fatalf("unexpected name response: %+v", got)
	}
	if got := doc.Response("launch"); got.State != form.StateSkipped || got.Reason != "date not settled" {
		t.Fatalf("unexpected launch response: %+v", got)
	}
	deps := doc.Response("deps").Value.(form.Table)
	if len(deps) != 1 || deps[0]["pkg"].(form.Text) != "yaml" {
		t.Fatalf("unexpected deps table: %+v", deps)
	}
	if got := doc.Response("homepage"); got.State != form.StateUnanswered {
		t.Fatalf("expected homepage unanswered, got %+v", got)
	}
	if len(doc.Notes) != 1 || doc.Notes[0].Ref != "license" || doc.Notes[0].Text != "User hinted MIT preference." {
		t.Fatalf("unexpected notes: %+v", doc.Notes)
	}
}

func TestRoundTripPreservesBytes(t *testing.T) {
	doc := parseSample(t)
	out, err := Serialize(doc, Options{PreserveOriginalFormatting: true})
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if string(out) != sampleDoc {
		t.Fatalf("round trip altered bytes:\n--- got ---\n%s\n--- want ---\n%s", out, sampleDoc)
	}
}

func TestRoundTripAfterMutationKeepsModel(t *testing.T) {
	doc := parseSample(t)
	if err := doc.SetResponse("homepage", form.Answered(form.URL("https://example.com/formloom"))); err != nil {
		t.Fatalf("set response: %v", err)
	}
	out, err := Serialize(doc, Options{PreserveOriginalFormatting: true})
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	// Untouched fields keep their original source formatting.
	if !strings.Contains(string(out), `::value answered = "formloom"`) {
		t.Fatalf("untouched field was rewritten:\n%s", out)
	}
	reparsed, err := Parse(out)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	sameModel(t, doc, reparsed)
	if got := reparsed.Response("homepage").Value.(form.URL); got != "https://example.com/formloom" {
		t.Fatalf("mutated value lost: %q", got)
	}
}

func TestCanonicalSerializationRoundTrips(t *testing.T) {
	doc := parseSample(t)
	out, err := Serialize(doc, Options{})
	if err != nil {
		t.Fatalf("serialize canonical: %v", err)
	}
	reparsed, err := Parse(out)
	if err != nil {
		t.Fatalf("reparse canonical: %v\n%s", err, out)
	}
	sameModel(t, doc, reparsed)
	// Canonical output is a fixed point.
	again, err := Serialize(reparsed, Options{})
	if err != nil {
		t.Fatalf("serialize again: %v", err)
	}
	if string(again) != string(out) {
		t.Fatalf("canonical form is not stable:\n%s\n---\n%s", out, again)
	}
}

func TestEmittedDirectiveLinesAreBraceClosed(t *testing.T) {
	doc := parseSample(t)
	// A touched field forces preserve mode to regenerate its directive line.
	if err := doc.SetResponse("homepage", form.Answered(form.URL("https://example.com/formloom"))); err != nil {
		t.Fatalf("set response: %v", err)
	}
	for _, preserve := range []bool{true, false} {
		out, err := Serialize(doc, Options{PreserveOriginalFormatting: preserve})
		if err != nil {
			t.Fatalf("serialize (preserve=%v): %v", preserve, err)
		}
		for _, line := range strings.Split(string(out), "\n") {
			trimmed := strings.TrimSpace(line)
			if !strings.HasPrefix(trimmed, "::") || !strings.Contains(trimmed, "{") {
				continue
			}
			if !strings.HasSuffix(trimmed, "}") {
				t.Fatalf("directive line missing closing brace (preserve=%v): %q", preserve, line)
			}
		}
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		text string
		kind ErrorKind
	}{
		{
			"unclosed frontmatter",
			"---\nform:\n  mode: solo\n",
			ErrMalformedFrontmatter,
		},
		{
			"bad frontmatter yaml",
			"---\nform: [\n---\n",
			ErrMalformedFrontmatter,
		},
		{
			"duplicate field id",
			"::group{#g}\n::field{#a kind=text}\n::field{#a kind=number}\n",
			ErrDuplicateID,
		},
		{
			"group and field share id",
			"::group{#a}\n::field{#a kind=text}\n",
			ErrDuplicateID,
		},
		{
			"unknown directive",
			"::group{#g}\n::widget{#w}\n",
			ErrUnknownDirective,
		},
		{
			"literal kind mismatch",
			"::group{#g}\n::field{#n kind=number}\n::value answered = \"three\"\n",
			ErrTypeMismatch,
		},
		{
			"option not declared",
			"::group{#g}\n::field{#c kind=single-choice}\n::option{#a}\n::value answered = \"b\"\n",
			ErrTypeMismatch,
		},
		{
			"field outside group",
			"::field{#a kind=text}\n",
			ErrMisplacedDirective,
		},
		{
			"option on text field",
			"::group{#g}\n::field{#a kind=text}\n::option{#x}\n",
			ErrMisplacedDirective,
		},
		{
			"dangling depends-on",
			"::group{#g}\n::field{#a kind=text depends-on=ghost}\n",
			ErrUnknownReference,
		},
		{
			"second value line",
			"::group{#g}\n::field{#a kind=text}\n::value skipped\n::value aborted\n",
			ErrMisplacedDirective,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.text))
			if err == nil {
				t.Fatalf("expected parse error")
			}
			var docErr *DocumentError
			if !errors.As(err, &docErr) {
				t.Fatalf("expected DocumentError, got %T: %v", err, err)
			}
			if docErr.Kind != tc.kind {
				t.Fatalf("expected kind %s, got %s (%v)", tc.kind, docErr.Kind, err)
			}
			if docErr.Line == 0 {
				t.Fatalf("error is missing a line number: %v", err)
			}
		})
	}
}

func TestErrorPointsAtOffendingLine(t *testing.T) {
	text := "::group{#g}\n::field{#n kind=year}\n::value answered = 12\n"
	_, err := Parse([]byte(text))
	var docErr *DocumentError
	if !errors.As(err, &docErr) {
		t.Fatalf("expected DocumentError, got %v", err)
	}
	if docErr.Line != 3 || docErr.Ref != "n" {
		t.Fatalf("expected line 3 ref n, got line %d ref %q", docErr.Line, docErr.Ref)
	}
}

func TestCheckboxStatusLiteral(t *testing.T) {
	text := `::group{#g}
::field{#steps kind=checkbox-set checkbox-mode=status}
::option{#lint}
::option{#test}
::value answered = {"lint":"done","test":"pending"}
`
	doc, err := Parse([]byte(text))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	set := doc.Response("steps").Value.(form.CheckboxSet)
	if set["lint"].Status != "done" || set["test"].Status != "pending" {
		t.Fatalf("unexpected checkbox set: %+v", set)
	}
	// Simple-mode booleans are rejected in status mode.
	_, err = Parse([]byte(strings.Replace(text, `{"lint":"done","test":"pending"}`, `{"lint":true}`, 1)))
	if err == nil {
		t.Fatalf("expected status-mode literal error")
	}
}

func TestBareDateLiteral(t *testing.T) {
	text := "::group{#g}\n::field{#d kind=date}\n::value answered = 2024-06-01\n"
	doc, err := Parse([]byte(text))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := doc.Response("d").Value.(form.Date); got != "2024-06-01" {
		t.Fatalf("unexpected date: %q", got)
	}
}
