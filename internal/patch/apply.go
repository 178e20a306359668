package patch

import (
	"fmt"

	"github.com/sahilm/fuzzy"

	"formloom/internal/form"
	"formloom/internal/inspect"
	"formloom/internal/parser"
)

// Status classifies the outcome of applying a batch.
type Status string

const (
	// StatusApplied means the batch mutated the document and every patched
	// value is valid.
	StatusApplied Status = "applied"
	// StatusPartial means the batch mutated the document but some patched
	// values are semantically invalid; the caller should look at the
	// remaining issues.
	StatusPartial Status = "partial"
	// StatusRejected means structural validation failed and the document
	// was returned unchanged.
	StatusRejected Status = "rejected"
)

// Problem reports one structural defect found in a rejected batch. Every
// problem in the batch is reported, not just the first.
type Problem struct {
	FieldID string
	Message string
}

// Result is the outcome of Apply: the (possibly new) document plus the
// re-run inspection over it.
type Result struct {
	Status   Status
	Document *form.Document
	Problems []Problem
	Report   inspect.Report
}

// Apply validates a patch batch against the document and, when the whole
// batch is structurally sound, applies it to a copy. The input document is
// never mutated; the last patch for a given field within the batch wins.
func Apply(doc *form.Document, patches []Patch) Result {
	resolved := make([]form.Response, len(patches))
	var problems []Problem
	for i, p := range patches {
		resp, problem := resolve(doc, p)
		if problem != nil {
			problems = append(problems, *problem)
			continue
		}
		resolved[i] = resp
	}
	if len(problems) > 0 {
		return Result{
			Status:   StatusRejected,
			Document: doc,
			Problems: problems,
			Report:   inspect.Inspect(doc, inspect.Options{}),
		}
	}
	next := doc.Clone()
	for i, p := range patches {
		// SetResponse cannot fail here: resolve already checked the id.
		if err := next.SetResponse(p.FieldID, resolved[i]); err != nil {
			return Result{
				Status:   StatusRejected,
				Document: doc,
				Problems: []Problem{{FieldID: p.FieldID, Message: err.Error()}},
				Report:   inspect.Inspect(doc, inspect.Options{}),
			}
		}
	}
	status := StatusApplied
	for _, p := range patches {
		resp := next.Response(p.FieldID)
		if resp.State != form.StateAnswered {
			continue
		}
		field, _, _ := next.Schema.Field(p.FieldID)
		if len(field.Problems(resp.Value)) > 0 {
			status = StatusPartial
			break
		}
	}
	return Result{
		Status:   status,
		Document: next,
		Report:   inspect.Inspect(next, inspect.Options{}),
	}
}

// resolve turns one patch into the response it would install, or the
// structural problem preventing it.
func resolve(doc *form.Document, p Patch) (form.Response, *Problem) {
	field, _, ok := doc.Schema.Field(p.FieldID)
	if !ok {
		msg := fmt.Sprintf("unknown field %s", p.FieldID)
		if hint := suggestField(doc, p.FieldID); hint != "" {
			msg = fmt.Sprintf("%s (did you mean %s?)", msg, hint)
		}
		return form.Response{}, &Problem{FieldID: p.FieldID, Message: msg}
	}
	switch p.Op {
	case OpSetValue:
		value := p.Value
		if value == nil {
			if p.Literal == "" {
				return form.Response{}, &Problem{FieldID: p.FieldID, Message: "set-value patch carries no value"}
			}
			parsed, err := parser.ParseValueLiteral(field, p.Literal)
			if err != nil {
				return form.Response{}, &Problem{FieldID: p.FieldID, Message: err.Error()}
			}
			value = parsed
		}
		if err := field.TypeCheck(value); err != nil {
			return form.Response{}, &Problem{FieldID: p.FieldID, Message: err.Error()}
		}
		return form.Answered(value), nil
	case OpSkip:
		return form.Skipped(p.Reason), nil
	case OpAbort:
		return form.Aborted(p.Reason), nil
	default:
		return form.Response{}, &Problem{FieldID: p.FieldID, Message: fmt.Sprintf("unknown operation %q", p.Op)}
	}
}

// suggestField offers the closest declared field id for a typo'd patch.
func suggestField(doc *form.Document, id string) string {
	var ids []string
	for _, f := range doc.Schema.Fields() {
		ids = append(ids, f.ID)
	}
	if matches := fuzzy.Find(id, ids); len(matches) > 0 {
		return matches[0].Str
	}
	// The typo may be longer than the real id; try each id as the pattern.
	best, bestScore := "", -1
	for _, candidate := range ids {
		if matches := fuzzy.Find(candidate, []string{id}); len(matches) > 0 && matches[0].Score > bestScore {
			best, bestScore = candidate, matches[0].Score
		}
	}
	return best
}
