package inspect

import (
	"fmt"
	"sort"
	"strings"

	"formloom/internal/form"
)

// FormState is the overall condition of a document.
type FormState string

const (
	FormEmpty      FormState = "empty"
	FormIncomplete FormState = "incomplete"
	FormComplete   FormState = "complete"
	FormInvalid    FormState = "invalid"
)

// StructureSummary counts the schema's shape.
type StructureSummary struct {
	Groups  int
	Fields  int
	Options int
}

// ProgressSummary counts fields by response state, value presence, and
// validity. Invalid counts filled values that fail kind-specific
// constraints.
type ProgressSummary struct {
	Answered   int
	Skipped    int
	Aborted    int
	Unanswered int
	Filled     int
	Empty      int
	Valid      int
	Invalid    int
}

// Report is the full inspection result.
type Report struct {
	Structure StructureSummary
	Progress  ProgressSummary
	State     FormState
	Issues    []Issue
}

// Options filters the emitted issue list. Filters compose in a fixed order:
// readiness, roles, scope cap, count cap; each stage is stable.
type Options struct {
	// TargetRoles restricts issues to fields answered by these roles. Empty
	// or containing form.RoleAny means no role filtering.
	TargetRoles []form.Role
	// ReadyOnly drops issues whose BlockedBy field is still unresolved.
	ReadyOnly bool
	// MaxFields and MaxGroups cap the distinct fields and groups touched,
	// for building small batches aimed at one actor. Zero means no cap.
	MaxFields int
	MaxGroups int
	// MaxIssues is a hard cap on the number of issues returned.
	MaxIssues int
}

// Inspect walks the document and reports summaries, overall state, and a
// prioritized issue list. It is a pure function of its input: the same
// document yields byte-identical output on every call.
func Inspect(doc *form.Document, opts Options) Report {
	rep := Report{
		Structure: StructureSummary{
			Groups:  len(doc.Schema.Groups),
			Fields:  doc.Schema.FieldCount(),
			Options: doc.Schema.OptionCount(),
		},
	}
	var issues []Issue
	anyResponse := false
	requiredOutstanding := false
	for _, g := range doc.Schema.Groups {
		for _, f := range g.Fields {
			resp := doc.Response(f.ID)
			fs := evaluate(f, resp)
			tally(&rep.Progress, fs)
			if resp.Resolved() {
				anyResponse = true
			}
			if fs.requiredOutstanding {
				requiredOutstanding = true
			}
			if issue, ok := fieldIssue(doc, g, f, fs); ok {
				issues = append(issues, issue)
			}
		}
	}
	switch {
	case rep.Progress.Invalid > 0:
		rep.State = FormInvalid
	case !requiredOutstanding:
		rep.State = FormComplete
	case !anyResponse:
		rep.State = FormEmpty
	default:
		rep.State = FormIncomplete
	}
	sortIssues(issues)
	if opts.ReadyOnly {
		issues = FilterReady(issues)
	}
	issues = FilterByRoles(issues, opts.TargetRoles)
	issues = CapScope(issues, opts.MaxFields, opts.MaxGroups)
	issues = CapCount(issues, opts.MaxIssues)
	rep.Issues = issues
	return rep
}

// fieldStatus is the evaluated condition of one field.
type fieldStatus struct {
	state    form.ResponseState
	filled   bool
	invalid  bool
	problems []string

	// requiredOutstanding marks a required field that is neither resolved
	// nor excused: unanswered, or answered with an empty value.
	requiredOutstanding bool
}

func evaluate(f form.Field, resp form.Response) fieldStatus {
	fs := fieldStatus{state: resp.State}
	if fs.state == "" {
		fs.state = form.StateUnanswered
	}
	if resp.State == form.StateAnswered {
		fs.filled = !form.IsEmpty(resp.Value)
		if err := f.TypeCheck(resp.Value); err != nil {
			fs.invalid = true
			fs.problems = append(fs.problems, err.Error())
		} else if problems := f.Problems(resp.Value); len(problems) > 0 {
			fs.invalid = true
			fs.problems = problems
		}
	}
	if f.Required {
		switch resp.State {
		case form.StateAnswered:
			fs.requiredOutstanding = !fs.filled
		case form.StateSkipped, form.StateAborted:
			// Explicitly excused.
		default:
			fs.requiredOutstanding = true
		}
	}
	return fs
}

func tally(p *ProgressSummary, fs fieldStatus) {
	switch fs.state {
	case form.StateAnswered:
		p.Answered++
	case form.StateSkipped:
		p.Skipped++
	case form.StateAborted:
		p.Aborted++
	default:
		p.Unanswered++
	}
	if fs.filled {
		p.Filled++
		if fs.invalid {
			p.Invalid++
		} else {
			p.Valid++
		}
	} else {
		p.Empty++
		if fs.invalid {
			p.Invalid++
		}
	}
}

// fieldIssue derives the single issue a field emits while it still requires
// attention, if any.
func fieldIssue(doc *form.Document, g form.Group, f form.Field, fs fieldStatus) (Issue, bool) {
	issue := Issue{
		Ref:   f.ID,
		Scope: ScopeField,
		Group: g.ID,
		Role:  f.Role,
		seq:   f.Seq,
	}
	switch {
	case fs.invalid:
		issue.Reason = ReasonInvalidValueForKind
		issue.Message = fmt.Sprintf("value for field %s is invalid: %s", f.ID, strings.Join(fs.problems, "; "))
		if f.Required {
			issue.Severity = SeverityRequired
			issue.Priority = priorityInvalidRequired
		} else {
			issue.Severity = SeverityRecommended
			issue.Priority = priorityInvalidOptional
		}
	case fs.requiredOutstanding:
		issue.Reason = ReasonMissingRequiredValue
		issue.Severity = SeverityRequired
		issue.Priority = priorityMissingRequired
		if fs.state == form.StateAnswered {
			issue.Message = fmt.Sprintf("required field %s was answered with an empty value", f.ID)
		} else {
			issue.Message = fmt.Sprintf("required field %s has no answer", f.ID)
		}
	case !f.Required && fs.state == form.StateUnanswered:
		issue.Reason = ReasonMissingRecommendedValue
		issue.Severity = SeverityRecommended
		issue.Priority = priorityMissingRecommended
		issue.Message = fmt.Sprintf("field %s has no answer", f.ID)
	case !f.Required && fs.state == form.StateAnswered && !fs.filled:
		issue.Reason = ReasonMissingRecommendedValue
		issue.Severity = SeverityRecommended
		issue.Priority = priorityEmptyRecommended
		issue.Message = fmt.Sprintf("field %s was answered with an empty value", f.ID)
	default:
		return Issue{}, false
	}
	if f.DependsOn != "" && !dependencyResolved(doc, f.DependsOn) {
		issue.BlockedBy = f.DependsOn
		issue.Reason = ReasonUnmetDependency
		issue.Message = fmt.Sprintf("field %s waits on field %s", f.ID, f.DependsOn)
	}
	return issue, true
}

// dependencyResolved reports whether a field can unblock its dependents: it
// must be resolved in some way and, when answered, carry a valid value.
func dependencyResolved(doc *form.Document, id string) bool {
	f, _, ok := doc.Schema.Field(id)
	if !ok {
		return false
	}
	resp := doc.Response(id)
	if !resp.Resolved() {
		return false
	}
	if resp.State != form.StateAnswered {
		return true
	}
	if err := f.TypeCheck(resp.Value); err != nil {
		return false
	}
	return len(f.Problems(resp.Value)) == 0
}

// sortIssues orders by priority, then severity (required first), then
// schema declaration order.
func sortIssues(issues []Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if a.Severity != b.Severity {
			return a.Severity == SeverityRequired
		}
		return a.seq < b.seq
	})
}
