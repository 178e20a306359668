package inspect

import "formloom/internal/form"

// Scope names the level an issue refers to.
type Scope string

const (
	ScopeField Scope = "field"
	ScopeGroup Scope = "group"
	ScopeForm  Scope = "form"
)

// Severity splits issues into must-fix and should-fix.
type Severity string

const (
	SeverityRequired    Severity = "required"
	SeverityRecommended Severity = "recommended"
)

// Reason is the machine-readable cause of an issue.
type Reason string

const (
	ReasonMissingRequiredValue    Reason = "missing-required-value"
	ReasonInvalidValueForKind     Reason = "invalid-value-for-kind"
	ReasonUnmetDependency         Reason = "unmet-dependency"
	ReasonMissingRecommendedValue Reason = "missing-recommended-value"
)

// Issue is one derived statement that a field needs attention. Issues are
// data, never errors; they are fully enumerated and deterministically
// ordered on every call.
type Issue struct {
	// Ref is the field or group id the issue concerns.
	Ref   string
	Scope Scope
	// Group is the enclosing group of a field-scope issue.
	Group    string
	Role     form.Role
	Reason   Reason
	Message  string
	Severity Severity
	// Priority ranks urgency; 1 is most urgent.
	Priority int
	// BlockedBy names the field whose resolution this issue waits on;
	// empty when the issue is ready to work on now.
	BlockedBy string

	// seq is the referenced field's declaration index, the final ordering
	// tie-break.
	seq int
}

// Priority tiers. Ties are broken by severity, then declaration order.
const (
	priorityInvalidRequired    = 1
	priorityMissingRequired    = 2
	priorityInvalidOptional    = 3
	priorityMissingRecommended = 4
	priorityEmptyRecommended   = 5
)
