package form

// Kind identifies the shape of a field's value. The set is closed; the parser
// rejects directives declaring any other kind.
type Kind string

const (
	KindText         Kind = "text"
	KindNumber       Kind = "number"
	KindTextList     Kind = "text-list"
	KindSingleChoice Kind = "single-choice"
	KindMultiChoice  Kind = "multi-choice"
	KindCheckboxSet  Kind = "checkbox-set"
	KindURL          Kind = "url"
	KindURLList      Kind = "url-list"
	KindDate         Kind = "date"
	KindYear         Kind = "year"
	KindTable        Kind = "table"
)

var allKinds = map[Kind]struct{}{
	KindText:         {},
	KindNumber:       {},
	KindTextList:     {},
	KindSingleChoice: {},
	KindMultiChoice:  {},
	KindCheckboxSet:  {},
	KindURL:          {},
	KindURLList:      {},
	KindDate:         {},
	KindYear:         {},
	KindTable:        {},
}

// ParseKind validates a kind name from document text.
func ParseKind(name string) (Kind, bool) {
	k := Kind(name)
	_, ok := allKinds[k]
	return k, ok
}

// Scalar reports whether the kind may be used as a table column type.
func (k Kind) Scalar() bool {
	switch k {
	case KindText, KindNumber, KindURL, KindDate, KindYear:
		return true
	default:
		return false
	}
}

// HasOptions reports whether fields of this kind declare an option list.
func (k Kind) HasOptions() bool {
	switch k {
	case KindSingleChoice, KindMultiChoice, KindCheckboxSet:
		return true
	default:
		return false
	}
}

// Role names the class of actor expected to resolve a field: the human user,
// an automated agent, or any other named actor a schema introduces.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	// RoleAny is the wildcard: in issue filters it disables role
	// filtering, and a field declared with it can be answered by anyone.
	RoleAny Role = "*"
)

// CheckboxMode selects the per-option payload for checkbox-set fields.
type CheckboxMode string

const (
	// CheckboxSimple stores a boolean per option.
	CheckboxSimple CheckboxMode = "simple"
	// CheckboxStatus stores a free-form status string per option.
	CheckboxStatus CheckboxMode = "status"
)
