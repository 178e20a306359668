// Package patch validates and applies batches of proposed answers against a
// document. Structural validation is all-or-nothing: one bad patch rejects
// the whole batch and leaves the document untouched.

package patch

import (
	"encoding/json"
	"fmt"
	"strings"

	"formloom/internal/form"
)

// Operation is the kind of mutation a patch proposes.
type Operation string

const (
	OpSetValue Operation = "set-value"
	OpSkip     Operation = "skip"
	OpAbort    Operation = "abort"
)

// Patch proposes one mutation for one field. Programmatic callers populate
// Value directly; batches decoded from JSON carry the raw payload in
// Literal, interpreted against the field's kind during structural
// validation. When both are set, Value wins.
type Patch struct {
	FieldID string
	Op      Operation
	Value   form.Value
	Literal string
	Reason  string
}

// SetValue builds a set-value patch from a typed value.
func SetValue(fieldID string, v form.Value) Patch {
	return Patch{FieldID: fieldID, Op: OpSetValue, Value: v}
}

// Skip builds a skip patch.
func Skip(fieldID, reason string) Patch {
	return Patch{FieldID: fieldID, Op: OpSkip, Reason: reason}
}

// Abort builds an abort patch.
func Abort(fieldID, reason string) Patch {
	return Patch{FieldID: fieldID, Op: OpAbort, Reason: reason}
}

type rawPatch struct {
	FieldID   string          `json:"fieldId"`
	Operation string          `json:"operation"`
	Value     json.RawMessage `json:"value,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

// DecodeBatch reads a JSON patch batch. Anything that is not a JSON array
// of patch objects is rejected here, before the engine is involved; field
// and payload validation happens in Apply.
func DecodeBatch(data []byte) ([]Patch, error) {
	trimmed := strings.TrimSpace(string(data))
	if !strings.HasPrefix(trimmed, "[") {
		return nil, fmt.Errorf("patch: batch must be a JSON array")
	}
	var raws []rawPatch
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("patch: decode batch: %w", err)
	}
	out := make([]Patch, 0, len(raws))
	for i, r := range raws {
		if r.FieldID == "" {
			return nil, fmt.Errorf("patch: entry %d is missing fieldId", i)
		}
		p := Patch{
			FieldID: r.FieldID,
			Op:      Operation(r.Operation),
			Reason:  r.Reason,
		}
		if len(r.Value) > 0 {
			p.Literal = string(r.Value)
		}
		out = append(out, p)
	}
	return out, nil
}
