package form

import (
	"fmt"

	"github.com/google/uuid"
)

// Limits are the harness caps declared in document frontmatter. Zero means
// unlimited; the engine never enforces them itself, the driving loop does.
type Limits struct {
	MaxTurns          int `yaml:"max_turns,omitempty"`
	MaxPatchesPerTurn int `yaml:"max_patches_per_turn,omitempty"`
	MaxIssuesPerTurn  int `yaml:"max_issues_per_turn,omitempty"`
}

// Metadata is the frontmatter payload of a document.
type Metadata struct {
	Mode   string `yaml:"mode,omitempty"`
	Limits Limits `yaml:"limits,omitempty"`
}

// Segment is one raw span of original document text, retained so the
// serializer can reproduce untouched spans byte-for-byte. FieldID or NoteID
// is set when the span renders that field or note; structural spans leave
// both empty. Inspection, patching, and planning never read segments.
type Segment struct {
	FieldID string
	NoteID  string
	Raw     string
}

// Document is the aggregate the whole engine operates on: schema, responses
// by field id, notes, metadata, and the positional record of the original
// text. It is treated as a value; mutation flows only through patch
// application, which clones first.
type Document struct {
	Meta      Metadata
	Schema    Schema
	Responses map[string]Response
	Notes     []Note

	segments []Segment
	touched  map[string]struct{}
}

// New builds an empty document over a schema, with every field unanswered.
func New(meta Metadata, schema Schema) *Document {
	responses := make(map[string]Response, schema.FieldCount())
	for _, f := range schema.Fields() {
		responses[f.ID] = Unanswered()
	}
	return &Document{Meta: meta, Schema: schema, Responses: responses}
}

// Response returns the current response for a field, or the unanswered zero
// response when none is recorded.
func (d *Document) Response(id string) Response {
	if r, ok := d.Responses[id]; ok {
		return r
	}
	return Unanswered()
}

// SetResponse replaces a field's response and marks the field touched so the
// preserving serializer re-emits it canonically.
func (d *Document) SetResponse(id string, r Response) error {
	if _, _, ok := d.Schema.Field(id); !ok {
		return fmt.Errorf("form: unknown field %s", id)
	}
	if d.Responses == nil {
		d.Responses = map[string]Response{}
	}
	d.Responses[id] = r
	if d.touched == nil {
		d.touched = map[string]struct{}{}
	}
	d.touched[id] = struct{}{}
	return nil
}

// AddNote appends a note to the document, generating an id when the caller
// leaves it empty.
func (d *Document) AddNote(n Note) Note {
	if n.ID == "" {
		n.ID = "note-" + uuid.NewString()[:8]
	}
	d.Notes = append(d.Notes, n)
	return n
}

// Touched reports whether a field's response changed since parse.
func (d *Document) Touched(id string) bool {
	_, ok := d.touched[id]
	return ok
}

// SetSourceLayout records the raw spans of the parsed source text. Only the
// parser calls this.
func (d *Document) SetSourceLayout(segments []Segment) {
	d.segments = segments
}

// SourceLayout returns the recorded raw spans, nil for documents built
// programmatically. Only the serializer reads this.
func (d *Document) SourceLayout() []Segment {
	return d.segments
}

// Clone deep-copies the document. The schema is shared; it is immutable
// after parse.
func (d *Document) Clone() *Document {
	clone := &Document{Meta: d.Meta, Schema: d.Schema}
	if d.Responses != nil {
		clone.Responses = make(map[string]Response, len(d.Responses))
		for id, r := range d.Responses {
			clone.Responses[id] = r.Clone()
		}
	}
	if d.Notes != nil {
		clone.Notes = make([]Note, len(d.Notes))
		copy(clone.Notes, d.Notes)
	}
	if d.segments != nil {
		clone.segments = make([]Segment, len(d.segments))
		copy(clone.segments, d.segments)
	}
	if d.touched != nil {
		clone.touched = make(map[string]struct{}, len(d.touched))
		for id := range d.touched {
			clone.touched[id] = struct{}{}
		}
	}
	return clone
}
