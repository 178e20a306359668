package parser

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"formloom/internal/form"
)

// Options controls serialization.
type Options struct {
	// PreserveOriginalFormatting re-emits untouched spans of the parsed
	// source exactly as they appeared, regenerating only fields whose
	// responses changed. When false the whole document is rendered
	// canonically from the model alone.
	PreserveOriginalFormatting bool
}

// Serialize renders a document back to directive text. With preservation on
// and no intervening mutation, the output reproduces the parsed source
// byte-for-byte.
func Serialize(doc *form.Document, opts Options) ([]byte, error) {
	if opts.PreserveOriginalFormatting {
		if layout := doc.SourceLayout(); layout != nil {
			return serializePreserving(doc, layout)
		}
	}
	return serializeCanonical(doc)
}

func serializePreserving(doc *form.Document, layout []form.Segment) ([]byte, error) {
	var b strings.Builder
	knownNotes := map[string]bool{}
	for _, seg := range layout {
		if seg.NoteID != "" {
			knownNotes[seg.NoteID] = true
		}
		if seg.FieldID != "" && doc.Touched(seg.FieldID) {
			field, _, ok := doc.Schema.Field(seg.FieldID)
			if !ok {
				return nil, fmt.Errorf("parser: layout references unknown field %s", seg.FieldID)
			}
			block, err := fieldBlock(field, doc.Response(seg.FieldID))
			if err != nil {
				return nil, err
			}
			b.WriteString(block)
			b.WriteString("\n")
			continue
		}
		b.WriteString(seg.Raw)
	}
	for _, note := range doc.Notes {
		if knownNotes[note.ID] {
			continue
		}
		b.WriteString("\n")
		b.WriteString(noteBlock(note))
	}
	return []byte(b.String()), nil
}

func serializeCanonical(doc *form.Document) ([]byte, error) {
	var b strings.Builder
	if doc.Meta != (form.Metadata{}) {
		data, err := yaml.Marshal(frontmatterEnvelope{Form: doc.Meta})
		if err != nil {
			return nil, fmt.Errorf("parser: encode frontmatter: %w", err)
		}
		b.WriteString(frontmatterFence + "\n")
		b.Write(data)
		b.WriteString(frontmatterFence + "\n\n")
	}
	for gi, g := range doc.Schema.Groups {
		if gi > 0 {
			b.WriteString("\n")
		}
		b.WriteString(groupLine(g))
		b.WriteString("\n")
		for _, f := range g.Fields {
			b.WriteString("\n")
			block, err := fieldBlock(f, doc.Response(f.ID))
			if err != nil {
				return nil, err
			}
			b.WriteString(block)
		}
	}
	for _, note := range doc.Notes {
		b.WriteString("\n")
		b.WriteString(noteBlock(note))
	}
	return []byte(b.String()), nil
}

func groupLine(g form.Group) string {
	a := newAttrLine("group", g.ID)
	a.attr("label", g.Label)
	if g.OrderSet {
		a.attr("order", strconv.Itoa(g.Order))
	}
	a.attr("parallel", g.ParallelTag)
	a.flag("serial", g.Serial)
	return a.String()
}

func fieldBlock(f form.Field, resp form.Response) (string, error) {
	var b strings.Builder
	a := newAttrLine("field", f.ID)
	a.attr("kind", string(f.Kind))
	a.attr("label", f.Label)
	a.flag("required", f.Required)
	a.attr("role", string(f.Role))
	if f.OrderSet {
		a.attr("order", strconv.Itoa(f.Order))
	}
	a.attr("depends-on", f.DependsOn)
	a.attr("parallel", f.ParallelTag)
	a.flag("serial", f.Serial)
	if f.CheckboxMode == form.CheckboxStatus {
		a.attr("checkbox-mode", string(f.CheckboxMode))
	}
	if f.MinRows > 0 {
		a.attr("min-rows", strconv.Itoa(f.MinRows))
	}
	if f.MaxRows > 0 {
		a.attr("max-rows", strconv.Itoa(f.MaxRows))
	}
	b.WriteString(a.String())
	b.WriteString("\n")
	if f.Prompt != "" {
		b.WriteString(f.Prompt)
		b.WriteString("\n")
	}
	for _, o := range f.Options {
		oa := newAttrLine("option", o.ID)
		oa.attr("label", o.Label)
		b.WriteString(oa.String())
		b.WriteString("\n")
	}
	for _, c := range f.Columns {
		ca := newAttrLine("column", c.ID)
		ca.attr("kind", string(c.Kind))
		ca.attr("label", c.Label)
		ca.flag("required", c.Required)
		b.WriteString(ca.String())
		b.WriteString("\n")
	}
	line, err := valueDirectiveLine(resp)
	if err != nil {
		return "", fmt.Errorf("parser: field %s: %w", f.ID, err)
	}
	if line != "" {
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func valueDirectiveLine(resp form.Response) (string, error) {
	switch resp.State {
	case "", form.StateUnanswered:
		return "", nil
	case form.StateAnswered:
		literal, err := encodeLiteral(resp.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%svalue answered = %s", directivePrefix, literal), nil
	case form.StateSkipped, form.StateAborted:
		line := fmt.Sprintf("%svalue %s", directivePrefix, resp.State)
		if resp.Reason != "" {
			line += " reason=" + strconv.Quote(resp.Reason)
		}
		return line, nil
	}
	return "", fmt.Errorf("unknown response state %q", resp.State)
}

func noteBlock(n form.Note) string {
	var b strings.Builder
	a := newAttrLine("note", n.ID)
	a.attr("role", string(n.Role))
	a.attr("ref", n.Ref)
	b.WriteString(a.String())
	b.WriteString("\n")
	if n.Text != "" {
		b.WriteString(n.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// attrLine builds a canonical `::name{...}` directive line.
type attrLine struct {
	b strings.Builder
}

func newAttrLine(name, id string) *attrLine {
	a := &attrLine{}
	a.b.WriteString(directivePrefix)
	a.b.WriteString(name)
	a.b.WriteString("{")
	if id != "" {
		a.b.WriteString("#")
		a.b.WriteString(id)
	}
	return a
}

func (a *attrLine) attr(key, value string) {
	if value == "" {
		return
	}
	a.b.WriteString(" ")
	a.b.WriteString(key)
	a.b.WriteString("=")
	a.b.WriteString(quoteAttr(value))
}

func (a *attrLine) flag(key string, on bool) {
	if !on {
		return
	}
	a.b.WriteString(" ")
	a.b.WriteString(key)
}

func (a *attrLine) String() string {
	return a.b.String() + "}"
}
