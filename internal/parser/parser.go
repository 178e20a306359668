package parser

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"formloom/internal/form"
)

// frontmatterEnvelope wraps document metadata under the `form` key, the same
// envelope shape the serializer emits.
type frontmatterEnvelope struct {
	Form form.Metadata `yaml:"form"`
}

const frontmatterFence = "---"

// Parse converts directive-annotated document text into a typed document.
// Parsing is two-pass: a structural pass builds the schema and records each
// field's value line, then a value pass interprets every literal against its
// field's declared kind. The raw source is retained as ordered segments so
// the serializer can reproduce untouched spans exactly.
func Parse(text []byte) (*form.Document, error) {
	lines := splitLines(normalizeNewlines(text))
	p := &docBuilder{
		seen:      map[string]int{},
		noteSeen:  map[string]int{},
		responses: map[string]form.Response{},
	}
	rest, err := p.readFrontmatter(lines)
	if err != nil {
		return nil, err
	}
	if err := p.scanBody(rest); err != nil {
		return nil, err
	}
	p.flushSegment()
	if err := p.finishSchema(); err != nil {
		return nil, err
	}
	if err := p.readValues(); err != nil {
		return nil, err
	}
	doc := form.New(p.meta, form.Schema{Groups: p.groups})
	for id, r := range p.responses {
		doc.Responses[id] = r
	}
	doc.Notes = p.notes
	doc.SetSourceLayout(p.segments)
	return doc, nil
}

type docBuilder struct {
	meta   form.Metadata
	groups []form.Group
	notes  []form.Note

	seen     map[string]int // group + field ids -> line
	noteSeen map[string]int
	fieldSeq int

	// scan state
	lineNo     int
	curGroup   int // index into groups, -1 before the first group
	curField   *form.Field
	curFieldID string
	fieldLines map[string]int // field id -> directive line
	valueLines []valueLine
	valueSeen  map[string]bool
	curNote    int // index into notes, -1 outside a note block
	prompt     []string

	segments   []form.Segment
	segLines   []string
	segFieldID string
	segNoteID  string

	responses map[string]form.Response
}

type valueLine struct {
	fieldID string
	rest    string
	line    int
}

// readFrontmatter consumes the optional fenced metadata block and returns
// the remaining raw lines.
func (p *docBuilder) readFrontmatter(lines []string) ([]string, error) {
	if len(lines) == 0 || strings.TrimRight(lines[0], "\n") != frontmatterFence {
		p.curGroup = -1
		p.curNote = -1
		return lines, nil
	}
	closing := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\n") == frontmatterFence {
			closing = i
			break
		}
	}
	if closing < 0 {
		return nil, docErr(ErrMalformedFrontmatter, 1, "", "frontmatter fence is never closed")
	}
	block := strings.Join(trimNewlines(lines[1:closing]), "\n")
	var envelope frontmatterEnvelope
	if err := yaml.Unmarshal([]byte(block), &envelope); err != nil {
		return nil, &DocumentError{Kind: ErrMalformedFrontmatter, Line: 2, Msg: "frontmatter is not valid YAML", Err: err}
	}
	p.meta = envelope.Form
	p.segLines = append(p.segLines, lines[:closing+1]...)
	p.lineNo = closing + 1
	p.curGroup = -1
	p.curNote = -1
	return lines[closing+1:], nil
}

func (p *docBuilder) scanBody(lines []string) error {
	for _, raw := range lines {
		p.lineNo++
		line := strings.TrimRight(raw, "\n")
		if !isDirectiveLine(line) {
			p.segLines = append(p.segLines, raw)
			p.textLine(line)
			continue
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == directivePrefix+"value" || strings.HasPrefix(trimmed, directivePrefix+"value ") {
			if err := p.valueDirective(trimmed); err != nil {
				return err
			}
			p.segLines = append(p.segLines, raw)
			continue
		}
		dir, err := parseDirective(line, p.lineNo)
		if err != nil {
			return &DocumentError{Kind: ErrUnknownDirective, Line: p.lineNo, Msg: err.Error()}
		}
		if err := p.directive(dir, raw); err != nil {
			return err
		}
	}
	return nil
}

// textLine routes a non-directive line to whatever block is open: field
// prompt, note body, or plain prose kept only in the raw segment.
func (p *docBuilder) textLine(line string) {
	switch {
	case p.curNote >= 0:
		p.notes[p.curNote].Text = joinText(p.notes[p.curNote].Text, line)
	case p.curField != nil:
		p.prompt = append(p.prompt, line)
	}
}

func (p *docBuilder) directive(dir *directive, raw string) error {
	switch dir.name {
	case "group":
		return p.groupDirective(dir, raw)
	case "field":
		return p.fieldDirective(dir, raw)
	case "option":
		p.segLines = append(p.segLines, raw)
		return p.optionDirective(dir)
	case "column":
		p.segLines = append(p.segLines, raw)
		return p.columnDirective(dir)
	case "note":
		return p.noteDirective(dir, raw)
	default:
		return docErr(ErrUnknownDirective, dir.line, "", "unknown directive ::%s", dir.name)
	}
}

func (p *docBuilder) groupDirective(dir *directive, raw string) error {
	p.flushSegment()
	p.segLines = append(p.segLines, raw)
	if err := p.claimID(dir.id, dir.line); err != nil {
		return err
	}
	if err := checkAttrs(dir, map[string]bool{"label": true, "order": true, "parallel": true}, map[string]bool{"serial": true}); err != nil {
		return err
	}
	order, orderSet, err := dir.intAttr("order")
	if err != nil {
		return docErr(ErrMisplacedDirective, dir.line, dir.id, "%s", err)
	}
	p.groups = append(p.groups, form.Group{
		ID:          dir.id,
		Label:       dir.attrs["label"],
		Order:       order,
		OrderSet:    orderSet,
		Serial:      dir.flags["serial"],
		ParallelTag: dir.attrs["parallel"],
		Seq:         len(p.groups),
	})
	p.curGroup = len(p.groups) - 1
	p.closeField()
	p.curNote = -1
	return nil
}

func (p *docBuilder) fieldDirective(dir *directive, raw string) error {
	if p.curGroup < 0 {
		return docErr(ErrMisplacedDirective, dir.line, dir.id, "field declared outside any group")
	}
	p.flushSegment()
	p.segFieldID = dir.id
	p.segLines = append(p.segLines, raw)
	if err := p.claimID(dir.id, dir.line); err != nil {
		return err
	}
	allowed := map[string]bool{
		"kind": true, "label": true, "role": true, "order": true,
		"depends-on": true, "parallel": true, "checkbox-mode": true,
		"min-rows": true, "max-rows": true,
	}
	if err := checkAttrs(dir, allowed, map[string]bool{"required": true, "serial": true}); err != nil {
		return err
	}
	kind, ok := form.ParseKind(dir.attrs["kind"])
	if !ok {
		return docErr(ErrMisplacedDirective, dir.line, dir.id, "unknown field kind %q", dir.attrs["kind"])
	}
	order, orderSet, err := dir.intAttr("order")
	if err != nil {
		return docErr(ErrMisplacedDirective, dir.line, dir.id, "%s", err)
	}
	minRows, _, err := dir.intAttr("min-rows")
	if err != nil {
		return docErr(ErrMisplacedDirective, dir.line, dir.id, "%s", err)
	}
	maxRows, _, err := dir.intAttr("max-rows")
	if err != nil {
		return docErr(ErrMisplacedDirective, dir.line, dir.id, "%s", err)
	}
	role := form.Role(dir.attrs["role"])
	if role == "" {
		role = form.RoleUser
	}
	mode := form.CheckboxMode(dir.attrs["checkbox-mode"])
	if kind == form.KindCheckboxSet && mode == "" {
		mode = form.CheckboxSimple
	}
	field := form.Field{
		ID:           dir.id,
		Kind:         kind,
		Label:        dir.attrs["label"],
		Required:     dir.flags["required"],
		Role:         role,
		Order:        order,
		OrderSet:     orderSet,
		DependsOn:    dir.attrs["depends-on"],
		Serial:       dir.flags["serial"],
		ParallelTag:  dir.attrs["parallel"],
		CheckboxMode: mode,
		MinRows:      minRows,
		MaxRows:      maxRows,
		Seq:          p.fieldSeq,
	}
	p.fieldSeq++
	p.closeField()
	p.curField = &field
	p.curFieldID = dir.id
	if p.fieldLines == nil {
		p.fieldLines = map[string]int{}
	}
	p.fieldLines[dir.id] = dir.line
	p.curNote = -1
	return nil
}

func (p *docBuilder) optionDirective(dir *directive) error {
	if p.curField == nil || !p.curField.Kind.HasOptions() {
		return docErr(ErrMisplacedDirective, dir.line, dir.id, "option declared outside a choice or checkbox field")
	}
	if err := checkAttrs(dir, map[string]bool{"label": true}, nil); err != nil {
		return err
	}
	if _, ok := p.curField.Option(dir.id); ok {
		return docErr(ErrDuplicateID, dir.line, p.curFieldID, "duplicate option id %s", dir.id)
	}
	if dir.id == "" {
		return docErr(ErrMisplacedDirective, dir.line, p.curFieldID, "option is missing an id")
	}
	p.curField.Options = append(p.curField.Options, form.Option{ID: dir.id, Label: dir.attrs["label"]})
	return nil
}

func (p *docBuilder) columnDirective(dir *directive) error {
	if p.curField == nil || p.curField.Kind != form.KindTable {
		return docErr(ErrMisplacedDirective, dir.line, dir.id, "column declared outside a table field")
	}
	if err := checkAttrs(dir, map[string]bool{"kind": true, "label": true}, map[string]bool{"required": true}); err != nil {
		return err
	}
	if _, ok := p.curField.Column(dir.id); ok {
		return docErr(ErrDuplicateID, dir.line, p.curFieldID, "duplicate column id %s", dir.id)
	}
	kind, ok := form.ParseKind(dir.attrs["kind"])
	if !ok || !kind.Scalar() {
		return docErr(ErrMisplacedDirective, dir.line, p.curFieldID, "column %s kind %q is not a scalar kind", dir.id, dir.attrs["kind"])
	}
	p.curField.Columns = append(p.curField.Columns, form.Column{
		ID:       dir.id,
		Kind:     kind,
		Label:    dir.attrs["label"],
		Required: dir.flags["required"],
	})
	return nil
}

func (p *docBuilder) noteDirective(dir *directive, raw string) error {
	p.flushSegment()
	p.segNoteID = dir.id
	p.segLines = append(p.segLines, raw)
	if err := checkAttrs(dir, map[string]bool{"role": true, "ref": true}, nil); err != nil {
		return err
	}
	if dir.id == "" {
		return docErr(ErrMisplacedDirective, dir.line, "", "note is missing an id")
	}
	if prev, dup := p.noteSeen[dir.id]; dup {
		return docErr(ErrDuplicateID, dir.line, dir.id, "note id already declared on line %d", prev)
	}
	p.noteSeen[dir.id] = dir.line
	role := form.Role(dir.attrs["role"])
	if role == "" {
		role = form.RoleUser
	}
	p.notes = append(p.notes, form.Note{ID: dir.id, Role: role, Ref: dir.attrs["ref"]})
	p.closeField()
	p.curNote = len(p.notes) - 1
	return nil
}

// valueDirective records a `::value <state> ...` line for the second pass.
func (p *docBuilder) valueDirective(trimmed string) error {
	if p.curField == nil {
		return docErr(ErrMisplacedDirective, p.lineNo, "", "value declared outside a field")
	}
	if p.valueSeen == nil {
		p.valueSeen = map[string]bool{}
	}
	if p.valueSeen[p.curFieldID] {
		return docErr(ErrMisplacedDirective, p.lineNo, p.curFieldID, "field already carries a value")
	}
	p.valueSeen[p.curFieldID] = true
	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, directivePrefix+"value"))
	p.valueLines = append(p.valueLines, valueLine{fieldID: p.curFieldID, rest: rest, line: p.lineNo})
	return nil
}

// closeField folds the open field, with its accumulated prompt, into the
// current group.
func (p *docBuilder) closeField() {
	if p.curField == nil {
		p.prompt = nil
		return
	}
	p.curField.Prompt = strings.TrimSpace(strings.Join(p.prompt, "\n"))
	p.groups[p.curGroup].Fields = append(p.groups[p.curGroup].Fields, *p.curField)
	p.curField = nil
	p.curFieldID = ""
	p.prompt = nil
}

func (p *docBuilder) flushSegment() {
	p.closeFieldIfGroupless()
	if len(p.segLines) == 0 && p.segFieldID == "" && p.segNoteID == "" {
		return
	}
	p.segments = append(p.segments, form.Segment{
		FieldID: p.segFieldID,
		NoteID:  p.segNoteID,
		Raw:     strings.Join(p.segLines, ""),
	})
	p.segLines = nil
	p.segFieldID = ""
	p.segNoteID = ""
}

// closeFieldIfGroupless is a guard for the final flush, where no trailing
// directive has folded the last open field yet.
func (p *docBuilder) closeFieldIfGroupless() {
	if p.curField != nil {
		p.closeField()
	}
}

func (p *docBuilder) claimID(id string, line int) error {
	if id == "" {
		return docErr(ErrMisplacedDirective, line, "", "directive is missing an id")
	}
	if prev, dup := p.seen[id]; dup {
		return docErr(ErrDuplicateID, line, id, "id already declared on line %d", prev)
	}
	p.seen[id] = line
	return nil
}

// finishSchema fills default order levels, validates every field, and
// resolves depends-on references.
func (p *docBuilder) finishSchema() error {
	for gi := range p.groups {
		g := &p.groups[gi]
		if !g.OrderSet {
			g.Order = gi + 1
		}
		for fi := range g.Fields {
			f := &g.Fields[fi]
			if !f.OrderSet {
				f.Order = g.Order
			}
			if err := f.Validate(); err != nil {
				return &DocumentError{Kind: ErrMisplacedDirective, Line: p.fieldLines[f.ID], Ref: f.ID, Err: err}
			}
		}
	}
	schema := form.Schema{Groups: p.groups}
	for _, f := range schema.Fields() {
		if f.DependsOn == "" {
			continue
		}
		if f.DependsOn == f.ID {
			return docErr(ErrUnknownReference, p.fieldLines[f.ID], f.ID, "field depends on itself")
		}
		if _, _, ok := schema.Field(f.DependsOn); !ok {
			return docErr(ErrUnknownReference, p.fieldLines[f.ID], f.ID, "depends-on references unknown field %s", f.DependsOn)
		}
	}
	for _, n := range p.notes {
		if n.Ref == "" {
			continue
		}
		if _, _, ok := schema.Field(n.Ref); ok {
			continue
		}
		if _, ok := schema.Group(n.Ref); ok {
			continue
		}
		return docErr(ErrUnknownReference, p.noteSeen[n.ID], n.ID, "note references unknown field or group %s", n.Ref)
	}
	return nil
}

// readValues is the second pass: interpret each recorded value line against
// its field's declared kind.
func (p *docBuilder) readValues() error {
	schema := form.Schema{Groups: p.groups}
	for _, vl := range p.valueLines {
		field, _, _ := schema.Field(vl.fieldID)
		resp, err := parseValueRest(field, vl.rest)
		if err != nil {
			return &DocumentError{Kind: ErrTypeMismatch, Line: vl.line, Ref: vl.fieldID, Err: err}
		}
		p.responses[vl.fieldID] = resp
	}
	return nil
}

func parseValueRest(field form.Field, rest string) (form.Response, error) {
	state, tail, _ := strings.Cut(rest, " ")
	tail = strings.TrimSpace(tail)
	switch form.ResponseState(state) {
	case form.StateAnswered:
		if !strings.HasPrefix(tail, "=") {
			return form.Response{}, fmt.Errorf("answered value needs `= <literal>`")
		}
		literal := strings.TrimSpace(strings.TrimPrefix(tail, "="))
		if literal == "" {
			return form.Response{}, fmt.Errorf("answered value has an empty literal")
		}
		value, err := decodeLiteral(field, literal)
		if err != nil {
			return form.Response{}, err
		}
		return form.Answered(value), nil
	case form.StateSkipped, form.StateAborted:
		reason, err := parseReason(tail)
		if err != nil {
			return form.Response{}, err
		}
		if state == string(form.StateSkipped) {
			return form.Skipped(reason), nil
		}
		return form.Aborted(reason), nil
	case form.StateUnanswered:
		return form.Unanswered(), nil
	default:
		return form.Response{}, fmt.Errorf("unknown response state %q", state)
	}
}

func parseReason(tail string) (string, error) {
	if tail == "" {
		return "", nil
	}
	if !strings.HasPrefix(tail, "reason=") {
		return "", fmt.Errorf("unexpected trailing %q, want reason=...", tail)
	}
	raw := strings.TrimPrefix(tail, "reason=")
	if strings.HasPrefix(raw, `"`) {
		_, value, err := scanQuoted(raw, 0)
		return value, err
	}
	return raw, nil
}

func checkAttrs(dir *directive, attrs map[string]bool, flags map[string]bool) error {
	for key := range dir.attrs {
		if !attrs[key] {
			return docErr(ErrMisplacedDirective, dir.line, dir.id, "attribute %s is not valid on ::%s", key, dir.name)
		}
	}
	for key := range dir.flags {
		if flags == nil || !flags[key] {
			return docErr(ErrMisplacedDirective, dir.line, dir.id, "flag %s is not valid on ::%s", key, dir.name)
		}
	}
	return nil
}

// splitLines splits text after every newline so that concatenating the
// pieces reproduces the input byte-for-byte.
func splitLines(text []byte) []string {
	if len(text) == 0 {
		return nil
	}
	var out []string
	start := 0
	for i, b := range text {
		if b == '\n' {
			out = append(out, string(text[start:i+1]))
			start = i + 1
		}
	}
	if start < len(text) {
		out = append(out, string(text[start:]))
	}
	return out
}

func trimNewlines(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.TrimRight(l, "\n")
	}
	return out
}

func joinText(existing, line string) string {
	if strings.TrimSpace(line) == "" {
		return existing
	}
	if existing == "" {
		return strings.TrimSpace(line)
	}
	return existing + "\n" + strings.TrimSpace(line)
}

func normalizeNewlines(content []byte) []byte {
	return []byte(strings.ReplaceAll(string(content), "\r\n", "\n"))
}
