package form

import (
	"fmt"
	"net/url"
	"time"
)

// DateLayout is the canonical literal format for date values.
const DateLayout = "2006-01-02"

// Option is one selectable entry of a choice or checkbox field.
type Option struct {
	ID    string
	Label string
}

// Column declares one typed column of a table field. Only scalar kinds are
// legal column types.
type Column struct {
	ID       string
	Kind     Kind
	Label    string
	Required bool
}

// Field is a single typed slot in the schema.
type Field struct {
	ID       string
	Kind     Kind
	Label    string
	Prompt   string
	Required bool
	Role     Role

	// Order is the effective order level; the parser fills it from the
	// declared attribute or the enclosing group's level.
	Order int
	// OrderSet records whether the level was declared explicitly, so the
	// canonical serializer knows when to re-emit the attribute.
	OrderSet bool
	// DependsOn names a field that must be resolved before this one applies.
	DependsOn string
	// Serial marks the field as never parallelizable.
	Serial bool
	// ParallelTag overrides the role as the planner's batch grouping key.
	ParallelTag string

	Options      []Option
	Columns      []Column
	CheckboxMode CheckboxMode
	MinRows      int
	MaxRows      int

	// Seq is the field's zero-based declaration index across the whole
	// document, used for deterministic tie-breaking.
	Seq int
}

// Group is an ordered run of fields under one heading.
type Group struct {
	ID          string
	Label       string
	Order       int
	OrderSet    bool
	Serial      bool
	ParallelTag string
	Fields      []Field
	Seq         int
}

// Schema is the ordered group/field structure of a document.
type Schema struct {
	Groups []Group
}

// Field looks a field up by id together with its enclosing group.
func (s Schema) Field(id string) (Field, Group, bool) {
	for _, g := range s.Groups {
		for _, f := range g.Fields {
			if f.ID == id {
				return f, g, true
			}
		}
	}
	return Field{}, Group{}, false
}

// Group looks a group up by id.
func (s Schema) Group(id string) (Group, bool) {
	for _, g := range s.Groups {
		if g.ID == id {
			return g, true
		}
	}
	return Group{}, false
}

// Fields returns every field in declaration order.
func (s Schema) Fields() []Field {
	var out []Field
	for _, g := range s.Groups {
		out = append(out, g.Fields...)
	}
	return out
}

// FieldCount returns the number of fields in the schema.
func (s Schema) FieldCount() int {
	n := 0
	for _, g := range s.Groups {
		n += len(g.Fields)
	}
	return n
}

// OptionCount returns the number of options declared across all fields.
func (s Schema) OptionCount() int {
	n := 0
	for _, g := range s.Groups {
		for _, f := range g.Fields {
			n += len(f.Options)
		}
	}
	return n
}

// Option looks an option up by id.
func (f Field) Option(id string) (Option, bool) {
	for _, o := range f.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// Column looks a table column up by id.
func (f Field) Column(id string) (Column, bool) {
	for _, c := range f.Columns {
		if c.ID == id {
			return c, true
		}
	}
	return Column{}, false
}

// Validate ensures a field declaration is self-consistent. The parser calls
// this after the structural pass; programmatic construction sites should too.
func (f Field) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("form: field id is required")
	}
	if _, ok := allKinds[f.Kind]; !ok {
		return fmt.Errorf("form: field %s: unknown kind %q", f.ID, f.Kind)
	}
	if f.Kind.HasOptions() && len(f.Options) == 0 {
		return fmt.Errorf("form: field %s: kind %s requires options", f.ID, f.Kind)
	}
	if !f.Kind.HasOptions() && len(f.Options) > 0 {
		return fmt.Errorf("form: field %s: kind %s does not take options", f.ID, f.Kind)
	}
	if f.Kind == KindTable {
		if len(f.Columns) == 0 {
			return fmt.Errorf("form: field %s: table kind requires columns", f.ID)
		}
		for _, c := range f.Columns {
			if !c.Kind.Scalar() {
				return fmt.Errorf("form: field %s column %s: kind %s is not a scalar column type", f.ID, c.ID, c.Kind)
			}
		}
		if f.MaxRows > 0 && f.MinRows > f.MaxRows {
			return fmt.Errorf("form: field %s: min-rows %d exceeds max-rows %d", f.ID, f.MinRows, f.MaxRows)
		}
	} else if len(f.Columns) > 0 {
		return fmt.Errorf("form: field %s: kind %s does not take columns", f.ID, f.Kind)
	}
	if f.Kind == KindCheckboxSet && f.CheckboxMode != CheckboxSimple && f.CheckboxMode != CheckboxStatus {
		return fmt.Errorf("form: field %s: checkbox mode %q is not simple or status", f.ID, f.CheckboxMode)
	}
	return nil
}

// TypeCheck verifies that a value structurally matches the field's kind:
// the variant tag, option-id membership for choice and checkbox kinds, and
// column typing for table rows. Semantic constraints (required columns, row
// bounds) are left to Problems.
func (f Field) TypeCheck(v Value) error {
	if v == nil {
		return fmt.Errorf("form: field %s: value is required", f.ID)
	}
	if v.Kind() != f.Kind {
		return fmt.Errorf("form: field %s: value kind %s does not match field kind %s", f.ID, v.Kind(), f.Kind)
	}
	switch val := v.(type) {
	case Date:
		if val != "" {
			if _, err := time.Parse(DateLayout, string(val)); err != nil {
				return fmt.Errorf("form: field %s: %q is not a %s date", f.ID, val, DateLayout)
			}
		}
	case Year:
		if val != 0 && (val < 1000 || val > 9999) {
			return fmt.Errorf("form: field %s: year %d is not four digits", f.ID, val)
		}
	case URL:
		if val != "" {
			if err := checkURL(f.ID, string(val)); err != nil {
				return err
			}
		}
	case URLList:
		for _, entry := range val {
			if err := checkURL(f.ID, entry); err != nil {
				return err
			}
		}
	case SingleChoice:
		if val != "" {
			if _, ok := f.Option(string(val)); !ok {
				return fmt.Errorf("form: field %s: %q is not a declared option", f.ID, val)
			}
		}
	case MultiChoice:
		seen := map[string]struct{}{}
		for _, id := range val {
			if _, ok := f.Option(id); !ok {
				return fmt.Errorf("form: field %s: %q is not a declared option", f.ID, id)
			}
			if _, dup := seen[id]; dup {
				return fmt.Errorf("form: field %s: option %q selected twice", f.ID, id)
			}
			seen[id] = struct{}{}
		}
	case CheckboxSet:
		for id, mark := range val {
			if _, ok := f.Option(id); !ok {
				return fmt.Errorf("form: field %s: %q is not a declared option", f.ID, id)
			}
			switch f.CheckboxMode {
			case CheckboxStatus:
				if mark.Status == "" {
					return fmt.Errorf("form: field %s: option %q needs a status string in status mode", f.ID, id)
				}
			default:
				if mark.Status != "" {
					return fmt.Errorf("form: field %s: option %q carries a status string in simple mode", f.ID, id)
				}
			}
		}
	case Table:
		for i, row := range val {
			for colID, cell := range row {
				col, ok := f.Column(colID)
				if !ok {
					return fmt.Errorf("form: field %s row %d: %q is not a declared column", f.ID, i, colID)
				}
				if cell == nil || cell.Kind() != col.Kind {
					return fmt.Errorf("form: field %s row %d: column %s expects kind %s", f.ID, i, colID, col.Kind)
				}
				colField := Field{ID: fmt.Sprintf("%s[%d].%s", f.ID, i, colID), Kind: col.Kind}
				if err := colField.TypeCheck(cell); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Problems returns the semantic defects of a well-typed value: table rows
// missing required columns and row counts outside the declared bounds.
// Callers must TypeCheck first.
func (f Field) Problems(v Value) []string {
	var out []string
	table, ok := v.(Table)
	if !ok {
		return nil
	}
	for i, row := range table {
		for _, col := range f.Columns {
			if !col.Required {
				continue
			}
			cell, present := row[col.ID]
			if !present || IsEmpty(cell) {
				out = append(out, fmt.Sprintf("row %d is missing required column %s", i+1, col.ID))
			}
		}
	}
	if f.MinRows > 0 && len(table) < f.MinRows {
		out = append(out, fmt.Sprintf("table has %d rows, at least %d required", len(table), f.MinRows))
	}
	if f.MaxRows > 0 && len(table) > f.MaxRows {
		out = append(out, fmt.Sprintf("table has %d rows, at most %d allowed", len(table), f.MaxRows))
	}
	return out
}

func checkURL(fieldID, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("form: field %s: %q is not an absolute URL", fieldID, raw)
	}
	return nil
}
