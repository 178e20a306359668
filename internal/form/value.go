package form

// Value is the closed sum of field value shapes. Each variant mirrors exactly
// one Kind; a value's tag must always match its field's declared kind, which
// TypeCheck enforces at every construction site.
type Value interface {
	Kind() Kind
	isValue()
}

// Text is the value of a text field.
type Text string

// Number is the value of a number field.
type Number float64

// URL is the value of a url field.
type URL string

// Date is the value of a date field, canonically formatted as 2006-01-02.
type Date string

// Year is the value of a year field.
type Year int

// TextList is the value of a text-list field.
type TextList []string

// URLList is the value of a url-list field.
type URLList []string

// SingleChoice holds the selected option id, or "" for no selection.
type SingleChoice string

// MultiChoice holds the selected option ids in selection order.
type MultiChoice []string

// CheckMark is the per-option payload of a checkbox-set value. Done carries
// the boolean in simple mode; Status carries the string in status mode.
type CheckMark struct {
	Done   bool
	Status string
}

// CheckboxSet maps option ids to their marks.
type CheckboxSet map[string]CheckMark

// Row maps column ids to scalar cell values.
type Row map[string]Value

// Table is the value of a table field: ordered rows of typed cells.
type Table []Row

func (Text) Kind() Kind         { return KindText }
func (Number) Kind() Kind       { return KindNumber }
func (URL) Kind() Kind          { return KindURL }
func (Date) Kind() Kind         { return KindDate }
func (Year) Kind() Kind         { return KindYear }
func (TextList) Kind() Kind     { return KindTextList }
func (URLList) Kind() Kind      { return KindURLList }
func (SingleChoice) Kind() Kind { return KindSingleChoice }
func (MultiChoice) Kind() Kind  { return KindMultiChoice }
func (CheckboxSet) Kind() Kind  { return KindCheckboxSet }
func (Table) Kind() Kind        { return KindTable }

func (Text) isValue()         {}
func (Number) isValue()       {}
func (URL) isValue()          {}
func (Date) isValue()         {}
func (Year) isValue()         {}
func (TextList) isValue()     {}
func (URLList) isValue()      {}
func (SingleChoice) isValue() {}
func (MultiChoice) isValue()  {}
func (CheckboxSet) isValue()  {}
func (Table) isValue()        {}

// IsEmpty reports whether a value carries no content. An answered response
// with an empty value on a required field still counts as outstanding work.
func IsEmpty(v Value) bool {
	switch val := v.(type) {
	case nil:
		return true
	case Text:
		return val == ""
	case Number:
		return false
	case URL:
		return val == ""
	case Date:
		return val == ""
	case Year:
		return val == 0
	case TextList:
		return len(val) == 0
	case URLList:
		return len(val) == 0
	case SingleChoice:
		return val == ""
	case MultiChoice:
		return len(val) == 0
	case CheckboxSet:
		return len(val) == 0
	case Table:
		return len(val) == 0
	}
	return true
}

// CloneValue deep-copies a value so documents can be copied without sharing
// mutable slices or maps.
func CloneValue(v Value) Value {
	switch val := v.(type) {
	case nil:
		return nil
	case Text, Number, URL, Date, Year, SingleChoice:
		return val
	case TextList:
		return TextList(cloneStrings(val))
	case URLList:
		return URLList(cloneStrings(val))
	case MultiChoice:
		return MultiChoice(cloneStrings(val))
	case CheckboxSet:
		if val == nil {
			return CheckboxSet(nil)
		}
		out := make(CheckboxSet, len(val))
		for id, mark := range val {
			out[id] = mark
		}
		return out
	case Table:
		if val == nil {
			return Table(nil)
		}
		out := make(Table, len(val))
		for i, row := range val {
			clone := make(Row, len(row))
			for col, cell := range row {
				clone[col] = CloneValue(cell)
			}
			out[i] = clone
		}
		return out
	}
	return v
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
