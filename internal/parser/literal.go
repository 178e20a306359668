package parser

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"formloom/internal/form"
)

// ParseValueLiteral interprets a value literal against a field's declared
// kind. Patch batches reuse it for their JSON payloads, which are a valid
// subset of the YAML flow syntax the document format accepts.
func ParseValueLiteral(f form.Field, raw string) (form.Value, error) {
	return decodeLiteral(f, raw)
}

// decodeLiteral interprets a value literal against its field's declared
// kind. Literals are YAML flow nodes; canonical output emits JSON, which is
// a valid subset.
func decodeLiteral(f form.Field, raw string) (form.Value, error) {
	var node any
	if err := yaml.Unmarshal([]byte(raw), &node); err != nil {
		return nil, fmt.Errorf("literal is not valid YAML: %w", err)
	}
	value, err := convertLiteral(f, node)
	if err != nil {
		return nil, err
	}
	if err := f.TypeCheck(value); err != nil {
		return nil, err
	}
	return value, nil
}

func convertLiteral(f form.Field, node any) (form.Value, error) {
	switch f.Kind {
	case form.KindText:
		s, err := literalString(node)
		return form.Text(s), err
	case form.KindURL:
		s, err := literalString(node)
		return form.URL(s), err
	case form.KindDate:
		s, err := literalDate(node)
		return form.Date(s), err
	case form.KindSingleChoice:
		s, err := literalString(node)
		return form.SingleChoice(s), err
	case form.KindNumber:
		n, err := literalNumber(node)
		return form.Number(n), err
	case form.KindYear:
		n, err := literalInt(node)
		return form.Year(n), err
	case form.KindTextList:
		list, err := literalStrings(node)
		return form.TextList(list), err
	case form.KindURLList:
		list, err := literalStrings(node)
		return form.URLList(list), err
	case form.KindMultiChoice:
		list, err := literalStrings(node)
		return form.MultiChoice(list), err
	case form.KindCheckboxSet:
		return literalCheckboxSet(node)
	case form.KindTable:
		return literalTable(f, node)
	}
	return nil, fmt.Errorf("unhandled kind %s", f.Kind)
}

func literalString(node any) (string, error) {
	s, ok := node.(string)
	if !ok {
		return "", fmt.Errorf("expected a string literal, got %T", node)
	}
	return s, nil
}

// literalDate accepts either a quoted string or a bare scalar, which the
// YAML resolver may already have read as a timestamp.
func literalDate(node any) (string, error) {
	switch d := node.(type) {
	case string:
		return d, nil
	case time.Time:
		return d.Format(form.DateLayout), nil
	default:
		return "", fmt.Errorf("expected a date string, got %T", node)
	}
}

func literalNumber(node any) (float64, error) {
	switch n := node.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("expected a numeric literal, got %T", node)
	}
}

func literalInt(node any) (int, error) {
	switch n := node.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("expected an integer literal, got %T", node)
	}
}

func literalStrings(node any) ([]string, error) {
	seq, ok := node.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a sequence literal, got %T", node)
	}
	out := make([]string, 0, len(seq))
	for i, entry := range seq {
		s, ok := entry.(string)
		if !ok {
			return nil, fmt.Errorf("sequence entry %d: expected a string, got %T", i, entry)
		}
		out = append(out, s)
	}
	return out, nil
}

func literalCheckboxSet(node any) (form.CheckboxSet, error) {
	mapping, ok := node.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a mapping literal, got %T", node)
	}
	out := make(form.CheckboxSet, len(mapping))
	for id, entry := range mapping {
		switch mark := entry.(type) {
		case bool:
			out[id] = form.CheckMark{Done: mark}
		case string:
			out[id] = form.CheckMark{Status: mark}
		default:
			return nil, fmt.Errorf("option %s: expected a bool or status string, got %T", id, entry)
		}
	}
	return out, nil
}

func literalTable(f form.Field, node any) (form.Table, error) {
	seq, ok := node.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a sequence of rows, got %T", node)
	}
	out := make(form.Table, 0, len(seq))
	for i, entry := range seq {
		mapping, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("row %d: expected a mapping, got %T", i, entry)
		}
		row := make(form.Row, len(mapping))
		for colID, cellNode := range mapping {
			col, ok := f.Column(colID)
			if !ok {
				return nil, fmt.Errorf("row %d: %q is not a declared column", i, colID)
			}
			cell, err := convertLiteral(form.Field{ID: colID, Kind: col.Kind}, cellNode)
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i, colID, err)
			}
			row[colID] = cell
		}
		out = append(out, row)
	}
	return out, nil
}

// encodeLiteral renders a value as its canonical literal: compact JSON with
// deterministic key order.
func encodeLiteral(v form.Value) (string, error) {
	payload := literalPayload(v)
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode literal: %w", err)
	}
	return string(data), nil
}

func literalPayload(v form.Value) any {
	switch val := v.(type) {
	case form.Text:
		return string(val)
	case form.URL:
		return string(val)
	case form.Date:
		return string(val)
	case form.SingleChoice:
		return string(val)
	case form.Number:
		return float64(val)
	case form.Year:
		return int(val)
	case form.TextList:
		return []string(val)
	case form.URLList:
		return []string(val)
	case form.MultiChoice:
		return []string(val)
	case form.CheckboxSet:
		out := make(map[string]any, len(val))
		for id, mark := range val {
			if mark.Status != "" {
				out[id] = mark.Status
			} else {
				out[id] = mark.Done
			}
		}
		return out
	case form.Table:
		out := make([]map[string]any, 0, len(val))
		for _, row := range val {
			cells := make(map[string]any, len(row))
			for colID, cell := range row {
				cells[colID] = literalPayload(cell)
			}
			out = append(out, cells)
		}
		return out
	}
	return nil
}
