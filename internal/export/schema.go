// Package export renders read-only projections of a document: a narrative
// markdown view, a JSON-Schema-shaped structural description, and
// JSON/YAML/console views of inspection reports. Projections are for
// external consumption and are never parsed back.

package export

import (
	"encoding/json"
	"fmt"

	"formloom/internal/form"
)

// JSONSchema renders the document's structure as a JSON-Schema-shaped
// description. Response state is dropped; everything needed to reconstruct
// the schema itself is kept, with non-standard facts under x- keys.
func JSONSchema(doc *form.Document) ([]byte, error) {
	root := map[string]any{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"type":       "object",
		"properties": map[string]any{},
	}
	if doc.Meta.Mode != "" {
		root["x-mode"] = doc.Meta.Mode
	}
	properties := root["properties"].(map[string]any)
	var requiredGroups []string
	for _, g := range doc.Schema.Groups {
		groupSchema := map[string]any{
			"type":       "object",
			"properties": map[string]any{},
			"x-seq":      g.Seq,
			"x-order":    g.Order,
		}
		if g.Label != "" {
			groupSchema["title"] = g.Label
		}
		if g.ParallelTag != "" {
			groupSchema["x-parallel"] = g.ParallelTag
		}
		if g.Serial {
			groupSchema["x-serial"] = true
		}
		groupProps := groupSchema["properties"].(map[string]any)
		var requiredFields []string
		for _, f := range g.Fields {
			groupProps[f.ID] = fieldSchema(f)
			if f.Required {
				requiredFields = append(requiredFields, f.ID)
			}
		}
		if len(requiredFields) > 0 {
			groupSchema["required"] = requiredFields
			requiredGroups = append(requiredGroups, g.ID)
		}
		properties[g.ID] = groupSchema
	}
	if len(requiredGroups) > 0 {
		root["required"] = requiredGroups
	}
	return json.MarshalIndent(root, "", "  ")
}

func fieldSchema(f form.Field) map[string]any {
	out := scalarSchema(f.Kind)
	switch f.Kind {
	case form.KindTextList:
		out = map[string]any{"type": "array", "items": scalarSchema(form.KindText)}
	case form.KindURLList:
		out = map[string]any{"type": "array", "items": scalarSchema(form.KindURL)}
	case form.KindSingleChoice:
		out = map[string]any{"type": "string", "enum": optionIDs(f)}
	case form.KindMultiChoice:
		out = map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string", "enum": optionIDs(f)},
			"uniqueItems": true,
		}
	case form.KindCheckboxSet:
		props := map[string]any{}
		markType := "boolean"
		if f.CheckboxMode == form.CheckboxStatus {
			markType = "string"
		}
		for _, o := range f.Options {
			entry := map[string]any{"type": markType}
			if o.Label != "" {
				entry["title"] = o.Label
			}
			props[o.ID] = entry
		}
		out = map[string]any{
			"type":                 "object",
			"properties":           props,
			"additionalProperties": false,
			"x-checkbox-mode":      string(f.CheckboxMode),
		}
	case form.KindTable:
		props := map[string]any{}
		var required []string
		for _, c := range f.Columns {
			colSchema := scalarSchema(c.Kind)
			if c.Label != "" {
				colSchema["title"] = c.Label
			}
			props[c.ID] = colSchema
			if c.Required {
				required = append(required, c.ID)
			}
		}
		rowSchema := map[string]any{
			"type":                 "object",
			"properties":           props,
			"additionalProperties": false,
		}
		if len(required) > 0 {
			rowSchema["required"] = required
		}
		out = map[string]any{"type": "array", "items": rowSchema}
		if f.MinRows > 0 {
			out["minItems"] = f.MinRows
		}
		if f.MaxRows > 0 {
			out["maxItems"] = f.MaxRows
		}
	}
	if f.Label != "" {
		out["title"] = f.Label
	}
	if f.Prompt != "" {
		out["description"] = f.Prompt
	}
	out["x-kind"] = string(f.Kind)
	out["x-role"] = string(f.Role)
	out["x-seq"] = f.Seq
	out["x-order"] = f.Order
	if f.DependsOn != "" {
		out["x-depends-on"] = f.DependsOn
	}
	if f.ParallelTag != "" {
		out["x-parallel"] = f.ParallelTag
	}
	if f.Serial {
		out["x-serial"] = true
	}
	return out
}

func scalarSchema(k form.Kind) map[string]any {
	switch k {
	case form.KindNumber:
		return map[string]any{"type": "number"}
	case form.KindURL:
		return map[string]any{"type": "string", "format": "uri"}
	case form.KindDate:
		return map[string]any{"type": "string", "format": "date"}
	case form.KindYear:
		return map[string]any{"type": "integer", "minimum": 1000, "maximum": 9999}
	default:
		return map[string]any{"type": "string"}
	}
}

func optionIDs(f form.Field) []string {
	out := make([]string, 0, len(f.Options))
	for _, o := range f.Options {
		out = append(out, o.ID)
	}
	return out
}

// FormatValue renders a value for human display in reports and prompts.
func FormatValue(v form.Value) string {
	switch val := v.(type) {
	case nil:
		return ""
	case form.Text:
		return string(val)
	case form.URL:
		return string(val)
	case form.Date:
		return string(val)
	case form.SingleChoice:
		return string(val)
	case form.Number:
		return trimFloat(float64(val))
	case form.Year:
		return fmt.Sprintf("%d", int(val))
	case form.TextList:
		return joinList([]string(val))
	case form.URLList:
		return joinList([]string(val))
	case form.MultiChoice:
		return joinList([]string(val))
	case form.CheckboxSet:
		return fmt.Sprintf("%d option(s) marked", len(val))
	case form.Table:
		return fmt.Sprintf("%d row(s)", len(val))
	}
	return ""
}

func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}

func joinList(items []string) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += ", "
		}
		out += item
	}
	return out
}
