package export

import (
	"fmt"
	"sort"
	"strings"

	"formloom/internal/form"
)

// Markdown renders the document as a narrative markdown view: groups as
// sections, each field with its prompt and current answer. The output is
// for reading, not for parsing back.
func Markdown(doc *form.Document) []byte {
	var b strings.Builder
	if doc.Meta.Mode != "" {
		fmt.Fprintf(&b, "# %s\n\n", doc.Meta.Mode)
	}
	for _, g := range doc.Schema.Groups {
		title := g.Label
		if title == "" {
			title = g.ID
		}
		fmt.Fprintf(&b, "## %s\n\n", title)
		for _, f := range g.Fields {
			writeFieldSection(&b, doc, f)
		}
	}
	if len(doc.Notes) > 0 {
		b.WriteString("## Notes\n\n")
		for _, n := range doc.Notes {
			if n.Ref != "" {
				fmt.Fprintf(&b, "- **%s** (on %s): %s\n", n.Role, n.Ref, strings.TrimSpace(n.Text))
			} else {
				fmt.Fprintf(&b, "- **%s**: %s\n", n.Role, strings.TrimSpace(n.Text))
			}
		}
		b.WriteString("\n")
	}
	return []byte(b.String())
}

func writeFieldSection(b *strings.Builder, doc *form.Document, f form.Field) {
	title := f.Label
	if title == "" {
		title = f.ID
	}
	marker := ""
	if f.Required {
		marker = " *"
	}
	fmt.Fprintf(b, "### %s%s\n\n", title, marker)
	if f.Prompt != "" {
		fmt.Fprintf(b, "%s\n\n", strings.TrimSpace(f.Prompt))
	}
	resp := doc.Response(f.ID)
	switch resp.State {
	case form.StateAnswered:
		writeAnswer(b, f, resp.Value)
	case form.StateSkipped:
		fmt.Fprintf(b, "_Skipped: %s_\n\n", resp.Reason)
	case form.StateAborted:
		fmt.Fprintf(b, "_Aborted: %s_\n\n", resp.Reason)
	default:
		b.WriteString("_Unanswered._\n\n")
	}
}

func writeAnswer(b *strings.Builder, f form.Field, v form.Value) {
	switch val := v.(type) {
	case form.TextList:
		writeStringList(b, []string(val))
	case form.URLList:
		writeStringList(b, []string(val))
	case form.MultiChoice:
		writeStringList(b, labelledIDs(f, []string(val)))
	case form.CheckboxSet:
		ids := make([]string, 0, len(val))
		for id := range val {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			mark := val[id]
			box := "[ ]"
			detail := ""
			if f.CheckboxMode == form.CheckboxStatus {
				detail = fmt.Sprintf(" (%s)", mark.Status)
				if mark.Status == "done" {
					box = "[x]"
				}
			} else if mark.Done {
				box = "[x]"
			}
			fmt.Fprintf(b, "- %s %s%s\n", box, optionTitle(f, id), detail)
		}
		b.WriteString("\n")
	case form.Table:
		writeTable(b, f, val)
	case form.SingleChoice:
		fmt.Fprintf(b, "%s\n\n", optionTitle(f, string(val)))
	default:
		fmt.Fprintf(b, "%s\n\n", FormatValue(v))
	}
}

func writeStringList(b *strings.Builder, items []string) {
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}

func writeTable(b *strings.Builder, f form.Field, rows form.Table) {
	if len(f.Columns) == 0 || len(rows) == 0 {
		fmt.Fprintf(b, "%s\n\n", FormatValue(rows))
		return
	}
	for _, c := range f.Columns {
		fmt.Fprintf(b, "| %s ", columnTitle(c))
	}
	b.WriteString("|\n")
	for range f.Columns {
		b.WriteString("| --- ")
	}
	b.WriteString("|\n")
	for _, row := range rows {
		for _, c := range f.Columns {
			fmt.Fprintf(b, "| %s ", FormatValue(row[c.ID]))
		}
		b.WriteString("|\n")
	}
	b.WriteString("\n")
}

func labelledIDs(f form.Field, ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, optionTitle(f, id))
	}
	return out
}

func optionTitle(f form.Field, id string) string {
	for _, o := range f.Options {
		if o.ID == id && o.Label != "" {
			return o.Label
		}
	}
	return id
}

func columnTitle(c form.Column) string {
	if c.Label != "" {
		return c.Label
	}
	return c.ID
}
