package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// directivePrefix opens every directive line.
const directivePrefix = "::"

// directive is one parsed `::name{...}` line. The value directive uses its
// own trailing syntax and is handled separately by the parser.
type directive struct {
	name  string
	id    string
	attrs map[string]string
	flags map[string]bool
	line  int
}

func isDirectiveLine(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), directivePrefix)
}

// parseDirective scans `::name{#id key=value flag ...}`. Values containing
// spaces must be double-quoted; quoted values use Go string escapes.
func parseDirective(line string, lineNo int) (*directive, error) {
	trimmed := strings.TrimSpace(line)
	rest := strings.TrimPrefix(trimmed, directivePrefix)
	brace := strings.IndexByte(rest, '{')
	if brace < 0 {
		return nil, fmt.Errorf("directive %q is missing an attribute block", trimmed)
	}
	if !strings.HasSuffix(rest, "}") {
		return nil, fmt.Errorf("directive %q is missing a closing brace", trimmed)
	}
	name := strings.TrimSpace(rest[:brace])
	if name == "" {
		return nil, fmt.Errorf("directive %q has no name", trimmed)
	}
	d := &directive{
		name:  name,
		attrs: map[string]string{},
		flags: map[string]bool{},
		line:  lineNo,
	}
	body := rest[brace+1 : len(rest)-1]
	if err := d.scanAttrs(body); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *directive) scanAttrs(body string) error {
	i := 0
	for i < len(body) {
		for i < len(body) && body[i] == ' ' {
			i++
		}
		if i >= len(body) {
			break
		}
		if body[i] == '#' {
			start := i + 1
			i = scanBareToken(body, start)
			if i == start {
				return fmt.Errorf("empty id in attribute block %q", body)
			}
			if d.id != "" {
				return fmt.Errorf("attribute block %q declares two ids", body)
			}
			d.id = body[start:i]
			continue
		}
		start := i
		for i < len(body) && body[i] != ' ' && body[i] != '=' {
			i++
		}
		key := body[start:i]
		if key == "" {
			return fmt.Errorf("stray %q in attribute block %q", body[i], body)
		}
		if i >= len(body) || body[i] != '=' {
			d.flags[key] = true
			continue
		}
		i++ // consume '='
		if i < len(body) && body[i] == '"' {
			end, value, err := scanQuoted(body, i)
			if err != nil {
				return err
			}
			d.attrs[key] = value
			i = end
			continue
		}
		vstart := i
		i = scanBareToken(body, vstart)
		d.attrs[key] = body[vstart:i]
	}
	return nil
}

func scanBareToken(s string, start int) int {
	i := start
	for i < len(s) && s[i] != ' ' && s[i] != '}' {
		i++
	}
	return i
}

// scanQuoted consumes a double-quoted value beginning at s[start] and returns
// the index past the closing quote plus the unescaped text.
func scanQuoted(s string, start int) (int, string, error) {
	i := start + 1
	for i < len(s) {
		if s[i] == '\\' {
			i += 2
			continue
		}
		if s[i] == '"' {
			raw := s[start : i+1]
			value, err := strconv.Unquote(raw)
			if err != nil {
				return 0, "", fmt.Errorf("bad quoted value %s: %w", raw, err)
			}
			return i + 1, value, nil
		}
		i++
	}
	return 0, "", fmt.Errorf("unterminated quoted value in %q", s)
}

// intAttr reads an optional integer attribute.
func (d *directive) intAttr(key string) (int, bool, error) {
	raw, ok := d.attrs[key]
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("attribute %s=%q is not an integer", key, raw)
	}
	return n, true, nil
}

// quoteAttr renders a value for canonical attribute emission, quoting only
// when the bare form would not scan back.
func quoteAttr(value string) string {
	if value == "" {
		return `""`
	}
	if strings.ContainsAny(value, " \"{}\\=#") {
		return strconv.Quote(value)
	}
	return value
}
