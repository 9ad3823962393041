package document

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/buger/jsonparser"

	"github.com/ostberg/folio/internal/apperr"
	"github.com/ostberg/folio/internal/models"
)

// jsonDocument keeps the raw file bytes and splices mutations directly into
// them. JSON has no comments, but hand-edited files still carry indentation
// and key-order choices worth preserving, so edits never round-trip the whole
// document through a map. Element spans are re-derived from the raw bytes
// after every splice; collections are small enough that rescanning is free.
type jsonDocument struct {
	raw    []byte
	hasKey bool   // projects key present
	arr    span   // span of the projects array value, valid when hasKey
	elems  []span // spans of the array elements
}

type span struct{ start, end int }

func loadJSON(data []byte) (*jsonDocument, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 {
		if !json.Valid(data) {
			return nil, fmt.Errorf("%w: invalid json", apperr.ErrParse)
		}
		if trimmed[0] != '{' {
			return nil, fmt.Errorf("%w: top level must be an object", apperr.ErrParse)
		}
	}
	d := &jsonDocument{raw: append([]byte(nil), data...)}
	if err := d.reindex(); err != nil {
		return nil, err
	}
	return d, nil
}

// reindex recomputes the projects array span and its element spans.
func (d *jsonDocument) reindex() error {
	d.hasKey = false
	d.elems = nil
	if len(bytes.TrimSpace(d.raw)) == 0 {
		return nil
	}
	value, dt, offset, err := jsonparser.Get(d.raw, projectsKey)
	if err != nil {
		if err == jsonparser.KeyPathNotFoundError {
			return nil
		}
		return fmt.Errorf("%w: %v", apperr.ErrParse, err)
	}
	if dt == jsonparser.Null {
		return nil
	}
	if dt != jsonparser.Array {
		return fmt.Errorf("%w: %q is not an array", apperr.ErrParse, projectsKey)
	}
	// jsonparser reports the offset where the value ends.
	d.hasKey = true
	d.arr = span{offset - len(value), offset}
	elems, err := elementSpans(d.raw[d.arr.start:d.arr.end], d.arr.start)
	if err != nil {
		return err
	}
	d.elems = elems
	return nil
}

// elementSpans walks a serialized array and records the byte span of every
// element, offset by base into the enclosing document.
func elementSpans(arr []byte, base int) ([]span, error) {
	dec := json.NewDecoder(bytes.NewReader(arr))
	if _, err := dec.Token(); err != nil { // consume '['
		return nil, fmt.Errorf("%w: %v", apperr.ErrParse, err)
	}
	var out []span
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrParse, err)
		}
		end := int(dec.InputOffset())
		out = append(out, span{base + end - len(raw), base + end})
	}
	return out, nil
}

func (d *jsonDocument) Records() ([]models.Project, error) {
	out := make([]models.Project, 0, len(d.elems))
	for i, s := range d.elems {
		var p models.Project
		if err := json.Unmarshal(d.raw[s.start:s.end], &p); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", apperr.ErrParse, i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (d *jsonDocument) FindIndexByID(id string) (int, bool) {
	for i, s := range d.elems {
		var probe struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(d.raw[s.start:s.end], &probe); err == nil && probe.ID == id {
			return i, true
		}
	}
	return 0, false
}

func (d *jsonDocument) ReplaceRecordAt(i int, p models.Project) error {
	if i < 0 || i >= len(d.elems) {
		return fmt.Errorf("record index %d: %w", i, apperr.ErrNotFound)
	}
	s := d.elems[i]
	text, err := marshalRecord(p, d.lineIndent(s.start))
	if err != nil {
		return err
	}
	d.splice(s.start, s.end, text)
	return d.reindex()
}

func (d *jsonDocument) AppendRecord(p models.Project) error {
	if !d.hasKey {
		return d.insertProjectsKey(p)
	}
	if len(d.elems) == 0 {
		keyIndent := d.lineLeadingWhitespace(d.arr.start)
		text, err := marshalRecord(p, keyIndent+"  ")
		if err != nil {
			return err
		}
		d.splice(d.arr.start, d.arr.end,
			[]byte("[\n"+keyIndent+"  "+string(text)+"\n"+keyIndent+"]"))
		return d.reindex()
	}
	last := d.elems[len(d.elems)-1]
	indent := d.lineIndent(last.start)
	if indent == "" && !d.multiline() {
		text, err := marshalRecord(p, "")
		if err != nil {
			return err
		}
		d.splice(last.end, last.end, append([]byte(", "), compact(text)...))
		return d.reindex()
	}
	text, err := marshalRecord(p, indent)
	if err != nil {
		return err
	}
	d.splice(last.end, last.end, append([]byte(",\n"+indent), text...))
	return d.reindex()
}

func (d *jsonDocument) RemoveRecordAt(i int) error {
	if i < 0 || i >= len(d.elems) {
		return fmt.Errorf("record index %d: %w", i, apperr.ErrNotFound)
	}
	switch {
	case len(d.elems) == 1:
		d.splice(d.arr.start, d.arr.end, []byte("[]"))
	case i < len(d.elems)-1:
		// Remove the element together with its trailing comma and the
		// whitespace up to the next element.
		d.splice(d.elems[i].start, d.elems[i+1].start, nil)
	default:
		// Last element: remove the preceding comma and whitespace too.
		d.splice(d.elems[i-1].end, d.elems[i].end, nil)
	}
	return d.reindex()
}

func (d *jsonDocument) Config() map[string]interface{} {
	value, dt, _, err := jsonparser.Get(d.raw, configKey)
	if err != nil || dt != jsonparser.Object {
		return nil
	}
	var cfg map[string]interface{}
	if err := json.Unmarshal(value, &cfg); err != nil {
		return nil
	}
	return cfg
}

func (d *jsonDocument) Serialize() ([]byte, error) {
	if len(bytes.TrimSpace(d.raw)) == 0 {
		return []byte("{}\n"), nil
	}
	return append([]byte(nil), d.raw...), nil
}

// insertProjectsKey adds a "projects" array holding p to the root object.
func (d *jsonDocument) insertProjectsKey(p models.Project) error {
	text, err := marshalRecord(p, "    ")
	if err != nil {
		return err
	}
	block := "\"projects\": [\n    " + string(text) + "\n  ]"

	if len(bytes.TrimSpace(d.raw)) == 0 {
		d.raw = []byte("{\n  " + block + "\n}\n")
		return d.reindex()
	}
	closing := lastIndexNonSpace(d.raw)
	if closing < 0 || d.raw[closing] != '}' {
		return fmt.Errorf("%w: unterminated object", apperr.ErrParse)
	}
	inner := lastIndexNonSpace(d.raw[:closing])
	if inner >= 0 && d.raw[inner] == '{' {
		// Empty object.
		d.splice(inner+1, closing, []byte("\n  "+block+"\n"))
	} else {
		d.splice(inner+1, inner+1, []byte(",\n  "+block))
	}
	return d.reindex()
}

// splice replaces raw[start:end] with text.
func (d *jsonDocument) splice(start, end int, text []byte) {
	out := make([]byte, 0, len(d.raw)-(end-start)+len(text))
	out = append(out, d.raw[:start]...)
	out = append(out, text...)
	out = append(out, d.raw[end:]...)
	d.raw = out
}

// lineIndent returns the whitespace prefix of the line pos sits on, or ""
// when pos is not the first non-space character of its line.
func (d *jsonDocument) lineIndent(pos int) string {
	i := pos
	for i > 0 && d.raw[i-1] != '\n' {
		if d.raw[i-1] != ' ' && d.raw[i-1] != '\t' {
			return ""
		}
		i--
	}
	return string(d.raw[i:pos])
}

// lineLeadingWhitespace returns the whitespace prefix of the line pos sits
// on, regardless of where pos falls within the line.
func (d *jsonDocument) lineLeadingWhitespace(pos int) string {
	start := pos
	for start > 0 && d.raw[start-1] != '\n' {
		start--
	}
	end := start
	for end < len(d.raw) && (d.raw[end] == ' ' || d.raw[end] == '\t') {
		end++
	}
	return string(d.raw[start:end])
}

// multiline reports whether the projects array is formatted across lines.
func (d *jsonDocument) multiline() bool {
	return bytes.ContainsRune(d.raw[d.arr.start:d.arr.end], '\n')
}

func lastIndexNonSpace(b []byte) int {
	for i := len(b) - 1; i >= 0; i-- {
		switch b[i] {
		case ' ', '\t', '\n', '\r':
		default:
			return i
		}
	}
	return -1
}

// marshalRecord renders a record indented for splicing at a line with the
// given prefix; the first line carries no prefix because it lands where the
// old element started.
func marshalRecord(p models.Project, prefix string) ([]byte, error) {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	b, err := json.MarshalIndent(p, prefix, "  ")
	if err != nil {
		return nil, fmt.Errorf("document: encode record %q: %w", p.ID, err)
	}
	return b, nil
}

func compact(text []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, text); err != nil {
		return text
	}
	return buf.Bytes()
}
