package document

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ostberg/folio/internal/apperr"
	"github.com/ostberg/folio/internal/models"
)

const (
	projectsKey = "projects"
	configKey   = "config"
)

// yamlDocument wraps a yaml.v3 node tree. yaml.v3 keeps comments, key order,
// and scalar styles on every node, so re-encoding a mutated tree keeps the
// metadata of every untouched sibling. Indentation is an emitter setting, not
// node metadata, so the loader also keeps the raw input: an unmutated
// document serializes to those exact bytes, and mutated documents re-encode
// with the source file's own indent width.
type yamlDocument struct {
	root   *yaml.Node // document node
	src    []byte     // original input, returned verbatim while clean
	indent int
	dirty  bool
}

func loadYAML(data []byte) (*yamlDocument, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrParse, err)
	}
	if root.Kind == 0 {
		// Empty file: start from an empty mapping.
		root = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}},
		}
	}
	d := &yamlDocument{
		root:   &root,
		src:    append([]byte(nil), data...),
		indent: detectIndent(data),
	}
	top, err := d.mapping()
	if err != nil {
		return nil, err
	}
	if seq, ok := mappingValue(top, projectsKey); ok && seq.Kind != yaml.SequenceNode && seq.Tag != "!!null" {
		return nil, fmt.Errorf("%w: %q is not a sequence", apperr.ErrParse, projectsKey)
	}
	return d, nil
}

// detectIndent returns the indent step of the first indented line. Deeper
// lines are multiples of the step in any consistently indented file, so the
// first one is enough.
func detectIndent(data []byte) int {
	for _, line := range bytes.Split(data, []byte("\n")) {
		trimmed := bytes.TrimLeft(line, " ")
		if len(trimmed) == 0 || len(trimmed) == len(line) {
			continue
		}
		if n := len(line) - len(trimmed); n >= 2 && n <= 8 {
			return n
		}
	}
	return 2
}

// mapping returns the top-level mapping node.
func (d *yamlDocument) mapping() (*yaml.Node, error) {
	if len(d.root.Content) == 0 {
		return nil, fmt.Errorf("%w: empty document", apperr.ErrParse)
	}
	top := d.root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must be a mapping", apperr.ErrParse)
	}
	return top, nil
}

// mappingValue finds the value node for key in a mapping.
func mappingValue(m *yaml.Node, key string) (*yaml.Node, bool) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1], true
		}
	}
	return nil, false
}

// projects returns the projects sequence node, or nil when absent.
func (d *yamlDocument) projects() *yaml.Node {
	top, err := d.mapping()
	if err != nil {
		return nil
	}
	seq, ok := mappingValue(top, projectsKey)
	if !ok || seq.Kind != yaml.SequenceNode {
		return nil
	}
	return seq
}

func (d *yamlDocument) Records() ([]models.Project, error) {
	seq := d.projects()
	if seq == nil {
		return []models.Project{}, nil
	}
	out := make([]models.Project, 0, len(seq.Content))
	for i, item := range seq.Content {
		var p models.Project
		if err := item.Decode(&p); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", apperr.ErrParse, i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (d *yamlDocument) FindIndexByID(id string) (int, bool) {
	seq := d.projects()
	if seq == nil {
		return 0, false
	}
	for i, item := range seq.Content {
		if v, ok := mappingValue(item, "id"); ok && v.Value == id {
			return i, true
		}
	}
	return 0, false
}

func (d *yamlDocument) ReplaceRecordAt(i int, p models.Project) error {
	seq := d.projects()
	if seq == nil || i < 0 || i >= len(seq.Content) {
		return fmt.Errorf("record index %d: %w", i, apperr.ErrNotFound)
	}
	node, err := buildRecordNode(p)
	if err != nil {
		return err
	}
	seq.Content[i] = node
	d.dirty = true
	return nil
}

func (d *yamlDocument) AppendRecord(p models.Project) error {
	top, err := d.mapping()
	if err != nil {
		return err
	}
	node, err := buildRecordNode(p)
	if err != nil {
		return err
	}
	seq, ok := mappingValue(top, projectsKey)
	if !ok || seq.Kind == 0 || seq.Tag == "!!null" {
		fresh := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		if ok {
			// Key exists with a null value: replace the value in place.
			for i := 0; i+1 < len(top.Content); i += 2 {
				if top.Content[i].Value == projectsKey {
					top.Content[i+1] = fresh
				}
			}
		} else {
			top.Content = append(top.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: projectsKey},
				fresh,
			)
		}
		seq = fresh
	}
	seq.Content = append(seq.Content, node)
	d.dirty = true
	return nil
}

func (d *yamlDocument) RemoveRecordAt(i int) error {
	seq := d.projects()
	if seq == nil || i < 0 || i >= len(seq.Content) {
		return fmt.Errorf("record index %d: %w", i, apperr.ErrNotFound)
	}
	seq.Content = append(seq.Content[:i], seq.Content[i+1:]...)
	d.dirty = true
	return nil
}

func (d *yamlDocument) Config() map[string]interface{} {
	top, err := d.mapping()
	if err != nil {
		return nil
	}
	v, ok := mappingValue(top, configKey)
	if !ok {
		return nil
	}
	var cfg map[string]interface{}
	if err := v.Decode(&cfg); err != nil {
		return nil
	}
	return cfg
}

func (d *yamlDocument) Serialize() ([]byte, error) {
	// An untouched document is the source file: hand those bytes back rather
	// than re-emitting, which would normalize indentation and line wrapping.
	if !d.dirty && len(d.src) > 0 {
		return append([]byte(nil), d.src...), nil
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(d.indent)
	if err := enc.Encode(d.root); err != nil {
		return nil, fmt.Errorf("document: serialize yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("document: serialize yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// buildRecordNode encodes a project into a fresh mapping node and forces
// double-quoted style onto every date-shaped scalar inside it. An untouched
// node keeps whatever quoting the file already had; only rebuilt nodes need
// the explicit style or an unquoted 2024-01-15 would re-enter the file as a
// YAML timestamp.
func buildRecordNode(p models.Project) (*yaml.Node, error) {
	node := &yaml.Node{}
	if err := node.Encode(p); err != nil {
		return nil, fmt.Errorf("document: encode record %q: %w", p.ID, err)
	}
	quoteDates(node)
	return node, nil
}

func quoteDates(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode && models.DateRe.MatchString(n.Value) {
		n.Style = yaml.DoubleQuotedStyle
		n.Tag = "!!str"
		return
	}
	for _, c := range n.Content {
		quoteDates(c)
	}
}
