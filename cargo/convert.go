package cargo

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/fwojciec/cratedoc"
)

// rustdocCrate is the top level of rustdoc's JSON output.
type rustdocCrate struct {
	Root          json.RawMessage         `json:"root"`
	CrateVersion  *string                 `json:"crate_version"`
	Index         map[string]*rustdocItem `json:"index"`
	Paths         map[string]*rustdocPath `json:"paths"`
	FormatVersion int                     `json:"format_version"`
}

type rustdocItem struct {
	CrateID    int                        `json:"crate_id"`
	Name       *string                    `json:"name"`
	Span       *rustdocSpan               `json:"span"`
	Visibility json.RawMessage            `json:"visibility"`
	Docs       *string                    `json:"docs"`
	Inner      map[string]json.RawMessage `json:"inner"`
}

type rustdocSpan struct {
	Filename string `json:"filename"`
	Begin    [2]int `json:"begin"`
	End      [2]int `json:"end"`
}

type rustdocPath struct {
	CrateID int      `json:"crate_id"`
	Path    []string `json:"path"`
	Kind    string   `json:"kind"`
}

// rustdocContainer holds the child lists of modules, types, traits and
// impl blocks.
type rustdocContainer struct {
	Items []json.RawMessage `json:"items"`
	Impls []json.RawMessage `json:"impls"`
	For   json.RawMessage   `json:"for"`
}

// ParseRustdoc converts rustdoc JSON into a DocArtifact holding the items
// of the documented crate. Implementation blocks are folded into their
// children, which are addressed through the implementing type.
func ParseRustdoc(data []byte) (*cratedoc.DocArtifact, error) {
	var raw rustdocCrate
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, cratedoc.WrapError(cratedoc.EBUILD, err, "unreadable rustdoc JSON: %s", err)
	}
	if raw.Index == nil {
		return nil, cratedoc.Errorf(cratedoc.EBUILD, "rustdoc JSON has no item index")
	}

	c := &converter{raw: &raw, parents: make(map[string]string), modules: make(map[string]string)}
	root := rawID(raw.Root)
	c.walk(root, "", "")

	doc := &cratedoc.DocArtifact{
		FormatVersion: raw.FormatVersion,
		Root:          root,
		Items:         make(map[string]*cratedoc.Item),
	}
	if raw.CrateVersion != nil {
		doc.Version = *raw.CrateVersion
	}
	if item, ok := raw.Index[root]; ok && item.Name != nil {
		doc.Crate = *item.Name
	}

	for id, item := range raw.Index {
		if item.CrateID != 0 || item.Name == nil {
			continue
		}
		kind := itemKind(item)
		if kind == "" || kind == "impl" || kind == "use" {
			continue
		}
		out := &cratedoc.Item{
			ID:         id,
			Name:       *item.Name,
			Kind:       kind,
			Path:       c.itemPath(id, *item.Name),
			Visibility: visibility(item.Visibility),
			Module:     c.modules[id],
		}
		if item.Docs != nil {
			out.Docs = *item.Docs
		}
		if item.Span != nil {
			out.Span = &cratedoc.Span{
				File:      item.Span.Filename,
				BeginLine: item.Span.Begin[0],
				BeginCol:  item.Span.Begin[1],
				EndLine:   item.Span.End[0],
				EndCol:    item.Span.End[1],
			}
		}
		out.Signature = signature(out, item.Inner[kind])
		doc.Items[id] = out
	}
	return doc, nil
}

// converter records the parent path and owning module of nested items.
type converter struct {
	raw     *rustdocCrate
	parents map[string]string
	modules map[string]string
}

// walk descends from id, which lives at parent inside module.
func (c *converter) walk(id, parent, module string) {
	item, ok := c.raw.Index[id]
	if !ok {
		return
	}
	if _, done := c.modules[id]; done {
		return
	}
	c.modules[id] = module
	if parent != "" {
		c.parents[id] = parent
	}

	kind := itemKind(item)
	var inner rustdocContainer
	if body, ok := item.Inner[kind]; ok {
		_ = json.Unmarshal(body, &inner)
	}

	self := c.itemPath(id, nameOf(item))
	switch kind {
	case "module":
		for _, child := range inner.Items {
			c.walk(rawID(child), self, self)
		}
	case "struct", "enum", "union", "trait":
		for _, child := range inner.Items {
			c.walk(rawID(child), self, module)
		}
		// Struct fields and enum variants are nested one level deeper.
		for _, child := range nestedIDs(item.Inner[kind]) {
			c.walk(child, self, module)
		}
		for _, impl := range inner.Impls {
			c.walk(rawID(impl), self, module)
		}
	case "impl":
		owner := c.implOwner(inner.For, parent)
		for _, child := range inner.Items {
			c.walk(rawID(child), owner, module)
		}
	}
}

// implOwner returns the path of the implementing type.
func (c *converter) implOwner(forType json.RawMessage, fallback string) string {
	var t struct {
		ResolvedPath *struct {
			ID   json.RawMessage `json:"id"`
			Path string          `json:"path"`
			Name string          `json:"name"`
		} `json:"resolved_path"`
	}
	if json.Unmarshal(forType, &t) != nil || t.ResolvedPath == nil {
		return fallback
	}
	if p, ok := c.raw.Paths[rawID(t.ResolvedPath.ID)]; ok && p.CrateID == 0 {
		return strings.Join(p.Path, "::")
	}
	name := t.ResolvedPath.Path
	if name == "" {
		name = t.ResolvedPath.Name
	}
	if fallback == "" {
		return name
	}
	return fallback + "::" + name
}

// itemPath prefers rustdoc's canonical path table.
func (c *converter) itemPath(id, name string) string {
	if p, ok := c.raw.Paths[id]; ok && p.CrateID == 0 && len(p.Path) > 0 {
		return strings.Join(p.Path, "::")
	}
	if parent := c.parents[id]; parent != "" {
		return parent + "::" + name
	}
	return name
}

func nameOf(item *rustdocItem) string {
	if item.Name == nil {
		return ""
	}
	return *item.Name
}

// nestedIDs collects ids from the shapes rustdoc uses for struct fields
// and enum variants.
func nestedIDs(body json.RawMessage) []string {
	var shape struct {
		Variants []json.RawMessage `json:"variants"`
		Fields   []json.RawMessage `json:"fields"`
		Kind     struct {
			Plain *struct {
				Fields []json.RawMessage `json:"fields"`
			} `json:"plain"`
			Tuple []json.RawMessage `json:"tuple"`
		} `json:"kind"`
	}
	if json.Unmarshal(body, &shape) != nil {
		return nil
	}
	var ids []string
	add := func(list []json.RawMessage) {
		for _, raw := range list {
			if id := rawID(raw); id != "" && id != "null" {
				ids = append(ids, id)
			}
		}
	}
	add(shape.Variants)
	add(shape.Fields)
	if shape.Kind.Plain != nil {
		add(shape.Kind.Plain.Fields)
	}
	add(shape.Kind.Tuple)
	return ids
}

// rawID normalizes numeric and string ids to their map key form.
func rawID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

// itemKind returns the single key of an item's inner object.
func itemKind(item *rustdocItem) string {
	for k := range item.Inner {
		return k
	}
	return ""
}

func visibility(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		switch s {
		case "public":
			return "pub"
		case "crate":
			return "pub(crate)"
		default:
			return ""
		}
	}
	var restricted struct {
		Restricted struct {
			Path string `json:"path"`
		} `json:"restricted"`
	}
	if json.Unmarshal(raw, &restricted) == nil && restricted.Restricted.Path != "" {
		return "pub(in " + restricted.Restricted.Path + ")"
	}
	return ""
}
