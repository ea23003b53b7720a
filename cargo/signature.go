package cargo

import (
	"encoding/json"
	"strings"

	"github.com/fwojciec/cratedoc"
)

// signature renders a one-line declaration for item from its inner body.
func signature(item *cratedoc.Item, body json.RawMessage) string {
	prefix := ""
	if item.Visibility != "" {
		prefix = item.Visibility + " "
	}
	switch item.Kind {
	case "function":
		return prefix + functionSignature(item.Name, body)
	case "struct", "enum", "union", "trait", "type_alias":
		keyword := item.Kind
		if keyword == "type_alias" {
			keyword = "type"
		}
		return prefix + keyword + " " + item.Name + genericParams(body)
	case "constant", "static":
		var v struct {
			Type json.RawMessage `json:"type"`
		}
		keyword := "const"
		if item.Kind == "static" {
			keyword = "static"
		}
		if json.Unmarshal(body, &v) == nil && len(v.Type) > 0 {
			return prefix + keyword + " " + item.Name + ": " + renderType(v.Type)
		}
		return prefix + keyword + " " + item.Name
	case "struct_field":
		return prefix + item.Name + ": " + renderType(body)
	case "macro":
		return "macro_rules! " + item.Name
	case "module":
		return prefix + "mod " + item.Name
	default:
		return ""
	}
}

type rustdocFunction struct {
	Sig    *rustdocFnSig `json:"sig"`
	Decl   *rustdocFnSig `json:"decl"`
	Header struct {
		IsConst  bool `json:"is_const"`
		IsUnsafe bool `json:"is_unsafe"`
		IsAsync  bool `json:"is_async"`
		Const    bool `json:"const"`
		Unsafe   bool `json:"unsafe"`
		Async    bool `json:"async"`
	} `json:"header"`
	Generics json.RawMessage `json:"generics"`
}

type rustdocFnSig struct {
	Inputs []json.RawMessage `json:"inputs"`
	Output json.RawMessage   `json:"output"`
}

func functionSignature(name string, body json.RawMessage) string {
	var fn rustdocFunction
	if json.Unmarshal(body, &fn) != nil {
		return "fn " + name + "()"
	}

	var b strings.Builder
	if fn.Header.IsConst || fn.Header.Const {
		b.WriteString("const ")
	}
	if fn.Header.IsAsync || fn.Header.Async {
		b.WriteString("async ")
	}
	if fn.Header.IsUnsafe || fn.Header.Unsafe {
		b.WriteString("unsafe ")
	}
	b.WriteString("fn ")
	b.WriteString(name)
	b.WriteString(genericParams(body))

	sig := fn.Sig
	if sig == nil {
		sig = fn.Decl
	}
	b.WriteString("(")
	if sig != nil {
		for i, input := range sig.Inputs {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(renderInput(input))
		}
	}
	b.WriteString(")")
	if sig != nil && len(sig.Output) > 0 && string(sig.Output) != "null" {
		b.WriteString(" -> ")
		b.WriteString(renderType(sig.Output))
	}
	return b.String()
}

// renderInput renders a [name, type] pair; self receivers collapse to
// their short forms.
func renderInput(raw json.RawMessage) string {
	var pair []json.RawMessage
	if json.Unmarshal(raw, &pair) != nil || len(pair) != 2 {
		return "_"
	}
	var name string
	_ = json.Unmarshal(pair[0], &name)
	typ := renderType(pair[1])
	if name == "self" {
		switch typ {
		case "Self":
			return "self"
		case "&Self":
			return "&self"
		case "&mut Self":
			return "&mut self"
		}
	}
	return name + ": " + typ
}

// genericParams renders the parameter names of a generics block.
func genericParams(body json.RawMessage) string {
	var v struct {
		Generics struct {
			Params []struct {
				Name string `json:"name"`
			} `json:"params"`
		} `json:"generics"`
	}
	if json.Unmarshal(body, &v) != nil || len(v.Generics.Params) == 0 {
		return ""
	}
	names := make([]string, 0, len(v.Generics.Params))
	for _, p := range v.Generics.Params {
		if strings.HasPrefix(p.Name, "impl ") {
			continue
		}
		names = append(names, p.Name)
	}
	if len(names) == 0 {
		return ""
	}
	return "<" + strings.Join(names, ", ") + ">"
}

// renderType renders a rustdoc type tree as Rust syntax. Unknown shapes
// render as "_".
func renderType(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var t map[string]json.RawMessage
	if json.Unmarshal(raw, &t) != nil {
		return "_"
	}
	for kind, v := range t {
		switch kind {
		case "primitive", "generic":
			var name string
			_ = json.Unmarshal(v, &name)
			return name
		case "resolved_path":
			return renderPath(v)
		case "borrowed_ref":
			var r struct {
				Lifetime  *string         `json:"lifetime"`
				IsMutable bool            `json:"is_mutable"`
				Mutable   bool            `json:"mutable"`
				Type      json.RawMessage `json:"type"`
			}
			_ = json.Unmarshal(v, &r)
			out := "&"
			if r.Lifetime != nil {
				out += *r.Lifetime + " "
			}
			if r.IsMutable || r.Mutable {
				out += "mut "
			}
			return out + renderType(r.Type)
		case "raw_pointer":
			var r struct {
				IsMutable bool            `json:"is_mutable"`
				Mutable   bool            `json:"mutable"`
				Type      json.RawMessage `json:"type"`
			}
			_ = json.Unmarshal(v, &r)
			if r.IsMutable || r.Mutable {
				return "*mut " + renderType(r.Type)
			}
			return "*const " + renderType(r.Type)
		case "slice":
			return "[" + renderType(v) + "]"
		case "array":
			var a struct {
				Type json.RawMessage `json:"type"`
				Len  string          `json:"len"`
			}
			_ = json.Unmarshal(v, &a)
			return "[" + renderType(a.Type) + "; " + a.Len + "]"
		case "tuple":
			var elems []json.RawMessage
			_ = json.Unmarshal(v, &elems)
			parts := make([]string, 0, len(elems))
			for _, e := range elems {
				parts = append(parts, renderType(e))
			}
			return "(" + strings.Join(parts, ", ") + ")"
		case "impl_trait":
			return "impl " + renderBounds(v)
		case "dyn_trait":
			var d struct {
				Traits []struct {
					Trait json.RawMessage `json:"trait"`
				} `json:"traits"`
			}
			_ = json.Unmarshal(v, &d)
			parts := make([]string, 0, len(d.Traits))
			for _, tr := range d.Traits {
				parts = append(parts, renderPath(tr.Trait))
			}
			return "dyn " + strings.Join(parts, " + ")
		case "qualified_path":
			var q struct {
				Name     string          `json:"name"`
				SelfType json.RawMessage `json:"self_type"`
			}
			_ = json.Unmarshal(v, &q)
			return renderType(q.SelfType) + "::" + q.Name
		case "function_pointer":
			return "fn(..)"
		case "infer":
			return "_"
		}
	}
	return "_"
}

func renderPath(raw json.RawMessage) string {
	var p struct {
		Path string `json:"path"`
		Name string `json:"name"`
		Args *struct {
			AngleBracketed *struct {
				Args []map[string]json.RawMessage `json:"args"`
			} `json:"angle_bracketed"`
		} `json:"args"`
	}
	if json.Unmarshal(raw, &p) != nil {
		return "_"
	}
	name := p.Path
	if name == "" {
		name = p.Name
	}
	if p.Args == nil || p.Args.AngleBracketed == nil || len(p.Args.AngleBracketed.Args) == 0 {
		return name
	}
	var args []string
	for _, arg := range p.Args.AngleBracketed.Args {
		if t, ok := arg["type"]; ok {
			args = append(args, renderType(t))
		} else if l, ok := arg["lifetime"]; ok {
			var s string
			_ = json.Unmarshal(l, &s)
			args = append(args, s)
		}
	}
	if len(args) == 0 {
		return name
	}
	return name + "<" + strings.Join(args, ", ") + ">"
}

func renderBounds(raw json.RawMessage) string {
	var bounds []struct {
		TraitBound *struct {
			Trait json.RawMessage `json:"trait"`
		} `json:"trait_bound"`
		Outlives *string `json:"outlives"`
	}
	if json.Unmarshal(raw, &bounds) != nil {
		return "_"
	}
	parts := make([]string, 0, len(bounds))
	for _, b := range bounds {
		switch {
		case b.TraitBound != nil:
			parts = append(parts, renderPath(b.TraitBound.Trait))
		case b.Outlives != nil:
			parts = append(parts, *b.Outlives)
		}
	}
	return strings.Join(parts, " + ")
}
