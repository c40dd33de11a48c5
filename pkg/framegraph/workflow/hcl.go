package workflow

import (
	"fmt"
	"maps"
	"math/big"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

type hclFile struct {
	Name  string         `hcl:"name,optional"`
	Vars  hcl.Expression `hcl:"vars,optional"`
	Nodes []hclNode      `hcl:"node,block"`
	Edges []hclEdge      `hcl:"edge,block"`
}

type hclNode struct {
	ID     string         `hcl:"id,label"`
	Type   string         `hcl:"type"`
	Params hcl.Expression `hcl:"params,optional"`
}

type hclEdge struct {
	From string `hcl:"from"`
	To   string `hcl:"to"`
}

// parseHCL decodes node and edge blocks. Parameter expressions may reference
// var.<name>, resolved from the file's vars overridden by vars.
func parseHCL(data []byte, filename string, vars map[string]any) (*Document, error) {
	if filename == "" {
		filename = "workflow.hcl"
	}
	file, diags := hclparse.NewParser().ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, diags
	}

	var f hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &f); diags.HasErrors() {
		return nil, diags
	}

	doc := &Document{Name: f.Name}
	fileVars, err := evalMap(f.Vars, nil)
	if err != nil {
		return nil, fmt.Errorf("vars: %w", err)
	}
	doc.Vars = fileVars

	merged := map[string]any{}
	maps.Copy(merged, fileVars)
	maps.Copy(merged, vars)
	varVal, err := nativeToCty(merged)
	if err != nil {
		return nil, fmt.Errorf("vars: %w", err)
	}
	ctx := &hcl.EvalContext{Variables: map[string]cty.Value{"var": varVal}}

	for _, n := range f.Nodes {
		params, err := evalMap(n.Params, ctx)
		if err != nil {
			return nil, fmt.Errorf("node %s: params: %w", n.ID, err)
		}
		doc.Nodes = append(doc.Nodes, NodeSpec{ID: n.ID, Type: n.Type, Params: params})
	}
	for i, e := range f.Edges {
		src, srcPort, ok1 := splitEndpoint(e.From)
		dst, dstPort, ok2 := splitEndpoint(e.To)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf(`edge %d: endpoints must look like "node.port", got %q -> %q`, i, e.From, e.To)
		}
		doc.Edges = append(doc.Edges, EdgeSpec{Source: src, SourcePort: srcPort, Target: dst, TargetPort: dstPort})
	}
	return doc, nil
}

// splitEndpoint splits "node.port" at the last dot.
func splitEndpoint(s string) (node, port string, ok bool) {
	i := strings.LastIndexByte(s, '.')
	if i <= 0 || i == len(s)-1 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

// evalMap evaluates an optional object expression into a Go map.
func evalMap(expr hcl.Expression, ctx *hcl.EvalContext) (map[string]any, error) {
	if expr == nil {
		return nil, nil
	}
	v, diags := expr.Value(ctx)
	if diags.HasErrors() {
		return nil, diags
	}
	if v.IsNull() {
		return nil, nil
	}
	if !v.Type().IsObjectType() && !v.Type().IsMapType() {
		return nil, fmt.Errorf("expected an object, got %s", v.Type().FriendlyName())
	}
	native, err := ctyToNative(v)
	if err != nil {
		return nil, err
	}
	return native.(map[string]any), nil
}

// ctyToNative converts a cty value to plain Go values. Whole numbers become
// int so they satisfy integer options.
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}
	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil
	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return int(i), nil
			}
		}
		f, _ := bf.Float64()
		return f, nil
	case ty == cty.Bool:
		return v.True(), nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			nv, err := ctyToNative(ev)
			if err != nil {
				return nil, err
			}
			out = append(out, nv)
		}
		return out, nil
	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			nv, err := ctyToNative(ev)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k.AsString(), err)
			}
			out[k.AsString()] = nv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
	}
}

func nativeToCty(v any) (cty.Value, error) {
	switch val := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case string:
		return cty.StringVal(val), nil
	case bool:
		return cty.BoolVal(val), nil
	case int:
		return cty.NumberIntVal(int64(val)), nil
	case int64:
		return cty.NumberIntVal(val), nil
	case float64:
		return cty.NumberFloatVal(val), nil
	case []any:
		if len(val) == 0 {
			return cty.EmptyTupleVal, nil
		}
		elems := make([]cty.Value, len(val))
		for i, e := range val {
			ev, err := nativeToCty(e)
			if err != nil {
				return cty.NilVal, err
			}
			elems[i] = ev
		}
		return cty.TupleVal(elems), nil
	case map[string]any:
		if len(val) == 0 {
			return cty.EmptyObjectVal, nil
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		attrs := make(map[string]cty.Value, len(val))
		for _, k := range keys {
			ev, err := nativeToCty(val[k])
			if err != nil {
				return cty.NilVal, fmt.Errorf("%s: %w", k, err)
			}
			attrs[k] = ev
		}
		return cty.ObjectVal(attrs), nil
	default:
		return cty.NilVal, fmt.Errorf("unsupported value type %T", v)
	}
}
