// Package witness binds named JSON inputs to a compiled graph's input
// vector and encodes the resulting witness in the wtns container format.
package witness

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/iden3/circom-witnesscalc/field"
	"github.com/iden3/circom-witnesscalc/graph"
)

// ParseInputs decodes a JSON object mapping input-signal names to values. A
// value is a decimal string, a number, or an arbitrarily nested array of
// those; arrays flatten row-major.
func ParseInputs(data []byte) (map[string][]field.Element, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, graph.Errorf(graph.CodeUnknown, "inputs are not a JSON object: %v", err)
	}
	out := make(map[string][]field.Element, len(raw))
	for name, v := range raw {
		vals, err := flattenValue(name, v, nil)
		if err != nil {
			return nil, err
		}
		out[name] = vals
	}
	return out, nil
}

func flattenValue(name string, v interface{}, acc []field.Element) ([]field.Element, error) {
	switch v := v.(type) {
	case string:
		e, ok := field.FromDecimalString(v)
		if !ok {
			return nil, signalErr(graph.CodeInputOutOfRange, name, "value %q is not a field element", v)
		}
		return append(acc, e), nil
	case json.Number:
		e, ok := field.FromDecimalString(v.String())
		if !ok {
			return nil, signalErr(graph.CodeInputOutOfRange, name, "value %s is not a field element", v)
		}
		return append(acc, e), nil
	case []interface{}:
		var err error
		for _, x := range v {
			acc, err = flattenValue(name, x, acc)
			if err != nil {
				return nil, err
			}
		}
		return acc, nil
	}
	return nil, signalErr(graph.CodeUnknown, name, "unsupported JSON value of type %T", v)
}

// BuildVector flattens named inputs into the graph's input vector. Slot 0
// always carries the constant one. With strict set, a provided name the
// graph does not declare is an error instead of being ignored.
func BuildVector(g *graph.Graph, inputs map[string][]field.Element, strict bool) ([]field.Element, error) {
	vec := make([]field.Element, g.NbInputs)
	vec[0] = field.One()
	for name, r := range g.Inputs {
		vals, ok := inputs[name]
		if !ok {
			return nil, signalErr(graph.CodeMissingInput, name, "required input not provided")
		}
		if len(vals) != r.Len {
			return nil, signalErr(graph.CodeInputOutOfRange, name, "expects %d values, got %d", r.Len, len(vals))
		}
		copy(vec[r.Offset:r.Offset+r.Len], vals)
	}
	if strict {
		var unknown []string
		for name := range inputs {
			if _, ok := g.Inputs[name]; !ok {
				unknown = append(unknown, name)
			}
		}
		if len(unknown) > 0 {
			sort.Strings(unknown)
			return nil, signalErr(graph.CodeUnexpectedInput, unknown[0],
				"inputs not declared by the circuit: %s", strings.Join(unknown, ", "))
		}
	}
	return vec, nil
}

func signalErr(code graph.Code, name, format string, args ...interface{}) *graph.Error {
	e := graph.Errorf(code, format, args...)
	e.Signal = name
	return e
}
