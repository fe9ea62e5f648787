package witnesscalc

import (
	"github.com/iden3/circom-witnesscalc/field"
	"github.com/iden3/circom-witnesscalc/graph"
	"github.com/iden3/circom-witnesscalc/witness"
)

// LoadGraph deserializes a graph artifact produced by Compile.
func LoadGraph(data []byte) (*graph.Graph, error) {
	return graph.Deserialize(data)
}

// CalcWitnessVec evaluates the graph against JSON inputs and returns the
// witness vector. The graph may be shared by concurrent calls.
func CalcWitnessVec(g *graph.Graph, inputsJSON []byte, opts ...Option) ([]field.Element, error) {
	cfg := newConfig(opts)
	inputs, err := witness.ParseInputs(inputsJSON)
	if err != nil {
		return nil, err
	}
	vec, err := witness.BuildVector(g, inputs, cfg.strictInputs)
	if err != nil {
		return nil, err
	}
	return graph.Evaluate(g, vec)
}

// CalcWitness evaluates a serialized graph against JSON inputs and returns
// the witness encoded in the wtns container format.
func CalcWitness(graphData, inputsJSON []byte, opts ...Option) ([]byte, error) {
	g, err := LoadGraph(graphData)
	if err != nil {
		return nil, err
	}
	w, err := CalcWitnessVec(g, inputsJSON, opts...)
	if err != nil {
		return nil, err
	}
	return witness.EncodeWTNS(w), nil
}
