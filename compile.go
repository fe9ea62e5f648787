// Package witnesscalc compiles circuit descriptions into operation graphs
// and evaluates witnesses from them.
//
// The two halves of the library are independent: BuildGraph runs once per
// circuit and produces a serialized graph artifact, CalcWitness runs once
// per proof against that artifact and a set of JSON inputs. A deserialized
// graph is immutable and safe to share between concurrent evaluations.
package witnesscalc

import (
	"github.com/consensys/gnark/logger"

	"github.com/iden3/circom-witnesscalc/builder"
	"github.com/iden3/circom-witnesscalc/graph"
	"github.com/iden3/circom-witnesscalc/ir"
)

// Option adjusts compilation or evaluation behavior.
type Option func(*config)

type config struct {
	noOptimize   bool
	strictInputs bool
}

// WithoutOptimization skips the fixed-point optimizer, keeping the raw
// graph the builder produced. Mainly useful to inspect lowering output.
func WithoutOptimization() Option {
	return func(c *config) { c.noOptimize = true }
}

// WithStrictInputs makes evaluation reject provided inputs the circuit does
// not declare instead of ignoring them.
func WithStrictInputs() Option {
	return func(c *config) { c.strictInputs = true }
}

func newConfig(opts []Option) *config {
	c := &config{}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BuildGraph compiles the circuit into an optimized operation graph.
func BuildGraph(prog *ir.Program, opts ...Option) (*graph.Graph, error) {
	cfg := newConfig(opts)
	g, err := builder.Build(prog)
	if err != nil {
		return nil, err
	}
	if cfg.noOptimize {
		return g, nil
	}
	return graph.Optimize(g)
}

// Compile builds, optimizes and serializes the circuit in one step,
// returning the graph artifact CalcWitness consumes.
func Compile(prog *ir.Program, opts ...Option) ([]byte, error) {
	g, err := BuildGraph(prog, opts...)
	if err != nil {
		return nil, err
	}
	log := logger.Logger()
	data := g.Serialize()
	log.Debug().Int("bytes", len(data)).Msg("graph serialized")
	return data, nil
}
