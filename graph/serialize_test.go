package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iden3/circom-witnesscalc/field"
)

func codecGraph() *Graph {
	g := &Graph{
		NbInputs: 3,
		Inputs: map[string]SignalRange{
			"a":  {Offset: 1, Len: 1},
			"xs": {Offset: 2, Len: 1},
		},
	}
	g.Nodes = append(g.Nodes, Input(0))
	g.Nodes = append(g.Nodes, Input(1))
	g.Nodes = append(g.Nodes, Input(2))
	g.Nodes = append(g.Nodes, Constant(field.NewElement(7)))
	g.Nodes = append(g.Nodes, Unary(OpNeg, 1))
	g.Nodes = append(g.Nodes, Binary(OpMul, 1, 2))
	g.Nodes = append(g.Nodes, Ternary(1, 4, 5))
	g.Nodes = append(g.Nodes, Mux(2, []int{3, 5, 6}))
	g.Nodes = append(g.Nodes, Binary(OpNeq, 7, 3))
	g.Witness = []int{0, 7, 1, 2}
	g.Assertions = []int{8}
	return g
}

func TestSerializeRoundTrip(t *testing.T) {
	g := codecGraph()
	require.NoError(t, g.Validate())

	data := g.Serialize()
	got, err := Deserialize(data)
	require.NoError(t, err)
	require.Equal(t, g, got)
}

func TestSerializeDeterministic(t *testing.T) {
	g := codecGraph()
	require.Equal(t, g.Serialize(), g.Serialize())
}

func TestDeserializeBadMagic(t *testing.T) {
	data := codecGraph().Serialize()
	data[0] ^= 0xff
	_, err := Deserialize(data)
	require.True(t, errors.Is(err, ErrMalformedGraph))
}

func TestDeserializeBadVersion(t *testing.T) {
	data := codecGraph().Serialize()
	data[8] = 0xfe // version field follows the u64 magic
	_, err := Deserialize(data)
	require.True(t, errors.Is(err, ErrUnsupportedGraphVersion))
}

func TestDeserializeFieldMismatch(t *testing.T) {
	data := codecGraph().Serialize()
	data[12] ^= 0x01 // low byte of the modulus
	_, err := Deserialize(data)
	require.True(t, errors.Is(err, ErrFieldMismatch))
}

func TestDeserializeTruncated(t *testing.T) {
	data := codecGraph().Serialize()
	for _, n := range []int{0, 5, 11, 40, len(data) / 2, len(data) - 1} {
		_, err := Deserialize(data[:n])
		require.Error(t, err, "prefix of %d bytes", n)
		require.False(t, errors.Is(err, ErrFieldMismatch))
	}
}

func TestDeserializeRejectsBadOperatorTag(t *testing.T) {
	g := &Graph{NbInputs: 1}
	g.Nodes = append(g.Nodes, Input(0))
	g.Nodes = append(g.Nodes, Unary(OpNeg, 0))
	g.Witness = []int{1}
	data := g.Serialize()
	// the unary node's operator tag sits just before its u64 operand and
	// the 24-byte assertion and witness tail
	data[len(data)-33] = 0xee
	_, err := Deserialize(data)
	require.True(t, errors.Is(err, ErrMalformedGraph))
}

func TestDeserializeRejectsForwardReference(t *testing.T) {
	g := &Graph{NbInputs: 1}
	g.Nodes = append(g.Nodes, Input(0))
	g.Nodes = append(g.Nodes, Binary(OpAdd, 0, 5))
	g.Witness = []int{1}
	// Serialize does not validate; Deserialize must
	_, err := Deserialize(g.Serialize())
	require.True(t, errors.Is(err, ErrMalformedGraph))
}
