package witness

import (
	"github.com/iden3/circom-witnesscalc/field"
	"github.com/iden3/circom-witnesscalc/graph"
	"github.com/iden3/circom-witnesscalc/utils"
)

// wtns container: magic, version, section count, then a header section
// carrying the element width, the field modulus and the element count,
// followed by a data section with the elements as fixed-width little-endian
// integers.
const (
	wtnsMagic   = 0x736e7477 // "wtns"
	wtnsVersion = 2

	sectionHeader = 1
	sectionData   = 2
)

// EncodeWTNS encodes the witness vector in the wtns container format.
func EncodeWTNS(values []field.Element) []byte {
	o := &utils.OutputBuf{}
	o.AppendUint32(wtnsMagic)
	o.AppendUint32(wtnsVersion)
	o.AppendUint32(2)
	o.AppendUint32(sectionHeader)
	o.AppendUint64(uint64(8 + field.Bytes))
	o.AppendUint32(uint32(field.Bytes))
	o.AppendBigInt(field.Bytes, field.Modulus())
	o.AppendUint32(uint32(len(values)))
	o.AppendUint32(sectionData)
	o.AppendUint64(uint64(len(values) * field.Bytes))
	for _, v := range values {
		o.AppendBigInt(field.Bytes, field.ToBigInt(v))
	}
	return o.Bytes()
}

// DecodeWTNS decodes a wtns container produced by EncodeWTNS.
func DecodeWTNS(data []byte) ([]field.Element, error) {
	in := utils.NewInputBuf(data)
	if in.ReadUint32() != wtnsMagic {
		return nil, graph.Errorf(graph.CodeMalformedGraph, "not a wtns file")
	}
	if v := in.ReadUint32(); v != wtnsVersion {
		return nil, graph.Errorf(graph.CodeUnsupportedGraphVersion, "wtns version %d, want %d", v, wtnsVersion)
	}
	if n := in.ReadUint32(); n != 2 {
		return nil, graph.Errorf(graph.CodeMalformedGraph, "wtns with %d sections", n)
	}
	if id := in.ReadUint32(); id != sectionHeader {
		return nil, graph.Errorf(graph.CodeMalformedGraph, "unexpected wtns section %d", id)
	}
	in.ReadUint64()
	if n8 := in.ReadUint32(); n8 != field.Bytes {
		return nil, graph.Errorf(graph.CodeFieldMismatch, "wtns element width %d, want %d", n8, field.Bytes)
	}
	if in.ReadBigInt(field.Bytes).Cmp(field.Modulus()) != 0 {
		return nil, graph.Errorf(graph.CodeFieldMismatch, "wtns field modulus differs")
	}
	count := in.ReadUint32()
	if id := in.ReadUint32(); id != sectionData {
		return nil, graph.Errorf(graph.CodeMalformedGraph, "unexpected wtns section %d", id)
	}
	in.ReadUint64()
	if in.Err() != nil || in.Remaining() != int(count)*field.Bytes {
		return nil, graph.Errorf(graph.CodeMalformedGraph, "truncated wtns file")
	}
	values := make([]field.Element, count)
	for i := range values {
		e, ok := field.FromBigInt(in.ReadBigInt(field.Bytes))
		if !ok {
			return nil, graph.Errorf(graph.CodeMalformedGraph, "wtns element %d out of field range", i)
		}
		values[i] = e
	}
	return values, nil
}
