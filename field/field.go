// Package field is the arithmetic substrate for graph building and
// evaluation: the BN254 scalar field, backed by gnark-crypto's fr.Element.
//
// Besides the plain field operations it provides the circom flavored
// operations that act on the canonical (non-Montgomery) representation of an
// element: integer division, modulo, shifts, bitwise operations under the
// 254-bit field width, and signed comparisons. A field has no total order
// compatible with its arithmetic, so comparisons interpret an element x as
// the signed integer x when x <= (p-1)/2 and x-p otherwise.
package field

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Element is a BN254 scalar field element in Montgomery form.
type Element = fr.Element

// Bytes is the fixed encoding width of an element.
const Bytes = fr.Bytes

// NbBits is the bit length of the modulus.
const NbBits = fr.Bits

var (
	qHalf   *big.Int // (p-1)/2, split point of the signed interpretation
	bitMask *big.Int // 2^NbBits - 1
)

func init() {
	qHalf = new(big.Int).Sub(Modulus(), big.NewInt(1))
	qHalf.Rsh(qHalf, 1)
	bitMask = new(big.Int).Lsh(big.NewInt(1), NbBits)
	bitMask.Sub(bitMask, big.NewInt(1))
}

// Modulus returns a fresh copy of the field modulus p.
func Modulus() *big.Int {
	return fr.Modulus()
}

func Zero() Element {
	return Element{}
}

func One() Element {
	return fr.One()
}

// NewElement returns the element representing x.
func NewElement(x uint64) Element {
	var e Element
	e.SetUint64(x)
	return e
}

// FromBigInt converts x to an element. It reports false when x is negative or
// not strictly below the modulus; no reduction is performed.
func FromBigInt(x *big.Int) (Element, bool) {
	if x.Sign() < 0 || x.Cmp(fr.Modulus()) >= 0 {
		return Element{}, false
	}
	var e Element
	e.SetBigInt(x)
	return e, true
}

// FromDecimalString parses a base-10 unsigned integer strictly below the
// modulus.
func FromDecimalString(s string) (Element, bool) {
	x, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Element{}, false
	}
	return FromBigInt(x)
}

// ToBigInt returns the canonical representation of e.
func ToBigInt(e Element) *big.Int {
	var x big.Int
	e.BigInt(&x)
	return &x
}

// ToSigned maps e to its signed interpretation: the canonical value x when
// x <= (p-1)/2, x-p otherwise.
func ToSigned(e Element) *big.Int {
	x := ToBigInt(e)
	if x.Cmp(qHalf) > 0 {
		x.Sub(x, fr.Modulus())
	}
	return x
}

// CmpSigned compares a and b under the signed interpretation.
func CmpSigned(a, b Element) int {
	return ToSigned(a).Cmp(ToSigned(b))
}

func Add(a, b Element) Element {
	var r Element
	r.Add(&a, &b)
	return r
}

func Sub(a, b Element) Element {
	var r Element
	r.Sub(&a, &b)
	return r
}

func Mul(a, b Element) Element {
	var r Element
	r.Mul(&a, &b)
	return r
}

func Neg(a Element) Element {
	var r Element
	r.Neg(&a)
	return r
}

// Inverse returns the multiplicative inverse of a. It reports false when a is
// the additive identity.
func Inverse(a Element) (Element, bool) {
	if a.IsZero() {
		return Element{}, false
	}
	var r Element
	r.Inverse(&a)
	return r, true
}

// Div returns a * b^-1. It reports false when b is the additive identity.
func Div(a, b Element) (Element, bool) {
	inv, ok := Inverse(b)
	if !ok {
		return Element{}, false
	}
	return Mul(a, inv), true
}

// Exp raises a to the canonical value of b, by square-and-multiply.
func Exp(a, b Element) Element {
	var r Element
	r.Exp(a, ToBigInt(b))
	return r
}

// IntDiv returns the integer quotient of the canonical representations.
// It reports false when b is zero.
func IntDiv(a, b Element) (Element, bool) {
	bi := ToBigInt(b)
	if bi.Sign() == 0 {
		return Element{}, false
	}
	q := new(big.Int).Quo(ToBigInt(a), bi)
	var r Element
	r.SetBigInt(q)
	return r, true
}

// Rem returns the remainder of integer division of the canonical
// representations. It reports false when b is zero.
func Rem(a, b Element) (Element, bool) {
	bi := ToBigInt(b)
	if bi.Sign() == 0 {
		return Element{}, false
	}
	m := new(big.Int).Rem(ToBigInt(a), bi)
	var r Element
	r.SetBigInt(m)
	return r, true
}

// Shl shifts the canonical value of a left by b bits, reduced into the field.
// Shift amounts of NbBits or more yield zero.
func Shl(a, b Element) Element {
	n, ok := shiftAmount(b)
	if !ok {
		return Element{}
	}
	x := new(big.Int).Lsh(ToBigInt(a), n)
	x.Mod(x, fr.Modulus())
	var r Element
	r.SetBigInt(x)
	return r
}

// Shr shifts the canonical value of a right by b bits. Shift amounts of
// NbBits or more yield zero.
func Shr(a, b Element) Element {
	n, ok := shiftAmount(b)
	if !ok {
		return Element{}
	}
	x := new(big.Int).Rsh(ToBigInt(a), n)
	var r Element
	r.SetBigInt(x)
	return r
}

func shiftAmount(b Element) (uint, bool) {
	bi := ToBigInt(b)
	if bi.Cmp(big.NewInt(NbBits)) >= 0 {
		return 0, false
	}
	return uint(bi.Uint64()), true
}

func Band(a, b Element) Element {
	x := new(big.Int).And(ToBigInt(a), ToBigInt(b))
	var r Element
	r.SetBigInt(x)
	return r
}

func Bor(a, b Element) Element {
	x := new(big.Int).Or(ToBigInt(a), ToBigInt(b))
	x.Mod(x, fr.Modulus())
	var r Element
	r.SetBigInt(x)
	return r
}

func Bxor(a, b Element) Element {
	x := new(big.Int).Xor(ToBigInt(a), ToBigInt(b))
	x.Mod(x, fr.Modulus())
	var r Element
	r.SetBigInt(x)
	return r
}

// Bnot complements the canonical value of a under the field's bit width and
// reduces into the field.
func Bnot(a Element) Element {
	x := new(big.Int).Sub(bitMask, ToBigInt(a))
	x.Mod(x, fr.Modulus())
	var r Element
	r.SetBigInt(x)
	return r
}

func boolElement(b bool) Element {
	if b {
		return One()
	}
	return Element{}
}

func Eq(a, b Element) Element  { return boolElement(a.Equal(&b)) }
func Neq(a, b Element) Element { return boolElement(!a.Equal(&b)) }

// Lt and friends compare under the signed interpretation.
func Lt(a, b Element) Element  { return boolElement(CmpSigned(a, b) < 0) }
func Gt(a, b Element) Element  { return boolElement(CmpSigned(a, b) > 0) }
func Leq(a, b Element) Element { return boolElement(CmpSigned(a, b) <= 0) }
func Geq(a, b Element) Element { return boolElement(CmpSigned(a, b) >= 0) }

func Land(a, b Element) Element { return boolElement(!a.IsZero() && !b.IsZero()) }
func Lor(a, b Element) Element  { return boolElement(!a.IsZero() || !b.IsZero()) }
func Lnot(a Element) Element    { return boolElement(a.IsZero()) }

// ToLEBytes encodes the canonical value of e as Bytes little-endian bytes.
func ToLEBytes(e Element) []byte {
	be := e.Bytes()
	le := make([]byte, Bytes)
	for i := 0; i < Bytes; i++ {
		le[i] = be[Bytes-1-i]
	}
	return le
}

// FromLEBytes decodes a Bytes-wide little-endian encoding. It reports false
// when the value is not strictly below the modulus.
func FromLEBytes(b []byte) (Element, bool) {
	if len(b) != Bytes {
		return Element{}, false
	}
	be := make([]byte, Bytes)
	for i := 0; i < Bytes; i++ {
		be[i] = b[Bytes-1-i]
	}
	return FromBigInt(new(big.Int).SetBytes(be))
}
