package utils

import (
	"encoding/binary"
	"io"
	"math/big"
)

// OutputBuf accumulates little-endian binary output. The zero value is ready
// to use.
type OutputBuf struct {
	buf []byte
}

func (o *OutputBuf) AppendUint8(x uint8) {
	o.buf = append(o.buf, x)
}

func (o *OutputBuf) AppendUint32(x uint32) {
	o.buf = binary.LittleEndian.AppendUint32(o.buf, x)
}

func (o *OutputBuf) AppendUint64(x uint64) {
	o.buf = binary.LittleEndian.AppendUint64(o.buf, x)
}

// AppendBigInt appends x as a fixed-width little-endian integer of n bytes.
func (o *OutputBuf) AppendBigInt(n int, x *big.Int) {
	zbuf := make([]byte, n)
	b := x.Bytes()
	for i := 0; i < len(b); i++ {
		zbuf[i] = b[len(b)-i-1]
	}
	o.buf = append(o.buf, zbuf...)
}

// AppendString appends a uint32 length prefix followed by the raw bytes.
func (o *OutputBuf) AppendString(s string) {
	o.AppendUint32(uint32(len(s)))
	o.buf = append(o.buf, s...)
}

func (o *OutputBuf) Bytes() []byte {
	return o.buf
}

// InputBuf reads little-endian binary data written by OutputBuf. Reads past
// the end of the buffer record a sticky error and return zero values; check
// Err once after a group of reads.
type InputBuf struct {
	buf []byte
	err error
}

func NewInputBuf(buf []byte) *InputBuf {
	return &InputBuf{buf: buf}
}

func (in *InputBuf) take(n int) []byte {
	if in.err != nil {
		return nil
	}
	if len(in.buf) < n {
		in.err = io.ErrUnexpectedEOF
		return nil
	}
	b := in.buf[:n]
	in.buf = in.buf[n:]
	return b
}

func (in *InputBuf) ReadUint8() uint8 {
	b := in.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (in *InputBuf) ReadUint32() uint32 {
	b := in.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (in *InputBuf) ReadUint64() uint64 {
	b := in.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// ReadBigInt reads a fixed-width little-endian integer of n bytes.
func (in *InputBuf) ReadBigInt(n int) *big.Int {
	b := in.take(n)
	if b == nil {
		return new(big.Int)
	}
	zbuf := make([]byte, n)
	for j := 0; j < n; j++ {
		zbuf[j] = b[n-1-j]
	}
	return new(big.Int).SetBytes(zbuf)
}

func (in *InputBuf) ReadString() string {
	n := in.ReadUint32()
	b := in.take(int(n))
	if b == nil {
		return ""
	}
	return string(b)
}

// Remaining reports the number of unread bytes.
func (in *InputBuf) Remaining() int {
	return len(in.buf)
}

func (in *InputBuf) Err() error {
	return in.err
}
