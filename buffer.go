// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package xwire

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// MaxInt32 and MinInt32 bound the values WriteLength/ReadLength accept,
// matching the wire's 32-bit length fields.
const (
	MaxInt32 = int(math.MaxInt32)
	MinInt32 = int(math.MinInt32)
)

// bufferKind tags which of the three storage variants of §3 backs a
// ByteBuffer. Go has no sum types, so the variant is a plain tag field
// the way context.go distinguishes optional collaborators with nil
// checks rather than an interface hierarchy.
type bufferKind uint8

const (
	ownedKind bufferKind = iota
	vectorKind
	streamKind
)

// ByteBuffer is the random-access byte buffer of the buffer codec (C1):
// fixed-width and IEEE-754 reads/writes, three families of
// variable-length integer codecs, and bounds-checked access that never
// invokes undefined behavior on under-read.
type ByteBuffer struct {
	data         []byte
	readerIndex  int
	writerIndex  int
	kind         bufferKind
	vector       *[]byte      // vectorKind: external growable container
	stream       *StreamReader // streamKind: refill source
}

// NewByteBuffer wraps an existing slice as an owned buffer positioned
// for reading: writerIndex is len(data), readerIndex is 0.
func NewByteBuffer(data []byte) *ByteBuffer {
	return &ByteBuffer{data: data, writerIndex: len(data), kind: ownedKind}
}

// NewByteBufferSize allocates an empty owned buffer with the given
// starting capacity (at least 64 bytes), ready for writing.
func NewByteBufferSize(size int) *ByteBuffer {
	if size < 64 {
		size = 64
	}
	return &ByteBuffer{data: make([]byte, size), kind: ownedKind}
}

// NewVectorByteBuffer wraps a caller-owned growable slice. Growing the
// buffer resizes *vec and republishes its data pointer, per §3's
// vector-wrapped variant.
func NewVectorByteBuffer(vec *[]byte) *ByteBuffer {
	return &ByteBuffer{data: *vec, writerIndex: len(*vec), kind: vectorKind, vector: vec}
}

func newStreamByteBuffer(sr *StreamReader) *ByteBuffer {
	return &ByteBuffer{kind: streamKind, stream: sr}
}

// Reset zeros reader/writer indices for reuse. Capacity is preserved
// for owned/vector buffers.
func (b *ByteBuffer) Reset() {
	b.readerIndex = 0
	b.writerIndex = 0
}

func (b *ByteBuffer) ReaderIndex() int      { return b.readerIndex }
func (b *ByteBuffer) WriterIndex() int      { return b.writerIndex }
func (b *ByteBuffer) SetReaderIndex(i int)  { b.readerIndex = i }
func (b *ByteBuffer) SetWriterIndex(i int)  { b.writerIndex = i }
func (b *ByteBuffer) Len() int              { return b.writerIndex - b.readerIndex }
func (b *ByteBuffer) IncreaseReaderIndex(n int) {
	b.readerIndex += n
}

// grow ensures at least `need` more bytes are writable starting at
// writerIndex. Growth policy: double to at least required, rounded up
// to an 8-byte word boundary. Forbidden for stream-backed buffers,
// which only grow via refill on the read side.
func (b *ByteBuffer) grow(need int) {
	required := b.writerIndex + need
	if required <= len(b.data) {
		return
	}
	newCap := len(b.data)
	if newCap == 0 {
		newCap = 64
	}
	for newCap < required {
		newCap *= 2
	}
	newCap = (newCap + 7) &^ 7

	switch b.kind {
	case streamKind:
		panic("xwire: grow is forbidden on a stream-backed buffer")
	case vectorKind:
		grown := make([]byte, newCap)
		copy(grown, (*b.vector)[:b.writerIndex])
		*b.vector = grown[:b.writerIndex]
		b.data = grown
	default:
		grown := make([]byte, newCap)
		copy(grown, b.data[:b.writerIndex])
		b.data = grown
	}
}

// ensureReadable guarantees n bytes are available at readerIndex,
// triggering a stream refill for stream-backed buffers. It returns a
// BufferOutOfBound error rather than panicking on genuine under-read.
func (b *ByteBuffer) ensureReadable(n int) error {
	if b.readerIndex+n <= b.writerIndex {
		return nil
	}
	if b.kind == streamKind && b.stream != nil {
		if err := b.stream.Fill(n); err != nil {
			return err
		}
		if b.readerIndex+n <= b.writerIndex {
			return nil
		}
	}
	return errBufferOutOfBound(b.readerIndex, n, b.writerIndex-b.readerIndex)
}

// GetByteSlice returns a copy of data[start:end], safe to retain across
// a Reset of this buffer.
func (b *ByteBuffer) GetByteSlice(start, end int) []byte {
	out := make([]byte, end-start)
	copy(out, b.data[start:end])
	return out
}

// Slice returns a sub-buffer sharing storage with b, positioned to read
// length bytes starting at start. Used for meta-message caching of raw
// type_def byte ranges.
func (b *ByteBuffer) Slice(start, length int) *ByteBuffer {
	return &ByteBuffer{data: b.data[start : start+length], writerIndex: length, kind: ownedKind}
}

// PutUint8 is the unsafe fixed-offset write variant: it skips bounds
// checks and is only legal when the caller has pre-reserved via grow.
func (b *ByteBuffer) PutUint8(index int, v byte) { b.data[index] = v }

// Write implements io.Writer, appending p at writerIndex.
func (b *ByteBuffer) Write(p []byte) (int, error) {
	b.WriteBinary(p)
	return len(p), nil
}

// Read implements io.Reader, draining from readerIndex.
func (b *ByteBuffer) Read(p []byte) (int, error) {
	n := b.Len()
	if n == 0 {
		return 0, nil
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, b.data[b.readerIndex:b.readerIndex+n])
	b.readerIndex += n
	return n, nil
}

// ---------------------------------------------------------------------
// Fixed-width primitives
// ---------------------------------------------------------------------

func (b *ByteBuffer) WriteBool(v bool) {
	if v {
		b.WriteByte_(1)
	} else {
		b.WriteByte_(0)
	}
}

func (b *ByteBuffer) ReadBool() bool { return b.ReadByte_() != 0 }

func (b *ByteBuffer) WriteByte_(v byte) {
	b.grow(1)
	b.data[b.writerIndex] = v
	b.writerIndex++
}

func (b *ByteBuffer) ReadByte_() byte {
	if err := b.ensureReadable(1); err != nil {
		panic(err)
	}
	v := b.data[b.readerIndex]
	b.readerIndex++
	return v
}

func (b *ByteBuffer) WriteInt8(v int8) { b.WriteByte_(byte(v)) }
func (b *ByteBuffer) ReadInt8() int8   { return int8(b.ReadByte_()) }

func (b *ByteBuffer) WriteInt16(v int16) {
	b.grow(2)
	binary.LittleEndian.PutUint16(b.data[b.writerIndex:], uint16(v))
	b.writerIndex += 2
}

func (b *ByteBuffer) ReadInt16() int16 {
	if err := b.ensureReadable(2); err != nil {
		panic(err)
	}
	v := int16(binary.LittleEndian.Uint16(b.data[b.readerIndex:]))
	b.readerIndex += 2
	return v
}

func (b *ByteBuffer) WriteInt32(v int32) {
	b.grow(4)
	binary.LittleEndian.PutUint32(b.data[b.writerIndex:], uint32(v))
	b.writerIndex += 4
}

func (b *ByteBuffer) ReadInt32() int32 {
	if err := b.ensureReadable(4); err != nil {
		panic(err)
	}
	v := int32(binary.LittleEndian.Uint32(b.data[b.readerIndex:]))
	b.readerIndex += 4
	return v
}

func (b *ByteBuffer) WriteInt64(v int64) {
	b.grow(8)
	binary.LittleEndian.PutUint64(b.data[b.writerIndex:], uint64(v))
	b.writerIndex += 8
}

func (b *ByteBuffer) ReadInt64() int64 {
	if err := b.ensureReadable(8); err != nil {
		panic(err)
	}
	v := int64(binary.LittleEndian.Uint64(b.data[b.readerIndex:]))
	b.readerIndex += 8
	return v
}

func (b *ByteBuffer) WriteFloat32(v float32) { b.WriteInt32(int32(math.Float32bits(v))) }
func (b *ByteBuffer) ReadFloat32() float32   { return math.Float32frombits(uint32(b.ReadInt32())) }
func (b *ByteBuffer) WriteFloat64(v float64) { b.WriteInt64(int64(math.Float64bits(v))) }
func (b *ByteBuffer) ReadFloat64() float64   { return math.Float64frombits(uint64(b.ReadInt64())) }

// WriteBinary appends raw bytes with no length prefix.
func (b *ByteBuffer) WriteBinary(v []byte) {
	if len(v) == 0 {
		return
	}
	b.grow(len(v))
	copy(b.data[b.writerIndex:], v)
	b.writerIndex += len(v)
}

// ReadBinary reads n raw bytes and returns a copy.
func (b *ByteBuffer) ReadBinary(n int) []byte {
	if n == 0 {
		return nil
	}
	if err := b.ensureReadable(n); err != nil {
		panic(err)
	}
	out := make([]byte, n)
	copy(out, b.data[b.readerIndex:b.readerIndex+n])
	b.readerIndex += n
	return out
}

// unsafeGetBytes views a Go string's backing array without copying, for
// the write-only path where the bytes are consumed before the string
// could be mutated (strings are immutable, so this is always safe).
func unsafeGetBytes(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// ---------------------------------------------------------------------
// Variable-length integer encodings (§4.1)
// ---------------------------------------------------------------------

// WriteVarUint32 writes n using the 1-5 byte continuation-bit scheme:
// each byte carries 7 payload bits plus a high continuation bit.
func (b *ByteBuffer) WriteVarUint32(n uint32) int {
	b.grow(5)
	count := 0
	for n >= 0x80 {
		b.data[b.writerIndex] = byte(n) | 0x80
		b.writerIndex++
		n >>= 7
		count++
	}
	b.data[b.writerIndex] = byte(n)
	b.writerIndex++
	return count + 1
}

// ReadVarUint32 decodes into a local cursor and only commits
// readerIndex once the full value is known to be well-formed, so a
// failure partway through a multi-byte encoding (short buffer, or a
// too-long continuation run) leaves readerIndex exactly where it found
// it (§4.1 "a failed read must not move reader_index").
func (b *ByteBuffer) ReadVarUint32() uint32 {
	var result uint32
	var shift uint
	pos := 0
	for {
		if err := b.ensureReadable(pos + 1); err != nil {
			panic(err)
		}
		by := b.data[b.readerIndex+pos]
		pos++
		result |= uint32(by&0x7F) << shift
		if by&0x80 == 0 {
			break
		}
		shift += 7
		if shift >= 35 {
			panic(errInvalidData("varuint32 too long"))
		}
	}
	b.readerIndex += pos
	return result
}

// WriteVarUint64 writes n using 1-8 continuation bytes plus a raw 9th
// byte carrying the remaining 8 bits when the value needs it.
func (b *ByteBuffer) WriteVarUint64(n uint64) int {
	b.grow(9)
	count := 0
	for i := 0; i < 8; i++ {
		if n < 0x80 {
			b.data[b.writerIndex] = byte(n)
			b.writerIndex++
			return count + 1
		}
		b.data[b.writerIndex] = byte(n) | 0x80
		b.writerIndex++
		n >>= 7
		count++
	}
	// terminal 9th byte: all 8 bits are payload
	b.data[b.writerIndex] = byte(n)
	b.writerIndex++
	return count + 1
}

// ReadVarUint64 mirrors ReadVarUint32's commit-on-success discipline.
// It mirrors WriteVarUint64's shape: up to 8 continuation-style bytes,
// each contributing 7 payload bits, followed by a raw 9th byte (all 8
// bits payload) only when every one of those 8 bytes had its high bit
// set.
func (b *ByteBuffer) ReadVarUint64() uint64 {
	var result uint64
	var shift uint
	pos := 0
	for i := 0; i < 8; i++ {
		if err := b.ensureReadable(pos + 1); err != nil {
			panic(err)
		}
		by := b.data[b.readerIndex+pos]
		pos++
		if by&0x80 == 0 {
			result |= uint64(by) << shift
			b.readerIndex += pos
			return result
		}
		result |= uint64(by&0x7F) << shift
		shift += 7
	}
	if err := b.ensureReadable(pos + 1); err != nil {
		panic(err)
	}
	by := b.data[b.readerIndex+pos]
	pos++
	result |= uint64(by) << shift
	b.readerIndex += pos
	return result
}

// WriteVarInt32 zig-zag encodes v then writes it as VarUint32.
func (b *ByteBuffer) WriteVarInt32(v int32) int {
	return b.WriteVarUint32(uint32((v << 1) ^ (v >> 31)))
}

func (b *ByteBuffer) ReadVarInt32() int32 {
	u := b.ReadVarUint32()
	return int32(u>>1) ^ -int32(u&1)
}

// WriteVarInt64 zig-zag encodes v then writes it as VarUint64.
func (b *ByteBuffer) WriteVarInt64(v int64) int {
	return b.WriteVarUint64(uint64((v << 1) ^ (v >> 63)))
}

func (b *ByteBuffer) ReadVarInt64() int64 {
	u := b.ReadVarUint64()
	return int64(u>>1) ^ -int64(u&1)
}

// WriteVaruint36Small writes n capped at 36 bits (5 bytes max), used
// for string/collection length-and-flag headers.
func (b *ByteBuffer) WriteVaruint36Small(n uint64) int {
	if n>>36 != 0 {
		panic(errEncodeError("value exceeds 36 bits, string or collection too long to encode"))
	}
	return b.WriteVarUint64(n)
}

func (b *ByteBuffer) ReadVaruint36Small() uint64 {
	return b.ReadVarUint64()
}

// WriteTaggedInt64 writes v in 4 bytes when it fits in 31 signed bits
// (as `v<<1`, low bit clear), otherwise a 0x01 flag byte followed by a
// raw little-endian 8-byte value.
func (b *ByteBuffer) WriteTaggedInt64(v int64) {
	if v >= -(1<<30) && v < (1<<30) {
		b.WriteInt32(int32(v << 1))
		return
	}
	b.WriteByte_(0x01)
	b.WriteInt64(v)
}

func (b *ByteBuffer) ReadTaggedInt64() int64 {
	if err := b.ensureReadable(1); err != nil {
		panic(err)
	}
	first := b.data[b.readerIndex]
	if first&0x01 == 0 {
		return int64(b.ReadInt32() >> 1)
	}
	b.readerIndex++
	return b.ReadInt64()
}

// WriteTaggedUint64 mirrors WriteTaggedInt64 for unsigned values.
func (b *ByteBuffer) WriteTaggedUint64(v uint64) {
	if v < (1 << 31) {
		b.WriteInt32(int32(v << 1))
		return
	}
	b.WriteByte_(0x01)
	b.WriteInt64(int64(v))
}

func (b *ByteBuffer) ReadTaggedUint64() uint64 {
	if err := b.ensureReadable(1); err != nil {
		panic(err)
	}
	first := b.data[b.readerIndex]
	if first&0x01 == 0 {
		return uint64(uint32(b.ReadInt32())) >> 1
	}
	b.readerIndex++
	return uint64(b.ReadInt64())
}

// WriteLength writes a caller length as a zig-zag VarInt32, rejecting
// values outside the int32 range the wire's 32-bit length fields allow.
func (b *ByteBuffer) WriteLength(length int) error {
	if length > MaxInt32 || length < MinInt32 {
		return errOutOfBound("length exceeds int32 range")
	}
	b.WriteVarInt32(int32(length))
	return nil
}

func (b *ByteBuffer) ReadLength() int {
	return int(b.ReadVarInt32())
}
