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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteBufferFixedWidthRoundTrip(t *testing.T) {
	buf := NewByteBufferSize(64)
	buf.WriteBool(true)
	buf.WriteInt8(-7)
	buf.WriteInt16(-1234)
	buf.WriteInt32(1 << 20)
	buf.WriteInt64(-(1 << 40))
	buf.WriteFloat32(3.5)
	buf.WriteFloat64(2.71828)

	out := NewByteBuffer(buf.GetByteSlice(0, buf.WriterIndex()))
	assert.True(t, out.ReadBool())
	assert.Equal(t, int8(-7), out.ReadInt8())
	assert.Equal(t, int16(-1234), out.ReadInt16())
	assert.Equal(t, int32(1<<20), out.ReadInt32())
	assert.Equal(t, int64(-(1 << 40)), out.ReadInt64())
	assert.Equal(t, float32(3.5), out.ReadFloat32())
	assert.Equal(t, 2.71828, out.ReadFloat64())
}

func TestByteBufferVarUint32Boundaries(t *testing.T) {
	cases := []uint32{0, 1, 127, 128, 16383, 16384, 2097151, 2097152, 1<<32 - 1}
	for _, v := range cases {
		buf := NewByteBufferSize(16)
		buf.WriteVarUint32(v)
		out := NewByteBuffer(buf.GetByteSlice(0, buf.WriterIndex()))
		assert.Equal(t, v, out.ReadVarUint32(), "value %d", v)
	}
}

func TestByteBufferVarUint32TooLongPanics(t *testing.T) {
	// five continuation bytes then a sixth: shift reaches 35 before the
	// terminal byte, which ReadVarUint32 must reject.
	data := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}
	buf := NewByteBuffer(data)
	assert.Panics(t, func() { buf.ReadVarUint32() })
}

func TestByteBufferVarUint64Boundaries(t *testing.T) {
	cases := []uint64{0, 1, 127, 128, 1 << 35, 1<<56 - 1, 1<<63 - 1, 1<<64 - 1}
	for _, v := range cases {
		buf := NewByteBufferSize(16)
		buf.WriteVarUint64(v)
		out := NewByteBuffer(buf.GetByteSlice(0, buf.WriterIndex()))
		assert.Equal(t, v, out.ReadVarUint64(), "value %d", v)
	}
}

func TestByteBufferVarIntZigZagRoundTrip(t *testing.T) {
	cases32 := []int32{0, -1, 1, 63, -64, 1 << 20, -(1 << 20)}
	for _, v := range cases32 {
		buf := NewByteBufferSize(16)
		buf.WriteVarInt32(v)
		out := NewByteBuffer(buf.GetByteSlice(0, buf.WriterIndex()))
		assert.Equal(t, v, out.ReadVarInt32())
	}
	cases64 := []int64{0, -1, 1, 1 << 40, -(1 << 40)}
	for _, v := range cases64 {
		buf := NewByteBufferSize(16)
		buf.WriteVarInt64(v)
		out := NewByteBuffer(buf.GetByteSlice(0, buf.WriterIndex()))
		assert.Equal(t, v, out.ReadVarInt64())
	}
}

func TestByteBufferVaruint36SmallRejectsOverflow(t *testing.T) {
	buf := NewByteBufferSize(16)
	assert.Panics(t, func() { buf.WriteVaruint36Small(1 << 36) })
	buf.WriteVaruint36Small((1 << 36) - 1)
	out := NewByteBuffer(buf.GetByteSlice(0, buf.WriterIndex()))
	assert.Equal(t, uint64(1<<36-1), out.ReadVaruint36Small())
}

func TestByteBufferReadVarUintLeavesReaderIndexUnchangedOnFailure(t *testing.T) {
	// A varuint with the continuation bit set on its last available byte
	// looks like it wants more bytes than the buffer has; the read must
	// fail without moving readerIndex, so a caller can safely retry once
	// more data arrives.
	truncated := []byte{0x80, 0x80}

	buf32 := NewByteBuffer(truncated)
	require.Panics(t, func() { buf32.ReadVarUint32() })
	assert.Equal(t, 0, buf32.ReaderIndex())

	buf64 := NewByteBuffer(truncated)
	require.Panics(t, func() { buf64.ReadVarUint64() })
	assert.Equal(t, 0, buf64.ReaderIndex())

	// A read that starts mid-buffer must likewise leave readerIndex at
	// its start position, not partway through the failed attempt.
	prefixed := []byte{0xAB, 0x80, 0x80}
	buf32Mid := NewByteBuffer(prefixed)
	buf32Mid.ReadByte_()
	require.Panics(t, func() { buf32Mid.ReadVarUint32() })
	assert.Equal(t, 1, buf32Mid.ReaderIndex())
}

func TestByteBufferTaggedInt64RoundTrip(t *testing.T) {
	cases := []int64{0, 1, -1, (1 << 30) - 1, -(1 << 30), 1 << 30, -(1 << 40), 1 << 40}
	for _, v := range cases {
		buf := NewByteBufferSize(16)
		buf.WriteTaggedInt64(v)
		out := NewByteBuffer(buf.GetByteSlice(0, buf.WriterIndex()))
		assert.Equal(t, v, out.ReadTaggedInt64(), "value %d", v)
	}
}

func TestByteBufferTaggedUint64RoundTrip(t *testing.T) {
	cases := []uint64{0, 1, (1 << 31) - 1, 1 << 31, 1 << 40}
	for _, v := range cases {
		buf := NewByteBufferSize(16)
		buf.WriteTaggedUint64(v)
		out := NewByteBuffer(buf.GetByteSlice(0, buf.WriterIndex()))
		assert.Equal(t, v, out.ReadTaggedUint64(), "value %d", v)
	}
}

func TestByteBufferLengthRoundTrip(t *testing.T) {
	buf := NewByteBufferSize(16)
	require.NoError(t, buf.WriteLength(-5))
	require.NoError(t, buf.WriteLength(1<<20))
	out := NewByteBuffer(buf.GetByteSlice(0, buf.WriterIndex()))
	assert.Equal(t, -5, out.ReadLength())
	assert.Equal(t, 1<<20, out.ReadLength())
}

func TestByteBufferLengthRejectsOutOfRange(t *testing.T) {
	buf := NewByteBufferSize(16)
	err := buf.WriteLength(MaxInt32 + 1)
	require.Error(t, err)
	we, ok := err.(*WireError)
	require.True(t, ok)
	assert.Equal(t, OutOfBound, we.Kind)
}

func TestByteBufferUnderReadPanicsBufferOutOfBound(t *testing.T) {
	buf := NewByteBuffer([]byte{0x01})
	buf.ReadByte_()
	defer func() {
		r := recover()
		require.NotNil(t, r)
		we, ok := r.(*WireError)
		require.True(t, ok)
		assert.Equal(t, BufferOutOfBound, we.Kind)
	}()
	buf.ReadByte_()
}

func TestByteBufferGrowDoublesAndRoundsToWord(t *testing.T) {
	buf := NewByteBufferSize(8)
	for i := 0; i < 100; i++ {
		buf.WriteInt64(int64(i))
	}
	// 800 bytes from the 64-byte minimum: 64 -> 128 -> 256 -> 512 -> 1024.
	assert.Equal(t, 1024, len(buf.data))
	out := NewByteBuffer(buf.GetByteSlice(0, buf.WriterIndex()))
	for i := 0; i < 100; i++ {
		assert.Equal(t, int64(i), out.ReadInt64())
	}
}

func TestVectorByteBufferRoundTrips(t *testing.T) {
	vec := make([]byte, 0, 4)
	buf := NewVectorByteBuffer(&vec)
	for i := 0; i < 50; i++ {
		buf.WriteVarUint32(uint32(i))
	}
	out := NewByteBuffer(buf.GetByteSlice(0, buf.WriterIndex()))
	for i := 0; i < 50; i++ {
		assert.Equal(t, uint32(i), out.ReadVarUint32())
	}
}
