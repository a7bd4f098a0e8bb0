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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBoundStream(t *testing.T, payload []byte) (*StreamReader, *ByteBuffer) {
	t.Helper()
	sr := NewStreamReader(NewIOStreamSource(bytes.NewReader(payload)))
	buf := &ByteBuffer{}
	sr.BindBuffer(buf)
	return sr, buf
}

func TestStreamReaderFillAndReadThroughBuffer(t *testing.T) {
	payload := make([]byte, 10000)
	for i := range payload {
		payload[i] = byte(i)
	}
	_, buf := newBoundStream(t, payload)

	got := buf.ReadBinary(10000)
	assert.Equal(t, payload, got)
}

func TestStreamReaderFillTerminatesOnShortRead(t *testing.T) {
	_, buf := newBoundStream(t, []byte{1, 2, 3})
	defer func() {
		r := recover()
		require.NotNil(t, r)
		we, ok := r.(*WireError)
		require.True(t, ok)
		assert.Equal(t, BufferOutOfBound, we.Kind)
	}()
	buf.ReadBinary(10)
}

func TestStreamReaderSkip(t *testing.T) {
	sr, buf := newBoundStream(t, []byte{1, 2, 3, 4, 5})
	require.NoError(t, sr.Skip(2))
	assert.Equal(t, byte(3), buf.ReadByte_())
}

func TestStreamReaderUnreadRejectsPastStart(t *testing.T) {
	sr, buf := newBoundStream(t, []byte{1, 2, 3})
	buf.ReadByte_()
	require.NoError(t, sr.Unread(1))
	assert.Equal(t, byte(1), buf.ReadByte_())
	err := sr.Unread(5)
	require.Error(t, err)
	we, ok := err.(*WireError)
	require.True(t, ok)
	assert.Equal(t, OutOfBound, we.Kind)
}

func TestStreamReaderShrinkBufferCompactsConsumedPrefix(t *testing.T) {
	payload := make([]byte, streamInitialCapacity*8)
	for i := range payload {
		payload[i] = byte(i)
	}
	sr, buf := newBoundStream(t, payload)
	buf.ReadBinary(streamInitialCapacity * 7)
	sr.ShrinkBuffer()
	remaining := buf.ReadBinary(streamInitialCapacity)
	assert.Equal(t, payload[streamInitialCapacity*7:streamInitialCapacity*8], remaining)
}
