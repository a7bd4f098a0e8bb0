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

	"github.com/xlang-io/xwire/meta"
)

func TestMetaStringTableBackReference(t *testing.T) {
	enc := meta.NewEncoder('.', '_')
	dec := meta.NewDecoder('.', '_')

	wt := NewMetaStringTable()
	buf := NewByteBufferSize(64)
	require.NoError(t, wt.WriteMetaString(buf, enc, "example.ns", nil))
	require.NoError(t, wt.WriteMetaString(buf, enc, "example.ns", nil)) // second occurrence: back-ref

	rt := NewMetaStringTable()
	out := NewByteBuffer(buf.GetByteSlice(0, buf.WriterIndex()))
	first, err := rt.ReadMetaString(out, dec)
	require.NoError(t, err)
	second, err := rt.ReadMetaString(out, dec)
	require.NoError(t, err)
	assert.Equal(t, "example.ns", first)
	assert.Equal(t, "example.ns", second)
	assert.Equal(t, 1, len(rt.entries))
}

func TestMetaStringTableExactlySixteenBytesUsesOneByteDiscriminator(t *testing.T) {
	enc := meta.NewEncoder('.', '_')
	dec := meta.NewDecoder('.', '_')

	// A UTF8-forced name whose encoded byte length is exactly 16 sits
	// on the boundary between the 1-byte and 8-byte discriminator forms.
	exact16, err := enc.EncodeWithEncoding("café123456789é", meta.Utf8)
	require.NoError(t, err)
	require.Len(t, exact16.GetEncodedBytes(), 16)

	wt := NewMetaStringTable()
	buf := NewByteBufferSize(64)
	require.NoError(t, wt.WriteMetaString(buf, enc, "café123456789é", []meta.Encoding{meta.Utf8}))

	rt := NewMetaStringTable()
	out := NewByteBuffer(buf.GetByteSlice(0, buf.WriterIndex()))
	got, err := rt.ReadMetaString(out, dec)
	require.NoError(t, err)
	assert.Equal(t, "café123456789é", got)
	assert.Equal(t, out.WriterIndex(), out.ReaderIndex(), "exactly-16-byte body must use the 1-byte discriminator form and fully consume the buffer")
}

func TestMetaStringTableSeventeenBytesUsesEightByteDiscriminator(t *testing.T) {
	enc := meta.NewEncoder('.', '_')
	dec := meta.NewDecoder('.', '_')

	name := "café1234567890é" // one more ASCII digit than the 16-byte case: 17 UTF-8 bytes
	encoded, err := enc.EncodeWithEncoding(name, meta.Utf8)
	require.NoError(t, err)
	require.Greater(t, len(encoded.GetEncodedBytes()), 16)

	wt := NewMetaStringTable()
	buf := NewByteBufferSize(64)
	require.NoError(t, wt.WriteMetaString(buf, enc, name, []meta.Encoding{meta.Utf8}))

	rt := NewMetaStringTable()
	out := NewByteBuffer(buf.GetByteSlice(0, buf.WriterIndex()))
	got, err := rt.ReadMetaString(out, dec)
	require.NoError(t, err)
	assert.Equal(t, name, got)
}

func TestMetaStringTableBackReferenceOutOfRangeErrors(t *testing.T) {
	dec := meta.NewDecoder('.', '_')
	rt := NewMetaStringTable()
	buf := NewByteBufferSize(8)
	buf.WriteVaruint36Small(uint64(5)<<1 | 1) // claims back-ref ID 5 with nothing in the table
	out := NewByteBuffer(buf.GetByteSlice(0, buf.WriterIndex()))
	_, err := rt.ReadMetaString(out, dec)
	require.Error(t, err)
	we, ok := err.(*WireError)
	require.True(t, ok)
	assert.Equal(t, InvalidRef, we.Kind)
}
