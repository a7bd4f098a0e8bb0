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
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xlang-io/xwire/meta"
)

func newNameCodecs() (*meta.Encoder, *meta.Decoder, *meta.Encoder, *meta.Decoder) {
	return meta.NewEncoder(namespaceSpecial1, namespaceSpecial2),
		meta.NewDecoder(namespaceSpecial1, namespaceSpecial2),
		meta.NewEncoder(typeNameSpecial1, typeNameSpecial2),
		meta.NewDecoder(typeNameSpecial1, typeNameSpecial2)
}

func TestBuildAndDecodeTypeDefNamedWithFields(t *testing.T) {
	nsEnc, nsDec, nameEnc, nameDec := newNameCodecs()

	fields := []FieldDef{
		{Name: "b", Type: STRING},
		{Name: "a", Type: VAR_INT32, Nullable: true},
	}
	td, err := buildTypeDef("example.ns", "Widget", false, 0, fields, nsEnc, nameEnc)
	require.NoError(t, err)
	require.NotNil(t, td)

	buf := NewByteBuffer(td.Bytes)
	cache := newParsedMetaCache()
	decoded, err := decodeTypeDef(buf, cache, nsDec, nameDec)
	require.NoError(t, err)

	assert.Equal(t, "example.ns", decoded.Namespace)
	assert.Equal(t, "Widget", decoded.TypeName)
	assert.False(t, decoded.HasUserID)
	require.Len(t, decoded.Fields, 2)
	// buildTypeDef sorts fields by name before serializing.
	assert.Equal(t, "a", decoded.Fields[0].Name)
	assert.Equal(t, "b", decoded.Fields[1].Name)
	assert.True(t, decoded.Fields[0].Nullable)
	assert.Equal(t, VAR_INT32, decoded.Fields[0].Type)
}

func TestBuildAndDecodeTypeDefNumericWithUserID(t *testing.T) {
	nsEnc, nsDec, nameEnc, nameDec := newNameCodecs()

	fields := []FieldDef{{Name: "x", Type: VAR_INT32}}
	td, err := buildTypeDef("", "", true, 7, fields, nsEnc, nameEnc)
	require.NoError(t, err)

	buf := NewByteBuffer(td.Bytes)
	cache := newParsedMetaCache()
	decoded, err := decodeTypeDef(buf, cache, nsDec, nameDec)
	require.NoError(t, err)

	assert.True(t, decoded.HasUserID)
	assert.Equal(t, int32(7), decoded.UserTypeID)
	assert.Equal(t, "", decoded.Namespace)
	assert.Equal(t, "", decoded.TypeName)
}

func TestDecodeTypeDefCacheHitSkipsBodyReparse(t *testing.T) {
	nsEnc, nsDec, nameEnc, nameDec := newNameCodecs()
	fields := []FieldDef{{Name: "x", Type: VAR_INT32}}
	td, err := buildTypeDef("ns", "Thing", false, 0, fields, nsEnc, nameEnc)
	require.NoError(t, err)

	cache := newParsedMetaCache()

	buf1 := NewByteBuffer(td.Bytes)
	first, err := decodeTypeDef(buf1, cache, nsDec, nameDec)
	require.NoError(t, err)

	// A second occurrence of the identical bytes must hit the cache and
	// return the same *TypeDef, and the buffer's reader index must still
	// advance past the full record (header + length + body) so
	// subsequent reads on the same message stay aligned.
	buf2 := NewByteBuffer(append(append([]byte{}, td.Bytes...), 0xAB))
	second, err := decodeTypeDef(buf2, cache, nsDec, nameDec)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, len(td.Bytes), buf2.ReaderIndex())
	assert.Equal(t, byte(0xAB), buf2.ReadByte_())
}

func TestParsedMetaCacheBounded(t *testing.T) {
	cache := newParsedMetaCache()
	for i := 0; i < parsedMetaCacheLimit+10; i++ {
		cache.put(uint64(i), &TypeDef{Hash: uint64(i)})
	}
	assert.LessOrEqual(t, len(cache.entries), parsedMetaCacheLimit)
	_, ok := cache.get(0)
	assert.True(t, ok, "entries filled before the cap was reached must still be cached")
}

func TestPointStructSerializerPointerFastPathMatchesValuePath(t *testing.T) {
	resolver := NewTypeResolver()
	_, err := resolver.RegisterNumeric(reflect.TypeOf(PointStruct{}), COMPATIBLE_STRUCT, 1, PointFields, PointStructSerializer{})
	require.NoError(t, err)

	p := PointStruct{X: 7, Y: -3}

	byValue := newWriteContext(resolver, false, 100, false)
	require.NoError(t, PointStructSerializer{}.WriteData(byValue, p))

	byPointer := newWriteContext(resolver, false, 100, false)
	require.NoError(t, PointStructSerializer{}.WriteData(byPointer, &p))

	valueBytes := byValue.Buffer().GetByteSlice(0, byValue.Buffer().WriterIndex())
	pointerBytes := byPointer.Buffer().GetByteSlice(0, byPointer.Buffer().WriterIndex())
	assert.Equal(t, valueBytes, pointerBytes, "the unsafe-addressed fast path must serialize identically to the value path")
}

func TestCrosswalkFieldsMapsSharedAndDroppedFields(t *testing.T) {
	local := []FieldDef{
		{Name: "a", Type: VAR_INT32},
		{Name: "b", Type: STRING},
	}
	wire := []FieldDef{
		{Name: "b", Type: STRING},
		{Name: "c", Type: BOOL}, // present on the wire only
	}
	mapping := crosswalkFields(local, wire)
	require.Len(t, mapping, 2)
	assert.Equal(t, 1, mapping[0]) // wire "b" -> local index 1
	assert.Equal(t, -1, mapping[1]) // wire "c" has no local counterpart
}

func TestCrosswalkFieldsHandlesReorderedFields(t *testing.T) {
	local := []FieldDef{
		{Name: "a", Type: VAR_INT32},
		{Name: "b", Type: STRING},
	}
	// The wire's field order need not match the local declaration
	// order at all — the crosswalk is purely name-driven.
	wire := []FieldDef{
		{Name: "b", Type: STRING},
		{Name: "a", Type: VAR_INT32},
	}
	mapping := crosswalkFields(local, wire)
	require.Len(t, mapping, 2)
	assert.Equal(t, 1, mapping[0]) // wire[0]="b" -> local index 1
	assert.Equal(t, 0, mapping[1]) // wire[1]="a" -> local index 0
}
