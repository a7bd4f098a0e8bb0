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
	"reflect"
	"sort"

	"github.com/spaolacci/murmur3"
	"github.com/xlang-io/xwire/meta"
)

// parsedMetaCacheLimit bounds the parsed-meta cache to resist malicious
// inputs (§4.4 "Bounded caches"). 8192 is the suggested default; tune
// per deployment (§9 Design Notes).
const parsedMetaCacheLimit = 8192

// numHashBits is the width of the content-hash field packed into the
// 8-byte global header; the remaining bits carry flags and a truncated
// 12-bit body-size hint. The parsed-meta cache is keyed by the hash
// bits alone, and decoding does not read the size hint.
const numHashBits = 50

const hashMask = (uint64(1) << numHashBits) - 1
const hasFieldsMetaFlag = uint64(1) << 50
const compressMetaFlag = uint64(1) << 51

// FieldDef is one field of a full inline schema description.
type FieldDef struct {
	Name     string
	Type     TypeId
	Nullable bool
}

// TypeDef is the pre-serialized bytes of a full schema plus the parsed
// field list, so a type registered once can emit its inline definition
// without re-encoding on every occurrence (§3 "type_def").
type TypeDef struct {
	Namespace  string
	TypeName   string
	HasUserID  bool
	UserTypeID int32
	Fields     []FieldDef
	Bytes      []byte // full wire bytes: header + body-length + body
	Hash       uint64
}

// buildTypeDef serializes namespace, typeName, and fields into the
// streaming TypeMeta wire format: an 8-byte global header (content
// hash + flags), a varuint body length, then the body itself. Fields
// are sorted by name first for deterministic wire output, grounded on
// the teacher's own sortFields step.
//
// Numeric categories (COMPATIBLE_STRUCT) have no namespace/name on the
// wire, so a resolver still needs some way to map a freshly-decoded
// type_def back to the locally-registered type; this module embeds the
// registration-time user_type_id as a leading optional field of the
// body itself rather than inventing a second, undocumented wire slot.
func buildTypeDef(namespace, typeName string, hasUserID bool, userTypeID int32, fields []FieldDef, nsEnc, nameEnc *meta.Encoder) (*TypeDef, error) {
	sorted := make([]FieldDef, len(fields))
	copy(sorted, fields)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	body := NewByteBufferSize(128)
	body.WriteBool(hasUserID)
	if hasUserID {
		body.WriteVarInt32(userTypeID)
	}
	if err := writeMetaName(body, nsEnc, namespace); err != nil {
		return nil, err
	}
	if err := writeMetaName(body, nameEnc, typeName); err != nil {
		return nil, err
	}
	body.WriteVarUint32(uint32(len(sorted)))
	for _, f := range sorted {
		body.WriteByte_(byte(f.Type))
		body.WriteBool(f.Nullable)
		if err := writeMetaName(body, nameEnc, f.Name); err != nil {
			return nil, err
		}
	}
	bodyBytes := body.GetByteSlice(0, body.WriterIndex())

	hash := murmur3.Sum64WithSeed(bodyBytes, 47) & hashMask
	header := hash
	if len(sorted) > 0 {
		header |= hasFieldsMetaFlag
	}
	header |= (uint64(len(bodyBytes)) & 0xFFF) << 52

	out := NewByteBufferSize(8 + len(bodyBytes) + 5)
	var headerBytes [8]byte
	binary.LittleEndian.PutUint64(headerBytes[:], header)
	out.WriteBinary(headerBytes[:])
	out.WriteVarUint32(uint32(len(bodyBytes)))
	out.WriteBinary(bodyBytes)

	return &TypeDef{
		Namespace:  namespace,
		TypeName:   typeName,
		HasUserID:  hasUserID,
		UserTypeID: userTypeID,
		Fields:     sorted,
		Bytes:      out.GetByteSlice(0, out.WriterIndex()),
		Hash:       hash,
	}, nil
}

func writeMetaName(buf *ByteBuffer, enc *meta.Encoder, name string) error {
	encoding := enc.ComputeEncodingWith(name, nil)
	ms, err := enc.EncodeWithEncoding(name, encoding)
	if err != nil {
		return errEncodingError(err.Error())
	}
	data := ms.GetEncodedBytes()
	buf.WriteByte_(byte(encoding))
	buf.WriteVarUint32(uint32(len(data)))
	buf.WriteBinary(data)
	return nil
}

func readMetaName(buf *ByteBuffer, dec *meta.Decoder) (string, error) {
	encoding := meta.Encoding(buf.ReadByte_())
	n := int(buf.ReadVarUint32())
	data := buf.ReadBinary(n)
	s, err := dec.Decode(data, encoding)
	if err != nil {
		return "", errEncodingError(err.Error())
	}
	return s, nil
}

// parsedMetaCache caches decoded TypeDef bodies keyed by their content
// hash, so a schema shared by many messages in a session is parsed
// once. Bounded per parsedMetaCacheLimit; entries beyond the cap are
// simply not cached (always correct, just not accelerated).
type parsedMetaCache struct {
	entries map[uint64]*TypeDef
}

func newParsedMetaCache() *parsedMetaCache {
	return &parsedMetaCache{entries: make(map[uint64]*TypeDef)}
}

func (c *parsedMetaCache) get(hash uint64) (*TypeDef, bool) {
	td, ok := c.entries[hash]
	return td, ok
}

func (c *parsedMetaCache) put(hash uint64, td *TypeDef) {
	if len(c.entries) >= parsedMetaCacheLimit {
		return
	}
	c.entries[hash] = td
}

// decodeTypeDef reads one streaming TypeMeta record (header, body
// length, body) from buf, consulting cache to skip a full re-parse of
// previously-seen schemas.
func decodeTypeDef(buf *ByteBuffer, cache *parsedMetaCache, nsDec, nameDec *meta.Decoder) (*TypeDef, error) {
	headerBytes := buf.ReadBinary(8)
	header := binary.LittleEndian.Uint64(headerBytes)
	hash := header & hashMask
	hasFields := header&hasFieldsMetaFlag != 0

	bodyLen := int(buf.ReadVarUint32())
	body := buf.ReadBinary(bodyLen)

	if cached, ok := cache.get(hash); ok {
		return cached, nil
	}

	bodyBuf := NewByteBuffer(body)
	hasUserID := bodyBuf.ReadBool()
	var userTypeID int32
	if hasUserID {
		userTypeID = bodyBuf.ReadVarInt32()
	}
	namespace, err := readMetaName(bodyBuf, nsDec)
	if err != nil {
		return nil, err
	}
	typeName, err := readMetaName(bodyBuf, nameDec)
	if err != nil {
		return nil, err
	}
	fieldCount := int(bodyBuf.ReadVarUint32())
	if !hasFields && fieldCount != 0 {
		return nil, errInvalidData("type_def flags/field-count mismatch")
	}
	fields := make([]FieldDef, fieldCount)
	for i := 0; i < fieldCount; i++ {
		typ := TypeId(bodyBuf.ReadByte_())
		nullable := bodyBuf.ReadBool()
		name, err := readMetaName(bodyBuf, nameDec)
		if err != nil {
			return nil, err
		}
		fields[i] = FieldDef{Name: name, Type: typ, Nullable: nullable}
	}

	td := &TypeDef{Namespace: namespace, TypeName: typeName, HasUserID: hasUserID, UserTypeID: userTypeID, Fields: fields, Hash: hash}
	cache.put(hash, td)
	return td, nil
}

// crosswalkFields maps each wire field to a local field index (or -1
// if the local type dropped it), implementing the schema-evolution
// step of §4.4: fields present only on the wire are read and
// discarded; fields present only locally receive their zero value.
func crosswalkFields(local, wire []FieldDef) []int {
	localIndex := make(map[string]int, len(local))
	for i, f := range local {
		localIndex[f.Name] = i
	}
	mapping := make([]int, len(wire))
	for i, f := range wire {
		if idx, ok := localIndex[f.Name]; ok {
			mapping[i] = idx
		} else {
			mapping[i] = -1
		}
	}
	return mapping
}

// TypeInfo is the on-wire type identity plus the harness needed to
// (de)serialize values of that type (§3 "Type info").
type TypeInfo struct {
	TypeID     TypeId
	UserTypeID int32
	Namespace  string
	TypeName   string
	TypeDef    *TypeDef
	GoType     reflect.Type
	Serializer Serializer
}
