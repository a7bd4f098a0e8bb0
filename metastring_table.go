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

	"github.com/xlang-io/xwire/meta"
)

// metaStringBigThreshold is the boundary (§8 "Meta-string of length
// exactly 16") between the 1-byte and 8-byte table discriminators.
const metaStringBigThreshold = 16

// MetaStringTable is the per-message bidirectional mapping from
// 1-based ID to decoded string (§3). It is created fresh at message
// start and mutated only by the context's string-read/write paths.
type MetaStringTable struct {
	entries  []string
	byString map[string]int
}

// NewMetaStringTable returns an empty table.
func NewMetaStringTable() *MetaStringTable {
	return &MetaStringTable{byString: make(map[string]int)}
}

// Reset clears the table for reuse across messages.
func (t *MetaStringTable) Reset() {
	t.entries = t.entries[:0]
	clear(t.byString)
}

// WriteMetaString emits s through buf using the ref/inline header
// scheme of §4.3: `(id<<1)|1` for a back-reference, `(len<<1)|0`
// followed by a discriminator and the encoded bytes for a first
// appearance.
func (t *MetaStringTable) WriteMetaString(buf *ByteBuffer, enc *meta.Encoder, s string, allowed []meta.Encoding) error {
	if id, ok := t.byString[s]; ok {
		buf.WriteVaruint36Small(uint64(id)<<1 | 1)
		return nil
	}
	encoding := enc.ComputeEncodingWith(s, allowed)
	ms, err := enc.EncodeWithEncoding(s, encoding)
	if err != nil {
		return errEncodingError(err.Error())
	}
	data := ms.GetEncodedBytes()
	buf.WriteVaruint36Small(uint64(len(data)) << 1)
	if len(data) > metaStringBigThreshold {
		var disc [8]byte
		binary.LittleEndian.PutUint64(disc[:], ms.Hash())
		disc[0] = byte(encoding)
		buf.WriteBinary(disc[:])
	} else {
		buf.WriteByte_(byte(encoding))
	}
	buf.WriteBinary(data)

	id := len(t.entries) + 1
	t.entries = append(t.entries, s)
	t.byString[s] = id
	return nil
}

// ReadMetaString reverses WriteMetaString, adding newly-seen strings to
// the table in first-appearance order.
func (t *MetaStringTable) ReadMetaString(buf *ByteBuffer, dec *meta.Decoder) (string, error) {
	header := buf.ReadVaruint36Small()
	if header&1 == 1 {
		id := int(header >> 1)
		if id < 1 || id > len(t.entries) {
			return "", errInvalidRef("meta-string table reference out of range")
		}
		return t.entries[id-1], nil
	}
	length := int(header >> 1)
	var encoding meta.Encoding
	if length > metaStringBigThreshold {
		disc := buf.ReadBinary(8)
		encoding = meta.Encoding(disc[0])
	} else {
		encoding = meta.Encoding(buf.ReadByte_())
	}
	data := buf.ReadBinary(length)
	s, err := dec.Decode(data, encoding)
	if err != nil {
		return "", errEncodingError(err.Error())
	}
	t.entries = append(t.entries, s)
	t.byString[s] = len(t.entries)
	return s, nil
}
