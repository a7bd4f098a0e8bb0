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

// Package xwire implements the cross-language serialization core: a
// random-access byte buffer with variable-length integer codecs, a
// compact meta-string codec for identifier-like strings, an on-wire
// type-identity protocol with schema-evolution support, and the
// write/read context state machines that sequence them into complete
// messages.
package xwire

// TypeId is the coarse category byte carried by every typed value on
// the wire.
type TypeId = int16

const (
	// UNKNOWN is the polymorphic/unresolved type marker.
	UNKNOWN TypeId = 0
	BOOL    TypeId = 1
	INT8    TypeId = 2
	INT16   TypeId = 3
	INT32   TypeId = 4
	// VAR_INT32 is a 32-bit signed integer using zig-zag varint encoding.
	VAR_INT32 TypeId = 5
	INT64     TypeId = 6
	// VAR_INT64 is a 64-bit signed integer using zig-zag varint encoding.
	VAR_INT64 TypeId = 7
	FLOAT     TypeId = 10
	DOUBLE    TypeId = 11
	// STRING is a Latin1/UTF16LE/UTF8 variable-length string, see spec.md §6.
	STRING TypeId = 12
	// ENUM is a caller-registered enum identified by a numeric user type ID.
	ENUM TypeId = 13
	// NAMED_ENUM is an enum identified by namespace+name on the wire.
	NAMED_ENUM TypeId = 14
	// STRUCT is a morphic (final) struct identified by a numeric user type ID.
	STRUCT TypeId = 15
	// COMPATIBLE_STRUCT is a struct that carries an inline TypeMeta for schema evolution.
	COMPATIBLE_STRUCT TypeId = 16
	// NAMED_STRUCT is a struct identified by namespace+name.
	NAMED_STRUCT TypeId = 17
	// NAMED_COMPATIBLE_STRUCT combines named identity with an inline TypeMeta.
	NAMED_COMPATIBLE_STRUCT TypeId = 18
	// EXT is a caller-defined extension type with a custom harness.
	EXT TypeId = 19
	// NAMED_EXT is an EXT type identified by namespace+name.
	NAMED_EXT TypeId = 20
	// UNION is a tagged union identified by a numeric user type ID.
	UNION TypeId = 21
	// NAMED_UNION is a tagged union identified by namespace+name.
	NAMED_UNION TypeId = 22
	// LIST is a homogeneous sequence.
	LIST TypeId = 23
	// SET is an unordered collection of unique elements.
	SET TypeId = 24
	// MAP is a repeated key/value structure.
	MAP TypeId = 25
	// BINARY is variable-length bytes with no encoding guarantee.
	BINARY TypeId = 26
)

// namedCategory reports whether the low byte of typeID denotes a
// category whose identity is carried as namespace+name rather than a
// numeric user type ID.
func namedCategory(typeID TypeId) bool {
	switch typeID & 0xFF {
	case NAMED_STRUCT, NAMED_COMPATIBLE_STRUCT, NAMED_ENUM, NAMED_EXT, NAMED_UNION:
		return true
	default:
		return false
	}
}

// compatibleCategory reports whether the category requires a full
// inline TypeMeta (a `type_meta` per spec.md §3) rather than a bare
// identity prefix.
func compatibleCategory(typeID TypeId) bool {
	switch typeID & 0xFF {
	case COMPATIBLE_STRUCT, NAMED_COMPATIBLE_STRUCT:
		return true
	default:
		return false
	}
}

// IsNamespacedType reports whether typeID's category is carried as a
// namespace/name pair on the wire.
func IsNamespacedType(typeID TypeId) bool {
	return namedCategory(typeID)
}
