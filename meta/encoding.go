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

// Package meta implements the meta-string codec: compact 5-/6-bit
// encodings for identifier-like strings (namespaces, type names) plus
// extended UTF-8 and decimal-number fallbacks.
package meta

// Encoding identifies one of the six meta-string encodings. Its value
// doubles as the on-wire discriminator byte (or the low byte of the
// 8-byte hash discriminator for strings longer than 16 bytes).
type Encoding uint8

const (
	Utf8 Encoding = iota
	LowerSpecial
	LowerUpperDigitSpecial
	FirstToLowerSpecial
	AllToLowerSpecial
	ExtendedNumber
)

func (e Encoding) String() string {
	switch e {
	case Utf8:
		return "UTF8"
	case LowerSpecial:
		return "LowerSpecial"
	case LowerUpperDigitSpecial:
		return "LowerUpperDigitSpecial"
	case FirstToLowerSpecial:
		return "FirstToLowerSpecial"
	case AllToLowerSpecial:
		return "AllToLowerSpecial"
	case ExtendedNumber:
		return "ExtendedNumber"
	default:
		return "Unknown"
	}
}

// bitsPerChar returns the packed-bit width used by the 5-/6-bit
// encodings. Utf8 and ExtendedNumber are byte-oriented and not packed.
func (e Encoding) bitsPerChar() int {
	if e == LowerUpperDigitSpecial {
		return 6
	}
	return 5
}

// MetaString is the result of encoding a name: the chosen encoding plus
// the packed wire bytes and a content hash for table discriminators.
type MetaString struct {
	Original string
	Encoding Encoding
	bytes    []byte
	hash     uint64
}

// GetEncodedBytes returns the packed wire bytes (excludes any table
// header — that's the caller's concern, see the root package's
// MetaStringTable).
func (m MetaString) GetEncodedBytes() []byte { return m.bytes }

// Hash returns the content hash used by string-table discriminators.
func (m MetaString) Hash() uint64 { return m.hash }
