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

package meta

import (
	"fmt"

	"github.com/spaolacci/murmur3"
)

// Encoder packs identifier-like strings using the two caller-configured
// special characters (e.g. '.'/'_' for namespaces, '$'/'_' for type
// names). These specials are never carried on the wire: the decoder
// must be constructed with the identical pair.
type Encoder struct {
	special1, special2 byte
}

// NewEncoder builds an encoder configured with two special characters
// legal in the LowerSpecial/LowerUpperDigitSpecial alphabets.
func NewEncoder(special1, special2 byte) *Encoder {
	return &Encoder{special1: special1, special2: special2}
}

// ComputeEncodingWith runs the selection heuristic of §4.3 and returns
// the smallest legal encoding among allowed for name.
func (e *Encoder) ComputeEncodingWith(name string, allowed []Encoding) Encoding {
	if len(name) == 0 {
		return e.pickAllowed(LowerSpecial, allowed)
	}
	if isAllDecimalDigits(name) {
		return e.pickAllowed(ExtendedNumber, allowed)
	}
	if !isASCII(name) {
		return e.pickAllowed(Utf8, allowed)
	}

	digitCount, upperCount := 0, 0
	canLowerSpecial := true
	canLowerUpperDigitSpecial := true
	firstUpper := name[0] >= 'A' && name[0] <= 'Z'
	restLowerSpecialAfterFirst := true

	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= '0' && c <= '9':
			digitCount++
		case c >= 'A' && c <= 'Z':
			upperCount++
			canLowerSpecial = false
		case c >= 'a' && c <= 'z', c == e.special1, c == e.special2:
			// legal in both alphabets
		default:
			canLowerSpecial = false
			canLowerUpperDigitSpecial = false
		}
		if i > 0 {
			lc := c
			if lc >= 'A' && lc <= 'Z' {
				restLowerSpecialAfterFirst = false
			}
		}
	}
	if digitCount > 0 {
		// digits are legal only in LowerUpperDigitSpecial, not LowerSpecial
		canLowerSpecial = false
	}

	if canLowerSpecial {
		return e.pickAllowed(LowerSpecial, allowed)
	}
	if digitCount > 0 {
		// FirstToLowerSpecial and AllToLowerSpecial both pack through the
		// LowerSpecial alphabet, which has no digit characters; any name
		// with a digit must go through LowerUpperDigitSpecial (or UTF8).
		if canLowerUpperDigitSpecial {
			return e.pickAllowed(LowerUpperDigitSpecial, allowed)
		}
		return e.pickAllowed(Utf8, allowed)
	}
	if firstUpper && restLowerSpecialAfterFirst && upperCount == 1 {
		return e.pickAllowed(FirstToLowerSpecial, allowed)
	}
	if canLowerUpperDigitSpecial {
		// (len + upper_count) * 5 < len * 6 favors AllToLowerSpecial's
		// escape-per-uppercase-char scheme over the flat 6-bit alphabet
		// when uppercase letters are sparse.
		n := len(name)
		if (n+upperCount)*5 < n*6 {
			return e.pickAllowed(AllToLowerSpecial, allowed)
		}
		return e.pickAllowed(LowerUpperDigitSpecial, allowed)
	}
	return e.pickAllowed(Utf8, allowed)
}

func (e *Encoder) pickAllowed(preferred Encoding, allowed []Encoding) Encoding {
	if len(allowed) == 0 {
		return preferred
	}
	for _, a := range allowed {
		if a == preferred {
			return preferred
		}
	}
	// fall back to UTF8 if the preferred pick isn't in the allowed set
	return Utf8
}

// EncodeWithEncoding encodes name using the given encoding, packing
// bits per §4.3 and computing the content hash used by table
// discriminators.
func (e *Encoder) EncodeWithEncoding(name string, encoding Encoding) (MetaString, error) {
	var data []byte
	switch encoding {
	case Utf8:
		data = []byte(name)
	case ExtendedNumber:
		data = []byte(name)
	case LowerSpecial:
		data = e.packAlphabet(name, encoding, lowerSpecialIndex(e, name))
	case FirstToLowerSpecial:
		lowered := []byte(name)
		if len(lowered) > 0 && lowered[0] >= 'A' && lowered[0] <= 'Z' {
			lowered[0] += 'a' - 'A'
		}
		data = e.packAlphabet(string(lowered), LowerSpecial, lowerSpecialIndex(e, string(lowered)))
	case AllToLowerSpecial:
		expanded := expandAllToLower(name)
		data = e.packAlphabet(expanded, LowerSpecial, lowerSpecialIndex(e, expanded))
	case LowerUpperDigitSpecial:
		data = e.packAlphabet(name, encoding, lowerUpperDigitIndex(e, name))
	default:
		return MetaString{}, fmt.Errorf("meta: unsupported encoding %v", encoding)
	}
	h := murmur3.Sum64WithSeed(data, 47)
	return MetaString{Original: name, Encoding: encoding, bytes: data, hash: h}, nil
}

// packAlphabet packs indexFn(name) into the 5-/6-bit stream with the
// leading strip-last-char flag bit.
func (e *Encoder) packAlphabet(name string, encoding Encoding, indices []byte) []byte {
	bits := encoding.bitsPerChar()
	n := len(indices)
	totalBits := 1 + n*bits
	byteLen := (totalBits + 7) / 8
	slack := byteLen*8 - totalBits
	strip := false
	if slack >= bits {
		// padding would look like a genuine extra char slot to the
		// decoder; emit one explicit dummy zero-value char and mark it
		// for removal on decode.
		strip = true
		indices = append(indices, 0)
	}

	out := make([]byte, byteLen)
	if strip {
		out[0] |= 0x80
	}
	bitPos := 1
	for _, idx := range indices {
		for b := bits - 1; b >= 0; b-- {
			bit := (idx >> uint(b)) & 1
			if bit != 0 {
				out[bitPos/8] |= 1 << uint(7-bitPos%8)
			}
			bitPos++
		}
	}
	return out
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}

func isAllDecimalDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			if i == 0 && c == '-' {
				continue
			}
			return false
		}
	}
	return true
}

// expandAllToLower rewrites uppercase runs as `|` followed by the
// lowercased char, matching AllToLowerSpecial's escape scheme, so the
// result can be packed through the same LowerSpecial indexer.
func expandAllToLower(name string) string {
	out := make([]byte, 0, len(name)+4)
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'A' && c <= 'Z' {
			out = append(out, '|', c+('a'-'A'))
		} else {
			out = append(out, c)
		}
	}
	return string(out)
}

func lowerSpecialIndex(e *Encoder, s string) []byte {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		out[i] = charIndexLowerSpecial(e, s[i])
	}
	return out
}

func charIndexLowerSpecial(e *Encoder, c byte) byte {
	switch {
	case c >= 'a' && c <= 'z':
		return c - 'a'
	case c == e.special1:
		return 26
	case c == e.special2:
		return 27
	case c == '|':
		return 28
	default:
		return 29
	}
}

func lowerUpperDigitIndex(e *Encoder, s string) []byte {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		out[i] = charIndexLowerUpperDigit(e, s[i])
	}
	return out
}

func charIndexLowerUpperDigit(e *Encoder, c byte) byte {
	switch {
	case c >= 'a' && c <= 'z':
		return c - 'a'
	case c >= 'A' && c <= 'Z':
		return 26 + (c - 'A')
	case c >= '0' && c <= '9':
		return 52 + (c - '0')
	case c == e.special1:
		return 62
	case c == e.special2:
		return 63
	default:
		return 63
	}
}
