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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, enc *Encoder, dec *Decoder, name string) {
	t.Helper()
	encoding := enc.ComputeEncodingWith(name, nil)
	ms, err := enc.EncodeWithEncoding(name, encoding)
	require.NoError(t, err)
	got, err := dec.Decode(ms.GetEncodedBytes(), encoding)
	require.NoError(t, err)
	assert.Equal(t, name, got, "encoding %v", encoding)
}

func TestEncodeDecodeRoundTripAcrossSelectedEncodings(t *testing.T) {
	enc := NewEncoder('.', '_')
	dec := NewDecoder('.', '_')

	names := []string{
		"",
		"foo",
		"foo.bar_baz",
		"FooBar",
		"someNameWithOneCap",
		"mixedCASEwithDigits123",
		"12345",
		"-42",
		"héllo",
		"a",
		"plainlowercasenameoftwentychars",
		"exactly16byteslong",
		"Type1",
		"v2Widget",
	}
	for _, n := range names {
		roundTrip(t, enc, dec, n)
	}
}

func TestComputeEncodingWithPicksLowerUpperDigitForSingleCapWithDigit(t *testing.T) {
	enc := NewEncoder('.', '_')
	// A single leading capital plus a trailing digit would otherwise
	// satisfy FirstToLowerSpecial's heuristic, but that alphabet cannot
	// represent digits: the digit check must take precedence.
	assert.Equal(t, LowerUpperDigitSpecial, enc.ComputeEncodingWith("Type1", nil))
}

func TestComputeEncodingWithPicksLowerUpperDigitForLowercaseWithDigit(t *testing.T) {
	enc := NewEncoder('.', '_')
	// All-lowercase-or-no-uppercase plus a digit would otherwise satisfy
	// AllToLowerSpecial's heuristic, which also cannot represent digits.
	assert.Equal(t, LowerUpperDigitSpecial, enc.ComputeEncodingWith("widget9", nil))
}

func TestComputeEncodingWithPicksLowerSpecialForPlainLowercase(t *testing.T) {
	enc := NewEncoder('.', '_')
	assert.Equal(t, LowerSpecial, enc.ComputeEncodingWith("plain.name_here", nil))
}

func TestComputeEncodingWithPicksFirstToLowerForSingleLeadingCap(t *testing.T) {
	enc := NewEncoder('.', '_')
	assert.Equal(t, FirstToLowerSpecial, enc.ComputeEncodingWith("Namespace", nil))
}

func TestComputeEncodingWithPicksExtendedNumberForDigits(t *testing.T) {
	enc := NewEncoder('.', '_')
	assert.Equal(t, ExtendedNumber, enc.ComputeEncodingWith("2024", nil))
}

func TestComputeEncodingWithPicksUtf8ForNonASCII(t *testing.T) {
	enc := NewEncoder('.', '_')
	assert.Equal(t, Utf8, enc.ComputeEncodingWith("café", nil))
}

func TestComputeEncodingWithRespectsAllowedList(t *testing.T) {
	enc := NewEncoder('.', '_')
	// LowerSpecial would normally be picked, but it isn't in the allowed
	// set, so the encoder must fall back to Utf8 rather than emit an
	// encoding the caller didn't permit.
	got := enc.ComputeEncodingWith("plain", []Encoding{Utf8})
	assert.Equal(t, Utf8, got)
}

func TestPackedAlphabetHandlesByteBoundaryStrip(t *testing.T) {
	enc := NewEncoder('.', '_')
	dec := NewDecoder('.', '_')
	// Exercise a range of lengths crossing several 5-bit packing byte
	// boundaries, where the strip-last-char flag bit toggles.
	for n := 1; n <= 20; n++ {
		name := make([]byte, n)
		for i := range name {
			name[i] = byte('a' + (i % 26))
		}
		roundTrip(t, enc, dec, string(name))
	}
}

func TestEncodingStringNames(t *testing.T) {
	assert.Equal(t, "UTF8", Utf8.String())
	assert.Equal(t, "LowerSpecial", LowerSpecial.String())
	assert.Equal(t, "Unknown", Encoding(200).String())
}
