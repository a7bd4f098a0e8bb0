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
	"fmt"

	"github.com/rs/zerolog"
)

// Kind classifies a WireError the way callers need to branch on it,
// mirroring the taxonomy carried by *os.PathError's Op/Err split.
type Kind uint8

const (
	// BufferOutOfBound is returned when a read requested more bytes than
	// remain and refill failed or the source was exhausted.
	BufferOutOfBound Kind = iota
	// OutOfBound is returned when a computed size would overflow 32 bits.
	OutOfBound
	// InvalidData is returned for a malformed varint, unknown encoding
	// tag, or an impossible header.
	InvalidData
	// InvalidRef is returned when a reference ID is out of range, or a
	// ref flag appears where the field's ref mode disallows it.
	InvalidRef
	// TypeError is returned for an unregistered type, a type ID
	// mismatch, or missing required metadata.
	TypeError
	// EncodingError is returned when a meta-string encoding tag is
	// outside the defined range.
	EncodingError
	// IoError is returned when the underlying stream source raised.
	IoError
	// EncodeError is returned when the caller passed data that cannot
	// be encoded, e.g. a too-long string.
	EncodeError
)

func (k Kind) String() string {
	switch k {
	case BufferOutOfBound:
		return "BufferOutOfBound"
	case OutOfBound:
		return "OutOfBound"
	case InvalidData:
		return "InvalidData"
	case InvalidRef:
		return "InvalidRef"
	case TypeError:
		return "TypeError"
	case EncodingError:
		return "EncodingError"
	case IoError:
		return "IoError"
	case EncodeError:
		return "EncodeError"
	default:
		return "Unknown"
	}
}

// WireError is the single cross-cutting result type every public entry
// point returns errors as. It carries enough structure for a caller to
// branch on Kind without parsing Message, in the spirit of the standard
// library's *net.OpError.
type WireError struct {
	Kind      Kind
	Message   string
	ReadPos   int
	Requested int
	Available int
	Err       error // wrapped cause, if any
}

func (e *WireError) Error() string {
	switch e.Kind {
	case BufferOutOfBound:
		return fmt.Sprintf("xwire: %s: requested %d bytes at position %d, %d available", e.Kind, e.Requested, e.ReadPos, e.Available)
	default:
		if e.Err != nil {
			return fmt.Sprintf("xwire: %s: %s: %v", e.Kind, e.Message, e.Err)
		}
		return fmt.Sprintf("xwire: %s: %s", e.Kind, e.Message)
	}
}

func (e *WireError) Unwrap() error { return e.Err }

func errBufferOutOfBound(readPos, requested, available int) *WireError {
	return &WireError{Kind: BufferOutOfBound, ReadPos: readPos, Requested: requested, Available: available}
}

func errOutOfBound(msg string) *WireError {
	return &WireError{Kind: OutOfBound, Message: msg}
}

func errInvalidData(msg string) *WireError {
	return &WireError{Kind: InvalidData, Message: msg}
}

func errInvalidRef(msg string) *WireError {
	return &WireError{Kind: InvalidRef, Message: msg}
}

func errTypeError(msg string) *WireError {
	return &WireError{Kind: TypeError, Message: msg}
}

func errEncodingError(msg string) *WireError {
	return &WireError{Kind: EncodingError, Message: msg}
}

func errIoError(cause error) *WireError {
	return &WireError{Kind: IoError, Message: "stream source failed", Err: cause}
}

func errEncodeError(msg string) *WireError {
	return &WireError{Kind: EncodeError, Message: msg}
}

// logWireError reports err at Warn level through logger. Its only
// callers are the public Serialize/Deserialize entry points — never
// the varint hot loops.
func logWireError(logger zerolog.Logger, op string, err *WireError) {
	logger.Warn().Str("op", op).Str("kind", err.Kind.String()).Err(err).Msg("xwire operation failed")
}
