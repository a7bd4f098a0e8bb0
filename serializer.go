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

// RefMode is the per-field/per-type policy declaring whether null
// markers and/or object-identity markers precede a value's body (§4.5,
// §6 "Reference sub-format").
type RefMode int

const (
	// RefModeNone means no flag byte at all — the value is always
	// present and never shared.
	RefModeNone RefMode = iota
	// RefModeNullOnly permits only Null/NotNull flags.
	RefModeNullOnly
	// RefModeNullAndRef permits the full Null/NotNull/Ref/RefValue set.
	RefModeNullAndRef
)

// Serializer is the external collaborator contract of §4.6: a per-type
// harness exposing write/read after the context has already handled
// ref flags and type-info framing. This module implements only the
// harness interface plus a small hand-written example harness (see
// example_serializers.go) — generating or hand-writing harnesses for
// arbitrary user structs is out of scope.
type Serializer interface {
	// TypeID reports the coarse wire category this harness serializes.
	TypeID() TypeId

	// RefMode reports this harness's declared reference-tracking
	// policy, consulted by the context before invoking WriteData/ReadData.
	RefMode() RefMode

	// WriteData writes the body payload; the context has already
	// emitted the ref flag and type-info prefix.
	WriteData(ctx *WriteContext, value any) error

	// ReadData is the inverse of WriteData.
	ReadData(ctx *ReadContext) (any, error)
}
