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
	"unsafe"
)

// ---------------------------------------------------------------------
// RefWriter / RefReader — the reference tracker's public contract (§4.6)
// ---------------------------------------------------------------------

// RefWriter handles write-side reference tracking, keyed by pointer
// identity (§9 "Pointer-keyed maps" — in a language without stable
// addresses, use a resolver-assigned integer ID instead).
type RefWriter struct {
	enabled bool
	refs    map[uintptr]int32
	nextID  int32
}

func newRefWriter(enabled bool) *RefWriter {
	return &RefWriter{enabled: enabled, refs: make(map[uintptr]int32)}
}

func (w *RefWriter) reset() {
	clear(w.refs)
	w.nextID = 0
}

// tryWriteRef implements write_ref_or_value: it writes the Ref flag
// and back-reference ID if ptr was already seen (returning true), or
// registers ptr and writes RefValueFlag (returning false).
func (w *RefWriter) tryWriteRef(buf *ByteBuffer, ptr uintptr) bool {
	if id, seen := w.refs[ptr]; seen {
		buf.WriteInt8(RefFlag)
		buf.WriteVarInt32(id)
		return true
	}
	w.refs[ptr] = w.nextID
	w.nextID++
	buf.WriteInt8(RefValueFlag)
	return false
}

// RefReader handles read-side reference tracking: a flat list indexed
// by first-appearance order.
type RefReader struct {
	enabled bool
	values  []any
}

func newRefReader(enabled bool) *RefReader {
	return &RefReader{enabled: enabled, values: make([]any, 0, 16)}
}

func (r *RefReader) reset() { r.values = r.values[:0] }

// reference records value at the next index, mirroring the order
// tryWriteRef assigns on the write side.
func (r *RefReader) reference(value any) {
	r.values = append(r.values, value)
}

// get retrieves a previously-referenced value by ID.
func (r *RefReader) get(id int32) (any, bool) {
	if id < 0 || int(id) >= len(r.values) {
		return nil, false
	}
	return r.values[id], true
}

// ---------------------------------------------------------------------
// WriteContext
// ---------------------------------------------------------------------

// WriteContext is the per-message write state machine of C5: it
// sequences the header, reference flags, type-meta emission, and body
// payload, enforcing at-most-one-emission of full TypeMeta per type.
type WriteContext struct {
	buffer       *ByteBuffer
	refWriter    *RefWriter
	trackRef     bool
	compatible   bool
	maxDepth     int
	typeResolver *TypeResolver
	metaTable    *MetaStringTable

	// dyn_depth / type-info-index map (§3 "Write context state").
	dynDepth      int
	firstTypeInfo *TypeInfo
	typeIndexMap  map[*TypeInfo]int32

	err error
}

func newWriteContext(resolver *TypeResolver, trackRef bool, maxDepth int, compatible bool) *WriteContext {
	return &WriteContext{
		buffer:       NewByteBufferSize(256),
		refWriter:    newRefWriter(trackRef),
		trackRef:     trackRef,
		maxDepth:     maxDepth,
		compatible:   compatible,
		typeResolver: resolver,
		metaTable:    NewMetaStringTable(),
	}
}

// Reset zeroes writer/reader indices, clears the ref writer, the
// type-info map, the last-type fast slot, the meta-string table, and
// the error field — the full per-message reset contract of §4.5.
func (c *WriteContext) Reset() {
	c.buffer.Reset()
	c.refWriter.reset()
	c.metaTable.Reset()
	c.dynDepth = 0
	c.firstTypeInfo = nil
	c.typeIndexMap = nil
	c.err = nil
}

func (c *WriteContext) Buffer() *ByteBuffer       { return c.buffer }
func (c *WriteContext) TrackRef() bool            { return c.trackRef }
func (c *WriteContext) Compatible() bool          { return c.compatible }
func (c *WriteContext) TypeResolver() *TypeResolver { return c.typeResolver }
func (c *WriteContext) Err() error                { return c.err }

func (c *WriteContext) fail(err error) error {
	if c.err == nil {
		c.err = err
	}
	return err
}

// WriteHeader writes the single flag byte every message begins with
// (§6): bit0 null, bit1 xlang, bit2 out-of-band.
func (c *WriteContext) WriteHeader(isNil, oob bool) {
	var flags byte
	if isNil {
		flags |= 0b001
	}
	flags |= 0b010 // this module only implements the xlang wire variant
	if oob {
		flags |= 0b100
	}
	c.buffer.WriteByte_(flags)
}

// Inline primitive writes.
func (c *WriteContext) WriteBool(v bool)       { c.buffer.WriteBool(v) }
func (c *WriteContext) WriteInt8(v int8)       { c.buffer.WriteInt8(v) }
func (c *WriteContext) WriteInt16(v int16)     { c.buffer.WriteInt16(v) }
func (c *WriteContext) WriteInt32(v int32)     { c.buffer.WriteInt32(v) }
func (c *WriteContext) WriteInt64(v int64)     { c.buffer.WriteInt64(v) }
func (c *WriteContext) WriteFloat32(v float32) { c.buffer.WriteFloat32(v) }
func (c *WriteContext) WriteFloat64(v float64) { c.buffer.WriteFloat64(v) }
func (c *WriteContext) WriteVarInt32(v int32)  { c.buffer.WriteVarInt32(v) }
func (c *WriteContext) WriteVarInt64(v int64)  { c.buffer.WriteVarInt64(v) }
func (c *WriteContext) WriteByte(v byte)       { c.buffer.WriteByte_(v) }

func (c *WriteContext) WriteString(v string) {
	writeStringBody(c.buffer, v)
}

func (c *WriteContext) WriteBinary(v []byte) {
	c.buffer.WriteVarUint32(uint32(len(v)))
	c.buffer.WriteBinary(v)
}

func (c *WriteContext) WriteLength(n int) error {
	if err := c.buffer.WriteLength(n); err != nil {
		return c.fail(err)
	}
	return nil
}

// WriteRefFlag implements the reference sub-format of §6: RefModeNone
// emits nothing; RefModeNullOnly emits Null/NotNull; RefModeNullAndRef
// additionally tracks pointer identity. It returns whether the caller
// must still write the value's body.
func (c *WriteContext) WriteRefFlag(mode RefMode, isNil bool, ptr uintptr) (writeBody bool, err error) {
	switch mode {
	case RefModeNone:
		return true, nil
	case RefModeNullOnly:
		if isNil {
			c.buffer.WriteInt8(NullFlag)
			return false, nil
		}
		c.buffer.WriteInt8(NotNullValueFlag)
		return true, nil
	case RefModeNullAndRef:
		if isNil {
			c.buffer.WriteInt8(NullFlag)
			return false, nil
		}
		if !c.trackRef {
			c.buffer.WriteInt8(NotNullValueFlag)
			return true, nil
		}
		alreadyWritten := c.refWriter.tryWriteRef(c.buffer, ptr)
		return !alreadyWritten, nil
	default:
		return false, c.fail(errInvalidData("unknown ref mode"))
	}
}

// WriteAnyTypeInfo emits the 1-byte type_id and whatever follow-up
// §4.4's category table specifies.
func (c *WriteContext) WriteAnyTypeInfo(ti *TypeInfo) error {
	c.buffer.WriteByte_(byte(ti.TypeID))
	if compatibleCategory(ti.TypeID) {
		return c.WriteTypeMeta(ti)
	}
	if namedCategory(ti.TypeID) {
		if c.compatible {
			return c.WriteTypeMeta(ti)
		}
		if err := c.metaTable.WriteMetaString(c.buffer, c.typeResolver.nsEncoder, ti.Namespace, nil); err != nil {
			return c.fail(err)
		}
		if err := c.metaTable.WriteMetaString(c.buffer, c.typeResolver.nameEncoder, ti.TypeName, nil); err != nil {
			return c.fail(err)
		}
		return nil
	}
	switch ti.TypeID {
	case STRUCT, ENUM, EXT, UNION:
		c.buffer.WriteVarUint32(uint32(ti.UserTypeID))
		return nil
	default:
		return nil // primitive/internal: no follow-up
	}
}

// WriteTypeMeta implements the streaming TypeMeta protocol of §4.4: a
// dedicated fast slot for the first type seen, then a varuint
// index/back-reference scheme once a second distinct type appears.
func (c *WriteContext) WriteTypeMeta(ti *TypeInfo) error {
	if ti.TypeDef == nil {
		return c.fail(errTypeError("type registered without a schema cannot emit inline TypeMeta"))
	}
	if c.firstTypeInfo == nil {
		c.firstTypeInfo = ti
		c.buffer.WriteVarUint32(0) // (0<<1)|0
		c.buffer.WriteBinary(ti.TypeDef.Bytes)
		return nil
	}
	if ti == c.firstTypeInfo {
		c.buffer.WriteVarUint32(1) // (0<<1)|1: back-ref to index 0
		return nil
	}
	if c.typeIndexMap == nil {
		c.typeIndexMap = map[*TypeInfo]int32{c.firstTypeInfo: 0}
	}
	idx, seen := c.typeIndexMap[ti]
	if !seen {
		idx = int32(len(c.typeIndexMap))
		c.typeIndexMap[ti] = idx
		c.buffer.WriteVarUint32(uint32(idx) << 1)
		c.buffer.WriteBinary(ti.TypeDef.Bytes)
		return nil
	}
	c.buffer.WriteVarUint32(uint32(idx)<<1 | 1)
	return nil
}

// WriteTypedValue is the top-level per-value write path used by the
// example harnesses: ref flag, then type-info prefix (unless the ref
// flag already terminated with Null), then the body.
func (c *WriteContext) WriteTypedValue(ti *TypeInfo, value any) error {
	if c.dynDepth >= c.maxDepth {
		return c.fail(errTypeError("max nesting depth exceeded"))
	}
	c.dynDepth++
	defer func() { c.dynDepth-- }()

	mode := ti.Serializer.RefMode()
	isNil := isNilValue(value)
	var ptr uintptr
	if !isNil {
		ptr = pointerIdentity(value)
	}
	writeBody, err := c.WriteRefFlag(mode, isNil, ptr)
	if err != nil {
		return err
	}
	if !writeBody {
		return nil
	}
	if err := c.WriteAnyTypeInfo(ti); err != nil {
		return err
	}
	if err := ti.Serializer.WriteData(c, value); err != nil {
		return c.fail(err)
	}
	return nil
}

// isNilValue reports whether value is either the untyped nil interface
// or a typed nil of a reference kind (pointer/interface/slice/map/chan/
// func) — the same distinction the teacher's slice serializer draws in
// its own isNull helper, since `value == nil` alone does not detect a
// nil pointer boxed in an `any`.
func isNilValue(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return rv.IsNil()
	default:
		return false
	}
}

// pointerIdentity extracts a stable identity for ref tracking. Values
// that aren't naturally pointer-shaped (e.g. a pointer wrapped in an
// interface) still round-trip through unsafe.Pointer of the interface
// data word, matching how the teacher's reflect-based dispatch reduces
// arbitrary reference types to a single comparable key.
func pointerIdentity(value any) uintptr {
	type iface struct {
		typ  unsafe.Pointer
		data unsafe.Pointer
	}
	return uintptr((*iface)(unsafe.Pointer(&value)).data)
}

// ---------------------------------------------------------------------
// ReadContext
// ---------------------------------------------------------------------

// ReadContext is the read-side twin of WriteContext.
type ReadContext struct {
	buffer       *ByteBuffer
	refReader    *RefReader
	trackRef     bool
	compatible   bool
	typeResolver *TypeResolver
	metaTable    *MetaStringTable
	cache        *parsedMetaCache

	readingTypeInfos []*TypeInfo

	// fieldMappings/wireFieldSets remember, per resolved TypeInfo seen
	// this message, the schema-evolution crosswalk between the wire's
	// decoded field list and the locally registered one (§4.4), so a
	// back-reference to a type seen earlier in the message reuses the
	// same crosswalk without re-decoding its type_def. fieldMapping and
	// wireFields are the ones currently in scope for whichever
	// ReadTypedValue call is running, saved and restored around nested
	// reads.
	fieldMappings map[*TypeInfo][]int
	wireFieldSets map[*TypeInfo][]FieldDef
	fieldMapping  []int
	wireFields    []FieldDef

	err error
}

func newReadContext(resolver *TypeResolver, trackRef bool, compatible bool) *ReadContext {
	return &ReadContext{
		buffer:       NewByteBuffer(nil),
		refReader:    newRefReader(trackRef),
		trackRef:     trackRef,
		compatible:   compatible,
		typeResolver: resolver,
		metaTable:    NewMetaStringTable(),
		cache:        newParsedMetaCache(),
	}
}

// Reset clears per-message state but preserves the type resolver, the
// parsed-meta cache, and configuration (§4.5).
func (c *ReadContext) Reset() {
	c.refReader.reset()
	c.metaTable.Reset()
	c.readingTypeInfos = nil
	c.fieldMappings = nil
	c.wireFieldSets = nil
	c.fieldMapping = nil
	c.wireFields = nil
	c.err = nil
}

// SetData rebinds the buffer to fresh input, for reuse across messages
// on a byte-slice source (as opposed to a bound StreamReader).
func (c *ReadContext) SetData(data []byte) {
	c.buffer = NewByteBuffer(data)
}

func (c *ReadContext) Buffer() *ByteBuffer         { return c.buffer }
func (c *ReadContext) TrackRef() bool              { return c.trackRef }
func (c *ReadContext) Compatible() bool            { return c.compatible }
func (c *ReadContext) TypeResolver() *TypeResolver { return c.typeResolver }
func (c *ReadContext) Err() error                  { return c.err }

// FieldMapping returns the schema-evolution crosswalk for the type
// currently being decoded: mapping[i] is the local field index the i'th
// wire field (in WireFields order) should populate, or -1 if the local
// schema dropped that field. Nil when the current type carries no
// inline schema (no crosswalk applies).
func (c *ReadContext) FieldMapping() []int { return c.fieldMapping }

// WireFields returns the field list as decoded off the wire for the
// type currently being decoded, in the same order FieldMapping indexes
// against.
func (c *ReadContext) WireFields() []FieldDef { return c.wireFields }

func (c *ReadContext) fail(err error) error {
	if c.err == nil {
		c.err = err
	}
	return err
}

// ReadHeader reads and decodes the single flag byte (§6). recoverable
// buffer errors (S6 truncation) propagate as *WireError; the caller's
// Reset always restores the context to initial state afterward.
func (c *ReadContext) ReadHeader() (isNil, xlang, oob bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			if we, ok := r.(*WireError); ok {
				err = we
				return
			}
			panic(r)
		}
	}()
	flags := c.buffer.ReadByte_()
	isNil = flags&0b001 != 0
	xlang = flags&0b010 != 0
	oob = flags&0b100 != 0
	return
}

func (c *ReadContext) ReadBool() bool       { return c.buffer.ReadBool() }
func (c *ReadContext) ReadInt8() int8       { return c.buffer.ReadInt8() }
func (c *ReadContext) ReadInt16() int16     { return c.buffer.ReadInt16() }
func (c *ReadContext) ReadInt32() int32     { return c.buffer.ReadInt32() }
func (c *ReadContext) ReadInt64() int64     { return c.buffer.ReadInt64() }
func (c *ReadContext) ReadFloat32() float32 { return c.buffer.ReadFloat32() }
func (c *ReadContext) ReadFloat64() float64 { return c.buffer.ReadFloat64() }
func (c *ReadContext) ReadVarInt32() int32  { return c.buffer.ReadVarInt32() }
func (c *ReadContext) ReadVarInt64() int64  { return c.buffer.ReadVarInt64() }
func (c *ReadContext) ReadByte() byte       { return c.buffer.ReadByte_() }

func (c *ReadContext) ReadString() string {
	return readStringBody(c.buffer)
}

func (c *ReadContext) ReadBinary() []byte {
	n := int(c.buffer.ReadVarUint32())
	return c.buffer.ReadBinary(n)
}

func (c *ReadContext) ReadLength() int { return c.buffer.ReadLength() }

// ReadRefFlag implements the read side of the reference sub-format,
// rejecting flags illegal for mode (e.g. Ref under RefModeNullOnly).
func (c *ReadContext) ReadRefFlag(mode RefMode) (flag int8, refID int32, needRead bool, err error) {
	if mode == RefModeNone {
		return NotNullValueFlag, 0, true, nil
	}
	flag = c.buffer.ReadInt8()
	switch flag {
	case NullFlag:
		return flag, 0, false, nil
	case NotNullValueFlag:
		return flag, 0, true, nil
	case RefFlag:
		if mode != RefModeNullAndRef {
			return 0, 0, false, c.fail(errInvalidRef("ref flag seen where mode forbids it"))
		}
		refID = c.buffer.ReadVarInt32()
		return flag, refID, false, nil
	case RefValueFlag:
		if mode != RefModeNullAndRef {
			return 0, 0, false, c.fail(errInvalidRef("ref-value flag seen where mode forbids it"))
		}
		return flag, 0, true, nil
	default:
		return 0, 0, false, c.fail(errInvalidData("unrecognized reference flag"))
	}
}

// ReadAnyTypeInfo is the read-side twin of WriteAnyTypeInfo.
func (c *ReadContext) ReadAnyTypeInfo() (*TypeInfo, error) {
	typeID := TypeId(c.buffer.ReadByte_())
	if compatibleCategory(typeID) {
		return c.ReadTypeMeta(typeID)
	}
	if namedCategory(typeID) {
		if c.compatible {
			return c.ReadTypeMeta(typeID)
		}
		ns, err := c.metaTable.ReadMetaString(c.buffer, c.typeResolver.nsDecoder)
		if err != nil {
			return nil, c.fail(err)
		}
		name, err := c.metaTable.ReadMetaString(c.buffer, c.typeResolver.nameDecoder)
		if err != nil {
			return nil, c.fail(err)
		}
		ti, err := c.typeResolver.GetByName(ns, name)
		if err != nil {
			return nil, c.fail(err)
		}
		return ti, nil
	}
	switch typeID {
	case STRUCT, ENUM, EXT, UNION:
		userID := c.buffer.ReadVarUint32()
		ti, err := c.typeResolver.GetByUserID(typeID, int32(userID))
		if err != nil {
			return nil, c.fail(err)
		}
		return ti, nil
	default:
		return &TypeInfo{TypeID: typeID}, nil
	}
}

// ReadTypeMeta is the read-side twin of WriteTypeMeta: it resolves a
// varuint index/back-reference against readingTypeInfos, or decodes a
// fresh inline definition and cross-walks it against the local schema.
func (c *ReadContext) ReadTypeMeta(typeID TypeId) (*TypeInfo, error) {
	header := c.buffer.ReadVarUint32()
	idx := int(header >> 1)
	if header&1 == 1 {
		if idx >= len(c.readingTypeInfos) {
			return nil, c.fail(errInvalidRef("type-meta back-reference out of range"))
		}
		return c.readingTypeInfos[idx], nil
	}
	td, err := decodeTypeDef(c.buffer, c.cache, c.typeResolver.nsDecoder, c.typeResolver.nameDecoder)
	if err != nil {
		return nil, c.fail(err)
	}
	ti, err := c.typeResolver.resolveForTypeDef(typeID, td)
	if err != nil {
		return nil, c.fail(err)
	}
	c.readingTypeInfos = append(c.readingTypeInfos, ti)
	if ti.TypeDef != nil {
		if c.fieldMappings == nil {
			c.fieldMappings = make(map[*TypeInfo][]int)
			c.wireFieldSets = make(map[*TypeInfo][]FieldDef)
		}
		c.fieldMappings[ti] = crosswalkFields(ti.TypeDef.Fields, td.Fields)
		c.wireFieldSets[ti] = td.Fields
	}
	return ti, nil
}

// ReadTypedValue is the read-side twin of WriteTypedValue.
func (c *ReadContext) ReadTypedValue(ti *TypeInfo) (any, error) {
	mode := ti.Serializer.RefMode()
	flag, refID, needRead, err := c.ReadRefFlag(mode)
	if err != nil {
		return nil, err
	}
	if !needRead {
		if flag == NullFlag {
			return nil, nil
		}
		v, ok := c.refReader.get(refID)
		if !ok {
			return nil, c.fail(errInvalidRef("back-reference to unseen value"))
		}
		return v, nil
	}
	readTI, err := c.ReadAnyTypeInfo()
	if err != nil {
		return nil, err
	}
	if readTI.TypeID != ti.TypeID {
		return nil, c.fail(errTypeError("type ID mismatch during read"))
	}

	prevMapping, prevWireFields := c.fieldMapping, c.wireFields
	c.fieldMapping, c.wireFields = c.fieldMappings[readTI], c.wireFieldSets[readTI]
	value, err := ti.Serializer.ReadData(c)
	c.fieldMapping, c.wireFields = prevMapping, prevWireFields
	if err != nil {
		return nil, c.fail(err)
	}
	if mode == RefModeNullAndRef {
		c.refReader.reference(value)
	}
	return value, nil
}
