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
	"reflect"
	"unsafe"
)

// This file hand-writes a small family of Serializer implementations:
// enough to exercise primitive values, a nested user struct with a
// list and a map field, and a shared pointer between two struct
// fields. Real callers generate these from a schema instead of
// writing them by hand; the point here is to demonstrate the wire
// protocol end to end, not to provide a general-purpose reflection
// based struct codec.

// Int32Serializer handles a bare int32 value with VAR_INT32 zig-zag
// encoding and no reference tracking.
type Int32Serializer struct{}

func (Int32Serializer) TypeID() TypeId  { return VAR_INT32 }
func (Int32Serializer) RefMode() RefMode { return RefModeNone }
func (Int32Serializer) WriteData(ctx *WriteContext, value any) error {
	ctx.WriteVarInt32(value.(int32))
	return nil
}
func (Int32Serializer) ReadData(ctx *ReadContext) (any, error) {
	return ctx.ReadVarInt32(), nil
}

// Int64Serializer handles a bare int64 value with VAR_INT64 zig-zag
// encoding and no reference tracking (S1).
type Int64Serializer struct{}

func (Int64Serializer) TypeID() TypeId  { return VAR_INT64 }
func (Int64Serializer) RefMode() RefMode { return RefModeNone }
func (Int64Serializer) WriteData(ctx *WriteContext, value any) error {
	ctx.WriteVarInt64(value.(int64))
	return nil
}
func (Int64Serializer) ReadData(ctx *ReadContext) (any, error) {
	return ctx.ReadVarInt64(), nil
}

// BoolSerializer handles a bare bool value.
type BoolSerializer struct{}

func (BoolSerializer) TypeID() TypeId  { return BOOL }
func (BoolSerializer) RefMode() RefMode { return RefModeNone }
func (BoolSerializer) WriteData(ctx *WriteContext, value any) error {
	ctx.WriteBool(value.(bool))
	return nil
}
func (BoolSerializer) ReadData(ctx *ReadContext) (any, error) {
	return ctx.ReadBool(), nil
}

// StringSerializer handles a bare string value (S2).
type StringSerializer struct{}

func (StringSerializer) TypeID() TypeId  { return STRING }
func (StringSerializer) RefMode() RefMode { return RefModeNone }
func (StringSerializer) WriteData(ctx *WriteContext, value any) error {
	ctx.WriteString(value.(string))
	return nil
}
func (StringSerializer) ReadData(ctx *ReadContext) (any, error) {
	return ctx.ReadString(), nil
}

// PtrInt64Serializer serializes a *int64, tracking pointer identity so
// two fields sharing one allocation deserialize to the same pointer
// (S4).
type PtrInt64Serializer struct{}

func (PtrInt64Serializer) TypeID() TypeId  { return INT64 }
func (PtrInt64Serializer) RefMode() RefMode { return RefModeNullAndRef }
func (PtrInt64Serializer) WriteData(ctx *WriteContext, value any) error {
	ptr := value.(*int64)
	ctx.WriteInt64(*ptr)
	return nil
}
func (PtrInt64Serializer) ReadData(ctx *ReadContext) (any, error) {
	v := ctx.ReadInt64()
	return &v, nil
}

// ---------------------------------------------------------------------
// S3: nested struct with a list<int32> field, a map<string,int64>
// field, and a nested struct field.
// ---------------------------------------------------------------------

// listCollectionFlag mirrors the coarse collection-flag byte the
// teacher's slice serializer writes ahead of elements (§4.4 does not
// mandate a specific collection framing; this keeps the same texture
// for a fixed, statically-typed element list).
const listCollectionFlag = 0b1000 // "same declared element type", no per-element type info

// PointStruct is the S3 inner struct: {x, y int32}.
type PointStruct struct {
	X, Y int32
}

// PointStructSerializer serializes PointStruct as a COMPATIBLE_STRUCT
// so its TypeMeta streams inline, matching S3's "inner struct's
// TypeMeta is emitted once".
type PointStructSerializer struct{}

func (PointStructSerializer) TypeID() TypeId  { return COMPATIBLE_STRUCT }
func (PointStructSerializer) RefMode() RefMode { return RefModeNone }

// fieldAddressable is implemented by callers that can hand back the
// address of their backing struct, letting PointStructSerializer read
// fields straight off that address with unsafe.Add instead of paying
// for value.(PointStruct)'s copy on every write. It exists only for
// this one fast path, so it lives next to its sole implementer and
// caller rather than as a general-purpose reflection package.
type fieldAddressable interface {
	fieldAddr() unsafe.Pointer
}

// fieldAddr lets callers already holding a *PointStruct hand the
// serializer a raw address instead of boxing a copy through value.(PointStruct).
func (p *PointStruct) fieldAddr() unsafe.Pointer {
	return unsafe.Pointer(p)
}

func (PointStructSerializer) WriteData(ctx *WriteContext, value any) error {
	if addressable, ok := value.(fieldAddressable); ok {
		addr := addressable.fieldAddr()
		x := *(*int32)(addr)
		y := *(*int32)(unsafe.Add(addr, unsafe.Sizeof(int32(0))))
		ctx.WriteVarInt32(x)
		ctx.WriteVarInt32(y)
		return nil
	}
	p := value.(PointStruct)
	ctx.WriteVarInt32(p.X)
	ctx.WriteVarInt32(p.Y)
	return nil
}

func (PointStructSerializer) ReadData(ctx *ReadContext) (any, error) {
	x := ctx.ReadVarInt32()
	y := ctx.ReadVarInt32()
	return PointStruct{X: x, Y: y}, nil
}

// PointFields is the schema PointStruct registers under, sorted by
// buildTypeDef the same way any other registration is.
var PointFields = []FieldDef{
	{Name: "x", Type: VAR_INT32},
	{Name: "y", Type: VAR_INT32},
}

// PayloadStruct is the S3 outer struct.
type PayloadStruct struct {
	Name    string
	Values  []int32
	Metrics map[string]int64
	Point   PointStruct
	Active  bool
}

// PayloadFields is the schema PayloadStruct registers under.
var PayloadFields = []FieldDef{
	{Name: "name", Type: STRING},
	{Name: "values", Type: LIST},
	{Name: "metrics", Type: MAP},
	{Name: "point", Type: COMPATIBLE_STRUCT},
	{Name: "active", Type: BOOL},
}

// PayloadStructSerializer serializes PayloadStruct as a
// COMPATIBLE_STRUCT. The list and map fields are fixed-shape and
// statically typed for this example, so they are encoded inline
// (length-prefixed, element-by-element) rather than routed back
// through the generic type-info dispatch that only variably-typed or
// user-schema values need; the nested Point field, being itself a
// registered user type, does go through WriteTypedValue so its own
// TypeMeta streams per S3.
type PayloadStructSerializer struct {
	pointTypeInfo *TypeInfo
}

// NewPayloadStructSerializer binds the serializer to the already
// registered TypeInfo for PointStruct, needed to drive
// WriteTypedValue/ReadTypedValue for the nested field.
func NewPayloadStructSerializer(pointTypeInfo *TypeInfo) *PayloadStructSerializer {
	return &PayloadStructSerializer{pointTypeInfo: pointTypeInfo}
}

func (*PayloadStructSerializer) TypeID() TypeId  { return COMPATIBLE_STRUCT }
func (*PayloadStructSerializer) RefMode() RefMode { return RefModeNone }

func (s *PayloadStructSerializer) WriteData(ctx *WriteContext, value any) error {
	p := value.(PayloadStruct)
	ctx.WriteString(p.Name)

	buf := ctx.Buffer()
	buf.WriteVarUint32(uint32(len(p.Values)))
	if len(p.Values) > 0 {
		buf.WriteInt8(listCollectionFlag)
		for _, v := range p.Values {
			buf.WriteVarInt32(v)
		}
	}

	buf.WriteVarUint32(uint32(len(p.Metrics)))
	for k, v := range p.Metrics {
		ctx.WriteString(k)
		buf.WriteVarInt64(v)
	}

	if err := ctx.WriteTypedValue(s.pointTypeInfo, p.Point); err != nil {
		return err
	}
	ctx.WriteBool(p.Active)
	return nil
}

func (s *PayloadStructSerializer) ReadData(ctx *ReadContext) (any, error) {
	name := ctx.ReadString()

	buf := ctx.Buffer()
	n := int(buf.ReadVarUint32())
	var values []int32
	if n > 0 {
		buf.ReadByte_() // collection flag
		values = make([]int32, n)
		for i := 0; i < n; i++ {
			values[i] = buf.ReadVarInt32()
		}
	}

	mapLen := int(buf.ReadVarUint32())
	metrics := make(map[string]int64, mapLen)
	for i := 0; i < mapLen; i++ {
		k := ctx.ReadString()
		v := buf.ReadVarInt64()
		metrics[k] = v
	}

	pointAny, err := ctx.ReadTypedValue(s.pointTypeInfo)
	if err != nil {
		return nil, err
	}
	point, ok := pointAny.(PointStruct)
	if !ok {
		return nil, fmt.Errorf("xwire: expected PointStruct, got %T", pointAny)
	}

	active := ctx.ReadBool()

	return PayloadStruct{
		Name:    name,
		Values:  values,
		Metrics: metrics,
		Point:   point,
		Active:  active,
	}, nil
}

// ---------------------------------------------------------------------
// S4: shared reference struct.
// ---------------------------------------------------------------------

// SharedRefStruct holds two pointers that may alias the same int64
// allocation.
type SharedRefStruct struct {
	First  *int64
	Second *int64
}

// SharedRefFields is the schema SharedRefStruct registers under.
var SharedRefFields = []FieldDef{
	{Name: "first", Type: INT64, Nullable: true},
	{Name: "second", Type: INT64, Nullable: true},
}

// SharedRefStructSerializer writes both pointer fields through
// WriteTypedValue against a shared PtrInt64Serializer TypeInfo, so the
// context's ref writer sees both fields and can back-reference the
// second occurrence.
type SharedRefStructSerializer struct {
	int64PtrTypeInfo *TypeInfo
}

// NewSharedRefStructSerializer binds the serializer to the registered
// TypeInfo for *int64.
func NewSharedRefStructSerializer(int64PtrTypeInfo *TypeInfo) *SharedRefStructSerializer {
	return &SharedRefStructSerializer{int64PtrTypeInfo: int64PtrTypeInfo}
}

func (*SharedRefStructSerializer) TypeID() TypeId  { return COMPATIBLE_STRUCT }
func (*SharedRefStructSerializer) RefMode() RefMode { return RefModeNone }

func (s *SharedRefStructSerializer) WriteData(ctx *WriteContext, value any) error {
	v := value.(SharedRefStruct)
	if err := ctx.WriteTypedValue(s.int64PtrTypeInfo, v.First); err != nil {
		return err
	}
	return ctx.WriteTypedValue(s.int64PtrTypeInfo, v.Second)
}

func (s *SharedRefStructSerializer) ReadData(ctx *ReadContext) (any, error) {
	first, err := ctx.ReadTypedValue(s.int64PtrTypeInfo)
	if err != nil {
		return nil, err
	}
	second, err := ctx.ReadTypedValue(s.int64PtrTypeInfo)
	if err != nil {
		return nil, err
	}
	firstPtr, _ := first.(*int64)
	secondPtr, _ := second.(*int64)
	return SharedRefStruct{First: firstPtr, Second: secondPtr}, nil
}

// ---------------------------------------------------------------------
// Schema evolution: two independently registered field sets for the
// same numeric user type ID, simulating an old sender / new receiver
// exchanging a compatible struct whose fields changed between versions
// (§4.4 "schema evolution field crosswalk").
// ---------------------------------------------------------------------

// readPrimitiveField reads and returns one field value declared with
// typ, used to consume a wire field a local schema no longer has (§4.4:
// fields present only on the wire are read and discarded).
func readPrimitiveField(ctx *ReadContext, typ TypeId) any {
	switch typ {
	case VAR_INT32:
		return ctx.ReadVarInt32()
	case VAR_INT64:
		return ctx.ReadVarInt64()
	case STRING:
		return ctx.ReadString()
	case BOOL:
		return ctx.ReadBool()
	default:
		panic(errTypeError("cannot skip unrecognized field type during schema evolution"))
	}
}

// EvolvableV1Struct is the older of two schema variants registered
// under the same numeric type ID.
type EvolvableV1Struct struct {
	A int32
	B string
}

// EvolvableV1Fields is v1's schema: {a int32, b string}.
var EvolvableV1Fields = []FieldDef{
	{Name: "a", Type: VAR_INT32},
	{Name: "b", Type: STRING},
}

// EvolvableV1Serializer writes/reads in sorted-field-name order, which
// for {a, b} matches EvolvableV1Fields' own order.
type EvolvableV1Serializer struct{}

func (EvolvableV1Serializer) TypeID() TypeId   { return COMPATIBLE_STRUCT }
func (EvolvableV1Serializer) RefMode() RefMode { return RefModeNone }

func (EvolvableV1Serializer) WriteData(ctx *WriteContext, value any) error {
	v := value.(EvolvableV1Struct)
	ctx.WriteVarInt32(v.A)
	ctx.WriteString(v.B)
	return nil
}

func (EvolvableV1Serializer) ReadData(ctx *ReadContext) (any, error) {
	a := ctx.ReadVarInt32()
	b := ctx.ReadString()
	return EvolvableV1Struct{A: a, B: b}, nil
}

// EvolvableV2Struct is a newer schema for the same numeric type ID:
// "b" was dropped and "c" was added.
type EvolvableV2Struct struct {
	A int32
	C int32
}

// EvolvableV2Fields is v2's schema: {a int32, c int32}.
var EvolvableV2Fields = []FieldDef{
	{Name: "a", Type: VAR_INT32},
	{Name: "c", Type: VAR_INT32},
}

// EvolvableV2Serializer writes in its own sorted-field-name order
// ({a, c}), but reads generically off whatever schema the wire's
// type_def actually carries: when talking to a v1 sender, it walks
// ctx.WireFields() in wire order, decodes each by its wire-declared
// type, and routes the result into the matching local field via
// ctx.FieldMapping() — discarding "b" (wire-only) and leaving "c" at
// its zero value (local-only), the two invariants §4.4 schema
// evolution requires. Identical wire and local schemas take the same
// walk; only when no wire field list is in scope (ctx.WireFields() is
// nil) does it fall back to a plain positional read.
type EvolvableV2Serializer struct{}

func (EvolvableV2Serializer) TypeID() TypeId   { return COMPATIBLE_STRUCT }
func (EvolvableV2Serializer) RefMode() RefMode { return RefModeNone }

func (EvolvableV2Serializer) WriteData(ctx *WriteContext, value any) error {
	v := value.(EvolvableV2Struct)
	ctx.WriteVarInt32(v.A)
	ctx.WriteVarInt32(v.C)
	return nil
}

func (EvolvableV2Serializer) ReadData(ctx *ReadContext) (any, error) {
	wireFields := ctx.WireFields()
	if wireFields == nil {
		return EvolvableV2Struct{A: ctx.ReadVarInt32(), C: ctx.ReadVarInt32()}, nil
	}
	mapping := ctx.FieldMapping()
	var v EvolvableV2Struct
	for i, wf := range wireFields {
		value := readPrimitiveField(ctx, wf.Type)
		switch mapping[i] {
		case 0:
			v.A = value.(int32)
		case 1:
			v.C = value.(int32)
		default:
			// -1: field dropped locally, value already consumed above.
		}
	}
	return v, nil
}

// ---------------------------------------------------------------------
// Ready-made TypeInfo handles for the primitive harnesses. Primitives
// are identified purely by their 1-byte type_id (§4.4's "default"
// category), so unlike the example structs they need no resolver
// registration to be usable with Wire.Serialize/Deserialize.
// ---------------------------------------------------------------------

var (
	Int32TypeInfo  = &TypeInfo{TypeID: VAR_INT32, Serializer: Int32Serializer{}}
	Int64TypeInfo  = &TypeInfo{TypeID: VAR_INT64, Serializer: Int64Serializer{}}
	BoolTypeInfo   = &TypeInfo{TypeID: BOOL, Serializer: BoolSerializer{}}
	StringTypeInfo = &TypeInfo{TypeID: STRING, Serializer: StringSerializer{}}
	PtrInt64TypeInfo = &TypeInfo{TypeID: INT64, Serializer: PtrInt64Serializer{}}
)

// RegisterExampleTypes registers PointStruct, PayloadStruct, and
// SharedRefStruct against resolver under the user IDs S3/S4 specify (1
// for the inner point struct, 2 for the outer payload struct, 3 for
// the shared-reference struct) and returns their TypeInfo handles.
func RegisterExampleTypes(resolver *TypeResolver) (payload, sharedRef *TypeInfo, err error) {
	pointTI, err := resolver.RegisterNumeric(reflect.TypeOf(PointStruct{}), COMPATIBLE_STRUCT, 1, PointFields, PointStructSerializer{})
	if err != nil {
		return nil, nil, err
	}
	payloadTI, err := resolver.RegisterNumeric(reflect.TypeOf(PayloadStruct{}), COMPATIBLE_STRUCT, 2, PayloadFields, NewPayloadStructSerializer(pointTI))
	if err != nil {
		return nil, nil, err
	}
	sharedRefTI, err := resolver.RegisterNumeric(reflect.TypeOf(SharedRefStruct{}), COMPATIBLE_STRUCT, 3, SharedRefFields, NewSharedRefStructSerializer(PtrInt64TypeInfo))
	if err != nil {
		return nil, nil, err
	}
	return payloadTI, sharedRefTI, nil
}

// FixedStruct exercises the plain STRUCT category, as opposed to
// COMPATIBLE_STRUCT: it carries no inline schema, so its type-info
// follow-up is a bare user_type_id varuint (§4.4's numeric-category
// default), and a receiver must already agree on the field layout.
type FixedStruct struct {
	Value int32
}

// FixedStructSerializer reads/writes FixedStruct's single field.
type FixedStructSerializer struct{}

func (FixedStructSerializer) TypeID() TypeId   { return STRUCT }
func (FixedStructSerializer) RefMode() RefMode { return RefModeNone }

func (FixedStructSerializer) WriteData(ctx *WriteContext, value any) error {
	ctx.WriteVarInt32(value.(FixedStruct).Value)
	return nil
}

func (FixedStructSerializer) ReadData(ctx *ReadContext) (any, error) {
	return FixedStruct{Value: ctx.ReadVarInt32()}, nil
}

// RegisterFixedStruct registers FixedStruct under the STRUCT category
// at userTypeID, exercising the plain-varuint user_type_id follow-up
// path (no inline TypeDef) in WriteAnyTypeInfo/ReadAnyTypeInfo.
func RegisterFixedStruct(resolver *TypeResolver, userTypeID int32) (*TypeInfo, error) {
	return resolver.RegisterNumeric(reflect.TypeOf(FixedStruct{}), STRUCT, userTypeID, nil, FixedStructSerializer{})
}

// evolvableUserTypeID is the shared numeric user type ID both schema
// variants below register under, standing in for "the same logical type
// at two different code versions" (§4.4 schema evolution).
const evolvableUserTypeID = 4

// RegisterEvolvableV1 registers EvolvableV1Struct against resolver,
// simulating an older sender's schema for the type at evolvableUserTypeID.
func RegisterEvolvableV1(resolver *TypeResolver) (*TypeInfo, error) {
	return resolver.RegisterNumeric(reflect.TypeOf(EvolvableV1Struct{}), COMPATIBLE_STRUCT, evolvableUserTypeID, EvolvableV1Fields, EvolvableV1Serializer{})
}

// RegisterEvolvableV2 registers EvolvableV2Struct against resolver,
// simulating a newer receiver's schema for the same numeric type ID.
func RegisterEvolvableV2(resolver *TypeResolver) (*TypeInfo, error) {
	return resolver.RegisterNumeric(reflect.TypeOf(EvolvableV2Struct{}), COMPATIBLE_STRUCT, evolvableUserTypeID, EvolvableV2Fields, EvolvableV2Serializer{})
}
