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
	"sync"

	"github.com/xlang-io/xwire/meta"
)

// namespaceSpecial1/2 and typeNameSpecial1/2 are the two
// process-wide-constant special characters each meta-string encoder is
// configured with (§9 "Global encoders" — construct once per resolver,
// never as mutable statics).
const (
	namespaceSpecial1 = '.'
	namespaceSpecial2 = '_'
	typeNameSpecial1  = '$'
	typeNameSpecial2  = '_'
)

type userIDKey struct {
	typeID TypeId
	userID int32
}

type nameKey struct {
	namespace string
	name      string
}

// TypeResolver is the read-mostly, shareable-across-contexts registry
// of TypeInfo (§4.6). Registration must complete before any context
// using it is created (§5 "Shared-resource policy").
type TypeResolver struct {
	mu sync.RWMutex

	byGoType map[reflect.Type]*TypeInfo
	byUserID map[userIDKey]*TypeInfo
	byName   map[nameKey]*TypeInfo

	nsEncoder   *meta.Encoder
	nsDecoder   *meta.Decoder
	nameEncoder *meta.Encoder
	nameDecoder *meta.Decoder
}

// NewTypeResolver constructs an empty resolver with the two
// process-wide meta-string encoder/decoder pairs.
func NewTypeResolver() *TypeResolver {
	return &TypeResolver{
		byGoType:    make(map[reflect.Type]*TypeInfo),
		byUserID:    make(map[userIDKey]*TypeInfo),
		byName:      make(map[nameKey]*TypeInfo),
		nsEncoder:   meta.NewEncoder(namespaceSpecial1, namespaceSpecial2),
		nsDecoder:   meta.NewDecoder(namespaceSpecial1, namespaceSpecial2),
		nameEncoder: meta.NewEncoder(typeNameSpecial1, typeNameSpecial2),
		nameDecoder: meta.NewDecoder(typeNameSpecial1, typeNameSpecial2),
	}
}

// RegisterNumeric registers a type identified by a numeric user type
// ID (STRUCT/ENUM/EXT/UNION and their COMPATIBLE_STRUCT counterpart).
func (r *TypeResolver) RegisterNumeric(goType reflect.Type, typeID TypeId, userTypeID int32, fields []FieldDef, ser Serializer) (*TypeInfo, error) {
	var td *TypeDef
	if compatibleCategory(typeID) {
		var err error
		td, err = buildTypeDef("", "", true, userTypeID, fields, r.nsEncoder, r.nameEncoder)
		if err != nil {
			return nil, err
		}
	}
	ti := &TypeInfo{TypeID: typeID, UserTypeID: userTypeID, TypeDef: td, GoType: goType, Serializer: ser}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUserID[userIDKey{typeID: typeID, userID: userTypeID}] = ti
	if goType != nil {
		r.byGoType[goType] = ti
	}
	return ti, nil
}

// RegisterNamed registers a type identified by namespace+name
// (NAMED_STRUCT/NAMED_ENUM/NAMED_EXT/NAMED_UNION and their
// NAMED_COMPATIBLE_STRUCT counterpart).
func (r *TypeResolver) RegisterNamed(goType reflect.Type, typeID TypeId, namespace, name string, fields []FieldDef, ser Serializer) (*TypeInfo, error) {
	td, err := buildTypeDef(namespace, name, false, 0, fields, r.nsEncoder, r.nameEncoder)
	if err != nil {
		return nil, err
	}
	ti := &TypeInfo{TypeID: typeID, Namespace: namespace, TypeName: name, TypeDef: td, GoType: goType, Serializer: ser}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[nameKey{namespace: namespace, name: name}] = ti
	if goType != nil {
		r.byGoType[goType] = ti
	}
	return ti, nil
}

// GetByGoType looks up a TypeInfo by its Go representative type.
func (r *TypeResolver) GetByGoType(t reflect.Type) (*TypeInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ti, ok := r.byGoType[t]
	return ti, ok
}

// GetByUserID implements get_by_user_id (§4.6).
func (r *TypeResolver) GetByUserID(typeID TypeId, userID int32) (*TypeInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ti, ok := r.byUserID[userIDKey{typeID: typeID, userID: userID}]
	if !ok {
		return nil, errTypeError("no type registered for numeric user type ID")
	}
	return ti, nil
}

// GetByName implements get_by_name (§4.6).
func (r *TypeResolver) GetByName(namespace, name string) (*TypeInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ti, ok := r.byName[nameKey{namespace: namespace, name: name}]
	if !ok {
		return nil, errTypeError("no type registered for namespace/name")
	}
	return ti, nil
}

// resolveForTypeDef looks up a local TypeInfo for a freshly-decoded
// inline TypeDef: by (namespace, type_name) for named categories, or by
// (typeID, user_type_id) for numeric COMPATIBLE_STRUCT, whose user ID
// travels inside the type_def body itself (see buildTypeDef).
func (r *TypeResolver) resolveForTypeDef(typeID TypeId, td *TypeDef) (*TypeInfo, error) {
	if td.TypeName != "" || td.Namespace != "" {
		return r.GetByName(td.Namespace, td.TypeName)
	}
	if td.HasUserID {
		return r.GetByUserID(typeID, td.UserTypeID)
	}
	return nil, errTypeError("type_def carries no namespace/name or user_type_id to resolve against a local type")
}
