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

// Package threadsafe adds compile-time-typed, generic convenience
// functions on top of xwire.ThreadSafeWire's pooled instances.
package threadsafe

import (
	"fmt"

	"github.com/xlang-io/xwire"
)

// Wire wraps xwire.ThreadSafeWire, adding generic Serialize/Deserialize
// helpers that type-assert the pooled Wire's `any` result back to T.
type Wire struct {
	inner    *xwire.ThreadSafeWire
	resolver *xwire.TypeResolver
}

// New wraps resolver in a thread-safe, generics-friendly pool.
func New(resolver *xwire.TypeResolver, opts ...xwire.Option) *Wire {
	return &Wire{
		inner:    xwire.NewThreadSafe(resolver, opts...),
		resolver: resolver,
	}
}

// Serialize serializes value using the caller-supplied ti, from a
// pooled xwire.Wire instance.
func Serialize[T any](w *Wire, ti *xwire.TypeInfo, value T) ([]byte, error) {
	return w.inner.Serialize(ti, value)
}

// Deserialize deserializes data into a T, type-asserting the decoded
// value against T's runtime type.
func Deserialize[T any](w *Wire, ti *xwire.TypeInfo, data []byte) (T, error) {
	var zero T
	value, err := w.inner.Deserialize(ti, data)
	if err != nil {
		return zero, err
	}
	if value == nil {
		return zero, nil
	}
	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("threadsafe: decoded value %T is not assignable to %T", value, zero)
	}
	return typed, nil
}

// Serialize serializes value using a pooled Wire, returning the raw
// wire bytes without a generic type parameter.
func (w *Wire) Serialize(ti *xwire.TypeInfo, value any) ([]byte, error) {
	return w.inner.Serialize(ti, value)
}

// Deserialize deserializes data using a pooled Wire.
func (w *Wire) Deserialize(ti *xwire.TypeInfo, data []byte) (any, error) {
	return w.inner.Deserialize(ti, data)
}
