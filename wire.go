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
	"sync"

	"github.com/rs/zerolog"
)

// Reference flags (§6 "Reference sub-format"). Negative values keep
// them disjoint from any valid back-reference ID, which is always
// non-negative.
const (
	NullFlag         int8 = -3
	RefFlag          int8 = -2
	NotNullValueFlag int8 = -1
	RefValueFlag     int8 = 0
)

// Config holds the options a Wire instance is constructed with.
type Config struct {
	RefTracking bool
	MaxDepth    int
	Compatible  bool
	Logger      zerolog.Logger
}

func defaultConfig() Config {
	return Config{
		RefTracking: true,
		MaxDepth:    100,
		Logger:      zerolog.Nop(),
	}
}

// Option configures a Wire instance at construction time.
type Option func(*Config)

// WithRefTracking toggles reference/cycle tracking (RefModeNullAndRef
// fields become plain RefModeNullOnly writes when disabled).
func WithRefTracking(enabled bool) Option {
	return func(c *Config) { c.RefTracking = enabled }
}

// WithMaxDepth bounds nested WriteTypedValue recursion. ReadTypedValue
// does not check nesting depth.
func WithMaxDepth(depth int) Option {
	return func(c *Config) { c.MaxDepth = depth }
}

// WithCompatible enables schema-evolution mode: named types stream a
// full TypeMeta record instead of a bare namespace/name pair, exactly
// like COMPATIBLE_STRUCT does unconditionally.
func WithCompatible(enabled bool) Option {
	return func(c *Config) { c.Compatible = enabled }
}

// WithLogger installs a structured logger that receives a Warn event
// whenever Serialize or Deserialize recovers a *WireError panic. Errors
// returned without a panic are not logged. The default (zerolog.Nop())
// is silent, matching the library convention of never logging by
// default.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// Wire is a single-goroutine serialization session bound to a
// TypeResolver. It owns one reusable WriteContext and one reusable
// ReadContext to avoid a fresh allocation on every call. Use
// ThreadSafeWire for concurrent access.
type Wire struct {
	config   Config
	resolver *TypeResolver

	writeCtx *WriteContext
	readCtx  *ReadContext
}

// New constructs a Wire bound to resolver. Registration on resolver
// should be complete before the first Serialize/Deserialize call.
func New(resolver *TypeResolver, opts ...Option) *Wire {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Wire{
		config:   cfg,
		resolver: resolver,
		writeCtx: newWriteContext(resolver, cfg.RefTracking, cfg.MaxDepth, cfg.Compatible),
		readCtx:  newReadContext(resolver, cfg.RefTracking, cfg.Compatible),
	}
}

// Reset clears both reusable contexts, ready for the next message.
func (w *Wire) Reset() {
	w.writeCtx.Reset()
	w.readCtx.Reset()
}

// Serialize encodes value, whose runtime type must match ti, into a
// self-contained message beginning with the single-byte header of §6.
func (w *Wire) Serialize(ti *TypeInfo, value any) (out []byte, err error) {
	w.writeCtx.Reset()
	defer func() {
		if r := recover(); r != nil {
			if we, ok := r.(*WireError); ok {
				logWireError(w.config.Logger, "serialize", we)
				err = we
				return
			}
			panic(r)
		}
	}()

	w.writeCtx.WriteHeader(value == nil, false)
	if value == nil {
		return w.writeCtx.buffer.GetByteSlice(0, w.writeCtx.buffer.WriterIndex()), nil
	}
	if err := w.writeCtx.WriteTypedValue(ti, value); err != nil {
		return nil, err
	}
	return w.writeCtx.buffer.GetByteSlice(0, w.writeCtx.buffer.WriterIndex()), nil
}

// Deserialize decodes a message previously produced by Serialize for
// the same ti. A truncated or malformed message returns a *WireError
// (Kind BufferOutOfBound/InvalidData/...) rather than panicking; the
// context is always left Reset so the Wire is immediately reusable.
func (w *Wire) Deserialize(ti *TypeInfo, data []byte) (value any, err error) {
	w.readCtx.Reset()
	w.readCtx.SetData(data)
	defer func() {
		w.readCtx.Reset()
		if r := recover(); r != nil {
			if we, ok := r.(*WireError); ok {
				logWireError(w.config.Logger, "deserialize", we)
				err = we
				return
			}
			panic(r)
		}
	}()

	isNil, _, _, herr := w.readCtx.ReadHeader()
	if herr != nil {
		return nil, herr
	}
	if isNil {
		return nil, nil
	}
	return w.readCtx.ReadTypedValue(ti)
}

// ThreadSafeWire pools Wire instances behind sync.Pool so callers on
// different goroutines never share write/read state.
type ThreadSafeWire struct {
	pool     sync.Pool
	resolver *TypeResolver
}

// NewThreadSafe constructs a pooled wrapper around Wire, sharing one
// TypeResolver across every pooled instance (registration is read-only
// once serialization begins, so this is safe).
func NewThreadSafe(resolver *TypeResolver, opts ...Option) *ThreadSafeWire {
	tsw := &ThreadSafeWire{resolver: resolver}
	tsw.pool = sync.Pool{
		New: func() any { return New(resolver, opts...) },
	}
	return tsw
}

func (tsw *ThreadSafeWire) acquire() *Wire {
	return tsw.pool.Get().(*Wire)
}

func (tsw *ThreadSafeWire) release(w *Wire) {
	w.Reset()
	tsw.pool.Put(w)
}

// Serialize serializes value using a pooled Wire.
func (tsw *ThreadSafeWire) Serialize(ti *TypeInfo, value any) ([]byte, error) {
	w := tsw.acquire()
	defer tsw.release(w)
	return w.Serialize(ti, value)
}

// Deserialize deserializes data using a pooled Wire.
func (tsw *ThreadSafeWire) Deserialize(ti *TypeInfo, data []byte) (any, error) {
	w := tsw.acquire()
	defer tsw.release(w)
	return w.Deserialize(ti, data)
}
