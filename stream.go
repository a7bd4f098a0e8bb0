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
	"io"
	"math"

	"github.com/rs/zerolog"
)

// StreamSource abstracts "a standard input stream" or "a foreign-host
// readinto callback" behind one capability, per §4.2's note that the
// codec hosts two adapter variants over the same interface.
type StreamSource interface {
	// ReadInto fills dst as far as it can in one call and reports how
	// much was read. A return of (0, nil) signals the source is
	// temporarily unable to produce bytes without being exhausted; a
	// return of (0, io.EOF) signals permanent exhaustion.
	ReadInto(dst []byte) (int, error)
}

// SourceFunc adapts a plain function to StreamSource, for foreign-host
// callback-style sources that don't naturally implement io.Reader.
type SourceFunc func(dst []byte) (int, error)

func (f SourceFunc) ReadInto(dst []byte) (int, error) { return f(dst) }

// ioReaderSource adapts a standard io.Reader.
type ioReaderSource struct{ r io.Reader }

func (s ioReaderSource) ReadInto(dst []byte) (int, error) { return s.r.Read(dst) }

// NewIOStreamSource wraps a stdlib io.Reader as a StreamSource.
func NewIOStreamSource(r io.Reader) StreamSource { return ioReaderSource{r: r} }

const streamInitialCapacity = 4096
const streamMaxCapacity = math.MaxUint32

// StreamReader is the pull-based stream adapter feeding a ByteBuffer
// (C2): it owns a growable backing array and binds to a buffer to
// expose that array as the buffer's data.
type StreamReader struct {
	source      StreamSource
	data        []byte
	size        int // valid (filled) prefix length
	readerIndex int
	buffer      *ByteBuffer
	logger      zerolog.Logger
	// growthWatermark logs once the backing array crosses this size,
	// per the ambient diagnostic-sink policy: cold path only.
	growthWatermark int
}

// NewStreamReader creates a stream reader over source with the default
// initial backing capacity.
func NewStreamReader(source StreamSource) *StreamReader {
	return &StreamReader{
		source:          source,
		data:            make([]byte, streamInitialCapacity),
		logger:          zerolog.Nop(),
		growthWatermark: 1 << 20,
	}
}

// BindBuffer binds sr to buf, exposing sr's backing array as buf's
// data. At most one buffer is bound at a time; re-binding transfers
// {size, reader_index, writer_index} to the new buffer and zeroes them
// on the previously bound one.
func (sr *StreamReader) BindBuffer(buf *ByteBuffer) {
	if sr.buffer != nil {
		sr.buffer.data = nil
		sr.buffer.readerIndex = 0
		sr.buffer.writerIndex = 0
	}
	buf.kind = streamKind
	buf.stream = sr
	sr.buffer = buf
	sr.republish()
}

func (sr *StreamReader) republish() {
	if sr.buffer == nil {
		return
	}
	sr.buffer.data = sr.data
	sr.buffer.readerIndex = sr.readerIndex
	sr.buffer.writerIndex = sr.size
}

func (sr *StreamReader) syncFromBuffer() {
	if sr.buffer == nil {
		return
	}
	sr.readerIndex = sr.buffer.readerIndex
}

// Fill ensures at least min unread bytes are available, growing the
// backing array (doubling policy, capped at streamMaxCapacity) and
// looping reads from the source into the tail until satisfied. A
// source read returning zero before min is satisfied is terminal.
func (sr *StreamReader) Fill(min int) error {
	sr.syncFromBuffer()
	unread := sr.size - sr.readerIndex
	if unread >= min {
		sr.republish()
		return nil
	}
	deficit := min - unread
	needed := sr.size + deficit
	if needed > streamMaxCapacity {
		return errOutOfBound("stream growth would exceed maximum capacity")
	}
	if needed > len(sr.data) {
		newCap := len(sr.data)
		if newCap == 0 {
			newCap = streamInitialCapacity
		}
		for newCap < needed {
			newCap *= 2
		}
		if newCap > streamMaxCapacity {
			newCap = streamMaxCapacity
		}
		if newCap > sr.growthWatermark {
			sr.logger.Debug().Int("new_capacity", newCap).Msg("xwire stream backing array grew past watermark")
		}
		grown := make([]byte, newCap)
		copy(grown, sr.data[:sr.size])
		sr.data = grown
	}
	for sr.size-sr.readerIndex < min {
		n, err := sr.source.ReadInto(sr.data[sr.size:])
		if n == 0 {
			if err == io.EOF || err == nil {
				sr.republish()
				return errBufferOutOfBound(sr.readerIndex, min, sr.size-sr.readerIndex)
			}
			sr.republish()
			return errIoError(err)
		}
		sr.size += n
		if err != nil && err != io.EOF {
			sr.republish()
			return errIoError(err)
		}
	}
	sr.republish()
	return nil
}

// Skip advances the reader index by n, filling first if necessary.
func (sr *StreamReader) Skip(n int) error {
	sr.syncFromBuffer()
	if sr.size-sr.readerIndex < n {
		if err := sr.Fill(n); err != nil {
			return err
		}
	}
	sr.readerIndex += n
	sr.republish()
	return nil
}

// Unread rewinds the reader index by n; the only legal way to rewind,
// and only up to the current reader index.
func (sr *StreamReader) Unread(n int) error {
	sr.syncFromBuffer()
	if n > sr.readerIndex {
		return errOutOfBound("unread past start of buffer")
	}
	sr.readerIndex -= n
	sr.republish()
	return nil
}

// ShrinkBuffer compacts the consumed prefix (moving the unread tail to
// index 0) and shrinks the backing array back toward its initial
// capacity when utilization is low. This is a copy-based GC for
// long-lived stream readers.
func (sr *StreamReader) ShrinkBuffer() {
	sr.syncFromBuffer()
	unread := sr.size - sr.readerIndex
	copy(sr.data, sr.data[sr.readerIndex:sr.size])
	sr.size = unread
	sr.readerIndex = 0
	if len(sr.data) > streamInitialCapacity*4 && unread < len(sr.data)/4 {
		shrunk := make([]byte, streamInitialCapacity)
		copy(shrunk, sr.data[:unread])
		sr.data = shrunk
	}
	sr.republish()
}
