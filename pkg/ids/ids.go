// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ids generates the identifiers and monotonic timestamps shared
// across the orchestration core: correlation ids for a process run, event
// ids derived from correlation+timestamp+offset, and short epic ids.
package ids

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// NewCorrelationID returns a fresh correlation id grouping all events
// produced by one process run.
func NewCorrelationID() string {
	return uuid.NewString()
}

// NewSessionID returns a fresh session id for a runtime-client session.
func NewSessionID() string {
	return uuid.NewString()
}

// NewEpicID returns a 6-hex-digit epic id, matching the `/^[a-f0-9]{6}$/`
// invariant tested against.
func NewEpicID() (string, error) {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate epic id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// TaskID formats a task id as "<epicId>.<n>".
func TaskID(epicID string, n int) string {
	return fmt.Sprintf("%s.%d", epicID, n)
}

// EventID derives a stable event id from correlation id, timestamp, and
// offset. Distinct offsets within a correlation always yield distinct ids.
func EventID(correlationID string, timestampMs int64, offset int64) string {
	return fmt.Sprintf("%s-%d-%d", correlationID, timestampMs, offset)
}

// NowMs returns the current time in milliseconds since epoch.
func NowMs() int64 {
	return time.Now().UnixMilli()
}

// Clock abstracts time so tests can control NowMs/offset allocation
// deterministically.
type Clock interface {
	NowMs() int64
}

// SystemClock is the default Clock backed by time.Now.
type SystemClock struct{}

func (SystemClock) NowMs() int64 { return NowMs() }

// OffsetAllocator hands out strictly increasing offsets for a single
// stream segment (invariant 5: offset monotonicity).
type OffsetAllocator struct {
	next int64
}

// NewOffsetAllocator creates an allocator starting after start (the
// highest offset already observed, 0 if none).
func NewOffsetAllocator(start int64) *OffsetAllocator {
	return &OffsetAllocator{next: start}
}

// Next atomically returns the next offset.
func (o *OffsetAllocator) Next() int64 {
	return atomic.AddInt64(&o.next, 1)
}

// Current returns the last-allocated offset without advancing it.
func (o *OffsetAllocator) Current() int64 {
	return atomic.LoadInt64(&o.next)
}

// Reset sets the allocator back to start, used on stream rotation
// (§4.2: rotation resets currentOffset to 0).
func (o *OffsetAllocator) Reset(start int64) {
	atomic.StoreInt64(&o.next, start)
}
