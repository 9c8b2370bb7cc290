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

// Package buffers implements the per-target signal and prompt FIFO
// queues (C8). Both buffers share the same queue discipline; persistence
// relies on the ledger's "suspended" task state rather than on these
// in-memory queues surviving a crash.
package buffers

import (
	"sync"

	"github.com/google/uuid"
	"github.com/kadirpekel/agentcore/pkg/ids"
)

// UpwardSignalPayload is the typed body of an UpwardSignal.
type UpwardSignalPayload struct {
	Type   string `json:"type"` // ASK_USER | SPAWN_HELPER | LOG_METRIC
	Data   any    `json:"data,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// UpwardSignal is queued by a busy parent's child toward its parent
// session.
type UpwardSignal struct {
	ID              string              `json:"id"`
	SourceAgent     string              `json:"sourceAgent"`
	TargetSessionID string              `json:"targetSessionId"`
	Payload         UpwardSignalPayload `json:"payload"`
	CreatedAt       int64               `json:"createdAt"`
}

// DeferredPrompt is queued for a target session that is currently busy.
type DeferredPrompt struct {
	ID              string `json:"id"`
	TargetSessionID string `json:"targetSessionId"`
	Agent           string `json:"agent"`
	Prompt          string `json:"prompt"`
	MessageID       string `json:"messageId,omitempty"`
	CreatedAt       int64  `json:"createdAt"`
	Attempts        int    `json:"attempts"`
}

// SignalBuffer holds per-target FIFO queues of UpwardSignal.
type SignalBuffer struct {
	mu    sync.Mutex
	queue map[string][]UpwardSignal
}

// NewSignalBuffer constructs an empty SignalBuffer.
func NewSignalBuffer() *SignalBuffer {
	return &SignalBuffer{queue: make(map[string][]UpwardSignal)}
}

// Enqueue appends a signal for its target session, filling in id/timestamp
// if unset.
func (b *SignalBuffer) Enqueue(sig UpwardSignal) UpwardSignal {
	if sig.ID == "" {
		sig.ID = uuid.NewString()
	}
	if sig.CreatedAt == 0 {
		sig.CreatedAt = ids.NowMs()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue[sig.TargetSessionID] = append(b.queue[sig.TargetSessionID], sig)
	return sig
}

// HasSignals reports whether sessionID has any queued signals.
func (b *SignalBuffer) HasSignals(sessionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue[sessionID]) > 0
}

// Flush returns and removes every signal queued for sessionID, in FIFO
// order.
func (b *SignalBuffer) Flush(sessionID string) []UpwardSignal {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.queue[sessionID]
	delete(b.queue, sessionID)
	return items
}

// Clear drops every queue.
func (b *SignalBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = make(map[string][]UpwardSignal)
}

// PromptBuffer holds per-target FIFO queues of DeferredPrompt.
type PromptBuffer struct {
	mu    sync.Mutex
	queue map[string][]DeferredPrompt
}

// NewPromptBuffer constructs an empty PromptBuffer.
func NewPromptBuffer() *PromptBuffer {
	return &PromptBuffer{queue: make(map[string][]DeferredPrompt)}
}

// Enqueue appends a deferred prompt for its target session.
func (b *PromptBuffer) Enqueue(p DeferredPrompt) DeferredPrompt {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt == 0 {
		p.CreatedAt = ids.NowMs()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue[p.TargetSessionID] = append(b.queue[p.TargetSessionID], p)
	return p
}

// HasSignals reports whether sessionID has any queued prompts.
func (b *PromptBuffer) HasSignals(sessionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue[sessionID]) > 0
}

// Flush returns and removes every prompt queued for sessionID.
func (b *PromptBuffer) Flush(sessionID string) []DeferredPrompt {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.queue[sessionID]
	delete(b.queue, sessionID)
	return items
}

// Clear drops every queue.
func (b *PromptBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = make(map[string][]DeferredPrompt)
}
