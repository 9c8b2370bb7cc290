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

// Package bridge implements the ledger event bridge (C12): a thin,
// leaf-only adapter that turns ledger mutations into stream events
// without the stream needing to know anything about the ledger. This
// keeps pkg/stream a leaf dependency: the ledger and workflow packages
// call into the bridge, never the other way around.
package bridge

import (
	"context"

	"github.com/kadirpekel/agentcore/pkg/stream"
)

// Bridge exposes emit(type, payload, causationId?) over a Stream with
// the stable ledger.* event-type enum.
type Bridge struct {
	stream *stream.Stream
}

// New constructs a Bridge over an already-constructed Stream.
func New(s *stream.Stream) *Bridge {
	return &Bridge{stream: s}
}

// Initialize resumes the underlying stream. Lineage rebuilding already
// happens inside Stream.Initialize, so this is a direct passthrough —
// the bridge exists to keep that call off the ledger/workflow call path
// rather than to add behavior of its own.
func (b *Bridge) Initialize(ctx context.Context) (*stream.ResumeResult, error) {
	return b.stream.Initialize(ctx)
}

// Emit appends an event of the given type and payload, optionally
// chained to a causing event via ParentEventID.
func (b *Bridge) Emit(eventType stream.EventType, payload map[string]any, causationID string) (stream.Event, error) {
	return b.stream.Append(stream.Event{
		Type:          eventType,
		Payload:       payload,
		ParentEventID: causationID,
	})
}

// EpicCreated, EpicStarted, EpicCompleted, EpicFailed, EpicArchived emit
// the ledger.epic.* family.
func (b *Bridge) EpicCreated(epicID, title string) (stream.Event, error) {
	return b.Emit(stream.EventEpicCreated, map[string]any{"epicId": epicID, "title": title}, "")
}

func (b *Bridge) EpicStarted(epicID string) (stream.Event, error) {
	return b.Emit(stream.EventEpicStarted, map[string]any{"epicId": epicID}, "")
}

func (b *Bridge) EpicCompleted(epicID string, outcome string) (stream.Event, error) {
	return b.Emit(stream.EventEpicCompleted, map[string]any{"epicId": epicID, "outcome": outcome}, "")
}

func (b *Bridge) EpicFailed(epicID string, reason string) (stream.Event, error) {
	return b.Emit(stream.EventEpicFailed, map[string]any{"epicId": epicID, "reason": reason}, "")
}

func (b *Bridge) EpicArchived(epicID string, outcome string) (stream.Event, error) {
	return b.Emit(stream.EventEpicArchived, map[string]any{"epicId": epicID, "outcome": outcome}, "")
}

// TaskCreated, TaskStarted, TaskCompleted, TaskFailed, TaskYielded emit
// the ledger.task.* family.
func (b *Bridge) TaskCreated(epicID, taskID, agent string) (stream.Event, error) {
	return b.Emit(stream.EventTaskCreated, map[string]any{"epicId": epicID, "taskId": taskID, "agent": agent}, "")
}

func (b *Bridge) TaskStarted(epicID, taskID string) (stream.Event, error) {
	return b.Emit(stream.EventTaskStarted, map[string]any{"epicId": epicID, "taskId": taskID}, "")
}

func (b *Bridge) TaskCompleted(epicID, taskID, result string) (stream.Event, error) {
	return b.Emit(stream.EventTaskCompleted, map[string]any{"epicId": epicID, "taskId": taskID, "result": result}, "")
}

func (b *Bridge) TaskFailed(epicID, taskID, reason string) (stream.Event, error) {
	return b.Emit(stream.EventTaskFailed, map[string]any{"epicId": epicID, "taskId": taskID, "error": reason}, "")
}

func (b *Bridge) TaskYielded(epicID, taskID string, checkpointID string) (stream.Event, error) {
	return b.Emit(stream.EventTaskYielded, map[string]any{"epicId": epicID, "taskId": taskID, "checkpointId": checkpointID}, "")
}

// HandoffCreated and HandoffResumed emit the ledger.handoff.* family.
func (b *Bridge) HandoffCreated(reason, summary string) (stream.Event, error) {
	return b.Emit(stream.EventHandoffCreated, map[string]any{"reason": reason, "summary": summary}, "")
}

func (b *Bridge) HandoffResumed(resumeCommand string) (stream.Event, error) {
	return b.Emit(stream.EventHandoffResumed, map[string]any{"resumeCommand": resumeCommand}, "")
}

// DirectiveAdded and AssumptionAdded emit the ledger.governance.* family.
func (b *Bridge) DirectiveAdded(content string) (stream.Event, error) {
	return b.Emit(stream.EventDirectiveAdded, map[string]any{"content": content}, "")
}

func (b *Bridge) AssumptionAdded(content string) (stream.Event, error) {
	return b.Emit(stream.EventAssumptionAdded, map[string]any{"content": content}, "")
}

// LearningExtracted emits learning.extracted.
func (b *Bridge) LearningExtracted(learningType, content string, confidence float64) (stream.Event, error) {
	return b.Emit(stream.EventLearningExtract, map[string]any{
		"type":       learningType,
		"content":    content,
		"confidence": confidence,
	}, "")
}
