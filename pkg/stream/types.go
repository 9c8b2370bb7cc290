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

// Package stream implements the durable event stream (C3): it wraps the
// append-only log (pkg/eventlog), maintains in-memory event history,
// lineage, pending checkpoints, and context snapshots, and fans events
// out to subscribers.
package stream

// EventType is the closed enum of wire event types (§6).
type EventType string

const (
	EventSessionCreated  EventType = "session.created"
	EventSessionResumed  EventType = "session.resumed"
	EventAgentSpawned    EventType = "agent.spawned"
	EventAgentCompleted  EventType = "agent.completed"
	EventAgentFailed     EventType = "agent.failed"
	EventHandoffInit     EventType = "handoff.initiated"
	EventHandoffComplete EventType = "handoff.completed"
	EventContextSnapshot EventType = "context.snapshot"
	EventContextRestored EventType = "context.restored"
	EventCheckpointReq   EventType = "checkpoint.requested"
	EventCheckpointAppr  EventType = "checkpoint.approved"
	EventCheckpointRej   EventType = "checkpoint.rejected"
	EventHumanIntervene  EventType = "human.intervention"
	EventHumanApproved   EventType = "human.approved"
	EventHumanRejected   EventType = "human.rejected"
	EventLearningExtract EventType = "learning.extracted"
	EventErrorRecovered  EventType = "error.recovered"
	EventTaskProgress    EventType = "task.progress"
	EventSessionError    EventType = "lifecycle.session.error"

	// ledger.* family, emitted through the bridge (C12).
	EventEpicCreated     EventType = "epic.created"
	EventEpicStarted     EventType = "epic.started"
	EventEpicCompleted   EventType = "epic.completed"
	EventEpicFailed      EventType = "epic.failed"
	EventEpicArchived    EventType = "epic.archived"
	EventTaskCreated     EventType = "task.created"
	EventTaskStarted     EventType = "task.started"
	EventTaskCompleted   EventType = "task.completed"
	EventTaskFailed      EventType = "task.failed"
	EventTaskYielded     EventType = "task.yielded"
	EventHandoffCreated  EventType = "handoff.created"
	EventHandoffResumed  EventType = "handoff.resumed"
	EventDirectiveAdded  EventType = "governance.directive_added"
	EventAssumptionAdded EventType = "governance.assumption_added"

	EventStatusUpdate    EventType = "progress.status_update"
	EventPhaseStarted    EventType = "progress.phase_started"
	EventPhaseCompleted  EventType = "progress.phase_completed"
	EventUserActionNeed  EventType = "progress.user_action_needed"
	EventContextHandoff  EventType = "progress.context_handoff"

	// WildcardEventType subscribes to every event type.
	WildcardEventType EventType = "*"
)

// EventMetadata carries the envelope fields every event needs beyond its
// payload.
type EventMetadata struct {
	Offset        int64  `json:"offset"`
	CorrelationID string `json:"correlationId"`
	SourceAgent   string `json:"sourceAgent,omitempty"`
	TargetAgent   string `json:"targetAgent,omitempty"`
	DurationMs    *int64 `json:"duration,omitempty"`
	RetryCount    *int   `json:"retryCount,omitempty"`
}

// Event is an immutable record in the stream.
type Event struct {
	ID            string         `json:"id"`
	Type          EventType      `json:"type"`
	Timestamp     int64          `json:"timestamp"`
	SessionID     string         `json:"sessionId,omitempty"`
	ParentEventID string         `json:"parentEventId,omitempty"`
	Actor         string         `json:"actor,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
	Metadata      EventMetadata  `json:"metadata"`
	Checkpoint    *Checkpoint    `json:"checkpoint,omitempty"`
}

// CheckpointStatus is the closed checkpoint lifecycle state.
type CheckpointStatus string

const (
	CheckpointPending  CheckpointStatus = "pending"
	CheckpointApproved CheckpointStatus = "approved"
	CheckpointRejected CheckpointStatus = "rejected"
	CheckpointExpired  CheckpointStatus = "expired"
)

// CheckpointOption is one of the choices presented at a decision point.
type CheckpointOption struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Action      string `json:"action,omitempty"`
}

// Checkpoint is a decision point awaiting human resolution.
type Checkpoint struct {
	ID             string             `json:"id"`
	DecisionPoint  string             `json:"decisionPoint"`
	Options        []CheckpointOption `json:"options"`
	RequestedBy    string             `json:"requestedBy"`
	RequestedAt    int64              `json:"requestedAt"`
	ApprovedBy     string             `json:"approvedBy,omitempty"`
	ApprovedAt     int64              `json:"approvedAt,omitempty"`
	ExpiresAt      int64              `json:"expiresAt"`
	Status         CheckpointStatus   `json:"status"`
	SelectedOption string             `json:"selectedOption,omitempty"`
	RejectReason   string             `json:"rejectReason,omitempty"`
}

// IsResolved reports whether the checkpoint has left the pending state.
func (c *Checkpoint) IsResolved() bool {
	return c.Status != CheckpointPending
}

// LedgerStateRef mirrors the ledger pointer embedded in a context snapshot.
type LedgerStateRef struct {
	EpicID         string   `json:"epicId,omitempty"`
	TaskID         string   `json:"taskId,omitempty"`
	Phase          string   `json:"phase,omitempty"`
	CompletedTasks []string `json:"completedTasks,omitempty"`
	PendingTasks   []string `json:"pendingTasks,omitempty"`
}

// AgentContext is a point-in-time snapshot of an agent session, used for
// crash recovery and handoff.
type AgentContext struct {
	SessionID     string         `json:"sessionId"`
	AgentName     string         `json:"agentName"`
	Prompt        string         `json:"prompt"`
	Memories      []string       `json:"memories,omitempty"`
	LedgerState   LedgerStateRef `json:"ledgerState"`
	RecentEvents  []Event        `json:"recentEvents,omitempty"`
	CreatedAtMs   int64          `json:"createdAt"`
}

// ResumeResult summarizes what replay reconstructed.
type ResumeResult struct {
	EventsReplayed    int
	PendingCheckpoints []Checkpoint
	ActiveIntents     []string
}

// Filter selects events for Query.
type Filter struct {
	Type      EventType
	SessionID string
	Since     int64
	Limit     int
}
