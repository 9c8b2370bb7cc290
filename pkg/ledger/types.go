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

// Package ledger implements the file-backed, markdown-rendered state
// store (C5): a compact index pointer, one directory per epic, and
// typed learning buckets, mutated through atomic read-parse-mutate-
// render-write operations.
package ledger

// EpicStatus is the closed Epic lifecycle state.
type EpicStatus string

const (
	EpicDraft      EpicStatus = "draft"
	EpicPlanning   EpicStatus = "planning"
	EpicInProgress EpicStatus = "in_progress"
	EpicReview     EpicStatus = "review"
	EpicCompleted  EpicStatus = "completed"
	EpicFailed     EpicStatus = "failed"
	EpicPaused     EpicStatus = "paused"
)

// Active reports whether an epic in this status counts toward invariant 1
// (at most one active epic).
func (s EpicStatus) Active() bool {
	return s != EpicCompleted && s != EpicFailed
}

// Outcome is the closed epic outcome classification.
type Outcome string

const (
	OutcomeSucceeded Outcome = "SUCCEEDED"
	OutcomePartial   Outcome = "PARTIAL"
	OutcomeFailed    Outcome = "FAILED"
)

// Phase is the v6 index phase, derived from the active epic's status.
type Phase string

const (
	PhaseClarify Phase = "CLARIFY"
	PhasePlan    Phase = "PLAN"
	PhaseExecute Phase = "EXECUTE"
	PhaseReview  Phase = "REVIEW"
	PhaseComplete Phase = "COMPLETE"
)

// phaseForStatus maps an epic status to its index phase (§4.3).
func phaseForStatus(s EpicStatus) Phase {
	switch s {
	case EpicDraft:
		return PhaseClarify
	case EpicPlanning:
		return PhasePlan
	case EpicInProgress, EpicPaused:
		return PhaseExecute
	case EpicReview:
		return PhaseReview
	case EpicCompleted, EpicFailed:
		return PhaseComplete
	default:
		return PhaseClarify
	}
}

// TaskStatus is the closed Task lifecycle state.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskTimeout   TaskStatus = "timeout"
)

// Task is a child of an epic.
type Task struct {
	ID           string     `json:"id" yaml:"id"`
	Title        string     `json:"title" yaml:"title"`
	Agent        string     `json:"agent" yaml:"agent"`
	Dependencies []string   `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Status       TaskStatus `json:"status" yaml:"status"`
	Result       string     `json:"result,omitempty" yaml:"result,omitempty"`
	Error        string     `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt    int64      `json:"startedAt,omitempty" yaml:"startedAt,omitempty"`
	CompletedAt  int64      `json:"completedAt,omitempty" yaml:"completedAt,omitempty"`
	Outcome      Outcome    `json:"outcome,omitempty" yaml:"outcome,omitempty"`
}

// Epic is a unit of user-requested work.
type Epic struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Request     string     `json:"request" yaml:"request"`
	Status      EpicStatus `json:"status" yaml:"status"`
	Tasks       []Task     `json:"tasks" yaml:"tasks"`
	Context     []string   `json:"context,omitempty" yaml:"context,omitempty"`
	CreatedAt   int64      `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   int64      `json:"updatedAt" yaml:"updatedAt"`
	CompletedAt int64      `json:"completedAt,omitempty" yaml:"completedAt,omitempty"`
	Outcome     Outcome    `json:"outcome,omitempty" yaml:"outcome,omitempty"`
}

// LearningType is the closed learning classification.
type LearningType string

const (
	LearningPattern     LearningType = "pattern"
	LearningAntiPattern LearningType = "antiPattern"
	LearningDecision    LearningType = "decision"
	LearningPreference  LearningType = "preference"
	LearningCorrection  LearningType = "correction"
	LearningInsight     LearningType = "insight"
)

// Learning is a single extracted or manually recorded insight.
type Learning struct {
	ID           string       `yaml:"id"`
	Type         LearningType `yaml:"type"`
	Content      string       `yaml:"content"`
	Entities     []string     `yaml:"entities,omitempty"`
	Confidence   float64      `yaml:"confidence"`
	SourceEventID string      `yaml:"sourceEventId,omitempty"`
	ExtractedAt  int64        `yaml:"extractedAt"`
}

// HandoffReason is the closed set of reasons a handoff is created.
type HandoffReason string

const (
	HandoffContextLimit HandoffReason = "context_limit"
	HandoffUserExit     HandoffReason = "user_exit"
	HandoffSessionBreak HandoffReason = "session_break"
)

// Handoff is a persisted record allowing a session to be resumed later.
// At most one is active (enforced by Store.CreateHandoff overwriting the
// single slot).
type Handoff struct {
	Reason        HandoffReason `yaml:"reason"`
	ResumeCommand string        `yaml:"resumeCommand"`
	Summary       string        `yaml:"summary"`
	FilesModified []string      `yaml:"filesModified,omitempty"`
	WhatsDone     []string      `yaml:"whatsDone,omitempty"`
	WhatsNext     []string      `yaml:"whatsNext,omitempty"`
	KeyContext    []string      `yaml:"keyContext,omitempty"`
	CreatedAt     int64         `yaml:"createdAt"`
}

// IndexMeta is the compact index's frontmatter.
type IndexMeta struct {
	Version     string `yaml:"version"`
	SessionID   string `yaml:"sessionId,omitempty"`
	Phase       Phase  `yaml:"phase"`
	LastUpdated int64  `yaml:"lastUpdated"`
	Status      string `yaml:"status,omitempty"`
	TasksCompleted string `yaml:"tasksCompleted,omitempty"`
}

// ArchiveEntry is one row in the compact archive ring (invariant 7: at
// most the store's archive cap retained, 5 by default).
type ArchiveEntry struct {
	EpicID      string  `yaml:"epicId"`
	Title       string  `yaml:"title"`
	Outcome     Outcome `yaml:"outcome"`
	ArchivedAt  int64   `yaml:"archivedAt"`
}

// LedgerIndex is the compact markdown-rendered pointer file.
type LedgerIndex struct {
	Meta            IndexMeta      `yaml:"meta"`
	ActiveEpicRef   string         `yaml:"activeEpicRef,omitempty"`
	RecentLearnings []Learning     `yaml:"recentLearnings,omitempty"`
	Handoff         *Handoff       `yaml:"handoff,omitempty"`
	ActiveWorkflow  map[string]any `yaml:"active_workflow,omitempty"`
	Archive         []ArchiveEntry `yaml:"archive,omitempty"`
}
