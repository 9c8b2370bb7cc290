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

package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/kadirpekel/agentcore/pkg/ids"
	"github.com/kadirpekel/agentcore/pkg/orcherr"
)

const indexVersion = "6"

// maxRecentLearnings bounds the index's recentLearnings slice; the typed
// bucket files under learnings/ retain the full history.
const maxRecentLearnings = 50

// defaultArchiveCap is the fallback when a Store is opened without an
// explicit cap (invariant 7: at most N archived epics are retained in
// the compact index's pointer ring).
const defaultArchiveCap = 5

// Store is the file-backed ledger (C5). Every operation is serialized
// per ledger path by a single in-process mutex, matching the
// read-parse-mutate-render-write discipline the on-disk format requires.
type Store struct {
	mu         sync.Mutex
	dir        string
	archiveCap int
}

// Open prepares the ledger directory layout, creating it if necessary,
// and returns a Store ready for use. archiveCap bounds the index's
// archive pointer ring (config.Ledger.ArchiveCap); a value <= 0 falls
// back to defaultArchiveCap.
func Open(dir string, archiveCap int) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, "epics"), 0o755); err != nil {
		return nil, orcherr.Wrap(orcherr.KindIOError, err, "create epics directory")
	}
	if err := os.MkdirAll(filepath.Join(dir, "learnings"), 0o755); err != nil {
		return nil, orcherr.Wrap(orcherr.KindIOError, err, "create learnings directory")
	}
	if err := os.MkdirAll(filepath.Join(dir, "archive"), 0o755); err != nil {
		return nil, orcherr.Wrap(orcherr.KindIOError, err, "create archive directory")
	}
	if archiveCap <= 0 {
		archiveCap = defaultArchiveCap
	}
	return &Store{dir: dir, archiveCap: archiveCap}, nil
}

func (s *Store) indexPath() string        { return filepath.Join(s.dir, "index.md") }
func (s *Store) epicDir(id string) string { return filepath.Join(s.dir, "epics", id) }
func (s *Store) archiveDir(id string) string {
	return filepath.Join(s.dir, "archive", id)
}
func (s *Store) metadataPath(id string) string {
	return filepath.Join(s.epicDir(id), "metadata.json")
}
func (s *Store) specPath(id string) string { return filepath.Join(s.epicDir(id), "spec.md") }
func (s *Store) planPath(id string) string { return filepath.Join(s.epicDir(id), "plan.md") }
func (s *Store) logPath(id string) string  { return filepath.Join(s.epicDir(id), "log.md") }

func learningBucket(t LearningType) string {
	switch t {
	case LearningPattern, LearningAntiPattern:
		return "patterns"
	case LearningPreference, LearningInsight:
		return "preferences"
	default:
		return "decisions"
	}
}

// writeFileAtomic writes via a temp file plus rename, the same pattern
// the event log uses for rotation, so a crash mid-write never leaves a
// truncated ledger file behind.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *Store) loadIndex() (*LedgerIndex, error) {
	data, err := os.ReadFile(s.indexPath())
	if os.IsNotExist(err) {
		return &LedgerIndex{
			Meta: IndexMeta{Version: indexVersion, Phase: PhaseClarify, LastUpdated: ids.NowMs()},
		}, nil
	}
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindIOError, err, "read index")
	}
	idx, err := parseIndex(data)
	if err != nil {
		return nil, err
	}
	return idx, nil
}

func (s *Store) saveIndex(idx *LedgerIndex) error {
	rendered, err := renderIndex(idx)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.indexPath(), rendered); err != nil {
		return orcherr.Wrap(orcherr.KindIOError, err, "write index")
	}
	return nil
}

func (s *Store) loadEpic(id string) (*Epic, error) {
	data, err := os.ReadFile(s.metadataPath(id))
	if os.IsNotExist(err) {
		data, err = os.ReadFile(filepath.Join(s.archiveDir(id), "metadata.json"))
	}
	if os.IsNotExist(err) {
		return nil, orcherr.New(orcherr.KindNotInitialized, "epic %s not found", id)
	}
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindIOError, err, "read epic metadata")
	}
	var epic Epic
	if err := json.Unmarshal(data, &epic); err != nil {
		return nil, orcherr.Wrap(orcherr.KindParseError, err, "parse epic metadata")
	}
	return &epic, nil
}

// moveToArchive relocates a completed epic's full directory (metadata,
// spec, plan, log) from epics/<id> to the long-term archive/<id>
// directory named in the filesystem layout, so the active-epics
// directory only ever holds in-flight work.
func (s *Store) moveToArchive(id string) error {
	if err := os.Rename(s.epicDir(id), s.archiveDir(id)); err != nil {
		return orcherr.Wrap(orcherr.KindIOError, err, "move epic %s to archive", id)
	}
	return nil
}

func (s *Store) saveEpic(epic *Epic) error {
	if err := os.MkdirAll(s.epicDir(epic.ID), 0o755); err != nil {
		return orcherr.Wrap(orcherr.KindIOError, err, "create epic directory")
	}

	data, err := json.MarshalIndent(epic, "", "  ")
	if err != nil {
		return orcherr.Wrap(orcherr.KindParseError, err, "marshal epic metadata")
	}
	if err := writeFileAtomic(s.metadataPath(epic.ID), data); err != nil {
		return orcherr.Wrap(orcherr.KindIOError, err, "write epic metadata")
	}
	if err := writeFileAtomic(s.specPath(epic.ID), []byte(epic.Request)); err != nil {
		return orcherr.Wrap(orcherr.KindIOError, err, "write epic spec")
	}
	if err := writeFileAtomic(s.planPath(epic.ID), renderPlan(epic)); err != nil {
		return orcherr.Wrap(orcherr.KindIOError, err, "write epic plan")
	}
	return nil
}

func tasksCompleted(epic *Epic) string {
	completed := 0
	for _, t := range epic.Tasks {
		if t.Status == TaskCompleted {
			completed++
		}
	}
	return fmt.Sprintf("%d/%d", completed, len(epic.Tasks))
}

// CreateEpic starts a new epic. Precondition: no other epic is active
// (invariant 1).
func (s *Store) CreateEpic(title, request string) (*Epic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	if idx.ActiveEpicRef != "" {
		active, err := s.loadEpic(idx.ActiveEpicRef)
		if err == nil && active.Status.Active() {
			return nil, orcherr.New(orcherr.KindStateViolation, "epic %s is still active", active.ID)
		}
	}

	id, err := ids.NewEpicID()
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindIOError, err, "generate epic id")
	}

	now := ids.NowMs()
	epic := &Epic{
		ID:        id,
		Title:     title,
		Request:   request,
		Status:    EpicDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.saveEpic(epic); err != nil {
		return nil, err
	}

	idx.ActiveEpicRef = id
	idx.Meta.Phase = phaseForStatus(epic.Status)
	idx.Meta.LastUpdated = now
	idx.Meta.TasksCompleted = tasksCompleted(epic)
	if err := s.saveIndex(idx); err != nil {
		return nil, err
	}
	return epic, nil
}

// CreateTask adds a task to the active epic. Preconditions: the epic is
// active, it has fewer than 3 tasks (invariant 2), task ids are assigned
// densely (invariant 3), and every dependency names an already-created
// task in the same epic — since dependencies can only reference tasks
// created earlier, the dependency graph is acyclic by construction
// (invariant 4).
func (s *Store) CreateTask(epicID, title, agent string, deps []string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	epic, err := s.loadEpic(epicID)
	if err != nil {
		return nil, err
	}
	if !epic.Status.Active() {
		return nil, orcherr.New(orcherr.KindStateViolation, "epic %s is not active", epicID)
	}
	if len(epic.Tasks) >= 3 {
		return nil, orcherr.New(orcherr.KindStateViolation, "epic %s already has the maximum of 3 tasks", epicID)
	}

	known := make(map[string]struct{}, len(epic.Tasks))
	for _, t := range epic.Tasks {
		known[t.ID] = struct{}{}
	}
	for _, dep := range deps {
		if _, ok := known[dep]; !ok {
			return nil, orcherr.New(orcherr.KindStateViolation, "dependency %s is not an existing task in epic %s", dep, epicID)
		}
	}

	taskID := ids.TaskID(epicID, len(epic.Tasks)+1)
	task := Task{
		ID:           taskID,
		Title:        title,
		Agent:        agent,
		Dependencies: deps,
		Status:       TaskPending,
	}
	epic.Tasks = append(epic.Tasks, task)
	epic.UpdatedAt = ids.NowMs()
	if err := s.saveEpic(epic); err != nil {
		return nil, err
	}

	idx, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	idx.Meta.TasksCompleted = tasksCompleted(epic)
	idx.Meta.LastUpdated = epic.UpdatedAt
	if err := s.saveIndex(idx); err != nil {
		return nil, err
	}
	return &task, nil
}

func deriveTaskOutcome(status TaskStatus) Outcome {
	if status == TaskCompleted {
		return OutcomeSucceeded
	}
	return OutcomeFailed
}

// UpdateTaskStatus transitions a task in the active (or any) epic and
// keeps the index's tasksCompleted summary current.
func (s *Store) UpdateTaskStatus(epicID, taskID string, status TaskStatus, result, taskErr string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	epic, err := s.loadEpic(epicID)
	if err != nil {
		return nil, err
	}

	pos := -1
	for i, t := range epic.Tasks {
		if t.ID == taskID {
			pos = i
			break
		}
	}
	if pos == -1 {
		return nil, orcherr.New(orcherr.KindStateViolation, "task %s not found in epic %s", taskID, epicID)
	}

	now := ids.NowMs()
	task := epic.Tasks[pos]
	if status == TaskRunning && task.StartedAt == 0 {
		task.StartedAt = now
	}
	if status == TaskCompleted || status == TaskFailed || status == TaskTimeout {
		task.CompletedAt = now
		task.Outcome = deriveTaskOutcome(status)
	}
	task.Status = status
	if result != "" {
		task.Result = result
	}
	if taskErr != "" {
		task.Error = taskErr
	}
	epic.Tasks[pos] = task
	epic.UpdatedAt = now

	if err := s.saveEpic(epic); err != nil {
		return nil, err
	}

	idx, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	idx.Meta.TasksCompleted = tasksCompleted(epic)
	idx.Meta.LastUpdated = now
	if err := s.saveIndex(idx); err != nil {
		return nil, err
	}
	return &task, nil
}

// AddLearning appends a learning to its typed bucket file and to the
// index's recent-learnings window.
func (s *Store) AddLearning(learningType LearningType, content string, entities []string, confidence float64, sourceEventID string) (*Learning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(entities) > 5 {
		entities = entities[:5]
	}
	l := &Learning{
		ID:            uuid.NewString(),
		Type:          learningType,
		Content:       content,
		Entities:      entities,
		Confidence:    confidence,
		SourceEventID: sourceEventID,
		ExtractedAt:   ids.NowMs(),
	}

	bucket := learningBucket(learningType)
	bucketPath := filepath.Join(s.dir, "learnings", bucket+".md")
	line := fmt.Sprintf("- [%s] %s (confidence %.2f)\n", l.Type, l.Content, l.Confidence)
	f, err := os.OpenFile(bucketPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindIOError, err, "open learnings bucket %s", bucket)
	}
	_, werr := f.WriteString(line)
	cerr := f.Close()
	if werr != nil {
		return nil, orcherr.Wrap(orcherr.KindIOError, werr, "append learnings bucket %s", bucket)
	}
	if cerr != nil {
		return nil, orcherr.Wrap(orcherr.KindIOError, cerr, "close learnings bucket %s", bucket)
	}

	idx, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	idx.RecentLearnings = append(idx.RecentLearnings, *l)
	if len(idx.RecentLearnings) > maxRecentLearnings {
		idx.RecentLearnings = idx.RecentLearnings[len(idx.RecentLearnings)-maxRecentLearnings:]
	}
	idx.Meta.LastUpdated = l.ExtractedAt
	if err := s.saveIndex(idx); err != nil {
		return nil, err
	}
	return l, nil
}

// GetLearnings returns the index's recent-learnings window.
func (s *Store) GetLearnings() ([]Learning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	return idx.RecentLearnings, nil
}

// CreateHandoff records (overwriting any prior) handoff in the single
// handoff slot.
func (s *Store) CreateHandoff(reason HandoffReason, resumeCommand, summary string, filesModified, whatsDone, whatsNext, keyContext []string) (*Handoff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.loadIndex()
	if err != nil {
		return nil, err
	}

	h := &Handoff{
		Reason:        reason,
		ResumeCommand: resumeCommand,
		Summary:       summary,
		FilesModified: filesModified,
		WhatsDone:     whatsDone,
		WhatsNext:     whatsNext,
		KeyContext:    keyContext,
		CreatedAt:     ids.NowMs(),
	}
	idx.Handoff = h
	idx.Meta.Status = "handoff"
	idx.Meta.LastUpdated = h.CreatedAt
	if err := s.saveIndex(idx); err != nil {
		return nil, err
	}
	return h, nil
}

// AddContext appends a freeform context note to an epic.
func (s *Store) AddContext(epicID, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	epic, err := s.loadEpic(epicID)
	if err != nil {
		return err
	}
	epic.Context = append(epic.Context, note)
	epic.UpdatedAt = ids.NowMs()
	return s.saveEpic(epic)
}

func deriveEpicOutcome(epic *Epic) Outcome {
	if len(epic.Tasks) == 0 {
		return OutcomeFailed
	}
	completed := 0
	for _, t := range epic.Tasks {
		if t.Status == TaskCompleted {
			completed++
		}
	}
	switch {
	case completed == len(epic.Tasks):
		return OutcomeSucceeded
	case completed > 0:
		return OutcomePartial
	default:
		return OutcomeFailed
	}
}

// ArchiveEpic closes out the active epic, derives its outcome when one
// isn't supplied, moves its directory to long-term archive storage, and
// records a pointer entry in the index's archive ring (invariant 7: the
// ring itself retains at most archiveCap entries, oldest evicted first;
// the moved directory is permanent).
func (s *Store) ArchiveEpic(outcome *Outcome) (*Epic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	if idx.ActiveEpicRef == "" {
		return nil, orcherr.New(orcherr.KindStateViolation, "no active epic to archive")
	}

	epic, err := s.loadEpic(idx.ActiveEpicRef)
	if err != nil {
		return nil, err
	}

	resolved := deriveEpicOutcome(epic)
	if outcome != nil {
		resolved = *outcome
	}
	now := ids.NowMs()
	epic.Outcome = resolved
	epic.CompletedAt = now
	if resolved == OutcomeSucceeded {
		epic.Status = EpicCompleted
	} else {
		epic.Status = EpicFailed
	}
	if err := s.saveEpic(epic); err != nil {
		return nil, err
	}
	if err := s.moveToArchive(epic.ID); err != nil {
		return nil, err
	}

	idx.Archive = append(idx.Archive, ArchiveEntry{
		EpicID:     epic.ID,
		Title:      epic.Title,
		Outcome:    resolved,
		ArchivedAt: now,
	})
	if len(idx.Archive) > s.archiveCap {
		idx.Archive = idx.Archive[len(idx.Archive)-s.archiveCap:]
	}
	idx.ActiveEpicRef = ""
	idx.Meta.Phase = PhaseClarify
	idx.Meta.TasksCompleted = ""
	idx.Meta.LastUpdated = now
	if err := s.saveIndex(idx); err != nil {
		return nil, err
	}
	return epic, nil
}

// GetActiveEpic returns the currently active epic, if any.
func (s *Store) GetActiveEpic() (*Epic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	if idx.ActiveEpicRef == "" {
		return nil, nil
	}
	return s.loadEpic(idx.ActiveEpicRef)
}

// GetEpic returns any epic (active or archived) by id.
func (s *Store) GetEpic(id string) (*Epic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadEpic(id)
}

// Index returns a snapshot of the compact index.
func (s *Store) Index() (*LedgerIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadIndex()
}

// SetActiveWorkflow persists workflow engine state into the index's
// meta.active_workflow slot (§4.9).
func (s *Store) SetActiveWorkflow(state map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.loadIndex()
	if err != nil {
		return err
	}
	idx.ActiveWorkflow = state
	idx.Meta.LastUpdated = ids.NowMs()
	return s.saveIndex(idx)
}

// GetActiveWorkflow returns the persisted workflow state, if any.
func (s *Store) GetActiveWorkflow() (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	return idx.ActiveWorkflow, nil
}

// ClearActiveWorkflow removes the persisted workflow state.
func (s *Store) ClearActiveWorkflow() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.loadIndex()
	if err != nil {
		return err
	}
	idx.ActiveWorkflow = nil
	idx.Meta.LastUpdated = ids.NowMs()
	return s.saveIndex(idx)
}
