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

package stream

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/kadirpekel/agentcore/pkg/ids"
	"github.com/kadirpekel/agentcore/pkg/orcherr"
)

// RequestCheckpoint creates a pending checkpoint and emits a
// checkpoint.requested event carrying it.
func (s *Stream) RequestCheckpoint(decisionPoint string, options []CheckpointOption, requestedBy string, ttlMs int64) (Checkpoint, error) {
	now := ids.NowMs()
	cp := Checkpoint{
		ID:            uuid.NewString(),
		DecisionPoint: decisionPoint,
		Options:       options,
		RequestedBy:   requestedBy,
		RequestedAt:   now,
		ExpiresAt:     now + ttlMs,
		Status:        CheckpointPending,
	}

	_, err := s.Append(Event{
		Type:       EventCheckpointReq,
		Actor:      requestedBy,
		Checkpoint: &cp,
		Payload:    map[string]any{"checkpoint_id": cp.ID, "decision_point": decisionPoint},
	})
	if err != nil {
		return Checkpoint{}, err
	}
	return cp, nil
}

// ApproveCheckpoint resolves a pending checkpoint as approved. Only a
// pending checkpoint may transition; a repeated resolve returns false.
func (s *Stream) ApproveCheckpoint(checkpointID, approvedBy, selectedOption string) (bool, error) {
	return s.resolveCheckpoint(checkpointID, func(cp *Checkpoint) {
		cp.Status = CheckpointApproved
		cp.ApprovedBy = approvedBy
		cp.ApprovedAt = ids.NowMs()
		cp.SelectedOption = selectedOption
	}, EventCheckpointAppr, approvedBy)
}

// RejectCheckpoint resolves a pending checkpoint as rejected.
func (s *Stream) RejectCheckpoint(checkpointID, reason string) (bool, error) {
	return s.resolveCheckpoint(checkpointID, func(cp *Checkpoint) {
		cp.Status = CheckpointRejected
		cp.RejectReason = reason
	}, EventCheckpointRej, "")
}

// ExpireOverdueCheckpoints auto-rejects every pending checkpoint whose
// expiresAt has passed, per the CheckpointExpired error-kind policy: the
// checkpoint moves to the expired status with reason "expired", and a
// checkpoint.rejected event is appended so replay does not re-pend it.
func (s *Stream) ExpireOverdueCheckpoints() int {
	now := ids.NowMs()

	s.mu.Lock()
	var expired []Checkpoint
	for _, cp := range s.pending {
		if cp.Status == CheckpointPending && now > cp.ExpiresAt {
			cp.Status = CheckpointExpired
			cp.RejectReason = "expired"
			expired = append(expired, *cp)
			delete(s.pending, cp.ID)
		}
	}
	s.mu.Unlock()

	for i := range expired {
		cp := &expired[i]
		if _, err := s.Append(Event{
			Type:       EventCheckpointRej,
			Checkpoint: cp,
			Payload:    map[string]any{"checkpoint_id": cp.ID, "reason": cp.RejectReason},
		}); err != nil {
			slog.Warn("failed to persist checkpoint expiry", "checkpoint", cp.ID, "error", err)
		}
		s.metrics.CheckpointResolved(string(CheckpointExpired))
	}
	return len(expired)
}

// GetPendingCheckpoints returns every checkpoint still awaiting
// resolution.
func (s *Stream) GetPendingCheckpoints() []Checkpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Checkpoint, 0, len(s.pending))
	for _, cp := range s.pending {
		out = append(out, *cp)
	}
	return out
}

func (s *Stream) resolveCheckpoint(checkpointID string, mutate func(*Checkpoint), eventType EventType, actor string) (bool, error) {
	s.mu.Lock()
	cp, ok := s.pending[checkpointID]
	if !ok || cp.Status != CheckpointPending {
		s.mu.Unlock()
		return false, nil
	}
	mutate(cp)
	resolved := *cp
	delete(s.pending, checkpointID)
	s.mu.Unlock()

	_, err := s.Append(Event{
		Type:       eventType,
		Actor:      actor,
		Checkpoint: &resolved,
		Payload:    map[string]any{"checkpoint_id": checkpointID, "selected_option": resolved.SelectedOption, "reason": resolved.RejectReason},
	})
	if err != nil {
		return false, orcherr.Wrap(orcherr.KindIOError, err, "persist checkpoint resolution")
	}

	s.metrics.CheckpointResolved(string(resolved.Status))
	return true, nil
}
