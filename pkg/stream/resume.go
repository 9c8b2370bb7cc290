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
	"context"
	"encoding/json"
	"log/slog"

	"github.com/kadirpekel/agentcore/pkg/eventlog"
	"golang.org/x/sync/errgroup"
)

// resume reads the on-disk log, reconstructing in-memory state. Malformed
// lines are skipped with a logged warning and never abort recovery (§4.1,
// §7 ParseError policy); no count of skipped lines is kept.
func (s *Stream) resume(ctx context.Context) (*ResumeResult, error) {
	lines, err := eventlog.ReadAllFile(s.log.Path())
	if err != nil {
		return nil, err
	}

	result := &ResumeResult{}
	var maxOffset int64
	snapshotPaths := make(map[string]string)

	s.mu.Lock()
	for _, line := range lines {
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			slog.Warn("skipping malformed event line on replay", "error", err)
			continue
		}

		s.byID[e.ID] = e
		s.history = append(s.history, e)
		if e.Metadata.Offset > maxOffset {
			maxOffset = e.Metadata.Offset
		}

		if e.Type == EventCheckpointReq && e.Checkpoint != nil && e.Checkpoint.Status == CheckpointPending {
			s.pending[e.Checkpoint.ID] = e.Checkpoint
		}
		if e.Type == EventCheckpointAppr || e.Type == EventCheckpointRej {
			if cpID, ok := e.Payload["checkpoint_id"].(string); ok {
				delete(s.pending, cpID)
			}
		}

		if e.Type == EventContextSnapshot && e.SessionID != "" {
			if p, ok := e.Payload["path"].(string); ok && p != "" {
				snapshotPaths[e.SessionID] = p
			}
		}

		result.EventsReplayed++
	}

	if len(s.history) > s.cfg.MaxHistorySize {
		s.history = s.history[len(s.history)-s.cfg.MaxHistorySize:]
	}
	s.mu.Unlock()

	s.offsets.Reset(maxOffset)
	s.rebuildLineage()

	if err := s.rehydrateSnapshots(ctx, snapshotPaths); err != nil {
		slog.Warn("snapshot rehydration incomplete", "error", err)
	}

	s.mu.RLock()
	for _, cp := range s.pending {
		result.PendingCheckpoints = append(result.PendingCheckpoints, *cp)
	}
	s.mu.RUnlock()

	return result, nil
}

// rehydrateSnapshots reloads the snapshot file referenced by each session's
// latest context.snapshot event concurrently (bounded), skipping missing or
// unparseable files rather than failing resume.
func (s *Stream) rehydrateSnapshots(ctx context.Context, paths map[string]string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for sid, path := range paths {
		sid, path := sid, path
		g.Go(func() error {
			ac, err := readSnapshotFile(path)
			if err != nil {
				slog.Warn("skipping unreadable snapshot", "session", sid, "error", err)
				return nil
			}
			s.mu.Lock()
			s.snapshots[sid] = ac
			s.mu.Unlock()
			return nil
		})
	}

	return g.Wait()
}
