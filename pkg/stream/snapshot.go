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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kadirpekel/agentcore/pkg/ids"
	"github.com/kadirpekel/agentcore/pkg/orcherr"
)

// CreateContextSnapshot captures ac as an immutable file under the
// snapshot directory and emits a context.snapshot event referencing it.
func (s *Stream) CreateContextSnapshot(ac AgentContext) (AgentContext, error) {
	if ac.CreatedAtMs == 0 {
		ac.CreatedAtMs = ids.NowMs()
	}

	data, err := json.MarshalIndent(ac, "", "  ")
	if err != nil {
		return AgentContext{}, orcherr.Wrap(orcherr.KindParseError, err, "marshal context snapshot")
	}

	path := filepath.Join(s.snapshotDir, fmt.Sprintf("%s_%d.json", ac.SessionID, ac.CreatedAtMs))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return AgentContext{}, orcherr.Wrap(orcherr.KindIOError, err, "write context snapshot")
	}

	s.mu.Lock()
	s.snapshots[ac.SessionID] = &ac
	s.mu.Unlock()

	_, err = s.Append(Event{
		Type:      EventContextSnapshot,
		SessionID: ac.SessionID,
		Actor:     ac.AgentName,
		Payload:   map[string]any{"path": path},
	})
	if err != nil {
		return AgentContext{}, err
	}

	return ac, nil
}

// RestoreContext returns the in-memory snapshot for sessionID, if any.
func (s *Stream) RestoreContext(sessionID string) (*AgentContext, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ac, ok := s.snapshots[sessionID]
	if !ok {
		return nil, false
	}
	copied := *ac
	return &copied, true
}

func readSnapshotFile(path string) (*AgentContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ac AgentContext
	if err := json.Unmarshal(data, &ac); err != nil {
		return nil, err
	}
	return &ac, nil
}

// GCSnapshots deletes snapshot files older than the configured horizon
// (default 48h) and drops their in-memory entries.
func (s *Stream) GCSnapshots() (int, error) {
	horizon := time.Duration(s.cfg.SnapshotGcHours) * time.Hour
	if horizon <= 0 {
		horizon = 48 * time.Hour
	}
	cutoff := time.Now().Add(-horizon)

	entries, err := os.ReadDir(s.snapshotDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, orcherr.Wrap(orcherr.KindIOError, err, "list snapshot dir")
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.snapshotDir, entry.Name())); err == nil {
				removed++
			}
		}
	}

	s.mu.Lock()
	for sid, ac := range s.snapshots {
		if ac.CreatedAtMs < cutoff.UnixMilli() {
			delete(s.snapshots, sid)
		}
	}
	s.mu.Unlock()
	return removed, nil
}
