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

// GetDescendants returns every event causally descended from id, via a
// breadth-first walk of the parent->children lineage tree.
func (s *Stream) GetDescendants(id string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	queue := append([]string(nil), s.lineage[id]...)
	seen := make(map[string]bool)

	for len(queue) > 0 {
		childID := queue[0]
		queue = queue[1:]
		if seen[childID] {
			continue
		}
		seen[childID] = true

		if e, ok := s.byID[childID]; ok {
			out = append(out, e)
		}
		queue = append(queue, s.lineage[childID]...)
	}
	return out
}

// rebuildLineage replays the current history into the lineage tree; used
// after resume() populates history directly (bypassing Append, which
// would otherwise build lineage incrementally).
func (s *Stream) rebuildLineage() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lineage = make(map[string][]string)
	for _, e := range s.history {
		if e.ParentEventID != "" {
			s.lineage[e.ParentEventID] = append(s.lineage[e.ParentEventID], e.ID)
		}
	}
}
