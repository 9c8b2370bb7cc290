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

// Package activity implements the high-frequency JSONL activity stream
// (C4): one line per activity, daily rotation, and an availability-over-
// consistency locking policy — on lock contention it falls back to an
// unlocked append rather than drop the line.
package activity

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/kadirpekel/agentcore/pkg/eventlog"
)

// Entry is one activity record.
type Entry struct {
	Timestamp int64          `json:"timestamp"`
	SessionID string         `json:"sessionId,omitempty"`
	Actor     string         `json:"actor,omitempty"`
	Kind      string         `json:"kind"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Logger appends Entry records to a date-suffixed JSONL file, switching to
// a new file at local-date rollover. The underlying log is opened without
// a size limit, so a day's file is never rotated by size.
type Logger struct {
	mu      sync.Mutex
	dir     string
	current *eventlog.Log
	day     string
}

// Open opens (or creates) today's activity log under dir.
func Open(dir string) (*Logger, error) {
	day := time.Now().Format("2006-01-02")
	l, err := eventlog.Open(pathFor(dir, day))
	if err != nil {
		return nil, fmt.Errorf("open activity log: %w", err)
	}
	return &Logger{dir: dir, current: l, day: day}, nil
}

func pathFor(dir, day string) string {
	if day == "" {
		return filepath.Join(dir, "activity.jsonl")
	}
	return filepath.Join(dir, fmt.Sprintf("activity_%s.jsonl", day))
}

// Record appends one activity entry, rolling to a new daily file if the
// local date has advanced since the last write.
func (l *Logger) Record(e Entry) error {
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	today := time.Now().Format("2006-01-02")
	if today != l.day {
		if err := l.current.Close(); err != nil {
			return fmt.Errorf("close prior activity log: %w", err)
		}
		next, err := eventlog.Open(pathFor(l.dir, today))
		if err != nil {
			return fmt.Errorf("open rolled activity log: %w", err)
		}
		l.current = next
		l.day = today
	}

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal activity entry: %w", err)
	}

	// allowUnlockedFallback=true: the activity stream prefers
	// availability over strict cross-process ordering.
	_, err = l.current.Append(line, true)
	return err
}

// Close closes the underlying log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current.Close()
}
