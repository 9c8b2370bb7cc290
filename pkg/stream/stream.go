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
	"os"
	"path/filepath"
	"sync"

	"github.com/kadirpekel/agentcore/pkg/eventlog"
	"github.com/kadirpekel/agentcore/pkg/ids"
	"github.com/kadirpekel/agentcore/pkg/orcherr"
	"golang.org/x/sync/semaphore"
)

// Config bounds the stream's in-memory footprint and fan-out behavior.
type Config struct {
	MaxStreamSizeMb   int
	MaxCheckpoints    int
	MaxHistorySize    int
	SnapshotGcHours   int
	SubscriberQueue   int
	SubscriberWorkers int
}

// subscription is one registered callback bound to an event type filter.
type subscription struct {
	id        string
	eventType EventType
	cb        func(Event)
	queue     chan Event
	stop      chan struct{}
}

// Stream is the durable event stream (C3).
type Stream struct {
	dir         string
	snapshotDir string
	cfg         Config
	metrics     Metrics
	log         *eventlog.Log
	correlation string
	offsets     *ids.OffsetAllocator

	mu        sync.RWMutex
	history   []Event
	byID      map[string]Event
	lineage   map[string][]string // parentEventId -> child event ids
	pending   map[string]*Checkpoint
	snapshots map[string]*AgentContext

	subMu sync.Mutex
	subs  []*subscription
	sem   *semaphore.Weighted

	initialized bool
}

// New constructs a Stream rooted at dir (holding the log file and a
// "snapshots" subdirectory). Initialize must be called before use.
func New(dir string, cfg Config, metrics Metrics) *Stream {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if cfg.SubscriberQueue <= 0 {
		cfg.SubscriberQueue = 64
	}
	if cfg.SubscriberWorkers <= 0 {
		cfg.SubscriberWorkers = 4
	}
	if cfg.MaxHistorySize <= 0 {
		cfg.MaxHistorySize = 1000
	}

	return &Stream{
		dir:         dir,
		snapshotDir: filepath.Join(dir, "snapshots"),
		cfg:         cfg,
		metrics:     metrics,
		correlation: ids.NewCorrelationID(),
		offsets:     ids.NewOffsetAllocator(0),
		byID:        make(map[string]Event),
		lineage:     make(map[string][]string),
		pending:     make(map[string]*Checkpoint),
		snapshots:   make(map[string]*AgentContext),
		sem:         semaphore.NewWeighted(int64(cfg.SubscriberWorkers)),
	}
}

// Initialize ensures the stream's directories exist and replays the log.
func (s *Stream) Initialize(ctx context.Context) (*ResumeResult, error) {
	if err := os.MkdirAll(s.snapshotDir, 0o755); err != nil {
		return nil, orcherr.Wrap(orcherr.KindIOError, err, "create snapshot dir")
	}

	log, err := eventlog.Open(filepath.Join(s.dir, "orchestration_stream.jsonl"),
		eventlog.WithMaxBytes(int64(s.cfg.MaxStreamSizeMb)*1024*1024))
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindIOError, err, "open stream log")
	}
	s.log = log

	result, err := s.resume(ctx)
	if err != nil {
		return nil, err
	}
	s.initialized = true
	return result, nil
}

func (s *Stream) requireInitialized() error {
	if !s.initialized {
		return orcherr.New(orcherr.KindNotInitialized, "stream not initialized")
	}
	return nil
}

// Append materializes id/timestamp/offset/metadata for a partial event,
// persists it, and fans it out asynchronously.
func (s *Stream) Append(partial Event) (Event, error) {
	if err := s.requireInitialized(); err != nil {
		return Event{}, err
	}

	now := ids.NowMs()
	offset := s.offsets.Next()

	e := partial
	e.Timestamp = now
	e.Metadata.Offset = offset
	if e.Metadata.CorrelationID == "" {
		e.Metadata.CorrelationID = s.correlation
	}
	e.ID = ids.EventID(e.Metadata.CorrelationID, now, offset)

	line, err := json.Marshal(e)
	if err != nil {
		return Event{}, orcherr.Wrap(orcherr.KindParseError, err, "marshal event")
	}

	rotated, err := s.log.Append(line, false)
	if err != nil {
		return Event{}, orcherr.Wrap(orcherr.KindIOError, err, "append event")
	}
	if rotated {
		s.offsets.Reset(0)
		s.metrics.StreamRotated()
	}

	s.recordInMemory(e)
	s.metrics.EventAppended(string(e.Type))
	s.dispatch(e)

	return e, nil
}

// recordInMemory updates the history ring, id index, and lineage tree.
func (s *Stream) recordInMemory(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID[e.ID] = e
	s.history = append(s.history, e)
	if len(s.history) > s.cfg.MaxHistorySize {
		evicted := s.history[:len(s.history)-s.cfg.MaxHistorySize]
		for _, ev := range evicted {
			delete(s.byID, ev.ID)
		}
		s.history = s.history[len(s.history)-s.cfg.MaxHistorySize:]
	}

	if e.ParentEventID != "" {
		s.lineage[e.ParentEventID] = append(s.lineage[e.ParentEventID], e.ID)
	}

	if e.Type == EventCheckpointReq && e.Checkpoint != nil {
		if len(s.pending) >= s.cfg.MaxCheckpoints && s.cfg.MaxCheckpoints > 0 {
			slog.Warn("checkpoint backlog at capacity", "max", s.cfg.MaxCheckpoints)
		}
		s.pending[e.Checkpoint.ID] = e.Checkpoint
		s.metrics.CheckpointRequested()
	}
}

// GetEventHistory returns the most recent events of a type (or all types,
// for the wildcard), newest first, bounded by limit (default 100).
func (s *Stream) GetEventHistory(eventType EventType, limit int) []Event {
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Event, 0, limit)
	for i := len(s.history) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.history[i]
		if eventType == WildcardEventType || eventType == "" || e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Query filters the in-memory history by Filter, newest first.
func (s *Stream) Query(f Filter) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := f.Limit
	if limit <= 0 {
		limit = len(s.history)
	}

	out := make([]Event, 0, limit)
	for i := len(s.history) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.history[i]
		if f.Type != "" && f.Type != WildcardEventType && e.Type != f.Type {
			continue
		}
		if f.SessionID != "" && e.SessionID != f.SessionID {
			continue
		}
		if f.Since > 0 && e.Timestamp < f.Since {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Shutdown quiesces subscribers and closes the log.
func (s *Stream) Shutdown() error {
	s.subMu.Lock()
	for _, sub := range s.subs {
		close(sub.stop)
	}
	s.subs = nil
	s.subMu.Unlock()

	if s.log != nil {
		return s.log.Close()
	}
	return nil
}

// EnsureInitialized re-exposes requireInitialized for the bridge/other packages
// that need to assert the stream is live before wiring hooks.
func (s *Stream) EnsureInitialized() error {
	return s.requireInitialized()
}
