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

// Package supervisor implements the adaptive task watchdog (C9): it
// polls the task registry on an interval that widens as work gets
// heavier, reconciling registry state against the external agent
// runtime (retry, stuck-probe, result fetch, registry cleanup).
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kadirpekel/agentcore/pkg/ledger"
	"github.com/kadirpekel/agentcore/pkg/runtimeclient"
	"github.com/kadirpekel/agentcore/pkg/stream"
	"github.com/kadirpekel/agentcore/pkg/taskregistry"
)

// Config mirrors config.SupervisorConfig; kept separate so this package
// doesn't need to import the root config package.
type Config struct {
	BaseIntervalMs      int64
	MaxIntervalMs       int64
	StuckThresholdMs    int64
	RegistryTTLMs       int64
}

// Metrics is the observability surface a supervisor pass reports
// through; Registry (pkg/metrics) implements it.
type Metrics interface {
	PassRecorded(seconds float64)
	TasksGauge(n int)
}

type noopMetrics struct{}

func (noopMetrics) PassRecorded(float64) {}
func (noopMetrics) TasksGauge(int)       {}

// Supervisor reconciles the task registry with the external runtime on
// an adaptive cadence.
type Supervisor struct {
	registry    *taskregistry.Registry
	runtime     runtimeclient.Client
	ledger      *ledger.Store
	checkpoints *stream.Stream
	cfg         Config
	metrics     Metrics
	log         *slog.Logger
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithMetrics overrides the default no-op metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Supervisor) { s.metrics = m }
}

// WithLogger overrides the default slog.Default() logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Supervisor) { s.log = l }
}

// WithCheckpointStream gives the supervisor pass a stream to expire
// overdue checkpoints against (§7 CheckpointExpired: auto-reject on the
// next pass). Nil leaves checkpoint expiry untouched.
func WithCheckpointStream(s *stream.Stream) Option {
	return func(sup *Supervisor) { sup.checkpoints = s }
}

// New constructs a Supervisor. ledgerStore may be nil if the caller
// doesn't want registry task outcomes mirrored into the ledger.
func New(registry *taskregistry.Registry, runtime runtimeclient.Client, ledgerStore *ledger.Store, cfg Config, opts ...Option) *Supervisor {
	s := &Supervisor{
		registry: registry,
		runtime:  runtime,
		ledger:   ledgerStore,
		cfg:      cfg,
		metrics:  noopMetrics{},
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextInterval computes the adaptive poll interval: maxIntervalMs if no
// task is running or any running task is high complexity; the midpoint
// if any running task is medium complexity; baseIntervalMs otherwise.
func (s *Supervisor) NextInterval() time.Duration {
	running := s.registry.GetTasksByStatus(taskregistry.StatusRunning)
	if len(running) == 0 {
		return time.Duration(s.cfg.MaxIntervalMs) * time.Millisecond
	}

	hasHigh, hasMedium := false, false
	for _, t := range running {
		switch t.Complexity {
		case taskregistry.ComplexityHigh:
			hasHigh = true
		case taskregistry.ComplexityMedium:
			hasMedium = true
		}
	}
	switch {
	case hasHigh:
		return time.Duration(s.cfg.MaxIntervalMs) * time.Millisecond
	case hasMedium:
		mid := (s.cfg.BaseIntervalMs + s.cfg.MaxIntervalMs) / 2
		return time.Duration(mid) * time.Millisecond
	default:
		return time.Duration(s.cfg.BaseIntervalMs) * time.Millisecond
	}
}

// Run loops RunPass on the adaptive interval until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	for {
		if err := s.RunPass(ctx); err != nil {
			s.log.Warn("supervisor pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.NextInterval()):
		}
	}
}

// RunPass executes one reconciliation pass. Bounded entirely by the
// runtime client's own context deadlines — it never blocks
// indefinitely.
func (s *Supervisor) RunPass(ctx context.Context) error {
	start := time.Now()
	defer func() {
		s.metrics.PassRecorded(time.Since(start).Seconds())
		s.metrics.TasksGauge(s.registry.Count())
	}()

	if s.checkpoints != nil {
		if n := s.checkpoints.ExpireOverdueCheckpoints(); n > 0 {
			s.log.Info("expired overdue checkpoints", "count", n)
		}
	}

	handled := make(map[string]bool)

	for _, t := range s.registry.GetTimedOutTasks() {
		handled[t.ID] = true
		if t.RetryCount < t.MaxRetries {
			s.retryTask(ctx, t)
			continue
		}
		s.registry.UpdateStatus(t.ID, taskregistry.StatusTimeout, "", "exceeded timeout budget")
		s.recordAntiPattern(fmt.Sprintf("[Supervisor] task %s (%s) timed out after %d retries", t.ID, t.Agent, t.RetryCount))
		s.syncLedger(t.ID, taskregistry.StatusTimeout, "", "timed out")
	}

	for _, t := range s.registry.GetStuckTasks(s.cfg.StuckThresholdMs) {
		if handled[t.ID] {
			continue
		}
		handled[t.ID] = true

		idle, err := s.sessionIdle(ctx, t.SessionID)
		if err != nil {
			s.log.Warn("status probe failed", "task", t.ID, "error", err)
			continue
		}
		if idle {
			s.fetchResult(ctx, t)
			continue
		}
		if t.RetryCount < t.MaxRetries {
			s.retryTask(ctx, t)
		} else {
			s.registry.UpdateStatus(t.ID, taskregistry.StatusFailed, "", "stuck with retries exhausted")
			s.syncLedger(t.ID, taskregistry.StatusFailed, "", "stuck with retries exhausted")
		}
	}

	for _, t := range s.registry.GetTasksByStatus(taskregistry.StatusRunning) {
		if handled[t.ID] {
			continue
		}
		idle, err := s.sessionIdle(ctx, t.SessionID)
		if err != nil || !idle {
			continue
		}
		s.fetchResult(ctx, t)
	}

	s.registry.Cleanup(s.cfg.RegistryTTLMs)
	return nil
}

func (s *Supervisor) sessionIdle(ctx context.Context, sessionID string) (bool, error) {
	statuses, err := s.runtime.Status(ctx)
	if err != nil {
		return false, err
	}
	return statuses[sessionID] == runtimeclient.SessionIdle, nil
}

// retryTask creates a fresh session under the task's original parent,
// reissues the original prompt, and rebinds the registry entry to it.
func (s *Supervisor) retryTask(ctx context.Context, t taskregistry.RegistryTask) {
	sessionID, err := s.runtime.CreateSession(ctx, t.ParentSessionID, t.Agent)
	if err != nil {
		s.registry.UpdateStatus(t.ID, taskregistry.StatusFailed, "", err.Error())
		s.syncLedger(t.ID, taskregistry.StatusFailed, "", err.Error())
		return
	}
	if err := s.runtime.Prompt(ctx, sessionID, t.Agent, t.Prompt); err != nil {
		s.registry.UpdateStatus(t.ID, taskregistry.StatusFailed, "", err.Error())
		s.syncLedger(t.ID, taskregistry.StatusFailed, "", err.Error())
		return
	}

	s.registry.UpdateSessionID(t.ID, sessionID)
	s.registry.IncrementRetry(t.ID)
	s.registry.Heartbeat(t.ID)
	s.registry.UpdateStatus(t.ID, taskregistry.StatusRunning, "", "")
	s.syncLedger(t.ID, taskregistry.StatusRunning, "", "")
}

// fetchResult pulls the session's transcript and stores the latest
// assistant reply as the task result. An empty reply still counts as a
// successful completion.
func (s *Supervisor) fetchResult(ctx context.Context, t taskregistry.RegistryTask) {
	messages, err := s.runtime.Messages(ctx, t.SessionID)
	if err != nil {
		s.registry.UpdateStatus(t.ID, taskregistry.StatusFailed, "", err.Error())
		s.syncLedger(t.ID, taskregistry.StatusFailed, "", err.Error())
		return
	}
	result := runtimeclient.LatestAssistantText(messages)
	s.registry.UpdateStatus(t.ID, taskregistry.StatusCompleted, result, "")
	s.syncLedger(t.ID, taskregistry.StatusCompleted, result, "")
}

func (s *Supervisor) recordAntiPattern(content string) {
	if s.ledger == nil {
		return
	}
	if _, err := s.ledger.AddLearning(ledger.LearningAntiPattern, content, nil, 1.0, ""); err != nil {
		s.log.Warn("failed to record supervisor anti-pattern learning", "error", err)
	}
}

// syncLedger mirrors a registry task's status onto its ledger twin.
// RegistryTask.LedgerTaskID is "<epicId>.<n>"; both packages use
// identical status string values, so the conversion is a bare cast.
func (s *Supervisor) syncLedger(ledgerTaskID string, status taskregistry.Status, result, taskErr string) {
	if s.ledger == nil || ledgerTaskID == "" {
		return
	}
	epicID, _, ok := strings.Cut(ledgerTaskID, ".")
	if !ok {
		return
	}
	if _, err := s.ledger.UpdateTaskStatus(epicID, ledgerTaskID, ledger.TaskStatus(status), result, taskErr); err != nil {
		s.log.Warn("failed to sync task status to ledger", "task", ledgerTaskID, "error", err)
	}
}
