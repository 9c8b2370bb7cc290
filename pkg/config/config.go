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

// Package config provides configuration loading and management for the
// orchestration core.
//
// The core is config-first: supervisor intervals, stream limits, and the
// protected-agent list are defined in YAML and loaded through a Provider
// (file, consul, etcd, zookeeper).
//
// Example config:
//
//	root_dir: .opencode
//	supervisor:
//	  base_interval_ms: 30000
//	  max_interval_ms: 120000
//	  stuck_threshold_ms: 30000
//	stream:
//	  max_size_mb: 10
//	  max_history_size: 1000
//	learning:
//	  min_confidence: 0.6
//	  max_learnings: 10
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure for the orchestration core.
type Config struct {
	// RootDir is the working directory holding the ledger, streams,
	// snapshots, and checkpoints (see the filesystem layout in the
	// project design notes). Defaults to ".opencode".
	RootDir string `yaml:"root_dir,omitempty"`

	Supervisor SupervisorConfig `yaml:"supervisor,omitempty"`
	Stream     StreamConfig     `yaml:"stream,omitempty"`
	Ledger     LedgerConfig     `yaml:"ledger,omitempty"`
	Learning   LearningConfig   `yaml:"learning,omitempty"`
	Access     AccessConfig     `yaml:"access,omitempty"`
	Logger     *LoggerConfig    `yaml:"logger,omitempty"`
	HTTP       *HTTPConfig      `yaml:"http,omitempty"`
}

// SupervisorConfig drives C9's adaptive polling loop.
type SupervisorConfig struct {
	BaseIntervalMs      int64 `yaml:"base_interval_ms,omitempty"`
	MaxIntervalMs       int64 `yaml:"max_interval_ms,omitempty"`
	StuckThresholdMs    int64 `yaml:"stuck_threshold_ms,omitempty"`
	CheckpointTimeoutMs int64 `yaml:"checkpoint_timeout_ms,omitempty"`
	RegistryTTLMs       int64 `yaml:"registry_ttl_ms,omitempty"`
}

// StreamConfig bounds C3's durable event stream.
type StreamConfig struct {
	MaxStreamSizeMb int   `yaml:"max_size_mb,omitempty"`
	MaxCheckpoints  int   `yaml:"max_checkpoints,omitempty"`
	MaxHistorySize  int   `yaml:"max_history_size,omitempty"`
	SnapshotGcHours int   `yaml:"snapshot_gc_hours,omitempty"`
	SubscriberQueue int   `yaml:"subscriber_queue,omitempty"`
	SubscriberWorkers int `yaml:"subscriber_workers,omitempty"`
}

// LedgerConfig bounds C5's archive ring.
type LedgerConfig struct {
	MaxTasksPerEpic int `yaml:"max_tasks_per_epic,omitempty"`
	ArchiveCap      int `yaml:"archive_cap,omitempty"`
}

// LearningConfig drives C10's extraction thresholds.
type LearningConfig struct {
	MinConfidence float64 `yaml:"min_confidence,omitempty"`
	MaxLearnings  int     `yaml:"max_learnings,omitempty"`
}

// AccessConfig carries the closed protected-agent list for C7.
type AccessConfig struct {
	ProtectedAgents []string `yaml:"protected_agents,omitempty"`
}

// LoggerConfig configures the ambient slog setup.
type LoggerConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
	Output string `yaml:"output,omitempty"`
}

// HTTPConfig configures the chi-based tool surface.
type HTTPConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// DefaultProtectedAgents is the closed list from the external interfaces
// section: agents that may only be invoked by chief-of-staff.
var DefaultProtectedAgents = []string{
	"planner", "executor", "validator", "oracle", "librarian", "explore",
	"interviewer", "spec-writer", "memory-catcher", "workflow-architect",
	"frontend-ui-ux-engineer",
}

// SetDefaults fills every zero-valued field with the documented default.
func (c *Config) SetDefaults() {
	if c.RootDir == "" {
		c.RootDir = ".opencode"
	}

	if c.Supervisor.BaseIntervalMs == 0 {
		c.Supervisor.BaseIntervalMs = 30000
	}
	if c.Supervisor.MaxIntervalMs == 0 {
		c.Supervisor.MaxIntervalMs = 120000
	}
	if c.Supervisor.StuckThresholdMs == 0 {
		c.Supervisor.StuckThresholdMs = 30000
	}
	if c.Supervisor.CheckpointTimeoutMs == 0 {
		c.Supervisor.CheckpointTimeoutMs = 300000
	}
	if c.Supervisor.RegistryTTLMs == 0 {
		c.Supervisor.RegistryTTLMs = 3600000
	}

	if c.Stream.MaxStreamSizeMb == 0 {
		c.Stream.MaxStreamSizeMb = 10
	}
	if c.Stream.MaxCheckpoints == 0 {
		c.Stream.MaxCheckpoints = 20
	}
	if c.Stream.MaxHistorySize == 0 {
		c.Stream.MaxHistorySize = 1000
	}
	if c.Stream.SnapshotGcHours == 0 {
		c.Stream.SnapshotGcHours = 48
	}
	if c.Stream.SubscriberQueue == 0 {
		c.Stream.SubscriberQueue = 64
	}
	if c.Stream.SubscriberWorkers == 0 {
		c.Stream.SubscriberWorkers = 4
	}

	if c.Ledger.MaxTasksPerEpic == 0 {
		c.Ledger.MaxTasksPerEpic = 3
	}
	if c.Ledger.ArchiveCap == 0 {
		c.Ledger.ArchiveCap = 5
	}

	if c.Learning.MinConfidence == 0 {
		c.Learning.MinConfidence = 0.6
	}
	if c.Learning.MaxLearnings == 0 {
		c.Learning.MaxLearnings = 10
	}

	if len(c.Access.ProtectedAgents) == 0 {
		c.Access.ProtectedAgents = append([]string(nil), DefaultProtectedAgents...)
	}

	if c.Logger == nil {
		c.Logger = &LoggerConfig{}
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "text"
	}
	if c.Logger.Output == "" {
		c.Logger.Output = "stderr"
	}

	if c.HTTP == nil {
		c.HTTP = &HTTPConfig{}
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8090"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.RootDir == "" {
		errs = append(errs, "root_dir must not be empty")
	}

	if c.Supervisor.BaseIntervalMs <= 0 {
		errs = append(errs, "supervisor.base_interval_ms must be positive")
	}
	if c.Supervisor.MaxIntervalMs < c.Supervisor.BaseIntervalMs {
		errs = append(errs, "supervisor.max_interval_ms must be >= base_interval_ms")
	}
	if c.Supervisor.StuckThresholdMs <= 0 {
		errs = append(errs, "supervisor.stuck_threshold_ms must be positive")
	}

	if c.Stream.MaxStreamSizeMb <= 0 {
		errs = append(errs, "stream.max_size_mb must be positive")
	}
	if c.Stream.MaxHistorySize <= 0 {
		errs = append(errs, "stream.max_history_size must be positive")
	}

	if c.Ledger.MaxTasksPerEpic <= 0 {
		errs = append(errs, "ledger.max_tasks_per_epic must be positive")
	}
	if c.Ledger.ArchiveCap <= 0 {
		errs = append(errs, "ledger.archive_cap must be positive")
	}

	if c.Learning.MinConfidence < 0 || c.Learning.MinConfidence > 1 {
		errs = append(errs, "learning.min_confidence must be within [0,1]")
	}
	if c.Learning.MaxLearnings <= 0 {
		errs = append(errs, "learning.max_learnings must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
