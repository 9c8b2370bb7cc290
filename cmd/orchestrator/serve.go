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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kadirpekel/agentcore/pkg/access"
	"github.com/kadirpekel/agentcore/pkg/bridge"
	"github.com/kadirpekel/agentcore/pkg/buffers"
	"github.com/kadirpekel/agentcore/pkg/config"
	"github.com/kadirpekel/agentcore/pkg/httpapi"
	"github.com/kadirpekel/agentcore/pkg/ledger"
	"github.com/kadirpekel/agentcore/pkg/learning"
	"github.com/kadirpekel/agentcore/pkg/metrics"
	"github.com/kadirpekel/agentcore/pkg/runtimeclient"
	"github.com/kadirpekel/agentcore/pkg/stream"
	"github.com/kadirpekel/agentcore/pkg/supervisor"
	"github.com/kadirpekel/agentcore/pkg/taskregistry"
	"github.com/kadirpekel/agentcore/pkg/workflow"
	"github.com/prometheus/client_golang/prometheus"
)

// ServeCmd starts the orchestration core: the durable stream, the task
// supervisor loop, the realtime learning extractor, and the HTTP tool
// surface, wired together under one cancelable context.
type ServeCmd struct {
	WorkflowsDir string `name:"workflows-dir" help:"Directory of workflow definition markdown files."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	cfg, loader, err := config.LoadConfigFile(ctx, cli.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	defer loader.Close()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewRegistry(reg)

	store, err := ledger.Open(cfg.RootDir+"/ledger", cfg.Ledger.ArchiveCap)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}

	st := stream.New(cfg.RootDir+"/stream", stream.Config{
		MaxStreamSizeMb:   cfg.Stream.MaxStreamSizeMb,
		MaxCheckpoints:    cfg.Stream.MaxCheckpoints,
		MaxHistorySize:    cfg.Stream.MaxHistorySize,
		SnapshotGcHours:   cfg.Stream.SnapshotGcHours,
		SubscriberQueue:   cfg.Stream.SubscriberQueue,
		SubscriberWorkers: cfg.Stream.SubscriberWorkers,
	}, m)

	resumeResult, err := st.Initialize(ctx)
	if err != nil {
		return fmt.Errorf("initialize stream: %w", err)
	}
	slog.Info("stream resumed", "pendingCheckpoints", len(resumeResult.PendingCheckpoints))

	led := bridge.New(st)
	guard := access.New(cfg.Access.ProtectedAgents)
	tasks := taskregistry.New()
	signals := buffers.NewSignalBuffer()
	prompts := buffers.NewPromptBuffer()
	runtime := runtimeclient.NewInMemoryClient()

	extractor := learning.New(learning.Config{
		MinConfidence: cfg.Learning.MinConfidence,
		MaxLearnings:  cfg.Learning.MaxLearnings,
	})
	stopLearning := extractor.SubscribeRealtime(st, func(cand learning.Candidate) {
		if _, err := store.AddLearning(cand.Type, cand.Content, cand.Entities, cand.Confidence, cand.SourceEventID); err != nil {
			slog.Warn("failed to persist realtime learning", "error", err)
		}
	})
	defer stopLearning()

	sup := supervisor.New(tasks, runtime, store, supervisor.Config{
		BaseIntervalMs:   cfg.Supervisor.BaseIntervalMs,
		MaxIntervalMs:    cfg.Supervisor.MaxIntervalMs,
		StuckThresholdMs: cfg.Supervisor.StuckThresholdMs,
		RegistryTTLMs:    cfg.Supervisor.RegistryTTLMs,
	}, supervisor.WithMetrics(m), supervisor.WithCheckpointStream(st))
	go sup.Run(ctx)

	defRegistry := workflow.NewDefinitionRegistry()
	if c.WorkflowsDir != "" {
		if err := defRegistry.LoadDir(c.WorkflowsDir); err != nil {
			slog.Warn("failed to load workflow definitions", "error", err)
		} else {
			slog.Info("loaded workflow definitions", "count", len(defRegistry.List()))
		}
	}

	// checkpointNotifier requests an actual stream checkpoint when a
	// workflow step pauses, stamps its id onto the persisted state so the
	// approveCheckpoint handler can find its way back to this run, and
	// emits the ledger.task.yielded bridge event (§4.10).
	checkpointNotifier := func(state *workflow.State) {
		opts := []stream.CheckpointOption{{ID: "continue", Label: "Continue workflow"}}
		cp, err := st.RequestCheckpoint(
			fmt.Sprintf("workflow %s paused for %s", state.DefinitionName, state.Task),
			opts, state.DefinitionName, cfg.Supervisor.CheckpointTimeoutMs,
		)
		if err != nil {
			slog.Warn("failed to request workflow checkpoint", "definition", state.DefinitionName, "error", err)
			return
		}
		state.CheckpointID = cp.ID
		if _, err := led.TaskYielded(state.Task, state.DefinitionName, cp.ID); err != nil {
			slog.Warn("failed to emit task yielded event", "definition", state.DefinitionName, "error", err)
		}
	}

	stopTrigger := st.Subscribe(stream.WildcardEventType, func(e stream.Event) {
		matches := defRegistry.FindByTrigger(string(e.Type))
		if len(matches) == 0 {
			return
		}
		if existing, err := store.GetActiveWorkflow(); err == nil && existing != nil {
			return
		}
		task, _ := e.Payload["epicId"].(string)
		if task == "" {
			task, _ = e.Payload["taskId"].(string)
		}
		def := matches[0]
		eng := workflow.NewEngine(def, runtime, store, workflow.WithCheckpointNotifier(checkpointNotifier))
		if _, err := eng.Start(ctx, task); err != nil {
			slog.Warn("workflow trigger failed", "definition", def.Name, "trigger", e.Type, "error", err)
		} else {
			slog.Info("workflow started", "definition", def.Name, "trigger", e.Type)
		}
	})
	defer stopTrigger()

	srv := &httpapi.Server{
		Ledger:           store,
		Tasks:            tasks,
		Stream:           st,
		Signals:          signals,
		Prompts:          prompts,
		Access:           guard,
		Bridge:           led,
		Metrics:          reg,
		Workflows:        defRegistry,
		Runtime:          runtime,
		WorkflowNotifier: checkpointNotifier,
	}

	addr := cfg.HTTP.Addr
	httpSrv := &http.Server{Addr: addr, Handler: srv.Router()}
	go func() {
		<-ctx.Done()
		_ = httpSrv.Close()
	}()

	fmt.Printf("orchestration core ready\n")
	fmt.Printf("   HTTP:    http://%s/tools\n", addr)
	fmt.Printf("   Metrics: http://%s/metrics\n", addr)
	fmt.Println("Press Ctrl+C to stop")

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
