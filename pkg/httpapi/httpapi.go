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

// Package httpapi exposes the tool surface (§6) as HTTP endpoints over
// chi, plus a Prometheus /metrics endpoint and a checkpoint-approval
// endpoint standing in for the human approval UI.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/kadirpekel/agentcore/pkg/access"
	"github.com/kadirpekel/agentcore/pkg/bridge"
	"github.com/kadirpekel/agentcore/pkg/buffers"
	"github.com/kadirpekel/agentcore/pkg/ledger"
	"github.com/kadirpekel/agentcore/pkg/runtimeclient"
	"github.com/kadirpekel/agentcore/pkg/stream"
	"github.com/kadirpekel/agentcore/pkg/taskregistry"
	"github.com/kadirpekel/agentcore/pkg/workflow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server bundles every component the tool surface calls into.
type Server struct {
	Ledger  *ledger.Store
	Tasks   *taskregistry.Registry
	Stream  *stream.Stream
	Signals *buffers.SignalBuffer
	Prompts *buffers.PromptBuffer
	Access  *access.Guard
	// Bridge is optional; when set, ledger-mutating handlers also emit
	// the corresponding ledger.* event onto the stream.
	Bridge *bridge.Bridge
	// Metrics is the registry /metrics serves. Falls back to the global
	// default registerer's collectors if nil.
	Metrics *prometheus.Registry
	// Workflows and Runtime let an approved checkpoint resume the
	// workflow run it paused (§9 Open Question 4: resume is triggered by
	// an external approveCheckpoint event, not a timer). Both optional;
	// when nil, checkpoint approval only resolves the stream checkpoint.
	Workflows        *workflow.DefinitionRegistry
	Runtime          runtimeclient.Client
	WorkflowNotifier workflow.CheckpointNotifier
}

// Router builds the chi router exposing the full tool surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	if s.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Metrics, promhttp.HandlerOpts{}))
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/tools", func(r chi.Router) {
		r.Post("/ledger_status", s.handleLedgerStatus)
		r.Post("/ledger_create_epic", s.handleLedgerCreateEpic)
		r.Post("/ledger_create_task", s.handleLedgerCreateTask)
		r.Post("/ledger_update_task", s.handleLedgerUpdateTask)
		r.Post("/ledger_add_learning", s.handleLedgerAddLearning)
		r.Post("/ledger_get_learnings", s.handleLedgerGetLearnings)
		r.Post("/ledger_add_context", s.handleLedgerAddContext)
		r.Post("/ledger_create_handoff", s.handleLedgerCreateHandoff)
		r.Post("/ledger_archive_epic", s.handleLedgerArchiveEpic)

		r.Post("/task_status", s.handleTaskStatus)
		r.Post("/task_aggregate", s.handleTaskAggregate)
		r.Post("/task_heartbeat", s.handleTaskHeartbeat)
		r.Post("/task_retry", s.handleTaskRetry)
		r.Post("/task_kill", s.handleTaskKill)
		r.Post("/task_fetch_context", s.handleTaskFetchContext)
		r.Post("/task_list", s.handleTaskList)

		r.Post("/observer_stats", s.handleObserverStats)
		r.Post("/observer_control", s.handleObserverControl)
	})

	r.Route("/checkpoints", func(r chi.Router) {
		r.Get("/", s.handleListCheckpoints)
		r.Post("/{id}/approve", s.handleApproveCheckpoint)
		r.Post("/{id}/reject", s.handleRejectCheckpoint)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && err.Error() != "EOF" {
		return err
	}
	return nil
}
