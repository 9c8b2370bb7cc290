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

package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kadirpekel/agentcore/pkg/workflow"
)

func (s *Server) handleListCheckpoints(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Stream.GetPendingCheckpoints())
}

type approveCheckpointRequest struct {
	ApprovedBy     string `json:"approvedBy"`
	SelectedOption string `json:"selectedOption"`
}

func (s *Server) handleApproveCheckpoint(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req approveCheckpointRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ok, err := s.Stream.ApproveCheckpoint(id, req.ApprovedBy, req.SelectedOption)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("checkpoint not pending"))
		return
	}
	s.resumeWorkflowIfPausedOn(id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

// resumeWorkflowIfPausedOn resumes the active workflow run when it is
// paused on the checkpoint that was just approved — the external
// approveCheckpoint event is the only resume trigger (§9 Open Question
// 4; there is no internal timer). Runs in the background since a
// resumed run can itself block on further steps.
func (s *Server) resumeWorkflowIfPausedOn(checkpointID string) {
	if s.Workflows == nil || s.Runtime == nil {
		return
	}
	state, err := workflow.LoadState(s.Ledger)
	if err != nil || state == nil || state.Status != workflow.StatusPaused || state.CheckpointID != checkpointID {
		return
	}
	def, found := s.Workflows.Get(state.DefinitionName)
	if !found {
		slog.Warn("cannot resume workflow: definition not loaded", "definition", state.DefinitionName)
		return
	}
	eng := workflow.NewEngine(def, s.Runtime, s.Ledger, workflow.WithCheckpointNotifier(s.WorkflowNotifier))
	go func() {
		if _, err := eng.Resume(context.Background(), state); err != nil {
			slog.Warn("workflow resume failed", "definition", state.DefinitionName, "error", err)
		}
	}()
}

type rejectCheckpointRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleRejectCheckpoint(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req rejectCheckpointRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ok, err := s.Stream.RejectCheckpoint(id, req.Reason)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("checkpoint not pending"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}
