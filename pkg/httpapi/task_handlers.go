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
	"errors"
	"net/http"

	"github.com/kadirpekel/agentcore/pkg/taskregistry"
)

var errTaskNotFound = errors.New("task not found")

type taskIDRequest struct {
	TaskID string `json:"taskId"`
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	var req taskIDRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	t, ok := s.Tasks.Get(req.TaskID)
	if !ok {
		writeError(w, http.StatusNotFound, errTaskNotFound)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type taskAggregateRequest struct {
	Status taskregistry.Status `json:"status"`
}

func (s *Server) handleTaskAggregate(w http.ResponseWriter, r *http.Request) {
	var req taskAggregateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tasks := s.Tasks.GetTasksByStatus(req.Status)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": req.Status,
		"count":  len(tasks),
		"tasks":  tasks,
	})
}

func (s *Server) handleTaskHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req taskIDRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !s.Tasks.Heartbeat(req.TaskID) {
		writeError(w, http.StatusNotFound, errTaskNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type taskRetryRequest struct {
	TaskID       string `json:"taskId"`
	NewSessionID string `json:"newSessionId"`
}

// handleTaskRetry reissues a task under a freshly created session id. The
// caller (typically the supervisor's own retry path, or an operator acting
// on its behalf) is responsible for actually creating the session via the
// runtime client; this endpoint only rebinds the registry bookkeeping.
func (s *Server) handleTaskRetry(w http.ResponseWriter, r *http.Request) {
	var req taskRetryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !s.Tasks.UpdateSessionID(req.TaskID, req.NewSessionID) {
		writeError(w, http.StatusNotFound, errTaskNotFound)
		return
	}
	count, ok := s.Tasks.IncrementRetry(req.TaskID)
	if !ok {
		writeError(w, http.StatusNotFound, errTaskNotFound)
		return
	}
	s.Tasks.UpdateStatus(req.TaskID, taskregistry.StatusRunning, "", "")
	writeJSON(w, http.StatusOK, map[string]any{"retryCount": count})
}

func (s *Server) handleTaskKill(w http.ResponseWriter, r *http.Request) {
	var req taskIDRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !s.Tasks.UpdateStatus(req.TaskID, taskregistry.StatusFailed, "", "killed by operator") {
		writeError(w, http.StatusNotFound, errTaskNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "killed"})
}

func (s *Server) handleTaskFetchContext(w http.ResponseWriter, r *http.Request) {
	var req taskIDRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	t, ok := s.Tasks.Get(req.TaskID)
	if !ok {
		writeError(w, http.StatusNotFound, errTaskNotFound)
		return
	}
	signals := s.Signals.Flush(t.SessionID)
	prompts := s.Prompts.Flush(t.SessionID)
	writeJSON(w, http.StatusOK, map[string]any{
		"task":    t,
		"signals": signals,
		"prompts": prompts,
	})
}

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	var req taskAggregateRequest
	_ = decodeBody(r, &req)
	if req.Status == "" {
		pending := s.Tasks.GetTasksByStatus(taskregistry.StatusPending)
		running := s.Tasks.GetTasksByStatus(taskregistry.StatusRunning)
		all := append(pending, running...)
		all = append(all, s.Tasks.GetTasksByStatus(taskregistry.StatusCompleted)...)
		all = append(all, s.Tasks.GetTasksByStatus(taskregistry.StatusFailed)...)
		all = append(all, s.Tasks.GetTasksByStatus(taskregistry.StatusTimeout)...)
		writeJSON(w, http.StatusOK, all)
		return
	}
	writeJSON(w, http.StatusOK, s.Tasks.GetTasksByStatus(req.Status))
}

func (s *Server) handleObserverStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"totalTasks":   s.Tasks.Count(),
		"runningTasks": len(s.Tasks.GetTasksByStatus(taskregistry.StatusRunning)),
		"pendingTasks": len(s.Tasks.GetTasksByStatus(taskregistry.StatusPending)),
	})
}

type observerControlRequest struct {
	Action   string `json:"action"` // currently: "gc_registry"
	MaxAgeMs int64  `json:"maxAgeMs"`
}

// handleObserverControl exposes the registry's passive cleanup as an
// operator-triggered action; the supervisor also calls it on its own
// schedule, so this is a manual nudge rather than the only trigger.
func (s *Server) handleObserverControl(w http.ResponseWriter, r *http.Request) {
	var req observerControlRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	switch req.Action {
	case "gc_registry":
		removed := s.Tasks.Cleanup(req.MaxAgeMs)
		writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
	default:
		writeError(w, http.StatusBadRequest, errors.New("unknown action"))
	}
}
