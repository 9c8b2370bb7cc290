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
	"net/http"

	"github.com/kadirpekel/agentcore/pkg/ledger"
)

func (s *Server) handleLedgerStatus(w http.ResponseWriter, r *http.Request) {
	idx, err := s.Ledger.Index()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, idx)
}

type createEpicRequest struct {
	Title   string `json:"title"`
	Request string `json:"request"`
}

func (s *Server) handleLedgerCreateEpic(w http.ResponseWriter, r *http.Request) {
	var req createEpicRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	epic, err := s.Ledger.CreateEpic(req.Title, req.Request)
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	if s.Bridge != nil {
		if _, err := s.Bridge.EpicCreated(epic.ID, epic.Title); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, epic)
}

type createTaskRequest struct {
	EpicID       string   `json:"epicId"`
	Title        string   `json:"title"`
	Agent        string   `json:"agent"`
	Dependencies []string `json:"dependencies"`
}

func (s *Server) handleLedgerCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	task, err := s.Ledger.CreateTask(req.EpicID, req.Title, req.Agent, req.Dependencies)
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	if s.Bridge != nil {
		if _, err := s.Bridge.TaskCreated(req.EpicID, task.ID, task.Agent); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, task)
}

type updateTaskRequest struct {
	EpicID string            `json:"epicId"`
	TaskID string            `json:"taskId"`
	Status ledger.TaskStatus `json:"status"`
	Result string            `json:"result"`
	Error  string            `json:"error"`
}

func (s *Server) handleLedgerUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req updateTaskRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	task, err := s.Ledger.UpdateTaskStatus(req.EpicID, req.TaskID, req.Status, req.Result, req.Error)
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	if s.Bridge != nil {
		if err := s.emitTaskStatusEvent(req.EpicID, task); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, task)
}

// emitTaskStatusEvent maps a ledger task's new status onto the matching
// ledger.task.* bridge event.
func (s *Server) emitTaskStatusEvent(epicID string, task *ledger.Task) error {
	var err error
	switch task.Status {
	case ledger.TaskRunning:
		_, err = s.Bridge.TaskStarted(epicID, task.ID)
	case ledger.TaskCompleted:
		_, err = s.Bridge.TaskCompleted(epicID, task.ID, task.Result)
	case ledger.TaskFailed, ledger.TaskTimeout:
		_, err = s.Bridge.TaskFailed(epicID, task.ID, task.Error)
	}
	return err
}

type addLearningRequest struct {
	Type          ledger.LearningType `json:"type"`
	Content       string              `json:"content"`
	Entities      []string            `json:"entities"`
	Confidence    float64             `json:"confidence"`
	SourceEventID string              `json:"sourceEventId"`
}

func (s *Server) handleLedgerAddLearning(w http.ResponseWriter, r *http.Request) {
	var req addLearningRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	l, err := s.Ledger.AddLearning(req.Type, req.Content, req.Entities, req.Confidence, req.SourceEventID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if s.Bridge != nil {
		if _, err := s.Bridge.LearningExtracted(string(l.Type), l.Content, l.Confidence); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, l)
}

func (s *Server) handleLedgerGetLearnings(w http.ResponseWriter, r *http.Request) {
	learnings, err := s.Ledger.GetLearnings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, learnings)
}

type addContextRequest struct {
	EpicID string `json:"epicId"`
	Note   string `json:"note"`
}

func (s *Server) handleLedgerAddContext(w http.ResponseWriter, r *http.Request) {
	var req addContextRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Ledger.AddContext(req.EpicID, req.Note); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createHandoffRequest struct {
	Reason        ledger.HandoffReason `json:"reason"`
	ResumeCommand string               `json:"resumeCommand"`
	Summary       string               `json:"summary"`
	FilesModified []string             `json:"filesModified"`
	WhatsDone     []string             `json:"whatsDone"`
	WhatsNext     []string             `json:"whatsNext"`
	KeyContext    []string             `json:"keyContext"`
}

func (s *Server) handleLedgerCreateHandoff(w http.ResponseWriter, r *http.Request) {
	var req createHandoffRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h, err := s.Ledger.CreateHandoff(req.Reason, req.ResumeCommand, req.Summary, req.FilesModified, req.WhatsDone, req.WhatsNext, req.KeyContext)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if s.Bridge != nil {
		if _, err := s.Bridge.HandoffCreated(string(h.Reason), h.Summary); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, h)
}

type archiveEpicRequest struct {
	Outcome *ledger.Outcome `json:"outcome"`
}

func (s *Server) handleLedgerArchiveEpic(w http.ResponseWriter, r *http.Request) {
	var req archiveEpicRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	epic, err := s.Ledger.ArchiveEpic(req.Outcome)
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	if s.Bridge != nil {
		if _, err := s.Bridge.EpicArchived(epic.ID, string(epic.Outcome)); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, epic)
}
