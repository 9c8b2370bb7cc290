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

package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kadirpekel/agentcore/pkg/ledger"
	"github.com/kadirpekel/agentcore/pkg/orcherr"
	"github.com/kadirpekel/agentcore/pkg/runtimeclient"
)

const resultTruncateLen = 1000

// Status is the closed workflow run state.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// State is the persisted workflow run, stored verbatim in the ledger's
// meta.active_workflow slot.
type State struct {
	DefinitionName string            `json:"definitionName"`
	Task           string            `json:"task"`
	PhaseIndex     int               `json:"phaseIndex"`
	StepIndex      int               `json:"stepIndex"`
	Status         Status            `json:"status"`
	Results        map[string]string `json:"results"`
	SessionID      string            `json:"sessionId,omitempty"`
	// CheckpointID is the pending checkpoint this run is paused on, set
	// by the CheckpointNotifier. Empty once the run isn't paused on one.
	CheckpointID string `json:"checkpointId,omitempty"`
}

func (s *State) asMap() (map[string]any, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func stateFromMap(m map[string]any) (*State, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.Results == nil {
		s.Results = make(map[string]string)
	}
	return &s, nil
}

// CheckpointNotifier is called when a step pauses the workflow on a
// checkpoint; wired to the bridge's ledger.task.yielded emission.
type CheckpointNotifier func(state *State)

// Engine executes a single Definition against the runtime client,
// persisting state through the ledger after every step.
type Engine struct {
	def      *Definition
	runtime  runtimeclient.Client
	store    *ledger.Store
	onYield  CheckpointNotifier
	pollStep time.Duration
	maxPolls int
}

// Option configures an Engine.
type Option func(*Engine)

// WithCheckpointNotifier sets the callback invoked when a step pauses.
func WithCheckpointNotifier(f CheckpointNotifier) Option {
	return func(e *Engine) { e.onYield = f }
}

// NewEngine constructs an Engine for def, persisting through store.
func NewEngine(def *Definition, runtime runtimeclient.Client, store *ledger.Store, opts ...Option) *Engine {
	e := &Engine{
		def:      def,
		runtime:  runtime,
		store:    store,
		pollStep: 50 * time.Millisecond,
		maxPolls: 20,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins a new run for task, persists the initial state, and runs
// until the first pause/completion/error.
func (e *Engine) Start(ctx context.Context, task string) (*State, error) {
	state := &State{
		DefinitionName: e.def.Name,
		Task:           task,
		Status:         StatusRunning,
		Results:        make(map[string]string),
	}
	if err := e.persist(state); err != nil {
		return nil, err
	}
	return e.RunUntilPause(ctx, state)
}

// Resume continues a previously paused run — triggered by an external
// approveCheckpoint event (the resolution of the workflow's Open
// Question: there is no internal timer-based resume).
func (e *Engine) Resume(ctx context.Context, state *State) (*State, error) {
	if state.Status != StatusPaused {
		return nil, orcherr.New(orcherr.KindStateViolation, "workflow %s is not paused", state.DefinitionName)
	}
	state.Status = StatusRunning
	return e.RunUntilPause(ctx, state)
}

// RunUntilPause advances the state one step at a time until it pauses
// on a checkpoint, completes, fails, or ctx is cancelled.
func (e *Engine) RunUntilPause(ctx context.Context, state *State) (*State, error) {
	for state.Status == StatusRunning {
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		default:
		}
		if err := e.advance(ctx, state); err != nil {
			state.Status = StatusFailed
			_ = e.persist(state)
			return state, err
		}
		if err := e.persist(state); err != nil {
			return state, err
		}
	}
	return state, nil
}

func resultKey(phaseIdx, stepIdx int) string {
	return fmt.Sprintf("phase%d_step%d", phaseIdx+1, stepIdx+1)
}

func (e *Engine) priorResultsJSON(state *State) string {
	data, err := json.Marshal(state.Results)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func (e *Engine) renderPrompt(step Step, state *State) string {
	prompt := strings.ReplaceAll(step.Prompt, "{{task}}", state.Task)
	return fmt.Sprintf("%s\n\nPrior results: %s", prompt, e.priorResultsJSON(state))
}

// advance executes exactly one step, or marks the run completed if the
// phase/step indices have run off the end of the definition.
func (e *Engine) advance(ctx context.Context, state *State) error {
	if state.PhaseIndex >= len(e.def.Phases) {
		state.Status = StatusCompleted
		return nil
	}
	phase := e.def.Phases[state.PhaseIndex]
	if state.StepIndex >= len(phase.Steps) {
		state.PhaseIndex++
		state.StepIndex = 0
		if state.PhaseIndex >= len(e.def.Phases) {
			state.Status = StatusCompleted
		}
		return nil
	}

	step := phase.Steps[state.StepIndex]
	if step.Checkpoint {
		// Advance past the checkpoint step now, so the run that Resume
		// kicks off continues with the next step rather than re-pausing
		// on this same one.
		state.StepIndex++
		state.Status = StatusPaused
		if e.onYield != nil {
			e.onYield(state)
		}
		return nil
	}

	prompt := e.renderPrompt(step, state)
	sessionID, err := e.runtime.CreateSession(ctx, "", fmt.Sprintf("%s/%s", e.def.Name, step.Agent))
	if err != nil {
		return orcherr.Wrap(orcherr.KindRuntimeClientError, err, "create session for step")
	}
	if err := e.runtime.Prompt(ctx, sessionID, step.Agent, prompt); err != nil {
		return orcherr.Wrap(orcherr.KindRuntimeClientError, err, "prompt step agent")
	}

	result := ""
	if step.Wait {
		result, err = e.pollForResult(ctx, sessionID)
		if err != nil {
			return err
		}
	}
	if len(result) > resultTruncateLen {
		result = result[:resultTruncateLen]
	}
	state.Results[resultKey(state.PhaseIndex, state.StepIndex)] = result
	state.SessionID = sessionID
	state.StepIndex++
	return nil
}

// pollForResult waits (bounded) for the session to go idle, then
// returns the latest assistant reply — the blocking variant of step
// execution for steps with wait=true. Never blocks indefinitely: it
// gives up after maxPolls attempts.
func (e *Engine) pollForResult(ctx context.Context, sessionID string) (string, error) {
	for i := 0; i < e.maxPolls; i++ {
		statuses, err := e.runtime.Status(ctx)
		if err != nil {
			return "", orcherr.Wrap(orcherr.KindRuntimeClientError, err, "poll session status")
		}
		if statuses[sessionID] == runtimeclient.SessionIdle {
			messages, err := e.runtime.Messages(ctx, sessionID)
			if err != nil {
				return "", orcherr.Wrap(orcherr.KindRuntimeClientError, err, "fetch session messages")
			}
			return runtimeclient.LatestAssistantText(messages), nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(e.pollStep):
		}
	}
	return "", orcherr.New(orcherr.KindTimeout, "session %s never went idle", sessionID)
}

func (e *Engine) persist(state *State) error {
	m, err := state.asMap()
	if err != nil {
		return orcherr.Wrap(orcherr.KindParseError, err, "marshal workflow state")
	}
	return e.store.SetActiveWorkflow(m)
}

// LoadState reads the persisted workflow state from the ledger, if any.
func LoadState(store *ledger.Store) (*State, error) {
	m, err := store.GetActiveWorkflow()
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, nil
	}
	return stateFromMap(m)
}
