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

// Package runtimeclient defines the interface the core depends on to
// drive the external agent runtime (session create/prompt/status/
// messages, §6) and an in-memory implementation used by tests and by
// local/offline runs.
package runtimeclient

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/kadirpekel/agentcore/pkg/ids"
	"github.com/kadirpekel/agentcore/pkg/orcherr"
)

// SessionStatus is the status a runtime reports for a session.
type SessionStatus string

const (
	SessionIdle    SessionStatus = "idle"
	SessionBusy    SessionStatus = "busy"
	SessionErrored SessionStatus = "error"
)

// Part is one segment of a message body.
type Part struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Message is one turn in a session's transcript.
type Message struct {
	Role      string `json:"role"`
	CreatedAt int64  `json:"createdAt"`
	Parts     []Part `json:"parts"`
}

// Client is the external agent runtime surface the supervisor drives.
type Client interface {
	CreateSession(ctx context.Context, parentID, title string) (sessionID string, err error)
	Prompt(ctx context.Context, sessionID, agent, text string) error
	Status(ctx context.Context) (map[string]SessionStatus, error)
	Messages(ctx context.Context, sessionID string) ([]Message, error)
}

// LatestAssistantText concatenates the text parts of the most recent
// assistant message, the way the supervisor's result-fetch step does.
func LatestAssistantText(messages []Message) string {
	var latest *Message
	for i := range messages {
		m := &messages[i]
		if m.Role != "assistant" {
			continue
		}
		if latest == nil || m.CreatedAt >= latest.CreatedAt {
			latest = m
		}
	}
	if latest == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range latest.Parts {
		if p.Type == "text" {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

type inMemorySession struct {
	id       string
	parentID string
	title    string
	status   SessionStatus
	messages []Message
}

// InMemoryClient is a test/local double for Client: sessions live in a
// map, prompts are recorded but not actually executed, and callers
// script responses via Reply/SetStatus.
type InMemoryClient struct {
	mu       sync.Mutex
	sessions map[string]*inMemorySession
}

// NewInMemoryClient constructs an empty InMemoryClient.
func NewInMemoryClient() *InMemoryClient {
	return &InMemoryClient{sessions: make(map[string]*inMemorySession)}
}

func (c *InMemoryClient) CreateSession(_ context.Context, parentID, title string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := uuid.NewString()
	c.sessions[id] = &inMemorySession{id: id, parentID: parentID, title: title, status: SessionBusy}
	return id, nil
}

func (c *InMemoryClient) Prompt(_ context.Context, sessionID, agent, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		return orcherr.New(orcherr.KindRuntimeClientError, "unknown session %s", sessionID)
	}
	s.status = SessionBusy
	s.messages = append(s.messages, Message{
		Role:      "user",
		CreatedAt: ids.NowMs(),
		Parts:     []Part{{Type: "text", Text: fmt.Sprintf("[%s] %s", agent, text)}},
	})
	return nil
}

func (c *InMemoryClient) Status(_ context.Context) (map[string]SessionStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]SessionStatus, len(c.sessions))
	for id, s := range c.sessions {
		out[id] = s.status
	}
	return out, nil
}

func (c *InMemoryClient) Messages(_ context.Context, sessionID string) ([]Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		return nil, orcherr.New(orcherr.KindRuntimeClientError, "unknown session %s", sessionID)
	}
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

// Reply appends an assistant message to a session and marks it idle,
// simulating the runtime finishing work — used by tests to drive the
// supervisor's result-fetch path.
func (c *InMemoryClient) Reply(sessionID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		return
	}
	s.messages = append(s.messages, Message{
		Role:      "assistant",
		CreatedAt: ids.NowMs(),
		Parts:     []Part{{Type: "text", Text: text}},
	})
	s.status = SessionIdle
}

// SetStatus forces a session's reported status — used by tests to
// simulate a stuck-but-idle or still-running session.
func (c *InMemoryClient) SetStatus(sessionID string, status SessionStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.sessions[sessionID]; ok {
		s.status = status
	}
}
