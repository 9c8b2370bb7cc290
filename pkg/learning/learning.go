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

// Package learning implements the learning extractor (C10): a regex and
// structured-event rule battery over stream events, producing ranked,
// confidence-filtered Learning candidates.
package learning

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kadirpekel/agentcore/pkg/ledger"
	"github.com/kadirpekel/agentcore/pkg/stream"
)

var (
	correctionPattern = regexp.MustCompile(`(?i)\bno[,.]?\s+(do|use|try|make|don't|instead|actually)\b`)
	successPattern    = regexp.MustCompile(`(?i)\b(perfect|works now|looks good|exactly right|that's it)\b`)
	failurePattern    = regexp.MustCompile(`(?i)\b(wrong|broken|didn't work|doesn't work|failed|not working)\b`)
	entityPattern     = regexp.MustCompile("`([^`]+)`")
)

// Candidate is an extracted learning before confidence filtering/rank.
type Candidate struct {
	Type          ledger.LearningType
	Content       string
	Confidence    float64
	Entities      []string
	SourceEventID string
}

// Config controls filtering.
type Config struct {
	MinConfidence float64
	MaxLearnings  int
}

// Extractor runs the regex/structured-rule battery over events.
type Extractor struct {
	cfg Config
}

// New constructs an Extractor.
func New(cfg Config) *Extractor {
	return &Extractor{cfg: cfg}
}

func stringifyPayload(payload map[string]any) string {
	var sb strings.Builder
	for k, v := range payload {
		fmt.Fprintf(&sb, "%s=%v ", k, v)
	}
	return sb.String()
}

func extractEntities(text string) []string {
	matches := entityPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		if _, dup := seen[m[1]]; dup {
			continue
		}
		seen[m[1]] = struct{}{}
		out = append(out, m[1])
		if len(out) == 5 {
			break
		}
	}
	return out
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// candidatesForEvent runs every rule against a single event.
func candidatesForEvent(e stream.Event) []Candidate {
	text := stringifyPayload(e.Payload)
	entities := extractEntities(text)
	var out []Candidate

	if correctionPattern.MatchString(text) {
		out = append(out, Candidate{ledger.LearningCorrection, text, 0.9, entities, e.ID})
	}
	if successPattern.MatchString(text) {
		out = append(out, Candidate{ledger.LearningPattern, text, 0.8, entities, e.ID})
	}
	if failurePattern.MatchString(text) {
		out = append(out, Candidate{ledger.LearningAntiPattern, text, 0.8, entities, e.ID})
	}

	switch e.Type {
	case stream.EventAgentCompleted:
		if result := payloadString(e.Payload, "result"); result != "" {
			out = append(out, Candidate{ledger.LearningDecision, result, 0.7, extractEntities(result), e.ID})
		}
	case stream.EventAgentFailed:
		if errMsg := payloadString(e.Payload, "error"); errMsg != "" {
			out = append(out, Candidate{ledger.LearningAntiPattern, errMsg, 0.8, extractEntities(errMsg), e.ID})
		}
	case stream.EventCheckpointAppr:
		if opt := payloadString(e.Payload, "selected_option"); opt != "" {
			out = append(out, Candidate{ledger.LearningPreference, opt, 0.85, extractEntities(opt), e.ID})
		}
	case stream.EventCheckpointRej:
		if reason := payloadString(e.Payload, "reason"); reason != "" {
			out = append(out, Candidate{ledger.LearningAntiPattern, reason, 0.8, extractEntities(reason), e.ID})
		}
	}
	return out
}

// ExtractFromEvents runs the full pipeline: per-event candidates,
// confidence filter, descending sort, cap at MaxLearnings.
func (x *Extractor) ExtractFromEvents(events []stream.Event) []Candidate {
	var all []Candidate
	for _, e := range events {
		all = append(all, candidatesForEvent(e)...)
	}

	minConf := x.cfg.MinConfidence
	filtered := all[:0]
	for _, c := range all {
		if c.Confidence >= minConf {
			filtered = append(filtered, c)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Confidence > filtered[j].Confidence
	})

	if max := x.cfg.MaxLearnings; max > 0 && len(filtered) > max {
		filtered = filtered[:max]
	}
	return filtered
}

// realtimeEventTypes is the fixed subscription set for live mode.
var realtimeEventTypes = []stream.EventType{
	stream.EventAgentCompleted,
	stream.EventAgentFailed,
	stream.EventCheckpointAppr,
	stream.EventCheckpointRej,
	stream.EventSessionError,
}

// OnLearning is invoked once per qualifying learning in realtime mode.
type OnLearning func(Candidate)

// SubscribeRealtime wires the extractor onto a stream's subscription
// surface for the fixed realtime event-type set, invoking onLearning
// for each candidate whose confidence clears MinConfidence. Returns a
// single function that unsubscribes from every subscribed type.
func (x *Extractor) SubscribeRealtime(s *stream.Stream, onLearning OnLearning) (unsubscribeAll func()) {
	var unsubs []func()
	for _, t := range realtimeEventTypes {
		unsub := s.Subscribe(t, func(e stream.Event) {
			for _, c := range candidatesForEvent(e) {
				if c.Confidence >= x.cfg.MinConfidence {
					onLearning(c)
				}
			}
		})
		unsubs = append(unsubs, unsub)
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
