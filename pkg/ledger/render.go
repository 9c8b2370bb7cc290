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

package ledger

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kadirpekel/agentcore/pkg/orcherr"
	"gopkg.in/yaml.v3"
)

const frontmatterDelim = "---"

// renderIndex produces the canonical markdown form of a LedgerIndex: a
// YAML frontmatter block (the authoritative, re-parseable state) followed
// by a human-readable summary body. parseIndex only reads the
// frontmatter, so round-tripping through render/parse is the identity on
// the frontmatter regardless of body formatting.
func renderIndex(idx *LedgerIndex) ([]byte, error) {
	front, err := yaml.Marshal(idx)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindParseError, err, "marshal index frontmatter")
	}

	var body bytes.Buffer
	fmt.Fprintf(&body, "# Orchestration Ledger\n\n")
	fmt.Fprintf(&body, "Phase: %s\n", idx.Meta.Phase)
	if idx.ActiveEpicRef != "" {
		fmt.Fprintf(&body, "Active epic: %s\n", idx.ActiveEpicRef)
	}
	if len(idx.RecentLearnings) > 0 {
		fmt.Fprintf(&body, "\n## Recent learnings\n\n")
		for _, l := range idx.RecentLearnings {
			fmt.Fprintf(&body, "- [%s] %s (confidence %.2f)\n", l.Type, l.Content, l.Confidence)
		}
	}
	if idx.Handoff != nil {
		fmt.Fprintf(&body, "\n## Handoff pending\n\n%s\n", idx.Handoff.Summary)
	}

	var out bytes.Buffer
	out.WriteString(frontmatterDelim + "\n")
	out.Write(front)
	out.WriteString(frontmatterDelim + "\n\n")
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

// parseIndex reads the YAML frontmatter block from a rendered index file.
func parseIndex(data []byte) (*LedgerIndex, error) {
	text := string(data)
	if !strings.HasPrefix(text, frontmatterDelim) {
		return nil, orcherr.New(orcherr.KindParseError, "index missing frontmatter delimiter")
	}

	rest := text[len(frontmatterDelim):]
	end := strings.Index(rest, "\n"+frontmatterDelim)
	if end == -1 {
		return nil, orcherr.New(orcherr.KindParseError, "index frontmatter not terminated")
	}
	front := strings.TrimPrefix(rest[:end], "\n")

	var idx LedgerIndex
	if err := yaml.Unmarshal([]byte(front), &idx); err != nil {
		return nil, orcherr.Wrap(orcherr.KindParseError, err, "unmarshal index frontmatter")
	}
	return &idx, nil
}

var planTaskLine = regexp.MustCompile(`^- \[( |x|!)\] Task ([A-Za-z0-9._]+): (.*)$`)

// renderPlan renders an epic's task list as a markdown checklist, the
// authoritative parse-mutate-render path for the epic's plan.md.
func renderPlan(epic *Epic) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# Plan: %s\n\n", epic.Title)
	for _, t := range epic.Tasks {
		marker := " "
		switch t.Status {
		case TaskCompleted:
			marker = "x"
		case TaskFailed, TaskTimeout:
			marker = "!"
		}
		fmt.Fprintf(&buf, "- [%s] Task %s: %s\n", marker, t.ID, t.Title)
	}
	return buf.Bytes()
}

// updateTaskMarker rewrites the `[ ]`/`[x]`/`[!]` marker for taskID in an
// existing plan.md body, leaving every other line untouched. This is the
// pragmatic regex edit the design notes call out as acceptable so long as
// the file stays re-parseable; it is not the authoritative state (the
// epic's metadata.json Task list is), so after calling this the caller
// should also persist the updated Epic via saveEpic.
func updateTaskMarker(planText, taskID string, status TaskStatus) string {
	lines := strings.Split(planText, "\n")
	marker := " "
	switch status {
	case TaskCompleted:
		marker = "x"
	case TaskFailed, TaskTimeout:
		marker = "!"
	}

	for i, line := range lines {
		m := planTaskLine.FindStringSubmatch(line)
		if m == nil || m[2] != taskID {
			continue
		}
		lines[i] = fmt.Sprintf("- [%s] Task %s: %s", marker, taskID, m[3])
	}
	return strings.Join(lines, "\n")
}

// tasksCompletedSummary counts markers in a rendered plan, returning
// "completed/total" the way the v6 index's meta.tasksCompleted field
// expects.
func tasksCompletedSummary(planText string) string {
	completed, total := 0, 0
	for _, line := range strings.Split(planText, "\n") {
		m := planTaskLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		total++
		if m[1] == "x" {
			completed++
		}
	}
	return strconv.Itoa(completed) + "/" + strconv.Itoa(total)
}
