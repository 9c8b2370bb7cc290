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

// Package workflow implements the workflow engine (C11): markdown
// workflow definitions with phases of agent steps, executed with
// checkpoint-aware pause/resume semantics.
package workflow

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kadirpekel/agentcore/pkg/orcherr"
	"gopkg.in/yaml.v3"
)

// Step is one agent invocation within a phase.
type Step struct {
	Agent      string `yaml:"-"`
	Prompt     string `yaml:"-"`
	Wait       bool   `yaml:"-"`
	Checkpoint bool   `yaml:"-"`
}

// Phase is a named, ordered group of steps.
type Phase struct {
	Number int
	Name   string
	Steps  []Step
}

// frontmatter is the definition's `---`-delimited header.
type frontmatter struct {
	Name       string   `yaml:"name"`
	Trigger    []string `yaml:"trigger"`
	EntryAgent string   `yaml:"entry_agent"`
}

// Definition is a parsed workflow document.
type Definition struct {
	Name       string
	Trigger    []string
	EntryAgent string
	Phases     []Phase
}

var (
	phaseHeaderRe = regexp.MustCompile(`^##\s*Phase\s+(\d+):\s*(.+)$`)
	agentLineRe   = regexp.MustCompile(`^-\s*Agent:\s*(.+)$`)
	subBulletRe   = regexp.MustCompile(`^\s+-\s*(Prompt|Wait|Checkpoint):\s*(.+)$`)
)

// ParseDefinition parses a workflow markdown document: a YAML
// frontmatter block followed by `## Phase N: <name>` sections, each
// containing `- Agent: X` steps with `- Prompt:`/`- Wait:`/`- Checkpoint:`
// sub-bullets.
func ParseDefinition(data []byte) (*Definition, error) {
	text := string(data)
	if !strings.HasPrefix(text, "---") {
		return nil, orcherr.New(orcherr.KindParseError, "workflow definition missing frontmatter delimiter")
	}
	rest := text[len("---"):]
	end := strings.Index(rest, "\n---")
	if end == -1 {
		return nil, orcherr.New(orcherr.KindParseError, "workflow definition frontmatter not terminated")
	}
	front := strings.TrimPrefix(rest[:end], "\n")
	body := rest[end+len("\n---"):]

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(front), &fm); err != nil {
		return nil, orcherr.Wrap(orcherr.KindParseError, err, "parse workflow frontmatter")
	}

	def := &Definition{Name: fm.Name, Trigger: fm.Trigger, EntryAgent: fm.EntryAgent}

	var current *Phase
	var currentStep *Step
	for _, line := range strings.Split(body, "\n") {
		if m := phaseHeaderRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			n, _ := strconv.Atoi(m[1])
			def.Phases = append(def.Phases, Phase{Number: n, Name: strings.TrimSpace(m[2])})
			current = &def.Phases[len(def.Phases)-1]
			currentStep = nil
			continue
		}
		if current == nil {
			continue
		}
		if m := agentLineRe.FindStringSubmatch(line); m != nil {
			current.Steps = append(current.Steps, Step{Agent: strings.TrimSpace(m[1])})
			currentStep = &current.Steps[len(current.Steps)-1]
			continue
		}
		if currentStep == nil {
			continue
		}
		if m := subBulletRe.FindStringSubmatch(line); m != nil {
			value := strings.Trim(strings.TrimSpace(m[2]), `"`)
			switch m[1] {
			case "Prompt":
				currentStep.Prompt = value
			case "Wait":
				currentStep.Wait = value == "true"
			case "Checkpoint":
				currentStep.Checkpoint = value == "true"
			}
		}
	}

	if len(def.Phases) == 0 {
		return nil, orcherr.New(orcherr.KindParseError, "workflow definition %s has no phases", def.Name)
	}
	return def, nil
}
