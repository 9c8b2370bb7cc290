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
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kadirpekel/agentcore/pkg/orcherr"
)

// DefinitionRegistry holds every loaded workflow definition by name. A
// definition is added once at load time and never removed at runtime,
// so the map is guarded by an RWMutex rather than anything heavier.
type DefinitionRegistry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewDefinitionRegistry constructs an empty DefinitionRegistry.
func NewDefinitionRegistry() *DefinitionRegistry {
	return &DefinitionRegistry{defs: make(map[string]*Definition)}
}

// Add registers a parsed definition under its own name. Re-registering
// the same name is rejected so a workflows directory with a duplicate
// definition name fails loudly rather than silently shadowing one.
func (r *DefinitionRegistry) Add(def *Definition) error {
	if def.Name == "" {
		return fmt.Errorf("workflow definition has no name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("workflow definition %q already registered", def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// Get returns a definition by name.
func (r *DefinitionRegistry) Get(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// List returns every registered definition.
func (r *DefinitionRegistry) List() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Definition, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	return out
}

// FindByTrigger returns every definition whose trigger list contains
// the given event name.
func (r *DefinitionRegistry) FindByTrigger(trigger string) []*Definition {
	var out []*Definition
	for _, def := range r.List() {
		for _, t := range def.Trigger {
			if t == trigger {
				out = append(out, def)
				break
			}
		}
	}
	return out
}

// LoadDir parses every *.md file in dir as a workflow definition and
// registers it.
func (r *DefinitionRegistry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return orcherr.Wrap(orcherr.KindIOError, err, "read workflow directory %s", dir)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".md" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return orcherr.Wrap(orcherr.KindIOError, err, "read workflow file %s", entry.Name())
		}
		def, err := ParseDefinition(data)
		if err != nil {
			return err
		}
		if err := r.Add(def); err != nil {
			return orcherr.Wrap(orcherr.KindStateViolation, err, "register workflow %s", def.Name)
		}
	}
	return nil
}
