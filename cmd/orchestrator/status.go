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

package main

import (
	"context"
	"fmt"

	"github.com/kadirpekel/agentcore/pkg/config"
	"github.com/kadirpekel/agentcore/pkg/ledger"
)

// StatusCmd prints the current ledger index: active epic, recent
// learnings, and the last handoff, if any.
type StatusCmd struct{}

func (c *StatusCmd) Run(cli *CLI) error {
	cfg, loader, err := config.LoadConfigFile(context.Background(), cli.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	defer loader.Close()
	cfg.SetDefaults()

	store, err := ledger.Open(cfg.RootDir+"/ledger", cfg.Ledger.ArchiveCap)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}

	idx, err := store.Index()
	if err != nil {
		return fmt.Errorf("read ledger index: %w", err)
	}

	fmt.Printf("Phase:        %s\n", idx.Meta.Phase)
	if idx.ActiveEpicRef != "" {
		fmt.Printf("Active epic:  %s\n", idx.ActiveEpicRef)
	} else {
		fmt.Println("Active epic:  (none)")
	}
	fmt.Printf("Archived:     %d epics\n", len(idx.Archive))
	fmt.Printf("Learnings:    %d recent\n", len(idx.RecentLearnings))
	if idx.Handoff != nil {
		fmt.Printf("Last handoff: %s (%s)\n", idx.Handoff.Summary, idx.Handoff.Reason)
	}
	return nil
}
