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

package provider

import (
	"context"
	"fmt"

	consulapi "github.com/hashicorp/consul/api"
)

// ConsulProvider loads configuration from a Consul KV key and watches it
// with a blocking query loop keyed on the key's ModifyIndex.
type ConsulProvider struct {
	client *consulapi.Client
	key    string
	stopCh chan struct{}
}

// NewConsulProvider dials the first reachable endpoint and returns a
// provider bound to key.
func NewConsulProvider(endpoints []string, key string) (*ConsulProvider, error) {
	if key == "" {
		return nil, fmt.Errorf("consul key is required")
	}

	cfg := consulapi.DefaultConfig()
	if len(endpoints) > 0 {
		cfg.Address = endpoints[0]
	}

	client, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create consul client: %w", err)
	}

	return &ConsulProvider{client: client, key: key, stopCh: make(chan struct{})}, nil
}

func (p *ConsulProvider) Type() Type { return TypeConsul }

func (p *ConsulProvider) Load(ctx context.Context) ([]byte, error) {
	kv := p.client.KV()
	pair, _, err := kv.Get(p.key, (&consulapi.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("consul kv get %q: %w", p.key, err)
	}
	if pair == nil {
		return nil, fmt.Errorf("consul key %q not found", p.key)
	}
	return pair.Value, nil
}

// Watch polls Consul's blocking-query support: each iteration waits for the
// KV entry's ModifyIndex to advance past the last-seen value before
// signalling a change.
func (p *ConsulProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	changes := make(chan struct{}, 1)
	kv := p.client.KV()

	go func() {
		defer close(changes)
		var lastIndex uint64
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stopCh:
				return
			default:
			}

			opts := (&consulapi.QueryOptions{WaitIndex: lastIndex}).WithContext(ctx)
			pair, meta, err := kv.Get(p.key, opts)
			if err != nil {
				continue
			}
			if meta == nil {
				continue
			}
			if lastIndex != 0 && pair != nil && meta.LastIndex != lastIndex {
				select {
				case changes <- struct{}{}:
				default:
				}
			}
			lastIndex = meta.LastIndex
		}
	}()

	return changes, nil
}

func (p *ConsulProvider) Close() error {
	close(p.stopCh)
	return nil
}
