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

package stream

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Subscribe registers cb for events of eventType (or WildcardEventType for
// everything). Each subscription gets its own bounded queue so a slow
// subscriber cannot stall other subscribers or the appender; events
// dropped under backpressure are counted via Metrics.SubscriberDropped.
// The returned function unsubscribes.
func (s *Stream) Subscribe(eventType EventType, cb func(Event)) func() {
	sub := &subscription{
		id:        uuid.NewString(),
		eventType: eventType,
		cb:        cb,
		queue:     make(chan Event, s.cfg.SubscriberQueue),
		stop:      make(chan struct{}),
	}

	s.subMu.Lock()
	s.subs = append(s.subs, sub)
	s.subMu.Unlock()

	go s.runSubscription(sub)

	return func() { s.unsubscribe(sub) }
}

func (s *Stream) unsubscribe(target *subscription) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for i, sub := range s.subs {
		if sub == target {
			close(sub.stop)
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

// runSubscription drains one subscriber's queue in order, bounding actual
// concurrent callback execution across all subscribers via the shared
// semaphore (SubscriberWorkers).
func (s *Stream) runSubscription(sub *subscription) {
	ctx := context.Background()
	for {
		select {
		case <-sub.stop:
			return
		case e := <-sub.queue:
			if err := s.sem.Acquire(ctx, 1); err != nil {
				return
			}
			invokeSubscriber(sub, e)
			s.sem.Release(1)
		}
	}
}

// invokeSubscriber calls the callback, recovering panics so one faulty
// subscriber cannot break the dispatch loop of others.
func invokeSubscriber(sub *subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("subscriber panicked", "subscriber", sub.id, "event_type", e.Type, "recover", r)
		}
	}()
	sub.cb(e)
}

// dispatch fans e out to matching subscriptions, dropping (and counting)
// on a full queue rather than blocking the appender.
func (s *Stream) dispatch(e Event) {
	s.subMu.Lock()
	subs := append([]*subscription(nil), s.subs...)
	s.subMu.Unlock()

	for _, sub := range subs {
		if sub.eventType != WildcardEventType && sub.eventType != e.Type {
			continue
		}
		select {
		case sub.queue <- e:
		default:
			s.metrics.SubscriberDropped(sub.id, string(e.Type))
		}
	}
}
