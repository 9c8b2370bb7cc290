package learning

import (
	"testing"

	"github.com/kadirpekel/agentcore/pkg/ledger"
	"github.com/kadirpekel/agentcore/pkg/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFromEventsFiltersAndRanks(t *testing.T) {
	x := New(Config{MinConfidence: 0.6, MaxLearnings: 10})

	events := []stream.Event{
		{ID: "e1", Type: stream.EventAgentCompleted, Payload: map[string]any{"result": "use `retry.go` backoff"}},
		{ID: "e2", Type: stream.EventAgentFailed, Payload: map[string]any{"error": "connection broken"}},
		{ID: "e3", Type: stream.EventTaskProgress, Payload: map[string]any{"note": "no, use the other approach instead"}},
		{ID: "e4", Type: stream.EventCheckpointAppr, Payload: map[string]any{"selected_option": "ship it"}},
	}

	candidates := x.ExtractFromEvents(events)
	require.NotEmpty(t, candidates)
	for i := 1; i < len(candidates); i++ {
		assert.GreaterOrEqual(t, candidates[i-1].Confidence, candidates[i].Confidence)
	}

	var hasCorrection, hasPreference bool
	for _, c := range candidates {
		if c.Type == ledger.LearningCorrection {
			hasCorrection = true
		}
		if c.Type == ledger.LearningPreference {
			hasPreference = true
		}
	}
	assert.True(t, hasCorrection)
	assert.True(t, hasPreference)
}

func TestExtractFromEventsCapsAtMaxLearnings(t *testing.T) {
	x := New(Config{MinConfidence: 0.0, MaxLearnings: 1})

	events := []stream.Event{
		{ID: "e1", Type: stream.EventCheckpointRej, Payload: map[string]any{"reason": "wrong approach"}},
		{ID: "e2", Type: stream.EventCheckpointAppr, Payload: map[string]any{"selected_option": "option a"}},
	}

	candidates := x.ExtractFromEvents(events)
	assert.Len(t, candidates, 1)
}

func TestEntityExtractionCapsAtFive(t *testing.T) {
	text := "check `a` `b` `c` `d` `e` `f`"
	entities := extractEntities(text)
	assert.Len(t, entities, 5)
}
