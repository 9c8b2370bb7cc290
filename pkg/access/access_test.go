package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testGuard() *Guard {
	return New([]string{
		"planner", "executor", "validator", "oracle", "librarian", "explore",
		"interviewer", "spec-writer", "memory-catcher", "workflow-architect",
		"frontend-ui-ux-engineer",
	})
}

func TestProtectedAgentDenial(t *testing.T) {
	g := testGuard()
	d := g.CanCallAgent("random-worker", "oracle", true)
	assert.False(t, d.Allowed)
	assert.Equal(t, "The oracle agent only responds to chief-of-staff.", d.Reason)
	assert.Contains(t, d.Suggestion, "chief-of-staff")
}

func TestUserCallsNativeAgent(t *testing.T) {
	g := testGuard()
	d := g.CanCallAgent("", "Code", false)
	assert.True(t, d.Allowed)
}

func TestChiefOfStaffBypasses(t *testing.T) {
	g := testGuard()
	d := g.CanCallAgent("chief-of-staff", "oracle", true)
	assert.True(t, d.Allowed)
}

func TestInternalHierarchyRegression(t *testing.T) {
	g := testGuard()
	d := g.CanCallAgent("random-worker", "chief-of-staff/oracle", false)
	assert.False(t, d.Allowed)
}

func TestDeterministic(t *testing.T) {
	g := testGuard()
	d1 := g.CanCallAgent("random-worker", "oracle", true)
	d2 := g.CanCallAgent("random-worker", "oracle", true)
	assert.Equal(t, d1, d2)
}
