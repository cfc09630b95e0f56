package budget

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/agentcore/core"
)

func TestHeuristicEstimator_RoundsUp(t *testing.T) {
	e := HeuristicEstimator{}

	assert.Equal(t, 0, e.Count(""))
	assert.Equal(t, 1, e.Count("abc"))
	assert.Equal(t, 1, e.Count("abcd"))
	assert.Equal(t, 2, e.Count("abcde"))
	assert.Equal(t, 100, e.Count(strings.Repeat("x", 400)))
}

func TestTiktokenEstimator_CountsTokens(t *testing.T) {
	e := NewTiktokenEstimator()

	n := e.Count("The quick brown fox jumps over the lazy dog.")
	assert.Greater(t, n, 0)
	// Whether the encoding loaded or the heuristic kicked in, the count
	// stays within a plausible band for a 44-char sentence.
	assert.LessOrEqual(t, n, 44)
}

func TestEstimateMessage_TrustsCache(t *testing.T) {
	msg := core.NewUserMessage(strings.Repeat("x", 4000))
	msg.TokenEstimate = 7

	assert.Equal(t, 7, EstimateMessage(HeuristicEstimator{}, msg))
}

func TestEstimateMessage_IncludesActionPayloads(t *testing.T) {
	e := HeuristicEstimator{}

	bare := core.NewToolMessage()
	loaded := core.NewToolMessage(core.ActionResult{
		RequestID: "r1",
		Name:      "read_file",
		Success:   true,
		Output:    strings.Repeat("x", 400),
	})

	assert.Greater(t, EstimateMessage(e, loaded), EstimateMessage(e, bare)+90)
}

func TestEstimateConversation_SumsMessages(t *testing.T) {
	e := HeuristicEstimator{}

	conv := core.Conversation{
		core.NewSystemMessage("a"),
		core.NewUserMessage("b"),
	}

	want := EstimateMessage(e, conv[0]) + EstimateMessage(e, conv[1])
	assert.Equal(t, want, EstimateConversation(e, conv))
}
