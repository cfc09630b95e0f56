package budget

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcore/core"
)

func newTestManager(maxTokens int, optFns ...func(o *Options)) *Manager {
	return NewManager(append([]func(o *Options){func(o *Options) {
		o.MaxTokens = maxTokens
		o.SafetyMargin = 0
		o.HeadroomFraction = 0
		o.KeepRecentTurns = 1
		o.Estimator = HeuristicEstimator{}
	}}, optFns...)...)
}

func toolMessage(name, output string) core.Message {
	return core.NewToolMessage(core.ActionResult{
		RequestID: core.NewID(),
		Name:      name,
		Success:   true,
		Output:    output,
	})
}

func TestShouldCompress(t *testing.T) {
	m := newTestManager(100)

	small := core.Conversation{core.NewUserMessage("hi")}
	assert.False(t, m.ShouldCompress(small))

	big := core.Conversation{core.NewUserMessage(strings.Repeat("x", 800))}
	assert.True(t, m.ShouldCompress(big))
}

func TestShouldCompress_SafetyMarginCountsAgainstCeiling(t *testing.T) {
	m := NewManager(func(o *Options) {
		o.MaxTokens = 100
		o.SafetyMargin = 90
		o.HeadroomFraction = 0
		o.Estimator = HeuristicEstimator{}
	})

	// ~12 tokens of content, but the margin projects past the ceiling.
	conv := core.Conversation{core.NewUserMessage(strings.Repeat("x", 40))}
	assert.True(t, m.ShouldCompress(conv))
}

func TestCompress_SoftTrimsOldToolResults(t *testing.T) {
	m := newTestManager(100, func(o *Options) {
		o.SoftTrimMaxChars = 40
		o.SoftTrimHead = 10
		o.SoftTrimTail = 10
	})

	conv := core.Conversation{
		core.NewSystemMessage("You are helpful."),
		core.NewUserMessage("Read the big file"),
		toolMessage("read_file", strings.Repeat("x", 400)),
		core.NewAssistantMessage("The file contains xs."),
	}

	out := m.Compress(conv)

	require.Len(t, out, 4)
	assert.Contains(t, out[2].ActionResults[0].Output, "...[trimmed]...")
	assert.LessOrEqual(t, m.Estimate(out), 100)
	// Untouched messages keep their content.
	assert.Equal(t, conv[0], out[0])
	assert.Equal(t, conv[3], out[3])
	// The input transcript is never mutated.
	assert.Equal(t, strings.Repeat("x", 400), conv[2].ActionResults[0].Output)
}

func TestCompress_ClearsToolResultsWhenTrimInsufficient(t *testing.T) {
	m := newTestManager(100, func(o *Options) {
		o.SoftTrimMaxChars = 1 << 20 // soft trim never fires
	})

	conv := core.Conversation{
		core.NewSystemMessage("You are helpful."),
		toolMessage("read_file", strings.Repeat("x", 400)),
		core.NewAssistantMessage("Summarized."),
	}

	out := m.Compress(conv)

	assert.Equal(t, "[old tool result cleared to fit the context window]", out[1].ActionResults[0].Output)
	assert.LessOrEqual(t, m.Estimate(out), 100)
}

func TestCompress_ProtectedRecentTurnsStayVerbatim(t *testing.T) {
	m := newTestManager(200, func(o *Options) {
		o.SoftTrimMaxChars = 40
		o.SoftTrimHead = 10
		o.SoftTrimTail = 10
		o.KeepRecentTurns = 2
	})

	recent := strings.Repeat("y", 400)
	conv := core.Conversation{
		toolMessage("read_file", strings.Repeat("x", 400)),
		core.NewAssistantMessage("older turn"),
		toolMessage("read_file", recent),
		core.NewAssistantMessage("latest turn"),
	}

	out := m.Compress(conv)

	// The older tool result is rewritten; everything from the 2nd most
	// recent assistant turn onward is untouched.
	assert.NotEqual(t, strings.Repeat("x", 400), out[0].ActionResults[0].Output)
	assert.Equal(t, recent, out[2].ActionResults[0].Output)
	assert.Equal(t, "latest turn", out[3].Content)
}

func TestCompress_TrimsOverlongMessageText(t *testing.T) {
	m := newTestManager(100, func(o *Options) {
		o.SoftTrimMaxChars = 40
		o.SoftTrimHead = 10
		o.SoftTrimTail = 10
	})

	giant := strings.Repeat("w", 600)
	conv := core.Conversation{
		core.NewSystemMessage("You are helpful."),
		core.NewUserMessage(giant),
		core.NewAssistantMessage("noted"),
	}

	out := m.Compress(conv)

	require.Len(t, out, 3)
	assert.Contains(t, out[1].Content, "...[trimmed]...")
	assert.Less(t, len(out[1].Content), len(giant))
	assert.Equal(t, "You are helpful.", out[0].Content)
	assert.LessOrEqual(t, m.Estimate(out), 100)
}

func TestCompress_ShrinksTranscriptWithoutAssistantTurns(t *testing.T) {
	m := newTestManager(100, func(o *Options) {
		o.SoftTrimMaxChars = 40
		o.SoftTrimHead = 10
		o.SoftTrimTail = 10
	})

	giant := strings.Repeat("p", 600)
	conv := core.Conversation{
		core.NewSystemMessage("You are helpful."),
		core.NewUserMessage(giant),
	}

	before := m.Estimate(conv)
	out := m.Compress(conv)

	require.Len(t, out, 2)
	assert.Contains(t, out[1].Content, "...[trimmed]...")
	assert.Less(t, m.Estimate(out), before)
	assert.LessOrEqual(t, m.Estimate(out), 100)
	assert.Equal(t, "You are helpful.", out[0].Content)
}

func TestCompress_SummarizesOlderSpan(t *testing.T) {
	m := newTestManager(200)

	conv := core.Conversation{core.NewSystemMessage("You are helpful.")}
	for i := 0; i < 6; i++ {
		conv.Append(
			core.NewUserMessage("question "+strings.Repeat("q", 200)),
			core.NewAssistantMessage("answer "+strings.Repeat("a", 200)),
		)
	}
	final := core.NewAssistantMessage("done")
	conv.Append(final)

	out := m.Compress(conv)

	require.Less(t, len(out), len(conv))
	assert.Equal(t, core.RoleSystem, out[0].Role)
	assert.True(t, strings.HasPrefix(out[1].Content, "[conversation summary]"))
	assert.Contains(t, out[1].Content, "Original request: question")
	assert.Equal(t, final, out[len(out)-1])
	assert.LessOrEqual(t, m.Estimate(out), 200)
}

func TestCompress_TruncatesOldestAndInsertsNotice(t *testing.T) {
	m := newTestManager(100)

	conv := core.Conversation{
		core.NewSystemMessage("You are helpful."),
		core.NewUserMessage(strings.Repeat("x", 800)),
		core.NewAssistantMessage("final answer"),
	}

	out := m.Compress(conv)

	require.Len(t, out, 3)
	assert.Equal(t, core.RoleSystem, out[0].Role)
	assert.Equal(t, "[earlier messages were removed to fit the context window]", out[1].Content)
	assert.Equal(t, "final answer", out[2].Content)
	assert.LessOrEqual(t, m.Estimate(out), 100)
}

func TestCompress_SystemMessagesNeverDropped(t *testing.T) {
	m := newTestManager(50)

	conv := core.Conversation{
		core.NewSystemMessage("rule one"),
		core.NewSystemMessage("rule two"),
	}
	for i := 0; i < 10; i++ {
		conv.Append(core.NewUserMessage(strings.Repeat("z", 300)))
	}
	conv.Append(core.NewAssistantMessage("end"))

	out := m.Compress(conv)

	var systems []string
	for _, msg := range out {
		if msg.Role == core.RoleSystem {
			systems = append(systems, msg.Content)
		}
	}
	assert.Equal(t, []string{"rule one", "rule two"}, systems)
}

func TestCompress_StrictlyReducesOversizedTranscript(t *testing.T) {
	m := newTestManager(100)

	conv := core.Conversation{
		core.NewSystemMessage("You are helpful."),
		toolMessage("read_file", strings.Repeat("x", 2000)),
		core.NewUserMessage(strings.Repeat("y", 500)),
		core.NewAssistantMessage("ok"),
	}

	before := m.Estimate(conv)
	out := m.Compress(conv)

	assert.Less(t, m.Estimate(out), before)
}
