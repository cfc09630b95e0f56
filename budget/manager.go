package budget

import (
	"fmt"

	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/logging"
)

// Pruning defaults, tuned for tool-heavy transcripts where old tool results
// are the largest and least semantically dense messages.
const (
	defaultKeepRecentTurns  = 3
	defaultSoftTrimMaxChars = 4000
	defaultSoftTrimHead     = 1500
	defaultSoftTrimTail     = 1500

	clearedPlaceholder  = "[old tool result cleared to fit the context window]"
	truncationNotice    = "[earlier messages were removed to fit the context window]"
	trimMarker          = "\n...[trimmed]...\n"
	summaryPrefixFormat = "[conversation summary] %d earlier messages were compressed. "
)

// Options configures a Manager.
type Options struct {
	// MaxTokens is the model context ceiling.
	MaxTokens int
	// SafetyMargin is added to the current estimate when projecting usage.
	SafetyMargin int
	// HeadroomFraction reserves a share of the ceiling for the completion.
	HeadroomFraction float64
	// KeepRecentTurns protects the most recent N assistant turns verbatim.
	KeepRecentTurns int
	// SoftTrimMaxChars / SoftTrimHead / SoftTrimTail control tool-result
	// soft trimming (keep head and tail, drop the middle).
	SoftTrimMaxChars int
	SoftTrimHead     int
	SoftTrimTail     int
	// Estimator overrides the default tiktoken estimator.
	Estimator Estimator
	// Logger receives structured compression events.
	Logger logging.Logger
}

// Manager decides when compression is required and applies the escalating
// strategy chain: (1) prune stale tool results, (2) head/tail-trim overlong
// message text, (3) collapse an older span into a synthetic summary message,
// (4) hard-truncate oldest non-system messages. System messages are never
// dropped and compression is visible in the transcript as ordinary messages,
// never silently hidden.
type Manager struct {
	maxTokens        int
	safetyMargin     int
	headroomFraction float64
	keepRecentTurns  int
	softTrimMaxChars int
	softTrimHead     int
	softTrimTail     int
	estimator        Estimator
	logger           logging.Logger
}

// NewManager constructs a Manager with optional overrides.
func NewManager(optFns ...func(o *Options)) *Manager {
	opts := Options{
		MaxTokens:        128000,
		SafetyMargin:     512,
		HeadroomFraction: 0.1,
		KeepRecentTurns:  defaultKeepRecentTurns,
		SoftTrimMaxChars: defaultSoftTrimMaxChars,
		SoftTrimHead:     defaultSoftTrimHead,
		SoftTrimTail:     defaultSoftTrimTail,
		Estimator:        NewTiktokenEstimator(),
		Logger:           logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Manager{
		maxTokens:        opts.MaxTokens,
		safetyMargin:     opts.SafetyMargin,
		headroomFraction: opts.HeadroomFraction,
		keepRecentTurns:  opts.KeepRecentTurns,
		softTrimMaxChars: opts.SoftTrimMaxChars,
		softTrimHead:     opts.SoftTrimHead,
		softTrimTail:     opts.SoftTrimTail,
		estimator:        opts.Estimator,
		logger:           opts.Logger,
	}
}

// Estimate returns the estimated token size of the transcript.
func (m *Manager) Estimate(conv core.Conversation) int {
	return EstimateConversation(m.estimator, conv)
}

// usable is the ceiling minus the reserved headroom fraction.
func (m *Manager) usable() int {
	return int(float64(m.maxTokens) * (1 - m.headroomFraction))
}

// target is the size compression aims for.
func (m *Manager) target() int {
	t := m.usable() - m.safetyMargin
	if t < 1 {
		t = 1
	}
	return t
}

// ShouldCompress reports whether projected usage (current estimate plus the
// safety margin) would exceed the usable ceiling.
func (m *Manager) ShouldCompress(conv core.Conversation) bool {
	return m.Estimate(conv)+m.safetyMargin > m.usable()
}

// Compress applies the strategy chain and returns the rewritten transcript,
// stopping at the first strategy that brings it under budget. The input is
// never mutated.
func (m *Manager) Compress(conv core.Conversation) core.Conversation {
	before := m.Estimate(conv)
	out := conv.Clone()

	out = m.pruneToolResults(out)
	if m.Estimate(out) <= m.target() {
		m.logCompression("prune", before, out)
		return out
	}

	out = m.trimLongContent(out)
	if m.Estimate(out) <= m.target() {
		m.logCompression("trim", before, out)
		return out
	}

	out = m.summarizeSpan(out)
	if m.Estimate(out) <= m.target() {
		m.logCompression("summarize", before, out)
		return out
	}

	out = m.truncateOldest(out)
	m.logCompression("truncate", before, out)
	return out
}

// pruneToolResults trims stale tool results in two passes: soft trim (keep
// head and tail of long outputs) then placeholder clear. The most recent
// KeepRecentTurns assistant turns stay verbatim.
func (m *Manager) pruneToolResults(conv core.Conversation) core.Conversation {
	protect := m.protectFrom(conv)

	// Pass 1: soft trim long outputs.
	for i := 0; i < protect; i++ {
		if conv[i].Role != core.RoleTool {
			continue
		}
		conv[i] = m.rewriteResults(conv[i], func(output string) string {
			return m.softTrim(output)
		})
	}
	if m.Estimate(conv) <= m.target() {
		return conv
	}

	// Pass 2: clear outputs entirely, oldest first.
	for i := 0; i < protect && m.Estimate(conv) > m.target(); i++ {
		if conv[i].Role != core.RoleTool {
			continue
		}
		conv[i] = m.rewriteResults(conv[i], func(output string) string {
			if len(output) > len(clearedPlaceholder) {
				return clearedPlaceholder
			}
			return output
		})
	}
	return conv
}

// trimLongContent head/tail-trims overlong message text outside the
// protected suffix, so a single giant message shrinks before whole messages
// are summarized or dropped. System messages are left alone.
func (m *Manager) trimLongContent(conv core.Conversation) core.Conversation {
	protect := m.protectFrom(conv)
	for i := 0; i < protect; i++ {
		msg := conv[i]
		if msg.Role == core.RoleSystem || len(msg.Content) <= m.softTrimMaxChars {
			continue
		}
		msg.Content = m.softTrim(msg.Content)
		msg.TokenEstimate = 0
		conv[i] = msg
	}
	if m.Estimate(conv) <= m.target() {
		return conv
	}

	// Last resort for transcripts with no prunable prefix, such as a single
	// oversized prompt with no assistant turn yet: shrink the newest overlong
	// non-system message too, since later strategies always spare it.
	for i := len(conv) - 1; i >= protect; i-- {
		msg := conv[i]
		if msg.Role == core.RoleSystem || len(msg.Content) <= m.softTrimMaxChars {
			continue
		}
		msg.Content = m.softTrim(msg.Content)
		msg.TokenEstimate = 0
		conv[i] = msg
		break
	}
	return conv
}

// rewriteResults returns a copy of a tool message with each result output
// passed through fn. The estimate cache is reset on change.
func (m *Manager) rewriteResults(msg core.Message, fn func(string) string) core.Message {
	changed := false
	results := make([]core.ActionResult, len(msg.ActionResults))
	for i, res := range msg.ActionResults {
		trimmed := fn(res.Output)
		if trimmed != res.Output {
			res.Output = trimmed
			changed = true
		}
		results[i] = res
	}
	if !changed {
		return msg
	}
	msg.ActionResults = results
	msg.TokenEstimate = 0
	return msg
}

// softTrim keeps the head and tail of an overlong string.
func (m *Manager) softTrim(s string) string {
	if len(s) <= m.softTrimMaxChars || m.softTrimHead+m.softTrimTail >= len(s) {
		return s
	}
	return s[:m.softTrimHead] + trimMarker + s[len(s)-m.softTrimTail:]
}

// summarizeSpan collapses the contiguous span of non-system messages before
// the protected suffix into a single synthetic summary message. Skipped when
// the summary would not shrink the transcript.
func (m *Manager) summarizeSpan(conv core.Conversation) core.Conversation {
	protect := m.protectFrom(conv)

	var span []core.Message
	var out core.Conversation
	summaryAt := -1
	for i, msg := range conv {
		if i < protect && msg.Role != core.RoleSystem {
			if summaryAt == -1 {
				summaryAt = len(out)
				out.Append(core.Message{}) // placeholder for the summary
			}
			span = append(span, msg)
			continue
		}
		out.Append(msg)
	}
	if len(span) < 2 {
		return conv
	}

	summary := core.NewUserMessage(summarizeMessages(span))
	spanTokens := EstimateConversation(m.estimator, span)
	if EstimateMessage(m.estimator, summary) >= spanTokens {
		return conv
	}
	out[summaryAt] = summary
	return out
}

// summarizeMessages renders a deterministic digest of a message span: the
// original user ask plus the tools that ran.
func summarizeMessages(span []core.Message) string {
	text := fmt.Sprintf(summaryPrefixFormat, len(span))
	for _, msg := range span {
		if msg.Role == core.RoleUser && msg.Content != "" {
			text += "Original request: " + firstLine(msg.Content, 200) + " "
			break
		}
	}
	var tools []string
	seen := map[string]bool{}
	for _, msg := range span {
		for _, req := range msg.ActionRequests {
			if !seen[req.Name] {
				seen[req.Name] = true
				tools = append(tools, req.Name)
			}
		}
	}
	if len(tools) > 0 {
		text += "Tools used: "
		for i, name := range tools {
			if i > 0 {
				text += ", "
			}
			text += name
		}
		text += "."
	}
	return text
}

func firstLine(s string, max int) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			s = s[:i]
			break
		}
	}
	if len(s) > max {
		s = s[:max]
	}
	return s
}

// truncateOldest drops the oldest non-system messages until the transcript
// fits, always keeping the final message, and records the removal as a
// visible notice message.
func (m *Manager) truncateOldest(conv core.Conversation) core.Conversation {
	dropped := 0
	for m.Estimate(conv) > m.target() {
		idx := -1
		for i := 0; i < len(conv)-1; i++ {
			if conv[i].Role != core.RoleSystem && conv[i].Content != truncationNotice {
				idx = i
				break
			}
		}
		if idx == -1 {
			break
		}
		conv = append(conv[:idx], conv[idx+1:]...)
		dropped++
	}
	if dropped == 0 {
		return conv
	}

	// Insert the notice after the system prologue.
	insertAt := 0
	for insertAt < len(conv) && conv[insertAt].Role == core.RoleSystem {
		insertAt++
	}
	notice := core.NewUserMessage(truncationNotice)
	out := make(core.Conversation, 0, len(conv)+1)
	out = append(out, conv[:insertAt]...)
	out = append(out, notice)
	out = append(out, conv[insertAt:]...)
	return out
}

// protectFrom returns the index of the oldest protected message: everything
// from the KeepRecentTurns-th most recent assistant message onward stays
// verbatim.
func (m *Manager) protectFrom(conv core.Conversation) int {
	seen := 0
	for i := len(conv) - 1; i >= 0; i-- {
		if conv[i].Role == core.RoleAssistant {
			seen++
			if seen == m.keepRecentTurns {
				return i
			}
		}
	}
	return 0
}

func (m *Manager) logCompression(strategy string, before int, out core.Conversation) {
	m.logger.Info(
		"budget.compress",
		"strategy", strategy,
		"tokens_before", before,
		"tokens_after", m.Estimate(out),
		"messages", len(out),
	)
}
