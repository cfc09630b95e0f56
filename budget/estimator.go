// Package budget tracks the running size of a conversation against a token
// ceiling and rewrites history when the next request would overflow it.
// Estimation is a monotone, conservative approximation: overestimation is
// preferred to underestimation to avoid backend-side rejection.
package budget

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/hupe1980/agentcore/core"
)

// Estimator counts tokens in a piece of text.
type Estimator interface {
	Count(text string) int
}

// perMessageOverhead accounts for role markers and delimiters the wire
// format adds around each message.
const perMessageOverhead = 4

// TiktokenEstimator counts tokens with the cl100k_base encoding, falling
// back to the character heuristic if the encoding cannot be loaded.
type TiktokenEstimator struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewTiktokenEstimator constructs the default estimator. Encoding load is
// deferred to the first Count call.
func NewTiktokenEstimator() *TiktokenEstimator {
	return &TiktokenEstimator{}
}

// Count implements Estimator.
func (e *TiktokenEstimator) Count(text string) int {
	e.once.Do(func() {
		if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			e.enc = enc
		}
	})
	if e.enc != nil {
		return len(e.enc.Encode(text, nil, nil))
	}
	return HeuristicEstimator{}.Count(text)
}

// HeuristicEstimator approximates tokens as ceil(len/4), rounding up so the
// estimate stays conservative.
type HeuristicEstimator struct{}

// Count implements Estimator.
func (HeuristicEstimator) Count(text string) int {
	return (len(text) + 3) / 4
}

// EstimateMessage returns the estimated token size of one message including
// its action payloads. A cached Message.TokenEstimate (> 0) is trusted.
func EstimateMessage(est Estimator, msg core.Message) int {
	if msg.TokenEstimate > 0 {
		return msg.TokenEstimate
	}
	return est.Count(messageText(msg)) + perMessageOverhead
}

// EstimateConversation returns the estimated token size of the transcript.
func EstimateConversation(est Estimator, conv core.Conversation) int {
	total := 0
	for _, msg := range conv {
		total += EstimateMessage(est, msg)
	}
	return total
}

// messageText flattens a message into the text the estimator counts: role,
// content and serialized action requests/results.
func messageText(msg core.Message) string {
	var sb strings.Builder
	sb.WriteString(string(msg.Role))
	if msg.Content != "" {
		sb.WriteByte('\n')
		sb.WriteString(msg.Content)
	}
	if len(msg.ActionRequests) > 0 {
		if b, err := json.Marshal(msg.ActionRequests); err == nil {
			sb.WriteByte('\n')
			sb.Write(b)
		}
	}
	for _, res := range msg.ActionResults {
		sb.WriteByte('\n')
		sb.WriteString(res.Output)
		sb.WriteString(res.Error)
	}
	return sb.String()
}
