package core

// Role identifies the conversational origin of a Message.
type Role string

// Conversation roles. The backend protocol is closed over these four values.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single transcript entry. After it has been appended to a
// Conversation it must be treated as immutable: compression rewrites history
// by building replacement messages, never by mutating existing ones.
//
// An assistant message may carry ActionRequests; a tool message carries the
// ActionResults correlated to a prior assistant turn. TokenEstimate caches
// the last size estimate computed for the message (0 = not yet estimated).
type Message struct {
	Role           Role            `json:"role"`
	Content        string          `json:"content,omitempty"`
	ActionRequests []ActionRequest `json:"action_requests,omitempty"`
	ActionResults  []ActionResult  `json:"action_results,omitempty"`
	TokenEstimate  int             `json:"-"`
}

// NewSystemMessage builds a system-role instruction message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage builds a user-role text message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage builds an assistant message with optional action requests.
func NewAssistantMessage(content string, requests ...ActionRequest) Message {
	return Message{Role: RoleAssistant, Content: content, ActionRequests: requests}
}

// NewToolMessage builds a tool-role message carrying dispatch results.
func NewToolMessage(results ...ActionResult) Message {
	return Message{Role: RoleTool, ActionResults: results}
}

// Conversation is the ordered transcript owned by exactly one run. Insertion
// order is meaningful; it is append-only except when the budget manager
// rewrites history during compression (which returns a new Conversation).
type Conversation []Message

// Append adds a message to the end of the transcript.
func (c *Conversation) Append(msgs ...Message) {
	*c = append(*c, msgs...)
}

// Clone returns a shallow copy of the transcript. Messages are value types,
// so the copy is safe to rewrite without affecting the original ordering.
func (c Conversation) Clone() Conversation {
	out := make(Conversation, len(c))
	copy(out, c)
	return out
}

// SystemMessages returns the system-role messages in transcript order.
func (c Conversation) SystemMessages() []Message {
	var out []Message
	for _, m := range c {
		if m.Role == RoleSystem {
			out = append(out, m)
		}
	}
	return out
}

// LastAssistantText returns the content of the most recent assistant message,
// or "" if none exists. Used to surface partial output on early termination.
func (c Conversation) LastAssistantText() string {
	for i := len(c) - 1; i >= 0; i-- {
		if c[i].Role == RoleAssistant && c[i].Content != "" {
			return c[i].Content
		}
	}
	return ""
}

// UnresolvedRequests returns action requests that are not yet matched by a
// result later in the transcript. The execution loop requires this to be
// empty before every backend call.
func (c Conversation) UnresolvedRequests() []ActionRequest {
	resolved := make(map[string]bool)
	for _, m := range c {
		for _, r := range m.ActionResults {
			resolved[r.RequestID] = true
		}
	}

	var pending []ActionRequest
	for _, m := range c {
		for _, req := range m.ActionRequests {
			if !resolved[req.ID] {
				pending = append(pending, req)
			}
		}
	}
	return pending
}
