package assistant

import "homebase-backend/internal/models"

// Conversation is the ordered message list of one turn. It is never mutated
// in place: Append returns a new value and leaves the receiver untouched.
type Conversation struct {
	messages []Message
}

func NewConversation(history []*models.AssistantMessage) Conversation {
	msgs := make([]Message, 0, len(history))
	for _, m := range history {
		// Tool traffic is turn-local and never replayed.
		if m.Role != MessageUser && m.Role != MessageAssistant {
			continue
		}
		msgs = append(msgs, Message{Role: m.Role, Content: m.Content})
	}
	return Conversation{messages: msgs}
}

func (c Conversation) Append(msgs ...Message) Conversation {
	next := make([]Message, len(c.messages), len(c.messages)+len(msgs))
	copy(next, c.messages)
	return Conversation{messages: append(next, msgs...)}
}

// Messages returns a copy of the accumulated messages.
func (c Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c Conversation) Len() int { return len(c.messages) }

func UserMessage(content string) Message {
	return Message{Role: MessageUser, Content: content}
}

func AssistantToolCallMessage(content string, calls []ToolCall) Message {
	return Message{Role: MessageAssistant, Content: content, ToolCalls: calls}
}

func ToolMessages(results []ToolResult) []Message {
	msgs := make([]Message, len(results))
	for i := range results {
		r := results[i]
		msgs[i] = Message{Role: MessageTool, Result: &r}
	}
	return msgs
}
