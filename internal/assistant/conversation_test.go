package assistant

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"homebase-backend/internal/models"
)

func TestConversation_AppendDoesNotMutate(t *testing.T) {
	base := NewConversation([]*models.AssistantMessage{
		{Role: MessageUser, Content: "hi"},
		{Role: MessageTool, Content: "dropped"},
		{Role: MessageAssistant, Content: "hello"},
	})
	assert.Equal(t, 2, base.Len())

	a := base.Append(UserMessage("a"))
	b := base.Append(UserMessage("b"))

	assert.Equal(t, 2, base.Len())
	assert.Equal(t, "a", a.Messages()[2].Content)
	assert.Equal(t, "b", b.Messages()[2].Content)

	msgs := a.Messages()
	msgs[0].Content = "changed"
	assert.Equal(t, "hi", a.Messages()[0].Content)
}

func TestToolMessages(t *testing.T) {
	msgs := ToolMessages([]ToolResult{{CallID: "1"}, {CallID: "2"}})
	assert.Equal(t, "1", msgs[0].Result.CallID)
	assert.Equal(t, "2", msgs[1].Result.CallID)
	assert.Equal(t, MessageTool, msgs[1].Role)
}
