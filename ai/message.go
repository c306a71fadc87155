package ai

type MessageRole string

const (
	UserRole      MessageRole = "user"
	AssistantRole MessageRole = "assistant"
	SystemRole    MessageRole = "system"
)

type Message interface {
	Value() (role MessageRole, content string)
}

var (
	_ Message = UserMessage{}
	_ Message = AIMessage{}
	_ Message = SystemMessage{}
)

// AIMessage is a model response. Think holds any <think>...</think> reasoning
// stripped out of the content by ExtractThinkTags.
type AIMessage struct {
	Role    MessageRole
	Content string
	Think   string
}

func (m AIMessage) Value() (MessageRole, string) {
	return m.Role, m.Content
}

type UserMessage struct {
	Role    MessageRole
	Content string
}

func (m UserMessage) Value() (MessageRole, string) {
	return m.Role, m.Content
}

type SystemMessage struct {
	Role    MessageRole
	Content string
}

func (m SystemMessage) Value() (MessageRole, string) {
	return m.Role, m.Content
}
