package llm

// Role identifies who authored a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest describes one chat completion call. An empty Model falls
// back to the provider's configured default.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	JSONMode    bool
}

// CompletionResponse carries the completion text together with the model and
// token counts the backend reported for the call.
type CompletionResponse struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Usage is a running total of reported token consumption.
type Usage struct {
	Calls        int
	InputTokens  int
	OutputTokens int
}

// Add folds one response into the totals.
func (u *Usage) Add(resp *CompletionResponse) {
	u.Calls++
	u.InputTokens += resp.InputTokens
	u.OutputTokens += resp.OutputTokens
}
