package types

// Message represents either a user or assistant message in a conversation.
// Assistant messages are updated in place while the server streams.
type Message struct {
	ID        string      `json:"id"`
	SessionID string      `json:"sessionID"`
	Role      string      `json:"role"` // "user" | "assistant"
	Time      MessageTime `json:"time"`

	// Assistant-specific fields
	ModelID    string        `json:"modelID,omitempty"`
	ProviderID string        `json:"providerID,omitempty"`
	Mode       string        `json:"mode,omitempty"`
	Cost       float64       `json:"cost,omitempty"`
	Tokens     *TokenUsage   `json:"tokens,omitempty"`
	Error      *MessageError `json:"error,omitempty"`
}

// MessageTime contains timestamps for a message.
type MessageTime struct {
	Created int64  `json:"created"`
	Updated *int64 `json:"updated,omitempty"`
}

// TokenUsage contains token usage statistics for a single message.
type TokenUsage struct {
	Input     int        `json:"input"`
	Output    int        `json:"output"`
	Reasoning int        `json:"reasoning"`
	Cache     CacheUsage `json:"cache"`
}

// CacheUsage contains cache hit/write statistics.
type CacheUsage struct {
	Read  int `json:"read"`
	Write int `json:"write"`
}

// MessageError represents an error that occurred during message processing.
type MessageError struct {
	Name string           `json:"name"`
	Data MessageErrorData `json:"data"`
}

// MessageErrorData contains the error details.
type MessageErrorData struct {
	Message string `json:"message"`
}

// MessageWithParts is the shape returned by the message list endpoint: the
// message info plus its streamed parts.
type MessageWithParts struct {
	Info  Message `json:"info"`
	Parts []Part  `json:"parts"`
}

// TokenTotals is the derived token aggregate over a session's assistant
// messages. It is always recomputed from the message set, never stored.
type TokenTotals struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

// SumTokens computes the token totals for a message set. Only assistant
// messages carry token usage.
func SumTokens(messages []MessageWithParts) TokenTotals {
	var t TokenTotals
	for _, m := range messages {
		if m.Info.Role != "assistant" || m.Info.Tokens == nil {
			continue
		}
		t.Input += m.Info.Tokens.Input
		t.Output += m.Info.Tokens.Output
	}
	t.Total = t.Input + t.Output
	return t
}
