package types

// Part is a fragment of a message's content. Parts stream incrementally: the
// server re-sends the same part id with more text or a new tool state, and the
// client replaces the stored part by id.
//
// The type is a flat struct with a discriminator rather than an interface so
// that parts survive JSON round-trips and map lookups without type switches.
type Part struct {
	ID        string `json:"id"`
	MessageID string `json:"messageID"`
	SessionID string `json:"sessionID"`
	Type      string `json:"type"` // "text" | "reasoning" | "tool" | "step-start" | "step-finish" | "file"

	// Text and reasoning parts
	Text string `json:"text,omitempty"`

	// Tool parts
	Tool   string     `json:"tool,omitempty"`
	CallID string     `json:"callID,omitempty"`
	State  *ToolState `json:"state,omitempty"`

	// File parts
	Filename  string `json:"filename,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
	URL       string `json:"url,omitempty"`

	Time *PartTime `json:"time,omitempty"`
}

// Part type values.
const (
	PartText       = "text"
	PartReasoning  = "reasoning"
	PartTool       = "tool"
	PartStepStart  = "step-start"
	PartStepFinish = "step-finish"
	PartFile       = "file"
)

// ToolState tracks a tool invocation through its lifecycle.
type ToolState struct {
	Status   string         `json:"status"` // "pending" | "running" | "completed" | "error"
	Input    map[string]any `json:"input,omitempty"`
	Output   string         `json:"output,omitempty"`
	Error    string         `json:"error,omitempty"`
	Title    string         `json:"title,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Time     *PartTime      `json:"time,omitempty"`
}

// PartTime contains timing information for a part.
type PartTime struct {
	Start int64  `json:"start,omitempty"`
	End   *int64 `json:"end,omitempty"`
}
