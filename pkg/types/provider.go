package types

// Provider is an LLM provider configured on the server, with its models.
type Provider struct {
	ID     string           `json:"id"`
	Name   string           `json:"name"`
	Models map[string]Model `json:"models"`
}

// Model is a single model offered by a provider.
type Model struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ModelRef references a specific model from a provider.
type ModelRef struct {
	ProviderID string `json:"providerID"`
	ModelID    string `json:"modelID"`
}

// ProviderList is the response of the provider listing endpoint. Default maps
// provider id to its default model id.
type ProviderList struct {
	Providers []Provider        `json:"providers"`
	Default   map[string]string `json:"default"`
}

// Agent is an agent definition offered by the server.
type Agent struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Mode        string `json:"mode,omitempty"` // "primary" | "subagent" | "all"
}

// DefaultAgent is the built-in agent name used when the agent list is
// unavailable.
const DefaultAgent = "build"
