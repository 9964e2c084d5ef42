package transport

import (
	"context"
	"net/http"

	"github.com/opencode-ai/pocketcode/pkg/types"
)

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Version string `json:"version"`
}

// Health probes the server's health endpoint.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.do(ctx, http.MethodGet, "/global/health", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Projects lists the projects known to the server.
func (c *Client) Projects(ctx context.Context) ([]types.Project, error) {
	var out []types.Project
	if err := c.do(ctx, http.MethodGet, "/project", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Sessions lists the sessions for a project directory.
func (c *Client) Sessions(ctx context.Context, directory string) ([]types.Session, error) {
	var out []types.Session
	if err := c.do(ctx, http.MethodGet, "/session", dirQuery(directory), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Session fetches a single session, including child sessions absent from the
// main list.
func (c *Client) Session(ctx context.Context, directory, id string) (*types.Session, error) {
	var out types.Session
	if err := c.do(ctx, http.MethodGet, "/session/"+id, dirQuery(directory), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SessionStatus fetches the status map for all sessions in a directory.
func (c *Client) SessionStatus(ctx context.Context, directory string) (map[string]types.SessionStatus, error) {
	var out map[string]types.SessionStatus
	if err := c.do(ctx, http.MethodGet, "/session/status", dirQuery(directory), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Messages fetches a session's messages with their parts.
func (c *Client) Messages(ctx context.Context, directory, sessionID string) ([]types.MessageWithParts, error) {
	var out []types.MessageWithParts
	if err := c.do(ctx, http.MethodGet, "/session/"+sessionID+"/message", dirQuery(directory), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Todos fetches a session's todo list.
func (c *Client) Todos(ctx context.Context, directory, sessionID string) ([]types.TodoInfo, error) {
	var out []types.TodoInfo
	if err := c.do(ctx, http.MethodGet, "/session/"+sessionID+"/todo", dirQuery(directory), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Providers lists providers and their models.
func (c *Client) Providers(ctx context.Context, directory string) (*types.ProviderList, error) {
	var out types.ProviderList
	if err := c.do(ctx, http.MethodGet, "/config/providers", dirQuery(directory), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Agents lists agent definitions.
func (c *Client) Agents(ctx context.Context, directory string) ([]types.Agent, error) {
	var out []types.Agent
	if err := c.do(ctx, http.MethodGet, "/agent", dirQuery(directory), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateSession creates a session, optionally with a title.
func (c *Client) CreateSession(ctx context.Context, directory, title string) (*types.Session, error) {
	body := map[string]any{}
	if title != "" {
		body["title"] = title
	}
	var out types.Session
	if err := c.do(ctx, http.MethodPost, "/session", dirQuery(directory), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateSession renames a session.
func (c *Client) UpdateSession(ctx context.Context, directory, id, title string) (*types.Session, error) {
	var out types.Session
	body := map[string]any{"title": title}
	if err := c.do(ctx, http.MethodPatch, "/session/"+id, dirQuery(directory), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteSession deletes a session.
func (c *Client) DeleteSession(ctx context.Context, directory, id string) error {
	return c.do(ctx, http.MethodDelete, "/session/"+id, dirQuery(directory), nil, nil)
}

// ShareSession enables sharing and returns the updated session.
func (c *Client) ShareSession(ctx context.Context, directory, id string) (*types.Session, error) {
	var out types.Session
	if err := c.do(ctx, http.MethodPost, "/session/"+id+"/share", dirQuery(directory), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UnshareSession disables sharing and returns the updated session.
func (c *Client) UnshareSession(ctx context.Context, directory, id string) (*types.Session, error) {
	var out types.Session
	if err := c.do(ctx, http.MethodDelete, "/session/"+id+"/share", dirQuery(directory), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PromptPart is one part of a prompt submission.
type PromptPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// PromptRequest is the body of a prompt submission.
type PromptRequest struct {
	Parts []PromptPart    `json:"parts"`
	Model *types.ModelRef `json:"model,omitempty"`
	Agent string          `json:"agent,omitempty"`
}

// Prompt submits a user prompt. The server processes it asynchronously and
// streams the assistant response over the event channel; the call returns as
// soon as the prompt is accepted.
func (c *Client) Prompt(ctx context.Context, directory, sessionID string, req PromptRequest) error {
	return c.do(ctx, http.MethodPost, "/session/"+sessionID+"/message", dirQuery(directory), req, nil)
}

// Abort stops in-flight processing for a session.
func (c *Client) Abort(ctx context.Context, directory, sessionID string) error {
	return c.do(ctx, http.MethodPost, "/session/"+sessionID+"/abort", dirQuery(directory), nil, nil)
}

// RespondPermission answers a pending permission request.
// Response is one of "once", "always", "reject".
func (c *Client) RespondPermission(ctx context.Context, directory, sessionID, permissionID, response string) error {
	body := map[string]string{"response": response}
	return c.do(ctx, http.MethodPost, "/session/"+sessionID+"/permissions/"+permissionID, dirQuery(directory), body, nil)
}
