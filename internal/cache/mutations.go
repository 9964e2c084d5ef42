package cache

import (
	"context"

	"github.com/opencode-ai/pocketcode/internal/transport"
	"github.com/opencode-ai/pocketcode/pkg/types"
)

// Mutations call the server first and patch the cache only after the remote
// confirms, so the cache never reflects an unconfirmed change. Failed
// mutations leave the cache untouched and surface the error to the caller.

// CreateSession creates a session and prepends it to the cached list.
func (c *Cache) CreateSession(ctx context.Context, title string) (types.Session, error) {
	scope := c.ActiveScope()
	sess, err := c.client(scope).CreateSession(ctx, scope.Project, title)
	if err != nil {
		return types.Session{}, err
	}
	c.UpsertSession(scope, *sess)
	return *sess, nil
}

// RenameSession updates a session title and patches the cached copies.
func (c *Cache) RenameSession(ctx context.Context, sessionID, title string) error {
	scope := c.ActiveScope()
	sess, err := c.client(scope).UpdateSession(ctx, scope.Project, sessionID, title)
	if err != nil {
		return err
	}
	c.UpsertSession(scope, *sess)
	return nil
}

// DeleteSession deletes a session remotely and removes it from the cache.
func (c *Cache) DeleteSession(ctx context.Context, sessionID string) error {
	scope := c.ActiveScope()
	if err := c.client(scope).DeleteSession(ctx, scope.Project, sessionID); err != nil {
		return err
	}
	c.RemoveSession(scope, sessionID)
	return nil
}

// ShareSession enables sharing and patches the returned session in.
func (c *Cache) ShareSession(ctx context.Context, sessionID string) (types.Session, error) {
	scope := c.ActiveScope()
	sess, err := c.client(scope).ShareSession(ctx, scope.Project, sessionID)
	if err != nil {
		return types.Session{}, err
	}
	c.UpsertSession(scope, *sess)
	return *sess, nil
}

// UnshareSession disables sharing and patches the returned session in.
func (c *Cache) UnshareSession(ctx context.Context, sessionID string) (types.Session, error) {
	scope := c.ActiveScope()
	sess, err := c.client(scope).UnshareSession(ctx, scope.Project, sessionID)
	if err != nil {
		return types.Session{}, err
	}
	c.UpsertSession(scope, *sess)
	return *sess, nil
}

// SendPrompt submits a prompt. The server answers asynchronously over the
// event channel; once the submission is accepted the session is marked busy.
func (c *Cache) SendPrompt(ctx context.Context, sessionID, text string, model *types.ModelRef, agent string) error {
	scope := c.ActiveScope()
	req := transport.PromptRequest{
		Parts: []transport.PromptPart{{Type: types.PartText, Text: text}},
		Model: model,
		Agent: agent,
	}
	if err := c.client(scope).Prompt(ctx, scope.Project, sessionID, req); err != nil {
		return err
	}
	c.PatchStatus(scope, sessionID, types.SessionStatus{Type: types.StatusBusy})
	return nil
}

// Abort stops a session's in-flight processing.
func (c *Cache) Abort(ctx context.Context, sessionID string) error {
	scope := c.ActiveScope()
	if err := c.client(scope).Abort(ctx, scope.Project, sessionID); err != nil {
		return err
	}
	c.PatchStatus(scope, sessionID, types.SessionStatus{Type: types.StatusIdle})
	return nil
}

// RespondPermission answers a pending permission request.
func (c *Cache) RespondPermission(ctx context.Context, sessionID, permissionID, response string) error {
	scope := c.ActiveScope()
	return c.client(scope).RespondPermission(ctx, scope.Project, sessionID, permissionID, response)
}
