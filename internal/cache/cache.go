package cache

import (
	"context"
	"sort"

	"github.com/opencode-ai/pocketcode/internal/transport"
	"github.com/opencode-ai/pocketcode/pkg/types"
)

// Scope is the (server, project) pair a cache key belongs to. Queries use
// the active scope; event dispatch carries the scope its connection was
// opened under, so late events cannot write into a newer scope.
type Scope struct {
	Server  string
	Project string
}

// SessionDetail is the cached value for a session's message view: the
// messages with parts, the session status, and the derived token totals.
type SessionDetail struct {
	Messages []types.MessageWithParts
	Status   types.SessionStatus
	Tokens   types.TokenTotals
}

// Cache binds the generic store to the transport layer and the active
// scope.
type Cache struct {
	store   *Store
	clients *transport.Cache
	scope   func() (serverURL, projectPath string)
}

// New creates the typed cache. scope returns the active (server URL,
// project path) pair, normally registry.Scope.
func New(store *Store, clients *transport.Cache, scope func() (string, string)) *Cache {
	return &Cache{store: store, clients: clients, scope: scope}
}

// Store exposes the underlying store.
func (c *Cache) Store() *Store {
	return c.store
}

// ActiveScope returns the current scope.
func (c *Cache) ActiveScope() Scope {
	server, project := c.scope()
	return Scope{Server: server, Project: project}
}

func (c *Cache) client(scope Scope) *transport.Client {
	return c.clients.Get(scope.Server)
}

func (scope Scope) key(kind Kind, id string) Key {
	return Key{Server: scope.Server, Project: scope.Project, Kind: kind, ID: id}
}

// sortSessions orders sessions by last-update time, newest first.
func sortSessions(sessions []types.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].Time.Updated > sessions[j].Time.Updated
	})
}

// Sessions returns the root sessions for the active scope, newest first.
func (c *Cache) Sessions(ctx context.Context) ([]types.Session, error) {
	scope := c.ActiveScope()
	v, err := c.store.Fetch(ctx, scope.key(KindSessions, ""), func(ctx context.Context) (any, error) {
		sessions, err := c.client(scope).Sessions(ctx, scope.Project)
		if err != nil {
			return nil, err
		}
		sortSessions(sessions)
		return sessions, nil
	})
	if err != nil {
		return nil, err
	}

	all := v.([]types.Session)
	roots := make([]types.Session, 0, len(all))
	for _, s := range all {
		if s.IsRoot() {
			roots = append(roots, s)
		}
	}
	return roots, nil
}

// Session returns one session, including child sessions that the list view
// filters out.
func (c *Cache) Session(ctx context.Context, id string) (types.Session, error) {
	scope := c.ActiveScope()
	v, err := c.store.Fetch(ctx, scope.key(KindSession, id), func(ctx context.Context) (any, error) {
		sess, err := c.client(scope).Session(ctx, scope.Project, id)
		if err != nil {
			return nil, err
		}
		return *sess, nil
	})
	if err != nil {
		return types.Session{}, err
	}
	return v.(types.Session), nil
}

// Detail returns the message view for a session.
func (c *Cache) Detail(ctx context.Context, sessionID string) (SessionDetail, error) {
	scope := c.ActiveScope()
	v, err := c.store.Fetch(ctx, scope.key(KindMessages, sessionID), func(ctx context.Context) (any, error) {
		messages, err := c.client(scope).Messages(ctx, scope.Project, sessionID)
		if err != nil {
			return nil, err
		}
		return SessionDetail{
			Messages: messages,
			Status:   types.SessionStatus{Type: types.StatusIdle},
			Tokens:   types.SumTokens(messages),
		}, nil
	})
	if err != nil {
		return SessionDetail{}, err
	}
	return v.(SessionDetail), nil
}

// Todos returns the todo list for a session.
func (c *Cache) Todos(ctx context.Context, sessionID string) ([]types.TodoInfo, error) {
	scope := c.ActiveScope()
	v, err := c.store.Fetch(ctx, scope.key(KindTodos, sessionID), func(ctx context.Context) (any, error) {
		todos, err := c.client(scope).Todos(ctx, scope.Project, sessionID)
		if err != nil {
			return nil, err
		}
		return todos, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]types.TodoInfo), nil
}

// Status returns the status map for all sessions in the active scope.
func (c *Cache) Status(ctx context.Context) (map[string]types.SessionStatus, error) {
	scope := c.ActiveScope()
	v, err := c.store.Fetch(ctx, scope.key(KindStatus, ""), func(ctx context.Context) (any, error) {
		status, err := c.client(scope).SessionStatus(ctx, scope.Project)
		if err != nil {
			return nil, err
		}
		if status == nil {
			status = map[string]types.SessionStatus{}
		}
		return status, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]types.SessionStatus), nil
}

// Projects returns the server's project list. Projects are server-wide, the
// key carries no project path.
func (c *Cache) Projects(ctx context.Context) ([]types.Project, error) {
	scope := Scope{Server: c.ActiveScope().Server}
	v, err := c.store.Fetch(ctx, scope.key(KindProjects, ""), func(ctx context.Context) (any, error) {
		projects, err := c.client(scope).Projects(ctx)
		if err != nil {
			return nil, err
		}
		return projects, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]types.Project), nil
}

// Providers returns the provider/model catalog.
func (c *Cache) Providers(ctx context.Context) (*types.ProviderList, error) {
	scope := c.ActiveScope()
	v, err := c.store.Fetch(ctx, scope.key(KindProviders, ""), func(ctx context.Context) (any, error) {
		return c.client(scope).Providers(ctx, scope.Project)
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.ProviderList), nil
}

// Agents returns the agent catalog.
func (c *Cache) Agents(ctx context.Context) ([]types.Agent, error) {
	scope := c.ActiveScope()
	v, err := c.store.Fetch(ctx, scope.key(KindAgents, ""), func(ctx context.Context) (any, error) {
		return c.client(scope).Agents(ctx, scope.Project)
	})
	if err != nil {
		return nil, err
	}
	return v.([]types.Agent), nil
}
