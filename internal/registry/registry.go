// Package registry owns the set of known servers, the active server/project
// selection, and per-server connection state. Server configs and selections
// are persisted; connection state is derived at runtime and never stored.
package registry

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/opencode-ai/pocketcode/internal/bus"
	"github.com/opencode-ai/pocketcode/internal/logging"
	"github.com/opencode-ai/pocketcode/internal/storage"
	"github.com/opencode-ai/pocketcode/internal/transport"
)

// ServerConfig describes one known server. Immutable after creation except
// for Name and LastConnectedAt.
type ServerConfig struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	URL             string `json:"url"`
	CreatedAt       int64  `json:"createdAt"`
	LastConnectedAt *int64 `json:"lastConnectedAt,omitempty"`
}

// Status is the connection status of a server.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

// ServerState is the runtime view of a server: its config plus connection
// status.
type ServerState struct {
	Config  ServerConfig `json:"config"`
	Status  Status       `json:"status"`
	Error   string       `json:"error,omitempty"`
	Version string       `json:"version,omitempty"`
}

type activeServerRecord struct {
	ID string `json:"id"`
}

type activeProjectRecord struct {
	Path string `json:"path"`
}

// Registry is the single source of truth for which servers exist and which
// server/project pair is active.
type Registry struct {
	store   *storage.Storage
	clients *transport.Cache
	bus     *bus.Bus

	mu            sync.Mutex
	servers       map[string]ServerConfig
	states        map[string]*ServerState
	activeServer  string
	activeProject string
}

// New creates a registry backed by the given store, client cache, and bus.
func New(store *storage.Storage, clients *transport.Cache, b *bus.Bus) *Registry {
	return &Registry{
		store:   store,
		clients: clients,
		bus:     b,
		servers: make(map[string]ServerConfig),
		states:  make(map[string]*ServerState),
	}
}

// Load reads persisted server configs and selections into memory.
func (r *Registry) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked(ctx)
}

func (r *Registry) loadLocked(ctx context.Context) error {
	servers := make(map[string]ServerConfig)
	err := r.store.Scan(ctx, []string{"servers"}, func(key string, data json.RawMessage) error {
		var cfg ServerConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			logging.Warn().Str("key", key).Err(err).Msg("skipping malformed server config")
			return nil
		}
		servers[cfg.ID] = cfg
		return nil
	})
	if err != nil {
		return err
	}
	r.servers = servers

	for id := range servers {
		if _, ok := r.states[id]; !ok {
			r.states[id] = &ServerState{Config: servers[id], Status: StatusDisconnected}
		}
	}
	for id := range r.states {
		if _, ok := servers[id]; !ok {
			delete(r.states, id)
		}
	}

	var active activeServerRecord
	if err := r.store.Get(ctx, []string{"state", "active-server"}, &active); err == nil {
		if _, ok := servers[active.ID]; ok {
			r.activeServer = active.ID
		}
	}
	if r.activeServer != "" {
		var project activeProjectRecord
		if err := r.store.Get(ctx, []string{"state", "project", r.activeServer}, &project); err == nil {
			r.activeProject = project.Path
		}
	}
	return nil
}

// AddServer registers a new server. The URL is normalized, an id is
// generated, and the config is persisted before returning. No network call
// is made.
func (r *Registry) AddServer(ctx context.Context, name, url string) (ServerConfig, error) {
	cfg := ServerConfig{
		ID:        ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String(),
		Name:      name,
		URL:       transport.NormalizeURL(url),
		CreatedAt: time.Now().UnixMilli(),
	}

	if err := r.store.Put(ctx, []string{"servers", cfg.ID}, cfg); err != nil {
		return ServerConfig{}, err
	}

	r.mu.Lock()
	r.servers[cfg.ID] = cfg
	r.states[cfg.ID] = &ServerState{Config: cfg, Status: StatusDisconnected}
	r.mu.Unlock()

	r.bus.Publish(bus.TopicRegistry, cfg.ID)
	return cfg, nil
}

// RenameServer updates a server's display name.
func (r *Registry) RenameServer(ctx context.Context, id, name string) error {
	r.mu.Lock()
	cfg, ok := r.servers[id]
	r.mu.Unlock()
	if !ok {
		return storage.ErrNotFound
	}

	cfg.Name = name
	if err := r.store.Put(ctx, []string{"servers", id}, cfg); err != nil {
		return err
	}

	r.mu.Lock()
	r.servers[id] = cfg
	if st, ok := r.states[id]; ok {
		st.Config = cfg
	}
	r.mu.Unlock()

	r.bus.Publish(bus.TopicRegistry, id)
	return nil
}

// RemoveServer deletes a server: its transport client is evicted, the
// persisted config removed, and the active selection cleared if it pointed
// at the removed server.
func (r *Registry) RemoveServer(ctx context.Context, id string) error {
	r.mu.Lock()
	cfg, ok := r.servers[id]
	wasActive := r.activeServer == id
	r.mu.Unlock()
	if !ok {
		return storage.ErrNotFound
	}

	r.clients.Evict(cfg.URL)

	if err := r.store.Delete(ctx, []string{"servers", id}); err != nil {
		return err
	}
	if err := r.store.Delete(ctx, []string{"state", "project", id}); err != nil {
		return err
	}
	if wasActive {
		if err := r.store.Delete(ctx, []string{"state", "active-server"}); err != nil {
			return err
		}
	}

	r.mu.Lock()
	delete(r.servers, id)
	delete(r.states, id)
	if wasActive {
		r.activeServer = ""
		r.activeProject = ""
	}
	r.mu.Unlock()

	r.bus.Publish(bus.TopicRegistry, id)
	return nil
}

// SetActiveServer persists the active-server selection, restores that
// server's persisted project selection, and triggers a connection attempt if
// the server is not already connected. Pass "" to clear the selection.
func (r *Registry) SetActiveServer(ctx context.Context, id string) error {
	if id == "" {
		if err := r.store.Delete(ctx, []string{"state", "active-server"}); err != nil {
			return err
		}
		r.mu.Lock()
		r.activeServer = ""
		r.activeProject = ""
		r.mu.Unlock()
		r.bus.Publish(bus.TopicRegistry, "")
		return nil
	}

	r.mu.Lock()
	_, ok := r.servers[id]
	r.mu.Unlock()
	if !ok {
		return storage.ErrNotFound
	}

	if err := r.store.Put(ctx, []string{"state", "active-server"}, activeServerRecord{ID: id}); err != nil {
		return err
	}

	var project activeProjectRecord
	projectPath := ""
	if err := r.store.Get(ctx, []string{"state", "project", id}, &project); err == nil {
		projectPath = project.Path
	}

	r.mu.Lock()
	r.activeServer = id
	r.activeProject = projectPath
	needsConnect := r.states[id].Status != StatusConnected
	r.mu.Unlock()

	r.bus.Publish(bus.TopicRegistry, id)

	if needsConnect {
		r.Connect(ctx, id)
	}
	return nil
}

// SetActiveProject persists the per-server project selection. It does not
// trigger a refetch; observers react to the change notification.
func (r *Registry) SetActiveProject(ctx context.Context, path string) error {
	r.mu.Lock()
	serverID := r.activeServer
	r.mu.Unlock()
	if serverID == "" {
		return storage.ErrNotFound
	}

	if path == "" {
		if err := r.store.Delete(ctx, []string{"state", "project", serverID}); err != nil {
			return err
		}
	} else if err := r.store.Put(ctx, []string{"state", "project", serverID}, activeProjectRecord{Path: path}); err != nil {
		return err
	}

	r.mu.Lock()
	r.activeProject = path
	r.mu.Unlock()

	r.bus.Publish(bus.TopicRegistry, serverID)
	return nil
}

// Connect probes the server and transitions its status. Probe failures set
// status error with a readable reason; they are reported in the returned
// state, not as a Go error. On success, if the server is active, the project
// list is refreshed and the first project auto-selected when none was chosen.
func (r *Registry) Connect(ctx context.Context, id string) ServerState {
	r.mu.Lock()
	cfg, ok := r.servers[id]
	if !ok {
		r.mu.Unlock()
		return ServerState{Status: StatusError, Error: "unknown server"}
	}
	st := r.states[id]
	st.Status = StatusConnecting
	st.Error = ""
	r.mu.Unlock()

	r.bus.Publish(bus.TopicRegistry, id)

	result := r.clients.HealthCheck(ctx, cfg.URL)

	r.mu.Lock()
	if !result.Healthy {
		st.Status = StatusError
		st.Error = result.Error
		state := *st
		r.mu.Unlock()
		r.bus.Publish(bus.TopicRegistry, id)
		logging.Warn().Str("server", id).Str("reason", result.Error).Msg("health probe failed")
		return state
	}

	st.Status = StatusConnected
	st.Version = result.Version
	now := time.Now().UnixMilli()
	cfg.LastConnectedAt = &now
	r.servers[id] = cfg
	st.Config = cfg
	isActive := r.activeServer == id
	hasProject := r.activeProject != ""
	state := *st
	r.mu.Unlock()

	if err := r.store.Put(ctx, []string{"servers", id}, cfg); err != nil {
		logging.Warn().Str("server", id).Err(err).Msg("failed to persist last-connected time")
	}

	r.bus.Publish(bus.TopicRegistry, id)

	if isActive && !hasProject {
		if projects, err := r.clients.Get(cfg.URL).Projects(ctx); err == nil && len(projects) > 0 {
			if err := r.SetActiveProject(ctx, projects[0].Worktree); err != nil {
				logging.Warn().Str("server", id).Err(err).Msg("failed to auto-select project")
			}
		}
	}
	return state
}

// Servers returns all known server configs, oldest first.
func (r *Registry) Servers() []ServerConfig {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ServerConfig, 0, len(r.servers))
	for _, cfg := range r.servers {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out
}

// State returns the runtime state for a server.
func (r *Registry) State(id string) (ServerState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.states[id]
	if !ok {
		return ServerState{}, false
	}
	return *st, true
}

// ActiveServer returns the active server config, if any.
func (r *Registry) ActiveServer() (ServerConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.activeServer == "" {
		return ServerConfig{}, false
	}
	cfg, ok := r.servers[r.activeServer]
	return cfg, ok
}

// ActiveProject returns the active project path, or "".
func (r *Registry) ActiveProject() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeProject
}

// Scope returns the active (server URL, project path) pair. Both are empty
// when nothing is selected.
func (r *Registry) Scope() (serverURL, projectPath string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.activeServer == "" {
		return "", ""
	}
	cfg, ok := r.servers[r.activeServer]
	if !ok {
		return "", ""
	}
	return cfg.URL, r.activeProject
}

// Connected reports whether the active server is connected.
func (r *Registry) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.activeServer == "" {
		return false
	}
	st, ok := r.states[r.activeServer]
	return ok && st.Status == StatusConnected
}
