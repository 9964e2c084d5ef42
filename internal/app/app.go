// Package app wires the client together: storage, bus, transport, registry,
// cache, live view, and the event channel. Everything is constructed
// explicitly and torn down in Close, so tests can run isolated instances.
package app

import (
	"context"

	"github.com/opencode-ai/pocketcode/internal/bus"
	"github.com/opencode-ai/pocketcode/internal/cache"
	"github.com/opencode-ai/pocketcode/internal/config"
	"github.com/opencode-ai/pocketcode/internal/live"
	"github.com/opencode-ai/pocketcode/internal/logging"
	"github.com/opencode-ai/pocketcode/internal/registry"
	"github.com/opencode-ai/pocketcode/internal/storage"
	"github.com/opencode-ai/pocketcode/internal/stream"
	"github.com/opencode-ai/pocketcode/internal/transport"
)

// App is the composition root for the client.
type App struct {
	Config   *config.Config
	Storage  *storage.Storage
	Bus      *bus.Bus
	Clients  *transport.Cache
	Registry *registry.Registry
	Cache    *cache.Cache
	View     *live.View
	Channel  *stream.Channel

	unsub func()
}

// New builds the client with its state rooted at stateDir.
func New(cfg *config.Config, stateDir string) *App {
	store := storage.New(stateDir)
	b := bus.New()
	clients := transport.NewCache()
	reg := registry.New(store, clients, b)
	cacheStore := cache.NewStore(b)
	c := cache.New(cacheStore, clients, reg.Scope)
	view := live.NewView()
	dispatcher := stream.NewDispatcher(c, view, b)
	channel := stream.NewChannel(dispatcher, b)

	return &App{
		Config:   cfg,
		Storage:  store,
		Bus:      b,
		Clients:  clients,
		Registry: reg,
		Cache:    c,
		View:     view,
		Channel:  channel,
	}
}

// Start loads persisted state and brings the event channel in line with the
// active selection. On first run with a configured default server URL, that
// server is added and activated.
func (a *App) Start(ctx context.Context) error {
	if err := a.Registry.Load(ctx); err != nil {
		return err
	}

	if len(a.Registry.Servers()) == 0 && a.Config.DefaultServerURL != "" {
		cfg, err := a.Registry.AddServer(ctx, "default", a.Config.DefaultServerURL)
		if err != nil {
			return err
		}
		if err := a.Registry.SetActiveServer(ctx, cfg.ID); err != nil {
			return err
		}
	}

	// Keep the channel reconciled with the active selection.
	a.unsub = a.Bus.Subscribe(bus.TopicRegistry, func(bus.Notification) {
		a.SyncChannel()
	})

	if cfg, ok := a.Registry.ActiveServer(); ok {
		if st, _ := a.Registry.State(cfg.ID); st.Status != registry.StatusConnected {
			go a.Registry.Connect(ctx, cfg.ID)
		}
	}
	a.SyncChannel()
	return nil
}

// SyncChannel reconciles the event channel with the active (server,
// project) pair and connection status.
func (a *App) SyncChannel() {
	server, project := a.Registry.Scope()
	a.Channel.Sync(a.Registry.Connected(), server, project)
}

// Watch runs the registry file watcher until ctx is done.
func (a *App) Watch(ctx context.Context) {
	if err := a.Registry.Watch(ctx); err != nil && ctx.Err() == nil {
		logging.Warn().Err(err).Msg("registry watcher stopped")
	}
}

// Close tears the client down.
func (a *App) Close() {
	if a.unsub != nil {
		a.unsub()
	}
	a.Channel.Close()
	a.Bus.Close()
}
