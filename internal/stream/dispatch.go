// Package stream maintains the live SSE connection to the active server and
// translates inbound events into cache and live-view updates.
package stream

import (
	"github.com/opencode-ai/pocketcode/internal/bus"
	"github.com/opencode-ai/pocketcode/internal/cache"
	"github.com/opencode-ai/pocketcode/internal/live"
	"github.com/opencode-ai/pocketcode/internal/logging"
	"github.com/opencode-ai/pocketcode/pkg/types"
)

// Dispatcher maps inbound events to cache patches and live-view updates.
// Cache writes always happen so the sessions list stays current; the live
// view filters to the current session internally.
type Dispatcher struct {
	cache *cache.Cache
	view  *live.View
	bus   *bus.Bus
}

// NewDispatcher creates a dispatcher writing into the given cache and view.
func NewDispatcher(c *cache.Cache, v *live.View, b *bus.Bus) *Dispatcher {
	return &Dispatcher{cache: c, view: v, bus: b}
}

// OnOpen runs when a connection (re)opens: session-scoped cache entries are
// invalidated so everything missed while disconnected is refetched.
func (d *Dispatcher) OnOpen(scope cache.Scope) {
	d.cache.InvalidateSessionData(scope)
}

// Apply handles one event. Events are applied strictly in delivery order by
// the channel's read loop. Unrecognized types are ignored; malformed
// payloads are logged and dropped without disturbing the connection.
func (d *Dispatcher) Apply(scope cache.Scope, ev types.Event) {
	payload, err := types.DecodeEvent(ev)
	if err != nil {
		logging.Warn().Str("type", ev.Type).Err(err).Msg("dropping malformed event")
		return
	}
	if payload == nil {
		logging.Debug().Str("type", ev.Type).Msg("ignoring unrecognized event")
		return
	}

	switch p := payload.(type) {
	case *types.ServerConnectedPayload:
		// Hello frame; the channel already marked itself open.

	case *types.SessionPayload:
		switch ev.Type {
		case types.EventSessionDeleted:
			d.cache.RemoveSession(scope, p.Info.ID)
			d.view.Leave(p.Info.ID)
		default: // session.created, session.updated
			d.cache.UpsertSession(scope, p.Info)
		}

	case *types.SessionStatusPayload:
		d.cache.PatchStatus(scope, p.SessionID, p.Status)
		d.view.ApplyStatus(p.SessionID, p.Status)

	case *types.SessionIdlePayload:
		idle := types.SessionStatus{Type: types.StatusIdle}
		d.cache.PatchStatus(scope, p.SessionID, idle)
		d.view.ApplyStatus(p.SessionID, idle)

	case *types.SessionErrorPayload:
		d.cache.PatchStatus(scope, p.SessionID, types.SessionStatus{Type: types.StatusIdle})
		d.view.ApplyError(p.SessionID, p.Error)

	case *types.MessageUpdatedPayload:
		d.cache.UpsertMessage(scope, p.Info)
		d.view.ApplyMessage(p.Info)

	case *types.MessageRemovedPayload:
		d.cache.RemoveMessage(scope, p.SessionID, p.MessageID)
		d.view.RemoveMessage(p.SessionID, p.MessageID)

	case *types.MessagePartUpdatedPayload:
		d.cache.UpsertPart(scope, p.Part)
		d.view.ApplyPart(p.Part)

	case *types.TodoUpdatedPayload:
		d.cache.ReplaceTodos(scope, p.SessionID, p.Todos)
		d.view.ApplyTodos(p.SessionID, p.Todos)

	case *types.PermissionUpdatedPayload:
		d.view.AddPermission(p.Permission)
		d.bus.Publish(bus.TopicPermission, p.ID)

	case *types.PermissionRepliedPayload:
		d.view.RemovePermission(p.PermissionID)
		d.bus.Publish(bus.TopicPermission, p.PermissionID)
	}
}
