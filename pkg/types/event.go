package types

import "encoding/json"

// Event is the envelope delivered on the SSE stream:
// {"type": "...", "properties": {...}}.
type Event struct {
	Type       string          `json:"type"`
	Properties json.RawMessage `json:"properties"`
}

// Event type values delivered by the server.
const (
	EventServerConnected    = "server.connected"
	EventSessionCreated     = "session.created"
	EventSessionUpdated     = "session.updated"
	EventSessionDeleted     = "session.deleted"
	EventSessionStatus      = "session.status"
	EventSessionIdle        = "session.idle"
	EventSessionError       = "session.error"
	EventMessageUpdated     = "message.updated"
	EventMessageRemoved     = "message.removed"
	EventMessagePartUpdated = "message.part.updated"
	EventTodoUpdated        = "todo.updated"
	EventPermissionUpdated  = "permission.updated"
	EventPermissionReplied  = "permission.replied"
)

// EventPayload is the tagged union of decoded event payloads. Exactly the
// types below implement it.
type EventPayload interface {
	isEventPayload()
}

// ServerConnectedPayload is the hello frame sent when the stream opens.
type ServerConnectedPayload struct{}

// SessionPayload carries a full session object, used by the session
// created/updated/deleted events.
type SessionPayload struct {
	Info Session `json:"info"`
}

// SessionStatusPayload carries a status change for a session.
type SessionStatusPayload struct {
	SessionID string        `json:"sessionID"`
	Status    SessionStatus `json:"status"`
}

// SessionIdlePayload signals that a session finished processing.
type SessionIdlePayload struct {
	SessionID string `json:"sessionID"`
}

// SessionErrorPayload carries a processing error for a session.
type SessionErrorPayload struct {
	SessionID string        `json:"sessionID"`
	Error     *MessageError `json:"error,omitempty"`
}

// MessageUpdatedPayload carries a full message object.
type MessageUpdatedPayload struct {
	Info Message `json:"info"`
}

// MessageRemovedPayload identifies a deleted message.
type MessageRemovedPayload struct {
	SessionID string `json:"sessionID"`
	MessageID string `json:"messageID"`
}

// MessagePartUpdatedPayload carries a streamed part update.
type MessagePartUpdatedPayload struct {
	Part Part `json:"part"`
}

// TodoUpdatedPayload replaces a session's todo list wholesale.
type TodoUpdatedPayload struct {
	SessionID string     `json:"sessionID"`
	Todos     []TodoInfo `json:"todos"`
}

// PermissionUpdatedPayload is a new or updated permission request.
type PermissionUpdatedPayload struct {
	Permission
}

// PermissionRepliedPayload signals that a permission request was answered.
type PermissionRepliedPayload struct {
	PermissionID string `json:"permissionID"`
	SessionID    string `json:"sessionID"`
	Response     string `json:"response,omitempty"` // "once" | "always" | "reject"
}

func (ServerConnectedPayload) isEventPayload()    {}
func (SessionPayload) isEventPayload()            {}
func (SessionStatusPayload) isEventPayload()      {}
func (SessionIdlePayload) isEventPayload()        {}
func (SessionErrorPayload) isEventPayload()       {}
func (MessageUpdatedPayload) isEventPayload()     {}
func (MessageRemovedPayload) isEventPayload()     {}
func (MessagePartUpdatedPayload) isEventPayload() {}
func (TodoUpdatedPayload) isEventPayload()        {}
func (PermissionUpdatedPayload) isEventPayload()  {}
func (PermissionRepliedPayload) isEventPayload()  {}

// DecodeEvent decodes the envelope's properties into the payload type for its
// tag. Unrecognized event types return (nil, nil) so callers can skip them
// without treating them as failures.
func DecodeEvent(ev Event) (EventPayload, error) {
	decode := func(v EventPayload) (EventPayload, error) {
		if len(ev.Properties) == 0 {
			return v, nil
		}
		if err := json.Unmarshal(ev.Properties, v); err != nil {
			return nil, err
		}
		return v, nil
	}

	switch ev.Type {
	case EventServerConnected:
		return &ServerConnectedPayload{}, nil
	case EventSessionCreated, EventSessionUpdated, EventSessionDeleted:
		return decode(&SessionPayload{})
	case EventSessionStatus:
		return decode(&SessionStatusPayload{})
	case EventSessionIdle:
		return decode(&SessionIdlePayload{})
	case EventSessionError:
		return decode(&SessionErrorPayload{})
	case EventMessageUpdated:
		return decode(&MessageUpdatedPayload{})
	case EventMessageRemoved:
		return decode(&MessageRemovedPayload{})
	case EventMessagePartUpdated:
		return decode(&MessagePartUpdatedPayload{})
	case EventTodoUpdated:
		return decode(&TodoUpdatedPayload{})
	case EventPermissionUpdated:
		return decode(&PermissionUpdatedPayload{})
	case EventPermissionReplied:
		return decode(&PermissionRepliedPayload{})
	default:
		return nil, nil
	}
}
