// Package live holds the per-current-session buffer that merges the request
// cache's last fetch with event-driven deltas. At most one session has a
// live buffer at a time; switching sessions resets it atomically, so stale
// content from one session can never show under another session's id.
package live

import (
	"sync"

	"github.com/opencode-ai/pocketcode/pkg/types"
)

// Snapshot is the merged view of the current session handed to the detail
// screen.
type Snapshot struct {
	SessionID string
	Messages  []types.MessageWithParts
	Todos     []types.TodoInfo
	Status    types.SessionStatus
	Tokens    types.TokenTotals
	LastError *types.MessageError
	// Live reports whether the buffer has received events and is the
	// authoritative source, as opposed to echoing the seeded fetch.
	Live bool
}

// View is the live buffer for the currently open session.
type View struct {
	mu sync.Mutex

	current string
	live    bool

	messages []types.MessageWithParts
	todos    []types.TodoInfo
	status   types.SessionStatus
	lastErr  *types.MessageError

	// Pending permission requests, deduplicated by id. Kept across session
	// switches: a permission belongs to its session, not to the screen.
	permissions []types.Permission
}

// NewView creates an empty view.
func NewView() *View {
	return &View{status: types.SessionStatus{Type: types.StatusIdle}}
}

// Enter makes sessionID the current session and clears any buffer left over
// from the previous one.
func (v *View) Enter(sessionID string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.current = sessionID
	v.resetLocked()
}

// Leave clears the buffer when the detail screen for sessionID closes. A
// later revisit starts over from a fresh fetch.
func (v *View) Leave(sessionID string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.current != sessionID {
		return
	}
	v.current = ""
	v.resetLocked()
}

func (v *View) resetLocked() {
	v.live = false
	v.messages = nil
	v.todos = nil
	v.status = types.SessionStatus{Type: types.StatusIdle}
	v.lastErr = nil
}

// Current returns the current session id, or "".
func (v *View) Current() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Seed installs the request cache's fetched snapshot. It is ignored once
// events have arrived: the live buffer reflects deltas and ordering the
// one-shot fetch cannot, so from that point the fetch must not win.
func (v *View) Seed(sessionID string, messages []types.MessageWithParts, todos []types.TodoInfo, status types.SessionStatus) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.current != sessionID || v.live {
		return
	}
	v.messages = messages
	v.todos = todos
	v.status = status
}

// ApplyMessage upserts a message by id. Returns false if the event targets a
// session that is not current.
func (v *View) ApplyMessage(msg types.Message) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.current != msg.SessionID {
		return false
	}
	v.live = true

	next := make([]types.MessageWithParts, 0, len(v.messages)+1)
	replaced := false
	for _, m := range v.messages {
		if m.Info.ID == msg.ID {
			next = append(next, types.MessageWithParts{Info: msg, Parts: m.Parts})
			replaced = true
		} else {
			next = append(next, m)
		}
	}
	if !replaced {
		next = append(next, types.MessageWithParts{Info: msg})
	}
	v.messages = next
	return true
}

// RemoveMessage drops a message by id.
func (v *View) RemoveMessage(sessionID, messageID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.current != sessionID {
		return false
	}
	v.live = true

	next := make([]types.MessageWithParts, 0, len(v.messages))
	for _, m := range v.messages {
		if m.Info.ID != messageID {
			next = append(next, m)
		}
	}
	v.messages = next
	return true
}

// ApplyPart upserts a part by id within its parent message. A part whose
// parent message is not buffered yet is dropped; the part arrives again with
// the next message fetch. Applying the same part twice is idempotent.
func (v *View) ApplyPart(part types.Part) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.current != part.SessionID {
		return false
	}
	v.live = true

	for i, m := range v.messages {
		if m.Info.ID != part.MessageID {
			continue
		}
		next := make([]types.Part, 0, len(m.Parts)+1)
		replaced := false
		for _, p := range m.Parts {
			if p.ID == part.ID {
				next = append(next, part)
				replaced = true
			} else {
				next = append(next, p)
			}
		}
		if !replaced {
			next = append(next, part)
		}
		v.messages[i] = types.MessageWithParts{Info: m.Info, Parts: next}
		return true
	}
	return true
}

// ApplyTodos replaces the todo list wholesale.
func (v *View) ApplyTodos(sessionID string, todos []types.TodoInfo) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.current != sessionID {
		return false
	}
	v.live = true
	v.todos = todos
	return true
}

// ApplyStatus records the most recent status signal.
func (v *View) ApplyStatus(sessionID string, status types.SessionStatus) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.current != sessionID {
		return false
	}
	v.live = true
	v.status = status
	return true
}

// ApplyError records a session error and resets the status to idle.
func (v *View) ApplyError(sessionID string, err *types.MessageError) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.current != sessionID {
		return false
	}
	v.live = true
	v.lastErr = err
	v.status = types.SessionStatus{Type: types.StatusIdle}
	return true
}

// AddPermission queues a pending permission request, deduplicated by id.
func (v *View) AddPermission(p types.Permission) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i, existing := range v.permissions {
		if existing.ID == p.ID {
			v.permissions[i] = p
			return
		}
	}
	v.permissions = append(v.permissions, p)
}

// RemovePermission drops a pending permission request by id.
func (v *View) RemovePermission(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i, p := range v.permissions {
		if p.ID == id {
			v.permissions = append(v.permissions[:i], v.permissions[i+1:]...)
			return
		}
	}
}

// Permissions returns the pending permission queue.
func (v *View) Permissions() []types.Permission {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]types.Permission, len(v.permissions))
	copy(out, v.permissions)
	return out
}

// Snapshot returns a copy of the merged view for rendering. Token totals are
// recomputed from the current message set on every call.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	messages := make([]types.MessageWithParts, len(v.messages))
	copy(messages, v.messages)
	todos := make([]types.TodoInfo, len(v.todos))
	copy(todos, v.todos)

	return Snapshot{
		SessionID: v.current,
		Messages:  messages,
		Todos:     todos,
		Status:    v.status,
		Tokens:    types.SumTokens(messages),
		LastError: v.lastErr,
		Live:      v.live,
	}
}
