package cache

import (
	"github.com/opencode-ai/pocketcode/pkg/types"
)

// Patch functions write event- and mutation-driven updates into the cache.
// They are upserts keyed by entity id, so interleaved writes from the two
// paths converge instead of clobbering each other. All updates build new
// slices; cached values are never mutated in place.

// UpsertSession inserts or replaces a session in the list entry and the
// per-session entry, re-sorting the list by update time.
func (c *Cache) UpsertSession(scope Scope, sess types.Session) {
	c.store.Patch(scope.key(KindSessions, ""), func(old any) any {
		sessions := old.([]types.Session)
		next := make([]types.Session, 0, len(sessions)+1)
		replaced := false
		for _, s := range sessions {
			if s.ID == sess.ID {
				next = append(next, sess)
				replaced = true
			} else {
				next = append(next, s)
			}
		}
		if !replaced {
			next = append(next, sess)
		}
		sortSessions(next)
		return next
	})
	c.store.Patch(scope.key(KindSession, sess.ID), func(any) any {
		return sess
	})
}

// RemoveSession removes a session from the list entry and drops its detail,
// message, and todo entries.
func (c *Cache) RemoveSession(scope Scope, sessionID string) {
	c.store.Patch(scope.key(KindSessions, ""), func(old any) any {
		sessions := old.([]types.Session)
		next := make([]types.Session, 0, len(sessions))
		for _, s := range sessions {
			if s.ID != sessionID {
				next = append(next, s)
			}
		}
		return next
	})
	c.store.Invalidate(scope.key(KindSession, sessionID))
	c.store.Invalidate(scope.key(KindMessages, sessionID))
	c.store.Invalidate(scope.key(KindTodos, sessionID))
}

// PatchStatus writes a session's status into the scope's status map and into
// the session's message entry. The map entry is created if the status map
// was never fetched, a status signal must never be lost.
func (c *Cache) PatchStatus(scope Scope, sessionID string, status types.SessionStatus) {
	c.store.Upsert(scope.key(KindStatus, ""), func(old any) any {
		var prev map[string]types.SessionStatus
		if old != nil {
			prev = old.(map[string]types.SessionStatus)
		}
		next := make(map[string]types.SessionStatus, len(prev)+1)
		for k, v := range prev {
			next[k] = v
		}
		next[sessionID] = status
		return next
	})
	c.store.Patch(scope.key(KindMessages, sessionID), func(old any) any {
		detail := old.(SessionDetail)
		detail.Status = status
		return detail
	})
}

// UpsertMessage inserts or replaces a message in its session's message
// entry, preserving already-streamed parts on replace, and recomputes the
// token totals.
func (c *Cache) UpsertMessage(scope Scope, msg types.Message) {
	c.store.Patch(scope.key(KindMessages, msg.SessionID), func(old any) any {
		detail := old.(SessionDetail)
		next := make([]types.MessageWithParts, 0, len(detail.Messages)+1)
		replaced := false
		for _, m := range detail.Messages {
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
		detail.Messages = next
		detail.Tokens = types.SumTokens(next)
		return detail
	})
}

// RemoveMessage drops a message from its session's entry and recomputes the
// token totals.
func (c *Cache) RemoveMessage(scope Scope, sessionID, messageID string) {
	c.store.Patch(scope.key(KindMessages, sessionID), func(old any) any {
		detail := old.(SessionDetail)
		next := make([]types.MessageWithParts, 0, len(detail.Messages))
		for _, m := range detail.Messages {
			if m.Info.ID != messageID {
				next = append(next, m)
			}
		}
		detail.Messages = next
		detail.Tokens = types.SumTokens(next)
		return detail
	})
}

// UpsertPart inserts or replaces a part in its parent message's part list.
// If the parent message is not cached yet the update is dropped; the next
// message fetch includes the part anyway.
func (c *Cache) UpsertPart(scope Scope, part types.Part) {
	c.store.Patch(scope.key(KindMessages, part.SessionID), func(old any) any {
		detail := old.(SessionDetail)
		next := make([]types.MessageWithParts, len(detail.Messages))
		copy(next, detail.Messages)
		for i, m := range next {
			if m.Info.ID != part.MessageID {
				continue
			}
			next[i] = types.MessageWithParts{Info: m.Info, Parts: upsertPart(m.Parts, part)}
			break
		}
		detail.Messages = next
		return detail
	})
}

func upsertPart(parts []types.Part, part types.Part) []types.Part {
	next := make([]types.Part, 0, len(parts)+1)
	replaced := false
	for _, p := range parts {
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
	return next
}

// ReplaceTodos replaces a session's todo list wholesale.
func (c *Cache) ReplaceTodos(scope Scope, sessionID string, todos []types.TodoInfo) {
	c.store.Upsert(scope.key(KindTodos, sessionID), func(any) any {
		return todos
	})
}

// InvalidateSessionData drops the session-scoped entries for a scope so the
// next reads refetch. Used as catch-up when the event channel (re)opens:
// anything that changed while disconnected is refetched, catalogs are left
// alone.
func (c *Cache) InvalidateSessionData(scope Scope) {
	c.store.InvalidateKinds(scope.Server, scope.Project,
		KindSessions, KindSession, KindMessages, KindTodos, KindStatus)
}
