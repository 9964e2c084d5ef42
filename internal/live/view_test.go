package live

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/pocketcode/pkg/types"
)

func TestSeedPopulatesCurrentSession(t *testing.T) {
	v := NewView()
	v.Enter("ses_a")

	v.Seed("ses_a",
		[]types.MessageWithParts{{Info: types.Message{ID: "m1", SessionID: "ses_a"}}},
		[]types.TodoInfo{{ID: "t1", Content: "one"}},
		types.SessionStatus{Type: types.StatusBusy},
	)

	snap := v.Snapshot()
	assert.Equal(t, "ses_a", snap.SessionID)
	assert.Len(t, snap.Messages, 1)
	assert.Len(t, snap.Todos, 1)
	assert.Equal(t, types.StatusBusy, snap.Status.Type)
	assert.False(t, snap.Live)
}

func TestSeedIgnoredForOtherSessions(t *testing.T) {
	v := NewView()
	v.Enter("ses_a")

	v.Seed("ses_b", []types.MessageWithParts{{Info: types.Message{ID: "m1"}}}, nil, types.SessionStatus{})

	assert.Empty(t, v.Snapshot().Messages)
}

func TestSeedIgnoredOnceLive(t *testing.T) {
	v := NewView()
	v.Enter("ses_a")

	v.ApplyMessage(types.Message{ID: "m1", SessionID: "ses_a", Role: "assistant"})
	require.True(t, v.Snapshot().Live)

	// A slow fetch completing after events arrived must not clobber the
	// event-built buffer.
	v.Seed("ses_a", nil, nil, types.SessionStatus{Type: types.StatusIdle})

	assert.Len(t, v.Snapshot().Messages, 1)
}

func TestSwitchingSessionsResetsBuffer(t *testing.T) {
	v := NewView()
	v.Enter("ses_a")
	v.ApplyMessage(types.Message{ID: "m1", SessionID: "ses_a", Role: "assistant"})
	v.ApplyTodos("ses_a", []types.TodoInfo{{ID: "t1"}})

	v.Enter("ses_b")

	snap := v.Snapshot()
	assert.Equal(t, "ses_b", snap.SessionID)
	assert.Empty(t, snap.Messages)
	assert.Empty(t, snap.Todos)
	assert.False(t, snap.Live)
	assert.Equal(t, types.StatusIdle, snap.Status.Type)
}

func TestEventsForOtherSessionsAreDropped(t *testing.T) {
	v := NewView()
	v.Enter("ses_a")

	assert.False(t, v.ApplyMessage(types.Message{ID: "m1", SessionID: "ses_b", Role: "assistant"}))
	assert.False(t, v.ApplyTodos("ses_b", []types.TodoInfo{{ID: "t1"}}))
	assert.False(t, v.ApplyStatus("ses_b", types.SessionStatus{Type: types.StatusBusy}))

	snap := v.Snapshot()
	assert.Empty(t, snap.Messages)
	assert.Empty(t, snap.Todos)
	assert.False(t, snap.Live)
}

func TestApplyPartUpsertsWithinParent(t *testing.T) {
	v := NewView()
	v.Enter("ses_a")
	v.ApplyMessage(types.Message{ID: "m1", SessionID: "ses_a", Role: "assistant"})

	part := types.Part{ID: "p1", MessageID: "m1", SessionID: "ses_a", Type: types.PartText, Text: "hel"}
	v.ApplyPart(part)
	part.Text = "hello"
	v.ApplyPart(part)

	snap := v.Snapshot()
	require.Len(t, snap.Messages, 1)
	require.Len(t, snap.Messages[0].Parts, 1)
	assert.Equal(t, "hello", snap.Messages[0].Parts[0].Text)
}

func TestOrphanPartIsDropped(t *testing.T) {
	v := NewView()
	v.Enter("ses_a")

	v.ApplyPart(types.Part{ID: "p1", MessageID: "m_missing", SessionID: "ses_a", Type: types.PartText, Text: "x"})

	assert.Empty(t, v.Snapshot().Messages)
}

func TestApplyErrorSettlesToIdle(t *testing.T) {
	v := NewView()
	v.Enter("ses_a")
	v.ApplyStatus("ses_a", types.SessionStatus{Type: types.StatusBusy})

	v.ApplyError("ses_a", &types.MessageError{Name: "ProviderError", Data: types.MessageErrorData{Message: "boom"}})

	snap := v.Snapshot()
	assert.Equal(t, types.StatusIdle, snap.Status.Type)
	require.NotNil(t, snap.LastError)
	assert.Equal(t, "boom", snap.LastError.Data.Message)
}

func TestPermissionsSurviveSessionSwitch(t *testing.T) {
	v := NewView()
	v.Enter("ses_a")
	v.AddPermission(types.Permission{ID: "perm_1", SessionID: "ses_a"})

	v.Enter("ses_b")

	require.Len(t, v.Permissions(), 1)
	assert.Equal(t, "perm_1", v.Permissions()[0].ID)
}

func TestAddPermissionDeduplicatesByID(t *testing.T) {
	v := NewView()
	v.AddPermission(types.Permission{ID: "perm_1", Title: "first"})
	v.AddPermission(types.Permission{ID: "perm_1", Title: "updated"})
	v.AddPermission(types.Permission{ID: "perm_2", Title: "second"})

	perms := v.Permissions()
	require.Len(t, perms, 2)
	assert.Equal(t, "updated", perms[0].Title)

	v.RemovePermission("perm_1")
	perms = v.Permissions()
	require.Len(t, perms, 1)
	assert.Equal(t, "perm_2", perms[0].ID)
}

func TestSnapshotRecomputesTokenTotals(t *testing.T) {
	v := NewView()
	v.Enter("ses_a")

	v.ApplyMessage(types.Message{
		ID: "m1", SessionID: "ses_a", Role: "assistant",
		Tokens: &types.TokenUsage{Input: 10, Output: 5},
	})
	v.ApplyMessage(types.Message{
		ID: "m2", SessionID: "ses_a", Role: "assistant",
		Tokens: &types.TokenUsage{Input: 20, Output: 15},
	})

	totals := v.Snapshot().Tokens
	assert.Equal(t, 30, totals.Input)
	assert.Equal(t, 20, totals.Output)
	assert.Equal(t, 50, totals.Total)
}
