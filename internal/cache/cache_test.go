package cache

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/pocketcode/internal/transport"
	"github.com/opencode-ai/pocketcode/pkg/types"
)

func newTestCache(t *testing.T, handler http.Handler) (*Cache, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(NewStore(nil), transport.NewCache(), func() (string, string) {
		return srv.URL, "/work"
	})
	return c, srv
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestSessionsFiltersChildrenAndSortsNewestFirst(t *testing.T) {
	parent := "ses_root"
	mux := http.NewServeMux()
	mux.HandleFunc("GET /session", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []types.Session{
			{ID: "ses_old", Time: types.SessionTime{Updated: 100}},
			{ID: "ses_child", ParentID: &parent, Time: types.SessionTime{Updated: 300}},
			{ID: "ses_new", Time: types.SessionTime{Updated: 200}},
		})
	})

	c, _ := newTestCache(t, mux)

	sessions, err := c.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "ses_new", sessions[0].ID)
	assert.Equal(t, "ses_old", sessions[1].ID)
}

func TestUpsertSessionConvergesWithoutRefetch(t *testing.T) {
	var requests int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /session", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		writeJSON(w, []types.Session{
			{ID: "ses_a", Title: "alpha", Time: types.SessionTime{Updated: 100}},
		})
	})

	c, _ := newTestCache(t, mux)
	ctx := context.Background()

	_, err := c.Sessions(ctx)
	require.NoError(t, err)

	scope := c.ActiveScope()
	c.UpsertSession(scope, types.Session{ID: "ses_b", Title: "beta", Time: types.SessionTime{Updated: 200}})
	c.UpsertSession(scope, types.Session{ID: "ses_a", Title: "renamed", Time: types.SessionTime{Updated: 300}})

	sessions, err := c.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "ses_a", sessions[0].ID)
	assert.Equal(t, "renamed", sessions[0].Title)
	assert.Equal(t, "ses_b", sessions[1].ID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestDetailComputesAssistantTokenTotals(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /session/ses_a/message", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []types.MessageWithParts{
			{Info: types.Message{ID: "m1", Role: "assistant", Tokens: &types.TokenUsage{Input: 10, Output: 5}}},
			{Info: types.Message{ID: "m2", Role: "user", Tokens: &types.TokenUsage{Input: 999, Output: 999}}},
			{Info: types.Message{ID: "m3", Role: "assistant", Tokens: &types.TokenUsage{Input: 20, Output: 15}}},
		})
	})

	c, _ := newTestCache(t, mux)

	detail, err := c.Detail(context.Background(), "ses_a")
	require.NoError(t, err)
	assert.Equal(t, 30, detail.Tokens.Input)
	assert.Equal(t, 20, detail.Tokens.Output)
	assert.Equal(t, 50, detail.Tokens.Total)
	assert.Equal(t, types.StatusIdle, detail.Status.Type)
}

func TestPatchStatusNeverLosesSignal(t *testing.T) {
	var statusRequests int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /session/status", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&statusRequests, 1)
		writeJSON(w, map[string]types.SessionStatus{})
	})

	c, _ := newTestCache(t, mux)
	ctx := context.Background()

	// The status map was never fetched; the patch must still land.
	c.PatchStatus(c.ActiveScope(), "ses_a", types.SessionStatus{Type: types.StatusBusy})

	status, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.StatusBusy, status["ses_a"].Type)
	assert.Equal(t, int32(0), atomic.LoadInt32(&statusRequests))
}

func TestStatusOrderIndependence(t *testing.T) {
	c, _ := newTestCache(t, http.NewServeMux())
	scope := c.ActiveScope()

	// Later signal wins regardless of what came before.
	c.PatchStatus(scope, "ses_a", types.SessionStatus{Type: types.StatusBusy})
	c.PatchStatus(scope, "ses_a", types.SessionStatus{Type: types.StatusRetry})
	c.PatchStatus(scope, "ses_a", types.SessionStatus{Type: types.StatusIdle})

	v, ok := c.Store().Peek(scope.key(KindStatus, ""))
	require.True(t, ok)
	assert.Equal(t, types.StatusIdle, v.(map[string]types.SessionStatus)["ses_a"].Type)
}

func TestUpsertPartDropsOrphans(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /session/ses_a/message", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []types.MessageWithParts{
			{Info: types.Message{ID: "m1", SessionID: "ses_a", Role: "assistant"}},
		})
	})

	c, _ := newTestCache(t, mux)
	ctx := context.Background()
	scope := c.ActiveScope()

	_, err := c.Detail(ctx, "ses_a")
	require.NoError(t, err)

	c.UpsertPart(scope, types.Part{ID: "p1", MessageID: "m_unknown", SessionID: "ses_a", Type: types.PartText, Text: "orphan"})
	detail, err := c.Detail(ctx, "ses_a")
	require.NoError(t, err)
	assert.Empty(t, detail.Messages[0].Parts)

	c.UpsertPart(scope, types.Part{ID: "p1", MessageID: "m1", SessionID: "ses_a", Type: types.PartText, Text: "hello"})
	c.UpsertPart(scope, types.Part{ID: "p1", MessageID: "m1", SessionID: "ses_a", Type: types.PartText, Text: "hello world"})

	detail, err = c.Detail(ctx, "ses_a")
	require.NoError(t, err)
	require.Len(t, detail.Messages[0].Parts, 1)
	assert.Equal(t, "hello world", detail.Messages[0].Parts[0].Text)
}

func TestDeleteSessionFailureLeavesCacheUntouched(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /session", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []types.Session{{ID: "ses_a", Time: types.SessionTime{Updated: 100}}})
	})
	mux.HandleFunc("DELETE /session/ses_a", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(w, map[string]any{"error": map[string]string{"code": "boom", "message": "nope"}})
	})

	c, _ := newTestCache(t, mux)
	ctx := context.Background()

	_, err := c.Sessions(ctx)
	require.NoError(t, err)

	err = c.DeleteSession(ctx, "ses_a")
	require.Error(t, err)

	sessions, err := c.Sessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestRenameSessionPatchesAfterConfirmation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /session", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []types.Session{{ID: "ses_a", Title: "alpha", Time: types.SessionTime{Updated: 100}}})
	})
	mux.HandleFunc("PATCH /session/ses_a", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Title string `json:"title"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, types.Session{ID: "ses_a", Title: body.Title, Time: types.SessionTime{Updated: 200}})
	})

	c, _ := newTestCache(t, mux)
	ctx := context.Background()

	_, err := c.Sessions(ctx)
	require.NoError(t, err)

	require.NoError(t, c.RenameSession(ctx, "ses_a", "beta"))

	sessions, err := c.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "beta", sessions[0].Title)
}
