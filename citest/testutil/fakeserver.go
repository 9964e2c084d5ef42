// Package testutil provides a fake agent server for client tests. It serves
// the REST surface the client consumes and an SSE endpoint that streams
// events pushed through Emit, so tests can script server behavior without a
// real agent backend.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"

	"github.com/opencode-ai/pocketcode/pkg/types"
)

// FakeServer is an in-memory agent server.
type FakeServer struct {
	srv *httptest.Server

	mu       sync.Mutex
	version  string
	projects []types.Project
	sessions map[string]types.Session
	messages map[string][]types.MessageWithParts
	todos    map[string][]types.TodoInfo
	status   map[string]types.SessionStatus

	providers types.ProviderList
	agents    []types.Agent

	prompts []PromptRecord
	replies []PermissionRecord

	subscribers map[chan string]struct{}
	nextID      int
}

// PromptRecord captures one prompt submission.
type PromptRecord struct {
	SessionID string
	Body      json.RawMessage
}

// PermissionRecord captures one permission response.
type PermissionRecord struct {
	SessionID    string
	PermissionID string
	Response     string
}

// StartFakeServer starts a fake server with one project.
func StartFakeServer() *FakeServer {
	f := &FakeServer{
		version:     "0.9.0-test",
		projects:    []types.Project{{ID: "proj-1", Worktree: "/tmp/work"}},
		sessions:    map[string]types.Session{},
		messages:    map[string][]types.MessageWithParts{},
		todos:       map[string][]types.TodoInfo{},
		status:      map[string]types.SessionStatus{},
		subscribers: map[chan string]struct{}{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /global/health", f.handleHealth)
	mux.HandleFunc("GET /project", f.handleProjects)
	mux.HandleFunc("GET /session", f.handleSessions)
	mux.HandleFunc("POST /session", f.handleCreateSession)
	mux.HandleFunc("GET /session/status", f.handleStatus)
	mux.HandleFunc("GET /session/{id}", f.handleSession)
	mux.HandleFunc("PATCH /session/{id}", f.handleUpdateSession)
	mux.HandleFunc("DELETE /session/{id}", f.handleDeleteSession)
	mux.HandleFunc("GET /session/{id}/message", f.handleMessages)
	mux.HandleFunc("POST /session/{id}/message", f.handlePrompt)
	mux.HandleFunc("GET /session/{id}/todo", f.handleTodos)
	mux.HandleFunc("POST /session/{id}/abort", f.handleAbort)
	mux.HandleFunc("POST /session/{id}/permissions/{permissionID}", f.handlePermission)
	mux.HandleFunc("GET /config/providers", f.handleProviders)
	mux.HandleFunc("GET /agent", f.handleAgents)
	mux.HandleFunc("GET /event", f.handleEvents)

	f.srv = httptest.NewServer(mux)
	return f
}

// URL returns the server's base URL.
func (f *FakeServer) URL() string { return f.srv.URL }

// Close shuts the server down and disconnects all event subscribers.
func (f *FakeServer) Close() {
	f.mu.Lock()
	for ch := range f.subscribers {
		close(ch)
	}
	f.subscribers = map[chan string]struct{}{}
	f.mu.Unlock()
	f.srv.Close()
}

// Project returns the worktree path of the server's first project.
func (f *FakeServer) Project() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.projects[0].Worktree
}

// AddSession seeds a session.
func (f *FakeServer) AddSession(s types.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = s
}

// SetMessages seeds a session's message list.
func (f *FakeServer) SetMessages(sessionID string, msgs []types.MessageWithParts) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[sessionID] = msgs
}

// SetTodos seeds a session's todo list.
func (f *FakeServer) SetTodos(sessionID string, todos []types.TodoInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.todos[sessionID] = todos
}

// SetStatus seeds a session's status.
func (f *FakeServer) SetStatus(sessionID string, st types.SessionStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[sessionID] = st
}

// SetProviders seeds the provider catalog.
func (f *FakeServer) SetProviders(list types.ProviderList) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.providers = list
}

// SetAgents seeds the agent list.
func (f *FakeServer) SetAgents(agents []types.Agent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.agents = agents
}

// Prompts returns the prompt submissions received so far.
func (f *FakeServer) Prompts() []PromptRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]PromptRecord, len(f.prompts))
	copy(out, f.prompts)
	return out
}

// PermissionReplies returns the permission responses received so far.
func (f *FakeServer) PermissionReplies() []PermissionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]PermissionRecord, len(f.replies))
	copy(out, f.replies)
	return out
}

// SubscriberCount reports how many event streams are open.
func (f *FakeServer) SubscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}

// Emit sends an event to every open event stream. Properties is marshaled as
// the event's properties object.
func (f *FakeServer) Emit(eventType string, properties any) {
	data, err := json.Marshal(properties)
	if err != nil {
		panic(fmt.Sprintf("testutil: marshal event properties: %v", err))
	}
	frame, err := json.Marshal(types.Event{Type: eventType, Properties: data})
	if err != nil {
		panic(fmt.Sprintf("testutil: marshal event: %v", err))
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- string(frame):
		default:
		}
	}
}

// EmitRaw sends a raw data payload, useful for malformed-frame tests.
func (f *FakeServer) EmitRaw(data string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- data:
		default:
		}
	}
}

// DropStreams closes all open event streams without stopping the server, so
// tests can exercise the client's reconnect path.
func (f *FakeServer) DropStreams() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		close(ch)
	}
	f.subscribers = map[chan string]struct{}{}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

func (f *FakeServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	version := f.version
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"version": version})
}

func (f *FakeServer) handleProjects(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	projects := append([]types.Project(nil), f.projects...)
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, projects)
}

func (f *FakeServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	out := make([]types.Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, s)
	}
	f.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (f *FakeServer) handleSession(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	s, ok := f.sessions[r.PathValue("id")]
	f.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (f *FakeServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.nextID++
	s := types.Session{
		ID:    fmt.Sprintf("ses_%03d", f.nextID),
		Title: body.Title,
		Time:  types.SessionTime{Created: int64(f.nextID), Updated: int64(f.nextID)},
	}
	f.sessions[s.ID] = s
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, s)
}

func (f *FakeServer) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	s, ok := f.sessions[r.PathValue("id")]
	if ok {
		s.Title = body.Title
		f.sessions[s.ID] = s
	}
	f.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (f *FakeServer) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	delete(f.sessions, r.PathValue("id"))
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (f *FakeServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	out := make(map[string]types.SessionStatus, len(f.status))
	for k, v := range f.status {
		out[k] = v
	}
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (f *FakeServer) handleMessages(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	msgs := append([]types.MessageWithParts(nil), f.messages[r.PathValue("id")]...)
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, msgs)
}

func (f *FakeServer) handlePrompt(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.prompts = append(f.prompts, PromptRecord{SessionID: r.PathValue("id"), Body: body})
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{"accepted": true})
}

func (f *FakeServer) handleTodos(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	todos := append([]types.TodoInfo(nil), f.todos[r.PathValue("id")]...)
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, todos)
}

func (f *FakeServer) handleAbort(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"aborted": true})
}

func (f *FakeServer) handlePermission(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Response string `json:"response"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.replies = append(f.replies, PermissionRecord{
		SessionID:    r.PathValue("id"),
		PermissionID: r.PathValue("permissionID"),
		Response:     body.Response,
	})
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (f *FakeServer) handleProviders(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	list := f.providers
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, list)
}

func (f *FakeServer) handleAgents(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	agents := append([]types.Agent(nil), f.agents...)
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, agents)
}

func (f *FakeServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch := make(chan string, 100)
	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		if _, live := f.subscribers[ch]; live {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, open := <-ch:
			if !open {
				return
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", frame)
			flusher.Flush()
		}
	}
}
