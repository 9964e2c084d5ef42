// Package types provides the wire types shared between the client packages.
package types

// Session represents a conversation on the remote agent server.
type Session struct {
	ID       string          `json:"id"`
	ParentID *string         `json:"parentID,omitempty"`
	Title    string          `json:"title"`
	Version  string          `json:"version,omitempty"`
	Time     SessionTime     `json:"time"`
	Share    *SessionShare   `json:"share,omitempty"`
	Summary  *SessionSummary `json:"summary,omitempty"`
}

// IsRoot reports whether the session is a top-level session. Child ("task")
// sessions are filtered out of the main list view.
func (s *Session) IsRoot() bool {
	return s.ParentID == nil
}

// SessionTime contains creation and last-update timestamps in unix millis.
type SessionTime struct {
	Created int64 `json:"created"`
	Updated int64 `json:"updated"`
}

// SessionShare contains sharing information for a session.
type SessionShare struct {
	URL string `json:"url"`
}

// SessionSummary contains aggregate code-change statistics for a session.
type SessionSummary struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
}

// SessionStatus describes what a session is currently doing.
type SessionStatus struct {
	Type string `json:"type"` // "idle" | "busy" | "retry"
}

// Status type values.
const (
	StatusIdle  = "idle"
	StatusBusy  = "busy"
	StatusRetry = "retry"
)

// TodoInfo is a single todo item. The server replaces the list wholesale on
// every todo update, items are never merged individually.
type TodoInfo struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Status  string `json:"status"` // "pending" | "in_progress" | "completed"
}

// Permission is a pending permission request pushed by the server.
type Permission struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionID"`
	Type      string         `json:"type"` // "bash" | "edit" | "external_directory"
	Title     string         `json:"title"`
	Pattern   []string       `json:"pattern,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Project is a directory the server can run sessions in.
type Project struct {
	ID       string `json:"id"`
	Worktree string `json:"worktree"`
}
