package model

import (
	"time"
)

// DownloadTask represents a single admitted download request. It is owned
// by the orchestrator for its whole lifetime and is never persisted. The
// working directory and everything in it belong to the task and are
// removed on every terminal transition.
type DownloadTask struct {
	ID        string
	UserID    int64
	ChatID    int64
	URL       string // normalized by the classifier
	Platform  string
	State     TaskState
	WorkDir   string
	Files     []MediaFile // fetch results, set on success
	LastError string

	EnqueuedAt time.Time
	StartedAt  time.Time
	FinishedAt time.Time

	// Done is closed when the task reaches a terminal state.
	Done chan struct{}
}
