package model

// TaskState represents the lifecycle state of a download task
type TaskState string

const (
	// TaskStateQueued means the task is admitted but not yet running
	TaskStateQueued TaskState = "Queued"

	// TaskStateRunning means the fetch is in progress
	TaskStateRunning TaskState = "Running"

	// TaskStateSucceeded means the task delivered its media
	TaskStateSucceeded TaskState = "Succeeded"

	// TaskStateFailed means the task ended with an error
	TaskStateFailed TaskState = "Failed"
)

// String returns the string representation of TaskState
func (ts TaskState) String() string {
	return string(ts)
}

// IsTerminal returns true if the task has finished, successfully or not
func (ts TaskState) IsTerminal() bool {
	return ts == TaskStateSucceeded || ts == TaskStateFailed
}
