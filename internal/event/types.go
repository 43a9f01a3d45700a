package event

import "time"

// ConnectivityChangedData is the data for connectivity.changed events.
type ConnectivityChangedData struct {
	Online bool `json:"online"`
}

// SyncStateData is the data for sync.state events.
type SyncStateData struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ReplayFailedData is the data for replay.failed events.
type ReplayFailedData struct {
	RequestID string `json:"requestID"`
	Type      string `json:"type"`
	Error     string `json:"error"`
}

// RequestQueuedData is the data for request.queued events.
type RequestQueuedData struct {
	RequestID string `json:"requestID"`
	Type      string `json:"type"`
}

// QueueClearedData is the data for queue.cleared events.
type QueueClearedData struct {
	Count int `json:"count"`
}

// ProjectData is the data for project.saved, project.deleted and project.opened events.
type ProjectData struct {
	ProjectID string `json:"projectID"`
	Name      string `json:"name,omitempty"`
}

// Level is the severity of a Notification.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Notification is a message meant for the user.
type Notification struct {
	Level   Level     `json:"level"`
	Source  string    `json:"source,omitempty"`
	Message string    `json:"message"`
	Error   string    `json:"error,omitempty"`
	Time    time.Time `json:"time"`
}
