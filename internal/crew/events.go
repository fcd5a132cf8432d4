package crew

import "time"

// EventType identifies a crew progress event.
type EventType string

const (
	EventTaskStarted   EventType = "task_started"
	EventToolUsed      EventType = "tool_used"
	EventTaskCompleted EventType = "task_completed"
	EventTaskFailed    EventType = "task_failed"
)

// Event is emitted while a crew runs.
type Event struct {
	Type      EventType
	TaskIndex int // 0-based
	TaskCount int
	Agent     string
	Tool      string // set for EventToolUsed
	Output    string // set for EventTaskCompleted
	Err       error  // set for EventTaskFailed
	Time      time.Time
}

// Listener receives crew events. It is called synchronously from the
// goroutine running the task and must not block.
type Listener func(Event)
