package notify

import (
	"log"
	"time"

	"focusd/internal/model"
)

type EventType string

const (
	EventStarted   EventType = "started"
	EventCompleted EventType = "completed"
	EventProgress  EventType = "progress"
)

// Event describes a timer transition worth surfacing to the user.
type Event struct {
	Type             EventType         `json:"type"`
	Kind             model.SessionKind `json:"kind"`
	UserID           string            `json:"userId,omitempty"`
	RemainingSeconds int               `json:"remainingSeconds"`
	EndsAt           time.Time         `json:"endsAt,omitzero"`
}

// Notifier delivers events fire-and-forget. Implementations must not block
// and must never fail the state transition that produced the event.
type Notifier interface {
	Notify(event Event)
}

// LogNotifier writes events to a standard logger. It stands in for the
// platform alerting surface, which is owned by the client.
type LogNotifier struct {
	logger *log.Logger
}

func NewLogNotifier(logger *log.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(event Event) {
	switch event.Type {
	case EventStarted:
		n.logger.Printf("session started: user=%s kind=%s ends=%s",
			event.UserID, event.Kind, event.EndsAt.Format(time.RFC3339))
	case EventCompleted:
		n.logger.Printf("session completed: user=%s kind=%s", event.UserID, event.Kind)
	case EventProgress:
		n.logger.Printf("session progress: user=%s kind=%s remaining=%ds",
			event.UserID, event.Kind, event.RemainingSeconds)
	}
}
