package domain

import "time"

type Action string

const (
	ActionAssign Action = "assign"
	ActionReturn Action = "return"
)

func (a Action) Valid() bool {
	return a == ActionAssign || a == ActionReturn
}

// LogDetails is the request payload that caused a transition.
type LogDetails struct {
	ItemID    int64  `json:"item_id"`
	ActorID   *int64 `json:"actor_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Condition string `json:"condition,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// LogEntry is immutable once stored. ID is assigned by the log store.
type LogEntry struct {
	ID        int64
	Timestamp time.Time
	Action    Action
	Details   LogDetails
}
