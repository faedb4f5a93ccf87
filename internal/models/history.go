package models

import "time"

// HistoryAction tags the kind of mutation recorded in a history entry.
type HistoryAction string

const (
	HistoryActionStatusChanged HistoryAction = "STATUS_CHANGED"
	HistoryActionAssigned      HistoryAction = "ASSIGNED"
	HistoryActionUnassigned    HistoryAction = "UNASSIGNED"
	HistoryActionUpdated       HistoryAction = "UPDATED"
	HistoryActionDeleted       HistoryAction = "DELETED"
)

// ComplaintHistory is an append-only audit record of a complaint mutation.
// Entries are created once and never updated or deleted.
type ComplaintHistory struct {
	ID          string        `db:"id" json:"id"`
	ComplaintID string        `db:"complaint_id" json:"complaint_id"`
	Action      HistoryAction `db:"action" json:"action"`
	Description string        `db:"description" json:"description"`
	ActorID     *string       `db:"actor_id" json:"actor_id,omitempty"`
	Metadata    []byte        `db:"metadata" json:"metadata,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

// HistoryFilter constrains timeline queries.
type HistoryFilter struct {
	ComplaintID string
	Action      HistoryAction
	Limit       int
	Offset      int
}
