package models

import "time"

// ComplaintComment is a discussion entry on a complaint.
type ComplaintComment struct {
	ID          string    `db:"id" json:"id"`
	ComplaintID string    `db:"complaint_id" json:"complaint_id"`
	AuthorID    string    `db:"author_id" json:"author_id"`
	Body        string    `db:"body" json:"body"`
	Internal    bool      `db:"internal" json:"internal"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CommentFilter constrains comment listing.
type CommentFilter struct {
	ComplaintID     string
	IncludeInternal bool
	Limit           int
	Offset          int
}
