package dto

// CreateCommentRequest payload for adding a complaint comment.
type CreateCommentRequest struct {
	Body     string `json:"body" binding:"required"`
	Internal bool   `json:"internal"`
}
