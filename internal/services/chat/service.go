package chat

import (
	"context"
)

// Service defines the interface for comment-driven chat operations
type Service interface {
	// HandleCommentPosted turns a newly posted comment into a continuation
	// of the item's assistant conversation, posting the reply as a comment
	HandleCommentPosted(ctx context.Context, commentID string) error
}
