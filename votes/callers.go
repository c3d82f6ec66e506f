package votes

import (
	"context"

	"github.com/tmorand/threddit/api"
	"github.com/tmorand/threddit/models"
)

// PostCaller routes vote calls to the post vote endpoints
type PostCaller struct {
	Client *api.Client
}

func (p PostCaller) Fetch(ctx context.Context, entityID, userID int64) (models.VoteType, error) {
	return p.Client.PostVote(ctx, entityID, userID)
}

func (p PostCaller) Cast(ctx context.Context, userID, entityID int64, voteType models.VoteType) (api.VoteResult, error) {
	return p.Client.VotePost(ctx, userID, entityID, voteType)
}

func (p PostCaller) Remove(ctx context.Context, userID, entityID int64) (api.VoteResult, error) {
	return p.Client.RemovePostVote(ctx, userID, entityID)
}

// CommentCaller routes vote calls to the comment vote endpoints
type CommentCaller struct {
	Client *api.Client
}

func (c CommentCaller) Fetch(ctx context.Context, entityID, userID int64) (models.VoteType, error) {
	return c.Client.CommentVote(ctx, entityID, userID)
}

func (c CommentCaller) Cast(ctx context.Context, userID, entityID int64, voteType models.VoteType) (api.VoteResult, error) {
	return c.Client.VoteComment(ctx, userID, entityID, voteType)
}

func (c CommentCaller) Remove(ctx context.Context, userID, entityID int64) (api.VoteResult, error) {
	return c.Client.RemoveCommentVote(ctx, userID, entityID)
}
