package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tmorand/threddit/models"
)

// VoteRequest is the cast/change body for votes. Exactly one of PostID or
// CommentID is set depending on the endpoint.
type VoteRequest struct {
	UserID    int64           `json:"userId"`
	PostID    int64           `json:"postId,omitempty"`
	CommentID int64           `json:"commentId,omitempty"`
	VoteType  models.VoteType `json:"voteType"`
}

// VoteResult carries the server-recomputed aggregate after a vote mutation
type VoteResult struct {
	Score    int             `json:"score"`
	VoteType models.VoteType `json:"voteType,omitempty"`
}

// userVoteResponse is the vote-status body; VoteType is empty when the
// viewer has no vote recorded.
type userVoteResponse struct {
	VoteType models.VoteType `json:"voteType"`
}

// VotePost casts or changes the viewer's vote on a post
func (c *Client) VotePost(ctx context.Context, userID, postID int64, voteType models.VoteType) (VoteResult, error) {
	req := VoteRequest{UserID: userID, PostID: postID, VoteType: voteType}
	var result VoteResult
	if err := c.do(ctx, http.MethodPost, "/votes/post", req, &result); err != nil {
		return VoteResult{}, err
	}
	return result, nil
}

// VoteComment casts or changes the viewer's vote on a comment
func (c *Client) VoteComment(ctx context.Context, userID, commentID int64, voteType models.VoteType) (VoteResult, error) {
	req := VoteRequest{UserID: userID, CommentID: commentID, VoteType: voteType}
	var result VoteResult
	if err := c.do(ctx, http.MethodPost, "/votes/comment", req, &result); err != nil {
		return VoteResult{}, err
	}
	return result, nil
}

// RemovePostVote removes the viewer's vote from a post
func (c *Client) RemovePostVote(ctx context.Context, userID, postID int64) (VoteResult, error) {
	path := fmt.Sprintf("/votes/post/%d/%d", userID, postID)
	var result VoteResult
	if err := c.do(ctx, http.MethodDelete, path, nil, &result); err != nil {
		return VoteResult{}, err
	}
	return result, nil
}

// RemoveCommentVote removes the viewer's vote from a comment
func (c *Client) RemoveCommentVote(ctx context.Context, userID, commentID int64) (VoteResult, error) {
	path := fmt.Sprintf("/votes/comment/%d/%d", userID, commentID)
	var result VoteResult
	if err := c.do(ctx, http.MethodDelete, path, nil, &result); err != nil {
		return VoteResult{}, err
	}
	return result, nil
}

// PostVote fetches the viewer's recorded vote on a post. An empty VoteType
// or a 404 both mean no vote record exists.
func (c *Client) PostVote(ctx context.Context, postID, userID int64) (models.VoteType, error) {
	path := fmt.Sprintf("/votes/post/%d/user/%d", postID, userID)
	return c.userVote(ctx, path)
}

// CommentVote fetches the viewer's recorded vote on a comment
func (c *Client) CommentVote(ctx context.Context, commentID, userID int64) (models.VoteType, error) {
	path := fmt.Sprintf("/votes/comment/%d/user/%d", commentID, userID)
	return c.userVote(ctx, path)
}

func (c *Client) userVote(ctx context.Context, path string) (models.VoteType, error) {
	var resp userVoteResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return "", nil
		}
		return "", err
	}
	return resp.VoteType, nil
}
