package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tmorand/threddit/models"
)

// CommentRequest is the create body for comments. ParentCommentID is nil
// for top-level comments.
type CommentRequest struct {
	Content         string `json:"content"`
	PostID          int64  `json:"postId"`
	ParentCommentID *int64 `json:"parentCommentId,omitempty"`
	UserID          int64  `json:"userId"`
}

// CommentUpdate is the edit body for comments
type CommentUpdate struct {
	Content string `json:"content"`
}

// PostComments fetches the nested comment tree for a post. The backend
// returns a plain array of top-level comments with replies already nested,
// ordered by the sort selector.
func (c *Client) PostComments(ctx context.Context, postID int64, sort string, page, size int) ([]*models.Comment, error) {
	path := fmt.Sprintf("/comments/post/%d?sort=%s&%s", postID, url.QueryEscape(sort), pageQuery(page, size))
	var comments []*models.Comment
	if err := c.do(ctx, http.MethodGet, path, nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// CreateComment creates a comment or reply and returns the server's copy
func (c *Client) CreateComment(ctx context.Context, req CommentRequest) (*models.Comment, error) {
	var comment models.Comment
	if err := c.do(ctx, http.MethodPost, "/comments", req, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// UpdateComment edits a comment's content and returns the server's copy
func (c *Client) UpdateComment(ctx context.Context, id int64, req CommentUpdate) (*models.Comment, error) {
	var comment models.Comment
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/comments/%d", id), req, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// DeleteComment deletes a comment
func (c *Client) DeleteComment(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/comments/%d", id), nil, nil)
}
