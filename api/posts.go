package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tmorand/threddit/models"
)

// PostRequest is the create/update body for posts. Exactly one of Content,
// URL, or ImageURL should be set, matching Type.
type PostRequest struct {
	Title       string          `json:"title"`
	Content     string          `json:"content,omitempty"`
	URL         string          `json:"url,omitempty"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Type        models.PostType `json:"type"`
	UserID      int64           `json:"userId"`
	CommunityID int64           `json:"communityId"`
}

// HotPosts fetches the hot listing
func (c *Client) HotPosts(ctx context.Context, page, size int) (models.Page[models.Post], error) {
	return getPage[models.Post](ctx, c, "/posts/hot?"+pageQuery(page, size))
}

// TopPosts fetches the top listing
func (c *Client) TopPosts(ctx context.Context, page, size int) (models.Page[models.Post], error) {
	return getPage[models.Post](ctx, c, "/posts/top?"+pageQuery(page, size))
}

// NewPosts fetches the new listing
func (c *Client) NewPosts(ctx context.Context, page, size int) (models.Page[models.Post], error) {
	return getPage[models.Post](ctx, c, "/posts/new?"+pageQuery(page, size))
}

// Feed fetches the personalized feed for a user
func (c *Client) Feed(ctx context.Context, userID int64, page, size int) (models.Page[models.Post], error) {
	path := fmt.Sprintf("/posts/feed/%d?%s", userID, pageQuery(page, size))
	return getPage[models.Post](ctx, c, path)
}

// CommunityPosts fetches the posts of one community
func (c *Client) CommunityPosts(ctx context.Context, communityID int64, page, size int) (models.Page[models.Post], error) {
	path := fmt.Sprintf("/posts/community/%d?%s", communityID, pageQuery(page, size))
	return getPage[models.Post](ctx, c, path)
}

// SearchPosts searches posts by free-text query
func (c *Client) SearchPosts(ctx context.Context, query string, page, size int) (models.Page[models.Post], error) {
	path := fmt.Sprintf("/posts/search?query=%s&%s", url.QueryEscape(query), pageQuery(page, size))
	return getPage[models.Post](ctx, c, path)
}

// Post fetches a single post by id
func (c *Client) Post(ctx context.Context, id int64) (models.Post, error) {
	var post models.Post
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/posts/%d", id), nil, &post); err != nil {
		return models.Post{}, err
	}
	return post, nil
}

// CreatePost creates a post and returns the server's copy
func (c *Client) CreatePost(ctx context.Context, req PostRequest) (models.Post, error) {
	var post models.Post
	if err := c.do(ctx, http.MethodPost, "/posts", req, &post); err != nil {
		return models.Post{}, err
	}
	return post, nil
}

// UpdatePost edits a post and returns the server's copy
func (c *Client) UpdatePost(ctx context.Context, id int64, req PostRequest) (models.Post, error) {
	var post models.Post
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/posts/%d", id), req, &post); err != nil {
		return models.Post{}, err
	}
	return post, nil
}

// DeletePost deletes a post
func (c *Client) DeletePost(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/posts/%d", id), nil, nil)
}
