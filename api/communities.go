package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tmorand/threddit/models"
)

// CommunityRequest is the create body for communities
type CommunityRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	UserID      int64  `json:"userId"`
}

// Communities fetches the community listing
func (c *Client) Communities(ctx context.Context, page, size int) (models.Page[models.Community], error) {
	return getPage[models.Community](ctx, c, "/communities?"+pageQuery(page, size))
}

// CommunityByName fetches a single community by its name
func (c *Client) CommunityByName(ctx context.Context, name string) (models.Community, error) {
	path := "/communities/name/" + url.PathEscape(name)
	var community models.Community
	if err := c.do(ctx, http.MethodGet, path, nil, &community); err != nil {
		return models.Community{}, err
	}
	return community, nil
}

// SearchCommunities searches communities by free-text query
func (c *Client) SearchCommunities(ctx context.Context, query string, page, size int) (models.Page[models.Community], error) {
	path := fmt.Sprintf("/communities/search?query=%s&%s", url.QueryEscape(query), pageQuery(page, size))
	return getPage[models.Community](ctx, c, path)
}

// PopularCommunities fetches the most-joined communities
func (c *Client) PopularCommunities(ctx context.Context, page, size int) (models.Page[models.Community], error) {
	return getPage[models.Community](ctx, c, "/communities/popular?"+pageQuery(page, size))
}

// CreateCommunity creates a community and returns the server's copy
func (c *Client) CreateCommunity(ctx context.Context, req CommunityRequest) (models.Community, error) {
	var community models.Community
	if err := c.do(ctx, http.MethodPost, "/communities", req, &community); err != nil {
		return models.Community{}, err
	}
	return community, nil
}

// Members fetches a community's member list
func (c *Client) Members(ctx context.Context, communityID int64, page, size int) (models.Page[models.User], error) {
	path := fmt.Sprintf("/communities/%d/members?%s", communityID, pageQuery(page, size))
	return getPage[models.User](ctx, c, path)
}

// Join adds the user to a community
func (c *Client) Join(ctx context.Context, communityID, userID int64) error {
	path := fmt.Sprintf("/communities/%d/join/%d", communityID, userID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// Leave removes the user from a community
func (c *Client) Leave(ctx context.Context, communityID, userID int64) error {
	path := fmt.Sprintf("/communities/%d/leave/%d", communityID, userID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}
