package models

import (
	"time"
)

// PostType identifies which content variant a post carries
type PostType string

const (
	PostTypeText  PostType = "TEXT"
	PostTypeLink  PostType = "LINK"
	PostTypeImage PostType = "IMAGE"
)

// VoteType is the wire-level vote direction. The backend only knows
// UPVOTE and DOWNVOTE; "no vote" is the absence of a vote record.
type VoteType string

const (
	Upvote   VoteType = "UPVOTE"
	Downvote VoteType = "DOWNVOTE"
)

// User is the author snapshot embedded in posts and comments
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// Community represents a community as returned by the backend
type Community struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	ProfileImageURL string    `json:"profileImageUrl,omitempty"`
	MemberCount     int       `json:"memberCount,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Post represents a post. Score and CommentCount are server-authoritative;
// the client never recomputes them locally.
type Post struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content,omitempty"`
	URL          string    `json:"url,omitempty"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	Type         PostType  `json:"type"`
	User         User      `json:"user"`
	Community    Community `json:"community"`
	Score        int       `json:"score"`
	CommentCount int       `json:"commentCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt,omitempty"`
}

// Comment is a node in a post's comment tree. Replies holds the direct
// children in server order; a nil ParentCommentID marks a top-level comment.
type Comment struct {
	ID              int64      `json:"id"`
	PostID          int64      `json:"postId"`
	ParentCommentID *int64     `json:"parentCommentId,omitempty"`
	User            User       `json:"user"`
	Content         string     `json:"content"`
	Score           int        `json:"score"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	Replies         []*Comment `json:"replies,omitempty"`
}

// Page is the normalized paginated envelope. The backend answers list
// endpoints with a {content: [...], last: bool} body; the API client folds
// that into this shape once so nothing downstream branches on response shape.
type Page[T any] struct {
	Items   []T
	HasMore bool
}
