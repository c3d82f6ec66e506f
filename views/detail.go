package views

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tmorand/threddit/api"
	"github.com/tmorand/threddit/comments"
	"github.com/tmorand/threddit/models"
	"github.com/tmorand/threddit/session"
	"github.com/tmorand/threddit/votes"
)

// comment sort selectors accepted by the section; ordering itself is
// delegated to the backend, switching just triggers a refetch
var commentSorts = map[string]bool{
	"best": true, "top": true, "new": true, "controversial": true, "old": true, "qa": true,
}

const defaultCommentSort = "best"

// CommentVM is one rendered comment with its subtree
type CommentVM struct {
	ID        int64       `json:"id"`
	User      models.User `json:"user"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
	Vote      VoteVM      `json:"vote"`
	Replies   []CommentVM `json:"replies,omitempty"`
}

// PostDetailVM is the rendered post detail page
type PostDetailVM struct {
	Post          PostVM      `json:"post"`
	Sort          string      `json:"sort"`
	Comments      []CommentVM `json:"comments"`
	CommentCount  int         `json:"commentCount"`
	Notifications []string    `json:"notifications,omitempty"`
	ForceLogin    bool        `json:"forceLogin,omitempty"`
}

// PostDetailView owns one post, its comment forest, and every vote
// reconciler on the page. Comment create/edit/delete are fire-and-forget:
// the optimistic tree mutation stays in place even when the backend call
// fails, unlike votes, which roll back. A freshly typed reply silently
// vanishing would confuse more than a stale tree needing a manual refresh.
type PostDetailView struct {
	client       *api.Client
	session      *session.Session
	notifier     *Notifications
	postVotes    *votes.Registry
	commentVotes *votes.Registry
	log          *logrus.Logger
	pageSize     int

	mutex  sync.Mutex
	post   models.Post
	forest *comments.Forest
	sort   string
}

// NewPostDetailView creates an empty detail view; call Load before rendering
func NewPostDetailView(client *api.Client, sess *session.Session, pageSize int, log *logrus.Logger) *PostDetailView {
	notifier := &Notifications{}
	return &PostDetailView{
		client:       client,
		session:      sess,
		notifier:     notifier,
		postVotes:    votes.NewRegistry(votes.PostCaller{Client: client}, sess, notifier, log),
		commentVotes: votes.NewRegistry(votes.CommentCaller{Client: client}, sess, notifier, log),
		log:          log,
		pageSize:     pageSize,
		forest:       comments.NewForest(nil),
		sort:         defaultCommentSort,
	}
}

// Load fetches the post and its full comment tree
func (v *PostDetailView) Load(ctx context.Context, postID int64) error {
	post, err := v.client.Post(ctx, postID)
	if err != nil {
		return err
	}

	v.mutex.Lock()
	sort := v.sort
	v.mutex.Unlock()

	tree, err := v.client.PostComments(ctx, postID, sort, 0, v.pageSize)
	if err != nil {
		return err
	}

	v.mutex.Lock()
	defer v.mutex.Unlock()
	v.post = post
	v.forest.Replace(tree)
	return nil
}

// SetSort stores the selector and refetches the tree in the new order
func (v *PostDetailView) SetSort(ctx context.Context, sort string) error {
	if !commentSorts[sort] {
		sort = defaultCommentSort
	}

	v.mutex.Lock()
	postID := v.post.ID
	v.sort = sort
	v.mutex.Unlock()

	tree, err := v.client.PostComments(ctx, postID, sort, 0, v.pageSize)
	if err != nil {
		v.notifier.Notify("Failed to reload comments")
		return err
	}

	v.forest.Replace(tree)
	return nil
}

// AddComment submits a new top-level comment; the server's copy (which
// carries the assigned id) is prepended to the forest on success.
func (v *PostDetailView) AddComment(ctx context.Context, content string) {
	v.addComment(ctx, nil, content, "Failed to post comment")
}

// Reply submits a reply under parentID. If the parent was deleted while the
// call was in flight the insert is a silent no-op; the next refetch
// reconciles.
func (v *PostDetailView) Reply(ctx context.Context, parentID int64, content string) {
	v.addComment(ctx, &parentID, content, "Failed to post reply")
}

func (v *PostDetailView) addComment(ctx context.Context, parentID *int64, content string, failureMessage string) {
	user, ok := v.session.CurrentUser()
	if !ok {
		v.notifier.Notify("Please login to comment")
		return
	}

	v.mutex.Lock()
	postID := v.post.ID
	v.mutex.Unlock()

	created, err := v.client.CreateComment(ctx, api.CommentRequest{
		Content:         content,
		PostID:          postID,
		ParentCommentID: parentID,
		UserID:          user.ID,
	})
	if err != nil {
		v.log.WithField("post_id", postID).WithError(err).Warn("Failed to create comment")
		v.notifier.Notify(failureMessage)
		return
	}

	if !v.forest.InsertReply(parentID, created) {
		fields := logrus.Fields{"post_id": postID}
		if parentID != nil {
			fields["parent_id"] = *parentID
		}
		v.log.WithFields(fields).Debug("Parent comment gone, reply not shown until refetch")
	}
}

// EditPost saves changed post fields. Unlike comment edits this is not
// optimistic: nothing changes locally until the backend confirms, and the
// server's copy of the edited fields replaces the local ones on success.
func (v *PostDetailView) EditPost(ctx context.Context, req api.PostRequest) {
	user, ok := v.session.CurrentUser()
	if !ok {
		v.notifier.Notify("Please login to edit posts")
		return
	}
	req.UserID = user.ID

	v.mutex.Lock()
	postID := v.post.ID
	v.mutex.Unlock()

	updated, err := v.client.UpdatePost(ctx, postID, req)
	if err != nil {
		v.log.WithField("post_id", postID).WithError(err).Warn("Failed to save post edit")
		v.notifier.Notify("Failed to update post")
		return
	}

	v.mutex.Lock()
	v.post.Title = updated.Title
	v.post.Content = updated.Content
	v.post.URL = updated.URL
	v.post.ImageURL = updated.ImageURL
	v.post.UpdatedAt = updated.UpdatedAt
	v.mutex.Unlock()

	v.notifier.Notify("Post updated successfully")
}

// EditComment patches the node optimistically, then tells the backend. A
// failed call notifies but does not revert the local edit.
func (v *PostDetailView) EditComment(ctx context.Context, commentID int64, content string) {
	now := time.Now()
	v.forest.PatchNode(commentID, comments.Patch{Content: &content, UpdatedAt: &now})

	if _, err := v.client.UpdateComment(ctx, commentID, api.CommentUpdate{Content: content}); err != nil {
		v.log.WithField("comment_id", commentID).WithError(err).Warn("Failed to save comment edit")
		v.notifier.Notify("Failed to update comment")
	}
}

// DeleteComment removes the node optimistically, then tells the backend. A
// failed call notifies but does not resurrect the node.
func (v *PostDetailView) DeleteComment(ctx context.Context, commentID int64, parentID *int64) {
	v.forest.RemoveNode(commentID, parentID)
	v.commentVotes.Drop(commentID)

	if err := v.client.DeleteComment(ctx, commentID); err != nil {
		v.log.WithField("comment_id", commentID).WithError(err).Warn("Failed to delete comment")
		v.notifier.Notify("Failed to delete comment")
		return
	}
	v.notifier.Notify("Comment deleted successfully")
}

// VotePost forwards a vote click on the post itself
func (v *PostDetailView) VotePost(ctx context.Context, direction votes.Direction) {
	v.mutex.Lock()
	postID, score := v.post.ID, v.post.Score
	v.mutex.Unlock()

	v.postVotes.Get(postID, score).Vote(ctx, direction)
}

// VoteComment forwards a vote click on one comment
func (v *PostDetailView) VoteComment(ctx context.Context, commentID int64, direction votes.Direction) {
	score := 0
	if node, ok := v.forest.Find(commentID); ok {
		score = node.Score
	}
	v.commentVotes.Get(commentID, score).Vote(ctx, direction)
}

// Render builds the view model, lazily loading vote statuses as the post
// and each comment become visible.
func (v *PostDetailView) Render(ctx context.Context) PostDetailVM {
	v.mutex.Lock()
	post := v.post
	sort := v.sort
	v.mutex.Unlock()

	postReconciler := v.postVotes.Get(post.ID, post.Score)
	postReconciler.Load(ctx)
	state, score := postReconciler.Snapshot()

	tree := v.forest.Snapshot()

	vm := PostDetailVM{
		Post: PostVM{
			Post: post,
			Vote: VoteVM{State: state, Score: score, Pending: postReconciler.Pending()},
		},
		Sort:         sort,
		Comments:     v.renderComments(ctx, tree),
		CommentCount: v.forest.Len(),
	}

	vm.Notifications = v.notifier.Drain()
	vm.ForceLogin = v.session.Expired()
	return vm
}

func (v *PostDetailView) renderComments(ctx context.Context, nodes []*models.Comment) []CommentVM {
	rendered := make([]CommentVM, 0, len(nodes))
	for _, node := range nodes {
		r := v.commentVotes.Get(node.ID, node.Score)
		r.Load(ctx)
		state, score := r.Snapshot()

		rendered = append(rendered, CommentVM{
			ID:        node.ID,
			User:      node.User,
			Content:   node.Content,
			CreatedAt: node.CreatedAt,
			UpdatedAt: node.UpdatedAt,
			Vote:      VoteVM{State: state, Score: score, Pending: r.Pending()},
			Replies:   v.renderComments(ctx, node.Replies),
		})
	}
	return rendered
}
