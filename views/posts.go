package views

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tmorand/threddit/api"
	"github.com/tmorand/threddit/models"
	"github.com/tmorand/threddit/session"
	"github.com/tmorand/threddit/votes"
)

// VoteVM is the per-entity vote widget state
type VoteVM struct {
	State   votes.State `json:"state"`
	Score   int         `json:"score"`
	Pending bool        `json:"pending"`
}

// PostVM pairs a post with the viewer's vote state on it
type PostVM struct {
	models.Post
	Vote VoteVM `json:"vote"`
}

// PostListVM is the rendered post list
type PostListVM struct {
	Sort          string   `json:"sort"`
	Page          int      `json:"page"`
	HasMore       bool     `json:"hasMore"`
	Posts         []PostVM `json:"posts"`
	Notifications []string `json:"notifications,omitempty"`
	ForceLogin    bool     `json:"forceLogin,omitempty"`
}

// PostListView owns one listing of posts (hot/top/new/search/feed) and the
// vote reconcilers for the posts in it. Entering the view always refetches;
// there is no cross-view cache.
type PostListView struct {
	client   *api.Client
	session  *session.Session
	notifier *Notifications
	registry *votes.Registry
	log      *logrus.Logger
	pageSize int

	mutex   sync.Mutex
	sort    string
	page    int
	query   string
	posts   []models.Post
	hasMore bool
}

// NewPostListView creates an empty list view; call Load before rendering
func NewPostListView(client *api.Client, sess *session.Session, pageSize int, log *logrus.Logger) *PostListView {
	notifier := &Notifications{}
	return &PostListView{
		client:   client,
		session:  sess,
		notifier: notifier,
		registry: votes.NewRegistry(votes.PostCaller{Client: client}, sess, notifier, log),
		log:      log,
		pageSize: pageSize,
	}
}

// Load fetches one page of the requested listing. sort is one of hot, top,
// new, search, or feed; query only applies to search.
func (v *PostListView) Load(ctx context.Context, sort string, page int, query string) error {
	var result models.Page[models.Post]
	var err error

	switch sort {
	case "top":
		result, err = v.client.TopPosts(ctx, page, v.pageSize)
	case "new":
		result, err = v.client.NewPosts(ctx, page, v.pageSize)
	case "search":
		result, err = v.client.SearchPosts(ctx, query, page, v.pageSize)
	case "feed":
		user, ok := v.session.CurrentUser()
		if !ok {
			result, err = v.client.HotPosts(ctx, page, v.pageSize)
			sort = "hot"
			break
		}
		result, err = v.client.Feed(ctx, user.ID, page, v.pageSize)
	default:
		result, err = v.client.HotPosts(ctx, page, v.pageSize)
		sort = "hot"
	}

	if err != nil {
		return err
	}

	v.mutex.Lock()
	defer v.mutex.Unlock()
	v.sort = sort
	v.page = page
	v.query = query
	v.posts = result.Items
	v.hasMore = result.HasMore
	return nil
}

// LoadCommunity fetches one page of a community's posts into the view
func (v *PostListView) LoadCommunity(ctx context.Context, communityID int64, page int) error {
	result, err := v.client.CommunityPosts(ctx, communityID, page, v.pageSize)
	if err != nil {
		return err
	}

	v.mutex.Lock()
	defer v.mutex.Unlock()
	v.sort = "community"
	v.page = page
	v.posts = result.Items
	v.hasMore = result.HasMore
	return nil
}

// Vote forwards a vote click on one post to its reconciler
func (v *PostListView) Vote(ctx context.Context, postID int64, direction votes.Direction) {
	v.mutex.Lock()
	var score int
	for _, post := range v.posts {
		if post.ID == postID {
			score = post.Score
			break
		}
	}
	v.mutex.Unlock()

	v.registry.Get(postID, score).Vote(ctx, direction)
}

// Delete removes a post server-side and drops it from the in-memory list
// once the backend confirms. Failure only notifies.
func (v *PostListView) Delete(ctx context.Context, postID int64) {
	if err := v.client.DeletePost(ctx, postID); err != nil {
		v.log.WithField("post_id", postID).WithError(err).Warn("Failed to delete post")
		v.notifier.Notify("Failed to delete post")
		return
	}

	v.mutex.Lock()
	for i, post := range v.posts {
		if post.ID == postID {
			v.posts = append(v.posts[:i:i], v.posts[i+1:]...)
			break
		}
	}
	v.mutex.Unlock()
	v.registry.Drop(postID)
	v.notifier.Notify("Post deleted successfully")
}

// Create submits a new post and prepends the server's copy to the list
func (v *PostListView) Create(ctx context.Context, req api.PostRequest) (models.Post, error) {
	post, err := v.client.CreatePost(ctx, req)
	if err != nil {
		v.notifier.Notify("Failed to create post")
		return models.Post{}, err
	}

	v.mutex.Lock()
	v.posts = append([]models.Post{post}, v.posts...)
	v.mutex.Unlock()
	return post, nil
}

// Render builds the view model, lazily loading vote statuses for an
// authenticated viewer as posts become visible.
func (v *PostListView) Render(ctx context.Context) PostListVM {
	v.mutex.Lock()
	posts := make([]models.Post, len(v.posts))
	copy(posts, v.posts)
	vm := PostListVM{
		Sort:    v.sort,
		Page:    v.page,
		HasMore: v.hasMore,
	}
	v.mutex.Unlock()

	vm.Posts = make([]PostVM, 0, len(posts))
	for _, post := range posts {
		r := v.registry.Get(post.ID, post.Score)
		r.Load(ctx)
		state, score := r.Snapshot()
		vm.Posts = append(vm.Posts, PostVM{
			Post: post,
			Vote: VoteVM{State: state, Score: score, Pending: r.Pending()},
		})
	}

	vm.Notifications = v.notifier.Drain()
	vm.ForceLogin = v.session.Expired()
	return vm
}
