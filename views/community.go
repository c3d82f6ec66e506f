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

// CommunityVM is the rendered community page
type CommunityVM struct {
	Community     models.Community `json:"community"`
	Members       []models.User    `json:"members"`
	Joined        bool             `json:"joined"`
	Posts         []PostVM         `json:"posts"`
	Notifications []string         `json:"notifications,omitempty"`
	ForceLogin    bool             `json:"forceLogin,omitempty"`
}

// CommunityListVM is the rendered community directory
type CommunityListVM struct {
	Page          int                `json:"page"`
	HasMore       bool               `json:"hasMore"`
	Communities   []models.Community `json:"communities"`
	Notifications []string           `json:"notifications,omitempty"`
}

// CommunityView owns one community page: the community itself, its member
// list, the viewer's joined flag, and the community's post listing.
type CommunityView struct {
	client   *api.Client
	session  *session.Session
	notifier *Notifications
	posts    *PostListView
	log      *logrus.Logger
	pageSize int

	stateLock sync.Mutex
	community models.Community
	members   []models.User
	joined    bool
	joining   bool
}

// NewCommunityView creates an empty community view; call Load before rendering
func NewCommunityView(client *api.Client, sess *session.Session, pageSize int, log *logrus.Logger) *CommunityView {
	return &CommunityView{
		client:   client,
		session:  sess,
		notifier: &Notifications{},
		posts:    NewPostListView(client, sess, pageSize, log),
		log:      log,
		pageSize: pageSize,
	}
}

// Load fetches the community by name along with members and posts
func (v *CommunityView) Load(ctx context.Context, name string) error {
	community, err := v.client.CommunityByName(ctx, name)
	if err != nil {
		return err
	}

	members, err := v.client.Members(ctx, community.ID, 0, v.pageSize)
	if err != nil {
		return err
	}

	joined := false
	if user, ok := v.session.CurrentUser(); ok {
		for _, member := range members.Items {
			if member.ID == user.ID {
				joined = true
				break
			}
		}
	}

	v.stateLock.Lock()
	v.community = community
	v.members = members.Items
	v.joined = joined
	v.stateLock.Unlock()

	if err := v.posts.LoadCommunity(ctx, community.ID, 0); err != nil {
		v.log.WithField("community", name).WithError(err).Warn("Failed to load community posts")
	}
	return nil
}

// Join adds the viewer to the community. Clicks while a join/leave call is
// in flight are dropped.
func (v *CommunityView) Join(ctx context.Context) {
	v.membership(ctx, true)
}

// Leave removes the viewer from the community
func (v *CommunityView) Leave(ctx context.Context) {
	v.membership(ctx, false)
}

func (v *CommunityView) membership(ctx context.Context, join bool) {
	user, ok := v.session.CurrentUser()
	if !ok {
		v.notifier.Notify("Please login to join communities")
		return
	}

	v.stateLock.Lock()
	if v.joining {
		v.stateLock.Unlock()
		return
	}
	v.joining = true
	communityID := v.community.ID
	v.stateLock.Unlock()

	var err error
	if join {
		err = v.client.Join(ctx, communityID, user.ID)
	} else {
		err = v.client.Leave(ctx, communityID, user.ID)
	}

	v.stateLock.Lock()
	defer v.stateLock.Unlock()
	v.joining = false

	if err != nil {
		v.log.WithFields(logrus.Fields{
			"community_id": communityID,
			"join":         join,
		}).WithError(err).Warn("Membership change failed")
		if join {
			v.notifier.Notify("Failed to join community")
		} else {
			v.notifier.Notify("Failed to leave community")
		}
		return
	}

	v.joined = join
}

// Vote forwards a vote click on one of the community's posts
func (v *CommunityView) Vote(ctx context.Context, postID int64, direction votes.Direction) {
	v.posts.Vote(ctx, postID, direction)
}

// Render builds the view model
func (v *CommunityView) Render(ctx context.Context) CommunityVM {
	v.stateLock.Lock()
	vm := CommunityVM{
		Community: v.community,
		Members:   v.members,
		Joined:    v.joined,
	}
	v.stateLock.Unlock()

	vm.Posts = v.posts.Render(ctx).Posts
	vm.Notifications = v.notifier.Drain()
	vm.ForceLogin = v.session.Expired()
	return vm
}
