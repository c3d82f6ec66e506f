package votes

import (
	"context"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/tmorand/threddit/api"
	"github.com/tmorand/threddit/models"
)

type fakeCaller struct {
	mutex        sync.Mutex
	fetchVote    models.VoteType
	fetchErr     error
	castResult   api.VoteResult
	castErr      error
	removeResult api.VoteResult
	removeErr    error
	fetchCalls   int
	castCalls    int
	removeCalls  int
	castStarted  chan struct{}
	castBlock    chan struct{}
}

func (f *fakeCaller) Fetch(ctx context.Context, entityID, userID int64) (models.VoteType, error) {
	f.mutex.Lock()
	f.fetchCalls++
	f.mutex.Unlock()
	return f.fetchVote, f.fetchErr
}

func (f *fakeCaller) Cast(ctx context.Context, userID, entityID int64, voteType models.VoteType) (api.VoteResult, error) {
	f.mutex.Lock()
	f.castCalls++
	f.mutex.Unlock()
	if f.castStarted != nil {
		f.castStarted <- struct{}{}
	}
	if f.castBlock != nil {
		<-f.castBlock
	}
	return f.castResult, f.castErr
}

func (f *fakeCaller) Remove(ctx context.Context, userID, entityID int64) (api.VoteResult, error) {
	f.mutex.Lock()
	f.removeCalls++
	f.mutex.Unlock()
	return f.removeResult, f.removeErr
}

func (f *fakeCaller) counts() (int, int, int) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.fetchCalls, f.castCalls, f.removeCalls
}

type fakeViewer struct {
	user *models.User
}

func (v fakeViewer) CurrentUser() (models.User, bool) {
	if v.user == nil {
		return models.User{}, false
	}
	return *v.user, true
}

type fakeNotifier struct {
	mutex    sync.Mutex
	messages []string
}

func (n *fakeNotifier) Notify(message string) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.messages = append(n.messages, message)
}

func (n *fakeNotifier) count() int {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return len(n.messages)
}

func newTestReconciler(caller *fakeCaller, score int, authed bool) (*Reconciler, *fakeNotifier) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	viewer := fakeViewer{}
	if authed {
		viewer.user = &models.User{ID: 7, Username: "viewer"}
	}

	notifier := &fakeNotifier{}
	return NewReconciler(caller, 42, score, viewer, notifier, log), notifier
}

func TestLazyLoad(t *testing.T) {
	tests := []struct {
		name     string
		vote     models.VoteType
		err      error
		expected State
	}{
		{name: "No vote record", vote: "", expected: StateNone},
		{name: "Existing upvote", vote: models.Upvote, expected: StateUp},
		{name: "Existing downvote", vote: models.Downvote, expected: StateDown},
		{name: "Fetch failure degrades to none", vote: "", err: assert.AnError, expected: StateNone},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			caller := &fakeCaller{fetchVote: tc.vote, fetchErr: tc.err}
			r, _ := newTestReconciler(caller, 10, true)

			r.Load(context.Background())

			state, score := r.Snapshot()
			assert.Equal(t, tc.expected, state)
			assert.Equal(t, 10, score)

			// second load must not refetch, even after a failure
			r.Load(context.Background())
			fetches, _, _ := caller.counts()
			assert.Equal(t, 1, fetches)
		})
	}
}

func TestUnauthenticatedViewerNeverFetches(t *testing.T) {
	caller := &fakeCaller{}
	r, _ := newTestReconciler(caller, 3, false)

	r.Load(context.Background())
	r.Vote(context.Background(), DirectionUp)

	fetches, casts, removes := caller.counts()
	assert.Equal(t, 0, fetches)
	assert.Equal(t, 0, casts)
	assert.Equal(t, 0, removes)

	state, score := r.Snapshot()
	assert.Equal(t, StateUnknown, state)
	assert.Equal(t, 3, score)
}

func TestVoteToggleIdempotence(t *testing.T) {
	caller := &fakeCaller{
		fetchVote:    "",
		castResult:   api.VoteResult{Score: 6},
		removeResult: api.VoteResult{Score: 5},
	}
	r, _ := newTestReconciler(caller, 5, true)
	r.Load(context.Background())

	r.Vote(context.Background(), DirectionUp)
	state, score := r.Snapshot()
	assert.Equal(t, StateUp, state)
	assert.Equal(t, 6, score)

	// clicking up again removes the vote and reverts to the server's score
	r.Vote(context.Background(), DirectionUp)
	state, score = r.Snapshot()
	assert.Equal(t, StateNone, state)
	assert.Equal(t, 5, score)

	_, casts, removes := caller.counts()
	assert.Equal(t, 1, casts)
	assert.Equal(t, 1, removes)
}

func TestVoteChangeDirection(t *testing.T) {
	caller := &fakeCaller{
		fetchVote:  "",
		castResult: api.VoteResult{Score: 6},
	}
	r, _ := newTestReconciler(caller, 5, true)
	r.Load(context.Background())

	r.Vote(context.Background(), DirectionUp)

	// up then down is a change-vote, not a toggle-off
	caller.castResult = api.VoteResult{Score: 4}
	r.Vote(context.Background(), DirectionDown)

	state, score := r.Snapshot()
	assert.Equal(t, StateDown, state)
	assert.Equal(t, 4, score)

	_, casts, removes := caller.counts()
	assert.Equal(t, 2, casts)
	assert.Equal(t, 0, removes)
}

func TestVoteRollbackOnFailure(t *testing.T) {
	caller := &fakeCaller{
		fetchVote: "",
		castErr:   assert.AnError,
	}
	r, notifier := newTestReconciler(caller, 5, true)
	r.Load(context.Background())

	r.Vote(context.Background(), DirectionUp)

	// final state must equal the exact pre-click state and score
	state, score := r.Snapshot()
	assert.Equal(t, StateNone, state)
	assert.Equal(t, 5, score)
	assert.Equal(t, 1, notifier.count())
	assert.False(t, r.Pending())
}

func TestRemoveRollbackOnFailure(t *testing.T) {
	caller := &fakeCaller{
		fetchVote:  models.Upvote,
		removeErr:  assert.AnError,
		castResult: api.VoteResult{Score: 9},
	}
	r, notifier := newTestReconciler(caller, 8, true)
	r.Load(context.Background())

	r.Vote(context.Background(), DirectionUp)

	state, score := r.Snapshot()
	assert.Equal(t, StateUp, state)
	assert.Equal(t, 8, score)
	assert.Equal(t, 1, notifier.count())
}

func TestConcurrentClickSuppression(t *testing.T) {
	caller := &fakeCaller{
		fetchVote:   "",
		castResult:  api.VoteResult{Score: 2},
		castStarted: make(chan struct{}, 1),
		castBlock:   make(chan struct{}),
	}
	r, _ := newTestReconciler(caller, 1, true)
	r.Load(context.Background())

	done := make(chan struct{})
	go func() {
		r.Vote(context.Background(), DirectionDown)
		close(done)
	}()

	<-caller.castStarted
	assert.True(t, r.Pending())

	// this click arrives while the first mutation is in flight; it must be
	// dropped, not queued
	r.Vote(context.Background(), DirectionUp)

	close(caller.castBlock)
	<-done

	_, casts, _ := caller.counts()
	if casts != 1 {
		t.Errorf("expected exactly one cast call, got %d", casts)
	}

	// the pending call's resolution determines the final state
	state, score := r.Snapshot()
	assert.Equal(t, StateDown, state)
	assert.Equal(t, 2, score)
}

func TestOptimisticFlipBeforeServerResponse(t *testing.T) {
	caller := &fakeCaller{
		fetchVote:   "",
		castResult:  api.VoteResult{Score: 99},
		castStarted: make(chan struct{}, 1),
		castBlock:   make(chan struct{}),
	}
	r, _ := newTestReconciler(caller, 5, true)
	r.Load(context.Background())

	done := make(chan struct{})
	go func() {
		r.Vote(context.Background(), DirectionUp)
		close(done)
	}()

	<-caller.castStarted

	// vote flips immediately, score waits for the server
	state, score := r.Snapshot()
	assert.Equal(t, StateUp, state)
	assert.Equal(t, 5, score)

	close(caller.castBlock)
	<-done

	_, score = r.Snapshot()
	assert.Equal(t, 99, score)
}
