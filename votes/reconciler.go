package votes

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tmorand/threddit/api"
	"github.com/tmorand/threddit/models"
)

// State is the viewer's vote on one votable entity as currently displayed.
// Unknown means the lazy status fetch has not run yet.
type State string

const (
	StateUnknown State = "unknown"
	StateNone    State = "none"
	StateUp      State = "up"
	StateDown    State = "down"
)

// Direction is a vote click
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

func (d Direction) state() State {
	if d == DirectionUp {
		return StateUp
	}
	return StateDown
}

func (d Direction) voteType() models.VoteType {
	if d == DirectionUp {
		return models.Upvote
	}
	return models.Downvote
}

func stateFromVoteType(vt models.VoteType) State {
	switch vt {
	case models.Upvote:
		return StateUp
	case models.Downvote:
		return StateDown
	default:
		return StateNone
	}
}

// Caller issues the vote calls for one entity kind (post or comment)
type Caller interface {
	Fetch(ctx context.Context, entityID, userID int64) (models.VoteType, error)
	Cast(ctx context.Context, userID, entityID int64, voteType models.VoteType) (api.VoteResult, error)
	Remove(ctx context.Context, userID, entityID int64) (api.VoteResult, error)
}

// Viewer exposes the signed-in user, if any. The session satisfies this.
type Viewer interface {
	CurrentUser() (models.User, bool)
}

// Notifier receives transient user-facing failure messages (the toast sink)
type Notifier interface {
	Notify(message string)
}

// Reconciler keeps one viewer's vote on one entity consistent with the
// server under optimistic updates. The displayed score is adopted only from
// server responses; the displayed vote flips optimistically and rolls back
// on failure. At most one mutation is in flight per entity; clicks during
// flight are dropped, not queued.
type Reconciler struct {
	caller   Caller
	entityID int64
	viewer   Viewer
	notifier Notifier
	log      *logrus.Logger

	mutex  sync.Mutex
	state  State
	score  int
	loaded bool
	voting bool
}

// NewReconciler creates a reconciler in state Unknown. initialScore is the
// aggregate that arrived with the entity itself.
func NewReconciler(caller Caller, entityID int64, initialScore int, viewer Viewer, notifier Notifier, log *logrus.Logger) *Reconciler {
	return &Reconciler{
		caller:   caller,
		entityID: entityID,
		viewer:   viewer,
		notifier: notifier,
		log:      log,
		state:    StateUnknown,
		score:    initialScore,
	}
}

// Snapshot returns the displayed vote and score
func (r *Reconciler) Snapshot() (State, int) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.state, r.score
}

// Pending reports whether a mutation is in flight
func (r *Reconciler) Pending() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.voting
}

// Load runs the lazy vote-status fetch. It runs at most once, and only for
// an authenticated viewer; an unauthenticated viewer stays in Unknown with
// the vote buttons rendered inert. A failed fetch degrades to None and is
// not retried.
func (r *Reconciler) Load(ctx context.Context) {
	user, ok := r.viewer.CurrentUser()
	if !ok {
		return
	}

	r.mutex.Lock()
	if r.loaded {
		r.mutex.Unlock()
		return
	}
	r.loaded = true
	r.mutex.Unlock()

	voteType, err := r.caller.Fetch(ctx, r.entityID, user.ID)

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// a vote mutation may have completed while the fetch was in flight;
	// its server-confirmed state wins over the status read
	if r.state != StateUnknown {
		return
	}

	if err != nil {
		r.log.WithFields(logrus.Fields{
			"entity_id": r.entityID,
		}).WithError(err).Warn("Failed to load vote status, assuming no vote")
		r.state = StateNone
		return
	}

	r.state = stateFromVoteType(voteType)
}

// Vote handles a vote click. Clicking the direction the viewer already has
// recorded is a toggle-off (remove-vote); anything else casts or changes.
// The displayed vote flips immediately, the score waits for the server.
func (r *Reconciler) Vote(ctx context.Context, direction Direction) {
	user, ok := r.viewer.CurrentUser()
	if !ok {
		return
	}

	r.mutex.Lock()
	if r.voting {
		r.mutex.Unlock()
		r.log.WithField("entity_id", r.entityID).Debug("Vote dropped, mutation already in flight")
		return
	}
	r.voting = true

	previousState := r.state
	previousScore := r.score
	toggleOff := r.state == direction.state()
	if toggleOff {
		r.state = StateNone
	} else {
		r.state = direction.state()
	}
	r.mutex.Unlock()

	var result api.VoteResult
	var err error
	if toggleOff {
		result, err = r.caller.Remove(ctx, user.ID, r.entityID)
	} else {
		result, err = r.caller.Cast(ctx, user.ID, r.entityID, direction.voteType())
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.voting = false

	if err != nil {
		r.state = previousState
		r.score = previousScore
		r.log.WithFields(logrus.Fields{
			"entity_id": r.entityID,
			"direction": direction,
		}).WithError(err).Warn("Vote failed, rolled back")
		if r.notifier != nil {
			r.notifier.Notify("Failed to update vote")
		}
		return
	}

	r.score = result.Score
	r.loaded = true
	if toggleOff {
		r.state = StateNone
	} else {
		r.state = direction.state()
	}
}
