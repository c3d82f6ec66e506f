package comments

import (
	"sync"
	"time"

	"github.com/tmorand/threddit/models"
)

// Forest is the in-memory ordered collection of comment trees for one post.
// It is owned by the view displaying it; navigating away and back replaces
// it wholesale from a fresh fetch. All operations are local and synchronous:
// a missing target id degrades to a silent no-op, on the assumption that the
// next server-driven refresh restores consistency.
type Forest struct {
	mutex sync.Mutex
	roots []*models.Comment
}

// NewForest wraps a freshly fetched comment tree
func NewForest(roots []*models.Comment) *Forest {
	return &Forest{roots: roots}
}

// Replace swaps in a refetched tree (sort change, full refresh)
func (f *Forest) Replace(roots []*models.Comment) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.roots = roots
}

// InsertReply prepends node to the replies of the comment with id parentID,
// wherever it sits in the forest. A nil parentID prepends node to the
// top-level sequence instead. Returns false when the parent no longer
// exists (concurrently deleted); the reply is then simply not shown.
func (f *Forest) InsertReply(parentID *int64, node *models.Comment) bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if parentID == nil {
		f.roots = append([]*models.Comment{node}, f.roots...)
		return true
	}

	parent := findNode(f.roots, *parentID)
	if parent == nil {
		return false
	}

	parent.Replies = append([]*models.Comment{node}, parent.Replies...)
	return true
}

// Patch is a shallow field merge for one comment; nil fields are left alone.
// Replies are never touched by a patch.
type Patch struct {
	Content   *string
	Score     *int
	UpdatedAt *time.Time
}

// PatchNode merges patch into the comment with the given id, preserving its
// replies untouched. Returns false when the id is absent.
func (f *Forest) PatchNode(id int64, patch Patch) bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	node := findNode(f.roots, id)
	if node == nil {
		return false
	}

	if patch.Content != nil {
		node.Content = *patch.Content
	}
	if patch.Score != nil {
		node.Score = *patch.Score
	}
	if patch.UpdatedAt != nil {
		node.UpdatedAt = *patch.UpdatedAt
	}
	return true
}

// RemoveNode removes the comment with the given id. A nil parentID removes
// it from the top-level sequence; otherwise the parent is located by full
// recursive descent and the child removed from its replies. Removal works
// at any depth: the rendered tree nests well past two levels, so a
// depth-limited removal would strand deep deletions until the next refetch.
func (f *Forest) RemoveNode(id int64, parentID *int64) bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if parentID == nil {
		remaining, removed := removeFrom(f.roots, id)
		f.roots = remaining
		return removed
	}

	parent := findNode(f.roots, *parentID)
	if parent == nil {
		return false
	}

	remaining, removed := removeFrom(parent.Replies, id)
	parent.Replies = remaining
	return removed
}

// Find returns a copy of the comment with the given id, if present
func (f *Forest) Find(id int64) (models.Comment, bool) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	node := findNode(f.roots, id)
	if node == nil {
		return models.Comment{}, false
	}
	return *node, true
}

// Len counts every comment in the forest
func (f *Forest) Len() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return countNodes(f.roots)
}

// Snapshot returns a deep copy of the forest, safe to render or serialize
// while mutations continue.
func (f *Forest) Snapshot() []*models.Comment {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	snapshot := make([]*models.Comment, len(f.roots))
	for i, root := range f.roots {
		snapshot[i] = cloneNode(root)
	}
	return snapshot
}

// findNode is a depth-first search for id across the forest
func findNode(nodes []*models.Comment, id int64) *models.Comment {
	for _, node := range nodes {
		if node.ID == id {
			return node
		}
		if found := findNode(node.Replies, id); found != nil {
			return found
		}
	}
	return nil
}

// removeFrom drops the node with the given id from one sibling sequence
func removeFrom(nodes []*models.Comment, id int64) ([]*models.Comment, bool) {
	for i, node := range nodes {
		if node.ID == id {
			return append(nodes[:i:i], nodes[i+1:]...), true
		}
	}
	return nodes, false
}

func countNodes(nodes []*models.Comment) int {
	total := len(nodes)
	for _, node := range nodes {
		total += countNodes(node.Replies)
	}
	return total
}

func cloneNode(node *models.Comment) *models.Comment {
	copied := *node
	if node.Replies != nil {
		copied.Replies = make([]*models.Comment, len(node.Replies))
		for i, reply := range node.Replies {
			copied.Replies[i] = cloneNode(reply)
		}
	}
	return &copied
}
