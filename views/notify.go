package views

import (
	"sync"
)

// Notifications collects transient user-facing messages (the toast sink).
// Action failures land here instead of failing the surrounding view; each
// render drains whatever accumulated since the last one.
type Notifications struct {
	mutex    sync.Mutex
	messages []string
}

// Notify queues a message for the next render
func (n *Notifications) Notify(message string) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.messages = append(n.messages, message)
}

// Drain returns and clears the queued messages
func (n *Notifications) Drain() []string {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	drained := n.messages
	n.messages = nil
	return drained
}
