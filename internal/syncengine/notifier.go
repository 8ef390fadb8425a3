package syncengine

import "sync"

type subscriber[S any] struct {
	id int
	fn func(S)
}

// Notifier fans aggregate snapshots out to subscribers. Notify calls every
// subscriber registered when it started, synchronously and in registration order.
type Notifier[S any] struct {
	mu     sync.Mutex
	nextID int
	subs   []subscriber[S]
}

// Subscribe registers fn and returns a function that removes it.
// Calling the returned function more than once is harmless.
func (n *Notifier[S]) Subscribe(fn func(S)) func() {
	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.subs = append(n.subs, subscriber[S]{id: id, fn: fn})
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { n.remove(id) })
	}
}

func (n *Notifier[S]) remove(id int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, s := range n.subs {
		if s.id == id {
			n.subs = append(n.subs[:i:i], n.subs[i+1:]...)
			return
		}
	}
}

// Notify delivers state to a snapshot of the current subscribers.
func (n *Notifier[S]) Notify(state S) {
	n.mu.Lock()
	subs := make([]subscriber[S], len(n.subs))
	copy(subs, n.subs)
	n.mu.Unlock()

	for _, s := range subs {
		s.fn(state)
	}
}

// Len returns the number of subscribers.
func (n *Notifier[S]) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}
