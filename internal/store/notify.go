// Package store holds the application state containers that widgets bind to.
//
// The application root owns one instance of each store. Widgets receive the
// store as an interface value and never own it; they learn about changes by
// subscribing rather than by polling shared fields.
package store

import "sync"

// notifier fans change signals out to subscribers. Signals coalesce: a slow
// subscriber sees one pending signal, never a backlog.
type notifier struct {
	subMu sync.Mutex
	subs  map[chan struct{}]struct{}
}

// Subscribe returns a channel that receives a value after each change and a
// function that cancels the subscription and closes the channel.
func (n *notifier) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	n.subMu.Lock()
	if n.subs == nil {
		n.subs = make(map[chan struct{}]struct{})
	}
	n.subs[ch] = struct{}{}
	n.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.subMu.Lock()
			delete(n.subs, ch)
			n.subMu.Unlock()
			close(ch)
		})
	}
}

func (n *notifier) notify() {
	n.subMu.Lock()
	defer n.subMu.Unlock()
	for ch := range n.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
