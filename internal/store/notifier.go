package store

import "sync"

// notifier fans change events out to subscribers. Sends never block: a full
// subscriber channel drops the event, which is fine because events are
// re-read hints, not deltas.
type notifier struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[int]chan Event)}
}

func (n *notifier) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	n.mu.Lock()
	id := n.next
	n.next++
	n.subs[id] = ch
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		if _, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(ch)
		}
		n.mu.Unlock()
	}
	return ch, cancel
}

func (n *notifier) publish(kinds ...EntityKind) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, kind := range kinds {
		for _, ch := range n.subs {
			select {
			case ch <- Event{Kind: kind}:
			default:
			}
		}
	}
}
