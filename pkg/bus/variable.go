package bus

import "sync"

// Subscriber receives a variable's new value after each publish.
type Subscriber func(value any)

type subEntry struct {
	fn     Subscriber
	active bool
}

// Subscription identifies one registered subscriber so it can be removed.
// Close is idempotent and safe to call from within a notification callback.
type Subscription struct {
	once  sync.Once
	v     *Variable
	entry *subEntry
}

// Close removes the subscriber from its variable. Subsequent publishes will
// not reach it, including the remainder of a dispatch already in flight.
func (s *Subscription) Close() {
	s.once.Do(func() {
		g := s.v.group
		g.mu.Lock()
		defer g.mu.Unlock()
		s.entry.active = false
		for i, e := range s.v.subs {
			if e == s.entry {
				s.v.subs = append(s.v.subs[:i], s.v.subs[i+1:]...)
				break
			}
		}
	})
}

// Variable is one named piece of shared, observable state within a Group.
// Its value is opaque to the bus; selection and filter variables hold KeySet
// values by convention. All state is guarded by the owning Group's mutex.
type Variable struct {
	group *Group
	name  string

	value any
	subs  []*subEntry

	pending  []any
	draining bool
}

// Name returns the variable's name within its group.
func (v *Variable) Name() string {
	return v.name
}

// GroupName returns the name of the group this variable belongs to.
func (v *Variable) GroupName() string {
	return v.group.name
}

// Get returns the current value, or nil if the variable was never published.
func (v *Variable) Get() any {
	v.group.mu.Lock()
	defer v.group.mu.Unlock()
	return v.value
}

// Set replaces the current value and synchronously notifies every current
// subscriber in subscription order. The subscriber list is snapshotted when
// the publish is dequeued: subscribers added during dispatch are not
// notified for this publish, subscribers removed during dispatch are
// skipped. A Set issued from inside a callback on this same variable is
// queued and delivered after the current pass, never nested; the outermost
// Set drains the queue before returning.
func (v *Variable) Set(value any) {
	v.group.mu.Lock()
	v.setLocked(value)
}

// setLocked enqueues value and, unless a dispatch pass is already running,
// drains the queue. The caller must hold the group lock; it is released by
// the time setLocked returns. Publishers that must pair a state read with
// the enqueue atomically (the filter recompute) call this directly.
func (v *Variable) setLocked(value any) {
	g := v.group
	v.pending = append(v.pending, value)
	if v.draining {
		// A dispatch pass is already running (re-entrant publish, or a
		// concurrent publisher); it will deliver this value in order.
		g.mu.Unlock()
		return
	}
	v.draining = true
	for len(v.pending) > 0 {
		next := v.pending[0]
		v.pending = v.pending[1:]
		v.value = next
		snapshot := make([]*subEntry, len(v.subs))
		copy(snapshot, v.subs)
		g.mu.Unlock()
		for _, e := range snapshot {
			g.mu.Lock()
			active := e.active
			g.mu.Unlock()
			if !active {
				continue
			}
			e.fn(next)
		}
		g.mu.Lock()
	}
	v.draining = false
	g.mu.Unlock()
}

// lastQueuedLocked returns the value most recently enqueued, falling back to
// the current value when the queue is empty. This is the value a subscriber
// will have observed last once all dispatch settles. The caller must hold
// the group lock.
func (v *Variable) lastQueuedLocked() any {
	if n := len(v.pending); n > 0 {
		return v.pending[n-1]
	}
	return v.value
}

// Subscribe registers a callback for future publishes and returns its
// Subscription handle. Notification order is subscription order.
func (v *Variable) Subscribe(fn Subscriber) *Subscription {
	g := v.group
	g.mu.Lock()
	defer g.mu.Unlock()
	e := &subEntry{fn: fn, active: true}
	v.subs = append(v.subs, e)
	return &Subscription{v: v, entry: e}
}
