// Package bridge mirrors bus variables onto Redis Pub/Sub so a server-side
// reactive computation, or another process rendering the same document, can
// observe and drive the same shared state. The bridge is an ordinary
// subscriber and publisher: the bus core does not know it exists.
//
// Every mirrored variable maps to one channel named
// crosstalk:{document}:{group}:{variable}. All bridges sharing a document
// name exchange values on those channels. Messages carry the publishing
// bridge's origin id so a bridge can skip its own messages, and each mirrored
// variable suppresses the one outbound notification for the value it just
// applied from the wire, which together prevent echo loops between two live
// bridges. Suppression is scoped per variable and per applied value: a local
// publish on any other variable, even one made by a subscriber reacting to a
// remote apply, is mirrored normally.
//
// Delivery is Redis Pub/Sub at-most-once: a slow or disconnected process
// misses values and converges on the next publish. That matches the bus's
// last-write-wins model.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/JohnCoene/crosstalk/pkg/bus"
)

// ChannelName returns the Pub/Sub channel for one variable of one group
// within a mirrored document.
func ChannelName(document, group, variable string) string {
	return fmt.Sprintf("crosstalk:%s:%s:%s", document, group, variable)
}

// envelope is the wire message exchanged on a variable channel. Selection
// and filter values share this one representation: a set of keys, or the
// unset sentinel.
type envelope struct {
	Origin string   `json:"origin"`
	Keys   []string `json:"keys,omitempty"`
	Unset  bool     `json:"unset,omitempty"`
}

// Bridge mirrors variables of one document namespace over one Redis
// connection. Create with New, wire variables with MirrorVariable or
// MirrorGroup, and Close when the owning session ends.
type Bridge struct {
	rdb      *redis.Client
	document string
	origin   string
	errors   chan error

	mu      sync.Mutex
	subs    []*bus.Subscription
	cancels []context.CancelFunc
	closed  bool
	once    sync.Once
}

// mirror is the echo-suppression state of one mirrored variable. Applying a
// remote value records it here; the variable's outbound subscriber then
// swallows exactly one matching notification. Scoping this per variable keeps
// a cascaded local publish on another variable from being mistaken for an
// echo.
type mirror struct {
	mu      sync.Mutex
	pending bool
	keys    []string
	unset   bool
}

// markApplied records the value about to be applied from the wire. keys must
// be in sorted order, matching what the outbound subscriber derives.
func (m *mirror) markApplied(keys []string, unset bool) {
	m.mu.Lock()
	m.pending = true
	m.keys = keys
	m.unset = unset
	m.mu.Unlock()
}

// consume reports whether the outbound value is the one this mirror just
// applied, clearing the mark. Matching at most once means an identical value
// published locally later still reaches the wire.
func (m *mirror) consume(keys []string, unset bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.pending {
		return false
	}
	if m.unset != unset || !slices.Equal(m.keys, keys) {
		return false
	}
	m.pending = false
	return true
}

// New creates a bridge for the given document namespace.
// Returns an error if document is empty.
func New(redisOpts *redis.Options, document string) (*Bridge, error) {
	if document == "" {
		return nil, fmt.Errorf("document name cannot be empty")
	}
	return &Bridge{
		rdb:      redis.NewClient(redisOpts),
		document: document,
		origin:   uuid.New().String(),
		errors:   make(chan error, 10),
	}, nil
}

// Ping verifies Redis connectivity. Useful for startup checks.
func (b *Bridge) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

// Errors returns the channel of non-fatal mirroring errors (malformed
// inbound messages, publish failures). Mirroring continues after errors.
// The channel is closed by Close, so ranging over it terminates with the
// bridge.
func (b *Bridge) Errors() <-chan error {
	return b.errors
}

// MirrorGroup mirrors the named variables of a group, defaulting to
// selection and filter when none are given.
func (b *Bridge) MirrorGroup(ctx context.Context, g *bus.Group, variables ...string) error {
	if len(variables) == 0 {
		variables = []string{bus.VarSelection, bus.VarFilter}
	}
	for _, name := range variables {
		if err := b.MirrorVariable(ctx, g.Var(name)); err != nil {
			return err
		}
	}
	return nil
}

// MirrorVariable mirrors one variable bidirectionally: local publishes are
// sent to the variable's channel, and remote messages are applied to the
// local variable. Only KeySet and unset values cross the wire; values of
// other types stay local.
func (b *Bridge) MirrorVariable(ctx context.Context, v *bus.Variable) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("bridge is closed")
	}
	b.mu.Unlock()

	channel := ChannelName(b.document, v.GroupName(), v.Name())
	m := &mirror{}

	// Outbound: local publishes onto the channel, except the one value
	// this variable's mirror just applied from the wire.
	sub := v.Subscribe(func(value any) {
		env, ok := b.envelopeFor(value)
		if !ok {
			return
		}
		if m.consume(env.Keys, env.Unset) {
			return
		}
		payload, err := json.Marshal(env)
		if err != nil {
			b.reportError(fmt.Errorf("failed to marshal mirror message: %w", err))
			return
		}
		if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
			b.reportError(fmt.Errorf("failed to publish mirror message: %w", err))
		}
	})

	// Inbound: remote messages applied to the local variable.
	pubsub := b.rdb.Subscribe(ctx, channel)
	subCtx, cancel := context.WithCancel(ctx)

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.cancels = append(b.cancels, cancel)
	b.mu.Unlock()

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					b.reportError(fmt.Errorf("failed to unmarshal mirror message: %w", err))
					continue
				}
				if env.Origin == b.origin {
					continue
				}
				b.apply(v, m, env)
			}
		}
	}()

	return nil
}

// Close stops all mirroring and closes the Redis connection. Implements
// io.Closer. Safe to call multiple times.
func (b *Bridge) Close() error {
	b.once.Do(func() {
		b.mu.Lock()
		b.closed = true
		subs := b.subs
		cancels := b.cancels
		b.subs = nil
		b.cancels = nil
		b.mu.Unlock()

		for _, cancel := range cancels {
			cancel()
		}
		for _, sub := range subs {
			sub.Close()
		}
		b.rdb.Close()

		// Mirroring has stopped and closed is set, so no reportError can
		// reach the channel anymore; closing it lets consumers ranging
		// over Errors return.
		b.mu.Lock()
		close(b.errors)
		b.mu.Unlock()
	})
	return nil
}

func (b *Bridge) envelopeFor(value any) (envelope, bool) {
	env := envelope{Origin: b.origin}
	switch ks := value.(type) {
	case nil:
		env.Unset = true
	case bus.KeySet:
		if ks == nil {
			env.Unset = true
		} else {
			env.Keys = ks.Strings()
		}
	default:
		return envelope{}, false
	}
	return env, true
}

func (b *Bridge) apply(v *bus.Variable, m *mirror, env envelope) {
	if env.Unset {
		m.markApplied(nil, true)
		v.Set(nil)
		return
	}
	keys := make([]bus.Key, len(env.Keys))
	for i, k := range env.Keys {
		keys[i] = bus.Key(k)
	}
	ks := bus.NewKeySet(keys...)
	// Mark with the set's own sorted form so the outbound subscriber's
	// derived envelope matches even if the sender's keys were unordered.
	m.markApplied(ks.Strings(), false)
	v.Set(ks)
}

func (b *Bridge) reportError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.errors <- err:
	default:
		// Error channel full; drop rather than block mirroring.
	}
}
