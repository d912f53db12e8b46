package bridge

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JohnCoene/crosstalk/pkg/bus"
)

// setupTestBridge creates a bridge connected to a miniredis instance.
func setupTestBridge(t *testing.T) (*Bridge, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	br, err := New(&redis.Options{Addr: mr.Addr()}, "test-doc")
	require.NoError(t, err)
	t.Cleanup(func() { br.Close() })

	return br, mr
}

func TestNew(t *testing.T) {
	t.Run("creates bridge successfully", func(t *testing.T) {
		br, _ := setupTestBridge(t)
		assert.NotNil(t, br)
		assert.NoError(t, br.Ping(context.Background()))
	})

	t.Run("rejects empty document name", func(t *testing.T) {
		_, err := New(&redis.Options{Addr: "localhost:6379"}, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "document name cannot be empty")
	})
}

func TestChannelName(t *testing.T) {
	assert.Equal(t, "crosstalk:doc:g:selection", ChannelName("doc", "g", "selection"))
}

func TestMirrorOutbound(t *testing.T) {
	br, mr := setupTestBridge(t)
	ctx := context.Background()

	b := bus.New()
	g := b.Group("g")
	require.NoError(t, br.MirrorGroup(ctx, g))

	// Raw subscriber on the selection channel to observe mirror traffic.
	raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { raw.Close() })
	pubsub := raw.Subscribe(ctx, ChannelName("test-doc", "g", "selection"))
	t.Cleanup(func() { pubsub.Close() })
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)

	g.Var(bus.VarSelection).Set(bus.NewKeySet("k1", "k3"))

	select {
	case msg := <-pubsub.Channel():
		var env envelope
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &env))
		assert.Equal(t, []string{"k1", "k3"}, env.Keys)
		assert.NotEmpty(t, env.Origin)
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for mirrored message")
	}
}

func TestMirrorInbound(t *testing.T) {
	br, mr := setupTestBridge(t)
	ctx := context.Background()

	b := bus.New()
	g := b.Group("g")
	require.NoError(t, br.MirrorGroup(ctx, g))

	publish := func(t *testing.T, variable string, env envelope) {
		t.Helper()
		payload, err := json.Marshal(env)
		require.NoError(t, err)
		raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer raw.Close()
		require.NoError(t, raw.Publish(ctx, ChannelName("test-doc", "g", variable), payload).Err())
	}

	// The bridge's own subscriptions are established asynchronously, so
	// each poll republishes; last write wins makes that harmless.
	t.Run("applies remote selection", func(t *testing.T) {
		require.Eventually(t, func() bool {
			publish(t, "selection", envelope{Origin: "remote", Keys: []string{"k2"}})
			return g.Selection().Has("k2")
		}, time.Second, 20*time.Millisecond)
	})

	t.Run("applies remote unset", func(t *testing.T) {
		require.Eventually(t, func() bool {
			publish(t, "filter", envelope{Origin: "remote", Keys: []string{"k1"}})
			_, active := g.Filter()
			return active
		}, time.Second, 20*time.Millisecond)

		require.Eventually(t, func() bool {
			publish(t, "filter", envelope{Origin: "remote", Unset: true})
			_, active := g.Filter()
			return !active
		}, time.Second, 20*time.Millisecond)
	})

	t.Run("skips its own messages", func(t *testing.T) {
		g.Var(bus.VarSelection).Set(bus.NewKeySet("local"))
		// The bridge hears its own publish on the channel; the origin
		// check must keep it from re-applying and re-publishing.
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, []string{"local"}, g.Selection().Strings())
	})
}

func TestMirrorCascadedPublish(t *testing.T) {
	// A local subscriber that republishes in reaction to a remote apply is
	// an ordinary local publish: it must reach the wire, not be mistaken
	// for an echo of the applied value.
	br, mr := setupTestBridge(t)
	ctx := context.Background()

	b := bus.New()
	g := b.Group("g")
	require.NoError(t, br.MirrorGroup(ctx, g))

	// Filter follows selection, the shape of a server-side linked widget.
	g.Var(bus.VarSelection).Subscribe(func(value any) {
		if ks, ok := value.(bus.KeySet); ok && ks != nil {
			g.Var(bus.VarFilter).Set(ks.Clone())
		}
	})

	raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { raw.Close() })
	pubsub := raw.Subscribe(ctx,
		ChannelName("test-doc", "g", "selection"),
		ChannelName("test-doc", "g", "filter"))
	t.Cleanup(func() { pubsub.Close() })
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)

	payload, err := json.Marshal(envelope{Origin: "remote", Keys: []string{"k2"}})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		require.NoError(t, raw.Publish(ctx, ChannelName("test-doc", "g", "selection"), payload).Err())
		return g.Selection().Has("k2")
	}, time.Second, 20*time.Millisecond)

	waitFor := func(t *testing.T, channel string) envelope {
		t.Helper()
		deadline := time.After(time.Second)
		for {
			select {
			case msg := <-pubsub.Channel():
				var env envelope
				require.NoError(t, json.Unmarshal([]byte(msg.Payload), &env))
				if msg.Channel == channel && env.Origin != "remote" {
					return env
				}
			case <-deadline:
				t.Fatalf("no bridge message on %s", channel)
			}
		}
	}

	env := waitFor(t, ChannelName("test-doc", "g", "filter"))
	assert.Equal(t, []string{"k2"}, env.Keys)
	assert.NotEmpty(t, env.Origin)

	// Suppression is consumed by the one applied value: the same keys
	// published locally afterwards still go out on the selection channel.
	g.Var(bus.VarSelection).Set(bus.NewKeySet("k2"))
	env = waitFor(t, ChannelName("test-doc", "g", "selection"))
	assert.Equal(t, []string{"k2"}, env.Keys)
}

func TestMirrorEchoSuppression(t *testing.T) {
	// Two bridges on the same document, two separate buses: a publish on
	// one side must converge on the other without ping-ponging forever.
	_, mr := setupTestBridge(t)
	ctx := context.Background()

	brA, err := New(&redis.Options{Addr: mr.Addr()}, "shared")
	require.NoError(t, err)
	t.Cleanup(func() { brA.Close() })
	brB, err := New(&redis.Options{Addr: mr.Addr()}, "shared")
	require.NoError(t, err)
	t.Cleanup(func() { brB.Close() })

	busA, busB := bus.New(), bus.New()
	require.NoError(t, brA.MirrorGroup(ctx, busA.Group("g")))
	require.NoError(t, brB.MirrorGroup(ctx, busB.Group("g")))

	// Wait for both bridges' inbound subscriptions before publishing.
	raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { raw.Close() })
	channel := ChannelName("shared", "g", "selection")
	require.Eventually(t, func() bool {
		counts, err := raw.PubSubNumSub(ctx, channel).Result()
		return err == nil && counts[channel] >= 2
	}, time.Second, 10*time.Millisecond)

	countA := 0
	busA.Group("g").Var(bus.VarSelection).Subscribe(func(any) { countA++ })

	busA.Group("g").Var(bus.VarSelection).Set(bus.NewKeySet("k1"))

	require.Eventually(t, func() bool {
		return busB.Group("g").Selection().Has("k1")
	}, time.Second, 10*time.Millisecond)

	// Give any echo time to surface, then check the publish happened
	// exactly once on the originating side.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, countA)
}

func TestBridgeClose(t *testing.T) {
	br, mr := setupTestBridge(t)
	ctx := context.Background()

	b := bus.New()
	g := b.Group("g")
	require.NoError(t, br.MirrorGroup(ctx, g))

	require.NoError(t, br.Close())
	require.NoError(t, br.Close(), "close is idempotent")

	// A closed bridge no longer applies remote messages.
	raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { raw.Close() })
	payload, err := json.Marshal(envelope{Origin: "remote", Keys: []string{"late"}})
	require.NoError(t, err)
	require.NoError(t, raw.Publish(ctx, ChannelName("test-doc", "g", "selection"), payload).Err())

	time.Sleep(50 * time.Millisecond)
	assert.False(t, g.Selection().Has("late"))

	err = br.MirrorVariable(ctx, g.Var("x"))
	require.Error(t, err)

	// Close also closes the error channel so range loops over Errors
	// terminate with the bridge.
	deadline := time.After(time.Second)
	for open := true; open; {
		select {
		case _, open = <-br.Errors():
		case <-deadline:
			t.Fatal("errors channel not closed")
		}
	}
}
