package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariableGetSet(t *testing.T) {
	t.Run("unset variable reads nil", func(t *testing.T) {
		b := New()
		v := b.Group("g").Var("custom")
		assert.Nil(t, v.Get())
	})

	t.Run("set replaces the value", func(t *testing.T) {
		b := New()
		v := b.Group("g").Var("custom")
		v.Set(NewKeySet("a"))
		v.Set(NewKeySet("b"))
		ks := asKeySet(v.Get())
		require.NotNil(t, ks)
		assert.Equal(t, []string{"b"}, ks.Strings())
	})

	t.Run("variables are lazily created and stable", func(t *testing.T) {
		b := New()
		g := b.Group("g")
		assert.Same(t, g.Var("x"), g.Var("x"))
		assert.Equal(t, []string{"x"}, g.VarNames())
	})
}

func TestVariableNotificationOrder(t *testing.T) {
	t.Run("subscribers notified in subscription order", func(t *testing.T) {
		b := New()
		v := b.Group("g").Var("x")

		var order []string
		v.Subscribe(func(any) { order = append(order, "first") })
		v.Subscribe(func(any) { order = append(order, "second") })
		v.Subscribe(func(any) { order = append(order, "third") })

		v.Set("value")
		assert.Equal(t, []string{"first", "second", "third"}, order)
	})

	t.Run("each subscriber sees the published value", func(t *testing.T) {
		b := New()
		v := b.Group("g").Var("x")

		var got []any
		v.Subscribe(func(value any) { got = append(got, value) })
		v.Subscribe(func(value any) { got = append(got, value) })

		v.Set(42)
		assert.Equal(t, []any{42, 42}, got)
	})
}

func TestVariableSubscriberListMutation(t *testing.T) {
	t.Run("subscriber added during dispatch misses that publish", func(t *testing.T) {
		b := New()
		v := b.Group("g").Var("x")

		lateCalls := 0
		v.Subscribe(func(any) {
			v.Subscribe(func(any) { lateCalls++ })
		})

		v.Set("first")
		assert.Equal(t, 0, lateCalls, "subscriber added mid-dispatch must not see the in-flight publish")

		v.Set("second")
		assert.Equal(t, 1, lateCalls, "first publish after subscribing is delivered once")
	})

	t.Run("subscriber removed mid-dispatch is skipped", func(t *testing.T) {
		b := New()
		v := b.Group("g").Var("x")

		var secondSub *Subscription
		secondCalls := 0
		v.Subscribe(func(any) { secondSub.Close() })
		secondSub = v.Subscribe(func(any) { secondCalls++ })

		v.Set("value")
		assert.Equal(t, 0, secondCalls, "subscriber unsubscribed by an earlier callback must be skipped")
	})

	t.Run("subscriber can remove itself without corrupting dispatch", func(t *testing.T) {
		b := New()
		v := b.Group("g").Var("x")

		var selfSub *Subscription
		selfCalls := 0
		otherCalls := 0
		selfSub = v.Subscribe(func(any) {
			selfCalls++
			selfSub.Close()
		})
		v.Subscribe(func(any) { otherCalls++ })

		v.Set("a")
		v.Set("b")
		assert.Equal(t, 1, selfCalls)
		assert.Equal(t, 2, otherCalls)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		b := New()
		v := b.Group("g").Var("x")

		calls := 0
		sub := v.Subscribe(func(any) { calls++ })
		sub.Close()
		sub.Close()

		v.Set("value")
		assert.Equal(t, 0, calls)
	})
}

func TestVariableReentrantPublish(t *testing.T) {
	t.Run("publish from a callback is queued, not nested", func(t *testing.T) {
		b := New()
		v := b.Group("g").Var("x")

		var delivered []any
		v.Subscribe(func(value any) {
			if value == "first" {
				v.Set("second")
			}
		})
		v.Subscribe(func(value any) { delivered = append(delivered, value) })

		v.Set("first")

		// The second subscriber must see "first" before "second": the
		// re-entrant publish waits for the current pass to finish.
		require.Equal(t, []any{"first", "second"}, delivered)
		assert.Equal(t, "second", v.Get())
	})

	t.Run("re-entrant publishes do not recurse unboundedly", func(t *testing.T) {
		b := New()
		v := b.Group("g").Var("x")

		count := 0
		v.Subscribe(func(value any) {
			count++
			if n, ok := value.(int); ok && n < 5 {
				v.Set(n + 1)
			}
		})

		v.Set(0)
		assert.Equal(t, 6, count)
		assert.Equal(t, 5, v.Get())
	})
}
