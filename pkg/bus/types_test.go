package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeySetOperations(t *testing.T) {
	t.Run("set algebra", func(t *testing.T) {
		a := NewKeySet("k1", "k2", "k3")
		b := NewKeySet("k2", "k3", "k4")

		assert.Equal(t, []string{"k2", "k3"}, a.Intersect(b).Strings())
		assert.Equal(t, []string{"k1", "k2", "k3", "k4"}, a.Union(b).Strings())
		assert.Equal(t, []string{"k1"}, a.Subtract(b).Strings())
	})

	t.Run("clone preserves the nil sentinel", func(t *testing.T) {
		var unconstrained KeySet
		assert.Nil(t, unconstrained.Clone())

		s := NewKeySet("k1")
		c := s.Clone()
		c.Add("k2")
		assert.Equal(t, 1, s.Len(), "clone must be independent")
	})

	t.Run("nil set is readable", func(t *testing.T) {
		var s KeySet
		assert.False(t, s.Has("k1"))
		assert.Equal(t, 0, s.Len())
		assert.Empty(t, s.Sorted())
	})
}
