package scenario

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JohnCoene/crosstalk/pkg/bus"
)

func TestLoad(t *testing.T) {
	write := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "scenario.yml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	t.Run("loads a valid scenario", func(t *testing.T) {
		s, err := Load(write(t, `
name: demo
steps:
  - dataset: cars
    action: select
    keys: [k1, k3]
  - dataset: cars
    action: dispose
`))
		require.NoError(t, err)
		assert.Equal(t, "demo", s.Name)
		assert.Len(t, s.Steps, 2)
	})

	t.Run("rejects unknown action", func(t *testing.T) {
		_, err := Load(write(t, `
steps:
  - dataset: cars
    action: explode
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown action")
	})

	t.Run("rejects keys on a clearing action", func(t *testing.T) {
		_, err := Load(write(t, `
steps:
  - dataset: cars
    action: dispose
    keys: [k1]
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "takes no keys")
	})

	t.Run("rejects empty scenario", func(t *testing.T) {
		_, err := Load(write(t, "name: empty\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no steps")
	})
}

func TestRunner(t *testing.T) {
	setup := func(t *testing.T) (*Runner, *bytes.Buffer) {
		t.Helper()
		b := bus.New()
		h1, err := bus.NewHandle(b, "g", nil, bus.Explicit("k1", "k2", "k3"))
		require.NoError(t, err)
		h2, err := bus.NewHandle(b, "g", nil, bus.Explicit("k1", "k2", "k3"))
		require.NoError(t, err)

		var out bytes.Buffer
		r := NewRunner(&out)
		r.Bind("cars", h1)
		r.Bind("owners", h2)
		return r, &out
	}

	t.Run("applies steps and reports state", func(t *testing.T) {
		r, out := setup(t)
		err := r.Run(&Scenario{Steps: []Step{
			{Dataset: "cars", Action: ActionSelect, Keys: []string{"k1", "k3"}},
			{Dataset: "owners", Action: ActionFilter, Keys: []string{"k2", "k3"}},
			{Dataset: "owners", Action: ActionClearFilter},
		}})
		require.NoError(t, err)

		report := out.String()
		assert.Contains(t, report, "selection=[k1 k3]")
		assert.Contains(t, report, "filter=[k2 k3]")
		assert.Contains(t, report, "filter=unconstrained")
	})

	t.Run("dispose retracts the handle's filter", func(t *testing.T) {
		r, out := setup(t)
		err := r.Run(&Scenario{Steps: []Step{
			{Dataset: "cars", Action: ActionFilter, Keys: []string{"k1"}},
			{Dataset: "cars", Action: ActionDispose},
		}})
		require.NoError(t, err)
		assert.Contains(t, out.String(), "filter=unconstrained")
	})

	t.Run("fails on unbound dataset", func(t *testing.T) {
		r, _ := setup(t)
		err := r.Run(&Scenario{Steps: []Step{
			{Dataset: "ghosts", Action: ActionSelect},
		}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ghosts")
	})
}
