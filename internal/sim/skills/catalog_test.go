package skills

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	c := Defaults()
	s, ok := c.Skill("sprint")
	require.True(t, ok)
	a, ok := s.Action("boost")
	require.True(t, ok)
	require.Zero(t, a.CastTimeMs)
	require.Equal(t, 1.5, a.Effect.SpeedMultiplier)

	_, ok = c.Skill("unknown")
	require.False(t, ok)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skills.yaml")
	doc := `
skills:
  - id: wave
    name: Wave
    actions:
      - id: greet
        cooldown_ms: 1000
        range: 128
        cast_time_ms: 0
        target_kinds: [human, agent]
        effect:
          type: mark
          duration_ms: 500
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	s, ok := c.Skill("wave")
	require.True(t, ok)
	a, ok := s.Action("greet")
	require.True(t, ok)
	require.Equal(t, 128.0, a.Range)
	require.True(t, a.AllowsTarget("human"))
	require.False(t, a.AllowsTarget("object"))
}

func TestLoadRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skills.yaml")
	doc := `
skills:
  - id: wave
    actions: [{id: greet}]
  - id: wave
    actions: [{id: greet}]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestAllowsTargetEmptyMeansAny(t *testing.T) {
	a := ActionDef{}
	require.True(t, a.AllowsTarget("object"))
	require.True(t, a.AllowsTarget("npc"))
}
