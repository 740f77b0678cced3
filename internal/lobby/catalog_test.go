package lobby

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcadehub/internal/apperr"
	"arcadehub/pkg/types"
)

const sampleCatalog = `{
  "games": [
    {
      "id": "tetris",
      "name": "Tetris Duel",
      "min_players": 1,
      "max_players": 2,
      "modes": ["timer", "survival", "lines"],
      "defaults": {"mode": "timer", "duration_sec": 120, "target_lines": 20},
      "server": {"command": "arcadematch", "args_template": "--game tetris --port {port} --token {token}"}
    },
    {
      "id": "broken",
      "name": "Broken",
      "server": {"command": "x", "args_template": "--port {port}"}
    }
  ]
}`

func TestParseCatalog(t *testing.T) {
	c, err := ParseCatalog(strings.NewReader(sampleCatalog))
	require.NoError(t, err)

	list := c.List()
	require.Len(t, list, 2)
	assert.Equal(t, "tetris", list[0].ID)
	assert.Equal(t, []string{"timer", "survival", "lines"}, list[0].Modes)

	g, err := c.Get("tetris")
	require.NoError(t, err)
	assert.NoError(t, g.Validate())

	b, err := c.Get("broken")
	require.NoError(t, err)
	assert.ErrorIs(t, b.Validate(), apperr.ErrLaunchFailed)

	_, err = c.Get("chess")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestParseCatalogRejectsDuplicates(t *testing.T) {
	_, err := ParseCatalog(strings.NewReader(`{"games":[{"id":"a"},{"id":"a"}]}`))
	assert.Error(t, err)
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o600))
	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Len(t, c.List(), 2)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestResolveParams(t *testing.T) {
	c, err := ParseCatalog(strings.NewReader(sampleCatalog))
	require.NoError(t, err)
	g, _ := c.Get("tetris")

	p, err := g.ResolveParams(types.MatchParams{})
	require.NoError(t, err)
	assert.Equal(t, types.ModeTimer, p.Mode)
	assert.Equal(t, 120, p.DurationSec)

	p, err = g.ResolveParams(types.MatchParams{Mode: types.ModeLines, TargetLines: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, p.TargetLines)

	_, err = g.ResolveParams(types.MatchParams{Mode: "marathon"})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}
