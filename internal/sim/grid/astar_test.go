package grid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// gridFromRows builds a grid from an ascii picture: '#' is blocked.
func gridFromRows(t *testing.T, rows []string) *Grid {
	t.Helper()
	g := New(len(rows[0]), len(rows), 32)
	for y, row := range rows {
		for x, c := range row {
			if c == '#' {
				g.SetBlocked(x, y, true)
			}
		}
	}
	return g
}

func TestFindPathStraight(t *testing.T) {
	g := gridFromRows(t, []string{
		".....",
		".....",
		".....",
	})
	path := g.FindPath(Tile{0, 0}, Tile{4, 0}, 0)
	require.Len(t, path, 4)
	require.Equal(t, Tile{4, 0}, path[len(path)-1])
	// Start is exclusive.
	require.NotContains(t, path, Tile{0, 0})
}

func TestFindPathAroundWall(t *testing.T) {
	g := gridFromRows(t, []string{
		".....",
		".###.",
		".....",
	})
	path := g.FindPath(Tile{0, 1}, Tile{4, 1}, 0)
	require.NotNil(t, path)
	require.Equal(t, Tile{4, 1}, path[len(path)-1])
	prev := Tile{0, 1}
	for _, step := range path {
		require.False(t, g.Blocked(step.X, step.Y), "path passes through blocked tile %v", step)
		require.Equal(t, 1, manhattan(prev, step), "non-adjacent step %v -> %v", prev, step)
		prev = step
	}
}

func TestFindPathStartEqualsGoal(t *testing.T) {
	g := gridFromRows(t, []string{"...", "..."})
	path := g.FindPath(Tile{1, 1}, Tile{1, 1}, 0)
	require.NotNil(t, path)
	require.Empty(t, path)
}

func TestFindPathBlockedGoal(t *testing.T) {
	g := gridFromRows(t, []string{
		"...",
		".#.",
	})
	require.Nil(t, g.FindPath(Tile{0, 0}, Tile{1, 1}, 0))
	require.Nil(t, g.FindPath(Tile{0, 0}, Tile{5, 5}, 0))
	require.Nil(t, g.FindPath(Tile{-1, 0}, Tile{2, 0}, 0))
}

func TestFindPathUnreachable(t *testing.T) {
	g := gridFromRows(t, []string{
		"..#..",
		"..#..",
		"..#..",
	})
	require.Nil(t, g.FindPath(Tile{0, 0}, Tile{4, 0}, 0))
}

func TestFindPathNodeBudget(t *testing.T) {
	rows := make([]string, 64)
	for i := range rows {
		rows[i] = "................................................................"
	}
	g := gridFromRows(t, rows)
	// A tiny budget exhausts before reaching the far corner.
	require.Nil(t, g.FindPath(Tile{0, 0}, Tile{63, 63}, 8))
	// The default budget covers the whole map.
	require.NotNil(t, g.FindPath(Tile{0, 0}, Tile{63, 63}, 0))
}

func TestFindPathNeverBlocked(t *testing.T) {
	g := gridFromRows(t, []string{
		"..#....",
		"..#.#..",
		"....#..",
		".####..",
		".......",
	})
	for _, goal := range []Tile{{6, 0}, {6, 4}, {0, 4}, {5, 2}} {
		path := g.FindPath(Tile{0, 0}, goal, 0)
		require.NotNil(t, path, "goal %v", goal)
		for _, step := range path {
			require.False(t, g.Blocked(step.X, step.Y))
		}
	}
}
