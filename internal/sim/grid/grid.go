// Package grid holds the static per-map collision grid and tile math.
// A Grid is immutable after map load; it is safe for concurrent reads.
package grid

import "math"

const DefaultTileSize = 32.0

type Tile struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Grid struct {
	cols, rows int
	tileSize   float64
	blocked    []bool
}

func New(cols, rows int, tileSize float64) *Grid {
	if cols <= 0 {
		cols = 1
	}
	if rows <= 0 {
		rows = 1
	}
	if tileSize <= 0 {
		tileSize = DefaultTileSize
	}
	return &Grid{
		cols:     cols,
		rows:     rows,
		tileSize: tileSize,
		blocked:  make([]bool, cols*rows),
	}
}

func (g *Grid) Cols() int         { return g.cols }
func (g *Grid) Rows() int         { return g.rows }
func (g *Grid) TileSize() float64 { return g.tileSize }

func (g *Grid) index(tx, ty int) int { return ty*g.cols + tx }

func (g *Grid) InBounds(tx, ty int) bool {
	return g != nil && tx >= 0 && ty >= 0 && tx < g.cols && ty < g.rows
}

func (g *Grid) Blocked(tx, ty int) bool {
	if !g.InBounds(tx, ty) {
		return true
	}
	return g.blocked[g.index(tx, ty)]
}

// SetBlocked is for map loading only; a Grid must not change once a room
// starts ticking on it.
func (g *Grid) SetBlocked(tx, ty int, v bool) {
	if !g.InBounds(tx, ty) {
		return
	}
	g.blocked[g.index(tx, ty)] = v
}

// TileToWorld returns the world-space center of a tile.
func (g *Grid) TileToWorld(t Tile) (x, y float64) {
	return (float64(t.X) + 0.5) * g.tileSize, (float64(t.Y) + 0.5) * g.tileSize
}

// WorldToTile maps a world position to its containing tile. Positions are
// clamped to the map extent so entities sitting exactly on the outer edge
// resolve to a real tile.
func (g *Grid) WorldToTile(x, y float64) Tile {
	maxX := float64(g.cols)*g.tileSize - 1
	maxY := float64(g.rows)*g.tileSize - 1
	x = clamp(x, 0, maxX)
	y = clamp(y, 0, maxY)
	return Tile{X: int(x / g.tileSize), Y: int(y / g.tileSize)}
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	return math.Min(math.Max(v, lo), hi)
}

// Dist is the straight-line distance between two world points.
func Dist(ax, ay, bx, by float64) float64 {
	return math.Hypot(bx-ax, by-ay)
}
