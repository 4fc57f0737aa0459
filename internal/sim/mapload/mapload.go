// Package mapload reads a map pack (yaml) into the collision grid and zone
// bounds the simulation consumes. Tile art and asset handling live outside
// this server; only walkability and zone rectangles survive into the pack.
package mapload

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"tileworld.ai/internal/sim/grid"
	"tileworld.ai/internal/sim/zones"
)

type ZoneSpec struct {
	ID string `yaml:"id"`
	// Tile-indexed rectangle, max edges exclusive.
	MinX int `yaml:"min_x"`
	MinY int `yaml:"min_y"`
	MaxX int `yaml:"max_x"`
	MaxY int `yaml:"max_y"`
}

type Pack struct {
	Name     string  `yaml:"name"`
	TileSize float64 `yaml:"tile_size"`
	// Collision rows, top to bottom; '#' blocked, anything else walkable.
	Collision []string   `yaml:"collision"`
	Zones     []ZoneSpec `yaml:"zones"`
	Spawn     [2]int     `yaml:"spawn"` // spawn tile
}

type Map struct {
	Name  string
	Grid  *grid.Grid
	Zones []zones.Bounds
	Spawn grid.Tile
}

func Load(path string) (*Map, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Pack
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("map pack: %w", err)
	}
	return Build(p)
}

func Build(p Pack) (*Map, error) {
	if len(p.Collision) == 0 {
		return nil, fmt.Errorf("map pack: empty collision grid")
	}
	cols := len(p.Collision[0])
	rows := len(p.Collision)
	for i, row := range p.Collision {
		if len(row) != cols {
			return nil, fmt.Errorf("map pack: collision row %d has %d tiles, want %d", i, len(row), cols)
		}
	}
	if p.TileSize <= 0 {
		p.TileSize = grid.DefaultTileSize
	}

	g := grid.New(cols, rows, p.TileSize)
	for y, row := range p.Collision {
		for x, c := range row {
			if c == '#' {
				g.SetBlocked(x, y, true)
			}
		}
	}

	// Zone order in the pack is the evaluation order of the tracker.
	zs := make([]zones.Bounds, 0, len(p.Zones))
	seen := map[string]bool{}
	for _, z := range p.Zones {
		id := strings.TrimSpace(z.ID)
		if id == "" {
			return nil, fmt.Errorf("map pack: zone with empty id")
		}
		if seen[id] {
			return nil, fmt.Errorf("map pack: duplicate zone id %q", id)
		}
		seen[id] = true
		if z.MaxX <= z.MinX || z.MaxY <= z.MinY {
			return nil, fmt.Errorf("map pack: zone %q has empty bounds", id)
		}
		zs = append(zs, zones.Bounds{
			ID:   id,
			MinX: float64(z.MinX) * p.TileSize,
			MinY: float64(z.MinY) * p.TileSize,
			MaxX: float64(z.MaxX) * p.TileSize,
			MaxY: float64(z.MaxY) * p.TileSize,
		})
	}

	spawn := grid.Tile{X: p.Spawn[0], Y: p.Spawn[1]}
	if !g.InBounds(spawn.X, spawn.Y) || g.Blocked(spawn.X, spawn.Y) {
		return nil, fmt.Errorf("map pack: spawn tile %v blocked or out of bounds", spawn)
	}

	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = "map"
	}
	return &Map{Name: name, Grid: g, Zones: zs, Spawn: spawn}, nil
}

// Default is a small built-in map for tests and fresh installs: an open
// 20x15 field with a walled-off corner and two zones.
func Default() *Map {
	p := Pack{
		Name:     "meadow",
		TileSize: 32,
		Collision: []string{
			"....................",
			"....................",
			"......####..........",
			"......#..#..........",
			"......####..........",
			"....................",
			"....................",
			"....................",
			"....................",
			"....................",
			"....................",
			"....................",
			"....................",
			"....................",
			"....................",
		},
		Zones: []ZoneSpec{
			{ID: "plaza", MinX: 0, MinY: 0, MaxX: 10, MaxY: 8},
			{ID: "garden", MinX: 10, MinY: 0, MaxX: 20, MaxY: 15},
		},
		Spawn: [2]int{1, 1},
	}
	m, err := Build(p)
	if err != nil {
		panic(err)
	}
	return m
}
