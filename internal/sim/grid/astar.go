package grid

import "container/heap"

// DefaultNodeBudget bounds the open/closed set so a pathological map cannot
// stall the room loop.
const DefaultNodeBudget = 4096

var neighborOffsets = [4]Tile{
	{X: 0, Y: -1},
	{X: 1, Y: 0},
	{X: 0, Y: 1},
	{X: -1, Y: 0},
}

type pathNode struct {
	tile   Tile
	g      int
	f      int
	index  int
	parent *pathNode
}

type pathQueue []*pathNode

func (pq pathQueue) Len() int           { return len(pq) }
func (pq pathQueue) Less(i, j int) bool { return pq[i].f < pq[j].f }
func (pq pathQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *pathQueue) Push(x any) {
	n := len(*pq)
	item := x.(*pathNode)
	item.index = n
	*pq = append(*pq, item)
}

func (pq *pathQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

func manhattan(a, b Tile) int {
	return absInt(a.X-b.X) + absInt(a.Y-b.Y)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// FindPath runs A* over 4-directional neighbors with unit step cost and a
// Manhattan heuristic. It returns nil when the goal is blocked or
// out-of-bounds, or when the node budget runs out before the goal is
// reached; an empty (non-nil) path when start equals goal; otherwise the
// ordered tiles from start (exclusive) to goal (inclusive). Open-set ties
// break on the first-found lowest f-score.
func (g *Grid) FindPath(start, goal Tile, budget int) []Tile {
	if budget <= 0 {
		budget = DefaultNodeBudget
	}
	if !g.InBounds(goal.X, goal.Y) || g.Blocked(goal.X, goal.Y) {
		return nil
	}
	if !g.InBounds(start.X, start.Y) {
		return nil
	}
	if start == goal {
		return []Tile{}
	}

	open := &pathQueue{}
	heap.Init(open)
	heap.Push(open, &pathNode{tile: start, g: 0, f: manhattan(start, goal)})
	gScore := map[int]int{g.index(start.X, start.Y): 0}
	closed := make(map[int]struct{})
	explored := 0

	for open.Len() > 0 {
		current := heap.Pop(open).(*pathNode)
		idx := g.index(current.tile.X, current.tile.Y)
		if _, done := closed[idx]; done {
			continue
		}
		closed[idx] = struct{}{}

		if current.tile == goal {
			return rebuild(current)
		}

		explored++
		if explored >= budget {
			return nil
		}

		for _, d := range neighborOffsets {
			next := Tile{X: current.tile.X + d.X, Y: current.tile.Y + d.Y}
			if !g.InBounds(next.X, next.Y) || g.Blocked(next.X, next.Y) {
				continue
			}
			nIdx := g.index(next.X, next.Y)
			if _, done := closed[nIdx]; done {
				continue
			}
			tentative := current.g + 1
			if best, seen := gScore[nIdx]; seen && tentative >= best {
				continue
			}
			gScore[nIdx] = tentative
			heap.Push(open, &pathNode{
				tile:   next,
				g:      tentative,
				f:      tentative + manhattan(next, goal),
				parent: current,
			})
		}
	}
	return nil
}

func rebuild(end *pathNode) []Tile {
	n := 0
	for p := end; p.parent != nil; p = p.parent {
		n++
	}
	path := make([]Tile, n)
	for p := end; p.parent != nil; p = p.parent {
		n--
		path[n] = p.tile
	}
	return path
}
