// Package world provides the hex grid coordinate primitive and the bounded terrain map
// foragers walk on. Uses axial coordinates (q, r) for the hex grid.
package world

import "fmt"

// HexCoord represents a position on the hex grid using axial coordinates.
// The third cube coordinate s is derived: s = -q - r.
type HexCoord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// S returns the implicit third cube coordinate.
func (h HexCoord) S() int {
	return -h.Q - h.R
}

// String formats the coordinate as "(q,r)".
func (h HexCoord) String() string {
	return fmt.Sprintf("(%d,%d)", h.Q, h.R)
}

// Less orders coordinates by Q then R. Used wherever output must not depend on map order.
func (h HexCoord) Less(o HexCoord) bool {
	if h.Q != o.Q {
		return h.Q < o.Q
	}
	return h.R < o.R
}

// HexNeighborDirections defines the six neighbor offsets in axial coordinates.
// The order is fixed: every tie-break in the signal engine depends on it.
var HexNeighborDirections = [6]HexCoord{
	{Q: 1, R: 0},
	{Q: 1, R: -1},
	{Q: 0, R: -1},
	{Q: -1, R: 0},
	{Q: -1, R: 1},
	{Q: 0, R: 1},
}

// Neighbors returns the six adjacent hex coordinates.
func (h HexCoord) Neighbors() [6]HexCoord {
	var result [6]HexCoord
	for i, dir := range HexNeighborDirections {
		result[i] = HexCoord{Q: h.Q + dir.Q, R: h.R + dir.R}
	}
	return result
}

// Neighbor returns the adjacent coordinate in direction dir (0–5).
func (h HexCoord) Neighbor(dir int) HexCoord {
	d := HexNeighborDirections[((dir%6)+6)%6]
	return HexCoord{Q: h.Q + d.Q, R: h.R + d.R}
}

// Distance returns the hex distance between two coordinates.
func Distance(a, b HexCoord) int {
	dq := abs(a.Q - b.Q)
	dr := abs(a.R - b.R)
	ds := abs(a.S() - b.S())
	// Max of the three absolute differences in cube coordinates.
	return max(dq, dr, ds)
}

// Ring returns all coordinates at exactly distance radius from center,
// walking the ring in neighbor-direction order.
func Ring(center HexCoord, radius int) []HexCoord {
	if radius <= 0 {
		return []HexCoord{center}
	}
	out := make([]HexCoord, 0, 6*radius)
	// Start at the corner reached by walking direction 4 radius times.
	cur := HexCoord{
		Q: center.Q + HexNeighborDirections[4].Q*radius,
		R: center.R + HexNeighborDirections[4].R*radius,
	}
	for side := 0; side < 6; side++ {
		for step := 0; step < radius; step++ {
			out = append(out, cur)
			cur = cur.Neighbor(side)
		}
	}
	return out
}

// Disc returns every coordinate within radius of center, inclusive.
func Disc(center HexCoord, radius int) []HexCoord {
	out := make([]HexCoord, 0, 1+3*radius*(radius+1))
	for q := -radius; q <= radius; q++ {
		for r := max(-radius, -q-radius); r <= min(radius, -q+radius); r++ {
			out = append(out, HexCoord{Q: center.Q + q, R: center.R + r})
		}
	}
	return out
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
