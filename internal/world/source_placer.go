// Food source placement: scores walkable tiles and scatters sources away from
// the nest.
package world

import (
	"math/rand"
	"sort"
)

// SourceSite is a scored candidate cell for a food source.
type SourceSite struct {
	Coord HexCoord
	Score float64 // Desirability score
}

// PlaceSources picks up to count cells for food sources, best first. Sites are
// at least minDist from the nest and from each other. The same map and seed
// always give the same sites.
func PlaceSources(m *Map, nest HexCoord, count, minDist int, seed int64) []SourceSite {
	if count <= 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(seed + 200))

	// Disc order is fixed, so candidates do not depend on map iteration.
	var candidates []SourceSite
	for _, coord := range Disc(HexCoord{}, m.Radius) {
		if Distance(coord, nest) < minDist {
			continue
		}
		s := sourceScore(m, coord)
		if s <= 0 {
			continue
		}
		// Small jitter so equal terrain does not always favour the same corner.
		candidates = append(candidates, SourceSite{Coord: coord, Score: s + rng.Float64()*0.1})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	var sites []SourceSite
	for _, c := range candidates {
		if len(sites) >= count {
			break
		}
		if tooClose(c.Coord, sites, minDist) {
			continue
		}
		sites = append(sites, c)
	}
	return sites
}

// sourceScore evaluates how good a tile is for food. Leaf litter beats bare soil;
// reachable tiles (open neighbours) score higher.
func sourceScore(m *Map, coord HexCoord) float64 {
	t := m.Get(coord)
	if t == nil || !t.Terrain.Passable() {
		return 0
	}

	score := 1.0
	if t.Terrain == TerrainLeaf {
		score += 2.0
	}

	open := 0
	for _, nc := range coord.Neighbors() {
		if m.Passable(nc) {
			open++
		}
	}
	if open == 0 {
		return 0
	}
	score += float64(open) * 0.3
	return score
}

func tooClose(coord HexCoord, existing []SourceSite, minDist int) bool {
	for _, s := range existing {
		if Distance(coord, s.Coord) < minDist {
			return true
		}
	}
	return false
}
