package world

import "fmt"

// Terrain types for hex tiles.
type Terrain uint8

const (
	TerrainSoil  Terrain = iota // Open ground, walkable
	TerrainLeaf                 // Leaf litter, walkable
	TerrainRock                 // Impassable
	TerrainWater                // Impassable
)

// TerrainName returns the display name of a terrain type.
func TerrainName(t Terrain) string {
	switch t {
	case TerrainSoil:
		return "soil"
	case TerrainLeaf:
		return "leaf litter"
	case TerrainRock:
		return "rock"
	case TerrainWater:
		return "water"
	default:
		return "unknown"
	}
}

// Passable reports whether foragers can stand on the terrain.
func (t Terrain) Passable() bool {
	return t == TerrainSoil || t == TerrainLeaf
}

// Tile represents a single hex on the terrain map.
type Tile struct {
	Coord     HexCoord `json:"coord"`
	Terrain   Terrain  `json:"terrain"`
	Elevation float64  `json:"elevation"` // 0.0 (low) to 1.0 (peak)
}

// Map holds the walkable terrain. Signals are not bounded by it; only agents are.
type Map struct {
	Tiles  map[HexCoord]*Tile `json:"-"`
	Radius int                `json:"radius"`
}

// NewMap creates an empty map with the given radius.
// A hex grid of radius R contains hexes where max(|q|, |r|, |s|) <= R.
func NewMap(radius int) *Map {
	return &Map{
		Tiles:  make(map[HexCoord]*Tile),
		Radius: radius,
	}
}

// Get returns the tile at the given coordinate, or nil if out of bounds.
func (m *Map) Get(coord HexCoord) *Tile {
	return m.Tiles[coord]
}

// Set places a tile at its coordinate.
func (m *Map) Set(t *Tile) {
	m.Tiles[t.Coord] = t
}

// InBounds returns true if the coordinate is within the map radius.
func (m *Map) InBounds(coord HexCoord) bool {
	return Distance(coord, HexCoord{}) <= m.Radius
}

// Passable returns true if the coordinate is in bounds and walkable.
func (m *Map) Passable(coord HexCoord) bool {
	t := m.Tiles[coord]
	return t != nil && t.Terrain.Passable()
}

// TileCount returns the total number of tiles in the map.
func (m *Map) TileCount() int {
	return len(m.Tiles)
}

// TerrainCounts tallies tiles by terrain type.
func (m *Map) TerrainCounts() map[Terrain]int {
	counts := make(map[Terrain]int)
	for _, t := range m.Tiles {
		counts[t.Terrain]++
	}
	return counts
}

// String returns a summary of the map.
func (m *Map) String() string {
	return fmt.Sprintf("Map(radius=%d, tiles=%d)", m.Radius, m.TileCount())
}

// Clear makes an in-bounds tile walkable soil, creating it if missing.
// It reports false for coordinates outside the map.
func (m *Map) Clear(coord HexCoord) bool {
	if !m.InBounds(coord) {
		return false
	}
	t := m.Tiles[coord]
	if t == nil {
		m.Set(&Tile{Coord: coord, Terrain: TerrainSoil})
		return true
	}
	if !t.Terrain.Passable() {
		t.Terrain = TerrainSoil
	}
	return true
}
