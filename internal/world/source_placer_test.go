package world

import "testing"

func TestPlaceSources(t *testing.T) {
	m := Generate(GenConfig{Radius: 16, Seed: 5, WaterLevel: 0.18, RockLevel: 0.8, ClearRadius: 2})
	sites := PlaceSources(m, HexCoord{}, 4, 5, 5)
	if len(sites) != 4 {
		t.Fatalf("placed %d sources, want 4", len(sites))
	}
	for i, s := range sites {
		if !m.Passable(s.Coord) {
			t.Errorf("site %d %v is not walkable", i, s.Coord)
		}
		if d := Distance(s.Coord, HexCoord{}); d < 5 {
			t.Errorf("site %d %v only %d from the nest", i, s.Coord, d)
		}
		for j := 0; j < i; j++ {
			if Distance(s.Coord, sites[j].Coord) < 5 {
				t.Errorf("sites %d and %d are too close", i, j)
			}
		}
		if i > 0 && s.Score > sites[i-1].Score {
			t.Errorf("sites not sorted by score at %d", i)
		}
	}

	again := PlaceSources(m, HexCoord{}, 4, 5, 5)
	for i := range sites {
		if sites[i] != again[i] {
			t.Fatalf("placement not deterministic: %v vs %v", sites, again)
		}
	}
}

func TestPlaceSources_Limits(t *testing.T) {
	m := NewMap(3)
	for _, c := range Disc(HexCoord{}, 3) {
		m.Set(&Tile{Coord: c, Terrain: TerrainSoil})
	}
	if got := PlaceSources(m, HexCoord{}, 0, 1, 1); got != nil {
		t.Errorf("count 0 placed %v", got)
	}
	// Only the outer ring is far enough, and spacing allows few sites there.
	got := PlaceSources(m, HexCoord{}, 50, 3, 1)
	if len(got) == 0 || len(got) >= 18 {
		t.Errorf("placed %d sites on a radius-3 map", len(got))
	}
}

func TestMapClear(t *testing.T) {
	m := NewMap(2)
	m.Set(&Tile{Coord: HexCoord{Q: 1, R: 0}, Terrain: TerrainRock})
	if !m.Clear(HexCoord{Q: 1, R: 0}) || !m.Passable(HexCoord{Q: 1, R: 0}) {
		t.Error("rock tile not cleared")
	}
	if !m.Clear(HexCoord{Q: 0, R: 1}) || !m.Passable(HexCoord{Q: 0, R: 1}) {
		t.Error("missing in-bounds tile not created")
	}
	if m.Clear(HexCoord{Q: 5, R: 0}) {
		t.Error("out-of-bounds tile cleared")
	}
}
