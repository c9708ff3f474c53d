// Terrain generation using layered simplex noise.
package world

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds terrain generation parameters.
type GenConfig struct {
	Radius      int     // Hex grid radius
	Seed        int64   // Random seed (0 = random)
	WaterLevel  float64 // Elevation below which hexes are water (0.0–1.0)
	RockLevel   float64 // Elevation above which hexes are rock (0.0–1.0)
	ClearRadius int     // Hexes around the origin that are always open (nest site)
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Radius:      24,
		Seed:        0,
		WaterLevel:  0.18,
		RockLevel:   0.80,
		ClearRadius: 3,
	}
}

// SmallTestConfig returns a tiny map for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Radius:      6,
		Seed:        42,
		WaterLevel:  0.15,
		RockLevel:   0.85,
		ClearRadius: 2,
	}
}

// Generate creates a terrain map. The same seed always yields the same map.
func Generate(cfg GenConfig) *Map {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	elevNoise := opensimplex.NewNormalized(seed)
	litterNoise := opensimplex.NewNormalized(seed + 1)

	m := NewMap(cfg.Radius)
	for _, coord := range Disc(HexCoord{}, cfg.Radius) {
		// Hex axial → cartesian: x = q + r*0.5, y = r * sqrt(3)/2
		x := float64(coord.Q) + float64(coord.R)*0.5
		y := float64(coord.R) * math.Sqrt(3.0) / 2.0

		elev := octaveNoise(elevNoise, x, y, 4, 0.09, 0.5)
		litter := octaveNoise(litterNoise, x, y, 2, 0.15, 0.5)

		terrain := TerrainSoil
		switch {
		case Distance(coord, HexCoord{}) <= cfg.ClearRadius:
			terrain = TerrainSoil
		case elev < cfg.WaterLevel:
			terrain = TerrainWater
		case elev > cfg.RockLevel:
			terrain = TerrainRock
		case litter > 0.6:
			terrain = TerrainLeaf
		}

		m.Set(&Tile{Coord: coord, Terrain: terrain, Elevation: elev})
	}
	return m
}

// octaveNoise sums several octaves of normalized noise and rescales to 0–1.
func octaveNoise(n opensimplex.Noise, x, y float64, octaves int, freq, persistence float64) float64 {
	total := 0.0
	amp := 1.0
	maxAmp := 0.0
	for i := 0; i < octaves; i++ {
		total += n.Eval2(x*freq, y*freq) * amp
		maxAmp += amp
		amp *= persistence
		freq *= 2
	}
	return total / maxAmp
}
