package signals

import (
	"fmt"
	"testing"

	"github.com/talgya/mini-colony/internal/world"
)

// seedDisc fills a disc of the given radius with a smooth concentration bump.
func seedDisc(m *SignalMap, kind KindHandle, radius int) {
	for _, c := range world.Disc(world.HexCoord{}, radius) {
		d := world.Distance(c, world.HexCoord{})
		_ = m.EnqueueEmission(EmissionRequest{Cell: c, Kind: kind, Amount: float64(radius-d) + 1})
	}
}

func BenchmarkFieldDiffuse(b *testing.B) {
	for _, radius := range []int{8, 32, 64} {
		b.Run(fmt.Sprintf("radius=%d", radius), func(b *testing.B) {
			p := Params{DiffusionRate: 0.4, DecayRate: 0, MaxConcentration: 1000}
			f := NewField(p, DefaultEpsilon)
			for _, c := range world.Disc(world.HexCoord{}, radius) {
				f.Set(c, 10)
			}
			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_ = f.Diffuse()
			}
		})
	}
}

func BenchmarkSignalMapTick(b *testing.B) {
	for _, kinds := range []int{1, 4, 16} {
		b.Run(fmt.Sprintf("kinds=%d", kinds), func(b *testing.B) {
			r := NewRegistry()
			for k := 0; k < kinds; k++ {
				r.MustRegister(fmt.Sprintf("k%d", k), Params{DiffusionRate: 0.3, DecayRate: 0.01, MaxConcentration: 1000})
			}
			m := NewSignalMap(r, DefaultOptions())
			for k := 0; k < kinds; k++ {
				seedDisc(m, KindHandle(k), 24)
			}
			m.Tick()
			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				m.Tick()
			}
		})
	}
}

func BenchmarkStrongestNeighbor(b *testing.B) {
	r := NewRegistry()
	h := r.MustRegister("pheromone", pheromone)
	m := NewSignalMap(r, DefaultOptions())
	seedDisc(m, h, 16)
	m.Flush()
	cells := world.Disc(world.HexCoord{}, 16)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _, _ = m.StrongestNeighbor(h, cells[i%len(cells)], GradientOptions{})
	}
}
