package physics

import (
	"cmp"
	"log"
	"slices"

	"blockphys/internal/compute"
)

// Spatial grid cell size - actors within same or neighboring cells are checked
const CellSize = 5.0

// Actors spanning more cells than this skip the grid and are tested
// against everything.
const maxCellsPerActor = 64

// Cell key for spatial hashing
type CellKey struct {
	X, Y, Z int
}

func posToCell(x, y, z float32) CellKey {
	return CellKey{
		X: floorDiv(x),
		Y: floorDiv(y),
		Z: floorDiv(z),
	}
}

func floorDiv(v float32) int {
	c := int(v / CellSize)
	if v < 0 && float32(c)*CellSize != v {
		c--
	}
	return c
}

type proxy struct {
	body   *RigidBody
	bounds AABB
}

// broadPhase returns candidate pairs whose bounds overlap and that the
// solver should look at. Runs with s.mu held.
func (s *Scene) broadPhase() [][2]*RigidBody {
	proxies := make([]proxy, 0, len(s.actors))
	for _, b := range s.actors {
		if bb, ok := b.WorldBounds(); ok {
			proxies = append(proxies, proxy{body: b, bounds: bb})
		}
	}

	wasUsingGPU := s.usingGPU
	s.usingGPU = s.gpu != nil && len(proxies) >= s.gpuThreshold && len(proxies) <= s.gpu.MaxBounds()
	if s.usingGPU != wasUsingGPU {
		state := "OFF"
		if s.usingGPU {
			state = "ON"
		}
		log.Printf("Physics: GPU broad-phase %s (%d actors)", state, len(proxies))
	}

	var candidates [][2]int
	if s.usingGPU {
		var err error
		candidates, err = gpuPairs(s.gpu, proxies)
		if err != nil {
			log.Printf("Physics: GPU broad-phase failed, using CPU this step (%v)", err)
			candidates = gridPairs(proxies)
		}
	} else {
		candidates = gridPairs(proxies)
	}

	pairs := make([][2]*RigidBody, 0, len(candidates))
	for _, c := range candidates {
		a, b := proxies[c[0]].body, proxies[c[1]].body
		if !needsSolving(a, b) {
			continue
		}
		pairs = append(pairs, [2]*RigidBody{a, b})
	}
	return pairs
}

// needsSolving drops pairs where nothing can move.
func needsSolving(a, b *RigidBody) bool {
	if a.solverInvMass() == 0 && b.solverInvMass() == 0 {
		return false
	}
	if a.sleeping && b.sleeping {
		return false
	}
	if (a.sleeping && b.solverInvMass() == 0) || (b.sleeping && a.solverInvMass() == 0) {
		return false
	}
	return true
}

// gridPairs buckets proxies by the grid cells their bounds cover and tests
// bounds within each bucket.
func gridPairs(proxies []proxy) [][2]int {
	grid := make(map[CellKey][]int)
	var large []int

	for i, p := range proxies {
		lo := posToCell(p.bounds.Min.X, p.bounds.Min.Y, p.bounds.Min.Z)
		hi := posToCell(p.bounds.Max.X, p.bounds.Max.Y, p.bounds.Max.Z)
		cells := (hi.X - lo.X + 1) * (hi.Y - lo.Y + 1) * (hi.Z - lo.Z + 1)
		if cells > maxCellsPerActor || cells <= 0 {
			large = append(large, i)
			continue
		}
		for x := lo.X; x <= hi.X; x++ {
			for y := lo.Y; y <= hi.Y; y++ {
				for z := lo.Z; z <= hi.Z; z++ {
					key := CellKey{x, y, z}
					grid[key] = append(grid[key], i)
				}
			}
		}
	}

	checked := make(map[[2]int]bool)
	var out [][2]int
	test := func(i, j int) {
		if i == j {
			return
		}
		if i > j {
			i, j = j, i
		}
		key := [2]int{i, j}
		if checked[key] {
			return
		}
		checked[key] = true
		if proxies[i].bounds.Intersects(proxies[j].bounds) {
			out = append(out, key)
		}
	}

	for _, bucket := range grid {
		for a := 0; a < len(bucket); a++ {
			for b := a + 1; b < len(bucket); b++ {
				test(bucket[a], bucket[b])
			}
		}
	}
	for _, i := range large {
		for j := range proxies {
			test(i, j)
		}
	}

	// map order is random; solve in a stable order
	slices.SortFunc(out, func(a, b [2]int) int {
		if c := cmp.Compare(a[0], b[0]); c != 0 {
			return c
		}
		return cmp.Compare(a[1], b[1])
	})
	return out
}

func gpuPairs(bp *compute.BroadPhase, proxies []proxy) ([][2]int, error) {
	bounds := make([]compute.Bounds, len(proxies))
	for i, p := range proxies {
		bounds[i] = p.bounds.bounds()
	}
	pairs, err := bp.DetectPairs(bounds)
	if err != nil {
		return nil, err
	}
	out := make([][2]int, 0, len(pairs))
	for _, p := range pairs {
		if int(p.A) < len(proxies) && int(p.B) < len(proxies) {
			out = append(out, [2]int{int(p.A), int(p.B)})
		}
	}
	return out, nil
}
