// Stress test comparing CPU and GPU broad-phase, raw and through World.Step
package main

import (
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"blockphys/internal/components"
	"blockphys/internal/compute"
	"blockphys/internal/engine"
	"blockphys/internal/physics"
	"blockphys/internal/world"

	"github.com/go-gl/mathgl/mgl64"
)

func main() {
	counts := []int{100, 500, 1000, 2000, 5000}

	ctx, err := compute.New()
	if err != nil {
		fmt.Printf("GPU unavailable: %v\n\n", err)
	} else {
		fmt.Printf("GPU: %s\n\n", ctx.Info())
		for _, n := range counts {
			testBroadPhase(ctx, n)
		}
		ctx.Release()
		fmt.Println()
	}

	for _, accel := range []physics.Acceleration{physics.AccelCPU, physics.AccelAuto} {
		env, err := physics.Init(physics.Config{Acceleration: accel})
		if err != nil {
			log.Fatalf("Failed to init physics: %v", err)
		}
		for _, n := range counts {
			testWorldStep(env, accel, n)
		}
		env.Close()
	}
}

// randomBounds scatters unit-ish boxes in a cube that grows with count to
// keep density reasonable.
func randomBounds(count int) []compute.Bounds {
	r := rand.New(rand.NewPCG(42, 0))
	spawnSize := float32(50.0) + float32(count)/100.0
	bounds := make([]compute.Bounds, count)
	for i := range bounds {
		x := r.Float32()*spawnSize - spawnSize/2
		y := r.Float32()*spawnSize - spawnSize/2
		z := r.Float32()*spawnSize - spawnSize/2
		h := 0.25 + r.Float32()*0.25
		bounds[i] = compute.Bounds{
			MinX: x - h, MinY: y - h, MinZ: z - h,
			MaxX: x + h, MaxY: y + h, MaxZ: z + h,
		}
	}
	return bounds
}

func testBroadPhase(ctx *compute.Context, count int) {
	bounds := randomBounds(count)

	bp, err := compute.NewBroadPhase(ctx, uint32(count), uint32(count*20))
	if err != nil {
		fmt.Printf("%5d boxes: GPU ERROR: %v\n", count, err)
		return
	}
	defer bp.Release()

	// Warm up
	bp.DetectPairs(bounds)

	const iterations = 10
	gpuStart := time.Now()
	var gpuPairs []compute.Pair
	for range iterations {
		gpuPairs, _ = bp.DetectPairs(bounds)
	}
	gpuTime := time.Since(gpuStart) / iterations

	// naive O(n²)
	cpuStart := time.Now()
	var cpuPairs int
	for range iterations {
		cpuPairs = 0
		for i := range bounds {
			for j := i + 1; j < len(bounds); j++ {
				a, b := bounds[i], bounds[j]
				if a.MinX <= b.MaxX && a.MaxX >= b.MinX &&
					a.MinY <= b.MaxY && a.MaxY >= b.MinY &&
					a.MinZ <= b.MaxZ && a.MaxZ >= b.MinZ {
					cpuPairs++
				}
			}
		}
	}
	cpuTime := time.Since(cpuStart) / iterations

	speedup := float64(cpuTime) / float64(gpuTime)
	fmt.Printf("%5d boxes: GPU %8v (%4d pairs) | CPU %10v (%4d pairs) | %.1fx speedup\n",
		count, gpuTime.Round(time.Microsecond), len(gpuPairs),
		cpuTime.Round(time.Microsecond), cpuPairs, speedup)
}

func testWorldStep(env *physics.Env, accel physics.Acceleration, count int) {
	policy := world.DefaultPolicy()
	policy.KillHeightEnabled = false
	w, err := world.New(env, engine.NewInstance("stress"), policy)
	if err != nil {
		fmt.Printf("%5d blocks: %s ERROR: %v\n", count, accel, err)
		return
	}
	defer w.Release()

	r := rand.New(rand.NewPCG(42, 0))
	side := 20 + float64(count)/50
	size := mgl64.Vec3{0.5, 0.5, 0.5}
	for range count {
		pos := mgl64.Vec3{r.Float64()*side - side/2, 1 + r.Float64()*side, r.Float64()*side - side/2}
		if _, err := components.NewBlockObject(w, pos, size, 1, false, components.Stone); err != nil {
			fmt.Printf("%5d blocks: %s ERROR: %v\n", count, accel, err)
			return
		}
	}

	const steps = 60
	start := time.Now()
	for range steps {
		w.Step(1.0 / 60)
	}
	perStep := time.Since(start) / steps

	mode := "CPU"
	if w.Scene().UsingGPU() {
		mode = "GPU"
	}
	fmt.Printf("%5d blocks: %-4s %-3s step %8v\n", count, accel, mode, perStep.Round(time.Microsecond))
}
