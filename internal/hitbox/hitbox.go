// Package hitbox shows the collision volume of a world object as a hollow
// lattice of small shulkers.
//
// The object's bounds are sampled on a regular grid with a tiny probe box.
// Grid points where the probe overlaps the object's shapes are kept, and
// of those only the ones with at least one empty face neighbour get a
// marker. The probe is never added to the scene, so sampling does not
// disturb the simulation.
package hitbox

import (
	"iter"
	"log"
	"math"

	"blockphys/internal/coords"
	"blockphys/internal/engine"
	"blockphys/internal/physics"
	"blockphys/internal/world"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl64"
)

const DefaultResolution = 0.3

type Options struct {
	// Grid spacing in world units.
	Resolution float64
	// Edge length of the probe box.
	ProbeSize float64
	// Scale attribute of each marker shulker.
	MarkerScale float64
}

func DefaultOptions() Options {
	return Options{
		Resolution:  DefaultResolution,
		ProbeSize:   0.01,
		MarkerScale: 0.1,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if !(o.Resolution > 0) {
		o.Resolution = d.Resolution
	}
	if !(o.ProbeSize > 0) {
		o.ProbeSize = d.ProbeSize
	}
	if !(o.MarkerScale > 0) {
		o.MarkerScale = d.MarkerScale
	}
	return o
}

// Cell is a grid coordinate: a position divided by the resolution and
// rounded to the nearest integer.
type Cell struct {
	X, Y, Z int
}

func cellOf(p v3.Vec, res float64) Cell {
	return Cell{
		X: int(math.Round(p.X / res)),
		Y: int(math.Round(p.Y / res)),
		Z: int(math.Round(p.Z / res)),
	}
}

func (c Cell) add(dx, dy, dz int) Cell {
	return Cell{c.X + dx, c.Y + dy, c.Z + dz}
}

// Pos is the world position of the cell.
func (c Cell) Pos(res float64) mgl64.Vec3 {
	return mgl64.Vec3{float64(c.X) * res, float64(c.Y) * res, float64(c.Z) * res}
}

// Result is what Generate spawned. The caller owns the entities and removes
// them when the hitbox is no longer wanted.
type Result struct {
	Full     []Cell
	Shell    []Cell
	Entities []*engine.Entity

	mounts []*mount
}

// Mounted counts markers already riding their holders.
func (r *Result) Mounted() int {
	n := 0
	for _, m := range r.mounts {
		if m.State() == attached {
			n++
		}
	}
	return n
}

// Bounds is the world AABB of the object's shapes. ok is false when the
// object has no box shape or the box has no volume.
func Bounds(obj world.Object) (box sdf.Box3, ok bool) {
	var aabb physics.AABB
	obj.Base().Edit(func(body *physics.RigidBody) {
		aabb, ok = body.WorldBounds()
	})
	if !ok {
		return sdf.Box3{}, false
	}
	box = sdf.Box3{Min: toV3(aabb.Min), Max: toV3(aabb.Max)}
	size := box.Size()
	if !(size.X > 0 && size.Y > 0 && size.Z > 0) {
		return sdf.Box3{}, false
	}
	return box, true
}

func toV3(v rl.Vector3) v3.Vec {
	return v3.Vec{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
}

// Points walks the grid points inside box, x fastest, then y, then z.
// Both faces of the box are included when they fall on the grid.
func Points(box sdf.Box3, res float64) iter.Seq[v3.Vec] {
	size := box.Size()
	steps := func(extent float64) int {
		return int(math.Floor(extent/res+1e-9)) + 1
	}
	nx, ny, nz := steps(size.X), steps(size.Y), steps(size.Z)

	return func(yield func(v3.Vec) bool) {
		for k := range nz {
			for j := range ny {
				for i := range nx {
					p := v3.Vec{
						X: box.Min.X + float64(i)*res,
						Y: box.Min.Y + float64(j)*res,
						Z: box.Min.Z + float64(k)*res,
					}
					if !yield(p) {
						return
					}
				}
			}
		}
	}
}

// Sample returns the grid cells whose points overlap obj, in walk order.
func Sample(w *world.World, obj world.Object, opts Options) []Cell {
	opts = opts.withDefaults()
	box, ok := Bounds(obj)
	if !ok {
		return nil
	}

	probe, err := newProbe(w.Env(), opts.ProbeSize)
	if err != nil {
		log.Printf("Hitbox: failed to create probe: %v", err)
		return nil
	}
	defer probe.Release()

	var cells []Cell
	seen := make(map[Cell]struct{})
	obj.Base().Edit(func(body *physics.RigidBody) {
		for p := range Points(box, opts.Resolution) {
			probe.SetGlobalPose(physics.NewTransform(coords.ToVec(mgl64.Vec3{p.X, p.Y, p.Z})))
			if !physics.PairTest(body, probe) {
				continue
			}
			c := cellOf(p, opts.Resolution)
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			cells = append(cells, c)
		}
	})
	return cells
}

// newProbe builds a tiny box body that only ever takes part in pair tests.
func newProbe(env *physics.Env, edge float64) (*physics.RigidBody, error) {
	h := float32(edge / 2)
	shape, err := env.CreateShape(physics.BoxGeometry{HalfExtents: rl.Vector3{X: h, Y: h, Z: h}}, nil)
	if err != nil {
		return nil, err
	}
	defer shape.Release()

	probe := env.CreateDynamic(physics.NewTransform(rl.Vector3{}))
	probe.SetGravityEnabled(false)
	if err := probe.AttachShape(shape); err != nil {
		probe.Release()
		return nil, err
	}
	return probe, nil
}

var faces = [6][3]int{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

// Shell keeps the cells with at least one missing face neighbour.
func Shell(cells []Cell) []Cell {
	set := make(map[Cell]struct{}, len(cells))
	for _, c := range cells {
		set[c] = struct{}{}
	}
	var shell []Cell
	for _, c := range cells {
		for _, f := range faces {
			if _, ok := set[c.add(f[0], f[1], f[2])]; !ok {
				shell = append(shell, c)
				break
			}
		}
	}
	return shell
}

// Generate samples obj and spawns a holder and a marker for every shell
// cell. It returns at once; markers mount on their holders over the next
// instance ticks.
func Generate(w *world.World, obj world.Object, opts Options) *Result {
	opts = opts.withDefaults()
	r := &Result{Full: Sample(w, obj, opts)}
	r.Shell = Shell(r.Full)

	inst := w.Instance()
	for _, c := range r.Shell {
		holder := engine.NewEntity(engine.TextDisplay)
		holder.SetNoGravity(true)

		marker := engine.NewEntity(engine.ShulkerEntity)
		marker.SetNoGravity(true)
		marker.SetScaleAttribute(opts.MarkerScale)

		r.Entities = append(r.Entities, holder, marker)
		m := &mount{inst: inst, pos: c.Pos(opts.Resolution), holder: holder, marker: marker}
		r.mounts = append(r.mounts, m)
		m.start()
	}

	if len(r.Shell) > 0 {
		log.Printf("Hitbox: %d of %d cells on the shell", len(r.Shell), len(r.Full))
	}
	return r
}
