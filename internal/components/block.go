package components

import (
	"fmt"
	"log"
	"math/rand/v2"
	"sync"

	"blockphys/internal/coords"
	"blockphys/internal/engine"
	"blockphys/internal/physics"
	"blockphys/internal/world"

	"github.com/go-gl/mathgl/mgl64"
)

// Block is a namespaced block key with optional state, for example
// "minecraft:oak_log[axis=y]".
type Block string

const (
	DiamondBlock Block = "minecraft:diamond_block"
	Stone        Block = "minecraft:stone"
	OakLog       Block = "minecraft:oak_log"
)

// Damping for a settling feel.
const (
	BlockLinearDamping  = 0.3
	BlockAngularDamping = 0.1
)

// BlockObject is a box-shaped world object rendered as a scaled item display.
type BlockObject struct {
	world.BaseObject

	block   Block
	visible bool

	mu       sync.Mutex
	scale    mgl64.Vec3
	material *physics.Material
	rng      *rand.Rand
}

// NewBlockObject builds a box body of the given size at pos and registers
// it with w. A non-positive mass makes the body kinematic.
func NewBlockObject(w *world.World, pos, size mgl64.Vec3, mass float32, visible bool, block Block) (*BlockObject, error) {
	env := w.Env()
	shape, err := env.CreateShape(boxGeometry(size), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create block shape %v: %w", size, err)
	}
	shape.SetSimulationFilterData(env.DefaultFilter())

	body := env.CreateDynamic(physics.NewTransform(coords.ToVec(pos)))
	err = body.AttachShape(shape)
	shape.Release()
	if err != nil {
		body.Release()
		return nil, fmt.Errorf("failed to attach block shape: %w", err)
	}

	if mass > 0 {
		if err := body.SetMassAndUpdateInertia(mass); err != nil {
			body.Release()
			return nil, fmt.Errorf("failed to set block mass: %w", err)
		}
	} else {
		body.SetKinematic(true)
	}
	body.SetLinearDamping(BlockLinearDamping)
	body.SetAngularDamping(BlockAngularDamping)

	b := &BlockObject{
		block:   block,
		visible: visible,
		scale:   size,
	}
	if err := b.InitBase(b, w, body, size); err != nil {
		body.Release()
		return nil, fmt.Errorf("failed to register block: %w", err)
	}
	return b, nil
}

func boxGeometry(size mgl64.Vec3) physics.BoxGeometry {
	return physics.BoxGeometry{HalfExtents: coords.ToVec(size.Mul(0.5))}
}

// SetScale replaces the collision box with one of the given full size.
// A positive mass is kept as is.
func (b *BlockObject) SetScale(scale mgl64.Vec3) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	env := b.World().Env()
	shape, err := env.CreateShape(boxGeometry(scale), b.material)
	if err != nil {
		return fmt.Errorf("failed to rescale block to %v: %w", scale, err)
	}
	shape.SetSimulationFilterData(env.DefaultFilter())
	defer shape.Release()

	var swapErr error
	b.Edit(func(body *physics.RigidBody) {
		mass := body.Mass()
		if swapErr = swapShapes(body, shape); swapErr != nil {
			return
		}
		if mass > 0 && !body.IsKinematic() {
			swapErr = body.SetMassAndUpdateInertia(mass)
		}
	})
	if swapErr != nil {
		return fmt.Errorf("failed to rescale block to %v: %w", scale, swapErr)
	}
	b.scale = scale

	if e, ok := b.Entity().(*engine.Entity); ok && b.visible {
		e.EditDisplay(func(m *engine.DisplayMeta) {
			m.Width = float32(scale.X())
			m.Height = float32(scale.Y())
			m.Scale = scale
		})
	}
	return nil
}

// swapShapes attaches shape, then detaches whatever was there before. On
// error the body keeps its old shapes.
func swapShapes(body *physics.RigidBody, shape *physics.Shape) error {
	old := body.Shapes()
	if err := body.AttachShape(shape); err != nil {
		return err
	}
	for _, s := range old {
		body.DetachShape(s)
	}
	return nil
}

// SetUniformScale is SetScale with the same size on every axis.
func (b *BlockObject) SetUniformScale(s float64) error {
	return b.SetScale(mgl64.Vec3{s, s, s})
}

func (b *BlockObject) Scale() mgl64.Vec3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scale
}

// SetMaterial gives every shape of the block a new surface. Failures are
// logged and the old material stays.
func (b *BlockObject) SetMaterial(staticFriction, dynamicFriction, restitution float32) {
	m, err := b.World().Env().CreateMaterial(staticFriction, dynamicFriction, restitution)
	if err != nil {
		log.Printf("Block: failed to update material: %v", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.Edit(func(body *physics.RigidBody) {
		for _, s := range body.Shapes() {
			if err := s.SetMaterial(m); err != nil {
				log.Printf("Block: failed to update shape material: %v", err)
			}
		}
	})
	b.material = m
}

// SetDamping overrides the settling damping.
func (b *BlockObject) SetDamping(linear, angular float32) {
	b.Edit(func(body *physics.RigidBody) {
		body.SetLinearDamping(linear)
		body.SetAngularDamping(angular)
	})
}

// SetRandom replaces the source Bounce draws from.
func (b *BlockObject) SetRandom(r *rand.Rand) {
	b.mu.Lock()
	b.rng = r
	b.mu.Unlock()
}

// Jump kicks the block straight up.
func (b *BlockObject) Jump(force float64) {
	b.AddImpulse(mgl64.Vec3{0, force, 0})
}

// Bounce kicks the block up by 2 to 7 and sideways by up to 1 on x and z,
// at random.
func (b *BlockObject) Bounce() {
	b.mu.Lock()
	rng := b.rng
	b.mu.Unlock()

	next := rand.Float64
	if rng != nil {
		next = rng.Float64
	}
	x := (next() - 0.5) * 2
	z := (next() - 0.5) * 2
	up := next()*5 + 2
	b.AddImpulse(mgl64.Vec3{x, up, z})
}

// CreateEntity returns a centered item display showing the block, or nil
// for an invisible block.
func (b *BlockObject) CreateEntity() world.Display {
	if !b.visible {
		return nil
	}
	scale := b.Scale()

	e := engine.NewEntity(engine.ItemDisplay)
	e.SetNoGravity(true)
	e.EditDisplay(func(m *engine.DisplayMeta) {
		m.Width = float32(scale.X())
		m.Height = float32(scale.Y())
		m.Scale = scale
		m.Item = b.Material()
	})
	return e
}

// Material is the displayed material for the block, diamond when the
// block has no displayable counterpart.
func (b *BlockObject) Material() engine.Material {
	m, ok := engine.MaterialFromKey(string(b.block))
	if !ok {
		log.Printf("Block: no material for %q, using %s", b.block, engine.DiamondBlock)
		return engine.DiamondBlock
	}
	return m
}

func (b *BlockObject) Block() Block  { return b.block }
func (b *BlockObject) Visible() bool { return b.visible }

func (b *BlockObject) String() string {
	return fmt.Sprintf("BlockObject{block=%s, position=%v, scale=%v, visible=%v}",
		b.block, b.Position(), b.Scale(), b.visible)
}
