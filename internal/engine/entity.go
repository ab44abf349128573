package engine

import (
	"errors"
	"slices"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

var (
	ErrNotPlaced     = errors.New("engine: entity is not active in an instance")
	ErrOtherInstance = errors.New("engine: entities are in different instances")
	ErrSelfPassenger = errors.New("engine: entity cannot ride itself")
)

// Kind is the entity type the world renders.
type Kind int

const (
	ItemDisplay Kind = iota
	TextDisplay
	ShulkerEntity
)

func (k Kind) String() string {
	switch k {
	case ItemDisplay:
		return "item_display"
	case TextDisplay:
		return "text_display"
	case ShulkerEntity:
		return "shulker"
	}
	return "unknown"
}

// DisplayMeta is the visual state of a display entity. Durations are in
// ticks.
type DisplayMeta struct {
	Width, Height float32
	Scale         mgl64.Vec3
	LeftRotation  mgl64.Quat

	// Transformation interpolation, started StartDelta ticks from now.
	InterpolationDuration int
	StartDelta            int
	// Position/rotation interpolation for teleports.
	TeleportDuration int

	Item Material
	Text string
}

// Entity is one thing the world renders. It becomes active on the first
// Tick of its instance after SetInstance.
type Entity struct {
	UID  uuid.UUID
	kind Kind

	mu         sync.RWMutex
	position   mgl64.Vec3
	meta       DisplayMeta
	noGravity  bool
	scaleAttr  float64
	instance   *Instance
	placement  *Placement
	active     bool
	removed    bool
	vehicle    *Entity
	passengers []*Entity
}

func NewEntity(kind Kind) *Entity {
	return &Entity{
		UID:  uuid.New(),
		kind: kind,
		meta: DisplayMeta{
			Scale:        mgl64.Vec3{1, 1, 1},
			LeftRotation: mgl64.QuatIdent(),
		},
		scaleAttr: 1,
	}
}

func (e *Entity) Kind() Kind {
	return e.kind
}

// SetInstance places the entity in inst at pos. The entity is active once
// the returned placement completes. Placing an entity already in inst just
// teleports it.
func (e *Entity) SetInstance(inst *Instance, pos mgl64.Vec3) *Placement {
	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return completedPlacement(ErrRemoved)
	}
	if e.instance == inst {
		p := e.placement
		e.mu.Unlock()
		e.Teleport(pos)
		return p
	}
	old := e.instance
	e.position = pos
	e.instance = inst
	e.active = false
	e.placement = newPlacement()
	p := e.placement
	e.mu.Unlock()

	if old != nil {
		old.remove(e)
	}
	inst.enqueue(e)
	return p
}

func (e *Entity) Instance() *Instance {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.instance
}

func (e *Entity) Position() mgl64.Vec3 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.position
}

// Teleport moves the entity and everything riding it.
func (e *Entity) Teleport(pos mgl64.Vec3) {
	e.mu.Lock()
	e.position = pos
	riders := slices.Clone(e.passengers)
	e.mu.Unlock()

	for _, p := range riders {
		p.Teleport(pos)
	}
}

// EditDisplay applies fn to the display metadata under the entity lock.
func (e *Entity) EditDisplay(fn func(*DisplayMeta)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.meta)
}

func (e *Entity) Display() DisplayMeta {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.meta
}

// SyncTransform moves the entity to pos with orientation rot, interpolated
// over ticks.
func (e *Entity) SyncTransform(pos mgl64.Vec3, rot mgl64.Quat, ticks int) {
	e.EditDisplay(func(m *DisplayMeta) {
		m.LeftRotation = rot
		m.InterpolationDuration = ticks
		m.TeleportDuration = ticks
		m.StartDelta = 0
	})
	e.Teleport(pos)
}

func (e *Entity) SetNoGravity(on bool) {
	e.mu.Lock()
	e.noGravity = on
	e.mu.Unlock()
}

func (e *Entity) NoGravity() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.noGravity
}

// SetScaleAttribute sets the scale of a living entity such as a shulker.
func (e *Entity) SetScaleAttribute(s float64) {
	e.mu.Lock()
	e.scaleAttr = s
	e.mu.Unlock()
}

func (e *Entity) ScaleAttribute() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scaleAttr
}

// AddPassenger mounts p on e. Both must be active in the same instance.
func (e *Entity) AddPassenger(p *Entity) error {
	if p == e {
		return ErrSelfPassenger
	}
	e.mu.RLock()
	inst, active := e.instance, e.active
	e.mu.RUnlock()
	if !active {
		return ErrNotPlaced
	}
	if !p.IsActive() {
		return ErrNotPlaced
	}
	if p.Instance() != inst {
		return ErrOtherInstance
	}

	p.dismount()

	e.mu.Lock()
	e.passengers = append(e.passengers, p)
	pos := e.position
	e.mu.Unlock()

	p.mu.Lock()
	p.vehicle = e
	p.mu.Unlock()
	p.Teleport(pos)
	return nil
}

func (e *Entity) Passengers() []*Entity {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.passengers)
}

func (e *Entity) Vehicle() *Entity {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.vehicle
}

// IsActive reports whether the instance has activated the entity.
func (e *Entity) IsActive() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.active && !e.removed
}

// Remove takes the entity out of its instance and unmounts its passengers.
// A pending placement completes with ErrRemoved.
func (e *Entity) Remove() {
	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return
	}
	e.removed = true
	e.active = false
	inst := e.instance
	placement := e.placement
	riders := e.passengers
	e.passengers = nil
	e.mu.Unlock()

	e.dismount()
	for _, p := range riders {
		p.mu.Lock()
		if p.vehicle == e {
			p.vehicle = nil
		}
		p.mu.Unlock()
	}
	if inst != nil {
		inst.remove(e)
	}
	if placement != nil {
		placement.complete(ErrRemoved)
	}
}

func (e *Entity) Removed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.removed
}

// dismount takes e off its vehicle, if any.
func (e *Entity) dismount() {
	e.mu.Lock()
	v := e.vehicle
	e.vehicle = nil
	e.mu.Unlock()
	if v == nil {
		return
	}
	v.mu.Lock()
	v.passengers = slices.DeleteFunc(v.passengers, func(p *Entity) bool { return p == e })
	v.mu.Unlock()
}

// activate runs on the instance's tick. It returns false if the entity was
// removed or moved to another instance in the meantime.
func (e *Entity) activate(inst *Instance) (*Placement, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed || e.instance != inst {
		return nil, false
	}
	e.active = true
	return e.placement, true
}
