package engine

import (
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Instance is one rendered world. Entities placed with SetInstance become
// active on the next Tick.
type Instance struct {
	Name string

	mu       sync.RWMutex
	entities map[uuid.UUID]*Entity
	order    []*Entity
	pending  []*Entity
	ticks    uint64

	Spawned EventWithArg[*Entity]
	Removed EventWithArg[*Entity]
}

func NewInstance(name string) *Instance {
	return &Instance{
		Name:     name,
		entities: make(map[uuid.UUID]*Entity),
	}
}

// Tick activates every entity placed since the previous tick, completes
// their placements and fires Spawned for each, in placement order.
func (i *Instance) Tick() {
	i.mu.Lock()
	batch := i.pending
	i.pending = nil
	i.ticks++
	i.mu.Unlock()

	for _, e := range batch {
		// activate and insert together, so a Remove racing the tick either
		// stops the activation or finds the entity to take out
		i.mu.Lock()
		placement, ok := e.activate(i)
		if ok {
			if _, exists := i.entities[e.UID]; !exists {
				i.entities[e.UID] = e
				i.order = append(i.order, e)
			}
		}
		i.mu.Unlock()
		if !ok {
			continue
		}

		i.Spawned.Invoke(e)
		if placement != nil {
			placement.complete(nil)
		}
	}
}

// Ticks is the number of completed ticks.
func (i *Instance) Ticks() uint64 {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.ticks
}

// FindByUID returns the active entity with the given UID, or nil.
func (i *Instance) FindByUID(uid uuid.UUID) *Entity {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.entities[uid]
}

// Entities returns the active entities in activation order.
func (i *Instance) Entities() []*Entity {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return slices.Clone(i.order)
}

func (i *Instance) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.order)
}

// Pending is the number of entities waiting for the next tick.
func (i *Instance) Pending() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.pending)
}

func (i *Instance) enqueue(e *Entity) {
	i.mu.Lock()
	i.pending = append(i.pending, e)
	i.mu.Unlock()
}

func (i *Instance) remove(e *Entity) {
	i.mu.Lock()
	i.pending = slices.DeleteFunc(i.pending, func(p *Entity) bool { return p == e })
	_, active := i.entities[e.UID]
	if active {
		delete(i.entities, e.UID)
		i.order = slices.DeleteFunc(i.order, func(p *Entity) bool { return p == e })
	}
	i.mu.Unlock()

	if active {
		i.Removed.Invoke(e)
	}
}
