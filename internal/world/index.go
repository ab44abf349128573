package world

import (
	"slices"
	"sync"

	"blockphys/internal/physics"
)

// objectIndex keeps live objects in insertion order together with a map
// from body to position in that order. Both change under one lock, so they
// never disagree.
type objectIndex struct {
	mu      sync.RWMutex
	objects []Object
	byBody  map[*physics.RigidBody]int
}

func newObjectIndex() *objectIndex {
	return &objectIndex{byBody: make(map[*physics.RigidBody]int)}
}

// add returns false if the object's body is already indexed.
func (x *objectIndex) add(obj Object) bool {
	body := obj.Base().Body()
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.byBody[body]; ok {
		return false
	}
	x.byBody[body] = len(x.objects)
	x.objects = append(x.objects, obj)
	return true
}

// remove returns false if the object was not indexed.
func (x *objectIndex) remove(obj Object) bool {
	body := obj.Base().Body()
	x.mu.Lock()
	defer x.mu.Unlock()
	i, ok := x.byBody[body]
	if !ok || x.objects[i] != obj {
		return false
	}
	x.objects = slices.Delete(x.objects, i, i+1)
	delete(x.byBody, body)
	for j := i; j < len(x.objects); j++ {
		x.byBody[x.objects[j].Base().Body()] = j
	}
	return true
}

func (x *objectIndex) lookup(body *physics.RigidBody) (Object, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	i, ok := x.byBody[body]
	if !ok {
		return nil, false
	}
	return x.objects[i], true
}

// snapshot is safe to iterate while objects are added and removed.
func (x *objectIndex) snapshot() []Object {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return slices.Clone(x.objects)
}

func (x *objectIndex) len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.objects)
}
