package physics

import (
	"sync/atomic"
)

// Shape pairs a geometry with a material and filter data. Shapes are
// reference counted: creation holds one reference, every attachment holds
// another. The shape is gone once the count reaches zero.
type Shape struct {
	geometry Geometry
	material *Material
	filter   FilterData
	refs     atomic.Int32
}

func (s *Shape) Geometry() Geometry {
	return s.geometry
}

// Box returns the box geometry, if the shape is a box.
func (s *Shape) Box() (BoxGeometry, bool) {
	g, ok := s.geometry.(BoxGeometry)
	return g, ok
}

func (s *Shape) Material() *Material {
	return s.material
}

func (s *Shape) SetMaterial(m *Material) error {
	if m == nil {
		return ErrInvalidMaterial
	}
	if s.Released() {
		return ErrReleased
	}
	s.material = m
	return nil
}

func (s *Shape) SimulationFilterData() FilterData {
	return s.filter
}

func (s *Shape) SetSimulationFilterData(f FilterData) {
	s.filter = f
}

// RefCount reports outstanding references; zero means released.
func (s *Shape) RefCount() int {
	return int(s.refs.Load())
}

func (s *Shape) Released() bool {
	return s.refs.Load() <= 0
}

// Release drops the creator's reference. A shape still attached to a body
// lives on until it is detached.
func (s *Shape) Release() {
	if s.refs.Add(-1) < 0 {
		s.refs.Store(0)
	}
}

func (s *Shape) acquire() {
	s.refs.Add(1)
}
