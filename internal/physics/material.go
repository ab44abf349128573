package physics

import "math"

// Material holds surface response coefficients. Values are immutable once
// created; build a new material to change them.
type Material struct {
	staticFriction  float32
	dynamicFriction float32
	restitution     float32
}

func newMaterial(static, dynamic, restitution float32) (*Material, error) {
	for _, v := range []float32{static, dynamic, restitution} {
		if v < 0 || math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, ErrInvalidMaterial
		}
	}
	if restitution > 1 {
		return nil, ErrInvalidMaterial
	}
	return &Material{staticFriction: static, dynamicFriction: dynamic, restitution: restitution}, nil
}

func (m *Material) StaticFriction() float32  { return m.staticFriction }
func (m *Material) DynamicFriction() float32 { return m.dynamicFriction }
func (m *Material) Restitution() float32     { return m.restitution }

// combineMaterials averages two surfaces the same way for friction and bounce.
func combineMaterials(a, b *Material) (friction, restitution float32) {
	if a == nil || b == nil {
		return 0.5, 0
	}
	friction = (a.dynamicFriction + b.dynamicFriction) / 2
	restitution = (a.restitution + b.restitution) / 2
	return friction, restitution
}

// FilterData decides which shape pairs generate contacts. Two shapes collide
// when each one's Word0 group is accepted by the other's Word1 mask.
type FilterData struct {
	Word0, Word1, Word2, Word3 uint32
}

func (f FilterData) collides(o FilterData) bool {
	return f.Word0&o.Word1 != 0 && o.Word0&f.Word1 != 0
}
