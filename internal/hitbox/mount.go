package hitbox

import (
	"log"
	"sync/atomic"

	"blockphys/internal/engine"

	"github.com/go-gl/mathgl/mgl64"
)

type mountState int32

const (
	holderPending mountState = iota
	markerPending
	attached
	failed
)

func (s mountState) String() string {
	switch s {
	case holderPending:
		return "holder pending"
	case markerPending:
		return "marker pending"
	case attached:
		return "attached"
	}
	return "failed"
}

// mount places a holder, then its marker, then seats the marker on the
// holder. Each step starts only after the previous placement completed.
type mount struct {
	inst   *engine.Instance
	pos    mgl64.Vec3
	holder *engine.Entity
	marker *engine.Entity
	state  atomic.Int32
}

func (m *mount) State() mountState {
	return mountState(m.state.Load())
}

func (m *mount) start() {
	m.state.Store(int32(holderPending))
	m.holder.SetInstance(m.inst, m.pos).OnDone(m.holderPlaced)
}

func (m *mount) holderPlaced(err error) {
	if err != nil {
		m.fail("holder", err)
		return
	}
	m.state.Store(int32(markerPending))
	m.marker.SetInstance(m.inst, m.pos).OnDone(m.markerPlaced)
}

func (m *mount) markerPlaced(err error) {
	if err != nil {
		m.fail("marker", err)
		return
	}
	if err := m.holder.AddPassenger(m.marker); err != nil {
		m.fail("passenger", err)
		return
	}
	m.state.Store(int32(attached))
}

func (m *mount) fail(step string, err error) {
	m.state.Store(int32(failed))
	log.Printf("Hitbox: %s step failed at %v: %v", step, m.pos, err)
}
