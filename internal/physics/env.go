package physics

import (
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"

	"blockphys/internal/compute"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// Acceleration selects how Init treats the GPU.
type Acceleration string

const (
	AccelAuto Acceleration = "auto" // use the GPU when one is usable, else CPU
	AccelCPU  Acceleration = "cpu"  // never touch the GPU
	AccelGPU  Acceleration = "gpu"  // fail Init when no GPU is usable
)

// GPUBroadPhaseThreshold is the minimum actor count before GPU broad-phase kicks in.
// Below this, CPU spatial hashing is faster due to GPU overhead.
const GPUBroadPhaseThreshold = 750

// MaxGPUBodies is the capacity of a scene's GPU broad-phase buffers.
const MaxGPUBodies = 50000

type Config struct {
	Acceleration Acceleration
	// MaxThreads caps the solver's worker count. Zero means 8.
	MaxThreads int
	// GPUThreshold overrides GPUBroadPhaseThreshold when positive.
	GPUThreshold int
}

func DefaultConfig() Config {
	return Config{Acceleration: AccelAuto, MaxThreads: 8}
}

// Capabilities is what Init settled on. Scenes read it instead of probing
// again.
type Capabilities struct {
	Accelerated bool
	Device      string
	Threads     int
}

// Env is the process-wide physics context: the optional GPU device, the
// default material and filter, and the factory for shapes, bodies and scenes.
// Create it once with Init and Close it at shutdown.
type Env struct {
	cfg  Config
	caps Capabilities
	gpu  *compute.Context

	defaultMaterial *Material
	defaultFilter   FilterData

	nextID atomic.Uint64
	mu     sync.Mutex
	closed bool
}

// probeGPU is swapped out by tests.
var probeGPU = compute.New

// Init probes for GPU acceleration according to cfg and falls back to the
// CPU configuration when the probe or device creation fails.
func Init(cfg Config) (*Env, error) {
	if cfg.Acceleration == "" {
		cfg.Acceleration = AccelAuto
	}
	if cfg.MaxThreads <= 0 {
		cfg.MaxThreads = 8
	}

	mat, err := newMaterial(0.5, 0.5, 0.5)
	if err != nil {
		return nil, fmt.Errorf("failed to create default material: %w", err)
	}

	env := &Env{
		cfg:             cfg,
		defaultMaterial: mat,
		defaultFilter:   FilterData{Word0: 1, Word1: 0xffffffff},
	}
	env.caps.Threads = threadCount(cfg.MaxThreads, runtime.NumCPU())

	switch cfg.Acceleration {
	case AccelCPU:
	case AccelAuto, AccelGPU:
		ctx, err := probeGPU()
		if err != nil {
			if cfg.Acceleration == AccelGPU {
				return nil, fmt.Errorf("%w: %w", ErrNoAcceleration, err)
			}
			log.Printf("Physics: GPU unavailable, using CPU (%v)", err)
			break
		}
		env.gpu = ctx
		env.caps.Accelerated = true
		env.caps.Device = ctx.Info().String()
	default:
		return nil, fmt.Errorf("physics: unknown acceleration mode %q", cfg.Acceleration)
	}

	mode := "CPU"
	if env.caps.Accelerated {
		mode = "GPU " + env.caps.Device
	}
	log.Printf("Physics: initialized (%s, %d threads)", mode, env.caps.Threads)
	return env, nil
}

// threadCount leaves two cores for the host and stays within [1, limit].
func threadCount(limit, cores int) int {
	return max(1, min(limit, cores-2))
}

func (e *Env) Capabilities() Capabilities {
	return e.caps
}

func (e *Env) DefaultMaterial() *Material {
	return e.defaultMaterial
}

func (e *Env) DefaultFilter() FilterData {
	return e.defaultFilter
}

func (e *Env) CreateMaterial(staticFriction, dynamicFriction, restitution float32) (*Material, error) {
	m, err := newMaterial(staticFriction, dynamicFriction, restitution)
	if err != nil {
		return nil, fmt.Errorf("failed to create material (%v, %v, %v): %w",
			staticFriction, dynamicFriction, restitution, err)
	}
	return m, nil
}

// CreateShape returns a shape holding one reference. A nil material picks
// the default one.
func (e *Env) CreateShape(g Geometry, m *Material) (*Shape, error) {
	if g == nil || !g.valid() {
		return nil, ErrInvalidGeometry
	}
	if m == nil {
		m = e.defaultMaterial
	}
	s := &Shape{geometry: g, material: m, filter: e.defaultFilter}
	s.refs.Store(1)
	return s, nil
}

// CreateDynamic returns a unit-mass dynamic body with no shapes.
func (e *Env) CreateDynamic(pose Transform) *RigidBody {
	return newBody(e.nextID.Add(1), bodyDynamic, pose)
}

func (e *Env) CreateStatic(pose Transform) *RigidBody {
	return newBody(e.nextID.Add(1), bodyStatic, pose)
}

// CreateGroundPlane returns a static infinite floor whose surface is at y.
func (e *Env) CreateGroundPlane(y float32) (*RigidBody, error) {
	shape, err := e.CreateShape(PlaneGeometry{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create ground shape: %w", err)
	}
	body := e.CreateStatic(NewTransform(rl.Vector3{Y: y}))
	if err := body.AttachShape(shape); err != nil {
		shape.Release()
		return nil, fmt.Errorf("failed to attach ground shape: %w", err)
	}
	shape.Release()
	return body, nil
}

// CreateScene allocates a scene using the capabilities chosen at Init.
func (e *Env) CreateScene(gravity rl.Vector3) (*Scene, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrReleased
	}

	s := newScene(e, gravity)
	if e.caps.Accelerated {
		bp, err := compute.NewBroadPhase(e.gpu, MaxGPUBodies, MaxGPUBodies*8)
		if err != nil {
			log.Printf("Physics: GPU broad-phase unavailable for scene, using CPU (%v)", err)
		} else {
			s.gpu = bp
			s.gpuThreshold = GPUBroadPhaseThreshold
			if e.cfg.GPUThreshold > 0 {
				s.gpuThreshold = e.cfg.GPUThreshold
			}
		}
	}
	return s, nil
}

// Close frees the GPU device. Scenes must be released first.
func (e *Env) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	if e.gpu != nil {
		e.gpu.Release()
		e.gpu = nil
	}
}
