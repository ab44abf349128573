package compute

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// Bounds is one axis-aligned box as the shader sees it. vec3 members are
// 16-byte aligned in WGSL, hence the padding words.
type Bounds struct {
	MinX, MinY, MinZ float32
	_                float32
	MaxX, MaxY, MaxZ float32
	_                float32
}

// Pair holds the input indices of two overlapping bounds, A < B.
type Pair struct {
	A, B uint32
}

const workgroupSize = 256

const broadPhaseShader = `
struct Bounds {
    lo: vec3<f32>,
    hi: vec3<f32>,
}

struct Pair {
    a: u32,
    b: u32,
}

@group(0) @binding(0) var<storage, read> bounds: array<Bounds>;
@group(0) @binding(1) var<storage, read_write> pairs: array<Pair>;
@group(0) @binding(2) var<storage, read_write> pairCount: atomic<u32>;
@group(0) @binding(3) var<uniform> count: u32;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let i = gid.x;
    if (i >= count) {
        return;
    }
    let a = bounds[i];
    for (var j = i + 1u; j < count; j = j + 1u) {
        let b = bounds[j];
        if (all(a.lo <= b.hi) && all(a.hi >= b.lo)) {
            let idx = atomicAdd(&pairCount, 1u);
            if (idx < arrayLength(&pairs)) {
                pairs[idx] = Pair(i, j);
            }
        }
    }
}
`

// BroadPhase finds overlapping bounds on the GPU. Each invocation tests one
// box against every box with a higher index.
type BroadPhase struct {
	ctx      *Context
	pipeline *Pipeline

	boundsBuffer  *Buffer
	pairBuffer    *Buffer
	countBuffer   *Buffer
	uniformBuffer *Buffer

	maxBounds uint32
	maxPairs  uint32
}

func NewBroadPhase(ctx *Context, maxBounds, maxPairs uint32) (*BroadPhase, error) {
	if ctx == nil {
		return nil, fmt.Errorf("compute: broad-phase needs a context")
	}

	pipeline, err := ctx.CreatePipeline("broadphase", broadPhaseShader, "main",
		[]Binding{BindReadOnlyStorage, BindStorage, BindStorage, BindUniform})
	if err != nil {
		return nil, err
	}

	bp := &BroadPhase{ctx: ctx, pipeline: pipeline, maxBounds: maxBounds, maxPairs: maxPairs}

	bp.boundsBuffer, err = ctx.CreateBuffer("bounds", uint64(maxBounds)*32,
		wgpu.BufferUsageStorage|wgpu.BufferUsageCopyDst)
	if err != nil {
		bp.Release()
		return nil, err
	}
	bp.pairBuffer, err = ctx.CreateBuffer("pairs", uint64(maxPairs)*8,
		wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
	if err != nil {
		bp.Release()
		return nil, err
	}
	bp.countBuffer, err = ctx.CreateBuffer("pairCount", 4,
		wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc|wgpu.BufferUsageCopyDst)
	if err != nil {
		bp.Release()
		return nil, err
	}
	// uniform buffers have a 16-byte minimum binding size
	bp.uniformBuffer, err = ctx.CreateBuffer("boundsCount", 16,
		wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst)
	if err != nil {
		bp.Release()
		return nil, err
	}

	return bp, nil
}

// MaxBounds is the largest input DetectPairs accepts.
func (bp *BroadPhase) MaxBounds() int {
	return int(bp.maxBounds)
}

// DetectPairs returns every overlapping pair of boxes. Inputs past MaxBounds
// are an error rather than silently truncated.
func (bp *BroadPhase) DetectPairs(bounds []Bounds) ([]Pair, error) {
	if len(bounds) < 2 {
		return nil, nil
	}
	if uint32(len(bounds)) > bp.maxBounds {
		return nil, fmt.Errorf("compute: %d bounds exceeds capacity %d", len(bounds), bp.maxBounds)
	}

	n := uint32(len(bounds))
	bp.ctx.WriteBuffer(bp.boundsBuffer, 0, ToBytes(bounds))
	bp.ctx.WriteBuffer(bp.countBuffer, 0, ToBytes([]uint32{0}))
	bp.ctx.WriteBuffer(bp.uniformBuffer, 0, ToBytes([]uint32{n, 0, 0, 0}))

	buffers := []*Buffer{bp.boundsBuffer, bp.pairBuffer, bp.countBuffer, bp.uniformBuffer}
	if err := bp.ctx.Dispatch(bp.pipeline, buffers, workgroups(n)); err != nil {
		return nil, err
	}

	countData, err := bp.ctx.ReadBuffer(bp.countBuffer, 4)
	if err != nil {
		return nil, err
	}
	count := FromBytes[uint32](countData)[0]
	if count == 0 {
		return nil, nil
	}
	if count > bp.maxPairs {
		count = bp.maxPairs
	}

	pairData, err := bp.ctx.ReadBuffer(bp.pairBuffer, uint64(count)*8)
	if err != nil {
		return nil, err
	}
	pairs := make([]Pair, count)
	copy(pairs, FromBytes[Pair](pairData))
	return pairs, nil
}

func (bp *BroadPhase) Release() {
	for _, b := range []*Buffer{bp.boundsBuffer, bp.pairBuffer, bp.countBuffer, bp.uniformBuffer} {
		if b != nil {
			b.Release()
		}
	}
	bp.boundsBuffer, bp.pairBuffer, bp.countBuffer, bp.uniformBuffer = nil, nil, nil, nil
}

func workgroups(n uint32) uint32 {
	return (n + workgroupSize - 1) / workgroupSize
}
