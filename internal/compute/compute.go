// Package compute wraps a WebGPU device for compute-only work. The physics
// environment creates at most one Context per process and owns its lifetime.
package compute

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// ErrSoftwareAdapter is returned when the only adapter found is a CPU
// rasterizer, which is slower than the CPU broad-phase it would replace.
var ErrSoftwareAdapter = errors.New("compute: adapter is a software implementation")

// Context holds the device and queue plus a cache of compiled pipelines.
type Context struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	info     AdapterInfo

	pipelines map[string]*Pipeline
	mu        sync.RWMutex
	released  bool
}

// Pipeline is a compiled compute shader with an explicit bind group layout.
type Pipeline struct {
	shader   *wgpu.ShaderModule
	pipeline *wgpu.ComputePipeline
	layout   *wgpu.BindGroupLayout
	pl       *wgpu.PipelineLayout
}

// Buffer wraps a GPU buffer.
type Buffer struct {
	buffer *wgpu.Buffer
	size   uint64
	usage  wgpu.BufferUsage
}

// AdapterInfo describes the selected GPU.
type AdapterInfo struct {
	Name       string
	Vendor     string
	Backend    string
	DeviceType string
	Driver     string
}

func (a AdapterInfo) String() string {
	return fmt.Sprintf("%s (%s, %s)", a.Name, a.Backend, a.DeviceType)
}

// Binding is the kind of resource bound at one @binding slot.
type Binding int

const (
	BindReadOnlyStorage Binding = iota
	BindStorage
	BindUniform
)

// New requests a high-performance adapter and a device on it. Every partial
// allocation is released before an error is returned.
func New() (*Context, error) {
	instance := wgpu.CreateInstance(nil)

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("failed to get GPU adapter: %w", err)
	}

	raw := adapter.GetInfo()
	info := AdapterInfo{
		Name:       raw.Name,
		Vendor:     raw.VendorName,
		Backend:    raw.BackendType.String(),
		DeviceType: raw.AdapterType.String(),
		Driver:     raw.DriverDescription,
	}
	if strings.EqualFold(info.DeviceType, "cpu") {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("%w: %s", ErrSoftwareAdapter, info.Name)
	}

	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("failed to get GPU device: %w", err)
	}

	return &Context{
		instance:  instance,
		adapter:   adapter,
		device:    device,
		queue:     device.GetQueue(),
		info:      info,
		pipelines: make(map[string]*Pipeline),
	}, nil
}

// Info returns the adapter the context was created on.
func (c *Context) Info() AdapterInfo {
	return c.info
}

// CreatePipeline compiles a shader whose group 0 follows bindings and caches
// it under name.
func (c *Context) CreatePipeline(name, wgslCode, entryPoint string, bindings []Binding) (*Pipeline, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.pipelines[name]; ok {
		return p, nil
	}

	entries := make([]wgpu.BindGroupLayoutEntry, len(bindings))
	for i, b := range bindings {
		var kind wgpu.BufferBindingType
		switch b {
		case BindReadOnlyStorage:
			kind = wgpu.BufferBindingTypeReadOnlyStorage
		case BindStorage:
			kind = wgpu.BufferBindingTypeStorage
		case BindUniform:
			kind = wgpu.BufferBindingTypeUniform
		}
		entries[i] = wgpu.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: wgpu.ShaderStageCompute,
			Buffer:     wgpu.BufferBindingLayout{Type: kind},
		}
	}

	layout, err := c.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   name + "_layout",
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bind group layout: %w", err)
	}

	pl, err := c.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            name + "_pipeline_layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{layout},
	})
	if err != nil {
		layout.Release()
		return nil, fmt.Errorf("failed to create pipeline layout: %w", err)
	}

	shader, err := c.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          name,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: wgslCode},
	})
	if err != nil {
		pl.Release()
		layout.Release()
		return nil, fmt.Errorf("failed to create shader module: %w", err)
	}

	pipeline, err := c.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  name,
		Layout: pl,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     shader,
			EntryPoint: entryPoint,
		},
	})
	if err != nil {
		shader.Release()
		pl.Release()
		layout.Release()
		return nil, fmt.Errorf("failed to create compute pipeline: %w", err)
	}

	p := &Pipeline{shader: shader, pipeline: pipeline, layout: layout, pl: pl}
	c.pipelines[name] = p
	return p, nil
}

func (c *Context) CreateBuffer(label string, size uint64, usage wgpu.BufferUsage) (*Buffer, error) {
	buf, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer %s: %w", label, err)
	}
	return &Buffer{buffer: buf, size: size, usage: usage}, nil
}

func (c *Context) CreateBufferWithData(label string, data []byte, usage wgpu.BufferUsage) (*Buffer, error) {
	buf, err := c.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label,
		Contents: data,
		Usage:    usage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer %s: %w", label, err)
	}
	return &Buffer{buffer: buf, size: uint64(len(data)), usage: usage}, nil
}

func (c *Context) WriteBuffer(buf *Buffer, offset uint64, data []byte) {
	c.queue.WriteBuffer(buf.buffer, offset, data)
}

// Dispatch binds buffers in @binding order and runs workgroups on the queue.
func (c *Context) Dispatch(p *Pipeline, buffers []*Buffer, workgroupsX uint32) error {
	entries := make([]wgpu.BindGroupEntry, len(buffers))
	for i, buf := range buffers {
		entries[i] = wgpu.BindGroupEntry{
			Binding: uint32(i),
			Buffer:  buf.buffer,
			Size:    buf.size,
		}
	}

	bindGroup, err := c.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "compute_bind_group",
		Layout:  p.layout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("failed to create bind group: %w", err)
	}
	defer bindGroup.Release()

	encoder, err := c.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("failed to create command encoder: %w", err)
	}

	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(p.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(workgroupsX, 1, 1)
	pass.End()
	pass.Release()

	commands, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("failed to finish command encoder: %w", err)
	}
	defer commands.Release()

	c.queue.Submit(commands)
	return nil
}

// ReadBuffer copies size bytes of buf back to the CPU, blocking until the
// queue has drained. The buffer needs BufferUsageCopySrc.
func (c *Context) ReadBuffer(buf *Buffer, size uint64) ([]byte, error) {
	if size == 0 || size > buf.size {
		size = buf.size
	}
	// copy sizes must be 4-byte aligned
	size = (size + 3) &^ 3

	staging, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "staging_read",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create staging buffer: %w", err)
	}
	defer staging.Release()

	encoder, err := c.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create command encoder: %w", err)
	}
	encoder.CopyBufferToBuffer(buf.buffer, 0, staging, 0, size)
	commands, err := encoder.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to finish encoder: %w", err)
	}
	c.queue.Submit(commands)
	commands.Release()

	done := make(chan error, 1)
	err = staging.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			done <- fmt.Errorf("failed to map buffer: %v", status)
		} else {
			done <- nil
		}
	})
	if err != nil {
		return nil, err
	}

	c.device.Poll(true, nil)
	if err := <-done; err != nil {
		return nil, err
	}

	mapped := staging.GetMappedRange(0, uint(size))
	result := make([]byte, len(mapped))
	copy(result, mapped)
	staging.Unmap()

	return result, nil
}

// Release frees the cached pipelines and the device. Safe to call twice.
func (c *Context) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return
	}
	c.released = true

	for _, p := range c.pipelines {
		p.pipeline.Release()
		p.shader.Release()
		p.pl.Release()
		p.layout.Release()
	}
	c.pipelines = nil

	c.queue.Release()
	c.device.Release()
	c.adapter.Release()
	c.instance.Release()
}

func (b *Buffer) Release() {
	b.buffer.Release()
}

func (b *Buffer) Size() uint64 {
	return b.size
}

// ToBytes reinterprets a slice of plain structs for upload.
func ToBytes[T any](data []T) []byte {
	return wgpu.ToBytes(data)
}

// FromBytes reinterprets downloaded bytes as a slice of T.
func FromBytes[T any](data []byte) []T {
	return wgpu.FromBytes[T](data)
}
