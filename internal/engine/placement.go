package engine

import (
	"context"
	"errors"
	"sync"
)

// ErrRemoved completes the placement of an entity removed before its
// instance activated it.
var ErrRemoved = errors.New("engine: entity removed")

// Placement is the pending result of Entity.SetInstance. It completes once,
// when the instance activates the entity on its next Tick, or with an error
// if the entity is removed first.
type Placement struct {
	done chan struct{}

	mu        sync.Mutex
	err       error
	completed bool
	callbacks []func(error)
}

func newPlacement() *Placement {
	return &Placement{done: make(chan struct{})}
}

func completedPlacement(err error) *Placement {
	p := newPlacement()
	p.complete(err)
	return p
}

// Done is closed when the placement completes.
func (p *Placement) Done() <-chan struct{} {
	return p.done
}

// Err is nil until completion, and after a successful one.
func (p *Placement) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// OnDone runs fn once the placement completes. If it already has, fn runs
// right away on the caller's goroutine; otherwise it runs on the goroutine
// that ticks the instance.
func (p *Placement) OnDone(fn func(error)) {
	p.mu.Lock()
	if !p.completed {
		p.callbacks = append(p.callbacks, fn)
		p.mu.Unlock()
		return
	}
	err := p.err
	p.mu.Unlock()
	fn(err)
}

// Wait blocks until the placement completes or ctx is done.
func (p *Placement) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Placement) complete(err error) {
	p.mu.Lock()
	if p.completed {
		p.mu.Unlock()
		return
	}
	p.completed = true
	p.err = err
	callbacks := p.callbacks
	p.callbacks = nil
	close(p.done)
	p.mu.Unlock()

	for _, fn := range callbacks {
		fn(err)
	}
}
