package physics

import "errors"

var (
	ErrReleased          = errors.New("physics: object already released")
	ErrDuplicateActor    = errors.New("physics: actor already in scene")
	ErrForeignActor      = errors.New("physics: actor belongs to another scene")
	ErrInvalidGeometry   = errors.New("physics: invalid geometry")
	ErrInvalidMaterial   = errors.New("physics: invalid material")
	ErrInvalidMass       = errors.New("physics: mass must be positive")
	ErrNotDynamic        = errors.New("physics: operation requires a dynamic body")
	ErrShapeAttached     = errors.New("physics: shape already attached to body")
	ErrSimulationPending = errors.New("physics: simulate called before results were fetched")
	ErrNoAcceleration    = errors.New("physics: GPU acceleration unavailable")
)
