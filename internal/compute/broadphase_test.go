package compute

import (
	"testing"
	"unsafe"
)

func TestBoundsLayoutMatchesShader(t *testing.T) {
	if got := unsafe.Sizeof(Bounds{}); got != 32 {
		t.Errorf("Bounds must be 32 bytes to match the WGSL struct, got %d", got)
	}
	if got := unsafe.Sizeof(Pair{}); got != 8 {
		t.Errorf("Pair must be 8 bytes, got %d", got)
	}
}

func TestWorkgroups(t *testing.T) {
	tests := []struct {
		n, want uint32
	}{
		{0, 0},
		{1, 1},
		{256, 1},
		{257, 2},
		{1000, 4},
	}
	for _, tt := range tests {
		if got := workgroups(tt.n); got != tt.want {
			t.Errorf("workgroups(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestNewBroadPhaseNeedsContext(t *testing.T) {
	bp, err := NewBroadPhase(nil, 16, 16)
	if err == nil || bp != nil {
		t.Errorf("Expected an error without a context, got %v, %v", bp, err)
	}
}
