package coords

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	rl "github.com/gen2brain/raylib-go/raylib"
)

func TestVecRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		v    mgl64.Vec3
	}{
		{"zero", mgl64.Vec3{0, 0, 0}},
		{"unit", mgl64.Vec3{1, 1, 1}},
		{"negative", mgl64.Vec3{-12.5, -0.001, -300}},
		{"fractional", mgl64.Vec3{0.3, 1.7, -2.25}},
		{"far", mgl64.Vec3{1024.125, 64, -2048.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromVec(ToVec(tt.v))
			for i := 0; i < 3; i++ {
				if math.Abs(got[i]-tt.v[i]) > 1e-4 {
					t.Errorf("component %d: expected %v, got %v", i, tt.v[i], got[i])
				}
			}
		})
	}
}

func TestPhysicsVecRoundTrip(t *testing.T) {
	v := rl.Vector3{X: 3.25, Y: -17, Z: 0.125}
	got := ToVec(FromVec(v))
	if got != v {
		t.Errorf("Expected %v, got %v", v, got)
	}
}

func TestQuatRoundTrip(t *testing.T) {
	q := mgl64.QuatRotate(0.7, mgl64.Vec3{0, 1, 0}.Add(mgl64.Vec3{0.2, 0, 0.1}).Normalize())
	got := FromQuat(ToQuat(q))

	if !got.ApproxEqualThreshold(q, 1e-4) {
		t.Errorf("Expected %v, got %v", q, got)
	}
}

func TestToFloatsOrder(t *testing.T) {
	q := rl.Quaternion{X: 1, Y: 2, Z: 3, W: 4}
	f := ToFloats(q)
	if f != [4]float32{1, 2, 3, 4} {
		t.Errorf("Expected xyzw order, got %v", f)
	}
}
