package main

import "testing"

func TestWorkDir(t *testing.T) {
	tests := []struct {
		path string
		dir  string
		ok   bool
	}{
		{"/opt/blockphys/blockphys", "/opt/blockphys", true},
		{"/tmp/go-build123/b001/exe/blockphys", "", false},
	}
	for _, tt := range tests {
		dir, ok := workDir(tt.path)
		if ok != tt.ok || dir != tt.dir {
			t.Errorf("workDir(%q) = %q, %v, want %q, %v", tt.path, dir, ok, tt.dir, tt.ok)
		}
	}
}
