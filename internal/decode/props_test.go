package decode

import "testing"

func TestNormalizeRotation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want int
	}{
		{0, 0},
		{90, 90},
		{270, 270},
		{360, 0},
		{450, 90},
		{-90, -90},
		{-450, -90},
	}
	for _, tt := range tests {
		if got := normalizeRotation(tt.in); got != tt.want {
			t.Fatalf("normalizeRotation(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestActualDims(t *testing.T) {
	t.Parallel()

	tests := []struct {
		w, h, rotation, wantW, wantH int
	}{
		{1920, 1080, 0, 1920, 1080},
		{1920, 1080, 90, 1080, 1920},
		{1920, 1080, 180, 1920, 1080},
		{1920, 1080, 270, 1080, 1920},
		{1920, 1080, -90, 1080, 1920},
	}
	for _, tt := range tests {
		w, h := actualDims(tt.w, tt.h, tt.rotation)
		if w != tt.wantW || h != tt.wantH {
			t.Fatalf("actualDims(%d, %d, %d) = %dx%d, want %dx%d",
				tt.w, tt.h, tt.rotation, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestKeyFrameInterval(t *testing.T) {
	t.Parallel()

	if got := keyFrameInterval(6000, 3); got != 3000 {
		t.Fatalf("got %d, want 3000", got)
	}
	if got := keyFrameInterval(6000, 1); got != -1 {
		t.Fatalf("single key frame: got %d, want -1", got)
	}
	if got := keyFrameInterval(-1, 3); got != -1 {
		t.Fatalf("invalid pts: got %d, want -1", got)
	}
}

func TestThroughputFPS(t *testing.T) {
	t.Parallel()

	if got := throughputFPS(10, 200); got != 50 {
		t.Fatalf("got %v, want 50", got)
	}
	if got := throughputFPS(0, 200); got != 0 {
		t.Fatalf("zero frames: got %v, want 0", got)
	}
	if got := throughputFPS(10, 0); got != 0 {
		t.Fatalf("zero elapsed: got %v, want 0", got)
	}
}
