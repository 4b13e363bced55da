package convert

import "testing"

func TestDestDims(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		w, h         int
		scale        float64
		wantW, wantH int
	}{
		{"zero means full size", 1920, 1080, 0, 1920, 1080},
		{"negative means full size", 1920, 1080, -0.5, 1920, 1080},
		{"one means full size", 1920, 1080, 1, 1920, 1080},
		{"above one means full size", 1920, 1080, 2, 1920, 1080},
		{"half", 1920, 1080, 0.5, 960, 540},
		{"quarter truncates", 1919, 1079, 0.25, 479, 269},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := destDims(tt.w, tt.h, tt.scale)
			if w != tt.wantW || h != tt.wantH {
				t.Fatalf("destDims(%d, %d, %v) = %dx%d, want %dx%d",
					tt.w, tt.h, tt.scale, w, h, tt.wantW, tt.wantH)
			}
		})
	}
}
