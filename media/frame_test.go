package media

import (
	"errors"
	"testing"
)

// pixels builds a packed 4-byte-per-pixel buffer where every byte of pixel
// i holds the value ids[i], so rotated layouts are easy to spell out.
func pixels(ids ...byte) []byte {
	buf := make([]byte, len(ids)*bytesPerPixel)
	for i, id := range ids {
		for b := 0; b < bytesPerPixel; b++ {
			buf[i*bytesPerPixel+b] = id
		}
	}
	return buf
}

func TestCopyRotated(t *testing.T) {
	t.Parallel()

	// 3x2 source:
	//   0 1 2
	//   3 4 5
	src := pixels(0, 1, 2, 3, 4, 5)

	tests := []struct {
		rotation int
		want     []byte
	}{
		{0, pixels(0, 1, 2, 3, 4, 5)},
		// 2x3, first column becomes the bottom row
		{90, pixels(3, 0, 4, 1, 5, 2)},
		{180, pixels(5, 4, 3, 2, 1, 0)},
		{270, pixels(2, 5, 1, 4, 0, 3)},
	}

	for _, tt := range tests {
		dst := make([]byte, len(src))
		if err := CopyRotated(dst, src, 3, 2, tt.rotation); err != nil {
			t.Fatalf("rotation %d: %v", tt.rotation, err)
		}
		if string(dst) != string(tt.want) {
			t.Fatalf("rotation %d: got %v, want %v", tt.rotation, dst, tt.want)
		}
	}
}

func TestCopyRotatedInvalidRotation(t *testing.T) {
	t.Parallel()

	src := pixels(0, 1, 2, 3)
	dst := make([]byte, len(src))
	if err := CopyRotated(dst, src, 2, 2, 45); !errors.Is(err, ErrUnsupportedRotation) {
		t.Fatalf("got %v, want ErrUnsupportedRotation", err)
	}
}

func TestCopyRotatedShortBuffers(t *testing.T) {
	t.Parallel()

	src := pixels(0, 1, 2, 3)
	if err := CopyRotated(make([]byte, 4), src, 2, 2, 0); !errors.Is(err, ErrBufferTooSmall) {
		t.Fatalf("short dst: got %v, want ErrBufferTooSmall", err)
	}
	if err := CopyRotated(make([]byte, len(src)), src[:4], 2, 2, 90); !errors.Is(err, ErrBufferTooSmall) {
		t.Fatalf("short src: got %v, want ErrBufferTooSmall", err)
	}
}

func TestNewFrameDimensionSwap(t *testing.T) {
	t.Parallel()

	data := make([]byte, 6*bytesPerPixel)
	for _, rotation := range []int{0, 180} {
		f := NewFrame(0, rotation, PixelFormatRGBA, data, 3, 2)
		if f.Width != 3 || f.Height != 2 {
			t.Fatalf("rotation %d: got %dx%d, want 3x2", rotation, f.Width, f.Height)
		}
	}
	for _, rotation := range []int{90, 270} {
		f := NewFrame(0, rotation, PixelFormatRGBA, data, 3, 2)
		if f.Width != 2 || f.Height != 3 {
			t.Fatalf("rotation %d: got %dx%d, want 2x3", rotation, f.Width, f.Height)
		}
	}
}

func TestFrameInfo(t *testing.T) {
	t.Parallel()

	data := make([]byte, 6*bytesPerPixel)
	f := NewFrame(1_500_000, 90, PixelFormatBGRA, data, 3, 2)

	info := f.Info()
	if info.Width != 2 || info.Height != 3 {
		t.Fatalf("got %dx%d, want 2x3", info.Width, info.Height)
	}
	if info.SizeInBytes != 6*bytesPerPixel {
		t.Fatalf("got size %d, want %d", info.SizeInBytes, 6*bytesPerPixel)
	}
	if info.TimeMills != 1500 {
		t.Fatalf("got time %d, want 1500", info.TimeMills)
	}
	if info.Format != PixelFormatBGRA {
		t.Fatalf("got format %v, want bgra", info.Format)
	}
}

func TestFrameCopyDataAppliesRotation(t *testing.T) {
	t.Parallel()

	src := pixels(0, 1, 2, 3, 4, 5)
	f := NewFrame(0, 90, PixelFormatRGBA, src, 3, 2)

	dst := make([]byte, len(src))
	if err := f.CopyData(dst); err != nil {
		t.Fatal(err)
	}
	want := pixels(3, 0, 4, 1, 5, 2)
	if string(dst) != string(want) {
		t.Fatalf("got %v, want %v", dst, want)
	}
}
