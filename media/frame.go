// Package media defines the frame and stream-info types that flow out of
// the playback pipeline, from decode through delivery to the caller's
// frame callback.
package media

import "errors"

// Packed RGBA/BGRA, four bytes per pixel.
const bytesPerPixel = 4

// Errors returned by the pixel-copy helpers.
var (
	ErrBufferTooSmall      = errors.New("media: buffer too small")
	ErrUnsupportedRotation = errors.New("media: unsupported rotation")
)

// PixelFormat identifies the packed pixel layout of a delivered frame.
type PixelFormat int

// Supported delivery formats. Everything that is not already packed
// RGBA/BGRA is converted to RGBA before delivery.
const (
	PixelFormatUnknown PixelFormat = iota
	PixelFormatRGBA
	PixelFormatBGRA
)

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatRGBA:
		return "rgba"
	case PixelFormatBGRA:
		return "bgra"
	default:
		return "unknown"
	}
}

// VideoInfo is a snapshot of the properties of an open media resource,
// produced once right after Open. It is not kept in sync afterward.
type VideoInfo struct {
	DurationMills int64
	TotalFrames   int64
	Width         int // rotation-adjusted
	Height        int // rotation-adjusted
	HasAudio      bool
	FPS           float64
	DecoderFPS    float64 // measured decode throughput, 0 if unmeasured
	Codec         string
	Rotation      int // stream rotation as recorded in metadata
	PixelFormat   PixelFormat
	// KeyFrameIntervalPTS is the probed key-frame spacing in stream timebase
	// units, -1 when it could not be determined.
	KeyFrameIntervalPTS int64
}

// FrameInfo describes a delivered frame for callers that copy its pixels out.
type FrameInfo struct {
	Width       int
	Height      int
	SizeInBytes int
	TimeMills   int64
	Format      PixelFormat
}

// Frame is a single decoded, format-converted video frame handed to the
// frame callback. The pixel buffer is owned by the pipeline and is valid
// only for the duration of the callback; callers keeping pixels must copy
// them out with CopyData.
type Frame struct {
	// PTS is the presentation timestamp in microseconds.
	PTS int64
	// Width and Height are the dimensions the consumer sees after applying
	// Rotation, i.e. swapped relative to the pixel buffer when Rotation is
	// 90 or 270.
	Width  int
	Height int
	// Rotation is the single corrective rotation (0/90/180/270, clockwise)
	// the consumer applies to display the frame upright.
	Rotation int
	Format   PixelFormat

	data      []byte
	srcWidth  int
	srcHeight int
}

// NewFrame wraps a packed pixel buffer of srcWidth x srcHeight in a Frame.
// The reported Width/Height are swapped when the corrective rotation is 90
// or 270. The buffer is borrowed, not copied.
func NewFrame(ptsMicros int64, rotation int, format PixelFormat, data []byte, srcWidth, srcHeight int) Frame {
	w, h := srcWidth, srcHeight
	if rotation == 90 || rotation == 270 {
		w, h = h, w
	}
	return Frame{
		PTS:       ptsMicros,
		Width:     w,
		Height:    h,
		Rotation:  rotation,
		Format:    format,
		data:      data,
		srcWidth:  srcWidth,
		srcHeight: srcHeight,
	}
}

// Info returns the frame's delivery metadata.
func (f *Frame) Info() FrameInfo {
	return FrameInfo{
		Width:       f.Width,
		Height:      f.Height,
		SizeInBytes: f.Width * f.Height * bytesPerPixel,
		TimeMills:   f.PTS / 1000,
		Format:      f.Format,
	}
}

// CopyData copies the frame's rotation-corrected packed pixels into dst,
// which must hold at least Width*Height*4 bytes.
func (f *Frame) CopyData(dst []byte) error {
	return CopyRotated(dst, f.data, f.srcWidth, f.srcHeight, f.Rotation)
}

// CopyRotated copies a packed 4-byte-per-pixel image of width x height from
// src into dst, rotated clockwise by rotation degrees (0, 90, 180 or 270).
// For 90 and 270 the output dimensions are the swapped input dimensions.
func CopyRotated(dst, src []byte, width, height, rotation int) error {
	switch rotation {
	case 0, 90, 180, 270:
	default:
		return ErrUnsupportedRotation
	}

	n := width * height * bytesPerPixel
	if len(src) < n || len(dst) < n {
		return ErrBufferTooSmall
	}

	if rotation == 0 {
		copy(dst[:n], src[:n])
		return nil
	}

	outWidth := width
	if rotation == 90 || rotation == 270 {
		outWidth = height
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var dstX, dstY int
			switch rotation {
			case 90:
				dstX, dstY = height-1-y, x
			case 180:
				dstX, dstY = width-1-x, height-1-y
			case 270:
				dstX, dstY = y, width-1-x
			}
			si := (y*width + x) * bytesPerPixel
			di := (dstY*outWidth + dstX) * bytesPerPixel
			copy(dst[di:di+bytesPerPixel], src[si:si+bytesPerPixel])
		}
	}
	return nil
}
