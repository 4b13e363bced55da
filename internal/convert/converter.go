// Package convert adapts decoded frames to the packed pixel format and size
// requested by the playback session. The scale context is built lazily and
// rebuilt whenever the source pixel format changes mid-stream, which is rare
// but must not crash playback.
package convert

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/asticode/go-astiav"
)

// Converter converts frames of a fixed source size into one pre-allocated
// destination frame. The destination buffer is overwritten in place: results
// are valid only until the next Convert call.
type Converter struct {
	log *slog.Logger

	swsCtx *astiav.SoftwareScaleContext
	dst    *astiav.Frame

	srcWidth  int
	srcHeight int
	srcFormat astiav.PixelFormat // format the scale context was built for

	dstWidth  int
	dstHeight int
	dstFormat astiav.PixelFormat
}

// New allocates a Converter for srcWidth x srcHeight input frames. Scale
// values inside (0,1) shrink the destination; anything else means full size.
// The single destination frame and its buffer live for the converter's
// lifetime.
func New(srcWidth, srcHeight int, dstFormat astiav.PixelFormat, scale float64, log *slog.Logger) (*Converter, error) {
	if log == nil {
		log = slog.Default()
	}
	dw, dh := destDims(srcWidth, srcHeight, scale)

	dst := astiav.AllocFrame()
	if dst == nil {
		return nil, errors.New("convert: alloc frame")
	}
	dst.SetWidth(dw)
	dst.SetHeight(dh)
	dst.SetPixelFormat(dstFormat)
	if err := dst.AllocBuffer(1); err != nil {
		dst.Free()
		return nil, fmt.Errorf("convert: alloc buffer %dx%d: %w", dw, dh, err)
	}

	return &Converter{
		log:       log.With("component", "convert"),
		dst:       dst,
		srcWidth:  srcWidth,
		srcHeight: srcHeight,
		srcFormat: astiav.PixelFormatNone,
		dstWidth:  dw,
		dstHeight: dh,
		dstFormat: dstFormat,
	}, nil
}

// destDims computes the destination dimensions for a scale factor: values
// in (0,1) scale both dimensions down, everything else keeps the source size.
func destDims(w, h int, scale float64) (int, int) {
	if scale > 0 && scale < 1 {
		return int(float64(w) * scale), int(float64(h) * scale)
	}
	return w, h
}

// OutputDims returns the destination frame dimensions.
func (c *Converter) OutputDims() (int, int) { return c.dstWidth, c.dstHeight }

// Convert scales src into the converter's destination frame, carrying the
// presentation timestamp over unmodified. A scale-context build failure is
// fatal for this conversion and reported upward; it is not retried here.
func (c *Converter) Convert(src *astiav.Frame) (*astiav.Frame, error) {
	if err := c.ensureContext(src.PixelFormat()); err != nil {
		return nil, err
	}
	if err := c.swsCtx.ScaleFrame(src, c.dst); err != nil {
		return nil, fmt.Errorf("convert: scale frame: %w", err)
	}
	c.dst.SetPts(src.Pts())
	return c.dst, nil
}

// ensureContext (re)builds the scale context when absent or when the source
// pixel format changed since the last call, freeing the stale one first.
func (c *Converter) ensureContext(srcFormat astiav.PixelFormat) error {
	if c.swsCtx != nil && srcFormat == c.srcFormat {
		return nil
	}
	if c.swsCtx != nil {
		c.log.Debug("source pixel format changed, rebuilding scale context",
			"old", c.srcFormat.String(), "new", srcFormat.String())
		c.swsCtx.Free()
		c.swsCtx = nil
	}

	swsCtx, err := astiav.CreateSoftwareScaleContext(
		c.srcWidth, c.srcHeight, srcFormat,
		c.dstWidth, c.dstHeight, c.dstFormat,
		astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear),
	)
	if err != nil {
		return fmt.Errorf("convert: create scale context (%dx%d %s -> %dx%d %s): %w",
			c.srcWidth, c.srcHeight, srcFormat, c.dstWidth, c.dstHeight, c.dstFormat, err)
	}
	c.swsCtx = swsCtx
	c.srcFormat = srcFormat
	return nil
}

// Close releases the destination frame and the scale context.
func (c *Converter) Close() {
	if c.dst != nil {
		c.dst.Free()
		c.dst = nil
	}
	if c.swsCtx != nil {
		c.swsCtx.Free()
		c.swsCtx = nil
	}
}
