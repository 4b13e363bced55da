package player

import (
	"fmt"
	"log/slog"

	"github.com/asticode/go-astiav"

	"playcore/internal/convert"
	"playcore/internal/decode"
	"playcore/internal/source"
	"playcore/media"
)

// engine is the narrow surface the playback session drives: the demuxer,
// decoder, and converter sit behind it as a black box. The production
// implementation wraps the libav-backed decode context; session tests
// substitute a scripted fake.
type engine interface {
	// Info returns the property snapshot taken when the engine was opened.
	Info() media.VideoInfo
	DurationMills() int64
	// ReadFrame returns the next converted frame. io.EOF signals end of
	// stream; any other error is transient and may be retried.
	ReadFrame() (*media.Frame, error)
	// RestartAtStart repositions the stream at zero after end of stream.
	RestartAtStart()
	// SeekPercent flushes the decoder and repositions at duration*pct
	// (pct already clamped to [0,1]), returning the target position in
	// milliseconds.
	SeekPercent(pct float64) (int64, error)
	// SeekMills performs an absolute backward seek, used for the initial
	// start offset.
	SeekMills(ms int64) error
	Close()
}

// newEngine builds the production engine; session tests swap it out.
var newEngine = func(uri string, opts Options, log *slog.Logger) (engine, error) {
	return openAVEngine(uri, opts, log)
}

// avEngine composes a byte source, the decode context, and the frame
// converter into the engine the session loop consumes.
type avEngine struct {
	log  *slog.Logger
	src  source.Source
	ctx  *decode.Context
	conv *convert.Converter

	raw *astiav.Frame
	buf []byte // packed pixel scratch, reused across frames

	info     media.VideoInfo
	scaling  bool
	rotation int // corrective rotation applied by the consumer
}

// openAVEngine opens uri and discovers its properties, negotiating the
// delivery pixel format: packed RGBA/BGRA sources pass through untouched
// when no scaling is requested, everything else converts to RGBA. Failure
// at any step releases everything allocated so far; no partial state leaks.
func openAVEngine(uri string, opts Options, log *slog.Logger) (_ *avEngine, err error) {
	if log == nil {
		log = slog.Default()
	}
	e := &avEngine{log: log}
	defer func() {
		if err != nil {
			e.Close()
		}
	}()

	if e.src, err = source.Open(uri); err != nil {
		return nil, err
	}
	if e.ctx, err = decode.Open(e.src, log); err != nil {
		return nil, err
	}
	if err = e.ctx.LoadProperties(true); err != nil {
		return nil, err
	}
	if opts.Mute {
		e.ctx.DropAudio()
	}

	e.scaling = opts.FrameScale > 0 && opts.FrameScale < 1

	srcFormat := e.ctx.PixelFormat
	dstFormat := astiav.PixelFormatRgba
	infoFormat := media.PixelFormatRGBA
	if !e.scaling {
		switch srcFormat {
		case astiav.PixelFormatRgba:
			dstFormat = srcFormat
		case astiav.PixelFormatBgra:
			dstFormat = srcFormat
			infoFormat = media.PixelFormatBGRA
		}
	}

	e.conv, err = convert.New(e.ctx.NativeWidth, e.ctx.NativeHeight, dstFormat, opts.FrameScale, log)
	if err != nil {
		return nil, err
	}

	e.rotation = correctiveRotation(e.ctx.Rotation)
	e.raw = astiav.AllocFrame()
	e.info = e.ctx.VideoInfo()
	e.info.PixelFormat = infoFormat

	e.log.Debug("engine opened",
		"codec", e.info.Codec,
		"duration_ms", e.info.DurationMills,
		"native", fmt.Sprintf("%dx%d", e.ctx.NativeWidth, e.ctx.NativeHeight),
		"rotation", e.ctx.Rotation,
		"format", srcFormat.String(),
	)
	return e, nil
}

func (e *avEngine) Info() media.VideoInfo { return e.info }

func (e *avEngine) DurationMills() int64 { return e.ctx.DurationMills() }

func (e *avEngine) ReadFrame() (*media.Frame, error) {
	if err := e.ctx.NextFrame(e.raw); err != nil {
		return nil, err
	}
	defer e.raw.Unref()

	pts := decode.BestEffortPTS(e.raw)
	if pts < 0 {
		pts = 0
	}
	ptsMicros := int64(float64(pts) * e.ctx.TimeBase.Float64() * 1e6)

	out := e.raw
	if e.needsConvert(e.raw.PixelFormat()) {
		converted, err := e.conv.Convert(e.raw)
		if err != nil {
			return nil, err
		}
		out = converted
	}

	n, err := out.ImageBufferSize(1)
	if err != nil {
		return nil, fmt.Errorf("player: image buffer size: %w", err)
	}
	if cap(e.buf) < n {
		e.buf = make([]byte, n)
	}
	e.buf = e.buf[:n]
	if _, err := out.ImageCopyToBuffer(e.buf, 1); err != nil {
		return nil, fmt.Errorf("player: image copy: %w", err)
	}

	f := media.NewFrame(ptsMicros, e.rotation, deliveredFormat(out.PixelFormat()), e.buf, out.Width(), out.Height())
	return &f, nil
}

// needsConvert reports whether a decoded frame of the given format must go
// through the converter: anything not directly deliverable, or any frame
// when scaling is requested.
func (e *avEngine) needsConvert(f astiav.PixelFormat) bool {
	if e.scaling {
		return true
	}
	return f != astiav.PixelFormatRgba && f != astiav.PixelFormatBgra
}

func (e *avEngine) RestartAtStart() { e.ctx.SeekToStart() }

func (e *avEngine) SeekPercent(pct float64) (int64, error) {
	durUS := e.ctx.ContainerDurationUS()
	if durUS <= 0 {
		return 0, decode.ErrDurationUnavailable
	}
	targetUS := int64(float64(durUS) * pct)
	if err := e.ctx.SeekGlobalUS(targetUS); err != nil {
		return 0, err
	}
	return targetUS / 1000, nil
}

func (e *avEngine) SeekMills(ms int64) error {
	return e.ctx.SeekGlobalUS(ms * 1000)
}

// Close releases converter, decode context, then the byte source. The
// context must go before the source: the demuxer can still invoke the read
// callback during its own teardown.
func (e *avEngine) Close() {
	if e.conv != nil {
		e.conv.Close()
		e.conv = nil
	}
	if e.raw != nil {
		e.raw.Free()
		e.raw = nil
	}
	if e.ctx != nil {
		e.ctx.Close()
		e.ctx = nil
	}
	if e.src != nil {
		if err := e.src.Close(); err != nil {
			e.log.Warn("close source", "error", err)
		}
		e.src = nil
	}
}

// correctiveRotation inverts the recorded stream rotation so the consumer
// applies a single clockwise rotation to display the frame upright.
func correctiveRotation(streamRotation int) int {
	r := (360 - streamRotation) % 360
	if r < 0 {
		r += 360
	}
	return r
}

// deliveredFormat maps the packed libav format of a delivered frame to the
// public enum.
func deliveredFormat(f astiav.PixelFormat) media.PixelFormat {
	switch f {
	case astiav.PixelFormatRgba:
		return media.PixelFormatRGBA
	case astiav.PixelFormatBgra:
		return media.PixelFormatBGRA
	default:
		return media.PixelFormatUnknown
	}
}
