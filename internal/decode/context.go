// Package decode owns the demuxer and video decoder for one open media
// resource. It performs one-time property discovery (duration, rotation,
// frame rate, key-frame interval, decoder throughput) and transport control
// (seek, flush) on behalf of the playback session, and hands decoded frames
// to the session one at a time.
package decode

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"

	"github.com/asticode/go-astiav"

	"playcore/internal/source"
)

const ioBufferSize = 32 * 1024

// avSeekSize is the AVSEEK_SIZE whence sentinel the demuxer passes to the
// seek callback to query the stream size.
const avSeekSize = 0x10000

// avTimeBaseQ is the 1/AV_TIME_BASE rational used for container-level
// timestamps (microseconds).
var avTimeBaseQ = astiav.NewRational(1, 1_000_000)

// Property-discovery failures that abort LoadProperties.
var (
	ErrNoVideoStream       = errors.New("decode: no video stream")
	ErrDecoderOpen         = errors.New("decode: decoder open failed")
	ErrDurationUnavailable = errors.New("decode: duration unavailable")
)

// Context owns one open media resource: the custom-IO demuxer, the selected
// video decoder, and the stream properties derived from them. An audio
// stream index is tracked for reporting but audio is never decoded.
//
// The exported property fields are populated once by LoadProperties and are
// read-only afterward.
type Context struct {
	log *slog.Logger

	ioCtx       *astiav.IOContext
	fmtCtx      *astiav.FormatContext
	inputOpened bool
	videoStream *astiav.Stream
	videoIdx    int
	audioIdx    int
	decCtx      *astiav.CodecContext

	// NextFrame demux/drain state.
	pkt      *astiav.Packet
	draining bool

	TimeBase            astiav.Rational
	DurationPTS         int64 // stream timebase units
	DurationSeconds     float64
	FrameRate           float64
	TotalFrames         int64
	Rotation            int
	NativeWidth         int
	NativeHeight        int
	ActualWidth         int
	ActualHeight        int
	PixelFormat         astiav.PixelFormat
	FrameSizeBytes      int
	KeyFrameIntervalPTS int64
	DecoderFPS          float64
	CodecName           string
}

// Open allocates the demuxer over src and probes stream info. The demuxer
// never touches src directly: all reads and seeks indirect through the
// custom IO callbacks, so the source implementation stays swappable. On
// failure every resource allocated so far is released.
func Open(src source.Source, log *slog.Logger) (_ *Context, err error) {
	if log == nil {
		log = slog.Default()
	}
	c := &Context{
		log:                 log.With("component", "decode"),
		videoIdx:            -1,
		audioIdx:            -1,
		KeyFrameIntervalPTS: -1,
	}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	c.fmtCtx = astiav.AllocFormatContext()
	if c.fmtCtx == nil {
		return nil, errors.New("decode: alloc format context")
	}

	c.ioCtx, err = astiav.AllocIOContext(ioBufferSize, false,
		func(b []byte) (int, error) { return src.Read(b) },
		func(offset int64, whence int) (int64, error) {
			if whence == avSeekSize {
				if sz := src.Size(); sz > 0 {
					return sz, nil
				}
				return 0, errors.New("size unknown")
			}
			return src.Seek(offset, whence)
		},
		nil)
	if err != nil {
		return nil, fmt.Errorf("decode: alloc io context: %w", err)
	}

	c.fmtCtx.SetPb(c.ioCtx)
	c.fmtCtx.SetFlags(c.fmtCtx.Flags().Add(astiav.FormatContextFlagCustomIo))

	if err = c.fmtCtx.OpenInput("", nil, nil); err != nil {
		return nil, fmt.Errorf("decode: open input: %w", err)
	}
	c.inputOpened = true

	if err = c.fmtCtx.FindStreamInfo(nil); err != nil {
		return nil, fmt.Errorf("decode: find stream info: %w", err)
	}

	c.pkt = astiav.AllocPacket()
	return c, nil
}

// LoadProperties selects the video stream, opens its decoder, and derives
// all stream properties. Stream/decoder/duration failures abort; the
// key-frame and throughput probes degrade to sentinel values instead. It
// always leaves the read position at the start of the stream.
func (c *Context) LoadProperties(measureThroughput bool) error {
	for _, s := range c.fmtCtx.Streams() {
		switch s.CodecParameters().MediaType() {
		case astiav.MediaTypeVideo:
			if c.videoIdx < 0 {
				c.videoStream = s
				c.videoIdx = s.Index()
			}
		case astiav.MediaTypeAudio:
			if c.audioIdx < 0 {
				c.audioIdx = s.Index()
			}
		}
	}
	if c.videoIdx < 0 {
		return ErrNoVideoStream
	}

	codec := astiav.FindDecoder(c.videoStream.CodecParameters().CodecID())
	if codec == nil {
		return fmt.Errorf("%w: no decoder for codec id %d", ErrDecoderOpen, c.videoStream.CodecParameters().CodecID())
	}
	c.decCtx = astiav.AllocCodecContext(codec)
	if c.decCtx == nil {
		return fmt.Errorf("%w: alloc codec context", ErrDecoderOpen)
	}
	if err := c.videoStream.CodecParameters().ToCodecContext(c.decCtx); err != nil {
		return fmt.Errorf("%w: copy codec parameters: %s", ErrDecoderOpen, err)
	}
	c.decCtx.SetFramerate(c.fmtCtx.GuessFrameRate(c.videoStream, nil))
	if err := c.decCtx.Open(codec, nil); err != nil {
		return fmt.Errorf("%w: %s", ErrDecoderOpen, err)
	}
	c.CodecName = codec.Name()

	c.TimeBase = c.videoStream.TimeBase()
	switch {
	case c.videoStream.Duration() > 0:
		c.DurationPTS = c.videoStream.Duration()
	case c.fmtCtx.Duration() > 0:
		c.DurationPTS = astiav.RescaleQ(c.fmtCtx.Duration(), avTimeBaseQ, c.TimeBase)
	default:
		return ErrDurationUnavailable
	}
	c.DurationSeconds = float64(c.DurationPTS) * c.TimeBase.Float64()

	c.FrameRate = c.videoStream.AvgFrameRate().Float64()
	if c.FrameRate > 0 {
		c.TotalFrames = int64(c.DurationSeconds * c.FrameRate)
	}
	if nb := c.videoStream.NbFrames(); nb > 0 {
		c.TotalFrames = nb
	}
	c.Rotation = c.streamRotation()

	c.NativeWidth = c.decCtx.Width()
	c.NativeHeight = c.decCtx.Height()
	c.PixelFormat = c.decCtx.PixelFormat()
	c.ActualWidth, c.ActualHeight = actualDims(c.NativeWidth, c.NativeHeight, c.Rotation)

	c.KeyFrameIntervalPTS = c.probeKeyFrameInterval()
	if measureThroughput {
		c.DecoderFPS = c.probeDecoderFPS()
	}
	c.SeekToStart()
	return nil
}

// streamRotation reads the rotation angle from the stream's "rotate"
// metadata tag, falling back to the display-matrix side data, then 0.
func (c *Context) streamRotation() int {
	if md := c.videoStream.Metadata(); md != nil {
		if e := md.Get("rotate", nil, 0); e != nil {
			if angle, err := strconv.Atoi(e.Value()); err == nil {
				return normalizeRotation(angle)
			}
			c.log.Warn("unparseable rotate tag", "value", e.Value())
		}
	}
	if sd := c.videoStream.CodecParameters().SideData().Get(astiav.PacketSideDataTypeDisplaymatrix); len(sd) > 0 {
		if dm, err := astiav.NewDisplayMatrixFromBytes(sd); err == nil {
			return normalizeRotation(int(math.Round(dm.Rotation())))
		}
	}
	return 0
}

// NextFrame decodes the next video frame of the stream into dst. It skips
// packets of other streams, discards packets the decoder rejects, and
// drains all frames buffered by the decoder across calls. io.EOF signals
// end of stream; any other error is a read error the caller may retry.
func (c *Context) NextFrame(dst *astiav.Frame) error {
	for {
		if c.draining {
			err := c.decCtx.ReceiveFrame(dst)
			if err == nil {
				return nil
			}
			c.draining = false
			if !errors.Is(err, astiav.ErrEagain) && !errors.Is(err, astiav.ErrEof) {
				c.log.Debug("receive frame", "error", err)
			}
		}

		if err := c.fmtCtx.ReadFrame(c.pkt); err != nil {
			if errors.Is(err, astiav.ErrEof) {
				return io.EOF
			}
			return fmt.Errorf("decode: read frame: %w", err)
		}
		if c.pkt.StreamIndex() != c.videoIdx {
			c.pkt.Unref()
			continue
		}

		err := c.decCtx.SendPacket(c.pkt)
		c.pkt.Unref()
		if err != nil {
			c.log.Debug("send packet", "error", err)
			continue
		}
		c.draining = true
	}
}

// SeekToStart repositions the video stream (and the tracked audio stream)
// at zero with the backward flag and flushes the decoder. Partial errors
// are logged, never surfaced; the reset is idempotent.
func (c *Context) SeekToStart() {
	backward := astiav.NewSeekFlags(astiav.SeekFlagBackward)
	if c.videoIdx >= 0 {
		if err := c.fmtCtx.SeekFrame(c.videoIdx, 0, backward); err != nil {
			c.log.Warn("seek video stream to start", "error", err)
		}
	}
	if c.audioIdx >= 0 {
		if err := c.fmtCtx.SeekFrame(c.audioIdx, 0, backward); err != nil {
			c.log.Warn("seek audio stream to start", "error", err)
		}
	}
	c.Flush()
}

// Flush drops all frames buffered inside the decoder.
func (c *Context) Flush() {
	if c.decCtx != nil {
		flushBuffers(c.decCtx)
	}
	c.draining = false
}

// SeekGlobalUS flushes the decoder and issues a global backward seek to the
// given position in AV_TIME_BASE (microsecond) units.
func (c *Context) SeekGlobalUS(us int64) error {
	c.Flush()
	if err := c.fmtCtx.SeekFrame(-1, us, astiav.NewSeekFlags(astiav.SeekFlagBackward)); err != nil {
		return fmt.Errorf("decode: seek to %dus: %w", us, err)
	}
	return nil
}

// ContainerDurationUS returns the container duration in microseconds,
// falling back to the video stream duration rescaled, then 0.
func (c *Context) ContainerDurationUS() int64 {
	if d := c.fmtCtx.Duration(); d > 0 {
		return d
	}
	if c.videoStream != nil && c.videoStream.Duration() > 0 {
		return astiav.RescaleQ(c.videoStream.Duration(), c.TimeBase, avTimeBaseQ)
	}
	return 0
}

// DurationMills returns the stream duration in milliseconds.
func (c *Context) DurationMills() int64 {
	return int64(math.Round(c.DurationSeconds * 1000))
}

// DropAudio stops tracking the audio stream, as if the container had none.
func (c *Context) DropAudio() { c.audioIdx = -1 }

// HasAudio reports whether an audio stream is tracked.
func (c *Context) HasAudio() bool { return c.audioIdx >= 0 }

// Close releases the decoder, the demuxer, and the IO context, in that
// order. Safe on a partially constructed Context. The underlying Source
// must stay alive until Close returns: the demuxer may still call the read
// callback while closing.
func (c *Context) Close() {
	if c.pkt != nil {
		c.pkt.Free()
		c.pkt = nil
	}
	if c.decCtx != nil {
		c.decCtx.Free()
		c.decCtx = nil
	}
	if c.fmtCtx != nil {
		if c.inputOpened {
			c.fmtCtx.CloseInput()
		}
		c.fmtCtx.Free()
		c.fmtCtx = nil
	}
	if c.ioCtx != nil {
		c.ioCtx.Free()
		c.ioCtx = nil
	}
}

// BestEffortPTS mirrors av_frame best-effort timestamp selection: pts,
// then packet dts, then 0.
func BestEffortPTS(f *astiav.Frame) int64 {
	if pts := f.Pts(); pts != astiav.NoPtsValue {
		return pts
	}
	if dts := f.PktDts(); dts != astiav.NoPtsValue {
		return dts
	}
	return 0
}
