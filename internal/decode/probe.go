package decode

import (
	"errors"
	"time"

	"github.com/asticode/go-astiav"

	"playcore/media"
)

// probeFrameBudget caps the throughput probe; decoding ten frames is enough
// to estimate sustained decode speed without a noticeable open delay.
const probeFrameBudget = 10

// probeKeyFrames is how many key frames the interval probe inspects.
const probeKeyFrames = 3

// probeKeyFrameInterval reads up to probeKeyFrames key frames from the video
// stream and estimates their spacing in stream timebase units. Returns -1
// when the interval cannot be determined (read error before the first key
// frame, missing packet pts, or fewer than two key frames).
func (c *Context) probeKeyFrameInterval() int64 {
	pkt := astiav.AllocPacket()
	defer pkt.Free()

	var lastKeyPTS int64 = -1
	keyFrames := 0
	for keyFrames < probeKeyFrames {
		if err := c.fmtCtx.ReadFrame(pkt); err != nil {
			if errors.Is(err, astiav.ErrEof) {
				break
			}
			if keyFrames == 0 {
				c.log.Debug("key frame probe read failed", "error", err)
				return -1
			}
			break
		}
		if pkt.StreamIndex() == c.videoIdx {
			if pkt.Pts() == astiav.NoPtsValue {
				pkt.Unref()
				return -1
			}
			if pkt.Flags().Has(astiav.PacketFlagKey) {
				keyFrames++
				lastKeyPTS = pkt.Pts()
				c.log.Debug("key frame seen", "pts", lastKeyPTS, "index", keyFrames-1)
			}
		}
		pkt.Unref()
	}

	if keyFrames <= 1 {
		return -1
	}
	c.Flush()
	return keyFrameInterval(lastKeyPTS, keyFrames)
}

// probeDecoderFPS measures empirical decode throughput by decoding up to
// probeFrameBudget frames from the start of the stream and timing the run.
// Packets are fed in batches and the decoder is drained with a nil packet
// at the end so buffered frames are counted. Returns 0 on any decode error,
// zero frames, or zero elapsed time. The read position is restored to the
// start of the stream afterward.
func (c *Context) probeDecoderFPS() float64 {
	c.SeekToStart()

	pkt := astiav.AllocPacket()
	defer pkt.Free()
	f := astiav.AllocFrame()
	defer f.Free()

	frames := 0
	ok := true
	start := time.Now()

read:
	for frames < probeFrameBudget {
		if err := c.fmtCtx.ReadFrame(pkt); err != nil {
			if errors.Is(err, astiav.ErrEof) {
				break
			}
			c.log.Debug("throughput probe read failed", "error", err)
			ok = false
			break
		}
		if pkt.StreamIndex() != c.videoIdx {
			pkt.Unref()
			continue
		}
		err := c.decCtx.SendPacket(pkt)
		pkt.Unref()
		if err != nil {
			c.log.Debug("throughput probe send failed", "error", err)
			ok = false
			break
		}
		for frames < probeFrameBudget {
			if err := c.decCtx.ReceiveFrame(f); err != nil {
				if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
					break
				}
				c.log.Debug("throughput probe receive failed", "error", err)
				ok = false
				break read
			}
			c.recordFrameSize(f)
			frames++
			f.Unref()
		}
	}

	// Drain buffered frames with a nil-packet flush so short streams still
	// produce a measurement.
	if ok && frames < probeFrameBudget {
		if err := c.decCtx.SendPacket(nil); err == nil {
			for frames < probeFrameBudget {
				if err := c.decCtx.ReceiveFrame(f); err != nil {
					break
				}
				c.recordFrameSize(f)
				frames++
				f.Unref()
			}
		}
	}

	elapsedMs := time.Since(start).Milliseconds()
	c.SeekToStart()

	if !ok {
		c.log.Debug("throughput probe failed")
		return 0
	}
	fps := throughputFPS(frames, elapsedMs)
	c.log.Debug("throughput probe", "frames", frames, "elapsed_ms", elapsedMs, "fps", fps)
	return fps
}

// recordFrameSize captures the native frame byte size from the first
// decoded frame.
func (c *Context) recordFrameSize(f *astiav.Frame) {
	if c.FrameSizeBytes > 0 {
		return
	}
	if n, err := f.ImageBufferSize(1); err == nil {
		c.FrameSizeBytes = n
	}
}

// VideoInfo snapshots the loaded properties. The PixelFormat field is left
// for the caller to fill once the delivery format has been negotiated.
func (c *Context) VideoInfo() media.VideoInfo {
	return media.VideoInfo{
		DurationMills:       c.DurationMills(),
		TotalFrames:         c.TotalFrames,
		Width:               c.ActualWidth,
		Height:              c.ActualHeight,
		HasAudio:            c.HasAudio(),
		FPS:                 c.FrameRate,
		DecoderFPS:          c.DecoderFPS,
		Codec:               c.CodecName,
		Rotation:            c.Rotation,
		KeyFrameIntervalPTS: c.KeyFrameIntervalPTS,
	}
}
