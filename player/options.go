package player

import "playcore/media"

// Options configures one Open call. The zero value plays unmuted, at full
// size, from position zero, with no callbacks.
type Options struct {
	// Mute skips the audio stream entirely; no audio decoder is ever opened
	// and VideoInfo reports HasAudio false.
	Mute bool

	// StartMills is the initial playback position in milliseconds. When
	// positive, Open performs a best-effort backward seek there before the
	// first frame is delivered, falling back to position zero if the seek
	// fails.
	StartMills int64

	// FrameScale multiplies the destination frame size. Values outside
	// (0,1) mean full size.
	FrameScale float64

	// VideoInfoCallback is invoked once, synchronously, right after Open
	// succeeds. It never fires when Open fails.
	VideoInfoCallback func(media.VideoInfo)

	// FrameCallback is invoked per decoded frame on the decode goroutine,
	// blocking the decode loop for its duration. The frame's pixel buffer
	// is valid only for the duration of the call.
	FrameCallback func(*media.Frame)
}
