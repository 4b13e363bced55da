package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"playcore/media"
	"playcore/player"
)

var version = "dev"

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	mute := flag.Bool("mute", false, "drop the audio stream")
	scale := flag.Float64("scale", 0, "frame scale factor in (0,1); 0 means full size")
	start := flag.Int64("start", 0, "start position in milliseconds")
	seek := flag.Float64("seek", -1, "seek to this fraction of the duration after 2s of playback")
	maxFrames := flag.Int64("frames", 0, "stop after this many frames; 0 means play until interrupted")
	dumpDir := flag.String("dump", "", "write every 30th frame as PNG into this directory")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <path | fd://N>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
		os.Exit(2)
	}
	uri := flag.Arg(0)

	slog.Info("playcore starting", "version", version, "uri", uri)

	var frames atomic.Int64
	done := make(chan struct{})

	p := player.New(nil)
	err := p.Open(uri, player.Options{
		Mute:       *mute,
		StartMills: *start,
		FrameScale: *scale,
		VideoInfoCallback: func(info media.VideoInfo) {
			slog.Info("media properties",
				"codec", info.Codec,
				"size", fmt.Sprintf("%dx%d", info.Width, info.Height),
				"duration_ms", info.DurationMills,
				"fps", info.FPS,
				"decoder_fps", info.DecoderFPS,
				"rotation", info.Rotation,
				"has_audio", info.HasAudio,
				"key_interval_pts", info.KeyFrameIntervalPTS,
			)
		},
		FrameCallback: func(f *media.Frame) {
			n := frames.Add(1)
			if *dumpDir != "" && n%30 == 1 {
				if err := writePNG(*dumpDir, f, n); err != nil {
					slog.Warn("dump frame", "error", err)
				}
			}
			if *maxFrames > 0 && n >= *maxFrames {
				select {
				case <-done:
				default:
					close(done)
				}
			}
		},
	})
	if err != nil {
		slog.Error("failed to open media", "error", err)
		os.Exit(1)
	}
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	g, ctx := errgroup.WithContext(ctx)

	if *seek >= 0 {
		g.Go(func() error {
			select {
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
				return nil
			}
			if err := p.SeekToPercent(*seek); err != nil {
				return fmt.Errorf("seek to %.2f: %w", *seek, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		select {
		case <-ctx.Done():
		case <-done:
			slog.Info("frame budget reached, shutting down", "frames", frames.Load())
			cancel()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("playback control error", "error", err)
	}

	stats := p.Stats()
	slog.Info("playback finished",
		"frames_delivered", stats.FramesDelivered,
		"position_ms", stats.PositionMills,
		"uptime_ms", stats.UptimeMs,
	)
}

// writePNG copies the frame's pixels (rotation applied) into an RGBA image
// and writes it under dir. BGRA frames come out with red and blue swapped;
// good enough for eyeballing output.
func writePNG(dir string, f *media.Frame, n int64) error {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	if err := f.CopyData(img.Pix); err != nil {
		return err
	}
	out, err := os.Create(filepath.Join(dir, fmt.Sprintf("frame_%06d.png", n)))
	if err != nil {
		return err
	}
	defer out.Close()
	return png.Encode(out, img)
}
