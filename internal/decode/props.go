package decode

// normalizeRotation folds a metadata rotation angle into (-360, 360),
// preserving its sign.
func normalizeRotation(angle int) int {
	return angle % 360
}

// actualDims returns the display dimensions for a stream of native w x h:
// swapped when the rotation is a quarter turn, unchanged otherwise.
func actualDims(w, h, rotation int) (int, int) {
	if rotation < 0 {
		rotation = -rotation
	}
	if rotation == 90 || rotation == 270 {
		return h, w
	}
	return w, h
}

// keyFrameInterval estimates key-frame spacing from the pts of the last of
// keyFrames observed key frames, assuming the first sits at pts 0.
func keyFrameInterval(lastKeyPTS int64, keyFrames int) int64 {
	if keyFrames <= 1 || lastKeyPTS < 0 {
		return -1
	}
	return lastKeyPTS / int64(keyFrames-1)
}

// throughputFPS converts a decoded-frame count over an elapsed wall-clock
// span into frames per second, 0 when unmeasurable.
func throughputFPS(frames int, elapsedMs int64) float64 {
	if frames <= 0 || elapsedMs <= 0 {
		return 0
	}
	return float64(frames) * 1000 / float64(elapsedMs)
}
