package asa

// mixChannels converts an interleaved PCM stream with sourceChannels
// channels per frame into one with targetChannels channels per frame: a
// mono source duplicates into every target channel; a stereo source mixed
// down to mono averages its two channels; any other layout takes the first
// targetChannels channels of each source frame (target channels beyond the
// source's count stay silent); equal channel counts pass through.
func mixChannels(samples []float32, sourceChannels, targetChannels int) []float32 {
	if sourceChannels == targetChannels {
		return samples
	}
	if sourceChannels <= 0 || targetChannels <= 0 {
		return nil
	}

	frames := len(samples) / sourceChannels
	out := make([]float32, frames*targetChannels)

	switch {
	case sourceChannels == 1:
		// Mono -> N: duplicate the single sample into every target channel.
		for f := 0; f < frames; f++ {
			v := samples[f]
			for c := 0; c < targetChannels; c++ {
				out[f*targetChannels+c] = v
			}
		}
	case sourceChannels == 2 && targetChannels == 1:
		for f := 0; f < frames; f++ {
			l := samples[f*2]
			r := samples[f*2+1]
			out[f] = (l + r) / 2
		}
	default:
		// Generic N -> M: take the first M channels of each N-sized frame
		// (matches the original's fallback branch for uncommon layouts).
		for f := 0; f < frames; f++ {
			for c := 0; c < targetChannels; c++ {
				if c < sourceChannels {
					out[f*targetChannels+c] = samples[f*sourceChannels+c]
				}
			}
		}
	}
	return out
}

// resample performs linear-interpolation resampling of interleaved PCM
// from sourceRate to targetRate, preserving channel interleaving. This is
// the exact algorithm in audio_pipeline.rs::resample: for every output
// frame, compute its fractional source-frame position, blend the two
// neighbouring source frames per channel.
func resample(samples []float32, sourceRate, targetRate, channels int) []float32 {
	if sourceRate == targetRate || sourceRate <= 0 || len(samples) == 0 {
		return samples
	}

	ratio := float64(sourceRate) / float64(targetRate)
	inputFrames := len(samples) / channels
	outputFrames := int(float64(inputFrames) / ratio)
	if outputFrames <= 0 {
		return nil
	}

	out := make([]float32, outputFrames*channels)
	for f := 0; f < outputFrames; f++ {
		srcPos := float64(f) * ratio
		srcFrameFloor := int(srcPos)
		srcFrameCeil := srcFrameFloor + 1
		if srcFrameCeil >= inputFrames {
			srcFrameCeil = inputFrames - 1
		}
		if srcFrameFloor >= inputFrames {
			srcFrameFloor = inputFrames - 1
		}
		frac := float32(srcPos - float64(srcFrameFloor))

		for c := 0; c < channels; c++ {
			a := samples[srcFrameFloor*channels+c]
			b := samples[srcFrameCeil*channels+c]
			out[f*channels+c] = a + (b-a)*frac
		}
	}
	return out
}
