package audio

import "math"

// Discord voice format: 48 kHz stereo, 20 ms frames.
const (
	SampleRate = 48000
	Channels   = 2

	// FrameSamples is the number of samples per channel in one 20 ms frame.
	FrameSamples = SampleRate / 50 // 960

	// FrameBytes is the size of one 20 ms frame of int16 stereo PCM.
	FrameBytes = FrameSamples * Channels * 2 // 3840
)

// ApplyVolume scales little-endian int16 PCM in place by gain, clamping to the
// int16 range. A gain of 1 leaves pcm untouched. A trailing odd byte is ignored.
func ApplyVolume(pcm []byte, gain float64) {
	if gain == 1 {
		return
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		s := float64(int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8))
		v := math.Round(s * gain)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		out := uint16(int16(v))
		pcm[i] = byte(out)
		pcm[i+1] = byte(out >> 8)
	}
}

// Silence returns one frame of zeroed PCM.
func Silence() []byte {
	return make([]byte, FrameBytes)
}
