// Package audio provides the PCM plumbing between files, the realtime
// session, and the voice adapters: 16-bit little-endian sample helpers, a
// minimal WAV codec, sample-rate conversion, and RTP depacketization for the
// WebRTC remote track.
package audio

import (
	"fmt"
	"time"
)

// Format describes raw PCM16LE audio.
type Format struct {
	// Rate is the sample rate in Hz.
	Rate int
	// Channels is 1 (mono) or 2 (stereo).
	Channels int
}

// Realtime24k is the input/output format of the realtime voice endpoint.
var Realtime24k = Format{Rate: 24000, Channels: 1}

// FrameBytes returns the byte size of one multi-channel sample frame.
func (f Format) FrameBytes() int { return 2 * f.Channels }

// Duration reports the play time of n bytes of PCM in this format.
func (f Format) Duration(n int) time.Duration {
	if f.Rate == 0 || f.Channels == 0 {
		return 0
	}
	frames := n / f.FrameBytes()
	return time.Duration(frames) * time.Second / time.Duration(f.Rate)
}

func (f Format) String() string {
	return fmt.Sprintf("pcm16/%dHz/%dch", f.Rate, f.Channels)
}

// Samples decodes PCM16LE bytes into int16 samples. A trailing odd byte is
// dropped.
func Samples(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(b[2*i]) | int16(b[2*i+1])<<8
	}
	return out
}

// Bytes encodes int16 samples as PCM16LE.
func Bytes(samples []int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}

// DownmixStereo averages interleaved stereo PCM16LE into mono.
func DownmixStereo(b []byte) []byte {
	in := Samples(b)
	out := make([]int16, len(in)/2)
	for i := range out {
		out[i] = int16((int32(in[2*i]) + int32(in[2*i+1])) / 2)
	}
	return Bytes(out)
}
