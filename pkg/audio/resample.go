package audio

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resample converts PCM16LE audio from src to dst format in one shot:
// stereo is downmixed first when dst is mono, then the sample rate is
// converted. Equal formats return the input unchanged.
func Resample(pcm []byte, src, dst Format) ([]byte, error) {
	if src.Channels == 2 && dst.Channels == 1 {
		pcm = DownmixStereo(pcm)
		src.Channels = 1
	}
	if src.Channels != dst.Channels {
		return nil, fmt.Errorf("audio: cannot convert %d to %d channels", src.Channels, dst.Channels)
	}
	if src.Rate == dst.Rate {
		return pcm, nil
	}

	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(src.Rate),
		OutputRate: float64(dst.Rate),
		Channels:   dst.Channels,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("audio: create resampler: %w", err)
	}

	in := Samples(pcm)
	input := make([]float64, len(in))
	for i, s := range in {
		input[i] = float64(s) / 32768.0
	}
	output, err := rs.Process(input)
	if err != nil {
		return nil, fmt.Errorf("audio: resample: %w", err)
	}

	out := make([]int16, len(output))
	for i, s := range output {
		switch {
		case s > 1.0:
			out[i] = 32767
		case s < -1.0:
			out[i] = -32768
		default:
			out[i] = int16(s * 32767.0)
		}
	}
	return Bytes(out), nil
}
