package audiofeature

import (
	"errors"
	"fmt"
	"math"
)

// resampleZeros is the number of sinc zero crossings on each side of the
// interpolation kernel.
const resampleZeros = 16

// Normalize converts integer PCM of the given bit depth to floats in [-1, 1].
// Interleaved channels are averaged into one.
func Normalize(samples []int, bitDepth, channels int) []float32 {
	if channels < 1 {
		channels = 1
	}
	scale := float64(int64(1) << (bitDepth - 1))
	out := make([]float32, len(samples)/channels)
	for i := range out {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += float64(samples[i*channels+c])
		}
		v := sum / float64(channels) / scale
		out[i] = float32(math.Max(-1, math.Min(1, v)))
	}
	return out
}

// Resample converts x from one sample rate to another with a Hann-windowed
// sinc kernel. The output holds floor(len(x) * to / from) samples.
func Resample(x []float32, from, to int) []float32 {
	if from == to || len(x) == 0 || from <= 0 || to <= 0 {
		return append([]float32(nil), x...)
	}
	ratio := float64(to) / float64(from)
	// Lower the cutoff when downsampling so the output does not alias.
	cutoff := math.Min(1, ratio)
	half := resampleZeros / cutoff

	out := make([]float32, len(x)*to/from)
	for i := range out {
		t := float64(i) * float64(from) / float64(to)
		lo := max(0, int(math.Ceil(t-half)))
		hi := min(len(x)-1, int(math.Floor(t+half)))
		sum := 0.0
		for j := lo; j <= hi; j++ {
			d := t - float64(j)
			w := 0.5 * (1 + math.Cos(math.Pi*d/half))
			sum += float64(x[j]) * cutoff * sinc(cutoff*d) * w
		}
		out[i] = float32(sum)
	}
	return out
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}

// PadToMinimum zero-pads x at the end to n samples. Longer input is
// returned unchanged.
func PadToMinimum(x []float32, n int) []float32 {
	if len(x) >= n {
		return x
	}
	out := make([]float32, n)
	copy(out, x)
	return out
}

// MeanPool averages per-frame vectors into one.
func MeanPool(frames [][]float32) ([]float32, error) {
	if len(frames) == 0 {
		return nil, errors.New("no frames to pool")
	}
	dim := len(frames[0])
	if dim == 0 {
		return nil, errors.New("empty frame vector")
	}
	sum := make([]float64, dim)
	for i, f := range frames {
		if len(f) != dim {
			return nil, fmt.Errorf("frame %d has dimension %d, want %d", i, len(f), dim)
		}
		for j, v := range f {
			sum[j] += float64(v)
		}
	}
	out := make([]float32, dim)
	for j, v := range sum {
		out[j] = float32(v / float64(len(frames)))
	}
	return out, nil
}
