// Package volume turns live microphone PCM into a cosmetic loudness signal.
package volume

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// DefaultFFTSize is the analyzer window, in samples.
const DefaultFFTSize = 64

// Byte scaling and smoothing follow the Web Audio AnalyserNode defaults.
const (
	minDecibels           = -100.0
	maxDecibels           = -30.0
	smoothingTimeConstant = 0.8
)

// Analyzer exposes frequency-domain magnitudes of an audio stream.
type Analyzer interface {
	// FrequencyBinCount returns the number of bins, half the FFT size.
	FrequencyBinCount() int
	// ByteFrequencyData fills dst with the current bin magnitudes scaled
	// to 0..255. Extra elements of dst are left untouched.
	ByteFrequencyData(dst []byte)
	// Close detaches the analyzer from its stream.
	Close() error
}

// FFTAnalyzer is an Analyzer over the most recent fftSize PCM samples.
// Write and ByteFrequencyData may be called from different goroutines.
type FFTAnalyzer struct {
	mu       sync.Mutex
	size     int
	ring     []float64
	pos      int
	frame    []float64
	coeffs   []complex128
	smoothed []float64
	fft      *fourier.FFT
	closed   bool
}

// NewFFTAnalyzer creates an analyzer with the given FFT size, which must
// be a power of two between 32 and 32768.
func NewFFTAnalyzer(fftSize int) (*FFTAnalyzer, error) {
	if fftSize < 32 || fftSize > 32768 || fftSize&(fftSize-1) != 0 {
		return nil, fmt.Errorf("invalid fft size %d", fftSize)
	}
	return &FFTAnalyzer{
		size:     fftSize,
		ring:     make([]float64, fftSize),
		frame:    make([]float64, fftSize),
		coeffs:   make([]complex128, fftSize/2+1),
		smoothed: make([]float64, fftSize/2),
		fft:      fourier.NewFFT(fftSize),
	}, nil
}

// Write appends 16-bit little-endian mono PCM. A trailing odd byte is ignored.
func (a *FFTAnalyzer) Write(pcm []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(pcm[i:]))
		a.ring[a.pos] = float64(sample) / 32768
		a.pos = (a.pos + 1) % a.size
	}
}

// FrequencyBinCount implements Analyzer.
func (a *FFTAnalyzer) FrequencyBinCount() int {
	return a.size / 2
}

// ByteFrequencyData implements Analyzer.
func (a *FFTAnalyzer) ByteFrequencyData(dst []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.frame {
		a.frame[i] = a.ring[(a.pos+i)%a.size]
	}
	window.Blackman(a.frame)
	a.coeffs = a.fft.Coefficients(a.coeffs, a.frame)

	n := len(a.smoothed)
	if len(dst) < n {
		n = len(dst)
	}
	for k := range a.smoothed {
		magnitude := cmplx.Abs(a.coeffs[k]) / float64(a.size)
		a.smoothed[k] = smoothingTimeConstant*a.smoothed[k] + (1-smoothingTimeConstant)*magnitude
		if k < n {
			dst[k] = toByte(a.smoothed[k])
		}
	}
}

// Close implements Analyzer. Writes after Close are dropped.
func (a *FFTAnalyzer) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

func toByte(magnitude float64) byte {
	if magnitude <= 0 {
		return 0
	}
	db := 20 * math.Log10(magnitude)
	scaled := 255 * (db - minDecibels) / (maxDecibels - minDecibels)
	switch {
	case scaled <= 0:
		return 0
	case scaled >= 255:
		return 255
	default:
		return byte(scaled)
	}
}
