// internal/audio/oscillator.go
package audio

import (
	"encoding/binary"
	"math"
	"sync/atomic"
	"unsafe"
)

// Oscillator is the sidetone source. StartTone and StopTone are called from the
// keyer loop; Fill and Read run on the audio thread. Keying is hard on/off.
type Oscillator struct {
	sampleRate float64
	channels   int
	volume     float64

	on       atomic.Bool
	freqBits atomic.Uint64

	// audio thread only
	phase   float64
	scratch []float32
}

// NewOscillator creates a silent oscillator.
func NewOscillator(sampleRate float64, channels int, volume float64) *Oscillator {
	if channels < 1 {
		channels = 1
	}
	return &Oscillator{
		sampleRate: sampleRate,
		channels:   channels,
		volume:     volume,
	}
}

// StartTone starts the oscillation at frequencyHz.
func (o *Oscillator) StartTone(frequencyHz float64) {
	o.freqBits.Store(math.Float64bits(frequencyHz))
	o.on.Store(true)
}

// StopTone silences the oscillation.
func (o *Oscillator) StopTone() {
	o.on.Store(false)
}

// Sounding reports whether the tone is on.
func (o *Oscillator) Sounding() bool {
	return o.on.Load()
}

// Frequency returns the last frequency passed to StartTone.
func (o *Oscillator) Frequency() float64 {
	return math.Float64frombits(o.freqBits.Load())
}

// Fill writes interleaved samples for len(buf)/channels frames.
func (o *Oscillator) Fill(buf []float32) {
	frames := len(buf) / o.channels

	if !o.on.Load() {
		clear(buf)
		o.phase = 0
		return
	}

	step := 2 * math.Pi * o.Frequency() / o.sampleRate
	for i := 0; i < frames; i++ {
		v := float32(o.volume * math.Sin(o.phase))
		for c := 0; c < o.channels; c++ {
			buf[i*o.channels+c] = v
		}
		o.phase += step
		if o.phase >= 2*math.Pi {
			o.phase -= 2 * math.Pi
		}
	}
}

// Read implements io.Reader, producing float32 little-endian frames.
// Only whole frames are written.
func (o *Oscillator) Read(p []byte) (int, error) {
	frameBytes := 4 * o.channels
	n := len(p) / frameBytes * frameBytes
	samples := n / 4

	if cap(o.scratch) < samples {
		o.scratch = make([]float32, samples)
	}
	buf := o.scratch[:samples]
	o.Fill(buf)

	for i, v := range buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(v))
	}
	return n, nil
}

// bytesAsFloat32 reinterprets a device buffer as float32 samples without copying.
// Returns nil if fewer than 4 bytes.
func bytesAsFloat32(data []byte) []float32 {
	if len(data) < 4 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), len(data)/4)
}
