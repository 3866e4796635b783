// internal/cw/morse.go
// Package cw decodes keyed tone events back into text so the operator can
// see what was sent.
package cw

import (
	"errors"
	"sync"
	"time"

	"github.com/ColonelBlimp/cwkeyer/internal/keyer"
)

// Default decision thresholds, in dit units
const (
	// DahDitThreshold is the default boundary between dit and dah (midpoint of 1 and 3)
	DahDitThreshold = 2.0
	// InterCharThreshold is the default silence that ends a character.
	// The keyer's own element gap is one dit plus at most one poll tick.
	InterCharThreshold = 2.0
	// CharWordThreshold is the default boundary between character and word space (midpoint of 3 and 7)
	CharWordThreshold = 5.0
)

var (
	// ErrTimingRequired indicates a timing source is required
	ErrTimingRequired = errors.New("timing source is required")
	// ErrInvalidDitDahBoundary indicates boundary ratio must be positive
	ErrInvalidDitDahBoundary = errors.New("dit/dah boundary ratio must be positive")
	// ErrInvalidInterCharBoundary indicates boundary ratio must be greater than one dit
	ErrInvalidInterCharBoundary = errors.New("inter-character boundary ratio must be greater than 1.0")
	// ErrInvalidCharWordBoundary indicates the word boundary must exceed the character boundary
	ErrInvalidCharWordBoundary = errors.New("char/word boundary ratio must exceed inter-character boundary")
)

// treeSize holds up to six elements per character.
const treeSize = 128

// MorseTree is the binary tree for Morse code lookup.
// Left branch = dit, Right branch = dah. Index 1 is the root;
// parent at i, left child at 2i, right child at 2i+1.
var MorseTree [treeSize]rune

// codes is the character set the monitor recognises.
var codes = map[rune]string{
	'A': ".-", 'B': "-...", 'C': "-.-.", 'D': "-..", 'E': ".", 'F': "..-.",
	'G': "--.", 'H': "....", 'I': "..", 'J': ".---", 'K': "-.-", 'L': ".-..",
	'M': "--", 'N': "-.", 'O': "---", 'P': ".--.", 'Q': "--.-", 'R': ".-.",
	'S': "...", 'T': "-", 'U': "..-", 'V': "...-", 'W': ".--", 'X': "-..-",
	'Y': "-.--", 'Z': "--..",
	'0': "-----", '1': ".----", '2': "..---", '3': "...--", '4': "....-",
	'5': ".....", '6': "-....", '7': "--...", '8': "---..", '9': "----.",
	'/': "-..-.", '=': "-...-", '+': ".-.-.", '?': "..--..", '.': ".-.-.-",
	',': "--..--",
}

func init() {
	for r, code := range codes {
		MorseTree[treeIndex(code)] = r
	}
}

// treeIndex walks the tree for a dit/dah string.
func treeIndex(code string) int {
	i := 1
	for _, c := range code {
		i *= 2
		if c == '-' {
			i++
		}
	}
	return i
}

// TimingSource reports the keyer's current element timing.
type TimingSource interface {
	Timing() keyer.Timing
}

// DecoderConfig holds the decision thresholds, in dit units.
type DecoderConfig struct {
	// DitDahBoundary: a tone longer than dit*DitDahBoundary is a dah
	DitDahBoundary float64
	// InterCharBoundary: silence longer than dit*InterCharBoundary ends a character
	InterCharBoundary float64
	// CharWordBoundary: silence longer than dit*CharWordBoundary ends a word
	CharWordBoundary float64
}

// DefaultDecoderConfig returns the standard thresholds.
func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{
		DitDahBoundary:    DahDitThreshold,
		InterCharBoundary: InterCharThreshold,
		CharWordBoundary:  CharWordThreshold,
	}
}

// DecodedCallback is called when a character or word boundary is decoded.
// Must be non-blocking and fast: it runs on the keyer loop.
type DecodedCallback func(output DecodedOutput)

// DecodedOutput represents decoded CW output
type DecodedOutput struct {
	// Character is the decoded character (' ' for a word space)
	Character rune
	// IsWordSpace is true if this represents a word boundary
	IsWordSpace bool
	// Timestamp is when this was decoded
	Timestamp time.Time
	// CurrentWPM is the keyer speed at time of decode
	CurrentWPM int
}

// Decoder turns keyer tone events into characters and words.
// It implements keyer.Monitor.
type Decoder struct {
	config DecoderConfig
	timing TimingSource
	mu     sync.Mutex

	// Current character being built
	treeIndex int  // Position in MorseTree (1 = start)
	inChar    bool // Whether we're currently building a character

	toneOn      bool
	lastToneOff time.Time
	wordPending bool // a character was emitted and the word gap has not yet been judged

	unknown int

	callbackPtr *DecodedCallback
}

var _ keyer.Monitor = (*Decoder)(nil)

// NewDecoder creates a decoder reading dit duration from timing.
func NewDecoder(cfg DecoderConfig, timing TimingSource) (*Decoder, error) {
	if timing == nil {
		return nil, ErrTimingRequired
	}
	if cfg.DitDahBoundary <= 0 {
		return nil, ErrInvalidDitDahBoundary
	}
	if cfg.InterCharBoundary <= 1 {
		return nil, ErrInvalidInterCharBoundary
	}
	if cfg.CharWordBoundary <= cfg.InterCharBoundary {
		return nil, ErrInvalidCharWordBoundary
	}

	return &Decoder{
		config:    cfg,
		timing:    timing,
		treeIndex: 1,
	}, nil
}

// SetCallback sets the callback for decoded output.
func (d *Decoder) SetCallback(cb DecodedCallback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cb == nil {
		d.callbackPtr = nil
	} else {
		d.callbackPtr = &cb
	}
}

// HandleToneEvent processes a tone change from the keyer.
func (d *Decoder) HandleToneEvent(event keyer.ToneEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if event.ToneOn {
		d.handleToneStart(event)
	} else {
		d.handleToneEnd(event)
	}
}

// Poll emits characters and word spaces once the silence after the last
// element is long enough. Without it the final character would wait for the
// next tone.
func (d *Decoder) Poll(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.toneOn || d.lastToneOff.IsZero() {
		return
	}
	d.judgeSilence(now.Sub(d.lastToneOff), now)
}

// handleToneStart closes out the preceding silence.
func (d *Decoder) handleToneStart(event keyer.ToneEvent) {
	if !d.lastToneOff.IsZero() {
		d.judgeSilence(event.Timestamp.Sub(d.lastToneOff), event.Timestamp)
	}
	d.wordPending = false
	d.toneOn = true
}

// judgeSilence applies the character and word boundaries to a gap.
func (d *Decoder) judgeSilence(gap time.Duration, at time.Time) {
	dit := d.timing.Timing().Dit

	if d.inChar && gap > scale(dit, d.config.InterCharBoundary) {
		d.emitCharacter(at)
		d.wordPending = true
	}
	if d.wordPending && gap > scale(dit, d.config.CharWordBoundary) {
		d.emitWordSpace(at)
		d.wordPending = false
	}
}

// handleToneEnd classifies the tone as dit or dah and walks the tree.
func (d *Decoder) handleToneEnd(event keyer.ToneEvent) {
	d.toneOn = false
	d.lastToneOff = event.Timestamp

	isDah := event.Duration > scale(d.timing.Timing().Dit, d.config.DitDahBoundary)

	if !d.inChar {
		d.treeIndex = 1
		d.inChar = true
	}
	if isDah {
		d.treeIndex = d.treeIndex*2 + 1
	} else {
		d.treeIndex = d.treeIndex * 2
	}

	// Too many elements for any known character
	if d.treeIndex >= len(MorseTree) {
		d.unknown++
		d.treeIndex = 1
		d.inChar = false
	}
}

// emitCharacter outputs the current character being built.
func (d *Decoder) emitCharacter(timestamp time.Time) {
	char := MorseTree[d.treeIndex]
	if char == 0 {
		d.unknown++
	} else if d.callbackPtr != nil {
		(*d.callbackPtr)(DecodedOutput{
			Character:  char,
			Timestamp:  timestamp,
			CurrentWPM: d.timing.Timing().WPM,
		})
	}

	d.treeIndex = 1
	d.inChar = false
}

// emitWordSpace outputs a word space marker.
func (d *Decoder) emitWordSpace(timestamp time.Time) {
	if d.callbackPtr != nil {
		(*d.callbackPtr)(DecodedOutput{
			Character:   ' ',
			IsWordSpace: true,
			Timestamp:   timestamp,
			CurrentWPM:  d.timing.Timing().WPM,
		})
	}
}

// Unknown returns how many element sequences did not match a character.
func (d *Decoder) Unknown() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.unknown
}

// Reset clears any partially decoded character.
func (d *Decoder) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.treeIndex = 1
	d.inChar = false
	d.toneOn = false
	d.lastToneOff = time.Time{}
	d.wordPending = false
}

func scale(d time.Duration, ratio float64) time.Duration {
	return time.Duration(float64(d) * ratio)
}
