package voice

import (
	"encoding/binary"
	"math"
)

// VAD detects whether a chunk of PCM audio contains speech.
type VAD interface {
	// IsSpeech returns true if the given 16-bit PCM chunk contains speech.
	IsSpeech(pcm []int16) bool
	// Reset clears internal state (call between utterances).
	Reset()
}

// NoiseGate filters out ambient noise using a calibrated RMS threshold.
// Frames below the gate are dropped.
type NoiseGate struct {
	threshold   float64
	calibrated  bool
	calibFrames int
	calibSum    float64
}

// NewNoiseGate creates a NoiseGate that auto-calibrates from the first few frames.
func NewNoiseGate() *NoiseGate {
	return &NoiseGate{}
}

// Filter returns the PCM data if it exceeds the noise floor, or nil if gated.
// The first ~20 frames are used for calibration (assumes initial silence).
func (g *NoiseGate) Filter(pcm []int16) []int16 {
	level := rms(pcm)

	if !g.calibrated {
		g.calibFrames++
		g.calibSum += level
		if g.calibFrames >= 20 {
			avg := g.calibSum / float64(g.calibFrames)
			g.threshold = avg * 2.5 // 2.5x the ambient floor
			if g.threshold < 0.005 {
				g.threshold = 0.005
			}
			g.calibrated = true
		}
		return nil // suppress during calibration
	}

	if level < g.threshold {
		return nil
	}
	return pcm
}

// RMSVAD is a pure-Go voice activity detector based on RMS energy levels.
// Uses hysteresis to avoid flickering between speech and silence states.
type RMSVAD struct {
	speechThreshold  float64 // RMS level to start speech
	silenceThreshold float64 // RMS level to end speech
	speechFrames     int     // consecutive speech frames needed to trigger
	silenceFrames    int     // consecutive silence frames needed to end
	inSpeech         bool
	speechCount      int
	silenceCount     int
}

// NewRMSVAD returns an RMSVAD tuned for 16kHz 20ms frames. It needs no
// model files and serves as the fallback detector.
func NewRMSVAD() *RMSVAD {
	return &RMSVAD{
		speechThreshold:  0.015,
		silenceThreshold: 0.008,
		speechFrames:     3,  // 3 frames (~60ms) to start
		silenceFrames:    30, // 30 frames (~600ms) to end
	}
}

// IsSpeech returns true if the PCM chunk is considered speech.
func (v *RMSVAD) IsSpeech(pcm []int16) bool {
	level := rms(pcm)

	if v.inSpeech {
		if level < v.silenceThreshold {
			v.silenceCount++
			v.speechCount = 0
			if v.silenceCount >= v.silenceFrames {
				v.inSpeech = false
				v.silenceCount = 0
			}
		} else {
			v.silenceCount = 0
		}
	} else {
		if level >= v.speechThreshold {
			v.speechCount++
			v.silenceCount = 0
			if v.speechCount >= v.speechFrames {
				v.inSpeech = true
				v.speechCount = 0
			}
		} else {
			v.speechCount = 0
		}
	}

	return v.inSpeech
}

// Reset clears internal state.
func (v *RMSVAD) Reset() {
	v.inSpeech = false
	v.speechCount = 0
	v.silenceCount = 0
}

// rms computes the root-mean-square of 16-bit PCM samples, normalized to [0, 1].
func rms(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sum float64
	for _, s := range pcm {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(pcm)))
}

// DecodePCM converts raw Int16LE bytes to an int16 slice.
func DecodePCM(raw []byte) []int16 {
	n := len(raw) / 2
	pcm := make([]int16, n)
	for i := 0; i < n; i++ {
		pcm[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return pcm
}

// EncodePCM converts int16 samples to raw Int16LE bytes.
func EncodePCM(pcm []int16) []byte {
	out := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// PCMToFloat32 converts int16 PCM to float32 samples.
func PCMToFloat32(pcm []int16) []float32 {
	out := make([]float32, len(pcm))
	for i, s := range pcm {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// Float32ToPCM converts float32 samples to int16 PCM bytes (little-endian).
func Float32ToPCM(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		val := int16(s * 32767)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(val))
	}
	return out
}
