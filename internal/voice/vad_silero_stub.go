//go:build !cgo

package voice

import "errors"

// SileroVAD requires ONNX Runtime, which is unavailable without cgo.
type SileroVAD struct{}

// NewSileroVAD always fails on cgo-less builds. Callers fall back to
// RMSVAD or run without a detector.
func NewSileroVAD(modelPath string) (*SileroVAD, error) {
	return nil, errors.New("silero VAD requires a cgo build")
}

func (v *SileroVAD) IsSpeech(pcm []int16) bool { return false }

func (v *SileroVAD) Reset() {}

func (v *SileroVAD) Close() {}
