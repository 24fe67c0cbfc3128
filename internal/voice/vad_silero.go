//go:build cgo

package voice

import (
	"fmt"
	"os"

	ort "github.com/yalue/onnxruntime_go"
)

// SileroVAD uses the Silero VAD ONNX model for high-accuracy speech
// detection. Expects 30ms chunks (480 samples at 16kHz).
type SileroVAD struct {
	session   *ort.DynamicAdvancedSession
	state     *ort.Tensor[float32] // hidden state [2, 1, 64]
	threshold float32
	inSpeech  bool
}

// NewSileroVAD loads the Silero model from modelPath. Construction may
// fail (missing model, runtime init failure); callers are expected to
// fall back to another detector or run without one.
func NewSileroVAD(modelPath string) (*SileroVAD, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("silero model not found at %s: %w", modelPath, err)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		// Already initialized is fine
		if err.Error() != "the ONNX runtime is already initialized" {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	// Hidden state tensor [2, 1, 64] — zeros
	stateData := make([]float32, 2*1*64)
	state, err := ort.NewTensor(ort.NewShape(2, 1, 64), stateData)
	if err != nil {
		return nil, fmt.Errorf("failed to create state tensor: %w", err)
	}

	inputNames := []string{"input", "state", "sr"}
	outputNames := []string{"output", "stateN"}

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, outputNames, nil)
	if err != nil {
		state.Destroy()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &SileroVAD{
		session:   session,
		state:     state,
		threshold: 0.5,
	}, nil
}

// IsSpeech runs Silero inference on a PCM chunk and returns speech
// probability >= threshold. Inference errors keep the previous state.
func (v *SileroVAD) IsSpeech(pcm []int16) bool {
	input := make([]float32, len(pcm))
	for i, s := range pcm {
		input[i] = float32(s) / 32768.0
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(1, int64(len(input))), input)
	if err != nil {
		return v.inSpeech
	}
	defer inputTensor.Destroy()

	srData := []int64{16000}
	srTensor, err := ort.NewTensor(ort.NewShape(1), srData)
	if err != nil {
		return v.inSpeech
	}
	defer srTensor.Destroy()

	outputData := make([]float32, 1)
	outputTensor, err := ort.NewTensor(ort.NewShape(1, 1), outputData)
	if err != nil {
		return v.inSpeech
	}
	defer outputTensor.Destroy()

	newStateData := make([]float32, 2*1*64)
	newState, err := ort.NewTensor(ort.NewShape(2, 1, 64), newStateData)
	if err != nil {
		return v.inSpeech
	}
	defer newState.Destroy()

	inputs := []ort.Value{inputTensor, v.state, srTensor}
	outputs := []ort.Value{outputTensor, newState}

	if err := v.session.Run(inputs, outputs); err != nil {
		return v.inSpeech
	}

	copy(v.state.GetData(), newState.GetData())

	prob := outputTensor.GetData()[0]
	v.inSpeech = prob >= v.threshold
	return v.inSpeech
}

// Reset clears the hidden state.
func (v *SileroVAD) Reset() {
	v.inSpeech = false
	for i := range v.state.GetData() {
		v.state.GetData()[i] = 0
	}
}

// Close releases the ONNX session and tensors.
func (v *SileroVAD) Close() {
	if v.session != nil {
		v.session.Destroy()
		v.session = nil
	}
	if v.state != nil {
		v.state.Destroy()
		v.state = nil
	}
}
