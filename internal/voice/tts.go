package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

// TTS converts text into 16-bit mono PCM audio at the provider's
// configured sample rate.
type TTS interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	SampleRate() int
}

// TTSOptions selects and configures a concrete speech-synthesis backend.
type TTSOptions struct {
	Provider      string // "openai", "elevenlabs"
	Voice         string
	OpenAIKey     string
	ElevenLabsKey string
}

// NewTTS constructs the configured text-to-speech provider.
func NewTTS(opts TTSOptions) (TTS, error) {
	switch opts.Provider {
	case "", "openai":
		if opts.OpenAIKey == "" {
			return nil, errors.New("OPENAI_API_KEY not set")
		}
		return NewOpenAITTS(opts.OpenAIKey, opts.Voice), nil
	case "elevenlabs":
		if opts.ElevenLabsKey == "" {
			return nil, errors.New("ELEVENLABS_API_KEY not set")
		}
		return NewElevenLabsTTS(opts.ElevenLabsKey, opts.Voice), nil
	default:
		return nil, fmt.Errorf("unknown TTS provider %q", opts.Provider)
	}
}

// OpenAITTS synthesizes speech via the OpenAI speech endpoint. The
// endpoint returns 24kHz PCM, which is resampled to 16kHz for the
// session pipeline.
type OpenAITTS struct {
	apiKey string
	voice  string
	client *http.Client
}

const openaiTTSNativeRate = 24000

// NewOpenAITTS creates an OpenAI TTS provider.
func NewOpenAITTS(apiKey, voice string) *OpenAITTS {
	if voice == "" {
		voice = "alloy"
	}
	return &OpenAITTS{
		apiKey: apiKey,
		voice:  voice,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

// SampleRate returns the PCM rate Synthesize emits.
func (t *OpenAITTS) SampleRate() int { return 16000 }

// Synthesize generates 16kHz 16-bit PCM for the given text.
func (t *OpenAITTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	requestBody := map[string]any{
		"model":           "tts-1",
		"voice":           t.voice,
		"input":           text,
		"response_format": "pcm",
	}

	jsonBody, _ := json.Marshal(requestBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://api.openai.com/v1/audio/speech", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("speech API error (%d): %s", resp.StatusCode, string(body))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// 24kHz native output → 16kHz pipeline rate
	samples := PCMToFloat32(DecodePCM(raw))
	resampled := Resample(samples, openaiTTSNativeRate, t.SampleRate())
	return Float32ToPCM(resampled), nil
}

// Available ElevenLabs voices
var elevenLabsVoices = map[string]string{
	"rachel": "21m00Tcm4TlvDq8ikWAM",
	"domi":   "AZnzlk1XvdvUeBnXmlld",
	"bella":  "EXAVITQu4vr4xnSDxMaL",
	"antoni": "ErXwobaYiN019PkySvjV",
	"elli":   "MF3mGyEYCl7XYWbV9V6O",
	"josh":   "TxGEqnHWrfWFTfGW9XjX",
	"arnold": "VR6AewLTigWG4xSOukaG",
	"adam":   "pNInz6obpgDQGcFmaJgB",
	"sam":    "yoZ06aMxZJJ28mfd3POQ",
}

// ElevenLabsTTS synthesizes speech via the ElevenLabs API, requesting
// PCM at the pipeline rate directly.
type ElevenLabsTTS struct {
	apiKey  string
	voiceID string
	client  *http.Client
}

// NewElevenLabsTTS creates an ElevenLabs TTS provider. The voice may be
// a known voice name or a direct voice ID.
func NewElevenLabsTTS(apiKey, voice string) *ElevenLabsTTS {
	voiceID := elevenLabsVoices["rachel"]
	if voice != "" {
		if id, ok := elevenLabsVoices[strings.ToLower(voice)]; ok {
			voiceID = id
		} else {
			voiceID = voice // assume a direct voice ID
		}
	}
	return &ElevenLabsTTS{
		apiKey:  apiKey,
		voiceID: voiceID,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// SampleRate returns the PCM rate Synthesize emits.
func (t *ElevenLabsTTS) SampleRate() int { return 16000 }

// Synthesize generates 16kHz 16-bit PCM for the given text.
func (t *ElevenLabsTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	requestBody := map[string]any{
		"text":     text,
		"model_id": "eleven_turbo_v2_5",
		"voice_settings": map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.75,
		},
	}

	jsonBody, _ := json.Marshal(requestBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://api.elevenlabs.io/v1/text-to-speech/"+t.voiceID+"?output_format=pcm_16000",
		bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("speech API error (%d): %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

// Resample converts audio from srcRate to dstRate using linear interpolation.
func Resample(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate {
		return samples
	}
	ratio := float64(srcRate) / float64(dstRate)
	outLen := int(math.Ceil(float64(len(samples)) / ratio))
	out := make([]float32, outLen)
	for i := range out {
		srcIdx := float64(i) * ratio
		idx := int(srcIdx)
		frac := float32(srcIdx - float64(idx))
		if idx+1 < len(samples) {
			out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
		} else if idx < len(samples) {
			out[i] = samples[idx]
		}
	}
	return out
}
