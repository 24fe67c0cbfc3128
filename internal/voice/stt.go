package voice

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// STT converts an utterance of PCM audio into text. Any backend
// implementing this can be swapped in.
type STT interface {
	Transcribe(ctx context.Context, pcm []float32) (string, error)
}

// WhisperSTT transcribes audio via the OpenAI transcription endpoint.
type WhisperSTT struct {
	apiKey     string
	model      string
	sampleRate int
	client     *http.Client
}

// NewWhisperSTT creates a WhisperSTT provider. A missing API key is a
// construction failure; the supervisor treats it as fatal.
func NewWhisperSTT(apiKey string, sampleRate int) (*WhisperSTT, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY not set")
	}
	if sampleRate == 0 {
		sampleRate = 16000
	}
	return &WhisperSTT{
		apiKey:     apiKey,
		model:      "whisper-1",
		sampleRate: sampleRate,
		client:     &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Transcribe sends the utterance as a WAV attachment and returns the
// recognized text.
func (s *WhisperSTT) Transcribe(ctx context.Context, pcm []float32) (string, error) {
	if len(pcm) == 0 {
		return "", nil
	}

	// Convert float32 to int16
	int16Pcm := make([]int16, len(pcm))
	for i, v := range pcm {
		if v > 1.0 {
			v = 1.0
		} else if v < -1.0 {
			v = -1.0
		}
		int16Pcm[i] = int16(v * 32767)
	}

	var wav bytes.Buffer
	if err := writeWav(&wav, int16Pcm, s.sampleRate); err != nil {
		return "", fmt.Errorf("failed to encode WAV: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(wav.Bytes()); err != nil {
		return "", err
	}
	if err := writer.WriteField("model", s.model); err != nil {
		return "", err
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://api.openai.com/v1/audio/transcriptions", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription API error (%d): %s", resp.StatusCode, string(body))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode transcription response: %w", err)
	}
	return strings.TrimSpace(result.Text), nil
}

// writeWav writes mono 16-bit PCM data as a WAV stream.
func writeWav(w io.Writer, pcm []int16, sampleRate int) error {
	dataSize := uint32(len(pcm) * 2)
	fileSize := 36 + dataSize

	// RIFF header
	w.Write([]byte("RIFF"))
	binary.Write(w, binary.LittleEndian, fileSize)
	w.Write([]byte("WAVE"))

	// fmt chunk
	w.Write([]byte("fmt "))
	binary.Write(w, binary.LittleEndian, uint32(16))             // chunk size
	binary.Write(w, binary.LittleEndian, uint16(1))              // PCM format
	binary.Write(w, binary.LittleEndian, uint16(1))              // mono
	binary.Write(w, binary.LittleEndian, uint32(sampleRate))     // sample rate
	binary.Write(w, binary.LittleEndian, uint32(sampleRate*2))   // byte rate
	binary.Write(w, binary.LittleEndian, uint16(2))              // block align
	binary.Write(w, binary.LittleEndian, uint16(16))             // bits per sample

	// data chunk
	w.Write([]byte("data"))
	binary.Write(w, binary.LittleEndian, dataSize)
	return binary.Write(w, binary.LittleEndian, pcm)
}
