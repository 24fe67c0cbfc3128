package voice

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestNewWhisperSTTRequiresKey(t *testing.T) {
	if _, err := NewWhisperSTT("", 16000); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestWriteWavHeader(t *testing.T) {
	pcm := make([]int16, 160)
	var buf bytes.Buffer
	if err := writeWav(&buf, pcm, 16000); err != nil {
		t.Fatalf("writeWav failed: %v", err)
	}

	data := buf.Bytes()
	if string(data[0:4]) != "RIFF" {
		t.Fatal("missing RIFF magic")
	}
	if string(data[8:12]) != "WAVE" {
		t.Fatal("missing WAVE magic")
	}
	if string(data[12:16]) != "fmt " {
		t.Fatal("missing fmt chunk")
	}

	rate := binary.LittleEndian.Uint32(data[24:28])
	if rate != 16000 {
		t.Fatalf("got sample rate %d, want 16000", rate)
	}
	channels := binary.LittleEndian.Uint16(data[22:24])
	if channels != 1 {
		t.Fatalf("got %d channels, want mono", channels)
	}

	dataSize := binary.LittleEndian.Uint32(data[40:44])
	if dataSize != uint32(len(pcm)*2) {
		t.Fatalf("got data size %d, want %d", dataSize, len(pcm)*2)
	}
	if len(data) != 44+len(pcm)*2 {
		t.Fatalf("got file size %d, want %d", len(data), 44+len(pcm)*2)
	}
}

func TestNewLLMSelector(t *testing.T) {
	cases := []struct {
		name    string
		opts    LLMOptions
		wantErr bool
	}{
		{"default openai", LLMOptions{OpenAIKey: "sk-test"}, false},
		{"openai without key", LLMOptions{Provider: "openai"}, true},
		{"anthropic", LLMOptions{Provider: "anthropic", AnthropicKey: "sk-ant"}, false},
		{"anthropic without key", LLMOptions{Provider: "anthropic"}, true},
		{"ollama needs no key", LLMOptions{Provider: "ollama"}, false},
		{"unknown provider", LLMOptions{Provider: "bard"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			llm, err := NewLLM(tc.opts)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if llm.ID() == "" {
				t.Fatal("provider has no id")
			}
		})
	}
}

func TestNewTTSSelector(t *testing.T) {
	if _, err := NewTTS(TTSOptions{Provider: "openai", OpenAIKey: "sk-test"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewTTS(TTSOptions{Provider: "openai"}); err == nil {
		t.Fatal("expected error for missing OpenAI key")
	}
	if _, err := NewTTS(TTSOptions{Provider: "elevenlabs", ElevenLabsKey: "xi-test"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewTTS(TTSOptions{Provider: "espeak"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
