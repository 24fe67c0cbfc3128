package agent

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/aipsych-founder/AIPsych/internal/logging"
	"github.com/aipsych-founder/AIPsych/internal/voice"
)

// listenLoop reads audio frames, applies noise gate + VAD, accumulates
// speech, and transcribes when silence is detected. Without a detector
// the noise gate alone segments utterances.
func (s *AgentSession) listenLoop(ctx context.Context) {
	var speechBuf []int16
	var inSpeech bool
	silenceFrames := 0
	const maxSilenceFrames = 25 // ~500ms at 20ms frames

	for {
		select {
		case <-ctx.Done():
			return
		case pcm, ok := <-s.room.AudioFrames():
			if !ok {
				return
			}

			filtered := s.gate.Filter(pcm)

			speech := false
			if filtered != nil {
				if s.vad != nil {
					speech = s.vad.IsSpeech(filtered)
				} else {
					// Degraded mode: any frame above the noise floor counts.
					speech = true
				}
			}

			// Barge-in: user speech while we're outputting audio.
			if speech && s.speaking.Load() {
				s.interrupt()
			}

			if speech {
				if !inSpeech {
					inSpeech = true
					speechBuf = speechBuf[:0]
				}
				speechBuf = append(speechBuf, filtered...)
				silenceFrames = 0
			} else if inSpeech {
				// Keep a few trailing frames for natural endings.
				speechBuf = append(speechBuf, pcm...)
				silenceFrames++

				if silenceFrames >= maxSilenceFrames {
					inSpeech = false
					if len(speechBuf) > s.sampleRate/2 { // at least 0.5s
						s.transcribe(ctx, speechBuf)
					}
					speechBuf = speechBuf[:0]
					silenceFrames = 0
				}
			}
		}
	}
}

// transcribe runs the accumulated utterance through the STT provider
// and forwards the text to the response pipeline.
func (s *AgentSession) transcribe(ctx context.Context, pcm []int16) {
	text, err := s.stt.Transcribe(ctx, voice.PCMToFloat32(pcm))
	if err != nil {
		logging.Errorf("[session] transcription failed: %v", err)
		return
	}

	text = strings.TrimSpace(text)
	if text == "" || text == "[BLANK_AUDIO]" || text == "(silence)" {
		return
	}
	logging.Debugf("[session] transcript: %s", text)

	select {
	case s.textCh <- text:
	case <-ctx.Done():
	}
}

// respondLoop takes transcribed text, runs it through the language
// model with the agent's instructions, and splits the streamed reply
// into sentences for the speech pipeline.
func (s *AgentSession) respondLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text, ok := <-s.textCh:
			if !ok {
				return
			}

			events, err := s.llm.Stream(ctx, &voice.ChatRequest{
				System:   s.instructions,
				Messages: s.conversation(text),
			})
			if err != nil {
				logging.Errorf("[session] language model request failed: %v", err)
				continue
			}

			reply := s.streamToSentences(ctx, events)
			if reply != "" {
				s.appendExchange(text, reply)
			}
		}
	}
}

// streamToSentences reads text chunks from the model stream, forwards
// sentence-sized pieces to the speech pipeline as they complete, and
// returns the full reply. Clause boundaries flush early once the buffer
// is long enough, for lower first-audio latency.
func (s *AgentSession) streamToSentences(ctx context.Context, events <-chan voice.StreamEvent) string {
	var full strings.Builder
	var buf strings.Builder

	for {
		select {
		case <-ctx.Done():
			return full.String()
		case ev, ok := <-events:
			if !ok {
				if remaining := strings.TrimSpace(buf.String()); remaining != "" {
					s.queueSpeech(ctx, remaining)
				}
				return full.String()
			}

			switch ev.Type {
			case voice.EventTypeText:
				full.WriteString(ev.Text)
				buf.WriteString(ev.Text)

				text := buf.String()
				flushed := false
				for {
					idx := findSentenceEnd(text)
					if idx < 0 {
						break
					}
					if sentence := strings.TrimSpace(text[:idx+1]); sentence != "" {
						s.queueSpeech(ctx, sentence)
						flushed = true
					}
					text = text[idx+1:]
				}
				buf.Reset()
				buf.WriteString(text)

				if !flushed {
					if idx := findClauseEnd(text); idx >= 0 && len(strings.TrimSpace(text[:idx+1])) > 20 {
						if clause := strings.TrimSpace(text[:idx+1]); clause != "" {
							s.queueSpeech(ctx, clause)
							buf.Reset()
							buf.WriteString(text[idx+1:])
						}
					}
				}

			case voice.EventTypeError:
				logging.Errorf("[session] model stream error: %v", ev.Error)
				if remaining := strings.TrimSpace(buf.String()); remaining != "" {
					s.queueSpeech(ctx, remaining)
				}
				return full.String()

			case voice.EventTypeDone:
				if remaining := strings.TrimSpace(buf.String()); remaining != "" {
					s.queueSpeech(ctx, remaining)
				}
				return full.String()
			}
		}
	}
}

// queueSpeech hands a sentence to the speech pipeline.
func (s *AgentSession) queueSpeech(ctx context.Context, text string) {
	select {
	case s.ttsCh <- text:
	case <-ctx.Done():
	}
}

// speakLoop synthesizes queued sentences and publishes paced 20ms PCM
// frames into the room.
func (s *AgentSession) speakLoop(ctx context.Context) {
	frameSize := s.sampleRate * 2 * 20 / 1000 // bytes per 20ms frame

	for {
		select {
		case <-ctx.Done():
			return
		case sentence, ok := <-s.ttsCh:
			if !ok {
				return
			}

			s.speaking.Store(true)

			audio, err := s.tts.Synthesize(ctx, sentence)
			if err != nil {
				logging.Errorf("[session] speech synthesis failed: %v", err)
				s.speaking.Store(false)
				continue
			}

			for i := 0; i < len(audio); i += frameSize {
				if s.interrupted.Load() {
					s.interrupted.Store(false)
					break
				}

				end := i + frameSize
				if end > len(audio) {
					end = len(audio)
				}
				if err := s.room.PublishAudio(ctx, audio[i:end]); err != nil {
					logging.Errorf("[session] publish failed: %v", err)
					break
				}

				// Pace output to roughly real-time playback.
				select {
				case <-time.After(18 * time.Millisecond):
				case <-ctx.Done():
					return
				}
			}

			if len(s.ttsCh) == 0 {
				s.speaking.Store(false)
			}
		}
	}
}

// interrupt handles user speech during playback: pending sentences are
// dropped and the current synthesis stops at the next frame.
func (s *AgentSession) interrupt() {
	for {
		select {
		case <-s.ttsCh:
		default:
			s.interrupted.Store(true)
			s.speaking.Store(false)
			if s.vad != nil {
				s.vad.Reset()
			}
			return
		}
	}
}

// findSentenceEnd returns the index of the last character of the first
// sentence, or -1 if no sentence boundary is found.
func findSentenceEnd(text string) int {
	for i, r := range text {
		if (r == '.' || r == '!' || r == '?') && i > 0 {
			// Check it's not an abbreviation (e.g., "Dr.")
			if i+1 < len(text) {
				next := rune(text[i+1])
				if unicode.IsSpace(next) || unicode.IsUpper(next) {
					return i
				}
			} else {
				return i
			}
		}
	}
	return -1
}

// findClauseEnd returns the index of a clause boundary in the text, or -1.
// Clause boundaries: ", " / "; " / ": "
func findClauseEnd(text string) int {
	for i := 0; i < len(text)-1; i++ {
		ch := text[i]
		if (ch == ',' || ch == ';' || ch == ':') && text[i+1] == ' ' {
			return i
		}
	}
	return -1
}
