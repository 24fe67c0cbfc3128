package agent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/aipsych-founder/AIPsych/internal/logging"
	"github.com/aipsych-founder/AIPsych/internal/media"
	"github.com/aipsych-founder/AIPsych/internal/voice"
)

// AgentSession wires a connected room to the capability providers and
// runs the listen -> respond -> speak pipeline. One session per worker
// invocation; the supervisor owns it exclusively.
type AgentSession struct {
	room media.Room
	stt  voice.STT
	llm  voice.LLM
	tts  voice.TTS
	vad  voice.VAD // nil when the detector failed to load
	gate *voice.NoiseGate

	sampleRate   int
	instructions string

	// Pipeline channels
	textCh chan string // listenLoop -> respondLoop: transcribed utterances
	ttsCh  chan string // respondLoop -> speakLoop: sentences to speak

	historyMu sync.Mutex
	history   []voice.Message

	speaking    atomic.Bool
	interrupted atomic.Bool

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped sync.Once
}

// NewAgentSession builds a session from a connected room and its
// providers. The detector may be nil; segmentation then falls back to
// the noise gate alone.
func NewAgentSession(room media.Room, stt voice.STT, llm voice.LLM, tts voice.TTS, vad voice.VAD, sampleRate int) *AgentSession {
	if sampleRate == 0 {
		sampleRate = 16000
	}
	return &AgentSession{
		room:       room,
		stt:        stt,
		llm:        llm,
		tts:        tts,
		vad:        vad,
		gate:       voice.NewNoiseGate(),
		sampleRate: sampleRate,
		textCh:     make(chan string, 10),
		ttsCh:      make(chan string, 20),
	}
}

// Detector returns the session's voice activity detector, nil when the
// session runs without one.
func (s *AgentSession) Detector() voice.VAD {
	return s.vad
}

// Room returns the session's room.
func (s *AgentSession) Room() media.Room {
	return s.room
}

// Start launches the pipeline goroutines. Providers are not invoked
// before Start returns; returns an error on a nil room or double start.
func (s *AgentSession) Start(ctx context.Context, a *Agent) error {
	if s.room == nil {
		return errors.New("session has no room")
	}
	if s.stt == nil || s.llm == nil || s.tts == nil {
		return errors.New("session is missing a required provider")
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("session already started")
	}
	s.started = true
	s.instructions = a.Instructions()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(3)
	go func() { defer s.wg.Done(); s.listenLoop(ctx) }()
	go func() { defer s.wg.Done(); s.respondLoop(ctx) }()
	go func() { defer s.wg.Done(); s.speakLoop(ctx) }()
	return nil
}

// Stop tears the session down synchronously: it cancels the pipeline,
// closes the room, and waits for every loop to exit before returning.
// Safe to call more than once and safe to call on a never-started
// session.
func (s *AgentSession) Stop() {
	s.stopped.Do(func() {
		s.mu.Lock()
		cancel := s.cancel
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		s.room.Close()
		s.wg.Wait()
		logging.Infof("agent session stopped")
	})
}

// appendExchange records one user/assistant turn for conversational
// context on later turns.
func (s *AgentSession) appendExchange(user, assistant string) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	s.history = append(s.history,
		voice.Message{Role: "user", Content: user},
		voice.Message{Role: "assistant", Content: assistant},
	)
}

// conversation returns the history plus the new user turn.
func (s *AgentSession) conversation(user string) []voice.Message {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	msgs := make([]voice.Message, len(s.history), len(s.history)+1)
	copy(msgs, s.history)
	return append(msgs, voice.Message{Role: "user", Content: user})
}
