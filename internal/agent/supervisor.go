package agent

import (
	"context"
	"sync"

	"github.com/aipsych-founder/AIPsych/internal/config"
	"github.com/aipsych-founder/AIPsych/internal/logging"
	"github.com/aipsych-founder/AIPsych/internal/media"
	"github.com/aipsych-founder/AIPsych/internal/voice"
)

// State is the supervisor lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateActive
	StateDraining
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Job is the slice of the worker runtime the supervisor consumes: a
// room to connect to and nothing more. Cancellation arrives through the
// context passed to Run.
type Job interface {
	Connect(ctx context.Context, mode media.SubscribeMode) error
	Room() media.Room
}

// Providers constructs the session's capability providers. Each backend
// is independently replaceable; tests substitute fakes.
type Providers struct {
	STT func() (voice.STT, error)
	LLM func() (voice.LLM, error)
	TTS func() (voice.TTS, error)
	VAD func() (voice.VAD, error)
}

// DefaultProviders wires the configured production backends.
func DefaultProviders(cfg *config.Config) Providers {
	return Providers{
		STT: func() (voice.STT, error) {
			return voice.NewWhisperSTT(cfg.OpenAIKey, cfg.SampleRate)
		},
		LLM: func() (voice.LLM, error) {
			return voice.NewLLM(voice.LLMOptions{
				Provider:      cfg.LLMProvider,
				Model:         cfg.LLMModel,
				OpenAIKey:     cfg.OpenAIKey,
				AnthropicKey:  cfg.AnthropicKey,
				OllamaBaseURL: cfg.OllamaBaseURL,
			})
		},
		TTS: func() (voice.TTS, error) {
			return voice.NewTTS(voice.TTSOptions{
				Provider:      cfg.TTSProvider,
				Voice:         cfg.TTSVoice,
				OpenAIKey:     cfg.OpenAIKey,
				ElevenLabsKey: cfg.ElevenLabsKey,
			})
		},
		VAD: func() (voice.VAD, error) {
			return voice.NewSileroVAD(cfg.VADModelPath)
		},
	}
}

// Supervisor owns one conversational session for its lifetime:
// Idle -> Connecting -> Active -> Draining -> Terminated.
type Supervisor struct {
	Providers Providers

	cfg     *config.Config
	mu      sync.RWMutex
	state   State
	session *AgentSession
}

// NewSupervisor creates a supervisor with the production providers.
func NewSupervisor(cfg *config.Config) *Supervisor {
	return &Supervisor{
		Providers: DefaultProviders(cfg),
		cfg:       cfg,
		state:     StateIdle,
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	logging.Debugf("supervisor state: %s", state)
}

// Session returns the active session, or nil outside Active/Draining.
func (s *Supervisor) Session() *AgentSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Run connects to the job's room, builds the session, and holds it open
// until ctx is cancelled. The session stop runs synchronously before
// Run returns, whichever phase cancellation lands in; no resources are
// left held on any path.
func (s *Supervisor) Run(ctx context.Context, job Job) error {
	s.setState(StateConnecting)

	// Audio-only: the agent never needs video streams.
	if err := job.Connect(ctx, media.SubscribeAudioOnly); err != nil {
		s.setState(StateTerminated)
		return &ConnectionError{Err: err}
	}
	room := job.Room()

	// Until the session owns the room, error paths must release it.
	started := false
	defer func() {
		if !started {
			room.Close()
			s.setState(StateTerminated)
		}
	}()

	stt, err := s.Providers.STT()
	if err != nil {
		return &ProviderInitError{Provider: "speech-to-text", Err: err}
	}
	llm, err := s.Providers.LLM()
	if err != nil {
		return &ProviderInitError{Provider: "language-model", Err: err}
	}
	tts, err := s.Providers.TTS()
	if err != nil {
		return &ProviderInitError{Provider: "text-to-speech", Err: err}
	}

	// The detector is optional: a load failure downgrades the session
	// to energy-gated segmentation instead of aborting it.
	vad, err := s.Providers.VAD()
	if err != nil {
		logging.Warnf("voice activity detector unavailable, continuing without one: %v", err)
		vad = nil
	}

	session := NewAgentSession(room, stt, llm, tts, vad, s.cfg.SampleRate)
	if err := session.Start(ctx, NewAgent(Instructions)); err != nil {
		return err
	}
	started = true

	s.mu.Lock()
	s.session = session
	s.state = StateActive
	s.mu.Unlock()
	logging.Infof("agent session started in room: %s", room.Name())

	// Park until the runtime cancels us. No polling; the session's own
	// goroutines do the work.
	<-ctx.Done()

	s.setState(StateDraining)
	session.Stop()
	s.setState(StateTerminated)
	return nil
}
