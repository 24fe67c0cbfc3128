package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aipsych-founder/AIPsych/internal/config"
	"github.com/aipsych-founder/AIPsych/internal/logging"
	"github.com/aipsych-founder/AIPsych/internal/media"
	"github.com/aipsych-founder/AIPsych/internal/voice"
)

func init() {
	logging.Disable()
}

// fakeRoom is an in-memory Room for supervisor and session tests.
type fakeRoom struct {
	name   string
	frames chan []int16

	mu        sync.Mutex
	closed    int
	published [][]byte
}

func newFakeRoom() *fakeRoom {
	return &fakeRoom{name: "test-room", frames: make(chan []int16, 64)}
}

func (r *fakeRoom) Name() string { return r.name }

func (r *fakeRoom) AudioFrames() <-chan []int16 { return r.frames }

func (r *fakeRoom) PublishAudio(_ context.Context, pcm []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, pcm)
	return nil
}

func (r *fakeRoom) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	return nil
}

func (r *fakeRoom) closeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// fakeJob satisfies Job with a fakeRoom.
type fakeJob struct {
	room       *fakeRoom
	connectErr error
	mode       media.SubscribeMode
}

func (j *fakeJob) Connect(_ context.Context, mode media.SubscribeMode) error {
	j.mode = mode
	return j.connectErr
}

func (j *fakeJob) Room() media.Room { return j.room }

type fakeSTT struct {
	text string
}

func (s *fakeSTT) Transcribe(_ context.Context, _ []float32) (string, error) {
	return s.text, nil
}

type fakeLLM struct {
	reply string
}

func (l *fakeLLM) ID() string { return "fake" }

func (l *fakeLLM) Stream(_ context.Context, _ *voice.ChatRequest) (<-chan voice.StreamEvent, error) {
	ch := make(chan voice.StreamEvent, 2)
	ch <- voice.StreamEvent{Type: voice.EventTypeText, Text: l.reply}
	ch <- voice.StreamEvent{Type: voice.EventTypeDone}
	close(ch)
	return ch, nil
}

type fakeTTS struct {
	calls atomic.Int32
}

func (t *fakeTTS) Synthesize(_ context.Context, _ string) ([]byte, error) {
	t.calls.Add(1)
	return make([]byte, 640), nil
}

func (t *fakeTTS) SampleRate() int { return 16000 }

func testProviders() Providers {
	return Providers{
		STT: func() (voice.STT, error) { return &fakeSTT{}, nil },
		LLM: func() (voice.LLM, error) { return &fakeLLM{}, nil },
		TTS: func() (voice.TTS, error) { return &fakeTTS{}, nil },
		VAD: func() (voice.VAD, error) { return voice.NewRMSVAD(), nil },
	}
}

func testSupervisor(p Providers) *Supervisor {
	s := NewSupervisor(config.DefaultConfig())
	s.Providers = p
	return s
}

func TestSupervisorLifecycle(t *testing.T) {
	sup := testSupervisor(testProviders())
	job := &fakeJob{room: newFakeRoom()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx, job) }()

	waitForState(t, sup, StateActive)
	if job.mode != media.SubscribeAudioOnly {
		t.Fatalf("connected with mode %v, want audio-only", job.mode)
	}
	if sup.Session() == nil {
		t.Fatal("no session while active")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancellation")
	}

	if sup.State() != StateTerminated {
		t.Fatalf("got state %v, want terminated", sup.State())
	}
	if job.room.closeCount() == 0 {
		t.Fatal("room was not closed")
	}
}

func TestSupervisorConnectFailure(t *testing.T) {
	sup := testSupervisor(testProviders())
	job := &fakeJob{room: newFakeRoom(), connectErr: errors.New("dial refused")}

	err := sup.Run(context.Background(), job)
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("got %v, want ConnectionError", err)
	}
	if sup.State() != StateTerminated {
		t.Fatalf("got state %v, want terminated", sup.State())
	}
}

func TestSupervisorProviderInitFatal(t *testing.T) {
	cases := []struct {
		name     string
		mutate   func(*Providers)
		provider string
	}{
		{"stt", func(p *Providers) {
			p.STT = func() (voice.STT, error) { return nil, errors.New("no key") }
		}, "speech-to-text"},
		{"llm", func(p *Providers) {
			p.LLM = func() (voice.LLM, error) { return nil, errors.New("no key") }
		}, "language-model"},
		{"tts", func(p *Providers) {
			p.TTS = func() (voice.TTS, error) { return nil, errors.New("no key") }
		}, "text-to-speech"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			providers := testProviders()
			tc.mutate(&providers)
			sup := testSupervisor(providers)
			room := newFakeRoom()

			err := sup.Run(context.Background(), &fakeJob{room: room})
			var initErr *ProviderInitError
			if !errors.As(err, &initErr) {
				t.Fatalf("got %v, want ProviderInitError", err)
			}
			if initErr.Provider != tc.provider {
				t.Fatalf("got provider %q, want %q", initErr.Provider, tc.provider)
			}
			if room.closeCount() == 0 {
				t.Fatal("room leaked on provider init failure")
			}
			if sup.State() != StateTerminated {
				t.Fatalf("got state %v, want terminated", sup.State())
			}
		})
	}
}

func TestSupervisorDetectorOptional(t *testing.T) {
	providers := testProviders()
	providers.VAD = func() (voice.VAD, error) {
		return nil, errors.New("model file missing")
	}
	sup := testSupervisor(providers)
	job := &fakeJob{room: newFakeRoom()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx, job) }()

	waitForState(t, sup, StateActive)
	if sup.Session().Detector() != nil {
		t.Fatal("expected session without a detector")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("detector failure must not be fatal: %v", err)
	}
}

func TestSupervisorCancelBeforeActivity(t *testing.T) {
	sup := testSupervisor(testProviders())
	job := &fakeJob{room: newFakeRoom()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx, job) }()

	waitForState(t, sup, StateActive)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return")
	}

	// Stop is synchronous: by the time Run returns the room is closed
	// and every pipeline goroutine has exited.
	if job.room.closeCount() == 0 {
		t.Fatal("room not closed after stop")
	}
}

func TestStateString(t *testing.T) {
	states := map[State]string{
		StateIdle:       "idle",
		StateConnecting: "connecting",
		StateActive:     "active",
		StateDraining:   "draining",
		StateTerminated: "terminated",
	}
	for state, want := range states {
		if got := state.String(); got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}

func TestInstructionsMentionRole(t *testing.T) {
	a := NewAgent(Instructions)
	if !strings.Contains(a.Instructions(), "CalmSupport") {
		t.Fatal("instructions lost the assistant persona")
	}
	if !strings.Contains(a.Instructions(), "not a doctor") {
		t.Fatal("instructions lost the safety clause")
	}
}

func waitForState(t *testing.T, sup *Supervisor, want State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if sup.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("supervisor never reached %v, stuck at %v", want, sup.State())
}
