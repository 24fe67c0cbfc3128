package agent

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/aipsych-founder/AIPsych/internal/voice"
)

func speechFrame() []int16 {
	frame := make([]int16, 320)
	for i := range frame {
		frame[i] = int16(0.5 * 32767 * math.Sin(float64(i)*0.3))
	}
	return frame
}

func TestSessionStartStop(t *testing.T) {
	room := newFakeRoom()
	session := NewAgentSession(room, &fakeSTT{}, &fakeLLM{}, &fakeTTS{}, nil, 16000)

	if err := session.Start(context.Background(), NewAgent(Instructions)); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := session.Start(context.Background(), NewAgent(Instructions)); err == nil {
		t.Fatal("double start must fail")
	}

	done := make(chan struct{})
	go func() {
		session.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not complete")
	}

	if room.closeCount() == 0 {
		t.Fatal("stop did not close the room")
	}

	// Idempotent.
	session.Stop()
	if room.closeCount() != 1 {
		t.Fatalf("room closed %d times, want 1", room.closeCount())
	}
}

func TestSessionStartValidation(t *testing.T) {
	s := NewAgentSession(nil, &fakeSTT{}, &fakeLLM{}, &fakeTTS{}, nil, 16000)
	if err := s.Start(context.Background(), NewAgent(Instructions)); err == nil {
		t.Fatal("start with nil room must fail")
	}

	s = NewAgentSession(newFakeRoom(), nil, &fakeLLM{}, &fakeTTS{}, nil, 16000)
	if err := s.Start(context.Background(), NewAgent(Instructions)); err == nil {
		t.Fatal("start without STT must fail")
	}
}

func TestSessionEndToEnd(t *testing.T) {
	room := newFakeRoom()
	stt := &fakeSTT{text: "I feel anxious today."}
	llm := &fakeLLM{reply: "That sounds hard. I'm here with you."}
	tts := &fakeTTS{}

	session := NewAgentSession(room, stt, llm, tts, nil, 16000)
	if err := session.Start(context.Background(), NewAgent(Instructions)); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer session.Stop()

	// Calibrate the gate with silence, then feed speech and a silent tail
	// long enough to close the utterance.
	for i := 0; i < 20; i++ {
		room.frames <- make([]int16, 320)
	}
	for i := 0; i < 60; i++ { // >0.5s of speech
		room.frames <- speechFrame()
	}
	for i := 0; i < 30; i++ {
		room.frames <- make([]int16, 320)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if tts.calls.Load() > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("pipeline never reached speech synthesis")
}

func TestConversationHistory(t *testing.T) {
	s := NewAgentSession(newFakeRoom(), &fakeSTT{}, &fakeLLM{}, &fakeTTS{}, nil, 16000)

	s.appendExchange("hello", "hi there")
	msgs := s.conversation("how are you")

	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[0].Content != "hello" {
		t.Fatalf("unexpected first message: %+v", msgs[0])
	}
	if msgs[1].Role != "assistant" || msgs[1].Content != "hi there" {
		t.Fatalf("unexpected second message: %+v", msgs[1])
	}
	if msgs[2].Content != "how are you" {
		t.Fatalf("unexpected last message: %+v", msgs[2])
	}
}

func TestStreamToSentencesFlushesOnDone(t *testing.T) {
	s := NewAgentSession(newFakeRoom(), &fakeSTT{}, &fakeLLM{}, &fakeTTS{}, nil, 16000)

	events := make(chan voice.StreamEvent, 4)
	events <- voice.StreamEvent{Type: voice.EventTypeText, Text: "First sentence. Second "}
	events <- voice.StreamEvent{Type: voice.EventTypeText, Text: "half without terminator"}
	events <- voice.StreamEvent{Type: voice.EventTypeDone}
	close(events)

	full := s.streamToSentences(context.Background(), events)
	if full != "First sentence. Second half without terminator" {
		t.Fatalf("got full reply %q", full)
	}

	var sentences []string
	for len(s.ttsCh) > 0 {
		sentences = append(sentences, <-s.ttsCh)
	}
	if len(sentences) != 2 {
		t.Fatalf("got %d sentences, want 2: %v", len(sentences), sentences)
	}
	if sentences[0] != "First sentence." {
		t.Fatalf("got first sentence %q", sentences[0])
	}
	if sentences[1] != "Second half without terminator" {
		t.Fatalf("got trailing flush %q", sentences[1])
	}
}

func TestStreamToSentencesFlushesOnError(t *testing.T) {
	s := NewAgentSession(newFakeRoom(), &fakeSTT{}, &fakeLLM{}, &fakeTTS{}, nil, 16000)

	events := make(chan voice.StreamEvent, 2)
	events <- voice.StreamEvent{Type: voice.EventTypeText, Text: "Partial reply"}
	events <- voice.StreamEvent{Type: voice.EventTypeError, Error: context.DeadlineExceeded}
	close(events)

	full := s.streamToSentences(context.Background(), events)
	if full != "Partial reply" {
		t.Fatalf("got %q", full)
	}
	if len(s.ttsCh) != 1 {
		t.Fatal("partial text was not flushed to the speech pipeline")
	}
}

func TestInterruptDrainsQueue(t *testing.T) {
	s := NewAgentSession(newFakeRoom(), &fakeSTT{}, &fakeLLM{}, &fakeTTS{}, voice.NewRMSVAD(), 16000)

	s.ttsCh <- "queued one"
	s.ttsCh <- "queued two"
	s.speaking.Store(true)

	s.interrupt()

	if len(s.ttsCh) != 0 {
		t.Fatal("interrupt did not drain the speech queue")
	}
	if !s.interrupted.Load() {
		t.Fatal("interrupt flag not set")
	}
	if s.speaking.Load() {
		t.Fatal("still marked speaking after interrupt")
	}
}

func TestFindSentenceEnd(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"Hello there. More text", 11},
		{"No terminator here", -1},
		{"Is this it? Yes", 10},
		{"Wow! Amazing", 3},
		{"Trailing stop.", 13},
	}
	for _, tc := range cases {
		if got := findSentenceEnd(tc.text); got != tc.want {
			t.Fatalf("findSentenceEnd(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestFindClauseEnd(t *testing.T) {
	if got := findClauseEnd("first part, second part"); got != 10 {
		t.Fatalf("got %d, want 10", got)
	}
	if got := findClauseEnd("1,000 items"); got != -1 {
		t.Fatalf("comma inside a number is not a clause: got %d", got)
	}
	if got := findClauseEnd("no clause here"); got != -1 {
		t.Fatalf("got %d, want -1", got)
	}
}
