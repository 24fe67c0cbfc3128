package media

import "context"

// SubscribeMode controls which remote tracks the connection subscribes to.
type SubscribeMode int

const (
	// SubscribeAll subscribes to every published track.
	SubscribeAll SubscribeMode = iota
	// SubscribeAudioOnly skips video streams to avoid unnecessary
	// bandwidth and decode cost.
	SubscribeAudioOnly
	// SubscribeNone joins without subscribing.
	SubscribeNone
)

func (m SubscribeMode) String() string {
	switch m {
	case SubscribeAll:
		return "all"
	case SubscribeAudioOnly:
		return "audio"
	case SubscribeNone:
		return "none"
	default:
		return "unknown"
	}
}

// Room is a connected real-time session space. Implementations deliver
// subscribed participant audio as Int16 PCM frames and accept PCM audio
// for publishing.
type Room interface {
	// Name returns the room name.
	Name() string
	// AudioFrames returns the stream of subscribed audio frames. The
	// channel is closed when the connection ends.
	AudioFrames() <-chan []int16
	// PublishAudio sends a frame of Int16LE PCM into the room.
	PublishAudio(ctx context.Context, pcm []byte) error
	// Close tears down the connection. Safe to call more than once.
	Close() error
}
