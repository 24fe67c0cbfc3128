package worker

import (
	"context"
	"fmt"

	"github.com/aipsych-founder/AIPsych/internal/config"
	"github.com/aipsych-founder/AIPsych/internal/logging"
	"github.com/aipsych-founder/AIPsych/internal/media"
	"github.com/aipsych-founder/AIPsych/internal/token"
)

// Connector dials a room. *media.Client satisfies it; tests substitute
// fakes.
type Connector interface {
	Connect(ctx context.Context, params media.ConnectParams) (media.Room, error)
}

// JobContext is handed to an entrypoint for one room job. It exposes
// the room connection and nothing else; cancellation arrives through
// the entrypoint's context.
type JobContext struct {
	connector Connector
	params    media.ConnectParams
	room      media.Room
}

// NewJobContext builds a job for one room. Exposed for tests; Run
// assembles jobs for production use.
func NewJobContext(connector Connector, params media.ConnectParams) *JobContext {
	return &JobContext{connector: connector, params: params}
}

// Connect joins the job's room with the requested subscription mode.
func (j *JobContext) Connect(ctx context.Context, mode media.SubscribeMode) error {
	j.params.Subscribe = mode
	room, err := j.connector.Connect(ctx, j.params)
	if err != nil {
		return err
	}
	j.room = room
	return nil
}

// Room returns the connected room, or nil before Connect succeeds.
func (j *JobContext) Room() media.Room {
	return j.room
}

// Close releases the room connection if one was established.
func (j *JobContext) Close() {
	if j.room != nil {
		j.room.Close()
	}
}

// Options configures a worker run.
type Options struct {
	// Entrypoint handles one dispatched job. Required.
	Entrypoint func(ctx context.Context, job *JobContext) error
}

// Run dispatches a single job for the configured default room and
// invokes the entrypoint with it. The worker signs its own room access
// with the server credentials; retries across invocations are the
// caller's concern.
func Run(ctx context.Context, cfg *config.Config, opts Options) error {
	if opts.Entrypoint == nil {
		return fmt.Errorf("worker: no entrypoint configured")
	}

	issuer, err := token.NewIssuer(cfg.APIKey, cfg.APISecret, cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	accessToken, err := issuer.Issue(cfg.AgentIdentity, cfg.DefaultRoom)
	if err != nil {
		return fmt.Errorf("worker: %w", err)
	}

	job := NewJobContext(media.NewClient(), media.ConnectParams{
		URL:   cfg.LiveKitURL,
		Token: accessToken,
		Room:  cfg.DefaultRoom,
	})
	defer job.Close()

	logging.Infof("dispatching job for room %q as %q", cfg.DefaultRoom, cfg.AgentIdentity)
	return opts.Entrypoint(ctx, job)
}
