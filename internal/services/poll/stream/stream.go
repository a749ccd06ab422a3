// Package stream produces periodic tally snapshots for live poll results.
package stream

import (
	"context"
	"time"

	"github.com/Lordhacker756/vortex-api/internal/services/poll"
)

// DefaultInterval is how often a subscriber receives a fresh snapshot.
const DefaultInterval = time.Second

// ResultsReader is the read capability the streamer polls. *ballot.Engine
// satisfies it.
type ResultsReader interface {
	GetPoll(ctx context.Context, pollID string) (poll.Poll, error)
}

// Snapshot is one emission of the stream: either a poll state or an in-band
// error. Read failures never terminate the stream; the subscriber keeps its
// connection and sees the error as an event.
type Snapshot struct {
	Poll poll.Poll
	Err  error
}

// Streamer periodically re-reads a poll and pushes snapshots to
// subscribers.
type Streamer struct {
	reader   ResultsReader
	interval time.Duration
}

// NewStreamer builds a streamer. A non-positive interval falls back to
// DefaultInterval.
func NewStreamer(reader ResultsReader, interval time.Duration) *Streamer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Streamer{reader: reader, interval: interval}
}

// Stream emits a snapshot immediately and then one per tick until the
// context is cancelled, at which point the channel is closed.
//
// The channel holds only the latest snapshot: when the subscriber lags, a
// newer snapshot replaces the undelivered one instead of queueing behind
// it.
func (s *Streamer) Stream(ctx context.Context, pollID string) <-chan Snapshot {
	out := make(chan Snapshot, 1)

	go func() {
		defer close(out)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.emit(ctx, out, pollID)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.emit(ctx, out, pollID)
			}
		}
	}()

	return out
}

func (s *Streamer) emit(ctx context.Context, out chan Snapshot, pollID string) {
	p, err := s.reader.GetPoll(ctx, pollID)
	snapshot := Snapshot{Poll: p, Err: err}

	// Latest wins: drop the undelivered snapshot, if any, then offer the
	// fresh one.
	select {
	case out <- snapshot:
	default:
		select {
		case <-out:
		default:
		}
		select {
		case out <- snapshot:
		default:
		}
	}
}
