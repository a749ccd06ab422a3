// Package ballot enforces vote eligibility and poll lifecycle rules.
package ballot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Lordhacker756/vortex-api/internal/platform/id"
	"github.com/Lordhacker756/vortex-api/internal/services/poll"
	"github.com/Lordhacker756/vortex-api/internal/services/poll/storage"
)

// Engine drives poll creation, voting, and lifecycle transitions over the
// poll store. Atomicity lives in the store; the engine owns validation,
// ownership checks, and which transitions are legal from where.
type Engine struct {
	store       storage.PollStore
	clock       func() time.Time
	idGenerator func() (string, error)
}

// NewEngine builds a ballot engine.
func NewEngine(store storage.PollStore) *Engine {
	return &Engine{
		store:       store,
		clock:       time.Now,
		idGenerator: id.NewID,
	}
}

// WithClock overrides time, for tests.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// WithIDGenerator overrides id generation, for tests.
func (e *Engine) WithIDGenerator(idGenerator func() (string, error)) *Engine {
	e.idGenerator = idGenerator
	return e
}

func (e *Engine) ready() error {
	if e == nil || e.store == nil {
		return fmt.Errorf("ballot engine storage is not configured")
	}
	return nil
}

// CreatePoll validates and persists a new poll owned by the caller.
func (e *Engine) CreatePoll(ctx context.Context, ownerID string, input poll.CreatePollInput) (poll.Poll, error) {
	if err := e.ready(); err != nil {
		return poll.Poll{}, err
	}
	created, err := poll.New(ownerID, input, e.clock, e.idGenerator)
	if err != nil {
		return poll.Poll{}, err
	}
	if err := e.store.CreatePoll(ctx, created); err != nil {
		return poll.Poll{}, fmt.Errorf("persist poll: %w", err)
	}
	return created, nil
}

// CastVote records the voter's ballot. Single-select polls take exactly one
// option id; multi-select polls take one or more distinct option ids, still
// as one ballot.
func (e *Engine) CastVote(ctx context.Context, pollID string, optionIDs []string, voterID string) (poll.Poll, error) {
	if err := e.ready(); err != nil {
		return poll.Poll{}, err
	}
	if strings.TrimSpace(voterID) == "" {
		return poll.Poll{}, fmt.Errorf("voter id is required")
	}

	distinct := make([]string, 0, len(optionIDs))
	seen := make(map[string]struct{}, len(optionIDs))
	for _, optionID := range optionIDs {
		optionID = strings.TrimSpace(optionID)
		if optionID == "" {
			continue
		}
		if _, ok := seen[optionID]; ok {
			continue
		}
		seen[optionID] = struct{}{}
		distinct = append(distinct, optionID)
	}
	if len(distinct) == 0 {
		return poll.Poll{}, poll.ErrInvalidOption
	}

	return e.store.CastVote(ctx, pollID, distinct, voterID, e.clock().UTC())
}

// CanVote reports whether the caller still has a ballot to cast on the poll.
func (e *Engine) CanVote(ctx context.Context, pollID string, voterID string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	now := e.clock().UTC()
	p, err := e.store.GetPoll(ctx, pollID, now)
	if err != nil {
		return false, err
	}
	if p.Status != poll.StatusActive || p.Ended(now) {
		return false, nil
	}
	voted, err := e.store.HasVoted(ctx, pollID, voterID)
	if err != nil {
		return false, err
	}
	return !voted, nil
}

// Pause suspends voting on an Active poll.
func (e *Engine) Pause(ctx context.Context, pollID string, ownerID string) (poll.Poll, error) {
	return e.transition(ctx, pollID, ownerID, []poll.Status{poll.StatusActive}, poll.StatusPaused)
}

// Resume reopens voting on a Paused poll.
func (e *Engine) Resume(ctx context.Context, pollID string, ownerID string) (poll.Poll, error) {
	return e.transition(ctx, pollID, ownerID, []poll.Status{poll.StatusPaused}, poll.StatusActive)
}

// Close ends the poll permanently. Only a poll that has opened can close;
// a Scheduled poll has no results to seal.
func (e *Engine) Close(ctx context.Context, pollID string, ownerID string) (poll.Poll, error) {
	return e.transition(ctx, pollID, ownerID, []poll.Status{poll.StatusActive, poll.StatusPaused}, poll.StatusClosed)
}

func (e *Engine) transition(ctx context.Context, pollID string, ownerID string, from []poll.Status, to poll.Status) (poll.Poll, error) {
	if err := e.ready(); err != nil {
		return poll.Poll{}, err
	}
	now := e.clock().UTC()
	if _, err := e.authorize(ctx, pollID, ownerID, now); err != nil {
		return poll.Poll{}, err
	}
	if err := e.store.UpdateStatus(ctx, pollID, from, to, now); err != nil {
		return poll.Poll{}, err
	}
	return e.store.GetPoll(ctx, pollID, now)
}

// Reset clears every tally and the voter set and reactivates the poll.
// Closed polls cannot be reset.
func (e *Engine) Reset(ctx context.Context, pollID string, ownerID string) (poll.Poll, error) {
	if err := e.ready(); err != nil {
		return poll.Poll{}, err
	}
	now := e.clock().UTC()
	current, err := e.authorize(ctx, pollID, ownerID, now)
	if err != nil {
		return poll.Poll{}, err
	}
	if current.Status == poll.StatusScheduled {
		return poll.Poll{}, poll.ErrInvalidTransition
	}
	if err := e.store.ResetPoll(ctx, pollID, now); err != nil {
		return poll.Poll{}, err
	}
	return e.store.GetPoll(ctx, pollID, now)
}

// UpdatePoll renames the poll and toggles multi-select. Fields left nil keep
// their current value.
func (e *Engine) UpdatePoll(ctx context.Context, pollID string, ownerID string, name *string, multiSelect *bool) (poll.Poll, error) {
	if err := e.ready(); err != nil {
		return poll.Poll{}, err
	}
	now := e.clock().UTC()
	current, err := e.store.GetPoll(ctx, pollID, now)
	if err != nil {
		return poll.Poll{}, err
	}
	if current.OwnerID != ownerID {
		return poll.Poll{}, poll.ErrUnauthorized
	}

	newName := current.Name
	if name != nil {
		newName = strings.TrimSpace(*name)
		if newName == "" {
			return poll.Poll{}, poll.ErrInvalidConfiguration
		}
	}
	newMultiSelect := current.MultiSelect
	if multiSelect != nil {
		newMultiSelect = *multiSelect
	}

	if err := e.store.UpdateDetails(ctx, pollID, newName, newMultiSelect, now); err != nil {
		return poll.Poll{}, err
	}
	return e.store.GetPoll(ctx, pollID, now)
}

// GetPoll returns the poll with its current tallies.
func (e *Engine) GetPoll(ctx context.Context, pollID string) (poll.Poll, error) {
	if err := e.ready(); err != nil {
		return poll.Poll{}, err
	}
	return e.store.GetPoll(ctx, pollID, e.clock().UTC())
}

// ListPolls returns every poll, newest first.
func (e *Engine) ListPolls(ctx context.Context) ([]poll.Poll, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.store.ListPolls(ctx, e.clock().UTC())
}

// ListPollsByOwner returns the owner's polls, newest first.
func (e *Engine) ListPollsByOwner(ctx context.Context, ownerID string) ([]poll.Poll, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("owner id is required")
	}
	return e.store.ListPollsByOwner(ctx, ownerID, e.clock().UTC())
}

// authorize confirms the caller owns the poll before any lifecycle write
// and returns the poll as observed.
func (e *Engine) authorize(ctx context.Context, pollID string, ownerID string, now time.Time) (poll.Poll, error) {
	if strings.TrimSpace(ownerID) == "" {
		return poll.Poll{}, poll.ErrUnauthorized
	}
	current, err := e.store.GetPoll(ctx, pollID, now)
	if err != nil {
		return poll.Poll{}, err
	}
	if current.OwnerID != ownerID {
		return poll.Poll{}, poll.ErrUnauthorized
	}
	return current, nil
}
