// Package storage defines the persistence contract for the poll aggregate.
package storage

import (
	"context"
	"time"

	"github.com/Lordhacker756/vortex-api/internal/platform/errors"
	"github.com/Lordhacker756/vortex-api/internal/services/poll"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New(errors.CodeNotFound, "record not found")

// PollStore persists poll aggregates.
//
// The store is where ballot integrity lives: CastVote evaluates eligibility
// and records the ballot in one transaction, and lifecycle transitions are
// conditional updates keyed on the current status so concurrent owner
// actions cannot clobber each other. A Scheduled poll whose start time has
// passed is promoted to Active inside the same transaction as the operation
// that observed it.
type PollStore interface {
	// CreatePoll inserts a new poll with its options.
	CreatePoll(ctx context.Context, p poll.Poll) error

	// GetPoll loads one poll with ordered options and voter count. Returns
	// poll.ErrPollNotFound for unknown ids.
	GetPoll(ctx context.Context, pollID string, now time.Time) (poll.Poll, error)

	// ListPolls returns all polls, newest first.
	ListPolls(ctx context.Context, now time.Time) ([]poll.Poll, error)

	// ListPollsByOwner returns the owner's polls, newest first.
	ListPollsByOwner(ctx context.Context, ownerID string, now time.Time) ([]poll.Poll, error)

	// CastVote records a ballot in a single atomic step: the poll must
	// exist, be Active, not be past its end time, every option id must
	// belong to the poll, and the voter must not already be present. All
	// guards and both writes (voter row, tally increments) happen in one
	// transaction, and any guard failure rolls the whole ballot back.
	// Returns the poll as of the committed vote.
	CastVote(ctx context.Context, pollID string, optionIDs []string, voterID string, now time.Time) (poll.Poll, error)

	// HasVoted reports whether the voter already has a ballot on the poll.
	HasVoted(ctx context.Context, pollID string, voterID string) (bool, error)

	// UpdateStatus conditionally moves the poll from one of the given
	// statuses to the target status. When the poll is in none of them it
	// returns poll.ErrCannotModifyClosed for closed polls and
	// poll.ErrInvalidTransition otherwise.
	UpdateStatus(ctx context.Context, pollID string, from []poll.Status, to poll.Status, now time.Time) error

	// ResetPoll zeroes every tally, clears the voter set, and reactivates
	// the poll. Closed polls are rejected with poll.ErrCannotModifyClosed.
	ResetPoll(ctx context.Context, pollID string, now time.Time) error

	// UpdateDetails renames the poll and toggles multi-select. Closed polls
	// are rejected with poll.ErrCannotModifyClosed.
	UpdateDetails(ctx context.Context, pollID string, name string, multiSelect bool, now time.Time) error
}
