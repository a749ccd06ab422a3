package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Lordhacker756/vortex-api/internal/services/poll"
)

// CastVote records a ballot in one transaction.
//
// Every guard (poll exists, Active, inside the voting window, options
// belong, voter absent) and both writes (voter row, tally increments) share
// the transaction, so a guard failure rolls the whole ballot back and two
// concurrent ballots from one voter race on the voter primary key with
// exactly one winner.
func (s *Store) CastVote(ctx context.Context, pollID string, optionIDs []string, voterID string, now time.Time) (poll.Poll, error) {
	if err := ctx.Err(); err != nil {
		return poll.Poll{}, err
	}
	if s == nil || s.sqlDB == nil {
		return poll.Poll{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(pollID) == "" {
		return poll.Poll{}, fmt.Errorf("poll id is required")
	}
	if strings.TrimSpace(voterID) == "" {
		return poll.Poll{}, fmt.Errorf("voter id is required")
	}
	if len(optionIDs) == 0 {
		return poll.Poll{}, poll.ErrInvalidOption
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return poll.Poll{}, fmt.Errorf("begin cast vote: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := promoteDuePoll(ctx, tx, pollID, now); err != nil {
		return poll.Poll{}, err
	}

	var status string
	var multiSelect int
	var endAt sql.NullInt64
	row := tx.QueryRowContext(ctx, `
SELECT status, multi_select, end_at FROM polls WHERE id = ?
`, pollID)
	if err := row.Scan(&status, &multiSelect, &endAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return poll.Poll{}, poll.ErrPollNotFound
		}
		return poll.Poll{}, fmt.Errorf("read poll for vote: %w", err)
	}

	switch poll.Status(status) {
	case poll.StatusActive:
	case poll.StatusClosed:
		return poll.Poll{}, poll.ErrPollClosed
	default:
		// Paused, and Scheduled polls not yet due, are not accepting votes.
		return poll.Poll{}, poll.ErrPollPaused
	}
	if endAt.Valid && !now.Before(fromMillis(endAt.Int64)) {
		return poll.Poll{}, poll.ErrPollEnded
	}
	if multiSelect == 0 && len(optionIDs) != 1 {
		return poll.Poll{}, poll.ErrInvalidOption
	}

	result, err := tx.ExecContext(ctx, `
INSERT INTO poll_voters (poll_id, user_id, voted_at)
VALUES (?, ?, ?)
ON CONFLICT(poll_id, user_id) DO NOTHING
`, pollID, voterID, toMillis(now))
	if err != nil {
		return poll.Poll{}, fmt.Errorf("record voter: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return poll.Poll{}, fmt.Errorf("record voter rows: %w", err)
	}
	if affected == 0 {
		return poll.Poll{}, poll.ErrAlreadyVoted
	}

	for _, optionID := range optionIDs {
		result, err := tx.ExecContext(ctx, `
UPDATE poll_options SET votes = votes + 1 WHERE poll_id = ? AND option_id = ?
`, pollID, optionID)
		if err != nil {
			return poll.Poll{}, fmt.Errorf("increment tally: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return poll.Poll{}, fmt.Errorf("increment tally rows: %w", err)
		}
		if affected == 0 {
			return poll.Poll{}, poll.ErrInvalidOption
		}
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE polls SET updated_at = ? WHERE id = ?
`, toMillis(now), pollID); err != nil {
		return poll.Poll{}, fmt.Errorf("touch poll: %w", err)
	}

	voted, err := getPoll(ctx, tx, pollID, now)
	if err != nil {
		return poll.Poll{}, err
	}

	if err := tx.Commit(); err != nil {
		return poll.Poll{}, fmt.Errorf("commit cast vote: %w", err)
	}
	return voted, nil
}

// HasVoted reports whether the voter already has a ballot on the poll.
func (s *Store) HasVoted(ctx context.Context, pollID string, voterID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(pollID) == "" {
		return false, fmt.Errorf("poll id is required")
	}
	if strings.TrimSpace(voterID) == "" {
		return false, fmt.Errorf("voter id is required")
	}

	var count int
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT COUNT(*) FROM poll_voters WHERE poll_id = ? AND user_id = ?
`, pollID, voterID)
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("check voter: %w", err)
	}
	return count > 0, nil
}
