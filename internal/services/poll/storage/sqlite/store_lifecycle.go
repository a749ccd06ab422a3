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

// UpdateStatus conditionally moves a poll between lifecycle states.
//
// The transition is a single conditional UPDATE keyed on the current status
// so two concurrent owner actions cannot both apply; the loser observes the
// state the winner left behind.
func (s *Store) UpdateStatus(ctx context.Context, pollID string, from []poll.Status, to poll.Status, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(pollID) == "" {
		return fmt.Errorf("poll id is required")
	}
	if len(from) == 0 {
		return fmt.Errorf("source statuses are required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin status update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := promoteDuePoll(ctx, tx, pollID, now); err != nil {
		return err
	}

	placeholders := make([]string, len(from))
	args := []any{string(to), toMillis(now), pollID}
	for i, status := range from {
		placeholders[i] = "?"
		args = append(args, string(status))
	}
	result, err := tx.ExecContext(ctx, fmt.Sprintf(`
UPDATE polls SET status = ?, updated_at = ?
WHERE id = ? AND status IN (%s)
`, strings.Join(placeholders, ", ")), args...)
	if err != nil {
		return fmt.Errorf("update poll status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update poll status rows: %w", err)
	}
	if affected == 0 {
		if err := classifyRefusal(ctx, tx, pollID); err != nil {
			return err
		}
		return poll.ErrInvalidTransition
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status update: %w", err)
	}
	return nil
}

// ResetPoll zeroes every tally, clears the voter set, and reactivates the
// poll, all in one transaction.
func (s *Store) ResetPoll(ctx context.Context, pollID string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(pollID) == "" {
		return fmt.Errorf("poll id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := promoteDuePoll(ctx, tx, pollID, now); err != nil {
		return err
	}
	if err := classifyRefusal(ctx, tx, pollID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE poll_options SET votes = 0 WHERE poll_id = ?
`, pollID); err != nil {
		return fmt.Errorf("zero tallies: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
DELETE FROM poll_voters WHERE poll_id = ?
`, pollID); err != nil {
		return fmt.Errorf("clear voters: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE polls SET status = ?, updated_at = ? WHERE id = ?
`, string(poll.StatusActive), toMillis(now), pollID); err != nil {
		return fmt.Errorf("reactivate poll: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	return nil
}

// UpdateDetails renames a poll and toggles multi-select.
func (s *Store) UpdateDetails(ctx context.Context, pollID string, name string, multiSelect bool, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(pollID) == "" {
		return fmt.Errorf("poll id is required")
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("poll name is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin details update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := classifyRefusal(ctx, tx, pollID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE polls SET name = ?, multi_select = ?, updated_at = ? WHERE id = ?
`, name, boolToInt(multiSelect), toMillis(now), pollID); err != nil {
		return fmt.Errorf("update poll details: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit details update: %w", err)
	}
	return nil
}

// classifyRefusal turns a refused write into the precise domain error: the
// poll is missing or it is closed. A nil return means the poll exists and
// is still open to modification.
func classifyRefusal(ctx context.Context, q querier, pollID string) error {
	var status string
	row := q.QueryRowContext(ctx, `SELECT status FROM polls WHERE id = ?`, pollID)
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return poll.ErrPollNotFound
		}
		return fmt.Errorf("read poll status: %w", err)
	}
	if poll.Status(status) == poll.StatusClosed {
		return poll.ErrCannotModifyClosed
	}
	return nil
}
