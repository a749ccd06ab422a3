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

// CreatePoll inserts a poll and its options.
func (s *Store) CreatePoll(ctx context.Context, p poll.Poll) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("poll id is required")
	}
	if strings.TrimSpace(p.OwnerID) == "" {
		return fmt.Errorf("poll owner is required")
	}
	if len(p.Options) == 0 {
		return fmt.Errorf("poll options are required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create poll: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var endAt any
	if p.EndAt != nil {
		endAt = toMillis(*p.EndAt)
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO polls (id, owner_id, name, multi_select, status, start_at, end_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`, p.ID, p.OwnerID, p.Name, boolToInt(p.MultiSelect), string(p.Status),
		toMillis(p.StartAt), endAt, toMillis(p.CreatedAt), toMillis(p.UpdatedAt)); err != nil {
		return fmt.Errorf("insert poll: %w", err)
	}

	for _, option := range p.Options {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO poll_options (poll_id, option_id, label, position, votes)
VALUES (?, ?, ?, ?, ?)
`, p.ID, option.ID, option.Label, option.Position, option.Votes); err != nil {
			return fmt.Errorf("insert poll option: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create poll: %w", err)
	}
	return nil
}

// GetPoll loads one poll with its ordered options and voter count.
func (s *Store) GetPoll(ctx context.Context, pollID string, now time.Time) (poll.Poll, error) {
	if err := ctx.Err(); err != nil {
		return poll.Poll{}, err
	}
	if s == nil || s.sqlDB == nil {
		return poll.Poll{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(pollID) == "" {
		return poll.Poll{}, fmt.Errorf("poll id is required")
	}
	return getPoll(ctx, s.sqlDB, pollID, now)
}

// ListPolls returns every poll, newest first.
func (s *Store) ListPolls(ctx context.Context, now time.Time) ([]poll.Poll, error) {
	return s.listPolls(ctx, now, `
SELECT id, owner_id, name, multi_select, status, start_at, end_at, created_at, updated_at
FROM polls ORDER BY created_at DESC
`)
}

// ListPollsByOwner returns the owner's polls, newest first.
func (s *Store) ListPollsByOwner(ctx context.Context, ownerID string, now time.Time) ([]poll.Poll, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("owner id is required")
	}
	return s.listPolls(ctx, now, `
SELECT id, owner_id, name, multi_select, status, start_at, end_at, created_at, updated_at
FROM polls WHERE owner_id = ? ORDER BY created_at DESC
`, ownerID)
}

func (s *Store) listPolls(ctx context.Context, now time.Time, query string, args ...any) ([]poll.Poll, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list polls: %w", err)
	}
	defer rows.Close()

	polls := make([]poll.Poll, 0)
	for rows.Next() {
		p, err := scanPoll(rows.Scan, now)
		if err != nil {
			return nil, fmt.Errorf("scan poll: %w", err)
		}
		polls = append(polls, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range polls {
		if err := attachPollDetails(ctx, s.sqlDB, &polls[i]); err != nil {
			return nil, err
		}
	}
	return polls, nil
}

func getPoll(ctx context.Context, q querier, pollID string, now time.Time) (poll.Poll, error) {
	row := q.QueryRowContext(ctx, `
SELECT id, owner_id, name, multi_select, status, start_at, end_at, created_at, updated_at
FROM polls WHERE id = ?
`, pollID)

	p, err := scanPoll(row.Scan, now)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return poll.Poll{}, poll.ErrPollNotFound
		}
		return poll.Poll{}, fmt.Errorf("get poll: %w", err)
	}
	if err := attachPollDetails(ctx, q, &p); err != nil {
		return poll.Poll{}, err
	}
	return p, nil
}

func attachPollDetails(ctx context.Context, q querier, p *poll.Poll) error {
	rows, err := q.QueryContext(ctx, `
SELECT option_id, label, position, votes
FROM poll_options WHERE poll_id = ? ORDER BY position
`, p.ID)
	if err != nil {
		return fmt.Errorf("list poll options: %w", err)
	}
	defer rows.Close()

	options := make([]poll.Option, 0)
	for rows.Next() {
		var option poll.Option
		if err := rows.Scan(&option.ID, &option.Label, &option.Position, &option.Votes); err != nil {
			return fmt.Errorf("scan poll option: %w", err)
		}
		options = append(options, option)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	p.Options = options

	row := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM poll_voters WHERE poll_id = ?`, p.ID)
	if err := row.Scan(&p.VoterCount); err != nil {
		return fmt.Errorf("count poll voters: %w", err)
	}
	return nil
}

// scanPoll reads one polls row, reporting the effective lifecycle state at
// the given time rather than the stored one.
func scanPoll(scan func(dest ...any) error, now time.Time) (poll.Poll, error) {
	var p poll.Poll
	var multiSelect int
	var status string
	var startAt int64
	var endAt sql.NullInt64
	var createdAt int64
	var updatedAt int64
	if err := scan(
		&p.ID,
		&p.OwnerID,
		&p.Name,
		&multiSelect,
		&status,
		&startAt,
		&endAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		return poll.Poll{}, err
	}
	p.MultiSelect = multiSelect != 0
	p.Status = poll.Status(status)
	p.StartAt = fromMillis(startAt)
	if endAt.Valid {
		value := fromMillis(endAt.Int64)
		p.EndAt = &value
	}
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	p.Status = p.EffectiveStatus(now)
	return p, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
