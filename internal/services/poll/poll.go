// Package poll defines the poll aggregate and its lifecycle rules.
package poll

import (
	"strings"
	"time"

	apperrors "github.com/Lordhacker756/vortex-api/internal/platform/errors"
)

var (
	// ErrPollNotFound indicates the poll does not exist.
	ErrPollNotFound = apperrors.New(apperrors.CodePollNotFound, "poll not found")
	// ErrPollClosed indicates the poll has been closed by its owner.
	ErrPollClosed = apperrors.New(apperrors.CodePollClosed, "poll is closed")
	// ErrPollPaused indicates the poll is not currently accepting votes.
	ErrPollPaused = apperrors.New(apperrors.CodePollPaused, "poll is not accepting votes")
	// ErrPollEnded indicates the poll's voting window has passed.
	ErrPollEnded = apperrors.New(apperrors.CodePollEnded, "poll voting period has ended")
	// ErrInvalidOption indicates the selected option does not belong to the poll.
	ErrInvalidOption = apperrors.New(apperrors.CodePollInvalidOption, "option does not belong to this poll")
	// ErrAlreadyVoted indicates the voter already cast a ballot on the poll.
	ErrAlreadyVoted = apperrors.New(apperrors.CodePollAlreadyVoted, "voter has already voted on this poll")
	// ErrInvalidConfiguration indicates an unusable poll definition.
	ErrInvalidConfiguration = apperrors.New(apperrors.CodePollInvalidConfiguration, "invalid poll configuration")
	// ErrInvalidTransition indicates a lifecycle move the state machine forbids.
	ErrInvalidTransition = apperrors.New(apperrors.CodePollInvalidTransition, "lifecycle transition is not allowed")
	// ErrUnauthorized indicates the caller does not own the poll.
	ErrUnauthorized = apperrors.New(apperrors.CodePollUnauthorized, "caller does not own this poll")
	// ErrCannotModifyClosed indicates a write against a closed poll.
	ErrCannotModifyClosed = apperrors.New(apperrors.CodePollCannotModifyClosed, "closed polls cannot be modified")
)

// Status is a poll lifecycle state.
//
// Scheduled polls become Active once their start time is reached; the
// promotion happens at read and vote time, there is no scheduler. Closed is
// terminal.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusClosed    Status = "closed"
)

// Option is one choice within a poll, ordered by Position.
type Option struct {
	ID       string
	Label    string
	Position int
	Votes    int64
}

// Poll is the aggregate root for one ballot.
//
// VoterCount tracks the distinct voters recorded against the poll. For
// single-select polls it always equals the sum of option votes.
type Poll struct {
	ID          string
	OwnerID     string
	Name        string
	MultiSelect bool
	Status      Status
	StartAt     time.Time
	EndAt       *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Options     []Option
	VoterCount  int64
}

// CreatePollInput carries the owner-provided poll definition.
type CreatePollInput struct {
	Name         string
	MultiSelect  bool
	StartAt      time.Time
	EndAt        *time.Time
	OptionLabels []string
}

// New validates a poll definition and builds the aggregate with fresh ids.
//
// A poll whose start time has already passed begins Active; otherwise it is
// Scheduled until the start time is reached.
func New(ownerID string, input CreatePollInput, now func() time.Time, idGenerator func() (string, error)) (Poll, error) {
	if strings.TrimSpace(ownerID) == "" {
		return Poll{}, apperrors.New(apperrors.CodePollInvalidConfiguration, "poll owner is required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Poll{}, apperrors.New(apperrors.CodePollInvalidConfiguration, "poll name is required")
	}
	if len(input.OptionLabels) == 0 {
		return Poll{}, apperrors.New(apperrors.CodePollInvalidConfiguration, "poll needs at least one option")
	}

	current := now().UTC()
	startAt := input.StartAt
	if startAt.IsZero() {
		startAt = current
	}
	startAt = startAt.UTC()
	if input.EndAt != nil {
		endAt := input.EndAt.UTC()
		if !endAt.After(startAt) {
			return Poll{}, apperrors.New(apperrors.CodePollInvalidConfiguration, "poll end time must be after start time")
		}
		input.EndAt = &endAt
	}

	pollID, err := idGenerator()
	if err != nil {
		return Poll{}, err
	}

	options := make([]Option, 0, len(input.OptionLabels))
	for position, label := range input.OptionLabels {
		label = strings.TrimSpace(label)
		if label == "" {
			return Poll{}, apperrors.New(apperrors.CodePollInvalidConfiguration, "option labels must not be blank")
		}
		optionID, err := idGenerator()
		if err != nil {
			return Poll{}, err
		}
		options = append(options, Option{ID: optionID, Label: label, Position: position})
	}

	status := StatusActive
	if startAt.After(current) {
		status = StatusScheduled
	}

	return Poll{
		ID:          pollID,
		OwnerID:     ownerID,
		Name:        name,
		MultiSelect: input.MultiSelect,
		Status:      status,
		StartAt:     startAt,
		EndAt:       input.EndAt,
		CreatedAt:   current,
		UpdatedAt:   current,
		Options:     options,
	}, nil
}

// EffectiveStatus resolves the lifecycle state at a point in time, promoting
// a Scheduled poll whose start has passed to Active.
func (p Poll) EffectiveStatus(now time.Time) Status {
	if p.Status == StatusScheduled && !p.StartAt.After(now) {
		return StatusActive
	}
	return p.Status
}

// Ended reports whether the poll's voting window has passed.
func (p Poll) Ended(now time.Time) bool {
	return p.EndAt != nil && !now.Before(*p.EndAt)
}

// HasOption reports whether an option id belongs to the poll.
func (p Poll) HasOption(optionID string) bool {
	for _, option := range p.Options {
		if option.ID == optionID {
			return true
		}
	}
	return false
}

// TotalVotes sums the recorded votes across all options.
func (p Poll) TotalVotes() int64 {
	var total int64
	for _, option := range p.Options {
		total += option.Votes
	}
	return total
}
