package poll

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sequentialIDs() func() (string, error) {
	counter := 0
	return func() (string, error) {
		counter++
		return fmt.Sprintf("id-%d", counter), nil
	}
}

func TestNewPollActiveWhenStartPassed(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	created, err := New("owner-1", CreatePollInput{
		Name:         "Lunch",
		OptionLabels: []string{"A", "B"},
		StartAt:      now.Add(-time.Hour),
	}, fixedClock(now), sequentialIDs())
	if err != nil {
		t.Fatalf("new poll: %v", err)
	}

	if created.Status != StatusActive {
		t.Fatalf("expected active, got %s", created.Status)
	}
	if len(created.Options) != 2 {
		t.Fatalf("expected 2 options, got %d", len(created.Options))
	}
	if created.Options[0].Position != 0 || created.Options[1].Position != 1 {
		t.Fatalf("expected ordered positions, got %+v", created.Options)
	}
	if created.Options[0].ID == created.Options[1].ID {
		t.Fatal("option ids must be distinct")
	}
}

func TestNewPollScheduledWhenStartFuture(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	created, err := New("owner-1", CreatePollInput{
		Name:         "Lunch",
		OptionLabels: []string{"A"},
		StartAt:      now.Add(time.Hour),
	}, fixedClock(now), sequentialIDs())
	if err != nil {
		t.Fatalf("new poll: %v", err)
	}
	if created.Status != StatusScheduled {
		t.Fatalf("expected scheduled, got %s", created.Status)
	}
	if created.EffectiveStatus(now) != StatusScheduled {
		t.Fatal("scheduled poll should stay scheduled before start")
	}
	if created.EffectiveStatus(now.Add(2*time.Hour)) != StatusActive {
		t.Fatal("scheduled poll should become active after start")
	}
}

func TestNewPollValidation(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	end := now.Add(-time.Minute)

	cases := []struct {
		name  string
		owner string
		input CreatePollInput
	}{
		{"empty name", "owner-1", CreatePollInput{Name: "  ", OptionLabels: []string{"A"}}},
		{"no options", "owner-1", CreatePollInput{Name: "Lunch"}},
		{"blank label", "owner-1", CreatePollInput{Name: "Lunch", OptionLabels: []string{"A", " "}}},
		{"end before start", "owner-1", CreatePollInput{Name: "Lunch", OptionLabels: []string{"A"}, StartAt: now, EndAt: &end}},
		{"no owner", "", CreatePollInput{Name: "Lunch", OptionLabels: []string{"A"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.owner, tc.input, fixedClock(now), sequentialIDs()); !errors.Is(err, ErrInvalidConfiguration) {
				t.Fatalf("expected invalid configuration, got %v", err)
			}
		})
	}
}

func TestPollEnded(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	end := now.Add(time.Hour)
	p := Poll{EndAt: &end}

	if p.Ended(now) {
		t.Fatal("poll should not be ended before its end time")
	}
	if !p.Ended(end) {
		t.Fatal("poll should be ended at its end time")
	}
	if (Poll{}).Ended(now) {
		t.Fatal("poll without an end time never ends")
	}
}

func TestHasOptionAndTotals(t *testing.T) {
	p := Poll{Options: []Option{
		{ID: "opt-1", Votes: 2},
		{ID: "opt-2", Votes: 3},
	}}

	if !p.HasOption("opt-1") || p.HasOption("opt-9") {
		t.Fatal("option membership is wrong")
	}
	if p.TotalVotes() != 5 {
		t.Fatalf("expected 5 total votes, got %d", p.TotalVotes())
	}
}
