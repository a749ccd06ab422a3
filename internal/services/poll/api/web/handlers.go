// Package web exposes poll management, voting, and live results over HTTP.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	apperrors "github.com/Lordhacker756/vortex-api/internal/platform/errors"
	"github.com/Lordhacker756/vortex-api/internal/services/poll"
	"github.com/Lordhacker756/vortex-api/internal/services/poll/stream"
	"github.com/Lordhacker756/vortex-api/internal/web"
)

// BallotService drives poll creation, voting, and lifecycle transitions.
// *ballot.Engine satisfies it.
type BallotService interface {
	CreatePoll(ctx context.Context, ownerID string, input poll.CreatePollInput) (poll.Poll, error)
	CastVote(ctx context.Context, pollID string, optionIDs []string, voterID string) (poll.Poll, error)
	CanVote(ctx context.Context, pollID string, voterID string) (bool, error)
	Pause(ctx context.Context, pollID string, ownerID string) (poll.Poll, error)
	Resume(ctx context.Context, pollID string, ownerID string) (poll.Poll, error)
	Close(ctx context.Context, pollID string, ownerID string) (poll.Poll, error)
	Reset(ctx context.Context, pollID string, ownerID string) (poll.Poll, error)
	UpdatePoll(ctx context.Context, pollID string, ownerID string, name *string, multiSelect *bool) (poll.Poll, error)
	GetPoll(ctx context.Context, pollID string) (poll.Poll, error)
	ListPolls(ctx context.Context) ([]poll.Poll, error)
	ListPollsByOwner(ctx context.Context, ownerID string) ([]poll.Poll, error)
}

// Handler serves the poll HTTP surface.
type Handler struct {
	engine   BallotService
	streamer *stream.Streamer

	keepAliveInterval time.Duration
}

// NewHandler builds the poll handler.
func NewHandler(engine BallotService, streamer *stream.Streamer) *Handler {
	return &Handler{
		engine:            engine,
		streamer:          streamer,
		keepAliveInterval: 15 * time.Second,
	}
}

// Register mounts the poll routes. Reads are public; writes and
// voter-specific reads require the caller's identity.
func (h *Handler) Register(mux *http.ServeMux, requireAuth web.Middleware) {
	mux.HandleFunc("GET /api/polls", h.list)
	mux.Handle("POST /api/polls", requireAuth(http.HandlerFunc(h.create)))
	mux.Handle("GET /api/polls/manage", requireAuth(http.HandlerFunc(h.manage)))
	mux.HandleFunc("GET /api/polls/{id}", h.get)
	mux.Handle("PATCH /api/polls/{id}", requireAuth(http.HandlerFunc(h.update)))
	mux.Handle("GET /api/polls/{id}/vote", requireAuth(http.HandlerFunc(h.vote)))
	mux.Handle("GET /api/polls/{id}/can-vote", requireAuth(http.HandlerFunc(h.canVote)))
	mux.Handle("GET /api/polls/{id}/pause", requireAuth(http.HandlerFunc(h.pause)))
	mux.Handle("GET /api/polls/{id}/resume", requireAuth(http.HandlerFunc(h.resume)))
	mux.Handle("GET /api/polls/{id}/close", requireAuth(http.HandlerFunc(h.close)))
	mux.Handle("GET /api/polls/{id}/reset", requireAuth(http.HandlerFunc(h.reset)))
	mux.HandleFunc("GET /api/polls/{id}/results", h.results)
	mux.HandleFunc("GET /api/polls/{id}/results/live", h.resultsLive)
}

type createPollRequest struct {
	Name        string     `json:"name"`
	Options     []string   `json:"options"`
	MultiSelect bool       `json:"multiSelect"`
	StartAt     *time.Time `json:"startAt,omitempty"`
	EndAt       *time.Time `json:"endAt,omitempty"`
}

type updatePollRequest struct {
	Name        *string `json:"name,omitempty"`
	MultiSelect *bool   `json:"multiSelect,omitempty"`
}

type optionPayload struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Votes int64  `json:"votes"`
}

type pollPayload struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"ownerId"`
	Name        string          `json:"name"`
	MultiSelect bool            `json:"multiSelect"`
	Status      string          `json:"status"`
	StartAt     time.Time       `json:"startAt"`
	EndAt       *time.Time      `json:"endAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	Options     []optionPayload `json:"options"`
	TotalVotes  int64           `json:"totalVotes"`
	VoterCount  int64           `json:"voterCount"`
}

func toPollPayload(p poll.Poll) pollPayload {
	options := make([]optionPayload, 0, len(p.Options))
	for _, option := range p.Options {
		options = append(options, optionPayload{ID: option.ID, Label: option.Label, Votes: option.Votes})
	}
	return pollPayload{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		Name:        p.Name,
		MultiSelect: p.MultiSelect,
		Status:      string(p.Status),
		StartAt:     p.StartAt,
		EndAt:       p.EndAt,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		Options:     options,
		TotalVotes:  p.TotalVotes(),
		VoterCount:  p.VoterCount,
	}
}

func toPollPayloads(polls []poll.Poll) []pollPayload {
	payloads := make([]pollPayload, 0, len(polls))
	for _, p := range polls {
		payloads = append(payloads, toPollPayload(p))
	}
	return payloads
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	polls, err := h.engine.ListPolls(r.Context())
	if err != nil {
		web.WriteError(w, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, "polls", toPollPayloads(polls))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := web.UserID(r.Context())
	if !ok {
		web.WriteError(w, apperrors.New(apperrors.CodeTokenInvalid, "authentication required"))
		return
	}

	var request createPollRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		web.WriteError(w, apperrors.New(apperrors.CodePollInvalidConfiguration, "invalid poll definition"))
		return
	}

	input := poll.CreatePollInput{
		Name:         request.Name,
		MultiSelect:  request.MultiSelect,
		OptionLabels: request.Options,
		EndAt:        request.EndAt,
	}
	if request.StartAt != nil {
		input.StartAt = *request.StartAt
	}

	created, err := h.engine.CreatePoll(r.Context(), ownerID, input)
	if err != nil {
		web.WriteError(w, err)
		return
	}
	web.WriteJSON(w, http.StatusCreated, "poll created", toPollPayload(created))
}

func (h *Handler) manage(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := web.UserID(r.Context())
	if !ok {
		web.WriteError(w, apperrors.New(apperrors.CodeTokenInvalid, "authentication required"))
		return
	}
	polls, err := h.engine.ListPollsByOwner(r.Context(), ownerID)
	if err != nil {
		web.WriteError(w, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, "polls", toPollPayloads(polls))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.engine.GetPoll(r.Context(), r.PathValue("id"))
	if err != nil {
		web.WriteError(w, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, "poll", toPollPayload(p))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := web.UserID(r.Context())
	if !ok {
		web.WriteError(w, apperrors.New(apperrors.CodeTokenInvalid, "authentication required"))
		return
	}

	var request updatePollRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		web.WriteError(w, apperrors.New(apperrors.CodePollInvalidConfiguration, "invalid poll update"))
		return
	}

	updated, err := h.engine.UpdatePoll(r.Context(), r.PathValue("id"), ownerID, request.Name, request.MultiSelect)
	if err != nil {
		web.WriteError(w, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, "poll updated", toPollPayload(updated))
}

func (h *Handler) vote(w http.ResponseWriter, r *http.Request) {
	voterID, ok := web.UserID(r.Context())
	if !ok {
		web.WriteError(w, apperrors.New(apperrors.CodeTokenInvalid, "authentication required"))
		return
	}

	optionIDs := r.URL.Query()["optionId"]
	voted, err := h.engine.CastVote(r.Context(), r.PathValue("id"), optionIDs, voterID)
	if err != nil {
		web.WriteError(w, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, "vote recorded", toPollPayload(voted))
}

func (h *Handler) canVote(w http.ResponseWriter, r *http.Request) {
	voterID, ok := web.UserID(r.Context())
	if !ok {
		web.WriteError(w, apperrors.New(apperrors.CodeTokenInvalid, "authentication required"))
		return
	}
	can, err := h.engine.CanVote(r.Context(), r.PathValue("id"), voterID)
	if err != nil {
		web.WriteError(w, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, "eligibility", map[string]bool{"canVote": can})
}

func (h *Handler) pause(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.engine.Pause, "poll paused")
}

func (h *Handler) resume(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.engine.Resume, "poll resumed")
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.engine.Close, "poll closed")
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.engine.Reset, "poll reset")
}

func (h *Handler) lifecycle(w http.ResponseWriter, r *http.Request, op func(context.Context, string, string) (poll.Poll, error), message string) {
	ownerID, ok := web.UserID(r.Context())
	if !ok {
		web.WriteError(w, apperrors.New(apperrors.CodeTokenInvalid, "authentication required"))
		return
	}
	p, err := op(r.Context(), r.PathValue("id"), ownerID)
	if err != nil {
		web.WriteError(w, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, message, toPollPayload(p))
}

func (h *Handler) results(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("live") == "true" {
		h.streamResults(w, r)
		return
	}
	p, err := h.engine.GetPoll(r.Context(), r.PathValue("id"))
	if err != nil {
		web.WriteError(w, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, "results", toPollPayload(p))
}

func (h *Handler) resultsLive(w http.ResponseWriter, r *http.Request) {
	h.streamResults(w, r)
}
