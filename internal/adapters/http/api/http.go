// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/matchday/internal/adapters/mq/worker"
	"github.com/okian/matchday/internal/adapters/repository"
	"github.com/okian/matchday/internal/domain/merkle"
	"github.com/okian/matchday/internal/domain/model"
	"github.com/okian/matchday/internal/domain/settlement"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	SquadService
	PeriodService
	CommitmentService
	SettlementService
	StandingsService
	StatsProvider
}

// SquadService covers roster ledger operations.
type SquadService interface {
	CreateSquad(ctx context.Context, owner model.Owner) (*model.Squad, error)
	Squad(ctx context.Context, owner model.Owner) (*model.Squad, error)
	AddPlayer(ctx context.Context, owner model.Owner, id model.PlayerID) (*model.Squad, error)
	RemovePlayer(ctx context.Context, owner model.Owner, id model.PlayerID) (*model.Squad, error)
	Transfer(ctx context.Context, owner model.Owner, out, in model.PlayerID) (*model.Squad, error)
	UseWildcard(ctx context.Context, owner model.Owner) (*model.Squad, error)
	SetLineup(ctx context.Context, owner model.Owner, starters []model.PlayerID) (*model.Squad, error)
	SetCaptain(ctx context.Context, owner model.Owner, captain, vice model.PlayerID) (*model.Squad, error)
}

// PeriodService drives the settlement lifecycle.
type PeriodService interface {
	State() (settlement.Phase, uint64)
	StartPeriod(ctx context.Context, p uint64) error
	EndPeriod(ctx context.Context, p uint64) error
}

// CommitmentService builds and serves per-period commitments.
type CommitmentService interface {
	BuildCommitment(ctx context.Context, period uint64) (*merkle.Commitment, error)
	Commitment(period uint64) (*merkle.Commitment, error)
	Proof(period uint64, owner model.Owner) (model.ScoreLeaf, merkle.Proof, error)
}

// SettlementService applies score batches, synchronously or through the queue.
type SettlementService interface {
	ApplyScores(ctx context.Context, period uint64, leaves []model.ScoreLeaf, proofs []merkle.Proof) (settlement.Outcome, error)
	SubmitScores(ctx context.Context, period uint64, leaves []model.ScoreLeaf, proofs []merkle.Proof) (string, error)
	Submission(id string) (worker.Result, bool)
}

// StandingsService exposes the standings.
type StandingsService interface {
	TopN(ctx context.Context, n int) ([]repository.Entry, error)
	Rank(ctx context.Context, owner model.Owner) (repository.Entry, error)
	Snapshot() *repository.Snapshot
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	squadHandler      *SquadHandler
	periodHandler     *PeriodHandler
	commitmentHandler *CommitmentHandler
	settlementHandler *SettlementHandler
	standingsHandler  *StandingsHandler
	playersHandler    *PlayersHandler
	oracleHandler     *OracleHandler
}

// Option configures optional server handlers.
type Option func(*serverOptions)

type serverOptions struct {
	players  PlayerSearch
	board    OracleBoard
	maxLimit int
}

// WithPlayers enables GET /players.
func WithPlayers(p PlayerSearch) Option {
	return func(o *serverOptions) { o.players = p }
}

// WithOracleBoard enables the oracle question routes.
func WithOracleBoard(b OracleBoard) Option {
	return func(o *serverOptions) { o.board = b }
}

// WithMaxLimit caps GET /standings?limit.
func WithMaxLimit(n int) Option {
	return func(o *serverOptions) {
		if n > 0 {
			o.maxLimit = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	o := serverOptions{maxLimit: 100}
	for _, opt := range opts {
		opt(&o)
	}
	s := &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(deps),
		squadHandler:      NewSquadHandler(deps),
		periodHandler:     NewPeriodHandler(deps),
		commitmentHandler: NewCommitmentHandler(deps),
		settlementHandler: NewSettlementHandler(deps),
		standingsHandler:  NewStandingsHandler(deps, o.maxLimit),
	}
	if o.players != nil {
		s.playersHandler = NewPlayersHandler(o.players)
	}
	if o.board != nil {
		s.oracleHandler = NewOracleHandler(o.board)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("GET /metrics", s.healthHandler.MetricsHandler())
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /squads", MetricsMiddleware(s.squadHandler.HandleCreate, "squads_create"))
	mux.HandleFunc("GET /squads/{owner}", MetricsMiddleware(s.squadHandler.HandleGet, "squads_get"))
	mux.HandleFunc("POST /squads/{owner}/players", MetricsMiddleware(s.squadHandler.HandleAddPlayer, "squads_add_player"))
	mux.HandleFunc("DELETE /squads/{owner}/players/{player}", MetricsMiddleware(s.squadHandler.HandleRemovePlayer, "squads_remove_player"))
	mux.HandleFunc("POST /squads/{owner}/transfers", MetricsMiddleware(s.squadHandler.HandleTransfer, "squads_transfer"))
	mux.HandleFunc("POST /squads/{owner}/wildcard", MetricsMiddleware(s.squadHandler.HandleWildcard, "squads_wildcard"))
	mux.HandleFunc("PUT /squads/{owner}/lineup", MetricsMiddleware(s.squadHandler.HandleLineup, "squads_lineup"))
	mux.HandleFunc("PUT /squads/{owner}/captain", MetricsMiddleware(s.squadHandler.HandleCaptain, "squads_captain"))

	mux.HandleFunc("GET /state", MetricsMiddleware(s.periodHandler.HandleState, "state"))
	mux.HandleFunc("POST /periods/{period}/start", MetricsMiddleware(s.periodHandler.HandleStart, "periods_start"))
	mux.HandleFunc("POST /periods/{period}/end", MetricsMiddleware(s.periodHandler.HandleEnd, "periods_end"))

	mux.HandleFunc("POST /periods/{period}/commitment", MetricsMiddleware(s.commitmentHandler.HandleBuild, "commitment_build"))
	mux.HandleFunc("GET /periods/{period}/commitment", MetricsMiddleware(s.commitmentHandler.HandleGet, "commitment_get"))
	mux.HandleFunc("GET /periods/{period}/proofs/{owner}", MetricsMiddleware(s.commitmentHandler.HandleProof, "proof_get"))

	mux.HandleFunc("POST /periods/{period}/settlements", MetricsMiddleware(s.settlementHandler.HandleApply, "settlements"))
	mux.HandleFunc("GET /submissions/{id}", MetricsMiddleware(s.settlementHandler.HandleSubmission, "submissions_get"))

	mux.HandleFunc("GET /standings", MetricsMiddleware(s.standingsHandler.HandleTop, "standings"))
	mux.HandleFunc("GET /standings/snapshot", MetricsMiddleware(s.standingsHandler.HandleSnapshot, "standings_snapshot"))
	mux.HandleFunc("GET /standings/{owner}", MetricsMiddleware(s.standingsHandler.HandleRank, "standings_rank"))

	if s.playersHandler != nil {
		mux.HandleFunc("GET /players", MetricsMiddleware(s.playersHandler.HandleSearch, "players_search"))
	}
	if s.oracleHandler != nil {
		mux.HandleFunc("GET /oracle/questions", MetricsMiddleware(s.oracleHandler.HandleList, "oracle_questions"))
		mux.HandleFunc("GET /oracle/questions/{id}", MetricsMiddleware(s.oracleHandler.HandleGet, "oracle_question"))
		mux.HandleFunc("POST /oracle/questions/{id}/answers", MetricsMiddleware(s.oracleHandler.HandleAnswer, "oracle_answer"))
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps a service error to its HTTP status and code.
func writeDomainError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %w", ErrBadRequest, err)
	}
	return nil
}

func pathOwner(r *http.Request) (model.Owner, error) {
	o, err := model.ParseOwner(r.PathValue("owner"))
	if err != nil {
		return model.Owner{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return o, nil
}

func pathPeriod(r *http.Request) (uint64, error) {
	p, err := strconv.ParseUint(r.PathValue("period"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid period %q", ErrBadRequest, r.PathValue("period"))
	}
	return p, nil
}

func pathPlayer(r *http.Request) (model.PlayerID, error) {
	id, err := strconv.ParseUint(r.PathValue("player"), 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid player id %q", ErrBadRequest, r.PathValue("player"))
	}
	return model.PlayerID(id), nil
}
