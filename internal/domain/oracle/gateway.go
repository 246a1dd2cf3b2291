// Package oracle publishes period commitment roots to an external
// arbitration oracle and reads back the finalized answer.
//
// The oracle is opaque: a question is either Pending or Finalized with a
// root. Dispute handling lives entirely behind the Oracle interface.
package oracle

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/okian/matchday/internal/domain/merkle"
	"github.com/okian/matchday/pkg/logger"
	"github.com/okian/matchday/pkg/metrics"
)

// QuestionID identifies a question at the oracle.
type QuestionID string

// State is a question's resolution state.
type State uint8

const (
	Pending State = iota
	Finalized
)

func (s State) String() string {
	if s == Finalized {
		return "finalized"
	}
	return "pending"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Resolution is the oracle's view of a question. Root is set only when
// State is Finalized.
type Resolution struct {
	State State       `json:"state"`
	Root  merkle.Hash `json:"root"`
}

// Question is what gets asked of the oracle.
type Question struct {
	Period     uint64
	Prompt     string
	Arbitrator string
	Timeout    time.Duration
	MinBond    uint64
}

// Oracle is the external arbitration service.
type Oracle interface {
	Ask(ctx context.Context, q Question) (QuestionID, error)
	Result(ctx context.Context, id QuestionID) (Resolution, error)
}

// DefaultTemplate is the prompt used when none is configured. {period} is
// replaced with the period number.
const DefaultTemplate = "What is the matchday score commitment root for period {period}?"

// Params are passed to the oracle unchanged.
type Params struct {
	Arbitrator string        `koanf:"arbitrator"`
	Timeout    time.Duration `koanf:"timeout"`
	MinBond    uint64        `koanf:"min_bond"`
	Template   string        `koanf:"template"`
}

// Option applies a configuration option to the Gateway.
type Option func(*Gateway)

// WithParams sets the timeout and minimum bond used when opening questions.
func WithParams(p Params) Option {
	return func(g *Gateway) {
		if p.Template == "" {
			p.Template = DefaultTemplate
		}
		g.params = p
	}
}

// WithLogger sets the gateway logger.
func WithLogger(lg logger.Logger) Option {
	return func(g *Gateway) {
		if lg != nil {
			g.logger = lg
		}
	}
}

// Gateway tracks one question per period.
type Gateway struct {
	mu       sync.Mutex
	oracle   Oracle
	params   Params
	byPeriod map[uint64]QuestionID
	logger   logger.Logger
}

// NewGateway creates a new Gateway over o.
func NewGateway(o Oracle, opts ...Option) *Gateway {
	g := &Gateway{
		oracle:   o,
		params:   Params{Template: DefaultTemplate},
		byPeriod: make(map[uint64]QuestionID),
		logger:   logger.OrNop().Named("oracle"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Prompt renders the question text for period.
func (g *Gateway) Prompt(period uint64) string {
	return strings.ReplaceAll(g.params.Template, "{period}", fmt.Sprint(period))
}

// OpenQuestion asks the oracle for period's root. An empty prompt uses the
// configured template.
func (g *Gateway) OpenQuestion(ctx context.Context, period uint64, prompt string) (QuestionID, error) {
	if period == 0 {
		return "", ErrInvalidPeriod
	}
	if prompt == "" {
		prompt = g.Prompt(period)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := g.byPeriod[period]; ok {
		return "", fmt.Errorf("%w: period %d has %s", ErrOneQuestionPerPeriod, period, id)
	}
	id, err := g.oracle.Ask(ctx, Question{
		Period:     period,
		Prompt:     prompt,
		Arbitrator: g.params.Arbitrator,
		Timeout:    g.params.Timeout,
		MinBond:    g.params.MinBond,
	})
	if err != nil {
		return "", fmt.Errorf("ask oracle for period %d: %w", period, err)
	}
	g.byPeriod[period] = id

	g.logger.Info(ctx, "oracle question opened",
		logger.Uint64("period", period),
		logger.String("question", string(id)),
	)
	return id, nil
}

// ResolvedRoot polls the oracle. Pending is a normal answer, not an error.
func (g *Gateway) ResolvedRoot(ctx context.Context, id QuestionID) (Resolution, error) {
	res, err := g.oracle.Result(ctx, id)
	if err != nil {
		return Resolution{}, fmt.Errorf("oracle result %s: %w", id, err)
	}
	if res.State != Finalized {
		metrics.RecordOraclePending()
		return Resolution{State: Pending}, nil
	}
	return res, nil
}

// QuestionFor returns the question opened for period.
func (g *Gateway) QuestionFor(period uint64) (QuestionID, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.byPeriod[period]
	return id, ok
}
