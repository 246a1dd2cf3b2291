// Package oracle is an in-process bonded answer oracle. Reporters post
// answers with escalating bonds; the latest answer becomes final once the
// question's timeout passes without a new answer.
package oracle

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/okian/matchday/internal/domain/merkle"
	domain "github.com/okian/matchday/internal/domain/oracle"
	"github.com/okian/matchday/pkg/logger"
)

// Answer is one bonded answer posted to a question.
type Answer struct {
	Root     merkle.Hash `json:"root"`
	Bond     uint64      `json:"bond"`
	Answerer string      `json:"answerer"`
	At       time.Time   `json:"at"`
}

// QuestionInfo is a snapshot of a question and its answers.
type QuestionInfo struct {
	ID         domain.QuestionID `json:"id"`
	Period     uint64            `json:"period"`
	Prompt     string            `json:"prompt"`
	Arbitrator string            `json:"arbitrator"`
	Timeout    time.Duration     `json:"timeout"`
	MinBond    uint64            `json:"min_bond"`
	OpenedAt   time.Time         `json:"opened_at"`
	Answers    []Answer          `json:"answers"`
	State      domain.State      `json:"state"`
}

type question struct {
	id       domain.QuestionID
	q        domain.Question
	openedAt time.Time
	answers  []Answer
}

func (q *question) last() (Answer, bool) {
	if len(q.answers) == 0 {
		return Answer{}, false
	}
	return q.answers[len(q.answers)-1], true
}

func (q *question) finalized(now time.Time) bool {
	a, ok := q.last()
	return ok && !now.Before(a.At.Add(q.q.Timeout))
}

// Option configures a Memory oracle.
type Option func(*Memory)

// WithClock sets the clock used for answer deadlines.
func WithClock(c clockwork.Clock) Option {
	return func(m *Memory) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithLogger sets the oracle logger.
func WithLogger(lg logger.Logger) Option {
	return func(m *Memory) {
		if lg != nil {
			m.logger = lg
		}
	}
}

// Memory implements domain.Oracle in memory.
type Memory struct {
	mu        sync.RWMutex
	clock     clockwork.Clock
	questions map[domain.QuestionID]*question
	logger    logger.Logger
}

var _ domain.Oracle = (*Memory)(nil)

// NewMemory creates a new in-memory oracle.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		clock:     clockwork.NewRealClock(),
		questions: make(map[domain.QuestionID]*question),
		logger:    logger.OrNop().Named("oracle.memory"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Ask registers a question and returns its id.
func (m *Memory) Ask(ctx context.Context, q domain.Question) (domain.QuestionID, error) {
	if q.Timeout <= 0 {
		return "", ErrInvalidTimeout
	}
	if q.MinBond == 0 {
		return "", ErrInvalidMinBond
	}
	id := domain.QuestionID(uuid.NewString())

	m.mu.Lock()
	m.questions[id] = &question{id: id, q: q, openedAt: m.clock.Now()}
	m.mu.Unlock()

	m.logger.Debug(ctx, "question asked",
		logger.String("question", string(id)),
		logger.Uint64("period", q.Period),
		logger.String("arbitrator", q.Arbitrator),
	)
	return id, nil
}

// SubmitAnswer posts root with bond. The bond must meet the question's
// minimum and at least double the previous bond. Each new answer restarts
// the timeout.
func (m *Memory) SubmitAnswer(ctx context.Context, id domain.QuestionID, root merkle.Hash, bond uint64, answerer string) error {
	if root.IsZero() {
		return ErrEmptyAnswer
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, id)
	}
	now := m.clock.Now()
	if q.finalized(now) {
		return fmt.Errorf("%w: %s", ErrFinalized, id)
	}
	if bond < q.q.MinBond {
		return fmt.Errorf("%w: %d below minimum %d", ErrBondTooLow, bond, q.q.MinBond)
	}
	if prev, ok := q.last(); ok && (prev.Bond > math.MaxUint64/2 || bond < 2*prev.Bond) {
		return fmt.Errorf("%w: %d must be at least double %d", ErrBondTooLow, bond, prev.Bond)
	}
	q.answers = append(q.answers, Answer{Root: root, Bond: bond, Answerer: answerer, At: now})

	m.logger.Info(ctx, "answer submitted",
		logger.String("question", string(id)),
		logger.String("root", root.String()),
		logger.Uint64("bond", bond),
		logger.String("answerer", answerer),
	)
	return nil
}

// Result reports Finalized with the last answer once its timeout elapsed.
func (m *Memory) Result(_ context.Context, id domain.QuestionID) (domain.Resolution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.questions[id]
	if !ok {
		return domain.Resolution{}, fmt.Errorf("%w: %s", ErrUnknownQuestion, id)
	}
	if !q.finalized(m.clock.Now()) {
		return domain.Resolution{State: domain.Pending}, nil
	}
	a, _ := q.last()
	return domain.Resolution{State: domain.Finalized, Root: a.Root}, nil
}

// Question returns a snapshot of one question.
func (m *Memory) Question(id domain.QuestionID) (QuestionInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.questions[id]
	if !ok {
		return QuestionInfo{}, fmt.Errorf("%w: %s", ErrUnknownQuestion, id)
	}
	return m.info(q), nil
}

// Questions returns every question ordered by period.
func (m *Memory) Questions() []QuestionInfo {
	m.mu.RLock()
	out := make([]QuestionInfo, 0, len(m.questions))
	for _, q := range m.questions {
		out = append(out, m.info(q))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}

func (m *Memory) info(q *question) QuestionInfo {
	state := domain.Pending
	if q.finalized(m.clock.Now()) {
		state = domain.Finalized
	}
	return QuestionInfo{
		ID:         q.id,
		Period:     q.q.Period,
		Prompt:     q.q.Prompt,
		Arbitrator: q.q.Arbitrator,
		Timeout:    q.q.Timeout,
		MinBond:    q.q.MinBond,
		OpenedAt:   q.openedAt,
		Answers:    append([]Answer(nil), q.answers...),
		State:      state,
	}
}
