package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/matchday/internal/domain/merkle"
	"github.com/okian/matchday/internal/domain/model"
)

// ErrUnexpectedStatus is wrapped by every non-2xx API response.
var ErrUnexpectedStatus = errors.New("unexpected status")

// APIError is a decoded error response.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %d %s: %s", ErrUnexpectedStatus, e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return ErrUnexpectedStatus }

// Client calls the matchday HTTP API.
type Client struct {
	base   string
	client *http.Client
}

// NewClient creates a client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{base: baseURL, client: &http.Client{Timeout: timeout}}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s %s: decode: %w", method, path, err)
		}
	}
	return nil
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *Client) Players(ctx context.Context) ([]Player, error) {
	var out []Player
	err := c.do(ctx, http.MethodGet, "/players", nil, &out)
	return out, err
}

func (c *Client) CreateSquad(ctx context.Context, owner model.Owner) error {
	return c.do(ctx, http.MethodPost, "/squads", map[string]model.Owner{"owner": owner}, nil)
}

func (c *Client) AddPlayer(ctx context.Context, owner model.Owner, id model.PlayerID) error {
	return c.do(ctx, http.MethodPost, "/squads/"+owner.String()+"/players", map[string]model.PlayerID{"player_id": id}, nil)
}

func (c *Client) SetLineup(ctx context.Context, owner model.Owner, starters []model.PlayerID) error {
	return c.do(ctx, http.MethodPut, "/squads/"+owner.String()+"/lineup", map[string][]model.PlayerID{"starters": starters}, nil)
}

func (c *Client) SetCaptain(ctx context.Context, owner model.Owner, captain, vice model.PlayerID) error {
	body := map[string]model.PlayerID{"captain": captain, "vice_captain": vice}
	return c.do(ctx, http.MethodPut, "/squads/"+owner.String()+"/captain", body, nil)
}

func (c *Client) StartPeriod(ctx context.Context, p uint64) error {
	return c.do(ctx, http.MethodPost, "/periods/"+strconv.FormatUint(p, 10)+"/start", nil, nil)
}

func (c *Client) EndPeriod(ctx context.Context, p uint64) error {
	return c.do(ctx, http.MethodPost, "/periods/"+strconv.FormatUint(p, 10)+"/end", nil, nil)
}

// BuildCommitment scores period p on the server and returns the commitment.
func (c *Client) BuildCommitment(ctx context.Context, p uint64) (Commitment, error) {
	var out Commitment
	err := c.do(ctx, http.MethodPost, "/periods/"+strconv.FormatUint(p, 10)+"/commitment", nil, &out)
	return out, err
}

func (c *Client) Proof(ctx context.Context, p uint64, owner model.Owner) (ProofResponse, error) {
	var out ProofResponse
	err := c.do(ctx, http.MethodGet, "/periods/"+strconv.FormatUint(p, 10)+"/proofs/"+owner.String(), nil, &out)
	return out, err
}

func (c *Client) Questions(ctx context.Context) ([]Question, error) {
	var out []Question
	err := c.do(ctx, http.MethodGet, "/oracle/questions", nil, &out)
	return out, err
}

func (c *Client) Answer(ctx context.Context, id string, root merkle.Hash, bond uint64, answerer string) error {
	body := map[string]any{"root": root, "bond": bond, "answerer": answerer}
	return c.do(ctx, http.MethodPost, "/oracle/questions/"+id+"/answers", body, nil)
}

// Settle posts a proven batch for period p.
func (c *Client) Settle(ctx context.Context, p uint64, leaves []model.ScoreLeaf, proofs []merkle.Proof) (Outcome, error) {
	var out Outcome
	body := map[string]any{"leaves": leaves, "proofs": proofs}
	err := c.do(ctx, http.MethodPost, "/periods/"+strconv.FormatUint(p, 10)+"/settlements", body, &out)
	return out, err
}

func (c *Client) Rank(ctx context.Context, owner model.Owner) (Entry, error) {
	var out Entry
	err := c.do(ctx, http.MethodGet, "/standings/"+owner.String(), nil, &out)
	return out, err
}

func (c *Client) Standings(ctx context.Context, limit int) ([]Entry, error) {
	var out []Entry
	err := c.do(ctx, http.MethodGet, "/standings?limit="+strconv.Itoa(limit), nil, &out)
	return out, err
}
