/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package client polls a partyhub room and dispatches player actions.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/partyhub/party"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultInterval = 2 * time.Second
	maxBody         = 1 << 20
)

// APIError is a failure reported by the server in the response envelope.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Poller keeps the latest snapshot of one room as seen by one player.
type Poller struct {
	baseURL  string
	game     string
	interval time.Duration
	http     *http.Client
	logger   *zap.SugaredLogger
	onUpdate func(party.Snapshot)

	mu       sync.RWMutex
	code     string
	playerID string
	deviceID string
	snap     *party.Snapshot
	lastErr  string
}

type Option func(*Poller)

func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(p *Poller) { p.http = c }
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithDeviceID sets the device id sent with every action and player poll.
// The server hands back the same player on reconnect, and only accepts
// calls for a player from the device that joined as them. Without it each
// poller makes up its own.
func WithDeviceID(id string) Option {
	return func(p *Poller) {
		if id != "" {
			p.deviceID = id
		}
	}
}

// WithPlayer sets the room and player to follow. Both are also learned from
// the first successful create or join.
func WithPlayer(code, playerID string) Option {
	return func(p *Poller) {
		p.code = party.NormalizeCode(code)
		p.playerID = playerID
	}
}

// OnUpdate registers fn to be called after every accepted snapshot.
func OnUpdate(fn func(party.Snapshot)) Option {
	return func(p *Poller) { p.onUpdate = fn }
}

// New returns a poller for game on the server at baseURL, including any
// path prefix.
func New(baseURL, game string, opts ...Option) *Poller {
	p := &Poller{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		game:     game,
		interval: defaultInterval,
		http:     &http.Client{Timeout: 10 * time.Second},
		logger:   zap.NewNop().Sugar(),
		deviceID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls until ctx is cancelled. Failed polls are recorded and otherwise
// ignored; the next tick tries again.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			p.logger.Debugf("POLL: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Poll fetches the current state once.
func (p *Poller) Poll(ctx context.Context) error {
	p.mu.RLock()
	code, playerID, deviceID := p.code, p.playerID, p.deviceID
	p.mu.RUnlock()

	if code == "" {
		return p.fail(errors.New("no room to poll"))
	}

	u := fmt.Sprintf("%s/api/%s/%s", p.baseURL, url.PathEscape(p.game), url.PathEscape(code))
	if playerID != "" {
		u += "?" + url.Values{"playerId": {playerID}, "deviceId": {deviceID}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return p.fail(err)
	}

	snap, err := p.do(req)
	if err != nil {
		return p.fail(err)
	}

	p.accept(snap)
	return nil
}

// Do sends action with payload merged into the envelope. On success the
// returned snapshot replaces the local one; on failure the local state is
// kept and the error is recorded.
func (p *Poller) Do(ctx context.Context, action string, payload map[string]any) (party.Snapshot, error) {
	p.mu.RLock()
	body := map[string]any{
		"roomCode": p.code,
		"playerId": p.playerID,
	}
	body["deviceId"] = p.deviceID
	p.mu.RUnlock()

	// The payload may name a room to join before one is known.
	maps.Copy(body, payload)
	body["action"] = action

	buf, err := json.Marshal(body)
	if err != nil {
		return party.Snapshot{}, p.fail(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/api/%s", p.baseURL, url.PathEscape(p.game)), bytes.NewReader(buf))
	if err != nil {
		return party.Snapshot{}, p.fail(err)
	}
	req.Header.Set("Content-Type", "application/json")

	snap, err := p.do(req)
	if err != nil {
		return party.Snapshot{}, p.fail(err)
	}

	p.accept(snap)
	return *snap, nil
}

func (p *Poller) do(req *http.Request) (*party.Snapshot, error) {
	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", resp.Status, err)
	}

	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}

	var snap party.Snapshot
	if len(env.Data) == 0 {
		return &snap, nil
	}
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &snap, nil
}

func (p *Poller) fail(err error) error {
	msg := err.Error()
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		msg = apiErr.Message
	}

	p.mu.Lock()
	p.lastErr = msg
	p.mu.Unlock()

	return err
}

// accept stores snap unless a newer version of the same room is already
// held, which happens when a slow poll returns after an action.
func (p *Poller) accept(snap *party.Snapshot) {
	p.mu.Lock()
	if p.snap != nil && p.snap.RoomCode == snap.RoomCode && p.snap.Version > snap.Version {
		p.mu.Unlock()
		return
	}

	p.snap = snap
	p.lastErr = ""
	p.code = snap.RoomCode
	if snap.PlayerID != "" {
		p.playerID = snap.PlayerID
	}
	fn := p.onUpdate
	p.mu.Unlock()

	if fn != nil {
		fn(*snap)
	}
}

// Snapshot returns the last accepted snapshot.
func (p *Poller) Snapshot() (party.Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.snap == nil {
		return party.Snapshot{}, false
	}
	return *p.snap, true
}

// Err returns the message of the last failure, cleared by the next success.
func (p *Poller) Err() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

func (p *Poller) RoomCode() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.code
}

func (p *Poller) PlayerID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.playerID
}

func (p *Poller) me() *party.PlayerView {
	if p.snap == nil {
		return nil
	}
	return p.snap.Find(p.playerID)
}

func (p *Poller) IsHost() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	me := p.me()
	return me != nil && me.IsHost
}

func (p *Poller) IsMyTurn() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.snap != nil && p.playerID != "" && p.snap.Turn == p.playerID
}

// CanVote reports whether a ballot is open and this player has yet to
// cast it.
func (p *Poller) CanVote() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	me := p.me()
	return me != nil && p.snap.VoteOpen && !me.IsEliminated && !me.HasVoted
}

// Remaining is the time left until the current deadline, or zero.
func (p *Poller) Remaining(now time.Time) time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.snap == nil || p.snap.Deadline == nil {
		return 0
	}
	return max(p.snap.Deadline.Sub(now), 0)
}
