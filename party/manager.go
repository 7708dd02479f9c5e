/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package party

import (
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// CodeLetters avoids characters that are easy to misread (0/O, 1/I).
	CodeLetters = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	defaultCodeLength = 4
)

// Manager holds every room keyed by code, so each code is its own isolated
// session regardless of which game it plays.
type Manager struct {
	mu    sync.Mutex
	games map[string]Game
	rooms map[string]*Room

	idleTimeout time.Duration
	codeLength  int
	now         func() time.Time
	newID       func() string
	logger      *zap.SugaredLogger
}

type Option func(*Manager)

// WithIdleTimeout sets how long a room may go untouched before Run reaps it.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) { m.idleTimeout = d }
}

func WithCodeLength(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.codeLength = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(m *Manager) { m.newID = newID }
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		games:      make(map[string]Game),
		rooms:      make(map[string]*Room),
		codeLength: defaultCodeLength,
		now:        time.Now,
		newID:      uuid.NewString,
		logger:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a game. Registering the same name twice panics.
func (m *Manager) Register(g Game) {
	name := g.Rules().Name

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.games[name]; exists {
		panic("party: game registered twice: " + name)
	}
	m.games[name] = g
}

// Games lists the registered games' rules, sorted by name.
func (m *Manager) Games() []Rules {
	m.mu.Lock()
	defer m.mu.Unlock()

	rules := make([]Rules, 0, len(m.games))
	for _, g := range m.games {
		rules = append(rules, g.Rules())
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Name < rules[j].Name })
	return rules
}

// Len reports the number of live rooms.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

func (m *Manager) game(name string) (Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.games[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGame, name)
	}
	return g, nil
}

func (m *Manager) room(game, code string) (Game, *Room, error) {
	g, err := m.game(game)
	if err != nil {
		return nil, nil, err
	}

	code = NormalizeCode(code)

	m.mu.Lock()
	r, ok := m.rooms[code]
	m.mu.Unlock()

	if !ok || r.rules.Name != game {
		return nil, nil, ErrRoomNotFound
	}
	return g, r, nil
}

// NormalizeCode upper-cases and trims a typed room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// newCodeLocked generates a crypto-random room code and ensures it doesn't
// collide with existing rooms. m.mu must be held.
func (m *Manager) newCodeLocked() string {
	for {
		buf := make([]byte, m.codeLength)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, m.codeLength)
		for i := range out {
			out[i] = CodeLetters[int(buf[i])%len(CodeLetters)]
		}
		code := string(out)

		if _, exists := m.rooms[code]; !exists {
			return code
		}
	}
}

// update runs fn against a locked room after applying lazy deadlines, and
// returns the snapshot for the player fn resolved.
func (m *Manager) update(game, code string, fn func(g Game, r *Room, now time.Time) (*Player, error)) (Snapshot, error) {
	g, r, err := m.room(game, code)
	if err != nil {
		return Snapshot{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Snapshot{}, ErrRoomNotFound
	}

	now := m.now()
	if g.Expire(r, now) {
		r.touch(now, true)
	}

	p, err := fn(g, r, now)
	if err != nil {
		return Snapshot{}, err
	}

	r.touch(now, true)

	return r.snapshot(g, p, now), nil
}

// Create opens a new room for game with hostName as its host.
func (m *Manager) Create(game, hostName, deviceID string) (Snapshot, error) {
	g, err := m.game(game)
	if err != nil {
		return Snapshot{}, err
	}

	name, err := CleanName(hostName)
	if err != nil {
		return Snapshot{}, err
	}

	now := m.now()
	host := &Player{
		ID:       m.newID(),
		Name:     name,
		DeviceID: deviceID,
		Host:     true,
		JoinedAt: now,
	}

	m.mu.Lock()
	r := newRoom(m.newCodeLocked(), g.Rules(), host, now)
	r.mu.Lock()
	defer r.mu.Unlock()
	m.rooms[r.Code] = r
	m.mu.Unlock()

	g.Setup(r)

	m.logger.Infof("GAMES: Created %s room %s for %q", game, r.Code, name)

	return r.snapshot(g, host, now), nil
}

// Join adds a player to a room, or hands back an existing player when the
// device id is already known and the game's late-join policy allows it.
func (m *Manager) Join(game, code, name, deviceID string) (Snapshot, error) {
	return m.update(game, code, func(g Game, r *Room, now time.Time) (*Player, error) {
		started := r.phase != PhaseLobby
		policy := r.rules.LateJoin

		if p := r.byDevice(deviceID); p != nil {
			if started && policy == LateJoinReject {
				return nil, ErrGameAlreadyStarted
			}
			m.logger.Infof("GAMES: Player %q rejoined %s", p.Name, r.Code)
			return p, nil
		}

		if started && policy != LateJoinAllow {
			return nil, ErrGameAlreadyStarted
		}
		if r.locked {
			return nil, ErrLobbyLocked
		}

		name, err := CleanName(name)
		if err != nil {
			return nil, err
		}
		if r.nameTaken(name) {
			return nil, ErrNameTaken
		}
		if r.rules.MaxPlayers > 0 && len(r.Players) >= r.rules.MaxPlayers {
			return nil, ErrRoomFull
		}

		p := &Player{
			ID:       m.newID(),
			Name:     name,
			DeviceID: deviceID,
			JoinedAt: now,
		}
		r.Players = append(r.Players, p)

		m.logger.Infof("GAMES: Player %q joined %s", name, r.Code)

		return p, nil
	})
}

// Start leaves the lobby. Only the host may start, and only with enough
// players; on failure the phase is unchanged.
func (m *Manager) Start(game, code, playerID, deviceID string) (Snapshot, error) {
	return m.update(game, code, func(g Game, r *Room, now time.Time) (*Player, error) {
		p, err := r.requireHost(playerID, deviceID)
		if err != nil {
			return nil, err
		}
		if r.phase != PhaseLobby {
			return nil, ErrGameAlreadyStarted
		}
		if len(r.Players) < r.rules.MinPlayers {
			return nil, fmt.Errorf("%w: need at least %d", ErrNotEnoughPlayers, r.rules.MinPlayers)
		}

		r.round = 1
		if err := g.Start(r, now); err != nil {
			r.round = 0
			r.phase = PhaseLobby
			return nil, err
		}

		m.logger.Infof("GAMES: Started %s in %s with %d players", r.rules.Name, r.Code, len(r.Players))

		return p, nil
	})
}

// Act applies a game-specific action on behalf of playerID. Every
// player-scoped call must come from the device that joined as that player.
func (m *Manager) Act(game, code, playerID, deviceID, action string, payload []byte) (Snapshot, error) {
	return m.update(game, code, func(g Game, r *Room, now time.Time) (*Player, error) {
		p, err := r.seat(playerID, deviceID)
		if err != nil {
			return nil, err
		}

		before := r.phase
		if err := g.Act(r, p, action, payload, now); err != nil {
			return nil, err
		}

		if r.phase != before {
			m.logger.Infof("GAMES: %s moved from %s to %s after %q", r.Code, before, r.phase, action)
		}

		return p, nil
	})
}

// NextRound asks the game for the following round. When the game returns a
// phase at or behind the current one, a new round begins and per-round
// player flags are cleared.
func (m *Manager) NextRound(game, code, playerID, deviceID string) (Snapshot, error) {
	return m.update(game, code, func(g Game, r *Room, now time.Time) (*Player, error) {
		p, err := r.requireHost(playerID, deviceID)
		if err != nil {
			return nil, err
		}
		if r.phase == PhaseLobby || r.phase == PhaseFinished {
			return nil, ErrWrongPhase
		}

		to, err := g.NextRound(r, now)
		if err != nil {
			return nil, err
		}

		if r.rules.Order(to) <= r.rules.Order(r.phase) {
			r.rewind(to)
		} else if err := r.Advance(to); err != nil {
			return nil, err
		}

		m.logger.Infof("GAMES: %s entered round %d (%s)", r.Code, r.round, r.phase)

		return p, nil
	})
}

// Reset returns the room to the lobby with a fresh game state. The roster
// and accumulated points are kept.
func (m *Manager) Reset(game, code, playerID, deviceID string) (Snapshot, error) {
	return m.update(game, code, func(g Game, r *Room, now time.Time) (*Player, error) {
		p, err := r.requireHost(playerID, deviceID)
		if err != nil {
			return nil, err
		}

		r.reset()
		g.Setup(r)

		m.logger.Infof("GAMES: Reset %s", r.Code)

		return p, nil
	})
}

// Lock closes or reopens the lobby to new players.
func (m *Manager) Lock(game, code, playerID, deviceID string, locked bool) (Snapshot, error) {
	return m.update(game, code, func(g Game, r *Room, now time.Time) (*Player, error) {
		p, err := r.requireHost(playerID, deviceID)
		if err != nil {
			return nil, err
		}
		r.locked = locked
		return p, nil
	})
}

// Close destroys the room.
func (m *Manager) Close(game, code, playerID, deviceID string) error {
	_, r, err := m.room(game, code)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRoomNotFound
	}
	if _, err := r.requireHost(playerID, deviceID); err != nil {
		r.mu.Unlock()
		return err
	}
	r.closed = true
	r.mu.Unlock()

	m.mu.Lock()
	delete(m.rooms, r.Code)
	m.mu.Unlock()

	m.logger.Infof("GAMES: Closed %s", r.Code)

	return nil
}

// State returns the snapshot for playerID, or a spectator view when
// playerID is empty. A player's view is only handed to that player's device.
func (m *Manager) State(game, code, playerID, deviceID string) (Snapshot, error) {
	g, r, err := m.room(game, code)
	if err != nil {
		return Snapshot{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Snapshot{}, ErrRoomNotFound
	}

	now := m.now()
	r.touch(now, g.Expire(r, now))

	var viewer *Player
	if playerID != "" {
		if viewer, err = r.seat(playerID, deviceID); err != nil {
			return Snapshot{}, err
		}
	}

	return r.snapshot(g, viewer, now), nil
}

// Reap removes rooms idle since before now minus the idle timeout, and
// returns how many were removed.
func (m *Manager) Reap(now time.Time) int {
	if m.idleTimeout <= 0 {
		return 0
	}
	cutoff := now.Add(-m.idleTimeout)

	m.mu.Lock()
	defer m.mu.Unlock()

	reaped := 0
	for code, r := range m.rooms {
		r.mu.Lock()
		idle := r.lastActive.Before(cutoff)
		if idle {
			r.closed = true
		}
		r.mu.Unlock()

		if idle {
			delete(m.rooms, code)
			reaped++
			m.logger.Infof("GAMES: Reaped idle room %s", code)
		}
	}
	return reaped
}

// Run periodically reaps idle rooms until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	if m.idleTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(m.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Reap(m.now())
		}
	}
}
