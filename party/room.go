/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package party

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Room is one game session. Games mutate it only through the Game
// interface, while the Manager holds mu.
type Room struct {
	Code    string
	Players []*Player
	// State is the game-specific blob installed by Game.Setup.
	State any

	rules  Rules
	phase  Phase
	round  int
	locked bool
	closed bool

	version    uint64
	createdAt  time.Time
	updatedAt  time.Time
	lastActive time.Time

	mu sync.Mutex
}

func newRoom(code string, rules Rules, host *Player, now time.Time) *Room {
	return &Room{
		Code:       code,
		Players:    []*Player{host},
		rules:      rules,
		phase:      PhaseLobby,
		createdAt:  now,
		updatedAt:  now,
		lastActive: now,
	}
}

func (r *Room) Rules() Rules { return r.rules }

func (r *Room) Phase() Phase { return r.phase }

// Round is 0 in the lobby and counts up from 1 once the game started.
func (r *Room) Round() int { return r.round }

func (r *Room) Locked() bool { return r.locked }

// Advance moves the room forward to phase to. Moving backward is refused;
// only the Manager rewinds, through NextRound and Reset.
func (r *Room) Advance(to Phase) error {
	dst := r.rules.Order(to)
	if dst < 0 {
		return fmt.Errorf("%w: unknown phase %q", ErrInvalidTransition, to)
	}
	if dst < r.rules.Order(r.phase) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, r.phase, to)
	}
	r.phase = to
	return nil
}

func (r *Room) Player(id string) *Player {
	if id == "" {
		return nil
	}
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) Host() *Player {
	for _, p := range r.Players {
		if p.Host {
			return p
		}
	}
	return nil
}

// Alive returns the players not yet eliminated, in join order.
func (r *Room) Alive() []*Player {
	alive := make([]*Player, 0, len(r.Players))
	for _, p := range r.Players {
		if !p.IsEliminated {
			alive = append(alive, p)
		}
	}
	return alive
}

func (r *Room) byDevice(deviceID string) *Player {
	if deviceID == "" {
		return nil
	}
	for _, p := range r.Players {
		if p.DeviceID == deviceID {
			return p
		}
	}
	return nil
}

func (r *Room) nameTaken(name string) bool {
	for _, p := range r.Players {
		if strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

// seat resolves playerID and checks the request comes from the device that
// joined as that player.
func (r *Room) seat(playerID, deviceID string) (*Player, error) {
	p := r.Player(playerID)
	if p == nil {
		return nil, ErrPlayerNotFound
	}
	if p.DeviceID != deviceID {
		return nil, ErrNotAllowed
	}
	return p, nil
}

// requireHost seats playerID and checks it belongs to the host.
func (r *Room) requireHost(playerID, deviceID string) (*Player, error) {
	p, err := r.seat(playerID, deviceID)
	if err != nil {
		return nil, err
	}
	if !p.Host {
		return p, ErrNotHost
	}
	return p, nil
}

// rewind enters a new round at phase to, which may lie behind the current one.
func (r *Room) rewind(to Phase) {
	r.round++
	for _, p := range r.Players {
		p.clearRound()
	}
	r.phase = to
}

func (r *Room) reset() {
	r.phase = PhaseLobby
	r.round = 0
	r.State = nil
	for _, p := range r.Players {
		p.clearRound()
		p.IsEliminated = false
		p.Role = ""
	}
}

func (r *Room) touch(now time.Time, changed bool) {
	r.lastActive = now
	if changed {
		r.version++
		r.updatedAt = now
	}
}

func (r *Room) snapshot(g Game, viewer *Player, now time.Time) Snapshot {
	v := g.View(r, viewer, now)

	s := Snapshot{
		RoomCode:  r.Code,
		Game:      r.rules.Name,
		Phase:     r.phase,
		Round:     r.round,
		Locked:    r.locked,
		Players:   make([]PlayerView, 0, len(r.Players)),
		Turn:      v.Turn,
		VoteOpen:  v.VoteOpen && viewer != nil,
		State:     v.State,
		Version:   r.version,
		CreatedAt: r.createdAt,
		UpdatedAt: r.updatedAt,
	}
	if viewer != nil {
		s.PlayerID = viewer.ID
	}
	if host := r.Host(); host != nil {
		s.HostID = host.ID
	}
	if !v.Deadline.IsZero() {
		deadline := v.Deadline
		s.Deadline = &deadline
	}

	for _, p := range r.Players {
		own := viewer != nil && viewer.ID == p.ID
		s.Players = append(s.Players, p.view(v.RevealRoles || own))
	}

	return s
}
