/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package party

import "time"

// Phase is a stage of a game's state machine.
type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhaseFinished Phase = "finished"
)

// LateJoin decides what happens when someone joins after the game started.
type LateJoin int

const (
	// LateJoinReject refuses everyone once the lobby is over.
	LateJoinReject LateJoin = iota
	// LateJoinRejoin lets a known device id reclaim its player.
	LateJoinRejoin
	// LateJoinAllow lets anyone in, as a new player.
	LateJoinAllow
)

func (l LateJoin) String() string {
	switch l {
	case LateJoinRejoin:
		return "rejoin"
	case LateJoinAllow:
		return "allow"
	default:
		return "reject"
	}
}

func (l LateJoin) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Rules are the static properties of a game.
type Rules struct {
	Name       string   `json:"name"`
	Title      string   `json:"title"`
	MinPlayers int      `json:"minPlayers"`
	MaxPlayers int      `json:"maxPlayers"`
	Phases     []Phase  `json:"phases"`
	LateJoin   LateJoin `json:"lateJoin"`
	// PollMillis is the suggested client refresh interval.
	PollMillis int `json:"pollIntervalMs"`
}

// Order returns the position of p in the game's phase list, or -1.
func (r Rules) Order(p Phase) int {
	for i, phase := range r.Phases {
		if phase == p {
			return i
		}
	}
	return -1
}

// View is the game-specific part of a snapshot, built for one viewer.
type View struct {
	// Turn is the id of the player expected to act next, if any.
	Turn string
	// Deadline is the absolute time the current turn or phase expires.
	Deadline time.Time
	// RevealRoles exposes every player's role, not just the viewer's.
	RevealRoles bool
	// VoteOpen tells the viewer a ballot is open for them this phase.
	VoteOpen bool
	State    any
}

// Game is implemented by every playable game. All methods are called with
// the room locked; implementations never need their own synchronization.
type Game interface {
	Rules() Rules
	// Setup installs a fresh state blob for a room in the lobby.
	Setup(r *Room)
	// Start assigns roles and advances out of the lobby. Player count and
	// host checks have already passed.
	Start(r *Room, now time.Time) error
	// Act applies a game-specific action for p.
	Act(r *Room, p *Player, action string, payload []byte, now time.Time) error
	// Expire applies any deadline that has passed and reports whether the
	// room changed.
	Expire(r *Room, now time.Time) bool
	// NextRound prepares the following round and returns the phase to enter.
	NextRound(r *Room, now time.Time) (Phase, error)
	View(r *Room, viewer *Player, now time.Time) View
}
