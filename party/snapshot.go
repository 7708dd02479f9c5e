/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package party

import "time"

// Snapshot is the authoritative room state as seen by one player. Clients
// replace their local copy with it wholesale.
type Snapshot struct {
	RoomCode  string       `json:"roomCode"`
	Game      string       `json:"game"`
	Phase     Phase        `json:"phase"`
	Round     int          `json:"round"`
	Locked    bool         `json:"locked"`
	HostID    string       `json:"hostId"`
	PlayerID  string       `json:"playerId,omitempty"`
	Players   []PlayerView `json:"players"`
	Turn      string       `json:"turn,omitempty"`
	Deadline  *time.Time   `json:"deadline,omitempty"`
	VoteOpen  bool         `json:"voteOpen"`
	State     any          `json:"state,omitempty"`
	Version   uint64       `json:"version"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Me returns the viewer's own entry, or nil for spectators.
func (s Snapshot) Me() *PlayerView {
	return s.Find(s.PlayerID)
}

func (s Snapshot) Find(id string) *PlayerView {
	if id == "" {
		return nil
	}
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i]
		}
	}
	return nil
}
