/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package party

import (
	"strings"
	"time"
	"unicode/utf8"
)

const MaxNameLength = 24

type Player struct {
	ID       string
	Name     string
	DeviceID string
	Host     bool
	Role     string

	HasVoted     bool
	HasDescribed bool
	IsEliminated bool
	Points       int

	JoinedAt time.Time
}

// PlayerView is the public form of a Player.
type PlayerView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	IsHost       bool   `json:"isHost"`
	Role         string `json:"role,omitempty"`
	HasVoted     bool   `json:"hasVoted"`
	HasDescribed bool   `json:"hasDescribed"`
	IsEliminated bool   `json:"isEliminated"`
	Points       int    `json:"points"`
}

func (p *Player) clearRound() {
	p.HasVoted = false
	p.HasDescribed = false
}

func (p *Player) view(withRole bool) PlayerView {
	v := PlayerView{
		ID:           p.ID,
		Name:         p.Name,
		IsHost:       p.Host,
		HasVoted:     p.HasVoted,
		HasDescribed: p.HasDescribed,
		IsEliminated: p.IsEliminated,
		Points:       p.Points,
	}
	if withRole {
		v.Role = p.Role
	}
	return v
}

// CleanName trims a display name and checks its length.
func CleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return "", ErrInvalidName
	}
	return name, nil
}
