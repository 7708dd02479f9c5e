/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package impostor implements a social deduction word game.
//
// Everyone but one player learns a secret word. Players take turns giving a
// one-line clue about it; the impostor only knows the category and has to
// bluff. After a discussion everyone votes on who the impostor is. A tie
// eliminates nobody. The crew wins by voting out the impostor; the
// impostor wins by surviving until only one crew member is left.
package impostor

import (
	"maps"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Seednode/partyhub/party"
)

const Name = "impostor"

const (
	PhaseDescription party.Phase = "description"
	PhaseDiscussion  party.Phase = "discussion"
	PhaseVoting      party.Phase = "voting"
	PhaseReveal      party.Phase = "reveal"
)

const (
	RoleCrew     = "crew"
	RoleImpostor = "impostor"
)

const (
	maxClueLength = 40

	crewWinPoints     = 1
	impostorWinPoints = 3
)

type Game struct {
	describeTime   time.Duration
	discussionTime time.Duration
	votingTime     time.Duration
	categories     []Category
	rand           *party.Rand
}

type Option func(*Game)

// WithTimers sets how long each speaker, the discussion and the vote last.
// Non-positive values keep their defaults.
func WithTimers(describe, discussion, voting time.Duration) Option {
	return func(g *Game) {
		if describe > 0 {
			g.describeTime = describe
		}
		if discussion > 0 {
			g.discussionTime = discussion
		}
		if voting > 0 {
			g.votingTime = voting
		}
	}
}

func WithCategories(categories []Category) Option {
	return func(g *Game) { g.categories = categories }
}

func WithRand(r *party.Rand) Option {
	return func(g *Game) { g.rand = r }
}

func New(opts ...Option) *Game {
	g := &Game{
		describeTime:   45 * time.Second,
		discussionTime: 90 * time.Second,
		votingTime:     60 * time.Second,
		categories:     defaultCategories,
		rand:           party.RandomRand(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Game) Rules() party.Rules {
	return party.Rules{
		Name:       Name,
		Title:      "Impostor",
		MinPlayers: 3,
		MaxPlayers: 12,
		Phases: []party.Phase{
			party.PhaseLobby,
			PhaseDescription,
			PhaseDiscussion,
			PhaseVoting,
			PhaseReveal,
			party.PhaseFinished,
		},
		LateJoin:   party.LateJoinReject,
		PollMillis: 1500,
	}
}

type Clue struct {
	PlayerID string `json:"playerId"`
	Text     string `json:"text"`
}

// Result is the outcome of one vote.
type Result struct {
	Tally       map[string]int `json:"tally"`
	Skips       int            `json:"skips"`
	Eliminated  string         `json:"eliminated,omitempty"`
	WasImpostor bool           `json:"wasImpostor"`
}

type round struct {
	order    []string
	speaker  int
	clues    []Clue
	votes    map[string]string
	deadline time.Time
	result   *Result
}

type state struct {
	category   string
	word       string
	impostorID string
	winner     string
	round      *round
}

func (g *Game) Setup(r *party.Room) {
	r.State = &state{}
}

func (g *Game) Start(r *party.Room, now time.Time) error {
	s := r.State.(*state)

	category := g.categories[g.rand.IntN(len(g.categories))]
	s.category = category.Name
	s.word = category.Words[g.rand.IntN(len(category.Words))]
	s.impostorID = r.Players[g.rand.IntN(len(r.Players))].ID
	s.winner = ""

	for _, p := range r.Players {
		if p.ID == s.impostorID {
			p.Role = RoleImpostor
		} else {
			p.Role = RoleCrew
		}
	}

	s.round = g.newRound(r, now)

	return r.Advance(PhaseDescription)
}

func (g *Game) newRound(r *party.Room, now time.Time) *round {
	return &round{
		order:    g.rand.ShuffledIDs(r.Alive()),
		votes:    make(map[string]string),
		deadline: now.Add(g.describeTime),
	}
}

func (g *Game) Act(r *party.Room, p *party.Player, action string, payload []byte, now time.Time) error {
	s := r.State.(*state)

	switch action {
	case "describe":
		return g.describe(r, s, p, payload, now)
	case "startVoting":
		if !p.Host {
			return party.ErrNotHost
		}
		if r.Phase() != PhaseDiscussion {
			return party.ErrWrongPhase
		}
		return g.openVoting(r, s, now)
	case "vote":
		return g.vote(r, s, p, payload)
	default:
		return party.UnknownAction(action)
	}
}

func (g *Game) describe(r *party.Room, s *state, p *party.Player, payload []byte, now time.Time) error {
	if r.Phase() != PhaseDescription {
		return party.ErrWrongPhase
	}
	if s.round.order[s.round.speaker] != p.ID {
		return party.ErrNotYourTurn
	}

	var req struct {
		Clue string `json:"clue"`
	}
	if err := party.Decode(payload, &req); err != nil {
		return err
	}

	clue := strings.TrimSpace(req.Clue)
	if clue == "" || utf8.RuneCountInString(clue) > maxClueLength {
		return party.ErrInvalidAction
	}
	if p.Role == RoleCrew && strings.Contains(strings.ToLower(clue), strings.ToLower(s.word)) {
		return party.ErrNotAllowed
	}

	s.round.clues = append(s.round.clues, Clue{PlayerID: p.ID, Text: clue})
	p.HasDescribed = true

	return g.nextSpeaker(r, s, now)
}

// nextSpeaker hands the turn on, opening the discussion once everyone spoke.
// base is when the previous turn ended.
func (g *Game) nextSpeaker(r *party.Room, s *state, base time.Time) error {
	s.round.speaker++
	if s.round.speaker < len(s.round.order) {
		s.round.deadline = base.Add(g.describeTime)
		return nil
	}

	s.round.deadline = base.Add(g.discussionTime)
	return r.Advance(PhaseDiscussion)
}

func (g *Game) openVoting(r *party.Room, s *state, base time.Time) error {
	s.round.deadline = base.Add(g.votingTime)
	return r.Advance(PhaseVoting)
}

func (g *Game) vote(r *party.Room, s *state, p *party.Player, payload []byte) error {
	if r.Phase() != PhaseVoting {
		return party.ErrWrongPhase
	}
	if p.IsEliminated {
		return party.ErrNotAllowed
	}
	if p.HasVoted {
		return party.ErrAlreadyActed
	}

	var req struct {
		TargetID string `json:"targetId"`
	}
	if err := party.Decode(payload, &req); err != nil {
		return err
	}

	// An empty target is a deliberate skip.
	if req.TargetID != "" {
		target := r.Player(req.TargetID)
		if target == nil || target.IsEliminated || target.ID == p.ID {
			return party.ErrInvalidAction
		}
	}

	s.round.votes[p.ID] = req.TargetID
	p.HasVoted = true

	for _, alive := range r.Alive() {
		if !alive.HasVoted {
			return nil
		}
	}

	return g.resolve(r, s)
}

// Tally counts votes. A player is only eliminated with a strict plurality
// that also beats the number of skips; anything else is a tie.
func Tally(votes map[string]string) *Result {
	res := &Result{Tally: make(map[string]int)}
	for _, target := range votes {
		if target == "" {
			res.Skips++
			continue
		}
		res.Tally[target]++
	}

	best, bestVotes, tie := "", 0, false
	for id, n := range res.Tally {
		switch {
		case n > bestVotes:
			best, bestVotes, tie = id, n, false
		case n == bestVotes:
			tie = true
		}
	}

	if bestVotes > 0 && !tie && bestVotes > res.Skips {
		res.Eliminated = best
	}
	return res
}

func (g *Game) resolve(r *party.Room, s *state) error {
	res := Tally(s.round.votes)
	s.round.result = res
	s.round.deadline = time.Time{}

	if res.Eliminated != "" {
		if p := r.Player(res.Eliminated); p != nil {
			p.IsEliminated = true
		}
		res.WasImpostor = res.Eliminated == s.impostorID
	}

	switch {
	case res.WasImpostor:
		s.winner = RoleCrew
		for _, p := range r.Players {
			if p.Role == RoleCrew {
				p.Points += crewWinPoints
			}
		}
		return r.Advance(party.PhaseFinished)
	case len(r.Alive()) <= 2:
		s.winner = RoleImpostor
		if p := r.Player(s.impostorID); p != nil {
			p.Points += impostorWinPoints
		}
		return r.Advance(party.PhaseFinished)
	default:
		return r.Advance(PhaseReveal)
	}
}

func (g *Game) Expire(r *party.Room, now time.Time) bool {
	s, ok := r.State.(*state)
	if !ok || s.round == nil {
		return false
	}

	changed := false
	for !s.round.deadline.IsZero() && !now.Before(s.round.deadline) {
		at := s.round.deadline

		switch r.Phase() {
		case PhaseDescription:
			// The speaker ran out of time and is skipped.
			if p := r.Player(s.round.order[s.round.speaker]); p != nil {
				p.HasDescribed = true
				s.round.clues = append(s.round.clues, Clue{PlayerID: p.ID})
			}
			_ = g.nextSpeaker(r, s, at)
		case PhaseDiscussion:
			_ = g.openVoting(r, s, at)
		case PhaseVoting:
			_ = g.resolve(r, s)
		default:
			return changed
		}
		changed = true
	}
	return changed
}

func (g *Game) NextRound(r *party.Room, now time.Time) (party.Phase, error) {
	if r.Phase() != PhaseReveal {
		return "", party.ErrWrongPhase
	}

	s := r.State.(*state)
	s.round = g.newRound(r, now)

	return PhaseDescription, nil
}

type view struct {
	Category   string            `json:"category,omitempty"`
	Word       string            `json:"word,omitempty"`
	Order      []string          `json:"order"`
	Clues      []Clue            `json:"clues"`
	Votes      map[string]string `json:"votes,omitempty"`
	Result     *Result           `json:"result,omitempty"`
	Winner     string            `json:"winner,omitempty"`
	ImpostorID string            `json:"impostorId,omitempty"`
}

func (g *Game) View(r *party.Room, viewer *party.Player, now time.Time) party.View {
	s := r.State.(*state)
	if s.round == nil {
		return party.View{}
	}

	finished := r.Phase() == party.PhaseFinished

	v := view{
		Category: s.category,
		Order:    slices.Clone(s.round.order),
		Clues:    slices.Clone(s.round.clues),
		Result:   s.round.result,
		Winner:   s.winner,
	}
	if finished || (viewer != nil && viewer.Role == RoleCrew) {
		v.Word = s.word
	}
	if finished {
		v.ImpostorID = s.impostorID
	}
	if s.round.result != nil {
		v.Votes = maps.Clone(s.round.votes)
	}

	out := party.View{
		Deadline:    s.round.deadline,
		RevealRoles: finished,
		VoteOpen:    r.Phase() == PhaseVoting,
		State:       v,
	}
	if r.Phase() == PhaseDescription {
		out.Turn = s.round.order[s.round.speaker]
	}
	return out
}
