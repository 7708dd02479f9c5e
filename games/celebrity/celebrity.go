/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package celebrity implements the Celebrity guessing game.
//
// Each player secretly provides the name of a celebrity or famous figure,
// alive or dead, fictional or real. The host moderates: they see who
// provided which name, everyone else only sees the list. Players take turns
// guessing who provided a name. A correct guess knocks the owner out, moves
// them onto the guesser's team and lets the guesser go again; a wrong guess
// passes the turn. The last player standing wins.
package celebrity

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Seednode/partyhub/party"
)

const Name = "celebrity"

const PhaseGuessing party.Phase = "guessing"

const maxCelebrityLength = 60

var (
	ErrCelebrityTaken     = party.NewError(party.KindConflict, "that celebrity has already been used")
	ErrMissingCelebrities = party.NewError(party.KindConflict, "every player needs to submit a celebrity first")
	ErrSingleRound        = party.NewError(party.KindConflict, "celebrity is played in a single round; reset to play again")
)

type Game struct {
	turnTime time.Duration
	rand     *party.Rand
}

type Option func(*Game)

// WithTurnTime sets how long a guesser holds the turn. Non-positive values
// keep the default, since Expire steps through missed turns one at a time.
func WithTurnTime(d time.Duration) Option {
	return func(g *Game) {
		if d > 0 {
			g.turnTime = d
		}
	}
}

func WithRand(r *party.Rand) Option {
	return func(g *Game) { g.rand = r }
}

func New(opts ...Option) *Game {
	g := &Game{
		turnTime: 60 * time.Second,
		rand:     party.RandomRand(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Game) Rules() party.Rules {
	return party.Rules{
		Name:       Name,
		Title:      "Celebrity",
		MinPlayers: 3,
		MaxPlayers: 20,
		Phases: []party.Phase{
			party.PhaseLobby,
			PhaseGuessing,
			party.PhaseFinished,
		},
		LateJoin:   party.LateJoinRejoin,
		PollMillis: 2000,
	}
}

// Guess is the outcome of the most recent guess.
type Guess struct {
	GuesserID string `json:"guesserId"`
	TargetID  string `json:"targetId"`
	Celebrity string `json:"celebrity"`
	Correct   bool   `json:"correct"`
}

type state struct {
	celebrities map[string]string // playerID -> celebrity
	order       []string
	turn        int
	teams       map[string]string // union-find parent: playerID -> parentID
	deadline    time.Time
	last        *Guess
	winner      string
}

func (g *Game) Setup(r *party.Room) {
	r.State = &state{
		celebrities: make(map[string]string),
		teams:       make(map[string]string),
	}
}

func (s *state) teamFind(id string) string {
	parent, ok := s.teams[id]
	if !ok {
		s.teams[id] = id
		return id
	}
	if parent == id {
		return id
	}
	root := s.teamFind(parent)
	s.teams[id] = root
	return root
}

func (s *state) teamUnion(a, b string) {
	ra := s.teamFind(a)
	rb := s.teamFind(b)
	if ra == rb {
		return
	}
	s.teams[rb] = ra
}

// owner returns the player still in the game who provided celebrity.
func (s *state) owner(r *party.Room, celebrity string) *party.Player {
	for id, c := range s.celebrities {
		if !strings.EqualFold(c, celebrity) {
			continue
		}
		if p := r.Player(id); p != nil && !p.IsEliminated {
			return p
		}
	}
	return nil
}

// remaining lists the celebrities of players still in, sorted so the list
// gives nothing away about join order.
func (s *state) remaining(r *party.Room) []string {
	celebs := make([]string, 0, len(s.celebrities))
	for _, p := range r.Players {
		if c, ok := s.celebrities[p.ID]; ok && !p.IsEliminated {
			celebs = append(celebs, c)
		}
	}
	slices.SortFunc(celebs, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	return celebs
}

// contestants are everyone but the moderating host.
func contestants(r *party.Room) []*party.Player {
	out := make([]*party.Player, 0, len(r.Players))
	for _, p := range r.Players {
		if !p.Host {
			out = append(out, p)
		}
	}
	return out
}

func inPlay(r *party.Room) []*party.Player {
	out := make([]*party.Player, 0, len(r.Players))
	for _, p := range contestants(r) {
		if !p.IsEliminated {
			out = append(out, p)
		}
	}
	return out
}

func (g *Game) Start(r *party.Room, now time.Time) error {
	s := r.State.(*state)

	players := contestants(r)
	for _, p := range players {
		if _, ok := s.celebrities[p.ID]; !ok {
			return ErrMissingCelebrities
		}
	}

	s.order = g.rand.ShuffledIDs(players)
	s.turn = 0
	s.deadline = now.Add(g.turnTime)

	return r.Advance(PhaseGuessing)
}

func (g *Game) Act(r *party.Room, p *party.Player, action string, payload []byte, now time.Time) error {
	s := r.State.(*state)

	switch action {
	case "submitCelebrity":
		return g.submit(r, s, p, payload)
	case "guess":
		return g.guess(r, s, p, payload, now)
	default:
		return party.UnknownAction(action)
	}
}

func (g *Game) submit(r *party.Room, s *state, p *party.Player, payload []byte) error {
	if r.Phase() != party.PhaseLobby {
		return party.ErrGameAlreadyStarted
	}
	if p.Host {
		return party.ErrNotAllowed
	}

	var req struct {
		Celebrity string `json:"celebrity"`
	}
	if err := party.Decode(payload, &req); err != nil {
		return err
	}

	celebrity := strings.TrimSpace(req.Celebrity)
	if celebrity == "" || utf8.RuneCountInString(celebrity) > maxCelebrityLength {
		return party.ErrInvalidAction
	}

	for id, c := range s.celebrities {
		if id != p.ID && strings.EqualFold(c, celebrity) {
			return ErrCelebrityTaken
		}
	}

	s.celebrities[p.ID] = celebrity
	p.HasDescribed = true

	return nil
}

func (g *Game) guess(r *party.Room, s *state, p *party.Player, payload []byte, now time.Time) error {
	if r.Phase() != PhaseGuessing {
		return party.ErrWrongPhase
	}
	if p.Host || p.IsEliminated {
		return party.ErrNotAllowed
	}
	if s.order[s.turn] != p.ID {
		return party.ErrNotYourTurn
	}

	var req struct {
		Celebrity string `json:"celebrity"`
		TargetID  string `json:"targetId"`
	}
	if err := party.Decode(payload, &req); err != nil {
		return err
	}

	owner := s.owner(r, strings.TrimSpace(req.Celebrity))
	target := r.Player(req.TargetID)
	if owner == nil || target == nil || target.Host || target.IsEliminated || target.ID == p.ID {
		return party.ErrInvalidAction
	}

	s.last = &Guess{
		GuesserID: p.ID,
		TargetID:  target.ID,
		Celebrity: s.celebrities[owner.ID],
		Correct:   owner.ID == target.ID,
	}

	if !s.last.Correct {
		s.passTurn(r)
		s.deadline = now.Add(g.turnTime)
		return nil
	}

	target.IsEliminated = true
	s.teamUnion(p.ID, target.ID)
	p.Points++

	alive := inPlay(r)
	if len(alive) <= 1 {
		s.deadline = time.Time{}
		if len(alive) == 1 {
			s.winner = alive[0].ID
		}
		return r.Advance(party.PhaseFinished)
	}

	s.deadline = now.Add(g.turnTime)
	return nil
}

// passTurn moves to the next player in turn order who is still in.
func (s *state) passTurn(r *party.Room) {
	for i := 1; i <= len(s.order); i++ {
		next := (s.turn + i) % len(s.order)
		if p := r.Player(s.order[next]); p != nil && !p.IsEliminated {
			s.turn = next
			return
		}
	}
}

func (g *Game) Expire(r *party.Room, now time.Time) bool {
	s, ok := r.State.(*state)
	if !ok || r.Phase() != PhaseGuessing || s.deadline.IsZero() {
		return false
	}

	changed := false
	for !now.Before(s.deadline) {
		s.passTurn(r)
		s.deadline = s.deadline.Add(g.turnTime)
		changed = true
	}
	return changed
}

func (g *Game) NextRound(r *party.Room, now time.Time) (party.Phase, error) {
	return "", ErrSingleRound
}

// Team is a leader and everyone they knocked out, directly or not.
type Team struct {
	Leader  string   `json:"leader"`
	Members []string `json:"members"`
}

type Entry struct {
	PlayerID  string `json:"playerId"`
	Celebrity string `json:"celebrity"`
}

type view struct {
	Celebrities []string `json:"celebrities"`
	Mine        string   `json:"mine,omitempty"`
	Mapping     []Entry  `json:"mapping,omitempty"`
	Order       []string `json:"order,omitempty"`
	Teams       []Team   `json:"teams,omitempty"`
	Last        *Guess   `json:"last,omitempty"`
	Winner      string   `json:"winner,omitempty"`
}

func (g *Game) View(r *party.Room, viewer *party.Player, now time.Time) party.View {
	s := r.State.(*state)

	moderator := viewer != nil && viewer.Host
	started := r.Phase() != party.PhaseLobby

	v := view{
		Celebrities: []string{},
		Order:       slices.Clone(s.order),
		Winner:      s.winner,
	}
	if started || moderator {
		v.Celebrities = s.remaining(r)
	}
	if viewer != nil {
		v.Mine = s.celebrities[viewer.ID]
	}
	if moderator || r.Phase() == party.PhaseFinished {
		for _, p := range r.Players {
			if c, ok := s.celebrities[p.ID]; ok {
				v.Mapping = append(v.Mapping, Entry{PlayerID: p.ID, Celebrity: c})
			}
		}
	}
	if s.last != nil {
		last := *s.last
		v.Last = &last
	}
	if started {
		v.Teams = s.teamList(r)
	}

	out := party.View{
		Deadline: s.deadline,
		State:    v,
	}
	if r.Phase() == PhaseGuessing {
		out.Turn = s.order[s.turn]
	}
	return out
}

// teamList groups contestants by union-find root, in turn order.
func (s *state) teamList(r *party.Room) []Team {
	index := make(map[string]int)
	var teams []Team

	for _, id := range s.order {
		if r.Player(id) == nil {
			continue
		}
		root := s.teamFind(id)
		i, ok := index[root]
		if !ok {
			i = len(teams)
			index[root] = i
			teams = append(teams, Team{Leader: root})
		}
		if id != root {
			teams[i].Members = append(teams[i].Members, id)
		}
	}

	return teams
}
