/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package wavelength implements a proximity guessing game.
//
// Each round one player, the psychic, sees a hidden target on a spectrum
// between two opposites and gives a clue. Everyone else guesses where the
// target sits; the closer the guess, the more points.
package wavelength

import (
	"maps"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Seednode/partyhub/party"
)

const Name = "wavelength"

const (
	PhaseClue     party.Phase = "clue"
	PhaseGuessing party.Phase = "guessing"
	PhaseReveal   party.Phase = "reveal"
)

const (
	maxClueLength = 60
	minRounds     = 3
	maxValue      = 100
)

// Band is a scoring tier.
type Band struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
}

var (
	BandVeryClose = Band{Name: "very close", Points: 4}
	BandClose     = Band{Name: "close", Points: 3}
	BandNear      = Band{Name: "near", Points: 2}
	BandMiss      = Band{Name: "miss", Points: 0}
)

// Score places a guess into a band by its distance from the target.
func Score(guess, target int) Band {
	d := guess - target
	if d < 0 {
		d = -d
	}

	switch {
	case d <= 3:
		return BandVeryClose
	case d <= 8:
		return BandClose
	case d <= 15:
		return BandNear
	default:
		return BandMiss
	}
}

// psychicBonus reports whether a band earns the psychic a point.
func psychicBonus(b Band) bool {
	return b == BandVeryClose || b == BandClose
}

type Game struct {
	clueTime  time.Duration
	guessTime time.Duration
	rounds    int
	spectrums []Spectrum
	rand      *party.Rand
}

type Option func(*Game)

// WithClueTime sets how long the psychic has to give a clue before the
// round is revealed without guesses. Non-positive values keep the default.
func WithClueTime(d time.Duration) Option {
	return func(g *Game) {
		if d > 0 {
			g.clueTime = d
		}
	}
}

// WithGuessTime sets how long guessers have once the clue is in.
// Non-positive values keep the default.
func WithGuessTime(d time.Duration) Option {
	return func(g *Game) {
		if d > 0 {
			g.guessTime = d
		}
	}
}

// WithRounds fixes the number of rounds. Zero plays one round per player,
// but never fewer than three.
func WithRounds(n int) Option {
	return func(g *Game) { g.rounds = n }
}

func WithSpectrums(spectrums []Spectrum) Option {
	return func(g *Game) { g.spectrums = spectrums }
}

func WithRand(r *party.Rand) Option {
	return func(g *Game) { g.rand = r }
}

func New(opts ...Option) *Game {
	g := &Game{
		clueTime:  90 * time.Second,
		guessTime: 60 * time.Second,
		spectrums: defaultSpectrums,
		rand:      party.RandomRand(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Game) Rules() party.Rules {
	return party.Rules{
		Name:       Name,
		Title:      "Wavelength",
		MinPlayers: 2,
		MaxPlayers: 12,
		Phases: []party.Phase{
			party.PhaseLobby,
			PhaseClue,
			PhaseGuessing,
			PhaseReveal,
			party.PhaseFinished,
		},
		LateJoin:   party.LateJoinAllow,
		PollMillis: 2000,
	}
}

// Outcome is one scored guess.
type Outcome struct {
	PlayerID string `json:"playerId"`
	Guess    int    `json:"guess"`
	Distance int    `json:"distance"`
	Band     Band   `json:"band"`
}

type round struct {
	psychicID string
	spectrum  Spectrum
	target    int
	clue      string
	guesses   map[string]int
	deadline  time.Time
	outcomes  []Outcome
	bonus     int
}

type state struct {
	total int
	round *round
}

func (g *Game) Setup(r *party.Room) {
	r.State = &state{}
}

func (g *Game) Start(r *party.Room, now time.Time) error {
	s := r.State.(*state)

	s.total = g.rounds
	if s.total <= 0 {
		s.total = max(len(r.Players), minRounds)
	}
	s.round = g.newRound(r, r.Round(), now)

	return r.Advance(PhaseClue)
}

// newRound deals a card for round n. The psychic rotates in join order and
// must give a clue before the clue deadline.
func (g *Game) newRound(r *party.Room, n int, now time.Time) *round {
	psychic := r.Players[(n-1)%len(r.Players)]
	return &round{
		psychicID: psychic.ID,
		spectrum:  g.spectrums[g.rand.IntN(len(g.spectrums))],
		target:    g.rand.IntN(maxValue + 1),
		guesses:   make(map[string]int),
		deadline:  now.Add(g.clueTime),
	}
}

func (g *Game) Act(r *party.Room, p *party.Player, action string, payload []byte, now time.Time) error {
	s := r.State.(*state)

	switch action {
	case "submitClue":
		return g.submitClue(r, s, p, payload, now)
	case "guess":
		return g.guess(r, s, p, payload)
	default:
		return party.UnknownAction(action)
	}
}

func (g *Game) submitClue(r *party.Room, s *state, p *party.Player, payload []byte, now time.Time) error {
	if r.Phase() != PhaseClue {
		return party.ErrWrongPhase
	}
	if p.ID != s.round.psychicID {
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

	s.round.clue = clue
	s.round.deadline = now.Add(g.guessTime)
	p.HasDescribed = true

	return r.Advance(PhaseGuessing)
}

func (g *Game) guess(r *party.Room, s *state, p *party.Player, payload []byte) error {
	if r.Phase() != PhaseGuessing {
		return party.ErrWrongPhase
	}
	if p.ID == s.round.psychicID {
		return party.ErrNotAllowed
	}
	if _, done := s.round.guesses[p.ID]; done {
		return party.ErrAlreadyActed
	}

	var req struct {
		Value *int `json:"value"`
	}
	if err := party.Decode(payload, &req); err != nil {
		return err
	}
	if req.Value == nil || *req.Value < 0 || *req.Value > maxValue {
		return party.ErrInvalidAction
	}

	s.round.guesses[p.ID] = *req.Value
	p.HasVoted = true

	for _, other := range r.Players {
		if other.ID == s.round.psychicID {
			continue
		}
		if _, done := s.round.guesses[other.ID]; !done {
			return nil
		}
	}

	return g.reveal(r, s)
}

// reveal scores every guess in join order and credits the psychic.
func (g *Game) reveal(r *party.Room, s *state) error {
	s.round.deadline = time.Time{}
	s.round.outcomes = s.round.outcomes[:0]
	s.round.bonus = 0

	for _, p := range r.Players {
		value, ok := s.round.guesses[p.ID]
		if !ok {
			continue
		}

		band := Score(value, s.round.target)
		distance := value - s.round.target
		if distance < 0 {
			distance = -distance
		}

		s.round.outcomes = append(s.round.outcomes, Outcome{
			PlayerID: p.ID,
			Guess:    value,
			Distance: distance,
			Band:     band,
		})
		p.Points += band.Points

		if psychicBonus(band) {
			s.round.bonus++
		}
	}

	if psychic := r.Player(s.round.psychicID); psychic != nil {
		psychic.Points += s.round.bonus
	}

	return r.Advance(PhaseReveal)
}

// Expire reveals the round once its deadline passes. A psychic who never
// gives a clue forfeits the round, which reveals with no guesses.
func (g *Game) Expire(r *party.Room, now time.Time) bool {
	s, ok := r.State.(*state)
	if !ok || s.round == nil {
		return false
	}
	if r.Phase() != PhaseClue && r.Phase() != PhaseGuessing {
		return false
	}
	if s.round.deadline.IsZero() || now.Before(s.round.deadline) {
		return false
	}

	_ = g.reveal(r, s)
	return true
}

func (g *Game) NextRound(r *party.Room, now time.Time) (party.Phase, error) {
	if r.Phase() != PhaseReveal {
		return "", party.ErrWrongPhase
	}

	s := r.State.(*state)
	if r.Round() >= s.total {
		return party.PhaseFinished, nil
	}

	s.round = g.newRound(r, r.Round()+1, now)

	return PhaseClue, nil
}

type view struct {
	Spectrum    Spectrum       `json:"spectrum"`
	PsychicID   string         `json:"psychicId"`
	Clue        string         `json:"clue,omitempty"`
	Target      *int           `json:"target,omitempty"`
	TotalRounds int            `json:"totalRounds"`
	MyGuess     *int           `json:"myGuess,omitempty"`
	Guesses     map[string]int `json:"guesses,omitempty"`
	Outcomes    []Outcome      `json:"outcomes,omitempty"`
	Bonus       int            `json:"psychicBonus"`
}

func (g *Game) View(r *party.Room, viewer *party.Player, now time.Time) party.View {
	s := r.State.(*state)
	if s.round == nil {
		return party.View{}
	}

	revealed := r.Phase() == PhaseReveal || r.Phase() == party.PhaseFinished
	psychic := viewer != nil && viewer.ID == s.round.psychicID

	v := view{
		Spectrum:    s.round.spectrum,
		PsychicID:   s.round.psychicID,
		Clue:        s.round.clue,
		TotalRounds: s.total,
	}
	if revealed || psychic {
		target := s.round.target
		v.Target = &target
	}
	if viewer != nil {
		if value, ok := s.round.guesses[viewer.ID]; ok {
			v.MyGuess = &value
		}
	}
	if revealed {
		v.Guesses = maps.Clone(s.round.guesses)
		v.Outcomes = slices.Clone(s.round.outcomes)
		v.Bonus = s.round.bonus
	}

	out := party.View{
		Deadline: s.round.deadline,
		VoteOpen: r.Phase() == PhaseGuessing && !psychic,
		State:    v,
	}
	if r.Phase() == PhaseClue {
		out.Turn = s.round.psychicID
	}
	return out
}
