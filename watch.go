/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Seednode/partyhub/client"
	"github.com/Seednode/partyhub/party"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type watchConfig struct {
	game     string
	code     string
	playerID string
	deviceID string
	interval time.Duration
}

// describeSnapshot renders a one-line summary of a room.
func describeSnapshot(s party.Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s v%d: phase=%s round=%d", s.Game, s.RoomCode, s.Version, s.Phase, s.Round)

	if s.Locked {
		b.WriteString(" locked")
	}

	if s.Turn != "" {
		turn := s.Turn
		if p := s.Find(s.Turn); p != nil {
			turn = p.Name
		}
		fmt.Fprintf(&b, " turn=%s", turn)
	}

	names := make([]string, 0, len(s.Players))
	for _, p := range s.Players {
		name := p.Name
		switch {
		case p.IsHost:
			name += "*"
		case p.IsEliminated:
			name += "(out)"
		}
		names = append(names, fmt.Sprintf("%s:%d", name, p.Points))
	}
	fmt.Fprintf(&b, " players=[%s]", strings.Join(names, " "))

	return b.String()
}

// printer writes each new version of a room once.
func printer(out io.Writer) func(party.Snapshot) {
	var last uint64

	return func(s party.Snapshot) {
		if s.Version == last {
			return
		}
		last = s.Version

		fmt.Fprintln(out, describeSnapshot(s))
	}
}

func newWatchCmd(cfg *Config, v *viper.Viper) *cobra.Command {
	wc := &watchConfig{}

	cmd := &cobra.Command{
		Use:   "watch <server url>",
		Short: "Follow a room from the terminal, printing every change.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if wc.game == "" || wc.code == "" {
				return errors.New("both --game and --code are required")
			}

			p := client.New(args[0], wc.game,
				client.WithPlayer(wc.code, wc.playerID),
				client.WithDeviceID(wc.deviceID),
				client.WithInterval(wc.interval),
				client.WithLogger(cfg.logger),
				client.OnUpdate(printer(cmd.OutOrStdout())),
			)

			logf(cfg, "WATCH: Following %s room %s on %s", wc.game, party.NormalizeCode(wc.code), args[0])

			p.Run(cmd.Context())

			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&wc.game, "game", "g", "", "game the room is playing (env: PARTYHUB_GAME)")
	fs.StringVarP(&wc.code, "code", "c", "", "room code to follow (env: PARTYHUB_CODE)")
	fs.StringVar(&wc.playerID, "player", "", "player id to view the room as, empty for a spectator (env: PARTYHUB_PLAYER)")
	fs.StringVar(&wc.deviceID, "device", "", "device id the player joined with (env: PARTYHUB_DEVICE)")
	fs.DurationVar(&wc.interval, "interval", 2*time.Second, "time between polls (env: PARTYHUB_INTERVAL)")

	bindEnv(v, fs)

	return cmd
}
