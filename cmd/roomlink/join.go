package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/MikeDev101/roomlink/pkg/client"
	"github.com/MikeDev101/roomlink/pkg/config"
	"github.com/MikeDev101/roomlink/pkg/logging"
	"github.com/MikeDev101/roomlink/pkg/orchestrator"
	"github.com/MikeDev101/roomlink/pkg/peer"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	flagURL       string
	flagRoom      string
	flagName      string
	flagSTUN      []string
	flagTURN      []string
	flagTURNUser  string
	flagTURNPass  string
	flagRelay     bool
	flagInterval  time.Duration
	flagLogLevel  string
	flagLogFormat string
)

var joinCmd = &cobra.Command{
	Use:   "join [room]",
	Short: "Join a room and stay connected until interrupted",
	Long: `Join a room and stay connected until interrupted.

Commands typed on stdin:
  <text>              send <text> to the whole room
  /msg <id> <text>    send <text> to one peer
  /pos <x> <y>        set the position reported to the room
  /peers              print the peer table

Examples:
  roomlink join lobby --name Alice
  roomlink join lobby --url ws://relay.example.com/ws --relay --turn turn:turn.example.com:3478`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadClientConfig(cmd)
		if err != nil {
			return err
		}
		room := flagRoom
		if len(args) == 1 {
			room = args[0]
		}
		if room == "" {
			return errors.New("a room is required")
		}
		return runJoin(cmd.Context(), cfg, room, flagName, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	f := joinCmd.Flags()
	f.StringVar(&flagURL, "url", "", "signaling relay websocket URL (env SIGNAL_URL)")
	f.StringVar(&flagRoom, "room", "", "room to join")
	f.StringVarP(&flagName, "name", "n", "anonymous", "display name")
	f.StringSliceVar(&flagSTUN, "stun", nil, "STUN server URLs (env STUN_SERVERS)")
	f.StringSliceVar(&flagTURN, "turn", nil, "TURN server URLs (env TURN_SERVERS)")
	f.StringVar(&flagTURNUser, "turn-user", "", "TURN username (env TURN_USERNAME)")
	f.StringVar(&flagTURNPass, "turn-pass", "", "TURN password (env TURN_PASSWORD)")
	f.BoolVar(&flagRelay, "relay", false, "only use TURN relay candidates (env TURN_ONLY)")
	f.DurationVar(&flagInterval, "interval", 0, "position update interval (env POS_INTERVAL)")
	f.StringVar(&flagLogLevel, "log-level", "", "log level (env LOG_LEVEL)")
	f.StringVar(&flagLogFormat, "log-format", "", "console or json (env LOG_FORMAT)")

	rootCmd.AddCommand(joinCmd)
}

// loadClientConfig applies flags the user set on top of env and file values.
func loadClientConfig(cmd *cobra.Command) (config.Client, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return cfg, err
	}

	f := cmd.Flags()
	if f.Changed("url") {
		cfg.SignalURL = flagURL
	}
	if f.Changed("stun") {
		cfg.STUNServers = flagSTUN
	}
	if f.Changed("turn") {
		cfg.TURNServers = flagTURN
	}
	if f.Changed("turn-user") {
		cfg.TURNUsername = flagTURNUser
	}
	if f.Changed("turn-pass") {
		cfg.TURNPassword = flagTURNPass
	}
	if f.Changed("relay") {
		cfg.TURNOnly = flagRelay
	}
	if f.Changed("interval") {
		cfg.PosInterval = flagInterval
	}
	if f.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if f.Changed("log-format") {
		cfg.LogFormat = flagLogFormat
	}

	return cfg, cfg.Validate()
}

// presenceHello is sent on every presence channel once it opens.
type presenceHello struct {
	Name string `json:"name"`
}

func runJoin(parent context.Context, cfg config.Client, room, name string, in io.Reader, out io.Writer) error {
	if err := logging.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	factory, err := peer.NewFactory(peer.SettingsFrom(cfg), logging.NewPionFactory())
	if err != nil {
		return err
	}
	factory.OnPresenceOpen = func(conn *peer.Connection) {
		if err := conn.Send(&presenceHello{Name: name}); err != nil {
			log.Debug().Err(err).Str("peer_id", conn.PeerID).Msg("Send hello error")
		}
	}
	factory.OnPresence = func(peerID string, data []byte) {
		var hello presenceHello
		if err := json.Unmarshal(data, &hello); err == nil && hello.Name != "" {
			log.Info().Str("peer_id", peerID).Str("display_name", hello.Name).Msg("Direct channel open")
		}
	}

	var printMu sync.Mutex
	var orch *orchestrator.Orchestrator
	link := &client.Link{}
	orch = orchestrator.New(orchestrator.Options{
		Transport: link,
		Factory: func(peerID string) (orchestrator.Conn, error) {
			conn, err := factory.Open(peerID)
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
		Hooks: orchestrator.Hooks{
			OnMembership: func() {
				printMu.Lock()
				defer printMu.Unlock()
				renderPeers(out, orch.Peers())
			},
			OnChat: func(entry orchestrator.ChatEntry) {
				printMu.Lock()
				defer printMu.Unlock()
				fmt.Fprintln(out, formatChat(entry))
			},
			OnCandidateFailure: func(err *orchestrator.CandidateError) {
				log.Debug().Err(err).Msg("Candidate failure")
			},
		},
	})
	defer orch.Close()

	session := &client.Session{
		URL:            cfg.SignalURL,
		Room:           room,
		Name:           name,
		ReconnectDelay: cfg.ReconnectDelay,
		Link:           link,
		Orchestrator:   orch,
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Session ended")
		}
	}()
	go func() {
		defer wg.Done()
		orch.RunPositionEmitter(ctx, cfg.PosInterval)
	}()

	go readCommands(ctx, in, orch, func() {
		printMu.Lock()
		defer printMu.Unlock()
		renderPeers(out, orch.Peers())
	})

	<-ctx.Done()
	wg.Wait()
	log.Info().Msg("Left room")
	return nil
}

// readCommands turns stdin lines into chat, private messages and position
// updates until ctx is done or input ends.
func readCommands(ctx context.Context, in io.Reader, orch *orchestrator.Orchestrator, showPeers func()) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if err := runCommand(orch, scanner.Text(), showPeers); err != nil {
			log.Warn().Err(err).Msg("Command failed")
		}
	}
}

func runCommand(orch *orchestrator.Orchestrator, line string, showPeers func()) error {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return nil

	case line == "/peers":
		showPeers()
		return nil

	case strings.HasPrefix(line, "/msg "):
		fields := strings.SplitN(strings.TrimPrefix(line, "/msg "), " ", 2)
		if len(fields) != 2 || strings.TrimSpace(fields[1]) == "" {
			return errors.New("usage: /msg <id> <text>")
		}
		return orch.SendPrivate(fields[0], strings.TrimSpace(fields[1]))

	case strings.HasPrefix(line, "/pos "):
		fields := strings.Fields(strings.TrimPrefix(line, "/pos "))
		if len(fields) != 2 {
			return errors.New("usage: /pos <x> <y>")
		}
		x, errX := strconv.ParseFloat(fields[0], 64)
		y, errY := strconv.ParseFloat(fields[1], 64)
		if err := errors.Join(errX, errY); err != nil {
			return fmt.Errorf("invalid position: %w", err)
		}
		orch.SetPosition(x, y)
		return nil

	default:
		return orch.SendChat(line)
	}
}
