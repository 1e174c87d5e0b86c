// Package config holds the game and node settings of a snake process.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"strings"
	"time"

	pb "github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/proto"
)

// ErrInvalidConfig is wrapped by every ValidationError.
var ErrInvalidConfig = errors.New("invalid config")

const (
	ModeHost = "host"
	ModeJoin = "join"

	// DefaultMulticastGroup is where MASTERs announce their games.
	DefaultMulticastGroup = "239.192.0.4:9192"
)

// Config is the complete process configuration.
type Config struct {
	Game    GameConfig
	Node    NodeConfig
	Logging LogConfig
}

// GameConfig is announced by the MASTER; followers take it from the Announcement.
type GameConfig struct {
	Width        int
	Height       int
	FoodStatic   int
	StateDelayMs int
}

// NodeConfig describes the local player and its sockets.
type NodeConfig struct {
	PlayerName    string
	PlayerType    string
	GameName      string
	Mode          string
	Role          string
	ListenAddr    string
	MulticastAddr string
	JoinAddr      string
	RetryAttempts int
	Seed          int64
}

type LogConfig struct {
	Level  string
	Format string
}

// Default returns a Config with the values of an unconfigured game.
func Default() *Config {
	return &Config{
		Game: FromProto(pb.DefaultGameConfig()),
		Node: NodeConfig{
			PlayerName:    "player",
			PlayerType:    "human",
			GameName:      "snake",
			Mode:          ModeHost,
			Role:          "normal",
			ListenAddr:    ":0",
			MulticastAddr: DefaultMulticastGroup,
			RetryAttempts: 8,
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// BindFlags registers every field on fs, using the current values as defaults.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.Game.Width, "width", c.Game.Width, "board width")
	fs.IntVar(&c.Game.Height, "height", c.Game.Height, "board height")
	fs.IntVar(&c.Game.FoodStatic, "food", c.Game.FoodStatic, "number of food items kept on the board")
	fs.IntVar(&c.Game.StateDelayMs, "delay", c.Game.StateDelayMs, "turn interval in milliseconds")

	fs.StringVar(&c.Node.PlayerName, "name", c.Node.PlayerName, "player name")
	fs.StringVar(&c.Node.PlayerType, "type", c.Node.PlayerType, "player type: human or robot")
	fs.StringVar(&c.Node.GameName, "game", c.Node.GameName, "game name to host or join (empty joins any)")
	fs.StringVar(&c.Node.Mode, "mode", c.Node.Mode, "host or join")
	fs.StringVar(&c.Node.Role, "role", c.Node.Role, "requested role when joining: normal or viewer")
	fs.StringVar(&c.Node.ListenAddr, "listen", c.Node.ListenAddr, "unicast listen address")
	fs.StringVar(&c.Node.MulticastAddr, "multicast", c.Node.MulticastAddr, "announcement group address (empty disables)")
	fs.StringVar(&c.Node.JoinAddr, "join", c.Node.JoinAddr, "master address to join directly, skipping discovery")
	fs.IntVar(&c.Node.RetryAttempts, "retries", c.Node.RetryAttempts, "transmissions per reliable send")
	fs.Int64Var(&c.Node.Seed, "seed", c.Node.Seed, "random seed (0 seeds from the clock)")

	fs.StringVar(&c.Logging.Level, "log-level", c.Logging.Level, "debug, info, warn or error")
	fs.StringVar(&c.Logging.Format, "log-format", c.Logging.Format, "console or json")
}

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// Validate returns every validation failure joined into one error.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, field, format string, args ...any) {
		if !ok {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
		}
	}

	if err := c.Game.Validate(); err != nil {
		errs = append(errs, err)
	}
	check(strings.TrimSpace(c.Node.PlayerName) != "", "node.player_name", "must not be empty")
	_, err := c.Node.ParsePlayerType()
	check(err == nil, "node.player_type", "%v", err)
	check(c.Node.Mode == ModeHost || c.Node.Mode == ModeJoin, "node.mode", "must be %q or %q, got %q", ModeHost, ModeJoin, c.Node.Mode)
	_, err = c.Node.ParseRole()
	check(err == nil, "node.role", "%v", err)
	check(c.Node.Mode != ModeHost || c.Node.GameName != "", "node.game_name", "must be set when hosting")
	check(c.Node.RetryAttempts > 0, "node.retry_attempts", "must be positive, got %d", c.Node.RetryAttempts)

	if c.Node.ListenAddr != "" {
		_, err := net.ResolveUDPAddr("udp", c.Node.ListenAddr)
		check(err == nil, "node.listen_addr", "%v", err)
	}
	if c.Node.MulticastAddr != "" {
		addr, err := net.ResolveUDPAddr("udp", c.Node.MulticastAddr)
		check(err == nil && addr.IP.IsMulticast(), "node.multicast_addr", "must be a multicast group address, got %q", c.Node.MulticastAddr)
	}
	if c.Node.JoinAddr != "" {
		_, err := net.ResolveUDPAddr("udp", c.Node.JoinAddr)
		check(err == nil, "node.join_addr", "%v", err)
	}
	if c.Node.Mode == ModeJoin {
		check(c.Node.MulticastAddr != "" || c.Node.JoinAddr != "", "node.join_addr", "joining needs a multicast group or a join address")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		check(false, "logging.level", "unknown level %q", c.Logging.Level)
	}
	check(c.Logging.Format == "console" || c.Logging.Format == "json", "logging.format", "must be console or json, got %q", c.Logging.Format)

	return errors.Join(errs...)
}

// Validate checks the game section alone. Joining nodes run it on the
// config of an announced game before adopting it.
func (g GameConfig) Validate() error {
	var errs []error
	check := func(ok bool, field string, lo, hi, got int) {
		if !ok {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("must be in [%d, %d], got %d", lo, hi, got)})
		}
	}
	check(inRange(g.Width, 10, 100), "game.width", 10, 100, g.Width)
	check(inRange(g.Height, 10, 100), "game.height", 10, 100, g.Height)
	check(inRange(g.FoodStatic, 0, 100), "game.food_static", 0, 100, g.FoodStatic)
	check(inRange(g.StateDelayMs, 100, 3000), "game.state_delay_ms", 100, 3000, g.StateDelayMs)
	return errors.Join(errs...)
}

func inRange(v, lo, hi int) bool {
	return v >= lo && v <= hi
}

// ParsePlayerType maps the textual player type to its wire value.
func (n NodeConfig) ParsePlayerType() (pb.PlayerType, error) {
	switch strings.ToLower(n.PlayerType) {
	case "human", "":
		return pb.PlayerType_HUMAN, nil
	case "robot":
		return pb.PlayerType_ROBOT, nil
	}
	return 0, fmt.Errorf("unknown player type %q", n.PlayerType)
}

// ParseRole maps the requested join role to its wire value. Only NORMAL and
// VIEWER can be requested.
func (n NodeConfig) ParseRole() (pb.NodeRole, error) {
	switch strings.ToLower(n.Role) {
	case "normal", "":
		return pb.NodeRole_NORMAL, nil
	case "viewer":
		return pb.NodeRole_VIEWER, nil
	}
	return 0, fmt.Errorf("unknown role %q", n.Role)
}

// Proto converts the game section into its wire form.
func (g GameConfig) Proto() pb.GameConfig {
	return pb.GameConfig{
		Width:        int32(g.Width),
		Height:       int32(g.Height),
		FoodStatic:   int32(g.FoodStatic),
		StateDelayMs: int32(g.StateDelayMs),
	}
}

func (g GameConfig) StateDelay() time.Duration { return g.Proto().StateDelay() }

// RetryInterval is the wait between two transmissions of a reliable send.
func (g GameConfig) RetryInterval() time.Duration { return g.Proto().RetryInterval() }

// LivenessWindow is how long a peer may stay silent before it is considered gone.
func (g GameConfig) LivenessWindow() time.Duration { return g.Proto().LivenessWindow() }

// FromProto builds the game section from an announced configuration.
func FromProto(c pb.GameConfig) GameConfig {
	return GameConfig{
		Width:        int(c.Width),
		Height:       int(c.Height),
		FoodStatic:   int(c.FoodStatic),
		StateDelayMs: int(c.StateDelayMs),
	}
}
