package config

import (
	"errors"
	"flag"
	"testing"
	"time"

	pb "github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/proto"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Game.Width != 40 || cfg.Game.Height != 30 {
		t.Errorf("expected 40x30 board, got %dx%d", cfg.Game.Width, cfg.Game.Height)
	}
	if cfg.Game.FoodStatic != 1 {
		t.Errorf("expected food_static 1, got %d", cfg.Game.FoodStatic)
	}
	if cfg.Game.StateDelayMs != 1000 {
		t.Errorf("expected state delay 1000, got %d", cfg.Game.StateDelayMs)
	}
	if cfg.Node.RetryAttempts != 8 {
		t.Errorf("expected 8 retry attempts, got %d", cfg.Node.RetryAttempts)
	}
	if cfg.Node.MulticastAddr != "239.192.0.4:9192" {
		t.Errorf("unexpected multicast address %q", cfg.Node.MulticastAddr)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestDurations(t *testing.T) {
	g := GameConfig{StateDelayMs: 200}
	if got := g.StateDelay(); got != 200*time.Millisecond {
		t.Errorf("StateDelay = %v", got)
	}
	if got := g.RetryInterval(); got != 20*time.Millisecond {
		t.Errorf("RetryInterval = %v", got)
	}
	if got := g.LivenessWindow(); got != 400*time.Millisecond {
		t.Errorf("LivenessWindow = %v", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"narrow board", func(c *Config) { c.Game.Width = 5 }, "game.width"},
		{"tall board", func(c *Config) { c.Game.Height = 101 }, "game.height"},
		{"negative food", func(c *Config) { c.Game.FoodStatic = -1 }, "game.food_static"},
		{"fast turns", func(c *Config) { c.Game.StateDelayMs = 50 }, "game.state_delay_ms"},
		{"empty name", func(c *Config) { c.Node.PlayerName = " " }, "node.player_name"},
		{"bad type", func(c *Config) { c.Node.PlayerType = "cyborg" }, "node.player_type"},
		{"bad mode", func(c *Config) { c.Node.Mode = "spectate" }, "node.mode"},
		{"master role requested", func(c *Config) { c.Node.Role = "master" }, "node.role"},
		{"unicast group", func(c *Config) { c.Node.MulticastAddr = "127.0.0.1:9192" }, "node.multicast_addr"},
		{"no way to join", func(c *Config) {
			c.Node.Mode = ModeJoin
			c.Node.MulticastAddr = ""
		}, "node.join_addr"},
		{"zero retries", func(c *Config) { c.Node.RetryAttempts = 0 }, "node.retry_attempts"},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			var verr ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Fatalf("expected failure on %s, got %v", tt.field, err)
			}
		})
	}
}

func TestBindFlags(t *testing.T) {
	cfg := Default()
	fs := flag.NewFlagSet("snake", flag.ContinueOnError)
	cfg.BindFlags(fs)

	err := fs.Parse([]string{"-width", "20", "-delay", "300", "-mode", "join", "-role", "viewer", "-join", "127.0.0.1:4000"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Game.Width != 20 || cfg.Game.StateDelayMs != 300 {
		t.Errorf("flags not applied: %+v", cfg.Game)
	}
	role, err := cfg.Node.ParseRole()
	if err != nil || role != pb.NodeRole_VIEWER {
		t.Errorf("ParseRole = %v, %v", role, err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestProtoConversion(t *testing.T) {
	g := GameConfig{Width: 20, Height: 15, FoodStatic: 3, StateDelayMs: 250}
	if back := FromProto(g.Proto()); back != g {
		t.Errorf("got %+v, want %+v", back, g)
	}
}

func TestGameConfigValidate(t *testing.T) {
	if err := FromProto(pb.DefaultGameConfig()).Validate(); err != nil {
		t.Fatalf("default game config rejected: %v", err)
	}

	tests := []struct {
		name  string
		game  pb.GameConfig
		field string
	}{
		{"zero delay", pb.GameConfig{Width: 40, Height: 30, FoodStatic: 1, StateDelayMs: 0}, "game.state_delay_ms"},
		{"negative delay", pb.GameConfig{Width: 40, Height: 30, FoodStatic: 1, StateDelayMs: -5}, "game.state_delay_ms"},
		{"tiny board", pb.GameConfig{Width: 2, Height: 30, FoodStatic: 1, StateDelayMs: 1000}, "game.width"},
		{"flat board", pb.GameConfig{Width: 40, Height: 0, FoodStatic: 1, StateDelayMs: 1000}, "game.height"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromProto(tt.game).Validate()
			var verr ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Fatalf("expected failure on %s, got %v", tt.field, err)
			}
		})
	}
}
