package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/internal/application"
	"github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/internal/application/transport"
	"github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/internal/config"
	"github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/internal/game"
	"github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/internal/logging"
	pb "github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/proto"
)

var keys = map[string]pb.Direction{
	"w": pb.Direction_UP,
	"s": pb.Direction_DOWN,
	"a": pb.Direction_LEFT,
	"d": pb.Direction_RIGHT,
}

func main() {
	cfg := config.Default()
	cfg.BindFlags(flag.CommandLine)
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("snake stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	usock, err := transport.NewUnicastSocket(cfg.Node.ListenAddr, log.Named("unicast"))
	if err != nil {
		return err
	}
	defer usock.Close()

	engine, err := application.NewEngine(ctx, cfg, usock, usock.LocalAddr(), log.Named("engine"))
	if err != nil {
		return err
	}
	engine.Listeners = []transport.Listener{usock}
	if cfg.Node.MulticastAddr != "" {
		msock, err := transport.NewMulticastSocket(cfg.Node.MulticastAddr, log.Named("multicast"))
		if err != nil {
			return err
		}
		defer msock.Close()
		engine.Listeners = append(engine.Listeners, msock)
	}
	engine.OnError = func(text string) {
		fmt.Fprintln(os.Stderr, "error:", text)
	}

	var first application.RolePlayer
	switch {
	case cfg.Node.Mode == config.ModeHost:
		if err := engine.HostGame(); err != nil {
			return err
		}
		first = application.NewMaster(engine)
	case cfg.Node.Role == "viewer":
		first = application.NewViewer(engine)
	default:
		first = application.NewNormal(engine)
	}

	go readSteers(engine, log)
	go printScores(ctx, engine)
	return engine.Run(ctx, first)
}

// readSteers maps w/a/s/d lines on stdin to steers.
func readSteers(engine *application.Engine, log *zap.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		dir, ok := keys[strings.ToLower(strings.TrimSpace(scanner.Text()))]
		if !ok {
			continue
		}
		if err := engine.Steer(dir); err != nil {
			log.Debug("steer dropped", zap.Error(err))
		}
	}
}

func printScores(ctx context.Context, engine *application.Engine) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		state, _ := engine.Snapshot()
		if state == nil {
			for _, g := range engine.Games() {
				fmt.Printf("game %q at %s, %d players, can join: %v\n",
					g.Announcement.GameName, g.MasterAddr, len(g.Announcement.Players), g.Announcement.CanJoin)
			}
			continue
		}
		gameCtx := engine.Context()
		fmt.Printf("turn %d, you are %s\n", state.StateOrder, gameCtx.Role)
		for _, p := range game.Scores(state) {
			fmt.Printf("  %-16s %-7s %d\n", p.Name, p.Role, p.Score)
		}
	}
}
