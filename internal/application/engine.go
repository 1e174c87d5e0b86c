package application

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/internal/application/transport"
	"github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/internal/config"
	"github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/internal/domain"
	"github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/internal/game"
	pb "github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/proto"
)

var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrGameNameMismatch   = errors.New("game name mismatch")
	ErrNotMaster          = errors.New("not the master")
	ErrUnknownPeer        = errors.New("unknown peer")
	ErrLeadershipGap      = errors.New("master lost and no deputy to take over")
	ErrNotJoined          = errors.New("not joined to a game")
)

// RolePlayer is the behaviour of one of the four roles. The engine runs
// exactly one at a time.
type RolePlayer interface {
	Role() pb.NodeRole
	// SetGameContext records the role in the engine's GameCtx.
	SetGameContext()
	// Start runs the role's loops until ctx is cancelled.
	Start(ctx context.Context)
	HandleRoleChange(event domain.Event, rc *pb.GameMessage_RoleChangeMsg) RolePlayer
}

type Engine struct {
	Node config.NodeConfig
	Log  *zap.Logger

	USock     transport.Sender
	Listeners []transport.Listener
	LocalAddr *net.UDPAddr
	// Group is the announcement group, nil when discovery is disabled.
	Group *net.UDPAddr
	// JoinAddr skips discovery and sends Join straight to a MASTER.
	JoinAddr *net.UDPAddr

	Peers        *transport.Peers
	Acknowledges *transport.PendingAcks
	Reliable     *transport.Reliable

	GameMtx sync.Mutex
	GameCtx *domain.GameCtx
	Store   *GameStore
	Steers  *SteerBuffer
	Random  *Random

	EventChan chan domain.Event
	// OnError receives Error payloads and leadership-gap notices.
	OnError func(text string)

	ctx         context.Context
	roleChan    chan RolePlayer
	player      RolePlayer
	roleCancel  context.CancelFunc
	roleWg      sync.WaitGroup
	gapReported bool
	lastJoin    time.Time
	// prevMaster is the MASTER left for the DEPUTY on silence. It is kept
	// until the DEPUTY shows it leads, in case only this node lost it.
	prevMaster domain.MasterInfo

	gamesMu sync.Mutex
	games   map[string]domain.DiscoveredGame
}

// NewEngine wires a node around an open socket. The game config in cfg is
// used as is by a MASTER; a joining node replaces it with the announced one.
// ctx bounds the reliable sends the node starts outside of a role.
func NewEngine(ctx context.Context, cfg *config.Config, sock transport.Sender, localAddr *net.UDPAddr, log *zap.Logger) (*Engine, error) {
	playerType, err := cfg.Node.ParsePlayerType()
	if err != nil {
		return nil, err
	}
	role, err := cfg.Node.ParseRole()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		Node:         cfg.Node,
		Log:          log,
		USock:        sock,
		LocalAddr:    localAddr,
		Peers:        transport.NewPeers(),
		Acknowledges: transport.NewPendingAcks(),
		Store:        NewGameStore(cfg.Game.Proto()),
		Steers:       NewSteerBuffer(),
		Random:       NewRandom(cfg.Node.Seed),
		EventChan:    make(chan domain.Event, 64),
		ctx:          ctx,
		prevMaster:   domain.MasterInfo{MasterId: domain.UninitializedId},
		roleChan:     make(chan RolePlayer),
		games:        make(map[string]domain.DiscoveredGame),
	}
	e.Reliable = transport.NewReliable(sock, e.Acknowledges, e.Peers,
		cfg.Game.RetryInterval(), cfg.Node.RetryAttempts, log.Named("reliable"))

	e.GameCtx = &domain.GameCtx{
		Role:          role,
		PlayerType:    playerType,
		PlayerID:      domain.UninitializedId,
		PlayerName:    cfg.Node.PlayerName,
		GameName:      cfg.Node.GameName,
		RequestedRole: role,
		MasterInfo:    domain.MasterInfo{MasterId: domain.UninitializedId},
		DeputyInfo:    domain.DeputyInfo{DeputyId: domain.UninitializedId},
	}

	if cfg.Node.JoinAddr != "" {
		e.JoinAddr, err = net.ResolveUDPAddr("udp", cfg.Node.JoinAddr)
		if err != nil {
			return nil, fmt.Errorf("join address: %w", err)
		}
	}
	if cfg.Node.MulticastAddr != "" {
		e.Group, err = net.ResolveUDPAddr("udp", cfg.Node.MulticastAddr)
		if err != nil {
			return nil, fmt.Errorf("multicast address: %w", err)
		}
	}
	return e, nil
}

// HostGame creates a new game with the local player as its MASTER.
func (e *Engine) HostGame() error {
	const masterID = 1

	e.GameMtx.Lock()
	e.GameCtx.PlayerID = masterID
	e.GameCtx.Role = pb.NodeRole_MASTER
	e.GameCtx.MasterInfo = domain.MasterInfo{MasterId: masterID, MasterAddr: e.LocalAddr}
	name, playerType := e.GameCtx.PlayerName, e.GameCtx.PlayerType
	e.GameMtx.Unlock()

	cfg := e.Store.Config()
	state := &pb.GameState{
		Players: []pb.GamePlayer{{
			Name: name,
			Id:   masterID,
			Role: pb.NodeRole_MASTER,
			Type: playerType,
		}},
	}
	if err := game.PlaceSnake(state, cfg, masterID, e.Random); err != nil {
		return err
	}
	e.Store.Replace(state)
	e.Log.Info("hosting game",
		zap.String("game", e.Node.GameName),
		zap.Int32("width", cfg.Width),
		zap.Int32("height", cfg.Height))
	return nil
}

// Run serves the node until ctx is cancelled, starting in role first.
func (e *Engine) Run(ctx context.Context, first RolePlayer) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, l := range e.Listeners {
		l := l
		g.Go(func() error { return l.Listen(gctx, e.EventChan) })
	}
	g.Go(func() error { return e.loop(gctx, first) })

	err := g.Wait()
	e.Reliable.Wait()
	return err
}

func (e *Engine) loop(ctx context.Context, first RolePlayer) error {
	e.switchRole(ctx, first)
	defer e.stopRole()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-e.EventChan:
			next, err := e.HandleMessage(ev)
			if err != nil {
				e.Log.Debug("message not handled",
					zap.String("kind", ev.GameMessage.Kind()),
					zap.Stringer("from", ev.From),
					zap.Error(err))
			}
			if next != nil && next != e.player {
				e.switchRole(ctx, next)
			}
		case next := <-e.roleChan:
			e.switchRole(ctx, next)
		}
	}
}

// switchRole stops the running role's loops before starting next, so two
// turn loops never share the state.
func (e *Engine) switchRole(ctx context.Context, next RolePlayer) {
	e.stopRole()
	prev := e.player
	e.player = next
	next.SetGameContext()

	rctx, cancel := context.WithCancel(ctx)
	e.roleCancel = cancel
	e.roleWg.Add(1)
	go func() {
		defer e.roleWg.Done()
		next.Start(rctx)
	}()

	if prev != nil {
		e.Log.Info("role changed", zap.Stringer("from", prev.Role()), zap.Stringer("to", next.Role()))
	}
}

func (e *Engine) stopRole() {
	if e.roleCancel != nil {
		e.roleCancel()
		e.roleWg.Wait()
		e.roleCancel = nil
	}
}

// requestRole asks the dispatcher loop to switch roles. Role loops call it
// and then return.
func (e *Engine) requestRole(ctx context.Context, next RolePlayer) {
	select {
	case e.roleChan <- next:
	case <-ctx.Done():
	}
}

// HandleMessage dispatches one inbound envelope and returns the role the
// node should be in afterwards.
func (e *Engine) HandleMessage(event domain.Event) (RolePlayer, error) {
	message := event.GameMessage
	if _, ok := message.Type.(*pb.GameMessage_Join); !ok {
		e.Peers.Touch(event.From, time.Now())
	}

	switch message.Type.(type) {
	case *pb.GameMessage_Ping:
		e.HandlePing(event)
	case *pb.GameMessage_Steer:
		return e.player, e.HandleSteer(event)
	case *pb.GameMessage_Ack:
		e.HandleAck(event)
	case *pb.GameMessage_State:
		return e.HandleState(event), nil
	case *pb.GameMessage_Announcement:
		e.HandleAnnouncement(event)
	case *pb.GameMessage_Discover:
		e.HandleDiscover(event)
	case *pb.GameMessage_Join:
		return e.player, e.HandleJoin(event)
	case *pb.GameMessage_Error:
		e.HandleError(event)
	case *pb.GameMessage_RoleChange:
		return e.HandleRoleChange(event), nil
	default:
		return e.player, ErrUnknownMessageType
	}
	return e.player, nil
}

func (e *Engine) HandlePing(event domain.Event) {
	e.sendAck(event)
}

// HandleSteer records a steer for the next turn. Every steer is acked, a
// steer from an unknown peer is then dropped.
func (e *Engine) HandleSteer(event domain.Event) error {
	e.sendAck(event)
	if e.role() != pb.NodeRole_MASTER {
		return ErrNotMaster
	}
	id, ok := e.Peers.Lookup(event.From)
	if !ok {
		return fmt.Errorf("%w: steer from %s", ErrUnknownPeer, event.From)
	}
	e.Steers.Record(id, event.GameMessage.GetSteer().Direction, event.GameMessage.MsgSeq)
	return nil
}

// HandleAck clears the pending entry. The first ack carrying a receiver id
// while this node has none is the MASTER admitting it.
func (e *Engine) HandleAck(event domain.Event) {
	message := event.GameMessage
	removed := e.Acknowledges.Remove(event.From, message.MsgSeq)

	e.GameMtx.Lock()
	defer e.GameMtx.Unlock()
	if !removed || e.GameCtx.Joined() || message.ReceiverId == nil || message.SenderId == nil {
		return
	}
	e.GameCtx.PlayerID = message.GetReceiverId()
	e.GameCtx.MasterInfo = domain.MasterInfo{MasterId: message.GetSenderId(), MasterAddr: event.From}
	e.Peers.Register(message.GetSenderId(), event.From, time.Now())
	e.Log.Info("joined game",
		zap.String("game", e.GameCtx.GameName),
		zap.Int32("player_id", e.GameCtx.PlayerID),
		zap.Int32("master_id", message.GetSenderId()),
		zap.Stringer("master", event.From))
}

// HandleState applies a newer state from the recognised MASTER. A state
// from the known DEPUTY that lists it as MASTER is a takeover.
func (e *Engine) HandleState(event domain.Event) RolePlayer {
	defer e.sendAck(event)
	state := event.GameMessage.GetState().State

	e.GameMtx.Lock()
	defer e.GameMtx.Unlock()
	ctx := e.GameCtx
	if ctx.Role == pb.NodeRole_MASTER || !ctx.Joined() {
		return e.player
	}

	leader, hasLeader := state.PlayerWithRole(pb.NodeRole_MASTER)
	fromMaster := sameAddr(event.From, ctx.MasterInfo.MasterAddr)
	switch {
	case fromMaster:
	case sameAddr(event.From, ctx.DeputyInfo.DeputyAddr):
		if hasLeader && leader.Id == ctx.DeputyInfo.DeputyId {
			e.retargetLocked(ctx.DeputyInfo.DeputyId, event.From)
			fromMaster = true
		}
	case sameAddr(event.From, e.prevMaster.MasterAddr):
		if hasLeader && leader.Id == e.prevMaster.MasterId {
			e.Log.Info("previous master still leads, following it again",
				zap.Int32("master_id", e.prevMaster.MasterId))
			e.retargetLocked(e.prevMaster.MasterId, event.From)
			fromMaster = true
		}
	}
	if !fromMaster {
		return e.player
	}
	if hasLeader && leader.Id == ctx.MasterInfo.MasterId {
		e.prevMaster = domain.MasterInfo{MasterId: domain.UninitializedId}
	}
	if !e.Store.Apply(state) {
		return e.player
	}

	now := time.Now()
	ctx.DeputyInfo = domain.DeputyInfo{DeputyId: domain.UninitializedId}
	for i := range state.Players {
		p := &state.Players[i]
		if p.Id == ctx.PlayerID || p.Id == ctx.MasterInfo.MasterId {
			continue
		}
		addr, ok := playerAddr(p)
		if ok {
			e.Peers.Register(p.Id, addr, now)
		}
		if p.Role == pb.NodeRole_DEPUTY && ok {
			ctx.DeputyInfo = domain.DeputyInfo{DeputyId: p.Id, DeputyAddr: addr}
		}
	}

	self, ok := state.Player(ctx.PlayerID)
	if !ok || self.Role == ctx.Role {
		return e.player
	}
	switch self.Role {
	case pb.NodeRole_VIEWER:
		return NewViewer(e)
	case pb.NodeRole_DEPUTY:
		return NewDeputy(e)
	case pb.NodeRole_NORMAL:
		if ctx.Role == pb.NodeRole_DEPUTY {
			return NewNormal(e)
		}
	}
	return e.player
}

// HandleAnnouncement remembers announced games and, while not joined,
// sends Join to the first matching one.
func (e *Engine) HandleAnnouncement(event domain.Event) {
	now := time.Now()
	games := make([]pb.GameAnnouncement, 0, len(event.GameMessage.GetAnnouncement().Games))
	for _, g := range event.GameMessage.GetAnnouncement().Games {
		if err := config.FromProto(g.Config).Validate(); err != nil {
			e.Log.Debug("announced game ignored",
				zap.String("game", g.GameName),
				zap.Stringer("from", event.From),
				zap.Error(err))
			continue
		}
		games = append(games, g)
	}

	e.gamesMu.Lock()
	for _, g := range games {
		e.games[g.GameName] = domain.DiscoveredGame{Announcement: g, MasterAddr: event.From, SeenAt: now}
	}
	e.gamesMu.Unlock()

	e.GameMtx.Lock()
	ctx := e.GameCtx
	if ctx.Role == pb.NodeRole_MASTER || ctx.Joined() || now.Sub(e.lastJoin) < time.Second {
		e.GameMtx.Unlock()
		return
	}
	var chosen *pb.GameAnnouncement
	for _, g := range games {
		if ctx.GameName != "" && g.GameName != ctx.GameName {
			continue
		}
		if !g.CanJoin && ctx.RequestedRole != pb.NodeRole_VIEWER {
			continue
		}
		g := g
		chosen = &g
		break
	}
	if chosen == nil {
		e.GameMtx.Unlock()
		return
	}
	ctx.GameName = chosen.GameName
	ctx.MasterInfo.MasterAddr = event.From
	e.lastJoin = now
	join := joinMsg(ctx.PlayerType, ctx.PlayerName, ctx.GameName, ctx.RequestedRole)
	e.GameMtx.Unlock()

	e.adoptConfig(chosen.Config)
	e.Log.Info("joining game", zap.String("game", chosen.GameName), zap.Stringer("master", event.From))
	e.Reliable.Send(e.ctx, event.From, join)
}

// HandleDiscover answers with an Announcement when this node is MASTER.
func (e *Engine) HandleDiscover(event domain.Event) {
	if m, ok := e.player.(*Master); ok {
		m.ReplyDiscover(event.From)
	}
}

func (e *Engine) HandleJoin(event domain.Event) error {
	m, ok := e.player.(*Master)
	if !ok {
		e.reject(event, ErrNotMaster.Error())
		return ErrNotMaster
	}
	return m.HandleJoin(event)
}

func (e *Engine) HandleError(event domain.Event) {
	e.sendAck(event)
	e.reportError(event.GameMessage.GetError().ErrorMessage)
}

func (e *Engine) HandleRoleChange(event domain.Event) RolePlayer {
	e.sendAck(event)
	if e.player == nil {
		return nil
	}
	return e.player.HandleRoleChange(event, event.GameMessage.GetRoleChange())
}

// sendAck acknowledges event with the sequence number it carried.
func (e *Engine) sendAck(event domain.Event) {
	e.GameMtx.Lock()
	var sender *int32
	if e.GameCtx.Joined() {
		sender = pb.Int32(e.GameCtx.PlayerID)
	}
	e.GameMtx.Unlock()

	var receiver *int32
	if id, ok := e.Peers.Lookup(event.From); ok {
		receiver = pb.Int32(id)
	}
	if err := e.Reliable.SendBestEffort(event.From, ackMsg(event.GameMessage.MsgSeq, sender, receiver)); err != nil {
		e.Log.Debug("ack failed", zap.Stringer("to", event.From), zap.Error(err))
	}
}

// reject answers a request with an Error and a plain ack so the
// requester stops retransmitting.
func (e *Engine) reject(event domain.Event, reason string) {
	e.sendAck(event)
	msg := e.envelope(errorMsg(reason))
	if err := e.Reliable.SendBestEffort(event.From, msg); err != nil {
		e.Log.Debug("error reply failed", zap.Stringer("to", event.From), zap.Error(err))
	}
}

// envelope stamps msg with the local player id.
func (e *Engine) envelope(msg *pb.GameMessage) *pb.GameMessage {
	e.GameMtx.Lock()
	defer e.GameMtx.Unlock()
	if e.GameCtx.Joined() {
		msg.SenderId = pb.Int32(e.GameCtx.PlayerID)
	}
	return msg
}

func (e *Engine) reportError(text string) {
	e.Log.Warn("game error", zap.String("error", text))
	if e.OnError != nil {
		e.OnError(text)
	}
}

func (e *Engine) adoptConfig(cfg pb.GameConfig) {
	e.Store.SetConfig(cfg)
	e.Reliable.SetInterval(cfg.RetryInterval())
}

func (e *Engine) role() pb.NodeRole {
	e.GameMtx.Lock()
	defer e.GameMtx.Unlock()
	return e.GameCtx.Role
}

// Context returns a copy of the node's GameCtx.
func (e *Engine) Context() domain.GameCtx {
	e.GameMtx.Lock()
	defer e.GameMtx.Unlock()
	return *e.GameCtx
}

// Snapshot returns a copy of the current state and its config for drawing.
func (e *Engine) Snapshot() (*pb.GameState, pb.GameConfig) {
	return e.Store.Snapshot()
}

// Games lists the games heard of, by name.
func (e *Engine) Games() []domain.DiscoveredGame {
	e.gamesMu.Lock()
	games := make([]domain.DiscoveredGame, 0, len(e.games))
	for _, g := range e.games {
		games = append(games, g)
	}
	e.gamesMu.Unlock()
	sort.Slice(games, func(i, j int) bool {
		return games[i].Announcement.GameName < games[j].Announcement.GameName
	})
	return games
}

// Steer turns the local snake. A MASTER records the steer for the next
// turn, other players send it to their MASTER. A VIEWER has no snake.
func (e *Engine) Steer(dir pb.Direction) error {
	e.GameMtx.Lock()
	ctx := *e.GameCtx
	e.GameMtx.Unlock()

	if !ctx.Joined() {
		return ErrNotJoined
	}
	switch ctx.Role {
	case pb.NodeRole_MASTER:
		e.Steers.Record(ctx.PlayerID, dir, e.USock.NextSeq())
	case pb.NodeRole_NORMAL, pb.NodeRole_DEPUTY:
		if ctx.MasterInfo.MasterAddr == nil {
			return ErrNotJoined
		}
		e.Reliable.Send(e.ctx, ctx.MasterInfo.MasterAddr, e.envelope(steerMsg(dir)))
	case pb.NodeRole_VIEWER:
		e.Log.Debug("viewer steer ignored", zap.Stringer("direction", dir))
	}
	return nil
}
