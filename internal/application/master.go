package application

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/internal/domain"
	"github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/internal/game"
	pb "github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/proto"
)

const (
	announceInterval = time.Second
	// Discover replies allowed per requester address.
	discoverRate  = rate.Limit(2)
	discoverBurst = 3
)

// Master runs the turn loop and admits players.
type Master struct {
	Engine *Engine
	// Takeover is set when a DEPUTY becomes MASTER after losing the old one.
	Takeover  bool
	OldMaster domain.MasterInfo

	log *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewMaster(e *Engine) *Master {
	return &Master{
		Engine:   e,
		log:      e.Log.Named("master"),
		limiters: make(map[string]*rate.Limiter),
	}
}

// NewTakeoverMaster is the MASTER a DEPUTY turns into when old went silent.
func NewTakeoverMaster(e *Engine, old domain.MasterInfo) *Master {
	m := NewMaster(e)
	m.Takeover = true
	m.OldMaster = old
	return m
}

func (m *Master) Role() pb.NodeRole { return pb.NodeRole_MASTER }

func (m *Master) SetGameContext() {
	e := m.Engine
	e.GameMtx.Lock()
	defer e.GameMtx.Unlock()
	e.GameCtx.Role = pb.NodeRole_MASTER
	e.GameCtx.MasterInfo = domain.MasterInfo{MasterId: e.GameCtx.PlayerID, MasterAddr: e.LocalAddr}
}

func (m *Master) Start(ctx context.Context) {
	if m.Takeover {
		m.DeputyToMaster(ctx, time.Now())
	}

	var wg sync.WaitGroup
	if m.Engine.Group != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.StartAnnouncements(ctx)
		}()
	}
	m.StartNetTicker(ctx)
	wg.Wait()
}

// StartNetTicker runs one turn per state delay.
func (m *Master) StartNetTicker(ctx context.Context) {
	ticker := time.NewTicker(m.Engine.Store.Config().StateDelay())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.Turn(ctx, now)
		}
	}
}

// Turn demotes silent players, advances the game and broadcasts the result.
func (m *Master) Turn(ctx context.Context, now time.Time) game.Outcome {
	e := m.Engine
	cfg := e.Store.Config()
	self := e.Context().PlayerID
	steers := e.Steers.Take()

	silent := e.Peers.Silent(now, cfg.LivenessWindow(), self)
	var (
		out     game.Outcome
		demoted []int32
	)
	_ = e.Store.Update(func(cur *pb.GameState) (*pb.GameState, error) {
		for _, id := range silent {
			if game.Demote(cur, id) {
				demoted = append(demoted, id)
			}
		}
		valid := make(map[int32]pb.Direction, len(steers))
		for id, dir := range steers {
			if game.ValidSteer(cur, id, dir) {
				valid[id] = dir
			}
		}
		var next *pb.GameState
		next, out = game.Advance(cur, valid, cfg, e.Random)
		m.fillAddresses(next)
		return next, nil
	})

	if errors.Is(out.Err, game.ErrBoardFull) {
		m.log.Warn("food restock skipped", zap.Error(out.Err))
	}
	for _, id := range demoted {
		m.log.Info("player timed out", zap.Int32("player_id", id))
		m.NotifyDeadPlayer(ctx, id)
	}
	for _, id := range silent {
		if addr, ok := e.Peers.Forget(id); ok {
			m.log.Debug("peer forgotten",
				zap.Int32("player_id", id),
				zap.Int("unacked", len(e.Acknowledges.Pending(addr))))
			e.Acknowledges.Forget(addr)
		}
	}
	for _, id := range out.Dead {
		if id == self {
			m.log.Info("master snake died")
			continue
		}
		m.log.Info("snake died", zap.Int32("player_id", id))
		m.NotifyDeadPlayer(ctx, id)
	}
	if out.Promoted {
		m.SelectNewDeputy(ctx, out.NewDeputy)
	}

	m.BroadcastState(ctx)
	if n := e.Acknowledges.Prune(now.Add(-4 * cfg.StateDelay())); n > 0 {
		m.log.Debug("abandoned acks pruned", zap.Int("pruned", n), zap.Int("pending", e.Acknowledges.Len()))
	}
	return out
}

// fillAddresses publishes each peer's address in its player record.
func (m *Master) fillAddresses(state *pb.GameState) {
	for i := range state.Players {
		p := &state.Players[i]
		addr, ok := m.Engine.Peers.Addr(p.Id)
		if !ok {
			continue
		}
		p.IpAddress = addr.IP.String()
		p.Port = int32(addr.Port)
	}
}

func (m *Master) BroadcastState(ctx context.Context) {
	e := m.Engine
	state := e.Store.State()
	for _, peer := range e.Peers.All() {
		e.Reliable.Send(ctx, peer.Addr, e.envelope(stateMsg(state)))
	}
}

// NotifyDeadPlayer tells a player it became a VIEWER.
func (m *Master) NotifyDeadPlayer(ctx context.Context, id int32) {
	addr, ok := m.Engine.Peers.Addr(id)
	if !ok {
		return
	}
	msg := m.Engine.envelope(roleChangeMsg(pb.NodeRole_MASTER.Enum(), pb.NodeRole_VIEWER.Enum()))
	msg.ReceiverId = pb.Int32(id)
	m.Engine.Reliable.Send(ctx, addr, msg)
}

// SelectNewDeputy tells a promoted player it is the DEPUTY now.
func (m *Master) SelectNewDeputy(ctx context.Context, id int32) {
	e := m.Engine
	addr, ok := e.Peers.Addr(id)
	e.GameMtx.Lock()
	e.GameCtx.DeputyInfo = domain.DeputyInfo{DeputyId: id, DeputyAddr: addr}
	e.GameMtx.Unlock()
	if !ok {
		return
	}
	m.log.Info("deputy promoted", zap.Int32("player_id", id))
	msg := e.envelope(roleChangeMsg(pb.NodeRole_MASTER.Enum(), pb.NodeRole_DEPUTY.Enum()))
	msg.ReceiverId = pb.Int32(id)
	e.Reliable.Send(ctx, addr, msg)
}

// DeputyToMaster finishes a takeover: the old MASTER becomes a VIEWER in
// the local state, every peer gets a fresh liveness window and is told who
// leads now.
func (m *Master) DeputyToMaster(ctx context.Context, now time.Time) {
	e := m.Engine
	self := e.Context().PlayerID

	_ = e.Store.Update(func(cur *pb.GameState) (*pb.GameState, error) {
		game.Demote(cur, m.OldMaster.MasterId)
		if p, ok := cur.Player(self); ok {
			p.Role = pb.NodeRole_MASTER
		}
		return cur, nil
	})
	if addr, ok := e.Peers.Forget(m.OldMaster.MasterId); ok {
		e.Acknowledges.Forget(addr)
	}
	e.GameMtx.Lock()
	e.GameCtx.DeputyInfo = domain.DeputyInfo{DeputyId: domain.UninitializedId}
	e.GameMtx.Unlock()
	e.Peers.TouchAll(now)

	m.log.Info("took over as master", zap.Int32("old_master", m.OldMaster.MasterId))
	for _, peer := range e.Peers.All() {
		msg := e.envelope(roleChangeMsg(pb.NodeRole_MASTER.Enum(), nil))
		msg.ReceiverId = pb.Int32(peer.Id)
		e.Reliable.Send(ctx, peer.Addr, msg)
	}
}

// HandleJoin admits a player or rejects it with an Error.
func (m *Master) HandleJoin(event domain.Event) error {
	e := m.Engine
	join := event.GameMessage.GetJoin()
	gameCtx := e.Context()

	if id, ok := e.Peers.Lookup(event.From); ok {
		m.SendJoinAck(event, gameCtx.PlayerID, id)
		return nil
	}
	if join.GameName != "" && join.GameName != gameCtx.GameName {
		e.reject(event, ErrGameNameMismatch.Error())
		return ErrGameNameMismatch
	}

	role := pb.NodeRole_NORMAL
	if join.RequestedRole == pb.NodeRole_VIEWER {
		role = pb.NodeRole_VIEWER
	}
	cfg := e.Store.Config()
	var id int32
	err := e.Store.Update(func(cur *pb.GameState) (*pb.GameState, error) {
		id = game.NextPlayerID(cur)
		if role == pb.NodeRole_NORMAL {
			if err := game.PlaceSnake(cur, cfg, id, e.Random); err != nil {
				return nil, err
			}
		}
		cur.Players = append(cur.Players, pb.GamePlayer{
			Name:      join.PlayerName,
			Id:        id,
			IpAddress: event.From.IP.String(),
			Port:      int32(event.From.Port),
			Role:      role,
			Type:      join.PlayerType,
		})
		return cur, nil
	})
	if err != nil {
		e.reject(event, err.Error())
		return err
	}

	e.Peers.Register(id, event.From, time.Now())
	m.log.Info("player joined",
		zap.String("name", join.PlayerName),
		zap.Int32("player_id", id),
		zap.Stringer("role", role),
		zap.Stringer("addr", event.From))
	m.SendJoinAck(event, gameCtx.PlayerID, id)
	return nil
}

// SendJoinAck acknowledges a Join with the admitted player's id as receiver.
func (m *Master) SendJoinAck(event domain.Event, selfID, id int32) {
	ack := ackMsg(event.GameMessage.MsgSeq, pb.Int32(selfID), pb.Int32(id))
	if err := m.Engine.Reliable.SendBestEffort(event.From, ack); err != nil {
		m.log.Debug("join ack failed", zap.Stringer("to", event.From), zap.Error(err))
	}
}

// Announcement describes the hosted game.
func (m *Master) Announcement() pb.GameAnnouncement {
	e := m.Engine
	state, cfg := e.Store.Snapshot()
	if state == nil {
		state = &pb.GameState{}
	}
	return pb.GameAnnouncement{
		Players:  state.Players,
		Config:   cfg,
		CanJoin:  game.HasRoom(state, cfg),
		GameName: e.Context().GameName,
	}
}

func (m *Master) StartAnnouncements(ctx context.Context) {
	ticker := time.NewTicker(announceInterval)
	defer ticker.Stop()
	for {
		m.SendAnnouncementToMulticast()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Master) SendAnnouncementToMulticast() {
	e := m.Engine
	msg := e.envelope(announcementMsg(m.Announcement()))
	if err := e.Reliable.SendBestEffort(e.Group, msg); err != nil {
		m.log.Warn("announcement failed", zap.Stringer("group", e.Group), zap.Error(err))
	}
}

// ReplyDiscover answers a Discover unless the requester exceeds its rate.
func (m *Master) ReplyDiscover(addr *net.UDPAddr) {
	if !m.limiter(addr).Allow() {
		m.log.Debug("discover rate limited", zap.Stringer("from", addr))
		return
	}
	e := m.Engine
	msg := e.envelope(announcementMsg(m.Announcement()))
	if err := e.Reliable.SendBestEffort(addr, msg); err != nil {
		m.log.Debug("announcement reply failed", zap.Stringer("to", addr), zap.Error(err))
	}
}

func (m *Master) limiter(addr *net.UDPAddr) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := addr.String()
	l, ok := m.limiters[key]
	if !ok {
		l = rate.NewLimiter(discoverRate, discoverBurst)
		m.limiters[key] = l
	}
	return l
}

// HandleRoleChange ignores every role change: the MASTER is never demoted
// by a message.
func (m *Master) HandleRoleChange(event domain.Event, rc *pb.GameMessage_RoleChangeMsg) RolePlayer {
	m.log.Debug("role change ignored", zap.Stringer("from", event.From))
	return m
}
