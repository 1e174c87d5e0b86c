package application

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/internal/domain"
	pb "github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/proto"
)

const discoverInterval = time.Second

// discoverAndJoin looks for a game until a MASTER admits this node. It
// reports false when ctx ends first.
func (e *Engine) discoverAndJoin(ctx context.Context) bool {
	ticker := time.NewTicker(discoverInterval)
	defer ticker.Stop()
	for {
		if e.Context().Joined() {
			return true
		}
		switch {
		case e.JoinAddr != nil:
			e.sendDirectJoin(ctx)
		case e.Group != nil:
			if err := e.Reliable.SendBestEffort(e.Group, discoverMsg()); err != nil {
				e.Log.Warn("discover failed", zap.Stringer("group", e.Group), zap.Error(err))
			}
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func (e *Engine) sendDirectJoin(ctx context.Context) {
	e.GameMtx.Lock()
	gameCtx := e.GameCtx
	gameCtx.MasterInfo.MasterAddr = e.JoinAddr
	e.lastJoin = time.Now()
	join := joinMsg(gameCtx.PlayerType, gameCtx.PlayerName, gameCtx.GameName, gameCtx.RequestedRole)
	e.GameMtx.Unlock()

	e.Reliable.Send(ctx, e.JoinAddr, join)
}

// CheckTimeoutInteraction pings an idle MASTER and reports whether the
// MASTER has been silent for longer than the liveness window.
func (e *Engine) CheckTimeoutInteraction(now time.Time) bool {
	gameCtx := e.Context()
	cfg := e.Store.Config()
	master, ok := e.Peers.Get(gameCtx.MasterInfo.MasterId)
	if !ok {
		return false
	}
	if now.Sub(master.LastSend) >= cfg.RetryInterval() {
		if err := e.Reliable.SendBestEffort(master.Addr, e.envelope(pingMsg())); err != nil {
			e.Log.Debug("ping failed", zap.Stringer("to", master.Addr), zap.Error(err))
		}
	}
	return now.Sub(master.LastRecv) > cfg.LivenessWindow()
}

// followMaster watches the MASTER until ctx ends or onSilent returns true.
func (e *Engine) followMaster(ctx context.Context, onSilent func(now time.Time) bool) {
	ticker := time.NewTicker(e.Store.Config().RetryInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if e.CheckTimeoutInteraction(now) && onSilent(now) {
				return
			}
		}
	}
}

// retargetToDeputy makes the known DEPUTY this node's MASTER. Without a
// DEPUTY the leadership gap is reported once.
func (e *Engine) retargetToDeputy(now time.Time) bool {
	e.GameMtx.Lock()
	if e.GameCtx.HasDeputy() {
		deputy := e.GameCtx.DeputyInfo
		old := e.GameCtx.MasterInfo
		e.Log.Info("master silent, following deputy",
			zap.Int32("old_master", old.MasterId),
			zap.Int32("deputy", deputy.DeputyId))
		e.retargetLocked(deputy.DeputyId, deputy.DeputyAddr)
		e.prevMaster = old
		e.GameMtx.Unlock()
		return false
	}
	report := !e.gapReported
	e.gapReported = true
	e.GameMtx.Unlock()

	if report {
		e.reportError(ErrLeadershipGap.Error())
	}
	return false
}

// retargetLocked switches the MASTER to id at addr and forgets the previous
// one, including a MASTER kept as fallback. GameMtx must be held.
func (e *Engine) retargetLocked(id int32, addr *net.UDPAddr) {
	now := time.Now()
	old := e.GameCtx.MasterInfo
	if old.MasterId != id {
		if oldAddr, ok := e.Peers.Forget(old.MasterId); ok {
			e.Acknowledges.Forget(oldAddr)
		}
	}
	e.GameCtx.MasterInfo = domain.MasterInfo{MasterId: id, MasterAddr: addr}
	if e.GameCtx.DeputyInfo.DeputyId == id {
		e.GameCtx.DeputyInfo = domain.DeputyInfo{DeputyId: domain.UninitializedId}
	}
	e.Peers.Register(id, addr, now)
	e.Peers.TouchAll(now)
	e.gapReported = false
	e.prevMaster = domain.MasterInfo{MasterId: domain.UninitializedId}
}

// followNewMaster handles a RoleChange announcing a MASTER and returns the
// role the sender assigned to this node, if any.
func (e *Engine) followNewMaster(event domain.Event, rc *pb.GameMessage_RoleChangeMsg) *pb.NodeRole {
	if rc.SenderRole == nil || *rc.SenderRole != pb.NodeRole_MASTER {
		return rc.ReceiverRole
	}

	e.GameMtx.Lock()
	defer e.GameMtx.Unlock()
	if sameAddr(event.From, e.GameCtx.MasterInfo.MasterAddr) {
		e.prevMaster = domain.MasterInfo{MasterId: domain.UninitializedId}
		return rc.ReceiverRole
	}
	id, ok := e.Peers.Lookup(event.From)
	if event.GameMessage.SenderId != nil {
		id, ok = event.GameMessage.GetSenderId(), true
	}
	if !ok {
		return rc.ReceiverRole
	}
	e.Log.Info("new master", zap.Int32("master_id", id), zap.Stringer("addr", event.From))
	e.retargetLocked(id, event.From)
	return rc.ReceiverRole
}
