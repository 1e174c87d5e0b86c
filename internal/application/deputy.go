package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/internal/domain"
	pb "github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/proto"
)

// Deputy follows the MASTER and takes over when it goes silent.
type Deputy struct {
	Engine *Engine
	log    *zap.Logger
}

func NewDeputy(e *Engine) *Deputy {
	return &Deputy{Engine: e, log: e.Log.Named("deputy")}
}

func (d *Deputy) Role() pb.NodeRole { return pb.NodeRole_DEPUTY }

func (d *Deputy) SetGameContext() {
	e := d.Engine
	e.GameMtx.Lock()
	defer e.GameMtx.Unlock()
	e.GameCtx.Role = pb.NodeRole_DEPUTY
	e.GameCtx.DeputyInfo = domain.DeputyInfo{DeputyId: e.GameCtx.PlayerID, DeputyAddr: e.LocalAddr}
}

func (d *Deputy) Start(ctx context.Context) {
	d.Engine.followMaster(ctx, func(now time.Time) bool {
		d.BecomeMaster(ctx)
		return true
	})
}

// BecomeMaster asks the engine to switch to a MASTER that takes over from
// the silent one.
func (d *Deputy) BecomeMaster(ctx context.Context) {
	old := d.Engine.Context().MasterInfo
	d.log.Info("master silent, taking over", zap.Int32("old_master", old.MasterId))
	d.Engine.requestRole(ctx, NewTakeoverMaster(d.Engine, old))
}

func (d *Deputy) HandleRoleChange(event domain.Event, rc *pb.GameMessage_RoleChangeMsg) RolePlayer {
	receiver := d.Engine.followNewMaster(event, rc)
	if receiver == nil {
		return d
	}
	switch *receiver {
	case pb.NodeRole_VIEWER:
		return NewViewer(d.Engine)
	case pb.NodeRole_NORMAL:
		return NewNormal(d.Engine)
	}
	return d
}
