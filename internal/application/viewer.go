package application

import (
	"context"

	"github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/internal/domain"
	pb "github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/proto"
)

// Viewer watches the game without a snake. It is never promoted.
type Viewer struct {
	Engine *Engine
}

func NewViewer(e *Engine) *Viewer {
	return &Viewer{Engine: e}
}

func (v *Viewer) Role() pb.NodeRole { return pb.NodeRole_VIEWER }

func (v *Viewer) SetGameContext() {
	v.Engine.GameMtx.Lock()
	v.Engine.GameCtx.Role = pb.NodeRole_VIEWER
	if v.Engine.GameCtx.DeputyInfo.DeputyId == v.Engine.GameCtx.PlayerID {
		v.Engine.GameCtx.DeputyInfo = domain.DeputyInfo{DeputyId: domain.UninitializedId}
	}
	v.Engine.GameMtx.Unlock()
}

func (v *Viewer) Start(ctx context.Context) {
	if !v.Engine.discoverAndJoin(ctx) {
		return
	}
	v.Engine.followMaster(ctx, v.Engine.retargetToDeputy)
}

func (v *Viewer) HandleRoleChange(event domain.Event, rc *pb.GameMessage_RoleChangeMsg) RolePlayer {
	v.Engine.followNewMaster(event, rc)
	return v
}
