package application

import (
	"context"

	"github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/internal/domain"
	pb "github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/proto"
)

// Normal plays a snake and follows the MASTER.
type Normal struct {
	Engine *Engine
}

func NewNormal(e *Engine) *Normal {
	return &Normal{Engine: e}
}

func (n *Normal) Role() pb.NodeRole { return pb.NodeRole_NORMAL }

func (n *Normal) SetGameContext() {
	n.Engine.GameMtx.Lock()
	n.Engine.GameCtx.Role = pb.NodeRole_NORMAL
	n.Engine.GameMtx.Unlock()
}

func (n *Normal) Start(ctx context.Context) {
	if !n.Engine.discoverAndJoin(ctx) {
		return
	}
	n.Engine.followMaster(ctx, n.Engine.retargetToDeputy)
}

func (n *Normal) HandleRoleChange(event domain.Event, rc *pb.GameMessage_RoleChangeMsg) RolePlayer {
	receiver := n.Engine.followNewMaster(event, rc)
	if receiver == nil {
		return n
	}
	switch *receiver {
	case pb.NodeRole_VIEWER:
		n.Engine.Log.Info("snake died")
		return NewViewer(n.Engine)
	case pb.NodeRole_DEPUTY:
		return NewDeputy(n.Engine)
	}
	return n
}
