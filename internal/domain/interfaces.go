package domain

import (
	"net"
	"time"

	pb "github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/proto"
)

type Transport int

const (
	Unicast Transport = iota
	Multicast
)

func (t Transport) String() string {
	if t == Multicast {
		return "multicast"
	}
	return "unicast"
}

// Event is one decoded datagram.
type Event struct {
	GameMessage *pb.GameMessage
	From        *net.UDPAddr
	Transport
}

// UninitializedId marks a player id not yet assigned by a MASTER.
const UninitializedId int32 = -1

// GameCtx is what the local node knows about itself and its leaders.
type GameCtx struct {
	Role       pb.NodeRole
	PlayerType pb.PlayerType
	PlayerID   int32

	PlayerName string
	GameName   string
	// RequestedRole is sent in Join; NORMAL or VIEWER.
	RequestedRole pb.NodeRole

	MasterInfo MasterInfo
	DeputyInfo DeputyInfo
}

type MasterInfo struct {
	MasterId   int32
	MasterAddr *net.UDPAddr
}

type DeputyInfo struct {
	DeputyId   int32
	DeputyAddr *net.UDPAddr
}

// Joined reports whether a MASTER has assigned this node an id.
func (c GameCtx) Joined() bool {
	return c.PlayerID != UninitializedId
}

// HasDeputy reports whether a successor is known.
func (c GameCtx) HasDeputy() bool {
	return c.DeputyInfo.DeputyId != UninitializedId && c.DeputyInfo.DeputyAddr != nil
}

// DiscoveredGame is a game heard of through an Announcement.
type DiscoveredGame struct {
	Announcement pb.GameAnnouncement
	MasterAddr   *net.UDPAddr
	SeenAt       time.Time
}
